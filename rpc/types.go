package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"rwavault/crypto"
	"rwavault/native/vault"
)

const maxRequestBytes = 1 << 16

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthorizationJSON is the wire form of a signed authorization.
type AuthorizationJSON struct {
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// NewAuthorizationJSON renders auth for transport.
func NewAuthorizationJSON(auth vault.Authorization) AuthorizationJSON {
	return AuthorizationJSON{Nonce: auth.Nonce, Signature: "0x" + hex.EncodeToString(auth.Signature)}
}

// Decode parses the hex signature.
func (a AuthorizationJSON) Decode() (vault.Authorization, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(a.Signature), "0x")
	sig, err := hex.DecodeString(raw)
	if err != nil {
		return vault.Authorization{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return vault.Authorization{Nonce: a.Nonce, Signature: sig}, nil
}

// OperationRequest carries the arguments of any mutating operation. Fields
// not used by the addressed operation are ignored.
type OperationRequest struct {
	Principal     string            `json:"principal"`
	Authorization AuthorizationJSON `json:"authorization"`

	Amount       string `json:"amount,omitempty"`
	DeliveryHash string `json:"deliveryHash,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
	RwaBps       uint32 `json:"rwaBps,omitempty"`
	OnchainBps   uint32 `json:"onchainBps,omitempty"`

	ClaimToken   string `json:"claimToken,omitempty"`
	StableAsset  string `json:"stableAsset,omitempty"`
	Oracle       string `json:"oracle,omitempty"`
	Maturity     int64  `json:"maturity,omitempty"`
	BuybackPrice string `json:"buybackPrice,omitempty"`
}

// OperationResult reports the outcome of a mutating operation.
type OperationResult struct {
	Operation vault.Operation `json:"operation"`
	Amount    string          `json:"amount,omitempty"`
}

// AccountResult summarises a principal's position.
type AccountResult struct {
	Address string             `json:"address"`
	Balance string             `json:"balance"`
	Nonce   uint64             `json:"nonce"`
	Claim   *ClaimRecordResult `json:"claim,omitempty"`
}

// ClaimRecordResult is the JSON form of a physical claim.
type ClaimRecordResult struct {
	Amount       string `json:"amount"`
	DeliveryHash string `json:"deliveryHash"`
	CreatedAt    int64  `json:"createdAt"`
	Fulfilled    bool   `json:"fulfilled"`
}

// ValueResult carries the vault value.
type ValueResult struct {
	VaultValue string `json:"vaultValue"`
}

// AllocationResult carries the allocation ratio and its targets.
type AllocationResult struct {
	RwaBps     uint32 `json:"rwaBps"`
	OnchainBps uint32 `json:"onchainBps"`
	Total      string `json:"total"`
	Rwa        string `json:"rwa"`
	Onchain    string `json:"onchain"`
}

// StrategyResult is one whitelisted strategy.
type StrategyResult struct {
	Address  string `json:"address"`
	Deployed string `json:"deployed"`
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

func parseAddress(label, raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s required", label)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s: %w", label, err)
	}
	return addr, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
