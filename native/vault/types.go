package vault

import (
	"math/big"

	"rwavault/crypto"
)

// Config captures the global vault parameters written once by Initialize.
type Config struct {
	// Admin may change the allocation and manage strategies.
	Admin crypto.Address `json:"admin"`
	// ClaimToken references the ledger that mints participation claims.
	ClaimToken crypto.Address `json:"claimToken"`
	// StableAsset references the ledger of the deposited stable asset.
	StableAsset crypto.Address `json:"stableAsset"`
	// Oracle is the only principal allowed to report the RWA valuation.
	Oracle crypto.Address `json:"oracle"`
	// AllocRwaBps and AllocOnchainBps always sum to 10000.
	AllocRwaBps     uint32 `json:"allocRwaBps"`
	AllocOnchainBps uint32 `json:"allocOnchainBps"`
	// Maturity is the unix timestamp from which redemptions and claims open.
	Maturity int64 `json:"maturity"`
	// BuybackPrice is the floor price of the RWA buyback in stable units.
	BuybackPrice *big.Int `json:"buybackPrice"`
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.BuybackPrice = newBigInt(c.BuybackPrice)
	return &clone
}

// Allocation returns the configured split.
func (c *Config) Allocation() AllocationRatio {
	if c == nil {
		return AllocationRatio{}
	}
	return AllocationRatio{RwaBps: c.AllocRwaBps, OnchainBps: c.AllocOnchainBps}
}

// AllocationRatio is the RWA/on-chain split in basis points.
type AllocationRatio struct {
	RwaBps     uint32 `json:"rwaBps"`
	OnchainBps uint32 `json:"onchainBps"`
}

// Valid reports whether the two legs sum to 100%.
func (a AllocationRatio) Valid() bool {
	return uint64(a.RwaBps)+uint64(a.OnchainBps) == basisPointsTotal
}

// AllocationTargets splits an amount according to the allocation ratio.
type AllocationTargets struct {
	Total   *big.Int `json:"total"`
	Rwa     *big.Int `json:"rwa"`
	Onchain *big.Int `json:"onchain"`
}

// RwaValuation is the last oracle-reported off-chain asset value.
type RwaValuation struct {
	Value     *big.Int `json:"value"`
	UpdatedAt int64    `json:"updatedAt"`
}

// Clone returns a deep copy of the valuation.
func (v *RwaValuation) Clone() *RwaValuation {
	if v == nil {
		return nil
	}
	return &RwaValuation{Value: newBigInt(v.Value), UpdatedAt: v.UpdatedAt}
}

// ClaimRecord is a physical-asset delivery obligation created by
// ClaimPhysical.
type ClaimRecord struct {
	Owner        crypto.Address `json:"owner"`
	Amount       *big.Int       `json:"amount"`
	DeliveryHash [32]byte       `json:"deliveryHash"`
	CreatedAt    int64          `json:"createdAt"`
	Fulfilled    bool           `json:"fulfilled"`
}

// Clone returns a deep copy of the record.
func (r *ClaimRecord) Clone() *ClaimRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = newBigInt(r.Amount)
	return &clone
}

// Pending reports whether the record still awaits fulfillment.
func (r *ClaimRecord) Pending() bool { return r != nil && !r.Fulfilled }

// Authorization is the signed, operation-scoped proof a principal attaches to
// a mutating call.
type Authorization struct {
	Nonce     uint64 `json:"nonce"`
	Signature []byte `json:"signature"`
}

// Phase is the derived lifecycle stage of the vault.
type Phase uint8

const (
	PhaseUninitialized Phase = iota
	PhaseActive
	PhaseMatured
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseMatured:
		return "matured"
	default:
		return "uninitialized"
	}
}

// MarshalText renders the phase name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// InitParams groups the arguments of Initialize.
type InitParams struct {
	Admin           crypto.Address
	ClaimToken      crypto.Address
	StableAsset     crypto.Address
	Oracle          crypto.Address
	AllocRwaBps     uint32
	AllocOnchainBps uint32
	Maturity        int64
	BuybackPrice    *big.Int
}

// Overview is a read-only summary used by RPC callers.
type Overview struct {
	Config        *Config         `json:"config"`
	Phase         Phase           `json:"phase"`
	VaultValue    *big.Int        `json:"vaultValue"`
	RwaValuation  *RwaValuation   `json:"rwaValuation"`
	TotalDeposits *big.Int        `json:"totalDeposits"`
	ClaimSupply   *big.Int        `json:"claimSupply"`
	LiquidBalance *big.Int        `json:"liquidBalance"`
	Allocation    AllocationRatio `json:"allocation"`
}

// StrategyPosition reports the deployed amount tracked for a strategy.
type StrategyPosition struct {
	Strategy crypto.Address `json:"strategy"`
	Deployed *big.Int       `json:"deployed"`
}
