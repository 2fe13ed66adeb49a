package vault

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/rlp"

	"rwavault/crypto"
)

// AuthDomain separates vault authorizations from other signed payloads.
const AuthDomain = "rwavault/v1"

// Operation names a mutating vault call in an authorization digest.
type Operation string

const (
	OpInitialize           Operation = "initialize"
	OpDeposit              Operation = "deposit"
	OpRedeem               Operation = "redeem"
	OpClaimPhysical        Operation = "claim_physical"
	OpReportRwaValue       Operation = "report_rwa_value"
	OpSetAllocationRatio   Operation = "set_allocation_ratio"
	OpAddStrategy          Operation = "add_strategy"
	OpDeployToStrategy     Operation = "deploy_to_strategy"
	OpWithdrawFromStrategy Operation = "withdraw_from_strategy"
)

// Operations lists every operation that requires an authorization.
func Operations() []Operation {
	return []Operation{
		OpInitialize, OpDeposit, OpRedeem, OpClaimPhysical, OpReportRwaValue,
		OpSetAllocationRatio, OpAddStrategy, OpDeployToStrategy, OpWithdrawFromStrategy,
	}
}

// ParseOperation resolves an operation by name.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations() {
		if string(op) == name {
			return op, nil
		}
	}
	return "", fmt.Errorf("vault: unknown operation %q", name)
}

type authPayload struct {
	Domain    string
	Vault     []byte
	Operation string
	Nonce     uint64
	Args      []string
}

// AuthDigest returns the 32-byte digest a principal signs to authorize op on
// the vault at the given nonce. Args are the canonical renderings produced by
// the *Args helpers.
func AuthDigest(vaultAddr crypto.Address, op Operation, nonce uint64, args []string) ([]byte, error) {
	if args == nil {
		args = []string{}
	}
	encoded, err := rlp.EncodeToBytes(authPayload{
		Domain:    AuthDomain,
		Vault:     vaultAddr.Bytes(),
		Operation: string(op),
		Nonce:     nonce,
		Args:      args,
	})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Sign produces an Authorization for op signed by key.
func Sign(key *crypto.PrivateKey, vaultAddr crypto.Address, op Operation, nonce uint64, args []string) (Authorization, error) {
	digest, err := AuthDigest(vaultAddr, op, nonce, args)
	if err != nil {
		return Authorization{}, err
	}
	sig, err := key.Sign(digest)
	if err != nil {
		return Authorization{}, err
	}
	return Authorization{Nonce: nonce, Signature: sig}, nil
}

// InitializeArgs renders the Initialize arguments for signing.
func InitializeArgs(p InitParams) []string {
	return []string{
		p.Admin.String(),
		p.ClaimToken.String(),
		p.StableAsset.String(),
		p.Oracle.String(),
		strconv.FormatUint(uint64(p.AllocRwaBps), 10),
		strconv.FormatUint(uint64(p.AllocOnchainBps), 10),
		strconv.FormatInt(p.Maturity, 10),
		amountString(p.BuybackPrice),
	}
}

// AmountArgs renders single-amount operations (deposit, redeem, oracle).
func AmountArgs(amount *big.Int) []string {
	return []string{amountString(amount)}
}

// ClaimArgs renders the ClaimPhysical arguments for signing.
func ClaimArgs(amount *big.Int, deliveryHash [32]byte) []string {
	return []string{amountString(amount), hex.EncodeToString(deliveryHash[:])}
}

// AllocationArgs renders the SetAllocationRatio arguments for signing.
func AllocationArgs(rwaBps, onchainBps uint32) []string {
	return []string{
		strconv.FormatUint(uint64(rwaBps), 10),
		strconv.FormatUint(uint64(onchainBps), 10),
	}
}

// StrategyArgs renders AddStrategy, and with an amount the deploy and
// withdraw operations.
func StrategyArgs(strategy crypto.Address, amount *big.Int) []string {
	if amount == nil {
		return []string{strategy.String()}
	}
	return []string{strategy.String(), amountString(amount)}
}

// authorize checks that auth was signed by principal for op and consumes the
// principal's nonce. denied is returned on signature mismatch.
func (e *Engine) authorize(principal crypto.Address, op Operation, args []string, auth Authorization, denied error) error {
	if principal.IsZero() || len(auth.Signature) == 0 {
		return denied
	}
	digest, err := AuthDigest(e.address, op, auth.Nonce, args)
	if err != nil {
		return err
	}
	signer, err := crypto.RecoverAddress(digest, auth.Signature)
	if err != nil || signer.Raw() != principal.Raw() {
		return denied
	}
	expected, err := e.state.VaultNonce(principal.Raw())
	if err != nil {
		return err
	}
	if auth.Nonce != expected {
		return ErrInvalidNonce
	}
	return e.state.PutVaultNonce(principal.Raw(), expected+1)
}
