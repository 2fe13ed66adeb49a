package vault

import (
	"encoding/hex"
	"math/big"

	"lukechampine.com/blake3"

	"rwavault/core/events"
	"rwavault/crypto"
	"rwavault/observability/logging"
)

// DeliveryHash commits to off-chain delivery details. Callers compute it
// before invoking ClaimPhysical so the details never touch the ledger.
func DeliveryHash(details []byte) [32]byte {
	return blake3.Sum256(details)
}

// ParseDeliveryHash decodes a hex-encoded 32-byte delivery hash.
func ParseDeliveryHash(value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(value)
	if err != nil || len(raw) != len(out) {
		return out, ErrInvalidDeliveryHash
	}
	copy(out[:], raw)
	return out, nil
}

// ClaimPhysical burns tokenAmount claim tokens after maturity and records a
// pending physical delivery obligation for user.
func (e *Engine) ClaimPhysical(user crypto.Address, tokenAmount *big.Int, deliveryHash [32]byte, auth Authorization) error {
	return e.execute(OpClaimPhysical, func(buf *events.Buffer) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if err := e.authorize(user, OpClaimPhysical, ClaimArgs(tokenAmount, deliveryHash), auth, ErrNotAuthorized); err != nil {
			return err
		}
		if e.phase(cfg) != PhaseMatured {
			return ErrVaultNotMature
		}
		if err := validateAmount(tokenAmount); err != nil {
			return err
		}
		if deliveryHash == ([32]byte{}) {
			return ErrInvalidDeliveryHash
		}
		existing, ok, err := e.state.VaultClaim(user.Raw())
		if err != nil {
			return err
		}
		if ok && existing.Pending() {
			return ErrClaimAlreadyPending
		}
		claim, err := e.directory.ClaimToken(cfg.ClaimToken)
		if err != nil {
			return err
		}
		nextBalance, err := e.debitClaims(claim, user, tokenAmount)
		if err != nil {
			return err
		}

		if err := claim.Burn(user, tokenAmount); err != nil {
			return err
		}

		if err := e.state.PutVaultBalance(user.Raw(), nextBalance); err != nil {
			return err
		}
		record := &ClaimRecord{
			Owner:        user,
			Amount:       new(big.Int).Set(tokenAmount),
			DeliveryHash: deliveryHash,
			CreatedAt:    e.now(),
		}
		if err := e.state.PutVaultClaim(record); err != nil {
			return err
		}
		buf.Emit(WrapEvent(ClaimEvent(user, tokenAmount, deliveryHash)))
		e.logger.Info("vault physical claim", "user", user.String(), "amount", tokenAmount.String(),
			"delivery", logging.Fingerprint(hex.EncodeToString(deliveryHash[:])))
		return nil
	})
}

// ClaimRecord returns the delivery record of user, if any.
func (e *Engine) ClaimRecord(user crypto.Address) (*ClaimRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	record, ok, err := e.state.VaultClaim(user.Raw())
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.Clone(), true, nil
}
