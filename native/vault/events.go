package vault

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"rwavault/core/events"
	"rwavault/core/types"
	"rwavault/crypto"
)

const (
	// EventTypeInitialized is emitted once when the vault is configured.
	EventTypeInitialized = "vault.initialized"
	// EventTypeDeposit is emitted when stable assets are deposited for claims.
	EventTypeDeposit = "vault.deposit"
	// EventTypeRedeem is emitted when claims are burned for stable assets.
	EventTypeRedeem = "vault.redeem"
	// EventTypeClaim is emitted when claims are exchanged for physical delivery.
	EventTypeClaim = "vault.claim"
	// EventTypeOracle is emitted when the oracle reports a new RWA valuation.
	EventTypeOracle = "vault.oracle"
	// EventTypeAllocation is emitted when the admin changes the split.
	EventTypeAllocation = "vault.allocation"
	// EventTypeStrategyAdded is emitted when a strategy joins the whitelist.
	EventTypeStrategyAdded = "vault.strategy.added"
	// EventTypeDeploy is emitted when capital moves into a strategy.
	EventTypeDeploy = "vault.deploy"
	// EventTypeWithdraw is emitted when capital returns from a strategy.
	EventTypeWithdraw = "vault.withdraw"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// InitializedEvent announces the initial vault configuration.
func InitializedEvent(cfg *Config) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"actor":        cfg.Admin.String(),
			"claimToken":   cfg.ClaimToken.String(),
			"stableAsset":  cfg.StableAsset.String(),
			"oracle":       cfg.Oracle.String(),
			"rwaBps":       strconv.FormatUint(uint64(cfg.AllocRwaBps), 10),
			"onchainBps":   strconv.FormatUint(uint64(cfg.AllocOnchainBps), 10),
			"maturity":     strconv.FormatInt(cfg.Maturity, 10),
			"buybackPrice": amountString(cfg.BuybackPrice),
		},
	}
}

// DepositEvent records a deposit and the claim tokens it minted.
func DepositEvent(user crypto.Address, amount, minted *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"actor":  user.String(),
			"amount": amountString(amount),
			"minted": amountString(minted),
		},
	}
}

// RedeemEvent records burned claim tokens and the stable payout.
func RedeemEvent(user crypto.Address, burned, payout *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRedeem,
		Attributes: map[string]string{
			"actor":  user.String(),
			"burned": amountString(burned),
			"payout": amountString(payout),
		},
	}
}

// ClaimEvent records a physical delivery claim.
func ClaimEvent(user crypto.Address, amount *big.Int, deliveryHash [32]byte) *types.Event {
	return &types.Event{
		Type: EventTypeClaim,
		Attributes: map[string]string{
			"actor":        user.String(),
			"amount":       amountString(amount),
			"deliveryHash": hex.EncodeToString(deliveryHash[:]),
		},
	}
}

// OracleEvent records a reported RWA valuation.
func OracleEvent(oracle crypto.Address, value *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeOracle,
		Attributes: map[string]string{
			"actor": oracle.String(),
			"value": amountString(value),
		},
	}
}

// AllocationEvent records a new allocation ratio.
func AllocationEvent(admin crypto.Address, ratio AllocationRatio) *types.Event {
	return &types.Event{
		Type: EventTypeAllocation,
		Attributes: map[string]string{
			"actor":      admin.String(),
			"rwaBps":     strconv.FormatUint(uint64(ratio.RwaBps), 10),
			"onchainBps": strconv.FormatUint(uint64(ratio.OnchainBps), 10),
		},
	}
}

// StrategyAddedEvent records a whitelist addition.
func StrategyAddedEvent(admin, strategy crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeStrategyAdded,
		Attributes: map[string]string{
			"actor":    admin.String(),
			"strategy": strategy.String(),
		},
	}
}

// DeployEvent records capital sent to a strategy.
func DeployEvent(admin, strategy crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeploy,
		Attributes: map[string]string{
			"actor":    admin.String(),
			"strategy": strategy.String(),
			"amount":   amountString(amount),
		},
	}
}

// WithdrawEvent records capital returned from a strategy.
func WithdrawEvent(admin, strategy crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdraw,
		Attributes: map[string]string{
			"actor":    admin.String(),
			"strategy": strategy.String(),
			"amount":   amountString(amount),
		},
	}
}
