package vault

import (
	"rwavault/core/events"
	"rwavault/crypto"
)

// SetAllocationRatio replaces the RWA/on-chain split. The legs must sum to
// 10000 basis points.
func (e *Engine) SetAllocationRatio(admin crypto.Address, rwaBps, onchainBps uint32, auth Authorization) error {
	return e.execute(OpSetAllocationRatio, func(buf *events.Buffer) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if !admin.Equal(cfg.Admin) {
			return ErrNotAuthorized
		}
		if err := e.authorize(cfg.Admin, OpSetAllocationRatio, AllocationArgs(rwaBps, onchainBps), auth, ErrNotAuthorized); err != nil {
			return err
		}
		ratio := AllocationRatio{RwaBps: rwaBps, OnchainBps: onchainBps}
		if !ratio.Valid() {
			return ErrInvalidAllocation
		}
		cfg.AllocRwaBps = rwaBps
		cfg.AllocOnchainBps = onchainBps
		if err := e.state.PutVaultConfig(cfg); err != nil {
			return err
		}
		buf.Emit(WrapEvent(AllocationEvent(cfg.Admin, ratio)))
		e.logger.Info("vault allocation updated", "rwa_bps", rwaBps, "onchain_bps", onchainBps)
		return nil
	})
}

// AllocationRatio returns the current split.
func (e *Engine) AllocationRatio() (AllocationRatio, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return AllocationRatio{}, err
	}
	return cfg.Allocation(), nil
}

// AllocationTargets splits the cumulative deposits by the current ratio. The
// result is advisory; the vault never rebalances on its own.
func (e *Engine) AllocationTargets() (*AllocationTargets, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	deposits, err := e.state.VaultTotalDeposits()
	if err != nil {
		return nil, err
	}
	return splitAllocation(deposits, cfg.Allocation())
}
