package vault

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"rwavault/core/events"
	"rwavault/crypto"
)

func containsStrategy(list [][crypto.AddressLength]byte, raw [crypto.AddressLength]byte) bool {
	for _, entry := range list {
		if entry == raw {
			return true
		}
	}
	return false
}

func (e *Engine) requireAdmin(admin crypto.Address, op Operation, args []string, auth Authorization) (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !admin.Equal(cfg.Admin) {
		return nil, ErrNotAuthorized
	}
	if err := e.authorize(cfg.Admin, op, args, auth, ErrNotAuthorized); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *Engine) whitelisted(strategy crypto.Address) (Strategy, error) {
	list, err := e.state.VaultStrategies()
	if err != nil {
		return nil, err
	}
	if !containsStrategy(list, strategy.Raw()) {
		return nil, ErrStrategyNotWhitelisted
	}
	return e.directory.Strategy(strategy)
}

// AddStrategy whitelists strategy. Adding a listed strategy is a no-op.
func (e *Engine) AddStrategy(admin, strategy crypto.Address, auth Authorization) error {
	return e.execute(OpAddStrategy, func(buf *events.Buffer) error {
		if _, err := e.requireAdmin(admin, OpAddStrategy, StrategyArgs(strategy, nil), auth); err != nil {
			return err
		}
		if strategy.IsZero() {
			return ErrStrategyUnknown
		}
		if strategy.Prefix() != crypto.ContractPrefix {
			return ErrStrategyPrefix
		}
		if _, err := e.directory.Strategy(strategy); err != nil {
			return err
		}
		list, err := e.state.VaultStrategies()
		if err != nil {
			return err
		}
		if containsStrategy(list, strategy.Raw()) {
			return nil
		}
		list = append(list, strategy.Raw())
		sort.Slice(list, func(i, j int) bool { return bytes.Compare(list[i][:], list[j][:]) < 0 })
		if err := e.state.PutVaultStrategies(list); err != nil {
			return err
		}
		buf.Emit(WrapEvent(StrategyAddedEvent(admin, strategy)))
		e.logger.Info("vault strategy added", "strategy", strategy.String())
		return nil
	})
}

// DeployToStrategy moves amount of the vault's stable asset into a whitelisted
// strategy. The strategy must accept the full amount. It returns the accepted
// amount.
func (e *Engine) DeployToStrategy(admin, strategy crypto.Address, amount *big.Int, auth Authorization) (*big.Int, error) {
	var accepted *big.Int
	err := e.execute(OpDeployToStrategy, func(buf *events.Buffer) error {
		cfg, err := e.requireAdmin(admin, OpDeployToStrategy, StrategyArgs(strategy, amount), auth)
		if err != nil {
			return err
		}
		target, err := e.whitelisted(strategy)
		if err != nil {
			return err
		}
		if err := validateAmount(amount); err != nil {
			return err
		}
		stable, err := e.directory.StableAsset(cfg.StableAsset)
		if err != nil {
			return err
		}
		deployed, err := e.state.VaultDeployed(strategy.Raw())
		if err != nil {
			return err
		}
		nextDeployed, err := checkedAdd(deployed, amount)
		if err != nil {
			return err
		}

		if err := stable.Transfer(e.address, strategy, amount); err != nil {
			return err
		}
		got, err := target.Deploy(new(big.Int).Set(amount))
		if err != nil {
			return fmt.Errorf("vault: deploy to %s: %w", strategy, err)
		}
		if got == nil || got.Cmp(amount) != 0 {
			return ErrStrategyShortfall
		}

		if err := e.state.PutVaultDeployed(strategy.Raw(), nextDeployed); err != nil {
			return err
		}
		buf.Emit(WrapEvent(DeployEvent(admin, strategy, amount)))
		e.logger.Info("vault capital deployed", "strategy", strategy.String(), "amount", amount.String())
		accepted = new(big.Int).Set(got)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// WithdrawFromStrategy pulls up to amount back from a whitelisted strategy.
// The deployed amount is reduced by what the strategy returned, never below
// zero. It returns the amount received.
func (e *Engine) WithdrawFromStrategy(admin, strategy crypto.Address, amount *big.Int, auth Authorization) (*big.Int, error) {
	var received *big.Int
	err := e.execute(OpWithdrawFromStrategy, func(buf *events.Buffer) error {
		cfg, err := e.requireAdmin(admin, OpWithdrawFromStrategy, StrategyArgs(strategy, amount), auth)
		if err != nil {
			return err
		}
		target, err := e.whitelisted(strategy)
		if err != nil {
			return err
		}
		if err := validateAmount(amount); err != nil {
			return err
		}
		deployed, err := e.state.VaultDeployed(strategy.Raw())
		if err != nil {
			return err
		}
		if amount.Cmp(deployed) > 0 {
			return ErrInsufficientDeployed
		}
		stable, err := e.directory.StableAsset(cfg.StableAsset)
		if err != nil {
			return err
		}

		returned, err := target.Withdraw(new(big.Int).Set(amount))
		if err != nil {
			return fmt.Errorf("vault: withdraw from %s: %w", strategy, err)
		}
		returned = newBigInt(returned)
		if returned.Sign() < 0 {
			return ErrStrategyShortfall
		}
		if err := checkInt128(returned); err != nil {
			return err
		}
		if returned.Sign() > 0 {
			if err := stable.Transfer(strategy, e.address, returned); err != nil {
				return err
			}
		}

		reduction := returned
		if reduction.Cmp(deployed) > 0 {
			reduction = deployed
		}
		if err := e.state.PutVaultDeployed(strategy.Raw(), new(big.Int).Sub(deployed, reduction)); err != nil {
			return err
		}
		buf.Emit(WrapEvent(WithdrawEvent(admin, strategy, returned)))
		e.logger.Info("vault capital withdrawn", "strategy", strategy.String(), "requested", amount.String(), "returned", returned.String())
		received = new(big.Int).Set(returned)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return received, nil
}

// Strategies returns the whitelisted strategies with their deployed amounts
// in address order.
func (e *Engine) Strategies() ([]StrategyPosition, error) {
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}
	list, err := e.state.VaultStrategies()
	if err != nil {
		return nil, err
	}
	out := make([]StrategyPosition, 0, len(list))
	for _, raw := range list {
		deployed, err := e.state.VaultDeployed(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, StrategyPosition{
			Strategy: crypto.NewAddress(crypto.ContractPrefix, raw[:]),
			Deployed: deployed,
		})
	}
	return out, nil
}

// DeployedAmount returns the cached deployed amount for strategy.
func (e *Engine) DeployedAmount(strategy crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.VaultDeployed(strategy.Raw())
}
