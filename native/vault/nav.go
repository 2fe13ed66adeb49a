package vault

import (
	"fmt"
	"math/big"

	"rwavault/crypto"
)

// VaultValue returns the sum of the deployed strategy amounts and the last
// reported RWA valuation. It never mutates state.
func (e *Engine) VaultValue() (*big.Int, error) {
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}
	nav, err := e.vaultValue()
	if err != nil {
		return nil, err
	}
	e.metrics.SetVaultValue(nav)
	return nav, nil
}

func (e *Engine) vaultValue() (*big.Int, error) {
	total := big.NewInt(0)
	list, err := e.state.VaultStrategies()
	if err != nil {
		return nil, err
	}
	for _, raw := range list {
		value, err := e.strategyValue(raw)
		if err != nil {
			return nil, err
		}
		if total, err = checkedAdd(total, value); err != nil {
			return nil, err
		}
	}
	valuation, err := e.state.VaultRwaValuation()
	if err != nil {
		return nil, err
	}
	if valuation != nil {
		if total, err = checkedAdd(total, valuation.Value); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func (e *Engine) strategyValue(raw [crypto.AddressLength]byte) (*big.Int, error) {
	if !e.policy.LiveStrategyValuation {
		return e.state.VaultDeployed(raw)
	}
	addr := crypto.NewAddress(crypto.ContractPrefix, raw[:])
	strategy, err := e.directory.Strategy(addr)
	if err != nil {
		return nil, err
	}
	value, err := strategy.DeployedValue()
	if err != nil {
		return nil, fmt.Errorf("vault: value strategy %s: %w", addr, err)
	}
	if value == nil || value.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return value, nil
}
