package vault

import (
	"math/big"

	"rwavault/core/events"
	"rwavault/crypto"
)

// ReportRwaValue records the oracle's valuation of the off-chain assets.
// Negative values are stored as reported and flagged.
func (e *Engine) ReportRwaValue(oracle crypto.Address, value *big.Int, auth Authorization) error {
	return e.execute(OpReportRwaValue, func(buf *events.Buffer) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if !oracle.Equal(cfg.Oracle) {
			return ErrOracleNotAuthorized
		}
		if err := e.authorize(cfg.Oracle, OpReportRwaValue, AmountArgs(value), auth, ErrOracleNotAuthorized); err != nil {
			return err
		}
		reported := newBigInt(value)
		if err := checkInt128(reported); err != nil {
			return err
		}
		if err := e.state.PutVaultRwaValuation(&RwaValuation{Value: reported, UpdatedAt: e.now()}); err != nil {
			return err
		}
		if reported.Sign() < 0 {
			e.metrics.IncNegativeValuation()
			e.logger.Warn("negative rwa valuation reported", "value", reported.String())
		}
		buf.Emit(WrapEvent(OracleEvent(cfg.Oracle, reported)))
		e.logger.Info("rwa valuation reported", "value", reported.String())
		return nil
	})
}

// RwaValuation returns the last reported valuation.
func (e *Engine) RwaValuation() (*RwaValuation, error) {
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}
	valuation, err := e.state.VaultRwaValuation()
	if err != nil {
		return nil, err
	}
	return valuation.Clone(), nil
}
