package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"rwavault/core/state"
	"rwavault/crypto"
)

// Parsed holds the runtime values derived from a validated Config.
type Parsed struct {
	VaultAddress        crypto.Address
	ClaimToken          crypto.Address
	StableAsset         crypto.Address
	ReserveStrategies   []crypto.Address
	Genesis             []Allocation
	TTLPolicy           state.TTLPolicy
	MaintenanceInterval time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
}

// Allocation is a parsed genesis balance.
type Allocation struct {
	Account crypto.Address
	Amount  *big.Int
}

// Validate checks cfg for consistency.
func Validate(cfg *Config) error {
	_, err := Parse(cfg)
	return err
}

func parseContract(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	if addr.IsZero() {
		return crypto.Address{}, fmt.Errorf("%s: zero address", field)
	}
	return addr, nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", field)
	}
	return d, nil
}

// Parse validates cfg and converts it into runtime values.
func Parse(cfg *Config) (*Parsed, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config: nil")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "leveldb", "bolt", "memory":
	default:
		return nil, fmt.Errorf("storage.Backend: unsupported backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend != "memory" && strings.TrimSpace(cfg.DataDir) == "" {
		return nil, fmt.Errorf("DataDir: required for %s backend", cfg.Storage.Backend)
	}

	out := &Parsed{}
	var err error
	if out.VaultAddress, err = parseContract("vault.Address", cfg.Vault.Address); err != nil {
		return nil, err
	}
	if out.ClaimToken, err = parseContract("vault.ClaimTokenAddress", cfg.Vault.ClaimTokenAddress); err != nil {
		return nil, err
	}
	if out.StableAsset, err = parseContract("vault.StableAssetAddress", cfg.Vault.StableAssetAddress); err != nil {
		return nil, err
	}
	if out.ClaimToken.Equal(out.StableAsset) {
		return nil, fmt.Errorf("vault: claim token and stable asset must differ")
	}
	seen := map[string]struct{}{}
	for i, raw := range cfg.Vault.ReserveStrategies {
		addr, err := parseContract(fmt.Sprintf("vault.ReserveStrategies[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[string(addr.Bytes())]; dup {
			return nil, fmt.Errorf("vault.ReserveStrategies: duplicate %s", raw)
		}
		seen[string(addr.Bytes())] = struct{}{}
		out.ReserveStrategies = append(out.ReserveStrategies, addr)
	}

	for i, entry := range cfg.Vault.Genesis {
		field := fmt.Sprintf("vault.Genesis[%d]", i)
		addr, err := crypto.DecodeAddress(strings.TrimSpace(entry.Address))
		if err != nil {
			return nil, fmt.Errorf("%s.Address: %w", field, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(entry.Amount), 10)
		if !ok || amount.Sign() <= 0 {
			return nil, fmt.Errorf("%s.Amount: must be a positive integer", field)
		}
		out.Genesis = append(out.Genesis, Allocation{Account: addr, Amount: amount})
	}

	out.TTLPolicy = state.TTLPolicy{Threshold: cfg.Retention.ThresholdSecs, ExtendTo: cfg.Retention.ExtendToSecs}
	if err := out.TTLPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("retention: %w", err)
	}
	if out.MaintenanceInterval, err = parseDuration("retention.MaintenanceInterval", cfg.Retention.MaintenanceInterval, time.Hour); err != nil {
		return nil, err
	}
	if out.ReadTimeout, err = parseDuration("rpc.ReadTimeout", cfg.RPC.ReadTimeout, 10*time.Second); err != nil {
		return nil, err
	}
	if out.WriteTimeout, err = parseDuration("rpc.WriteTimeout", cfg.RPC.WriteTimeout, 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RPC.RateLimitPerMin < 0 || cfg.RPC.Burst < 0 {
		return nil, fmt.Errorf("rpc: rate limits must not be negative")
	}
	if cfg.Telemetry.Ratio < 0 || cfg.Telemetry.Ratio > 1 {
		return nil, fmt.Errorf("telemetry.SampleRatio: must be within [0, 1]")
	}
	return out, nil
}
