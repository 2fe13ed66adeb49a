package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rwavault/crypto"
)

type Config struct {
	ListenAddress string    `toml:"ListenAddress"`
	DataDir       string    `toml:"DataDir"`
	Storage       Storage   `toml:"storage"`
	Vault         Vault     `toml:"vault"`
	Retention     Retention `toml:"retention"`
	Events        Events    `toml:"events"`
	RPC           RPC       `toml:"rpc"`
	Pauses        Pauses    `toml:"pauses"`
	Logging       Logging   `toml:"logging"`
	Telemetry     Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Vault.ReserveStrategies == nil {
		cfg.Vault.ReserveStrategies = []string{}
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// contractAddress derives a stable module address from a label.
func contractAddress(label string) string {
	digest := crypto.Keccak256([]byte("rwavault/contract/" + label))
	return crypto.NewAddress(crypto.ContractPrefix, digest[len(digest)-crypto.AddressLength:]).String()
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddress: ":8080",
		DataDir:       "./rwavault-data",
		Storage:       Storage{Backend: "leveldb"},
		Vault: Vault{
			Address:              contractAddress("vault"),
			ClaimTokenAddress:    contractAddress("claim-token"),
			StableAssetAddress:   contractAddress("stable-asset"),
			ReserveStrategies:    []string{contractAddress("reserve-0")},
			RedeemLiquidityCheck: true,
		},
		Retention: Retention{
			ThresholdSecs:       30 * 24 * 60 * 60,
			ExtendToSecs:        120 * 24 * 60 * 60,
			MaintenanceInterval: "1h",
		},
		RPC: RPC{
			RateLimitPerMin: 600,
			Burst:           60,
			ReadTimeout:     "10s",
			WriteTimeout:    "10s",
		},
		Logging: Logging{Env: "dev", Level: "info", MaxSizeMB: 100, MaxBackups: 5},
		Telemetry: Telemetry{
			Metrics: true,
			Ratio:   0.1,
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
