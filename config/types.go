package config

// Storage selects the key/value backend.
type Storage struct {
	// Backend is one of "leveldb", "bolt" or "memory".
	Backend string `toml:"Backend"`
}

// Vault identifies the vault contract and its collaborators.
type Vault struct {
	Address               string   `toml:"Address"`
	ClaimTokenAddress     string   `toml:"ClaimTokenAddress"`
	StableAssetAddress    string   `toml:"StableAssetAddress"`
	ReserveStrategies     []string `toml:"ReserveStrategies"`
	RedeemLiquidityCheck  bool     `toml:"RedeemLiquidityCheck"`
	LiveStrategyValuation bool     `toml:"LiveStrategyValuation"`
	// Genesis seeds stable-asset balances when the ledger is empty.
	Genesis []GenesisBalance `toml:"Genesis"`
}

// GenesisBalance credits Amount base units of the stable asset to Address.
type GenesisBalance struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Retention controls persistent entry extension.
type Retention struct {
	ThresholdSecs       int64  `toml:"ThresholdSecs"`
	ExtendToSecs        int64  `toml:"ExtendToSecs"`
	MaintenanceInterval string `toml:"MaintenanceInterval"`
}

// Events configures the event archive.
type Events struct {
	// ArchiveDSN is a postgres:// URL or an SQLite path. Empty disables the
	// archive.
	ArchiveDSN string `toml:"ArchiveDSN"`
}

// RPC bounds the HTTP surface.
type RPC struct {
	RateLimitPerMin int    `toml:"RateLimitPerMin"`
	Burst           int    `toml:"Burst"`
	ReadTimeout     string `toml:"ReadTimeout"`
	WriteTimeout    string `toml:"WriteTimeout"`
}

// Pauses toggles module circuit breakers.
type Pauses struct {
	Vault bool `toml:"Vault"`
}

// IsPaused implements the native pause view.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "vault":
		return p.Vault
	default:
		return false
	}
}

// Logging configures log output.
type Logging struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string  `toml:"Endpoint"`
	Insecure bool    `toml:"Insecure"`
	Headers  string  `toml:"Headers"`
	Metrics  bool    `toml:"Metrics"`
	Traces   bool    `toml:"Traces"`
	Ratio    float64 `toml:"SampleRatio"`
}
