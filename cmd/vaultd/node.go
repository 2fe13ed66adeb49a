package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rwavault/config"
	"rwavault/core/events"
	"rwavault/core/state"
	"rwavault/native/strategy"
	"rwavault/native/token"
	"rwavault/native/vault"
	"rwavault/observability"
	"rwavault/observability/metrics"
	"rwavault/rpc"
	"rwavault/services/eventsink"
	"rwavault/storage"
)

// node bundles the assembled daemon components.
type node struct {
	db          storage.Database
	state       *state.Manager
	engine      *vault.Engine
	broadcaster *events.Broadcaster
	sink        *eventsink.Sink
	server      *rpc.Server
	parsed      *config.Parsed
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	switch backend {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"))
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

// assemble wires storage, ledgers, strategies, the engine and the RPC server
// from cfg.
func assemble(cfg *config.Config, logger *slog.Logger) (*node, error) {
	parsed, err := config.Parse(cfg)
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	n := &node{db: db, parsed: parsed, broadcaster: events.NewBroadcaster()}

	n.state = state.NewManager(db)
	if err := n.state.SetTTLPolicy(parsed.TTLPolicy); err != nil {
		n.close()
		return nil, err
	}

	claim := token.NewLedger(n.state, parsed.ClaimToken, "CLAIM")
	stable := token.NewLedger(n.state, parsed.StableAsset, "STABLE")
	directory := vault.NewDirectory()
	directory.RegisterClaimToken(claim.Address(), claim)
	directory.RegisterStableAsset(stable.Address(), stable)
	for _, addr := range parsed.ReserveStrategies {
		directory.RegisterStrategy(addr, strategy.NewReserve(addr, stable))
	}
	if err := seedGenesis(n.state, stable, parsed.Genesis); err != nil {
		n.close()
		return nil, fmt.Errorf("seed genesis balances: %w", err)
	}

	emitters := events.Fanout{n.broadcaster, observability.EventMetrics()}
	if dsn := strings.TrimSpace(cfg.Events.ArchiveDSN); dsn != "" {
		sink, err := eventsink.Open(dsn, logger)
		if err != nil {
			n.close()
			return nil, err
		}
		n.sink = sink
		emitters = append(emitters, sink)
	}

	n.engine = vault.NewEngine(parsed.VaultAddress, directory)
	n.engine.SetState(n.state)
	n.engine.SetPolicy(vault.Policy{
		RedeemLiquidityCheck:  cfg.Vault.RedeemLiquidityCheck,
		LiveStrategyValuation: cfg.Vault.LiveStrategyValuation,
	})
	n.engine.SetPauses(cfg.Pauses)
	n.engine.SetLogger(logger)
	n.engine.SetMetrics(metrics.Vault())
	n.engine.SetEmitter(emitters)

	n.server = rpc.NewServer(n.engine, n.broadcaster, rpc.Config{
		RateLimitPerMin: float64(cfg.RPC.RateLimitPerMin),
		Burst:           cfg.RPC.Burst,
		ReadTimeout:     parsed.ReadTimeout,
		WriteTimeout:    parsed.WriteTimeout,
	}, logger)
	if n.sink != nil {
		n.server.SetArchive(n.sink)
	}
	return n, nil
}

// seedGenesis credits the configured balances once, while the stable ledger
// has no supply.
func seedGenesis(mgr *state.Manager, stable *token.Ledger, allocations []config.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	supply, err := stable.TotalSupply()
	if err != nil {
		return err
	}
	if supply.Sign() != 0 {
		return nil
	}
	for _, alloc := range allocations {
		if err := stable.Mint(alloc.Account, alloc.Amount); err != nil {
			mgr.Discard()
			return err
		}
	}
	return mgr.Commit()
}

func (n *node) close() error {
	var errs []error
	if n.sink != nil {
		errs = append(errs, n.sink.Close())
	}
	if n.db != nil {
		n.db.Close()
	}
	return errors.Join(errs...)
}
