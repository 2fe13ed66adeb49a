package main

import (
	"io"
	"log/slog"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rwavault/config"
	"rwavault/crypto"
	"rwavault/native/token"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestAssembleMemoryNode(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	holder := key.PubKey().Address()
	cfg.Vault.Genesis = []config.GenesisBalance{{Address: holder.String(), Amount: "5000"}}
	cfg.Events.ArchiveDSN = "file:vaultd_assemble?mode=memory&cache=shared"

	n, err := assemble(cfg, quietLogger())
	require.NoError(t, err)
	defer n.close()

	require.NotNil(t, n.sink)
	require.Equal(t, n.parsed.VaultAddress.String(), n.engine.Address().String())
	require.True(t, n.engine.Policy().RedeemLiquidityCheck)

	stable := token.NewLedger(n.state, n.parsed.StableAsset, "STABLE")
	balance, err := stable.BalanceOf(holder)
	require.NoError(t, err)
	require.Equal(t, 0, balance.Cmp(big.NewInt(5000)))

	require.NoError(t, seedGenesis(n.state, stable, n.parsed.Genesis))
	supply, err := stable.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, 0, supply.Cmp(big.NewInt(5000)), "genesis must only apply to an empty ledger")
}

func TestOpenDatabaseBackends(t *testing.T) {
	for _, backend := range []string{"leveldb", "bolt", "memory"} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.Backend = backend
			cfg.DataDir = filepath.Join(t.TempDir(), "data")
			db, err := openDatabase(cfg)
			require.NoError(t, err)
			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			db.Close()
		})
	}
	cfg := config.Default()
	cfg.Storage.Backend = "redis"
	_, err := openDatabase(cfg)
	require.Error(t, err)
}
