package state

import (
	"errors"
	"math/big"
	"testing"

	"rwavault/crypto"
	"rwavault/native/vault"
	"rwavault/storage"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64 { return c.now }

func newTestManager(t *testing.T) (*Manager, storage.Database, *fakeClock) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	clock := &fakeClock{now: 1_700_000_000}
	mgr := NewManager(db)
	mgr.SetNowFunc(clock.Now)
	return mgr, db, clock
}

func rawAddr(b byte) [crypto.AddressLength]byte {
	var out [crypto.AddressLength]byte
	out[crypto.AddressLength-1] = b
	return out
}

func TestVaultKeyLayout(t *testing.T) {
	addr := rawAddr(0x01)
	key := VaultBalanceKey(addr)
	expected := append([]byte("vault/balance/"), addr[:]...)
	if string(key) != string(expected) {
		t.Fatalf("unexpected balance key: %x", key)
	}
	token := tokenBalanceKey(rawAddr(0x02), addr)
	if string(token[:len("token/balance/")]) != "token/balance/" {
		t.Fatalf("unexpected token key prefix: %q", token)
	}
	if len(token) != len("token/balance/")+2*crypto.AddressLength+1 {
		t.Fatalf("unexpected token key length %d", len(token))
	}
}

func TestManagerCommitFlushesAtomically(t *testing.T) {
	mgr, db, _ := newTestManager(t)
	if err := mgr.PutVaultTotalDeposits(big.NewInt(10)); err != nil {
		t.Fatalf("put deposits: %v", err)
	}
	if err := mgr.PutVaultBalance(rawAddr(1), big.NewInt(5)); err != nil {
		t.Fatalf("put balance: %v", err)
	}
	if ok, _ := db.Has(vaultTotalDepositsKey); ok {
		t.Fatalf("staged write reached the database before commit")
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if mgr.Pending() != 0 {
		t.Fatalf("expected no pending entries after commit")
	}

	reopened := NewManager(db)
	deposits, err := reopened.VaultTotalDeposits()
	if err != nil {
		t.Fatalf("read deposits: %v", err)
	}
	if deposits.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10 deposits, got %s", deposits)
	}
}

func TestManagerRevertToSnapshot(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	if err := mgr.PutVaultBalance(rawAddr(1), big.NewInt(1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	snap := mgr.Snapshot()
	if err := mgr.PutVaultBalance(rawAddr(1), big.NewInt(99)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.PutVaultNonce(rawAddr(2), 7); err != nil {
		t.Fatalf("put nonce: %v", err)
	}
	mgr.RevertToSnapshot(snap)

	balance, err := mgr.VaultBalance(rawAddr(1))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected reverted balance 1, got %s", balance)
	}
	nonce, err := mgr.VaultNonce(rawAddr(2))
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce != 0 {
		t.Fatalf("expected nonce reverted to 0, got %d", nonce)
	}
	mgr.RevertToSnapshot(0)
	if mgr.Pending() != 0 {
		t.Fatalf("expected empty journal after full revert, got %d", mgr.Pending())
	}
}

func TestManagerDeleteAndKeys(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	for i := byte(3); i > 0; i-- {
		if err := mgr.PutVaultBalance(rawAddr(i), big.NewInt(int64(i))); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mgr.Delete(VaultBalanceKey(rawAddr(2))); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mgr.PutVaultNonce(rawAddr(9), 1); err != nil {
		t.Fatalf("put nonce: %v", err)
	}
	keys, err := mgr.Keys(vaultBalancePrefix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 balance keys, got %d", len(keys))
	}
	if string(keys[0]) != string(VaultBalanceKey(rawAddr(1))) || string(keys[1]) != string(VaultBalanceKey(rawAddr(3))) {
		t.Fatalf("unexpected key order")
	}
	all, err := mgr.VaultPrincipalKeys()
	if err != nil {
		t.Fatalf("principal keys: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 principal keys, got %d", len(all))
	}
}

func TestPersistentEntriesArchiveAndRestore(t *testing.T) {
	mgr, _, clock := newTestManager(t)
	addr := rawAddr(4)
	if err := mgr.PutVaultBalance(addr, big.NewInt(42)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.PutTokenSupply(rawAddr(5), big.NewInt(42)); err != nil {
		t.Fatalf("put supply: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	liveUntil, ok, err := mgr.LiveUntil(VaultBalanceKey(addr))
	if err != nil || !ok {
		t.Fatalf("live until: %v %v", ok, err)
	}
	if liveUntil-clock.now < MinPersistentTTL {
		t.Fatalf("retention window %d below minimum", liveUntil-clock.now)
	}

	clock.now = liveUntil + 1
	if _, err := mgr.VaultBalance(addr); !errors.Is(err, ErrEntryArchived) {
		t.Fatalf("expected archived entry, got %v", err)
	}
	if supply, err := mgr.TokenSupply(rawAddr(5)); err != nil || supply.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("instance entry should never expire: %v %v", supply, err)
	}

	extended, err := mgr.ExtendTTL(VaultBalanceKey(addr))
	if err != nil || !extended {
		t.Fatalf("extend: %v %v", extended, err)
	}
	balance, err := mgr.VaultBalance(addr)
	if err != nil {
		t.Fatalf("restored read: %v", err)
	}
	if balance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected restored balance 42, got %s", balance)
	}
	again, err := mgr.ExtendTTL(VaultBalanceKey(addr))
	if err != nil || again {
		t.Fatalf("second extension should be a no-op: %v %v", again, err)
	}
	if ok, err := mgr.ExtendTTL(tokenSupplyKey(rawAddr(5))); err != nil || ok {
		t.Fatalf("instance entries are never extended: %v %v", ok, err)
	}
}

func TestWriteKeepsLongerLifetime(t *testing.T) {
	mgr, _, clock := newTestManager(t)
	key := VaultNonceKey(rawAddr(6))
	if err := mgr.PutVaultNonce(rawAddr(6), 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	first, _, _ := mgr.LiveUntil(key)
	clock.now -= 1000
	if err := mgr.PutVaultNonce(rawAddr(6), 2); err != nil {
		t.Fatalf("put: %v", err)
	}
	second, _, _ := mgr.LiveUntil(key)
	if second != first {
		t.Fatalf("write shortened lifetime: %d -> %d", first, second)
	}
}

func TestTTLPolicyValidation(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	if err := mgr.SetTTLPolicy(TTLPolicy{Threshold: day, ExtendTo: day}); err == nil {
		t.Fatalf("expected extension below minimum to be rejected")
	}
	if err := mgr.SetTTLPolicy(TTLPolicy{Threshold: 0, ExtendTo: MinPersistentTTL}); err == nil {
		t.Fatalf("expected zero threshold to be rejected")
	}
	policy := TTLPolicy{Threshold: 10 * day, ExtendTo: 60 * day}
	if err := mgr.SetTTLPolicy(policy); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}
	if mgr.TTLPolicy() != policy {
		t.Fatalf("policy not applied")
	}
}

func TestVaultRecordsRoundTrip(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	admin := crypto.NewAddress(crypto.AccountPrefix, bytesOf(0x11))
	token := crypto.NewAddress(crypto.ContractPrefix, bytesOf(0x22))
	cfg := &vault.Config{
		Admin:           admin,
		ClaimToken:      token,
		StableAsset:     token,
		Oracle:          admin,
		AllocRwaBps:     6000,
		AllocOnchainBps: 4000,
		Maturity:        1_800_000_000,
		BuybackPrice:    big.NewInt(1000),
	}
	if err := mgr.PutVaultConfig(cfg); err != nil {
		t.Fatalf("put config: %v", err)
	}
	if err := mgr.PutVaultRwaValuation(&vault.RwaValuation{Value: big.NewInt(-250), UpdatedAt: 5}); err != nil {
		t.Fatalf("put valuation: %v", err)
	}
	if err := mgr.PutVaultBalance(rawAddr(1), big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative balance to be rejected")
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	loaded, ok, err := mgr.VaultConfig()
	if err != nil || !ok {
		t.Fatalf("load config: %v %v", ok, err)
	}
	if !loaded.Admin.Equal(admin) || loaded.ClaimToken.String() != token.String() {
		t.Fatalf("addresses not preserved: %+v", loaded)
	}
	if loaded.Maturity != cfg.Maturity || loaded.BuybackPrice.Cmp(cfg.BuybackPrice) != 0 {
		t.Fatalf("scalar fields not preserved: %+v", loaded)
	}
	valuation, err := mgr.VaultRwaValuation()
	if err != nil {
		t.Fatalf("load valuation: %v", err)
	}
	if valuation.Value.Cmp(big.NewInt(-250)) != 0 {
		t.Fatalf("expected negative valuation preserved, got %s", valuation.Value)
	}
}

func bytesOf(b byte) []byte {
	out := make([]byte, crypto.AddressLength)
	for i := range out {
		out[i] = b
	}
	return out
}
