package vault_test

import (
	"errors"
	"math/big"
	"testing"

	"rwavault/core/state"
)

func TestExtendRetentionRestoresArchivedEntries(t *testing.T) {
	h := fundedHarness(t, 1_000)
	alice := addressOf(h.alice)

	extended, err := h.engine.ExtendRetention()
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if extended != 0 {
		t.Fatalf("fresh entries should not need extension, extended %d", extended)
	}

	liveUntil, ok, err := h.mgr.LiveUntil(state.VaultBalanceKey(alice.Raw()))
	if err != nil || !ok {
		t.Fatalf("live until: %v %v", ok, err)
	}
	h.clock.now = liveUntil + 1
	if _, err := h.engine.BalanceOf(alice); !errors.Is(err, state.ErrEntryArchived) {
		t.Fatalf("expected archived balance, got %v", err)
	}

	extended, err = h.engine.ExtendRetention()
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	// balance and nonce of the depositor, nonce of the admin
	if extended != 3 {
		t.Fatalf("expected 3 entries extended, got %d", extended)
	}
	balance, err := h.engine.BalanceOf(alice)
	if err != nil {
		t.Fatalf("balance after extension: %v", err)
	}
	if balance.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected balance 1000, got %s", balance)
	}
	again, err := h.engine.ExtendRetention()
	if err != nil || again != 0 {
		t.Fatalf("second pass should be a no-op: %d %v", again, err)
	}
}
