package token

import (
	"errors"
	"math/big"
	"testing"

	"rwavault/core/state"
	"rwavault/crypto"
	"rwavault/storage"
)

func addr(prefix crypto.AddressPrefix, b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(prefix, raw)
}

func newTestLedger(t *testing.T) (*Ledger, *state.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)
	return NewLedger(mgr, addr(crypto.ContractPrefix, 0xee), "USDX"), mgr
}

func TestMintTransferBurn(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := addr(crypto.AccountPrefix, 1)
	bob := addr(crypto.AccountPrefix, 2)

	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.Burn(bob, big.NewInt(15)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	aliceBal, _ := ledger.BalanceOf(alice)
	bobBal, _ := ledger.BalanceOf(bob)
	supply, _ := ledger.TotalSupply()
	if aliceBal.Int64() != 60 || bobBal.Int64() != 25 || supply.Int64() != 85 {
		t.Fatalf("unexpected balances alice=%s bob=%s supply=%s", aliceBal, bobBal, supply)
	}
}

func TestLedgerRejectsInvalidMovements(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := addr(crypto.AccountPrefix, 1)
	bob := addr(crypto.AccountPrefix, 2)
	if err := ledger.Mint(alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"burn above balance", func() error { return ledger.Burn(alice, big.NewInt(11)) }, ErrInsufficientBalance},
		{"transfer above balance", func() error { return ledger.Transfer(alice, bob, big.NewInt(11)) }, ErrInsufficientBalance},
		{"zero mint", func() error { return ledger.Mint(alice, big.NewInt(0)) }, ErrInvalidAmount},
		{"nil amount", func() error { return ledger.Burn(alice, nil) }, ErrInvalidAmount},
		{"zero recipient", func() error { return ledger.Transfer(alice, crypto.Address{}, big.NewInt(1)) }, ErrInvalidAccount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	balance, _ := ledger.BalanceOf(alice)
	if balance.Int64() != 10 {
		t.Fatalf("rejected movements changed balance to %s", balance)
	}
}

func TestLedgersAreIsolatedByAddress(t *testing.T) {
	ledger, mgr := newTestLedger(t)
	other := NewLedger(mgr, addr(crypto.ContractPrefix, 0xdd), "CLAIM")
	alice := addr(crypto.AccountPrefix, 1)
	if err := ledger.Mint(alice, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	balance, err := other.BalanceOf(alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected isolated ledgers, got %s", balance)
	}
}
