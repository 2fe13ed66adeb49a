// Package token implements a minimal fungible ledger kept in vault state. It
// backs both the claim token and the stable asset when no external ledger is
// wired.
package token

import (
	"errors"
	"fmt"
	"math/big"

	"rwavault/crypto"
)

var (
	ErrInsufficientBalance = errors.New("token ledger: insufficient balance")
	ErrInvalidAmount       = errors.New("token ledger: amount must be positive")
	ErrInvalidAccount      = errors.New("token ledger: account must be set")
	errNilState            = errors.New("token ledger: state not configured")
)

type ledgerState interface {
	TokenBalance(token, holder [crypto.AddressLength]byte) (*big.Int, error)
	PutTokenBalance(token, holder [crypto.AddressLength]byte, amount *big.Int) error
	TokenSupply(token [crypto.AddressLength]byte) (*big.Int, error)
	PutTokenSupply(token [crypto.AddressLength]byte, amount *big.Int) error
}

// Ledger is a fungible token identified by its contract address.
type Ledger struct {
	state   ledgerState
	address crypto.Address
	symbol  string
}

// NewLedger binds a ledger for the token at address to state.
func NewLedger(state ledgerState, address crypto.Address, symbol string) *Ledger {
	return &Ledger{state: state, address: address, symbol: symbol}
}

// Address returns the token contract address.
func (l *Ledger) Address() crypto.Address { return l.address }

// Symbol returns the display symbol.
func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) ready() error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return nil
}

func validate(addr crypto.Address, amount *big.Int) error {
	if addr.IsZero() {
		return ErrInvalidAccount
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.state.TokenBalance(l.address.Raw(), addr.Raw())
}

// TotalSupply returns the outstanding supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.state.TokenSupply(l.address.Raw())
}

// Mint credits amount to addr and grows the supply.
func (l *Ledger) Mint(to crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validate(to, amount); err != nil {
		return err
	}
	balance, err := l.state.TokenBalance(l.address.Raw(), to.Raw())
	if err != nil {
		return err
	}
	supply, err := l.state.TokenSupply(l.address.Raw())
	if err != nil {
		return err
	}
	if err := l.state.PutTokenBalance(l.address.Raw(), to.Raw(), new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return l.state.PutTokenSupply(l.address.Raw(), new(big.Int).Add(supply, amount))
}

// Burn debits amount from addr and shrinks the supply.
func (l *Ledger) Burn(from crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validate(from, amount); err != nil {
		return err
	}
	balance, err := l.state.TokenBalance(l.address.Raw(), from.Raw())
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s", ErrInsufficientBalance, from, balance, l.symbol)
	}
	supply, err := l.state.TokenSupply(l.address.Raw())
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return fmt.Errorf("token ledger: supply %s below burn %s", supply, amount)
	}
	if err := l.state.PutTokenBalance(l.address.Raw(), from.Raw(), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return l.state.PutTokenSupply(l.address.Raw(), new(big.Int).Sub(supply, amount))
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validate(from, amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrInvalidAccount
	}
	if from.Equal(to) {
		return nil
	}
	fromBalance, err := l.state.TokenBalance(l.address.Raw(), from.Raw())
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s", ErrInsufficientBalance, from, fromBalance, l.symbol)
	}
	toBalance, err := l.state.TokenBalance(l.address.Raw(), to.Raw())
	if err != nil {
		return err
	}
	if err := l.state.PutTokenBalance(l.address.Raw(), from.Raw(), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.state.PutTokenBalance(l.address.Raw(), to.Raw(), new(big.Int).Add(toBalance, amount))
}
