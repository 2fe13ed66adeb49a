// Package strategy provides reference yield strategies for the vault.
package strategy

import (
	"errors"
	"math/big"

	"rwavault/crypto"
)

var (
	errInvalidAmount = errors.New("reserve strategy: amount must be positive")
	errShortfall     = errors.New("reserve strategy: funds not received")
)

// Asset is the stable-asset ledger the reserve holds its funds on.
type Asset interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Mint(to crypto.Address, amount *big.Int) error
}

// Reserve is a strategy whose deployed value is simply its stable-asset
// balance. The vault transfers funds before calling Deploy and pulls them
// back after Withdraw, so Reserve only accounts and never moves tokens.
type Reserve struct {
	address crypto.Address
	asset   Asset
}

// NewReserve creates a reserve strategy at address holding asset.
func NewReserve(address crypto.Address, asset Asset) *Reserve {
	return &Reserve{address: address, asset: asset}
}

// Address returns the strategy address.
func (r *Reserve) Address() crypto.Address { return r.address }

// Deploy acknowledges funds already transferred to the reserve.
func (r *Reserve) Deploy(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	balance, err := r.asset.BalanceOf(r.address)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, errShortfall
	}
	return new(big.Int).Set(amount), nil
}

// Withdraw releases up to amount, bounded by the reserve balance.
func (r *Reserve) Withdraw(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	balance, err := r.asset.BalanceOf(r.address)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int).Set(amount), nil
}

// DeployedValue reports the reserve balance.
func (r *Reserve) DeployedValue() (*big.Int, error) {
	return r.asset.BalanceOf(r.address)
}

// Accrue credits yield to the reserve by minting on the asset ledger.
func (r *Reserve) Accrue(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	return r.asset.Mint(r.address, amount)
}
