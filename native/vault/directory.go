package vault

import (
	"fmt"
	"math/big"
	"sync"

	"rwavault/crypto"
)

// ClaimToken is the ledger of participation claims minted by the vault.
type ClaimToken interface {
	Mint(to crypto.Address, amount *big.Int) error
	Burn(from crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) (*big.Int, error)
	TotalSupply() (*big.Int, error)
}

// StableAsset is the ledger of the deposited asset.
type StableAsset interface {
	Transfer(from, to crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) (*big.Int, error)
}

// Strategy is an on-chain yield venue. Deploy is invoked after the stable
// asset has been transferred to the strategy and reports the amount it
// accepted. Withdraw releases up to amount back to the vault and reports the
// amount actually returned.
type Strategy interface {
	Deploy(amount *big.Int) (*big.Int, error)
	Withdraw(amount *big.Int) (*big.Int, error)
	DeployedValue() (*big.Int, error)
}

// Directory resolves collaborator contracts by address.
type Directory struct {
	mu          sync.RWMutex
	claimTokens map[[crypto.AddressLength]byte]ClaimToken
	stables     map[[crypto.AddressLength]byte]StableAsset
	strategies  map[[crypto.AddressLength]byte]Strategy
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		claimTokens: make(map[[crypto.AddressLength]byte]ClaimToken),
		stables:     make(map[[crypto.AddressLength]byte]StableAsset),
		strategies:  make(map[[crypto.AddressLength]byte]Strategy),
	}
}

// RegisterClaimToken binds a claim-token ledger to addr.
func (d *Directory) RegisterClaimToken(addr crypto.Address, token ClaimToken) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimTokens[addr.Raw()] = token
}

// RegisterStableAsset binds a stable-asset ledger to addr.
func (d *Directory) RegisterStableAsset(addr crypto.Address, asset StableAsset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stables[addr.Raw()] = asset
}

// RegisterStrategy binds a strategy implementation to addr.
func (d *Directory) RegisterStrategy(addr crypto.Address, strategy Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strategies[addr.Raw()] = strategy
}

// ClaimToken resolves the claim-token ledger at addr.
func (d *Directory) ClaimToken(addr crypto.Address) (ClaimToken, error) {
	if d == nil {
		return nil, ErrUnknownContract
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	token, ok := d.claimTokens[addr.Raw()]
	if !ok {
		return nil, fmt.Errorf("%w: claim token %s", ErrUnknownContract, addr)
	}
	return token, nil
}

// StableAsset resolves the stable-asset ledger at addr.
func (d *Directory) StableAsset(addr crypto.Address) (StableAsset, error) {
	if d == nil {
		return nil, ErrUnknownContract
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	asset, ok := d.stables[addr.Raw()]
	if !ok {
		return nil, fmt.Errorf("%w: stable asset %s", ErrUnknownContract, addr)
	}
	return asset, nil
}

// Strategy resolves the strategy at addr.
func (d *Directory) Strategy(addr crypto.Address) (Strategy, error) {
	if d == nil {
		return nil, ErrStrategyUnknown
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	strategy, ok := d.strategies[addr.Raw()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyUnknown, addr)
	}
	return strategy, nil
}
