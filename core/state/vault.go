package state

import (
	"fmt"
	"math/big"

	"rwavault/crypto"
	"rwavault/native/vault"
)

type storedAddress struct {
	Prefix string
	Raw    [crypto.AddressLength]byte
}

func newStoredAddress(addr crypto.Address) storedAddress {
	return storedAddress{Prefix: string(addr.Prefix()), Raw: addr.Raw()}
}

func (s storedAddress) address() crypto.Address {
	if s.Raw == ([crypto.AddressLength]byte{}) && s.Prefix == "" {
		return crypto.Address{}
	}
	return crypto.NewAddress(crypto.AddressPrefix(s.Prefix), s.Raw[:])
}

// storedSigned carries a signed integer, which RLP cannot encode directly.
type storedSigned struct {
	Negative  bool
	Magnitude *big.Int
}

func newStoredSigned(v *big.Int) storedSigned {
	if v == nil {
		return storedSigned{Magnitude: big.NewInt(0)}
	}
	return storedSigned{Negative: v.Sign() < 0, Magnitude: new(big.Int).Abs(v)}
}

func (s storedSigned) value() *big.Int {
	out := big.NewInt(0)
	if s.Magnitude != nil {
		out.Set(s.Magnitude)
	}
	if s.Negative {
		out.Neg(out)
	}
	return out
}

type storedVaultConfig struct {
	Admin           storedAddress
	ClaimToken      storedAddress
	StableAsset     storedAddress
	Oracle          storedAddress
	AllocRwaBps     uint32
	AllocOnchainBps uint32
	Maturity        uint64
	BuybackPrice    *big.Int
}

type storedRwaValuation struct {
	Value     storedSigned
	UpdatedAt uint64
}

type storedClaimRecord struct {
	Owner        storedAddress
	Amount       *big.Int
	DeliveryHash [32]byte
	CreatedAt    uint64
	Fulfilled    bool
}

func nonNegative(v *big.Int, what string) (*big.Int, error) {
	if v == nil {
		return big.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("state: %s must not be negative", what)
	}
	return new(big.Int).Set(v), nil
}

func unixSeconds(v int64, what string) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("state: %s must not be negative", what)
	}
	return uint64(v), nil
}

// VaultConfig loads the vault configuration.
func (m *Manager) VaultConfig() (*vault.Config, bool, error) {
	var stored storedVaultConfig
	ok, err := m.Get(vaultConfigKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &vault.Config{
		Admin:           stored.Admin.address(),
		ClaimToken:      stored.ClaimToken.address(),
		StableAsset:     stored.StableAsset.address(),
		Oracle:          stored.Oracle.address(),
		AllocRwaBps:     stored.AllocRwaBps,
		AllocOnchainBps: stored.AllocOnchainBps,
		Maturity:        int64(stored.Maturity),
		BuybackPrice:    newBig(stored.BuybackPrice),
	}, true, nil
}

// PutVaultConfig stores the vault configuration.
func (m *Manager) PutVaultConfig(cfg *vault.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: vault config must not be nil")
	}
	maturity, err := unixSeconds(cfg.Maturity, "maturity")
	if err != nil {
		return err
	}
	price, err := nonNegative(cfg.BuybackPrice, "buyback price")
	if err != nil {
		return err
	}
	return m.Put(vaultConfigKey, RetentionInstance, &storedVaultConfig{
		Admin:           newStoredAddress(cfg.Admin),
		ClaimToken:      newStoredAddress(cfg.ClaimToken),
		StableAsset:     newStoredAddress(cfg.StableAsset),
		Oracle:          newStoredAddress(cfg.Oracle),
		AllocRwaBps:     cfg.AllocRwaBps,
		AllocOnchainBps: cfg.AllocOnchainBps,
		Maturity:        maturity,
		BuybackPrice:    price,
	})
}

// VaultRwaValuation returns the last reported valuation, zero when unset.
func (m *Manager) VaultRwaValuation() (*vault.RwaValuation, error) {
	var stored storedRwaValuation
	ok, err := m.Get(vaultRwaValuationKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &vault.RwaValuation{Value: big.NewInt(0)}, nil
	}
	return &vault.RwaValuation{Value: stored.Value.value(), UpdatedAt: int64(stored.UpdatedAt)}, nil
}

// PutVaultRwaValuation stores the reported valuation.
func (m *Manager) PutVaultRwaValuation(valuation *vault.RwaValuation) error {
	if valuation == nil {
		return fmt.Errorf("state: rwa valuation must not be nil")
	}
	updated, err := unixSeconds(valuation.UpdatedAt, "valuation timestamp")
	if err != nil {
		return err
	}
	return m.Put(vaultRwaValuationKey, RetentionInstance, &storedRwaValuation{
		Value:     newStoredSigned(valuation.Value),
		UpdatedAt: updated,
	})
}

// VaultTotalDeposits returns the cumulative deposits.
func (m *Manager) VaultTotalDeposits() (*big.Int, error) {
	return m.getBig(vaultTotalDepositsKey)
}

// PutVaultTotalDeposits stores the cumulative deposits.
func (m *Manager) PutVaultTotalDeposits(amount *big.Int) error {
	return m.putBig(vaultTotalDepositsKey, RetentionInstance, amount, "total deposits")
}

// VaultBalance returns the vault-tracked claim balance of addr.
func (m *Manager) VaultBalance(addr [crypto.AddressLength]byte) (*big.Int, error) {
	return m.getBig(VaultBalanceKey(addr))
}

// PutVaultBalance stores the claim balance of addr.
func (m *Manager) PutVaultBalance(addr [crypto.AddressLength]byte, amount *big.Int) error {
	return m.putBig(VaultBalanceKey(addr), RetentionPersistent, amount, "vault balance")
}

// VaultClaim loads the delivery record of addr.
func (m *Manager) VaultClaim(addr [crypto.AddressLength]byte) (*vault.ClaimRecord, bool, error) {
	var stored storedClaimRecord
	ok, err := m.Get(VaultClaimKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &vault.ClaimRecord{
		Owner:        stored.Owner.address(),
		Amount:       newBig(stored.Amount),
		DeliveryHash: stored.DeliveryHash,
		CreatedAt:    int64(stored.CreatedAt),
		Fulfilled:    stored.Fulfilled,
	}, true, nil
}

// PutVaultClaim stores a delivery record keyed by its owner.
func (m *Manager) PutVaultClaim(record *vault.ClaimRecord) error {
	if record == nil {
		return fmt.Errorf("state: claim record must not be nil")
	}
	amount, err := nonNegative(record.Amount, "claim amount")
	if err != nil {
		return err
	}
	created, err := unixSeconds(record.CreatedAt, "claim timestamp")
	if err != nil {
		return err
	}
	return m.Put(VaultClaimKey(record.Owner.Raw()), RetentionPersistent, &storedClaimRecord{
		Owner:        newStoredAddress(record.Owner),
		Amount:       amount,
		DeliveryHash: record.DeliveryHash,
		CreatedAt:    created,
		Fulfilled:    record.Fulfilled,
	})
}

// VaultStrategies returns the whitelisted strategy addresses.
func (m *Manager) VaultStrategies() ([][crypto.AddressLength]byte, error) {
	var list [][crypto.AddressLength]byte
	if _, err := m.Get(vaultStrategiesKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PutVaultStrategies stores the strategy whitelist.
func (m *Manager) PutVaultStrategies(list [][crypto.AddressLength]byte) error {
	if list == nil {
		list = [][crypto.AddressLength]byte{}
	}
	return m.Put(vaultStrategiesKey, RetentionInstance, list)
}

// VaultDeployed returns the cached deployed amount of a strategy.
func (m *Manager) VaultDeployed(addr [crypto.AddressLength]byte) (*big.Int, error) {
	return m.getBig(VaultDeployedKey(addr))
}

// PutVaultDeployed stores the deployed amount of a strategy.
func (m *Manager) PutVaultDeployed(addr [crypto.AddressLength]byte, amount *big.Int) error {
	return m.putBig(VaultDeployedKey(addr), RetentionPersistent, amount, "deployed amount")
}

// VaultNonce returns the next expected authorization nonce of addr.
func (m *Manager) VaultNonce(addr [crypto.AddressLength]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.Get(VaultNonceKey(addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// PutVaultNonce stores the next expected authorization nonce of addr.
func (m *Manager) PutVaultNonce(addr [crypto.AddressLength]byte, nonce uint64) error {
	return m.Put(VaultNonceKey(addr), RetentionPersistent, nonce)
}

// VaultPrincipalKeys lists every persistent vault key.
func (m *Manager) VaultPrincipalKeys() ([][]byte, error) {
	var out [][]byte
	for _, prefix := range vaultPrincipalPrefixes {
		keys, err := m.Keys(prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
	}
	return out, nil
}

func newBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (m *Manager) getBig(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.Get(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (m *Manager) putBig(key []byte, class Retention, amount *big.Int, what string) error {
	value, err := nonNegative(amount, what)
	if err != nil {
		return err
	}
	return m.Put(key, class, value)
}
