package state

import (
	"math/big"

	"rwavault/crypto"
)

// TokenBalance returns holder's balance on the token ledger.
func (m *Manager) TokenBalance(token, holder [crypto.AddressLength]byte) (*big.Int, error) {
	return m.getBig(tokenBalanceKey(token, holder))
}

// PutTokenBalance stores holder's balance on the token ledger.
func (m *Manager) PutTokenBalance(token, holder [crypto.AddressLength]byte, amount *big.Int) error {
	return m.putBig(tokenBalanceKey(token, holder), RetentionInstance, amount, "token balance")
}

// TokenSupply returns the outstanding supply of token.
func (m *Manager) TokenSupply(token [crypto.AddressLength]byte) (*big.Int, error) {
	return m.getBig(tokenSupplyKey(token))
}

// PutTokenSupply stores the outstanding supply of token.
func (m *Manager) PutTokenSupply(token [crypto.AddressLength]byte, amount *big.Int) error {
	return m.putBig(tokenSupplyKey(token), RetentionInstance, amount, "token supply")
}
