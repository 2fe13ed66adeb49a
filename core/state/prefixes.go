package state

var (
	vaultConfigKey        = []byte("vault/config")
	vaultRwaValuationKey  = []byte("vault/rwa")
	vaultTotalDepositsKey = []byte("vault/total-deposits")
	vaultStrategiesKey    = []byte("vault/strategies")

	vaultBalancePrefix  = []byte("vault/balance/")
	vaultClaimPrefix    = []byte("vault/claim/")
	vaultDeployedPrefix = []byte("vault/deployed/")
	vaultNoncePrefix    = []byte("vault/nonce/")

	tokenBalancePrefix = []byte("token/balance/")
	tokenSupplyPrefix  = []byte("token/supply/")
)

// vaultPrincipalPrefixes enumerates the per-principal key spaces covered by the
// retention maintenance job.
var vaultPrincipalPrefixes = [][]byte{
	vaultBalancePrefix,
	vaultClaimPrefix,
	vaultDeployedPrefix,
	vaultNoncePrefix,
}

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, p...)
	}
	return buf
}

// VaultBalanceKey returns the storage key of a principal's vault balance.
func VaultBalanceKey(addr [20]byte) []byte { return prefixedKey(vaultBalancePrefix, addr[:]) }

// VaultClaimKey returns the storage key of a principal's claim record.
func VaultClaimKey(addr [20]byte) []byte { return prefixedKey(vaultClaimPrefix, addr[:]) }

// VaultDeployedKey returns the storage key of a strategy's deployed amount.
func VaultDeployedKey(addr [20]byte) []byte { return prefixedKey(vaultDeployedPrefix, addr[:]) }

// VaultNonceKey returns the storage key of a principal's authorization nonce.
func VaultNonceKey(addr [20]byte) []byte { return prefixedKey(vaultNoncePrefix, addr[:]) }

func tokenBalanceKey(token, holder [20]byte) []byte {
	return prefixedKey(tokenBalancePrefix, token[:], holder[:])
}

func tokenSupplyKey(token [20]byte) []byte { return prefixedKey(tokenSupplyPrefix, token[:]) }
