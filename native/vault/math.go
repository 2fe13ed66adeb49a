package vault

import "math/big"

const basisPointsTotal = 10_000

var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// fitsInt128 reports whether v is representable as a signed 128-bit integer.
func fitsInt128(v *big.Int) bool {
	if v == nil {
		return true
	}
	return v.Cmp(maxInt128) <= 0 && v.Cmp(minInt128) >= 0
}

func checkInt128(values ...*big.Int) error {
	for _, v := range values {
		if !fitsInt128(v) {
			return ErrArithmeticOverflow
		}
	}
	return nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(newBigInt(a), newBigInt(b))
	if !fitsInt128(sum) {
		return nil, ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedSub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(newBigInt(a), newBigInt(b))
	if !fitsInt128(diff) {
		return nil, ErrArithmeticOverflow
	}
	return diff, nil
}

// mulDivFloor computes floor(a*b/c) for positive c, rejecting products that
// leave the int128 range.
func mulDivFloor(a, b, c *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(a, b)
	if !fitsInt128(product) {
		return nil, ErrArithmeticOverflow
	}
	// Div is Euclidean, which equals floor division for a positive divisor.
	return product.Div(product, c), nil
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return checkInt128(amount)
}

// calculateMint returns the claim tokens minted for a deposit of amount given
// the outstanding supply and the current vault value.
func calculateMint(amount, supply, nav *big.Int) (*big.Int, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if supply == nil || supply.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	if nav == nil || nav.Sign() <= 0 {
		return nil, ErrVaultInsolvent
	}
	minted, err := mulDivFloor(amount, supply, nav)
	if err != nil {
		return nil, err
	}
	if minted.Sign() == 0 {
		return nil, ErrMintTooSmall
	}
	return minted, nil
}

// calculatePayout returns the stable-asset payout for burning tokens. The
// payout floors to zero for dust holdings or a zero vault value, which still
// lets holders exit.
func calculatePayout(tokens, supply, nav *big.Int) (*big.Int, error) {
	if err := validateAmount(tokens); err != nil {
		return nil, err
	}
	if supply == nil || supply.Sign() <= 0 || tokens.Cmp(supply) > 0 {
		return nil, ErrInsufficientBalance
	}
	if nav == nil || nav.Sign() < 0 {
		return nil, ErrVaultInsolvent
	}
	return mulDivFloor(tokens, nav, supply)
}

// splitAllocation divides total by the ratio. The on-chain leg is floored and
// the remainder is attributed to the RWA leg so the legs always sum to total.
func splitAllocation(total *big.Int, ratio AllocationRatio) (*AllocationTargets, error) {
	total = newBigInt(total)
	onchain, err := mulDivFloor(total, big.NewInt(int64(ratio.OnchainBps)), big.NewInt(basisPointsTotal))
	if err != nil {
		return nil, err
	}
	rwa := new(big.Int).Sub(total, onchain)
	return &AllocationTargets{Total: total, Rwa: rwa, Onchain: onchain}, nil
}
