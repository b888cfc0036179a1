package engine

import "github.com/holiman/uint256"

// All engine prices and quantities are 18-decimal fixed point. A price is
// currency-per-security scaled by 1e18; multiply and divide round down so
// no fill ever manufactures value from rounding.

var wad = uint256.NewInt(1_000_000_000_000_000_000)

// mulDown computes a*b/1e18 rounding down.
func mulDown(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, wad)
	if overflow {
		return nil, arithmeticf("mul overflow: %s * %s", a, b)
	}
	return z, nil
}

// divDown computes a*1e18/b rounding down. b must be nonzero.
func divDown(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, arithmeticf("division by zero price")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, wad, b)
	if overflow {
		return nil, arithmeticf("div overflow: %s / %s", a, b)
	}
	return z, nil
}

func minU256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
