package pool

import "github.com/holiman/uint256"

// Token amounts arrive in each token's native decimal representation and
// the engine works in 18-decimal fixed point throughout. Downscaling
// rounds down, mirroring the engine's fill arithmetic.

func pow10(n uint8) *uint256.Int {
	z := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		z.Mul(z, ten)
	}
	return z
}

// upscale converts a native-decimals amount to 18-decimal fixed point.
func upscale(amount *uint256.Int, decimals uint8) *uint256.Int {
	if decimals == 18 {
		return new(uint256.Int).Set(amount)
	}
	if decimals < 18 {
		return new(uint256.Int).Mul(amount, pow10(18-decimals))
	}
	return new(uint256.Int).Div(amount, pow10(decimals-18))
}

// downscale converts an 18-decimal amount back to native decimals,
// rounding down.
func downscale(amount *uint256.Int, decimals uint8) *uint256.Int {
	if decimals == 18 {
		return new(uint256.Int).Set(amount)
	}
	if decimals < 18 {
		return new(uint256.Int).Div(amount, pow10(18-decimals))
	}
	return new(uint256.Int).Mul(amount, pow10(decimals-18))
}
