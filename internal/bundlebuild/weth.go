package bundlebuild

import "github.com/holiman/uint256"

// wethEncodeDivisor is the fixed constant spec.md §4.7 step 3 and §6 name
// for converting a WETH amount into tx.value.
var wethEncodeDivisor = uint256.NewInt(100_000)

// EncodeWethValue divides amount by the fixed divisor, the lossy
// tx.value convention the sandwich contract expects (spec.md §8 testable
// property #7).
func EncodeWethValue(amount *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(amount, wethEncodeDivisor)
}

// DecodeWethValue reverses EncodeWethValue by multiplying back up; like
// the five-byte scheme this loses the remainder.
func DecodeWethValue(value *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(value, wethEncodeDivisor)
}
