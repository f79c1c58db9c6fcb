package bundlebuild

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// TestWethEncodeRoundTrip is testable property #7: encode(amount)*100000
// <= amount < (encode(amount)+1)*100000.
func TestWethEncodeRoundTrip(t *testing.T) {
	amounts := []uint64{0, 1, 99_999, 100_000, 100_001, 123_456_789}
	for _, a := range amounts {
		amount := uint256.NewInt(a)
		encoded := EncodeWethValue(amount)

		lower := DecodeWethValue(encoded)
		require.True(t, lower.Cmp(amount) <= 0, "encode(%d)*100000 = %s must be <= amount", a, lower)

		upperBound := DecodeWethValue(new(uint256.Int).AddUint64(encoded, 1))
		require.True(t, amount.Cmp(upperBound) < 0, "amount %d must be < (encode+1)*100000 = %s", a, upperBound)
	}
}
