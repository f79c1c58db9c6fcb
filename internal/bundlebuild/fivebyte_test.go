package bundlebuild

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// TestFiveByteRoundTrip_NeverExceedsInput is testable property #6: decoding
// an encoded amount must never exceed the original amount, and the loss
// must be bounded by the byte shift found.
func TestFiveByteRoundTrip_NeverExceedsInput(t *testing.T) {
	amounts := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(4_294_967_295), // exactly 4 bytes
		uint256.NewInt(4_294_967_296), // one bit over 4 bytes
		new(uint256.Int).Mul(uint256.NewInt(1_000_000), uint256.NewInt(1_000_000_000_000)),
	}
	for _, amount := range amounts {
		fb, err := EncodeFiveByte(amount, 0)
		require.NoError(t, err)
		decoded := fb.Decode()
		require.True(t, decoded.Cmp(amount) <= 0, "decoded %s must not exceed amount %s", decoded, amount)

		if !amount.IsZero() {
			loss := new(uint256.Int).Sub(amount, decoded)
			bound := new(uint256.Int).Div(amount, uint256.NewInt(1<<28))
			require.True(t, loss.Cmp(bound) <= 0 || fb.ByteShift == 0, "loss %s exceeds bound %s for shift %d", loss, bound, fb.ByteShift)
		}
	}
}

func TestFiveByte_FinalizeBytesLayout(t *testing.T) {
	fb, err := EncodeFiveByte(uint256.NewInt(12345), 0)
	require.NoError(t, err)
	require.Equal(t, uint8(0), fb.ByteShift)
	out := fb.FinalizeBytes()
	require.Len(t, out, 5)
	require.Equal(t, uint8(32), out[0])
	require.Equal(t, uint32(12345), fb.FourBytes)
}

// TestEncodeFiveByte_MaxUint256Shifts documents that even the maximum
// uint256 value finds a representable shift within [0,32): its 256 bits
// shifted right by 31*8=248 still leave 8 bits, comfortably under 32.
func TestEncodeFiveByte_MaxUint256Shifts(t *testing.T) {
	maxVal := new(uint256.Int).Not(uint256.NewInt(0))
	fb, err := EncodeFiveByte(maxVal, 0)
	require.NoError(t, err)
	require.LessOrEqual(t, fb.ByteShift, uint8(31))
}
