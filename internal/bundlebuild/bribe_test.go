package bundlebuild

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestComputeBribe_AddsDustOverpayWhenNoDust(t *testing.T) {
	revenue := uint256.NewInt(1_000_000_000_000_000_000)
	nextBaseFee := uint256.NewInt(50_000_000_000)

	result, err := ComputeBribe(revenue, 100_000, 100_000, nextBaseFee, false)
	require.NoError(t, err)

	expectedBribe := new(uint256.Int).Sub(revenue, new(uint256.Int).Mul(uint256.NewInt(100_000), nextBaseFee))
	expectedBribe.Add(expectedBribe, DustOverpay)
	require.Equal(t, expectedBribe, result.Bribe)
	require.True(t, result.MaxFee.Cmp(nextBaseFee) > 0)
}

func TestComputeBribe_AppliesShrinkFactorWhenDustPresent(t *testing.T) {
	revenue := uint256.NewInt(1_000_000_000_000_000_000)
	nextBaseFee := uint256.NewInt(50_000_000_000)

	result, err := ComputeBribe(revenue, 100_000, 100_000, nextBaseFee, true)
	require.NoError(t, err)
	require.True(t, result.MaxFee.Cmp(nextBaseFee) > 0)
}

// TestComputeBribe_RejectsMaxFeeEqualToBaseFee implements the corrected
// effective-tip check of spec.md §4.7: max_fee must be strictly greater
// than next_base_fee, not merely non-less.
func TestComputeBribe_RejectsMaxFeeEqualToBaseFee(t *testing.T) {
	// Engineer revenue so bribe/backrunGasUsed lands exactly on nextBaseFee.
	// With hasDust=false, frontrunGasUsed=0, and backrunGasUsed=1,
	// bribe = revenue + DustOverpay and max_fee = bribe. Pick nextBaseFee
	// and revenue so max_fee lands exactly on nextBaseFee.
	revenue := uint256.NewInt(500)
	nextBaseFee := new(uint256.Int).AddUint64(DustOverpay, 500)

	_, err := ComputeBribe(revenue, 0, 1, nextBaseFee, false)
	require.Error(t, err)
}

func TestComputeBribe_RejectsInsufficientRevenue(t *testing.T) {
	nextBaseFee := uint256.NewInt(50_000_000_000)
	revenue := uint256.NewInt(1)
	_, err := ComputeBribe(revenue, 100_000, 100_000, nextBaseFee, false)
	require.Error(t, err)
}
