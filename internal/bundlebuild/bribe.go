package bundlebuild

import (
	"fmt"

	"github.com/holiman/uint256"
)

// DustOverpay is the small fixed constant spec.md §6 names ("bribe overpay
// = small fixed constant") added to the bribe the first time a sandwich
// contract holds no leftover dust of the intermediary token — it covers the
// one-time extra gas of a cold SSTORE that initializes the dust balance.
var DustOverpay = uint256.NewInt(27_000 * 1e9) // 27,000 gas at 1 gwei, in wei

// BribeResult is the fully resolved bribe/fee-cap computation of
// spec.md §4.7.
type BribeResult struct {
	Bribe  *uint256.Int
	MaxFee *uint256.Int
}

// ComputeBribe implements spec.md §4.7's bribe computation exactly,
// including the corrected effective-tip check: the source variant this was
// distilled from asserts `effective_miner_tip.is_none()`, which is an
// inverted check (see spec.md §9); this requires max_fee strictly greater
// than nextBaseFee instead.
func ComputeBribe(revenue *uint256.Int, frontrunGasUsed, backrunGasUsed uint64, nextBaseFee *uint256.Int, hasDust bool) (BribeResult, error) {
	frGasCost := new(uint256.Int).Mul(uint256.NewInt(frontrunGasUsed), nextBaseFee)
	if frGasCost.Cmp(revenue) > 0 {
		return BribeResult{}, fmt.Errorf("bundlebuild: revenue %s does not cover frontrun gas cost %s", revenue, frGasCost)
	}
	revenueNetFr := new(uint256.Int).Sub(revenue, frGasCost)

	var bribe *uint256.Int
	if !hasDust {
		bribe = new(uint256.Int).Add(revenueNetFr, DustOverpay)
	} else {
		num := new(uint256.Int).Mul(revenueNetFr, uint256.NewInt(999_999_999))
		bribe = num.Div(num, uint256.NewInt(1_000_000_000))
	}

	if backrunGasUsed == 0 {
		return BribeResult{}, fmt.Errorf("bundlebuild: backrun gas used is zero")
	}
	maxFee := new(uint256.Int).Div(bribe, uint256.NewInt(backrunGasUsed))

	if maxFee.Cmp(nextBaseFee) < 0 {
		return BribeResult{}, fmt.Errorf("bundlebuild: max fee %s < next base fee %s", maxFee, nextBaseFee)
	}
	if maxFee.Cmp(nextBaseFee) == 0 {
		return BribeResult{}, fmt.Errorf("bundlebuild: effective miner tip must be > 0, max fee equals next base fee %s", nextBaseFee)
	}

	return BribeResult{Bribe: bribe, MaxFee: maxFee}, nil
}
