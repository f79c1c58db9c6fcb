// Package optimizer implements the bounded concurrent grid search of
// spec.md §4.5: given a candidate opportunity and a WETH inventory bound,
// find the frontrun input size that maximizes sandwich revenue, then
// assemble the winning SandoRecipe.
package optimizer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/bellwether-labs/sando/internal/evmsim"
	"github.com/bellwether-labs/sando/internal/obs"
)

const (
	gridIntervals  = 15 // 15 intervals -> 16 candidate inputs, per spec.md §4.5 step 2
	toleranceBase  = 1_000_000
	deadZeroRounds = 10
)

// Run executes the full optimizer: grid search for the best frontrun input,
// then one final simulation at that input to assemble the SandoRecipe. A
// nil recipe with a nil error means "no opportunity" (spec.md §7) — the
// caller drops the victim silently.
func Run(ctx context.Context, sim *evmsim.Simulator, ingredients RawIngredients, inventory *uint256.Int, weth common.Address, nextBlock uint64, log *obs.Logger) (*SandoRecipe, error) {
	if inventory == nil || inventory.IsZero() {
		// Testable property #3: inventory=0 returns 0 and spawns no
		// simulation tasks at all.
		return nil, nil
	}

	best, err := gridSearch(ctx, sim, ingredients, inventory, weth, log)
	if err != nil {
		return nil, err
	}
	if best.IsZero() {
		return nil, nil
	}

	revenue, detail, err := simulateRound(sim, ingredients, best, weth)
	if err != nil {
		return nil, fmt.Errorf("optimizer: final simulation at winning input: %w", err)
	}
	if revenue.IsZero() {
		// The winning grid candidate stopped being profitable on replay
		// (state moved under us between rounds) — no opportunity.
		return nil, nil
	}

	return &SandoRecipe{
		Pool:              ingredients.Pool,
		IntermediaryToken: ingredients.IntermediaryToken,
		FrontrunInput:     best,
		FrontrunData:      detail.frontrunData,
		FrontrunValue:     best,
		FrontrunGasUsed:   detail.frontrunGasUsed,
		BackrunInput:      detail.backrunInput,
		BackrunData:       detail.backrunData,
		BackrunValue:      detail.backrunOutput,
		BackrunGasUsed:    detail.backrunGasUsed,
		Meats:             detail.survivedMeats,
		Revenue:           revenue,
		TargetBlock:       nextBlock,
	}, nil
}

// gridSearch implements spec.md §4.5 steps 1-10, mirroring
// original_source's minimal_router/braindance.rs::find_optimal_input bound
// arithmetic exactly (checked big.Int subtraction in place of U256's
// checked_sub, an explicit consecutive-zero-round counter matching the
// spec's literal wording rather than the source's looser per-round count).
func gridSearch(ctx context.Context, sim *evmsim.Simulator, ingredients RawIngredients, inventory *uint256.Int, weth common.Address, log *obs.Logger) (*uint256.Int, error) {
	lower := big.NewInt(0)
	upper := inventory.ToBig()

	mid := new(big.Int).Add(lower, upper)
	mid.Div(mid, big.NewInt(2))
	tolerance := new(big.Int).Div(mid, big.NewInt(toleranceBase))

	best := big.NewInt(0)
	consecutiveZero := 0

	for {
		if terminate(lower, upper, tolerance) {
			break
		}

		intervals := partition(lower, upper)
		revenues := make([]*uint256.Int, len(intervals))

		g, gctx := errgroup.WithContext(ctx)
		for i, candidate := range intervals {
			i, candidate := i, candidate
			amount, overflow := uint256.FromBig(candidate)
			if overflow {
				return nil, fmt.Errorf("optimizer: candidate %s overflows uint256", candidate)
			}
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				revenue, _, err := simulateRound(sim.Fork(), ingredients, amount, weth)
				if err != nil {
					return err
				}
				revenues[i] = revenue
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		maxIdx, anyNonZero := 0, false
		for i, r := range revenues {
			if r.Sign() > 0 && (!anyNonZero || r.Cmp(revenues[maxIdx]) > 0) {
				maxIdx, anyNonZero = i, true
			}
		}
		best = new(big.Int).Set(intervals[maxIdx])

		if !anyNonZero {
			consecutiveZero++
			if consecutiveZero >= deadZeroRounds {
				log.Dropped("", "optimizer exhausted search rounds with zero revenue")
				return uint256.NewInt(0), nil
			}
			upper = new(big.Int).Sub(intervals[len(intervals)/3], big.NewInt(1))
			continue
		}
		consecutiveZero = 0

		switch {
		case maxIdx == len(intervals)-1:
			lower = new(big.Int).Add(intervals[maxIdx-1], big.NewInt(1))
		case maxIdx == 0:
			upper = new(big.Int).Sub(intervals[maxIdx+1], big.NewInt(1))
		default:
			lower = new(big.Int).Add(intervals[maxIdx-1], big.NewInt(1))
			upper = new(big.Int).Sub(intervals[maxIdx+1], big.NewInt(1))
		}
	}

	out, overflow := uint256.FromBig(best)
	if overflow {
		return nil, fmt.Errorf("optimizer: best input %s overflows uint256", best)
	}
	return out, nil
}

// terminate is spec.md §4.5 step 10.
func terminate(lower, upper, tolerance *big.Int) bool {
	if lower.Cmp(upper) > 0 {
		return true
	}
	span := new(big.Int).Sub(upper, lower)
	return span.Cmp(tolerance) < 0
}

// partition splits [lower, upper] into gridIntervals equal slices,
// producing gridIntervals+1 boundary points (spec.md §4.5 step 2).
func partition(lower, upper *big.Int) []*big.Int {
	diff := new(big.Int).Sub(upper, lower)
	out := make([]*big.Int, gridIntervals+1)
	for i := 0; i <= gridIntervals; i++ {
		fraction := new(big.Int).Mul(diff, big.NewInt(int64(i)))
		fraction.Div(fraction, big.NewInt(gridIntervals))
		out[i] = new(big.Int).Add(lower, fraction)
	}
	return out
}

// roundDetail carries the by-products of one simulation round that the
// grid search itself discards but the final winning-input run needs to
// assemble a SandoRecipe.
type roundDetail struct {
	frontrunData    []byte
	backrunData     []byte
	backrunInput    *uint256.Int
	backrunOutput   *uint256.Int
	frontrunGasUsed uint64
	backrunGasUsed  uint64
	survivedMeats   []*types.Transaction
}

// simulateRound runs the three-phase simulation body of spec.md §4.5 on the
// simulator it is given and commits into it (the grid search passes a
// sim.Fork(); Run's final pass passes sim itself). Any EVM-level failure (revert, halt,
// database error) on the frontrun or backrun leg yields revenue zero with
// a nil error — per spec.md §7, simulation failures are not optimizer
// errors. A failing meat is dropped from the bundle and replay continues;
// a genuine database error mid-meat aborts the round with zero revenue.
func simulateRound(sim *evmsim.Simulator, ingredients RawIngredients, amountIn *uint256.Int, weth common.Address) (*uint256.Int, roundDetail, error) {
	seedRouter(sim, weth)
	family := routerFamily(ingredients.Pool.Family)

	frontrunData, err := evmsim.EncodeRouterSwap(family, amountIn.ToBig(), ingredients.Pool.Address, weth, ingredients.IntermediaryToken)
	if err != nil {
		return nil, roundDetail{}, fmt.Errorf("optimizer: encode frontrun: %w", err)
	}

	frontrunResult, err := sim.CallCommit(evmsim.Call{
		From:     ControllerAddress,
		To:       RouterAddress,
		Value:    uint256.NewInt(0),
		Data:     frontrunData,
		GasLimit: routerGasLimit,
	})
	if err != nil || !frontrunResult.IsSuccess() {
		return uint256.NewInt(0), roundDetail{}, nil
	}
	_, backrunIn, err := evmsim.DecodeRouterSwap(family, frontrunResult.Success.Output)
	if err != nil {
		return uint256.NewInt(0), roundDetail{}, nil
	}
	frontrunGasUsed := frontrunResult.Success.GasUsed

	survived := make([]*types.Transaction, 0, len(ingredients.Meats))
	for _, meat := range ingredients.Meats {
		call, ok := callFromTx(meat)
		if !ok {
			continue
		}
		res, err := sim.CallCommit(call)
		if err != nil {
			// Database error replaying a meat: treat the whole round as a
			// simulation failure (spec.md §7), not a hard optimizer error.
			return uint256.NewInt(0), roundDetail{}, nil
		}
		if res.Revert != nil || res.Halt != nil {
			continue // meats may revert; ignored, not fatal (spec.md §4.5)
		}
		survived = append(survived, meat)
	}

	backrunInU256, overflow := uint256.FromBig(backrunIn)
	if overflow {
		return uint256.NewInt(0), roundDetail{}, nil
	}
	backrunData, err := evmsim.EncodeRouterSwap(family, backrunIn, ingredients.Pool.Address, ingredients.IntermediaryToken, weth)
	if err != nil {
		return nil, roundDetail{}, fmt.Errorf("optimizer: encode backrun: %w", err)
	}
	backrunResult, err := sim.CallCommit(evmsim.Call{
		From:     ControllerAddress,
		To:       RouterAddress,
		Value:    uint256.NewInt(0),
		Data:     backrunData,
		GasLimit: routerGasLimit,
	})
	if err != nil || !backrunResult.IsSuccess() {
		return uint256.NewInt(0), roundDetail{}, nil
	}
	backrunAmountOut, realAfterBalance, err := evmsim.DecodeRouterSwap(family, backrunResult.Success.Output)
	if err != nil {
		return uint256.NewInt(0), roundDetail{}, nil
	}
	backrunOutputU256, overflow := uint256.FromBig(backrunAmountOut)
	if overflow {
		return uint256.NewInt(0), roundDetail{}, nil
	}

	revenue := new(big.Int).Sub(realAfterBalance, referenceWethFund.ToBig())
	if revenue.Sign() < 0 {
		revenue = big.NewInt(0)
	}
	revenueU256, overflow := uint256.FromBig(revenue)
	if overflow {
		revenueU256 = uint256.NewInt(0)
	}

	return revenueU256, roundDetail{
		frontrunData:    frontrunData,
		backrunData:     backrunData,
		backrunInput:    backrunInU256,
		backrunOutput:   backrunOutputU256,
		frontrunGasUsed: frontrunGasUsed,
		backrunGasUsed:  backrunResult.Success.GasUsed,
		survivedMeats:   survived,
	}, nil
}

// callFromTx converts a pending victim transaction into the simulator's
// minimal Call shape, recovering its sender with the chain's latest
// signer (spec.md §4.5 "replay the victim with its actual from, to,
// value, data, ... fields").
func callFromTx(tx *types.Transaction) (evmsim.Call, bool) {
	to := tx.To()
	if to == nil {
		return evmsim.Call{}, false
	}
	signer := types.LatestSignerForChainID(tx.ChainId())
	from, err := types.Sender(signer, tx)
	if err != nil {
		return evmsim.Call{}, false
	}
	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return evmsim.Call{}, false
	}
	return evmsim.Call{
		From:     from,
		To:       *to,
		Value:    value,
		Data:     tx.Data(),
		GasLimit: tx.Gas(),
	}, true
}
