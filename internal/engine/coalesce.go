package engine

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bellwether-labs/sando/internal/blockinfo"
	"github.com/bellwether-labs/sando/internal/bundlebuild"
	"github.com/bellwether-labs/sando/internal/evmsim"
	"github.com/bellwether-labs/sando/internal/forkcache"
	"github.com/bellwether-labs/sando/internal/optimizer"
)

// RunCoalescing implements spec.md §4.8's mega-sandwich coalescing: for
// every pool with >= 2 pending opportunities in the current block's
// window, rebuild one combined opportunity whose meats are the
// observation-order union of all victims, and submit it only if its
// revenue beats the best individual bundle.
func (s *Strategy) RunCoalescing(ctx context.Context) []Action {
	candidates := s.pending.snapshotAndClear()
	if len(candidates) == 0 {
		return nil
	}

	next, ok := s.blockMgr.Next()
	if !ok {
		return nil
	}
	latest := s.blockMgr.Latest()
	pinBlock := new(big.Int).SetUint64(latest.Number)

	var actions []Action
	for pool, opps := range candidates {
		action, err := s.buildCombined(ctx, pool, opps, pinBlock, next)
		if err != nil {
			s.log.Warn("mega-sandwich coalescing failed", "pool", pool, "err", err)
			continue
		}
		if action != nil {
			actions = append(actions, *action)
		}
	}
	return actions
}

func (s *Strategy) buildCombined(ctx context.Context, pool common.Address, opps []pendingOpportunity, pinBlock *big.Int, next blockinfo.Info) (*Action, error) {
	sort.SliceStable(opps, func(i, j int) bool { return opps[i].observedAt.Before(opps[j].observedAt) })

	maxIndividual := opps[0].bundle.Recipe.Revenue
	var meats []*types.Transaction
	poolRecord := opps[0].ingredients.Pool
	intermediary := opps[0].ingredients.IntermediaryToken
	for _, o := range opps {
		meats = append(meats, o.ingredients.Meats...)
		if o.bundle.Recipe.Revenue.Cmp(maxIndividual) > 0 {
			maxIndividual = o.bundle.Recipe.Revenue
		}
	}

	backend, err := forkcache.NewBackend(s.driver, pinBlock, s.m)
	if err != nil {
		return nil, fmt.Errorf("fork-cache backend: %w", err)
	}
	overlay := forkcache.NewOverlay(backend)
	sim := evmsim.New(ctx, overlay, next.Number, next.Timestamp, next.BaseFeePerGas)

	inventory, err := s.readInventory(ctx, pinBlock)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	combinedIngredients := optimizer.RawIngredients{
		Meats:             meats,
		StartEndToken:     s.weth,
		IntermediaryToken: intermediary,
		Pool:              poolRecord,
	}
	recipe, err := optimizer.Run(ctx, sim, combinedIngredients, inventory, s.weth, next.Number, s.log)
	if err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	if recipe == nil {
		return nil, nil // combined opportunity no longer profitable; individual bundles stand
	}
	if recipe.Revenue.Cmp(maxIndividual) <= 0 {
		return nil, nil // per spec.md §4.8, individual bundles stand unless combined strictly exceeds the max
	}

	verdict, err := s.inspectSafety(sim, recipe)
	if err != nil {
		return nil, fmt.Errorf("safety re-simulation: %w", err)
	}
	if !verdict.Safu {
		s.m.SalmonellaHits.Inc()
		s.log.Poisoned("mega-sandwich", intermediary.Hex(), verdict.SuspiciousOpcodes)
		_ = s.alerter.Alert(ctx, "poison_token_detected", map[string]string{
			"tx_hash":      "mega-sandwich",
			"intermediary": intermediary.Hex(),
		})
		return nil, nil
	}

	frontrunNonce, _ := s.nonces.Reserve()
	bundle, err := bundlebuild.Build(recipe, bundlebuild.Params{
		ChainID:       s.chainID,
		SearcherKey:   s.searcherKey,
		SearcherNonce: frontrunNonce,
		WETH:          s.weth,
		Sandwich:      s.sandwich,
		NextBaseFee:   next.BaseFeePerGas,
		NextBlockNum:  next.Number,
		NextBlockTime: next.Timestamp,
		HasDust:       s.dust.has(intermediary),
	})
	if err != nil {
		return nil, fmt.Errorf("bundle build: %w", err)
	}
	s.dust.mark(intermediary)
	s.m.BundlesSubmitted.Inc()

	action := Action(SubmitToFlashbotsAction{Bundle: &BuiltBundle{Bundle: bundle, Recipe: recipe, Pool: pool}})
	return &action, nil
}
