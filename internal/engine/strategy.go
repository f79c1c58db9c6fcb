package engine

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/bellwether-labs/sando/internal/blockinfo"
	"github.com/bellwether-labs/sando/internal/bundlebuild"
	"github.com/bellwether-labs/sando/internal/chainapi"
	"github.com/bellwether-labs/sando/internal/evmsim"
	"github.com/bellwether-labs/sando/internal/filter"
	"github.com/bellwether-labs/sando/internal/forkcache"
	"github.com/bellwether-labs/sando/internal/obs"
	"github.com/bellwether-labs/sando/internal/optimizer"
	"github.com/bellwether-labs/sando/internal/poolreg"
	"github.com/bellwether-labs/sando/internal/safety"
)

// BuiltBundle pairs a fully signed bundlebuild.Bundle with the optimizer
// recipe and pool it came from, which the mega-sandwich coalescing task
// needs for its revenue comparison (spec.md §4.8).
type BuiltBundle struct {
	Bundle *bundlebuild.Bundle
	Recipe *optimizer.SandoRecipe
	Pool   common.Address
}

// Strategy is the state machine of spec.md §4.8: on NewBlock it updates
// block state; on NewTransaction it runs the filter+optimizer+builder
// pipeline and emits a SubmitToFlashbotsAction.
type Strategy struct {
	driver      chainapi.Driver
	filter      *filter.Filter
	blockMgr    *blockinfo.Manager
	weth        common.Address
	sandwich    common.Address
	searcherKey *ecdsa.PrivateKey
	chainID     *big.Int
	nonces      *NonceTracker
	pending     *pendingList
	dust        *dustTracker
	alerter     obs.Alerter
	log         *obs.Logger
	m           *obs.Metrics
}

func NewStrategy(driver chainapi.Driver, f *filter.Filter, blockMgr *blockinfo.Manager, weth, sandwich common.Address, searcherKey *ecdsa.PrivateKey, chainID *big.Int, nonces *NonceTracker, log *obs.Logger, m *obs.Metrics, alerter obs.Alerter) *Strategy {
	return &Strategy{
		driver:      driver,
		filter:      f,
		blockMgr:    blockMgr,
		weth:        weth,
		sandwich:    sandwich,
		searcherKey: searcherKey,
		chainID:     chainID,
		nonces:      nonces,
		pending:     newPendingList(),
		dust:        newDustTracker(),
		alerter:     alerter,
		log:         log.For("strategy"),
		m:           m,
	}
}

// HandleBlock updates the block manager's latest/next projection, per
// spec.md §4.8 "on NewBlock, it updates internal block state".
func (s *Strategy) HandleBlock(block *types.Block) {
	info := blockinfo.Info{
		Number:    block.NumberU64(),
		Timestamp: block.Time(),
	}
	if baseFee := block.BaseFee(); baseFee != nil {
		info.BaseFeePerGas, _ = uint256.FromBig(baseFee)
	}
	gasUsed, gasLimit := block.GasUsed(), block.GasLimit()
	info.GasUsed = &gasUsed
	info.GasLimit = &gasLimit
	s.blockMgr.Update(info)
	s.pending.snapshotAndClear()
}

// HandleTransaction runs the filter+optimizer+builder pipeline for one
// pending transaction, per spec.md §4.8 "on NewTransaction, it runs the
// filter+optimizer+builder pipeline". A nil-free empty result means no
// touched pool produced an opportunity, not an error.
func (s *Strategy) HandleTransaction(ctx context.Context, tx *types.Transaction) ([]Action, error) {
	next, ok := s.blockMgr.Next()
	if !ok {
		// A missing projected next block is an error, not "no opportunity".
		// runPipeline logs it; the engine does not stop.
		return nil, fmt.Errorf("strategy: no projected next block yet")
	}
	latest := s.blockMgr.Latest()
	pinBlock := new(big.Int).SetUint64(latest.Number)

	touches, err := s.filter.Evaluate(ctx, tx, pinBlock)
	if err != nil {
		if errors.Is(err, filter.ErrNoStateDiff) {
			return nil, nil
		}
		return nil, err
	}

	var actions []Action
	for _, touch := range touches {
		bundle, recipe, err := s.runOnePool(ctx, tx, touch.Pool, pinBlock, next)
		if err != nil {
			s.log.Warn("pipeline error", "tx_hash", tx.Hash().Hex(), "pool", touch.Pool.Address, "err", err)
			continue
		}
		if bundle == nil {
			continue
		}
		built := &BuiltBundle{Bundle: bundle, Recipe: recipe, Pool: touch.Pool.Address}
		s.pending.add(touch.Pool.Address, pendingOpportunity{
			ingredients: optimizer.RawIngredients{Meats: []*types.Transaction{tx}, StartEndToken: s.weth, IntermediaryToken: recipe.IntermediaryToken, Pool: touch.Pool},
			bundle:      built,
			observedAt:  time.Now(),
		})
		actions = append(actions, SubmitToFlashbotsAction{Bundle: built})
	}
	return actions, nil
}

func (s *Strategy) runOnePool(ctx context.Context, tx *types.Transaction, pool poolreg.Pool, pinBlock *big.Int, next blockinfo.Info) (*bundlebuild.Bundle, *optimizer.SandoRecipe, error) {
	backend, err := forkcache.NewBackend(s.driver, pinBlock, s.m)
	if err != nil {
		return nil, nil, fmt.Errorf("fork-cache backend: %w", err)
	}
	overlay := forkcache.NewOverlay(backend)
	sim := evmsim.New(ctx, overlay, next.Number, next.Timestamp, next.BaseFeePerGas)

	intermediary := pool.OtherToken(s.weth)
	ingredients := optimizer.RawIngredients{
		Meats:             []*types.Transaction{tx},
		StartEndToken:     s.weth,
		IntermediaryToken: intermediary,
		Pool:              pool,
	}

	inventory, err := s.readInventory(ctx, pinBlock)
	if err != nil {
		return nil, nil, fmt.Errorf("read inventory: %w", err)
	}

	recipe, err := optimizer.Run(ctx, sim, ingredients, inventory, s.weth, next.Number, s.log)
	if err != nil {
		return nil, nil, fmt.Errorf("optimizer: %w", err)
	}
	if recipe == nil {
		return nil, nil, nil
	}
	s.m.OpportunitiesOpt.Inc()

	verdict, err := s.inspectSafety(sim, recipe)
	if err != nil {
		return nil, nil, fmt.Errorf("safety re-simulation: %w", err)
	}
	if !verdict.Safu {
		s.m.SalmonellaHits.Inc()
		s.log.Poisoned(tx.Hash().Hex(), intermediary.Hex(), verdict.SuspiciousOpcodes)
		_ = s.alerter.Alert(ctx, "poison_token_detected", map[string]string{
			"tx_hash":      tx.Hash().Hex(),
			"intermediary": intermediary.Hex(),
		})
		return nil, nil, nil
	}

	// Build derives the backrun nonce as frontrunNonce+1 itself; Reserve
	// still returns both so the tracker's view of "next" stays in lockstep.
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
		return nil, nil, fmt.Errorf("bundle build: %w", err)
	}
	s.dust.mark(intermediary)
	s.m.BundlesSubmitted.Inc()
	return bundle, recipe, nil
}

// inspectSafety replays the recipe's two legs with the salmonella inspector
// attached, which doubles as the access-list acquisition pass of
// spec.md §4.7 (go-ethereum's EVM records the same warm-address/slot
// bookkeeping on every call regardless of whether a tracer is attached).
// The inspector sees only these calculation-router replays; the sandwich
// contract's own execution of the bundle is not inspected.
func (s *Strategy) inspectSafety(sim *evmsim.Simulator, recipe *optimizer.SandoRecipe) (safety.Verdict, error) {
	inspector := safety.NewInspector()
	_, err := sim.CallWithInspector(evmsim.Call{
		From:     optimizer.ControllerAddress,
		To:       optimizer.RouterAddress,
		Value:    uint256.NewInt(0),
		Data:     recipe.FrontrunData,
		GasLimit: recipe.FrontrunGasUsed * 2,
	}, inspector.Hooks())
	if err != nil {
		return safety.Verdict{}, err
	}
	recipe.FrontrunAccessList = sim.LastAccessList()

	_, err = sim.CallWithInspector(evmsim.Call{
		From:     optimizer.ControllerAddress,
		To:       optimizer.RouterAddress,
		Value:    uint256.NewInt(0),
		Data:     recipe.BackrunData,
		GasLimit: recipe.BackrunGasUsed * 2,
	}, inspector.Hooks())
	if err != nil {
		return safety.Verdict{}, err
	}
	recipe.BackrunAccessList = sim.LastAccessList()

	return inspector.Verdict(), nil
}

func (s *Strategy) readInventory(ctx context.Context, pinBlock *big.Int) (*uint256.Int, error) {
	slot := filter.WETHBalanceSlot(s.sandwich)
	hash, err := s.driver.GetStorageAt(ctx, s.weth, slot, pinBlock)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(hash.Bytes()), nil
}

// dustTracker records, per intermediary token, whether the sandwich
// contract is believed to already hold leftover dust — an engine-level
// approximation of original_source's on-chain dust check: the first
// successful bundle against a token is assumed to leave dust behind for
// every subsequent one (spec.md §4.7's DUST_OVERPAY only applies once).
type dustTracker struct {
	mu   sync.Mutex
	seen map[common.Address]bool
}

func newDustTracker() *dustTracker {
	return &dustTracker{seen: make(map[common.Address]bool)}
}

func (d *dustTracker) has(token common.Address) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[token]
}

func (d *dustTracker) mark(token common.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[token] = true
}

// SeedDust primes the dust tracker with tokens already known to carry
// leftover dust on the sandwich contract, per a startup discovery pass
// (spec.md §6 SANDWICH_INCEPTION_BLOCK). Without this, every token's first
// bundle after a restart would overpay by DustOverpay even if a prior
// process run had already left dust behind.
func (s *Strategy) SeedDust(tokens []common.Address) {
	for _, t := range tokens {
		s.dust.mark(t)
	}
}
