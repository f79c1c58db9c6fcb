package engine

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/bellwether-labs/sando/internal/blockinfo"
	"github.com/bellwether-labs/sando/internal/chainapi"
	"github.com/bellwether-labs/sando/internal/filter"
	"github.com/bellwether-labs/sando/internal/obs"
	"github.com/bellwether-labs/sando/internal/relay"
)

// coalesceDelay is the fixed 10.5s post-block delay spec.md §4.8 names for
// the mega-sandwich coalescing background task.
const coalesceDelay = 10*time.Second + 500*time.Millisecond

// eventChannelDepth bounds the shared event channel so a slow strategy
// naturally back-pressures and drops stale mempool traffic (spec.md §4.8,
// §5 "bounded channels so back-pressure naturally drops stale mempool
// traffic when the strategy falls behind").
const eventChannelDepth = 256

// Engine is the single-process cooperative event loop of spec.md §4.8: one
// task per collector, one per strategy, one per executor.
type Engine struct {
	driver   chainapi.Driver
	strategy *Strategy
	fanout   *relay.Fanout
	nonces   *NonceTracker
	alerter  obs.Alerter
	log      *obs.Logger
	m        *obs.Metrics
}

// New wires every component spec.md §4.8 names. chainID and searcherKey
// drive transaction signing; sandwich is the deployed contract address;
// relays are the already-configured fan-out targets; alerter receives the
// out-of-band bundle-included and poison-token notifications spec.md §7
// requires.
func New(driver chainapi.Driver, registryFilter *filter.Filter, blockMgr *blockinfo.Manager, weth, sandwich common.Address, searcherKey *ecdsa.PrivateKey, chainID *big.Int, startNonce uint64, relays []relay.Relay, log *obs.Logger, m *obs.Metrics, alerter obs.Alerter) *Engine {
	nonces := NewNonceTracker(startNonce)
	strategy := NewStrategy(driver, registryFilter, blockMgr, weth, sandwich, searcherKey, chainID, nonces, log, m, alerter)
	fanout := relay.NewFanout(relays, log)
	return &Engine{
		driver:   driver,
		strategy: strategy,
		fanout:   fanout,
		nonces:   nonces,
		alerter:  alerter,
		log:      log.For("engine"),
		m:        m,
	}
}

// Strategy exposes the engine's strategy for startup priming (SeedDust)
// before Run is called.
func (e *Engine) Strategy() *Strategy { return e.strategy }

// Run starts the collectors, the strategy dispatch loop, the executor, and
// the mega-sandwich coalescing task, and blocks until ctx is cancelled or
// any task returns a fatal error.
func (e *Engine) Run(ctx context.Context) error {
	events := make(chan Event, eventChannelDepth)
	actions := make(chan Action, eventChannelDepth)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runBlockCollector(gctx, e.driver, events, e.log) })
	g.Go(func() error { return runMempoolCollector(gctx, e.driver, events, e.log) })
	g.Go(func() error { return runExecutor(gctx, actions, e.fanout, e.nonces, e.alerter, e.log) })
	g.Go(func() error { return e.dispatch(gctx, events, actions) })

	return g.Wait()
}

// dispatch is the strategy's own long-lived task: it consumes events and,
// per victim, spawns a short-lived child task to run the pipeline (spec.md
// §5 "the strategy runs as a long-lived task that spawns one short-lived
// child task per (victim, touched_pool) pair").
func (e *Engine) dispatch(ctx context.Context, events <-chan Event, actions chan<- Action) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch v := ev.(type) {
			case NewBlockEvent:
				e.strategy.HandleBlock(v.Block)
				e.scheduleCoalesce(ctx, actions)
			case NewTransactionEvent:
				e.m.TxSeen.Inc()
				go e.runPipeline(ctx, v, actions)
			}
		}
	}
}

func (e *Engine) runPipeline(ctx context.Context, ev NewTransactionEvent, actions chan<- Action) {
	produced, err := e.strategy.HandleTransaction(ctx, ev.Tx)
	if err != nil {
		e.log.Warn("strategy pipeline failed", "tx_hash", ev.Tx.Hash().Hex(), "err", err)
		return
	}
	e.m.TxFiltered.Inc()
	for _, a := range produced {
		select {
		case actions <- a:
		case <-ctx.Done():
			return
		}
	}
}

// scheduleCoalesce fires RunCoalescing coalesceDelay after this new block,
// per spec.md §4.8 ("10.5 seconds after each new block"). Each block gets
// its own one-shot timer rather than a shared ticker so the delay is always
// measured from that block's own arrival.
func (e *Engine) scheduleCoalesce(ctx context.Context, actions chan<- Action) {
	time.AfterFunc(coalesceDelay, func() {
		for _, a := range e.strategy.RunCoalescing(ctx) {
			select {
			case actions <- a:
			case <-ctx.Done():
				return
			}
		}
	})
}
