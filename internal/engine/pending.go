package engine

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bellwether-labs/sando/internal/optimizer"
)

// pendingOpportunity is one successfully built bundle recorded for possible
// mega-sandwich coalescing (spec.md §4.8).
type pendingOpportunity struct {
	ingredients optimizer.RawIngredients
	bundle      *BuiltBundle
	observedAt  time.Time
}

// pendingList is the per-pool pending-opportunity list of spec.md §4.8 and
// §5: a single writer lock with many short-lived readers, cleared at the
// start of each new block.
type pendingList struct {
	mu   sync.Mutex
	byPool map[common.Address][]pendingOpportunity
}

func newPendingList() *pendingList {
	return &pendingList{byPool: make(map[common.Address][]pendingOpportunity)}
}

func (p *pendingList) add(pool common.Address, opp pendingOpportunity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byPool[pool] = append(p.byPool[pool], opp)
}

// snapshotAndClear returns every pool with >= 2 pending opportunities and
// resets the list for the next block's window.
func (p *pendingList) snapshotAndClear() map[common.Address][]pendingOpportunity {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[common.Address][]pendingOpportunity, len(p.byPool))
	for pool, opps := range p.byPool {
		if len(opps) >= 2 {
			out[pool] = opps
		}
	}
	p.byPool = make(map[common.Address][]pendingOpportunity)
	return out
}
