package engine

import "sync"

// NonceTracker is the searcher nonce of spec.md §5: a single integer behind
// a writer lock, incremented by exactly two only after a bundle is
// confirmed included (one nonce for the frontrun, one for the backrun).
type NonceTracker struct {
	mu   sync.Mutex
	next uint64
}

func NewNonceTracker(start uint64) *NonceTracker {
	return &NonceTracker{next: start}
}

// Reserve returns the next two sequential nonces (frontrun, backrun).
// Deliberately idempotent between inclusions: every concurrent bundle built
// before the next confirmation races for the same nonce pair, since at most
// one of them can ever land on-chain; the rest fail harmlessly. Only
// ConfirmIncluded advances the counter.
func (n *NonceTracker) Reserve() (frontrun, backrun uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	frontrun, backrun = n.next, n.next+1
	return frontrun, backrun
}

// ConfirmIncluded advances the tracked nonce by exactly two, per spec.md
// §5's increment-by-two-on-inclusion rule.
func (n *NonceTracker) ConfirmIncluded() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next += 2
}

// Current returns the tracked nonce without reserving it, for diagnostics.
func (n *NonceTracker) Current() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next
}
