// Package blockinfo tracks the latest mined block and projects the next
// one per spec.md §4.2 (Block Manager).
package blockinfo

import (
	"math/big"

	"github.com/holiman/uint256"
)

// blockTimeSeconds is the fixed 12s slot time spec.md §6 constants name.
const blockTimeSeconds = 12

// eip1559Denominator is the base-fee-change denominator ("/8" in spec §4.2,
// i.e. max ~12.5% change per block).
const eip1559Denominator = 8

// Info is spec.md §3 BlockInfo. GasUsed/GasLimit are nil for a projected
// next block.
type Info struct {
	Number        uint64
	Timestamp     uint64
	BaseFeePerGas *uint256.Int
	GasUsed       *uint64
	GasLimit      *uint64
}

// IsProjected reports whether this Info describes an unmined next block.
func (i Info) IsProjected() bool { return i.GasUsed == nil }

// Manager exposes pure, cheap Latest/Next accessors (spec.md §4.2). It is
// seeded once at startup and then updated by the strategy on each NewBlock,
// and read from many (every mempool transaction needs Next()), so state is
// held behind an atomic snapshot pointer rather than a mutex — spec.md §5
// calls this out explicitly as a primitive that must not serialize the hot
// read path.
type Manager struct {
	snapshot atomicInfo
}

func NewManager() *Manager {
	return &Manager{}
}

// Update recomputes Next from a freshly mined block.
func (m *Manager) Update(latest Info) {
	m.snapshot.Store(&snap{latest: latest, next: project(latest)})
}

// Latest returns the most recently mined block, or the zero value if
// Update has never been called.
func (m *Manager) Latest() Info {
	s := m.snapshot.Load()
	if s == nil {
		return Info{}
	}
	return s.latest
}

// Next returns the projected next block; ok is false until Update has run.
// Strategy.HandleTransaction reports a missing Next() as an error, not as
// "no opportunity"; the engine logs that error and keeps running.
func (m *Manager) Next() (Info, bool) {
	s := m.snapshot.Load()
	if s == nil {
		return Info{}, false
	}
	return s.next, true
}

func project(latest Info) Info {
	next := Info{
		Number:    latest.Number + 1,
		Timestamp: latest.Timestamp + blockTimeSeconds,
	}
	if latest.GasUsed == nil || latest.GasLimit == nil || *latest.GasLimit == 0 {
		next.BaseFeePerGas = latest.BaseFeePerGas
		return next
	}
	next.BaseFeePerGas = NextBaseFee(latest.BaseFeePerGas, *latest.GasUsed, *latest.GasLimit)
	return next
}

// NextBaseFee implements the EIP-1559 update rule exactly as spec.md §4.2
// specifies it (not the protocol's own rounding-down-then-floor-one
// variant — this searcher only needs a projection, not consensus-exact
// base fee, so we keep the simpler integer-division form spec.md gives).
func NextBaseFee(base *uint256.Int, gasUsed, gasLimit uint64) *uint256.Int {
	target := gasLimit / 2
	if gasUsed == target {
		return new(uint256.Int).Set(base)
	}

	delta := new(uint256.Int)
	if gasUsed > target {
		diff := gasUsed - target
		delta.Mul(base, uint256.NewInt(diff))
		delta.Div(delta, uint256.NewInt(target))
		delta.Div(delta, uint256.NewInt(eip1559Denominator))
		return new(uint256.Int).Add(base, delta)
	}

	diff := target - gasUsed
	delta.Mul(base, uint256.NewInt(diff))
	delta.Div(delta, uint256.NewInt(target))
	delta.Div(delta, uint256.NewInt(eip1559Denominator))
	if delta.Cmp(base) >= 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(base, delta)
}

// BigBaseFee is a convenience accessor for go-ethereum APIs that still take
// *big.Int (e.g. core/types.NewTx fee fields).
func (i Info) BigBaseFee() *big.Int {
	if i.BaseFeePerGas == nil {
		return nil
	}
	return i.BaseFeePerGas.ToBig()
}
