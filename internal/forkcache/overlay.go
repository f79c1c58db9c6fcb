package forkcache

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// overlayAccount mirrors AccountInfo but tracks whether it has been locally
// mutated, so the overlay never writes back to the shared Backend.
type overlayAccount struct {
	AccountInfo
	selfDestructed bool
	created        bool
}

// Overlay is the write-through client handle described in spec.md §4.3: it
// first consults local writes, then falls back to the shared Backend on
// miss. Writes are simulation-local and never propagate upstream. Each
// Simulator instance owns exactly one Overlay and discards it at the end
// of a run (spec.md §3 ForkCache ownership).
type Overlay struct {
	backend *Backend

	accounts map[common.Address]*overlayAccount
	storage  map[common.Address]map[common.Hash]uint256.Int
	preSeed  map[common.Address]map[common.Hash]uint256.Int
}

func NewOverlay(backend *Backend) *Overlay {
	return &Overlay{
		backend:  backend,
		accounts: make(map[common.Address]*overlayAccount),
		storage:  make(map[common.Address]map[common.Hash]uint256.Int),
		preSeed:  make(map[common.Address]map[common.Hash]uint256.Int),
	}
}

// Fork returns a fresh Overlay sharing this one's backend and pre-seeded
// values but with its own local write set — "cheap to clone" per
// spec.md §4.4.
func (o *Overlay) Fork() *Overlay {
	child := NewOverlay(o.backend)
	for addr, slots := range o.preSeed {
		cp := make(map[common.Hash]uint256.Int, len(slots))
		for k, v := range slots {
			cp[k] = v
		}
		child.preSeed[addr] = cp
	}
	return child
}

// Seed inserts a pre-seed (account, slot) -> value pair, used to make
// victim state-diffs the optimizer's starting point (spec.md §4.3
// "Pre-seeding").
func (o *Overlay) Seed(addr common.Address, slot common.Hash, value uint256.Int) {
	m, ok := o.preSeed[addr]
	if !ok {
		m = make(map[common.Hash]uint256.Int)
		o.preSeed[addr] = m
	}
	m[slot] = value
}

func (o *Overlay) GetStorage(ctx context.Context, addr common.Address, slot common.Hash) (uint256.Int, error) {
	if slots, ok := o.storage[addr]; ok {
		if v, ok := slots[slot]; ok {
			return v, nil
		}
	}
	if slots, ok := o.preSeed[addr]; ok {
		if v, ok := slots[slot]; ok {
			return v, nil
		}
	}
	v, err := o.backend.Storage(ctx, addr, slot)
	if err != nil {
		return uint256.Int{}, err
	}
	return *v, nil
}

func (o *Overlay) SetStorage(addr common.Address, slot common.Hash, value uint256.Int) {
	m, ok := o.storage[addr]
	if !ok {
		m = make(map[common.Hash]uint256.Int)
		o.storage[addr] = m
	}
	m[slot] = value
}

func (o *Overlay) GetAccount(ctx context.Context, addr common.Address) (AccountInfo, error) {
	if a, ok := o.accounts[addr]; ok {
		return a.AccountInfo, nil
	}
	info, err := o.backend.Account(ctx, addr)
	if err != nil {
		return AccountInfo{}, err
	}
	return info, nil
}

func (o *Overlay) SetAccount(addr common.Address, info AccountInfo) {
	o.accounts[addr] = &overlayAccount{AccountInfo: info}
}

// CreateAccount marks addr as freshly created in this overlay (used by
// EVM CREATE/CREATE2 handling in the simulator).
func (o *Overlay) CreateAccount(addr common.Address) {
	o.accounts[addr] = &overlayAccount{created: true}
}

func (o *Overlay) SelfDestruct(addr common.Address) {
	if a, ok := o.accounts[addr]; ok {
		a.selfDestructed = true
		return
	}
	o.accounts[addr] = &overlayAccount{selfDestructed: true}
}

func (o *Overlay) HasSelfDestructed(addr common.Address) bool {
	a, ok := o.accounts[addr]
	return ok && a.selfDestructed
}

func (o *Overlay) BlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	return o.backend.BlockHash(ctx, number)
}

// OverlaySnapshot is a deep copy of the local write set, used to implement
// EVM-level Snapshot/RevertToSnapshot (a failed CALL must roll back only
// the writes made since it started, not the whole simulation). Copying the
// maps wholesale is simple and, at the scale of one simulated sandwich
// (a handful of accounts, at most a few hundred slots), cheap enough that
// a more surgical undo log would be premature.
type OverlaySnapshot struct {
	accounts map[common.Address]overlayAccount
	storage  map[common.Address]map[common.Hash]uint256.Int
}

func (o *Overlay) Snapshot() OverlaySnapshot {
	accts := make(map[common.Address]overlayAccount, len(o.accounts))
	for k, v := range o.accounts {
		accts[k] = *v
	}
	storage := make(map[common.Address]map[common.Hash]uint256.Int, len(o.storage))
	for addr, slots := range o.storage {
		cp := make(map[common.Hash]uint256.Int, len(slots))
		for k, v := range slots {
			cp[k] = v
		}
		storage[addr] = cp
	}
	return OverlaySnapshot{accounts: accts, storage: storage}
}

func (o *Overlay) RevertTo(snap OverlaySnapshot) {
	o.accounts = make(map[common.Address]*overlayAccount, len(snap.accounts))
	for k, v := range snap.accounts {
		cp := v
		o.accounts[k] = &cp
	}
	o.storage = snap.storage
}
