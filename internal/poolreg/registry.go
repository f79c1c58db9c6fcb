package poolreg

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bellwether-labs/sando/internal/chainapi"
	"github.com/bellwether-labs/sando/internal/obs"
)

// scanWindow is the fixed block-range size spec.md §4.1 mandates per
// get_logs request.
const scanWindow = 10_000

// liveUpdateInterval is the "every 50 new blocks" re-scan cadence.
const liveUpdateInterval = 50

var (
	pairCreatedTopic = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))
	poolCreatedTopic = crypto.Keccak256Hash([]byte("PoolCreated(address,address,uint24,int24,address)"))
)

// Factory is one configured pool-creation source (spec.md §4.1).
type Factory struct {
	Address       common.Address
	Family        Family
	InceptionBlock uint64
}

// Registry holds the full known-pool set. Reads (Lookup, Candidates) are
// hot — called on every mempool transaction — while writes happen only
// in Bootstrap and LiveUpdate (cmd/sando calls Bootstrap once at startup
// and does not call LiveUpdate, so the set is fixed after startup);
// spec.md §4.1 and §5 call for a primitive that does not serialize hot
// reads behind the writer, so a sync.RWMutex guarding a plain map (not a
// single coarse mutex shared with unrelated state) is sufficient here.
type Registry struct {
	mu       sync.RWMutex
	byAddr   map[common.Address]Pool
	weth     common.Address
	lastScan uint64

	driver chainapi.Driver
	store  *Checkpoint
	log    *obs.Logger
	m      *obs.Metrics
}

func New(driver chainapi.Driver, store *Checkpoint, weth common.Address, log *obs.Logger, m *obs.Metrics) *Registry {
	return &Registry{
		byAddr: make(map[common.Address]Pool),
		weth:   weth,
		driver: driver,
		store:  store,
		log:    log.For("poolreg"),
		m:      m,
	}
}

// Bootstrap loads the on-disk checkpoint (if any) and then discovers pools
// created between the checkpoint (or each factory's inception block) and
// head, per spec.md §4.1.
func (r *Registry) Bootstrap(ctx context.Context, factories []Factory, head uint64) error {
	if ckpt, err := r.store.Load(); err == nil && ckpt != nil {
		r.mu.Lock()
		for _, p := range ckpt.Pools {
			r.byAddr[p.Address] = p
		}
		r.lastScan = ckpt.LastBlock
		r.mu.Unlock()
	}

	for _, f := range factories {
		from := f.InceptionBlock
		if r.lastScan > from {
			from = r.lastScan
		}
		if err := r.scanFactory(ctx, f, from, head); err != nil {
			return fmt.Errorf("poolreg: bootstrap scan %s: %w", f.Address, err)
		}
	}

	r.mu.Lock()
	r.lastScan = head
	r.mu.Unlock()
	return r.persist()
}

// LiveUpdate re-scans from the last-seen head to newHead if at least
// liveUpdateInterval blocks have passed, merging newly created pools.
func (r *Registry) LiveUpdate(ctx context.Context, factories []Factory, newHead uint64) error {
	r.mu.RLock()
	last := r.lastScan
	r.mu.RUnlock()
	if newHead < last+liveUpdateInterval {
		return nil
	}
	for _, f := range factories {
		from := f.InceptionBlock
		if last > from {
			from = last
		}
		if err := r.scanFactory(ctx, f, from, newHead); err != nil {
			return fmt.Errorf("poolreg: live update scan %s: %w", f.Address, err)
		}
	}
	r.mu.Lock()
	r.lastScan = newHead
	r.mu.Unlock()
	return r.persist()
}

func (r *Registry) scanFactory(ctx context.Context, f Factory, from, to uint64) error {
	topic := pairCreatedTopic
	if f.Family == FamilyV3 {
		topic = poolCreatedTopic
	}
	for start := from; start <= to; start += scanWindow {
		end := start + scanWindow - 1
		if end > to {
			end = to
		}
		logs, err := r.driver.GetLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{f.Address},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			return err
		}
		for _, lg := range logs {
			p, err := decodePoolLog(lg, f.Family)
			if err != nil {
				r.log.Warn("skipping undecodable pool log", "tx_hash", lg.TxHash, "err", err)
				continue
			}
			if !p.HasToken(r.weth) {
				continue
			}
			r.mu.Lock()
			r.byAddr[p.Address] = p
			r.mu.Unlock()
		}
	}
	return nil
}

var (
	addressT, _ = abi.NewType("address", "", nil)
	uint24T, _  = abi.NewType("uint24", "", nil)
)

func decodePoolLog(lg types.Log, family Family) (Pool, error) {
	if family == FamilyV3 {
		// PoolCreated(address indexed token0, address indexed token1, uint24 indexed fee, int24 tickSpacing, address pool)
		if len(lg.Topics) < 4 {
			return Pool{}, fmt.Errorf("short topics for PoolCreated")
		}
		token0 := common.BytesToAddress(lg.Topics[1].Bytes())
		token1 := common.BytesToAddress(lg.Topics[2].Bytes())
		fee := new(big.Int).SetBytes(lg.Topics[3].Bytes()).Uint64()
		if len(lg.Data) < 64 {
			return Pool{}, fmt.Errorf("short data for PoolCreated")
		}
		poolAddr := common.BytesToAddress(lg.Data[32:64])
		return NewPool(poolAddr, token0, token1, uint32(fee), FamilyV3), nil
	}
	// PairCreated(address indexed token0, address indexed token1, address pair, uint256)
	if len(lg.Topics) < 3 {
		return Pool{}, fmt.Errorf("short topics for PairCreated")
	}
	token0 := common.BytesToAddress(lg.Topics[1].Bytes())
	token1 := common.BytesToAddress(lg.Topics[2].Bytes())
	if len(lg.Data) < 32 {
		return Pool{}, fmt.Errorf("short data for PairCreated")
	}
	pairAddr := common.BytesToAddress(lg.Data[0:32])
	return NewPool(pairAddr, token0, token1, V2Fee, FamilyV2), nil
}

// Lookup answers "does this address refer to a known pool?" (spec.md §4.1
// query (i)).
func (r *Registry) Lookup(addr common.Address) (Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byAddr[addr]
	return p, ok
}

// Candidates returns every known pool whose address is a member of
// touched, in no particular order (spec.md §4.1 "For each address in the
// diff that maps to a known pool, include that pool as a candidate").
func (r *Registry) Candidates(touched mapset.Set[common.Address]) []Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	known := mapset.NewThreadUnsafeSet[common.Address]()
	for addr := range r.byAddr {
		known.Add(addr)
	}
	var out []Pool
	for addr := range known.Intersect(touched).Iter() {
		if p, ok := r.byAddr[addr]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddr)
}

func (r *Registry) persist() error {
	r.mu.RLock()
	pools := make([]Pool, 0, len(r.byAddr))
	for _, p := range r.byAddr {
		pools = append(pools, p)
	}
	last := r.lastScan
	r.mu.RUnlock()
	return r.store.Save(&CheckpointData{Pools: pools, LastBlock: last})
}
