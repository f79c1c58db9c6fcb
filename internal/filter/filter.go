// Package filter is the opportunity filter of spec.md §4.1's touch-filter
// contract and §2 module 5: given a pending transaction, decide which
// known pools it touches and in which direction.
package filter

import (
	"context"
	"errors"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/bellwether-labs/sando/internal/chainapi"
	"github.com/bellwether-labs/sando/internal/poolreg"
)

// ErrNoStateDiff is spec.md §4.1's FilterError::NoStateDiff.
var ErrNoStateDiff = errors.New("filter: trace_call produced no state diff")

// wethBalanceOfSlot is the fixed WETH balanceOf mapping slot index spec.md
// §6 names.
const wethBalanceOfSlot = 3

// Direction is always WETH-is-input in this implementation (spec.md §4.1
// "current scope"); the type exists so a future direction can be added
// without changing every call site's shape.
type Direction uint8

const WETHIsInput Direction = 0

// Touch is one candidate pool a victim transaction touches with a
// confirmed WETH-input direction.
type Touch struct {
	Pool      poolreg.Pool
	Direction Direction
}

// Filter runs the touch-filter contract of spec.md §4.1.
type Filter struct {
	driver   chainapi.Driver
	registry *poolreg.Registry
	weth     common.Address
}

func New(driver chainapi.Driver, registry *poolreg.Registry, weth common.Address) *Filter {
	return &Filter{driver: driver, registry: registry, weth: weth}
}

// Evaluate traces tx at pinBlock, intersects the touched address set with
// the pool registry, and returns every candidate pool whose direction
// check passes.
func (f *Filter) Evaluate(ctx context.Context, tx *types.Transaction, pinBlock *big.Int) ([]Touch, error) {
	diff, err := f.driver.TraceCallStateDiff(ctx, tx, pinBlock)
	if err != nil {
		if errors.Is(err, chainapi.ErrNoStateDiff) {
			return nil, ErrNoStateDiff
		}
		return nil, err
	}
	if len(diff) == 0 {
		return nil, ErrNoStateDiff
	}

	touched := mapset.NewThreadUnsafeSet[common.Address]()
	for addr := range diff {
		touched.Add(addr)
	}

	candidates := f.registry.Candidates(touched)
	if len(candidates) == 0 {
		return nil, nil
	}

	wethDiff, ok := diff[f.weth]
	if !ok {
		// No WETH diff at all: not sandwichable (spec.md §4.1 edge case).
		return nil, nil
	}

	var touches []Touch
	for _, pool := range candidates {
		slot := WETHBalanceSlot(pool.Address)
		change, ok := wethDiff.Storage[slot]
		if !ok || change.Kind != chainapi.ChangeFromTo {
			continue
		}
		from := new(uint256.Int).SetBytes(change.From.Bytes())
		to := new(uint256.Int).SetBytes(change.To.Bytes())
		if to.Cmp(from) > 0 {
			touches = append(touches, Touch{Pool: pool, Direction: WETHIsInput})
		}
	}
	return touches, nil
}

// WETHBalanceSlot computes keccak256(abi.encode(pool, uint256(3))), the
// fixed WETH balanceOf mapping slot for a given holder, per spec.md §4.1.
func WETHBalanceSlot(holder common.Address) common.Hash {
	return mappingSlot(holder, wethBalanceOfSlot)
}

func mappingSlot(key common.Address, mappingIndex int64) common.Hash {
	buf := make([]byte, 64)
	copy(buf[12:32], key.Bytes())
	new(big.Int).SetInt64(mappingIndex).FillBytes(buf[32:64])
	return crypto.Keccak256Hash(buf)
}
