package poolreg

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/bellwether-labs/sando/internal/chainapi"
	"github.com/bellwether-labs/sando/internal/obs"
)

var (
	testWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testDAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	testUNI  = common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
)

func pairCreatedLog(factory, pair, token0, token1 common.Address) types.Log {
	data := make([]byte, 64)
	copy(data[12:32], pair.Bytes())
	return types.Log{
		Address: factory,
		Topics:  []common.Hash{pairCreatedTopic, common.BytesToHash(token0.Bytes()), common.BytesToHash(token1.Bytes())},
		Data:    data,
	}
}

type stubDriver struct {
	logs []types.Log
}

func (s *stubDriver) SubscribeNewHeads(ctx context.Context) (<-chan *types.Header, ethereum.Subscription, error) {
	panic("unused")
}
func (s *stubDriver) SubscribePendingTransactions(ctx context.Context) (<-chan *types.Transaction, ethereum.Subscription, error) {
	panic("unused")
}
func (s *stubDriver) TraceCallStateDiff(ctx context.Context, tx *types.Transaction, atBlock *big.Int) (chainapi.StateDiffMap, error) {
	panic("unused")
}
func (s *stubDriver) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return s.logs, nil
}
func (s *stubDriver) GetBlock(ctx context.Context, number *big.Int) (*types.Block, error) {
	panic("unused")
}
func (s *stubDriver) GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, atBlock *big.Int) (common.Hash, error) {
	panic("unused")
}
func (s *stubDriver) GetCode(ctx context.Context, addr common.Address, atBlock *big.Int) ([]byte, error) {
	panic("unused")
}
func (s *stubDriver) GetBalance(ctx context.Context, addr common.Address, atBlock *big.Int) (*big.Int, error) {
	panic("unused")
}
func (s *stubDriver) GetTransactionCount(ctx context.Context, addr common.Address, atBlock *big.Int) (uint64, error) {
	panic("unused")
}

func newTestRegistry(t *testing.T, logs []types.Log) *Registry {
	t.Helper()
	ckpt, err := OpenCheckpoint(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ckpt.Close() })
	log := obs.NewLogger(0)
	m := obs.NewMetrics(prometheus.NewRegistry())
	return New(&stubDriver{logs: logs}, ckpt, testWETH, log, m)
}

// TestRegistry_DropsPoolsWithoutWETH verifies spec.md §4.1's "ignore any
// pool whose token set does not include WETH" discovery rule.
func TestRegistry_DropsPoolsWithoutWETH(t *testing.T) {
	wethPool := common.HexToAddress("0xaaaa")
	nonWethPool := common.HexToAddress("0xbbbb")
	factory := common.HexToAddress("0xffff")

	logs := []types.Log{
		pairCreatedLog(factory, wethPool, testWETH, testUSDC),
		pairCreatedLog(factory, nonWethPool, testDAI, testUNI),
	}
	r := newTestRegistry(t, logs)

	err := r.Bootstrap(context.Background(), []Factory{{Address: factory, Family: FamilyV2, InceptionBlock: 0}}, 100)
	require.NoError(t, err)

	require.Equal(t, 1, r.Size())
	_, ok := r.Lookup(wethPool)
	require.True(t, ok)
	_, ok = r.Lookup(nonWethPool)
	require.False(t, ok)
}

// TestRegistry_CandidatesIntersectsTouchedWithKnownPools verifies spec.md
// §4.1 query (ii): candidates are exactly the known pools whose address
// appears in the touched set.
func TestRegistry_CandidatesIntersectsTouchedWithKnownPools(t *testing.T) {
	poolA := common.HexToAddress("0xaaaa")
	poolB := common.HexToAddress("0xbbbb")
	factory := common.HexToAddress("0xffff")
	notAPool := common.HexToAddress("0xcccc")

	logs := []types.Log{
		pairCreatedLog(factory, poolA, testWETH, testUSDC),
		pairCreatedLog(factory, poolB, testWETH, testDAI),
	}
	r := newTestRegistry(t, logs)
	require.NoError(t, r.Bootstrap(context.Background(), []Factory{{Address: factory, Family: FamilyV2, InceptionBlock: 0}}, 100))

	touched := mapset.NewThreadUnsafeSet[common.Address](poolA, notAPool)
	candidates := r.Candidates(touched)

	require.Len(t, candidates, 1)
	require.Equal(t, poolA, candidates[0].Address)
}
