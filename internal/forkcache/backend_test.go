package forkcache

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/bellwether-labs/sando/internal/chainapi"
)

// fakeDriver implements chainapi.Driver with counters on the point-read
// methods Backend exercises, so tests can assert coalescing behavior.
type fakeDriver struct {
	balanceCalls int32
	nonceCalls   int32
	codeCalls    int32
}

func (f *fakeDriver) SubscribeNewHeads(ctx context.Context) (<-chan *types.Header, ethereum.Subscription, error) {
	panic("unused")
}
func (f *fakeDriver) SubscribePendingTransactions(ctx context.Context) (<-chan *types.Transaction, ethereum.Subscription, error) {
	panic("unused")
}
func (f *fakeDriver) TraceCallStateDiff(ctx context.Context, tx *types.Transaction, atBlock *big.Int) (chainapi.StateDiffMap, error) {
	panic("unused")
}
func (f *fakeDriver) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	panic("unused")
}
func (f *fakeDriver) GetBlock(ctx context.Context, number *big.Int) (*types.Block, error) {
	panic("unused")
}
func (f *fakeDriver) GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, atBlock *big.Int) (common.Hash, error) {
	return common.BigToHash(big.NewInt(42)), nil
}
func (f *fakeDriver) GetCode(ctx context.Context, addr common.Address, atBlock *big.Int) ([]byte, error) {
	atomic.AddInt32(&f.codeCalls, 1)
	return nil, nil
}
func (f *fakeDriver) GetBalance(ctx context.Context, addr common.Address, atBlock *big.Int) (*big.Int, error) {
	atomic.AddInt32(&f.balanceCalls, 1)
	return big.NewInt(1_000_000), nil
}
func (f *fakeDriver) GetTransactionCount(ctx context.Context, addr common.Address, atBlock *big.Int) (uint64, error) {
	atomic.AddInt32(&f.nonceCalls, 1)
	return 7, nil
}

func TestBackend_CoalescesConcurrentAccountReads(t *testing.T) {
	driver := &fakeDriver{}
	backend, err := NewBackend(driver, big.NewInt(100), nil)
	require.NoError(t, err)

	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	const concurrency = 32
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			info, err := backend.Account(context.Background(), addr)
			require.NoError(t, err)
			require.Equal(t, uint64(7), info.Nonce)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&driver.balanceCalls), "all concurrent readers for the same key must coalesce into one upstream fetch")
	require.Equal(t, int32(1), atomic.LoadInt32(&driver.nonceCalls))
}

func TestBackend_CachesAfterFirstResolve(t *testing.T) {
	driver := &fakeDriver{}
	backend, err := NewBackend(driver, big.NewInt(100), nil)
	require.NoError(t, err)

	addr := common.HexToAddress("0x0000000000000000000000000000000000000002")
	_, err = backend.Account(context.Background(), addr)
	require.NoError(t, err)
	_, err = backend.Account(context.Background(), addr)
	require.NoError(t, err)

	require.Equal(t, int32(1), atomic.LoadInt32(&driver.balanceCalls), "once resolved, a key must never be re-fetched for the life of the backend")
}

func TestOverlay_SeedTakesPrecedenceOverBackend(t *testing.T) {
	driver := &fakeDriver{}
	backend, err := NewBackend(driver, big.NewInt(100), nil)
	require.NoError(t, err)

	overlay := NewOverlay(backend)
	addr := common.HexToAddress("0x0000000000000000000000000000000000000003")
	slot := common.HexToHash("0x01")

	v, err := overlay.GetStorage(context.Background(), addr, slot)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v.Uint64(), "without a seed, overlay falls through to the backend")

	other := common.HexToAddress("0x0000000000000000000000000000000000000004")
	seededValue := *uint256.NewInt(99)
	child := overlay.Fork()
	child.Seed(other, slot, seededValue)
	v2, err := child.GetStorage(context.Background(), other, slot)
	require.NoError(t, err)
	require.Equal(t, uint64(99), v2.Uint64(), "a seeded value must take precedence over the backend")
}
