// Package chainapi defines the chain driver contract the core consumes
// (spec.md §6) and the error classification spec.md §5/§7 requires for
// timeouts vs. other transient failures. The driver implementation itself
// (chainapi/gethdriver.go) is a thin adapter over go-ethereum's own
// ethclient/rpc stack — the actual websocket transport, reconnection
// socket handling, and node operations are the pluggable external
// collaborator spec.md §1 calls out; this package only shapes the
// interface and retry policy around it.
package chainapi

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChangeKind tags one storage change, per spec.md §3 StateDiff.
type ChangeKind int

const (
	ChangeSame ChangeKind = iota
	ChangeFromTo
	ChangeBorn
	ChangeDied
)

type StorageChange struct {
	Kind ChangeKind
	From common.Hash
	To   common.Hash
}

// AccountDiff is the per-account half of a StateDiffMap.
type AccountDiff struct {
	Storage map[common.Hash]StorageChange
	Balance *StorageChange // optional account-balance change, if the trace reports it
	Nonce   *uint64
}

// StateDiffMap is the full state-diff trace of one transaction, keyed by
// touched account address (spec.md §3 StateDiff).
type StateDiffMap map[common.Address]*AccountDiff

// Driver is every chain operation the core consumes (spec.md §6).
type Driver interface {
	SubscribeNewHeads(ctx context.Context) (<-chan *types.Header, ethereum.Subscription, error)
	SubscribePendingTransactions(ctx context.Context) (<-chan *types.Transaction, ethereum.Subscription, error)
	TraceCallStateDiff(ctx context.Context, tx *types.Transaction, atBlock *big.Int) (StateDiffMap, error)
	GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	GetBlock(ctx context.Context, number *big.Int) (*types.Block, error)
	GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, atBlock *big.Int) (common.Hash, error)
	GetCode(ctx context.Context, addr common.Address, atBlock *big.Int) ([]byte, error)
	GetBalance(ctx context.Context, addr common.Address, atBlock *big.Int) (*big.Int, error)
	GetTransactionCount(ctx context.Context, addr common.Address, atBlock *big.Int) (uint64, error)
}

// ChainError wraps a driver failure with the classification spec.md §5/§7
// needs: whether the failure is a timeout (eligible for backoff retry).
type ChainError struct {
	Op        string
	Err       error
	IsTimeout bool
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chainapi: %s: %v", e.Op, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

func (e *ChainError) Timeout() bool { return e.IsTimeout }

// ErrNoStateDiff is returned by TraceCallStateDiff when a trace produced no
// diff at all (spec.md §4.1 FilterError::NoStateDiff lives one layer up in
// package filter, but the driver surfaces the same underlying condition).
var ErrNoStateDiff = errors.New("chainapi: trace_call produced no state diff")
