package chainapi

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	pointReadTimeout = 2 * time.Second
	traceCallTimeout = 10 * time.Second
	maxRetries       = 3
)

// GethDriver implements Driver against a single websocket-connected node
// using go-ethereum's own ethclient/rpc client, matching the way the
// teacher's node talks to peers: typed client on top of a raw *rpc.Client.
type GethDriver struct {
	url string
	rc  *rpc.Client
	ec  *ethclient.Client
}

// Dial connects to a websocket RPC endpoint once. Nothing re-dials: when a
// subscription on this driver fails, the collector that owns it returns the
// error, which ends Engine.Run.
func Dial(ctx context.Context, wssURL string) (*GethDriver, error) {
	rc, err := rpc.DialContext(ctx, wssURL)
	if err != nil {
		return nil, &ChainError{Op: "dial", Err: err}
	}
	return &GethDriver{url: wssURL, rc: rc, ec: ethclient.NewClient(rc)}, nil
}

func (d *GethDriver) Close() {
	d.rc.Close()
}

func withRetry[T any](ctx context.Context, op string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)

	var result T
	err := backoff.Retry(func() error {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		r, err := fn(cctx)
		if err != nil {
			result = zero
			return err
		}
		result = r
		return nil
	}, bo)
	if err != nil {
		timedOut := ctx.Err() != nil || strings.Contains(err.Error(), "context deadline exceeded")
		return zero, &ChainError{Op: op, Err: err, IsTimeout: timedOut}
	}
	return result, nil
}

func (d *GethDriver) SubscribeNewHeads(ctx context.Context) (<-chan *types.Header, ethereum.Subscription, error) {
	ch := make(chan *types.Header, 16)
	sub, err := d.ec.SubscribeNewHead(ctx, ch)
	if err != nil {
		return nil, nil, &ChainError{Op: "subscribe_new_heads", Err: err}
	}
	return ch, sub, nil
}

// pendingTxNotification mirrors the geth-specific eth_subscribe
// "newPendingTransactions" topic with full bodies (true argument), not the
// hash-only default — spec.md §6 requires "pending-transactions-with-body".
func (d *GethDriver) SubscribePendingTransactions(ctx context.Context) (<-chan *types.Transaction, ethereum.Subscription, error) {
	ch := make(chan *types.Transaction, 256)
	sub, err := d.rc.EthSubscribe(ctx, ch, "newPendingTransactions", true)
	if err != nil {
		return nil, nil, &ChainError{Op: "subscribe_pending_txs", Err: err}
	}
	return ch, sub, nil
}

// traceCallResult is the shape of a geth `trace_call` "stateDiff" tracer
// response: account -> storage slot -> {from,to}|"="|"+"|"-".
type traceCallResult struct {
	StateDiff map[string]struct {
		Balance interface{} `json:"balance"`
		Nonce   interface{} `json:"nonce"`
		Storage map[string]interface{} `json:"storage"`
	} `json:"stateDiff"`
}

func (d *GethDriver) TraceCallStateDiff(ctx context.Context, tx *types.Transaction, atBlock *big.Int) (StateDiffMap, error) {
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("chainapi: recover sender: %w", err)
	}
	callArgs := map[string]interface{}{
		"from":  from,
		"to":    tx.To(),
		"gas":   hexutil.Uint64(tx.Gas()),
		"value": (*hexutil.Big)(tx.Value()),
		"data":  hexutil.Bytes(tx.Data()),
	}
	blockArg := "latest"
	if atBlock != nil {
		blockArg = hexutil.EncodeBig(atBlock)
	}

	raw, err := withRetry(ctx, "trace_call", traceCallTimeout, func(cctx context.Context) (*traceCallResult, error) {
		var res traceCallResult
		if err := d.rc.CallContext(cctx, &res, "trace_call", callArgs, []string{"stateDiff"}, blockArg); err != nil {
			return nil, err
		}
		return &res, nil
	})
	if err != nil {
		return nil, err
	}
	if len(raw.StateDiff) == 0 {
		return nil, ErrNoStateDiff
	}

	out := make(StateDiffMap, len(raw.StateDiff))
	for addrHex, acct := range raw.StateDiff {
		ad := &AccountDiff{Storage: make(map[common.Hash]StorageChange, len(acct.Storage))}
		for slotHex, v := range acct.Storage {
			change, ok := decodeStorageChange(v)
			if !ok {
				continue
			}
			ad.Storage[common.HexToHash(slotHex)] = change
		}
		if bal, ok := decodeStorageChange(acct.Balance); ok {
			ad.Balance = &bal
		}
		out[common.HexToAddress(addrHex)] = ad
	}
	return out, nil
}

// decodeStorageChange interprets the polymorphic geth stateDiff encoding:
// the string "=" for unchanged, an object {"+": value} or {"-": value} for
// created/destroyed slots, or an object {"*": {"from": ..., "to": ...}}.
func decodeStorageChange(v interface{}) (StorageChange, bool) {
	switch t := v.(type) {
	case string:
		switch t {
		case "=":
			return StorageChange{Kind: ChangeSame}, true
		default:
			return StorageChange{}, false
		}
	case map[string]interface{}:
		if star, ok := t["*"].(map[string]interface{}); ok {
			from, _ := star["from"].(string)
			to, _ := star["to"].(string)
			return StorageChange{Kind: ChangeFromTo, From: common.HexToHash(from), To: common.HexToHash(to)}, true
		}
		if born, ok := t["+"].(string); ok {
			return StorageChange{Kind: ChangeBorn, To: common.HexToHash(born)}, true
		}
		if died, ok := t["-"].(string); ok {
			return StorageChange{Kind: ChangeDied, From: common.HexToHash(died)}, true
		}
	}
	return StorageChange{}, false
}

func (d *GethDriver) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return withRetry(ctx, "get_logs", traceCallTimeout, func(cctx context.Context) ([]types.Log, error) {
		return d.ec.FilterLogs(cctx, q)
	})
}

func (d *GethDriver) GetBlock(ctx context.Context, number *big.Int) (*types.Block, error) {
	return withRetry(ctx, "get_block", pointReadTimeout, func(cctx context.Context) (*types.Block, error) {
		return d.ec.BlockByNumber(cctx, number)
	})
}

func (d *GethDriver) GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, atBlock *big.Int) (common.Hash, error) {
	return withRetry(ctx, "get_storage_at", pointReadTimeout, func(cctx context.Context) (common.Hash, error) {
		b, err := d.ec.StorageAt(cctx, addr, slot, atBlock)
		if err != nil {
			return common.Hash{}, err
		}
		return common.BytesToHash(b), nil
	})
}

func (d *GethDriver) GetCode(ctx context.Context, addr common.Address, atBlock *big.Int) ([]byte, error) {
	return withRetry(ctx, "get_code", pointReadTimeout, func(cctx context.Context) ([]byte, error) {
		return d.ec.CodeAt(cctx, addr, atBlock)
	})
}

func (d *GethDriver) GetBalance(ctx context.Context, addr common.Address, atBlock *big.Int) (*big.Int, error) {
	return withRetry(ctx, "get_balance", pointReadTimeout, func(cctx context.Context) (*big.Int, error) {
		return d.ec.BalanceAt(cctx, addr, atBlock)
	})
}

func (d *GethDriver) GetTransactionCount(ctx context.Context, addr common.Address, atBlock *big.Int) (uint64, error) {
	return withRetry(ctx, "get_transaction_count", pointReadTimeout, func(cctx context.Context) (uint64, error) {
		return d.ec.NonceAt(cctx, addr, atBlock)
	})
}
