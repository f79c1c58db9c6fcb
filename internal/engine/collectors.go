package engine

import (
	"context"
	"math/big"

	"github.com/bellwether-labs/sando/internal/chainapi"
	"github.com/bellwether-labs/sando/internal/obs"
)

// runBlockCollector subscribes to new heads and pushes a NewBlockEvent for
// each one, fetching the full block body so the strategy can read
// gas_used/gas_limit for its base-fee projection (spec.md §4.8 collectors).
func runBlockCollector(ctx context.Context, driver chainapi.Driver, out chan<- Event, log *obs.Logger) error {
	headers, sub, err := driver.SubscribeNewHeads(ctx)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case header, ok := <-headers:
			if !ok {
				return nil
			}
			block, err := driver.GetBlock(ctx, new(big.Int).Set(header.Number))
			if err != nil {
				log.Warn("block collector: get_block failed", "number", header.Number, "err", err)
				continue
			}
			select {
			case out <- NewBlockEvent{Block: block}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// runMempoolCollector subscribes to pending transactions with full bodies
// and pushes a NewTransactionEvent for each one.
func runMempoolCollector(ctx context.Context, driver chainapi.Driver, out chan<- Event, log *obs.Logger) error {
	txs, sub, err := driver.SubscribePendingTransactions(ctx)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case tx, ok := <-txs:
			if !ok {
				return nil
			}
			select {
			case out <- NewTransactionEvent{Tx: tx}:
			case <-ctx.Done():
				return ctx.Err()
			default:
				// Bounded channel back-pressure: drop stale mempool traffic
				// rather than block the collector (spec.md §4.8).
				log.Dropped(tx.Hash().Hex(), "event channel full, mempool tx dropped")
			}
		}
	}
}
