// Package engine is the single-process cooperative event loop of
// spec.md §4.8: collectors produce events, the strategy runs the
// filter+optimizer+builder pipeline and emits actions, executors drive the
// relay fan-out.
package engine

import "github.com/ethereum/go-ethereum/core/types"

// Event is anything a collector can push onto the shared event channel.
type Event interface{ isEvent() }

// NewBlockEvent carries a freshly mined block, per spec.md §4.8.
type NewBlockEvent struct {
	Block *types.Block
}

func (NewBlockEvent) isEvent() {}

// NewTransactionEvent carries one pending transaction observed on the
// mempool collector.
type NewTransactionEvent struct {
	Tx *types.Transaction
}

func (NewTransactionEvent) isEvent() {}

// Action is anything the strategy can emit for an executor to carry out.
type Action interface{ isAction() }

// SubmitToFlashbotsAction is spec.md §4.8's sole action: a fully built
// bundle ready for relay fan-out.
type SubmitToFlashbotsAction struct {
	Bundle *BuiltBundle
}

func (SubmitToFlashbotsAction) isAction() {}
