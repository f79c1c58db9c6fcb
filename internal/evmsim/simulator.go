package evmsim

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/bellwether-labs/sando/internal/forkcache"
)

// Coinbase is the distinguished sentinel coinbase address spec.md §4.4
// requires every simulator instance to configure, chosen to be obviously
// non-colliding with any real mainnet account.
var Coinbase = common.HexToAddress("0x5333000000000000000000000000000000dEaD")

// Call is the minimal transaction shape the simulator executes: enough to
// drive vm.EVM.Call without dragging in full core/types.Transaction
// decoding for calls the optimizer constructs itself (the "calculation
// router" calls of spec.md §4.5 never exist as real signed transactions).
type Call struct {
	From     common.Address
	To       common.Address
	Value    *uint256.Int
	Data     []byte
	GasLimit uint64
}

// Simulator is one per-simulation, single-threaded EVM instance layered on
// a forkcache.Overlay, per spec.md §4.4. Instances are cheap to clone:
// Fork() shares the underlying cache and takes its own overlay.
type Simulator struct {
	ctx       context.Context
	overlay   *forkcache.Overlay
	chainCfg  *params.ChainConfig
	blockNum  uint64
	timestamp uint64
	baseFee   *uint256.Int

	lastAccessList types.AccessList
}

func New(ctx context.Context, overlay *forkcache.Overlay, blockNum, timestamp uint64, baseFee *uint256.Int) *Simulator {
	return &Simulator{
		ctx:       ctx,
		overlay:   overlay,
		chainCfg:  params.MainnetChainConfig,
		blockNum:  blockNum,
		timestamp: timestamp,
		baseFee:   baseFee,
	}
}

// Fork returns a new Simulator for a child overlay, sharing this
// instance's block context — used by the optimizer to spawn one simulation
// per grid-search candidate without re-resolving block parameters each
// time.
func (s *Simulator) Fork() *Simulator {
	return New(s.ctx, s.overlay.Fork(), s.blockNum, s.timestamp, s.baseFee)
}

// SeedAccount installs an account directly into this simulator's overlay,
// bypassing the backend. Used by the optimizer to inject the calculation
// router's bytecode and its controller account ahead of a search round
// (spec.md §4.5 "Rationale for the injected router").
func (s *Simulator) SeedAccount(addr common.Address, info forkcache.AccountInfo) {
	s.overlay.SetAccount(addr, info)
}

// SeedStorage installs a storage slot directly, used to pre-fund the
// router's WETH balance to the fixed reference amount the optimizer
// measures revenue against.
func (s *Simulator) SeedStorage(addr common.Address, slot common.Hash, value uint256.Int) {
	s.overlay.SetStorage(addr, slot, value)
}

func (s *Simulator) blockContext() vm.BlockContext {
	return vm.BlockContext{
		CanTransfer: coreCanTransfer,
		Transfer:    coreTransfer,
		GetHash:     s.getHashFunc(),
		Coinbase:    Coinbase,
		BlockNumber: new(big.Int).SetUint64(s.blockNum),
		Time:        s.timestamp,
		Difficulty:  big.NewInt(0),
		BaseFee:     s.baseFee.ToBig(),
		GasLimit:    30_000_000,
	}
}

func (s *Simulator) getHashFunc() vm.GetHashFunc {
	return func(n uint64) common.Hash {
		h, err := s.overlay.BlockHash(s.ctx, n)
		if err != nil {
			panic(&dbError{err})
		}
		return h
	}
}

func coreCanTransfer(db vm.StateDB, addr common.Address, amount *uint256.Int) bool {
	return db.GetBalance(addr).Cmp(amount) >= 0
}

func coreTransfer(db vm.StateDB, from, to common.Address, amount *uint256.Int) {
	db.SubBalance(from, amount, tracing.BalanceChangeTransfer)
	db.AddBalance(to, amount, tracing.BalanceChangeTransfer)
}

func (s *Simulator) newEVM(hooks *tracing.Hooks) (*vm.EVM, *forkStateDB) {
	sdb := newForkStateDB(s.ctx, s.overlay)
	cfg := vm.Config{Tracer: hooks}
	txCtx := vm.TxContext{}
	evm := vm.NewEVM(s.blockContext(), txCtx, sdb, s.chainCfg, cfg)
	return evm, sdb
}

// CallRef is a read-only simulation: it runs against a child overlay and
// discards all writes, per spec.md §4.4.
func (s *Simulator) CallRef(call Call) (result ExecutionResult, err error) {
	scratch := s.Fork()
	return scratch.execute(call, nil)
}

// CallCommit mutates this Simulator's own overlay with the call's effects.
func (s *Simulator) CallCommit(call Call) (result ExecutionResult, err error) {
	return s.execute(call, nil)
}

// CallWithInspector runs call_commit with an opcode-level hook attached,
// per spec.md §4.4 — used by the safety inspector and the access-list
// tracer.
func (s *Simulator) CallWithInspector(call Call, hooks *tracing.Hooks) (result ExecutionResult, err error) {
	return s.execute(call, hooks)
}

func (s *Simulator) execute(call Call, hooks *tracing.Hooks) (result ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			if de, ok := r.(*dbError); ok {
				err = &EvmError{Err: de.err}
				return
			}
			panic(r)
		}
	}()

	evm, sdb := s.newEVM(hooks)
	sdb.txHash = crypto.Keccak256Hash(call.Data, call.To.Bytes(), []byte{byte(s.blockNum)})

	nonce := sdb.GetNonce(call.From)
	sdb.SetNonce(call.From, nonce+1)

	value := call.Value
	if value == nil {
		value = uint256.NewInt(0)
	}
	ret, leftOverGas, callErr := evm.Call(vm.AccountRef(call.From), call.To, call.Data, call.GasLimit, value)
	gasUsed := call.GasLimit - leftOverGas
	s.lastAccessList = sdb.buildAccessList()

	if callErr == nil {
		return success(gasUsed, ret), nil
	}
	if callErr == vm.ErrExecutionReverted {
		return revert(ret), nil
	}
	return halt(callErr.Error()), nil
}

// LastAccessList returns the EIP-2930 access list the EVM accumulated
// during the most recent call on this Simulator — every address and slot
// the SLOAD/SSTORE/CALL-family warm/cold bookkeeping touched, per
// spec.md §4.7's access-list tracer requirement. The caller (bundlebuild)
// is expected to exclude the sender, the sandwich contract, and
// precompiles before attaching it to a transaction.
func (s *Simulator) LastAccessList() types.AccessList {
	return s.lastAccessList
}
