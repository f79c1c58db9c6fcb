// Package evmsim is the EVM integration glue of spec.md §4.4: a thin
// adapter presenting forkcache.Overlay through go-ethereum's own
// core/vm.StateDB interface, so the simulator can drive the real
// core/vm.EVM rather than a hand-rolled interpreter.
package evmsim

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/bellwether-labs/sando/internal/forkcache"
)

// forkStateDB implements core/vm.StateDB on top of one simulation's
// forkcache.Overlay. It also tracks the journal of snapshots, logs, and
// access-list/refund bookkeeping the EVM interpreter expects from a
// StateDB — everything that is simulation-local stays here; anything that
// requires an upstream read goes through the Overlay.
type forkStateDB struct {
	ctx     context.Context
	overlay *forkcache.Overlay

	refund uint64
	logs   []*types.Log
	txHash common.Hash
	txIdx  int

	accessedAddr  map[common.Address]struct{}
	accessedSlot  map[common.Address]map[common.Hash]struct{}

	snapshots []snapshotFrame
	preimages map[common.Hash][]byte
}

// snapshotFrame pairs an overlay snapshot with the refund counter at the
// time Snapshot() was called, since EIP-3529 refunds are also rolled back
// on a reverted call.
type snapshotFrame struct {
	overlay forkcache.OverlaySnapshot
	refund  uint64
}

func newForkStateDB(ctx context.Context, overlay *forkcache.Overlay) *forkStateDB {
	return &forkStateDB{
		ctx:           ctx,
		overlay:       overlay,
		accessedAddr:  make(map[common.Address]struct{}),
		accessedSlot:  make(map[common.Address]map[common.Hash]struct{}),
		preimages:     make(map[common.Hash][]byte),
	}
}

func (s *forkStateDB) must(err error) {
	if err != nil {
		panic(&dbError{err})
	}
}

// dbError is recovered at the top of Simulator.execute and converted into
// EvmError (spec.md §4.4 "Errors from the underlying database propagate as
// a distinct EvmError").
type dbError struct{ err error }

func (s *forkStateDB) CreateAccount(addr common.Address) {
	s.overlay.CreateAccount(addr)
}

func (s *forkStateDB) CreateContract(addr common.Address) {}

func (s *forkStateDB) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	s.must(err)
	bal := new(uint256.Int).Sub(info.Balance, amount)
	info.Balance = bal
	s.overlay.SetAccount(addr, info)
}

func (s *forkStateDB) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	s.must(err)
	bal := new(uint256.Int).Add(info.Balance, amount)
	info.Balance = bal
	s.overlay.SetAccount(addr, info)
}

func (s *forkStateDB) GetBalance(addr common.Address) *uint256.Int {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	s.must(err)
	if info.Balance == nil {
		return uint256.NewInt(0)
	}
	return info.Balance
}

func (s *forkStateDB) GetNonce(addr common.Address) uint64 {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	s.must(err)
	return info.Nonce
}

func (s *forkStateDB) SetNonce(addr common.Address, nonce uint64) {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	s.must(err)
	info.Nonce = nonce
	s.overlay.SetAccount(addr, info)
}

func (s *forkStateDB) GetCodeHash(addr common.Address) common.Hash {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	s.must(err)
	return info.CodeHash
}

func (s *forkStateDB) GetCode(addr common.Address) []byte {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	s.must(err)
	return info.Code
}

func (s *forkStateDB) SetCode(addr common.Address, code []byte) {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	s.must(err)
	info.Code = code
	s.overlay.SetAccount(addr, info)
}

func (s *forkStateDB) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *forkStateDB) AddRefund(gas uint64)  { s.refund += gas }
func (s *forkStateDB) SubRefund(gas uint64) {
	if gas > s.refund {
		s.refund = 0
		return
	}
	s.refund -= gas
}
func (s *forkStateDB) GetRefund() uint64 { return s.refund }

func (s *forkStateDB) GetCommittedState(addr common.Address, slot common.Hash) common.Hash {
	v, err := s.overlay.GetStorage(s.ctx, addr, slot)
	s.must(err)
	return common.Hash(v.Bytes32())
}

func (s *forkStateDB) GetState(addr common.Address, slot common.Hash) common.Hash {
	v, err := s.overlay.GetStorage(s.ctx, addr, slot)
	s.must(err)
	return common.Hash(v.Bytes32())
}

func (s *forkStateDB) SetState(addr common.Address, slot common.Hash, value common.Hash) {
	v := new(uint256.Int).SetBytes(value.Bytes())
	s.overlay.SetStorage(addr, slot, *v)
}

func (s *forkStateDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash{}
}
func (s *forkStateDB) SetTransientState(addr common.Address, key, value common.Hash) {}

func (s *forkStateDB) SelfDestruct(addr common.Address) {
	s.overlay.SelfDestruct(addr)
}
func (s *forkStateDB) HasSelfDestructed(addr common.Address) bool { return s.overlay.HasSelfDestructed(addr) }
func (s *forkStateDB) Selfdestruct6780(addr common.Address)       { s.SelfDestruct(addr) }

func (s *forkStateDB) Exist(addr common.Address) bool {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	if err != nil {
		return false
	}
	return info.Nonce != 0 || (info.Balance != nil && !info.Balance.IsZero()) || len(info.Code) != 0
}

func (s *forkStateDB) Empty(addr common.Address) bool {
	info, err := s.overlay.GetAccount(s.ctx, addr)
	if err != nil {
		return true
	}
	return info.Nonce == 0 && (info.Balance == nil || info.Balance.IsZero()) && len(info.Code) == 0
}

func (s *forkStateDB) AddressInAccessList(addr common.Address) bool {
	_, ok := s.accessedAddr[addr]
	return ok
}

func (s *forkStateDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOK := s.AddressInAccessList(addr)
	slots, ok := s.accessedSlot[addr]
	if !ok {
		return addrOK, false
	}
	_, slotOK := slots[slot]
	return addrOK, slotOK
}

func (s *forkStateDB) AddAddressToAccessList(addr common.Address) {
	s.accessedAddr[addr] = struct{}{}
}

func (s *forkStateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accessedAddr[addr] = struct{}{}
	slots, ok := s.accessedSlot[addr]
	if !ok {
		slots = make(map[common.Hash]struct{})
		s.accessedSlot[addr] = slots
	}
	slots[slot] = struct{}{}
}

// buildAccessList materializes the warm-address/warm-slot bookkeeping the
// EVM accumulated over the call via AddAddressToAccessList/
// AddSlotToAccessList into an EIP-2930 types.AccessList.
func (s *forkStateDB) buildAccessList() types.AccessList {
	list := make(types.AccessList, 0, len(s.accessedAddr))
	for addr := range s.accessedAddr {
		entry := types.AccessTuple{Address: addr}
		if slots, ok := s.accessedSlot[addr]; ok {
			entry.StorageKeys = make([]common.Hash, 0, len(slots))
			for slot := range slots {
				entry.StorageKeys = append(entry.StorageKeys, slot)
			}
		}
		list = append(list, entry)
	}
	return list
}

func (s *forkStateDB) Prepare(rules params.Rules, sender, coinbase common.Address, dst *common.Address, precompiles []common.Address, list types.AccessList) {
	s.accessedAddr = make(map[common.Address]struct{})
	s.accessedSlot = make(map[common.Address]map[common.Hash]struct{})
	s.AddAddressToAccessList(sender)
	if dst != nil {
		s.AddAddressToAccessList(*dst)
	}
	for _, p := range precompiles {
		s.AddAddressToAccessList(p)
	}
	for _, entry := range list {
		s.AddAddressToAccessList(entry.Address)
		for _, key := range entry.StorageKeys {
			s.AddSlotToAccessList(entry.Address, key)
		}
	}
	s.AddAddressToAccessList(coinbase)
}

func (s *forkStateDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(s.snapshots) {
		return
	}
	frame := s.snapshots[id]
	s.overlay.RevertTo(frame.overlay)
	s.refund = frame.refund
	s.snapshots = s.snapshots[:id]
}

func (s *forkStateDB) Snapshot() int {
	s.snapshots = append(s.snapshots, snapshotFrame{overlay: s.overlay.Snapshot(), refund: s.refund})
	return len(s.snapshots) - 1
}

func (s *forkStateDB) AddLog(log *types.Log) {
	log.TxHash = s.txHash
	log.TxIndex = uint(s.txIdx)
	log.Index = uint(len(s.logs))
	s.logs = append(s.logs, log)
}

func (s *forkStateDB) AddPreimage(hash common.Hash, preimage []byte) {
	s.preimages[hash] = preimage
}

func (s *forkStateDB) Logs() []*types.Log { return s.logs }

func (s *forkStateDB) GetStorageRoot(addr common.Address) common.Hash { return common.Hash{} }

func (s *forkStateDB) PointCache() interface{} { return nil }

func (s *forkStateDB) Witness() interface{} { return nil }
