// Package safety implements the "salmonella" inspector of spec.md §4.6: a
// trace-level observer that flags environment-sensitive or unrecognized
// opcodes. The engine attaches it to its calculation-router replays of a
// recipe's frontrun and backrun; the sandwich contract's own execution is
// not inspected.
package safety

import (
	"strings"

	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
)

// suspiciousOpcodes is spec.md §4.6's fixed set: any occurrence flags the
// execution, because each one reads environment state that can differ
// between this simulation and the block the bundle actually lands in.
var suspiciousOpcodes = map[vm.OpCode]bool{
	vm.BALANCE:      true,
	vm.GASPRICE:     true,
	vm.EXTCODEHASH:  true,
	vm.BLOCKHASH:    true,
	vm.COINBASE:     true,
	vm.DIFFICULTY:   true,
	vm.GASLIMIT:     true,
	vm.SELFBALANCE:  true,
	vm.BASEFEE:      true,
	vm.CREATE:       true,
	vm.CREATE2:      true,
	vm.SELFDESTRUCT: true,
}

// Verdict is the classification an Inspector produces, per spec.md §4.6:
// Safu or NotSafu with the list of opcodes that triggered it.
type Verdict struct {
	Safu              bool
	SuspiciousOpcodes []string
}

// Inspector accumulates opcode observations for one execution and is
// attached to the EVM via its Hooks() method (spec.md §9: "the target EVM
// library must expose [an opcode-level inspection] hook" — core/tracing's
// live-tracer Hooks is go-ethereum's answer to that requirement).
type Inspector struct {
	suspicious []string
	seen       map[vm.OpCode]bool
	gasCount   int
	callCount  int
}

func NewInspector() *Inspector {
	return &Inspector{seen: make(map[vm.OpCode]bool)}
}

// Hooks returns the tracing.Hooks value the simulator's CallWithInspector
// attaches to the EVM.
func (i *Inspector) Hooks() *tracing.Hooks {
	return &tracing.Hooks{OnOpcode: i.onOpcode}
}

func (i *Inspector) onOpcode(pc uint64, opcode byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
	op := vm.OpCode(opcode)

	if suspiciousOpcodes[op] {
		if !i.seen[op] {
			i.seen[op] = true
			i.suspicious = append(i.suspicious, op.String())
		}
	} else if !isKnownOpcode(op) {
		name := "UNKNOWN"
		if !i.seen[op] {
			i.seen[op] = true
			i.suspicious = append(i.suspicious, name)
		}
	}

	switch op {
	case vm.GAS:
		i.gasCount++
	case vm.CALL, vm.DELEGATECALL, vm.STATICCALL:
		i.callCount++
	}
}

// Verdict applies spec.md §4.6's GAS/call heuristic and returns the final
// classification. The corrected rule (spec.md §9) consults the suspicious
// list *after* the heuristic has had a chance to prepend GAS to it, unlike
// the buggy source variant that checked emptiness before the mutation.
func (i *Inspector) Verdict() Verdict {
	if i.gasCount >= i.callCount && i.callCount > 0 {
		if !i.seen[vm.GAS] {
			i.seen[vm.GAS] = true
			i.suspicious = append([]string{"GAS"}, i.suspicious...)
		}
	}
	return Verdict{
		Safu:              len(i.suspicious) == 0,
		SuspiciousOpcodes: i.suspicious,
	}
}

// isKnownOpcode reports whether op is part of go-ethereum's defined
// instruction table; anything else is the spec's "UNKNOWN" bucket.
// OpCode.String() falls back to "opcode 0x.. not defined" for values with
// no mnemonic, which is the only signal go-ethereum exposes for this.
func isKnownOpcode(op vm.OpCode) bool {
	return !strings.Contains(op.String(), "not defined")
}
