package safety

import (
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/stretchr/testify/require"
)

func TestInspector_CleanExecutionIsSafu(t *testing.T) {
	insp := NewInspector()
	insp.onOpcode(0, byte(vm.PUSH1), 0, 0, nil, nil, 0, nil)
	insp.onOpcode(0, byte(vm.SLOAD), 0, 0, nil, nil, 0, nil)
	insp.onOpcode(0, byte(vm.CALL), 0, 0, nil, nil, 0, nil)

	v := insp.Verdict()
	require.True(t, v.Safu)
	require.Empty(t, v.SuspiciousOpcodes)
}

func TestInspector_FlagsEnvironmentSensitiveOpcode(t *testing.T) {
	insp := NewInspector()
	insp.onOpcode(0, byte(vm.COINBASE), 0, 0, nil, nil, 0, nil)

	v := insp.Verdict()
	require.False(t, v.Safu)
	require.Contains(t, v.SuspiciousOpcodes, "COINBASE")
}

func TestInspector_GasVsCallHeuristicPrependsGas(t *testing.T) {
	insp := NewInspector()
	insp.onOpcode(0, byte(vm.GAS), 0, 0, nil, nil, 0, nil)
	insp.onOpcode(0, byte(vm.GAS), 0, 0, nil, nil, 0, nil)
	insp.onOpcode(0, byte(vm.CALL), 0, 0, nil, nil, 0, nil)

	v := insp.Verdict()
	require.False(t, v.Safu)
	require.Equal(t, "GAS", v.SuspiciousOpcodes[0])
}

func TestInspector_FewerGasThanCallsIsNormal(t *testing.T) {
	insp := NewInspector()
	insp.onOpcode(0, byte(vm.GAS), 0, 0, nil, nil, 0, nil)
	insp.onOpcode(0, byte(vm.CALL), 0, 0, nil, nil, 0, nil)
	insp.onOpcode(0, byte(vm.STATICCALL), 0, 0, nil, nil, 0, nil)

	v := insp.Verdict()
	require.True(t, v.Safu)
}
