package blockinfo

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestNextBaseFee_EIP1559Rule(t *testing.T) {
	cases := []struct {
		name             string
		base             uint64
		gasUsed, gasLimit uint64
		want             uint64
	}{
		{"exactly at target", 1000, 15_000_000, 30_000_000, 1000},
		{"above target", 1000, 30_000_000, 30_000_000, 1000 + 1000*15_000_000/15_000_000/8},
		{"below target", 1000, 0, 30_000_000, 1000 - 1000*15_000_000/15_000_000/8},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NextBaseFee(uint256.NewInt(c.base), c.gasUsed, c.gasLimit)
			require.Equal(t, c.want, got.Uint64())
		})
	}
}

func TestManager_ProjectsNextBlock(t *testing.T) {
	m := NewManager()
	gasUsed, gasLimit := uint64(20_000_000), uint64(30_000_000)
	m.Update(Info{
		Number:        100,
		Timestamp:     1_000_000,
		BaseFeePerGas: uint256.NewInt(1_000_000_000),
		GasUsed:       &gasUsed,
		GasLimit:      &gasLimit,
	})

	next, ok := m.Next()
	require.True(t, ok)
	require.Equal(t, uint64(101), next.Number)
	require.Equal(t, uint64(1_000_012), next.Timestamp)
	require.True(t, next.IsProjected())
	require.Equal(t, NextBaseFee(uint256.NewInt(1_000_000_000), gasUsed, gasLimit), next.BaseFeePerGas)
}

func TestManager_NextBeforeUpdate(t *testing.T) {
	m := NewManager()
	_, ok := m.Next()
	require.False(t, ok, "Next() must report missing projection before the first Update")
}
