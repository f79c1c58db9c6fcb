package poolreg

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestNewPool_CanonicalizesTokenOrder(t *testing.T) {
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

	p1 := NewPool(common.HexToAddress("0x01"), weth, usdc, V2Fee, FamilyV2)
	p2 := NewPool(common.HexToAddress("0x01"), usdc, weth, V2Fee, FamilyV2)

	require.Equal(t, p1.Token0, p2.Token0)
	require.Equal(t, p1.Token1, p2.Token1)
	require.True(t, p1.HasToken(weth))
	require.True(t, p1.HasToken(usdc))
}

func TestPool_OtherToken(t *testing.T) {
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	p := NewPool(common.HexToAddress("0x01"), weth, usdc, V2Fee, FamilyV2)

	require.Equal(t, usdc, p.OtherToken(weth))
}

func TestPool_WETHIsToken0(t *testing.T) {
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	p := NewPool(common.HexToAddress("0x01"), weth, usdc, V2Fee, FamilyV2)

	if p.Token0 == weth {
		require.True(t, p.WETHIsToken0(weth))
	} else {
		require.False(t, p.WETHIsToken0(weth))
	}
}

func TestFamily_String(t *testing.T) {
	require.Equal(t, "v2", FamilyV2.String())
	require.Equal(t, "v3", FamilyV3.String())
}
