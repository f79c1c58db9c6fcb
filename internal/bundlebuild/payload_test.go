package bundlebuild

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/bellwether-labs/sando/internal/poolreg"
)

var (
	payloadWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	payloadUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

// TestFrontrunPayload_V3OmitsFiveByteSuffix is spec.md §4.7 step 4: a V3
// frontrun carries its amount solely in tx.value, so its payload is exactly
// jump_dest || pool_addr || pool_key_hash, with no five-byte suffix.
func TestFrontrunPayload_V3OmitsFiveByteSuffix(t *testing.T) {
	pool := poolreg.NewPool(common.HexToAddress("0x01"), payloadWETH, payloadUSDC, 3000, poolreg.FamilyV3)

	got, err := frontrunPayload(payloadWETH, pool, uint256.NewInt(1_000_000), 0)
	require.NoError(t, err)
	require.Len(t, got, 1+20+32)

	hash, err := poolKeyHash(pool)
	require.NoError(t, err)
	require.Equal(t, pool.Address.Bytes(), got[1:21])
	require.Equal(t, hash.Bytes(), got[21:53])
}

// TestFrontrunPayload_V2KeepsFiveByteSuffix verifies the V3 special case
// doesn't leak into V2, which still carries its amount as a five-byte
// calldata suffix.
func TestFrontrunPayload_V2KeepsFiveByteSuffix(t *testing.T) {
	pool := poolreg.NewPool(common.HexToAddress("0x01"), payloadWETH, payloadUSDC, poolreg.V2Fee, poolreg.FamilyV2)

	got, err := frontrunPayload(payloadWETH, pool, uint256.NewInt(1_000_000), 0)
	require.NoError(t, err)
	require.Len(t, got, 1+20+5)
}

// TestBackrunPayload_V3KeepsFiveByteSuffix verifies only the V3 frontrun
// leg loses its suffix; V3 backrun still carries one.
func TestBackrunPayload_V3KeepsFiveByteSuffix(t *testing.T) {
	pool := poolreg.NewPool(common.HexToAddress("0x01"), payloadWETH, payloadUSDC, 3000, poolreg.FamilyV3)

	got, err := backrunPayload(payloadWETH, payloadUSDC, pool, uint256.NewInt(1_000_000), 0)
	require.NoError(t, err)
	require.Len(t, got, 1+20+20+32+5)
}
