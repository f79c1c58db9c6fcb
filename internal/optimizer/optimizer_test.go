package optimizer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/bellwether-labs/sando/internal/obs"
)

// TestRun_ZeroInventoryReturnsNoOpportunity is testable property #3: for
// inventory=0 the optimizer returns "no opportunity" without spawning any
// simulation task, so a nil *evmsim.Simulator must never be dereferenced.
func TestRun_ZeroInventoryReturnsNoOpportunity(t *testing.T) {
	log := obs.NewLogger(gethlog.LvlCrit)

	recipe, err := Run(context.Background(), nil, RawIngredients{}, uint256.NewInt(0), common.Address{}, 100, log)
	require.NoError(t, err)
	require.Nil(t, recipe)

	recipe, err = Run(context.Background(), nil, RawIngredients{}, nil, common.Address{}, 100, log)
	require.NoError(t, err)
	require.Nil(t, recipe)
}

func TestPartition_ProducesSixteenBoundaryPoints(t *testing.T) {
	intervals := partition(big.NewInt(0), big.NewInt(150))
	require.Len(t, intervals, gridIntervals+1)
	require.Equal(t, int64(0), intervals[0].Int64())
	require.Equal(t, int64(150), intervals[gridIntervals].Int64())
}

func TestTerminate_OnCrossedBounds(t *testing.T) {
	require.True(t, terminate(big.NewInt(10), big.NewInt(5), big.NewInt(0)))
	require.False(t, terminate(big.NewInt(0), big.NewInt(1_000_000), big.NewInt(1)))
}
