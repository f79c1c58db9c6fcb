package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNonceTracker_ReserveIsIdempotentUntilConfirmed(t *testing.T) {
	n := NewNonceTracker(5)

	fr1, br1 := n.Reserve()
	fr2, br2 := n.Reserve()
	require.Equal(t, fr1, fr2)
	require.Equal(t, br1, br2)
	require.Equal(t, uint64(5), fr1)
	require.Equal(t, uint64(6), br1)

	n.ConfirmIncluded()
	fr3, br3 := n.Reserve()
	require.Equal(t, uint64(7), fr3)
	require.Equal(t, uint64(8), br3)
}
