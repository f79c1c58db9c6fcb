package bundlebuild

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bellwether-labs/sando/internal/poolreg"
)

func TestJumpDestFor_MatchesTableOrdering(t *testing.T) {
	cases := []struct {
		family      poolreg.Family
		l           leg
		wethIsLower bool
		want        byte
	}{
		{poolreg.FamilyV2, legBackrun, true, 5},
		{poolreg.FamilyV2, legFrontrun, true, 10},
		{poolreg.FamilyV2, legBackrun, false, 15},
		{poolreg.FamilyV2, legFrontrun, false, 20},
		{poolreg.FamilyV3, legBackrun, true, 25},
		{poolreg.FamilyV3, legFrontrun, true, 30},
		{poolreg.FamilyV3, legBackrun, false, 35},
		{poolreg.FamilyV3, legFrontrun, false, 40},
	}
	for _, c := range cases {
		got := JumpDestFor(c.family, c.l, c.wethIsLower)
		require.Equal(t, c.want, got, "family=%v leg=%v wethIsLower=%v", c.family, c.l, c.wethIsLower)
	}
}
