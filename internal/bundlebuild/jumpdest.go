package bundlebuild

import "github.com/bellwether-labs/sando/internal/poolreg"

// jumpDestNames mirrors original_source's huff_sando_interface/common's
// FUNCTION_NAMES table: jump_dest = index*5 + 0x05, the fixed spacing
// between entry points the Huff sandwich contract's dispatcher uses.
var jumpDestNames = [...]string{
	"v2_backrun0",
	"v2_frontrun0",
	"v2_backrun1",
	"v2_frontrun1",
	"v3_backrun0",
	"v3_frontrun0",
	"v3_backrun1",
	"v3_frontrun1",
}

const jumpDestBase = 0x05
const jumpDestStride = 5

// jumpDest looks up the one-byte jump destination for name, per spec.md
// §4.7 step 1: "lookup table keyed by (family, side, WETH < other_token)".
func jumpDest(name string) byte {
	for i, n := range jumpDestNames {
		if n == name {
			return byte(i*jumpDestStride + jumpDestBase)
		}
	}
	return 0x00 // unreachable for any name built by legFunctionName
}

// leg identifies which half of the sandwich a jump-dest lookup is for.
type leg string

const (
	legFrontrun leg = "frontrun"
	legBackrun  leg = "backrun"
)

// legFunctionName selects the jump-dest table key from the pool family,
// leg (frontrun/backrun), and the canonical WETH-vs-other-token ordering:
// v2.rs/v3.rs pick suffix "0" when WETH is the lower-sorted token of the
// pair the leg is trading against, "1" otherwise.
func legFunctionName(family poolreg.Family, l leg, wethIsLower bool) string {
	suffix := "1"
	if wethIsLower {
		suffix = "0"
	}
	return family.String() + "_" + string(l) + suffix
}

// JumpDestFor is the lookup the bundle builder calls directly: it resolves
// the one-byte jump destination for a given leg of a given pool.
func JumpDestFor(family poolreg.Family, l leg, wethIsLower bool) byte {
	return jumpDest(legFunctionName(family, l, wethIsLower))
}
