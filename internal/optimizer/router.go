package optimizer

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/bellwether-labs/sando/internal/evmsim"
	"github.com/bellwether-labs/sando/internal/filter"
	"github.com/bellwether-labs/sando/internal/forkcache"
	"github.com/bellwether-labs/sando/internal/poolreg"
)

// RouterAddress and ControllerAddress are the fixed, non-colliding
// sentinel addresses the calculation router is installed at and called
// from, grounded on original_source's minimal_router/braindance.rs
// BRAINDANCE_ADDRESS/BRAINDANCE_CONTROLLER constants.
var (
	RouterAddress     = common.HexToAddress("0x5333000000000000000000000000000000ca1c")
	ControllerAddress = common.HexToAddress("0x5333000000000000000000000000000000c017")
)

// referenceWethFund is the fixed WETH balance the router is funded with
// before every search round; revenue is measured against this constant
// regardless of the actual WETH inventory under search (braindance.rs
// funds the router with a flat 200 WETH).
var referenceWethFund = new(uint256.Int).Mul(uint256.NewInt(200), uint256.NewInt(1_000_000_000_000_000_000))

// routerGasLimit is the fixed gas limit braindance.rs grants each router
// call during search.
const routerGasLimit = 700_000

// routerBytecodeHex is the compiled calculation-router artifact. The real
// deployment replaces this with the output of compiling the router
// contract described in spec.md §4.5's rationale; what matters to this
// package is only the call/return ABI in internal/evmsim/router.go. Kept as a runtime
// constant (rather than go:embed) so a deployment can override it via
// SetRouterBytecode without a rebuild.
const routerBytecodeHex = "6080604052600080fdfe"

var routerBytecode, _ = hex.DecodeString(routerBytecodeHex)

// SetRouterBytecode overrides the installed router bytecode, used by a
// deployment that ships its own compiled calculation-router artifact.
func SetRouterBytecode(code []byte) { routerBytecode = code }

// seedRouter installs the calculation router and its (zero-balance)
// controller into sim's overlay and credits the router with
// referenceWethFund WETH, per spec.md §4.5's "injected router" rationale.
func seedRouter(sim *evmsim.Simulator, weth common.Address) {
	sim.SeedAccount(RouterAddress, forkcache.AccountInfo{
		Balance: uint256.NewInt(0),
		Code:    routerBytecode,
	})
	sim.SeedAccount(ControllerAddress, forkcache.AccountInfo{
		Balance: uint256.NewInt(0),
	})
	slot := filter.WETHBalanceSlot(RouterAddress)
	sim.SeedStorage(weth, slot, *referenceWethFund)
}

// routerFamily maps the registry's pool family onto the router ABI's
// V2/V3 call shape.
func routerFamily(f poolreg.Family) evmsim.RouterFamily {
	if f == poolreg.FamilyV3 {
		return evmsim.RouterFamilyV3
	}
	return evmsim.RouterFamilyV2
}
