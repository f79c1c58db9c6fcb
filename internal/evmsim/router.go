package evmsim

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// routerABIJSON is the deterministic "calculation router" contract's ABI
// (spec.md §4.5 rationale; grounded on original_source's
// minimal_router/braindance.rs + braindance_interface.rs). The router's
// bytecode is deployed into every simulation overlay ahead of the search
// (see optimizer.seedRouter); only its call shape lives here.
const routerABIJSON = `[
  {"type":"function","name":"swapV2","stateMutability":"nonpayable",
   "inputs":[{"name":"amountIn","type":"uint256"},{"name":"pool","type":"address"},
             {"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"}],
   "outputs":[{"name":"amountOut","type":"uint256"},{"name":"realAfterBalance","type":"uint256"}]},
  {"type":"function","name":"swapV3","stateMutability":"nonpayable",
   "inputs":[{"name":"amountIn","type":"int256"},{"name":"pool","type":"address"},
             {"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"}],
   "outputs":[{"name":"amountOut","type":"uint256"},{"name":"realAfterBalance","type":"uint256"}]}
]`

var routerABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic("evmsim: invalid router ABI: " + err.Error())
	}
	routerABI = parsed
}

// EncodeRouterSwap builds the calldata for one frontrun/backrun leg, using
// the V2 or V3 call shape spec.md §4.5 specifies.
func EncodeRouterSwap(family RouterFamily, amountIn *big.Int, pool, tokenIn, tokenOut common.Address) ([]byte, error) {
	name := "swapV2"
	if family == RouterFamilyV3 {
		name = "swapV3"
	}
	return routerABI.Pack(name, amountIn, pool, tokenIn, tokenOut)
}

// DecodeRouterSwap unpacks (amountOut, realAfterBalance) from a router call
// return value, per spec.md §4.5 "Decode the return as (amount_out,
// real_after_balance)".
func DecodeRouterSwap(family RouterFamily, output []byte) (amountOut, realAfterBalance *big.Int, err error) {
	name := "swapV2"
	if family == RouterFamilyV3 {
		name = "swapV3"
	}
	vals, err := routerABI.Unpack(name, output)
	if err != nil {
		return nil, nil, err
	}
	return vals[0].(*big.Int), vals[1].(*big.Int), nil
}

// RouterFamily mirrors poolreg.Family without importing it, keeping
// evmsim free of a dependency on the registry package.
type RouterFamily uint8

const (
	RouterFamilyV2 RouterFamily = iota
	RouterFamilyV3
)
