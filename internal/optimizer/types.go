package optimizer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/bellwether-labs/sando/internal/poolreg"
)

// RawIngredients is the candidate opportunity the filter assembles and the
// optimizer consumes (spec.md §3). StartEndToken is always WETH in this
// implementation's scope.
type RawIngredients struct {
	Meats             []*types.Transaction
	StartEndToken     common.Address
	IntermediaryToken common.Address
	Pool              poolreg.Pool
}

// SandoRecipe is the optimizer's output (spec.md §3): the two router-call
// payloads found by the grid search, their measured gas, the victims that
// survived replay, and the resulting revenue. AccessList fields start
// empty — the engine's safety re-simulation pass (Strategy.inspectSafety)
// fills them in (spec.md §4.7) before the bundle builder consumes the recipe.
type SandoRecipe struct {
	Pool              poolreg.Pool
	IntermediaryToken common.Address

	FrontrunInput   *uint256.Int
	FrontrunData    []byte
	FrontrunValue   *uint256.Int // WETH sent as tx.value on the frontrun leg; equals FrontrunInput.
	FrontrunGasUsed uint64

	BackrunInput   *uint256.Int
	BackrunData    []byte
	BackrunValue   *uint256.Int // WETH received back, carried as tx.value on the backrun leg.
	BackrunGasUsed uint64

	FrontrunAccessList types.AccessList
	BackrunAccessList  types.AccessList

	Meats []*types.Transaction

	Revenue     *uint256.Int
	TargetBlock uint64
}
