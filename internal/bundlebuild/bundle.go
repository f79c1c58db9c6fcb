package bundlebuild

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/bellwether-labs/sando/internal/optimizer"
)

// Bundle is the final, ready-to-submit payload: signed frontrun, the
// victims it sandwiches (in observation order), then signed backrun
// (spec.md §4.7 "Bundle assembly").
type Bundle struct {
	Frontrun *types.Transaction
	Victims  []*types.Transaction
	Backrun  *types.Transaction

	TargetBlock         uint64
	SimulationBlock     uint64
	SimulationTimestamp uint64
}

// Params carries everything Build needs beyond the recipe itself: chain
// and searcher identity, and the next block's fee/number context the
// bribe computation and tx shape depend on.
type Params struct {
	ChainID       *big.Int
	SearcherKey   *ecdsa.PrivateKey
	SearcherNonce uint64
	WETH          common.Address
	Sandwich      common.Address
	NextBaseFee   *uint256.Int
	NextBlockNum  uint64
	NextBlockTime uint64
	HasDust       bool
}

// Build implements spec.md §4.7 end to end: encodes both legs' payloads,
// computes the bribe and fee caps, signs both EIP-1559 transactions with
// their captured (and filtered) access lists, and assembles the bundle.
func Build(recipe *optimizer.SandoRecipe, p Params) (*Bundle, error) {
	sender := crypto.PubkeyToAddress(p.SearcherKey.PublicKey)

	frontrunData, err := frontrunPayload(p.WETH, recipe.Pool, recipe.BackrunInput, 0)
	if err != nil {
		return nil, fmt.Errorf("bundlebuild: frontrun payload: %w", err)
	}
	backrunData, err := backrunPayload(p.WETH, recipe.IntermediaryToken, recipe.Pool, recipe.BackrunInput, 0)
	if err != nil {
		return nil, fmt.Errorf("bundlebuild: backrun payload: %w", err)
	}

	bribe, err := ComputeBribe(recipe.Revenue, recipe.FrontrunGasUsed, recipe.BackrunGasUsed, p.NextBaseFee, p.HasDust)
	if err != nil {
		return nil, fmt.Errorf("bundlebuild: bribe: %w", err)
	}

	frontrunValue := EncodeWethValue(recipe.FrontrunValue)
	backrunValue := EncodeWethValue(recipe.BackrunValue)

	frontrunTx, err := buildFrontrunTx(p.SearcherKey, p.ChainID, p.SearcherNonce, p.Sandwich, p.NextBaseFee, recipe.FrontrunGasUsed, frontrunValue, frontrunData, recipe.FrontrunAccessList, sender)
	if err != nil {
		return nil, fmt.Errorf("bundlebuild: sign frontrun: %w", err)
	}
	backrunTx, err := buildBackrunTx(p.SearcherKey, p.ChainID, p.SearcherNonce+1, p.Sandwich, bribe.MaxFee, recipe.BackrunGasUsed, backrunValue, backrunData, recipe.BackrunAccessList, sender)
	if err != nil {
		return nil, fmt.Errorf("bundlebuild: sign backrun: %w", err)
	}

	return &Bundle{
		Frontrun:            frontrunTx,
		Victims:             recipe.Meats,
		Backrun:             backrunTx,
		TargetBlock:         p.NextBlockNum,
		SimulationBlock:     p.NextBlockNum - 1,
		SimulationTimestamp: p.NextBlockTime,
	}, nil
}
