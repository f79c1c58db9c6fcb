package bundlebuild

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// gasHeadroomNum/gasHeadroomDen give the ⌈gas_used · 10/7⌉ (gas used ≈ 70% of the limit)
// computed gas limit of spec.md §4.7, following the spec's literal ceiling
// wording rather than original_source's floor-dividing approximation.
const (
	gasHeadroomNum = 10
	gasHeadroomDen = 7
)

func gasLimitWithHeadroom(gasUsed uint64) uint64 {
	return (gasUsed*gasHeadroomNum + gasHeadroomDen - 1) / gasHeadroomDen
}

// filterAccessList drops the sender, the sandwich contract itself, and any
// precompile address from a captured access list, per spec.md §4.7's
// "access-list acquisition" paragraph.
func filterAccessList(list types.AccessList, sender, sandwich common.Address) types.AccessList {
	out := make(types.AccessList, 0, len(list))
	for _, entry := range list {
		if entry.Address == sender || entry.Address == sandwich {
			continue
		}
		if _, ok := vm.PrecompiledContractsCancun[entry.Address]; ok {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// legTx is the common shape of one signed frontrun/backrun EIP-1559
// transaction (spec.md §4.7 "Transaction shape").
type legTx struct {
	Nonce        uint64
	MaxFeePerGas *uint256.Int
	MaxTip       *uint256.Int
	GasLimit     uint64
	To           common.Address
	Value        *uint256.Int
	Data         []byte
	AccessList   types.AccessList
}

// signLeg builds and signs the EIP-1559 transaction for one leg using the
// searcher's private key, against chainID.
func signLeg(key *ecdsa.PrivateKey, chainID *big.Int, leg legTx) (*types.Transaction, error) {
	inner := &types.DynamicFeeTx{
		ChainID:    chainID,
		Nonce:      leg.Nonce,
		GasTipCap:  leg.MaxTip.ToBig(),
		GasFeeCap:  leg.MaxFeePerGas.ToBig(),
		Gas:        leg.GasLimit,
		To:         &leg.To,
		Value:      leg.Value.ToBig(),
		Data:       leg.Data,
		AccessList: leg.AccessList,
	}
	signer := types.LatestSignerForChainID(chainID)
	return types.SignNewTx(key, signer, inner)
}

// buildFrontrunTx assembles the frontrun leg: max_priority_fee = 0,
// max_fee = base_fee (spec.md §4.7 "Frontrun has max_priority_fee = 0 and
// max_fee = base_fee").
func buildFrontrunTx(key *ecdsa.PrivateKey, chainID *big.Int, nonce uint64, sandwich common.Address, baseFee *uint256.Int, gasUsed uint64, value *uint256.Int, data []byte, accessList types.AccessList, sender common.Address) (*types.Transaction, error) {
	return signLeg(key, chainID, legTx{
		Nonce:        nonce,
		MaxFeePerGas: baseFee,
		MaxTip:       uint256.NewInt(0),
		GasLimit:     gasLimitWithHeadroom(gasUsed),
		To:           sandwich,
		Value:        value,
		Data:         data,
		AccessList:   filterAccessList(accessList, sender, sandwich),
	})
}

// buildBackrunTx assembles the backrun leg: max_priority_fee = max_fee,
// max_fee_per_gas = max_fee (spec.md §4.7's computed bribe fee cap).
func buildBackrunTx(key *ecdsa.PrivateKey, chainID *big.Int, nonce uint64, sandwich common.Address, maxFee *uint256.Int, gasUsed uint64, value *uint256.Int, data []byte, accessList types.AccessList, sender common.Address) (*types.Transaction, error) {
	return signLeg(key, chainID, legTx{
		Nonce:        nonce,
		MaxFeePerGas: maxFee,
		MaxTip:       maxFee,
		GasLimit:     gasLimitWithHeadroom(gasUsed),
		To:           sandwich,
		Value:        value,
		Data:         data,
		AccessList:   filterAccessList(accessList, sender, sandwich),
	})
}
