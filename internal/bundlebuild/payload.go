package bundlebuild

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/bellwether-labs/sando/internal/poolreg"
)

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint24Type, _  = abi.NewType("uint24", "", nil)
	poolKeyArgs    = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: uint24Type}}
)

// poolKeyHash is keccak256(abi.encode(token0, token1, fee)), the V3 pool-key
// identifier the Huff contract's dispatcher re-derives the pool address
// from (spec.md §4.7 step 4).
func poolKeyHash(p poolreg.Pool) (common.Hash, error) {
	packed, err := poolKeyArgs.Pack(p.Token0, p.Token1, p.Fee)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// buildPayload concatenates jump_dest || pool_addr || [input_token_addr?] ||
// pool_key_hash_if_v3 || [five_bytes], per spec.md §4.7 step 4. inputToken is
// only included for backrun payloads (isBackrun true); it is the token the
// backrun call sells back into WETH. A V3 frontrun carries its amount solely
// in tx.value and has no five-byte suffix at all; fb is nil in that case.
func buildPayload(p poolreg.Pool, jd byte, isBackrun bool, inputToken common.Address, fb *FiveByte) ([]byte, error) {
	out := make([]byte, 0, 1+20+20+32+5)
	out = append(out, jd)
	out = append(out, p.Address.Bytes()...)
	if isBackrun {
		out = append(out, inputToken.Bytes()...)
	}
	if p.Family == poolreg.FamilyV3 {
		hash, err := poolKeyHash(p)
		if err != nil {
			return nil, err
		}
		out = append(out, hash.Bytes()...)
	}
	if fb != nil {
		fbBytes := fb.FinalizeBytes()
		out = append(out, fbBytes[:]...)
	}
	return out, nil
}

// frontrunPayload builds the frontrun leg's calldata: it sells amountIn of
// WETH for the pool's other token, so the jump-dest is keyed by the
// family/frontrun/WETH-ordering of this pool. V3 frontrun omits the
// five-byte amount suffix entirely, since the dispatcher reads the amount
// from tx.value instead (spec.md §4.7 step 3).
func frontrunPayload(weth common.Address, p poolreg.Pool, amountIn *uint256.Int, paramIdx uint8) ([]byte, error) {
	jd := JumpDestFor(p.Family, legFrontrun, p.WETHIsToken0(weth))
	if p.Family == poolreg.FamilyV3 {
		return buildPayload(p, jd, false, common.Address{}, nil)
	}
	fb, err := EncodeFiveByte(amountIn, paramIdx)
	if err != nil {
		return nil, err
	}
	return buildPayload(p, jd, false, common.Address{}, &fb)
}

// backrunPayload builds the backrun leg's calldata: it sells the
// intermediary token back for WETH.
func backrunPayload(weth, intermediary common.Address, p poolreg.Pool, amountIn *uint256.Int, paramIdx uint8) ([]byte, error) {
	jd := JumpDestFor(p.Family, legBackrun, p.WETHIsToken0(weth))
	fb, err := EncodeFiveByte(amountIn, paramIdx)
	if err != nil {
		return nil, err
	}
	return buildPayload(p, jd, true, intermediary, &fb)
}
