// Package bundlebuild converts an optimizer.SandoRecipe into a fully
// signed, submittable bundle (spec.md §4.7).
package bundlebuild

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FiveByte is the lossy compact encoding spec.md §4.7 step 2 describes,
// grounded on original_source's huff_sando_interface/common/
// five_byte_encoder.rs FiveByteMetaData: find the smallest byte shift
// s in [0,32) such that amount>>(8s) fits in 4 bytes.
type FiveByte struct {
	FourBytes uint32
	ByteShift uint8
	ParamIdx  uint8
}

// EncodeFiveByte computes the (four_bytes, byte_shift) pair for amount at
// the given ABI parameter index. paramIdx selects where in the jump-dest
// payload layout the value lands, which in turn fixes the one-byte memory
// offset FinalizeBytes emits.
func EncodeFiveByte(amount *uint256.Int, paramIdx uint8) (FiveByte, error) {
	shift := uint8(0)
	for shift < 32 {
		shifted := new(uint256.Int).Rsh(amount, uint(8)*uint(shift))
		if shifted.BitLen() <= 32 {
			return FiveByte{FourBytes: uint32(shifted.Uint64()), ByteShift: shift, ParamIdx: paramIdx}, nil
		}
		shift++
	}
	return FiveByte{}, fmt.Errorf("bundlebuild: %s has no representable 4-byte shift", amount)
}

// Decode reverses the lossy encoding: four_bytes << (8*byte_shift). Low
// bits below the shift are permanently lost — this is the contract's
// native convention, not a bug (spec.md §8 testable property #6 bounds
// how much is lost).
func (f FiveByte) Decode() *uint256.Int {
	out := uint256.NewInt(uint64(f.FourBytes))
	return out.Lsh(out, uint(8)*uint(f.ByteShift))
}

// FinalizeBytes emits the 5 calldata bytes: a one-byte memory offset
// followed by the big-endian four-byte value (spec.md §4.7 step 2's
// "emit a one-byte memory offset ... followed by the four-byte value").
func (f FiveByte) FinalizeBytes() [5]byte {
	offset := uint8(32 + int(f.ParamIdx)*32 - int(f.ByteShift))
	var out [5]byte
	out[0] = offset
	out[1] = byte(f.FourBytes >> 24)
	out[2] = byte(f.FourBytes >> 16)
	out[3] = byte(f.FourBytes >> 8)
	out[4] = byte(f.FourBytes)
	return out
}
