// Package poolreg is the pool registry (spec.md §4.1): discovery of
// sandwichable pools from factory creation logs and a checkpointed on-disk
// cache. The touch-filter that decides whether a pending transaction is
// sandwichable, and in which direction, lives in package filter.
package poolreg

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

// Family distinguishes the two pool families spec.md §3 enumerates.
type Family uint8

const (
	FamilyV2 Family = iota
	FamilyV3
)

func (f Family) String() string {
	if f == FamilyV3 {
		return "v3"
	}
	return "v2"
}

// V2Fee is the fixed 30bps fee, in parts-per-million, every V2 pool uses.
const V2Fee = 3000

// Pool is the immutable registry record of spec.md §3. Token0/Token1 are
// canonicalized so Token0 < Token1 byte-wise, matching Uniswap's own pair
// ordering convention.
type Pool struct {
	Address common.Address
	Token0  common.Address
	Token1  common.Address
	Fee     uint32 // parts-per-million; fixed 3000 for V2, variable for V3
	Family  Family
}

// NewPool canonicalizes the token order and returns the immutable record.
func NewPool(address, tokenA, tokenB common.Address, fee uint32, family Family) Pool {
	t0, t1 := tokenA, tokenB
	if bytes.Compare(t0.Bytes(), t1.Bytes()) > 0 {
		t0, t1 = t1, t0
	}
	return Pool{Address: address, Token0: t0, Token1: t1, Fee: fee, Family: family}
}

// HasToken reports whether tok is one of the pool's two tokens.
func (p Pool) HasToken(tok common.Address) bool {
	return p.Token0 == tok || p.Token1 == tok
}

// OtherToken returns the non-weth side of the pair. Caller must ensure
// p.HasToken(weth) is true.
func (p Pool) OtherToken(weth common.Address) common.Address {
	if p.Token0 == weth {
		return p.Token1
	}
	return p.Token0
}

// WETHIsToken0 reports the canonical ordering used by the bundle builder's
// jump-dest lookup (spec.md §4.7).
func (p Pool) WETHIsToken0(weth common.Address) bool {
	return p.Token0 == weth
}
