package blockinfo

import "sync/atomic"

type snap struct {
	latest Info
	next   Info
}

// atomicInfo is a tiny alias around atomic.Pointer[snap] so block.go reads
// cleanly; split out because Go's generic atomic.Pointer needs the type
// parameter spelled out at the declaration site.
type atomicInfo struct {
	p atomic.Pointer[snap]
}

func (a *atomicInfo) Store(s *snap) { a.p.Store(s) }
func (a *atomicInfo) Load() *snap   { return a.p.Load() }
