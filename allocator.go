// Package tinyvm is the façade of the whole library: one entry point per
// allocator instance wiring Config, a backing store.Store, the pagecache
// multi-tier cache, the addr free-list, the stats sidecar, and tvlog
// together, and exposing Start/Stop and typed Alloc/Free on top of vptr.
//
// The wiring pattern (one constructor, one Start that brings every
// subsystem up in sequence) follows biscuit/src/kernel/chentry.go's own
// entry point, which brings up Phys_init, the VM subsystem, and the
// filesystem in the same style.
package tinyvm

import (
	"tinyvm/addr"
	"tinyvm/pagecache"
	"tinyvm/stats"
	"tinyvm/store"
	"tinyvm/tvlog"
	"tinyvm/vptr"
)

// Allocator is one paging instance: a Config, a backing store, and the
// pagecache/addr/stats machinery built on Start. It is not safe for
// concurrent use: callers on interrupt-driven platforms must disable
// interrupts around any call that can mutate cache state.
type Allocator struct {
	cfg     Config
	store   store.Store
	cache   *pagecache.Cache
	free    *addr.FreeList
	stats   stats.Counters
	log     *tvlog.Logger
	started bool
}

// New builds an Allocator over backing, configured by cfg. log may be nil
// (silent). Start must be called before any I/O.
func New(cfg Config, backing store.Store, log *tvlog.Logger) *Allocator {
	if log == nil {
		log = tvlog.Nop()
	}
	return &Allocator{cfg: cfg, store: backing, log: log}
}

// Start initializes the backing store, builds the page cache over it, and
// reinitializes the free list to span the whole usable pool, whose size is
// the store's reported Size. No prior pool state is recovered: every Start formats a
// fresh free list, even over a store that already holds data from an
// earlier run.
func (a *Allocator) Start() error {
	if err := a.store.Start(); err != nil {
		a.log.Errorf("backing store start failed", "err", err)
		return err
	}
	poolSize := a.store.Size()
	sizes := pagecache.TierSizes{
		SmallPage:   a.cfg.SmallPageSize,
		SmallSlots:  a.cfg.SmallSlots,
		MediumPage:  a.cfg.MediumPageSize,
		MediumSlots: a.cfg.MediumSlots,
		BigPage:     a.cfg.BigPageSize,
		BigSlots:    a.cfg.BigSlots,
	}
	a.cache = pagecache.New(a.store, sizes, &a.stats, a.log)
	a.free = addr.New(a.cache, poolSize)
	if err := a.free.Init(); err != nil {
		a.log.Errorf("free list init failed", "err", err)
		return err
	}
	a.started = true
	a.log.Debugf("allocator started", "pool_size", poolSize)
	return nil
}

// Stop flushes every dirty slot and releases the backing store. The free
// list itself is discarded from memory, but it remains serialized in the
// backing store since its headers live in-band.
func (a *Allocator) Stop() error {
	if !a.started {
		return nil
	}
	if err := a.cache.Flush(); err != nil {
		a.log.Errorf("flush on stop failed", "err", err)
		return err
	}
	if err := a.store.Stop(); err != nil {
		a.log.Errorf("backing store stop failed", "err", err)
		return err
	}
	a.started = false
	return nil
}

// ReadAt and WriteAt satisfy vptr.Backend: plain range I/O through the page
// cache, which already loops across page and tier boundaries.
func (a *Allocator) ReadAt(vaddr uint32, dst []byte) error  { return a.cache.ReadRange(vaddr, dst) }
func (a *Allocator) WriteAt(vaddr uint32, src []byte) error { return a.cache.WriteRange(vaddr, src) }

// LockBig satisfies vptr.Backend: scoped locks always pin a range within
// the big tier, clipped to the containing big page.
func (a *Allocator) LockBig(vaddr uint32, n uint32) (data []byte, offset uint32, actualLen uint32, err error) {
	actual := a.cache.ClipToPage(pagecache.Big, vaddr, n)
	data, offset, err = a.cache.MakeDataLock(pagecache.Big, vaddr)
	if err != nil {
		return nil, 0, 0, err
	}
	return data, offset, actual, nil
}

// UnlockBig satisfies vptr.Backend.
func (a *Allocator) UnlockBig(vaddr uint32, markDirty bool) {
	a.cache.ReleaseLock(pagecache.Big, vaddr, markDirty)
}

// Flush writes every dirty page back to the backing store without
// unmapping anything.
func (a *Allocator) Flush() error { return a.cache.Flush() }

// ClearPages flushes and unmaps every unlocked page.
func (a *Allocator) ClearPages() error { return a.cache.ClearPages() }

// Stats returns a point-in-time snapshot of the allocator's statistics
// sidecar.
func (a *Allocator) Stats() stats.Snapshot { return a.stats.Snap() }

// ResetStats zeroes every counter.
func (a *Allocator) ResetStats() { a.stats.Reset() }

// Alloc reserves space for count elements of T and returns a virtual
// pointer to the first one, sizing the underlying alloc_raw request in units
// of sizeof(T).
func Alloc[T any](a *Allocator, count int) (vptr.VPtr[T], error) {
	size := uint32(count) * uint32(vptr.SizeOf[T]())
	addrVal, err := a.free.AllocRaw(size)
	if err != nil {
		return vptr.Null[T](), err
	}
	return vptr.FromRaw[T](a, uint32(addrVal)), nil
}

// Free releases a block previously returned by Alloc. Unlike AllocRaw, the
// free list derives the block's size from its own in-band header, so no
// count is needed here.
func Free[T any](a *Allocator, p vptr.VPtr[T]) error {
	return a.free.FreeRaw(addr.VAddr(p.Addr()))
}
