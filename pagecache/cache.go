package pagecache

import (
	"tinyvm/stats"
	"tinyvm/store"
	"tinyvm/tvlog"
	"tinyvm/verr"
)

// TierSizes configures the byte size of one page in each tier and how many
// slots that tier gets: small, medium, and big page classes, each sized and
// populated independently.
type TierSizes struct {
	SmallPage   uint32
	SmallSlots  int
	MediumPage  uint32
	MediumSlots int
	BigPage     uint32
	BigSlots    int
}

// Cache is the multi-tier RAM page cache sitting between virtual addresses
// and a store.Store. It is not safe for concurrent use from more than one
// goroutine at a time: callers are expected to be single-threaded and
// cooperative, the same assumption biscuit/src/mem/mem.go's Physmem_t makes
// of its (interrupt-disabled) caller.
type Cache struct {
	store store.Store
	tiers [numTiers]*tierState
	tick  uint64
	stats *stats.Counters
	log   *tvlog.Logger
}

// New builds a Cache fronting backing with the tier layout in sizes.
func New(backing store.Store, sizes TierSizes, counters *stats.Counters, log *tvlog.Logger) *Cache {
	if log == nil {
		log = tvlog.Nop()
	}
	c := &Cache{store: backing, stats: counters, log: log}
	c.tiers[Small] = newTierState(sizes.SmallPage, sizes.SmallSlots)
	c.tiers[Medium] = newTierState(sizes.MediumPage, sizes.MediumSlots)
	c.tiers[Big] = newTierState(sizes.BigPage, sizes.BigSlots)
	return c
}

// PageSize returns the page size of tier t.
func (c *Cache) PageSize(t Tier) uint32 { return c.tiers[t].pageSize }

// UnlockedSlots returns the number of slots in tier t that currently hold no
// lock, for callers that want to check eviction headroom without forcing a
// load.
func (c *Cache) UnlockedSlots(t Tier) int { return c.tiers[t].unlockedCount() }

// SelectTier picks the smallest tier whose page can hold a request of n
// bytes: small if it fits a small page, medium if it fits a medium page,
// otherwise big.
func (c *Cache) SelectTier(n uint32) Tier {
	if n <= c.tiers[Small].pageSize {
		return Small
	}
	if n <= c.tiers[Medium].pageSize {
		return Medium
	}
	return Big
}

// clipToPage clips [vaddr, vaddr+n) so it does not cross a tier-t page
// boundary, returning the clipped length. Callers that need more must loop.
func (c *Cache) clipToPage(t Tier, vaddr uint32, n uint32) uint32 {
	ts := c.tiers[t]
	base := ts.pageBase(vaddr)
	room := base + ts.pageSize - vaddr
	if n > room {
		return room
	}
	return n
}

// Read copies n bytes starting at vaddr, in tier t, into dst. The caller is
// responsible for not crossing a page boundary in one call (use clipToPage
// via the exported ClipToPage, or go through ReadRange, which already loops
// per page).
func (c *Cache) Read(t Tier, vaddr uint32, dst []byte) error {
	idx, err := c.resolve(t, vaddr)
	if err != nil {
		return err
	}
	s := &c.tiers[t].slots[idx]
	off := vaddr - s.mapped
	copy(dst, s.data[off:off+uint32(len(dst))])
	s.recency = c.bump()
	return nil
}

// Write copies src into the cached page backing vaddr in tier t, marks the
// slot dirty, and invalidates any stale mirror of the same address range
// cached in another tier, so a write through one tier's copy can never leave
// a stale copy visible through another.
func (c *Cache) Write(t Tier, vaddr uint32, src []byte) error {
	// Invalidate first, so a dirty mirror elsewhere reaches the backing store
	// before this tier's page is loaded from it.
	sharedElsewhere, err := c.invalidateOtherTiers(t, vaddr, uint32(len(src)))
	if err != nil {
		return err
	}
	idx, err := c.resolve(t, vaddr)
	if err != nil {
		return err
	}
	s := &c.tiers[t].slots[idx]
	off := vaddr - s.mapped
	copy(s.data[off:off+uint32(len(src))], src)
	s.dirty = true
	s.recency = c.bump()
	// A mirror of this range existed in another tier a moment ago. That tier
	// may reload this same range from the backing store before this slot
	// gets flushed on its own eviction schedule, so flush now rather than
	// let a stale read through the backing store win the race.
	if sharedElsewhere {
		return c.flushSlot(t, idx)
	}
	return nil
}

// ClipToPage exposes clipToPage to callers outside the package (the
// allocator uses it to clip a big-tier lock to its containing page).
func (c *Cache) ClipToPage(t Tier, vaddr uint32, n uint32) uint32 {
	return c.clipToPage(t, vaddr, n)
}

// ReadRange reads len(dst) bytes starting at vaddr, looping across page
// boundaries; each step uses the smallest tier whose page can hold the bytes
// still remaining, clipped to that tier's page.
// This is the entry point addr.FreeList uses for free-block header I/O,
// where the caller has no reason to reason about tiers itself.
func (c *Cache) ReadRange(vaddr uint32, dst []byte) error {
	return c.walkRange(vaddr, uint32(len(dst)), func(t Tier, addr uint32, piece []byte) error {
		return c.Read(t, addr, piece)
	}, dst)
}

// WriteRange is ReadRange's write counterpart.
func (c *Cache) WriteRange(vaddr uint32, src []byte) error {
	return c.walkRange(vaddr, uint32(len(src)), func(t Tier, addr uint32, piece []byte) error {
		return c.Write(t, addr, piece)
	}, src)
}

// walkRange breaks [vaddr, vaddr+n) into page-bounded, single-tier chunks and
// applies op to each in turn.
func (c *Cache) walkRange(vaddr uint32, n uint32, op func(Tier, uint32, []byte) error, buf []byte) error {
	done := uint32(0)
	for done < n {
		addr := vaddr + done
		remaining := n - done
		t := c.SelectTier(remaining)
		chunk := c.clipToPage(t, addr, remaining)
		if err := op(t, addr, buf[done:done+chunk]); err != nil {
			return err
		}
		done += chunk
	}
	return nil
}

// resolve returns the index of the slot mirroring vaddr's page in tier t,
// loading the page from the backing store (evicting if necessary) if it is
// not already cached.
func (c *Cache) resolve(t Tier, vaddr uint32) (int, error) {
	ts := c.tiers[t]
	if idx := ts.find(vaddr); idx >= 0 {
		c.stats.RecordHit()
		return idx, nil
	}
	c.stats.RecordMiss()
	idx, err := c.evictOrFind(t)
	if err != nil {
		return -1, err
	}
	s := &ts.slots[idx]
	base := ts.pageBase(vaddr)
	if err := c.store.Read(s.data, base); err != nil {
		c.log.Errorf("page load failed", "tier", t.String(), "vaddr", base, "err", err)
		return -1, err
	}
	s.mapped = base
	s.dirty = false
	s.recency = c.bump()
	c.stats.RecordLoad(len(s.data))
	c.log.Debugf("page loaded", "tier", t.String(), "vaddr", base)
	return idx, nil
}

// evictOrFind returns an unmapped slot if one exists, otherwise flushes and
// evicts the least-recently-used unlocked slot.
func (c *Cache) evictOrFind(t Tier) (int, error) {
	ts := c.tiers[t]
	for i := range ts.slots {
		if !ts.slots[i].isMapped() {
			return i, nil
		}
	}
	victim := ts.pickVictim()
	if victim < 0 {
		c.log.Errorf("no evictable slot", "tier", t.String())
		return -1, verr.ErrAllPagesLocked
	}
	s := &ts.slots[victim]
	if s.dirty {
		if err := c.flushSlot(t, victim); err != nil {
			c.log.Errorf("eviction flush failed", "tier", t.String(), "vaddr", s.mapped, "err", err)
			return -1, err
		}
	}
	s.mapped = notMapped
	c.stats.RecordEviction()
	c.log.Debugf("page evicted", "tier", t.String())
	return victim, nil
}

// flushSlot writes a dirty slot's contents back to the backing store.
func (c *Cache) flushSlot(t Tier, idx int) error {
	s := &c.tiers[t].slots[idx]
	if !s.dirty {
		return nil
	}
	if err := c.store.Write(s.data, s.mapped); err != nil {
		c.log.Errorf("page flush failed", "tier", t.String(), "vaddr", s.mapped, "err", err)
		return err
	}
	c.stats.RecordFlush(len(s.data))
	s.dirty = false
	return nil
}

// invalidateOtherTiers flushes and unmaps slots in other tiers that mirror
// any part of [vaddr, vaddr+n): writing through one tier's copy must not
// leave a stale copy visible through another tier. It reports whether any
// such mirror was found, and returns ErrCoherenceLocked if a stale copy is
// currently locked.
func (c *Cache) invalidateOtherTiers(except Tier, vaddr, n uint32) (found bool, err error) {
	for t := Tier(0); t < numTiers; t++ {
		if t == except {
			continue
		}
		ts := c.tiers[t]
		for i := range ts.slots {
			s := &ts.slots[i]
			if !s.isMapped() {
				continue
			}
			if !overlaps(s.mapped, ts.pageSize, vaddr, n) {
				continue
			}
			if s.locks > 0 {
				c.log.Errorf("coherence invalidation blocked by lock", "tier", t.String(), "vaddr", s.mapped)
				return found, verr.ErrCoherenceLocked
			}
			if err := c.flushSlot(t, i); err != nil {
				c.log.Errorf("coherence flush failed", "tier", t.String(), "vaddr", s.mapped, "err", err)
				return found, err
			}
			s.mapped = notMapped
			found = true
			c.log.Debugf("mirror invalidated for coherence", "tier", t.String(), "vaddr", s.mapped, "write_vaddr", vaddr, "write_len", n)
		}
	}
	return found, nil
}

func overlaps(aStart, aLen, bStart, bLen uint32) bool {
	aEnd := aStart + aLen
	bEnd := bStart + bLen
	return aStart < bEnd && bStart < aEnd
}

// bump advances and returns the cache's logical clock, used as each slot's
// recency stamp on access.
func (c *Cache) bump() uint64 {
	c.tick++
	return c.tick
}

// MakeDataLock pins the slot mirroring vaddr in tier t so it cannot be
// evicted, loading it first if necessary, and returns the slot's backing
// buffer and the byte offset of vaddr within it. Callers must call
// ReleaseLock exactly once per successful MakeDataLock.
func (c *Cache) MakeDataLock(t Tier, vaddr uint32) (data []byte, offset uint32, err error) {
	idx, err := c.resolve(t, vaddr)
	if err != nil {
		return nil, 0, err
	}
	s := &c.tiers[t].slots[idx]
	s.locks++
	return s.data, vaddr - s.mapped, nil
}

// ReleaseLock releases one lock taken by MakeDataLock on the page mirroring
// vaddr in tier t. markDirty flags the page as modified, the way unlocking a
// writable lock guard does.
func (c *Cache) ReleaseLock(t Tier, vaddr uint32, markDirty bool) {
	ts := c.tiers[t]
	idx := ts.find(vaddr)
	if idx < 0 {
		return
	}
	s := &ts.slots[idx]
	if s.locks > 0 {
		s.locks--
	}
	if markDirty {
		s.dirty = true
	}
}

// Flush writes every dirty slot across all tiers back to the backing store.
func (c *Cache) Flush() error {
	for t := Tier(0); t < numTiers; t++ {
		ts := c.tiers[t]
		for i := range ts.slots {
			if ts.slots[i].isMapped() {
				if err := c.flushSlot(t, i); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ClearPages flushes every dirty slot, then unmaps every unlocked slot
// across all tiers. Locked slots are left mapped and untouched; they are not
// an error here, unlike a write targeting a locked mirror in another tier.
func (c *Cache) ClearPages() error {
	if err := c.Flush(); err != nil {
		return err
	}
	for t := Tier(0); t < numTiers; t++ {
		ts := c.tiers[t]
		for i := range ts.slots {
			s := &ts.slots[i]
			if !s.isMapped() || s.locks > 0 {
				continue
			}
			s.mapped = notMapped
		}
	}
	return nil
}
