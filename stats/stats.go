// Package stats is the paging-layer statistics sidecar: monotonic counters,
// readable any time, resettable, with no effect on correctness.
//
// Generalized from biscuit/src/stats/stats.go's Counter_t/Cycles_t, whose
// increments are gated behind a const-false Stats switch because they live in
// a kernel that ships with tracing compiled out. This library makes no such
// tradeoff, so Counters here are always live.
package stats

import (
	"fmt"
	"sync/atomic"
)

// Counters holds the paging-layer statistics. PageReads, PageWrites,
// BytesRead, and BytesWritten only move when the cache actually has to touch
// the backing store, never on a cache hit. Hits and Misses count slot
// lookups, and Evictions counts slots chosen as eviction victims.
type Counters struct {
	PageReads    atomic.Int64
	PageWrites   atomic.Int64
	BytesRead    atomic.Int64
	BytesWritten atomic.Int64
	Hits         atomic.Int64
	Misses       atomic.Int64
	Evictions    atomic.Int64
}

// Snapshot is a point-in-time, non-atomic copy of Counters suitable for
// printing or comparing in tests.
type Snapshot struct {
	PageReads    int64
	PageWrites   int64
	BytesRead    int64
	BytesWritten int64
	Hits         int64
	Misses       int64
	Evictions    int64
}

// RecordLoad marks a backing-store read of n bytes during a page load.
func (c *Counters) RecordLoad(n int) {
	c.PageReads.Add(1)
	c.BytesRead.Add(int64(n))
}

// RecordFlush marks a backing-store write of n bytes during a dirty flush.
func (c *Counters) RecordFlush(n int) {
	c.PageWrites.Add(1)
	c.BytesWritten.Add(int64(n))
}

// RecordHit marks a cache slot lookup that found an already-mapped slot.
func (c *Counters) RecordHit() { c.Hits.Add(1) }

// RecordMiss marks a cache slot lookup that required loading a new slot.
func (c *Counters) RecordMiss() { c.Misses.Add(1) }

// RecordEviction marks a slot being chosen as an eviction victim.
func (c *Counters) RecordEviction() { c.Evictions.Add(1) }

// Snap takes a consistent-enough snapshot for reporting. Individual fields
// may be read a few nanoseconds apart; this is a diagnostics sidecar, not a
// transaction log, so that's acceptable.
func (c *Counters) Snap() Snapshot {
	return Snapshot{
		PageReads:    c.PageReads.Load(),
		PageWrites:   c.PageWrites.Load(),
		BytesRead:    c.BytesRead.Load(),
		BytesWritten: c.BytesWritten.Load(),
		Hits:         c.Hits.Load(),
		Misses:       c.Misses.Load(),
		Evictions:    c.Evictions.Load(),
	}
}

// HitRatio returns Hits / (Hits + Misses), or 0 when there have been no
// lookups yet.
func (s Snapshot) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	c.PageReads.Store(0)
	c.PageWrites.Store(0)
	c.BytesRead.Store(0)
	c.BytesWritten.Store(0)
	c.Hits.Store(0)
	c.Misses.Store(0)
	c.Evictions.Store(0)
}

// String formats the snapshot the way biscuit's Stats2String formats a
// struct of Counter_t/Cycles_t fields: one "#Name: value" line per counter.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"\n\t#PageReads: %d\n\t#PageWrites: %d\n\t#BytesRead: %d\n\t#BytesWritten: %d\n\t#Hits: %d\n\t#Misses: %d\n\t#Evictions: %d\n",
		s.PageReads, s.PageWrites, s.BytesRead, s.BytesWritten, s.Hits, s.Misses, s.Evictions,
	)
}
