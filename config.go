package tinyvm

// Config holds the per-instance tunables: pool size, tier layout, and
// optional feature flags, all set before Start.
//
// Grounded on biscuit/src/limits/limits.go's Syslimit_t/MkSysLimit pattern:
// a plain struct of sized fields plus one constructor producing sane
// defaults, rather than a functional-options or builder-interface pattern.
type Config struct {
	PoolSize uint32

	SmallPageSize  uint32
	SmallSlots     int
	MediumPageSize uint32
	MediumSlots    int
	BigPageSize    uint32
	BigSlots       int

	// StatsEnabled and WrappedPointers are the two optional feature flags
	// this facility exposes. StatsEnabled gates nothing structurally here
	// (counters are always live, see stats package doc) but is kept so
	// callers have a single place to record the choice; WrappedPointers
	// documents that vptr.WrapRaw is in use for this allocator, since
	// nothing about the type system otherwise tracks it per-instance.
	StatsEnabled    bool
	WrappedPointers bool
}

// Default returns the configuration used throughout the test suite and a
// reasonable starting point for callers: a handful of small slots for
// scattered small objects, fewer medium slots, and 2 big slots, since bulk
// transfers through the big tier are typically few at a time.
func Default() Config {
	return Config{
		PoolSize: 1 << 20,

		SmallPageSize: 64,
		SmallSlots:    8,

		MediumPageSize: 512,
		MediumSlots:    4,

		BigPageSize: 4096,
		BigSlots:    2,
	}
}

// WithPoolSize returns a copy of c with PoolSize set to size, so callers can
// size a pool before constructing a Store, the same role
// SDVAllocP::setPoolSize plays ahead of start() in the original library.
// Allocator.Start does not read PoolSize: the pool size it uses is the
// backing store's own Size.
func (c Config) WithPoolSize(size uint32) Config {
	c.PoolSize = size
	return c
}

// WithSmallTier returns a copy of c with the small tier's page size and slot
// count set.
func (c Config) WithSmallTier(pageSize uint32, slots int) Config {
	c.SmallPageSize = pageSize
	c.SmallSlots = slots
	return c
}

// WithMediumTier returns a copy of c with the medium tier's page size and
// slot count set.
func (c Config) WithMediumTier(pageSize uint32, slots int) Config {
	c.MediumPageSize = pageSize
	c.MediumSlots = slots
	return c
}

// WithBigTier returns a copy of c with the big tier's page size and slot
// count set.
func (c Config) WithBigTier(pageSize uint32, slots int) Config {
	c.BigPageSize = pageSize
	c.BigSlots = slots
	return c
}

// WithStats returns a copy of c with the statistics feature flag set.
func (c Config) WithStats(enabled bool) Config {
	c.StatsEnabled = enabled
	return c
}

// WithWrappedPointers returns a copy of c with the wrapped-raw-pointer
// feature flag set.
func (c Config) WithWrappedPointers(enabled bool) Config {
	c.WrappedPointers = enabled
	return c
}
