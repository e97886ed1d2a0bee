package tinyvm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"tinyvm/addr"
	"tinyvm/pagecache"
	"tinyvm/store"
	"tinyvm/vptr"
)

func newTestAllocator(t *testing.T, cfg Config) *Allocator {
	t.Helper()
	backing := store.NewBuffer(cfg.PoolSize, nil)
	a := New(cfg, backing, nil)
	require.NoError(t, a.Start())
	t.Cleanup(func() { require.NoError(t, a.Stop()) })
	return a
}

// S1: simple round-trip.
func TestS1SimpleRoundTrip(t *testing.T) {
	a := newTestAllocator(t, Default())
	p, err := Alloc[int32](a, 1)
	require.NoError(t, err)

	require.NoError(t, p.Deref().Set(55))
	require.NoError(t, a.Flush())
	require.NoError(t, a.ClearPages())

	got, err := p.Deref().Get()
	require.NoError(t, err)
	require.EqualValues(t, 55, got)

	require.NoError(t, Free[int32](a, p))
}

// S2: read-only view. Mutating a locally-held copy of read bytes must not
// persist, because no write was issued through the API.
func TestS2ReadOnlyViewDoesNotPersist(t *testing.T) {
	a := newTestAllocator(t, Default())
	p, err := Alloc[int32](a, 1)
	require.NoError(t, err)
	require.NoError(t, p.Deref().Set(55))

	view, err := p.Deref().Get()
	require.NoError(t, err)
	view = 66 // local mutation only; never written back

	require.NoError(t, a.Flush())
	require.NoError(t, a.ClearPages())

	got, err := p.Deref().Get()
	require.NoError(t, err)
	require.EqualValues(t, 55, got)
	require.NotEqualValues(t, view, got)
}

// S3: one big-page-sized allocation per big slot, each tagged with its index
// in its first int32 and read back after a flush and clear.
func TestS3MultiBigPageFill(t *testing.T) {
	cfg := Default().WithBigTier(256, 3).WithPoolSize(1 << 16)
	a := newTestAllocator(t, cfg)

	ptrs := make([]vptr.VPtr[int32], cfg.BigSlots)
	for i := 0; i < cfg.BigSlots; i++ {
		p, err := Alloc[int32](a, int(cfg.BigPageSize)/4)
		require.NoError(t, err)
		require.NoError(t, p.Deref().Set(int32(i)))
		ptrs[i] = p
	}

	require.NoError(t, a.Flush())
	require.NoError(t, a.ClearPages())

	for i, p := range ptrs {
		got, err := p.Deref().Get()
		require.NoError(t, err)
		require.EqualValues(t, i, got)
	}
}

// S4: lock accounting across the big tier, independent of small/medium.
func TestS4LockAccounting(t *testing.T) {
	cfg := Default().WithBigTier(256, 2).WithPoolSize(1 << 16)
	a := newTestAllocator(t, cfg)

	p0, err := Alloc[byte](a, int(cfg.BigPageSize))
	require.NoError(t, err)
	p1, err := Alloc[byte](a, int(cfg.BigPageSize))
	require.NoError(t, err)

	g0, err := vptr.Lock[byte](p0, cfg.BigPageSize, false)
	require.NoError(t, err)
	require.Equal(t, 1, a.cache.UnlockedSlots(pagecache.Big))
	g1, err := vptr.Lock[byte](p1, cfg.BigPageSize, false)
	require.NoError(t, err)
	require.Equal(t, 0, a.cache.UnlockedSlots(pagecache.Big))

	// a small-tier allocation and write must not affect big-tier accounting.
	ps, err := Alloc[int32](a, 1)
	require.NoError(t, err)
	require.NoError(t, ps.Deref().Set(1))
	require.Equal(t, 0, a.cache.UnlockedSlots(pagecache.Big))

	g0.Unlock()
	require.Equal(t, 1, a.cache.UnlockedSlots(pagecache.Big))
	g1.Unlock()
	require.Equal(t, 2, a.cache.UnlockedSlots(pagecache.Big))
}

// S5: 8 KiB linear fill and random probe (scaled down from the original 8
// MiB scenario so the suite runs quickly; the property under test, not the
// byte count, is what S5 names).
func TestS5LinearFillAndRandomProbe(t *testing.T) {
	const size = 8 * 1024
	cfg := Default().WithPoolSize(size + 4096)
	a := newTestAllocator(t, cfg)

	p, err := Alloc[byte](a, size)
	require.NoError(t, err)

	for i := 0; i < size; i++ {
		require.NoError(t, p.At(i).Set(byte((size - i) % 256)))
	}
	require.NoError(t, a.ClearPages())

	for i := 0; i < size; i++ {
		got, err := p.At(i).Get()
		require.NoError(t, err)
		require.Equal(t, byte((size-i)%256), got)
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		idx := rng.Intn(size)
		got, err := p.At(idx).Get()
		require.NoError(t, err)
		require.Equal(t, byte((size-idx)%256), got)
	}
}

// S6: large random data from a seeded PRNG, store/clear/reread.
func TestS6LargeRandomData(t *testing.T) {
	const size = 8 * 1024
	cfg := Default().WithPoolSize(size + 4096)
	a := newTestAllocator(t, cfg)

	p, err := Alloc[byte](a, size)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	want := make([]byte, size)
	rng.Read(want)

	for i, b := range want {
		require.NoError(t, p.At(i).Set(b))
	}
	require.NoError(t, a.ClearPages())

	for i, b := range want {
		got, err := p.At(i).Get()
		require.NoError(t, err)
		require.Equal(t, b, got)
	}

	probe := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		idx := probe.Intn(size)
		got, err := p.At(idx).Get()
		require.NoError(t, err)
		require.Equal(t, want[idx], got)
	}
}

func TestAllocExactlyFillsPoolThenFails(t *testing.T) {
	cfg := Default().WithPoolSize(128)
	a := newTestAllocator(t, cfg)

	// usable pool is poolSize - addr.BaseOffset bytes of free-list space, and
	// an allocation's own in-band header consumes 4 more bytes of that, so
	// the largest single byte-slice allocation that exactly drains the pool
	// is poolSize - addr.BaseOffset - 4.
	exact := int(cfg.PoolSize) - int(addr.BaseOffset) - 4
	_, err := Alloc[byte](a, exact)
	require.NoError(t, err)

	_, err = Alloc[byte](a, 1)
	require.Error(t, err)
}
