package vptr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBackend is a hand-written stub over a flat byte array, the same
// pattern biscuit/src/ufs/driver.go's blockmem_t uses in place of a mocking
// framework.
type fakeBackend struct {
	mem    []byte
	locked map[uint32]bool
}

func newFakeBackend(size int) *fakeBackend {
	return &fakeBackend{mem: make([]byte, size), locked: map[uint32]bool{}}
}

func (f *fakeBackend) ReadAt(addr uint32, dst []byte) error {
	copy(dst, f.mem[addr:addr+uint32(len(dst))])
	return nil
}

func (f *fakeBackend) WriteAt(addr uint32, src []byte) error {
	copy(f.mem[addr:addr+uint32(len(src))], src)
	return nil
}

const fakeBigPage = 64

func (f *fakeBackend) LockBig(addr uint32, n uint32) ([]byte, uint32, uint32, error) {
	base := addr - addr%fakeBigPage
	room := base + fakeBigPage - addr
	actual := n
	if actual > room {
		actual = room
	}
	f.locked[base] = true
	return f.mem[base : base+fakeBigPage], addr - base, actual, nil
}

func (f *fakeBackend) UnlockBig(addr uint32, markDirty bool) {
	base := addr - addr%fakeBigPage
	delete(f.locked, base)
}

func TestValueRefGetSet(t *testing.T) {
	b := newFakeBackend(256)
	p := FromRaw[int32](b, 8)
	require.NoError(t, p.Deref().Set(55))
	got, err := p.Deref().Get()
	require.NoError(t, err)
	require.EqualValues(t, 55, got)
}

func TestValueRefUpdate(t *testing.T) {
	b := newFakeBackend(256)
	p := FromRaw[int32](b, 0)
	require.NoError(t, p.Deref().Set(10))
	require.NoError(t, p.Deref().Update(func(v int32) int32 { return v + 5 }))
	got, err := p.Deref().Get()
	require.NoError(t, err)
	require.EqualValues(t, 15, got)
}

func TestArithmeticAndAt(t *testing.T) {
	b := newFakeBackend(256)
	p := FromRaw[int32](b, 0)
	require.NoError(t, p.At(0).Set(1))
	require.NoError(t, p.At(1).Set(2))
	require.NoError(t, p.At(2).Set(3))

	v1, err := p.Add(1).Deref().Get()
	require.NoError(t, err)
	require.EqualValues(t, 2, v1)

	require.EqualValues(t, 2, p.Add(2).Sub(p))
}

func TestNullAndWrapRaw(t *testing.T) {
	n := Null[int32]()
	require.True(t, n.IsNull())

	var host int32 = 42
	wrapped := WrapRaw(&host)
	require.False(t, wrapped.IsNull())
	require.True(t, wrapped.Raw())

	got, err := wrapped.Deref().Get()
	require.NoError(t, err)
	require.EqualValues(t, 42, got)

	require.NoError(t, wrapped.Deref().Set(99))
	require.EqualValues(t, 99, host)
}

func TestFieldProjection(t *testing.T) {
	type pair struct {
		A int32
		B int32
	}
	b := newFakeBackend(256)
	p := FromRaw[pair](b, 0)
	require.NoError(t, p.Deref().Set(pair{A: 1, B: 2}))

	fieldB := Field[pair, int32](p, 4)
	got, err := fieldB.Deref().Get()
	require.NoError(t, err)
	require.EqualValues(t, 2, got)
}

func TestLockGuardRoundTrip(t *testing.T) {
	b := newFakeBackend(256)
	p := FromRaw[int32](b, 0)
	g, err := Lock[int32](p, 1, false)
	require.NoError(t, err)
	*g.Ptr() = 77
	g.Unlock()

	got, err := p.Deref().Get()
	require.NoError(t, err)
	require.EqualValues(t, 77, got)
}

func TestLockGuardClone(t *testing.T) {
	b := newFakeBackend(256)
	p := FromRaw[int32](b, 0)
	g, err := Lock[int32](p, 1, false)
	require.NoError(t, err)
	defer g.Unlock()

	g2, err := g.Clone()
	require.NoError(t, err)
	defer g2.Unlock()
	require.True(t, b.locked[0])
}

func TestLockGuardRawNoOp(t *testing.T) {
	var host int32 = 5
	p := WrapRaw(&host)
	g, err := Lock[int32](p, 1, false)
	require.NoError(t, err)
	*g.Ptr() = 6
	g.Unlock()
	require.EqualValues(t, 6, host)
}
