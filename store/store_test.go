package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferRoundTrip(t *testing.T) {
	b := NewBuffer(64, nil)
	require.NoError(t, b.Start())
	defer b.Stop()

	require.NoError(t, b.Write([]byte("hello"), 4))
	got := make([]byte, 5)
	require.NoError(t, b.Read(got, 4))
	require.Equal(t, "hello", string(got))
}

func TestBufferOutOfRange(t *testing.T) {
	b := NewBuffer(8, nil)
	require.NoError(t, b.Start())
	require.Error(t, b.Write(make([]byte, 4), 6))
}

func TestFileZeroExtendAndPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.bin")

	f := NewFile(path, 4096, nil)
	require.NoError(t, f.Start())
	require.NoError(t, f.Write([]byte{1, 2, 3, 4}, 100))
	require.NoError(t, f.Stop())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 4096, info.Size())

	f2 := NewFile(path, 4096, nil)
	require.NoError(t, f2.Start())
	defer f2.Stop()
	got := make([]byte, 4)
	require.NoError(t, f2.Read(got, 100))
	require.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestSDFileDefaultNameAndRemove(t *testing.T) {
	dir := t.TempDir()
	sd := NewSDFile(dir, "", 1024, nil)
	require.NoError(t, sd.Start())
	require.NoError(t, sd.Stop())

	_, err := os.Stat(filepath.Join(dir, DefaultSDFilename))
	require.NoError(t, err)

	require.NoError(t, sd.Remove())
	_, err = os.Stat(filepath.Join(dir, DefaultSDFilename))
	require.True(t, os.IsNotExist(err))
}

func TestSPIChipAddrWidth(t *testing.T) {
	require.Equal(t, 1, addrBytes(256))
	require.Equal(t, 2, addrBytes(1<<16))
	require.Equal(t, 3, addrBytes(1<<20))
	require.Equal(t, 4, addrBytes(1<<25))
}

func TestSPIChipRoundTrip(t *testing.T) {
	c := NewSPIChip(1024, nil)
	require.NoError(t, c.Start())
	defer c.Stop()

	require.NoError(t, c.Write([]byte{9, 8, 7}, 10))
	got := make([]byte, 3)
	require.NoError(t, c.Read(got, 10))
	require.Equal(t, []byte{9, 8, 7}, got)
}

func TestSPIMultiChipSplitsAtBoundary(t *testing.T) {
	m := NewSPIMultiChip(3, 16, nil)
	require.NoError(t, m.Start())
	defer m.Stop()

	// spans chips 0 and 1
	data := []byte{1, 2, 3, 4, 5, 6}
	require.NoError(t, m.Write(data, 14))

	got := make([]byte, len(data))
	require.NoError(t, m.Read(got, 14))
	require.Equal(t, data, got)

	// verify it actually landed in two different chips
	p0 := make([]byte, 2)
	require.NoError(t, m.chips[0].Read(p0, 14))
	require.Equal(t, []byte{1, 2}, p0)
	p1 := make([]byte, 4)
	require.NoError(t, m.chips[1].Read(p1, 0))
	require.Equal(t, []byte{3, 4, 5, 6}, p1)
}

func TestSPIMultiChipOutOfRange(t *testing.T) {
	m := NewSPIMultiChip(2, 16, nil)
	require.NoError(t, m.Start())
	require.Error(t, m.Write(make([]byte, 4), 30))
}
