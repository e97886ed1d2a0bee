package store

import (
	"sync"

	"tinyvm/tvlog"
	"tinyvm/verr"
)

// Buffer is an in-process byte-array backing store, useful for tests since
// it needs no filesystem or external device.
type Buffer struct {
	mu   sync.Mutex
	data []byte
	log  *tvlog.Logger
}

// NewBuffer allocates a Buffer of the given size. The buffer is usable
// immediately; Start is a no-op kept to satisfy Store. log may be nil
// (silent).
func NewBuffer(size uint32, log *tvlog.Logger) *Buffer {
	if log == nil {
		log = tvlog.Nop()
	}
	return &Buffer{data: make([]byte, size), log: log}
}

func (b *Buffer) Start() error { return nil }
func (b *Buffer) Stop() error  { return nil }
func (b *Buffer) Size() uint32 { return uint32(len(b.data)) }

func (b *Buffer) Read(dst []byte, offset uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := uint64(offset) + uint64(len(dst))
	if end > uint64(len(b.data)) {
		b.log.Errorf("buffer read out of range", "offset", offset, "len", len(dst), "size", len(b.data))
		return verr.ErrAddressOutOfRange
	}
	copy(dst, b.data[offset:end])
	return nil
}

func (b *Buffer) Write(src []byte, offset uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := uint64(offset) + uint64(len(src))
	if end > uint64(len(b.data)) {
		b.log.Errorf("buffer write out of range", "offset", offset, "len", len(src), "size", len(b.data))
		return verr.ErrAddressOutOfRange
	}
	copy(b.data[offset:end], src)
	return nil
}
