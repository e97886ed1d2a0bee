package store

import (
	"io"
	"os"
	"sync"

	"tinyvm/tvlog"
	"tinyvm/verr"
)

// File is a backing store on the host filesystem: a file opened for
// read/write, seek-then-read/write per request.
//
// Grounded directly on biscuit/src/ufs/driver.go's ahci_disk_t: a mutex
// serializes seek+I/O ("lock to ensure that seek followed by read/write is
// atomic"), and a file shorter than the configured pool size is extended
// with zeros on Start the way mkfs-created disk images are sized up front
// (a longer file is left as it is, never truncated).
type File struct {
	mu   sync.Mutex
	path string
	size uint32
	f    *os.File
	log  *tvlog.Logger
}

// NewFile returns a File adapter targeting path, sized to size bytes once
// Start is called. log may be nil (silent).
func NewFile(path string, size uint32, log *tvlog.Logger) *File {
	if log == nil {
		log = tvlog.Nop()
	}
	return &File{path: path, size: size, log: log}
}

func (s *File) Start() error {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		s.log.Errorf("file open failed", "path", s.path, "err", err)
		return verr.WrapIO("store.File.Start", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		s.log.Errorf("file stat failed", "path", s.path, "err", err)
		return verr.WrapIO("store.File.Start", err)
	}
	if uint32(info.Size()) < s.size {
		if err := zeroExtend(f, info.Size(), int64(s.size)); err != nil {
			f.Close()
			s.log.Errorf("file zero-extend failed", "path", s.path, "err", err)
			return verr.WrapIO("store.File.Start", err)
		}
	}
	s.f = f
	s.log.Debugf("file store started", "path", s.path, "size", s.size)
	return nil
}

func (s *File) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	if err := s.f.Sync(); err != nil {
		s.log.Errorf("file sync failed", "path", s.path, "err", err)
		return verr.WrapIO("store.File.Stop", err)
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		s.log.Errorf("file close failed", "path", s.path, "err", err)
		return verr.WrapIO("store.File.Stop", err)
	}
	return nil
}

func (s *File) Size() uint32 { return s.size }

func (s *File) Read(dst []byte, offset uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(offset)+uint64(len(dst)) > uint64(s.size) {
		s.log.Errorf("file read out of range", "offset", offset, "len", len(dst), "size", s.size)
		return verr.ErrAddressOutOfRange
	}
	if _, err := s.f.Seek(int64(offset), 0); err != nil {
		s.log.Errorf("file seek failed", "path", s.path, "err", err)
		return verr.WrapIO("store.File.Read", err)
	}
	if _, err := io.ReadFull(s.f, dst); err != nil {
		s.log.Errorf("file read failed", "path", s.path, "err", err)
		return verr.WrapIO("store.File.Read", err)
	}
	return nil
}

func (s *File) Write(src []byte, offset uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(offset)+uint64(len(src)) > uint64(s.size) {
		s.log.Errorf("file write out of range", "offset", offset, "len", len(src), "size", s.size)
		return verr.ErrAddressOutOfRange
	}
	if _, err := s.f.Seek(int64(offset), 0); err != nil {
		s.log.Errorf("file seek failed", "path", s.path, "err", err)
		return verr.WrapIO("store.File.Write", err)
	}
	if _, err := s.f.Write(src); err != nil {
		s.log.Errorf("file write failed", "path", s.path, "err", err)
		return verr.WrapIO("store.File.Write", err)
	}
	return nil
}

// zeroExtend grows f from cur to want bytes by writing zeros, the same
// "writeZeros" step SDVAllocP::doStart performs when an existing ramfile.vm
// is shorter than the configured pool size.
func zeroExtend(f *os.File, cur, want int64) error {
	if _, err := f.Seek(cur, 0); err != nil {
		return err
	}
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	remaining := want - cur
	for remaining > 0 {
		n := int64(chunk)
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

