package store

import (
	"os"
	"path/filepath"

	"tinyvm/tvlog"
)

// DefaultSDFilename is the name SDVAllocP uses for its pool file
// (alloc/sd_alloc.h: "ramfile.vm" in the SD card's root directory).
const DefaultSDFilename = "ramfile.vm"

// SDFile models the SD-card backend: a fixed-size file named ramfile.vm at
// the pool root of a FAT filesystem. On a host filesystem
// there is no FAT layer to simulate, so SDFile is a thin, named wrapper
// around File with the same zero-extend-on-short-file behavior
// (alloc/sd_alloc.h's doStart: "if (size < this->getPoolSize())
// this->writeZeros(...)").
type SDFile struct {
	*File
	dir  string
	name string
}

// NewSDFile returns an SD-card-style adapter storing its pool file at
// dir/name. An empty name defaults to DefaultSDFilename, matching the
// original allocator's hardcoded filename (supplemented here with an
// override, since a host directory — unlike a dedicated SD card — may need
// to host more than one pool). log may be nil (silent).
func NewSDFile(dir, name string, size uint32, log *tvlog.Logger) *SDFile {
	if name == "" {
		name = DefaultSDFilename
	}
	return &SDFile{
		File: NewFile(filepath.Join(dir, name), size, log),
		dir:  dir,
		name: name,
	}
}

// Remove deletes the pool file. Only valid while the adapter is not started,
// mirroring SDVAllocP::removeRAMFile's precondition that the allocator has
// not begun.
func (s *SDFile) Remove() error {
	if err := os.Remove(s.path); err != nil {
		s.log.Errorf("sd file remove failed", "path", s.path, "err", err)
		return err
	}
	return nil
}
