// Package store implements the backing-store adapters a paging core needs:
// the narrow interface the core uses to reach an external medium, and four
// concrete adapters (in-process buffer, host file, SD-card file, and
// SPI-attached SRAM single/multi chip).
//
// Grounded on biscuit/src/ufs/driver.go's ahci_disk_t, which plays the same
// role for that kernel's filesystem: a narrow Start()/Stats() seam in front
// of an os.File, mutex-guarded so a Seek followed by Read/Write is atomic.
//
// This facility has no cancellation or timeout model: a backing-store call
// either completes or the program fails. Accordingly Store carries no
// context.Context — a suspension point here blocks the single cooperative
// thread for the duration of one page transfer.
package store

// Store is the contract every backing medium must satisfy.
// offset and len are always within [0, pool size); callers (the page cache)
// are responsible for clipping requests to that range before calling in.
type Store interface {
	// Start initializes the medium. Its reported size becomes the pool
	// size the caller should use.
	Start() error

	// Stop flushes and releases any resources held by the medium.
	Stop() error

	// Read fills dst (len(dst) bytes) from offset.
	Read(dst []byte, offset uint32) error

	// Write copies src to offset.
	Write(src []byte, offset uint32) error

	// Size reports the pool size in bytes, valid after Start.
	Size() uint32
}
