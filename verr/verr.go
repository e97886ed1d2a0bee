// Package verr defines the sentinel errors the paging core can return.
package verr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, one per failure mode the paging core can hit. Callers
// compare with errors.Is; wrapped instances (via WrapIO) still match their
// sentinel.
var (
	// ErrOutOfPool means the free list has no block large enough to satisfy
	// an allocation request.
	ErrOutOfPool = errors.New("tinyvm: no free block large enough")

	// ErrInvalidFree means FreeRaw was called with address zero or an
	// address that does not sit at an allocated block boundary.
	ErrInvalidFree = errors.New("tinyvm: invalid free")

	// ErrAllPagesLocked means eviction could not find an unlocked victim
	// slot in the requested tier.
	ErrAllPagesLocked = errors.New("tinyvm: all pages in tier locked")

	// ErrCoherenceLocked means a write's cross-tier invalidation hit a
	// locked slot in another tier mapping the same address.
	ErrCoherenceLocked = errors.New("tinyvm: coherence invalidation blocked by lock")

	// ErrBackingIO wraps a failure reported by the backing-store adapter.
	ErrBackingIO = errors.New("tinyvm: backing store I/O error")

	// ErrAddressOutOfRange means an operation targeted bytes outside
	// [0, pool_size).
	ErrAddressOutOfRange = errors.New("tinyvm: address out of range")
)

// WrapIO wraps a backing-store failure so errors.Is(err, ErrBackingIO) still
// succeeds while the underlying cause (e.g. a short read) remains inspectable.
func WrapIO(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackingIO, cause)
}
