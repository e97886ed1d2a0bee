package vptr

import "unsafe"

// LockGuard is a scoped lock: it pins a contiguous range within exactly one
// big page and exposes a raw *T for its lifetime, guaranteeing release on
// every exit path when the caller defers Unlock.
//
// Grounded on _examples/original_source/src/wrapper_utils.h's
// CVirtPtrLock<TV>: that class acquires its lock in the constructor and
// releases in the destructor, with copy-constructs-a-new-lock semantics;
// Go has no destructors, so release is the caller's responsibility via
// defer, and Clone stands in for the copy constructor.
type LockGuard[T any] struct {
	origin   VPtr[T]
	length   uint32
	readOnly bool
	ptr      *T
	released bool
}

// Lock acquires a scoped lock over up to n elements of T starting at p,
// always within the big tier: the clip size is computed within the big page
// containing p's address. The guard's ActualLen may be less than n if the
// request would otherwise cross a big-page boundary; callers must re-lock
// per page for larger spans.
//
// For a wrapped raw pointer, locking is a no-op that always succeeds over
// the full requested length.
func Lock[T any](p VPtr[T], n uint32, readOnly bool) (*LockGuard[T], error) {
	if p.raw {
		return &LockGuard[T]{origin: p, length: n, readOnly: readOnly, ptr: (*T)(p.rawPtr)}, nil
	}
	nbytes := n * uint32(elemSize[T]())
	data, offset, actual, err := p.backend.LockBig(p.addr, nbytes)
	if err != nil {
		return nil, err
	}
	ptr := (*T)(unsafe.Pointer(&data[offset]))
	return &LockGuard[T]{origin: p, length: actual / uint32(elemSize[T]()), readOnly: readOnly, ptr: ptr}, nil
}

// Ptr returns the raw *T for the duration of the guard's lifetime. Callers
// read and write through it freely; it is only valid until Unlock.
func (g *LockGuard[T]) Ptr() *T { return g.ptr }

// ActualLen returns the number of elements actually covered by the lock,
// which may be less than requested if the range would have crossed a big
// page boundary.
func (g *LockGuard[T]) ActualLen() uint32 { return g.length }

// Unlock releases the lock. Exactly one release is expected per
// acquisition; calling Unlock more than once is a no-op. When the guard was
// not read-only, the underlying slot's dirty bit is set on release, since
// the implementation cannot observe writes made through the raw pointer
// directly.
func (g *LockGuard[T]) Unlock() {
	if g.released {
		return
	}
	g.released = true
	if g.origin.raw {
		return
	}
	g.origin.backend.UnlockBig(g.origin.addr, !g.readOnly)
}

// Clone acquires a new lock on the same range, incrementing the underlying
// slot's lock count, mirroring CVirtPtrLock's copy-constructor semantics:
// copying a lock acquires a fresh lock on the same range rather than
// sharing the original's.
func (g *LockGuard[T]) Clone() (*LockGuard[T], error) {
	return Lock[T](g.origin, g.length, g.readOnly)
}
