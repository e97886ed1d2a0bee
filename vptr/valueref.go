package vptr

import "unsafe"

// ValueRef is a transient handle bound to one address, not storable beyond
// the expression that produced it. Nothing in
// the Go type system enforces that lifetime restriction (there is no
// borrow checker here), so callers are expected to use a ValueRef
// immediately and discard it, the same convention
// biscuit/src/vm/as.go's Userdmap8_inner callers follow with the slice it
// hands back.
type ValueRef[T any] struct {
	backend Backend
	addr    uint32
	raw     bool
	rawPtr  unsafe.Pointer
}

// Get is the read coercion: *p. For a virtual ValueRef it issues
// read(addr, sizeof(T)) through the backend and decodes the bytes; for a
// wrapped raw pointer it dereferences directly.
func (r ValueRef[T]) Get() (T, error) {
	if r.raw {
		return *(*T)(r.rawPtr), nil
	}
	var zero T
	buf := make([]byte, unsafe.Sizeof(zero))
	if err := r.backend.ReadAt(r.addr, buf); err != nil {
		return zero, err
	}
	return decode[T](buf), nil
}

// Set is assignment from T: *p = v. It issues write(addr, sizeof(T), &v)
// through the backend, or writes directly for a wrapped raw pointer.
func (r ValueRef[T]) Set(v T) error {
	if r.raw {
		*(*T)(r.rawPtr) = v
		return nil
	}
	return r.backend.WriteAt(r.addr, encode(v))
}

// Update performs the read-modify-write needed for compound assignments
// (++, +=, member writes): the current value is read, fn
// computes the replacement, and the result is written back through the same
// path Set uses.
func (r ValueRef[T]) Update(fn func(T) T) error {
	cur, err := r.Get()
	if err != nil {
		return err
	}
	return r.Set(fn(cur))
}
