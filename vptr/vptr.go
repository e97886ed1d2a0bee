// Package vptr implements a typed virtual pointer: VPtr[T], the short-lived
// ValueRef[T] handle it dereferences to, and the scoped LockGuard[T] that
// pins a range and exposes a raw *T.
//
// Grounded on biscuit/src/vm/as.go's Userdmap8_inner/Userreadn/Userwriten
// (a typed access that traps into the paging layer on every dereference) and
// biscuit/src/mem/mem.go's Pg2bytes/Bytepg2pg (unsafe.Pointer reinterpretation
// between a page's byte view and a typed view) — encode/decode below are the
// same trick, expressed with the generics and unsafe.Slice the teacher's
// go 1.24 toolchain has but its own 2018-era code predates.
package vptr

import "unsafe"

// Backend is the narrow slice of the allocator a VPtr needs: range I/O
// (which already loops across tiers and page boundaries) and a big-tier lock
// primitive. Kept as a local interface, rather than importing the root
// allocator package directly, the same way addr.pageReadWriter avoids
// depending on pagecache: it is the allocator that wires vptr in, not the
// other way around.
type Backend interface {
	ReadAt(addr uint32, dst []byte) error
	WriteAt(addr uint32, src []byte) error
	LockBig(addr uint32, n uint32) (data []byte, offset uint32, actualLen uint32, err error)
	UnlockBig(addr uint32, markDirty bool)
}

// VPtr is a typed virtual pointer: a VAddr plus the allocator it is bound
// to, or (if raw is set) a direct reinterpretation of a host pointer for
// zero-cost interop with non-virtual data. A VPtr is parameterized by its
// owning allocator instance
// rather than by its allocator's type, since each instance's Backend is
// already non-interchangeable with any other's.
type VPtr[T any] struct {
	addr    uint32
	backend Backend
	raw     bool
	rawPtr  unsafe.Pointer
}

// Null returns the zero-valued, address-0 pointer of type T, equivalent to
// the original library's CNILL sentinel: it compares null-equal to any
// VPtr[T] whose address is 0, without needing an operator-overloading
// conversion trait, because a zero-valued Go struct already reads as "null".
func Null[T any]() VPtr[T] { return VPtr[T]{} }

// FromRaw constructs a virtual pointer at addr bound to backend.
func FromRaw[T any](backend Backend, addr uint32) VPtr[T] {
	return VPtr[T]{addr: addr, backend: backend}
}

// WrapRaw tags ptr as a direct host pointer. Every operation on the
// resulting VPtr short-circuits to a direct dereference; locks become
// no-ops.
func WrapRaw[T any](ptr *T) VPtr[T] {
	return VPtr[T]{raw: true, rawPtr: unsafe.Pointer(ptr)}
}

// Raw reports whether p wraps a direct host pointer rather than a virtual
// address.
func (p VPtr[T]) Raw() bool { return p.raw }

// Addr returns the bound VAddr, or 0 for a wrapped raw pointer.
func (p VPtr[T]) Addr() uint32 {
	if p.raw {
		return 0
	}
	return p.addr
}

// IsNull reports whether p is the null sentinel: address 0 and not a
// wrapped raw pointer (a raw pointer is never the virtual null, even if the
// underlying host pointer happens to be nil — callers compare that
// separately).
func (p VPtr[T]) IsNull() bool { return !p.raw && p.addr == 0 }

func elemSize[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// SizeOf returns sizeof(T), exported so callers allocating raw byte spans
// for a VPtr[T] (the root allocator's Alloc/Free) can size the request
// without reaching into package internals.
func SizeOf[T any]() uintptr { return elemSize[T]() }

// Add returns p advanced by k elements of T: addr + k*sizeof(T).
func (p VPtr[T]) Add(k int) VPtr[T] {
	if p.raw {
		base := uintptr(p.rawPtr) + uintptr(k)*elemSize[T]()
		return VPtr[T]{raw: true, rawPtr: unsafe.Pointer(base)}
	}
	return VPtr[T]{addr: p.addr + uint32(int64(k)*int64(elemSize[T]())), backend: p.backend}
}

// Sub returns the element count between p and q (p - q, in units of
// sizeof(T)). Only meaningful when both pointers are virtual and share a
// backend.
func (p VPtr[T]) Sub(q VPtr[T]) int64 {
	return (int64(p.addr) - int64(q.addr)) / int64(elemSize[T]())
}

// At dereferences p[i], returning a ValueRef bound to address p+i without
// yet reading or writing anything.
func (p VPtr[T]) At(i int) ValueRef[T] {
	q := p.Add(i)
	return ValueRef[T]{backend: q.backend, addr: q.addr, raw: q.raw, rawPtr: q.rawPtr}
}

// Deref is At(0): the ValueRef for *p.
func (p VPtr[T]) Deref() ValueRef[T] { return p.At(0) }

// Field projects a VPtr[S] to a VPtr[F] at a byte offset within S, the
// member-pointer construction for reaching a struct field through a virtual
// pointer without dereferencing the whole struct. Callers pass
// unsafe.Offsetof(s.Field) from a zero-valued *S at the call site.
func Field[S any, F any](p VPtr[S], offset uintptr) VPtr[F] {
	if p.raw {
		return VPtr[F]{raw: true, rawPtr: unsafe.Pointer(uintptr(p.rawPtr) + offset)}
	}
	return VPtr[F]{addr: p.addr + uint32(offset), backend: p.backend}
}

// decode reinterprets buf's first sizeof(T) bytes as a T, by copying through
// an unsafe.Slice view of a local T's memory — the same reinterpretation
// biscuit/src/mem/mem.go's Bytepg2pg performs between a byte page and its
// typed view.
func decode[T any](buf []byte) T {
	var v T
	n := int(unsafe.Sizeof(v))
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&v)), n)
	copy(dst, buf[:n])
	return v
}

// encode is decode's inverse: it copies v's in-memory representation into a
// freshly allocated byte slice, the Pg2bytes direction of the same trick.
func encode[T any](v T) []byte {
	n := int(unsafe.Sizeof(v))
	src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), n)
	out := make([]byte, n)
	copy(out, src)
	return out
}
