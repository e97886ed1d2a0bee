// Package addr implements the virtual-address free-list allocator: a
// first-fit, coalescing, singly-linked free list whose bookkeeping lives
// entirely in-band, inside the paged pool itself, rather than in a separate
// RAM-resident table.
//
// The free-block header ({size, next} word pair) is read and written through
// a pageReadWriter exactly the way biscuit/src/fs/super.go's Superblock_t
// reads and writes its own fixed-offset fields through a *mem.Bytepg_t: both
// are "a struct's fields live inside a page-cache-managed buffer, not a Go
// struct in the host's own heap."
package addr

import (
	"encoding/binary"

	"tinyvm/verr"
)

// VAddr is a byte offset into the paged pool. VAddr 0 is reserved as the
// null sentinel; no block AllocRaw returns ever starts at 0, since the free
// list spans [BaseOffset, poolSize) and BaseOffset > 0.
type VAddr uint32

// headerSize is the encoded width of one free-block header: a uint32 size
// field and a uint32 next-pointer field.
const headerSize = 8

// allocHeaderSize is the encoded width of one allocated-block header: a
// single uint32 size word occupying the first sizeof(VAddr) bytes of the
// block. The returned user address is the first byte past this word.
const allocHeaderSize = 4

// allocatedBit is set in an allocated block's size word so FreeRaw can tell
// an allocated header apart from a free-block header occupying the same
// bytes, without a separate RAM-resident table of live allocations. A free
// block's size never sets this bit (pool sizes targeted by this allocator
// stay well under 1<<31 bytes), so seeing it clear flags a double free or an
// interior, non-block-boundary address.
const allocatedBit = uint32(1) << 31

// BaseOffset is the number of bytes at the start of the pool reserved before
// the first free-list header: one VAddr word, sized to hold the free-list
// head the way a serialized pool's preamble would. This repo never recovers
// a prior pool's free list, so the reserved word is never actually read
// back, but it keeps VAddr 0 permanently out of the allocatable range — the
// null sentinel invariant — without forcing every caller to special-case a
// zero-based first allocation.
const BaseOffset = 4

// nilNext marks the end of the free list. It is an explicit all-ones
// sentinel rather than VAddr 0, so the end-of-list marker never depends on
// BaseOffset keeping address 0 out of the list.
const nilNext = ^uint32(0)

// pageReadWriter is the narrow slice of pagecache.Cache's API the free list
// needs: byte-range read/write against the paged pool, addressed in the same
// VAddr space as everything else. Kept as a local interface (rather than
// importing pagecache directly) so addr has no import-cycle risk with the
// package that will eventually also want to allocate addresses for its own
// bookkeeping pages.
type pageReadWriter interface {
	ReadRange(addr uint32, dst []byte) error
	WriteRange(addr uint32, src []byte) error
}

// header is the decoded form of one free-block's in-band metadata.
type header struct {
	size uint32
	next uint32
}

func decodeHeader(buf []byte) header {
	return header{
		size: binary.LittleEndian.Uint32(buf[0:4]),
		next: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

func (h header) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.size)
	binary.LittleEndian.PutUint32(buf[4:8], h.next)
}

// FreeList is a first-fit, address-ordered, coalescing free list over a
// fixed-size pool. It holds no RAM-resident table of blocks: every header
// lives inside the pool, read and written through pio on demand.
type FreeList struct {
	pio      pageReadWriter
	poolSize uint32
	head     uint32 // VAddr of first free block, or nilNext if empty
}

// New builds a FreeList over a pool of poolSize bytes, backed by pio for
// header I/O. Callers must call Init before allocating; there is no way to
// attach to an existing pool's free list.
func New(pio pageReadWriter, poolSize uint32) *FreeList {
	return &FreeList{pio: pio, poolSize: poolSize, head: nilNext}
}

// Init formats the whole usable pool (from BaseOffset to poolSize) as one
// free block and makes it the sole entry in the free list. There is no
// recovery path for an existing pool's free list: every Init discards
// whatever headers were previously stored.
func (fl *FreeList) Init() error {
	size := fl.poolSize - BaseOffset
	h := header{size: size, next: nilNext}
	buf := make([]byte, headerSize)
	h.encode(buf)
	if err := fl.pio.WriteRange(BaseOffset, buf); err != nil {
		return err
	}
	fl.head = BaseOffset
	return nil
}

// AllocRaw reserves space for at least n usable bytes and returns the
// address of the first usable byte. First-fit: the free list is walked in
// address order and the first block whose size (including the allocated
// header this call writes) is large enough is taken, split if the remainder
// can itself hold a free-block header plus at least one byte.
func (fl *FreeList) AllocRaw(n uint32) (VAddr, error) {
	if n == 0 {
		n = 1
	}
	total := n + allocHeaderSize
	if total < headerSize {
		// A block's footprint must be at least one free-block header wide
		// (size + next, 8 bytes): FreeRaw stamps exactly that many bytes back
		// into the block on release, and a footprint any smaller would spill
		// that write into whatever sits immediately after the block.
		total = headerSize
	}
	var prev uint32 = nilNext
	cur := fl.head
	for cur != nilNext {
		buf := make([]byte, headerSize)
		if err := fl.pio.ReadRange(cur, buf); err != nil {
			return 0, err
		}
		h := decodeHeader(buf)
		if h.size >= total {
			return fl.takeBlock(prev, cur, h, total)
		}
		prev = cur
		cur = h.next
	}
	return 0, verr.ErrOutOfPool
}

// takeBlock removes or splits the free block at cur (whose decoded header is
// h) to satisfy a total-byte allocation (including the allocated header),
// relinking prev/next as needed. It writes the allocated block's own size
// word in place of the consumed free-block header and returns the address
// of the usable payload, immediately past that size word.
func (fl *FreeList) takeBlock(prev, cur uint32, h header, total uint32) (VAddr, error) {
	remainder := h.size - total
	if remainder >= headerSize+1 {
		// Split: cur+total becomes a new, smaller free block in cur's place
		// in the list.
		newAddr := cur + total
		newHeader := header{size: remainder, next: h.next}
		buf := make([]byte, headerSize)
		newHeader.encode(buf)
		if err := fl.pio.WriteRange(newAddr, buf); err != nil {
			return 0, err
		}
		if err := fl.relink(prev, newAddr); err != nil {
			return 0, err
		}
	} else {
		// Whole block consumed, including any fragment too small to hold a
		// free header plus one byte: relink around it entirely, and the allocation keeps the
		// leftover bytes too (h.size, not total).
		total = h.size
		if err := fl.relink(prev, h.next); err != nil {
			return 0, err
		}
	}
	if err := fl.writeAllocHeader(cur, total); err != nil {
		return 0, err
	}
	return VAddr(cur + allocHeaderSize), nil
}

// writeAllocHeader stamps an allocated block's size word (with allocatedBit
// set) at blockStart.
func (fl *FreeList) writeAllocHeader(blockStart, size uint32) error {
	buf := make([]byte, allocHeaderSize)
	binary.LittleEndian.PutUint32(buf, size|allocatedBit)
	return fl.pio.WriteRange(blockStart, buf)
}

// relink points prev's next field (or fl.head, if prev is nilNext) at
// newNext.
func (fl *FreeList) relink(prev, newNext uint32) error {
	if prev == nilNext {
		fl.head = newNext
		return nil
	}
	buf := make([]byte, headerSize)
	if err := fl.pio.ReadRange(prev, buf); err != nil {
		return err
	}
	h := decodeHeader(buf)
	h.next = newNext
	h.encode(buf)
	return fl.pio.WriteRange(prev, buf)
}

// FreeRaw returns a previously allocated block at addr (a value returned by
// AllocRaw) to the free list, inserting it in address order and coalescing
// with an immediately adjacent predecessor and/or successor. The block's
// size is read back from its own in-band header rather than supplied by the
// caller: the header is read and the true block start computed from it.
// Address 0, a header whose allocatedBit is clear (already free, or not a
// block boundary at all), or a size that would run the block past the end of
// the pool are all rejected as ErrInvalidFree — a best-effort validation,
// not full allocated-block tracking (which would need a separate table the
// rest of this package exists to avoid).
func (fl *FreeList) FreeRaw(addr VAddr) error {
	if addr == 0 || uint32(addr) < allocHeaderSize {
		return verr.ErrInvalidFree
	}
	a := uint32(addr) - allocHeaderSize
	if a < BaseOffset || a+allocHeaderSize > fl.poolSize {
		return verr.ErrInvalidFree
	}
	hbuf := make([]byte, allocHeaderSize)
	if err := fl.pio.ReadRange(a, hbuf); err != nil {
		return err
	}
	raw := binary.LittleEndian.Uint32(hbuf)
	if raw&allocatedBit == 0 {
		return verr.ErrInvalidFree
	}
	n := raw &^ allocatedBit
	if n > fl.poolSize-BaseOffset || a+n > fl.poolSize {
		return verr.ErrInvalidFree
	}

	var prev uint32 = nilNext
	cur := fl.head
	for cur != nilNext && cur < a {
		buf := make([]byte, headerSize)
		if err := fl.pio.ReadRange(cur, buf); err != nil {
			return err
		}
		h := decodeHeader(buf)
		prev = cur
		cur = h.next
	}

	newHeader := header{size: n, next: cur}
	if err := fl.writeHeader(a, newHeader); err != nil {
		return err
	}
	if err := fl.relink(prev, a); err != nil {
		return err
	}

	if cur != nilNext && a+n == cur {
		if err := fl.coalesce(a, cur); err != nil {
			return err
		}
	}
	if prev != nilNext {
		if err := fl.tryCoalesceWithPrev(prev, a); err != nil {
			return err
		}
	}
	return nil
}

// coalesce merges the free block at addr with its immediate successor at
// nextAddr, extending addr's size and adopting nextAddr's next pointer.
func (fl *FreeList) coalesce(addr, nextAddr uint32) error {
	buf := make([]byte, headerSize)
	if err := fl.pio.ReadRange(addr, buf); err != nil {
		return err
	}
	h := decodeHeader(buf)

	nbuf := make([]byte, headerSize)
	if err := fl.pio.ReadRange(nextAddr, nbuf); err != nil {
		return err
	}
	nh := decodeHeader(nbuf)

	h.size += nh.size
	h.next = nh.next
	return fl.writeHeader(addr, h)
}

// tryCoalesceWithPrev merges prevAddr's block with addr's block if they are
// immediately adjacent.
func (fl *FreeList) tryCoalesceWithPrev(prevAddr, addr uint32) error {
	buf := make([]byte, headerSize)
	if err := fl.pio.ReadRange(prevAddr, buf); err != nil {
		return err
	}
	h := decodeHeader(buf)
	if prevAddr+h.size != addr {
		return nil
	}
	return fl.coalesce(prevAddr, addr)
}

func (fl *FreeList) writeHeader(addr uint32, h header) error {
	buf := make([]byte, headerSize)
	h.encode(buf)
	return fl.pio.WriteRange(addr, buf)
}

// Head returns the address of the first free block, for diagnostics and
// tests. It is nilNext-as-uint32's max value when the list is empty; callers
// should prefer checking via a dedicated scan rather than comparing directly.
func (fl *FreeList) Head() uint32 { return fl.head }
