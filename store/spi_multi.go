package store

import (
	"tinyvm/tvlog"
	"tinyvm/verr"
)

// SPIMultiChip concatenates several same-size SPIChip backends into one
// address space, splitting any request that spans a chip boundary per chip.
type SPIMultiChip struct {
	chips    []*SPIChip
	chipSize uint32
	log      *tvlog.Logger
}

// NewSPIMultiChip builds a multi-chip backend out of n chips of chipSize
// bytes each. log may be nil (silent) and is shared across every chip.
func NewSPIMultiChip(n int, chipSize uint32, log *tvlog.Logger) *SPIMultiChip {
	if log == nil {
		log = tvlog.Nop()
	}
	chips := make([]*SPIChip, n)
	for i := range chips {
		chips[i] = NewSPIChip(chipSize, log)
	}
	return &SPIMultiChip{chips: chips, chipSize: chipSize, log: log}
}

func (m *SPIMultiChip) Start() error {
	for _, c := range m.chips {
		if err := c.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (m *SPIMultiChip) Stop() error {
	for _, c := range m.chips {
		if err := c.Stop(); err != nil {
			return err
		}
	}
	return nil
}

func (m *SPIMultiChip) Size() uint32 { return m.chipSize * uint32(len(m.chips)) }

func (m *SPIMultiChip) Read(dst []byte, offset uint32) error {
	return m.split(offset, len(dst), func(chip *SPIChip, chipOff uint32, piece []byte) error {
		return chip.Read(piece, chipOff)
	}, dst)
}

func (m *SPIMultiChip) Write(src []byte, offset uint32) error {
	return m.split(offset, len(src), func(chip *SPIChip, chipOff uint32, piece []byte) error {
		return chip.Write(piece, chipOff)
	}, src)
}

// split walks [offset, offset+n) breaking it at chip boundaries, handing
// each chip the slice of buf covering its portion.
func (m *SPIMultiChip) split(offset uint32, n int, op func(*SPIChip, uint32, []byte) error, buf []byte) error {
	if uint64(offset)+uint64(n) > uint64(m.Size()) {
		m.log.Errorf("spi multi-chip access out of range", "offset", offset, "len", n, "size", m.Size())
		return verr.ErrAddressOutOfRange
	}
	done := 0
	for done < n {
		idx := (offset + uint32(done)) / m.chipSize
		chipOff := (offset + uint32(done)) % m.chipSize
		avail := m.chipSize - chipOff
		want := uint32(n - done)
		if want > avail {
			want = avail
		}
		if err := op(m.chips[idx], chipOff, buf[done:done+int(want)]); err != nil {
			return err
		}
		done += int(want)
	}
	return nil
}
