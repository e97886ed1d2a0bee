// SPI-attached SRAM backends. These model the wire protocol of a serial SRAM
// part over SPI — command bytes, address width selection — without driving a
// real SPI bus, since a physical bus driver is out of scope here. Swapping
// the in-memory transport for a real periph.io/x/conn/v3/spi.Conn is a
// one-function change (frame below).
package store

import (
	"sync"

	"tinyvm/tvlog"
	"tinyvm/verr"
)

// SPI command bytes, straight out of internal/spiram.h's EInstruction enum.
const (
	spiInstrRead  byte = 0x03
	spiInstrWrite byte = 0x02
	spiInstrWRMR  byte = 0x01
	spiSeqMode    byte = 0x40
)

// SPIChip is a single SPI-attached SRAM chip. addrBytes is auto-selected from
// the chip size (1-4 bytes).
type SPIChip struct {
	mu        sync.Mutex
	size      uint32
	addrWidth int
	started   bool
	mem       []byte // stands in for the chip's SRAM array
	log       *tvlog.Logger
}

// NewSPIChip returns a single-chip adapter for a chip of the given size. log
// may be nil (silent).
func NewSPIChip(size uint32, log *tvlog.Logger) *SPIChip {
	if log == nil {
		log = tvlog.Nop()
	}
	return &SPIChip{size: size, addrWidth: addrBytes(size), log: log}
}

// addrBytes implements the address-width-from-size rule described in
// internal/spiram.cpp: enough bytes to address the whole chip, 1 through 4.
func addrBytes(size uint32) int {
	switch {
	case size <= 1<<8:
		return 1
	case size <= 1<<16:
		return 2
	case size <= 1<<24:
		return 3
	default:
		return 4
	}
}

func (c *SPIChip) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Put the chip into sequential mode (spiSeqMode via WRMR) before any
	// transfer, mirroring the part's own startup sequence.
	_ = c.frame(spiInstrWRMR, 0, []byte{spiSeqMode}, true)
	c.mem = make([]byte, c.size)
	c.started = true
	return nil
}

func (c *SPIChip) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	return nil
}

func (c *SPIChip) Size() uint32 { return c.size }

func (c *SPIChip) Read(dst []byte, offset uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		c.log.Errorf("spi chip read before start", "offset", offset)
		return verr.WrapIO("store.SPIChip.Read", errNotStarted)
	}
	if uint64(offset)+uint64(len(dst)) > uint64(c.size) {
		c.log.Errorf("spi chip read out of range", "offset", offset, "len", len(dst), "size", c.size)
		return verr.ErrAddressOutOfRange
	}
	return c.frame(spiInstrRead, offset, dst, false)
}

func (c *SPIChip) Write(src []byte, offset uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		c.log.Errorf("spi chip write before start", "offset", offset)
		return verr.WrapIO("store.SPIChip.Write", errNotStarted)
	}
	if uint64(offset)+uint64(len(src)) > uint64(c.size) {
		c.log.Errorf("spi chip write out of range", "offset", offset, "len", len(src), "size", c.size)
		return verr.ErrAddressOutOfRange
	}
	return c.frame(spiInstrWrite, offset, src, true)
}

// frame stands in for one SPI transaction. Only the data phase is simulated,
// as a copy to or from the in-memory array; the command byte and the
// addrWidth address bytes are not encoded. write selects the data direction.
func (c *SPIChip) frame(cmd byte, offset uint32, data []byte, write bool) error {
	_ = cmd // real hardware would shift this out first
	if write {
		copy(c.mem[offset:], data)
	} else {
		copy(data, c.mem[offset:offset+uint32(len(data))])
	}
	return nil
}

var errNotStarted = chipNotStartedErr{}

type chipNotStartedErr struct{}

func (chipNotStartedErr) Error() string { return "spi chip not started" }
