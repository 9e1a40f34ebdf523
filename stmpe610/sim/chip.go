// Package sim emulates an STMPE610 at register level. A Chip answers over
// all three transports the driver supports, so the real Controller can run
// against it in tests and in the terminal simulation.
package sim

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"lautenbacher.net/gotouch/stmpe610"
	"lautenbacher.net/gotouch/util"
)

// FIFODepth is the number of samples the chip buffers.
const FIFODepth = stmpe610.FIFODepth

// Write is one register write seen by the chip.
type Write struct {
	Reg byte
	Val byte
}

// Chip is an emulated STMPE610. It is safe for concurrent use; touches can
// be injected from one goroutine while a Controller polls from another.
type Chip struct {
	mu sync.Mutex

	mode    stmpe610.Mode
	addr    uint16
	version uint16

	regs     [256]byte
	fifo     deque.Deque[[4]byte]
	pending  []byte
	overflow bool
	touched  bool
	writes   []Write

	// SPI framing
	selected bool
	pos      int
	cmd      byte
	latched  byte

	// bit-banged SPI
	soft     softPins
	shiftIn  byte
	shiftOut byte
	bits     int

	// I2C register pointer
	ptr byte
}

// Option configures a Chip.
type Option func(*Chip)

// WithMode sets the SPI mode the chip answers in. Default Mode0.
func WithMode(m stmpe610.Mode) Option {
	return func(c *Chip) { c.mode = m }
}

// WithAddress sets the I2C address. Default stmpe610.DefaultAddress.
func WithAddress(addr uint16) Option {
	return func(c *Chip) { c.addr = addr }
}

// WithVersion overrides the CHIP_ID value, e.g. to emulate a foreign part.
func WithVersion(v uint16) Option {
	return func(c *Chip) { c.version = v }
}

// NewChip returns a chip in its power-on state.
func NewChip(opts ...Option) *Chip {
	c := &Chip{
		addr:    stmpe610.DefaultAddress,
		version: stmpe610.ChipID,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fifo.Grow(FIFODepth)
	c.reset()
	c.soft = newSoftPins(c)
	return c
}

func (c *Chip) reset() {
	c.regs = [256]byte{}
	c.regs[stmpe610.REG_CHIP_ID] = byte(c.version >> 8)
	c.regs[stmpe610.REG_CHIP_ID+1] = byte(c.version)
	c.regs[stmpe610.REG_ID_VER] = 0x03
	c.regs[stmpe610.REG_SYS_CTRL2] = 0x0F
	c.fifo.Clear()
	c.pending = nil
	c.overflow = false
}

// Mode reports the SPI mode the chip answers in.
func (c *Chip) Mode() stmpe610.Mode {
	return c.mode
}

// Touch presses the panel at x, y with pressure z. If touch sensing is
// enabled the sample is queued in the FIFO.
func (c *Chip) Touch(x, y, z int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.touched {
		c.regs[stmpe610.REG_INT_STA] |= stmpe610.INT_STA_TOUCHDET
	}
	c.touched = true

	if c.regs[stmpe610.REG_TSC_CTRL]&stmpe610.TSC_CTRL_EN == 0 {
		return
	}
	if c.regs[stmpe610.REG_FIFO_STA]&stmpe610.FIFO_STA_RESET != 0 {
		return
	}
	if c.fifo.Len() == FIFODepth {
		c.overflow = true
		c.regs[stmpe610.REG_INT_STA] |= stmpe610.INT_STA_FIFOOF
		return
	}
	c.fifo.PushBack(packSample(x, y, z))
	if th := int(c.regs[stmpe610.REG_FIFO_TH]); th > 0 && c.fifo.Len() >= th {
		c.regs[stmpe610.REG_INT_STA] |= stmpe610.INT_STA_FIFOTH
	}
	if c.fifo.Len() == FIFODepth {
		c.regs[stmpe610.REG_INT_STA] |= stmpe610.INT_STA_FIFOFULL
	}
}

// Release lifts the touch.
func (c *Chip) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.touched {
		c.regs[stmpe610.REG_INT_STA] |= stmpe610.INT_STA_TOUCHDET
	}
	c.touched = false
}

// Queued returns the number of samples in the FIFO.
func (c *Chip) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fifo.Len()
}

// Register returns a register value without read side effects.
func (c *Chip) Register(reg byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch reg {
	case stmpe610.REG_FIFO_STA, stmpe610.REG_FIFO_SIZE, stmpe610.REG_TSC_CTRL:
		return c.readLocked(reg)
	}
	return c.regs[reg]
}

// Writes returns a copy of the register write log.
func (c *Chip) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]Write, len(c.writes))
	copy(ret, c.writes)
	return ret
}

// ClearWrites empties the register write log.
func (c *Chip) ClearWrites() {
	c.mu.Lock()
	c.writes = nil
	c.mu.Unlock()
}

func packSample(x, y, z int) [4]byte {
	x = util.Clamp(x, 0, 0xFFF)
	y = util.Clamp(y, 0, 0xFFF)
	z = util.Clamp(z, 0, 0xFF)
	return [4]byte{
		byte(x >> 4),
		byte(x&0x0F)<<4 | byte(y>>8)&0x0F,
		byte(y),
		byte(z),
	}
}

func isDataRegister(reg byte) bool {
	return reg == stmpe610.REG_TSC_DATA_XYZ_AUTO
}

func (c *Chip) readLocked(reg byte) byte {
	switch {
	case reg == stmpe610.REG_TSC_CTRL:
		v := c.regs[reg] &^ stmpe610.TSC_CTRL_TOUCHED
		if c.touched {
			v |= stmpe610.TSC_CTRL_TOUCHED
		}
		return v
	case reg == stmpe610.REG_FIFO_STA:
		v := c.regs[reg] & stmpe610.FIFO_STA_RESET
		n := c.fifo.Len()
		if n == 0 {
			v |= stmpe610.FIFO_STA_EMPTY
		}
		if n == FIFODepth {
			v |= stmpe610.FIFO_STA_FULL
		}
		if th := int(c.regs[stmpe610.REG_FIFO_TH]); th > 0 && n >= th {
			v |= stmpe610.FIFO_STA_THTRIG
		}
		if c.overflow {
			v |= stmpe610.FIFO_STA_OFLOW
		}
		return v
	case reg == stmpe610.REG_FIFO_SIZE:
		return byte(c.fifo.Len())
	case isDataRegister(reg):
		if len(c.pending) == 0 {
			if c.fifo.Len() == 0 {
				return 0
			}
			s := c.fifo.PopFront()
			c.pending = s[:]
		}
		v := c.pending[0]
		c.pending = c.pending[1:]
		return v
	default:
		return c.regs[reg]
	}
}

func (c *Chip) writeLocked(reg, val byte) {
	c.writes = append(c.writes, Write{Reg: reg, Val: val})
	switch reg {
	case stmpe610.REG_CHIP_ID, stmpe610.REG_CHIP_ID + 1, stmpe610.REG_ID_VER, stmpe610.REG_FIFO_SIZE:
		// read-only
	case stmpe610.REG_SYS_CTRL1:
		if val&stmpe610.SYS_CTRL1_RESET != 0 {
			c.reset()
			return
		}
		c.regs[reg] = val
	case stmpe610.REG_FIFO_STA:
		if val&stmpe610.FIFO_STA_RESET != 0 {
			c.fifo.Clear()
			c.pending = nil
			c.overflow = false
		}
		c.regs[reg] = val & stmpe610.FIFO_STA_RESET
	case stmpe610.REG_INT_STA:
		c.regs[reg] &^= val
	default:
		c.regs[reg] = val
	}
}

// I2C

// Tx implements tinygo.org/x/drivers.I2C. A write of one byte sets the
// register pointer, longer writes store data from the pointer on, reads
// return data from the pointer on. The pointer does not advance on the
// sample data register.
func (c *Chip) Tx(addr uint16, w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr != c.addr {
		return fmt.Errorf("sim: no device at address %#x", addr)
	}
	if len(w) > 0 {
		c.ptr = w[0]
		for _, v := range w[1:] {
			c.writeLocked(c.ptr, v)
			c.advance()
		}
	}
	for i := range r {
		r[i] = c.readLocked(c.ptr)
		c.advance()
	}
	return nil
}

func (c *Chip) advance() {
	if !isDataRegister(c.ptr) {
		c.ptr++
	}
}

// SPI framing, shared by the hardware and bit-banged paths. A frame starts
// when chip select goes low. Byte 0 is the command: bit 7 set reads the
// register in the low 7 bits, clear writes the register named by the whole
// byte with the value in byte 1.

func (c *Chip) selectLocked(low bool) {
	if low == c.selected {
		return
	}
	c.selected = low
	c.pos = 0
	c.bits = 0
	c.shiftIn = 0
	c.shiftOut = 0
}

// reply is the byte the chip shifts out at the current frame position.
func (c *Chip) reply() byte {
	if !c.selected || c.pos == 0 {
		return 0x00
	}
	if c.cmd&0x80 == 0 {
		return 0x00
	}
	if c.pos == 1 {
		// 0xD7 is both the read command for 0x57 and the sample register
		// address with the read flag, and the chip treats it as the latter.
		reg := c.cmd & 0x7F
		if c.cmd == stmpe610.REG_TSC_DATA_XYZ_AUTO {
			reg = c.cmd
		}
		c.latched = c.readLocked(reg)
	}
	return c.latched
}

// receive consumes the byte shifted in at the current frame position.
func (c *Chip) receive(in byte) {
	if !c.selected {
		return
	}
	switch {
	case c.pos == 0:
		c.cmd = in
	case c.pos == 1 && c.cmd&0x80 == 0:
		c.writeLocked(c.cmd, in)
	}
	c.pos++
}

func (c *Chip) exchange(in byte) byte {
	out := c.reply()
	c.receive(in)
	return out
}
