// Package stmpe610 drives the STMPE610 resistive touchscreen controller over
// hardware SPI, bit-banged SPI or I2C.
//
// The Controller is bound to one Transport at construction. Init checks and
// configures the chip; afterwards Touched, BufferEmpty and GetPoint poll and
// drain the chip's sample FIFO:
//
//	c := stmpe610.New(stmpe610.I2C{Bus: bus})
//	if err := c.Init(); err != nil {
//		return err
//	}
//	for !c.BufferEmpty() {
//		p := c.GetPoint()
//		...
//	}
//
// Register reads and writes have no error result. A failed bus transfer
// reads as zero and is only visible in the debug log, so a broken bus looks
// like a chip that never reports a touch.
//
// Concurrency: a Controller is not safe for concurrent use.
package stmpe610

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"tinygo.org/x/drivers"
)

var (
	// ErrNotFound is returned by Init when the chip does not identify itself
	// in either SPI mode.
	ErrNotFound = errors.New("stmpe610: device not found")
	// ErrNoBus is returned by Init when the transport lacks a bus or a pin.
	ErrNoBus = errors.New("stmpe610: transport incomplete")
)

const (
	resetSettle  = 10 * time.Millisecond
	pairedDelay  = 25 * time.Millisecond
	samplesBytes = 4
)

// bringUp is written in order after reset and flush.
var bringUp = []struct {
	reg, val byte
}{
	{REG_SYS_CTRL2, 0x00}, // turn on clocks
	{REG_TSC_CTRL, TSC_CTRL_XYZ | TSC_CTRL_EN},
	{REG_INT_EN, INT_EN_TOUCHDET},
	{REG_ADC_CTRL1, ADC_CTRL1_10BIT | (0x6 << 4)}, // 96 clocks per conversion
	{REG_ADC_CTRL2, ADC_CTRL2_6_5MHZ},
	{REG_TSC_CFG, TSC_CFG_4SAMPLE | TSC_CFG_DELAY_1MS | TSC_CFG_SETTLE_5MS},
	{REG_TSC_FRACTION_Z, 0x6},
	{REG_FIFO_TH, 1},
	{REG_FIFO_STA, FIFO_STA_RESET},
	{REG_FIFO_STA, 0},
	{REG_TSC_I_DRIVE, TSC_I_DRIVE_50MA},
	{REG_INT_STA, 0xFF},
	{REG_INT_CTRL, INT_CTRL_POL_HIGH | INT_CTRL_ENABLE},
}

// Controller is an STMPE610 bound to one transport.
type Controller struct {
	kind Kind
	mode Mode

	// hardware and software SPI
	cs    gpio.PinOut
	bus   SPIBus
	maxHz int64
	soft  *softSPI

	// I2C
	i2c  drivers.I2C
	addr uint16

	delay func(time.Duration)
	// last bus error since Init started probing; reported with ErrNotFound
	busErr error

	w [2]byte
	r [1]byte
}

// Option configures a Controller.
type Option func(*Controller)

// WithDelay replaces time.Sleep for the reset settle, the paired-read wait
// and the software SPI clock half period.
func WithDelay(fn func(time.Duration)) Option {
	return func(c *Controller) {
		c.delay = fn
	}
}

// New binds a Controller to t. It performs no I/O and does not validate t;
// an unusable transport makes Init fail.
func New(t Transport, opts ...Option) *Controller {
	c := &Controller{
		kind:  t.kind(),
		delay: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	switch t := t.(type) {
	case HardwareSPI:
		c.bus = t.Bus
		c.cs = t.CS
		c.maxHz = t.MaxHz
		if c.maxHz == 0 {
			c.maxHz = DefaultMaxHz
		}
	case SoftwareSPI:
		c.cs = t.CS
		if t.MOSI != nil && t.MISO != nil && t.CLK != nil {
			c.soft = newSoftSPI(t, c.delay)
		}
	case I2C:
		c.i2c = t.Bus
		c.addr = t.Address
		if c.addr == 0 {
			c.addr = DefaultAddress
		}
	}
	return c
}

// Kind reports the transport the Controller was built with.
func (c *Controller) Kind() Kind { return c.kind }

// Mode reports the SPI mode negotiated by Init. It is Mode0 for transports
// that do not negotiate.
func (c *Controller) Mode() Mode { return c.mode }

// Init configures the bus, verifies the chip identity on hardware SPI and
// writes the touch-sensing bring-up sequence.
//
// Only hardware SPI negotiates the mode: it reads the version in Mode0 and
// falls back to Mode1. Software SPI and I2C do not check the version at all.
// Init may be called again to retry.
func (c *Controller) Init() error {
	if err := c.configure(); err != nil {
		return err
	}

	if c.kind == KindHardwareSPI {
		c.busErr = nil
		c.mode = Mode0
		if v0 := c.Version(); v0 != ChipID {
			slog.Debug("stmpe610: no answer in Mode0, trying Mode1", "version", fmt.Sprintf("%#04x", v0))
			c.mode = Mode1
			if v1 := c.Version(); v1 != ChipID {
				if c.busErr != nil {
					return fmt.Errorf("%w: mode0 %#04x, mode1 %#04x: %w", ErrNotFound, v0, v1, c.busErr)
				}
				return fmt.Errorf("%w: mode0 %#04x, mode1 %#04x", ErrNotFound, v0, v1)
			}
		}
		slog.Debug("stmpe610: found device", "mode", c.mode)
	}

	c.WriteRegister8(REG_SYS_CTRL1, SYS_CTRL1_RESET)
	c.delay(resetSettle)

	for i := 0; i < flushRegisters; i++ {
		c.ReadRegister8(byte(i))
	}

	for _, w := range bringUp {
		c.WriteRegister8(w.reg, w.val)
	}
	slog.Info("stmpe610: initialised", "transport", c.kind, "mode", c.mode)
	return nil
}

// usable reports whether the transport has every bus and pin it needs.
func (c *Controller) usable() bool {
	switch c.kind {
	case KindHardwareSPI:
		return c.bus != nil && c.cs != nil
	case KindSoftwareSPI:
		return c.soft != nil && c.cs != nil
	case KindI2C:
		return c.i2c != nil
	}
	return false
}

func (c *Controller) configure() error {
	if !c.usable() {
		return ErrNoBus
	}
	switch c.kind {
	case KindHardwareSPI:
		if err := c.cs.Out(gpio.High); err != nil {
			return fmt.Errorf("stmpe610: chip select: %w", err)
		}
	case KindSoftwareSPI:
		if err := c.cs.Out(gpio.High); err != nil {
			return fmt.Errorf("stmpe610: chip select: %w", err)
		}
		if err := c.soft.configure(); err != nil {
			return fmt.Errorf("stmpe610: software spi: %w", err)
		}
	}
	return nil
}

// Touched reports whether the panel is currently pressed.
func (c *Controller) Touched() bool {
	return c.ReadRegister8(REG_TSC_CTRL)&TSC_CTRL_TOUCHED != 0
}

// BufferEmpty reports whether the sample FIFO is empty.
func (c *Controller) BufferEmpty() bool {
	return c.ReadRegister8(REG_FIFO_STA)&FIFO_STA_EMPTY != 0
}

// BufferSize returns the number of samples in the FIFO.
func (c *Controller) BufferSize() int {
	return int(c.ReadRegister8(REG_FIFO_SIZE))
}

// Version reads the CHIP_ID register pair. A genuine device reports ChipID.
func (c *Controller) Version() uint16 {
	v := uint16(c.ReadRegister8(REG_CHIP_ID)) << 8
	v |= uint16(c.ReadRegister8(REG_CHIP_ID + 1))
	return v
}

// ReadData pops one sample from the FIFO. When the FIFO is empty afterwards
// all pending interrupts are acknowledged.
func (c *Controller) ReadData() (x, y, z int) {
	var data [samplesBytes]byte
	for i := range data {
		data[i] = c.ReadRegister8(REG_TSC_DATA_XYZ_AUTO)
	}
	x, y, z = decodeSample(data)

	if c.BufferEmpty() {
		c.WriteRegister8(REG_INT_STA, 0xFF)
	}
	return x, y, z
}

// GetPoint is ReadData returning a Point.
func (c *Controller) GetPoint() Point {
	x, y, z := c.ReadData()
	return NewPoint(x, y, z)
}

// decodeSample unpacks 12-bit X, 12-bit Y and 8-bit Z.
func decodeSample(b [samplesBytes]byte) (x, y, z int) {
	x = int(b[0])<<4 | int(b[1])>>4
	y = int(b[1]&0x0F)<<8 | int(b[2])
	z = int(b[3])
	return x, y, z
}
