package sim

import (
	"errors"

	"lautenbacher.net/gotouch/stmpe610"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

var errEnded = errors.New("sim: transaction already ended")

// Pin is a GPIO line wired to the chip. Out and Read are routed to the chip
// model; everything else behaves like a gpiotest.Pin.
type Pin struct {
	gpiotest.Pin
	onOut  func(l gpio.Level)
	onRead func() gpio.Level
}

func newPin(name string, onOut func(gpio.Level), onRead func() gpio.Level) *Pin {
	return &Pin{
		Pin:    gpiotest.Pin{N: name, Num: -1},
		onOut:  onOut,
		onRead: onRead,
	}
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	if p.onOut != nil {
		p.onOut(l)
	}
	return nil
}

// Read implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	if p.onRead != nil {
		return p.onRead()
	}
	return p.Pin.Read()
}

// Hardware SPI

// CS returns the chip select line for the hardware SPI path.
func (c *Chip) CS() *Pin {
	return c.soft.cs
}

// Begin implements stmpe610.SPIBus. Transfers in a mode other than the
// chip's own are not understood: the chip ignores them and MISO floats
// high.
func (c *Chip) Begin(cfg stmpe610.SPIConfig) (stmpe610.Transaction, error) {
	return &transaction{chip: c, mode: cfg.Mode}, nil
}

type transaction struct {
	chip  *Chip
	mode  stmpe610.Mode
	ended bool
}

func (t *transaction) Transfer(w byte) (byte, error) {
	if t.ended {
		return 0, errEnded
	}
	c := t.chip
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return 0xFF, nil
	}
	if t.mode != c.mode {
		return 0xFF, nil
	}
	return c.exchange(w), nil
}

func (t *transaction) End() error {
	if t.ended {
		return errEnded
	}
	t.ended = true
	return nil
}

// Bit-banged SPI

type softPins struct {
	cs, mosi, miso, clk *Pin
}

// SoftPins returns the chip select, MOSI, MISO and clock lines for the
// bit-banged path. The chip samples MOSI on the rising clock edge and
// presents the matching MISO bit while the clock is high.
func (c *Chip) SoftPins() (cs, mosi, miso, clk *Pin) {
	return c.soft.cs, c.soft.mosi, c.soft.miso, c.soft.clk
}

func newSoftPins(c *Chip) softPins {
	var p softPins
	p.cs = newPin("CS", func(l gpio.Level) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.selectLocked(l == gpio.Low)
	}, nil)
	p.mosi = newPin("MOSI", nil, nil)
	p.miso = newPin("MISO", nil, func() gpio.Level {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.bits == 0 {
			return gpio.Level(c.shiftOut&0x80 != 0)
		}
		return gpio.Level(c.shiftOut&(1<<uint(8-c.bits)) != 0)
	})
	p.clk = newPin("CLK", func(l gpio.Level) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.clockLocked(l, p.mosi.Pin.Read())
	}, nil)
	return p
}

// clockLocked advances the bit shifter on clock edges. A byte completes on
// the falling edge after the eighth rising edge, so the last MISO bit can
// still be sampled while the clock is high.
func (c *Chip) clockLocked(l gpio.Level, mosi gpio.Level) {
	if !c.selected {
		return
	}
	if l == gpio.High {
		if c.bits == 0 {
			c.shiftOut = c.reply()
		}
		c.shiftIn <<= 1
		if mosi == gpio.High {
			c.shiftIn |= 1
		}
		c.bits++
		return
	}
	if c.bits == 8 {
		c.receive(c.shiftIn)
		c.shiftIn = 0
		c.bits = 0
	}
}

// Transport wires a stmpe610 transport of the given kind to the chip.
func (c *Chip) Transport(kind stmpe610.Kind) stmpe610.Transport {
	switch kind {
	case stmpe610.KindSoftwareSPI:
		cs, mosi, miso, clk := c.SoftPins()
		return stmpe610.SoftwareSPI{CS: cs, MOSI: mosi, MISO: miso, CLK: clk}
	case stmpe610.KindI2C:
		return stmpe610.I2C{Bus: c, Address: c.addr}
	default:
		return stmpe610.HardwareSPI{Bus: c, CS: c.CS()}
	}
}
