package stmpe610

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"tinygo.org/x/drivers"
)

// Kind identifies which bus a Controller talks over.
type Kind int

const (
	KindHardwareSPI Kind = iota
	KindSoftwareSPI
	KindI2C
)

func (k Kind) String() string {
	switch k {
	case KindHardwareSPI:
		return "hwspi"
	case KindSoftwareSPI:
		return "swspi"
	case KindI2C:
		return "i2c"
	default:
		return "unknown"
	}
}

// Mode is the SPI signal timing the chip answers in. It is negotiated once
// during Init on hardware SPI and fixed afterwards.
type Mode int

const (
	Mode0 Mode = iota
	Mode1
)

func (m Mode) String() string {
	if m == Mode1 {
		return "Mode1"
	}
	return "Mode0"
}

// Transport is the bus configuration a Controller is bound to. It is one of
// HardwareSPI, SoftwareSPI or I2C.
type Transport interface {
	kind() Kind
}

// HardwareSPI drives the chip through a platform SPI peripheral with a GPIO
// chip select.
type HardwareSPI struct {
	Bus SPIBus
	CS  gpio.PinOut
	// MaxHz defaults to DefaultMaxHz if zero.
	MaxHz int64
}

// SoftwareSPI bit-bangs SPI over four GPIO lines.
type SoftwareSPI struct {
	CS   gpio.PinOut
	MOSI gpio.PinOut
	MISO gpio.PinIn
	CLK  gpio.PinOut
	// HalfPeriod is slept between clock edges. Zero toggles as fast as the
	// pins allow.
	HalfPeriod time.Duration
}

// I2C talks to the chip at Address on an I2C bus. Any bus with a
// Tx(addr, w, r) method works, e.g. a periph.io i2c.Bus or a TinyGo
// machine.I2C.
type I2C struct {
	Bus drivers.I2C
	// Address defaults to DefaultAddress if zero.
	Address uint16
}

func (HardwareSPI) kind() Kind { return KindHardwareSPI }
func (SoftwareSPI) kind() Kind { return KindSoftwareSPI }
func (I2C) kind() Kind         { return KindI2C }
