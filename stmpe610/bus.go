package stmpe610

import (
	"sync"

	"tinygo.org/x/drivers"
)

// DefaultMaxHz keeps hardware SPI within the chip's timing budget.
const DefaultMaxHz = 1000000

// SPIConfig is the bus setting a Controller needs for one transaction.
type SPIConfig struct {
	MaxHz int64
	Mode  Mode
}

// SPIBus is a hardware SPI peripheral. Begin applies cfg and grants
// exclusive use of the bus until the returned Transaction is ended.
//
// Implementations decide how settings reach the hardware: reconnecting a
// port, re-applying a clock divider, or saving and restoring a shared
// control register.
type SPIBus interface {
	Begin(cfg SPIConfig) (Transaction, error)
}

// Transaction is a bracketed use of an SPIBus. End must be called on every
// exit path.
type Transaction interface {
	Transfer(w byte) (byte, error)
	End() error
}

// DriversSPI adapts a tinygo.org/x/drivers SPI bus, such as a TinyGo
// machine.SPI, to SPIBus. Configure, if set, is called whenever the
// requested settings differ from the ones last applied.
type DriversSPI struct {
	Bus       drivers.SPI
	Configure func(cfg SPIConfig) error

	mu      sync.Mutex
	applied *SPIConfig
}

func (d *DriversSPI) Begin(cfg SPIConfig) (Transaction, error) {
	d.mu.Lock()
	if d.Configure != nil && (d.applied == nil || *d.applied != cfg) {
		if err := d.Configure(cfg); err != nil {
			d.mu.Unlock()
			return nil, err
		}
		applied := cfg
		d.applied = &applied
	}
	return &driversTx{owner: d}, nil
}

type driversTx struct {
	owner *DriversSPI
	ended bool
}

func (t *driversTx) Transfer(w byte) (byte, error) {
	return t.owner.Bus.Transfer(w)
}

func (t *driversTx) End() error {
	if !t.ended {
		t.ended = true
		t.owner.mu.Unlock()
	}
	return nil
}
