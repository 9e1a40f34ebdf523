package hardware

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	"lautenbacher.net/gotouch/stmpe610"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

var errEnded = errors.New("hardware: transaction already ended")

// PeriphSPI is a periph.io SPI port shared by transaction. A port can only
// be connected once, so a change of clock or mode closes and reopens it.
// The chip select is driven by the caller, the port runs with spi.NoCS.
type PeriphSPI struct {
	open func() (spi.PortCloser, error)

	mu      sync.Mutex
	port    spi.PortCloser
	conn    spi.Conn
	applied stmpe610.SPIConfig
}

// NewPeriphSPI opens device (e.g. "/dev/spidev0.0") on first use.
func NewPeriphSPI(device string) *PeriphSPI {
	return &PeriphSPI{
		open: func() (spi.PortCloser, error) {
			return spireg.Open(device)
		},
	}
}

func periphMode(m stmpe610.Mode) spi.Mode {
	if m == stmpe610.Mode1 {
		return spi.Mode1 | spi.NoCS
	}
	return spi.Mode0 | spi.NoCS
}

func (p *PeriphSPI) Begin(cfg stmpe610.SPIConfig) (stmpe610.Transaction, error) {
	p.mu.Lock()
	if p.conn == nil || p.applied != cfg {
		if err := p.reconnect(cfg); err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}
	return &periphTx{owner: p}, nil
}

func (p *PeriphSPI) reconnect(cfg stmpe610.SPIConfig) error {
	if p.port != nil {
		if err := p.port.Close(); err != nil {
			slog.Warn("Error closing spi port", "error", err)
		}
		p.port, p.conn = nil, nil
	}
	port, err := p.open()
	if err != nil {
		return fmt.Errorf("failed to open spi: %w", err)
	}
	conn, err := port.Connect(physic.Frequency(cfg.MaxHz)*physic.Hertz, periphMode(cfg.Mode), 8)
	if err != nil {
		port.Close()
		return fmt.Errorf("failed to connect to spi device: %w", err)
	}
	slog.Debug("spi port connected", "hz", cfg.MaxHz, "mode", cfg.Mode)
	p.port, p.conn, p.applied = port, conn, cfg
	return nil
}

// Close releases the port. A later Begin reopens it.
func (p *PeriphSPI) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port, p.conn = nil, nil
	return err
}

type periphTx struct {
	owner *PeriphSPI
	ended bool
	w, r  [1]byte
}

func (t *periphTx) Transfer(w byte) (byte, error) {
	if t.ended {
		return 0, errEnded
	}
	t.w[0] = w
	if err := t.owner.conn.Tx(t.w[:], t.r[:]); err != nil {
		return 0, err
	}
	return t.r[0], nil
}

func (t *periphTx) End() error {
	if t.ended {
		return errEnded
	}
	t.ended = true
	t.owner.mu.Unlock()
	return nil
}

// rpioBus is the subset of go-rpio's global SPI block RpioSPI uses.
type rpioBus interface {
	speed(hz int)
	mode(polarity, phase uint8)
	exchange(b []byte)
}

type goRpio struct{}

func (goRpio) speed(hz int)               { rpio.SpiSpeed(hz) }
func (goRpio) mode(polarity, phase uint8) { rpio.SpiMode(polarity, phase) }
func (goRpio) exchange(b []byte)          { rpio.SpiExchange(b) }

// RpioSPI drives the BCM283x SPI0 block through go-rpio. The block is
// global to the process, so Begin applies the requested settings and End
// puts back whatever was in effect before.
type RpioSPI struct {
	bus rpioBus

	mu      sync.Mutex
	current *stmpe610.SPIConfig
}

// OpenRpioSPI maps the GPIO registers and claims SPI0. The SPI0 chip
// enable lines are overridden once the chip select pin is driven as a
// GPIO output.
func OpenRpioSPI() (*RpioSPI, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open rpio: %w", err)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		rpio.Close()
		return nil, fmt.Errorf("failed to begin rpio spi: %w", err)
	}
	return &RpioSPI{bus: goRpio{}}, nil
}

func (r *RpioSPI) apply(cfg stmpe610.SPIConfig) {
	r.bus.speed(int(cfg.MaxHz))
	if cfg.Mode == stmpe610.Mode1 {
		r.bus.mode(0, 1)
	} else {
		r.bus.mode(0, 0)
	}
	applied := cfg
	r.current = &applied
}

func (r *RpioSPI) Begin(cfg stmpe610.SPIConfig) (stmpe610.Transaction, error) {
	r.mu.Lock()
	saved := r.current
	if saved == nil || *saved != cfg {
		r.apply(cfg)
	}
	return &rpioTx{owner: r, saved: saved}, nil
}

// Close releases SPI0 and unmaps the GPIO registers.
func (r *RpioSPI) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bus.(goRpio); !ok {
		return nil
	}
	rpio.SpiEnd(rpio.Spi0)
	return rpio.Close()
}

type rpioTx struct {
	owner *RpioSPI
	saved *stmpe610.SPIConfig
	ended bool
	b     [1]byte
}

func (t *rpioTx) Transfer(w byte) (byte, error) {
	if t.ended {
		return 0, errEnded
	}
	t.b[0] = w
	t.owner.bus.exchange(t.b[:])
	return t.b[0], nil
}

func (t *rpioTx) End() error {
	if t.ended {
		return errEnded
	}
	t.ended = true
	if t.saved != nil && *t.saved != *t.owner.current {
		t.owner.apply(*t.saved)
	}
	t.owner.mu.Unlock()
	return nil
}
