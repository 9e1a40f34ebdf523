// Package hardware opens the Linux bus backends a stmpe610.Controller runs
// on: periph.io GPIO, SPI and I2C, or go-rpio for SPI.
package hardware

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"lautenbacher.net/gotouch/config"
	"lautenbacher.net/gotouch/stmpe610"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Init loads the periph.io host drivers. It is safe to call repeatedly.
func Init() error {
	slog.Info("Initialise GPIO, SPI and I2C drivers...")
	state, err := host.Init()
	if err != nil {
		return fmt.Errorf("failed to init periph: %w", err)
	}
	for _, f := range state.Failed {
		slog.Debug("periph driver failed", "driver", f.D, "error", f.Err)
	}
	return nil
}

// closers closes in reverse order of opening.
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func pinByNumber(n int) (gpio.PinIO, error) {
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if pin == nil {
		return nil, fmt.Errorf("failed to find pin %d", n)
	}
	return pin, nil
}

// OpenTransport builds the transport cfg selects. The returned closer
// releases the bus and must be called once the Controller is done.
func OpenTransport(cfg config.TouchConfig) (stmpe610.Transport, io.Closer, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Opening touch transport", "transport", kind)

	switch kind {
	case stmpe610.KindHardwareSPI:
		cs, err := pinByNumber(cfg.Pins.CS)
		if err != nil {
			return nil, nil, err
		}
		var bus interface {
			stmpe610.SPIBus
			io.Closer
		}
		switch strings.ToLower(cfg.SPI.Backend) {
		case "rpio":
			r, err := OpenRpioSPI()
			if err != nil {
				return nil, nil, err
			}
			bus = r
		default:
			bus = NewPeriphSPI(cfg.SPI.Device)
		}
		return stmpe610.HardwareSPI{Bus: bus, CS: cs, MaxHz: cfg.SPI.MaxHz}, closers{bus}, nil

	case stmpe610.KindSoftwareSPI:
		var pins [4]gpio.PinIO
		for i, n := range []int{cfg.Pins.CS, cfg.Pins.MOSI, cfg.Pins.MISO, cfg.Pins.CLK} {
			if pins[i], err = pinByNumber(n); err != nil {
				return nil, nil, err
			}
		}
		return stmpe610.SoftwareSPI{
			CS:         pins[0],
			MOSI:       pins[1],
			MISO:       pins[2],
			CLK:        pins[3],
			HalfPeriod: cfg.SPI.HalfPeriod,
		}, closers{}, nil

	default:
		bus, err := i2creg.Open(cfg.I2C.Bus)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open i2c bus %q: %w", cfg.I2C.Bus, err)
		}
		return stmpe610.I2C{Bus: bus, Address: cfg.I2C.Address}, closers{bus}, nil
	}
}
