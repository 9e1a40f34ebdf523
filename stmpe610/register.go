package stmpe610

import (
	"log/slog"

	"periph.io/x/conn/v3/gpio"
)

// ReadRegister8 reads one register. A bus failure reads as 0, as does any
// read on a transport missing its bus or pins.
func (c *Controller) ReadRegister8(reg byte) byte {
	if !c.usable() {
		c.busFailed("read", reg, ErrNoBus)
		return 0
	}
	var v byte
	var err error
	if c.kind == KindI2C {
		v, err = c.i2cRead(reg)
	} else {
		err = c.withSPI(func(s *spiSession) error {
			var err error
			v, err = s.readFrame(reg)
			return err
		})
	}
	if err != nil {
		c.busFailed("read", reg, err)
		return 0
	}
	return v
}

// ReadRegister16 reads reg and reg+1 as a big-endian pair, as two chip
// select cycles 25ms apart inside one bus transaction.
//
// It is only implemented for the SPI transports; over I2C it returns 0
// without touching the bus.
func (c *Controller) ReadRegister16(reg byte) uint16 {
	if c.kind == KindI2C {
		slog.Debug("stmpe610: 16-bit register read is SPI only", "reg", reg)
		return 0
	}
	if !c.usable() {
		c.busFailed("read16", reg, ErrNoBus)
		return 0
	}
	var hi, lo byte
	err := c.withSPI(func(s *spiSession) error {
		var err error
		if hi, err = s.readFrame(reg); err != nil {
			return err
		}
		c.delay(pairedDelay)
		lo, err = s.readFrame(reg + 1)
		return err
	})
	if err != nil {
		c.busFailed("read16", reg, err)
		return 0
	}
	return uint16(hi)<<8 | uint16(lo)
}

// WriteRegister8 writes val to reg. A bus failure is logged and dropped.
func (c *Controller) WriteRegister8(reg, val byte) {
	if !c.usable() {
		c.busFailed("write", reg, ErrNoBus)
		return
	}
	var err error
	if c.kind == KindI2C {
		c.w[0], c.w[1] = reg, val
		err = c.i2c.Tx(c.addr, c.w[:2], nil)
	} else {
		err = c.withSPI(func(s *spiSession) error {
			return s.writeFrame(reg, val)
		})
	}
	if err != nil {
		c.busFailed("write", reg, err)
	}
}

// i2cRead sets the register pointer and reads one byte as two separate
// transmissions.
func (c *Controller) i2cRead(reg byte) (byte, error) {
	c.w[0] = reg
	if err := c.i2c.Tx(c.addr, c.w[:1], nil); err != nil {
		return 0, err
	}
	if err := c.i2c.Tx(c.addr, nil, c.r[:1]); err != nil {
		return 0, err
	}
	return c.r[0], nil
}

func (c *Controller) busFailed(op string, reg byte, err error) {
	c.busErr = err
	slog.Debug("stmpe610: bus error", "op", op, "reg", reg, "transport", c.kind, "error", err)
}

// spiSession is one bracketed use of the SPI lines. On hardware SPI it holds
// a bus transaction at the negotiated mode.
type spiSession struct {
	c  *Controller
	tx Transaction
}

// withSPI runs fn inside a session and always ends the bus transaction.
func (c *Controller) withSPI(fn func(s *spiSession) error) (err error) {
	s := &spiSession{c: c}
	if c.kind == KindHardwareSPI {
		s.tx, err = c.bus.Begin(SPIConfig{MaxHz: c.maxHz, Mode: c.mode})
		if err != nil {
			return err
		}
		defer func() {
			if endErr := s.tx.End(); err == nil {
				err = endErr
			}
		}()
	}
	return fn(s)
}

func (s *spiSession) out(v byte) error {
	if s.tx != nil {
		_, err := s.tx.Transfer(v)
		return err
	}
	return s.c.soft.shiftOut(v)
}

func (s *spiSession) in() (byte, error) {
	if s.tx != nil {
		return s.tx.Transfer(0x00)
	}
	return s.c.soft.shiftIn()
}

// selected runs fn with chip select held low.
func (s *spiSession) selected(fn func() error) error {
	if err := s.c.cs.Out(gpio.Low); err != nil {
		return err
	}
	err := fn()
	if csErr := s.c.cs.Out(gpio.High); err == nil {
		err = csErr
	}
	return err
}

func (s *spiSession) readFrame(reg byte) (v byte, err error) {
	err = s.selected(func() error {
		if err := s.out(spiReadFlag | reg); err != nil {
			return err
		}
		if err := s.out(0x00); err != nil {
			return err
		}
		v, err = s.in()
		return err
	})
	return v, err
}

func (s *spiSession) writeFrame(reg, val byte) error {
	return s.selected(func() error {
		if err := s.out(reg); err != nil {
			return err
		}
		return s.out(val)
	})
}
