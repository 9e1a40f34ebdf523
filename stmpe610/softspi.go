package stmpe610

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// softSPI shifts bytes MSB first over GPIO lines. The clock idles low, MOSI
// is set up before the rising edge and MISO is sampled while the clock is
// high.
type softSPI struct {
	mosi gpio.PinOut
	miso gpio.PinIn
	clk  gpio.PinOut
	tclk  time.Duration
	delay func(time.Duration)
}

func newSoftSPI(t SoftwareSPI, delay func(time.Duration)) *softSPI {
	return &softSPI{
		mosi:  t.MOSI,
		miso:  t.MISO,
		clk:   t.CLK,
		tclk:  t.HalfPeriod,
		delay: delay,
	}
}

// configure sets directions and idle levels.
func (s *softSPI) configure() error {
	if err := s.clk.Out(gpio.Low); err != nil {
		return err
	}
	if err := s.mosi.Out(gpio.Low); err != nil {
		return err
	}
	return s.miso.In(gpio.PullNoChange, gpio.NoEdge)
}

func (s *softSPI) shiftOut(v byte) error {
	for bit := 7; bit >= 0; bit-- {
		if err := s.mosi.Out(gpio.Level(v&(1<<uint(bit)) != 0)); err != nil {
			return err
		}
		if err := s.pulse(nil, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *softSPI) shiftIn() (byte, error) {
	var v byte
	for bit := 7; bit >= 0; bit-- {
		if err := s.pulse(&v, uint(bit)); err != nil {
			return 0, err
		}
	}
	return v, nil
}

// pulse raises and lowers the clock once. If in is non-nil the MISO level
// is sampled into bit of *in while the clock is high.
func (s *softSPI) pulse(in *byte, bit uint) error {
	s.wait()
	if err := s.clk.Out(gpio.High); err != nil {
		return err
	}
	if in != nil && s.miso.Read() == gpio.High {
		*in |= 1 << bit
	}
	s.wait()
	return s.clk.Out(gpio.Low)
}

func (s *softSPI) wait() {
	if s.tclk > 0 {
		s.delay(s.tclk)
	}
}
