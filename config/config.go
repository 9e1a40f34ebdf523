package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"lautenbacher.net/gotouch/stmpe610"
)

const CONFILE = "config.yml"

// NoPin marks an unassigned GPIO line.
const NoPin = -1

// Largest BCM GPIO number on a Raspberry Pi.
const maxGPIO = 53

type Config struct {
	RealHW     bool   `yaml:"-" json:"-"`
	ShowTouch  bool   `yaml:"-" json:"-"`
	ConfigFile string `yaml:"-" json:"-"`

	Touch      TouchConfig      `yaml:"Touch"`
	Polling    PollingConfig    `yaml:"Polling"`
	Simulation SimulationConfig `yaml:"Simulation"`
	Web        WebConfig        `yaml:"Web"`
	Logging    LoggingConfig    `yaml:"Logging"`
}

type TouchConfig struct {
	// Transport is one of hwspi, swspi or i2c. Empty derives it from Pins.
	Transport   string     `yaml:"Transport"`
	Pins        PinsConfig `yaml:"Pins"`
	SPI         SPIConfig  `yaml:"SPI"`
	I2C         I2CConfig  `yaml:"I2C"`
	InitRetries int        `yaml:"InitRetries"`
}

// PinsConfig holds BCM GPIO numbers, NoPin for unused lines.
type PinsConfig struct {
	CS   int `yaml:"CS"`
	MOSI int `yaml:"MOSI"`
	MISO int `yaml:"MISO"`
	CLK  int `yaml:"CLK"`
}

type SPIConfig struct {
	Device     string        `yaml:"Device"`
	Backend    string        `yaml:"Backend"`
	MaxHz      int64         `yaml:"MaxHz"`
	HalfPeriod time.Duration `yaml:"HalfPeriod"`
}

type I2CConfig struct {
	Bus     string `yaml:"Bus"`
	Address uint16 `yaml:"Address"`
}

type PollingConfig struct {
	Interval      time.Duration `yaml:"Interval" json:"Interval"`
	MinPressure   int           `yaml:"MinPressure" json:"MinPressure"`
	ReportRelease bool          `yaml:"ReportRelease" json:"ReportRelease"`
}

type SimulationConfig struct {
	Transport   string `yaml:"Transport"`
	Mode        int    `yaml:"Mode"`
	PanelWidth  int    `yaml:"PanelWidth"`
	PanelHeight int    `yaml:"PanelHeight"`
}

type WebConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Address string `yaml:"Address"`
}

type LoggingConfig struct {
	TUI LogConfig `yaml:"TUI"`
	HW  LogConfig `yaml:"HW"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

// Default returns the configuration used for every key the file omits.
func Default() Config {
	return Config{
		Touch: TouchConfig{
			Pins: PinsConfig{CS: 8, MOSI: NoPin, MISO: NoPin, CLK: NoPin},
			SPI: SPIConfig{
				Device:  "/dev/spidev0.0",
				Backend: "periph",
				MaxHz:   stmpe610.DefaultMaxHz,
			},
			I2C:         I2CConfig{Address: stmpe610.DefaultAddress},
			InitRetries: 3,
		},
		Polling: PollingConfig{
			Interval:      10 * time.Millisecond,
			ReportRelease: true,
		},
		Simulation: SimulationConfig{
			Transport:   "hwspi",
			Mode:        1,
			PanelWidth:  4096,
			PanelHeight: 4096,
		},
		Web: WebConfig{Address: ":8080"},
		Logging: LoggingConfig{
			TUI: LogConfig{Level: "DEBUG", Format: "text"},
			HW:  LogConfig{Level: "INFO", Format: "json"},
		},
	}
}

// ReadConfig decodes cfile over Default and validates the result.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := Default()
	if err := yaml.NewDecoder(f).Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.ConfigFile = cfile

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// ParseKind maps a transport name to a stmpe610.Kind.
func ParseKind(name string) (stmpe610.Kind, error) {
	switch strings.ToLower(name) {
	case "hwspi":
		return stmpe610.KindHardwareSPI, nil
	case "swspi":
		return stmpe610.KindSoftwareSPI, nil
	case "i2c":
		return stmpe610.KindI2C, nil
	}
	return 0, fmt.Errorf("unknown transport %q, expected hwspi, swspi or i2c", name)
}

// Kind returns the configured transport. Without an explicit Transport a
// clock pin selects software SPI, a chip select alone hardware SPI and no
// chip select I2C.
func (t TouchConfig) Kind() (stmpe610.Kind, error) {
	if t.Transport != "" {
		return ParseKind(t.Transport)
	}
	switch {
	case t.Pins.CLK != NoPin:
		return stmpe610.KindSoftwareSPI, nil
	case t.Pins.CS != NoPin:
		return stmpe610.KindHardwareSPI, nil
	default:
		return stmpe610.KindI2C, nil
	}
}

// Validate checks the configuration and names the first offending field.
func (c *Config) Validate() error {
	if err := c.Touch.validate(); err != nil {
		return err
	}
	if err := c.Polling.validate(); err != nil {
		return err
	}
	if err := c.Simulation.validate(); err != nil {
		return err
	}
	if c.Web.Enabled && c.Web.Address == "" {
		return fmt.Errorf("Web.Address must be set when Web.Enabled is true")
	}
	if err := c.Logging.TUI.validate("Logging.TUI"); err != nil {
		return err
	}
	return c.Logging.HW.validate("Logging.HW")
}

func (t TouchConfig) validate() error {
	pins := []struct {
		name string
		num  int
	}{
		{"CS", t.Pins.CS}, {"MOSI", t.Pins.MOSI}, {"MISO", t.Pins.MISO}, {"CLK", t.Pins.CLK},
	}
	for _, p := range pins {
		if p.num < NoPin || p.num > maxGPIO {
			return fmt.Errorf("Touch.Pins.%s must be between %d and %d, got %d", p.name, NoPin, maxGPIO, p.num)
		}
	}

	kind, err := t.Kind()
	if err != nil {
		return fmt.Errorf("Touch.Transport: %w", err)
	}
	switch kind {
	case stmpe610.KindHardwareSPI:
		if t.Pins.CS == NoPin {
			return fmt.Errorf("Touch.Pins.CS must be set for hwspi")
		}
		if t.SPI.Device == "" {
			return fmt.Errorf("Touch.SPI.Device must be set for hwspi")
		}
		if b := strings.ToLower(t.SPI.Backend); b != "periph" && b != "rpio" {
			return fmt.Errorf("Touch.SPI.Backend must be periph or rpio, got %q", t.SPI.Backend)
		}
		if t.SPI.MaxHz <= 0 {
			return fmt.Errorf("Touch.SPI.MaxHz must be positive")
		}
	case stmpe610.KindSoftwareSPI:
		for _, p := range pins {
			if p.num == NoPin {
				return fmt.Errorf("Touch.Pins.%s must be set for swspi", p.name)
			}
		}
		if t.SPI.HalfPeriod < 0 {
			return fmt.Errorf("Touch.SPI.HalfPeriod must be non-negative")
		}
	case stmpe610.KindI2C:
		if t.I2C.Address < 0x03 || t.I2C.Address > 0x77 {
			return fmt.Errorf("Touch.I2C.Address must be between 0x03 and 0x77, got %#x", t.I2C.Address)
		}
	}

	if t.InitRetries < 1 {
		return fmt.Errorf("Touch.InitRetries must be at least 1")
	}
	return nil
}

func (p PollingConfig) validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("Polling.Interval must be positive")
	}
	if p.MinPressure < 0 || p.MinPressure > 255 {
		return fmt.Errorf("Polling.MinPressure must be between 0 and 255, got %d", p.MinPressure)
	}
	return nil
}

func (s SimulationConfig) validate() error {
	if _, err := ParseKind(s.Transport); err != nil {
		return fmt.Errorf("Simulation.Transport: %w", err)
	}
	if s.Mode != 0 && s.Mode != 1 {
		return fmt.Errorf("Simulation.Mode must be 0 or 1, got %d", s.Mode)
	}
	if s.PanelWidth < 1 || s.PanelWidth > 4096 {
		return fmt.Errorf("Simulation.PanelWidth must be between 1 and 4096, got %d", s.PanelWidth)
	}
	if s.PanelHeight < 1 || s.PanelHeight > 4096 {
		return fmt.Errorf("Simulation.PanelHeight must be between 1 and 4096, got %d", s.PanelHeight)
	}
	return nil
}

func (l LogConfig) validate(prefix string) error {
	switch strings.ToUpper(l.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("%s.Level must be one of DEBUG, INFO, WARN, ERROR, got %q", prefix, l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%s.Format must be text or json, got %q", prefix, l.Format)
	}
	return nil
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
