package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/gotouch/stmpe610"
)

const validTouch = `
Touch:
  Pins: { CS: 8, MOSI: -1, MISO: -1, CLK: -1 }
  SPI:
    Device: "/dev/spidev0.0"
    Backend: "periph"
    MaxHz: 500000
  I2C:
    Bus: ""
    Address: 0x41
  InitRetries: 5
`

const validPolling = `
Polling:
  Interval: 20ms
  MinPressure: 10
  ReportRelease: false
`

const validSimulation = `
Simulation:
  Transport: "swspi"
  Mode: 0
  PanelWidth: 1024
  PanelHeight: 768
`

const validLogging = `
Web:
  Enabled: true
  Address: ":9090"
Logging:
  TUI:
    Level: "DEBUG"
    Format: "text"
    File: "/tmp/gotouch-tui.log"
  HW:
    Level: "WARN"
    Format: "json"
    File: "/var/log/gotouch-hw.log"
`

func getBaseConfig() string {
	return validTouch + validPolling + validSimulation + validLogging
}

func createConfigFile(t *testing.T, configData string) string {
	configFile := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(configFile, []byte(configData), 0o644); err != nil {
		t.Fatalf("Failed to write dummy config file: %v", err)
	}
	return configFile
}

func TestReadConfig(t *testing.T) {
	configFile := createConfigFile(t, getBaseConfig())

	conf, err := ReadConfig(configFile)
	require.NoError(t, err, "ReadConfig should not return an error")

	assert.Equal(t, configFile, conf.ConfigFile)
	assert.Equal(t, 8, conf.Touch.Pins.CS)
	assert.Equal(t, NoPin, conf.Touch.Pins.CLK)
	assert.Equal(t, int64(500000), conf.Touch.SPI.MaxHz)
	assert.Equal(t, uint16(0x41), conf.Touch.I2C.Address)
	assert.Equal(t, 5, conf.Touch.InitRetries)

	assert.Equal(t, 20*time.Millisecond, conf.Polling.Interval, "Polling.Interval should be 20ms")
	assert.Equal(t, 10, conf.Polling.MinPressure)
	assert.False(t, conf.Polling.ReportRelease)

	assert.Equal(t, "swspi", conf.Simulation.Transport)
	assert.Equal(t, 1024, conf.Simulation.PanelWidth)

	assert.True(t, conf.Web.Enabled)
	assert.Equal(t, ":9090", conf.Web.Address)

	assert.Equal(t, "DEBUG", conf.Logging.TUI.Level, "Logging.TUI.Level should be DEBUG")
	assert.Equal(t, "/tmp/gotouch-tui.log", conf.Logging.TUI.File)
	assert.Equal(t, "WARN", conf.Logging.HW.Level, "Logging.HW.Level should be WARN")
	assert.Equal(t, "json", conf.Logging.HW.Format)
}

func TestReadConfig_Defaults(t *testing.T) {
	configFile := createConfigFile(t, "Web:\n  Enabled: false\n")

	conf, err := ReadConfig(configFile)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Touch, conf.Touch)
	assert.Equal(t, def.Polling, conf.Polling)
	assert.Equal(t, 10*time.Millisecond, conf.Polling.Interval)
	assert.Equal(t, "hwspi", conf.Simulation.Transport)
	assert.Equal(t, 1, conf.Simulation.Mode)
}

func TestReadConfig_MissingFile(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestReadConfig_BadYAML(t *testing.T) {
	configFile := createConfigFile(t, "Polling: [1, 2")
	_, err := ReadConfig(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "can't decode config file")
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr string
	}{
		{"zero interval", "Interval: 20ms", "Interval: 0s", "Polling.Interval must be positive"},
		{"pressure range", "MinPressure: 10", "MinPressure: 300", "Polling.MinPressure must be between 0 and 255"},
		{"pin range", "CS: 8,", "CS: 60,", "Touch.Pins.CS must be between -1 and 53"},
		{"unknown transport", "Pins: {", "Transport: \"usb\"\n  Pins: {", "unknown transport"},
		{"swspi needs all pins", "Pins: {", "Transport: \"swspi\"\n  Pins: {", "Touch.Pins.MOSI must be set for swspi"},
		{"backend", "Backend: \"periph\"", "Backend: \"wiringpi\"", "Touch.SPI.Backend must be periph or rpio"},
		{"max hz", "MaxHz: 500000", "MaxHz: 0", "Touch.SPI.MaxHz must be positive"},
		{"retries", "InitRetries: 5", "InitRetries: 0", "Touch.InitRetries must be at least 1"},
		{"sim mode", "Mode: 0", "Mode: 2", "Simulation.Mode must be 0 or 1"},
		{"sim width", "PanelWidth: 1024", "PanelWidth: 5000", "Simulation.PanelWidth must be between 1 and 4096"},
		{"web address", "Address: \":9090\"", "Address: \"\"", "Web.Address must be set"},
		{"log level", "Level: \"WARN\"", "Level: \"LOUD\"", "Logging.HW.Level must be one of"},
		{"log format", "Format: \"text\"", "Format: \"xml\"", "Logging.TUI.Format must be text or json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configData := strings.Replace(getBaseConfig(), tt.from, tt.to, 1)
			require.NotEqual(t, getBaseConfig(), configData, "replacement must apply")
			configFile := createConfigFile(t, configData)

			_, err := ReadConfig(configFile)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadConfig_I2CAddressRange(t *testing.T) {
	configData := strings.Replace(getBaseConfig(), "CS: 8,", "CS: -1,", 1)
	configData = strings.Replace(configData, "Address: 0x41", "Address: 0x80", 1)
	_, err := ReadConfig(createConfigFile(t, configData))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Touch.I2C.Address must be between 0x03 and 0x77")
}

func TestTouchConfig_Kind(t *testing.T) {
	tests := []struct {
		name string
		tc   TouchConfig
		want stmpe610.Kind
	}{
		{"cs only", TouchConfig{Pins: PinsConfig{CS: 8, MOSI: NoPin, MISO: NoPin, CLK: NoPin}}, stmpe610.KindHardwareSPI},
		{"clock set", TouchConfig{Pins: PinsConfig{CS: 8, MOSI: 10, MISO: 9, CLK: 11}}, stmpe610.KindSoftwareSPI},
		{"no cs", TouchConfig{Pins: PinsConfig{CS: NoPin, MOSI: NoPin, MISO: NoPin, CLK: NoPin}}, stmpe610.KindI2C},
		{"explicit wins", TouchConfig{Transport: "I2C", Pins: PinsConfig{CS: 8, CLK: NoPin}}, stmpe610.KindI2C},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tc.Kind()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuntimeRoundTrip(t *testing.T) {
	conf := Default()
	rc := conf.Runtime()
	rc.Polling.MinPressure = 42
	conf.ApplyRuntime(rc)
	assert.Equal(t, 42, conf.Polling.MinPressure)
	assert.NoError(t, conf.Validate())
}
