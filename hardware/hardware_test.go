package hardware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/gotouch/config"
	"lautenbacher.net/gotouch/stmpe610"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

// recordingPort is a playback port that remembers how it was connected.
type recordingPort struct {
	*spitest.Playback
	freq   physic.Frequency
	mode   spi.Mode
	bits   int
	closed bool
}

func (r *recordingPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	r.freq, r.mode, r.bits = f, mode, bits
	return r.Playback.Connect(f, mode, bits)
}

func (r *recordingPort) Close() error {
	r.closed = true
	return r.Playback.Close()
}

// fakePorts hands out one playback port per open.
type fakePorts struct {
	ops    [][]conntest.IO
	opened []*recordingPort
	err    error
}

func (f *fakePorts) open() (spi.PortCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ops []conntest.IO
	if n := len(f.opened); n < len(f.ops) {
		ops = f.ops[n]
	}
	p := &recordingPort{Playback: &spitest.Playback{Playback: conntest.Playback{Ops: ops, DontPanic: true}}}
	f.opened = append(f.opened, p)
	return p, nil
}

func TestPeriphSPI_TransferAndReconnect(t *testing.T) {
	ports := &fakePorts{ops: [][]conntest.IO{
		{{W: []byte{0x80}, R: []byte{0x00}}, {W: []byte{0x00}, R: []byte{0x08}}},
		{{W: []byte{0x81}, R: []byte{0x11}}},
	}}
	p := &PeriphSPI{open: ports.open}

	mode0 := stmpe610.SPIConfig{MaxHz: 1000000, Mode: stmpe610.Mode0}
	tx, err := p.Begin(mode0)
	require.NoError(t, err)
	v, err := tx.Transfer(0x80)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), v)
	require.NoError(t, tx.End())

	// same settings reuse the connection
	tx, err = p.Begin(mode0)
	require.NoError(t, err)
	v, err = tx.Transfer(0x00)
	require.NoError(t, err)
	assert.Equal(t, byte(0x08), v)
	require.NoError(t, tx.End())
	require.Len(t, ports.opened, 1)

	first := ports.opened[0]
	assert.Equal(t, physic.MegaHertz, first.freq)
	assert.Equal(t, spi.Mode0|spi.NoCS, first.mode)
	assert.Equal(t, 8, first.bits)

	tx, err = p.Begin(stmpe610.SPIConfig{MaxHz: 500000, Mode: stmpe610.Mode1})
	require.NoError(t, err)
	v, err = tx.Transfer(0x81)
	require.NoError(t, err)
	assert.Equal(t, byte(0x11), v)
	require.NoError(t, tx.End())

	require.Len(t, ports.opened, 2)
	assert.True(t, first.closed, "old port closed before reconnecting")
	assert.Equal(t, spi.Mode1|spi.NoCS, ports.opened[1].mode)
	assert.Equal(t, 500*physic.KiloHertz, ports.opened[1].freq)

	require.NoError(t, p.Close())
	assert.True(t, ports.opened[1].closed)
	assert.NoError(t, p.Close(), "closing twice is harmless")
}

func TestPeriphSPI_OpenError(t *testing.T) {
	ports := &fakePorts{err: errors.New("no such device")}
	p := &PeriphSPI{open: ports.open}

	_, err := p.Begin(stmpe610.SPIConfig{MaxHz: 1000000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open spi")

	// the lock was released and the open is retried
	ports.err = nil
	tx, err := p.Begin(stmpe610.SPIConfig{MaxHz: 1000000})
	require.NoError(t, err)
	require.NoError(t, tx.End())
}

func TestPeriphSPI_EndedTransaction(t *testing.T) {
	ports := &fakePorts{}
	p := &PeriphSPI{open: ports.open}
	tx, err := p.Begin(stmpe610.SPIConfig{MaxHz: 1000000})
	require.NoError(t, err)
	require.NoError(t, tx.End())
	assert.Error(t, tx.End())
	_, err = tx.Transfer(0)
	assert.Error(t, err)
}

type rpioCall struct {
	hz       int
	pol, pha uint8
}

// fakeRpio records settings and echoes exchanged bytes plus one.
type fakeRpio struct {
	calls []rpioCall
	sent  []byte
}

func (f *fakeRpio) speed(hz int) { f.calls = append(f.calls, rpioCall{hz: hz}) }
func (f *fakeRpio) mode(pol, pha uint8) {
	f.calls[len(f.calls)-1].pol, f.calls[len(f.calls)-1].pha = pol, pha
}

func (f *fakeRpio) exchange(b []byte) {
	for i := range b {
		f.sent = append(f.sent, b[i])
		b[i]++
	}
}

func TestRpioSPI_AppliesAndRestores(t *testing.T) {
	bus := &fakeRpio{}
	r := &RpioSPI{bus: bus}

	mode0 := stmpe610.SPIConfig{MaxHz: 1000000, Mode: stmpe610.Mode0}
	tx, err := r.Begin(mode0)
	require.NoError(t, err)
	v, err := tx.Transfer(0x41)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), v)
	require.NoError(t, tx.End())
	assert.Equal(t, []rpioCall{{hz: 1000000}}, bus.calls, "nothing to restore on first use")

	tx, err = r.Begin(stmpe610.SPIConfig{MaxHz: 500000, Mode: stmpe610.Mode1})
	require.NoError(t, err)
	require.NoError(t, tx.End())
	assert.Equal(t, []rpioCall{
		{hz: 1000000},
		{hz: 500000, pha: 1},
		{hz: 1000000},
	}, bus.calls, "previous settings put back at End")

	tx, err = r.Begin(mode0)
	require.NoError(t, err)
	require.NoError(t, tx.End())
	assert.Len(t, bus.calls, 3, "unchanged settings are not reapplied")

	assert.Error(t, tx.End())
	assert.Equal(t, []byte{0x41}, bus.sent)
	assert.NoError(t, r.Close())
}

func TestClosers_ReverseOrder(t *testing.T) {
	var order []string
	mk := func(name string, err error) closerFunc {
		return func() error {
			order = append(order, name)
			return err
		}
	}
	err := closers{mk("a", nil), mk("b", errors.New("b failed")), mk("c", nil)}.Close()
	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.ErrorContains(t, err, "b failed")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestOpenTransport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tc *config.TouchConfig)
		wantErr string
	}{
		{"unknown transport", func(tc *config.TouchConfig) { tc.Transport = "can" }, "unknown transport"},
		{"missing cs pin", func(tc *config.TouchConfig) { tc.Pins.CS = 50 }, "failed to find pin 50"},
		{"missing soft pins", func(tc *config.TouchConfig) {
			tc.Transport = "swspi"
			tc.Pins = config.PinsConfig{CS: 51, MOSI: 52, MISO: 53, CLK: 49}
		}, "failed to find pin 51"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := config.Default().Touch
			tt.mutate(&tc)
			// gpioreg is empty without host drivers loaded
			_, _, err := OpenTransport(tc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
