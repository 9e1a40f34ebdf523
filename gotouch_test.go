package main

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	c "lautenbacher.net/gotouch/config"
	pl "lautenbacher.net/gotouch/platform"
	"lautenbacher.net/gotouch/stmpe610"
	u "lautenbacher.net/gotouch/util"
)

type MockPlatform struct {
	pl.Platform
	touchEvents chan *u.TouchEvent
	mu          sync.Mutex
	startCalls  int
	stopCalls   int
	startErr    error
}

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		touchEvents: make(chan *u.TouchEvent),
	}
}

func (m *MockPlatform) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	return m.startErr
}

func (m *MockPlatform) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
}

func (m *MockPlatform) Ready() <-chan bool {
	readyChan := make(chan bool)
	close(readyChan)
	return readyChan
}

func (m *MockPlatform) GetTouchEvents() <-chan *u.TouchEvent {
	return m.touchEvents
}

func (m *MockPlatform) getCalls() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls, m.stopCalls
}

func writeConfig(t *testing.T, dir string, conf c.Config) string {
	t.Helper()
	path := filepath.Join(dir, c.CONFILE)
	data, err := yaml.Marshal(conf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestApp(t *testing.T, mock *MockPlatform) (*App, string) {
	t.Helper()
	ossignal := make(chan os.Signal, 1)
	app := NewApp(ossignal)
	app.configFile = writeConfig(t, t.TempDir(), c.Default())
	app.newPlatform = func(*c.Config) pl.Platform { return mock }
	return app, app.configFile
}

func TestEventLoop(t *testing.T) {
	ossignal := make(chan os.Signal, 1)
	app := NewApp(ossignal)
	mock := NewMockPlatform()
	app.platform = mock
	app.stopsignal = make(chan struct{})

	app.shutdownWg.Add(1)
	go app.eventLoop()
	t.Cleanup(func() {
		close(app.stopsignal)
		app.shutdownWg.Wait()
	})

	_, seq := app.latest.Snapshot()
	assert.Zero(t, seq)

	press := u.NewTouchEvent(stmpe610.NewPoint(10, 20, 30), true, time.Now())
	release := u.NewTouchEvent(stmpe610.NewPoint(10, 20, 30), false, time.Now())
	mock.touchEvents <- press
	mock.touchEvents <- release

	assert.Eventually(t, func() bool {
		_, seq := app.latest.Snapshot()
		return seq == 2
	}, time.Second, 5*time.Millisecond)
	assert.Same(t, release, app.latest.Value())
}

func TestInitialiseAndShutdown(t *testing.T) {
	mock := NewMockPlatform()
	app, _ := newTestApp(t, mock)

	require.NoError(t, app.initialise())
	assert.False(t, app.config.RealHW)
	assert.False(t, app.config.ShowTouch)
	assert.NotNil(t, app.watcher)

	mock.touchEvents <- u.NewTouchEvent(stmpe610.NewPoint(1, 2, 3), true, time.Now())
	assert.Eventually(t, func() bool {
		_, seq := app.latest.Snapshot()
		return seq == 1
	}, time.Second, 5*time.Millisecond)

	app.shutdown()
	start, stop := mock.getCalls()
	assert.Equal(t, 1, start)
	assert.Equal(t, 1, stop)
	assert.Nil(t, app.watcher)
	assert.Nil(t, app.platform)
}

func TestShowTouchRequiresRealHW(t *testing.T) {
	app, _ := newTestApp(t, NewMockPlatform())
	app.showTouch = true
	require.NoError(t, app.initialise())
	t.Cleanup(app.shutdown)
	assert.False(t, app.config.ShowTouch)
}

func TestConfigChangeTriggersReload(t *testing.T) {
	mock := NewMockPlatform()
	app, path := newTestApp(t, mock)
	require.NoError(t, app.initialise())
	t.Cleanup(app.shutdown)

	conf := c.Default()
	conf.Polling.MinPressure = 20
	writeConfig(t, filepath.Dir(path), conf)

	select {
	case sig := <-app.ossignal:
		assert.Equal(t, syscall.SIGHUP, sig)
	case <-time.After(2 * time.Second):
		t.Fatal("config change did not trigger a reload")
	}
}

func TestInitialise_Errors(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		app, _ := newTestApp(t, NewMockPlatform())
		app.configFile = filepath.Join(t.TempDir(), "missing.yml")
		assert.Error(t, app.initialise())
	})

	t.Run("platform start", func(t *testing.T) {
		mock := NewMockPlatform()
		mock.startErr = stmpe610.ErrNotFound
		app, _ := newTestApp(t, mock)
		err := app.initialise()
		assert.ErrorIs(t, err, stmpe610.ErrNotFound)
	})
}
