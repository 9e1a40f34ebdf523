package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/gotouch/config"
)

type failingWriter struct{}

func (fw *failingWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"LOUD":  slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestTUIMode(t *testing.T) {
	require.NoError(t, Init(true, config.LogConfig{Level: "DEBUG", Format: "text"}))

	slog.Info("Initial touch")
	slog.Debug("debug line")

	var pane bytes.Buffer
	require.NoError(t, SetOutput(&pane))
	assert.Contains(t, pane.String(), "Initial touch", "held lines are flushed")
	assert.Contains(t, pane.String(), "debug line")

	slog.Info("Live touch")
	assert.Contains(t, pane.String(), "Live touch")

	BufferOutput()
	slog.Info("Held touch")
	assert.NotContains(t, pane.String(), "Held touch")

	require.NoError(t, Close())
}

func TestLevelFilter(t *testing.T) {
	require.NoError(t, Init(true, config.LogConfig{Level: "WARN", Format: "text"}))
	var pane bytes.Buffer
	require.NoError(t, SetOutput(&pane))

	slog.Info("dropped")
	slog.Warn("kept")
	assert.NotContains(t, pane.String(), "dropped")
	assert.Contains(t, pane.String(), "kept")
	require.NoError(t, Close())
}

func TestFileLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gotouch.log")
	require.NoError(t, Init(false, config.LogConfig{Level: "INFO", Format: "json", File: path}))

	slog.Info("touch", "x", 100)
	require.NoError(t, Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"touch"`)
	assert.Contains(t, string(content), `"x":100`)
}

func TestInit_BadFile(t *testing.T) {
	err := Init(false, config.LogConfig{Level: "INFO", Format: "text", File: filepath.Join(t.TempDir(), "no", "such", "dir.log")})
	assert.Error(t, err)
}

func TestStderrFallback(t *testing.T) {
	require.NoError(t, Init(true, config.LogConfig{Level: "DEBUG", Format: "text"}))
	slog.Info("Shutdown log")

	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w

	var wg sync.WaitGroup
	wg.Add(1)
	var captured string
	go func() {
		defer wg.Done()
		buf := make([]byte, 1024)
		n, _ := r.Read(buf)
		captured = string(buf[:n])
	}()

	require.NoError(t, Close())
	w.Close()
	wg.Wait()
	os.Stderr = oldStderr

	assert.Contains(t, captured, "Shutdown log")
}

func TestWriteErrorPropagates(t *testing.T) {
	w := &teeWriter{target: &failingWriter{}}
	n, err := w.Write([]byte("line\n"))
	assert.Equal(t, 5, n)
	assert.Error(t, err)
}
