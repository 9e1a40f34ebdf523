// Package logging installs the process wide slog logger. Output can be held
// in memory until a live target (the TUI log pane) exists, and is
// optionally teed to a file.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"lautenbacher.net/gotouch/config"
)

// teeWriter buffers or forwards log lines and copies them to a file.
type teeWriter struct {
	mu        sync.Mutex
	pending   bytes.Buffer
	target    io.Writer
	file      *os.File
	buffering bool
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	switch {
	case w.buffering:
		w.pending.Write(p)
	case w.target != nil:
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}

	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

var (
	mu     sync.Mutex
	writer = &teeWriter{target: os.Stderr}
)

// ParseLevel maps DEBUG, INFO, WARN or ERROR to a slog level. Anything else
// is INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler returns a text or JSON handler writing to w.
func NewHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Init replaces the default logger. With buffer set nothing is written
// until SetOutput is called; otherwise lines go to stderr. A non-empty
// cfg.File receives a copy of every line.
func Init(buffer bool, cfg config.LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	next := &teeWriter{buffering: buffer}
	if !buffer {
		next.target = os.Stderr
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("can't open log file %s: %w", cfg.File, err)
		}
		next.file = f
	}

	writer = next
	slog.SetDefault(slog.New(NewHandler(writer, cfg)))
	return nil
}

// SetOutput flushes held lines to target and writes live from then on.
func SetOutput(target io.Writer) error {
	mu.Lock()
	w := writer
	mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.Len() > 0 {
		if _, err := target.Write(w.pending.Bytes()); err != nil {
			return err
		}
		w.pending.Reset()
	}
	w.target = target
	w.buffering = false
	return nil
}

// BufferOutput detaches the live target and holds lines in memory.
func BufferOutput() {
	mu.Lock()
	w := writer
	mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = nil
	w.buffering = true
}

// Close writes held lines to stderr, unless a file already has them, and
// closes the log file.
func Close() error {
	mu.Lock()
	w := writer
	mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.file == nil && w.pending.Len() > 0 {
		if _, err := os.Stderr.Write(w.pending.Bytes()); err != nil {
			firstErr = err
		}
	}
	w.pending.Reset()
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.file = nil
	}
	return firstErr
}
