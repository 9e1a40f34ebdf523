package platform

import (
	"io"
	"log/slog"
	"sync"

	"lautenbacher.net/gotouch/config"
	"lautenbacher.net/gotouch/hardware"
	"lautenbacher.net/gotouch/stmpe610"
)

// RaspberryPiPlatform polls a real STMPE610 wired to the Pi's GPIO header.
type RaspberryPiPlatform struct {
	*AbstractPlatform
	busCloser      io.Closer
	touchViewer    *TouchViewer
	viewerWg       sync.WaitGroup
	viewerStopChan chan struct{}

	initHost      func() error
	openTransport func(config.TouchConfig) (stmpe610.Transport, io.Closer, error)
}

func NewRaspberryPiPlatform(conf *config.Config) *RaspberryPiPlatform {
	return &RaspberryPiPlatform{
		AbstractPlatform: newAbstractPlatform(conf),
		viewerStopChan:   make(chan struct{}),
		initHost:         hardware.Init,
		openTransport:    hardware.OpenTransport,
	}
}

// SetTouchViewer attaches an optional TUI viewer for touch data.
func (s *RaspberryPiPlatform) SetTouchViewer(v *TouchViewer) {
	s.touchViewer = v
}

func (s *RaspberryPiPlatform) Start() error {
	if err := s.initHost(); err != nil {
		return err
	}

	transport, closer, err := s.openTransport(s.config.Touch)
	if err != nil {
		return err
	}
	s.busCloser = closer

	if err := s.initController(transport); err != nil {
		s.closeBus()
		return err
	}

	if s.touchViewer != nil {
		s.onTouch = s.touchViewer.Update
		s.viewerWg.Add(1)
		go s.touchViewer.Start(s.viewerStopChan, &s.viewerWg)
	}

	s.startPolling()

	close(s.readyChan) // For RPi, we are ready immediately.
	return nil
}

func (s *RaspberryPiPlatform) Stop() {
	s.stopPolling()

	if s.touchViewer != nil {
		close(s.viewerStopChan)
		s.viewerWg.Wait()
	}

	s.closeBus()
}

func (s *RaspberryPiPlatform) closeBus() {
	if s.busCloser == nil {
		return
	}
	if err := s.busCloser.Close(); err != nil {
		slog.Error("Error closing touch bus", "error", err)
	}
	s.busCloser = nil
}
