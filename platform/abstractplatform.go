package platform

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	c "lautenbacher.net/gotouch/config"
	"lautenbacher.net/gotouch/stmpe610"
	u "lautenbacher.net/gotouch/util"
)

const initRetryDelay = 100 * time.Millisecond

// AbstractPlatform owns the touch controller and its poll loop. The
// concrete platforms supply the transport.
type AbstractPlatform struct {
	config         *c.Config
	controller     *stmpe610.Controller
	touchEvents    chan *u.TouchEvent
	pollWg         sync.WaitGroup
	pollStopChan   chan bool
	readyChan      chan bool
	shutdownMutex  sync.RWMutex
	isShuttingDown bool
	retryDelay     time.Duration
	now            func() time.Time
	// onTouch, if set, sees every event before it is published.
	onTouch func(*u.TouchEvent)

	pressed bool
	last    stmpe610.Point
}

func newAbstractPlatform(conf *c.Config) *AbstractPlatform {
	return &AbstractPlatform{
		config:       conf,
		touchEvents:  make(chan *u.TouchEvent),
		pollStopChan: make(chan bool),
		readyChan:    make(chan bool),
		retryDelay:   initRetryDelay,
		now:          time.Now,
	}
}

func (s *AbstractPlatform) GetTouchEvents() <-chan *u.TouchEvent {
	return s.touchEvents
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *AbstractPlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

func (s *AbstractPlatform) inShutdown() bool {
	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	return s.isShuttingDown
}

// initController binds a Controller to t and runs Init up to
// Touch.InitRetries times.
func (s *AbstractPlatform) initController(t stmpe610.Transport, opts ...stmpe610.Option) error {
	s.controller = stmpe610.New(t, opts...)
	retries := s.config.Touch.InitRetries
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = s.controller.Init(); err == nil {
			slog.Info("Touch controller ready", "transport", s.controller.Kind(),
				"mode", s.controller.Mode(), "attempt", attempt)
			return nil
		}
		slog.Warn("Touch controller init failed", "attempt", attempt, "of", retries, "error", err)
		if attempt < retries {
			time.Sleep(s.retryDelay)
		}
	}
	return fmt.Errorf("failed to initialise touch controller: %w", err)
}

func (s *AbstractPlatform) startPolling() {
	s.pollWg.Add(1)
	go s.pollDriver()
}

func (s *AbstractPlatform) stopPolling() {
	s.setInShutdown()
	close(s.pollStopChan)
	s.pollWg.Wait()
}

func (s *AbstractPlatform) pollDriver() {
	defer s.pollWg.Done()
	ticker := time.NewTicker(s.config.Polling.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.pollStopChan:
			slog.Info("Ending touch poll go-routine...")
			return
		case <-ticker.C:
			if !s.poll() {
				return
			}
		}
	}
}

// poll drains the samples queued in the FIFO when it starts, at most one
// FIFO depth. A dead bus reports no samples. It returns false if the
// platform is stopping.
func (s *AbstractPlatform) poll() bool {
	touched := s.controller.Touched()
	if touched || !s.controller.BufferEmpty() {
		n := min(s.controller.BufferSize(), stmpe610.FIFODepth)
		for i := 0; i < n && !s.controller.BufferEmpty(); i++ {
			if s.inShutdown() {
				return false
			}
			p := s.controller.GetPoint()
			if p.Z < s.config.Polling.MinPressure {
				slog.Debug("Ignoring light touch", "point", p, "minimum", s.config.Polling.MinPressure)
				continue
			}
			s.pressed = true
			s.last = p
			if !s.emit(u.NewTouchEvent(p, true, s.now())) {
				return false
			}
		}
	}

	if !touched && s.pressed {
		s.pressed = false
		if s.config.Polling.ReportRelease {
			return s.emit(u.NewTouchEvent(s.last, false, s.now()))
		}
	}
	return true
}

func (s *AbstractPlatform) emit(ev *u.TouchEvent) bool {
	if s.inShutdown() {
		return false
	}
	if s.onTouch != nil {
		s.onTouch(ev)
	}
	select {
	case s.touchEvents <- ev:
		return true
	case <-s.pollStopChan:
		return false
	}
}
