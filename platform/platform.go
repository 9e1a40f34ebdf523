package platform

import (
	"lautenbacher.net/gotouch/util"
)

// Platform defines the interface for abstracting away the real hardware
// from the TUI simulation.
type Platform interface {
	// Start opens the bus, initialises the touch controller and starts
	// polling.
	Start() error

	// Stop ends polling and releases all platform resources.
	Stop()

	// Ready is closed once the platform delivers events.
	Ready() <-chan bool

	// GetTouchEvents returns the channel the application reads touch
	// events from.
	GetTouchEvents() <-chan *util.TouchEvent
}
