package util

import (
	"time"

	"lautenbacher.net/gotouch/stmpe610"
)

// TouchEvent is one reading published by a platform. Pressed is false for
// the single event emitted when a touch ends; its Point repeats the last
// pressed position.
type TouchEvent struct {
	Point     stmpe610.Point `json:"point"`
	Pressed   bool           `json:"pressed"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewTouchEvent creates a new TouchEvent instance.
func NewTouchEvent(p stmpe610.Point, pressed bool, ts time.Time) *TouchEvent {
	return &TouchEvent{
		Point:     p,
		Pressed:   pressed,
		Timestamp: ts,
	}
}
