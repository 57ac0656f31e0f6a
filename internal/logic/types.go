// Package logic contains pure activity detection for the motion band.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State is the debounced activity state.
type State string

const (
	StateActive State = "ACTIVE"
	StateIdle   State = "IDLE"
)

// EventType represents a state transition event.
type EventType string

const (
	EventAlertOn  EventType = "ALERT_ON"
	EventAlertOff EventType = "ALERT_OFF"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Magnitude float64
}

// debounce tracks the stable and pending activity state.
type debounce struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input is one filtered motion sample reduced to its acceleration magnitude
// with gravity removed.
type Input struct {
	Magnitude float64 // m/s^2
	Time      time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	AlertOn  int
	AlertOff int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
