// Package haptic drives a vibration motor with a fixed on/off pulse pattern.
//
// The state machine is a pure function (Next) so it can be tested without
// hardware; Alert applies its output to a GPIO line.
package haptic

import (
	"fmt"
	"time"

	"github.com/sweeney/motion-band/internal/gpio"
)

// State is the actuator state.
type State string

const (
	StateOff   State = "OFF"
	StateOn    State = "ON"
	StatePause State = "PAUSE"
)

// PulsePeriod is the duration of each ON and each PAUSE phase (~2 Hz pulse).
const PulsePeriod = 250 * time.Millisecond

// Level returns the output level for s: HIGH only while ON.
func (s State) Level() bool {
	return s == StateOn
}

// Status is a state plus the time it was entered.
type Status struct {
	State State
	Since time.Time
}

// Next returns the status after one tick and whether a transition happened.
//
// Inactive input switches off immediately regardless of elapsed time. While
// active, ON and PAUSE alternate every PulsePeriod.
func Next(cur Status, active bool, now time.Time) (Status, bool) {
	if !active {
		if cur.State == StateOff {
			return cur, false
		}
		return Status{State: StateOff, Since: cur.Since}, true
	}

	switch cur.State {
	case StateOn:
		if now.Sub(cur.Since) >= PulsePeriod {
			return Status{State: StatePause, Since: now}, true
		}
	case StatePause:
		if now.Sub(cur.Since) >= PulsePeriod {
			return Status{State: StateOn, Since: now}, true
		}
	default:
		return Status{State: StateOn, Since: now}, true
	}
	return cur, false
}

// Alert owns the actuator line and its state.
// Not safe for concurrent use; the host loop is its only caller.
type Alert struct {
	out    gpio.Output
	status Status
}

// NewAlert drives out LOW and returns an Alert in state OFF.
func NewAlert(out gpio.Output) (*Alert, error) {
	if err := out.Set(false); err != nil {
		return nil, fmt.Errorf("haptic: initial low: %w", err)
	}
	return &Alert{out: out, status: Status{State: StateOff}}, nil
}

// Update advances the state machine for one tick. The output line is only
// written on a transition. If the write fails the state is not advanced, so
// the next tick retries.
func (a *Alert) Update(active bool, now time.Time) error {
	next, changed := Next(a.status, active, now)
	if !changed {
		return nil
	}
	if err := a.out.Set(next.State.Level()); err != nil {
		return fmt.Errorf("haptic: %s -> %s: %w", a.status.State, next.State, err)
	}
	a.status = next
	return nil
}

// Status returns the current state and the time it was entered.
func (a *Alert) Status() Status {
	return a.status
}
