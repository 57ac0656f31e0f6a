package logic

import "time"

// DefaultThreshold is the magnitude above which the wearer counts as active.
const DefaultThreshold = 2.0

// Detector turns filtered motion into debounced activity transitions.
type Detector struct {
	debounceDuration time.Duration
	threshold        float64
	state            debounce
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a detector. Samples whose magnitude is at or above
// threshold count as active. The startTime is used for calculating uptime in
// heartbeat events.
func NewDetector(threshold float64, debounceDuration time.Duration, startTime time.Time) *Detector {
	return &Detector{
		debounceDuration: debounceDuration,
		threshold:        threshold,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes a new input sample and returns any events that should be emitted.
// Events are only returned after baseline is established and on state transitions.
func (d *Detector) Process(input Input) []Event {
	observed := StateIdle
	if input.Magnitude >= d.threshold {
		observed = StateActive
	}

	wasBaselined := d.state.Baselined
	to, changed := d.step(observed, input.Time)
	if !wasBaselined || !changed {
		return nil
	}

	e := Event{Timestamp: input.Time, State: to, Magnitude: input.Magnitude}
	if to == StateActive {
		e.Type = EventAlertOn
		d.eventCounts.AlertOn++
	} else {
		e.Type = EventAlertOff
		d.eventCounts.AlertOff++
	}
	return []Event{e}
}

// step applies debounce logic and reports whether the stable state changed.
func (d *Detector) step(observed State, now time.Time) (State, bool) {
	s := &d.state

	if !s.Baselined {
		if s.Pending != observed {
			s.Pending = observed
			s.PendingSince = now
			return "", false
		}
		if now.Sub(s.PendingSince) >= d.debounceDuration {
			s.Stable = observed
			s.Baselined = true
			s.Pending = ""
		}
		return "", false
	}

	if observed == s.Stable {
		s.Pending = ""
		return "", false
	}
	if s.Pending != observed {
		s.Pending = observed
		s.PendingSince = now
		return "", false
	}
	if now.Sub(s.PendingSince) >= d.debounceDuration {
		s.Stable = observed
		s.Pending = ""
		return observed, true
	}
	return "", false
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.state.Baselined
}

// Active reports whether the stable state is active. It is false until a
// baseline exists.
func (d *Detector) Active() bool {
	return d.state.Baselined && d.state.Stable == StateActive
}

// CurrentState returns the current stable state, or "" before baseline.
func (d *Detector) CurrentState() State {
	return d.state.Stable
}

// Counts returns the number of events emitted since startup.
func (d *Detector) Counts() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.state.Baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
