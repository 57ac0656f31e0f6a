// Package status provides a thread-safe status tracker for the motion-band daemon.
// It is read by the portal's status endpoint and by MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/motion-band/internal/haptic"
	"github.com/sweeney/motion-band/internal/logic"
	"github.com/sweeney/motion-band/internal/motion"
	"github.com/sweeney/motion-band/internal/provision"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Threshold   float64
	Channels    int
	Broker      string
	HTTPAddr    string
	APSSID      string
}

// Motion is the latest sensor pipeline state.
type Motion struct {
	Calibrated bool
	Offset     motion.Sample
	Filtered   motion.Sample
	Magnitude  float64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Activity      logic.State
	Baselined     bool
	Counts        logic.EventCounts
	Haptic        haptic.State
	Motion        Motion
	Network       provision.Status
	SessionID     string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Haptic:    haptic.StateOff,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets the activity state, baseline status, and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(activity logic.State, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Activity = activity
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMotion records the latest pipeline output.
func (t *Tracker) SetMotion(m Motion) {
	t.mu.Lock()
	t.snap.Motion = m
	t.mu.Unlock()
}

// SetHaptic records the alert driver state.
func (t *Tracker) SetHaptic(s haptic.State) {
	t.mu.Lock()
	t.snap.Haptic = s
	t.mu.Unlock()
}

// SetNetwork records the provisioning state.
func (t *Tracker) SetNetwork(s provision.Status) {
	t.mu.Lock()
	t.snap.Network = s
	t.mu.Unlock()
}

// SetSession records the active data session ID ("" when none).
func (t *Tracker) SetSession(id string) {
	t.mu.Lock()
	t.snap.SessionID = id
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
