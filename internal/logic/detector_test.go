package logic

import (
	"testing"
	"time"
)

const (
	still  = 0.1
	moving = 5.0
)

func TestNewDetector(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(DefaultThreshold, 250*time.Millisecond, startTime)
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if d.debounceDuration != 250*time.Millisecond {
		t.Errorf("expected debounce duration 250ms, got %v", d.debounceDuration)
	}
	if d.IsBaselined() {
		t.Error("new detector should not be baselined")
	}
	if d.Active() {
		t.Error("new detector should not be active")
	}
	if !d.lastHeartbeat.Equal(startTime) {
		t.Errorf("expected lastHeartbeat %v, got %v", startTime, d.lastHeartbeat)
	}
}

func TestBaselineEstablishment(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(DefaultThreshold, 250*time.Millisecond, now)

	// First sample - starts observation
	if events := d.Process(Input{Magnitude: moving, Time: now}); len(events) != 0 {
		t.Errorf("expected no events during baseline, got %d", len(events))
	}

	// Before debounce period
	d.Process(Input{Magnitude: moving, Time: now.Add(200 * time.Millisecond)})
	if d.IsBaselined() {
		t.Error("should not be baselined before debounce period")
	}

	// After debounce period - baseline established, no event
	events := d.Process(Input{Magnitude: moving, Time: now.Add(250 * time.Millisecond)})
	if len(events) != 0 {
		t.Errorf("expected no events at baseline establishment, got %d", len(events))
	}
	if !d.IsBaselined() {
		t.Error("should be baselined after debounce period")
	}
	if d.CurrentState() != StateActive || !d.Active() {
		t.Errorf("expected ACTIVE, got %s", d.CurrentState())
	}
}

func TestBaselineResetOnChange(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(DefaultThreshold, 250*time.Millisecond, now)

	d.Process(Input{Magnitude: moving, Time: now})
	d.Process(Input{Magnitude: still, Time: now.Add(100 * time.Millisecond)})

	// Full debounce from the first sample is not enough; the timer restarted.
	d.Process(Input{Magnitude: still, Time: now.Add(250 * time.Millisecond)})
	if d.IsBaselined() {
		t.Error("should not be baselined, timer was reset")
	}

	d.Process(Input{Magnitude: still, Time: now.Add(350 * time.Millisecond)})
	if !d.IsBaselined() {
		t.Error("should be baselined after debounce from state change")
	}
	if d.CurrentState() != StateIdle {
		t.Errorf("expected IDLE, got %s", d.CurrentState())
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(2.0, 0, now)
	d.Process(Input{Magnitude: 2.0, Time: now})
	d.Process(Input{Magnitude: 2.0, Time: now})
	if !d.Active() {
		t.Error("magnitude equal to threshold should count as active")
	}
}

func TestNoEventsForStableState(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		events := d.Process(Input{Magnitude: still, Time: now.Add(time.Duration(i) * 100 * time.Millisecond)})
		if len(events) != 0 {
			t.Errorf("iteration %d: expected no events for stable state, got %d", i, len(events))
		}
	}
}

func TestTransitionIdleToActive(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	if events := d.Process(Input{Magnitude: moving, Time: now}); len(events) != 0 {
		t.Errorf("expected no events before debounce, got %d", len(events))
	}
	if events := d.Process(Input{Magnitude: moving, Time: now.Add(200 * time.Millisecond)}); len(events) != 0 {
		t.Errorf("expected no events before debounce, got %d", len(events))
	}

	events := d.Process(Input{Magnitude: 6.5, Time: now.Add(250 * time.Millisecond)})
	if len(events) != 1 {
		t.Fatalf("expected 1 event after debounce, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventAlertOn {
		t.Errorf("expected ALERT_ON, got %s", e.Type)
	}
	if e.State != StateActive {
		t.Errorf("expected State=ACTIVE, got %s", e.State)
	}
	if e.Magnitude != 6.5 {
		t.Errorf("expected magnitude 6.5, got %v", e.Magnitude)
	}
	if !e.Timestamp.Equal(now.Add(250 * time.Millisecond)) {
		t.Errorf("unexpected timestamp: %v", e.Timestamp)
	}
	if !d.Active() {
		t.Error("detector should be active")
	}
}

func TestTransitionActiveToIdle(t *testing.T) {
	d := setupBaselinedDetector(t, true)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	d.Process(Input{Magnitude: still, Time: now})
	events := d.Process(Input{Magnitude: still, Time: now.Add(250 * time.Millisecond)})
	if len(events) != 1 || events[0].Type != EventAlertOff {
		t.Fatalf("expected one ALERT_OFF, got %+v", events)
	}
	if d.Active() {
		t.Error("detector should be idle")
	}
}

func TestBounceShorterThanDebounce(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	d.Process(Input{Magnitude: moving, Time: now})
	d.Process(Input{Magnitude: still, Time: now.Add(100 * time.Millisecond)})
	events := d.Process(Input{Magnitude: still, Time: now.Add(500 * time.Millisecond)})
	if len(events) != 0 {
		t.Errorf("expected no events for bounce, got %d", len(events))
	}
	if d.Active() {
		t.Error("bounce should not change state")
	}
}

func TestMultipleBounces(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	// Alternate every 100ms; the pending timer keeps restarting.
	for i := 0; i < 10; i++ {
		m := still
		if i%2 == 0 {
			m = moving
		}
		events := d.Process(Input{Magnitude: m, Time: now.Add(time.Duration(i) * 100 * time.Millisecond)})
		if len(events) != 0 {
			t.Fatalf("iteration %d: expected no events, got %d", i, len(events))
		}
	}
}

func TestBackToBackTransitions(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	d.Process(Input{Magnitude: moving, Time: now})
	on := d.Process(Input{Magnitude: moving, Time: now.Add(250 * time.Millisecond)})
	d.Process(Input{Magnitude: still, Time: now.Add(300 * time.Millisecond)})
	off := d.Process(Input{Magnitude: still, Time: now.Add(550 * time.Millisecond)})

	if len(on) != 1 || on[0].Type != EventAlertOn {
		t.Errorf("expected ALERT_ON, got %+v", on)
	}
	if len(off) != 1 || off[0].Type != EventAlertOff {
		t.Errorf("expected ALERT_OFF, got %+v", off)
	}
}

func TestDebounceExactTiming(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	d.Process(Input{Magnitude: moving, Time: now})
	if events := d.Process(Input{Magnitude: moving, Time: now.Add(249 * time.Millisecond)}); len(events) != 0 {
		t.Error("expected no event 1ms before debounce")
	}
	if events := d.Process(Input{Magnitude: moving, Time: now.Add(250 * time.Millisecond)}); len(events) != 1 {
		t.Error("expected event exactly at debounce")
	}
}

func TestCurrentStateBeforeBaseline(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(DefaultThreshold, 250*time.Millisecond, now)
	d.Process(Input{Magnitude: moving, Time: now})
	if s := d.CurrentState(); s != "" {
		t.Errorf("expected empty state before baseline, got %s", s)
	}
}

// setupBaselinedDetector returns a detector already baselined in the given
// state at 12:00:00.250.
func setupBaselinedDetector(t *testing.T, active bool) *Detector {
	t.Helper()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(DefaultThreshold, 250*time.Millisecond, now)
	m := still
	if active {
		m = moving
	}
	d.Process(Input{Magnitude: m, Time: now})
	d.Process(Input{Magnitude: m, Time: now.Add(250 * time.Millisecond)})
	if !d.IsBaselined() {
		t.Fatal("failed to establish baseline")
	}
	return d
}

func TestEventCountsIncrementOnTransition(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		base := now.Add(time.Duration(i) * time.Second)
		d.Process(Input{Magnitude: moving, Time: base})
		d.Process(Input{Magnitude: moving, Time: base.Add(250 * time.Millisecond)})
		d.Process(Input{Magnitude: still, Time: base.Add(500 * time.Millisecond)})
		d.Process(Input{Magnitude: still, Time: base.Add(750 * time.Millisecond)})
	}

	c := d.Counts()
	if c.AlertOn != 3 || c.AlertOff != 3 {
		t.Errorf("expected 3/3, got %+v", c)
	}
}

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	if hb := d.CheckHeartbeat(now, 0); hb != nil {
		t.Error("expected nil heartbeat with zero interval")
	}
	if hb := d.CheckHeartbeat(now, -time.Second); hb != nil {
		t.Error("expected nil heartbeat with negative interval")
	}
}

func TestCheckHeartbeatBeforeBaseline(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(DefaultThreshold, 250*time.Millisecond, now)
	if hb := d.CheckHeartbeat(now.Add(time.Hour), 15*time.Minute); hb != nil {
		t.Error("expected nil heartbeat before baseline")
	}
}

func TestCheckHeartbeatBeforeInterval(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 14, 59, 0, time.UTC)
	if hb := d.CheckHeartbeat(now, 15*time.Minute); hb != nil {
		t.Error("expected nil heartbeat before interval")
	}
}

func TestCheckHeartbeatAtInterval(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC)
	hb := d.CheckHeartbeat(now, 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if !hb.Timestamp.Equal(now) {
		t.Errorf("expected timestamp %v, got %v", now, hb.Timestamp)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb.Uptime)
	}
}

func TestCheckHeartbeatUpdatesLastTime(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	first := time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC)
	if hb := d.CheckHeartbeat(first, 15*time.Minute); hb == nil {
		t.Fatal("expected first heartbeat")
	}
	if hb := d.CheckHeartbeat(first.Add(time.Minute), 15*time.Minute); hb != nil {
		t.Error("expected nil heartbeat right after previous one")
	}
	if hb := d.CheckHeartbeat(first.Add(15*time.Minute), 15*time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}

func TestHeartbeatContainsEventCounts(t *testing.T) {
	d := setupBaselinedDetector(t, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)
	d.Process(Input{Magnitude: moving, Time: now})
	d.Process(Input{Magnitude: moving, Time: now.Add(250 * time.Millisecond)})

	hb := d.CheckHeartbeat(now.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Counts.AlertOn != 1 || hb.Counts.AlertOff != 0 {
		t.Errorf("unexpected counts: %+v", hb.Counts)
	}
}
