package haptic

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/motion-band/internal/gpio"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestAlert(t *testing.T) (*Alert, *gpio.FakeOutput) {
	t.Helper()
	out := gpio.NewFakeOutput()
	a, err := NewAlert(out)
	if err != nil {
		t.Fatalf("NewAlert: %v", err)
	}
	out.Reset()
	return a, out
}

func TestNewAlertDrivesLow(t *testing.T) {
	out := gpio.NewFakeOutput()
	a, err := NewAlert(out)
	if err != nil {
		t.Fatalf("NewAlert: %v", err)
	}
	if out.Writes() != 1 || out.Level() {
		t.Errorf("expected a single LOW write, got %v", out.Levels)
	}
	if a.Status().State != StateOff {
		t.Errorf("initial state: got %s, want OFF", a.Status().State)
	}
}

func TestNewAlertSetError(t *testing.T) {
	out := gpio.NewFakeOutput()
	out.SetError = errors.New("line busy")
	if _, err := NewAlert(out); err == nil {
		t.Error("expected error")
	}
}

func TestNextTransitionTable(t *testing.T) {
	tests := []struct {
		name        string
		cur         State
		active      bool
		elapsed     time.Duration
		wantState   State
		wantChanged bool
		wantSince   bool // Since updated to now
	}{
		{"off inactive", StateOff, false, time.Second, StateOff, false, false},
		{"on inactive", StateOn, false, 0, StateOff, true, false},
		{"pause inactive", StatePause, false, 10 * time.Millisecond, StateOff, true, false},
		{"off active", StateOff, true, 0, StateOn, true, true},
		{"on active early", StateOn, true, 249 * time.Millisecond, StateOn, false, false},
		{"on active due", StateOn, true, 250 * time.Millisecond, StatePause, true, true},
		{"pause active early", StatePause, true, 100 * time.Millisecond, StatePause, false, false},
		{"pause active due", StatePause, true, 300 * time.Millisecond, StateOn, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := t0.Add(tt.elapsed)
			got, changed := Next(Status{State: tt.cur, Since: t0}, tt.active, now)
			if got.State != tt.wantState {
				t.Errorf("state: got %s, want %s", got.State, tt.wantState)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed: got %v, want %v", changed, tt.wantChanged)
			}
			if tt.wantSince && !got.Since.Equal(now) {
				t.Errorf("since: got %v, want %v", got.Since, now)
			}
		})
	}
}

func TestPulsePatternWhileActive(t *testing.T) {
	a, out := newTestAlert(t)

	// Tick every 10ms for two seconds; sample the line at each tick.
	for ms := 0; ms < 2000; ms += 10 {
		if err := a.Update(true, t0.Add(time.Duration(ms)*time.Millisecond)); err != nil {
			t.Fatalf("update at %dms: %v", ms, err)
		}
		want := (ms/250)%2 == 0
		if got := out.Level(); got != want {
			t.Fatalf("at %dms: level %v, want %v", ms, got, want)
		}
	}
	if out.Writes() != 8 {
		t.Errorf("expected 8 edges in 2s, got %d", out.Writes())
	}
}

func TestImmediateCutoff(t *testing.T) {
	a, out := newTestAlert(t)

	a.Update(true, t0)
	a.Update(true, t0.Add(10*time.Millisecond))
	if !out.Level() {
		t.Fatal("expected HIGH while active")
	}

	// 20ms into the ON phase: no minimum-on time.
	if err := a.Update(false, t0.Add(20*time.Millisecond)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.Level() {
		t.Error("expected LOW immediately after active=false")
	}
	if a.Status().State != StateOff {
		t.Errorf("state: got %s, want OFF", a.Status().State)
	}
}

func TestOffNotRewritten(t *testing.T) {
	a, out := newTestAlert(t)

	for i := 0; i < 5; i++ {
		a.Update(false, t0.Add(time.Duration(i)*time.Second))
	}
	if out.Writes() != 0 {
		t.Errorf("expected no writes while OFF, got %d", out.Writes())
	}
}

func TestCutoffFromPause(t *testing.T) {
	a, out := newTestAlert(t)
	a.Update(true, t0)
	a.Update(true, t0.Add(250*time.Millisecond))
	if a.Status().State != StatePause {
		t.Fatalf("expected PAUSE, got %s", a.Status().State)
	}
	writes := out.Writes()

	a.Update(false, t0.Add(260*time.Millisecond))
	if a.Status().State != StateOff {
		t.Errorf("expected OFF, got %s", a.Status().State)
	}
	if out.Writes() != writes+1 || out.Level() {
		t.Errorf("expected one LOW write, got levels %v", out.Levels)
	}

	// Reactivation starts a fresh ON phase.
	a.Update(true, t0.Add(270*time.Millisecond))
	if a.Status().State != StateOn || !a.Status().Since.Equal(t0.Add(270*time.Millisecond)) {
		t.Errorf("reactivation: got %+v", a.Status())
	}
}

func TestWriteFailureDoesNotAdvance(t *testing.T) {
	a, out := newTestAlert(t)
	out.SetError = errors.New("line busy")

	if err := a.Update(true, t0); err == nil {
		t.Fatal("expected error")
	}
	if a.Status().State != StateOff {
		t.Errorf("state advanced despite write failure: %s", a.Status().State)
	}

	out.SetError = nil
	if err := a.Update(true, t0.Add(time.Millisecond)); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if a.Status().State != StateOn || !out.Level() {
		t.Errorf("retry did not switch on: %+v", a.Status())
	}
}
