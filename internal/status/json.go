package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/motion-band/internal/motion"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Activity      string      `json:"activity"`
	Haptic        string      `json:"haptic"`
	Ready         bool        `json:"ready"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	Motion        MotionJSON  `json:"motion"`
	Network       NetworkJSON `json:"network"`
	Session       string      `json:"session,omitempty"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Counts        CountsJSON  `json:"event_counts"`
	Config        ConfigJSON  `json:"config"`
}

// MotionJSON reports the sensor pipeline. Offset and Filtered hold one value
// per configured channel.
type MotionJSON struct {
	Calibrated bool      `json:"calibrated"`
	Offset     []float64 `json:"offset"`
	Filtered   []float64 `json:"filtered"`
	Magnitude  float64   `json:"magnitude"`
}

// NetworkJSON reports provisioning state.
type NetworkJSON struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid,omitempty"`
	Origin    string `json:"origin,omitempty"`
	Polls     int    `json:"polls,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	AlertOn  int `json:"alert_on"`
	AlertOff int `json:"alert_off"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64   `json:"poll_ms"`
	DebounceMs  int64   `json:"debounce_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	Threshold   float64 `json:"threshold"`
	Channels    int     `json:"channels"`
	Broker      string  `json:"broker"`
	HTTPAddr    string  `json:"http_addr"`
	APSSID      string  `json:"ap_ssid"`
}

func channels(s motion.Sample, n int) []float64 {
	if n <= 0 || n > motion.MaxChannels {
		n = motion.MaxChannels
	}
	out := make([]float64, n)
	copy(out, s[:n])
	return out
}

func buildInner(snap Snapshot) StatusInner {
	activity := string(snap.Activity)
	if activity == "" {
		activity = "UNKNOWN"
	}
	n := snap.Config.Channels

	return StatusInner{
		Activity:      activity,
		Haptic:        string(snap.Haptic),
		Ready:         snap.Baselined && snap.Motion.Calibrated,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Motion: MotionJSON{
			Calibrated: snap.Motion.Calibrated,
			Offset:     channels(snap.Motion.Offset, n),
			Filtered:   channels(snap.Motion.Filtered, n),
			Magnitude:  snap.Motion.Magnitude,
		},
		Network: NetworkJSON{
			State:     string(snap.Network.State),
			Connected: snap.Network.Connected,
			SSID:      snap.Network.SSID,
			Origin:    string(snap.Network.Origin),
			Polls:     snap.Network.Polls,
		},
		Session: snap.SessionID,
		MQTT:    MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			AlertOn:  snap.Counts.AlertOn,
			AlertOff: snap.Counts.AlertOff,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Threshold:   snap.Config.Threshold,
			Channels:    snap.Config.Channels,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			APSSID:      snap.Config.APSSID,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
