// Package provision owns the device's network state: the configuration
// access point, the station link and the credentials that drive it.
//
// Connecting is a state machine advanced by Tick from the host loop. No call
// in this package sleeps or waits for the link.
package provision

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/motion-band/internal/wifi"
)

// State is the provisioning state.
type State string

const (
	StateAPOnly       State = "AP_ONLY"
	StateConnecting   State = "STATION_CONNECTING"
	StateConnected    State = "STATION_CONNECTED"
	StateDisconnected State = "DISCONNECTED"
)

// Origin tells which path started a connect attempt.
type Origin string

const (
	OriginBoot   Origin = "BOOT"
	OriginPortal Origin = "PORTAL"
)

// Persistent namespace and keys.
const (
	Namespace   = "wifi_config"
	KeySSID     = "ssid"
	KeyPassword = "password"
	KeyServerIP = "server_ip"
)

// Connect protocol defaults: poll once a second, give up after 30 waits.
const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 30
)

var (
	// ErrMissingField rejects a submission without ssid, password or server_ip.
	ErrMissingField = errors.New("provision: missing field")

	// ErrConnectTimeout ends an attempt whose link never came up.
	ErrConnectTimeout = errors.New("provision: station did not connect")

	// ErrSuperseded ends an attempt replaced by a newer one.
	ErrSuperseded = errors.New("provision: superseded by a newer attempt")

	// ErrLinkLost reports that an established station link went away.
	ErrLinkLost = errors.New("provision: station link lost")
)

// Credentials are what the portal collects.
type Credentials struct {
	SSID          string
	Password      string
	ServerAddress string
}

// Validate requires all three fields. An empty value counts as missing.
func (c Credentials) Validate() error {
	switch {
	case c.SSID == "":
		return fmt.Errorf("%w: %s", ErrMissingField, KeySSID)
	case c.Password == "":
		return fmt.Errorf("%w: %s", ErrMissingField, KeyPassword)
	case c.ServerAddress == "":
		return fmt.Errorf("%w: %s", ErrMissingField, KeyServerIP)
	}
	return nil
}

// Result is the outcome of one connect attempt.
type Result struct {
	Origin    Origin
	SSID      string
	Connected bool
	Polls     int
	Err       error
}

// SessionStarter opens the device's data session once a portal submission
// has connected. Start must return without waiting on the network.
type SessionStarter interface {
	Start(serverAddress string)
}

// Config holds the access point identity and connect protocol limits.
type Config struct {
	AP           wifi.APConfig
	PollInterval time.Duration
	MaxAttempts  int
}

// DefaultConfig returns the fixed AP identity and a 30 x 1s connect protocol.
func DefaultConfig() Config {
	return Config{
		AP:           wifi.DefaultAPConfig(),
		PollInterval: DefaultPollInterval,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// Status is a point-in-time view for status pages and events.
type Status struct {
	State     State
	Connected bool
	SSID      string
	Origin    Origin // origin of the in-flight or last resolved attempt
	Polls     int    // polls spent on the in-flight attempt
}
