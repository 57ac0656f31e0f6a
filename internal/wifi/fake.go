package wifi

import "sync"

// FakeRadio is a test double. A Join succeeds after ConnectAfter calls to
// Status when the credentials match Network; otherwise it never connects.
type FakeRadio struct {
	mu sync.Mutex

	// Network holds the credentials that will connect. Empty SSID means no
	// network is in range.
	NetworkSSID     string
	NetworkPassword string

	// ConnectAfter is the number of Status polls before the link comes up.
	ConnectAfter int

	// ConfigureError and StartError fail the matching AP call.
	ConfigureError error
	StartError     error

	AP        APConfig
	APStarted bool
	Joins     []string // SSIDs passed to Join
	Polls     int      // Status calls since the last Join
	Closed    bool

	joined  bool
	matches bool
}

// NewFakeRadio creates a radio that can reach ssid/password.
func NewFakeRadio(ssid, password string, connectAfter int) *FakeRadio {
	return &FakeRadio{NetworkSSID: ssid, NetworkPassword: password, ConnectAfter: connectAfter}
}

// ConfigureAP records cfg.
func (f *FakeRadio) ConfigureAP(cfg APConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.AP = cfg
	return nil
}

// StartAP marks the AP as started.
func (f *FakeRadio) StartAP() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartError != nil {
		return f.StartError
	}
	f.APStarted = true
	return nil
}

// Join records the attempt and resets the poll counter.
func (f *FakeRadio) Join(ssid, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Joins = append(f.Joins, ssid)
	f.joined = true
	f.matches = f.NetworkSSID != "" && ssid == f.NetworkSSID && password == f.NetworkPassword
	f.Polls = 0
	return nil
}

// Status returns CONNECTED once enough polls have passed for a matching join.
func (f *FakeRadio) Status() LinkStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.joined {
		return LinkIdle
	}
	f.Polls++
	if f.matches && f.Polls > f.ConnectAfter {
		return LinkConnected
	}
	return LinkConnecting
}

// Drop simulates losing the station link.
func (f *FakeRadio) Drop() {
	f.mu.Lock()
	f.matches = false
	f.mu.Unlock()
}

// Close marks the radio closed.
func (f *FakeRadio) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
