// Package wifi controls the device radio: a local access point for the
// configuration portal and a station link to the user's network.
package wifi

import (
	"errors"
	"fmt"
	"net/netip"
)

// LinkStatus is the state of the station link.
type LinkStatus string

const (
	LinkIdle         LinkStatus = "IDLE"
	LinkConnecting   LinkStatus = "CONNECTING"
	LinkConnected    LinkStatus = "CONNECTED"
	LinkDisconnected LinkStatus = "DISCONNECTED"
)

// Radio is the narrow view of the WiFi hardware used by provisioning.
type Radio interface {
	// ConfigureAP sets the access point identity and static subnet.
	ConfigureAP(cfg APConfig) error

	// StartAP brings the access point up.
	StartAP() error

	// Join starts a station connection and returns without waiting for it.
	Join(ssid, password string) error

	// Status reports the station link.
	Status() LinkStatus

	// Close tears down anything the radio started.
	Close() error
}

// APConfig describes the local access point.
type APConfig struct {
	SSID     string
	Password string
	Address  netip.Prefix // device address and subnet, e.g. 192.168.4.1/24
	Gateway  netip.Addr
}

// DefaultAPConfig returns the fixed identity the device has always used.
func DefaultAPConfig() APConfig {
	return APConfig{
		SSID:     "SensorDataTD",
		Password: "12345678",
		Address:  netip.MustParsePrefix("192.168.4.1/24"),
		Gateway:  netip.MustParseAddr("192.168.4.1"),
	}
}

// Validate checks the AP settings before they reach the radio.
func (c APConfig) Validate() error {
	if c.SSID == "" || len(c.SSID) > 32 {
		return fmt.Errorf("wifi: ap ssid must be 1-32 bytes, got %d", len(c.SSID))
	}
	if len(c.Password) < 8 || len(c.Password) > 63 {
		return errors.New("wifi: ap passphrase must be 8-63 characters")
	}
	if !c.Address.IsValid() || !c.Address.Addr().Is4() {
		return fmt.Errorf("wifi: ap address %v is not an IPv4 prefix", c.Address)
	}
	if !c.Gateway.IsValid() || !c.Address.Contains(c.Gateway) {
		return fmt.Errorf("wifi: ap gateway %v outside %v", c.Gateway, c.Address)
	}
	return nil
}
