package wifi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	apConnName  = "motion-band-ap"
	staConnName = "motion-band-sta"
	cmdTimeout  = 15 * time.Second
	joinTimeout = 45 * time.Second

	// DefaultStatusInterval is how often the background poller asks
	// NetworkManager for the station state.
	DefaultStatusInterval = time.Second
)

// ErrSameInterface rejects an AP and a station on one device. NetworkManager
// keeps one active connection per device, so joining would drop the AP.
var ErrSameInterface = errors.New("wifi: access point and station need separate interfaces")

// NMCLIRadio drives NetworkManager through nmcli. The access point and the
// station use separate interfaces (typically a virtual ap0 next to wlan0).
//
// Status never runs nmcli. A poller started by the first Join refreshes a
// cached state every DefaultStatusInterval.
type NMCLIRadio struct {
	apIface  string
	staIface string
	run      func(ctx context.Context, args ...string) ([]byte, error)
	interval time.Duration

	mu       sync.Mutex
	ap       APConfig
	joining  bool
	gen      int // bumped on every Join; stale polls are dropped
	status   LinkStatus
	cancel   context.CancelFunc
	stopPoll context.CancelFunc
}

// NewNMCLIRadio creates a radio for the given AP and station interfaces.
func NewNMCLIRadio(apIface, staIface string) (*NMCLIRadio, error) {
	if apIface == "" || staIface == "" {
		return nil, errors.New("wifi: interface name required")
	}
	if apIface == staIface {
		return nil, fmt.Errorf("%w: both are %s", ErrSameInterface, apIface)
	}
	return &NMCLIRadio{
		apIface:  apIface,
		staIface: staIface,
		run:      runNMCLI,
		interval: DefaultStatusInterval,
		status:   LinkIdle,
	}, nil
}

func runNMCLI(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "nmcli", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("nmcli %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (r *NMCLIRadio) exec(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()
	_, err := r.run(ctx, args...)
	return err
}

// ConfigureAP (re)creates the NetworkManager profile for the access point.
func (r *NMCLIRadio) ConfigureAP(cfg APConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	// A stale profile from a previous run is fine to lose.
	r.exec("connection", "delete", apConnName)

	err := r.exec("connection", "add", "type", "wifi", "ifname", r.apIface,
		"con-name", apConnName, "autoconnect", "no", "ssid", cfg.SSID,
		"802-11-wireless.mode", "ap",
		"ipv4.method", "shared",
		"ipv4.addresses", cfg.Address.String(),
		"ipv4.gateway", cfg.Gateway.String(),
		"wifi-sec.key-mgmt", "wpa-psk",
		"wifi-sec.psk", cfg.Password)
	if err != nil {
		return fmt.Errorf("configure ap: %w", err)
	}

	r.mu.Lock()
	r.ap = cfg
	r.mu.Unlock()
	return nil
}

// StartAP activates the access point profile.
func (r *NMCLIRadio) StartAP() error {
	if err := r.exec("connection", "up", apConnName); err != nil {
		return fmt.Errorf("start ap: %w", err)
	}
	r.mu.Lock()
	ssid := r.ap.SSID
	r.mu.Unlock()
	log.Printf("wifi: access point %q up on %s", ssid, r.apIface)
	return nil
}

// Join asks NetworkManager to connect the station interface. The nmcli calls
// run in the background; Status reports progress. A previous join is aborted.
//
// The station profile is created without a stored key and activated with a
// passwd-file, so the password never appears on a command line.
func (r *NMCLIRadio) Join(ssid, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.cancel = cancel
	r.joining = true
	r.gen++
	r.status = LinkConnecting
	if r.stopPoll == nil {
		pctx, stop := context.WithCancel(context.Background())
		r.stopPoll = stop
		go r.pollLoop(pctx)
	}
	r.mu.Unlock()

	go func() {
		defer cancel()
		if err := r.join(ctx, ssid, password); err != nil {
			log.Printf("wifi: join %q failed: %v", ssid, err)
		}
		r.mu.Lock()
		if ctx.Err() != context.Canceled {
			r.joining = false
		}
		r.mu.Unlock()
	}()
	return nil
}

func (r *NMCLIRadio) join(ctx context.Context, ssid, password string) error {
	// Absent on first use.
	r.run(ctx, "connection", "delete", staConnName)

	args := []string{"connection", "add", "type", "wifi", "ifname", r.staIface,
		"con-name", staConnName, "autoconnect", "no", "ssid", ssid}
	if password != "" {
		// psk-flags 2: not saved, supplied at activation.
		args = append(args, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk-flags", "2")
	}
	if _, err := r.run(ctx, args...); err != nil {
		return fmt.Errorf("add station profile: %w", err)
	}

	if password == "" {
		_, err := r.run(ctx, "connection", "up", staConnName)
		return err
	}

	f, err := os.CreateTemp("", "motion-band-psk-*")
	if err != nil {
		return fmt.Errorf("password file: %w", err)
	}
	defer os.Remove(f.Name())
	_, werr := fmt.Fprintf(f, "802-11-wireless-security.psk:%s\n", password)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("password file: %w", werr)
	}

	_, err = r.run(ctx, "connection", "up", staConnName, "passwd-file", f.Name())
	return err
}

func (r *NMCLIRadio) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// refresh reads the station device state and caches it. A result that
// started before a newer Join is discarded.
func (r *NMCLIRadio) refresh(ctx context.Context) {
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	out, err := r.run(cctx, "-t", "-f", "DEVICE,STATE", "device")
	cancel()
	if err != nil {
		out = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	r.status = parseDeviceState(string(out), r.staIface, r.joining)
}

// Status returns the last polled station state.
func (r *NMCLIRadio) Status() LinkStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// parseDeviceState maps `nmcli -t -f DEVICE,STATE device` output for iface.
func parseDeviceState(out, iface string, joining bool) LinkStatus {
	for _, line := range strings.Split(out, "\n") {
		dev, state, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || dev != iface {
			continue
		}
		switch {
		case state == "connected":
			return LinkConnected
		case strings.HasPrefix(state, "connecting"):
			return LinkConnecting
		}
		// Later lines cannot describe the same device.
		return settled(joining)
	}
	return settled(joining)
}

func settled(joining bool) LinkStatus {
	if joining {
		return LinkConnecting
	}
	return LinkDisconnected
}

// Close stops polling, aborts a pending join and takes the access point down.
func (r *NMCLIRadio) Close() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	if r.stopPoll != nil {
		r.stopPoll()
	}
	r.mu.Unlock()
	if err := r.exec("connection", "down", apConnName); err != nil {
		return fmt.Errorf("stop ap: %w", err)
	}
	return nil
}
