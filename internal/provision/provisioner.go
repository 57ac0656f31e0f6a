package provision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/motion-band/internal/prefs"
	"github.com/sweeney/motion-band/internal/wifi"
)

// Provisioner manages the dual AP + station network.
//
// Tick is called from the host loop; Submit and Cancel may be called from
// HTTP handlers. All state is guarded by mu. Radio status is read without
// holding the lock.
type Provisioner struct {
	radio    wifi.Radio
	store    prefs.Store
	sessions SessionStarter
	cfg      Config
	now      func() time.Time

	// submitMu orders persist+begin across concurrent Submits so the saved
	// credentials always belong to the latest attempt. Tick never takes it.
	submitMu sync.Mutex

	mu         sync.Mutex
	ctx        context.Context
	state      State
	connected  bool
	ssid       string
	origin     Origin
	attempt    *attempt
	nextLinkCk time.Time
}

type attempt struct {
	creds    Credentials
	origin   Origin
	started  time.Time
	nextPoll time.Time
	polls    int
	ctx      context.Context
	cancel   context.CancelFunc
	result   chan Result
}

// New creates a Provisioner. sessions may be nil when no data session is
// wanted after provisioning.
func New(radio wifi.Radio, store prefs.Store, sessions SessionStarter, cfg Config) *Provisioner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Provisioner{
		radio:    radio,
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		ctx:      context.Background(),
		state:    StateAPOnly,
	}
}

// Start configures and starts the access point, then begins a station
// attempt if credentials were saved. AP failures are returned and not
// retried. ctx bounds every attempt this Provisioner makes.
//
// Only ssid and password are loaded; server_ip is written by Submit but
// never read back here.
func (p *Provisioner) Start(ctx context.Context, now time.Time) error {
	if err := p.radio.ConfigureAP(p.cfg.AP); err != nil {
		return fmt.Errorf("configure access point: %w", err)
	}
	if err := p.radio.StartAP(); err != nil {
		return fmt.Errorf("start access point: %w", err)
	}
	log.Printf("provision: access point %q at %v", p.cfg.AP.SSID, p.cfg.AP.Address)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx = ctx

	ssid, err := p.store.GetString(Namespace, KeySSID, "")
	if err != nil {
		log.Printf("provision: load ssid: %v", err)
		return nil
	}
	password, err := p.store.GetString(Namespace, KeyPassword, "")
	if err != nil {
		log.Printf("provision: load password: %v", err)
		return nil
	}
	if ssid == "" || password == "" {
		log.Printf("provision: no saved credentials, waiting for portal")
		return nil
	}

	log.Printf("provision: connecting to saved network %q", ssid)
	p.begin(Credentials{SSID: ssid, Password: password}, OriginBoot, now)
	return nil
}

// Submit validates and persists portal credentials, then starts a connect
// attempt. Credentials are saved before the link is verified and are not
// rolled back on failure. The returned channel receives exactly one Result.
func (p *Provisioner) Submit(creds Credentials) (<-chan Result, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	err := p.store.PutStrings(Namespace, map[string]string{
		KeySSID:     creds.SSID,
		KeyPassword: creds.Password,
		KeyServerIP: creds.ServerAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	log.Printf("provision: portal submitted network %q", creds.SSID)
	a := p.begin(creds, OriginPortal, p.now())
	return a.result, nil
}

// Cancel aborts the in-flight attempt, if any.
func (p *Provisioner) Cancel() {
	p.mu.Lock()
	a := p.attempt
	var start string
	if a != nil {
		start = p.finish(a, false, context.Canceled)
	}
	p.mu.Unlock()
	p.startSession(start)
}

// Tick advances the connect attempt and watches an established link. It
// polls the radio at most once per PollInterval. The returned bool is true
// when an attempt resolved or the link was lost during this tick.
func (p *Provisioner) Tick(now time.Time) (Result, bool) {
	p.mu.Lock()
	a := p.attempt
	switch {
	case a != nil && a.ctx.Err() != nil:
		res := p.resolve(a, false, a.ctx.Err())
		return res, true
	case a != nil && now.Before(a.nextPoll):
		p.mu.Unlock()
		return Result{}, false
	case a == nil && (!p.connected || now.Before(p.nextLinkCk)):
		p.mu.Unlock()
		return Result{}, false
	}
	p.mu.Unlock()

	status := p.radio.Status()

	p.mu.Lock()
	if a == nil {
		return p.checkLink(status, now)
	}
	if p.attempt != a {
		// Replaced or canceled while the radio was being read.
		p.mu.Unlock()
		return Result{}, false
	}
	if status == wifi.LinkConnected {
		return p.resolve(a, true, nil), true
	}
	if a.polls >= p.cfg.MaxAttempts {
		return p.resolve(a, false, ErrConnectTimeout), true
	}
	a.polls++
	a.nextPoll = now.Add(p.cfg.PollInterval)
	p.mu.Unlock()
	return Result{}, false
}

// checkLink is called with mu held and releases it.
func (p *Provisioner) checkLink(status wifi.LinkStatus, now time.Time) (Result, bool) {
	defer p.mu.Unlock()
	if p.attempt != nil || !p.connected {
		return Result{}, false
	}
	p.nextLinkCk = now.Add(p.cfg.PollInterval)
	if status == wifi.LinkConnected {
		return Result{}, false
	}
	log.Printf("provision: station link to %q lost (%s)", p.ssid, status)
	p.state = StateDisconnected
	p.connected = false
	return Result{Origin: p.origin, SSID: p.ssid, Err: ErrLinkLost}, true
}

// resolve finishes a with mu held, releases mu and starts the session if the
// attempt earned one.
func (p *Provisioner) resolve(a *attempt, ok bool, err error) Result {
	start := p.finish(a, ok, err)
	res := Result{Origin: a.origin, SSID: a.creds.SSID, Connected: ok, Polls: a.polls, Err: err}
	p.mu.Unlock()
	p.startSession(start)
	return res
}

// begin starts a new attempt with mu held, superseding any current one.
func (p *Provisioner) begin(creds Credentials, origin Origin, now time.Time) *attempt {
	if old := p.attempt; old != nil {
		p.finish(old, false, ErrSuperseded)
	}

	ctx, cancel := context.WithCancel(p.ctx)
	a := &attempt{
		creds:    creds,
		origin:   origin,
		started:  now,
		nextPoll: now,
		ctx:      ctx,
		cancel:   cancel,
		result:   make(chan Result, 1),
	}
	p.origin = origin
	p.connected = false

	if err := p.radio.Join(creds.SSID, creds.Password); err != nil {
		p.state = StateDisconnected
		cancel()
		a.result <- Result{Origin: origin, SSID: creds.SSID, Err: fmt.Errorf("join: %w", err)}
		log.Printf("provision: join %q: %v", creds.SSID, err)
		return a
	}

	p.attempt = a
	p.state = StateConnecting
	return a
}

// finish records the outcome of a with mu held. It returns the server
// address to open a session for, or "" when none is due.
func (p *Provisioner) finish(a *attempt, ok bool, err error) string {
	a.cancel()
	select {
	case a.result <- Result{Origin: a.origin, SSID: a.creds.SSID, Connected: ok, Polls: a.polls, Err: err}:
	default:
	}

	if p.attempt != a {
		return ""
	}
	p.attempt = nil

	if errors.Is(err, ErrSuperseded) {
		return ""
	}
	if !ok {
		p.state = StateDisconnected
		p.connected = false
		log.Printf("provision: %s attempt for %q failed after %d polls: %v", a.origin, a.creds.SSID, a.polls, err)
		return ""
	}

	p.state = StateConnected
	p.connected = true
	p.ssid = a.creds.SSID
	p.nextLinkCk = time.Time{}
	log.Printf("provision: connected to %q (%s)", a.creds.SSID, a.origin)
	if a.origin == OriginPortal {
		return a.creds.ServerAddress
	}
	return ""
}

func (p *Provisioner) startSession(addr string) {
	if addr == "" || p.sessions == nil {
		return
	}
	p.sessions.Start(addr)
}

// Connected reports whether the station link is established.
func (p *Provisioner) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// State returns the provisioning state.
func (p *Provisioner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Status returns a snapshot of the provisioning state.
func (p *Provisioner) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{State: p.state, Connected: p.connected, SSID: p.ssid, Origin: p.origin}
	if p.attempt != nil {
		s.SSID = p.attempt.creds.SSID
		s.Polls = p.attempt.polls
	}
	return s
}
