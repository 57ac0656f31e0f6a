// Package session streams filtered motion frames to the relay server the
// user entered in the configuration portal.
package session

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sweeney/motion-band/internal/motion"
)

// DefaultPort is the relay server's websocket port.
const DefaultPort = 8080

const (
	queueSize     = 64
	dialTimeout   = 10 * time.Second
	writeTimeout  = 5 * time.Second
	retryInterval = 5 * time.Second
)

// Frame is one sensor reading on the wire.
type Frame struct {
	Session   string  `json:"session"`
	Timestamp string  `json:"timestamp"`
	AX        float64 `json:"ax"`
	AY        float64 `json:"ay"`
	AZ        float64 `json:"az"`
	GX        float64 `json:"gx"`
	GY        float64 `json:"gy"`
	GZ        float64 `json:"gz"`
}

// NewFrame builds a frame from a filtered sample.
func NewFrame(session string, ts time.Time, s motion.Sample) Frame {
	return Frame{
		Session:   session,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		AX:        s[motion.AccelX],
		AY:        s[motion.AccelY],
		AZ:        s[motion.AccelZ],
		GX:        s[motion.GyroX],
		GY:        s[motion.GyroY],
		GZ:        s[motion.GyroZ],
	}
}

// ResolveURL turns the portal's server address into a websocket URL.
// A bare host gets ws:// and port; ws, wss, http and https URLs are accepted.
func ResolveURL(addr string, port int) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("session: empty server address")
	}

	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", fmt.Errorf("session: parse %q: %w", addr, err)
		}
		switch u.Scheme {
		case "ws", "wss":
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		default:
			return "", fmt.Errorf("session: unsupported scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("session: missing host in %q", addr)
		}
		if u.Path == "" {
			u.Path = "/"
		}
		return u.String(), nil
	}

	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		host, p = addr, strconv.Itoa(port)
	}
	if host == "" {
		return "", fmt.Errorf("session: missing host in %q", addr)
	}
	return "ws://" + net.JoinHostPort(host, p) + "/", nil
}

// Streamer owns at most one websocket session at a time.
type Streamer struct {
	dialer *websocket.Dialer
	port   int

	mu  sync.Mutex
	cur *stream
}

type stream struct {
	id        string
	url       string
	out       chan Frame
	ctx       context.Context
	cancel    context.CancelFunc
	connected atomic.Bool
}

// NewStreamer creates a Streamer that dials port when the address has none.
func NewStreamer(port int) *Streamer {
	return &Streamer{
		dialer: &websocket.Dialer{HandshakeTimeout: dialTimeout},
		port:   port,
	}
}

// Start opens a new session to serverAddress in the background, replacing
// any current one. It never blocks on the network.
func (s *Streamer) Start(serverAddress string) {
	u, err := ResolveURL(serverAddress, s.port)
	if err != nil {
		log.Printf("session: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &stream{
		id:     uuid.NewString(),
		url:    u,
		out:    make(chan Frame, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	s.mu.Lock()
	old := s.cur
	s.cur = st
	s.mu.Unlock()
	if old != nil {
		old.cancel()
	}

	log.Printf("session: starting %s to %s", st.id, u)
	go s.run(st)
}

// Send queues a frame for the current session. It returns false when there
// is no connected session or the queue is full; frames are then dropped.
func (s *Streamer) Send(ts time.Time, sample motion.Sample) bool {
	s.mu.Lock()
	st := s.cur
	s.mu.Unlock()
	if st == nil || !st.connected.Load() {
		return false
	}
	select {
	case st.out <- NewFrame(st.id, ts, sample):
		return true
	default:
		return false
	}
}

// Active reports whether a session is connected.
func (s *Streamer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && s.cur.connected.Load()
}

// ID returns the current session ID, empty if none was started.
func (s *Streamer) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.id
}

// Close ends the current session.
func (s *Streamer) Close() error {
	s.mu.Lock()
	st := s.cur
	s.cur = nil
	s.mu.Unlock()
	if st != nil {
		st.cancel()
	}
	return nil
}

// run dials and pumps frames, redialling after a fixed delay until the
// session is replaced or closed.
func (s *Streamer) run(st *stream) {
	for {
		if err := s.pump(st); err != nil && st.ctx.Err() == nil {
			log.Printf("session: %s: %v", st.id, err)
		}
		select {
		case <-st.ctx.Done():
			return
		case <-time.After(retryInterval):
		}
	}
}

func (s *Streamer) pump(st *stream) error {
	dctx, cancel := context.WithTimeout(st.ctx, dialTimeout)
	ws, _, err := s.dialer.DialContext(dctx, st.url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()

	st.connected.Store(true)
	defer st.connected.Store(false)
	log.Printf("session: %s connected", st.id)

	// Control frames are only processed while reading.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-st.ctx.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return nil
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case f := <-st.out:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(f); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}
