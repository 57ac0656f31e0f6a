// Package web provides the provisioning portal served on the device's
// access point.
package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/motion-band/internal/provision"
	"github.com/sweeney/motion-band/internal/status"
)

// DefaultAddr is the portal listen address.
const DefaultAddr = ":80"

// DefaultResultTimeout bounds how long a POST waits for the connect attempt.
// It is longer than the 30 s connect protocol.
const DefaultResultTimeout = 45 * time.Second

// Portal accepts credentials from the form.
type Portal interface {
	Submit(creds provision.Credentials) (<-chan provision.Result, error)
}

// Server serves the provisioning form and device status over HTTP.
type Server struct {
	httpServer    *http.Server
	portal        Portal
	tracker       *status.Tracker
	resultTimeout time.Duration
}

// New creates a Server that submits credentials to portal and reads state
// from tracker.
func New(addr string, portal Portal, tracker *status.Tracker) *Server {
	s := &Server{
		portal:        portal,
		tracker:       tracker,
		resultTimeout: DefaultResultTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/status.json", s.handleJSON)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleForm(w, r)
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, page{Kind: pageForm, Snapshot: s.tracker.Snapshot()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderPage(w, http.StatusBadRequest, page{Kind: pageError, Message: "Could not read the form."})
		return
	}

	if missing := missingFields(r); len(missing) > 0 {
		renderPage(w, http.StatusBadRequest, page{Kind: pageError, Missing: missing})
		return
	}

	creds := provision.Credentials{
		SSID:          r.PostForm.Get(provision.KeySSID),
		Password:      r.PostForm.Get(provision.KeyPassword),
		ServerAddress: r.PostForm.Get(provision.KeyServerIP),
	}
	results, err := s.portal.Submit(creds)
	switch {
	case errors.Is(err, provision.ErrMissingField):
		renderPage(w, http.StatusBadRequest, page{Kind: pageError, Message: err.Error()})
		return
	case err != nil:
		log.Printf("web: submit: %v", err)
		renderPage(w, http.StatusInternalServerError, page{Kind: pageError, Message: "Could not save the settings."})
		return
	}

	timer := time.NewTimer(s.resultTimeout)
	defer timer.Stop()

	var res provision.Result
	select {
	case res = <-results:
	case <-r.Context().Done():
		// Client went away; the attempt carries on without it.
		return
	case <-timer.C:
		res = provision.Result{SSID: creds.SSID, Err: provision.ErrConnectTimeout}
	}

	p := page{Kind: pageFailed, SSID: res.SSID, ServerAddress: creds.ServerAddress}
	if res.Connected {
		p.Kind = pageConnected
	} else if res.Err != nil {
		p.Message = res.Err.Error()
	}
	renderPage(w, http.StatusOK, p)
}

// missingFields returns the required form fields that are absent or empty.
func missingFields(r *http.Request) []string {
	var missing []string
	for _, k := range []string{provision.KeySSID, provision.KeyPassword, provision.KeyServerIP} {
		if r.PostForm.Get(k) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
