// Package server exposes the ChirpLink diagnostics HTTP surface: Prometheus
// metrics, health and readiness probes, and a JSON status snapshot of the
// running engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/chirplink/internal/health"
	"github.com/MrWong99/chirplink/internal/observe"
	"github.com/MrWong99/chirplink/pkg/chirp"
)

// shutdownTimeout bounds graceful HTTP shutdown once the run context ends.
const shutdownTimeout = 5 * time.Second

// Engine is the read-only view of the chirp engine the status endpoint
// reports on. *chirp.SDK satisfies it.
type Engine interface {
	Version() string
	State() chirp.AudioState
	Protocol() *chirp.Protocol
	Authorized() bool
	Volume() float64
	StreamingMode() bool
	IsStreaming() bool
	LastHeard() *chirp.ChirpEvent
	SampleRate() int
}

// ---- options ----

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithHealth installs a health handler with readiness checkers. When not
// provided, a checker-less handler is used so /healthz and /readyz always
// answer.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics wires the HTTP middleware's request-duration instrument.
// Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// ---- Server ----

// Server is the diagnostics HTTP server. It is cheap to construct; no socket
// is opened until [Server.Run].
type Server struct {
	addr    string
	engine  Engine
	health  *health.Handler
	metrics *observe.Metrics
	httpSrv *http.Server
}

// New creates a diagnostics server listening on addr (e.g. ":9464") and
// reporting on the given engine.
func New(addr string, engine Engine, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		engine: engine,
	}
	for _, o := range opts {
		o(s)
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)
	s.health.Register(mux)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(s.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's root HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully. It
// returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("diagnostics server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// ---- /status ----

// statusResponse is the JSON body served by GET /status.
type statusResponse struct {
	Version       string           `json:"version"`
	State         string           `json:"state"`
	Protocol      string           `json:"protocol"`
	SampleRate    int              `json:"sample_rate"`
	Volume        float64          `json:"volume"`
	Authorized    bool             `json:"authorized"`
	StreamingMode bool             `json:"streaming_mode"`
	Streaming     bool             `json:"streaming"`
	LastHeard     *lastHeardStatus `json:"last_heard,omitempty"`
}

// lastHeardStatus summarises the most recent decode.
type lastHeardStatus struct {
	Identifier string    `json:"identifier"`
	Protocol   string    `json:"protocol"`
	Heard      time.Time `json:"heard"`
	Confidence float64   `json:"confidence"`
}

// handleStatus serves a point-in-time snapshot of the engine. Each field is
// read through the engine's own accessors, so the snapshot is consistent per
// field rather than across fields.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	res := statusResponse{
		Version:       s.engine.Version(),
		State:         s.engine.State().String(),
		Protocol:      s.engine.Protocol().Name,
		SampleRate:    s.engine.SampleRate(),
		Volume:        s.engine.Volume(),
		Authorized:    s.engine.Authorized(),
		StreamingMode: s.engine.StreamingMode(),
		Streaming:     s.engine.IsStreaming(),
	}
	if ev := s.engine.LastHeard(); ev != nil {
		res.LastHeard = &lastHeardStatus{
			Identifier: ev.Identifier,
			Protocol:   ev.Protocol,
			Heard:      ev.Heard,
			Confidence: ev.Confidence,
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		http.Error(w, `{"error":"encode status"}`, http.StatusInternalServerError)
	}
}
