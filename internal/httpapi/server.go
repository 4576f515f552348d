// internal/httpapi/server.go
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-client/internal/events"
	"github.com/tamzrod/modbus-client/internal/poller"
	"github.com/tamzrod/modbus-client/internal/status"
)

// ClientView is the part of the client the API reads.
type ClientView interface {
	Snapshot() status.Snapshot
	Subscribe(h events.Handler) (unsubscribe func())
}

// DeviceView exposes the bridge's device-level health and latest poll.
// Optional: read-only deployments have no bridge.
type DeviceView interface {
	Health() status.Snapshot
	Latest() (poller.PollResult, bool)
}

// Config configures the server.
type Config struct {
	Listen string
	// Gatherer serves /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// EventBuffer bounds each websocket's pending events. Default: 32.
	EventBuffer int
}

// Server is the status HTTP API.
type Server struct {
	cfg      Config
	client   ClientView
	device   DeviceView
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the router. device may be nil.
func New(cfg Config, client ClientView, device DeviceView, logger zerolog.Logger) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 32
	}

	s := &Server{
		cfg:    cfg,
		client: client,
		device: device,
		logger: logger.With().Str("component", "http").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Get("/status", s.status)
	r.Get("/readings", s.readings)
	r.Get("/events", s.events)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	s.router = r

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info().Str("listen", s.cfg.Listen).Msg("http api listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ---- handlers ----

type snapshotJSON struct {
	ClientID       string    `json:"client_id,omitempty"`
	State          string    `json:"state"`
	Health         uint16    `json:"health"`
	LastErrorCode  uint16    `json:"last_error_code"`
	SecondsInError uint16    `json:"seconds_in_error"`
	Attempt        int       `json:"attempt"`
	LastError      string    `json:"last_error,omitempty"`
	LastChange     time.Time `json:"last_change,omitempty"`
	LastSuccess    time.Time `json:"last_success,omitempty"`
}

func toJSON(s status.Snapshot) snapshotJSON {
	return snapshotJSON{
		ClientID:       s.ClientID,
		State:          s.State.String(),
		Health:         s.Health,
		LastErrorCode:  s.LastErrorCode,
		SecondsInError: s.SecondsInError,
		Attempt:        s.Attempt,
		LastError:      s.LastError,
		LastChange:     s.LastChange,
		LastSuccess:    s.LastSuccess,
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	snap := s.client.Snapshot()
	code := http.StatusOK
	if snap.State != status.Connected {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"state": snap.State.String()})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	out := struct {
		Client snapshotJSON  `json:"client"`
		Device *snapshotJSON `json:"device,omitempty"`
	}{Client: toJSON(s.client.Snapshot())}

	if s.device != nil {
		d := toJSON(s.device.Health())
		out.Device = &d
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) readings(w http.ResponseWriter, _ *http.Request) {
	if s.device == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "polling disabled"})
		return
	}
	res, ok := s.device.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no poll completed yet"})
		return
	}

	out := struct {
		Device   string           `json:"device"`
		At       time.Time        `json:"at"`
		TookMs   float64          `json:"took_ms"`
		Error    string           `json:"error,omitempty"`
		Readings []poller.Reading `json:"readings"`
	}{
		Device:   res.Device,
		At:       res.At,
		TookMs:   float64(res.Took) / float64(time.Millisecond),
		Readings: res.Readings,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
