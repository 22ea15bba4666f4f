package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/cartwin/internal/pkg/metrics"
	"github.com/autopeer-io/cartwin/internal/twin/broadcast"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/log"
	"github.com/autopeer-io/cartwin/pkg/options"
)

// LiveState is the pull side of the telemetry state.
type LiveState interface {
	Read(vehicleID string) (*model.Snapshot, bool)
	ReadAll() []*model.Snapshot
}

// Subscriptions accepts live subscribers.
type Subscriptions interface {
	Register(s broadcast.Subscriber) error
	Unregister(s broadcast.Subscriber)
	Running() bool
}

// ReadyCheck reports whether a dependency is ready to serve.
type ReadyCheck func() bool

type Server struct {
	server  *http.Server
	options *options.HttpOptions
	state   LiveState
	hub     Subscriptions

	upgrader websocket.Upgrader

	mu     sync.RWMutex
	checks map[string]ReadyCheck
}

func NewServer(opts *options.HttpOptions, state LiveState, hub Subscriptions) *Server {
	s := &Server{
		options: opts,
		state:   state,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		checks: map[string]ReadyCheck{"broadcast": hub.Running},
	}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: opts.Timeout,
		IdleTimeout:       opts.Timeout,
	}
	return s
}

// AddReadyCheck makes /readyz depend on check.
func (s *Server) AddReadyCheck(name string, check ReadyCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Registered on the root router so a method mismatch answers 405.
	r.HandleFunc("/api/v1/vehicles/live", s.listLive).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/vehicles/{vehicleID}/live", s.getLive).Methods(http.MethodGet)

	r.HandleFunc("/ws/telemetry", s.serveLive)
	return r
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, check := range s.checks {
		if !check() {
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) listLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.ReadAll())
}

func (s *Server) getLive(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["vehicleID"]
	snap, ok := s.state.Read(vehicleID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no live telemetry for vehicle " + vehicleID})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// serveLive upgrades to a websocket and streams telemetry updates. The
// optional vehicle_id query parameter limits the stream to one vehicle.
func (s *Server) serveLive(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.URL.Query().Get("vehicle_id")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		log.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := broadcast.NewConn(uuid.NewString(), vehicleID, ws, s.options.SendBuffer, s.options.WriteWait)
	if err := s.hub.Register(conn); err != nil {
		log.Warn("Rejected live subscriber", "remote", r.RemoteAddr, "reason", err.Error())
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		_ = ws.Close()
		return
	}

	conn.Serve(func() { s.hub.Unregister(conn) })
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.options.Network, s.server.Addr)
	if err != nil {
		return err
	}
	log.Info("Starting HTTP Server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err)
	}
}
