// Package exporters serves metrics over HTTP.
package exporters

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/termcam/internal/logging"
)

// HTTPHandler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}

// HealthFunc reports whether capture is healthy.
type HealthFunc func() error

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewRouter builds the probe routes. Callers mount further routes on it.
//
//	GET /metrics  Prometheus exposition
//	GET /healthz  200 when health returns nil, 503 otherwise
func NewRouter(health HealthFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Long-lived routes mounted later (event streams) must not inherit the timeout
	r.Group(func(probes chi.Router) {
		probes.Use(middleware.Timeout(10 * time.Second))
		probes.Handle("/metrics", HTTPHandler())
		probes.Get("/healthz", healthHandler(health))
	})

	return r
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok"}
		code := http.StatusOK
		if health != nil {
			if err := health(); err != nil {
				resp = healthResponse{Status: "unhealthy", Message: err.Error()}
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server serves a handler, normally NewRouter's, on a TCP address.
type Server struct {
	srv    *http.Server
	logger logging.Logger
	done   chan error
	cancel context.CancelFunc
}

// NewServer creates a server for addr. Nothing listens until Start.
// Request contexts are cancelled by Shutdown so streaming handlers return.
func NewServer(addr string, handler http.Handler) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		logger: logging.GetLogger("metrics"),
		done:   make(chan error, 1),
		cancel: cancel,
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Metrics server listening", "addr", ln.Addr().String())

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
