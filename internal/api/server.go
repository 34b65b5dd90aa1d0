// Package api implements the controller's HTTP surface (spec.md §6):
// thin JSON handlers over internal/simulator.Root, plus the ambient
// /healthz, /readyz, and /metrics endpoints the teacher carries
// alongside every service it exposes.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/metrics"
	"github.com/cuemby/fleetsim/internal/simulator"
	"github.com/rs/zerolog"
)

// Server wraps the simulator tree with its HTTP handlers.
type Server struct {
	root   *simulator.Root
	logger zerolog.Logger
	mux    *http.ServeMux
}

// NewServer builds a Server and registers every route.
func NewServer(root *simulator.Root) *Server {
	s := &Server{
		root:   root,
		logger: log.WithComponent("api"),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the instrumented handler suitable for http.Server.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// HTTPServer builds an *http.Server bound to addr with the teacher's
// timeout idiom from pkg/api/health.go.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) routes() {
	s.handle("POST /network/", s.createNetwork)
	s.handle("GET /network/", s.listNetworks)
	s.handle("GET /network/{n}", s.getNetwork)
	s.handle("DELETE /network/{n}", s.deleteNetwork)

	s.handle("POST /network/{n}/hub/", s.createHub)
	s.handle("GET /network/{n}/hub/{h}", s.getHub)
	s.handle("DELETE /network/{n}/hub/{h}", s.deleteHub)
	s.handle("GET /network/{n}/hub/{h}/stats", s.hubStats)

	s.handle("POST /network/{n}/hub/{h}/ap/", s.createAP)
	s.handle("GET /network/{n}/hub/{h}/ap/{a}", s.getAP)
	s.handle("DELETE /network/{n}/hub/{h}/ap/{a}", s.deleteAP)

	s.handle("POST /network/{n}/hub/{h}/ap/{a}/rt/", s.createRT)

	s.mux.HandleFunc("GET /healthz", metrics.HealthHandler())
	s.mux.HandleFunc("GET /readyz", metrics.ReadyHandler())
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// handle registers h under pattern, wrapped with request-count/duration
// instrumentation (fleetsim_api_requests_total / _duration_seconds).
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	method, route := splitPattern(pattern)
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.APIRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		metrics.APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
	})
}

// splitPattern separates a Go 1.22+ mux pattern ("GET /network/{n}")
// into its method and route for metric labeling.
func splitPattern(pattern string) (method, route string) {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ' ' {
			return pattern[:i], pattern[i+1:]
		}
	}
	return "", pattern
}

// statusRecorder captures the status code written by a handler so the
// instrumentation wrapper can label it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// pathIndex parses a {name} path value as a non-negative tree index.
func pathIndex(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &badRequestError{msg: "invalid " + name + " index: " + raw}
	}
	return n, nil
}
