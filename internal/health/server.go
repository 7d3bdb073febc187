// Package health exposes the liveness, the readiness and the metrics of a role over HTTP.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FerroO2000/shmring/internal"
)

const (
	maxGoroutines   = 100
	shutdownTimeout = time.Second
)

// Server serves the health endpoints:
//
//	/live     liveness checks
//	/ready    readiness checks
//	/metrics  Prometheus metrics, including the status of every check
//
// Checks and gauges must not touch the shared memory,
// they are expected to read values cached by the role.
type Server struct {
	tel *internal.Telemetry

	namespace string

	registry *prometheus.Registry
	handler  healthcheck.Handler

	mux      sync.Mutex
	srv      *http.Server
	listener net.Listener
	serveErr chan error
}

// NewServer returns a health server whose metrics are prefixed with namespace.
func NewServer(namespace string) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := healthcheck.NewMetricsHandler(registry, namespace)
	handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))

	return &Server{
		tel: internal.NewTelemetry("health", namespace),

		namespace: namespace,

		registry: registry,
		handler:  handler,
	}
}

// AddReadinessCheck registers a readiness check.
func (s *Server) AddReadinessCheck(name string, check func() error) {
	s.handler.AddReadinessCheck(name, check)
}

// AddGauge registers a gauge whose value is read from fn on every scrape.
func (s *Server) AddGauge(name, help string, fn func() float64) {
	s.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: s.namespace,
			Subsystem: "ring",
			Name:      name,
			Help:      help,
		},
		fn,
	))
}

// AddCounter registers a counter whose value is read from fn on every scrape.
func (s *Server) AddCounter(name, help string, fn func() float64) {
	s.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Subsystem: "ring",
			Name:      name,
			Help:      help,
		},
		fn,
	))
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", s.handler.LiveEndpoint)
	mux.HandleFunc("/ready", s.handler.ReadyEndpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Start starts serving on addr in a separate goroutine.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.serveErr = make(chan error, 1)

	go func() {
		err := s.srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serveErr <- err
	}()

	s.tel.LogInfo("health server started", "address", listener.Addr().String())

	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully stops the server. It is safe to call it if the server was never started.
func (s *Server) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	if serveErr := <-s.serveErr; serveErr != nil {
		err = errors.Join(err, serveErr)
	}

	s.srv = nil
	s.listener = nil

	s.tel.LogInfo("health server stopped")

	return err
}
