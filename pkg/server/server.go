// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server runs the operational HTTP endpoints of the annotation store: health and
// readiness probes backed by the store connection, and Prometheus metrics.
//
// Example usage:
//
//	srv := server.NewServer(
//	    server.WithPort(2112),
//	    server.WithPrometheusMetrics(),
//	    server.WithHealthCheck(manager),
//	    server.WithReadinessCheck(manager),
//	)
//
//	if err := srv.Serve(ctx); err != nil {
//	    return err
//	}
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPort            = 2112
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20 // 1 MB
)

// HealthChecker reports liveness. *datastore.ConnectionManager implements it.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// ReadinessChecker reports whether traffic can be served. *datastore.ConnectionManager implements it.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Server is the probe and metrics HTTP server
type Server struct {
	mux             *http.ServeMux
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	maxHeaderBytes  int

	mu      sync.RWMutex
	running bool
	addr    net.Addr
}

// Option is a functional option for configuring the Server
type Option func(*Server)

// WithPort sets the listen port. Port 0 picks a free port.
func WithPort(port int) Option {
	return func(s *Server) { s.port = port }
}

func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithShutdownTimeout bounds how long in-flight requests may take once shutdown starts
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

// WithHandler registers a custom handler for pattern
func WithHandler(pattern string, handler http.Handler) Option {
	return func(s *Server) {
		s.mux.Handle(pattern, handler)
	}
}

// WithPrometheusMetrics serves the default Prometheus registry at /metrics
func WithPrometheusMetrics() Option {
	return func(s *Server) {
		s.mux.Handle("/metrics", promhttp.Handler())
	}
}

// WithHealthCheck serves /healthz: 200 "ok" when checker is healthy, 503 with the error otherwise
func WithHealthCheck(checker HealthChecker) Option {
	return func(s *Server) {
		s.mux.HandleFunc("/healthz", probeHandler("health", checker.Healthy, slog.LevelWarn))
	}
}

// WithReadinessCheck serves /readyz: 200 "ok" when checker is ready, 503 with the error otherwise
func WithReadinessCheck(checker ReadinessChecker) Option {
	return func(s *Server) {
		s.mux.HandleFunc("/readyz", probeHandler("readiness", checker.Ready, slog.LevelDebug))
	}
}

func probeHandler(name string, check func(context.Context) error, failureLevel slog.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if err := check(r.Context()); err != nil {
			slog.Log(r.Context(), failureLevel, name+" check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// NewServer creates a server with the given options applied over the defaults
func NewServer(opts ...Option) *Server {
	s := &Server{
		port:            DefaultPort,
		readTimeout:     DefaultReadTimeout,
		writeTimeout:    DefaultWriteTimeout,
		idleTimeout:     DefaultIdleTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		maxHeaderBytes:  DefaultMaxHeaderBytes,
		mux:             http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	slog.Info("server initialized",
		"port", s.port,
		"read_timeout", s.readTimeout,
		"write_timeout", s.writeTimeout)

	return s
}

// Handler returns the request multiplexer
func (s *Server) Handler() http.Handler {
	return s.mux
}

// IsRunning reports whether the socket is bound and accepting connections
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.running
}

// Addr returns the bound address while running, or nil
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.addr
}

// Serve listens and blocks until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", s.port),
		Handler:        s.mux,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		IdleTimeout:    s.idleTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
	}

	lc := &net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	slog.Info("starting server", "addr", listener.Addr().String())

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// running only once the socket is bound
		s.mu.Lock()
		s.running = true
		s.addr = listener.Addr()
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			s.running = false
			s.addr = nil
			s.mu.Unlock()
		}()

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		slog.Info("shutting down server", "grace_period", s.shutdownTimeout)

		shutdownStart := time.Now()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		slog.Info("server shutdown complete", "duration", time.Since(shutdownStart))

		return nil
	})

	return g.Wait()
}
