// Package httpapi serves the Trace2Pass-Core submission and query
// surface over HTTP: POST /events, GET /reports/{fingerprint},
// GET /queue, GET /stats, PATCH /reports/{fingerprint}, and GET /metrics.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server wires the Report Store onto an http.Server using Go 1.22+
// ServeMux method-and-path patterns, with structured-logging and
// panic-recovery middleware wrapping every route.
type Server struct {
	store   Store
	metrics *Metrics
	log     *zap.Logger
	http    *http.Server
}

// New builds a Server bound to addr. Call Start to begin serving.
func New(st Store, metrics *Metrics, log *zap.Logger, addr string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{store: st, metrics: metrics, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", s.handleSubmitEvent)
	mux.HandleFunc("GET /reports/{fingerprint}", s.handleGetReport)
	mux.HandleFunc("PATCH /reports/{fingerprint}", s.handlePatchReport)
	mux.HandleFunc("GET /queue", s.handleQueue)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", metrics.Handler())

	s.http = &http.Server{
		Addr:         addr,
		Handler:      withRecovery(log, withLogging(log, mux)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then gracefully shuts down.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()

	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: serve %s: %w", s.http.Addr, err)
	}
	return nil
}
