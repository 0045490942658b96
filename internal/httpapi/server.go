// Package httpapi is Courier's HTTP/JSON surface: a thin translation layer
// from versioned REST routes onto internal/broker.Registry calls, built on
// net/http and Go 1.22+ method-tagged ServeMux patterns rather than a
// router library, in the teacher's own style.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/couriermq/courier/internal/broker"
	"github.com/couriermq/courier/internal/config"
	"github.com/couriermq/courier/pkg/log"
)

// Server wraps the registry, the process defaults new resources fall back
// to, and a configured *http.Server.
type Server struct {
	registry *broker.Registry
	defaults config.Config
	mux      *http.ServeMux
	http     *http.Server
}

// NewServer builds a Server bound to addr, routing against registry.
func NewServer(addr string, registry *broker.Registry, defaults config.Config) *Server {
	s := &Server{
		registry: registry,
		defaults: defaults,
		mux:      http.NewServeMux(),
	}
	s.routes()
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the server's root http.Handler, useful for wiring into
// an httptest.Server without binding a real listener.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts serving and blocks until the listener fails or
// Shutdown is called, in which case it returns http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	log.Logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
