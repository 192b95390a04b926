package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bidhub/auctions/internal/auth"
)

// Server wraps the HTTP server with sane timeouts and graceful shutdown.
type Server struct {
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
}

// NewServer wires the handlers and middleware into a ready-to-serve server.
func NewServer(h *Handlers, verifier *auth.Verifier) *Server {
	return &Server{
		handler:  SetupRoutes(h, verifier),
		handlers: h,
	}
}

// ListenAndServe starts serving on addr and blocks until the listener fails
// or Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Write timeout is generous because websocket connections share
		// this server; the hub enforces its own write deadlines.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
