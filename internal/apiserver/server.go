// Package apiserver wraps the gorilla/mux router and handlers as a
// *http.Server lifecycle, in the shape of walletserver/main.go's
// router-setup, but as a reusable type instead of a main() func so
// cmd/registrar can start and stop it alongside the engine.
package apiserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"synnergy-registrar/internal/apiserver/controllers"
	"synnergy-registrar/internal/apiserver/routes"
)

// Server is the registrar's HTTP API endpoint (spec.md §6 api_endpoint_port).
type Server struct {
	http *http.Server
}

// New builds a Server bound to addr (":port" form). reg may be nil, in which
// case no /metrics route is mounted.
func New(addr string, reg *prometheus.Registry) *Server {
	r := mux.NewRouter()
	routes.Register(r, controllers.NewRegistrarController(), reg)
	return &Server{http: &http.Server{Addr: addr, Handler: r}}
}

// ListenAndServe blocks serving requests until the server is shut down, the
// same way http.Server.ListenAndServe does; http.ErrServerClosed is swallowed
// since Shutdown triggers it intentionally.
func (s *Server) ListenAndServe() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("apiserver: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
