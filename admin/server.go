package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/maxpert/recordstream/telemetry"
	"github.com/rs/zerolog/log"
)

// Server hosts the admin routes and the Prometheus /metrics endpoint
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds the admin HTTP server on bindAddress:port
func NewServer(bindAddress string, port int, handlers *AdminHandlers) *Server {
	mux := http.NewServeMux()
	RegisterRoutes(mux, handlers)

	if metrics := telemetry.GetMetricsHandler(); metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", bindAddress, port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start listens and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Admin server stopped unexpectedly")
		}
	}()

	log.Info().Str("address", listener.Addr().String()).Msg("Admin server started")
	return nil
}

// Addr returns the bound address, useful when port 0 was requested
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Stop shuts down the server, waiting for in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
