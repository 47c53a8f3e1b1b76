package metrics

import (
	"context"
	"net/http"
	"time"
)

// Server exposes /metrics and the health endpoints on a dedicated listener
type Server struct {
	srv *http.Server
}

// NewServer creates the metrics HTTP server on the given address
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/healthz", HealthHandler())
	mux.HandleFunc("/readyz", ReadyHandler())
	mux.HandleFunc("/livez", LivenessHandler())

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine. Errors other than
// graceful shutdown are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
