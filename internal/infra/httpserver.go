package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server with start and graceful-shutdown helpers so
// main can drain open websocket streams before exiting.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the API server with timeouts taken from config. The
// write timeout must stay comfortably above the poll interval or long-lived
// job streams get cut mid-update.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv}
}

// Start runs the HTTP server in the current goroutine.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
