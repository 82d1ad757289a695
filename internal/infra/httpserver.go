package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer runs the API until its context ends, then drains in-flight
// requests. Generations can take minutes, so the drain window is configured
// separately from the idle timeout.
type HTTPServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *Logger
}

// NewHTTPServer builds the server from cfg.
func NewHTTPServer(cfg *Config, handler http.Handler, logger *Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          LoggerOrDiscard(logger),
	}
}

// Addr is the listen address.
func (s *HTTPServer) Addr() string { return s.server.Addr }

// Run serves until ctx is cancelled or the listener fails. A clean shutdown
// returns nil.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Dur("drain", s.shutdownTimeout).Msg("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
