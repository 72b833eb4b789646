package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cortexai/ingest/internal/config"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg     *config.Config
	http    *http.Server
	closers []func()
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	router, err := s.setupRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("setup routes: %w", err)
	}

	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
		ReadTimeout: 15 * time.Second,
		// Invocations block on load jobs and bounded polls, so the
		// write timeout has to cover a full pipeline run.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)
		for _, closer := range s.closers {
			closer()
		}
		return err
	case err := <-errCh:
		return err
	}
}
