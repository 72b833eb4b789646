package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cortexai/ingest/internal/handler"
	"github.com/cortexai/ingest/internal/ledger"
	"github.com/cortexai/ingest/internal/middleware"
	"github.com/cortexai/ingest/internal/pipeline"
	"github.com/cortexai/ingest/internal/retry"
	"github.com/cortexai/ingest/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// setupRoutes constructs all clients with invocation-independent
// lifetime, wires the pipeline, and returns the router. Every client
// is passed by reference; nothing lives in package globals.
func (s *Server) setupRoutes(ctx context.Context) (http.Handler, error) {
	cfg := s.cfg

	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is required")
	}

	bqSvc, err := service.NewBigQueryService(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials, cfg.BigQueryLocation)
	if err != nil {
		return nil, fmt.Errorf("bigquery service: %w", err)
	}
	s.closers = append(s.closers, func() {
		if err := bqSvc.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing BigQuery client")
		}
	})

	gcsSvc, err := service.NewStorageService(ctx, cfg.GoogleApplicationCredentials)
	if err != nil {
		return nil, fmt.Errorf("storage service: %w", err)
	}
	s.closers = append(s.closers, func() {
		if err := gcsSvc.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing storage client")
		}
	})

	var esSvc *service.ElasticsearchService
	if cfg.ElasticsearchEnabled {
		esSvc, err = service.NewElasticsearchService(
			cfg.ElasticsearchScheme,
			cfg.ElasticsearchHost,
			cfg.ElasticsearchPort,
			cfg.ElasticsearchUser,
			cfg.ElasticsearchPassword,
			cfg.ElasticsearchVerifyCerts,
			cfg.ElasticsearchMaxRetries,
			cfg.QualityIndex,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Elasticsearch sink unavailable")
			esSvc = nil
		}
	}

	var runLedger *ledger.Ledger
	if cfg.LedgerDSN != "" {
		runLedger, err = ledger.New(ctx, cfg.LedgerDSN)
		if err != nil {
			log.Warn().Err(err).Msg("run ledger unavailable")
		} else {
			s.closers = append(s.closers, runLedger.Close)
		}
	}

	pipe := pipeline.New(bqSvc, gcsSvc, pipeline.Options{
		ProjectID:     cfg.GCPProjectID,
		SampleRows:    cfg.SampleRows,
		MaxBadRecords: int64(cfg.MaxBadRecords),
		Policy: retry.Policy{
			MaxAttempts: cfg.PollAttempts,
			Delay:       time.Duration(cfg.PollDelaySeconds) * time.Second,
		},
		Thresholds: pipeline.Thresholds{
			MinIssuePct:         cfg.MinIssuePct,
			MaxIssuePct:         cfg.MaxIssuePct,
			DuplicateCeilingPct: cfg.DuplicateCeilingPct,
			NullRowCeilingPct:   cfg.NullRowCeilingPct,
			Ops:                 pipeline.TogglesFromList(cfg.CleaningOperations),
		},
		Strategy:        pipeline.Strategy(cfg.CleaningStrategy),
		EnableCleaning:  cfg.EnableCleaning,
		RowTolerancePct: cfg.RowTolerancePct,
		TargetColumn:    cfg.TrainingTargetColumn,
	})
	if esSvc != nil {
		pipe.WithSink(esSvc)
	}
	if cfg.TrainingWebhookURL != "" {
		pipe.WithNotifier(pipeline.NewWebhookNotifier(cfg.TrainingWebhookURL, cfg.TrainingTargetColumn))
	}

	log.Info().
		Str("project", cfg.GCPProjectID).
		Str("strategy", cfg.CleaningStrategy).
		Bool("cleaning_enabled", cfg.EnableCleaning).
		Bool("elasticsearch_sink", esSvc != nil).
		Bool("run_ledger", runLedger != nil).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Msg("service configuration")

	checks := map[string]handler.HealthChecker{"bigquery": bqSvc}
	if esSvc != nil {
		checks["elasticsearch"] = esSvc
	} else {
		checks["elasticsearch"] = nil
	}
	healthH := handler.NewHealthHandler(checks)

	var recorder handler.RunRecorder
	if runLedger != nil {
		recorder = runLedger
	}
	eventH := handler.NewEventHandler(pipe, recorder)

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chiMiddleware.RealIP)

	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	r.Group(func(r chi.Router) {
		if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
			r.Use(middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
		}
		r.Post("/events/gcs", eventH.HandleGCSEvent)
	})

	return r, nil
}
