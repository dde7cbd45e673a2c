package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/resume-review/internal/adapters/http"
	"github.com/kirillkom/resume-review/internal/bootstrap"
	"github.com/kirillkom/resume-review/internal/config"
	"github.com/kirillkom/resume-review/internal/observability/logging"
	"github.com/kirillkom/resume-review/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("resume-review-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		cfg,
		app.Analyzer,
		app.Reader,
		httpadapter.WithHTTPMetrics(app.HTTPMetrics),
		httpadapter.WithMetricsHandler(metrics.Handler(app.Registry)),
	).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening",
			"port", cfg.APIPort,
			"artifact_store", cfg.ArtifactStore,
			"record_store", cfg.RecordStore,
			"analysis_provider", cfg.AnalysisProvider,
			"events_enabled", cfg.NATSURL != "",
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), time.Duration(cfg.PipelineRunTimeoutSeconds)*time.Second)
	defer cancelDrain()
	if err := app.Drain(drainCtx); err != nil {
		logger.Error("pipeline_drain_incomplete", "error", err)
	}
}
