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

	"github.com/kirillkom/resume-review/internal/config"
	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/infrastructure/events/nats"
	"github.com/kirillkom/resume-review/internal/observability/logging"
	"github.com/kirillkom/resume-review/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("resume-review-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.NATSURL == "" {
		logger.Error("worker_requires_nats", "hint", "set NATS_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	workerMetrics := metrics.NewWorkerMetrics("worker", registry)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(registry))
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	subscriber, err := nats.NewSubscriber(cfg.NATSURL, cfg.NATSSubject, cfg.NATSQueueGroup, nats.Options{})
	if err != nil {
		logger.Error("worker_connect_failed", "error", err)
		os.Exit(1)
	}
	defer subscriber.Close()

	logger.Info("worker_subscribed", "subject", subscriber.Subject(), "group", cfg.NATSQueueGroup)
	err = subscriber.SubscribeAnalysisEvents(ctx, func(_ context.Context, event domain.AnalysisEvent) error {
		workerMetrics.ObserveEvent(event, time.Now().UTC())
		attrs := []any{
			"resume_id", event.ResumeID,
			"status", string(event.Status),
			"resume_path", event.ResumePath,
			"image_path", event.ImagePath,
		}
		if event.Status == domain.RunFailed {
			logger.Warn("analysis_event_received", append(attrs, "kind", event.FailureKind)...)
			return nil
		}
		logger.Info("analysis_event_received", attrs...)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
