package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/resume-review/internal/config"
	"github.com/kirillkom/resume-review/internal/core/ports"
	"github.com/kirillkom/resume-review/internal/core/usecase"
	"github.com/kirillkom/resume-review/internal/infrastructure/analysis/feedbackapi"
	"github.com/kirillkom/resume-review/internal/infrastructure/analysis/gemini"
	"github.com/kirillkom/resume-review/internal/infrastructure/events/nats"
	"github.com/kirillkom/resume-review/internal/infrastructure/pdfinspect"
	"github.com/kirillkom/resume-review/internal/infrastructure/rasterizer/fitz"
	"github.com/kirillkom/resume-review/internal/infrastructure/repository/memory"
	"github.com/kirillkom/resume-review/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/resume-review/internal/infrastructure/repository/redis"
	"github.com/kirillkom/resume-review/internal/infrastructure/resilience"
	"github.com/kirillkom/resume-review/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/resume-review/internal/infrastructure/storage/minio"
	"github.com/kirillkom/resume-review/internal/observability/logging"
	"github.com/kirillkom/resume-review/internal/observability/metrics"
)

const serviceName = "api"

type App struct {
	Config config.Config

	Analyzer ports.ResumeAnalyzer
	Reader   ports.ResumeReader

	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPServerMetrics

	pipeline *usecase.ReanalyzeUseCase
	closers  []func()
}

func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{Config: cfg, Registry: metrics.NewRegistry()}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	pipelineMetrics := metrics.NewPipelineMetrics(serviceName, app.Registry)
	app.HTTPMetrics = metrics.NewHTTPServerMetrics(serviceName, app.Registry)
	observeBreaker := resilience.WithStateObserver(pipelineMetrics.BreakerStateChanged)

	artifacts, err := app.newArtifactStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	records, err := app.newRecordStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	analysisPolicy := resilience.AnalysisConfig().WithBreaker(
		uint32(max(cfg.AnalysisBreakerMinRequests, 0)),
		time.Duration(cfg.AnalysisBreakerOpenSeconds)*time.Second,
	)
	analysisExecutor := resilience.NewExecutor(analysisPolicy, observeBreaker)
	analyzer, err := app.newAnalysisService(ctx, cfg, artifacts, analysisExecutor)
	if err != nil {
		return nil, err
	}

	var events ports.EventPublisher
	if cfg.NATSURL != "" {
		publisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.PublishConfig(), observeBreaker),
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		app.closers = append(app.closers, publisher.Close)
		events = publisher
	}

	rasterizer := fitz.New(fitz.WithPageInspector(pdfinspect.New()))

	app.pipeline = usecase.NewReanalyzeUseCase(
		records,
		artifacts,
		rasterizer,
		analyzer,
		usecase.NewPromptBuilder(),
		usecase.ReanalyzeOptions{
			EstimateSeconds: cfg.AnalysisEstimateSeconds,
			RunTimeout:      time.Duration(cfg.PipelineRunTimeoutSeconds) * time.Second,
			RunRetention:    time.Duration(cfg.PipelineRunRetentionSeconds) * time.Second,
			Progress:        logging.NewProgressLogger(slog.Default()),
			Observer:        pipelineMetrics,
			Events:          events,
		},
	)
	app.Analyzer = app.pipeline
	app.Reader = usecase.NewLoadResumeUseCase(records, artifacts)
	return app, nil
}

func (a *App) newArtifactStore(ctx context.Context, cfg config.Config) (ports.ArtifactStore, error) {
	switch cfg.ArtifactStore {
	case "minio":
		storage, err := minio.New(minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			Region:    cfg.MinIORegion,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		return storage, nil
	default:
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	}
}

func (a *App) newRecordStore(ctx context.Context, cfg config.Config) (ports.RecordStore, error) {
	switch cfg.RecordStore {
	case "redis":
		store, err := redis.New(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewRecordRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	default:
		return memory.New(), nil
	}
}

func (a *App) newAnalysisService(
	ctx context.Context,
	cfg config.Config,
	artifacts ports.ArtifactStore,
	executor *resilience.Executor,
) (ports.AnalysisService, error) {
	timeout := time.Duration(cfg.AnalysisTimeoutSeconds) * time.Second
	switch cfg.AnalysisProvider {
	case "gemini":
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: timeout,
		}, artifacts, executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return client, nil
	default:
		return feedbackapi.New(cfg.AnalysisURL, feedbackapi.Options{
			Timeout:            timeout,
			ResilienceExecutor: executor,
		}), nil
	}
}

// Drain waits for background pipeline runs so they reach a terminal state
// before Close tears down the stores underneath them.
func (a *App) Drain(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}
	return a.pipeline.Wait(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
