package ports

import (
	"context"
	"time"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

// ArtifactStore stores opaque blobs by path. Upload never overwrites an
// existing path.
type ArtifactStore interface {
	Upload(ctx context.Context, data []byte, suggestedName string) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) (bool, error)
}

// RecordStore is a key-value store for serialized records. Get returns
// domain.ErrRecordNotFound for a missing key.
type RecordStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Rasterizer renders the first page of a PDF into a PNG.
type Rasterizer interface {
	Rasterize(ctx context.Context, document []byte) ([]byte, error)
}

// AnalysisService asks the external feedback engine about a stored document.
type AnalysisService interface {
	Feedback(ctx context.Context, documentPath, instructions string) (*domain.AnalysisResponse, error)
}

// InstructionBuilder formats the analysis prompt for a job context.
type InstructionBuilder interface {
	Build(job domain.JobContext) string
}

// ProgressSink receives every run snapshot the orchestrator produces.
type ProgressSink interface {
	Report(run domain.Run)
}

// PipelineObserver records pipeline metrics.
type PipelineObserver interface {
	RunStarted()
	StageFinished(stage domain.RunStatus, duration time.Duration, err error)
	RunFinished(status domain.RunStatus, failureKind string, duration time.Duration)
}

// EventPublisher announces terminal run outcomes.
type EventPublisher interface {
	PublishAnalysisEvent(ctx context.Context, event domain.AnalysisEvent) error
}
