package ports

import (
	"context"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

// ResumeAnalyzer is the inbound contract for pipeline runs.
type ResumeAnalyzer interface {
	Reanalyze(ctx context.Context, resumeID string, doc domain.SourceDocument) (domain.Run, error)
	StartReanalyze(ctx context.Context, resumeID string, doc domain.SourceDocument) (domain.Run, error)
	Submit(ctx context.Context, job domain.JobContext, doc domain.SourceDocument) (domain.Run, error)
	StartSubmit(ctx context.Context, job domain.JobContext, doc domain.SourceDocument) (domain.Run, error)
	CurrentRun(resumeID string) (domain.Run, bool)
}

// ResumeReader is the inbound read model for persisted resumes.
type ResumeReader interface {
	Get(ctx context.Context, resumeID string) (*domain.ResumeRecord, error)
	Load(ctx context.Context, resumeID string) (*domain.ResumeView, error)
}
