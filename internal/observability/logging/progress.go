package logging

import (
	"log/slog"
	"sync"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

// ProgressLogger logs run status transitions. Countdown ticks within one
// status are logged at debug level.
type ProgressLogger struct {
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]domain.RunStatus
}

func NewProgressLogger(logger *slog.Logger) *ProgressLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressLogger{logger: logger, last: make(map[string]domain.RunStatus)}
}

func (p *ProgressLogger) Report(run domain.Run) {
	p.mu.Lock()
	previous, seen := p.last[run.ResumeID]
	if run.Status.Terminal() {
		delete(p.last, run.ResumeID)
	} else {
		p.last[run.ResumeID] = run.Status
	}
	p.mu.Unlock()

	attrs := []any{
		"resume_id", run.ResumeID,
		"status", string(run.Status),
		"message", run.StatusMessage,
	}
	if seen && previous == run.Status {
		p.logger.Debug("pipeline_progress", attrs...)
		return
	}
	if run.Status == domain.RunFailed {
		p.logger.Warn("pipeline_status", append(attrs, "kind", run.FailureKind)...)
		return
	}
	p.logger.Info("pipeline_status", attrs...)
}
