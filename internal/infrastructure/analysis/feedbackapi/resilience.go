package feedbackapi

import (
	"context"
	"errors"
	"net"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/infrastructure/resilience"
)

// Client timeouts count against the breaker even though caller
// cancellation does not.
func classifyFeedbackError(err error) resilience.ErrorClassification {
	if isTimeout(err) && !errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	return resilience.ClassifyTransport(err)
}

func toAnalysisError(err error) error {
	var analysisErr *domain.AnalysisError
	if errors.As(err, &analysisErr) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	if isTimeout(err) {
		return domain.NewAnalysisError(domain.AnalysisTimeout, err)
	}
	return domain.NewAnalysisError(domain.AnalysisUnavailable, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
