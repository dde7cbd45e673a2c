package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

type noopProgress struct{}

func (noopProgress) Report(domain.Run) {}

type noopObserver struct{}

func (noopObserver) RunStarted()                                          {}
func (noopObserver) StageFinished(domain.RunStatus, time.Duration, error) {}
func (noopObserver) RunFinished(domain.RunStatus, string, time.Duration)  {}

type noopPublisher struct{}

func (noopPublisher) PublishAnalysisEvent(context.Context, domain.AnalysisEvent) error { return nil }
