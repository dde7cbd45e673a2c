package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
)

// LoadResumeUseCase reads persisted resumes and their artifacts.
type LoadResumeUseCase struct {
	records   recordRepository
	artifacts ports.ArtifactStore
}

func NewLoadResumeUseCase(records ports.RecordStore, artifacts ports.ArtifactStore) *LoadResumeUseCase {
	return &LoadResumeUseCase{
		records:   recordRepository{store: records},
		artifacts: artifacts,
	}
}

func (uc *LoadResumeUseCase) Get(ctx context.Context, resumeID string) (*domain.ResumeRecord, error) {
	return uc.records.get(ctx, resumeID)
}

// Load returns the record with both artifacts. A missing artifact is fatal.
func (uc *LoadResumeUseCase) Load(ctx context.Context, resumeID string) (*domain.ResumeView, error) {
	record, err := uc.records.get(ctx, resumeID)
	if err != nil {
		return nil, err
	}

	document, err := uc.artifacts.Read(ctx, record.ResumePath)
	if err != nil {
		return nil, fmt.Errorf("read resume document %s: %w", record.ResumePath, err)
	}
	image, err := uc.artifacts.Read(ctx, record.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("read resume image %s: %w", record.ImagePath, err)
	}

	return &domain.ResumeView{
		Record:   *record,
		Document: document,
		Image:    image,
	}, nil
}
