package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
)

const recordKeyPrefix = "resume:"

// RecordKey is the record store key of a resume.
func RecordKey(resumeID string) string {
	return recordKeyPrefix + resumeID
}

func EncodeRecord(record domain.ResumeRecord) ([]byte, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal resume record: %w", err)
	}
	return raw, nil
}

func DecodeRecord(raw []byte) (*domain.ResumeRecord, error) {
	var record domain.ResumeRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal resume record: %w", err)
	}
	return &record, nil
}

type recordRepository struct {
	store ports.RecordStore
}

func (r recordRepository) get(ctx context.Context, resumeID string) (*domain.ResumeRecord, error) {
	raw, err := r.store.Get(ctx, RecordKey(resumeID))
	if err != nil {
		if domain.IsKind(err, domain.ErrRecordNotFound) {
			return nil, domain.WrapError(domain.ErrResumeNotFound, "get resume record", fmt.Errorf("id=%s", resumeID))
		}
		return nil, fmt.Errorf("get resume record: %w", err)
	}
	return DecodeRecord(raw)
}

func (r recordRepository) put(ctx context.Context, record domain.ResumeRecord) error {
	raw, err := EncodeRecord(record)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, RecordKey(record.ID), raw); err != nil {
		return fmt.Errorf("set resume record: %w", err)
	}
	return nil
}
