package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrResumeNotFound   = errors.New("resume not found")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrRecordNotFound   = errors.New("record not found")
	ErrTemporary        = errors.New("temporary failure")
	ErrAlreadyRunning   = errors.New("analysis already running")

	ErrUploadFailed   = errors.New("upload failed")
	ErrRasterize      = errors.New("rasterize failed")
	ErrAnalysisFailed = errors.New("analysis failed")
	ErrPersistFailed  = errors.New("persist failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type RasterizeReason string

const (
	RasterizeUnsupportedDocument RasterizeReason = "unsupported-document"
	RasterizeRenderFailed        RasterizeReason = "render-failed"
	RasterizeEncodeFailed        RasterizeReason = "encode-failed"
)

// RasterizeError matches ErrRasterize via errors.Is.
type RasterizeError struct {
	Reason RasterizeReason
	Err    error
}

func NewRasterizeError(reason RasterizeReason, err error) *RasterizeError {
	return &RasterizeError{Reason: reason, Err: err}
}

func (e *RasterizeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rasterize: %s", e.Reason)
	}
	return fmt.Sprintf("rasterize: %s: %v", e.Reason, e.Err)
}

func (e *RasterizeError) Unwrap() error { return e.Err }

func (e *RasterizeError) Is(target error) bool { return target == ErrRasterize }

type AnalysisReason string

const (
	AnalysisUnavailable   AnalysisReason = "unavailable"
	AnalysisTimeout       AnalysisReason = "timeout"
	AnalysisEmptyResponse AnalysisReason = "empty-response"
)

// AnalysisError matches ErrAnalysisFailed via errors.Is. Unavailable and
// timeout reasons also match ErrTemporary.
type AnalysisError struct {
	Reason AnalysisReason
	Err    error
}

func NewAnalysisError(reason AnalysisReason, err error) *AnalysisError {
	return &AnalysisError{Reason: reason, Err: err}
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("analysis: %s", e.Reason)
	}
	return fmt.Sprintf("analysis: %s: %v", e.Reason, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func (e *AnalysisError) Is(target error) bool {
	switch target {
	case ErrAnalysisFailed:
		return true
	case ErrTemporary:
		return e.Reason == AnalysisUnavailable || e.Reason == AnalysisTimeout
	default:
		return false
	}
}

// PipelineError is the terminal error of a failed run.
type PipelineError struct {
	Stage RunStatus
	Kind  string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// FailureKind maps a stage error to the kind reported on a failed run.
func FailureKind(err error) string {
	var rasterErr *RasterizeError
	if errors.As(err, &rasterErr) {
		return string(rasterErr.Reason)
	}
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return string(analysisErr.Reason)
	}
	switch {
	case errors.Is(err, ErrUploadFailed):
		return "upload-failed"
	case errors.Is(err, ErrPersistFailed):
		return "persist-failed"
	default:
		return "internal"
	}
}
