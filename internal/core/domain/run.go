package domain

import "time"

type RunStatus string

const (
	RunIdle              RunStatus = "idle"
	RunUploadingDocument RunStatus = "uploading_document"
	RunConvertingToImage RunStatus = "converting_to_image"
	RunUploadingImage    RunStatus = "uploading_image"
	RunAnalyzing         RunStatus = "analyzing"
	RunPersisting        RunStatus = "persisting"
	RunComplete          RunStatus = "complete"
	RunFailed            RunStatus = "failed"
)

func (s RunStatus) Terminal() bool {
	return s == RunComplete || s == RunFailed
}

// Run is the ephemeral state of one pipeline execution. The preview paths
// are the working state shown before the record is persisted.
type Run struct {
	ResumeID          string        `json:"resumeId"`
	Status            RunStatus     `json:"status"`
	StatusMessage     string        `json:"statusMessage"`
	FailureKind       string        `json:"failureKind,omitempty"`
	Error             string        `json:"error,omitempty"`
	PreviewResumePath string        `json:"previewResumePath,omitempty"`
	PreviewImagePath  string        `json:"previewImagePath,omitempty"`
	Record            *ResumeRecord `json:"record,omitempty"`
	StartedAt         time.Time     `json:"startedAt"`
	FinishedAt        *time.Time    `json:"finishedAt,omitempty"`
}

// AnalysisEvent is published after a run reaches a terminal state.
type AnalysisEvent struct {
	ResumeID    string    `json:"resumeId"`
	Status      RunStatus `json:"status"`
	FailureKind string    `json:"failureKind,omitempty"`
	ResumePath  string    `json:"resumePath,omitempty"`
	ImagePath   string    `json:"imagePath,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}
