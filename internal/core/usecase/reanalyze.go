package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
)

const (
	defaultEstimateSeconds = 25
	defaultTickInterval    = time.Second
	defaultRunTimeout      = 5 * time.Minute
	defaultRunRetention    = 10 * time.Minute
)

type ReanalyzeOptions struct {
	EstimateSeconds int
	TickInterval    time.Duration
	RunTimeout      time.Duration
	// RunRetention bounds how long an unpolled terminal run stays readable
	// through CurrentRun.
	RunRetention time.Duration

	Progress ports.ProgressSink
	Observer ports.PipelineObserver
	Events   ports.EventPublisher
}

func (o ReanalyzeOptions) normalize() ReanalyzeOptions {
	out := o
	if out.EstimateSeconds <= 0 {
		out.EstimateSeconds = defaultEstimateSeconds
	}
	if out.TickInterval <= 0 {
		out.TickInterval = defaultTickInterval
	}
	if out.RunTimeout <= 0 {
		out.RunTimeout = defaultRunTimeout
	}
	if out.RunRetention <= 0 {
		out.RunRetention = defaultRunRetention
	}
	if out.Progress == nil {
		out.Progress = noopProgress{}
	}
	if out.Observer == nil {
		out.Observer = noopObserver{}
	}
	if out.Events == nil {
		out.Events = noopPublisher{}
	}
	return out
}

// ReanalyzeUseCase runs the analysis pipeline:
// upload document, rasterize, upload image, analyze, persist.
type ReanalyzeUseCase struct {
	records    recordRepository
	artifacts  ports.ArtifactStore
	rasterizer ports.Rasterizer
	analyzer   ports.AnalysisService
	prompts    ports.InstructionBuilder
	runs       *runRegistry
	inflight   sync.WaitGroup
	opts       ReanalyzeOptions

	newID func() string
	now   func() time.Time
}

func NewReanalyzeUseCase(
	records ports.RecordStore,
	artifacts ports.ArtifactStore,
	rasterizer ports.Rasterizer,
	analyzer ports.AnalysisService,
	prompts ports.InstructionBuilder,
	opts ReanalyzeOptions,
) *ReanalyzeUseCase {
	if prompts == nil {
		prompts = NewPromptBuilder()
	}
	opts = opts.normalize()
	return &ReanalyzeUseCase{
		records:    recordRepository{store: records},
		artifacts:  artifacts,
		rasterizer: rasterizer,
		analyzer:   analyzer,
		prompts:    prompts,
		runs:       newRunRegistry(opts.RunRetention),
		opts:       opts,
		newID:      uuid.NewString,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type pipelineInput struct {
	resumeID string
	job      domain.JobContext
	doc      domain.SourceDocument
	subject  string
	doneText string
}

func (uc *ReanalyzeUseCase) Reanalyze(ctx context.Context, resumeID string, doc domain.SourceDocument) (domain.Run, error) {
	in, err := uc.prepareReanalyze(ctx, resumeID, doc)
	if err != nil {
		return domain.Run{}, err
	}
	return uc.runBlocking(ctx, in)
}

func (uc *ReanalyzeUseCase) StartReanalyze(ctx context.Context, resumeID string, doc domain.SourceDocument) (domain.Run, error) {
	in, err := uc.prepareReanalyze(ctx, resumeID, doc)
	if err != nil {
		return domain.Run{}, err
	}
	return uc.startDetached(ctx, in)
}

// Submit creates a new resume record and analyzes it.
func (uc *ReanalyzeUseCase) Submit(ctx context.Context, job domain.JobContext, doc domain.SourceDocument) (domain.Run, error) {
	in, err := uc.prepareSubmit(job, doc)
	if err != nil {
		return domain.Run{}, err
	}
	return uc.runBlocking(ctx, in)
}

func (uc *ReanalyzeUseCase) StartSubmit(ctx context.Context, job domain.JobContext, doc domain.SourceDocument) (domain.Run, error) {
	in, err := uc.prepareSubmit(job, doc)
	if err != nil {
		return domain.Run{}, err
	}
	return uc.startDetached(ctx, in)
}

// runBlocking hands the terminal run to the caller, so nothing is left for
// CurrentRun to report afterwards.
func (uc *ReanalyzeUseCase) runBlocking(ctx context.Context, in pipelineInput) (domain.Run, error) {
	_, lease, err := uc.runs.begin(in.resumeID, uc.now())
	if err != nil {
		return domain.Run{}, err
	}
	defer uc.runs.release(lease)
	return uc.execute(ctx, in)
}

// Wait blocks until every run started with StartReanalyze or StartSubmit has
// finished, or ctx is done.
func (uc *ReanalyzeUseCase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentRun returns the working state of a detached run. A terminal run is
// returned once and then discarded.
func (uc *ReanalyzeUseCase) CurrentRun(resumeID string) (domain.Run, bool) {
	return uc.runs.observe(resumeID)
}

func (uc *ReanalyzeUseCase) prepareReanalyze(ctx context.Context, resumeID string, doc domain.SourceDocument) (pipelineInput, error) {
	resumeID = strings.TrimSpace(resumeID)
	if resumeID == "" {
		return pipelineInput{}, domain.WrapError(domain.ErrInvalidInput, "reanalyze", errors.New("resume id is required"))
	}
	if err := validateDocument(doc); err != nil {
		return pipelineInput{}, err
	}

	previous, err := uc.records.get(ctx, resumeID)
	if err != nil {
		return pipelineInput{}, fmt.Errorf("load resume context: %w", err)
	}

	return pipelineInput{
		resumeID: resumeID,
		job:      previous.JobContext(),
		doc:      doc,
		subject:  "your updated resume",
		doneText: "Reanalysis complete.",
	}, nil
}

func (uc *ReanalyzeUseCase) prepareSubmit(job domain.JobContext, doc domain.SourceDocument) (pipelineInput, error) {
	if err := validateDocument(doc); err != nil {
		return pipelineInput{}, err
	}
	return pipelineInput{
		resumeID: uc.newID(),
		job:      job,
		doc:      doc,
		subject:  "your resume",
		doneText: "Analysis complete.",
	}, nil
}

func validateDocument(doc domain.SourceDocument) error {
	if len(doc.Data) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate document", errors.New("please select a PDF to upload"))
	}
	return nil
}

func (uc *ReanalyzeUseCase) startDetached(ctx context.Context, in pipelineInput) (domain.Run, error) {
	run, _, err := uc.runs.begin(in.resumeID, uc.now())
	if err != nil {
		return domain.Run{}, err
	}

	uc.inflight.Add(1)
	go func() {
		defer uc.inflight.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.opts.RunTimeout)
		defer cancel()
		_, _ = uc.execute(runCtx, in)
	}()
	return run, nil
}

// execute drives a begun run to complete or failed.
func (uc *ReanalyzeUseCase) execute(ctx context.Context, in pipelineInput) (run domain.Run, err error) {
	started := uc.now()
	uc.opts.Observer.RunStarted()

	defer func() {
		if recovered := recover(); recovered != nil {
			run, err = uc.fail(ctx, in, &domain.PipelineError{
				Stage: uc.currentStatus(in.resumeID),
				Kind:  "internal",
				Err:   fmt.Errorf("panic: %v", recovered),
			}, started)
		}
	}()

	record, stageErr := uc.runStages(ctx, in)
	if stageErr != nil {
		return uc.fail(ctx, in, stageErr, started)
	}
	return uc.complete(ctx, in, record, started), nil
}

func (uc *ReanalyzeUseCase) runStages(ctx context.Context, in pipelineInput) (domain.ResumeRecord, *domain.PipelineError) {
	var (
		documentPath string
		imagePath    string
		image        []byte
		raw          string
	)

	if err := uc.stage(in.resumeID, domain.RunUploadingDocument, "Uploading new resume...", func() error {
		path, err := uc.uploadArtifact(ctx, in.doc.Data, documentName(in.doc.Filename), "upload document")
		if err != nil {
			return err
		}
		documentPath = path
		uc.report(in.resumeID, func(run *domain.Run) { run.PreviewResumePath = path })
		return nil
	}); err != nil {
		return domain.ResumeRecord{}, err
	}

	if err := uc.stage(in.resumeID, domain.RunConvertingToImage, "Converting to image...", func() error {
		var err error
		image, err = uc.rasterize(ctx, in.doc.Data)
		return err
	}); err != nil {
		return domain.ResumeRecord{}, err
	}

	if err := uc.stage(in.resumeID, domain.RunUploadingImage, "Uploading preview image...", func() error {
		path, err := uc.uploadArtifact(ctx, image, imageName(in.doc.Filename), "upload preview image")
		if err != nil {
			return err
		}
		imagePath = path
		uc.report(in.resumeID, func(run *domain.Run) { run.PreviewImagePath = path })
		return nil
	}); err != nil {
		return domain.ResumeRecord{}, err
	}

	if err := uc.stage(in.resumeID, domain.RunAnalyzing, "", func() error {
		var err error
		raw, err = uc.analyze(ctx, in, documentPath)
		return err
	}); err != nil {
		return domain.ResumeRecord{}, err
	}

	record := domain.ResumeRecord{
		ID:             in.resumeID,
		ResumePath:     documentPath,
		ImagePath:      imagePath,
		CompanyName:    in.job.CompanyName,
		JobTitle:       in.job.JobTitle,
		JobDescription: in.job.JobDescription,
	}
	if err := uc.stage(in.resumeID, domain.RunPersisting, "Saving analysis...", func() error {
		feedback := ParseFeedback(raw)
		record.Feedback = &feedback
		if err := uc.records.put(ctx, record); err != nil {
			return domain.WrapError(domain.ErrPersistFailed, "persist resume record", err)
		}
		return nil
	}); err != nil {
		return domain.ResumeRecord{}, err
	}

	return record, nil
}

func (uc *ReanalyzeUseCase) stage(resumeID string, status domain.RunStatus, message string, fn func() error) *domain.PipelineError {
	uc.report(resumeID, func(run *domain.Run) {
		run.Status = status
		run.StatusMessage = message
	})

	started := uc.now()
	err := fn()
	uc.opts.Observer.StageFinished(status, uc.now().Sub(started), err)
	if err != nil {
		return &domain.PipelineError{Stage: status, Kind: domain.FailureKind(err), Err: err}
	}
	return nil
}

func (uc *ReanalyzeUseCase) uploadArtifact(ctx context.Context, data []byte, name, operation string) (string, error) {
	path, err := uc.artifacts.Upload(ctx, data, name)
	if err != nil {
		return "", domain.WrapError(domain.ErrUploadFailed, operation, err)
	}
	if path == "" {
		return "", domain.WrapError(domain.ErrUploadFailed, operation, errors.New("artifact store returned empty path"))
	}
	return path, nil
}

func (uc *ReanalyzeUseCase) rasterize(ctx context.Context, document []byte) ([]byte, error) {
	image, err := uc.rasterizer.Rasterize(ctx, document)
	if err != nil {
		var rasterErr *domain.RasterizeError
		if errors.As(err, &rasterErr) {
			return nil, err
		}
		return nil, domain.NewRasterizeError(domain.RasterizeRenderFailed, err)
	}
	if len(image) == 0 {
		return nil, domain.NewRasterizeError(domain.RasterizeEncodeFailed, errors.New("empty image"))
	}
	return image, nil
}

func (uc *ReanalyzeUseCase) analyze(ctx context.Context, in pipelineInput, documentPath string) (string, error) {
	stop := startCountdown(in.subject, uc.opts.EstimateSeconds, uc.opts.TickInterval, func(message string) {
		uc.report(in.resumeID, func(run *domain.Run) { run.StatusMessage = message })
	})
	defer stop()

	response, err := uc.analyzer.Feedback(ctx, documentPath, uc.prompts.Build(in.job))
	if err != nil {
		return "", classifyAnalysisError(err)
	}

	raw := response.Text()
	if strings.TrimSpace(raw) == "" {
		return "", domain.NewAnalysisError(domain.AnalysisEmptyResponse, errors.New("no text in analysis response"))
	}
	return raw, nil
}

func classifyAnalysisError(err error) error {
	var analysisErr *domain.AnalysisError
	if errors.As(err, &analysisErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewAnalysisError(domain.AnalysisTimeout, err)
	}
	return domain.NewAnalysisError(domain.AnalysisUnavailable, err)
}

func (uc *ReanalyzeUseCase) complete(ctx context.Context, in pipelineInput, record domain.ResumeRecord, started time.Time) domain.Run {
	finished := uc.now()
	run := uc.report(in.resumeID, func(run *domain.Run) {
		run.Status = domain.RunComplete
		run.StatusMessage = in.doneText
		run.Record = &record
		run.FinishedAt = &finished
	})
	duration := finished.Sub(started)
	uc.opts.Observer.RunFinished(domain.RunComplete, "", duration)

	attrs := []any{
		"resume_id", in.resumeID,
		"resume_path", record.ResumePath,
		"image_path", record.ImagePath,
		"raw_feedback", record.Feedback.IsRaw(),
		"duration_ms", float64(duration.Microseconds()) / 1000.0,
	}
	if score, ok := record.Feedback.OverallScore(); ok {
		attrs = append(attrs, "overall_score", score)
	}
	slog.Info("pipeline_run_complete", attrs...)
	uc.publish(ctx, domain.AnalysisEvent{
		ResumeID:   in.resumeID,
		Status:     domain.RunComplete,
		ResumePath: record.ResumePath,
		ImagePath:  record.ImagePath,
		OccurredAt: finished,
	})
	return run
}

func (uc *ReanalyzeUseCase) fail(ctx context.Context, in pipelineInput, pipelineErr *domain.PipelineError, started time.Time) (domain.Run, error) {
	finished := uc.now()
	run := uc.report(in.resumeID, func(run *domain.Run) {
		run.Status = domain.RunFailed
		run.StatusMessage = failureMessage(pipelineErr)
		run.FailureKind = pipelineErr.Kind
		run.Error = pipelineErr.Err.Error()
		run.FinishedAt = &finished
	})
	duration := finished.Sub(started)
	uc.opts.Observer.RunFinished(domain.RunFailed, pipelineErr.Kind, duration)

	slog.Warn("pipeline_run_failed",
		"resume_id", in.resumeID,
		"stage", string(pipelineErr.Stage),
		"kind", pipelineErr.Kind,
		"error", pipelineErr.Err,
		"duration_ms", float64(duration.Microseconds())/1000.0,
	)
	uc.publish(ctx, domain.AnalysisEvent{
		ResumeID:    in.resumeID,
		Status:      domain.RunFailed,
		FailureKind: pipelineErr.Kind,
		OccurredAt:  finished,
	})
	return run, pipelineErr
}

func (uc *ReanalyzeUseCase) publish(ctx context.Context, event domain.AnalysisEvent) {
	if err := uc.opts.Events.PublishAnalysisEvent(ctx, event); err != nil {
		slog.Warn("analysis_event_publish_failed", "resume_id", event.ResumeID, "error", err)
	}
}

func (uc *ReanalyzeUseCase) report(resumeID string, mutate func(run *domain.Run)) domain.Run {
	run := uc.runs.update(resumeID, mutate)
	uc.opts.Progress.Report(run)
	return run
}

func (uc *ReanalyzeUseCase) currentStatus(resumeID string) domain.RunStatus {
	return uc.runs.update(resumeID, func(*domain.Run) {}).Status
}

func failureMessage(err *domain.PipelineError) string {
	switch err.Stage {
	case domain.RunUploadingDocument:
		return "Error: Failed to upload new resume."
	case domain.RunConvertingToImage:
		return fmt.Sprintf("Error: Failed to convert PDF to image (%s)", err.Kind)
	case domain.RunUploadingImage:
		return "Error: Failed to upload preview image."
	case domain.RunAnalyzing:
		if err.Kind == string(domain.AnalysisEmptyResponse) {
			return "Error: Empty analysis response."
		}
		return "Error: Failed to analyze resume."
	case domain.RunPersisting:
		return "Error: Failed to save analysis."
	default:
		return "Error: Could not analyze resume."
	}
}

func documentName(filename string) string {
	base := baseName(filename)
	if base == "" {
		return "resume.pdf"
	}
	return base
}

func imageName(filename string) string {
	base := baseName(filename)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" {
		base = "resume"
	}
	return base + ".png"
}

func baseName(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}
