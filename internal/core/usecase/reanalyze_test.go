package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

const scoredFeedback = `{"overallScore":85,"ATS":{"score":80,"tips":[{"type":"good","tip":"Clear headings"}]},` +
	`"toneAndStyle":{"score":90,"tips":[{"type":"improve","tip":"Trim adjectives","explanation":"Be concrete."}]},` +
	`"content":{"score":82,"tips":[]},"structure":{"score":88,"tips":[]},"skills":{"score":79,"tips":[]}}`

func seedRecord(t *testing.T, store *recordStoreFake, id string, score int) domain.ResumeRecord {
	t.Helper()
	feedback, err := domain.StructuredFeedback([]byte(fmt.Sprintf(`{"overallScore":%d,"ATS":{"score":%d,"tips":[]}}`, score, score)))
	if err != nil {
		t.Fatalf("seed feedback: %v", err)
	}
	record := domain.ResumeRecord{
		ID:             id,
		ResumePath:     "uploads/old_resume.pdf",
		ImagePath:      "uploads/old_resume.png",
		CompanyName:    "Acme",
		JobTitle:       "Backend Engineer",
		JobDescription: "Build Go services",
		Feedback:       &feedback,
	}
	raw, err := EncodeRecord(record)
	if err != nil {
		t.Fatalf("encode seed record: %v", err)
	}
	store.values[RecordKey(id)] = raw
	return record
}

type pipelineFixture struct {
	records    *recordStoreFake
	artifacts  *artifactStoreFake
	rasterizer *rasterizerFake
	analyzer   *analyzerFake
	progress   *progressRecorder
	events     *publisherFake
	uc         *ReanalyzeUseCase
}

func newPipelineFixture(analyzer *analyzerFake) *pipelineFixture {
	fx := &pipelineFixture{
		records:    newRecordStoreFake(),
		artifacts:  newArtifactStoreFake(),
		rasterizer: &rasterizerFake{image: []byte("\x89PNG\r\n\x1a\nfake")},
		analyzer:   analyzer,
		progress:   &progressRecorder{},
		events:     &publisherFake{},
	}
	fx.uc = NewReanalyzeUseCase(fx.records, fx.artifacts, fx.rasterizer, fx.analyzer, nil, ReanalyzeOptions{
		EstimateSeconds: 3,
		TickInterval:    time.Millisecond,
		Progress:        fx.progress,
		Events:          fx.events,
	})
	return fx
}

func resumeDocument() domain.SourceDocument {
	return domain.SourceDocument{Filename: "cv.pdf", Data: []byte("%PDF-1.4 resume")}
}

func TestReanalyzeReplacesRecordOnSuccess(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: textResponse(scoredFeedback)})
	previous := seedRecord(t, fx.records, "42", 60)

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if err != nil {
		t.Fatalf("Reanalyze() error = %v", err)
	}
	if run.Status != domain.RunComplete {
		t.Fatalf("expected complete run, got %s", run.Status)
	}
	if run.StatusMessage != "Reanalysis complete." {
		t.Fatalf("unexpected final message: %q", run.StatusMessage)
	}

	stored, err := DecodeRecord(fx.records.raw(RecordKey("42")))
	if err != nil {
		t.Fatalf("decode stored record: %v", err)
	}
	if stored.Feedback == nil || stored.Feedback.IsRaw() {
		t.Fatalf("expected structured feedback, got %+v", stored.Feedback)
	}
	if score, ok := stored.Feedback.OverallScore(); !ok || score != 85 {
		t.Fatalf("expected score 85, got %v", score)
	}
	if stored.ResumePath == previous.ResumePath || stored.ImagePath == previous.ImagePath {
		t.Fatalf("expected fresh artifact paths, got %+v", stored)
	}
	if stored.ResumePath == stored.ImagePath {
		t.Fatalf("expected distinct document and image paths, got %q", stored.ResumePath)
	}
	if stored.CompanyName != "Acme" || stored.JobTitle != "Backend Engineer" || stored.JobDescription != "Build Go services" {
		t.Fatalf("job context not carried over: %+v", stored)
	}
	if fx.records.sets() != 1 {
		t.Fatalf("expected exactly one record write, got %d", fx.records.sets())
	}
	if !bytes.Equal(fx.rasterizer.input, resumeDocument().Data) {
		t.Fatalf("rasterizer did not receive the uploaded document")
	}
	if fx.analyzer.documentPath != stored.ResumePath {
		t.Fatalf("analysis referenced %q, want %q", fx.analyzer.documentPath, stored.ResumePath)
	}
	if !strings.Contains(fx.analyzer.instructions, "Backend Engineer") {
		t.Fatalf("instructions missing job title: %q", fx.analyzer.instructions)
	}

	want := []domain.RunStatus{
		domain.RunIdle,
		domain.RunUploadingDocument,
		domain.RunConvertingToImage,
		domain.RunUploadingImage,
		domain.RunAnalyzing,
		domain.RunPersisting,
		domain.RunComplete,
	}
	got := fx.progress.statuses()
	// begin does not report, so idle is never observed through the sink
	if len(got) != len(want)-1 {
		t.Fatalf("unexpected status sequence: %v", got)
	}
	for i, status := range got {
		if status != want[i+1] {
			t.Fatalf("status[%d] = %s, want %s (all: %v)", i, status, want[i+1], got)
		}
	}

	if len(fx.events.events) != 1 || fx.events.events[0].Status != domain.RunComplete {
		t.Fatalf("expected one complete event, got %+v", fx.events.events)
	}
}

func TestReanalyzeReplacesATSScore(t *testing.T) {
	var response domain.AnalysisResponse
	if err := json.Unmarshal([]byte(`{"message":{"content":"{\"ATS\":{\"score\":85,\"tips\":[]}}"}}`), &response); err != nil {
		t.Fatalf("decode analysis response: %v", err)
	}
	fx := newPipelineFixture(&analyzerFake{response: &response})
	previous := seedRecord(t, fx.records, "42", 60)

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if err != nil {
		t.Fatalf("Reanalyze() error = %v", err)
	}
	if run.Status != domain.RunComplete {
		t.Fatalf("expected complete run, got %s", run.Status)
	}

	stored, err := DecodeRecord(fx.records.raw(RecordKey("42")))
	if err != nil {
		t.Fatalf("decode stored record: %v", err)
	}
	if string(stored.Feedback.Document) != `{"ATS":{"score":85,"tips":[]}}` {
		t.Fatalf("unexpected stored feedback: %s", stored.Feedback.Document)
	}
	view, err := stored.Feedback.Analysis()
	if err != nil {
		t.Fatalf("Analysis() error = %v", err)
	}
	if view.ATS == nil || view.ATS.Score == nil || *view.ATS.Score != 85 {
		t.Fatalf("expected ATS score 85, got %+v", view.ATS)
	}
	if stored.ResumePath == previous.ResumePath || stored.ImagePath == previous.ImagePath {
		t.Fatalf("expected fresh artifact paths, got %+v", stored)
	}
	if stored.ResumePath == stored.ImagePath {
		t.Fatalf("expected distinct document and image paths, got %q", stored.ResumePath)
	}
}

func TestReanalyzeAcceptsContentBlocks(t *testing.T) {
	response := &domain.AnalysisResponse{Message: domain.AnalysisMessage{Content: domain.MessageContent{
		Blocks: []domain.ContentBlock{{Text: scoredFeedback}, {Text: "ignored"}},
	}}}
	fx := newPipelineFixture(&analyzerFake{response: response})
	seedRecord(t, fx.records, "42", 60)

	if _, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument()); err != nil {
		t.Fatalf("Reanalyze() error = %v", err)
	}
	stored, err := DecodeRecord(fx.records.raw(RecordKey("42")))
	if err != nil {
		t.Fatalf("decode stored record: %v", err)
	}
	if score, ok := stored.Feedback.OverallScore(); stored.Feedback.IsRaw() || !ok || score != 85 {
		t.Fatalf("unexpected feedback: %+v", stored.Feedback)
	}
}

func TestReanalyzeStoresUndecodableFeedbackVerbatim(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: textResponse("not json")})
	seedRecord(t, fx.records, "42", 60)

	if _, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument()); err != nil {
		t.Fatalf("Reanalyze() error = %v", err)
	}
	stored, err := DecodeRecord(fx.records.raw(RecordKey("42")))
	if err != nil {
		t.Fatalf("decode stored record: %v", err)
	}
	if !stored.Feedback.IsRaw() || stored.Feedback.RawText != "not json" {
		t.Fatalf("expected raw text feedback, got %+v", stored.Feedback)
	}
}

func TestReanalyzeEmptyResponseLeavesRecordUnchanged(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: &domain.AnalysisResponse{}})
	seedRecord(t, fx.records, "42", 60)
	before := fx.records.raw(RecordKey("42"))

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if err == nil {
		t.Fatalf("expected error for empty analysis response")
	}
	if !errors.Is(err, domain.ErrAnalysisFailed) {
		t.Fatalf("expected analysis failure, got %v", err)
	}
	if run.Status != domain.RunFailed || run.FailureKind != "empty-response" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if !bytes.Equal(before, fx.records.raw(RecordKey("42"))) {
		t.Fatalf("record changed after failed run")
	}
	if fx.records.sets() != 0 {
		t.Fatalf("expected no record writes, got %d", fx.records.sets())
	}
}

func TestReanalyzeAnalysisErrorLeavesRecordUnchanged(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{err: errors.New("connection refused")})
	seedRecord(t, fx.records, "42", 60)
	before := fx.records.raw(RecordKey("42"))

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary analysis failure, got %v", err)
	}
	var pipelineErr *domain.PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.Stage != domain.RunAnalyzing {
		t.Fatalf("expected analyzing stage failure, got %v", err)
	}
	if run.FailureKind != "unavailable" {
		t.Fatalf("expected unavailable kind, got %q", run.FailureKind)
	}
	if run.StatusMessage != "Error: Failed to analyze resume." {
		t.Fatalf("unexpected failure message: %q", run.StatusMessage)
	}
	if !bytes.Equal(before, fx.records.raw(RecordKey("42"))) {
		t.Fatalf("record changed after failed run")
	}
	if len(fx.artifacts.uploaded()) != 2 {
		t.Fatalf("expected both artifacts uploaded before analysis, got %v", fx.artifacts.uploaded())
	}
}

func TestReanalyzeTimeoutIsClassified(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{err: context.DeadlineExceeded})
	seedRecord(t, fx.records, "42", 60)

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if err == nil || run.FailureKind != "timeout" {
		t.Fatalf("expected timeout failure, got run=%+v err=%v", run, err)
	}
}

func TestReanalyzePersistFailureLeavesRecordUnchanged(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: textResponse(scoredFeedback)})
	seedRecord(t, fx.records, "42", 60)
	before := fx.records.raw(RecordKey("42"))
	fx.records.setErr = errStoreDown

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if !errors.Is(err, domain.ErrPersistFailed) {
		t.Fatalf("expected persist failure, got %v", err)
	}
	if run.FailureKind != "persist-failed" {
		t.Fatalf("unexpected failure kind: %q", run.FailureKind)
	}
	if !bytes.Equal(before, fx.records.raw(RecordKey("42"))) {
		t.Fatalf("record changed after failed persist")
	}
	if len(fx.artifacts.uploaded()) != 2 {
		t.Fatalf("expected artifacts to remain uploaded, got %v", fx.artifacts.uploaded())
	}
}

func TestReanalyzeUploadFailureStopsPipeline(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: textResponse(scoredFeedback)})
	seedRecord(t, fx.records, "42", 60)
	fx.artifacts.failNames[".pdf"] = errors.New("bucket offline")

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if run.FailureKind != "upload-failed" || run.StatusMessage != "Error: Failed to upload new resume." {
		t.Fatalf("unexpected run: %+v", run)
	}
	if fx.rasterizer.calls != 0 || fx.analyzer.calls != 0 {
		t.Fatalf("later stages ran after upload failure")
	}
}

func TestReanalyzeRasterizeFailureReportsReason(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: textResponse(scoredFeedback)})
	seedRecord(t, fx.records, "42", 60)
	fx.rasterizer.err = domain.NewRasterizeError(domain.RasterizeUnsupportedDocument, errors.New("not a pdf"))

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if !errors.Is(err, domain.ErrRasterize) {
		t.Fatalf("expected rasterize failure, got %v", err)
	}
	if run.FailureKind != "unsupported-document" {
		t.Fatalf("unexpected failure kind: %q", run.FailureKind)
	}
	if run.StatusMessage != "Error: Failed to convert PDF to image (unsupported-document)" {
		t.Fatalf("unexpected message: %q", run.StatusMessage)
	}
	if run.PreviewResumePath == "" {
		t.Fatalf("expected preview document path after first upload")
	}
	if fx.analyzer.calls != 0 {
		t.Fatalf("analysis ran after rasterize failure")
	}
}

func TestReanalyzeWrapsUntypedRasterizerErrors(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: textResponse(scoredFeedback)})
	seedRecord(t, fx.records, "42", 60)
	fx.rasterizer.err = errors.New("engine crashed")

	run, _ := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if run.FailureKind != "render-failed" {
		t.Fatalf("expected render-failed, got %q", run.FailureKind)
	}
}

func TestReanalyzeValidatesInput(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: textResponse(scoredFeedback)})
	seedRecord(t, fx.records, "42", 60)

	if _, err := fx.uc.Reanalyze(context.Background(), " ", resumeDocument()); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank id, got %v", err)
	}
	if _, err := fx.uc.Reanalyze(context.Background(), "42", domain.SourceDocument{Filename: "cv.pdf"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty document, got %v", err)
	}
	if _, err := fx.uc.Reanalyze(context.Background(), "missing", resumeDocument()); !errors.Is(err, domain.ErrResumeNotFound) {
		t.Fatalf("expected resume not found, got %v", err)
	}
	if len(fx.artifacts.uploaded()) != 0 {
		t.Fatalf("rejected input reached the artifact store")
	}
}

func TestReanalyzeRecoversFromPanic(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{panicWith: "boom"})
	seedRecord(t, fx.records, "42", 60)

	run, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument())
	if err == nil {
		t.Fatalf("expected error after panic")
	}
	if run.Status != domain.RunFailed || run.FailureKind != "internal" {
		t.Fatalf("unexpected run: %+v", run)
	}

	fx.analyzer.panicWith = nil
	fx.analyzer.response = textResponse(scoredFeedback)
	if _, err := fx.uc.Reanalyze(context.Background(), "42", resumeDocument()); err != nil {
		t.Fatalf("expected a new run after panic, got %v", err)
	}
}

func TestStartReanalyzeRejectsConcurrentRun(t *testing.T) {
	analyzer := &analyzerFake{
		response: textResponse(scoredFeedback),
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	fx := newPipelineFixture(analyzer)
	seedRecord(t, fx.records, "42", 60)
	before := fx.records.raw(RecordKey("42"))

	if _, err := fx.uc.StartReanalyze(context.Background(), "42", resumeDocument()); err != nil {
		t.Fatalf("first StartReanalyze() error = %v", err)
	}
	<-analyzer.entered

	if _, err := fx.uc.StartReanalyze(context.Background(), "42", resumeDocument()); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Fatalf("expected already running, got %v", err)
	}

	working, ok := fx.uc.CurrentRun("42")
	if !ok || working.Status != domain.RunAnalyzing {
		t.Fatalf("expected analyzing working state, got %+v ok=%v", working, ok)
	}
	if working.PreviewResumePath == "" || working.PreviewImagePath == "" {
		t.Fatalf("expected preview paths during analysis, got %+v", working)
	}
	if !bytes.Equal(before, fx.records.raw(RecordKey("42"))) {
		t.Fatalf("durable record changed before the run finished")
	}

	close(analyzer.release)
	final := waitTerminal(t, fx.uc, "42")
	if final.Status != domain.RunComplete {
		t.Fatalf("expected complete run, got %+v", final)
	}
	if fx.records.sets() != 1 {
		t.Fatalf("expected exactly one record write, got %d", fx.records.sets())
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected one analysis call, got %d", analyzer.calls)
	}
	if _, ok := fx.uc.CurrentRun("42"); ok {
		t.Fatalf("terminal run should be discarded after it was observed")
	}
}

func TestStartReanalyzeDetachesFromRequestContext(t *testing.T) {
	analyzer := &analyzerFake{
		response: textResponse(scoredFeedback),
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	fx := newPipelineFixture(analyzer)
	seedRecord(t, fx.records, "42", 60)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := fx.uc.StartReanalyze(ctx, "42", resumeDocument()); err != nil {
		t.Fatalf("StartReanalyze() error = %v", err)
	}
	<-analyzer.entered
	cancel()
	close(analyzer.release)

	if final := waitTerminal(t, fx.uc, "42"); final.Status != domain.RunComplete {
		t.Fatalf("expected run to outlive request context, got %+v", final)
	}
}

func TestSubmitCreatesRecord(t *testing.T) {
	fx := newPipelineFixture(&analyzerFake{response: textResponse(scoredFeedback)})
	fx.uc.newID = func() string { return "new-id" }

	job := domain.JobContext{CompanyName: "Globex", JobTitle: "SRE", JobDescription: "Keep it up"}
	run, err := fx.uc.Submit(context.Background(), job, resumeDocument())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if run.ResumeID != "new-id" || run.Record == nil || run.Record.ID != "new-id" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.StatusMessage != "Analysis complete." {
		t.Fatalf("unexpected final message: %q", run.StatusMessage)
	}
	stored, err := DecodeRecord(fx.records.raw(RecordKey("new-id")))
	if err != nil {
		t.Fatalf("decode stored record: %v", err)
	}
	if stored.CompanyName != "Globex" || stored.JobTitle != "SRE" {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
}

func TestArtifactNames(t *testing.T) {
	cases := []struct {
		in, document, image string
	}{
		{"cv.pdf", "cv.pdf", "cv.png"},
		{"/tmp/My CV.PDF", "My CV.PDF", "My CV.png"},
		{"", "resume.pdf", "resume.png"},
		{"notes", "notes", "notes.png"},
	}
	for _, tc := range cases {
		if got := documentName(tc.in); got != tc.document {
			t.Errorf("documentName(%q) = %q, want %q", tc.in, got, tc.document)
		}
		if got := imageName(tc.in); got != tc.image {
			t.Errorf("imageName(%q) = %q, want %q", tc.in, got, tc.image)
		}
	}
}

func waitTerminal(t *testing.T, uc *ReanalyzeUseCase, resumeID string) domain.Run {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		run, ok := uc.CurrentRun(resumeID)
		if ok && run.Status.Terminal() {
			return run
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", resumeID)
	return domain.Run{}
}
