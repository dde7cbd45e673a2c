package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/resume-review/internal/config"
	"github.com/kirillkom/resume-review/internal/core/domain"
)

type analyzerFake struct {
	mu      sync.Mutex
	err     error
	runs    map[string]domain.Run
	lastJob domain.JobContext
	lastDoc domain.SourceDocument
	lastID  string
}

func (f *analyzerFake) Reanalyze(ctx context.Context, resumeID string, doc domain.SourceDocument) (domain.Run, error) {
	return f.StartReanalyze(ctx, resumeID, doc)
}

func (f *analyzerFake) StartReanalyze(_ context.Context, resumeID string, doc domain.SourceDocument) (domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastID = resumeID
	f.lastDoc = doc
	if f.err != nil {
		return domain.Run{}, f.err
	}
	return domain.Run{ResumeID: resumeID, Status: domain.RunUploadingDocument, StatusMessage: "Uploading the file..."}, nil
}

func (f *analyzerFake) Submit(ctx context.Context, job domain.JobContext, doc domain.SourceDocument) (domain.Run, error) {
	return f.StartSubmit(ctx, job, doc)
}

func (f *analyzerFake) StartSubmit(_ context.Context, job domain.JobContext, doc domain.SourceDocument) (domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastJob = job
	f.lastDoc = doc
	if f.err != nil {
		return domain.Run{}, f.err
	}
	return domain.Run{ResumeID: "new-1", Status: domain.RunUploadingDocument}, nil
}

func (f *analyzerFake) CurrentRun(resumeID string) (domain.Run, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[resumeID]
	return run, ok
}

type readerFake struct {
	err  error
	view *domain.ResumeView
}

func (f *readerFake) Get(_ context.Context, resumeID string) (*domain.ResumeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.view == nil || f.view.Record.ID != resumeID {
		return nil, domain.WrapError(domain.ErrResumeNotFound, "get", errors.New("id="+resumeID))
	}
	record := f.view.Record
	return &record, nil
}

func (f *readerFake) Load(ctx context.Context, resumeID string) (*domain.ResumeView, error) {
	if _, err := f.Get(ctx, resumeID); err != nil {
		return nil, err
	}
	return f.view, nil
}

func newTestHandler(cfg config.Config, analyzer *analyzerFake, reader *readerFake) http.Handler {
	return NewRouter(cfg, analyzer, reader).Handler()
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, &analyzerFake{}, &readerFake{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	handler := newTestHandler(config.Config{}, &analyzerFake{}, &readerFake{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected request id req-123, got %q", got)
	}
}

func TestSubmitResumeAccepted(t *testing.T) {
	analyzer := &analyzerFake{}
	handler := newTestHandler(config.Config{}, analyzer, &readerFake{})

	body, contentType := multipartBody(t, "cv.pdf", []byte("%PDF-1.4"), map[string]string{
		"companyName":    " Acme ",
		"jobTitle":       "Backend Engineer",
		"jobDescription": "Build Go services",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Location"); got != "/v1/resumes/new-1/run" {
		t.Fatalf("unexpected Location header %q", got)
	}

	var run domain.Run
	if err := json.NewDecoder(res.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run.ResumeID != "new-1" || run.Status != domain.RunUploadingDocument {
		t.Fatalf("unexpected run response: %+v", run)
	}
	if analyzer.lastJob.CompanyName != "Acme" || analyzer.lastJob.JobTitle != "Backend Engineer" {
		t.Fatalf("unexpected job context: %+v", analyzer.lastJob)
	}
	if analyzer.lastDoc.Filename != "cv.pdf" || string(analyzer.lastDoc.Data) != "%PDF-1.4" {
		t.Fatalf("unexpected document: %+v", analyzer.lastDoc)
	}
}

func TestSubmitResumeWithoutFileReturns400(t *testing.T) {
	handler := newTestHandler(config.Config{}, &analyzerFake{}, &readerFake{})

	body, contentType := multipartBody(t, "", nil, map[string]string{"jobTitle": "x"})
	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitResumeTooLargeReturns413(t *testing.T) {
	handler := newTestHandler(config.Config{APIMaxUploadMB: 1}, &analyzerFake{}, &readerFake{})

	body, contentType := multipartBody(t, "cv.pdf", bytes.Repeat([]byte("a"), 2<<20), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/resumes", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestReanalyzeMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "accepted", want: http.StatusAccepted},
		{name: "empty document", err: domain.WrapError(domain.ErrInvalidInput, "validate document", errors.New("please select a PDF to upload")), want: http.StatusBadRequest},
		{name: "missing resume", err: domain.WrapError(domain.ErrResumeNotFound, "get", errors.New("id=r-1")), want: http.StatusNotFound},
		{name: "already running", err: domain.WrapError(domain.ErrAlreadyRunning, "begin run", errors.New("id=r-1")), want: http.StatusConflict},
		{name: "store down", err: domain.WrapError(domain.ErrTemporary, "get", errors.New("redis down")), want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &analyzerFake{err: tt.err}
			handler := newTestHandler(config.Config{}, analyzer, &readerFake{})

			body, contentType := multipartBody(t, "cv.pdf", []byte("%PDF-1.4"), nil)
			req := httptest.NewRequest(http.MethodPost, "/v1/resumes/r-1/reanalyze", body)
			req.Header.Set("Content-Type", contentType)
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, res.Code, res.Body.String())
			}
			if analyzer.lastID != "r-1" {
				t.Fatalf("expected resume id r-1, got %q", analyzer.lastID)
			}
		})
	}
}

func TestCurrentRunEndpoint(t *testing.T) {
	analyzer := &analyzerFake{runs: map[string]domain.Run{
		"r-1": {ResumeID: "r-1", Status: domain.RunAnalyzing, StatusMessage: "Analyzing... 3s remaining"},
	}}
	handler := newTestHandler(config.Config{}, analyzer, &readerFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/resumes/r-1/run", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var run domain.Run
	if err := json.NewDecoder(res.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run.Status != domain.RunAnalyzing {
		t.Fatalf("unexpected run status %q", run.Status)
	}

	missing := httptest.NewRecorder()
	handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/v1/resumes/r-2/run", nil))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", missing.Code)
	}
}

func TestGetResumeReturns404ForNotFound(t *testing.T) {
	handler := newTestHandler(config.Config{}, &analyzerFake{}, &readerFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/resumes/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetArtifactServesBytes(t *testing.T) {
	reader := &readerFake{view: &domain.ResumeView{
		Record: domain.ResumeRecord{
			ID:         "r-1",
			ResumePath: "uploads/abc_cv.pdf",
			ImagePath:  "uploads/def_cv.png",
		},
		Document: []byte("%PDF-1.4"),
		Image:    []byte("\x89PNG"),
	}}
	handler := newTestHandler(config.Config{}, &analyzerFake{}, reader)

	tests := []struct {
		kind        string
		contentType string
		body        string
		filename    string
	}{
		{kind: "resume", contentType: "application/pdf", body: "%PDF-1.4", filename: "abc_cv.pdf"},
		{kind: "image", contentType: "image/png", body: "\x89PNG", filename: "def_cv.png"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/resumes/r-1/artifacts/"+tt.kind, nil))
			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", res.Code)
			}
			if got := res.Header().Get("Content-Type"); got != tt.contentType {
				t.Fatalf("expected content type %q, got %q", tt.contentType, got)
			}
			if res.Body.String() != tt.body {
				t.Fatalf("unexpected body %q", res.Body.String())
			}
			if !strings.Contains(res.Header().Get("Content-Disposition"), tt.filename) {
				t.Fatalf("unexpected Content-Disposition %q", res.Header().Get("Content-Disposition"))
			}
		})
	}

	unknown := httptest.NewRecorder()
	handler.ServeHTTP(unknown, httptest.NewRequest(http.MethodGet, "/v1/resumes/r-1/artifacts/thumbnail", nil))
	if unknown.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", unknown.Code)
	}
}

func TestGetArtifactMissingBlobReturns404(t *testing.T) {
	reader := &readerFake{
		err: domain.WrapError(domain.ErrArtifactNotFound, "read", errors.New("path=uploads/gone.pdf")),
	}
	handler := newTestHandler(config.Config{}, &analyzerFake{}, reader)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/resumes/r-1/artifacts/resume", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestWrongMethodReturns405(t *testing.T) {
	handler := newTestHandler(config.Config{}, &analyzerFake{}, &readerFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/resumes/r-1", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
