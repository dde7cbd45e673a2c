package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/kirillkom/resume-review/internal/config"
	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
	"github.com/kirillkom/resume-review/internal/observability/metrics"
)

const (
	serviceName           = "api"
	defaultMaxUploadBytes = 10 << 20
	defaultQueueWait      = 250 * time.Millisecond
)

type Router struct {
	cfg            config.Config
	analyzer       ports.ResumeAnalyzer
	reader         ports.ResumeReader
	httpMetrics    *metrics.HTTPServerMetrics
	metricsHandler http.Handler
}

type RouterOption func(*Router)

func WithHTTPMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.httpMetrics = m }
}

// WithMetricsHandler exposes handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) RouterOption {
	return func(rt *Router) { rt.metricsHandler = handler }
}

func NewRouter(cfg config.Config, analyzer ports.ResumeAnalyzer, reader ports.ResumeReader, opts ...RouterOption) *Router {
	rt := &Router{
		cfg:      cfg,
		analyzer: analyzer,
		reader:   reader,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metricsHandler != nil {
		mux.Handle("GET /metrics", rt.metricsHandler)
	}
	mux.HandleFunc("POST /v1/resumes", rt.submitResume)
	mux.HandleFunc("GET /v1/resumes/{id}", rt.getResume)
	mux.HandleFunc("POST /v1/resumes/{id}/reanalyze", rt.reanalyzeResume)
	mux.HandleFunc("GET /v1/resumes/{id}/run", rt.currentRun)
	mux.HandleFunc("GET /v1/resumes/{id}/artifacts/{kind}", rt.getArtifact)

	var onReject rejectFunc
	if rt.httpMetrics != nil {
		onReject = func(reason string) { rt.httpMetrics.RecordRejected(serviceName, reason) }
	}

	wait := defaultQueueWait
	if rt.cfg.APIBackpressureWaitMS > 0 {
		wait = time.Duration(rt.cfg.APIBackpressureWaitMS) * time.Millisecond
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, wait, onReject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitResume(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.readDocument(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	job := domain.JobContext{
		CompanyName:    strings.TrimSpace(r.FormValue("companyName")),
		JobTitle:       strings.TrimSpace(r.FormValue("jobTitle")),
		JobDescription: strings.TrimSpace(r.FormValue("jobDescription")),
	}

	run, err := rt.analyzer.StartSubmit(r.Context(), job, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/resumes/"+run.ResumeID+"/run")
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getResume(w http.ResponseWriter, r *http.Request) {
	record, err := rt.reader.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) reanalyzeResume(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.readDocument(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := r.PathValue("id")
	run, err := rt.analyzer.StartReanalyze(r.Context(), id, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/resumes/"+id+"/run")
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) currentRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, ok := rt.analyzer.CurrentRun(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no analysis run for resume " + id})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) getArtifact(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if kind != "resume" && kind != "image" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown artifact kind " + kind})
		return
	}

	view, err := rt.reader.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, name, contentType := view.Document, view.Record.ResumePath, "application/pdf"
	if kind == "image" {
		data, name, contentType = view.Image, view.Record.ImagePath, "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", path.Base(name)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// readDocument reads the multipart "file" field into memory.
func (rt *Router) readDocument(w http.ResponseWriter, r *http.Request) (domain.SourceDocument, error) {
	maxBytes := int64(defaultMaxUploadBytes)
	if rt.cfg.APIMaxUploadMB > 0 {
		maxBytes = int64(rt.cfg.APIMaxUploadMB) << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return domain.SourceDocument{}, err
		}
		return domain.SourceDocument{}, domain.WrapError(domain.ErrInvalidInput, "parse multipart form", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.SourceDocument{}, domain.WrapError(domain.ErrInvalidInput, "read form file", errors.New("multipart field 'file' is required"))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("read uploaded file: %w", err)
	}
	return domain.SourceDocument{Filename: header.Filename, Data: data}, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
