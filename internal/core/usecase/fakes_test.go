package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

type recordStoreFake struct {
	mu       sync.Mutex
	values   map[string][]byte
	setCalls int
	getErr   error
	setErr   error
}

func newRecordStoreFake() *recordStoreFake {
	return &recordStoreFake{values: make(map[string][]byte)}
}

func (f *recordStoreFake) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	value, ok := f.values[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "get", fmt.Errorf("key=%s", key))
	}
	return append([]byte(nil), value...), nil
}

func (f *recordStoreFake) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = append([]byte(nil), value...)
	return nil
}

func (f *recordStoreFake) raw(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.values[key]...)
}

func (f *recordStoreFake) sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls
}

type artifactStoreFake struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploads   []string
	failNames map[string]error
	seq       int
}

func newArtifactStoreFake() *artifactStoreFake {
	return &artifactStoreFake{
		blobs:     make(map[string][]byte),
		failNames: make(map[string]error),
	}
}

func (f *artifactStoreFake) Upload(_ context.Context, data []byte, suggestedName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for suffix, err := range f.failNames {
		if strings.HasSuffix(suggestedName, suffix) {
			return "", err
		}
	}
	f.seq++
	path := fmt.Sprintf("uploads/%03d_%s", f.seq, suggestedName)
	f.blobs[path] = append([]byte(nil), data...)
	f.uploads = append(f.uploads, path)
	return path, nil
}

func (f *artifactStoreFake) Read(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[path]
	if !ok {
		return nil, domain.WrapError(domain.ErrArtifactNotFound, "read", fmt.Errorf("path=%s", path))
	}
	return data, nil
}

func (f *artifactStoreFake) Delete(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[path]
	delete(f.blobs, path)
	return ok, nil
}

func (f *artifactStoreFake) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

type rasterizerFake struct {
	image []byte
	err   error
	input []byte
	calls int
}

func (f *rasterizerFake) Rasterize(_ context.Context, document []byte) ([]byte, error) {
	f.calls++
	f.input = document
	if f.err != nil {
		return nil, f.err
	}
	return f.image, nil
}

type analyzerFake struct {
	mu           sync.Mutex
	response     *domain.AnalysisResponse
	err          error
	panicWith    any
	entered      chan struct{}
	release      chan struct{}
	documentPath string
	instructions string
	calls        int
}

func (f *analyzerFake) Feedback(ctx context.Context, documentPath, instructions string) (*domain.AnalysisResponse, error) {
	f.mu.Lock()
	f.calls++
	f.documentPath = documentPath
	f.instructions = instructions
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func textResponse(text string) *domain.AnalysisResponse {
	return &domain.AnalysisResponse{Message: domain.AnalysisMessage{Content: domain.MessageContent{Text: text}}}
}

type progressRecorder struct {
	mu   sync.Mutex
	runs []domain.Run
}

func (p *progressRecorder) Report(run domain.Run) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, run)
}

func (p *progressRecorder) statuses() []domain.RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.RunStatus
	for _, run := range p.runs {
		if len(out) == 0 || out[len(out)-1] != run.Status {
			out = append(out, run.Status)
		}
	}
	return out
}

func (p *progressRecorder) messages(status domain.RunStatus) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, run := range p.runs {
		if run.Status == status && run.StatusMessage != "" {
			if len(out) == 0 || out[len(out)-1] != run.StatusMessage {
				out = append(out, run.StatusMessage)
			}
		}
	}
	return out
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.AnalysisEvent
	err    error
}

func (p *publisherFake) PublishAnalysisEvent(_ context.Context, event domain.AnalysisEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

var errStoreDown = errors.New("store unavailable")
