package feedbackapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
	"github.com/kirillkom/resume-review/internal/infrastructure/resilience"
)

const (
	feedbackPath   = "/v1/feedback"
	defaultTimeout = 120 * time.Second
)

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

// Client calls an external feedback service that reads the document from
// the shared artifact store by path.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

type feedbackRequest struct {
	Path         string `json:"path"`
	Instructions string `json:"instructions"`
}

func (c *Client) Feedback(ctx context.Context, documentPath, instructions string) (*domain.AnalysisResponse, error) {
	if strings.TrimSpace(documentPath) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "feedback", errors.New("document path is required"))
	}

	request := feedbackRequest{Path: documentPath, Instructions: instructions}
	response, err := resilience.Do(ctx, c.executor, "analysis.feedback", func(callCtx context.Context) (*domain.AnalysisResponse, error) {
		var out domain.AnalysisResponse
		if err := c.postJSON(callCtx, feedbackPath, request, &out, "feedback"); err != nil {
			return nil, err
		}
		return &out, nil
	}, classifyFeedbackError)
	if err != nil {
		return nil, toAnalysisError(err)
	}
	return response, nil
}

var _ ports.AnalysisService = (*Client)(nil)
