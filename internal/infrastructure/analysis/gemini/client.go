package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
	"github.com/kirillkom/resume-review/internal/infrastructure/resilience"
)

const (
	defaultModel   = "gemini-1.5-flash"
	defaultTimeout = 120 * time.Second
	pdfMIMEType    = "application/pdf"
)

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// generator is the model call; *genai.GenerativeModel implements it.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client analyzes a stored document with Gemini. The document bytes are
// read from the artifact store and sent inline.
type Client struct {
	client    *genai.Client
	model     generator
	artifacts ports.ArtifactStore
	executor  *resilience.Executor
	timeout   time.Duration
}

func New(ctx context.Context, cfg Config, artifacts ports.ArtifactStore, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	c := newWithGenerator(model, artifacts, executor, cfg.Timeout)
	c.client = client
	return c, nil
}

func newWithGenerator(model generator, artifacts ports.ArtifactStore, executor *resilience.Executor, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{model: model, artifacts: artifacts, executor: executor, timeout: timeout}
}

func (c *Client) Feedback(ctx context.Context, documentPath, instructions string) (*domain.AnalysisResponse, error) {
	document, err := c.artifacts.Read(ctx, documentPath)
	if err != nil {
		return nil, fmt.Errorf("read document for analysis: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := resilience.Do(callCtx, c.executor, "analysis.gemini", func(callCtx context.Context) (*genai.GenerateContentResponse, error) {
		return c.model.GenerateContent(callCtx, genai.Blob{MIMEType: pdfMIMEType, Data: document}, genai.Text(instructions))
	}, resilience.ClassifyTransport)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewAnalysisError(domain.AnalysisTimeout, err)
		}
		return nil, domain.NewAnalysisError(domain.AnalysisUnavailable, fmt.Errorf("gemini generate: %w", err))
	}
	return toResponse(resp), nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// toResponse maps the first candidate's text parts to content blocks.
func toResponse(resp *genai.GenerateContentResponse) *domain.AnalysisResponse {
	out := &domain.AnalysisResponse{}
	if resp == nil || len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return out
	}

	blocks := make([]domain.ContentBlock, 0, len(candidate.Content.Parts))
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			blocks = append(blocks, domain.ContentBlock{Text: string(text)})
		}
	}
	out.Message.Content.Blocks = blocks
	return out
}

var _ ports.AnalysisService = (*Client)(nil)
