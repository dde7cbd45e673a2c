package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
	"github.com/kirillkom/resume-review/internal/infrastructure/resilience"
)

const DefaultSubject = "resume.analysis"

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

// Publisher emits run outcome events on one subject.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	publish  func(subject string, data []byte) error
}

func New(url, subject string, options Options) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := connect(url, options)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		publish:  conn.Publish,
	}, nil
}

func connect(url string, options Options) (*nats.Conn, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("resume-review"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}

type analysisEventMessage struct {
	ResumeID    string    `json:"resumeId"`
	Status      string    `json:"status"`
	FailureKind string    `json:"failureKind,omitempty"`
	ResumePath  string    `json:"resumePath,omitempty"`
	ImagePath   string    `json:"imagePath,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func decodeEvent(data []byte) (domain.AnalysisEvent, error) {
	var msg analysisEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.AnalysisEvent{}, fmt.Errorf("decode analysis event: %w", err)
	}
	if msg.ResumeID == "" || msg.Status == "" {
		return domain.AnalysisEvent{}, fmt.Errorf("decode analysis event: resumeId and status are required")
	}
	return domain.AnalysisEvent{
		ResumeID:    msg.ResumeID,
		Status:      domain.RunStatus(msg.Status),
		FailureKind: msg.FailureKind,
		ResumePath:  msg.ResumePath,
		ImagePath:   msg.ImagePath,
		OccurredAt:  msg.OccurredAt,
	}, nil
}

func encodeEvent(event domain.AnalysisEvent) ([]byte, error) {
	return json.Marshal(analysisEventMessage{
		ResumeID:    event.ResumeID,
		Status:      string(event.Status),
		FailureKind: event.FailureKind,
		ResumePath:  event.ResumePath,
		ImagePath:   event.ImagePath,
		OccurredAt:  event.OccurredAt.UTC(),
	})
}

func (p *Publisher) PublishAnalysisEvent(ctx context.Context, event domain.AnalysisEvent) error {
	data, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode analysis event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := p.publish(p.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

var _ ports.EventPublisher = (*Publisher)(nil)
