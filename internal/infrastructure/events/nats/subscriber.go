package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

const defaultQueueGroup = "resume-review-workers"

// EventHandler consumes one decoded analysis event.
type EventHandler func(ctx context.Context, event domain.AnalysisEvent) error

// Subscriber consumes analysis events through a queue group so that each
// event is handled by one worker.
type Subscriber struct {
	conn    *nats.Conn
	subject string
	group   string
}

func NewSubscriber(url, subject, group string, options Options) (*Subscriber, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if group == "" {
		group = defaultQueueGroup
	}
	conn, err := connect(url, options)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, subject: subject, group: group}, nil
}

func (s *Subscriber) Subject() string { return s.subject }

// SubscribeAnalysisEvents blocks until ctx is done, then drains the
// subscription.
func (s *Subscriber) SubscribeAnalysisEvents(ctx context.Context, handler EventHandler) error {
	sub, err := s.conn.QueueSubscribe(s.subject, s.group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := dispatch(handlerCtx, msg.Data, handler); err != nil {
			slog.Warn("analysis_event_handler_failed",
				"subject", msg.Subject,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := s.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (s *Subscriber) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func dispatch(ctx context.Context, data []byte, handler EventHandler) error {
	event, err := decodeEvent(data)
	if err != nil {
		return err
	}
	return handler(ctx, event)
}
