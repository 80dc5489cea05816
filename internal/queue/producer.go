package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/session"
)

// Publisher sends a JSON message to a queue.
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

var (
	_ Publisher          = (*Connection)(nil)
	_ session.ResultSink = (*Producer)(nil)
)

// Producer publishes result events. It is a session result sink.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

// NewProducer creates a producer.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{pub: pub, logger: logger}
}

// Record publishes the attempt as a result event.
func (p *Producer) Record(ctx context.Context, a domain.Attempt) error {
	return p.PublishResult(ctx, NewResultEvent(a))
}

// PublishResult publishes ev on the result queue.
func (p *Producer) PublishResult(ctx context.Context, ev *ResultEvent) error {
	if ev.PublishedAt.IsZero() {
		ev.PublishedAt = time.Now().UTC()
	}
	if err := p.pub.PublishJSON(ctx, ResultQueueName, ev); err != nil {
		return fmt.Errorf("publish result event: %w", err)
	}

	p.logger.Info("published result event",
		"event_id", ev.ID,
		"attempt_id", ev.AttemptID,
		"exercise_type", ev.ExerciseType,
		"score", ev.Score,
		"total", ev.Total,
	)
	return nil
}
