// Package queue mirrors finished practice attempts to a RabbitMQ broker so
// other services (dashboards, tutor tools) can follow a learner's
// progress.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/c1advanced/c1prep/internal/domain"
)

// ResultQueueName is the durable queue carrying result events.
const ResultQueueName = "c1prep.results"

// resultTTL bounds how long an unconsumed event stays queued.
const resultTTL = int32(7 * 24 * time.Hour / time.Millisecond)

// ResultEvent is one finished objective attempt.
type ResultEvent struct {
	ID           uuid.UUID        `json:"id"`
	AttemptID    string           `json:"attempt_id"`
	UserID       string           `json:"user_id"`
	ExerciseType string           `json:"exercise_type"`
	ExerciseID   string           `json:"exercise_id,omitempty"`
	Title        string           `json:"title,omitempty"`
	Score        int              `json:"score"`
	Total        int              `json:"total"`
	Percent      int              `json:"percent"`
	Mistakes     []domain.Mistake `json:"mistakes"`
	CompletedAt  time.Time        `json:"completed_at"`
	PublishedAt  time.Time        `json:"published_at"`
}

// NewResultEvent builds the event for an attempt.
func NewResultEvent(a domain.Attempt) *ResultEvent {
	mistakes := a.Result.Mistakes
	if mistakes == nil {
		mistakes = []domain.Mistake{}
	}
	return &ResultEvent{
		ID:           uuid.New(),
		AttemptID:    a.ID,
		UserID:       a.UserID,
		ExerciseType: a.ExerciseType,
		ExerciseID:   a.ExerciseID,
		Title:        a.Title,
		Score:        a.Result.Score,
		Total:        a.Result.Total,
		Percent:      a.Result.Percent(),
		Mistakes:     mistakes,
		CompletedAt:  a.CompletedAt,
	}
}

// Connection manages the RabbitMQ connection with automatic reconnection
type Connection struct {
	url        string
	logger     *slog.Logger
	conn       *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	closed     bool
	reconnects int
}

// NewConnection dials the broker and declares the result queue.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{url: url, logger: logger}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.conn, err = amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.declareQueues(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	go c.handleReconnect(c.conn)

	c.logger.Info("connected to broker", "url", sanitizeURL(c.url))
	return nil
}

func (c *Connection) declareQueues() error {
	_, err := c.channel.QueueDeclare(
		ResultQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": resultTTL},
	)
	if err != nil {
		return fmt.Errorf("declare result queue: %w", err)
	}
	return nil
}

// handleReconnect redials with exponential backoff when conn drops.
func (c *Connection) handleReconnect(conn *amqp.Connection) {
	err, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || err == nil {
		return
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	c.logger.Warn("broker connection lost, reconnecting", "error", err, "reconnects", c.reconnects)
	for i := 0; i < 10; i++ {
		c.reconnects++
		backoff := time.Duration(1<<i) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		time.Sleep(backoff)

		if err := c.connect(); err != nil {
			c.logger.Error("reconnect failed", "error", err, "attempt", i+1)
			continue
		}
		c.logger.Info("reconnected to broker", "attempts", i+1)
		return
	}
	c.logger.Error("giving up on broker after 10 attempts")
}

// Channel returns the current channel.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected checks if the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes data as a persistent JSON message on queue.
func (c *Connection) PublishJSON(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	return ch.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID(data),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func messageID(data any) string {
	if ev, ok := data.(*ResultEvent); ok {
		return ev.ID.String()
	}
	return ""
}

// sanitizeURL hides the password of an AMQP URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if len(raw) > 20 {
			return raw[:20] + "..."
		}
		return raw
	}
	return u.Redacted()
}
