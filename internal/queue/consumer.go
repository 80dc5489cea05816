package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// dedupeWindow is how many handled event ids a consumer remembers.
const dedupeWindow = 256

// ResultHandler handles one result event. Returning an error drops the
// message without requeueing it.
type ResultHandler func(ctx context.Context, ev *ResultEvent) error

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int // Number of concurrent workers
	Prefetch int // Prefetch count per worker

	// UserID, when set, acks other users' events without handling them.
	UserID string
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{Workers: 1, Prefetch: 10}
}

// Consumer follows the result queue.
type Consumer struct {
	conn       *Connection
	handler    ResultHandler
	workers    int
	prefetch   int
	userID     string
	seen       *recentIDs
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewConsumer creates a result consumer.
func NewConsumer(conn *Connection, handler ResultHandler, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	def := DefaultConsumerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = def.Prefetch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
		userID:   cfg.UserID,
		seen:     newRecentIDs(dedupeWindow),
		logger:   logger,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		ResultQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("consuming result events", "workers", c.workers, "prefetch", c.prefetch)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Debug("delivery channel closed", "worker_id", id)
				return
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	var ev ResultEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		c.logger.Error("malformed result event", "error", err)
		_ = msg.Reject(false)
		return
	}

	// Redeliveries after a reconnect carry an id already handled.
	if (c.userID != "" && ev.UserID != c.userID) || c.seen.contains(ev.ID) {
		c.logger.Debug("skipped result event", "event_id", ev.ID, "user_id", ev.UserID)
		_ = msg.Ack(false)
		return
	}

	if err := c.handler(ctx, &ev); err != nil {
		c.logger.Error("handle result event", "event_id", ev.ID, "error", err)
		_ = msg.Nack(false, false)
		return
	}
	c.seen.add(ev.ID)

	if err := msg.Ack(false); err != nil {
		c.logger.Error("ack result event", "event_id", ev.ID, "error", err)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
}

// recentIDs is a bounded set of the last handled event ids.
type recentIDs struct {
	mu    sync.Mutex
	ids   map[uuid.UUID]struct{}
	order []uuid.UUID
	size  int
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{ids: make(map[uuid.UUID]struct{}, size), size: size}
}

func (r *recentIDs) contains(id uuid.UUID) bool {
	if id == uuid.Nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

func (r *recentIDs) add(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return
	}
	if len(r.order) == r.size {
		delete(r.ids, r.order[0])
		r.order = r.order[1:]
	}
	r.ids[id] = struct{}{}
	r.order = append(r.order, id)
}
