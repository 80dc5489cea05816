// Package offline keeps a bounded pack of objective exercises for practice
// without a connection. The newest exercise is served first.
package offline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
	"github.com/c1advanced/c1prep/internal/storage/sqlite"
)

// DefaultCapacity bounds the pack when no capacity is configured.
const DefaultCapacity = 20

// Store is the persistence behind the cache.
type Store interface {
	Replace(ctx context.Context, exercises []*domain.Exercise) error
	Pop(ctx context.Context) (*domain.Exercise, error)
	Len(ctx context.Context) (int, error)
}

var _ Store = (*sqlite.OfflineStore)(nil)

// Cache is the offline pack.
type Cache struct {
	store    Store
	capacity int
	logger   *slog.Logger
}

// New creates a cache over store holding at most capacity exercises.
func New(store Store, capacity int, logger *slog.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, capacity: capacity, logger: logger}
}

// Capacity returns the maximum pack size.
func (c *Cache) Capacity() int { return c.capacity }

// Replace discards the current pack and stores exercises. Exercises that
// cannot be scored offline are skipped; beyond capacity the last ones win.
func (c *Cache) Replace(ctx context.Context, exercises []*domain.Exercise) (int, error) {
	keep := make([]*domain.Exercise, 0, len(exercises))
	for _, ex := range exercises {
		if err := checkCacheable(ex); err != nil {
			c.logger.Debug("skipping exercise for offline pack", "type", typeOf(ex), "error", err)
			continue
		}
		keep = append(keep, ex)
	}
	if len(keep) > c.capacity {
		keep = keep[len(keep)-c.capacity:]
	}
	if err := c.store.Replace(ctx, keep); err != nil {
		return 0, fmt.Errorf("replace offline pack: %w", err)
	}
	return len(keep), nil
}

// Take removes and returns the newest exercise. It returns
// domain.ErrOfflineCacheEmpty when nothing is cached.
func (c *Cache) Take(ctx context.Context) (*domain.Exercise, error) {
	ex, err := c.store.Pop(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("served offline exercise", "id", ex.ID, "type", ex.Type)
	return ex, nil
}

// Len returns the number of cached exercises.
func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}

func checkCacheable(ex *domain.Exercise) error {
	if ex == nil {
		return domain.ErrNoExercise
	}
	if mode := exercise.Classify(ex, ""); !mode.IsObjective() {
		return fmt.Errorf("%s exercises need the server: %w", mode, domain.ErrWrongMode)
	}
	return nil
}

func typeOf(ex *domain.Exercise) string {
	if ex == nil {
		return ""
	}
	return ex.Type
}
