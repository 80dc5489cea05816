// Package practice is the front door for getting an exercise: it decides
// between the server, the offline pack and the built-in task bank.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
)

const (
	DefaultPackSize = 5
	DefaultPackType = "reading_and_use_of_language1"

	pingTimeout = 3 * time.Second

	speakingInstructions = "Answer the questions briefly but fully (20-30 seconds per answer). Avoid simple 'Yes/No' responses."
)

// Source says where an exercise came from.
type Source int

const (
	SourceServer Source = iota
	SourceOffline
	SourceBuiltin
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceServer:
		return "server"
	case SourceOffline:
		return "offline pack"
	case SourceBuiltin:
		return "built-in"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Backend is the part of the API client the fetcher uses.
type Backend interface {
	FetchExercise(ctx context.Context, req api.FetchRequest) (*domain.Exercise, error)
	Generate(ctx context.Context, exerciseType, level, topic string) (*domain.Exercise, error)
	Ping(ctx context.Context) error
}

// Pack is the offline pack.
type Pack interface {
	Take(ctx context.Context) (*domain.Exercise, error)
	Replace(ctx context.Context, exercises []*domain.Exercise) (int, error)
}

// History supplies ids already practised so the server can skip them.
type History interface {
	CompletedIDs(ctx context.Context, exerciseType string) ([]string, error)
}

var _ Backend = (*api.Client)(nil)

// Config configures a Fetcher.
type Config struct {
	Level        string
	ForceOffline bool
	PackSize     int
	PackType     string

	Backend  Backend
	Pack     Pack
	History  History
	Registry *exercise.Registry
	Logger   *slog.Logger

	// Topic picks the Speaking Part 1 topic. Defaults to a random one.
	Topic func() string
}

// Fetcher gets exercises.
type Fetcher struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Level == "" {
		cfg.Level = "C1"
	}
	if cfg.PackSize <= 0 {
		cfg.PackSize = DefaultPackSize
	}
	if cfg.PackType == "" {
		cfg.PackType = DefaultPackType
	}
	if cfg.Registry == nil {
		cfg.Registry = exercise.NewRegistry(exercise.NewBuiltinLoader())
	}
	if cfg.Topic == nil {
		cfg.Topic = exercise.RandomTopic
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{cfg: cfg, logger: cfg.Logger}
}

// Online reports whether the server is reachable. Forced offline mode
// always reports false.
func (f *Fetcher) Online(ctx context.Context) bool {
	if f.cfg.ForceOffline || f.cfg.Backend == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := f.cfg.Backend.Ping(pctx); err != nil {
		f.logger.Debug("server unreachable", "error", err)
		return false
	}
	return true
}

// Fetch returns an exercise of exerciseType for userID. Offline, the
// newest exercise of the offline pack is served whatever the type and no
// request is made. A 429 surfaces as domain.ErrLimitReached.
func (f *Fetcher) Fetch(ctx context.Context, userID, exerciseType string) (*domain.Exercise, Source, error) {
	if !f.Online(ctx) {
		return f.fromPack(ctx)
	}

	switch exerciseType {
	case "writing1", "writing2":
		ex, ok := f.cfg.Registry.Get(exerciseType)
		if !ok {
			return nil, SourceBuiltin, fmt.Errorf("built-in task %q: %w", exerciseType, domain.ErrNoExercise)
		}
		return ex, SourceBuiltin, nil
	case "speaking1":
		return f.speaking(ctx)
	}

	req := api.FetchRequest{
		UserID:       userID,
		ExerciseType: exerciseType,
		Level:        f.cfg.Level,
		CompletedIDs: f.completed(ctx, exerciseType),
	}
	ex, err := f.cfg.Backend.FetchExercise(ctx, req)
	if err != nil {
		return nil, SourceServer, fmt.Errorf("fetch %s: %w", exerciseType, err)
	}
	if ex.Type == "" {
		ex.Type = exerciseType
	}
	f.logger.Info("exercise fetched", "type", exerciseType, "id", ex.ID)
	return ex, SourceServer, nil
}

func (f *Fetcher) fromPack(ctx context.Context) (*domain.Exercise, Source, error) {
	if f.cfg.Pack == nil {
		return nil, SourceOffline, domain.ErrOfflineCacheEmpty
	}
	ex, err := f.cfg.Pack.Take(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrOfflineCacheEmpty) {
			return nil, SourceOffline, fmt.Errorf("%w: %w", domain.ErrOffline, err)
		}
		return nil, SourceOffline, fmt.Errorf("read offline pack: %w", err)
	}
	f.logger.Info("serving exercise from offline pack", "id", ex.ID, "type", ex.Type)
	return ex, SourceOffline, nil
}

// speaking generates a Speaking Part 1 interview on a random topic and
// falls back to the built-in interview when generation fails.
func (f *Fetcher) speaking(ctx context.Context) (*domain.Exercise, Source, error) {
	topic := f.cfg.Topic()
	ex, err := f.cfg.Backend.Generate(ctx, "speaking1", f.cfg.Level, topic)
	if err == nil {
		ex.Title = "Speaking Part 1: " + topic
		ex.Instructions = speakingInstructions
		if ex.Type == "" {
			ex.Type = "speaking1"
		}
		return ex, SourceServer, nil
	}

	f.logger.Warn("speaking generation failed, using fallback", "topic", topic, "error", err)
	fallback, ok := f.cfg.Registry.Get(exercise.SpeakingFallbackKey)
	if !ok {
		return nil, SourceFallback, fmt.Errorf("generate speaking: %w", err)
	}
	return fallback, SourceFallback, nil
}

func (f *Fetcher) completed(ctx context.Context, exerciseType string) []string {
	if f.cfg.History == nil {
		return []string{}
	}
	ids, err := f.cfg.History.CompletedIDs(ctx, exerciseType)
	if err != nil {
		f.logger.Warn("read completed ids", "error", err)
		return []string{}
	}
	return ids
}

// DownloadPack fetches a fresh offline pack of the configured size and
// type, skipping failed fetches. The old pack is kept when every fetch
// fails.
func (f *Fetcher) DownloadPack(ctx context.Context, userID string) (int, error) {
	if f.cfg.Pack == nil {
		return 0, fmt.Errorf("download pack: no offline store configured")
	}
	if !f.Online(ctx) {
		return 0, domain.ErrOffline
	}

	var exercises []*domain.Exercise
	var lastErr error
	for i := 0; i < f.cfg.PackSize; i++ {
		req := api.FetchRequest{UserID: userID, ExerciseType: f.cfg.PackType, Level: f.cfg.Level}
		ex, err := f.cfg.Backend.FetchExercise(ctx, req)
		if err != nil {
			f.logger.Warn("skipped offline exercise", "attempt", i+1, "error", err)
			lastErr = err
			continue
		}
		if ex.Type == "" {
			ex.Type = f.cfg.PackType
		}
		exercises = append(exercises, ex)
	}

	if len(exercises) == 0 && lastErr != nil {
		return 0, fmt.Errorf("download pack: %w", lastErr)
	}
	n, err := f.cfg.Pack.Replace(ctx, exercises)
	if err != nil {
		return 0, err
	}
	f.logger.Info("offline pack downloaded", "stored", n, "requested", f.cfg.PackSize)
	return n, nil
}
