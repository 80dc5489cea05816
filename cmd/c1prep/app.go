package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/auth"
	"github.com/c1advanced/c1prep/internal/config"
	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/history"
	"github.com/c1advanced/c1prep/internal/media"
	"github.com/c1advanced/c1prep/internal/offline"
	"github.com/c1advanced/c1prep/internal/practice"
	"github.com/c1advanced/c1prep/internal/queue"
	"github.com/c1advanced/c1prep/internal/recorder"
	"github.com/c1advanced/c1prep/internal/session"
	"github.com/c1advanced/c1prep/internal/storage/local"
	"github.com/c1advanced/c1prep/internal/storage/sqlite"
)

// app holds every collaborator a command may need.
type app struct {
	dir    string
	cfg    *config.Config
	logger *slog.Logger

	identity *auth.Provider
	client   *api.Client
	db       *sqlite.DB
	history  *history.Service
	pack     *offline.Cache
	fetcher  *practice.Fetcher
	store    *local.Store
	audio    *media.AudioCache

	broker   *queue.Connection
	producer *queue.Producer

	closers []io.Closer
}

func newApp(opts globalOptions) (*app, error) {
	dir, err := config.EnsureDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.offline {
		cfg.Practice.ForceOffline = true
	}

	logger, logFile := setupLogging(dir, parseLogLevel(cfg.LogLevel), opts.verbose || cfg.LogLevel == "debug")
	a := &app{dir: dir, cfg: cfg, logger: logger, closers: []io.Closer{logFile}}

	a.identity = auth.NewProvider(auth.FileStore{}, logger)
	a.client = api.New(api.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.Timeout(),
		Tokens:     a.identity,
		Resilience: cfg.APIResilience(logger),
		Logger:     logger,
	})
	a.closers = append(a.closers, a.client)

	a.db, err = sqlite.OpenMigrated(filepath.Join(dir, sqlite.DefaultFile), logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open local database: %w", err)
	}
	a.closers = append(a.closers, a.db)

	a.history = history.NewService(sqlite.NewAttemptStore(a.db), sqlite.NewActivityStore(a.db), logger)
	a.pack = offline.New(sqlite.NewOfflineStore(a.db), offline.DefaultCapacity, logger)
	a.fetcher = practice.New(practice.Config{
		Level:        cfg.Practice.Level,
		ForceOffline: cfg.Practice.ForceOffline,
		PackSize:     cfg.Practice.OfflinePackSize,
		PackType:     cfg.Practice.OfflinePackType,
		Backend:      a.client,
		Pack:         a.pack,
		History:      a.history,
		Logger:       logger,
	})

	a.store, err = local.NewStore(filepath.Join(dir, "cache"))
	if err != nil {
		a.close()
		return nil, err
	}
	a.audio, err = media.NewAudioCache(filepath.Join(dir, "audio"), a.client, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Events.AMQPURL != "" {
		a.broker, err = queue.NewConnection(cfg.Events.AMQPURL, logger)
		if err != nil {
			logger.Warn("result events disabled", "error", err)
		} else {
			a.producer = queue.NewProducer(a.broker, logger)
			a.closers = append(a.closers, a.broker)
		}
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Debug("close", "error", err)
		}
	}
}

// userID returns the signed-in user's id or "".
func (a *app) userID() string {
	if u, ok := a.identity.CurrentUser(); ok {
		return u.UID
	}
	return ""
}

// requireUser returns the signed-in user's id or ErrNotAuthenticated.
func (a *app) requireUser() (string, error) {
	if id := a.userID(); id != "" {
		return id, nil
	}
	return "", domain.ErrNotAuthenticated
}

// newSession builds a controller wired to the backend and local history.
// audioFile, when set, is replayed as the microphone.
func (a *app) newSession(audioFile string) *session.Controller {
	cfg := session.Config{
		Level:            a.cfg.Practice.Level,
		MinEssayWords:    a.cfg.Practice.MinEssayWords,
		MinResponseChars: a.cfg.Practice.MinResponseChars,
		Identity:         a.identity,
		Preloader:        a.client,
		Grader:           a.client,
		Transcriber:      a.client,
		Reporter:         a.client,
		Audio:            a.audio,
		Sinks:            []session.ResultSink{&session.APISink{Client: a.client}},
		LocalSinks:       []session.ResultSink{a.history},
		Logger:           a.logger,
	}
	if a.producer != nil {
		cfg.LocalSinks = append(cfg.LocalSinks, a.producer)
	}
	if audioFile != "" {
		mic := recorder.FileMicrophone{Path: audioFile}
		cfg.Microphone = mic
		cfg.RecordingMIMEType = mic.MIMEType()
	}
	if a.cfg.Practice.ForceOffline {
		cfg.Preloader = nil
		cfg.Sinks = nil
	}
	return session.New(cfg)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
