// Package recorder runs one audio capture per recording toggle and hands
// the combined clip to a finish callback.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMIMEType is the container browsers and the CLI record into.
const DefaultMIMEType = "audio/webm"

var (
	// ErrStopped is returned when Stop is called on a finished recording.
	ErrStopped = errors.New("recording already stopped")
	// ErrEmptyClip is passed to the finish callback when no audio arrived.
	ErrEmptyClip = errors.New("no audio captured")
)

// Microphone acquires a capture handle. Acquisition may fail, for example
// when permission is denied.
type Microphone interface {
	Acquire(ctx context.Context) (Capture, error)
}

// Capture is an acquired hardware handle.
type Capture interface {
	// Start begins delivering audio chunks to onData.
	Start(onData func([]byte)) error
	// Stop asks the capture to end. Done closes once it has.
	Stop() error
	// Done closes when the capture ends, whether through Stop or on its own.
	Done() <-chan struct{}
	// Release frees the underlying device.
	Release() error
}

// Clip is the audio of one recording combined into a single blob.
type Clip struct {
	Data     []byte
	MIMEType string
	Chunks   int
}

// FinishFunc receives the combined clip once per recording.
type FinishFunc func(Clip)

// Session is one recording from acquire to release.
type Session struct {
	capture  Capture
	mimeType string
	onFinish FinishFunc
	logger   *slog.Logger

	mu     sync.Mutex
	chunks [][]byte
	ended  bool

	releaseOnce sync.Once
	releaseErr  error
	finishOnce  sync.Once
	finished    chan struct{}
	clip        Clip
}

// Option configures a Session.
type Option func(*Session)

// WithMIMEType overrides the clip content type.
func WithMIMEType(mt string) Option {
	return func(s *Session) { s.mimeType = mt }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Start acquires a capture from mic and starts recording. onFinish runs
// exactly once, after the handle is released, with the combined clip. The
// handle is released on every path, including a failed Start.
func Start(ctx context.Context, mic Microphone, onFinish FinishFunc, opts ...Option) (*Session, error) {
	capture, err := mic.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire microphone: %w", err)
	}

	s := &Session{
		capture:  capture,
		mimeType: DefaultMIMEType,
		onFinish: onFinish,
		logger:   slog.Default(),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := capture.Start(s.collect); err != nil {
		if rerr := s.release(); rerr != nil {
			s.logger.Warn("release microphone after failed start", "error", rerr)
		}
		return nil, fmt.Errorf("start capture: %w", err)
	}

	go s.watch()
	return s, nil
}

func (s *Session) collect(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
}

// watch finishes the session when the capture stops on its own.
func (s *Session) watch() {
	select {
	case <-s.capture.Done():
		s.finish()
	case <-s.finished:
	}
}

// Stop ends the recording and blocks until the finish callback returns.
func (s *Session) Stop() (Clip, error) {
	select {
	case <-s.finished:
		return s.clip, ErrStopped
	default:
	}

	if err := s.capture.Stop(); err != nil {
		s.logger.Warn("stop capture", "error", err)
	}
	s.finish()
	<-s.finished
	return s.clip, nil
}

// Done closes once the finish callback has returned.
func (s *Session) Done() <-chan struct{} {
	return s.finished
}

// Recording reports whether the session is still capturing.
func (s *Session) Recording() bool {
	select {
	case <-s.finished:
		return false
	default:
		return true
	}
}

func (s *Session) finish() {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.ended = true
		chunks := s.chunks
		s.chunks = nil
		s.mu.Unlock()

		if err := s.release(); err != nil {
			s.logger.Warn("release microphone", "error", err)
		}

		s.clip = Clip{
			Data:     bytes.Join(chunks, nil),
			MIMEType: s.mimeType,
			Chunks:   len(chunks),
		}
		if s.onFinish != nil {
			s.onFinish(s.clip)
		}
		close(s.finished)
	})
}

func (s *Session) release() error {
	s.releaseOnce.Do(func() {
		s.releaseErr = s.capture.Release()
	})
	return s.releaseErr
}
