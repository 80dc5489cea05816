package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
	"github.com/c1advanced/c1prep/internal/recorder"
)

// StartRecording acquires the microphone and starts one recording. The
// recording ends on StopRecording or when the capture stops by itself;
// either way the clip is transcribed and appended to the text buffer.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.active == nil:
		c.mu.Unlock()
		return domain.ErrNoExercise
	case !c.acceptsTextLocked():
		c.mu.Unlock()
		return domain.ErrWrongMode
	case c.rec != nil || c.starting:
		c.mu.Unlock()
		return domain.ErrRecordingActive
	case c.transcribing:
		c.mu.Unlock()
		return domain.ErrTranscribing
	case c.cfg.Microphone == nil || c.cfg.Transcriber == nil:
		c.mu.Unlock()
		return fmt.Errorf("start recording: no microphone configured")
	}
	if c.isSpeakingLocked() {
		if user, ok := c.cfg.Identity.CurrentUser(); !ok || !user.IsVIP {
			c.mu.Unlock()
			return domain.ErrPremiumRequired
		}
	}
	c.starting = true
	c.transcribeErr = nil
	gen := c.generation
	c.mu.Unlock()

	onFinish := func(clip recorder.Clip) {
		c.finishRecording(ctx, gen, clip)
	}
	opts := []recorder.Option{recorder.WithLogger(c.logger)}
	if mt := c.cfg.RecordingMIMEType; mt != "" {
		opts = append(opts, recorder.WithMIMEType(mt))
	}
	rec, err := recorder.Start(ctx, c.cfg.Microphone, onFinish, opts...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		if rec != nil {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				_, _ = rec.Stop()
			}()
		}
		return ErrSuperseded
	}
	c.starting = false
	if err != nil {
		c.logger.Warn("recording failed to start", "error", err)
		return err
	}

	// The capture may already have ended; finishRecording then ran first
	// and marked the session as transcribing.
	if rec.Recording() {
		c.rec = rec
	}
	c.logger.Debug("recording started")
	return nil
}

// StopRecording ends the active recording and waits for its transcript.
// A transcription failure is returned and leaves the text unchanged.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	rec := c.rec
	gen := c.generation
	c.mu.Unlock()

	if rec == nil {
		return domain.ErrNotRecording
	}
	if _, err := rec.Stop(); err != nil && !errors.Is(err, recorder.ErrStopped) {
		return fmt.Errorf("stop recording: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return ErrSuperseded
	}
	return c.transcribeErr
}

// finishRecording runs once per recording after the microphone is
// released. It transcribes the clip and appends the text when the payload
// is still the one the recording started on.
func (c *Controller) finishRecording(ctx context.Context, gen uint64, clip recorder.Clip) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.rec = nil
	if len(clip.Data) == 0 {
		c.transcribeErr = recorder.ErrEmptyClip
		c.mu.Unlock()
		return
	}
	c.transcribing = true
	c.mu.Unlock()

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.DetachedTimeout)
	defer cancel()
	text, err := c.cfg.Transcriber.Transcribe(dctx, clip.Data, clip.MIMEType)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.transcribing = false
	if err != nil {
		c.logger.Warn("transcription failed", "bytes", len(clip.Data), "error", err)
		c.transcribeErr = fmt.Errorf("transcribe recording: %w", err)
		return
	}
	if c.acceptsTextLocked() {
		c.text = exercise.AppendTranscript(c.text, text)
	}
	c.logger.Debug("transcript appended", "chunks", clip.Chunks, "chars", len(text))
}
