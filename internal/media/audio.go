// Package media turns listening payloads into playable audio files and
// exports payloads as PDF documents.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/session"
)

// ErrNoAudioText is returned for a listening payload with nothing to read.
var ErrNoAudioText = errors.New("listening payload has no text or audio")

// Synthesizer renders text to speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

var (
	_ Synthesizer         = (*api.Client)(nil)
	_ session.AudioSource = (*AudioCache)(nil)
)

// AudioCache stores rendered listening audio on disk, keyed by content,
// so a payload is synthesized once.
type AudioCache struct {
	dir    string
	tts    Synthesizer
	logger *slog.Logger
}

// NewAudioCache creates a cache under dir.
func NewAudioCache(dir string, tts Synthesizer, logger *slog.Logger) (*AudioCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioCache{dir: dir, tts: tts, logger: logger}, nil
}

// Dir returns the cache directory.
func (c *AudioCache) Dir() string { return c.dir }

// ListeningAudio returns the path of the payload's audio. Embedded audio
// is decoded; otherwise the transcript text is synthesized.
func (c *AudioCache) ListeningAudio(ctx context.Context, ex *domain.Exercise) (string, error) {
	if ex == nil {
		return "", domain.ErrNoExercise
	}
	if ex.AudioBase64 != "" {
		return c.fromBase64(ex.AudioBase64)
	}
	text := strings.TrimSpace(ex.Text)
	if text == "" {
		return "", ErrNoAudioText
	}

	key := digest(text)
	if path, ok := c.lookup(key); ok {
		return path, nil
	}
	if c.tts == nil {
		return "", fmt.Errorf("synthesize audio: no speech backend")
	}
	data, contentType, err := c.tts.Synthesize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("synthesize audio: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("synthesize audio: empty response")
	}
	path, err := c.write(key+extension(contentType), data)
	if err != nil {
		return "", err
	}
	c.logger.Debug("listening audio synthesized", "path", path, "bytes", len(data))
	return path, nil
}

func (c *AudioCache) fromBase64(encoded string) (string, error) {
	contentType := ""
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return "", fmt.Errorf("decode audio: malformed data url")
		}
		contentType, _, _ = strings.Cut(meta, ";")
		encoded = payload
	}

	key := digest(encoded)
	if path, ok := c.lookup(key); ok {
		return path, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	return c.write(key+extension(contentType), data)
}

func (c *AudioCache) lookup(key string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(c.dir, key+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

func (c *AudioCache) write(name string, data []byte) (string, error) {
	path := filepath.Join(c.dir, name)
	tmp, err := os.CreateTemp(c.dir, ".audio-*")
	if err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return path, nil
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}

func extension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	default:
		return ".mp3"
	}
}
