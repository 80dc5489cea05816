package recorder

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultChunkSize = 32 * 1024

// FileMicrophone replays an audio file as if it were being recorded. The
// CLI uses it for --audio.
type FileMicrophone struct {
	Path      string
	ChunkSize int
}

var audioTypes = map[string]string{
	".webm": "audio/webm",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// MIMEType guesses the clip type from the file extension.
func (m FileMicrophone) MIMEType() string {
	ext := strings.ToLower(filepath.Ext(m.Path))
	if mt, ok := audioTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return DefaultMIMEType
}

func (m FileMicrophone) Acquire(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	size := m.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	return &fileCapture{
		file: f,
		size: size,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

type fileCapture struct {
	file     *os.File
	size     int
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool
}

func (c *fileCapture) Start(onData func([]byte)) error {
	c.started.Store(true)
	go func() {
		defer close(c.done)
		buf := make([]byte, c.size)
		for {
			select {
			case <-c.stop:
				return
			default:
			}
			n, err := c.file.Read(buf)
			if n > 0 {
				onData(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *fileCapture) Stop() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *fileCapture) Done() <-chan struct{} { return c.done }

func (c *fileCapture) Release() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
	return c.file.Close()
}
