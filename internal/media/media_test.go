package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c1advanced/c1prep/internal/domain"
)

type fakeTTS struct {
	calls int
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("voice:" + text), "audio/mpeg", nil
}

func TestListeningAudio_SynthesizesOnce(t *testing.T) {
	tts := &fakeTTS{}
	cache, err := NewAudioCache(t.TempDir(), tts, nil)
	if err != nil {
		t.Fatalf("NewAudioCache() error = %v", err)
	}
	ex := &domain.Exercise{Type: "listening1", Text: "Speaker one talks about rivers."}

	first, err := cache.ListeningAudio(context.Background(), ex)
	if err != nil {
		t.Fatalf("ListeningAudio() error = %v", err)
	}
	second, err := cache.ListeningAudio(context.Background(), ex)
	if err != nil {
		t.Fatalf("ListeningAudio() second error = %v", err)
	}
	if first != second || tts.calls != 1 {
		t.Errorf("paths %q %q after %d calls; want one cached file", first, second, tts.calls)
	}
	if !strings.HasSuffix(first, ".mp3") {
		t.Errorf("path = %q; want .mp3", first)
	}
	data, _ := os.ReadFile(first)
	if string(data) != "voice:Speaker one talks about rivers." {
		t.Errorf("audio = %q", data)
	}
}

func TestListeningAudio_EmbeddedAudio(t *testing.T) {
	tts := &fakeTTS{}
	cache, _ := NewAudioCache(t.TempDir(), tts, nil)
	raw := []byte{0x49, 0x44, 0x33, 0x04}

	tests := []struct {
		name    string
		encoded string
		ext     string
	}{
		{"plain", base64.StdEncoding.EncodeToString(raw), ".mp3"},
		{"data url", "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(raw), ".wav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := cache.ListeningAudio(context.Background(), &domain.Exercise{AudioBase64: tt.encoded, Text: "ignored"})
			if err != nil {
				t.Fatalf("ListeningAudio() error = %v", err)
			}
			if filepath.Ext(path) != tt.ext {
				t.Errorf("ext = %q; want %q", filepath.Ext(path), tt.ext)
			}
			data, _ := os.ReadFile(path)
			if !bytes.Equal(data, raw) {
				t.Errorf("audio = %v; want %v", data, raw)
			}
		})
	}
	if tts.calls != 0 {
		t.Errorf("tts calls = %d; want 0", tts.calls)
	}
}

func TestListeningAudio_Errors(t *testing.T) {
	boom := errors.New("tts down")
	cache, _ := NewAudioCache(t.TempDir(), &fakeTTS{err: boom}, nil)

	if _, err := cache.ListeningAudio(context.Background(), &domain.Exercise{Text: "hello"}); !errors.Is(err, boom) {
		t.Errorf("error = %v; want %v", err, boom)
	}
	if _, err := cache.ListeningAudio(context.Background(), &domain.Exercise{Text: "  "}); !errors.Is(err, ErrNoAudioText) {
		t.Errorf("error = %v; want ErrNoAudioText", err)
	}
	if _, err := cache.ListeningAudio(context.Background(), &domain.Exercise{AudioBase64: "!!not base64"}); err == nil {
		t.Error("expected decode error")
	}
}

type fakePDF struct{ data []byte }

func (f fakePDF) DownloadPDF(ctx context.Context, ex *domain.Exercise) ([]byte, error) {
	return f.data, nil
}

func TestPDFFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Reading Part 1: Urban Myths", "reading_part_1__urban_myths_task.pdf"},
		{"", "exercise_task.pdf"},
		{"Écrit", "_crit_task.pdf"},
	}
	for _, tt := range tests {
		if got := PDFFilename(&domain.Exercise{Title: tt.title}); got != tt.want {
			t.Errorf("PDFFilename(%q) = %q; want %q", tt.title, got, tt.want)
		}
	}
}

func TestExportPDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := ExportPDF(context.Background(), fakePDF{data: []byte("%PDF-1.4")}, &domain.Exercise{Title: "Essay"}, dir)
	if err != nil {
		t.Fatalf("ExportPDF() error = %v", err)
	}
	if filepath.Base(path) != "essay_task.pdf" {
		t.Errorf("path = %q", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "%PDF-1.4" {
		t.Errorf("content = %q", data)
	}
}
