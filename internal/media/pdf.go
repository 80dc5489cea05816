package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/domain"
)

// PDFRenderer renders a payload as a PDF document.
type PDFRenderer interface {
	DownloadPDF(ctx context.Context, ex *domain.Exercise) ([]byte, error)
}

var _ PDFRenderer = (*api.Client)(nil)

var unsafeName = regexp.MustCompile(`[^a-z0-9]`)

// PDFFilename derives the download name from the payload title.
func PDFFilename(ex *domain.Exercise) string {
	title := "Exercise"
	if ex != nil && ex.Title != "" {
		title = ex.Title
	}
	return unsafeName.ReplaceAllString(strings.ToLower(title), "_") + "_task.pdf"
}

// ExportPDF renders ex and writes it into dir. It returns the file path.
func ExportPDF(ctx context.Context, r PDFRenderer, ex *domain.Exercise, dir string) (string, error) {
	if ex == nil {
		return "", domain.ErrNoExercise
	}
	data, err := r.DownloadPDF(ctx, ex)
	if err != nil {
		return "", fmt.Errorf("export pdf: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export pdf: %w", err)
	}
	path := filepath.Join(dir, PDFFilename(ex))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export pdf: %w", err)
	}
	return path, nil
}
