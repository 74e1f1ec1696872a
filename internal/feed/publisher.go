package feed

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// A Publisher makes a rendered page available somewhere viewable and returns its location.
type Publisher interface {
	Publish(ctx context.Context, title string, htmlContent string) (string, error)
}

// FilePublisher writes pages as standalone HTML files under Dir.
type FilePublisher struct {
	Dir string
	// now is replaceable for tests.
	now func() time.Time
}

func NewFilePublisher(dir string) *FilePublisher {
	return &FilePublisher{Dir: dir, now: time.Now}
}

func (p *FilePublisher) Publish(_ context.Context, title string, htmlContent string) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating publish dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.html", slugify(title), p.now().UTC().Format("20060102-150405"))
	path := filepath.Join(p.Dir, name)
	page := fmt.Sprintf(
		"<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>%s</body></html>\n",
		html.EscapeString(title), htmlContent,
	)
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return "", fmt.Errorf("writing page: %w", err)
	}
	return path, nil
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "page"
	}
	return slug
}
