// Package local opens pet images from a directory on the local filesystem.
package local

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/pet-preview/internal/imagefetch"
)

// Config captures the parameters for the local image source.
type Config struct {
	// BaseDir is the only directory images may be read from.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ImageSource reads file:// URLs confined to a base directory.
type ImageSource struct {
	baseDir string
}

// New creates a filesystem-backed image source.
func New(cfg Config) (*ImageSource, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &ImageSource{baseDir: filepath.Clean(abs)}, nil
}

// Open streams the referenced file.
func (s *ImageSource) Open(ctx context.Context, rawURL string) (imagefetch.Image, error) {
	if err := ctx.Err(); err != nil {
		return imagefetch.Image{}, err
	}
	full, err := s.Resolve(rawURL)
	if err != nil {
		return imagefetch.Image{}, err
	}
	f, err := os.Open(full) //nolint:gosec // confined to baseDir by Resolve
	if err != nil {
		return imagefetch.Image{}, fmt.Errorf("open image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return imagefetch.Image{}, fmt.Errorf("stat image: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return imagefetch.Image{}, fmt.Errorf("image path is a directory: %q", rawURL)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(full)))
	if contentType == "" {
		contentType = imagefetch.DefaultContentType
	}
	return imagefetch.Image{Body: f, ContentType: contentType, Size: info.Size()}, nil
}

// Resolve maps a file:// URL onto a path inside the base directory. Absolute paths must already lie
// under it; file://relative/name.jpg is taken relative to it.
func (s *ImageSource) Resolve(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse file uri: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file:// uri: %q", rawURL)
	}

	var full string
	switch u.Host {
	case "", "localhost":
		if u.Path == "" {
			return "", fmt.Errorf("file uri must name a file: %q", rawURL)
		}
		full = filepath.Clean(filepath.FromSlash(u.Path))
	default:
		full = filepath.Join(s.baseDir, filepath.FromSlash(path.Join(u.Host, u.Path)))
	}

	// Clean the path and verify it's within baseDir to prevent path traversal.
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q", rawURL)
	}
	return full, nil
}
