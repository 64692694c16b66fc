// Package gcs opens pet images stored in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/pet-preview/internal/imagefetch"
)

type openFunc func(ctx context.Context, bucket, object string) (io.ReadCloser, string, int64, error)

// ImageSource reads gs://bucket/object URLs.
type ImageSource struct {
	open openFunc
}

// New creates a GCS-backed image source.
func New(client *storage.Client) (*ImageSource, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return &ImageSource{
		open: func(ctx context.Context, bucket, object string) (io.ReadCloser, string, int64, error) {
			r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
			if err != nil {
				return nil, "", 0, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
			}
			return r, r.Attrs.ContentType, r.Attrs.Size, nil
		},
	}, nil
}

// Open streams the referenced object.
func (s *ImageSource) Open(ctx context.Context, rawURL string) (imagefetch.Image, error) {
	bucket, object, err := ParseURI(rawURL)
	if err != nil {
		return imagefetch.Image{}, err
	}
	body, contentType, size, err := s.open(ctx, bucket, object)
	if err != nil {
		return imagefetch.Image{}, err
	}
	if contentType == "" {
		contentType = imagefetch.DefaultContentType
	}
	return imagefetch.Image{Body: body, ContentType: contentType, Size: size}, nil
}

// ParseURI splits gs://bucket/path/to/object into bucket and object name.
func ParseURI(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse gcs uri: %w", err)
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("not a gs:// uri: %q", rawURL)
	}
	object := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || object == "" {
		return "", "", fmt.Errorf("gcs uri must name a bucket and object: %q", rawURL)
	}
	return u.Host, object, nil
}
