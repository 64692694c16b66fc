// Package imagefetch retrieves pet image bytes for the preview proxy.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultContentType is used when the upstream does not declare one.
const DefaultContentType = "image/jpeg"

// ErrUnsupportedScheme is returned by Mux for URLs no source can open.
var ErrUnsupportedScheme = errors.New("unsupported image url scheme")

// Image is an open image stream. Size is -1 when unknown.
type Image struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Source opens image URLs.
type Source interface {
	Open(ctx context.Context, rawURL string) (Image, error)
}

// StatusError reports a non-2xx response from an image host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image fetch %s: status=%d", e.URL, e.StatusCode)
}

// HTTPSource fetches images over HTTP(S).
type HTTPSource struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSource builds an HTTPSource; a nil client uses http.DefaultClient.
func NewHTTPSource(client *http.Client, userAgent string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{client: client, userAgent: userAgent}
}

// Open issues a GET with an image Accept hint and returns the streaming body.
func (s *HTTPSource) Open(ctx context.Context, rawURL string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Image{}, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return Image{}, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}
	return Image{Body: resp.Body, ContentType: contentType, Size: resp.ContentLength}, nil
}

// Mux dispatches to a Source by URL scheme.
type Mux struct {
	sources map[string]Source
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{sources: make(map[string]Source)}
}

// Handle registers src for the given schemes.
func (m *Mux) Handle(src Source, schemes ...string) *Mux {
	for _, scheme := range schemes {
		m.sources[strings.ToLower(scheme)] = src
	}
	return m
}

// Open routes rawURL to the source registered for its scheme.
func (m *Mux) Open(ctx context.Context, rawURL string) (Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Image{}, fmt.Errorf("parse image url: %w", err)
	}
	src, ok := m.sources[strings.ToLower(u.Scheme)]
	if !ok {
		return Image{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return src.Open(ctx, rawURL) //nolint:wrapcheck // sources wrap their own errors
}

// Waiter paces outbound requests.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Throttled paces src with w before every Open.
type Throttled struct {
	src Source
	w   Waiter
}

// Throttle wraps src; a nil waiter returns src unchanged.
func Throttle(src Source, w Waiter) Source {
	if w == nil {
		return src
	}
	return &Throttled{src: src, w: w}
}

// Open waits for w and then delegates to the wrapped source.
func (t *Throttled) Open(ctx context.Context, rawURL string) (Image, error) {
	if err := t.w.Wait(ctx, rawURL); err != nil {
		return Image{}, err //nolint:wrapcheck // limiter errors are already wrapped
	}
	return t.src.Open(ctx, rawURL) //nolint:wrapcheck // sources wrap their own errors
}
