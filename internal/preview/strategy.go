package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/pet-preview/internal/imagefetch"
	"github.com/JakeFAU/pet-preview/internal/metrics"
	"github.com/JakeFAU/pet-preview/internal/pet"
)

// Strategy names accepted by ParseStrategy.
const (
	StrategyDocument = "document"
	StrategyProxy    = "proxy"
	StrategyRedirect = "redirect"
)

// ErrImageTooLarge is returned when a proxied image exceeds the configured byte cap.
var ErrImageTooLarge = errors.New("image exceeds preview size limit")

// Strategy writes the response for a resolved pet. Implementations return an error only before anything
// has been written, so the caller can still fall back.
type Strategy interface {
	Name() string
	Respond(w http.ResponseWriter, r *http.Request, p pet.Pet) error
}

// ETagger derives entity tags from response bodies.
type ETagger interface {
	ETag(data []byte) string
}

// DocumentStrategy answers with the synthesized Open Graph document.
type DocumentStrategy struct {
	settings Settings
	etags    ETagger
}

// NewDocumentStrategy builds a DocumentStrategy; etags may be nil to disable conditional responses.
func NewDocumentStrategy(s Settings, etags ETagger) *DocumentStrategy {
	return &DocumentStrategy{settings: s.WithDefaults(), etags: etags}
}

// Name implements Strategy.
func (d *DocumentStrategy) Name() string { return StrategyDocument }

// Respond implements Strategy.
func (d *DocumentStrategy) Respond(w http.ResponseWriter, r *http.Request, p pet.Pet) error {
	meta, err := BuildMeta(p, d.settings.ForRequest(r))
	if err != nil {
		return err
	}
	body, err := Render(meta)
	if err != nil {
		return err
	}
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", publicCache(d.settings.CacheMaxAge))
	if d.etags != nil {
		tag := d.etags.ETag(body)
		h.Set("ETag", tag)
		if etagMatches(r.Header.Get("If-None-Match"), tag) {
			w.WriteHeader(http.StatusNotModified)
			return nil
		}
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body) //nolint:errcheck // client went away; nothing left to do
	}
	return nil
}

// ProxyStrategy fetches the pet image server-side and relays the bytes.
type ProxyStrategy struct {
	settings Settings
	source   imagefetch.Source
	timeout  time.Duration
}

// NewProxyStrategy builds a ProxyStrategy. The fetch is bounded by timeout.
func NewProxyStrategy(s Settings, source imagefetch.Source, timeout time.Duration) *ProxyStrategy {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &ProxyStrategy{settings: s.WithDefaults(), source: source, timeout: timeout}
}

// Name implements Strategy.
func (p *ProxyStrategy) Name() string { return StrategyProxy }

// Respond implements Strategy. The image is read completely (up to the byte cap) before anything is
// written so that oversized or failing fetches can still fall back.
func (p *ProxyStrategy) Respond(w http.ResponseWriter, r *http.Request, rec pet.Pet) error {
	if p.source == nil {
		return errors.New("no image source configured")
	}
	src, err := SourceImageURL(rec, p.settings.ForRequest(r))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	img, err := p.source.Open(ctx, src)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer img.Body.Close() //nolint:errcheck // read-only body

	limit := p.settings.MaxImageBytes
	if img.Size > limit {
		return fmt.Errorf("%w: declared %d bytes", ErrImageTooLarge, img.Size)
	}
	data, err := io.ReadAll(io.LimitReader(img.Body, limit+1))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, limit)
	}

	h := w.Header()
	h.Set("Content-Type", img.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", publicCache(p.settings.ImageCacheMaxAge))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		n, _ := w.Write(data) //nolint:errcheck // client went away; nothing left to do
		metrics.ObserveImageBytes(int64(n))
	}
	return nil
}

// RedirectStrategy sends the crawler straight to the stored image URL.
type RedirectStrategy struct {
	settings Settings
}

// NewRedirectStrategy builds a RedirectStrategy.
func NewRedirectStrategy(s Settings) *RedirectStrategy {
	return &RedirectStrategy{settings: s.WithDefaults()}
}

// Name implements Strategy.
func (d *RedirectStrategy) Name() string { return StrategyRedirect }

// Respond implements Strategy.
func (d *RedirectStrategy) Respond(w http.ResponseWriter, r *http.Request, p pet.Pet) error {
	target := p.Image()
	if !isHTTP(target) {
		return fmt.Errorf("image url %q is not publicly reachable", target)
	}
	w.Header().Set("Cache-Control", publicCache(d.settings.CacheMaxAge))
	http.Redirect(w, r, target, http.StatusFound)
	return nil
}

// ParseStrategy validates a configured strategy name.
func ParseStrategy(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyDocument:
		return StrategyDocument, nil
	case StrategyProxy:
		return StrategyProxy, nil
	case StrategyRedirect:
		return StrategyRedirect, nil
	default:
		return "", fmt.Errorf("unknown preview strategy %q", name)
	}
}

func publicCache(maxAge time.Duration) string {
	secs := strconv.Itoa(int(maxAge / time.Second))
	return "public, max-age=" + secs + ", s-maxage=" + secs
}

func etagMatches(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}
