package preview

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/pet-preview/internal/pet"
)

// ImageMode selects which URL is embedded in og:image / twitter:image.
type ImageMode string

const (
	// ImageModeProxy embeds the same-origin /api/og-image/{id} endpoint.
	ImageModeProxy ImageMode = "proxy"
	// ImageModeTransform embeds an image-optimizer URL wrapping the stored image.
	ImageModeTransform ImageMode = "transform"
	// ImageModeDirect embeds the stored image URL unchanged.
	ImageModeDirect ImageMode = "direct"
)

// ImagePath is the route prefix of the image proxy endpoint.
const ImagePath = "/api/og-image/"

// Defaults for Settings fields left at their zero value.
const (
	DefaultSiteName         = "The A Pawstrophe"
	DefaultFallbackPath     = "/favicon.png"
	DefaultDescriptionLimit = 160
	DefaultImageWidth       = 1200
	DefaultImageQuality     = 75
	DefaultMaxImageBytes    = 1 << 20
	DefaultCacheMaxAge      = time.Hour
	DefaultImageCacheMaxAge = 24 * time.Hour

	ogImageWidth  = 1200
	ogImageHeight = 630
)

// Settings shape the generated metadata and response headers.
type Settings struct {
	SiteURL          string
	SiteName         string
	FallbackPath     string
	ImageMode        ImageMode
	TransformURL     string
	ImageWidth       int
	ImageQuality     int
	DescriptionLimit int
	CacheMaxAge      time.Duration
	ImageCacheMaxAge time.Duration
	MaxImageBytes    int64
}

// WithDefaults fills zero-valued fields.
func (s Settings) WithDefaults() Settings {
	s.SiteURL = strings.TrimRight(strings.TrimSpace(s.SiteURL), "/")
	if s.SiteName == "" {
		s.SiteName = DefaultSiteName
	}
	if s.FallbackPath == "" {
		s.FallbackPath = DefaultFallbackPath
	}
	if s.ImageMode == "" {
		s.ImageMode = ImageModeProxy
	}
	if s.ImageWidth <= 0 {
		s.ImageWidth = DefaultImageWidth
	}
	if s.ImageQuality <= 0 {
		s.ImageQuality = DefaultImageQuality
	}
	if s.DescriptionLimit <= 0 {
		s.DescriptionLimit = DefaultDescriptionLimit
	}
	if s.CacheMaxAge <= 0 {
		s.CacheMaxAge = DefaultCacheMaxAge
	}
	if s.ImageCacheMaxAge <= 0 {
		s.ImageCacheMaxAge = DefaultImageCacheMaxAge
	}
	if s.MaxImageBytes <= 0 {
		s.MaxImageBytes = DefaultMaxImageBytes
	}
	return s
}

// Meta is the complete tag set rendered for one pet.
type Meta struct {
	Name        string
	Title       string
	OGTitle     string
	Description string
	ImageURL    string
	ImageWidth  int
	ImageHeight int
	PageURL     string
	SiteName    string
	Type        string
	TwitterCard string
}

// BuildMeta derives the preview metadata for p.
func BuildMeta(p pet.Pet, s Settings) (Meta, error) {
	s = s.WithDefaults()
	image, err := EmbeddedImageURL(p, s)
	if err != nil {
		return Meta{}, err
	}
	ogTitle := fmt.Sprintf("Meet %s! 🐾", p.Name)
	return Meta{
		Name:        p.Name,
		Title:       ogTitle + " – " + s.SiteName,
		OGTitle:     ogTitle,
		Description: Description(p, s.DescriptionLimit),
		ImageURL:    image,
		ImageWidth:  ogImageWidth,
		ImageHeight: ogImageHeight,
		PageURL:     s.SiteURL + "/pet/" + url.PathEscape(p.ID),
		SiteName:    s.SiteName,
		Type:        "website",
		TwitterCard: "summary_large_image",
	}, nil
}

// Description returns the pet description cut to limit characters, or a default sentence naming the pet.
func Description(p pet.Pet, limit int) string {
	text := p.DescriptionText()
	if text == "" {
		return p.Name + " is looking for a forever home!"
	}
	// Compose first so the cut never separates a base letter from its combining mark.
	text = norm.NFC.String(text)
	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

// EmbeddedImageURL is the image URL crawlers will fetch for p.
func EmbeddedImageURL(p pet.Pet, s Settings) (string, error) {
	switch s.ImageMode {
	case ImageModeProxy, "":
		return s.SiteURL + ImagePath + url.PathEscape(p.ID), nil
	case ImageModeTransform:
		return TransformURL(p.Image(), s)
	case ImageModeDirect:
		return p.Image(), nil
	default:
		return "", fmt.Errorf("unknown image mode %q", s.ImageMode)
	}
}

// SourceImageURL is the URL the proxy fetches for p: the optimizer URL when one is configured and the
// stored image is served over HTTP, else the stored URL.
func SourceImageURL(p pet.Pet, s Settings) (string, error) {
	raw := p.Image()
	if s.TransformURL == "" || !isHTTP(raw) {
		return raw, nil
	}
	return TransformURL(raw, s)
}

// TransformURL wraps raw in the configured image optimizer URL (url, w and q query parameters).
func TransformURL(raw string, s Settings) (string, error) {
	if s.TransformURL == "" {
		return "", fmt.Errorf("image transform url is not configured")
	}
	base, err := url.Parse(s.TransformURL)
	if err != nil {
		return "", fmt.Errorf("parse transform url: %w", err)
	}
	if !base.IsAbs() {
		base, err = url.Parse(s.SiteURL + "/" + strings.TrimLeft(s.TransformURL, "/"))
		if err != nil {
			return "", fmt.Errorf("parse transform url: %w", err)
		}
	}
	q := base.Query()
	q.Set("url", raw)
	q.Set("w", strconv.Itoa(s.ImageWidth))
	q.Set("q", strconv.Itoa(s.ImageQuality))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func isHTTP(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
