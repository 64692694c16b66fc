// Package passthrough serves the application behind the preview responder: either a reverse proxy to the
// real frontend or a single-page-app file server.
package passthrough

import (
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

//go:embed assets/favicon.png
var fallbackImage []byte

// Config selects the upstream. URL and StaticDir are mutually exclusive; with neither set only the fallback
// image is served.
type Config struct {
	URL          string
	StaticDir    string
	FallbackPath string
}

// New builds the pass-through handler.
func New(cfg Config, logger *zap.Logger) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FallbackPath == "" {
		cfg.FallbackPath = "/favicon.png"
	}
	switch {
	case cfg.URL != "" && cfg.StaticDir != "":
		return nil, errors.New("passthrough: url and static dir are mutually exclusive")
	case cfg.URL != "":
		return newProxy(cfg.URL, logger)
	case cfg.StaticDir != "":
		return newSPA(cfg.StaticDir, cfg.FallbackPath)
	default:
		return fallbackOnly(cfg.FallbackPath), nil
	}
}

func newProxy(raw string, logger *zap.Logger) (http.Handler, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("passthrough: parse upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("passthrough: upstream url %q must be absolute", raw)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		FlushInterval: 100 * time.Millisecond,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}, nil
}

func newSPA(dir, fallbackPath string) (http.Handler, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("passthrough: resolve static dir: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("passthrough: static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("passthrough: %s is not a directory", root)
	}
	files := http.FileServer(http.Dir(root))
	index := filepath.Join(root, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if st, err := os.Stat(filepath.Join(root, filepath.FromSlash(clean))); err == nil && !st.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		if clean == fallbackPath {
			serveFallbackImage(w, r)
			return
		}
		// Paths that look like assets get a real 404; everything else is a client-side route.
		if path.Ext(clean) != "" && !strings.HasSuffix(clean, ".html") {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}), nil
}

func fallbackOnly(fallbackPath string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path.Clean("/"+r.URL.Path) == fallbackPath {
			serveFallbackImage(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

func serveFallbackImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(fallbackImage) //nolint:errcheck // client went away
	}
}

// FallbackImage returns the embedded static preview image.
func FallbackImage() []byte {
	out := make([]byte, len(fallbackImage))
	copy(out, fallbackImage)
	return out
}
