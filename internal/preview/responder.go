package preview

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/pet-preview/internal/imagefetch"
	"github.com/JakeFAU/pet-preview/internal/logging"
	"github.com/JakeFAU/pet-preview/internal/metrics"
	"github.com/JakeFAU/pet-preview/internal/pet"
	"github.com/JakeFAU/pet-preview/internal/useragent"
)

// Options configure a Responder.
type Options struct {
	// Store is the pet backend. A nil Store puts the Responder in pass-through mode.
	Store    pet.Store
	Detector useragent.Detector
	Settings Settings
	Strategy string
	Images   imagefetch.Source
	ETags    ETagger
	// Limiter, when set, caps intercepted lookups per matched crawler pattern.
	Limiter       Limiter
	LookupTimeout time.Duration
	Logger        *zap.Logger
}

// Limiter admits or refuses a request for a key without blocking.
type Limiter interface {
	Allow(key string) bool
}

type patternMatcher interface {
	Match(userAgent string) (string, bool)
}

// Responder intercepts crawler requests for pet pages.
type Responder struct {
	resolver *Resolver
	detector useragent.Detector
	limiter  Limiter
	primary  Strategy
	proxy    *ProxyStrategy
	settings Settings
	logger   *zap.Logger
}

// New builds a Responder from opts.
func New(opts Options) (*Responder, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	detector := opts.Detector
	if detector == nil {
		detector = useragent.New(useragent.DefaultPatterns)
	}
	settings := opts.Settings.WithDefaults()
	name, err := ParseStrategy(opts.Strategy)
	if err != nil {
		return nil, err
	}
	if _, err := EmbeddedImageURL(pet.Pet{}, settings); err != nil {
		return nil, err
	}

	rs := &Responder{
		detector: detector,
		limiter:  opts.Limiter,
		settings: settings,
		logger:   logger,
		proxy:    NewProxyStrategy(settings, opts.Images, opts.LookupTimeout),
	}
	if opts.Store != nil {
		rs.resolver = NewResolver(opts.Store, opts.LookupTimeout)
	}
	switch name {
	case StrategyProxy:
		rs.primary = rs.proxy
	case StrategyRedirect:
		rs.primary = NewRedirectStrategy(settings)
	default:
		rs.primary = NewDocumentStrategy(settings, opts.ETags)
	}
	return rs, nil
}

// Enabled reports whether crawler interception is active.
func (rs *Responder) Enabled() bool {
	return rs.resolver != nil
}

// Strategy returns the primary strategy name.
func (rs *Responder) Strategy() string {
	return rs.primary.Name()
}

// Middleware serves crawler previews for /pet/{id} and hands every other request to next unchanged.
func (rs *Responder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rs.Enabled() || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := MatchPetPath(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		pattern, crawler := rs.classify(r.UserAgent())
		if !crawler {
			next.ServeHTTP(w, r)
			return
		}
		metrics.ObserveCrawlerHit(pattern)
		if rs.limiter != nil && !rs.limiter.Allow(pattern) {
			rs.fallback(w, r, rs.primary.Name(), "rate_limited")
			return
		}
		rs.serve(w, r, id, rs.primary)
	})
}

// ImageHandler serves GET /api/og-image/{id} through the proxy strategy for any user agent.
func (rs *Responder) ImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !rs.Enabled() || !ValidID(id) {
			rs.fallback(w, r, rs.proxy.Name(), "invalid_request")
			return
		}
		rs.serve(w, r, id, rs.proxy)
	}
}

func (rs *Responder) classify(userAgent string) (string, bool) {
	if m, ok := rs.detector.(patternMatcher); ok {
		return m.Match(userAgent)
	}
	return "", rs.detector.IsCrawler(userAgent)
}

func (rs *Responder) serve(w http.ResponseWriter, r *http.Request, id string, strategy Strategy) {
	logger := logging.FromContext(r.Context(), rs.logger).With(
		zap.String("pet_id", id),
		zap.String("strategy", strategy.Name()),
		zap.String("user_agent", r.UserAgent()),
	)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("preview panic recovered", zap.Any("panic", rec))
			rs.fallback(w, r, strategy.Name(), "panic")
		}
	}()

	p, err := rs.resolver.Resolve(r.Context(), id)
	if err != nil {
		outcome := Outcome(err)
		switch outcome {
		case "not_found", "missing_image":
			logger.Info("preview fallback", zap.String("outcome", outcome))
		default:
			logger.Warn("preview lookup failed", zap.String("outcome", outcome), zap.Error(err))
		}
		rs.fallback(w, r, strategy.Name(), outcome)
		return
	}

	if err := strategy.Respond(w, r, p); err != nil {
		logger.Warn("preview response failed", zap.Error(err))
		rs.fallback(w, r, strategy.Name(), "response_failure")
		return
	}
	metrics.ObservePreview(strategy.Name(), "served")
	logger.Debug("preview served")
}

// fallback redirects to the static image. The redirect is not cached so a transient failure does not stick
// to a shared link.
func (rs *Responder) fallback(w http.ResponseWriter, r *http.Request, strategy, outcome string) {
	metrics.ObservePreview(strategy, outcome)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, rs.settings.FallbackPath, http.StatusFound)
}

// String describes the responder for startup logs.
func (rs *Responder) String() string {
	return fmt.Sprintf("preview(enabled=%t strategy=%s image_mode=%s)", rs.Enabled(), rs.Strategy(), rs.settings.ImageMode)
}
