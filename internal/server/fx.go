// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pet-preview/internal/api"
	"github.com/JakeFAU/pet-preview/internal/config"
	"github.com/JakeFAU/pet-preview/internal/hash/sha256"
	"github.com/JakeFAU/pet-preview/internal/id/uuid"
	"github.com/JakeFAU/pet-preview/internal/imagefetch"
	"github.com/JakeFAU/pet-preview/internal/logging"
	"github.com/JakeFAU/pet-preview/internal/passthrough"
	"github.com/JakeFAU/pet-preview/internal/pet"
	"github.com/JakeFAU/pet-preview/internal/policy/ratelimit"
	"github.com/JakeFAU/pet-preview/internal/preview"
	gcsimages "github.com/JakeFAU/pet-preview/internal/storage/gcs"
	"github.com/JakeFAU/pet-preview/internal/storage/local"
	"github.com/JakeFAU/pet-preview/internal/storage/memory"
	pgstore "github.com/JakeFAU/pet-preview/internal/storage/postgres"
	"github.com/JakeFAU/pet-preview/internal/storage/postgrest"
	sqlitestore "github.com/JakeFAU/pet-preview/internal/storage/sqlite"
	"github.com/JakeFAU/pet-preview/internal/telemetry"
	"github.com/JakeFAU/pet-preview/internal/useragent"
)

// App contains the application's dependencies.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	apiServer  *api.Server
	responder  *preview.Responder
	store      pet.Store
	detector   useragent.Detector
	watcher    *useragent.Watcher
	httpClient *http.Client
	storage    *storage.Client
	pgStore    *pgstore.PetStore
	sqlite     *sqlitestore.PetStore
	tracer     *sdktrace.TracerProvider
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Only non-sensitive fields; DSNs and keys stay out of logs.
	type SanitizedConfig struct {
		ServerPort int    `json:"server_port"`
		Backend    string `json:"backend"`
		Configured bool   `json:"configured"`
		Strategy   string `json:"strategy"`
		ImageMode  string `json:"image_mode"`
	}
	safeCfg := SanitizedConfig{
		ServerPort: cfg.Server.Port,
		Backend:    cfg.Backend.Kind,
		Configured: cfg.Backend.Configured(),
		Strategy:   cfg.Preview.Strategy,
		ImageMode:  cfg.Preview.ImageMode,
	}
	logger.Info("creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:        cfg,
		logger:     logger,
		httpClient: newHTTPClient(),
	}, nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	app.logger.Info("building application dependencies")
	if err := setupTracing(ctx, app); err != nil {
		return nil, err
	}
	if err := setupStore(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if err := setupDetector(app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	images, err := setupImages(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	var limiter preview.Limiter
	if cfg.Limits.LookupRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{RPS: cfg.Limits.LookupRPS, Burst: cfg.Limits.LookupBurst})
	}
	app.responder, err = preview.New(preview.Options{
		Store:         app.store,
		Detector:      app.detector,
		Settings:      PreviewSettings(cfg),
		Strategy:      cfg.Preview.Strategy,
		Images:        images,
		ETags:         sha256.New(),
		Limiter:       limiter,
		LookupTimeout: cfg.Preview.LookupTimeout,
		Logger:        logger.Named("preview"),
	})
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("preview responder init failed: %w", err)
	}
	app.logger.Info("preview responder ready", zap.Stringer("responder", app.responder))
	if cfg.Preview.SiteURL == "" && app.responder.Enabled() {
		app.logger.Warn("preview.site_url not set; preview urls are derived from each request's host")
	}

	site, err := passthrough.New(passthrough.Config{
		URL:          cfg.Upstream.URL,
		StaticDir:    cfg.Upstream.StaticDir,
		FallbackPath: cfg.Preview.FallbackPath,
	}, logger.Named("passthrough"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("passthrough init failed: %w", err)
	}

	var pinger pet.Pinger
	if p, ok := app.store.(pet.Pinger); ok {
		pinger = p
	}
	app.apiServer = api.NewServer(api.Deps{
		Responder: app.responder,
		App:       site,
		Pinger:    pinger,
		IDGen:     uuid.New(),
		Logger:    logger.Named("api"),
	})
	return app, nil
}

// PreviewSettings maps configuration onto responder settings.
func PreviewSettings(cfg *config.Config) preview.Settings {
	return preview.Settings{
		SiteURL:          cfg.Preview.SiteURL,
		SiteName:         cfg.Preview.SiteName,
		FallbackPath:     cfg.Preview.FallbackPath,
		ImageMode:        preview.ImageMode(cfg.Preview.ImageMode),
		TransformURL:     cfg.Preview.TransformURL,
		ImageWidth:       cfg.Preview.ImageWidth,
		ImageQuality:     cfg.Preview.ImageQuality,
		DescriptionLimit: cfg.Preview.DescriptionLimit,
		CacheMaxAge:      cfg.Preview.CacheMaxAge,
		ImageCacheMaxAge: cfg.Preview.ImageCacheMaxAge,
		MaxImageBytes:    cfg.Preview.MaxImageBytes,
	}.WithDefaults()
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	transport.IdleConnTimeout = 90 * time.Second
	transport.DialContext = (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	// Lookups and image fetches are bounded by their request context.
	return &http.Client{Transport: transport}
}

func setupTracing(ctx context.Context, app *App) error {
	t := app.cfg.Telemetry
	if !t.Enabled {
		return nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: t.ServiceName,
		SampleRatio: t.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	app.tracer = tp
	app.logger.Info("tracing enabled", zap.String("service", t.ServiceName), zap.Float64("sample_ratio", t.SampleRatio))
	return nil
}

func setupStore(ctx context.Context, app *App) error {
	b := app.cfg.Backend
	if !b.Configured() {
		app.logger.Warn("backend connection parameters missing; crawler previews disabled, all requests pass through",
			zap.String("backend", b.Kind))
		return nil
	}
	switch b.Kind {
	case config.BackendPostgREST:
		store, err := postgrest.New(app.httpClient, postgrest.Config{BaseURL: b.URL, APIKey: b.AnonKey, Table: b.Table})
		if err != nil {
			return fmt.Errorf("postgrest store init failed: %w", err)
		}
		app.store = store
		app.logger.Info("using postgrest backend", zap.String("url", b.URL), zap.String("table", b.Table))
	case config.BackendPostgres:
		store, err := pgstore.NewPetStore(ctx, pgstore.PetStoreConfig{DSN: b.DSN, Table: b.Table, MaxConns: b.MaxConns})
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		app.pgStore = store
		app.store = store
		app.logger.Info("using postgres backend", zap.String("table", b.Table))
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, b.DSN, b.Table)
		if err != nil {
			return fmt.Errorf("sqlite store init failed: %w", err)
		}
		app.sqlite = store
		app.store = store
		app.logger.Info("using sqlite backend", zap.String("path", b.DSN))
	case config.BackendMemory:
		if b.DSN == "" {
			app.store = memory.NewPetStore()
			app.logger.Info("using empty in-memory backend")
			return nil
		}
		store, err := memory.LoadFixtures(b.DSN)
		if err != nil {
			return fmt.Errorf("memory store init failed: %w", err)
		}
		app.store = store
		app.logger.Info("using in-memory backend", zap.String("fixtures", b.DSN))
	default:
		return fmt.Errorf("unsupported backend kind %q", b.Kind)
	}
	return nil
}

func setupDetector(app *App) error {
	c := app.cfg.Crawlers
	switch {
	case c.File != "":
		w, err := useragent.NewWatcher(c.File, app.logger.Named("crawlers"))
		if err != nil {
			return fmt.Errorf("crawler list init failed: %w", err)
		}
		app.watcher = w
		app.detector = w
		app.logger.Info("crawler list loaded from file", zap.String("path", c.File),
			zap.Strings("patterns", w.Classifier().Patterns()))
	case len(c.Patterns) > 0:
		app.detector = useragent.New(c.Patterns)
		app.logger.Info("crawler list loaded from config", zap.Strings("patterns", c.Patterns))
	default:
		app.detector = useragent.New(useragent.DefaultPatterns)
		app.logger.Info("using default crawler list")
	}
	return nil
}

func setupImages(ctx context.Context, app *App) (imagefetch.Source, error) {
	var waiter imagefetch.Waiter
	if app.cfg.Limits.ImageHostRPS > 0 {
		waiter = ratelimit.New(ratelimit.Config{RPS: app.cfg.Limits.ImageHostRPS, Burst: app.cfg.Limits.ImageHostBurst})
	}
	web := imagefetch.NewHTTPSource(app.httpClient, app.cfg.Preview.ImageUserAgent)
	mux := imagefetch.NewMux().Handle(imagefetch.Throttle(web, waiter), "http", "https")
	if dir := app.cfg.Preview.ImageDir; dir != "" {
		src, err := local.New(local.Config{BaseDir: dir})
		if err != nil {
			return nil, fmt.Errorf("local image source init failed: %w", err)
		}
		mux.Handle(src, "file")
		app.logger.Info("local image source enabled", zap.String("dir", dir))
	}
	if !app.cfg.Preview.GCSEnabled {
		return mux, nil
	}
	var err error
	app.storage, err = storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	src, err := gcsimages.New(app.storage)
	if err != nil {
		return nil, fmt.Errorf("gcs image source init failed: %w", err)
	}
	mux.Handle(src, "gs")
	app.logger.Info("gcs image source enabled")
	return mux, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// RenderPreview resolves id and renders the document a crawler would receive.
func (a *App) RenderPreview(ctx context.Context, id string) ([]byte, error) {
	if a.store == nil {
		return nil, errors.New("backend is not configured")
	}
	p, err := preview.NewResolver(a.store, a.cfg.Preview.LookupTimeout).Resolve(ctx, id)
	if err != nil {
		return nil, err //nolint:wrapcheck // resolver errors already carry the pet id
	}
	meta, err := preview.BuildMeta(p, PreviewSettings(a.cfg))
	if err != nil {
		return nil, fmt.Errorf("build preview metadata: %w", err)
	}
	return preview.Render(meta)
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln, plus the crawler list watcher when configured, until ctx is done.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	return err
}

// Close releases backend connections and flushes the logger.
func (a *App) Close() {
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
}

func (a *App) closeInfrastructure() {
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.pgStore != nil {
		a.pgStore.Close()
		a.pgStore = nil
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.logger.Warn("sqlite close failed", zap.Error(err))
		}
		a.sqlite = nil
	}
	a.httpClient.CloseIdleConnections()
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
		a.tracer = nil
	}
}
