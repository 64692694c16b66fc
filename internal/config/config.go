// Package config loads and validates preview service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend kinds accepted in backend.kind.
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Crawlers  CrawlersConfig  `mapstructure:"crawlers"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig selects and addresses the pet data store.
type BackendConfig struct {
	Kind     string `mapstructure:"kind"`
	URL      string `mapstructure:"url"`
	AnonKey  string `mapstructure:"anon_key"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Configured reports whether the connection parameters required by Kind are present.
// An unconfigured backend puts the preview responder in pass-through mode.
func (b BackendConfig) Configured() bool {
	switch b.Kind {
	case BackendPostgREST:
		return strings.TrimSpace(b.URL) != "" && strings.TrimSpace(b.AnonKey) != ""
	case BackendPostgres, BackendSQLite:
		return strings.TrimSpace(b.DSN) != ""
	case BackendMemory:
		// DSN optionally names a YAML fixtures file.
		return true
	default:
		return false
	}
}

// PreviewConfig shapes crawler responses.
type PreviewConfig struct {
	SiteURL          string        `mapstructure:"site_url"`
	SiteName         string        `mapstructure:"site_name"`
	FallbackPath     string        `mapstructure:"fallback_path"`
	Strategy         string        `mapstructure:"strategy"`
	ImageMode        string        `mapstructure:"image_mode"`
	TransformURL     string        `mapstructure:"transform_url"`
	ImageWidth       int           `mapstructure:"image_width"`
	ImageQuality     int           `mapstructure:"image_quality"`
	DescriptionLimit int           `mapstructure:"description_limit"`
	LookupTimeout    time.Duration `mapstructure:"lookup_timeout"`
	CacheMaxAge      time.Duration `mapstructure:"cache_max_age"`
	ImageCacheMaxAge time.Duration `mapstructure:"image_cache_max_age"`
	MaxImageBytes    int64         `mapstructure:"max_image_bytes"`
	ImageUserAgent   string        `mapstructure:"image_user_agent"`
	GCSEnabled       bool          `mapstructure:"gcs_enabled"`
	ImageDir         string        `mapstructure:"image_dir"`
}

// CrawlersConfig lists crawler user-agent substrings. When File is set it wins and is watched for changes.
type CrawlersConfig struct {
	Patterns []string `mapstructure:"patterns"`
	File     string   `mapstructure:"file"`
}

// UpstreamConfig describes the application served to everything that is not a crawler preview.
type UpstreamConfig struct {
	URL       string `mapstructure:"url"`
	StaticDir string `mapstructure:"static_dir"`
}

// LimitsConfig paces backend lookups per crawler and image fetches per host. Zero RPS disables a limit.
type LimitsConfig struct {
	LookupRPS      float64 `mapstructure:"lookup_rps"`
	LookupBurst    int     `mapstructure:"lookup_burst"`
	ImageHostRPS   float64 `mapstructure:"image_host_rps"`
	ImageHostBurst int     `mapstructure:"image_host_burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("backend.kind", BackendPostgREST)
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anon_key", "")
	v.SetDefault("backend.dsn", "")
	v.SetDefault("backend.table", "pets")
	v.SetDefault("backend.max_conns", 4)
	v.SetDefault("preview.site_url", "")
	v.SetDefault("preview.site_name", "The A Pawstrophe")
	v.SetDefault("preview.fallback_path", "/favicon.png")
	v.SetDefault("preview.strategy", "document")
	v.SetDefault("preview.image_mode", "proxy")
	v.SetDefault("preview.transform_url", "")
	v.SetDefault("preview.image_width", 1200)
	v.SetDefault("preview.image_quality", 75)
	v.SetDefault("preview.description_limit", 160)
	v.SetDefault("preview.lookup_timeout", 4*time.Second)
	v.SetDefault("preview.cache_max_age", time.Hour)
	v.SetDefault("preview.image_cache_max_age", 24*time.Hour)
	v.SetDefault("preview.max_image_bytes", 1<<20)
	v.SetDefault("preview.image_user_agent", "pet-preview/1.0")
	v.SetDefault("preview.gcs_enabled", false)
	v.SetDefault("preview.image_dir", "")
	v.SetDefault("crawlers.patterns", []string{})
	v.SetDefault("crawlers.file", "")
	v.SetDefault("upstream.url", "")
	v.SetDefault("upstream.static_dir", "")
	v.SetDefault("limits.lookup_rps", 0.0)
	v.SetDefault("limits.lookup_burst", 40)
	v.SetDefault("limits.image_host_rps", 10.0)
	v.SetDefault("limits.image_host_burst", 20)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "pet-preview")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits. Missing backend connection parameters are not an
// error; see BackendConfig.Configured.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Backend.Kind {
	case BackendPostgREST, BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("backend.kind %q is not one of postgrest, postgres, sqlite, memory", c.Backend.Kind)
	}
	if c.Backend.URL != "" {
		if err := requireHTTPURL("backend.url", c.Backend.URL); err != nil {
			return err
		}
	}
	if c.Preview.SiteURL != "" {
		if err := requireHTTPURL("preview.site_url", c.Preview.SiteURL); err != nil {
			return err
		}
	}
	if !strings.HasPrefix(c.Preview.FallbackPath, "/") {
		return fmt.Errorf("preview.fallback_path must be an absolute path")
	}
	switch c.Preview.Strategy {
	case "document", "proxy", "redirect":
	default:
		return fmt.Errorf("preview.strategy %q is not one of document, proxy, redirect", c.Preview.Strategy)
	}
	switch c.Preview.ImageMode {
	case "proxy", "direct":
	case "transform":
		if c.Preview.TransformURL == "" {
			return fmt.Errorf("preview.transform_url must be set when preview.image_mode is transform")
		}
	default:
		return fmt.Errorf("preview.image_mode %q is not one of proxy, transform, direct", c.Preview.ImageMode)
	}
	if c.Preview.DescriptionLimit <= 0 {
		return fmt.Errorf("preview.description_limit must be > 0")
	}
	if c.Preview.LookupTimeout <= 0 {
		return fmt.Errorf("preview.lookup_timeout must be > 0")
	}
	if c.Preview.MaxImageBytes <= 0 {
		return fmt.Errorf("preview.max_image_bytes must be > 0")
	}
	if c.Limits.LookupRPS < 0 || c.Limits.ImageHostRPS < 0 {
		return fmt.Errorf("limits rps values must be >= 0")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	if c.Upstream.URL != "" && c.Upstream.StaticDir != "" {
		return fmt.Errorf("upstream.url and upstream.static_dir are mutually exclusive")
	}
	if c.Upstream.URL != "" {
		if err := requireHTTPURL("upstream.url", c.Upstream.URL); err != nil {
			return err
		}
	}
	return nil
}

func requireHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url", key)
	}
	return nil
}
