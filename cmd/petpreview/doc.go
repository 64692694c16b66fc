// Package main hosts the pet preview service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, readiness and metrics endpoints, the preview image proxy
//     (/api/og-image/{id}), and a catch-all route that runs the crawler preview middleware in front of the
//     application pass-through handler.
//   - Preview path: a request for /pet/{hex-id} whose User-Agent matches the crawler list is resolved with a single
//     bounded point lookup against the configured backend (PostgREST, Postgres, SQLite or an in-memory fixture set).
//     A found record with an image yields the Open Graph document (or the proxied image / a redirect, depending on
//     preview.strategy); every failure yields a 302 to the static fallback image.
//   - Pass-through: everything else reaches the real frontend through a reverse proxy (upstream.url) or the SPA
//     file server (upstream.static_dir). Browsers never see the preview path.
//   - Configuration & plumbing: Viper populates config from a YAML file and PREVIEW_* env vars; zap provides
//     structured logging with per-request ids; Prometheus metrics are exported via the metrics middleware and
//     /metrics handler. OpenTelemetry tracing (telemetry.enabled) adds a server span per request and a span per
//     pet lookup.
//
// Operational notes:
//   - A backend without connection parameters is not fatal: the service logs a warning and passes every request
//     through, so the site keeps working while previews are disabled.
//   - The crawler list can live in a YAML file (crawlers.file); edits are picked up without a restart.
//   - Image URLs may use http(s)://, gs:// (preview.gcs_enabled) or file:// confined to preview.image_dir.
//   - Image fetches are paced per host (limits.image_host_rps). Per-crawler lookup limits are opt-in
//     (limits.lookup_rps, 0 by default).
//   - Set preview.site_url in production; without it preview URLs are built from the request Host.
//   - The process reacts to SIGTERM by draining in-flight requests within server.shutdown_timeout.
//
// Quick checklist:
//   - Configure env vars: PREVIEW_BACKEND_KIND, PREVIEW_BACKEND_URL + PREVIEW_BACKEND_ANON_KEY (postgrest) or
//     PREVIEW_BACKEND_DSN (postgres/sqlite), PREVIEW_PREVIEW_SITE_URL, and PREVIEW_UPSTREAM_URL or
//     PREVIEW_UPSTREAM_STATIC_DIR.
//   - Run locally: go run ./cmd/petpreview serve --config config.yaml
//   - Check a record: go run ./cmd/petpreview render <pet-id>
//   - Check a User-Agent: go run ./cmd/petpreview classify "WhatsApp/2.23.20.0"
package main
