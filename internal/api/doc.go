// Package api hosts the HTTP server that fronts the pet site. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/og-image/{id} for the preview image proxy.
//   - everything else flows through the crawler preview middleware to the
//     application pass-through handler.
package api
