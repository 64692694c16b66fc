package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/pet-preview/internal/logging"
	"github.com/JakeFAU/pet-preview/internal/metrics"
	"github.com/JakeFAU/pet-preview/internal/pet"
	"github.com/JakeFAU/pet-preview/internal/preview"
	"github.com/JakeFAU/pet-preview/internal/telemetry"
)

// IDGenerator produces request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Deps bundles the collaborators of a Server.
type Deps struct {
	Responder *preview.Responder
	// App serves every request the responder does not intercept.
	App    http.Handler
	Pinger pet.Pinger
	IDGen  IDGenerator
	Logger *zap.Logger
	// ReadyTimeout bounds the backend ping behind /readyz.
	ReadyTimeout time.Duration
}

// Server wires HTTP handlers to the preview responder and the application.
type Server struct {
	router       chi.Router
	responder    *preview.Responder
	pinger       pet.Pinger
	logger       *zap.Logger
	readyTimeout time.Duration
}

// NewServer constructs a Server with middleware and routes.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app := d.App
	if app == nil {
		app = http.NotFoundHandler()
	}
	readyTimeout := d.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Second
	}
	s := &Server{
		responder:    d.Responder,
		pinger:       d.Pinger,
		logger:       logger,
		readyTimeout: readyTimeout,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(d.IDGen, logger))
	r.Use(telemetry.Middleware)
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if d.Responder != nil {
		image := d.Responder.ImageHandler()
		r.Get(preview.ImagePath+"{id}", image)
		r.Head(preview.ImagePath+"{id}", image)
		r.Handle("/*", d.Responder.Middleware(app))
	} else {
		r.Handle("/*", app)
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready in pass-through mode too; a missing backend is a supported configuration.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ready", "preview": "disabled"}
	if s.responder != nil && s.responder.Enabled() {
		body["preview"] = s.responder.Strategy()
	}
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			logging.FromContext(r.Context(), s.logger).Warn("backend not ready", zap.Error(err))
			body["status"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func requestIDMiddleware(gen IDGenerator, base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !validRequestID(reqID) {
				reqID = newRequestID(gen)
			}
			w.Header().Set(requestIDHeader, reqID)
			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			ctx = logging.WithContext(ctx, base.With(zap.String("request_id", reqID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context(), nil).Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.FromContext(r.Context(), nil).Error("panic recovered", zap.Any("error", rec), zap.Stack("stack"))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestID returns the request identifier assigned by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

// Flush and Hijack go through http.ResponseController so wrapped writers further down still qualify.
func (rw *responseWriter) Flush() {
	_ = http.NewResponseController(rw.ResponseWriter).Flush() //nolint:errcheck // best effort
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("hijack connection: %w", err)
	}
	return conn, buf, nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // headers already sent
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
