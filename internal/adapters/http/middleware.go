package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-Id"
	maxRequestIDLength = 64
)

type requestIDContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

// requestIDMiddleware keeps a caller supplied X-Request-Id when it is a short
// token and mints a new one otherwise.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, requestID)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// accessLogMiddleware writes one http_request line per request, tagged with
// the upload screen or package it addressed. Health checks, metrics scrapes,
// state polls and storage file reads go to debug unless they fail.
func accessLogMiddleware(logger *slog.Logger, storageRoot string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", rec.written,
			"remote_addr", clientHost(r.RemoteAddr),
		}
		attrs = append(attrs, routeAttrs(r.URL.Path)...)

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
		case rec.status >= 400:
			level = slog.LevelWarn
		case isQuietPath(r.URL.Path, storageRoot):
			level = slog.LevelDebug
		}
		logger.Log(r.Context(), level, "http_request", attrs...)
	})
}

// routeAttrs names the screen or package a portal path refers to.
func routeAttrs(path string) []any {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "upload":
		return []any{"screen_id", parts[1]}
	case len(parts) >= 2 && parts[0] == "packages":
		return []any{"package_id", parts[1]}
	case len(parts) >= 3 && parts[0] == "api" && parts[1] == "packages":
		return []any{"package_id", parts[2]}
	}
	return nil
}

func isQuietPath(path, storageRoot string) bool {
	if path == "/healthz" || path == "/metrics" {
		return true
	}
	if strings.HasPrefix(path, "/upload/") && strings.HasSuffix(path, "/state") {
		return true
	}
	return storageRoot != "/" && strings.HasPrefix(path, storageRoot+"/")
}

func clientHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *responseRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
