package httpapi

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
	"github.com/justinlawrence/disc-golf-tracker/internal/metrics"
)

// LoggingMiddleware wraps the handler with request logging, request ID
// support, and metrics.
func LoggingMiddleware(baseLogger *slog.Logger, recorder *metrics.Recorder, next http.Handler) http.Handler {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := sanitizeRequestID(r.Header.Get("X-Request-ID"))
		w.Header().Set("X-Request-ID", reqID)

		logger := baseLogger.With(
			slog.String(logging.FieldRequestID, reqID),
			slog.String(logging.FieldMethod, r.Method),
			slog.String(logging.FieldPath, r.URL.Path),
		)

		ctx := logging.WithLogger(r.Context(), logger)
		ctx = withRequestID(ctx, reqID)
		r = r.WithContext(ctx)
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		recorder.RecordHTTPRequest(r.Method, normalizePath(r.URL.Path), ww.status, duration)

		logger.Info("request complete",
			slog.Int(logging.FieldStatusCode, ww.status),
			slog.Int64(logging.FieldDurationMS, duration.Milliseconds()),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func sanitizeRequestID(incoming string) string {
	if incoming != "" && requestIDPattern.MatchString(incoming) {
		return incoming
	}
	return generateRequestID()
}

// normalizePath collapses entity ids so metric labels stay low-cardinality.
func normalizePath(path string) string {
	switch {
	case path == "" || path == "/health" || path == "/ready" ||
		path == "/players" || path == "/courses" || path == "/games" || path == "/imports":
		return path
	case strings.HasPrefix(path, "/players/"):
		return "/players/:id"
	case strings.HasPrefix(path, "/courses/"):
		if strings.HasSuffix(path, "/best-round") {
			return "/courses/:id/best-round"
		}
		return "/courses/:id"
	case strings.HasPrefix(path, "/games/"):
		for _, sub := range []string{"scores", "hole", "finish", "snapshot", "export"} {
			if strings.HasSuffix(path, "/"+sub) {
				return "/games/:id/" + sub
			}
		}
		return "/games/:id"
	case strings.HasPrefix(path, "/sessions/"):
		if strings.Contains(path, "/messages") {
			return "/sessions/:id/messages"
		}
		return "/sessions/:id/subscribers"
	default:
		return path
	}
}
