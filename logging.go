package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"gardencircle/internal/metrics"
)

type contextKey string

const requestKey contextKey = "feed_request"

// InitLogger installs a JSON logger on stdout. LOG_LEVEL picks the level
// (debug/info/warn/error, default info).
func InitLogger() {
	setLogger(os.Stdout, parseLevel(os.Getenv("LOG_LEVEL")))
}

func setLogger(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
	slog.Info("logger initialized", "level", level.String())
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// feedRequest is what one request did to the page, filled in by the
// handlers and written out as a single line when the request ends.
type feedRequest struct {
	id     string
	mode   string
	action string
	key    string
}

// validRequestID bounds inbound X-Request-ID values we echo back.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); validRequestID.MatchString(id) {
		return id
	}
	return ulid.Make().String()
}

func requestFrom(ctx context.Context) *feedRequest {
	fr, _ := ctx.Value(requestKey).(*feedRequest)
	return fr
}

// noteAction records the delegated event a handler dispatched.
func noteAction(ctx context.Context, action, key string) {
	if fr := requestFrom(ctx); fr != nil {
		fr.action = action
		fr.key = key
	}
}

// LoggerFromContext returns the default logger tagged with the request id
// and the page mode the request was served against.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	fr := requestFrom(ctx)
	if fr == nil {
		return slog.Default()
	}
	return slog.Default().With("request_id", fr.id, "mode", fr.mode)
}

// requestLogger tags each page request with an id, echoes it in
// X-Request-ID and logs one line with the outcome, the page mode and the
// action that ran. Probes and static files pass straight through.
func (a *app) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		fr := &feedRequest{id: requestID(r), mode: a.current().Mode().String()}
		w.Header().Set("X-Request-ID", fr.id)
		sw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestKey, fr)))

		attrs := []any{
			"request_id", fr.id,
			"method", r.Method,
			"path", r.URL.Path,
			"mode", fr.mode,
			"fragment", isFragmentRequest(r),
			"status", sw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if fr.action != "" {
			attrs = append(attrs, "action", fr.action, "key", fr.key)
		}
		metrics.IncrementRequests()
		switch {
		case sw.statusCode >= 500:
			metrics.IncrementErrors()
			slog.Error("feed request failed", attrs...)
		case sw.statusCode == http.StatusConflict:
			slog.Info("feed request rejected while pending", attrs...)
		case sw.statusCode >= 400:
			slog.Warn("feed request refused", attrs...)
		default:
			slog.Debug("feed request served", attrs...)
		}
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
