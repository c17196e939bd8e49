package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gardencircle/internal/config"
	"gardencircle/internal/metrics"
)

// Request body size limits
const (
	maxBodySize   = 32 * 1024       // 32KB for form posts
	maxUploadSize = 8 * 1024 * 1024 // 8MB for posts with an image
)

// limitBody wraps an HTTP handler to limit request body size
func limitBody(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}

// securityHeaders wraps an HTTP handler to add security headers
func securityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Uploaded images are served from /static, so same-origin images
		// are enough.
		csp := "default-src 'self'; " +
			"img-src 'self' data:; " +
			"style-src 'self' 'unsafe-inline'; " +
			"script-src 'self'"
		w.Header().Set("Content-Security-Policy", csp)
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next(w, r)
	}
}

func routes(a *app) http.Handler {
	mux := http.NewServeMux()

	fs := http.FileServer(http.Dir("./static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))

	mux.HandleFunc("/", securityHeaders(methodOnly(http.MethodGet, a.htmlPageHandler)))
	mux.HandleFunc("/html/posts", securityHeaders(methodOnly(http.MethodPost, limitBody(a.htmlPostsHandler, maxUploadSize))))
	mux.HandleFunc("/html/action", securityHeaders(methodOnly(http.MethodPost, limitBody(a.htmlActionHandler, maxBodySize))))
	mux.HandleFunc("/html/search", securityHeaders(methodOnly(http.MethodGet, a.htmlSearchHandler)))
	mux.HandleFunc("/html/theme", securityHeaders(methodOnly(http.MethodPost, a.htmlThemeHandler)))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/metrics", metrics.Handler)

	return a.requestLogger(mux)
}

// watchConfig rebinds the page when the feed config or the strings change.
func watchConfig(ctx context.Context, a *app) {
	w, err := config.NewWatcher()
	if err != nil {
		slog.Warn("config watching disabled", "error", err)
		return
	}
	rebind := func() error { return a.rebind(ctx) }
	if err := w.Add(config.FeedConfigPath(), rebind); err != nil {
		slog.Debug("not watching feed config", "error", err)
	}
	if err := w.Add(config.I18nPath(), func() error {
		if err := config.ReloadI18nConfig(); err != nil {
			return err
		}
		return rebind()
	}); err != nil {
		slog.Debug("not watching i18n strings", "error", err)
	}
	go w.Run(ctx)
}

func main() {
	InitLogger()
	config.InitI18n()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, config.GetFeedConfig())
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()
	watchConfig(ctx, a)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           routes(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
