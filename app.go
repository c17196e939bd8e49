package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/net/html"

	"gardencircle/internal/api"
	"gardencircle/internal/config"
	"gardencircle/internal/dom"
	"gardencircle/internal/feed"
	"gardencircle/internal/localstore"
	"gardencircle/internal/metrics"
	"gardencircle/internal/page"
	"gardencircle/internal/render"
)

//go:embed assets/page.html
var defaultPage []byte

// app holds the single live page and what it was built from. A config
// change rebinds a fresh page; handlers always use the current one.
type app struct {
	prefs *localstore.Store

	mu   sync.RWMutex
	page *page.Page
	cfg  *config.FeedConfig
}

func newApp(ctx context.Context, cfg *config.FeedConfig) (*app, error) {
	backend, err := localstore.Open(ctx, cfg.StoreBackend, cfg.StoreTarget)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	metrics.SetStoreBackend(cfg.StoreBackend)

	a := &app{prefs: localstore.New(backend)}
	if err := a.bind(ctx, cfg); err != nil {
		a.prefs.Close()
		return nil, err
	}
	return a, nil
}

// current returns the live page.
func (a *app) current() *page.Page {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.page
}

// bind builds and starts a page for cfg, then swaps it in.
func (a *app) bind(ctx context.Context, cfg *config.FeedConfig) error {
	src, err := a.source(cfg)
	if err != nil {
		return err
	}
	doc, err := loadDocument(cfg.PageFile)
	if err != nil {
		return err
	}
	p, err := page.New(doc, feed.NewStore(src), page.Options{
		Render: render.Options{
			Texts:      renderTexts(),
			TimeLayout: cfg.TimeLayout,
			Location:   cfg.Location(),
		},
		Labels:             followLabels(),
		Prefs:              a.prefs,
		Author:             cfg.ViewerName,
		Debounce:           cfg.Debounce(),
		CommentConcurrency: cfg.CommentConcurrency,
	})
	if err != nil {
		return fmt.Errorf("bind page: %w", err)
	}
	if err := p.Start(ctx); err != nil {
		slog.Warn("initial render failed", "error", err)
	}

	a.mu.Lock()
	old := a.page
	a.page, a.cfg = p, cfg
	a.mu.Unlock()
	if old != nil {
		old.Close()
	}
	slog.Info("feed ready", "mode", p.Mode(), "local_only", cfg.LocalOnly())
	return nil
}

// rebind reloads configuration and strings and rebuilds the page.
func (a *app) rebind(ctx context.Context) error {
	if err := config.ReloadFeedConfig(); err != nil {
		return err
	}
	return a.bind(ctx, config.GetFeedConfig())
}

func (a *app) source(cfg *config.FeedConfig) (feed.Source, error) {
	if cfg.LocalOnly() {
		return feed.NewLocalSource(a.prefs, cfg.ArticlesFile), nil
	}
	c, err := api.New(cfg.BackendURL, api.Options{
		JSONCreate:   cfg.JSONCreate,
		ArticlesPath: cfg.ArticlesPath,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) close() {
	if p := a.current(); p != nil {
		p.Close()
	}
	if err := a.prefs.Close(); err != nil {
		slog.Warn("closing local store", "error", err)
	}
}

// loadDocument parses the page markup from path, or the built-in page.
func loadDocument(path string) (*html.Node, error) {
	data := defaultPage
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", path, err)
		}
		data = b
	}
	doc, err := dom.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

func renderTexts() render.Texts {
	t := render.DefaultTexts()
	t.EmptyTitle = config.I18n(config.KeyEmptyTitle)
	t.EmptyHint = config.I18n(config.KeyEmptyHint)
	t.LoadFailed = config.I18n(config.KeyLoadFailed)
	t.ArticlesFailed = config.I18n(config.KeyArticlesFailed)
	t.ImageAlt = config.I18n(config.KeyImageAlt)
	t.EmptyMarkup = config.I18nOptional(config.KeyEmptyMarkup)
	return t
}

func followLabels() page.Labels {
	return page.Labels{
		Follow:    config.I18n(config.KeyFollow),
		Unfollow:  config.I18n(config.KeyUnfollow),
		Followers: config.I18n(config.KeyFollowers),
		Following: config.I18n(config.KeyFollowing),
	}
}
