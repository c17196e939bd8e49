package page

import (
	"context"
	"log/slog"

	"golang.org/x/net/html/atom"

	"gardencircle/internal/dom"
	"gardencircle/internal/localstore"
)

// Theme returns the saved theme, light when nothing is saved.
func (p *Page) Theme(ctx context.Context) string {
	if p.prefs == nil {
		return localstore.ThemeLight
	}
	return p.prefs.Theme(ctx)
}

// ApplyTheme mirrors the saved theme to data-theme on the root element.
func (p *Page) ApplyTheme(ctx context.Context) {
	theme := p.Theme(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setThemeLocked(theme)
}

// ToggleTheme switches between light and dark and saves the choice. The
// page shows the new theme even if saving fails.
func (p *Page) ToggleTheme(ctx context.Context) (string, error) {
	p.mu.Lock()
	current := dom.GetAttr(dom.ByTag(p.doc, atom.Html), "data-theme")
	p.mu.Unlock()
	if current == "" {
		current = p.Theme(ctx)
	}
	next := localstore.ThemeDark
	if current == localstore.ThemeDark {
		next = localstore.ThemeLight
	}
	p.mu.Lock()
	p.setThemeLocked(next)
	p.mu.Unlock()

	if p.prefs == nil {
		return next, nil
	}
	if err := p.prefs.SetTheme(ctx, next); err != nil {
		slog.Warn("theme not saved", "theme", next, "error", err)
		return next, err
	}
	return next, nil
}

func (p *Page) setThemeLocked(theme string) {
	if root := dom.ByTag(p.doc, atom.Html); root != nil {
		dom.SetAttr(root, "data-theme", theme)
	}
}
