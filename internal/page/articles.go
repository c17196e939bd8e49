package page

import (
	"context"
	"fmt"

	"gardencircle/internal/dom"
)

// LoadArticles fills the articles container, when the page has one. A
// failed read shows the muted notice in its place.
func (p *Page) LoadArticles(ctx context.Context) error {
	p.mu.Lock()
	box := dom.ByID(p.doc, IDArticles)
	p.mu.Unlock()
	if box == nil {
		return nil
	}

	list, err := p.store.Articles(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	dom.RemoveChildren(box)
	if err != nil {
		box.AppendChild(p.renderer.RenderNotice("p", p.renderer.Texts().ArticlesFailed))
		return fmt.Errorf("load articles: %w", err)
	}
	for _, n := range p.renderer.RenderArticles(list) {
		box.AppendChild(n)
	}
	return nil
}
