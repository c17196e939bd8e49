package page

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/net/html"

	"gardencircle/internal/api"
	"gardencircle/internal/dom"
	"gardencircle/internal/feed"
	"gardencircle/internal/metrics"
	"gardencircle/internal/model"
	"gardencircle/internal/op"
	"gardencircle/internal/render"
)

// SubmitPost creates a post and shows it at the top of the feed. Blank
// content is refused before any network call. When the backend accepts
// the post without echoing it, a dynamic page reloads instead.
func (p *Page) SubmitPost(ctx context.Context, np model.NewPost) (model.Post, error) {
	if model.IsBlank(np.Content) {
		return model.Post{}, feed.ErrBlankContent
	}
	np.Author = p.authorOr(np.Author)

	post, err := p.store.Create(ctx, np)
	if errors.Is(err, api.ErrEmptyResponse) {
		slog.Info("post created without a body, reloading feed")
		if p.mode == Dynamic {
			if err := p.Reload(ctx, p.Query()); err != nil && !errors.Is(err, ErrStaleRender) {
				return model.Post{}, err
			}
		}
		return model.Post{}, nil
	}
	if err != nil {
		return model.Post{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearPlaceholdersLocked()
	card := p.renderer.RenderPost(post)
	if !feed.Matches(post.Content, post.Author, p.query) {
		dom.SetAttr(card, "hidden", "")
	}
	dom.Prepend(p.list, card)
	p.cache = nil
	return post, nil
}

// DeletePost removes postID remotely and then from the page. Nothing on
// the page changes if the backend refuses.
func (p *Page) DeletePost(ctx context.Context, postID string) error {
	err := p.ops.Run(ctx, "delete:"+postID, op.Hooks{}, func(ctx context.Context) error {
		return p.store.Remove(ctx, postID)
	})
	if err != nil {
		if errors.Is(err, op.ErrInFlight) {
			metrics.IncrementRejected()
		}
		slog.Warn("delete failed", "post_id", postID, "error", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, card := range cardsByID(p.list, postID) {
		dom.Detach(card)
	}
	p.cache = nil
	if len(postCards(p.list)) == 0 && p.mode == Dynamic {
		p.clearPlaceholdersLocked()
		p.list.AppendChild(p.renderer.Empty())
	}
	return nil
}

// clearPlaceholdersLocked removes the empty state and notices from the
// feed container.
func (p *Page) clearPlaceholdersLocked() {
	var stale []*html.Node
	for c := p.list.FirstChild; c != nil; c = c.NextSibling {
		if dom.HasAnyClass(c, render.ClassEmpty, "notice") {
			stale = append(stale, c)
		}
	}
	for _, n := range stale {
		dom.Detach(n)
	}
}

// PostIDs returns the ids of the rendered cards in display order.
func (p *Page) PostIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	cards := postCards(p.list)
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, dom.GetAttr(c, render.AttrID))
	}
	return ids
}

// HasEmptyState reports whether the feed shows the empty-state placeholder.
func (p *Page) HasEmptyState() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.FirstByClass(p.list, render.ClassEmpty) != nil
}
