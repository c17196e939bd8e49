package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gardencircle/internal/dom"
	"gardencircle/internal/feed"
	"gardencircle/internal/metrics"
	"gardencircle/internal/model"
	"gardencircle/internal/op"
	"gardencircle/internal/render"
)

// ToggleLike flips the viewer's like on postID. The control's current
// state is the starting point: the flipped state shows immediately, the
// server's answer replaces it, and a failure puts the original back. A
// toggle on a post whose previous toggle is still pending returns
// op.ErrInFlight and changes nothing.
func (p *Page) ToggleLike(ctx context.Context, postID string) (model.LikeState, error) {
	p.mu.Lock()
	prev, ok := p.likeDisplayLocked(postID)
	p.mu.Unlock()
	if !ok {
		return model.LikeState{}, fmt.Errorf("like %s: %w", postID, feed.ErrPostNotFound)
	}

	delta := 1
	if prev.Liked {
		delta = -1
	}
	var state model.LikeState
	hooks := op.Hooks{
		OnPending: func() {
			p.setLikeDisplay(postID, model.LikeState{Liked: !prev.Liked, Count: max(0, prev.Count+delta)})
		},
		OnResolved: func() {
			p.setLikeDisplay(postID, state)
		},
		OnFailed: func(err error) {
			p.setLikeDisplay(postID, prev)
			slog.Warn("like failed, display reverted", "post_id", postID, "error", err)
		},
	}
	err := p.ops.Run(ctx, "like:"+postID, hooks, func(ctx context.Context) error {
		var err error
		state, err = p.store.ReconcileLike(ctx, postID, delta)
		return err
	})
	if err != nil {
		if errors.Is(err, op.ErrInFlight) {
			metrics.IncrementRejected()
		}
		return model.LikeState{}, err
	}
	return state, nil
}

// likeDisplayLocked reads the like state shown for postID.
func (p *Page) likeDisplayLocked(postID string) (model.LikeState, bool) {
	buttons := byPost(p.list, postID, render.LikeClasses...)
	if len(buttons) == 0 {
		return model.LikeState{}, false
	}
	st := model.LikeState{Liked: dom.HasClass(buttons[0], render.ClassLiked)}
	if counts := byPost(p.list, postID, render.ClassLikeCount); len(counts) > 0 {
		st.Count, _ = strconv.Atoi(strings.TrimSpace(dom.Text(counts[0])))
	}
	return st, true
}

// setLikeDisplay writes st to every like control and counter of postID.
func (p *Page) setLikeDisplay(postID string, st model.LikeState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, btn := range byPost(p.list, postID, render.LikeClasses...) {
		dom.ToggleClass(btn, render.ClassLiked, st.Liked)
		dom.SetAttr(btn, "aria-pressed", strconv.FormatBool(st.Liked))
		if glyph := dom.FirstByClass(btn, render.GlyphClasses...); glyph != nil {
			dom.SetText(glyph, render.Glyph(st.Liked))
		}
	}
	for _, n := range byPost(p.list, postID, render.ClassLikeCount) {
		dom.SetText(n, strconv.Itoa(max(0, st.Count)))
	}
}

// LikeDisplay returns the like state currently shown for postID.
func (p *Page) LikeDisplay(postID string) (model.LikeState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.likeDisplayLocked(postID)
}
