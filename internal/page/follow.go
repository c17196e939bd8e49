package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gardencircle/internal/dom"
	"gardencircle/internal/metrics"
	"gardencircle/internal/model"
	"gardencircle/internal/op"
	"gardencircle/internal/render"
)

// followDisplay is the raw text of the three follow elements.
type followDisplay struct {
	label     string
	followers string
	following string
}

func (p *Page) followDisplayLocked() (followDisplay, bool) {
	btn := dom.ByID(p.doc, IDFollowButton)
	if btn == nil {
		return followDisplay{}, false
	}
	return followDisplay{
		label:     dom.Text(btn),
		followers: dom.Text(dom.ByID(p.doc, IDFollowers)),
		following: dom.Text(dom.ByID(p.doc, IDFollowing)),
	}, true
}

func (p *Page) setFollowDisplay(d followDisplay) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if btn := dom.ByID(p.doc, IDFollowButton); btn != nil {
		dom.SetText(btn, d.label)
	}
	if n := dom.ByID(p.doc, IDFollowers); n != nil {
		dom.SetText(n, d.followers)
	}
	if n := dom.ByID(p.doc, IDFollowing); n != nil {
		dom.SetText(n, d.following)
	}
}

func (p *Page) showFollow(st model.FollowState) followDisplay {
	label := p.labels.Follow
	if st.Following {
		label = p.labels.Unfollow
	}
	return followDisplay{
		label:     label,
		followers: fmt.Sprintf(p.labels.Followers, st.Followers),
		following: fmt.Sprintf(p.labels.Following, st.FollowingCount),
	}
}

// followUsername returns the profile's username from the follow form.
func (p *Page) followUsernameLocked() string {
	if form := dom.ByID(p.doc, IDFollowForm); form != nil {
		return dom.GetAttr(form, render.AttrUsername)
	}
	return ""
}

// seedFollow records the relationship the page was delivered with.
func (p *Page) seedFollow() {
	username := p.followUsernameLocked()
	d, ok := p.followDisplayLocked()
	if username == "" || !ok {
		return
	}
	st := model.FollowState{Following: p.isUnfollowLabel(d.label)}
	st.Followers, _ = trailingInt(d.followers)
	st.FollowingCount, _ = trailingInt(d.following)
	p.store.SeedFollow(username, st)
}

func (p *Page) isUnfollowLabel(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), strings.TrimSpace(p.labels.Unfollow))
}

// ToggleFollow follows or unfollows username, as the control's label says.
// An empty username means the profile shown by the page. The label and
// follower count change at once; the server's answer sets the label and
// both counters, and a failure restores all three.
func (p *Page) ToggleFollow(ctx context.Context, username string) (model.FollowState, error) {
	p.mu.Lock()
	if username == "" {
		username = p.followUsernameLocked()
	}
	prev, ok := p.followDisplayLocked()
	p.mu.Unlock()
	if !ok || username == "" {
		return model.FollowState{}, ErrNoFollow
	}

	delta := 1
	if p.isUnfollowLabel(prev.label) {
		delta = -1
	}
	var state model.FollowState
	hooks := op.Hooks{
		OnPending: func() {
			next := prev
			next.label = p.labels.Unfollow
			if delta < 0 {
				next.label = p.labels.Follow
			}
			if n, ok := trailingInt(prev.followers); ok {
				next.followers = fmt.Sprintf(p.labels.Followers, max(0, n+delta))
			}
			p.setFollowDisplay(next)
		},
		OnResolved: func() {
			p.setFollowDisplay(p.showFollow(state))
		},
		OnFailed: func(err error) {
			p.setFollowDisplay(prev)
			slog.Warn("follow failed, display reverted", "username", username, "error", err)
		},
	}
	err := p.ops.Run(ctx, "follow:"+username, hooks, func(ctx context.Context) error {
		var err error
		state, err = p.store.ReconcileFollow(ctx, username, delta)
		return err
	})
	if err != nil {
		if errors.Is(err, op.ErrInFlight) {
			metrics.IncrementRejected()
		}
		return model.FollowState{}, err
	}
	return state, nil
}

// FollowText returns the label and both counters as shown.
func (p *Page) FollowText() (label, followers, following string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, _ := p.followDisplayLocked()
	return strings.TrimSpace(d.label), d.followers, d.following
}
