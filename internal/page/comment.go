package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"gardencircle/internal/dom"
	"gardencircle/internal/feed"
	"gardencircle/internal/metrics"
	"gardencircle/internal/model"
	"gardencircle/internal/op"
	"gardencircle/internal/render"
)

// LoadComments reads postID's comments and shows the ones not yet in its
// list, in server order, ahead of any added since the post was rendered.
func (p *Page) LoadComments(ctx context.Context, postID string) error {
	comments, err := p.store.Comments(ctx, postID)
	if err != nil {
		return fmt.Errorf("comments for %s: %w", postID, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertComments(postID, comments)
	return nil
}

func (p *Page) insertComments(postID string, comments []model.Comment) {
	for _, list := range byPost(p.list, postID, render.ClassCommentList) {
		seen := make(map[string]bool)
		for c := list.FirstChild; c != nil; c = c.NextSibling {
			if id := dom.GetAttr(c, "data-cid"); id != "" {
				seen[id] = true
			}
		}
		anchor := list.FirstChild
		for _, c := range comments {
			if c.ID != "" && seen[c.ID] {
				continue
			}
			list.InsertBefore(p.renderer.RenderComment(c), anchor)
		}
	}
}

// SubmitComment adds a comment to postID. Blank text is refused before
// any network call and leaves the input alone. On success exactly one
// comment is appended, the input is cleared and the visible count grows
// by one; on failure the input keeps the text.
func (p *Page) SubmitComment(ctx context.Context, postID string, nc model.NewComment) (model.Comment, error) {
	if model.IsBlank(nc.Text) {
		return model.Comment{}, feed.ErrBlankComment
	}
	nc.Author = p.authorOr(nc.Author)

	var created model.Comment
	hooks := op.Hooks{
		OnResolved: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for _, list := range byPost(p.list, postID, render.ClassCommentList) {
				list.AppendChild(p.renderer.RenderComment(created))
			}
			for _, n := range byPost(p.list, postID, render.ClassCommentCount) {
				v, _ := strconv.Atoi(strings.TrimSpace(dom.Text(n)))
				dom.SetText(n, strconv.Itoa(v+1))
			}
			p.setCommentInputLocked(postID, "")
		},
		OnFailed: func(err error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.setCommentInputLocked(postID, nc.Text)
			slog.Warn("comment failed, input kept", "post_id", postID, "error", err)
		},
	}
	err := p.ops.Run(ctx, "comment:"+postID, hooks, func(ctx context.Context) error {
		var err error
		created, err = p.store.AddComment(ctx, postID, nc)
		return err
	})
	if err != nil {
		if errors.Is(err, op.ErrInFlight) {
			metrics.IncrementRejected()
		}
		return model.Comment{}, err
	}
	if created.PostID == "" {
		created.PostID = postID
	}
	return created, nil
}

func (p *Page) setCommentInputLocked(postID, text string) {
	for _, form := range byPost(p.list, postID, render.ClassCommentForm) {
		input := dom.FirstByClass(form, render.ClassCommentInput)
		if input == nil {
			continue
		}
		if text == "" {
			dom.RemoveAttr(input, "value")
		} else {
			dom.SetAttr(input, "value", text)
		}
	}
}

// CommentInput returns the text held by postID's comment input.
func (p *Page) CommentInput(postID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, form := range byPost(p.list, postID, render.ClassCommentForm) {
		if input := dom.FirstByClass(form, render.ClassCommentInput); input != nil {
			return dom.GetAttr(input, "value")
		}
	}
	return ""
}

// CommentTexts returns the texts shown in postID's comment list, in order.
func (p *Page) CommentTexts(postID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, list := range byPost(p.list, postID, render.ClassCommentList) {
		for c := list.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if body := dom.FindFirst(c, func(n *html.Node) bool { return n != c && dom.IsElement(n) && n.Data == "div" }); body != nil {
				out = append(out, dom.Text(body))
			}
		}
		break
	}
	return out
}
