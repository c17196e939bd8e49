package render

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"gardencircle/internal/dom"
	"gardencircle/internal/model"
)

// ParsePost reads a server-rendered post card back into a record. It is
// the inverse of RenderPost for the fields the markup carries; ok is false
// when the node has no id.
func ParsePost(n *html.Node) (p model.Post, ok bool) {
	p.ID = dom.GetAttr(n, AttrID)
	if p.ID == "" {
		if like := dom.FirstByClass(n, LikeClasses...); like != nil {
			p.ID = dom.GetAttr(like, AttrPostID)
		}
	}
	if p.ID == "" {
		return model.Post{}, false
	}
	p.Author = strings.TrimSpace(dom.Text(dom.FirstByClass(n, AuthorClasses...)))
	p.Content = strings.TrimSpace(dom.Text(dom.FirstByClass(n, ContentClasses...)))

	if timeEl := dom.FirstByClass(n, TimeClasses...); timeEl != nil {
		if ts, err := time.Parse(time.RFC3339, dom.GetAttr(timeEl, "datetime")); err == nil {
			p.CreatedAt = ts
		}
	}
	if like := dom.FirstByClass(n, LikeClasses...); like != nil {
		p.Liked = dom.HasClass(like, ClassLiked)
	}
	p.LikeCount = readCount(dom.FirstByClass(n, ClassLikeCount))
	p.CommentCount = readCount(dom.FirstByClass(n, ClassCommentCount))

	if img := dom.FirstByClass(n, "post-image"); img != nil {
		p.ImagePath = strings.TrimPrefix(dom.GetAttr(img, "src"), "/static/")
	}
	p, err := model.NormalizePost(p)
	if err != nil {
		return model.Post{}, false
	}
	return p, true
}

func readCount(n *html.Node) int {
	if n == nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(dom.Text(n)))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
