// Package render turns feed records into detached node subtrees. Every
// user-authored string is escaped exactly once here, at the boundary, and
// then parsed into text nodes.
package render

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"gardencircle/internal/dom"
	"gardencircle/internal/model"
	"gardencircle/internal/sanitize"
)

//go:embed assets/post-template.html
var defaultTemplate string

// DefaultTimeLayout mimics a Slovak locale date-time.
const DefaultTimeLayout = "2. 1. 2006 15:04:05"

// Texts are the user-visible strings the renderer emits.
type Texts struct {
	EmptyTitle     string
	EmptyHint      string
	EmptyIcon      string
	ImageAlt       string
	LoadFailed     string
	ArticlesFailed string
	// EmptyMarkup, when set, replaces the built-in empty-state markup. It is
	// cleaned with sanitize.Fragment before use.
	EmptyMarkup string
}

// DefaultTexts returns the built-in Slovak strings.
func DefaultTexts() Texts {
	return Texts{
		EmptyTitle:     "Zatiaľ žiadne príspevky",
		EmptyHint:      "Buď prvý, kto zdieľa svoju skúsenosť s rastlinami!",
		EmptyIcon:      "🌱",
		ImageAlt:       "Obrázok príspevku",
		LoadFailed:     "Nepodarilo sa načítať príspevky.",
		ArticlesFailed: "Nepodarilo sa načítať články.",
	}
}

// Options configure a Renderer.
type Options struct {
	Texts      Texts
	TimeLayout string
	Location   *time.Location
}

// Renderer clones the post template and fills it.
type Renderer struct {
	proto      *html.Node
	texts      Texts
	timeLayout string
	loc        *time.Location
}

// New builds a renderer from tmpl, the page's <template id="post-template">
// element. A nil tmpl uses the embedded default template.
func New(tmpl *html.Node, opts Options) (*Renderer, error) {
	if tmpl == nil {
		nodes, err := dom.ParseFragment(defaultTemplate, nil)
		if err != nil {
			return nil, fmt.Errorf("parse default template: %w", err)
		}
		for _, n := range nodes {
			if dom.IsElement(n) && n.DataAtom == atom.Template {
				tmpl = n
				break
			}
		}
	}
	proto := dom.FindFirst(tmpl, func(n *html.Node) bool {
		return n != tmpl && dom.IsElement(n) && n.DataAtom == atom.Li
	})
	if proto == nil {
		return nil, fmt.Errorf("post template has no <li> element")
	}

	var zero Texts
	if opts.Texts == zero {
		opts.Texts = DefaultTexts()
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = DefaultTimeLayout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Renderer{
		proto:      dom.Clone(proto),
		texts:      opts.Texts,
		timeLayout: opts.TimeLayout,
		loc:        opts.Location,
	}, nil
}

// Texts returns the renderer's strings.
func (r *Renderer) Texts() Texts {
	return r.texts
}

// FormatTime returns the human and machine-readable forms of t. Both are
// empty for the zero time.
func (r *Renderer) FormatTime(t time.Time) (human, machine string) {
	if t.IsZero() {
		return "", ""
	}
	return t.In(r.loc).Format(r.timeLayout), t.UTC().Format(time.RFC3339)
}

// setEscaped is the single escape point: escape, then parse the entity
// text back into a text node.
func setEscaped(n *html.Node, text string) {
	if n == nil {
		return
	}
	_ = dom.SetInnerHTML(n, sanitize.Escape(text))
}

// =============================================================================
// Posts
// =============================================================================

// RenderPost returns a detached subtree for p with its interactive
// handles keyed by the post id.
func (r *Renderer) RenderPost(p model.Post) *html.Node {
	li := dom.Clone(r.proto)
	dom.SetAttr(li, AttrID, p.ID)
	dom.AddClass(li, ClassPostCardModern)

	author := p.Author
	if model.IsBlank(author) {
		author = model.DefaultAuthor
	}

	if link := dom.FirstByClass(li, "author-link-template"); link != nil {
		dom.SetAttr(link, "href", "/user/"+url.PathEscape(author))
		dom.RemoveClass(link, "author-link-template")
	}
	setEscaped(dom.FirstByClass(li, AuthorClasses...), author)
	if avatar := dom.FirstByClass(li, "avatar-placeholder-small"); avatar != nil {
		dom.SetText(avatar, initial(author))
	}

	if timeEl := dom.FirstByClass(li, TimeClasses...); timeEl != nil {
		human, machine := r.FormatTime(p.CreatedAt)
		dom.SetText(timeEl, human)
		if machine != "" {
			dom.SetAttr(timeEl, "datetime", machine)
		}
	}

	setEscaped(dom.FirstByClass(li, ContentClasses...), p.Content)

	if like := dom.FirstByClass(li, LikeClasses...); like != nil {
		dom.SetAttr(like, AttrPostID, p.ID)
		dom.SetAttr(like, AttrAction, "like")
		dom.ToggleClass(like, ClassLiked, p.Liked)
		dom.SetAttr(like, "aria-pressed", fmt.Sprint(p.Liked))
		if glyph := dom.FirstByClass(like, GlyphClasses...); glyph != nil {
			dom.SetText(glyph, Glyph(p.Liked))
		}
	}
	if count := dom.FirstByClass(li, ClassLikeCount); count != nil {
		dom.SetAttr(count, AttrPostID, p.ID)
		dom.SetText(count, fmt.Sprint(max(0, p.LikeCount)))
	}

	if link := dom.FirstByClass(li, "comment-link-template"); link != nil {
		dom.SetAttr(link, "href", "/posts/"+url.PathEscape(p.ID))
		dom.RemoveClass(link, "comment-link-template")
	}
	if count := dom.FirstByClass(li, ClassCommentCount); count != nil {
		dom.SetAttr(count, AttrPostID, p.ID)
		dom.SetText(count, fmt.Sprint(max(0, p.CommentCount)))
	}

	if p.ImagePath != "" {
		r.attachImage(li, p.ImagePath)
	}

	for _, cls := range []string{ClassDelete, ClassCommentList, ClassCommentForm} {
		if n := dom.FirstByClass(li, cls); n != nil {
			dom.SetAttr(n, AttrPostID, p.ID)
		}
	}
	if form := dom.FirstByClass(li, ClassCommentForm); form != nil {
		dom.SetAttr(form, "action", "/html/action?action=comment&key="+url.QueryEscape(p.ID))
	}
	return li
}

func (r *Renderer) attachImage(li *html.Node, imagePath string) {
	host := dom.FirstByClass(li, "post-content-link", "post-image-container")
	if host == nil {
		return
	}
	wrapper := dom.NewElement("div", "class", "post-image-wrapper")
	img := dom.NewElement("img",
		"src", "/static/"+strings.TrimPrefix(imagePath, "/"),
		"alt", r.texts.ImageAlt,
		"class", "post-image",
		"loading", "lazy",
		"decoding", "async",
	)
	wrapper.AppendChild(img)
	host.AppendChild(wrapper)
}

// RenderAll returns the nodes for a full feed, most recent first. posts is
// expected oldest first and is not modified. An empty feed yields the
// empty-state placeholder instead.
func (r *Renderer) RenderAll(posts []model.Post) []*html.Node {
	if len(posts) == 0 {
		return []*html.Node{r.Empty()}
	}
	nodes := make([]*html.Node, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		nodes = append(nodes, r.RenderPost(posts[i]))
	}
	return nodes
}

// Empty returns the empty-feed placeholder.
func (r *Renderer) Empty() *html.Node {
	if r.texts.EmptyMarkup != "" {
		nodes, err := dom.ParseFragment(sanitize.Fragment(r.texts.EmptyMarkup), dom.NewElement("ul"))
		if err == nil {
			li := dom.NewElement("li", "class", ClassEmpty)
			for _, n := range nodes {
				li.AppendChild(n)
			}
			return li
		}
	}
	li := dom.NewElement("li", "class", ClassEmpty)
	icon := dom.NewElement("div", "class", "empty-posts-icon")
	dom.SetText(icon, r.texts.EmptyIcon)
	title := dom.NewElement("h3")
	dom.SetText(title, r.texts.EmptyTitle)
	hint := dom.NewElement("p", "class", ClassMuted)
	dom.SetText(hint, r.texts.EmptyHint)
	li.AppendChild(icon)
	li.AppendChild(title)
	li.AppendChild(hint)
	return li
}

// RenderNotice returns a muted informational element of the given tag, used in
// place of content when a read failed.
func (r *Renderer) RenderNotice(tag, msg string) *html.Node {
	n := dom.NewElement(tag, "class", ClassMuted+" notice", "role", "status")
	dom.SetText(n, msg)
	return n
}

// =============================================================================
// Comments and articles
// =============================================================================

// RenderComment returns a comment list item.
func (r *Renderer) RenderComment(c model.Comment) *html.Node {
	human, machine := r.FormatTime(c.CreatedAt)
	author := c.Author
	if model.IsBlank(author) {
		author = model.DefaultAuthor
	}
	markup := fmt.Sprintf(`<li><strong>%s</strong> • <small class="muted"><time datetime="%s">%s</time></small><div>%s</div></li>`,
		sanitize.Escape(author), sanitize.Escape(machine), sanitize.Escape(human), sanitize.Escape(c.Text))
	nodes, err := dom.ParseFragment(markup, dom.NewElement("ul"))
	if err != nil || len(nodes) == 0 {
		return dom.NewElement("li")
	}
	li := nodes[0]
	if c.ID != "" {
		dom.SetAttr(li, "data-cid", c.ID)
	}
	return li
}

// RenderArticles returns one card per article.
func (r *Renderer) RenderArticles(list []model.Article) []*html.Node {
	nodes := make([]*html.Node, 0, len(list))
	for _, a := range list {
		card := dom.NewElement("article", "class", "article-card")
		title := dom.NewElement("h3")
		setEscaped(title, a.Title)
		body := dom.NewElement("p")
		setEscaped(body, a.Content)
		card.AppendChild(title)
		card.AppendChild(body)
		nodes = append(nodes, card)
	}
	return nodes
}

func initial(author string) string {
	r, _ := utf8.DecodeRuneInString(author)
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}
