// Package page binds the feed store and renderer to one document tree. It
// owns the controllers that react to user events: search, like, comment,
// follow, delete, create and theme.
//
// The tree is guarded by a single mutex that is never held across a
// network call. Full renders take a generation token before they fetch and
// are dropped if a newer render started meanwhile.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"gardencircle/internal/dom"
	"gardencircle/internal/feed"
	"gardencircle/internal/localstore"
	"gardencircle/internal/metrics"
	"gardencircle/internal/model"
	"gardencircle/internal/op"
	"gardencircle/internal/render"
)

// Element ids the page looks for.
const (
	IDPostList        = "postList"
	IDTemplate        = "post-template"
	IDSearchContainer = "searchContainer"
	IDSearchInput     = "postSearchInput"
	IDArticles        = "articlesContainer"
	IDFollowForm      = "followForm"
	IDFollowButton    = "followBtn"
	IDFollowers       = "followersCount"
	IDFollowing       = "followingCount"
)

const (
	DefaultDebounce           = 300 * time.Millisecond
	DefaultCommentConcurrency = 4
)

var (
	ErrNoFeed      = errors.New("document has no feed container")
	ErrStaleRender = errors.New("render superseded by a newer one")
	ErrNoFollow    = errors.New("document has no follow control")
)

// Labels are the follow control strings. Followers and Following are
// format strings taking the counter.
type Labels struct {
	Follow    string
	Unfollow  string
	Followers string
	Following string
}

// DefaultLabels returns the built-in labels.
func DefaultLabels() Labels {
	return Labels{
		Follow:    "Follow",
		Unfollow:  "Unfollow",
		Followers: "Sledujúci: %d",
		Following: "Sleduje: %d",
	}
}

// Options configure a Page.
type Options struct {
	Render render.Options
	Labels Labels
	// Prefs persists the theme. Nil disables theme persistence.
	Prefs *localstore.Store
	// Author is the viewer's display name, used for new posts and comments
	// that do not name one.
	Author             string
	Debounce           time.Duration
	CommentConcurrency int
}

// Page is one live document.
type Page struct {
	store    *feed.Store
	renderer *render.Renderer
	prefs    *localstore.Store
	labels   Labels
	author   string
	mode     Mode
	ops      *op.Tracker

	commentLimit int
	gen          atomic.Uint64

	mu     sync.Mutex
	doc    *html.Node
	list   *html.Node
	cache  []cardText
	query  string
	closed bool

	debouncer  *Debouncer
	dispatcher *Dispatcher
}

// New binds doc to store. The mode is decided here, once: a feed container
// that already holds post cards makes the page static and its cards seed
// the store.
func New(doc *html.Node, store *feed.Store, opts Options) (*Page, error) {
	list := dom.ByID(doc, IDPostList)
	if list == nil {
		return nil, ErrNoFeed
	}
	tmpl := dom.ByID(doc, IDTemplate)
	r, err := render.New(tmpl, opts.Render)
	if err != nil {
		return nil, fmt.Errorf("post template: %w", err)
	}

	var zero Labels
	if opts.Labels == zero {
		opts.Labels = DefaultLabels()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.CommentConcurrency <= 0 {
		opts.CommentConcurrency = DefaultCommentConcurrency
	}

	p := &Page{
		store:        store,
		renderer:     r,
		prefs:        opts.Prefs,
		labels:       opts.Labels,
		author:       strings.TrimSpace(opts.Author),
		ops:          op.NewTracker(),
		commentLimit: opts.CommentConcurrency,
		doc:          doc,
		list:         list,
	}
	p.ops.Observe = observeOp

	cards := postCards(list)
	p.mode = DetectMode(list)
	if p.mode == Static {
		seed := make([]model.Post, 0, len(cards))
		for i := len(cards) - 1; i >= 0; i-- {
			if post, ok := render.ParsePost(cards[i]); ok {
				seed = append(seed, post)
			}
		}
		store.Seed(seed)
	}
	p.seedFollow()

	if box := dom.ByID(doc, IDSearchContainer); box != nil && (len(cards) > 0 || p.mode == Dynamic) {
		dom.RemoveAttr(box, "hidden")
	}

	p.debouncer = NewDebouncer(opts.Debounce, func(q string) {
		if err := p.Search(context.Background(), q); err != nil && !errors.Is(err, ErrStaleRender) {
			slog.Warn("search failed", "query", q, "error", err)
		}
	})
	p.dispatcher = p.newDispatcher()

	slog.Info("page bound", "mode", p.mode.String(), "cards", len(cards), "template", tmpl != nil)
	return p, nil
}

// Mode returns the mode decided when the page was bound.
func (p *Page) Mode() Mode {
	return p.mode
}

// Start performs the initial work for the mode: a dynamic page loads and
// renders the feed. Both modes apply the saved theme and load articles.
func (p *Page) Start(ctx context.Context) error {
	p.ApplyTheme(ctx)
	if err := p.LoadArticles(ctx); err != nil {
		slog.Warn("articles unavailable", "error", err)
	}
	if p.mode == Dynamic {
		return p.Reload(ctx, "")
	}
	return nil
}

// Close stops the search debouncer. Pending input is dropped.
func (p *Page) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.debouncer.Stop()
}

// WriteHTML serializes the current document.
func (p *Page) WriteHTML(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return html.Render(w, p.doc)
}

// HTML returns the current document as a string.
func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.Render(p.doc)
}

// FeedHTML returns the feed container's children.
func (p *Page) FeedHTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.RenderChildren(p.list)
}

// =============================================================================
// Full renders
// =============================================================================

// Reload fetches the feed filtered by query and replaces the rendered list.
// A failed read shows the load-failure notice. If another Reload started
// while this one was fetching, nothing is written and ErrStaleRender is
// returned.
func (p *Page) Reload(ctx context.Context, query string) error {
	gen := p.gen.Add(1)
	snap := p.store.LoadAt(ctx, gen, query)

	p.mu.Lock()
	if p.gen.Load() != gen {
		p.mu.Unlock()
		metrics.IncrementStaleRenders()
		slog.Debug("discarding stale render", "generation", gen, "query", query)
		return ErrStaleRender
	}
	dom.RemoveChildren(p.list)
	var nodes []*html.Node
	if snap.Failed {
		metrics.IncrementLoadFailures()
		nodes = []*html.Node{p.renderer.RenderNotice("li", p.renderer.Texts().LoadFailed)}
	} else {
		nodes = p.renderer.RenderAll(snap.Posts)
	}
	for _, n := range nodes {
		p.list.AppendChild(n)
	}
	p.query = query
	p.cache = nil
	p.mu.Unlock()
	metrics.IncrementRenders()

	if snap.Failed {
		return nil
	}
	ids := make([]string, len(snap.Posts))
	for i, post := range snap.Posts {
		ids[i] = post.ID
	}
	p.loadComments(ctx, gen, ids)
	return nil
}

// loadComments reads the comments of freshly rendered posts with bounded
// concurrency. Results for an outdated generation are dropped.
func (p *Page) loadComments(ctx context.Context, gen uint64, ids []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.commentLimit)
	for _, id := range ids {
		g.Go(func() error {
			comments, err := p.store.Comments(gctx, id)
			if err != nil {
				slog.Debug("comments unavailable", "post_id", id, "error", err)
				return nil
			}
			if p.gen.Load() != gen {
				return nil
			}
			p.mu.Lock()
			defer p.mu.Unlock()
			p.insertComments(id, comments)
			return nil
		})
	}
	_ = g.Wait()
}

// =============================================================================
// Helpers
// =============================================================================

// postCards returns the post cards under list, skipping template content.
func postCards(list *html.Node) []*html.Node {
	return dom.FindAll(list, func(n *html.Node) bool {
		if !dom.HasAnyClass(n, render.PostCardClasses...) {
			return false
		}
		return dom.Closest(n, func(a *html.Node) bool {
			return dom.IsElement(a) && a.DataAtom == atom.Template
		}) == nil
	})
}

// byPost returns the elements under root carrying any of classes whose
// data-post-id is id.
func byPost(root *html.Node, id string, classes ...string) []*html.Node {
	return dom.FindAll(root, func(n *html.Node) bool {
		return dom.HasAnyClass(n, classes...) && dom.GetAttr(n, render.AttrPostID) == id
	})
}

// cardsByID returns the post cards for id.
func cardsByID(root *html.Node, id string) []*html.Node {
	return dom.FindAll(root, func(n *html.Node) bool {
		return dom.HasAnyClass(n, render.PostCardClasses...) && dom.GetAttr(n, render.AttrID) == id
	})
}

// trailingInt reads the last run of digits in s, so "Sledujúci: 12" gives 12.
func trailingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	v, err := strconv.Atoi(s[start:end])
	return v, err == nil
}

func observeOp(key string, from, to op.State) {
	switch to {
	case op.Resolved:
		metrics.IncrementResolved()
	case op.Failed:
		metrics.IncrementRollbacks()
	}
	slog.Debug("operation transition", "key", key, "from", from, "to", to)
}

func (p *Page) authorOr(name string) string {
	if !model.IsBlank(name) {
		return strings.TrimSpace(name)
	}
	return p.author
}
