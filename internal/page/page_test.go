package page_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"gardencircle/internal/api"
	"gardencircle/internal/api/apitest"
	"gardencircle/internal/dom"
	"gardencircle/internal/feed"
	"gardencircle/internal/localstore"
	"gardencircle/internal/model"
	"gardencircle/internal/op"
	"gardencircle/internal/page"
)

const dynamicDoc = `<!DOCTYPE html><html><head><title>feed</title></head><body>
<div id="searchContainer" hidden><input id="postSearchInput"></div>
<ul id="postList"></ul>
<div id="articlesContainer"></div>
</body></html>`

const followDoc = `<!DOCTYPE html><html><body>
<ul id="postList"></ul>
<form id="followForm" data-action="follow" data-username="jana"><button id="followBtn">Follow</button></form>
<span id="followersCount">Sledujúci: 2</span>
<span id="followingCount">Sleduje: 5</span>
</body></html>`

type fixture struct {
	page  *page.Page
	store *feed.Store
	srv   *apitest.Server
}

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(markup)
	require.NoError(t, err)
	return doc
}

func newFixture(t *testing.T, markup string, seed func(*apitest.Server)) fixture {
	t.Helper()
	srv := apitest.New(t)
	if seed != nil {
		seed(srv)
	}
	return fixtureOn(t, markup, srv)
}

// fixtureOn binds a page to an existing fake backend.
func fixtureOn(t *testing.T, markup string, srv *apitest.Server) fixture {
	t.Helper()
	c, err := api.New(srv.URL, api.Options{})
	require.NoError(t, err)
	return bindFixture(t, markup, feed.NewStore(c), srv)
}

func bindFixture(t *testing.T, markup string, store *feed.Store, srv *apitest.Server) fixture {
	t.Helper()
	p, err := page.New(parse(t, markup), store, page.Options{
		Debounce: 20 * time.Millisecond,
		Prefs:    localstore.New(localstore.NewMemoryBackend()),
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return fixture{page: p, store: store, srv: srv}
}

func threePosts(srv *apitest.Server) {
	srv.AddPost("Eva", "Paradajky dozrievajú")
	srv.AddPost("Jana", "Monstera má nový list")
	srv.AddPost("Peter", "Kde kúpiť semená paradajok?")
}

// staticDoc renders the server's posts once and embeds the result as a
// server-rendered page.
func staticDoc(t *testing.T, srv *apitest.Server) string {
	t.Helper()
	f := fixtureOn(t, dynamicDoc, srv)
	require.NoError(t, f.page.Reload(context.Background(), ""))
	return strings.Replace(dynamicDoc, `<ul id="postList"></ul>`, `<ul id="postList">`+f.page.FeedHTML()+`</ul>`, 1)
}

func TestNewRequiresFeedContainer(t *testing.T) {
	_, err := page.New(parse(t, `<html><body></body></html>`), feed.NewStore(nil), page.Options{})
	assert.ErrorIs(t, err, page.ErrNoFeed)
}

func TestModeIsDecidedOnce(t *testing.T) {
	f := newFixture(t, dynamicDoc, threePosts)
	assert.Equal(t, page.Dynamic, f.page.Mode())

	require.NoError(t, f.page.Start(context.Background()))
	assert.Len(t, f.page.PostIDs(), 3)
	assert.Equal(t, page.Dynamic, f.page.Mode(), "rendering must not flip the mode")

	doc := parse(t, staticDoc(t, f.srv))
	assert.Equal(t, page.Static, page.DetectMode(dom.ByID(doc, page.IDPostList)))
}

func TestStaticStartDoesNotLoad(t *testing.T) {
	srv := apitest.New(t)
	threePosts(srv)
	markup := staticDoc(t, srv)

	before := srv.Hits(apitest.Route(http.MethodGet, "/api/posts"))
	f := fixtureOn(t, markup, srv)
	require.Equal(t, page.Static, f.page.Mode())
	require.NoError(t, f.page.Start(context.Background()))

	assert.Equal(t, before, srv.Hits(apitest.Route(http.MethodGet, "/api/posts")))
	assert.Len(t, f.store.Posts(), 3, "server-rendered cards seed the store")
	assert.Len(t, f.page.PostIDs(), 3)
}

func TestStartRendersNewestFirstWithComments(t *testing.T) {
	var first, last string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) {
		first = srv.AddPost("Eva", "prvý")
		srv.AddPost("Jana", "druhý")
		last = srv.AddPost("Peter", "tretí")
		srv.AddComment(first, "Jana", "pekné")
		srv.AddComment(first, "Peter", "súhlasím")
	})
	require.NoError(t, f.page.Start(context.Background()))

	ids := f.page.PostIDs()
	require.Len(t, ids, 3)
	assert.Equal(t, last, ids[0])
	assert.Equal(t, first, ids[2])
	assert.Equal(t, []string{"pekné", "súhlasím"}, f.page.CommentTexts(first))

	assert.NotContains(t, f.page.HTML(), `id="searchContainer" hidden`)
}

func TestReloadIsIdempotent(t *testing.T) {
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) {
		id := srv.AddPost("Eva", "<b>tučné</b> & iné")
		srv.AddComment(id, "Jana", "ok")
	})
	ctx := context.Background()
	require.NoError(t, f.page.Reload(ctx, ""))
	once := f.page.FeedHTML()
	require.NoError(t, f.page.Reload(ctx, ""))
	assert.Equal(t, once, f.page.FeedHTML())
	assert.Contains(t, once, "&lt;b&gt;tučné&lt;/b&gt; &amp; iné")
}

func TestEmptyFeedShowsPlaceholder(t *testing.T) {
	f := newFixture(t, dynamicDoc, nil)
	require.NoError(t, f.page.Start(context.Background()))
	assert.True(t, f.page.HasEmptyState())
	assert.Empty(t, f.page.PostIDs())
}

func TestLoadFailureShowsNotice(t *testing.T) {
	f := newFixture(t, dynamicDoc, threePosts)
	f.srv.Fail(apitest.Route(http.MethodGet, "/api/posts"), http.StatusInternalServerError)
	require.NoError(t, f.page.Reload(context.Background(), ""))

	assert.False(t, f.page.HasEmptyState())
	assert.Contains(t, f.page.FeedHTML(), "Nepodarilo sa načítať príspevky.")
}

func TestStaticFilterMatchesDynamicSearch(t *testing.T) {
	srv := apitest.New(t)
	threePosts(srv)
	srv.AddPost("paradajkár", "bez zmienky")

	static := fixtureOn(t, staticDoc(t, srv), srv)
	dynamic := fixtureOn(t, dynamicDoc, srv)

	ctx := context.Background()
	for _, q := range []string{"", "paradaj", "PARADAJ", "monstera", "eva", "nič také", " "} {
		require.NoError(t, static.page.Search(ctx, q))
		require.NoError(t, dynamic.page.Search(ctx, q))
		assert.Equal(t, dynamic.page.PostIDs(), static.page.VisibleIDs(), "query %q", q)
	}
}

func TestStaticFilterCacheFollowsDelete(t *testing.T) {
	srv := apitest.New(t)
	threePosts(srv)
	f := fixtureOn(t, staticDoc(t, srv), srv)
	ctx := context.Background()

	require.NoError(t, f.page.Search(ctx, "paradaj"))
	visible := f.page.VisibleIDs()
	require.Len(t, visible, 2)

	require.NoError(t, f.page.DeletePost(ctx, visible[0]))
	require.NoError(t, f.page.Search(ctx, ""))
	assert.Len(t, f.page.VisibleIDs(), 2)
	assert.NotContains(t, f.page.VisibleIDs(), visible[0])
}

func TestInputIsDebounced(t *testing.T) {
	f := newFixture(t, dynamicDoc, threePosts)
	require.NoError(t, f.page.Start(context.Background()))
	route := apitest.Route(http.MethodGet, "/api/posts")
	before := f.srv.Hits(route)

	for _, q := range []string{"m", "mo", "mon", "mons", "monstera"} {
		f.page.Input(q)
	}
	require.Eventually(t, func() bool { return f.page.Query() == "monstera" }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, before+1, f.srv.Hits(route))
	assert.Len(t, f.page.PostIDs(), 1)
}

// gatedSource blocks the first List call until release is closed.
type gatedSource struct {
	feed.Source
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) List(ctx context.Context) ([]model.Post, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Source.List(ctx)
}

func TestStaleRenderIsDiscarded(t *testing.T) {
	srv := apitest.New(t)
	threePosts(srv)
	c, err := api.New(srv.URL, api.Options{})
	require.NoError(t, err)
	src := &gatedSource{Source: c, entered: make(chan struct{}), release: make(chan struct{})}
	f := bindFixture(t, dynamicDoc, feed.NewStore(src), srv)
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() { slow <- f.page.Reload(ctx, "") }()
	<-src.entered

	require.NoError(t, f.page.Reload(ctx, "monstera"))
	fresh := f.page.FeedHTML()
	close(src.release)

	assert.ErrorIs(t, <-slow, page.ErrStaleRender)
	assert.Equal(t, fresh, f.page.FeedHTML())
	assert.Len(t, f.page.PostIDs(), 1)
}

func TestLikeRoundTrip(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) {
		id = srv.AddPost("Eva", "x")
		srv.LikeFromElsewhere(id)
	})
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))
	orig, ok := f.page.LikeDisplay(id)
	require.True(t, ok)

	st, err := f.page.ToggleLike(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.LikeState{Liked: true, Count: 2}, st)
	shown, _ := f.page.LikeDisplay(id)
	assert.Equal(t, st, shown)

	_, err = f.page.ToggleLike(ctx, id)
	require.NoError(t, err)
	shown, _ = f.page.LikeDisplay(id)
	assert.Equal(t, orig, shown)
}

func TestLikeUsesServerCount(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) { id = srv.AddPost("Eva", "x") })
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))

	f.srv.LikeFromElsewhere(id)
	f.srv.LikeFromElsewhere(id)
	st, err := f.page.ToggleLike(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count)
	assert.Contains(t, f.page.FeedHTML(), `<span class="like-count" data-post-id="`+id+`">3</span>`)
}

func TestLikeFailureReverts(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) { id = srv.AddPost("Eva", "x") })
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))
	before := f.page.FeedHTML()

	f.srv.Fail(apitest.Route(http.MethodPost, "/like/"+id), http.StatusInternalServerError)
	_, err := f.page.ToggleLike(ctx, id)
	require.Error(t, err)

	var se *api.StatusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, before, f.page.FeedHTML())
	shown, _ := f.page.LikeDisplay(id)
	assert.Equal(t, model.LikeState{}, shown)
	assert.Contains(t, f.page.FeedHTML(), "🤍")
	post, _ := f.store.Get(id)
	assert.False(t, post.Liked)
}

func TestLikeWhilePendingIsRejected(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) { id = srv.AddPost("Eva", "x") })
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))

	route := apitest.Route(http.MethodPost, "/like/"+id)
	release := f.srv.Hold(route)
	done := make(chan error, 1)
	go func() {
		_, err := f.page.ToggleLike(ctx, id)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.srv.Hits(route) == 1 }, time.Second, 5*time.Millisecond)

	_, err := f.page.ToggleLike(ctx, id)
	assert.ErrorIs(t, err, op.ErrInFlight)
	shown, _ := f.page.LikeDisplay(id)
	assert.Equal(t, model.LikeState{Liked: true, Count: 1}, shown, "optimistic state untouched")

	release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.srv.Hits(route))
}

func TestLikeUnknownPost(t *testing.T) {
	f := newFixture(t, dynamicDoc, nil)
	_, err := f.page.ToggleLike(context.Background(), "404")
	assert.ErrorIs(t, err, feed.ErrPostNotFound)
	assert.Zero(t, f.srv.TotalHits())
}

func TestCommentsAppendInOrder(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) { id = srv.AddPost("Eva", "x") })
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))

	_, err := f.page.SubmitComment(ctx, id, model.NewComment{Author: "Jana", Text: "C1"})
	require.NoError(t, err)
	_, err = f.page.SubmitComment(ctx, id, model.NewComment{Text: "C2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"C1", "C2"}, f.page.CommentTexts(id))
	assert.Contains(t, f.page.FeedHTML(), `<span class="comment-count" data-post-id="`+id+`">2</span>`)
	assert.Empty(t, f.page.CommentInput(id))
	assert.Equal(t, 1, f.srv.Hits(apitest.Route(http.MethodGet, "/api/posts/"+id+"/comments")), "no refetch after submit")
}

func TestBlankCommentMakesNoCall(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) { id = srv.AddPost("Eva", "x") })
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))
	hits := f.srv.TotalHits()
	before := f.page.FeedHTML()

	_, err := f.page.SubmitComment(ctx, id, model.NewComment{Text: "  "})
	assert.ErrorIs(t, err, feed.ErrBlankComment)
	assert.Equal(t, hits, f.srv.TotalHits())
	assert.Equal(t, before, f.page.FeedHTML())
}

func TestCommentFailureKeepsInput(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) { id = srv.AddPost("Eva", "x") })
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))

	f.srv.Fail(apitest.Route(http.MethodPost, "/api/posts/"+id+"/comments"), http.StatusServiceUnavailable)
	_, err := f.page.SubmitComment(ctx, id, model.NewComment{Text: "skúsim znova"})
	require.Error(t, err)
	assert.Equal(t, "skúsim znova", f.page.CommentInput(id))
	assert.Empty(t, f.page.CommentTexts(id))
}

func TestCommentOnDeletedPostFails(t *testing.T) {
	var keep, gone string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) {
		keep = srv.AddPost("Eva", "ostáva")
		gone = srv.AddPost("Jana", "zmizne")
	})
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))
	require.NoError(t, f.page.DeletePost(ctx, gone))

	_, err := f.page.SubmitComment(ctx, gone, model.NewComment{Text: "neskoro"})
	assert.ErrorIs(t, err, feed.ErrPostNotFound)
	assert.Equal(t, []string{keep}, f.page.PostIDs())
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	var a, b, c string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) {
		a = srv.AddPost("Eva", "a")
		b = srv.AddPost("Jana", "b")
		c = srv.AddPost("Peter", "c")
		srv.AddComment(a, "Jana", "k a")
		srv.AddComment(c, "Eva", "k c")
	})
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))
	postA, _ := f.store.Get(a)
	postC, _ := f.store.Get(c)

	require.NoError(t, f.page.DeletePost(ctx, b))

	assert.Equal(t, []string{c, a}, f.page.PostIDs())
	assert.False(t, f.store.Has(b))
	gotA, _ := f.store.Get(a)
	gotC, _ := f.store.Get(c)
	assert.Equal(t, postA.CommentCount, gotA.CommentCount)
	assert.Equal(t, postC.CommentCount, gotC.CommentCount)
	assert.Equal(t, []string{"k a"}, f.page.CommentTexts(a))

	require.NoError(t, f.page.Reload(ctx, ""))
	assert.Equal(t, []string{c, a}, f.page.PostIDs(), "deleted post does not come back")
}

func TestDeleteLastShowsPlaceholder(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) { id = srv.AddPost("Eva", "a") })
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))

	require.NoError(t, f.page.DeletePost(ctx, id))
	assert.True(t, f.page.HasEmptyState())
}

func TestDeleteFailureKeepsPost(t *testing.T) {
	var id string
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) { id = srv.AddPost("Eva", "a") })
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))

	f.srv.Fail(apitest.Route(http.MethodDelete, "/api/posts/"+id), http.StatusForbidden)
	err := f.page.DeletePost(ctx, id)
	assert.True(t, api.IsStatus(err, http.StatusForbidden))
	assert.Equal(t, []string{id}, f.page.PostIDs())
	assert.True(t, f.store.Has(id))
}

func TestSubmitPostPrepends(t *testing.T) {
	f := newFixture(t, dynamicDoc, nil)
	ctx := context.Background()
	require.NoError(t, f.page.Start(ctx))
	require.True(t, f.page.HasEmptyState())

	_, err := f.page.SubmitPost(ctx, model.NewPost{Content: "   "})
	assert.ErrorIs(t, err, feed.ErrBlankContent)
	assert.Zero(t, f.srv.Hits(apitest.Route(http.MethodPost, "/api/posts")))

	first, err := f.page.SubmitPost(ctx, model.NewPost{Author: "Eva", Content: "prvý"})
	require.NoError(t, err)
	second, err := f.page.SubmitPost(ctx, model.NewPost{Author: "Eva", Content: "druhý"})
	require.NoError(t, err)

	assert.False(t, f.page.HasEmptyState())
	assert.Equal(t, []string{second.ID, first.ID}, f.page.PostIDs())
}

func TestFollowToggle(t *testing.T) {
	f := newFixture(t, followDoc, func(srv *apitest.Server) { srv.SetUser("jana", false, 2, 5) })
	ctx := context.Background()

	st, err := f.page.ToggleFollow(ctx, "")
	require.NoError(t, err)
	assert.True(t, st.Following)

	label, followers, following := f.page.FollowText()
	assert.Equal(t, "Unfollow", label)
	assert.Equal(t, "Sledujúci: 3", followers)
	assert.Equal(t, "Sleduje: 5", following)

	_, err = f.page.ToggleFollow(ctx, "jana")
	require.NoError(t, err)
	label, followers, _ = f.page.FollowText()
	assert.Equal(t, "Follow", label)
	assert.Equal(t, "Sledujúci: 2", followers)
}

func TestFollowFailureRestores(t *testing.T) {
	f := newFixture(t, followDoc, func(srv *apitest.Server) { srv.SetUser("jana", false, 2, 5) })
	f.srv.Fail(apitest.Route(http.MethodPost, "/follow/jana"), http.StatusBadGateway)

	_, err := f.page.ToggleFollow(context.Background(), "")
	require.Error(t, err)

	label, followers, following := f.page.FollowText()
	assert.Equal(t, "Follow", label)
	assert.Equal(t, "Sledujúci: 2", followers)
	assert.Equal(t, "Sleduje: 5", following)
	st, ok := f.store.Follow("jana")
	require.True(t, ok)
	assert.Equal(t, model.FollowState{Followers: 2, FollowingCount: 5}, st)
}

func TestFollowWithoutControl(t *testing.T) {
	f := newFixture(t, dynamicDoc, nil)
	_, err := f.page.ToggleFollow(context.Background(), "jana")
	assert.ErrorIs(t, err, page.ErrNoFollow)
}

func TestThemeToggle(t *testing.T) {
	f := newFixture(t, dynamicDoc, nil)
	ctx := context.Background()
	f.page.ApplyTheme(ctx)
	assert.Contains(t, f.page.HTML(), `data-theme="light"`)

	theme, err := f.page.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, localstore.ThemeDark, theme)
	assert.Equal(t, localstore.ThemeDark, f.page.Theme(ctx))
	assert.Contains(t, f.page.HTML(), `data-theme="dark"`)

	theme, err = f.page.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, localstore.ThemeLight, theme)
}

func TestArticles(t *testing.T) {
	f := newFixture(t, dynamicDoc, func(srv *apitest.Server) {
		srv.SetArticles([]model.Article{{Title: "Zálievka", Content: "Menej je viac"}})
	})
	require.NoError(t, f.page.LoadArticles(context.Background()))
	assert.Contains(t, f.page.HTML(), `<article class="article-card"><h3>Zálievka</h3><p>Menej je viac</p></article>`)
}

func TestArticlesFailureShowsNotice(t *testing.T) {
	f := newFixture(t, dynamicDoc, nil)
	err := f.page.LoadArticles(context.Background())
	require.Error(t, err)
	assert.Contains(t, f.page.HTML(), "Nepodarilo sa načítať články.")
}
