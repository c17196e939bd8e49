package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardencircle/internal/api"
	"gardencircle/internal/api/apitest"
	"gardencircle/internal/model"
)

func newClient(t *testing.T, srv *apitest.Server, opts api.Options) *api.Client {
	t.Helper()
	c, err := api.New(srv.URL, opts)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := api.New("ftp://example.com", api.Options{})
	assert.Error(t, err)
	_, err = api.New("://", api.Options{})
	assert.Error(t, err)
}

func TestListAndCreate(t *testing.T) {
	srv := apitest.New(t)
	srv.AddPost("Eva", "prvý")
	c := newClient(t, srv, api.Options{})
	ctx := context.Background()

	created, err := c.Create(ctx, model.NewPost{Content: "s obrázkom", File: &model.Upload{Name: "kvet.jpg", Data: []byte{1, 2, 3}}})
	require.NoError(t, err)
	assert.Equal(t, "2", created.ID)
	assert.Equal(t, model.DefaultAuthor, created.Author)
	assert.Equal(t, "uploads/kvet.jpg", created.ImagePath)

	posts, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "2", posts[0].ID, "backend lists newest first")
}

func TestCreateJSONVariant(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv, api.Options{JSONCreate: true})

	p, err := c.Create(context.Background(), model.NewPost{Author: "Jana", Content: "json"})
	require.NoError(t, err)
	assert.Equal(t, "Jana", p.Author)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestCreateEmptyBody(t *testing.T) {
	srv := apitest.New(t)
	srv.Respond(apitest.Route(http.MethodPost, "/api/posts"), "")
	c := newClient(t, srv, api.Options{})

	_, err := c.Create(context.Background(), model.NewPost{Content: "x"})
	assert.ErrorIs(t, err, api.ErrEmptyResponse)
}

func TestStatusError(t *testing.T) {
	srv := apitest.New(t)
	id := srv.AddPost("Eva", "x")
	srv.Fail(apitest.Route(http.MethodPost, "/like/"+id), http.StatusInternalServerError)
	c := newClient(t, srv, api.Options{})

	_, err := c.ToggleLike(context.Background(), id)
	require.Error(t, err)
	assert.True(t, api.IsStatus(err, http.StatusInternalServerError))
	assert.False(t, api.IsStatus(err, http.StatusNotFound))
}

func TestCommentsRoundTrip(t *testing.T) {
	srv := apitest.New(t)
	id := srv.AddPost("Eva", "x")
	c := newClient(t, srv, api.Options{})
	ctx := context.Background()

	first, err := c.AddComment(ctx, id, model.NewComment{Author: "Jana", Text: "C1"})
	require.NoError(t, err)
	assert.Equal(t, id, first.PostID)
	_, err = c.AddComment(ctx, id, model.NewComment{Author: "Jana", Text: "C2"})
	require.NoError(t, err)

	comments, err := c.Comments(ctx, id)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "C1", comments[0].Text)
	assert.Equal(t, "C2", comments[1].Text)
}

func TestLikeAndFollow(t *testing.T) {
	srv := apitest.New(t)
	id := srv.AddPost("Eva", "x")
	srv.SetUser("eva", false, 4, 2)
	c := newClient(t, srv, api.Options{})
	ctx := context.Background()

	s, err := c.ToggleLike(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.LikeState{Liked: true, Count: 1}, s)

	f, err := c.SetFollow(ctx, "eva", true)
	require.NoError(t, err)
	assert.Equal(t, model.FollowState{Following: true, Followers: 5, FollowingCount: 2}, f)
	assert.Equal(t, 1, srv.Hits(apitest.Route(http.MethodPost, "/follow/eva")))

	f, err = c.SetFollow(ctx, "eva", false)
	require.NoError(t, err)
	assert.False(t, f.Following)
	assert.Equal(t, 4, f.Followers)
}

func TestDeleteAndArticles(t *testing.T) {
	srv := apitest.New(t)
	id := srv.AddPost("Eva", "x")
	srv.SetArticles([]model.Article{{Title: "Zálievka", Content: "ráno"}})
	c := newClient(t, srv, api.Options{})
	ctx := context.Background()

	require.NoError(t, c.Delete(ctx, id))
	assert.Empty(t, srv.PostIDs())

	list, err := c.Articles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Article{{Title: "Zálievka", Content: "ráno"}}, list)
}
