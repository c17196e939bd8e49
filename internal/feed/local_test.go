package feed_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardencircle/internal/feed"
	"gardencircle/internal/localstore"
	"gardencircle/internal/model"
)

func TestLocalSourceLifecycle(t *testing.T) {
	ctx := context.Background()
	ls := localstore.New(localstore.NewMemoryBackend())
	s := feed.NewStore(feed.NewLocalSource(ls, ""))

	a, err := s.Create(ctx, model.NewPost{Content: "prvý"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.ID, "p_"))
	assert.Equal(t, model.DefaultAuthor, a.Author)
	b, err := s.Create(ctx, model.NewPost{Author: "Eva", Content: "druhý"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	c, err := s.AddComment(ctx, a.ID, model.NewComment{Author: "Jana", Text: "super"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ID, "c_"))

	state, err := s.ReconcileLike(ctx, b.ID, +1)
	require.NoError(t, err)
	assert.Equal(t, model.LikeState{Liked: true, Count: 1}, state)

	// A fresh store over the same backend sees the persisted collection.
	reloaded := feed.NewStore(feed.NewLocalSource(ls, ""))
	snap := reloaded.Load(ctx, "")
	require.Len(t, snap.Posts, 2)
	assert.Equal(t, a.ID, snap.Posts[0].ID)
	assert.Equal(t, 1, snap.Posts[0].CommentCount)
	assert.True(t, snap.Posts[1].Liked)

	comments, err := reloaded.Comments(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "super", comments[0].Text)

	require.NoError(t, reloaded.Remove(ctx, a.ID))
	assert.Len(t, ls.Posts(ctx), 1)
}

func TestLocalSourceMalformedStateIsEmpty(t *testing.T) {
	ctx := context.Background()
	b := localstore.NewMemoryBackend()
	require.NoError(t, b.Set(ctx, localstore.PostsKey, []byte("][")))

	snap := feed.NewStore(feed.NewLocalSource(localstore.New(b), "")).Load(ctx, "")
	assert.False(t, snap.Failed)
	assert.Empty(t, snap.Posts)
}

func TestLocalSourceFollowUnsupported(t *testing.T) {
	s := feed.NewStore(feed.NewLocalSource(localstore.New(localstore.NewMemoryBackend()), ""))
	_, err := s.ReconcileFollow(context.Background(), "eva", +1)
	assert.ErrorIs(t, err, feed.ErrUnsupported)
	_, ok := s.Follow("eva")
	assert.False(t, ok)
}

func TestLocalSourceArticles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title":"Kompost","content":"Ako na to"}]`), 0o600))
	src := feed.NewLocalSource(localstore.New(localstore.NewMemoryBackend()), path)

	list, err := src.Articles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Article{{Title: "Kompost", Content: "Ako na to"}}, list)

	_, err = feed.NewLocalSource(localstore.New(localstore.NewMemoryBackend()), "").Articles(context.Background())
	assert.ErrorIs(t, err, feed.ErrUnsupported)
}
