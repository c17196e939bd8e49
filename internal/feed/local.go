package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"gardencircle/internal/localstore"
	"gardencircle/internal/model"
)

// LocalSource is the source for the local-only variant: no backend, the
// whole collection lives under one key of the local store and ids are
// assigned on the client.
type LocalSource struct {
	store        *localstore.Store
	articlesFile string
	now          func() time.Time

	mu sync.Mutex
}

// NewLocalSource creates a source over store. articlesFile is the path of
// the articles JSON served next to the page; empty disables articles.
func NewLocalSource(store *localstore.Store, articlesFile string) *LocalSource {
	return &LocalSource{store: store, articlesFile: articlesFile, now: time.Now}
}

// NewID returns a client-assigned id with the given prefix.
func NewID(prefix string) string {
	return prefix + strings.ToLower(ulid.Make().String())
}

func (l *LocalSource) List(ctx context.Context) ([]model.Post, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Posts(ctx), nil
}

func (l *LocalSource) Create(ctx context.Context, np model.NewPost) (model.Post, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	author := np.Author
	if author == "" {
		author = model.DefaultAuthor
	}
	p := model.Post{
		ID:        NewID("p_"),
		Author:    author,
		Content:   np.Content,
		CreatedAt: l.now().UTC(),
		Comments:  []model.Comment{},
	}
	posts := append(l.store.Posts(ctx), p)
	if err := l.store.SavePosts(ctx, posts); err != nil {
		return model.Post{}, err
	}
	return p, nil
}

func (l *LocalSource) Delete(ctx context.Context, id string) error {
	return l.update(ctx, func(posts []model.Post) ([]model.Post, error) {
		out := posts[:0]
		for _, p := range posts {
			if p.ID != id {
				out = append(out, p)
			}
		}
		return out, nil
	})
}

func (l *LocalSource) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.store.Posts(ctx) {
		if p.ID == postID {
			return append([]model.Comment(nil), p.Comments...), nil
		}
	}
	return nil, ErrPostNotFound
}

func (l *LocalSource) AddComment(ctx context.Context, postID string, nc model.NewComment) (model.Comment, error) {
	author := nc.Author
	if author == "" {
		author = model.DefaultAuthor
	}
	c := model.Comment{
		ID:        NewID("c_"),
		PostID:    postID,
		Author:    author,
		Text:      nc.Text,
		CreatedAt: l.now().UTC(),
	}
	err := l.update(ctx, func(posts []model.Post) ([]model.Post, error) {
		for i := range posts {
			if posts[i].ID == postID {
				posts[i].Comments = append(posts[i].Comments, c)
				posts[i].CommentCount = len(posts[i].Comments)
				return posts, nil
			}
		}
		return nil, ErrPostNotFound
	})
	if err != nil {
		return model.Comment{}, err
	}
	return c, nil
}

func (l *LocalSource) ToggleLike(ctx context.Context, postID string) (model.LikeState, error) {
	var state model.LikeState
	err := l.update(ctx, func(posts []model.Post) ([]model.Post, error) {
		for i := range posts {
			if posts[i].ID == postID {
				if posts[i].Liked {
					posts[i].LikeCount = max(0, posts[i].LikeCount-1)
				} else {
					posts[i].LikeCount++
				}
				posts[i].Liked = !posts[i].Liked
				state = model.LikeState{Liked: posts[i].Liked, Count: posts[i].LikeCount}
				return posts, nil
			}
		}
		return nil, ErrPostNotFound
	})
	return state, err
}

// SetFollow is not available without a backend.
func (l *LocalSource) SetFollow(ctx context.Context, username string, follow bool) (model.FollowState, error) {
	return model.FollowState{}, ErrUnsupported
}

func (l *LocalSource) Articles(ctx context.Context) ([]model.Article, error) {
	if l.articlesFile == "" {
		return nil, ErrUnsupported
	}
	raw, err := os.ReadFile(l.articlesFile)
	if err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}
	var list []model.Article
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return list, nil
}

func (l *LocalSource) update(ctx context.Context, fn func([]model.Post) ([]model.Post, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	posts, err := fn(l.store.Posts(ctx))
	if err != nil {
		return err
	}
	return l.store.SavePosts(ctx, posts)
}
