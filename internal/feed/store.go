// Package feed owns the authoritative in-memory post collection and the
// network calls that change it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"gardencircle/internal/model"
)

var (
	ErrBlankContent = errors.New("post content is blank")
	ErrBlankComment = errors.New("comment text is blank")
	ErrPostNotFound = errors.New("post not found")
	ErrUnsupported  = errors.New("operation not supported by this source")
)

// Snapshot is the result of a Load. Failed marks a degraded read: Posts is
// empty and the caller shows a notice instead of the empty state.
type Snapshot struct {
	Posts  []model.Post
	Failed bool
}

// Store holds the ordered post collection (oldest first) and the follow
// relationships the viewer has touched. It is the only writer of both.
type Store struct {
	src Source

	mu      sync.RWMutex
	posts   []model.Post
	follows map[string]model.FollowState
	loadSeq uint64
	applied uint64

	commentGroup singleflight.Group
}

// NewStore creates an empty store over src.
func NewStore(src Source) *Store {
	return &Store{src: src, follows: make(map[string]model.FollowState)}
}

// =============================================================================
// Reads
// =============================================================================

// Load fetches the collection, replaces the stored one and returns the
// posts matching query. Failures degrade to an empty, Failed snapshot. A
// load that finishes after a newer one started does not overwrite the
// newer result.
func (s *Store) Load(ctx context.Context, query string) Snapshot {
	s.mu.Lock()
	s.loadSeq = max(s.loadSeq, s.applied) + 1
	seq := s.loadSeq
	s.mu.Unlock()
	return s.LoadAt(ctx, seq, query)
}

// LoadAt is Load ordered by a caller-owned sequence: the result replaces
// the stored collection only if no load with a higher seq was applied.
func (s *Store) LoadAt(ctx context.Context, seq uint64, query string) Snapshot {
	s.mu.Lock()
	s.loadSeq = max(s.loadSeq, seq)
	s.mu.Unlock()

	posts, err := s.src.List(ctx)
	if err != nil {
		slog.Warn("feed load failed", "error", err)
		return Snapshot{Posts: []model.Post{}, Failed: true}
	}
	posts = dedupe(posts)
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})

	s.mu.Lock()
	if seq > s.applied {
		s.applied = seq
		s.posts = posts
	} else {
		slog.Debug("discarding superseded feed load", "seq", seq, "applied", s.applied)
	}
	s.mu.Unlock()

	return Snapshot{Posts: Filter(posts, query)}
}

// Seed installs posts that were already on the page, without a network
// read.
func (s *Store) Seed(posts []model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = dedupe(append([]model.Post(nil), posts...))
}

// Posts returns a copy of the collection, oldest first.
func (s *Store) Posts() []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Post(nil), s.posts...)
}

// Get returns the post with id.
func (s *Store) Get(id string) (model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.posts[i], true
	}
	return model.Post{}, false
}

// Has reports whether id is in the collection.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Comments fetches a post's comments. Concurrent reads of the same post
// share one request.
func (s *Store) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	v, err, shared := s.commentGroup.Do(postID, func() (interface{}, error) {
		return s.src.Comments(ctx, postID)
	})
	if shared {
		slog.Debug("singleflight: shared comment fetch", "post_id", postID)
	}
	if err != nil {
		return nil, err
	}
	return append([]model.Comment(nil), v.([]model.Comment)...), nil
}

// Articles fetches the static article list.
func (s *Store) Articles(ctx context.Context) ([]model.Article, error) {
	return s.src.Articles(ctx)
}

// =============================================================================
// Mutations
// =============================================================================

// Create validates and submits a new post, then appends it. Blank content
// is rejected without a network call.
func (s *Store) Create(ctx context.Context, np model.NewPost) (model.Post, error) {
	if model.IsBlank(np.Content) {
		return model.Post{}, ErrBlankContent
	}
	np.Content = strings.TrimSpace(np.Content)
	np.Author = strings.TrimSpace(np.Author)

	p, err := s.src.Create(ctx, np)
	if err != nil {
		return model.Post{}, fmt.Errorf("create post: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(p.ID); i >= 0 {
		s.posts[i] = p
	} else {
		s.posts = append(s.posts, p)
	}
	return p, nil
}

// Remove deletes a post remotely and, only once that succeeded, locally.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.src.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.posts = append(s.posts[:i], s.posts[i+1:]...)
	}
	return nil
}

// AddComment submits a comment on a post that must be present both when
// the call starts and when it returns.
func (s *Store) AddComment(ctx context.Context, postID string, nc model.NewComment) (model.Comment, error) {
	if model.IsBlank(nc.Text) {
		return model.Comment{}, ErrBlankComment
	}
	if !s.Has(postID) {
		return model.Comment{}, fmt.Errorf("comment on %s: %w", postID, ErrPostNotFound)
	}
	nc.Text = strings.TrimSpace(nc.Text)

	c, err := s.src.AddComment(ctx, postID, nc)
	if err != nil {
		return model.Comment{}, fmt.Errorf("comment on %s: %w", postID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(postID)
	if i < 0 {
		return model.Comment{}, fmt.Errorf("comment on %s: %w", postID, ErrPostNotFound)
	}
	s.posts[i].CommentCount++
	return c, nil
}

// ReconcileLike applies delta (+1 like, -1 unlike) to the stored post
// immediately, then asks the source. The source's answer replaces the
// optimistic values; a failure restores the previous ones.
func (s *Store) ReconcileLike(ctx context.Context, postID string, delta int) (model.LikeState, error) {
	s.mu.Lock()
	var prev model.LikeState
	i := s.indexLocked(postID)
	if i >= 0 {
		prev = model.LikeState{Liked: s.posts[i].Liked, Count: s.posts[i].LikeCount}
		s.posts[i].Liked = delta > 0
		s.posts[i].LikeCount = max(0, s.posts[i].LikeCount+delta)
	}
	s.mu.Unlock()

	state, err := s.src.ToggleLike(ctx, postID)

	s.mu.Lock()
	defer s.mu.Unlock()
	i = s.indexLocked(postID)
	if err != nil {
		if i >= 0 {
			s.posts[i].Liked = prev.Liked
			s.posts[i].LikeCount = prev.Count
		}
		return model.LikeState{}, fmt.Errorf("like %s: %w", postID, err)
	}
	if i >= 0 {
		s.posts[i].Liked = state.Liked
		s.posts[i].LikeCount = state.Count
	}
	return state, nil
}

// Follow returns the last known relationship with username.
func (s *Store) Follow(username string) (model.FollowState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.follows[username]
	return st, ok
}

// SeedFollow records a relationship read from the page.
func (s *Store) SeedFollow(username string, st model.FollowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[username] = st
}

// ReconcileFollow is ReconcileLike for a follow relationship: delta +1
// follows, -1 unfollows.
func (s *Store) ReconcileFollow(ctx context.Context, username string, delta int) (model.FollowState, error) {
	s.mu.Lock()
	prev, known := s.follows[username]
	optimistic := prev
	optimistic.Following = delta > 0
	optimistic.Followers = max(0, prev.Followers+delta)
	s.follows[username] = optimistic
	s.mu.Unlock()

	state, err := s.src.SetFollow(ctx, username, delta > 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if known {
			s.follows[username] = prev
		} else {
			delete(s.follows, username)
		}
		return model.FollowState{}, fmt.Errorf("follow %s: %w", username, err)
	}
	s.follows[username] = state
	return state, nil
}

// =============================================================================
// Filtering
// =============================================================================

// Matches reports whether a post with content and author matches query:
// a case-insensitive substring of either. The empty query matches all.
func Matches(content, author, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(content), q) ||
		strings.Contains(strings.ToLower(author), q)
}

// Filter returns the posts matching query, preserving order.
func Filter(posts []model.Post, query string) []model.Post {
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if Matches(p.Content, p.Author, query) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) indexLocked(id string) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}

func dedupe(posts []model.Post) []model.Post {
	seen := make(map[string]bool, len(posts))
	out := posts[:0]
	for _, p := range posts {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
