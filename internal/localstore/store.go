package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gardencircle/internal/model"
)

// Keys used in the backend.
const (
	ThemeKey = "theme"
	PostsKey = "gardencircle_posts_v1"
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Store reads and writes the typed values kept in a Backend.
type Store struct {
	backend Backend
}

// New wraps backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Theme returns the saved theme, ThemeLight when unset or unreadable.
func (s *Store) Theme(ctx context.Context) string {
	raw, ok, err := s.backend.Get(ctx, ThemeKey)
	if err != nil {
		slog.Warn("could not read theme preference", "error", err)
		return ThemeLight
	}
	if !ok || string(raw) != ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// SetTheme saves theme, which must be ThemeLight or ThemeDark.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return s.backend.Set(ctx, ThemeKey, []byte(theme))
}

// Posts returns the persisted post collection in stored order. A missing,
// unreadable or malformed value is an empty collection.
func (s *Store) Posts(ctx context.Context) []model.Post {
	raw, ok, err := s.backend.Get(ctx, PostsKey)
	if err != nil {
		slog.Warn("could not read local posts", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	posts, err := model.DecodePosts(raw)
	if err != nil {
		slog.Warn("malformed local posts, treating as empty", "error", err)
		return nil
	}
	return posts
}

// SavePosts replaces the persisted collection.
func (s *Store) SavePosts(ctx context.Context, posts []model.Post) error {
	if posts == nil {
		posts = []model.Post{}
	}
	raw, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("encode local posts: %w", err)
	}
	return s.backend.Set(ctx, PostsKey, raw)
}
