package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// wirePost accepts both naming conventions. Pointer fields let the snake
// case spelling win only when present.
type wirePost struct {
	ID                json.RawMessage `json:"id"`
	Author            string          `json:"author"`
	Content           string          `json:"content"`
	CreatedAt         json.RawMessage `json:"createdAt"`
	CreatedAtSnake    json.RawMessage `json:"created_at"`
	ImagePath         *string         `json:"imagePath"`
	ImagePathSnake    *string         `json:"image_path"`
	LikeCount         *int            `json:"likeCount"`
	LikeCountSnake    *int            `json:"like_count"`
	Liked             bool            `json:"liked"`
	CommentCount      *int            `json:"commentCount"`
	CommentCountSnake *int            `json:"comment_count"`
	Comments          []Comment       `json:"comments"`
}

type wireComment struct {
	ID             json.RawMessage `json:"id"`
	PostID         json.RawMessage `json:"postId"`
	PostIDSnake    json.RawMessage `json:"post_id"`
	Author         string          `json:"author"`
	Text           string          `json:"text"`
	CreatedAt      json.RawMessage `json:"createdAt"`
	CreatedAtSnake json.RawMessage `json:"created_at"`
}

// localPost is the persisted shape written by the local-only store.
type localPost struct {
	ID           string    `json:"id"`
	Author       string    `json:"author"`
	Content      string    `json:"content"`
	CreatedAt    int64     `json:"createdAt"`
	ImagePath    string    `json:"imagePath,omitempty"`
	LikeCount    int       `json:"likeCount"`
	Liked        bool      `json:"liked"`
	CommentCount int       `json:"commentCount"`
	Comments     []Comment `json:"comments"`
}

type localComment struct {
	ID        string `json:"id"`
	PostID    string `json:"postId"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var w wirePost
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := flexString(w.ID)
	if err != nil {
		return fmt.Errorf("post id: %w", err)
	}
	*p = Post{
		ID:           id,
		Author:       w.Author,
		Content:      w.Content,
		CreatedAt:    flexTime(firstPresent(w.CreatedAtSnake, w.CreatedAt)),
		ImagePath:    firstString(w.ImagePathSnake, w.ImagePath),
		LikeCount:    firstInt(w.LikeCountSnake, w.LikeCount),
		Liked:        w.Liked,
		CommentCount: firstInt(w.CommentCountSnake, w.CommentCount),
		Comments:     w.Comments,
	}
	return nil
}

func (p Post) MarshalJSON() ([]byte, error) {
	comments := p.Comments
	if comments == nil {
		comments = []Comment{}
	}
	return json.Marshal(localPost{
		ID:           p.ID,
		Author:       p.Author,
		Content:      p.Content,
		CreatedAt:    toMillis(p.CreatedAt),
		ImagePath:    p.ImagePath,
		LikeCount:    p.LikeCount,
		Liked:        p.Liked,
		CommentCount: p.CommentCount,
		Comments:     comments,
	})
}

func (c *Comment) UnmarshalJSON(data []byte) error {
	var w wireComment
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := flexString(w.ID)
	if err != nil {
		return fmt.Errorf("comment id: %w", err)
	}
	postID, err := flexString(firstPresent(w.PostIDSnake, w.PostID))
	if err != nil {
		return fmt.Errorf("comment post id: %w", err)
	}
	*c = Comment{
		ID:        id,
		PostID:    postID,
		Author:    w.Author,
		Text:      w.Text,
		CreatedAt: flexTime(firstPresent(w.CreatedAtSnake, w.CreatedAt)),
	}
	return nil
}

func (c Comment) MarshalJSON() ([]byte, error) {
	return json.Marshal(localComment{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    c.Author,
		Text:      c.Text,
		CreatedAt: toMillis(c.CreatedAt),
	})
}

// DecodePosts decodes a JSON array of posts. Entries that fail to decode or
// validate are dropped and logged; duplicate ids keep the first occurrence.
// Only a payload that is not an array at all is an error.
func DecodePosts(data []byte) ([]Post, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	posts := make([]Post, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		var p Post
		if err := json.Unmarshal(r, &p); err != nil {
			slog.Warn("dropping malformed post", "index", i, "error", err)
			continue
		}
		p, err := NormalizePost(p)
		if err != nil {
			slog.Warn("dropping invalid post", "index", i, "error", err)
			continue
		}
		if seen[p.ID] {
			slog.Warn("dropping duplicate post", "id", p.ID)
			continue
		}
		seen[p.ID] = true
		posts = append(posts, p)
	}
	return posts, nil
}

// DecodeComments decodes a JSON array of comments for postID, keeping the
// payload order.
func DecodeComments(data []byte, postID string) ([]Comment, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	comments := make([]Comment, 0, len(raw))
	for i, r := range raw {
		var c Comment
		if err := json.Unmarshal(r, &c); err != nil {
			slog.Warn("dropping malformed comment", "post_id", postID, "index", i, "error", err)
			continue
		}
		c, err := NormalizeComment(c, postID)
		if err != nil {
			slog.Warn("dropping invalid comment", "post_id", postID, "index", i, "error", err)
			continue
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// =============================================================================
// Lenient field helpers
// =============================================================================

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func firstPresent(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		if !isNull(c) {
			return c
		}
	}
	return nil
}

func firstString(candidates ...*string) string {
	for _, c := range candidates {
		if c != nil && *c != "" {
			return *c
		}
	}
	return ""
}

func firstInt(candidates ...*int) int {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}

// flexString accepts a JSON string or number.
func flexString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("want string or number, got %s", raw)
	}
	return n.String(), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// flexTime accepts epoch milliseconds or one of timeLayouts. Anything
// else yields the zero time. Layouts without a zone are read as UTC, which
// is what SQLite's datetime('now') produces.
func flexTime(raw json.RawMessage) time.Time {
	if isNull(raw) {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return time.Time{}
		}
		s = n.String()
	}
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms == 0 {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
