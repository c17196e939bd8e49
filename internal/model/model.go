// Package model defines the feed records and validates them at the store
// boundary. Decoding is lenient about field naming (the server speaks
// snake_case, the local store camelCase) and strict about the fields the
// renderer depends on.
package model

import (
	"errors"
	"strings"
	"time"
)

// DefaultAuthor is shown when a post or comment has no author.
const DefaultAuthor = "Anonym"

var (
	ErrMissingID     = errors.New("record has no id")
	ErrMissingPostID = errors.New("comment has no post id")
)

// Post is one entry in the feed. Liked is relative to the viewer.
type Post struct {
	ID           string
	Author       string
	Content      string
	CreatedAt    time.Time
	ImagePath    string
	LikeCount    int
	Liked        bool
	CommentCount int

	// Comments is only populated by the local-only store, which keeps a
	// post's comments inline.
	Comments []Comment
}

// Comment belongs to exactly one post and is never re-ordered.
type Comment struct {
	ID        string
	PostID    string
	Author    string
	Text      string
	CreatedAt time.Time
}

// Article is a static card shown next to the feed.
type Article struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// LikeState is the server's answer to a like toggle.
type LikeState struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

// FollowState is the server's answer to a follow toggle.
type FollowState struct {
	Following      bool `json:"following"`
	Followers      int  `json:"followers"`
	FollowingCount int  `json:"following_count"`
}

// Upload is an optional file attached to a new post.
type Upload struct {
	Name string
	Data []byte
}

// NewPost carries the user-entered fields of a post to create.
type NewPost struct {
	Author  string
	Content string
	File    *Upload
}

// NewComment carries the user-entered fields of a comment to add.
type NewComment struct {
	Author string
	Text   string
}

// NormalizePost validates p and coerces soft violations: blank author
// becomes DefaultAuthor and negative counters become zero.
func NormalizePost(p Post) (Post, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return Post{}, ErrMissingID
	}
	if strings.TrimSpace(p.Author) == "" {
		p.Author = DefaultAuthor
	}
	p.LikeCount = nonNegative(p.LikeCount)
	p.CommentCount = nonNegative(p.CommentCount)
	for i := range p.Comments {
		c, err := NormalizeComment(p.Comments[i], p.ID)
		if err != nil {
			p.Comments = nil
			break
		}
		p.Comments[i] = c
	}
	if len(p.Comments) > p.CommentCount {
		p.CommentCount = len(p.Comments)
	}
	return p, nil
}

// NormalizeComment validates c. The server omits post_id from comment
// payloads, so postID fills it in when missing.
func NormalizeComment(c Comment, postID string) (Comment, error) {
	c.ID = strings.TrimSpace(c.ID)
	if c.PostID == "" {
		c.PostID = postID
	}
	if c.PostID == "" {
		return Comment{}, ErrMissingPostID
	}
	if strings.TrimSpace(c.Author) == "" {
		c.Author = DefaultAuthor
	}
	return c, nil
}

// Normalize clamps the like count.
func (s LikeState) Normalize() LikeState {
	s.Count = nonNegative(s.Count)
	return s
}

// Normalize clamps both follow counters.
func (s FollowState) Normalize() FollowState {
	s.Followers = nonNegative(s.Followers)
	s.FollowingCount = nonNegative(s.FollowingCount)
	return s
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
