package feed

import (
	"context"

	"gardencircle/internal/model"
)

// Source is the server of record. *api.Client is the networked source;
// LocalSource keeps everything in the client-local store.
type Source interface {
	List(ctx context.Context) ([]model.Post, error)
	Create(ctx context.Context, np model.NewPost) (model.Post, error)
	Delete(ctx context.Context, id string) error
	Comments(ctx context.Context, postID string) ([]model.Comment, error)
	AddComment(ctx context.Context, postID string, nc model.NewComment) (model.Comment, error)
	ToggleLike(ctx context.Context, postID string) (model.LikeState, error)
	SetFollow(ctx context.Context, username string, follow bool) (model.FollowState, error)
	Articles(ctx context.Context) ([]model.Article, error)
}
