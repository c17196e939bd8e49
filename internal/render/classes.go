package render

// Class names and attributes shared by the renderer and the page
// controllers. Server-rendered pages use the older short names, so lookups
// accept both spellings.
const (
	ClassPostCard       = "post-card"
	ClassPostCardModern = "post-card-modern"
	ClassAuthorName     = "post-author-name"
	ClassAuthorShort    = "author"
	ClassContent        = "post-content-text"
	ClassContentShort   = "post-content"
	ClassTime           = "post-time"
	ClassTimeShort      = "time"
	ClassLikeButton     = "like-btn-modern"
	ClassLikeShort      = "like-btn"
	ClassLiked          = "liked"
	ClassLikeCount      = "like-count"
	ClassActionIcon     = "action-icon"
	ClassLikeEmoji      = "like-emoji"
	ClassCommentCount   = "comment-count"
	ClassCommentList    = "comment-list"
	ClassCommentForm    = "comment-form"
	ClassCommentInput   = "comment-input"
	ClassDelete         = "delete-post"
	ClassEmpty          = "empty-posts"
	ClassMuted          = "muted"

	AttrID       = "data-id"
	AttrPostID   = "data-post-id"
	AttrAction   = "data-action"
	AttrUsername = "data-username"

	GlyphLiked   = "❤️"
	GlyphUnliked = "🤍"
)

// Class sets used for lookups.
var (
	PostCardClasses = []string{ClassPostCard, ClassPostCardModern}
	AuthorClasses   = []string{ClassAuthorName, ClassAuthorShort}
	ContentClasses  = []string{ClassContent, ClassContentShort}
	TimeClasses     = []string{ClassTime, ClassTimeShort}
	LikeClasses     = []string{ClassLikeButton, ClassLikeShort}
	GlyphClasses    = []string{ClassActionIcon, ClassLikeEmoji}
)

// Glyph returns the like glyph for liked.
func Glyph(liked bool) string {
	if liked {
		return GlyphLiked
	}
	return GlyphUnliked
}
