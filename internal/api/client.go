// Package api is the HTTP client for the feed backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gardencircle/internal/model"
)

// Backend paths.
const (
	PostsPath            = "/api/posts"
	LikePathPrefix       = "/like/"
	FollowPathPrefix     = "/follow/"
	UnfollowPathPrefix   = "/unfollow/"
	DefaultArticlesPath  = "/static/articles.json"
	LocalArticlesPath    = "articles.json"
	maxResponseBodyBytes = 4 << 20
)

// ErrEmptyResponse is returned when a create call succeeds at the HTTP
// level but carries no usable record.
var ErrEmptyResponse = errors.New("empty response from backend")

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Options configure a Client.
type Options struct {
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
	// JSONCreate sends new posts as JSON {author, content} instead of a
	// multipart form. Attached files are not supported in that mode.
	JSONCreate bool
	// ArticlesPath overrides DefaultArticlesPath.
	ArticlesPath string
}

// Client talks to the backend of record.
type Client struct {
	base         *url.URL
	http         *http.Client
	jsonCreate   bool
	articlesPath string
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	articles := opts.ArticlesPath
	if articles == "" {
		articles = DefaultArticlesPath
	}
	return &Client{base: u, http: hc, jsonCreate: opts.JSONCreate, articlesPath: articles}, nil
}

// =============================================================================
// Posts
// =============================================================================

// List fetches every post.
func (c *Client) List(ctx context.Context) ([]model.Post, error) {
	body, err := c.do(ctx, http.MethodGet, PostsPath, nil, "")
	if err != nil {
		return nil, err
	}
	return model.DecodePosts(body)
}

// Create submits a new post. The caller has already rejected blank content.
func (c *Client) Create(ctx context.Context, np model.NewPost) (model.Post, error) {
	var (
		payload     []byte
		contentType string
		err         error
	)
	if c.jsonCreate {
		payload, err = json.Marshal(map[string]string{"author": np.Author, "content": np.Content})
		contentType = "application/json"
	} else {
		payload, contentType, err = multipartPost(np)
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("encode post: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, PostsPath, payload, contentType)
	if err != nil {
		return model.Post{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return model.Post{}, ErrEmptyResponse
	}
	var p model.Post
	if err := json.Unmarshal(body, &p); err != nil {
		return model.Post{}, fmt.Errorf("%w: %v", ErrEmptyResponse, err)
	}
	// The minimal backend echoes only id/author/content.
	if p.Content == "" {
		p.Content = np.Content
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p, err = model.NormalizePost(p)
	if err != nil {
		return model.Post{}, fmt.Errorf("%w: %v", ErrEmptyResponse, err)
	}
	return p, nil
}

func multipartPost(np model.NewPost) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("content", np.Content); err != nil {
		return nil, "", err
	}
	if np.Author != "" {
		if err := w.WriteField("author", np.Author); err != nil {
			return nil, "", err
		}
	}
	if np.File != nil && len(np.File.Data) > 0 {
		fw, err := w.CreateFormFile("file", np.File.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(np.File.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Delete removes a post.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, PostsPath+"/"+url.PathEscape(id), nil, "")
	return err
}

// =============================================================================
// Comments
// =============================================================================

// Comments fetches a post's comments in server order (oldest first).
func (c *Client) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	body, err := c.do(ctx, http.MethodGet, commentsPath(postID), nil, "")
	if err != nil {
		return nil, err
	}
	return model.DecodeComments(body, postID)
}

// AddComment submits a comment.
func (c *Client) AddComment(ctx context.Context, postID string, nc model.NewComment) (model.Comment, error) {
	payload, err := json.Marshal(map[string]string{"author": nc.Author, "text": nc.Text})
	if err != nil {
		return model.Comment{}, err
	}
	body, err := c.do(ctx, http.MethodPost, commentsPath(postID), payload, "application/json")
	if err != nil {
		return model.Comment{}, err
	}
	var cm model.Comment
	if err := json.Unmarshal(body, &cm); err != nil {
		return model.Comment{}, fmt.Errorf("%w: %v", ErrEmptyResponse, err)
	}
	if cm.Text == "" {
		cm.Text = nc.Text
	}
	if cm.CreatedAt.IsZero() {
		cm.CreatedAt = time.Now().UTC()
	}
	return model.NormalizeComment(cm, postID)
}

func commentsPath(postID string) string {
	return PostsPath + "/" + url.PathEscape(postID) + "/comments"
}

// =============================================================================
// Likes, follows, articles
// =============================================================================

// ToggleLike flips the viewer's like on a post and returns the
// authoritative state.
func (c *Client) ToggleLike(ctx context.Context, postID string) (model.LikeState, error) {
	body, err := c.do(ctx, http.MethodPost, LikePathPrefix+url.PathEscape(postID), nil, "")
	if err != nil {
		return model.LikeState{}, err
	}
	var s model.LikeState
	if err := json.Unmarshal(body, &s); err != nil {
		return model.LikeState{}, fmt.Errorf("decode like state: %w", err)
	}
	return s.Normalize(), nil
}

// SetFollow follows or unfollows username.
func (c *Client) SetFollow(ctx context.Context, username string, follow bool) (model.FollowState, error) {
	prefix := UnfollowPathPrefix
	if follow {
		prefix = FollowPathPrefix
	}
	body, err := c.do(ctx, http.MethodPost, prefix+url.PathEscape(username), nil, "")
	if err != nil {
		return model.FollowState{}, err
	}
	var s model.FollowState
	if err := json.Unmarshal(body, &s); err != nil {
		return model.FollowState{}, fmt.Errorf("decode follow state: %w", err)
	}
	return s.Normalize(), nil
}

// Articles fetches the static article list.
func (c *Client) Articles(ctx context.Context) ([]model.Article, error) {
	body, err := c.do(ctx, http.MethodGet, c.articlesPath, nil, "")
	if err != nil {
		return nil, err
	}
	var list []model.Article
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return list, nil
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base.String() + path
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("backend request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	slog.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}
	return body, nil
}
