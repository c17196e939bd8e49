// Package apitest provides an in-memory feed backend for tests. It serves
// the same endpoints as the real backend and lets tests inject failures,
// hold requests open and count calls.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gardencircle/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

type post struct {
	id        int
	author    string
	content   string
	createdAt time.Time
	imagePath string
}

type comment struct {
	id        int
	author    string
	text      string
	createdAt time.Time
}

type userStats struct {
	following      bool
	followers      int
	followingCount int
}

// Server is a fake backend. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	posts      []post
	comments   map[int][]comment
	liked      map[int]bool
	likeCounts map[int]int
	users      map[string]*userStats
	articles   []model.Article
	nextID     int
	clock      time.Time

	failures map[string]int
	hits     map[string]int
	gates    map[string]chan struct{}
	raw      map[string]string
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		comments:   make(map[int][]comment),
		liked:      make(map[int]bool),
		likeCounts: make(map[int]int),
		users:      make(map[string]*userStats),
		failures:   make(map[string]int),
		hits:       make(map[string]int),
		gates:      make(map[string]chan struct{}),
		raw:        make(map[string]string),
		nextID:     1,
		clock:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts", s.listPosts)
	mux.HandleFunc("POST /api/posts", s.createPost)
	mux.HandleFunc("DELETE /api/posts/{id}", s.deletePost)
	mux.HandleFunc("GET /api/posts/{id}/comments", s.listComments)
	mux.HandleFunc("POST /api/posts/{id}/comments", s.addComment)
	mux.HandleFunc("POST /like/{id}", s.toggleLike)
	mux.HandleFunc("POST /follow/{user}", s.follow(true))
	mux.HandleFunc("POST /unfollow/{user}", s.follow(false))
	mux.HandleFunc("GET /static/articles.json", s.listArticles)

	s.Server = httptest.NewServer(s.intercept(mux))
	t.Cleanup(s.Close)
	return s
}

// Route formats the key used by Fail, Hits and Hold.
func Route(method, path string) string {
	return method + " " + path
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := Route(r.Method, r.URL.Path)
		s.mu.Lock()
		s.hits[key]++
		code, failing := s.failures[key]
		gate := s.gates[key]
		body, hasRaw := s.raw[key]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			http.Error(w, "injected failure", code)
			return
		}
		if hasRaw {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fail makes every request to route answer with code until Recover.
func (s *Server) Fail(route string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = code
}

// Recover removes an injected failure.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Respond makes route answer 200 with body verbatim.
func (s *Server) Respond(route, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[route] = body
}

// Hold blocks requests to route until the returned release is called.
func (s *Server) Hold(route string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, route)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits returns the number of requests served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// =============================================================================
// Seeding
// =============================================================================

// AddPost stores a post and returns its id. Each post is one minute newer
// than the previous one.
func (s *Server) AddPost(author, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.Itoa(s.insertLocked(author, content, ""))
}

// AddComment stores a comment on post id.
func (s *Server) AddComment(postID, author, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := strconv.Atoi(postID)
	s.insertCommentLocked(id, author, text)
}

// LikeFromElsewhere simulates another viewer liking the post.
func (s *Server) LikeFromElsewhere(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := strconv.Atoi(postID)
	s.likeCounts[id]++
}

// SetUser seeds follow counters for username.
func (s *Server) SetUser(username string, following bool, followers, followingCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &userStats{following: following, followers: followers, followingCount: followingCount}
}

// SetArticles replaces the article list.
func (s *Server) SetArticles(list []model.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles = list
}

// PostIDs returns the ids currently stored, oldest first.
func (s *Server) PostIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.posts))
	for i, p := range s.posts {
		ids[i] = strconv.Itoa(p.id)
	}
	return ids
}

func (s *Server) insertLocked(author, content, imagePath string) int {
	if strings.TrimSpace(author) == "" {
		author = model.DefaultAuthor
	}
	s.clock = s.clock.Add(time.Minute)
	p := post{id: s.nextID, author: author, content: content, createdAt: s.clock, imagePath: imagePath}
	s.nextID++
	s.posts = append(s.posts, p)
	return p.id
}

func (s *Server) insertCommentLocked(postID int, author, text string) comment {
	if strings.TrimSpace(author) == "" {
		author = model.DefaultAuthor
	}
	s.clock = s.clock.Add(time.Second)
	c := comment{id: s.nextID, author: author, text: text, createdAt: s.clock}
	s.nextID++
	s.comments[postID] = append(s.comments[postID], c)
	return c
}

func (s *Server) findLocked(id int) int {
	for i, p := range s.posts {
		if p.id == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// Handlers
// =============================================================================

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) postJSONLocked(p post) map[string]any {
	out := map[string]any{
		"id":            p.id,
		"author":        p.author,
		"content":       p.content,
		"created_at":    p.createdAt.Format(timeLayout),
		"like_count":    s.likeCounts[p.id],
		"liked":         s.liked[p.id],
		"comment_count": len(s.comments[p.id]),
	}
	if p.imagePath != "" {
		out["image_path"] = p.imagePath
	}
	return out
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.posts))
	// newest first, like ORDER BY created_at DESC
	for i := len(s.posts) - 1; i >= 0; i-- {
		out = append(out, s.postJSONLocked(s.posts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var author, content, imagePath string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var in struct {
			Author  string `json:"author"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		author, content = in.Author, in.Content
	} else {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		author, content = r.FormValue("author"), r.FormValue("content")
		if _, hdr, err := r.FormFile("file"); err == nil {
			imagePath = "uploads/" + hdr.Filename
		}
	}
	if strings.TrimSpace(content) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Content required"})
		return
	}

	s.mu.Lock()
	id := s.insertLocked(strings.TrimSpace(author), strings.TrimSpace(content), imagePath)
	out := s.postJSONLocked(s.posts[s.findLocked(id)])
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	if i := s.findLocked(id); i >= 0 {
		s.posts = append(s.posts[:i], s.posts[i+1:]...)
		delete(s.comments, id)
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.comments[id]))
	for _, c := range s.comments[id] {
		out = append(out, map[string]any{
			"id": c.id, "author": c.author, "text": c.text, "created_at": c.createdAt.Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	var in struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Text required"})
		return
	}
	s.mu.Lock()
	if s.findLocked(id) < 0 {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	c := s.insertCommentLocked(id, strings.TrimSpace(in.Author), strings.TrimSpace(in.Text))
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"id": c.id, "author": c.author, "text": c.text})
}

func (s *Server) toggleLike(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(id) < 0 {
		http.NotFound(w, r)
		return
	}
	if s.liked[id] {
		s.liked[id] = false
		s.likeCounts[id]--
	} else {
		s.liked[id] = true
		s.likeCounts[id]++
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": s.liked[id], "count": s.likeCounts[id]})
}

func (s *Server) follow(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.PathValue("user")
		s.mu.Lock()
		defer s.mu.Unlock()
		st := s.users[user]
		if st == nil {
			st = &userStats{}
			s.users[user] = st
		}
		if on && !st.following {
			st.followers++
		} else if !on && st.following {
			st.followers--
		}
		st.following = on
		writeJSON(w, http.StatusOK, map[string]any{
			"following": st.following, "followers": st.followers, "following_count": st.followingCount,
		})
	}
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.articles == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.articles)
}
