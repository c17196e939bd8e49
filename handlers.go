package main

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"gardencircle/internal/feed"
	"gardencircle/internal/model"
	"gardencircle/internal/op"
	"gardencircle/internal/page"
)

// isFragmentRequest reports whether the browser asked for a partial update
// instead of a full page.
func isFragmentRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// respond finishes a mutation: fragment requests get the feed markup,
// regular form posts are redirected back to the page.
func (a *app) respond(w http.ResponseWriter, r *http.Request, status int) {
	if isFragmentRequest(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		io.WriteString(w, a.current().FeedHTML())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *app) htmlPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.current().WriteHTML(w); err != nil {
		LoggerFromContext(r.Context()).Error("render page", "error", err)
	}
}

func (a *app) htmlPostsHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	np := model.NewPost{
		Author:  r.FormValue("author"),
		Content: r.FormValue("content"),
	}
	if f, hdr, err := r.FormFile("file"); err == nil {
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "invalid upload", http.StatusBadRequest)
			return
		}
		if len(data) > 0 {
			np.File = &model.Upload{Name: hdr.Filename, Data: data}
		}
	}

	_, err := a.current().SubmitPost(r.Context(), np)
	a.respond(w, r, statusFor(r, err))
}

func (a *app) htmlActionHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ev := page.Event{
		Action: r.FormValue("action"),
		Key:    r.FormValue("key"),
		Value:  r.FormValue("value"),
	}
	if ev.Value == "" {
		ev.Value = r.FormValue("text")
	}
	noteAction(r.Context(), ev.Action, ev.Key)
	err := a.current().Dispatch(r.Context(), ev)
	if errors.Is(err, page.ErrUnknownAction) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.respond(w, r, statusFor(r, err))
}

// htmlSearchHandler applies a submitted search at once. Live keystrokes
// sent as fragment requests go through the debouncer instead.
func (a *app) htmlSearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	p := a.current()
	if isFragmentRequest(r) {
		p.Input(q)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if err := p.Search(r.Context(), q); err != nil && !errors.Is(err, page.ErrStaleRender) {
		LoggerFromContext(r.Context()).Warn("search failed", "query", q, "error", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	p.WriteHTML(w)
}

func (a *app) htmlThemeHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := a.current().ToggleTheme(r.Context()); err != nil {
		LoggerFromContext(r.Context()).Warn("theme not saved", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// statusFor maps an operation result to the fragment response status. The
// page itself is always consistent, so failures still carry the feed.
func statusFor(r *http.Request, err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, feed.ErrBlankContent), errors.Is(err, feed.ErrBlankComment):
		return http.StatusOK
	case errors.Is(err, op.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, feed.ErrPostNotFound):
		return http.StatusNotFound
	default:
		LoggerFromContext(r.Context()).Warn("operation failed", "path", r.URL.Path, "error", err)
		return http.StatusBadGateway
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// methodOnly rejects requests with any other method.
func methodOnly(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
			w.Header().Set("Allow", method)
			http.Error(w, strings.ToLower(http.StatusText(http.StatusMethodNotAllowed)), http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}
