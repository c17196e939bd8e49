// Package sanitize neutralizes untrusted text before it reaches the node tree.
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces the five HTML-significant characters with entities.
// It never fails. Escaping twice double-escapes, so callers escape exactly
// once, at the render boundary.
func Escape(text string) string {
	return escaper.Replace(text)
}

var (
	fragmentPolicy     *bluemonday.Policy
	fragmentPolicyOnce sync.Once
)

// Fragment cleans operator-supplied markup (placeholder and notice snippets
// loaded from config) so that only presentational elements survive.
func Fragment(markup string) string {
	fragmentPolicyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Globally()
		fragmentPolicy = p
	})
	return fragmentPolicy.Sanitize(markup)
}
