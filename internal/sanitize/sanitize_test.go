package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"empty", "", ""},
		{"ampersand", "a & b", "a &amp; b"},
		{"tags", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"quotes", `say "hi" it's`, "say &quot;hi&quot; it&#039;s"},
		{"unicode", "rastlina 🌱", "rastlina 🌱"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Escape(tc.input))
		})
	}
}

func TestEscapeTwiceDoubleEscapes(t *testing.T) {
	once := Escape("<b>")
	assert.Equal(t, "&amp;lt;b&amp;gt;", Escape(once))
}

func TestEscapeLeavesNoMarkupCharacters(t *testing.T) {
	out := Escape(`<img src=x onerror='a()'>"&`)
	for _, c := range []string{"<", ">", `"`, "'"} {
		assert.NotContains(t, out, c)
	}
	assert.True(t, strings.HasSuffix(out, "&quot;&amp;"))
}

func TestFragmentStripsScripts(t *testing.T) {
	out := Fragment(`<div class="empty-posts"><script>x()</script><h3 onclick="y()">Prázdne</h3></div>`)
	assert.Contains(t, out, `class="empty-posts"`)
	assert.Contains(t, out, "<h3>Prázdne</h3>")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
}
