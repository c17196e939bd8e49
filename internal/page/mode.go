package page

import "golang.org/x/net/html"

// Mode says who rendered the feed.
type Mode int

const (
	// Dynamic pages fetch and render the feed themselves.
	Dynamic Mode = iota
	// Static pages arrive with the feed already rendered by the server.
	Static
)

func (m Mode) String() string {
	if m == Static {
		return "static"
	}
	return "dynamic"
}

// DetectMode inspects the feed container as it was delivered. Call it once,
// before anything is inserted: later dynamic renders would flip the answer.
func DetectMode(list *html.Node) Mode {
	if len(postCards(list)) > 0 {
		return Static
	}
	return Dynamic
}
