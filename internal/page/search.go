package page

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"gardencircle/internal/dom"
	"gardencircle/internal/feed"
	"gardencircle/internal/render"
)

// Debouncer runs fn with the last value it was given once no new value
// arrived for the wait window.
type Debouncer struct {
	wait time.Duration
	fn   func(string)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer creates an idle debouncer.
func NewDebouncer(wait time.Duration, fn func(value string)) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

// Trigger restarts the window with value. Any pending run is cancelled.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.wait, func() { d.fire(seq, value) })
}

// fire runs fn unless the debouncer was stopped or retriggered after the
// timer for seq expired.
func (d *Debouncer) fire(seq uint64, value string) {
	d.mu.Lock()
	current := !d.stopped && seq == d.seq
	d.mu.Unlock()
	if current {
		d.fn(value)
	}
}

// Stop cancels a pending run and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// cardText is the cached, lower-cased searchable text of one card.
type cardText struct {
	node    *html.Node
	content string
	author  string
}

// Input feeds a keystroke's worth of search text through the debouncer.
func (p *Page) Input(query string) {
	p.mu.Lock()
	closed := p.closed
	if input := dom.ByID(p.doc, IDSearchInput); input != nil {
		dom.SetAttr(input, "value", query)
	}
	p.mu.Unlock()
	if !closed {
		p.debouncer.Trigger(query)
	}
}

// Search applies query right away: a dynamic page reloads the feed
// filtered by query, a static page hides the cards that do not match.
func (p *Page) Search(ctx context.Context, query string) error {
	if p.mode == Dynamic {
		return p.Reload(ctx, query)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filterLocked(query)
	return nil
}

// Query returns the last applied search text.
func (p *Page) Query() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}

// filterLocked toggles card visibility against the cached card text. The
// cache is built on first use and dropped whenever the list changes.
func (p *Page) filterLocked(query string) int {
	if p.cache == nil {
		cards := postCards(p.list)
		p.cache = make([]cardText, 0, len(cards))
		for _, card := range cards {
			p.cache = append(p.cache, cardText{
				node:    card,
				content: strings.ToLower(dom.Text(dom.FirstByClass(card, render.ContentClasses...))),
				author:  strings.ToLower(dom.Text(dom.FirstByClass(card, render.AuthorClasses...))),
			})
		}
	}
	p.query = query
	visible := 0
	for _, c := range p.cache {
		if feed.Matches(c.content, c.author, query) {
			dom.RemoveAttr(c.node, "hidden")
			visible++
		} else {
			dom.SetAttr(c.node, "hidden", "")
		}
	}
	return visible
}

// VisibleIDs returns the ids of the cards not hidden by a search, in
// display order.
func (p *Page) VisibleIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	cards := postCards(p.list)
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		if _, hidden := dom.Attr(card, "hidden"); !hidden {
			ids = append(ids, dom.GetAttr(card, render.AttrID))
		}
	}
	return ids
}
