package page

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"gardencircle/internal/dom"
)

func TestDispatchRoutesByAction(t *testing.T) {
	d := NewDispatcher()
	var got Event
	d.Handle(ActionLike, func(ctx context.Context, ev Event) error {
		got = ev
		return nil
	})
	boom := errors.New("boom")
	d.Handle(ActionDelete, func(ctx context.Context, ev Event) error { return boom })

	require.NoError(t, d.Dispatch(context.Background(), Event{Action: ActionLike, Key: "7"}))
	assert.Equal(t, Event{Action: ActionLike, Key: "7"}, got)
	assert.ErrorIs(t, d.Dispatch(context.Background(), Event{Action: ActionDelete}), boom)
	assert.ErrorIs(t, d.Dispatch(context.Background(), Event{Action: "share"}), ErrUnknownAction)
	assert.Equal(t, []string{ActionDelete, ActionLike}, d.Actions())
}

func TestEventFromNode(t *testing.T) {
	doc, err := dom.ParseString(`<ul id="postList">
<li data-id="5"><button class="like-btn" data-action="like" data-post-id="5"><span class="action-icon" id="glyph">🤍</span></button>
<input id="loose" value="nič"></li></ul>
<form data-action="follow" data-username="jana"><button id="followBtn">Follow</button></form>`)
	require.NoError(t, err)

	ev, ok := EventFromNode(dom.ByID(doc, "glyph"))
	require.True(t, ok)
	assert.Equal(t, Event{Action: "like", Key: "5"}, ev)

	ev, ok = EventFromNode(dom.ByID(doc, "followBtn"))
	require.True(t, ok)
	assert.Equal(t, Event{Action: "follow", Key: "jana"}, ev)

	_, ok = EventFromNode(dom.ByID(doc, "loose"))
	assert.False(t, ok)

	var text *html.Node
	_, ok = EventFromNode(text)
	assert.False(t, ok)
}
