package page

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/net/html"

	"gardencircle/internal/dom"
	"gardencircle/internal/model"
	"gardencircle/internal/render"
)

// Actions the page registers.
const (
	ActionLike    = "like"
	ActionDelete  = "delete"
	ActionComment = "comment"
	ActionFollow  = "follow"
	ActionSearch  = "search"
	ActionTheme   = "theme"
)

// ErrUnknownAction is returned for an event no handler is registered for.
var ErrUnknownAction = errors.New("unknown action")

// Event is one user interaction, already reduced to what a handler needs.
// Key names the post or user the control belongs to; Value carries typed
// text such as a comment or a search query.
type Event struct {
	Action string
	Key    string
	Value  string
}

// Handler reacts to an event.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher routes events by action name. It is the single entry point for
// every control on the page.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Handle registers h for action, replacing an earlier handler.
func (d *Dispatcher) Handle(action string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = h
}

// Dispatch runs the handler for ev.Action.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	h, ok := d.handlers[ev.Action]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, ev.Action)
	}
	return h(ctx, ev)
}

// Actions lists the registered action names.
func (d *Dispatcher) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for a := range d.handlers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// EventFromNode builds the event for an interaction on n: the nearest
// element at or above n carrying data-action decides the action, and its
// data-post-id or data-username the key. ok is false when no ancestor has
// an action.
func EventFromNode(n *html.Node) (ev Event, ok bool) {
	target := dom.Closest(n, func(a *html.Node) bool {
		_, has := dom.Attr(a, render.AttrAction)
		return dom.IsElement(a) && has
	})
	if target == nil {
		return Event{}, false
	}
	ev.Action = dom.GetAttr(target, render.AttrAction)
	ev.Key = dom.GetAttr(target, render.AttrPostID)
	if ev.Key == "" {
		ev.Key = dom.GetAttr(target, render.AttrUsername)
	}
	if v, has := dom.Attr(n, "value"); has {
		ev.Value = v
	}
	return ev, true
}

// Dispatch routes ev to the page's controllers.
func (p *Page) Dispatch(ctx context.Context, ev Event) error {
	return p.dispatcher.Dispatch(ctx, ev)
}

// Dispatcher returns the page's dispatcher so hosts can add actions.
func (p *Page) Dispatcher() *Dispatcher {
	return p.dispatcher
}

func (p *Page) newDispatcher() *Dispatcher {
	d := NewDispatcher()
	d.Handle(ActionLike, func(ctx context.Context, ev Event) error {
		_, err := p.ToggleLike(ctx, ev.Key)
		return err
	})
	d.Handle(ActionDelete, func(ctx context.Context, ev Event) error {
		return p.DeletePost(ctx, ev.Key)
	})
	d.Handle(ActionComment, func(ctx context.Context, ev Event) error {
		_, err := p.SubmitComment(ctx, ev.Key, model.NewComment{Text: ev.Value})
		return err
	})
	d.Handle(ActionFollow, func(ctx context.Context, ev Event) error {
		_, err := p.ToggleFollow(ctx, ev.Key)
		return err
	})
	d.Handle(ActionSearch, func(ctx context.Context, ev Event) error {
		p.Input(ev.Value)
		return nil
	})
	d.Handle(ActionTheme, func(ctx context.Context, ev Event) error {
		_, err := p.ToggleTheme(ctx)
		return err
	})
	return d
}
