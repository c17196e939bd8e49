// Package op models a user-triggered network operation as an explicit
// state machine: idle -> pending -> resolved | failed. Optimistic display
// changes hang off the transitions, so rolling back is the pending->failed
// transition rather than an ad hoc error branch.
package op

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State of an operation.
type State int

const (
	Idle State = iota
	Pending
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrInFlight rejects a second operation on a key whose first one is
	// still pending.
	ErrInFlight = errors.New("operation already in flight")
	// ErrBadTransition is returned for a transition the machine forbids.
	ErrBadTransition = errors.New("invalid operation state transition")
)

// Hooks run on transitions. Any of them may be nil.
type Hooks struct {
	// OnPending applies the optimistic change.
	OnPending func()
	// OnResolved applies the authoritative result.
	OnResolved func()
	// OnFailed reverts the optimistic change.
	OnFailed func(err error)
}

// Op is a single operation.
type Op struct {
	Key   string
	hooks Hooks

	mu    sync.Mutex
	state State
	err   error

	observe func(key string, from, to State)
}

// New creates an idle operation.
func New(key string, hooks Hooks) *Op {
	return &Op{Key: key, hooks: hooks}
}

// State returns the current state.
func (o *Op) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err returns the failure cause once the operation has failed.
func (o *Op) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *Op) transition(from, to State, cause error) error {
	o.mu.Lock()
	if o.state != from {
		cur := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s (currently %s)", ErrBadTransition, from, to, cur)
	}
	o.state = to
	o.err = cause
	observe := o.observe
	o.mu.Unlock()

	if observe != nil {
		observe(o.Key, from, to)
	}
	switch to {
	case Pending:
		if o.hooks.OnPending != nil {
			o.hooks.OnPending()
		}
	case Resolved:
		if o.hooks.OnResolved != nil {
			o.hooks.OnResolved()
		}
	case Failed:
		if o.hooks.OnFailed != nil {
			o.hooks.OnFailed(cause)
		}
	}
	return nil
}

// Begin moves idle -> pending.
func (o *Op) Begin() error {
	return o.transition(Idle, Pending, nil)
}

// Resolve moves pending -> resolved.
func (o *Op) Resolve() error {
	return o.transition(Pending, Resolved, nil)
}

// Fail moves pending -> failed and runs the revert hook.
func (o *Op) Fail(cause error) error {
	return o.transition(Pending, Failed, cause)
}

// Run drives the whole machine: Begin, call fn, then Resolve or Fail
// depending on fn's result. It returns fn's error.
func (o *Op) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := o.Begin(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_ = o.Fail(err)
		return err
	}
	return o.Resolve()
}

// Tracker allows at most one pending operation per key.
type Tracker struct {
	mu       sync.Mutex
	inflight map[string]*Op

	// Observe, when set, is called on every transition.
	Observe func(key string, from, to State)
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{inflight: make(map[string]*Op)}
}

// Pending reports whether key has an operation in flight.
func (t *Tracker) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[key]
	return ok
}

// Run creates an operation for key and runs it. It returns ErrInFlight
// without calling any hook when key is already pending.
func (t *Tracker) Run(ctx context.Context, key string, hooks Hooks, fn func(context.Context) error) error {
	t.mu.Lock()
	if _, busy := t.inflight[key]; busy {
		t.mu.Unlock()
		return fmt.Errorf("%s: %w", key, ErrInFlight)
	}
	o := New(key, hooks)
	o.observe = t.Observe
	t.inflight[key] = o
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.inflight, key)
		t.mu.Unlock()
	}()
	return o.Run(ctx, fn)
}
