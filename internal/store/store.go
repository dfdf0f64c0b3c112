package store

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"punter/internal/bridge"
	"punter/internal/clock"
	"punter/internal/wire"
)

// Backend is the slice of the bridge the stores depend on. *bridge.Bridge
// implements it; tests substitute their own.
type Backend interface {
	EnsureReady(ctx context.Context) error
	Request(ctx context.Context, reqType string, data interface{}) (json.RawMessage, error)
	RequestAuthed(ctx context.Context, reqType string, data interface{}) (json.RawMessage, error)
	Events() *bridge.Bus
	Session() *bridge.Session
	Scheduler() clock.Scheduler
}

var _ Backend = (*bridge.Bridge)(nil)

// snapshot is the shared state cell: a value snapshot, subscribers, and the
// single patch primitive every mutation funnels through. A patch that leaves
// the state deep-equal to the previous one is a no-op and fires nobody.
type snapshot[S any] struct {
	mu      sync.Mutex
	cur     S
	nextSub int
	subs    map[int]func(S)
}

func newSnapshot[S any](initial S) *snapshot[S] {
	return &snapshot[S]{cur: initial, subs: make(map[int]func(S))}
}

func (c *snapshot[S]) get() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *snapshot[S]) subscribe(fn func(S)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *snapshot[S]) patch(mut func(*S)) bool {
	c.mu.Lock()
	next := c.cur
	mut(&next)
	if reflect.DeepEqual(next, c.cur) {
		c.mu.Unlock()
		return false
	}
	c.cur = next
	listeners := make([]func(S), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return true
}

// actionStatus converts an action failure into a status line. UNAUTHORIZED is
// swallowed entirely: the login dialog is the user-visible signal.
func actionStatus(err error) (status string, ignore bool) {
	we := wire.AsError(err)
	if we == nil {
		return "", true
	}
	if we.Code == wire.CodeUnauthorized {
		return "", true
	}
	return we.Message, false
}

// prependCapped puts v in front of list, trimming to max entries.
func prependCapped[T any](list []T, v T, max int) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, v)
	out = append(out, list...)
	if len(out) > max {
		out = out[:max]
	}
	return out
}
