package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"punter/internal/bridge"
	"punter/internal/clock"
	"punter/internal/wire"
)

// fakeBackend satisfies Backend without a socket. Handlers answer by request
// type; anything unhandled gets an empty object.
type fakeBackend struct {
	bus   *bridge.Bus
	sess  *bridge.Session
	sched clock.Scheduler

	mu       sync.Mutex
	handlers map[string]func(data interface{}) (json.RawMessage, error)
	calls    []string
}

func newFakeBackend(sched clock.Scheduler) *fakeBackend {
	if sched == nil {
		sched = clock.System()
	}
	return &fakeBackend{
		bus:      bridge.NewBus(),
		sess:     bridge.NewSession(),
		sched:    sched,
		handlers: make(map[string]func(data interface{}) (json.RawMessage, error)),
	}
}

func (f *fakeBackend) EnsureReady(ctx context.Context) error { return nil }

func (f *fakeBackend) Request(ctx context.Context, reqType string, data interface{}) (json.RawMessage, error) {
	return f.dispatch(reqType, data)
}

func (f *fakeBackend) RequestAuthed(ctx context.Context, reqType string, data interface{}) (json.RawMessage, error) {
	return f.dispatch(reqType, data)
}

func (f *fakeBackend) dispatch(reqType string, data interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, reqType)
	h := f.handlers[reqType]
	f.mu.Unlock()
	if h == nil {
		return json.RawMessage(`{}`), nil
	}
	return h(data)
}

func (f *fakeBackend) Events() *bridge.Bus        { return f.bus }
func (f *fakeBackend) Session() *bridge.Session   { return f.sess }
func (f *fakeBackend) Scheduler() clock.Scheduler { return f.sched }

func (f *fakeBackend) handle(reqType string, h func(data interface{}) (json.RawMessage, error)) {
	f.mu.Lock()
	f.handlers[reqType] = h
	f.mu.Unlock()
}

func (f *fakeBackend) reply(reqType, body string) {
	f.handle(reqType, func(interface{}) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	})
}

func (f *fakeBackend) fail(reqType string, err *wire.Error) {
	f.handle(reqType, func(interface{}) (json.RawMessage, error) {
		return nil, err
	})
}

func (f *fakeBackend) countCalls(reqType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == reqType {
			n++
		}
	}
	return n
}

// push delivers a server event the way readLoop would.
func (f *fakeBackend) push(eventType, payload string) {
	f.bus.Dispatch(wire.Event{Type: eventType, Data: json.RawMessage(payload)})
}

// waitFor polls cond until it holds or the test deadline passes. Store
// activation runs in a goroutine, so snapshot application needs a grace
// period.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
