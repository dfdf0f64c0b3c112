package store

import (
	"time"

	"punter/internal/clock"
)

const TOAST_TTL = 4 * time.Second

// Toast kinds.
const (
	ToastInfo    = "info"
	ToastSuccess = "success"
	ToastError   = "error"
)

type Toast struct {
	ID   int
	Kind string
	Text string
}

type ToastState struct {
	Toasts []Toast
}

// Toasts is the ephemeral notification queue. It has no protocol dependency;
// entries auto-dismiss after TOAST_TTL.
type Toasts struct {
	sched  clock.Scheduler
	st     *snapshot[ToastState]
	nextID int
}

func NewToasts(sched clock.Scheduler) *Toasts {
	if sched == nil {
		sched = clock.System()
	}
	return &Toasts{sched: sched, st: newSnapshot(ToastState{})}
}

func (t *Toasts) State() ToastState { return t.st.get() }

func (t *Toasts) Subscribe(fn func(ToastState)) func() { return t.st.subscribe(fn) }

func (t *Toasts) Push(kind, text string) int {
	var id int
	t.st.patch(func(st *ToastState) {
		t.nextID++
		id = t.nextID
		st.Toasts = append(append([]Toast(nil), st.Toasts...), Toast{ID: id, Kind: kind, Text: text})
	})
	t.sched.AfterFunc(TOAST_TTL, func() { t.Dismiss(id) })
	return id
}

func (t *Toasts) Dismiss(id int) {
	t.st.patch(func(st *ToastState) {
		kept := make([]Toast, 0, len(st.Toasts))
		for _, toast := range st.Toasts {
			if toast.ID != id {
				kept = append(kept, toast)
			}
		}
		st.Toasts = kept
	})
}
