package store

import (
	"testing"
	"time"

	"punter/internal/clock"
)

func TestToastAutoDismiss(t *testing.T) {
	fake := clock.NewFake()
	toasts := NewToasts(fake)

	toasts.Push(ToastError, "insufficient funds")
	if got := len(toasts.State().Toasts); got != 1 {
		t.Fatalf("toasts = %d, want 1", got)
	}

	fake.Advance(TOAST_TTL - time.Millisecond)
	if got := len(toasts.State().Toasts); got != 1 {
		t.Fatalf("toasts = %d before ttl, want 1", got)
	}

	fake.Advance(time.Millisecond)
	if got := len(toasts.State().Toasts); got != 0 {
		t.Fatalf("toasts = %d after ttl, want 0", got)
	}
}

func TestToastDismissTargetsOne(t *testing.T) {
	fake := clock.NewFake()
	toasts := NewToasts(fake)

	first := toasts.Push(ToastInfo, "one")
	second := toasts.Push(ToastSuccess, "two")
	toasts.Dismiss(first)

	st := toasts.State()
	if len(st.Toasts) != 1 || st.Toasts[0].ID != second {
		t.Fatalf("remaining toasts = %+v, want only id %d", st.Toasts, second)
	}

	// The dismissed toast's ttl timer firing later is a harmless no-op.
	fake.Advance(TOAST_TTL)
	if got := len(toasts.State().Toasts); got != 0 {
		t.Fatalf("toasts = %d, want 0", got)
	}
}

func TestToastIDsAreFresh(t *testing.T) {
	toasts := NewToasts(clock.NewFake())
	a := toasts.Push(ToastInfo, "a")
	b := toasts.Push(ToastInfo, "b")
	if a == b {
		t.Fatalf("ids collide: %d", a)
	}
}
