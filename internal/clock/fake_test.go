package clock

import (
	"testing"
	"time"
)

func TestFake_FiresInDeadlineOrder(t *testing.T) {
	f := NewFake()

	var order []int
	f.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	f.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	f.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	f.Advance(5 * time.Second)

	if len(order) != 3 {
		t.Fatalf("fired %d timers, want 3", len(order))
	}
	for i, want := range []int{1, 2, 3} {
		if order[i] != want {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want)
		}
	}
}

func TestFake_StopPreventsFiring(t *testing.T) {
	f := NewFake()

	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() = false, want true before firing")
	}

	f.Advance(2 * time.Second)

	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("Stop() = true on already-stopped timer")
	}
}

func TestFake_ChainedTimersFireWithinWindow(t *testing.T) {
	f := NewFake()

	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		if ticks < 5 {
			f.AfterFunc(time.Second, tick)
		}
	}
	f.AfterFunc(time.Second, tick)

	f.Advance(5 * time.Second)

	if ticks != 5 {
		t.Errorf("ticks = %d, want 5", ticks)
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", f.Pending())
	}
}

func TestFake_PartialAdvance(t *testing.T) {
	f := NewFake()

	fired := false
	f.AfterFunc(10*time.Second, func() { fired = true })

	f.Advance(9 * time.Second)
	if fired {
		t.Fatal("timer fired early")
	}

	f.Advance(time.Second)
	if !fired {
		t.Fatal("timer did not fire at deadline")
	}
}
