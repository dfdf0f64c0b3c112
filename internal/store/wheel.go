package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"punter/internal/clock"
	"punter/internal/wire"
)

const (
	WHEEL_SPIN_WINDOW = 9 * time.Second
	WHEEL_HISTORY_MAX = 40
)

type WheelPhase string

const (
	WheelBetting  WheelPhase = "betting"
	WheelSpinning WheelPhase = "spinning"
)

type WheelResult struct {
	RoundID    string  `json:"roundId"`
	Color      string  `json:"color"`
	Multiplier float64 `json:"multiplier"`
}

type WheelState struct {
	Phase     WheelPhase
	RoundID   string
	Countdown float64
	Angle     float64
	Bets      []wire.Bet
	FairHash  string
	MinBet    string
	MaxBet    string
	History   []WheelResult
	Status    string
}

type wheelSlider struct {
	RoundID    string  `json:"roundId"`
	Angle      float64 `json:"angle"`
	Color      string  `json:"color"`
	Multiplier float64 `json:"multiplier"`
}

// Wheel: server-driven betting countdown, then a slider push starts a
// fixed-length client spin window. The result lands in history only when the
// window closes.
type Wheel struct {
	b      Backend
	toasts *Toasts
	st     *snapshot[WheelState]
	once   sync.Once

	mu            sync.Mutex
	spinTimer     clock.Timer
	lastCommitted string
}

func NewWheel(b Backend, toasts *Toasts) *Wheel {
	return &Wheel{b: b, toasts: toasts, st: newSnapshot(WheelState{
		Phase:  WheelBetting,
		MinBet: "0.10",
		MaxBet: "1000.00",
	})}
}

func (w *Wheel) State() WheelState { return w.st.get() }

func (w *Wheel) Subscribe(fn func(WheelState)) func() {
	w.once.Do(w.activate)
	return w.st.subscribe(fn)
}

func (w *Wheel) activate() {
	bus := w.b.Events()
	bus.Subscribe(wire.EvWheelNewRound, w.onNewRound)
	bus.Subscribe(wire.EvWheelTimer, w.onTimer)
	bus.Subscribe(wire.EvWheelSlider, w.onSlider)
	bus.Subscribe(wire.EvWheelBet, w.onBet)

	go func() {
		ctx := context.Background()
		if err := w.b.EnsureReady(ctx); err != nil {
			return
		}
		raw, err := w.b.Request(ctx, wire.ReqWheelSub, nil)
		if err != nil {
			return
		}
		var snap struct {
			RoundID  string        `json:"roundId"`
			FairHash string        `json:"fairHash"`
			MinBet   string        `json:"minBet"`
			MaxBet   string        `json:"maxBet"`
			Bets     []wire.Bet    `json:"bets"`
			History  []WheelResult `json:"history"`
		}
		if json.Unmarshal(raw, &snap) != nil {
			return
		}
		w.st.patch(func(st *WheelState) {
			st.RoundID = snap.RoundID
			st.FairHash = snap.FairHash
			st.Bets = snap.Bets
			st.History = snap.History
			if snap.MinBet != "" {
				st.MinBet = snap.MinBet
			}
			if snap.MaxBet != "" {
				st.MaxBet = snap.MaxBet
			}
		})
	}()
}

func (w *Wheel) onNewRound(ev wire.Event) {
	var round struct {
		RoundID  string  `json:"roundId"`
		FairHash string  `json:"fairHash"`
		Seconds  float64 `json:"seconds"`
	}
	if json.Unmarshal(ev.Data, &round) != nil {
		return
	}

	// A fresh round supersedes any spin still animating; its timers must
	// never stack with the new window's.
	w.cancelSpin()

	w.st.patch(func(st *WheelState) {
		st.Phase = WheelBetting
		st.RoundID = round.RoundID
		st.FairHash = round.FairHash
		st.Countdown = round.Seconds
		st.Angle = 0
		st.Bets = nil
	})
}

func (w *Wheel) onTimer(ev wire.Event) {
	var tick struct {
		RoundID string  `json:"roundId"`
		Seconds float64 `json:"seconds"`
	}
	if json.Unmarshal(ev.Data, &tick) != nil {
		return
	}
	w.st.patch(func(st *WheelState) {
		if tick.RoundID != "" && tick.RoundID != st.RoundID {
			return
		}
		st.Countdown = tick.Seconds
	})
}

func (w *Wheel) onBet(ev wire.Event) {
	var bet wire.Bet
	if json.Unmarshal(ev.Data, &bet) != nil {
		return
	}
	w.st.patch(func(st *WheelState) {
		st.Bets = append(append([]wire.Bet(nil), st.Bets...), bet)
	})
}

func (w *Wheel) onSlider(ev wire.Event) {
	var slider wheelSlider
	if json.Unmarshal(ev.Data, &slider) != nil {
		return
	}

	w.cancelSpin()

	w.st.patch(func(st *WheelState) {
		st.Phase = WheelSpinning
		st.Angle = slider.Angle
		if slider.RoundID != "" {
			st.RoundID = slider.RoundID
		}
	})

	w.mu.Lock()
	w.spinTimer = w.b.Scheduler().AfterFunc(WHEEL_SPIN_WINDOW, func() {
		w.finishSpin(slider)
	})
	w.mu.Unlock()
}

// finishSpin closes the window: back to betting-ready first, then the
// one-time history commit.
func (w *Wheel) finishSpin(slider wheelSlider) {
	w.mu.Lock()
	w.spinTimer = nil
	replay := slider.RoundID != "" && slider.RoundID == w.lastCommitted
	if !replay {
		w.lastCommitted = slider.RoundID
	}
	w.mu.Unlock()

	// The phase flips back even for a replayed slider; only the history
	// commit is once per round.
	w.st.patch(func(st *WheelState) {
		st.Phase = WheelBetting
		if replay {
			return
		}
		st.History = prependCapped(st.History, WheelResult{
			RoundID:    slider.RoundID,
			Color:      slider.Color,
			Multiplier: slider.Multiplier,
		}, WHEEL_HISTORY_MAX)
	})
}

func (w *Wheel) cancelSpin() {
	w.mu.Lock()
	if w.spinTimer != nil {
		w.spinTimer.Stop()
		w.spinTimer = nil
	}
	w.mu.Unlock()
}

// Bet joins the current betting window on a color.
func (w *Wheel) Bet(ctx context.Context, amount, color string) error {
	if err := w.b.EnsureReady(ctx); err != nil {
		return err
	}
	_, err := w.b.RequestAuthed(ctx, wire.ReqWheelBet, map[string]string{
		"amount": amount,
		"color":  color,
	})
	if err != nil {
		status, ignore := actionStatus(err)
		if !ignore {
			w.st.patch(func(st *WheelState) { st.Status = status })
			if w.toasts != nil {
				w.toasts.Push(ToastError, status)
			}
		}
		return err
	}
	w.st.patch(func(st *WheelState) { st.Status = "" })
	return nil
}
