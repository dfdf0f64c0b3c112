package store

import (
	"context"
	"encoding/json"
	"sync"

	"punter/internal/wire"
)

const CRASH_HISTORY_MAX = 30

type CrashPhase string

const (
	CrashBetting CrashPhase = "betting"
	CrashRunning CrashPhase = "running"
	CrashEnded   CrashPhase = "ended"
)

type CrashRound struct {
	RoundID string  `json:"roundId"`
	Crash   float64 `json:"crash"`
}

type CrashState struct {
	Phase       CrashPhase
	RoundID     string
	Countdown   float64
	Multiplier  float64
	GraphPoints []float64
	Bets        []wire.Bet
	FairHash    string
	MinBet      string
	MaxBet      string
	History     []CrashRound
	HasBet      bool
	CashedOut   bool
	Status      string
}

type crashSnapshot struct {
	Phase      CrashPhase   `json:"phase"`
	RoundID    string       `json:"roundId"`
	Multiplier float64      `json:"multiplier"`
	FairHash   string       `json:"fairHash"`
	MinBet     string       `json:"minBet"`
	MaxBet     string       `json:"maxBet"`
	Bets       []wire.Bet   `json:"bets"`
	History    []CrashRound `json:"history"`
}

type crashTick struct {
	RoundID    string  `json:"roundId"`
	Multiplier float64 `json:"multiplier"`
	Crashed    bool    `json:"crashed"`
}

type crashNewRound struct {
	RoundID  string  `json:"roundId"`
	FairHash string  `json:"fairHash"`
	Seconds  float64 `json:"seconds"`
	MinBet   string  `json:"minBet"`
	MaxBet   string  `json:"maxBet"`
}

type crashTimer struct {
	RoundID string  `json:"roundId"`
	Seconds float64 `json:"seconds"`
}

// Crash renders the server's tick stream; the client never invents timing
// here. GraphPoints always starts at 1 and only grows within a round.
type Crash struct {
	b      Backend
	toasts *Toasts
	st     *snapshot[CrashState]
	once   sync.Once

	mu            sync.Mutex
	lastCommitted string
}

func NewCrash(b Backend, toasts *Toasts) *Crash {
	return &Crash{b: b, toasts: toasts, st: newSnapshot(CrashState{
		Phase:       CrashBetting,
		GraphPoints: []float64{1},
		Multiplier:  1,
		MinBet:      "0.10",
		MaxBet:      "1000.00",
	})}
}

func (c *Crash) State() CrashState { return c.st.get() }

func (c *Crash) Subscribe(fn func(CrashState)) func() {
	c.once.Do(c.activate)
	return c.st.subscribe(fn)
}

func (c *Crash) activate() {
	bus := c.b.Events()
	bus.Subscribe(wire.EvCrashNewRound, c.onNewRound)
	bus.Subscribe(wire.EvCrashTimer, c.onTimer)
	bus.Subscribe(wire.EvCrashTick, c.onTick)
	bus.Subscribe(wire.EvCrashBetsSnapshot, c.onBets)

	go func() {
		ctx := context.Background()
		if err := c.b.EnsureReady(ctx); err != nil {
			return
		}
		raw, err := c.b.Request(ctx, wire.ReqCrashSub, nil)
		if err != nil {
			return
		}
		var snap crashSnapshot
		if json.Unmarshal(raw, &snap) != nil {
			return
		}
		c.st.patch(func(st *CrashState) {
			if snap.Phase != "" {
				st.Phase = snap.Phase
			}
			st.RoundID = snap.RoundID
			st.FairHash = snap.FairHash
			if snap.MinBet != "" {
				st.MinBet = snap.MinBet
			}
			if snap.MaxBet != "" {
				st.MaxBet = snap.MaxBet
			}
			st.Bets = snap.Bets
			st.History = snap.History
			if snap.Multiplier >= 1 {
				st.Multiplier = snap.Multiplier
				st.GraphPoints = []float64{1}
				if snap.Multiplier > 1 {
					st.GraphPoints = append(st.GraphPoints, snap.Multiplier)
				}
			}
		})
	}()
}

func (c *Crash) onNewRound(ev wire.Event) {
	var round crashNewRound
	if json.Unmarshal(ev.Data, &round) != nil {
		return
	}
	c.st.patch(func(st *CrashState) {
		st.Phase = CrashBetting
		st.RoundID = round.RoundID
		st.FairHash = round.FairHash
		st.Countdown = round.Seconds
		st.Multiplier = 1
		st.GraphPoints = []float64{1}
		st.Bets = nil
		st.HasBet = false
		st.CashedOut = false
		if round.MinBet != "" {
			st.MinBet = round.MinBet
		}
		if round.MaxBet != "" {
			st.MaxBet = round.MaxBet
		}
	})
}

func (c *Crash) onTimer(ev wire.Event) {
	var tick crashTimer
	if json.Unmarshal(ev.Data, &tick) != nil {
		return
	}
	c.st.patch(func(st *CrashState) {
		if tick.RoundID != "" && tick.RoundID != st.RoundID {
			return
		}
		st.Countdown = tick.Seconds
	})
}

func (c *Crash) onTick(ev wire.Event) {
	var tick crashTick
	if json.Unmarshal(ev.Data, &tick) != nil {
		return
	}

	if tick.Crashed {
		c.commitRound(tick)
		return
	}

	c.st.patch(func(st *CrashState) {
		if tick.RoundID != "" && tick.RoundID != st.RoundID {
			return
		}
		if st.Phase != CrashRunning {
			st.Phase = CrashRunning
			st.GraphPoints = []float64{1}
		}
		st.Multiplier = tick.Multiplier
		st.GraphPoints = append(append([]float64(nil), st.GraphPoints...), tick.Multiplier)
	})
}

// commitRound folds the outcome into history at most once per round id, no
// matter how many crashed ticks the server repeats.
func (c *Crash) commitRound(tick crashTick) {
	c.mu.Lock()
	if tick.RoundID != "" && tick.RoundID == c.lastCommitted {
		c.mu.Unlock()
		return
	}
	c.lastCommitted = tick.RoundID
	c.mu.Unlock()

	c.st.patch(func(st *CrashState) {
		st.Phase = CrashEnded
		st.Multiplier = tick.Multiplier
		id := tick.RoundID
		if id == "" {
			id = st.RoundID
		}
		st.History = prependCapped(st.History, CrashRound{RoundID: id, Crash: tick.Multiplier}, CRASH_HISTORY_MAX)
	})
}

func (c *Crash) onBets(ev wire.Event) {
	var payload struct {
		RoundID string     `json:"roundId"`
		Bets    []wire.Bet `json:"bets"`
	}
	if json.Unmarshal(ev.Data, &payload) != nil {
		return
	}
	c.st.patch(func(st *CrashState) {
		if payload.RoundID != "" && payload.RoundID != st.RoundID {
			return
		}
		st.Bets = payload.Bets
	})
}

// Bet enters the current betting window.
func (c *Crash) Bet(ctx context.Context, amount string, autoCashout float64) error {
	if err := c.b.EnsureReady(ctx); err != nil {
		return err
	}
	_, err := c.b.RequestAuthed(ctx, wire.ReqCrashBet, map[string]interface{}{
		"amount":      amount,
		"autoCashout": autoCashout,
	})
	if err != nil {
		c.fail(err)
		return err
	}
	c.st.patch(func(st *CrashState) {
		st.HasBet = true
		st.Status = ""
	})
	return nil
}

// Cashout settles the running bet at the current multiplier.
func (c *Crash) Cashout(ctx context.Context) error {
	if err := c.b.EnsureReady(ctx); err != nil {
		return err
	}
	raw, err := c.b.RequestAuthed(ctx, wire.ReqCrashCashout, nil)
	if err != nil {
		c.fail(err)
		return err
	}
	var res struct {
		Multiplier float64 `json:"multiplier"`
		Payout     string  `json:"payout"`
	}
	json.Unmarshal(raw, &res)
	c.st.patch(func(st *CrashState) {
		st.CashedOut = true
		st.Status = ""
	})
	return nil
}

func (c *Crash) fail(err error) {
	status, ignore := actionStatus(err)
	if ignore {
		return
	}
	c.st.patch(func(st *CrashState) { st.Status = status })
	if c.toasts != nil {
		c.toasts.Push(ToastError, status)
	}
}
