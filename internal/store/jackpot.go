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
	JACKPOT_REVEAL_WINDOW = 6 * time.Second
	JACKPOT_HISTORY_MAX   = 15
	JACKPOT_DEFAULT_ROOM  = "easy"
)

type JackpotPhase string

const (
	JackpotBetting   JackpotPhase = "betting"
	JackpotRevealing JackpotPhase = "revealing"
)

// JackpotBet extends the uniform bet with the win chance the pot share gives.
type JackpotBet struct {
	wire.Bet
	Chance float64 `json:"chance"`
}

type JackpotRound struct {
	RoundID    string `json:"roundId"`
	WinnerID   string `json:"winnerId"`
	WinnerName string `json:"winnerName"`
	Pot        string `json:"pot"`
}

type JackpotState struct {
	Room      string
	Phase     JackpotPhase
	RoundID   string
	Countdown float64
	Pot       string
	Bets      []JackpotBet
	FairHash  string
	MinBet    string
	MaxBet    string
	History   []JackpotRound
	Status    string
}

type jackpotSlider struct {
	Room       string  `json:"room"`
	RoundID    string  `json:"roundId"`
	WinnerID   string  `json:"winnerId"`
	WinnerName string  `json:"winnerName"`
	Pot        string  `json:"pot"`
	Angle      float64 `json:"angle"`
}

// Jackpot is a per-room pot game. Switching rooms resets every piece of
// transient state and cancels the old room's timers wholesale.
type Jackpot struct {
	b      Backend
	toasts *Toasts
	st     *snapshot[JackpotState]
	once   sync.Once

	mu            sync.Mutex
	revealTimer   clock.Timer
	lastCommitted string
}

func NewJackpot(b Backend, toasts *Toasts) *Jackpot {
	return &Jackpot{b: b, toasts: toasts, st: newSnapshot(JackpotState{
		Room:   JACKPOT_DEFAULT_ROOM,
		Phase:  JackpotBetting,
		Pot:    "0.00",
		MinBet: "0.10",
		MaxBet: "1000.00",
	})}
}

func (j *Jackpot) State() JackpotState { return j.st.get() }

func (j *Jackpot) Subscribe(fn func(JackpotState)) func() {
	j.once.Do(j.activate)
	return j.st.subscribe(fn)
}

func (j *Jackpot) activate() {
	bus := j.b.Events()
	bus.Subscribe(wire.EvJackpotNewRound, j.onNewRound)
	bus.Subscribe(wire.EvJackpotTimer, j.onTimer)
	bus.Subscribe(wire.EvJackpotBet, j.onBet)
	bus.Subscribe(wire.EvJackpotSlider, j.onSlider)

	go j.subscribeRoom(context.Background(), j.st.get().Room)
}

func (j *Jackpot) subscribeRoom(ctx context.Context, room string) {
	if err := j.b.EnsureReady(ctx); err != nil {
		return
	}
	raw, err := j.b.Request(ctx, wire.ReqJackpotRoomSub, map[string]string{"room": room})
	if err != nil {
		return
	}
	var snap struct {
		Room     string         `json:"room"`
		RoundID  string         `json:"roundId"`
		Pot      string         `json:"pot"`
		FairHash string         `json:"fairHash"`
		MinBet   string         `json:"minBet"`
		MaxBet   string         `json:"maxBet"`
		Bets     []JackpotBet   `json:"bets"`
		History  []JackpotRound `json:"history"`
	}
	if json.Unmarshal(raw, &snap) != nil {
		return
	}
	j.st.patch(func(st *JackpotState) {
		if st.Room != room {
			// The user already switched again; this snapshot is stale.
			return
		}
		st.RoundID = snap.RoundID
		st.FairHash = snap.FairHash
		st.Bets = snap.Bets
		st.History = snap.History
		if snap.Pot != "" {
			st.Pot = snap.Pot
		}
		if snap.MinBet != "" {
			st.MinBet = snap.MinBet
		}
		if snap.MaxBet != "" {
			st.MaxBet = snap.MaxBet
		}
	})
}

// SwitchRoom cancels all pending reveal timers for the old room, resets
// pot/bets/chances/history, and subscribes the new room.
func (j *Jackpot) SwitchRoom(ctx context.Context, room string) {
	if j.st.get().Room == room {
		return
	}

	j.cancelReveal()

	j.st.patch(func(st *JackpotState) {
		st.Room = room
		st.Phase = JackpotBetting
		st.RoundID = ""
		st.Countdown = 0
		st.Pot = "0.00"
		st.Bets = nil
		st.FairHash = ""
		st.History = nil
		st.Status = ""
	})

	go j.subscribeRoom(ctx, room)
}

func (j *Jackpot) onNewRound(ev wire.Event) {
	var round struct {
		Room     string  `json:"room"`
		RoundID  string  `json:"roundId"`
		FairHash string  `json:"fairHash"`
		Seconds  float64 `json:"seconds"`
	}
	if json.Unmarshal(ev.Data, &round) != nil {
		return
	}
	if round.Room != "" && round.Room != j.st.get().Room {
		return
	}

	j.cancelReveal()

	j.st.patch(func(st *JackpotState) {
		st.Phase = JackpotBetting
		st.RoundID = round.RoundID
		st.FairHash = round.FairHash
		st.Countdown = round.Seconds
		st.Pot = "0.00"
		st.Bets = nil
	})
}

func (j *Jackpot) onTimer(ev wire.Event) {
	var tick struct {
		Room    string  `json:"room"`
		RoundID string  `json:"roundId"`
		Seconds float64 `json:"seconds"`
	}
	if json.Unmarshal(ev.Data, &tick) != nil {
		return
	}
	j.st.patch(func(st *JackpotState) {
		if tick.Room != "" && tick.Room != st.Room {
			return
		}
		st.Countdown = tick.Seconds
	})
}

func (j *Jackpot) onBet(ev wire.Event) {
	var payload struct {
		Room string       `json:"room"`
		Pot  string       `json:"pot"`
		Bets []JackpotBet `json:"bets"`
	}
	if json.Unmarshal(ev.Data, &payload) != nil {
		return
	}
	j.st.patch(func(st *JackpotState) {
		if payload.Room != "" && payload.Room != st.Room {
			return
		}
		// Chances shift with every bet, so the server sends the whole list.
		st.Bets = payload.Bets
		if payload.Pot != "" {
			st.Pot = payload.Pot
		}
	})
}

func (j *Jackpot) onSlider(ev wire.Event) {
	var slider jackpotSlider
	if json.Unmarshal(ev.Data, &slider) != nil {
		return
	}
	if slider.Room != "" && slider.Room != j.st.get().Room {
		return
	}

	j.cancelReveal()

	j.st.patch(func(st *JackpotState) {
		st.Phase = JackpotRevealing
		if slider.RoundID != "" {
			st.RoundID = slider.RoundID
		}
	})

	j.mu.Lock()
	j.revealTimer = j.b.Scheduler().AfterFunc(JACKPOT_REVEAL_WINDOW, func() {
		j.finishReveal(slider)
	})
	j.mu.Unlock()
}

func (j *Jackpot) finishReveal(slider jackpotSlider) {
	j.mu.Lock()
	j.revealTimer = nil
	replay := slider.RoundID != "" && slider.RoundID == j.lastCommitted
	if !replay {
		j.lastCommitted = slider.RoundID
	}
	j.mu.Unlock()

	// The phase flips back even for a replayed slider; only the history
	// commit and the pot reset are once per round.
	j.st.patch(func(st *JackpotState) {
		if slider.Room != "" && slider.Room != st.Room {
			return
		}
		st.Phase = JackpotBetting
		if replay {
			return
		}
		st.Pot = "0.00"
		st.Bets = nil
		st.History = prependCapped(st.History, JackpotRound{
			RoundID:    slider.RoundID,
			WinnerID:   slider.WinnerID,
			WinnerName: slider.WinnerName,
			Pot:        slider.Pot,
		}, JACKPOT_HISTORY_MAX)
	})
}

func (j *Jackpot) cancelReveal() {
	j.mu.Lock()
	if j.revealTimer != nil {
		j.revealTimer.Stop()
		j.revealTimer = nil
	}
	j.mu.Unlock()
}

// Bet adds to the current room's pot.
func (j *Jackpot) Bet(ctx context.Context, amount string) error {
	if err := j.b.EnsureReady(ctx); err != nil {
		return err
	}
	_, err := j.b.RequestAuthed(ctx, wire.ReqJackpotBet, map[string]string{
		"room":   j.st.get().Room,
		"amount": amount,
	})
	if err != nil {
		status, ignore := actionStatus(err)
		if !ignore {
			j.st.patch(func(st *JackpotState) { st.Status = status })
			if j.toasts != nil {
				j.toasts.Push(ToastError, status)
			}
		}
		return err
	}
	j.st.patch(func(st *JackpotState) { st.Status = "" })
	return nil
}
