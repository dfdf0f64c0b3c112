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
	BATTLE_REVEAL_WINDOW = 4 * time.Second
	BATTLE_HISTORY_MAX   = 20
)

type BattlePhase string

const (
	BattleBetting   BattlePhase = "betting"
	BattleResolving BattlePhase = "resolving"
)

type BattleResult struct {
	GameID string `json:"gameId"`
	Team   string `json:"team"`
	Pot    string `json:"pot"`
}

type BattleState struct {
	Phase     BattlePhase
	GameID    string
	Countdown float64
	Pot       string
	Bets      []wire.Bet
	FairHash  string
	MinBet    string
	MaxBet    string
	History   []BattleResult
	Status    string
}

type battleSlider struct {
	GameID string `json:"gameId"`
	Team   string `json:"team"`
	Pot    string `json:"pot"`
}

// Battle mirrors the wheel machine with a team vocabulary and a shorter
// reveal window.
type Battle struct {
	b      Backend
	toasts *Toasts
	st     *snapshot[BattleState]
	once   sync.Once

	mu            sync.Mutex
	revealTimer   clock.Timer
	lastCommitted string
}

func NewBattle(b Backend, toasts *Toasts) *Battle {
	return &Battle{b: b, toasts: toasts, st: newSnapshot(BattleState{
		Phase:  BattleBetting,
		Pot:    "0.00",
		MinBet: "0.10",
		MaxBet: "1000.00",
	})}
}

func (bt *Battle) State() BattleState { return bt.st.get() }

func (bt *Battle) Subscribe(fn func(BattleState)) func() {
	bt.once.Do(bt.activate)
	return bt.st.subscribe(fn)
}

func (bt *Battle) activate() {
	bus := bt.b.Events()
	bus.Subscribe(wire.EvBattleNewGame, bt.onNewGame)
	bus.Subscribe(wire.EvBattleTimer, bt.onTimer)
	bus.Subscribe(wire.EvBattleBet, bt.onBet)
	bus.Subscribe(wire.EvBattleSlider, bt.onSlider)

	go func() {
		ctx := context.Background()
		if err := bt.b.EnsureReady(ctx); err != nil {
			return
		}
		raw, err := bt.b.Request(ctx, wire.ReqBattleSub, nil)
		if err != nil {
			return
		}
		var snap struct {
			GameID   string         `json:"gameId"`
			Pot      string         `json:"pot"`
			FairHash string         `json:"fairHash"`
			MinBet   string         `json:"minBet"`
			MaxBet   string         `json:"maxBet"`
			Bets     []wire.Bet     `json:"bets"`
			History  []BattleResult `json:"history"`
		}
		if json.Unmarshal(raw, &snap) != nil {
			return
		}
		bt.st.patch(func(st *BattleState) {
			st.GameID = snap.GameID
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
	}()
}

func (bt *Battle) onNewGame(ev wire.Event) {
	var game struct {
		GameID   string  `json:"gameId"`
		FairHash string  `json:"fairHash"`
		Seconds  float64 `json:"seconds"`
	}
	if json.Unmarshal(ev.Data, &game) != nil {
		return
	}

	bt.cancelReveal()

	bt.st.patch(func(st *BattleState) {
		st.Phase = BattleBetting
		st.GameID = game.GameID
		st.FairHash = game.FairHash
		st.Countdown = game.Seconds
		st.Pot = "0.00"
		st.Bets = nil
	})
}

func (bt *Battle) onTimer(ev wire.Event) {
	var tick struct {
		GameID  string  `json:"gameId"`
		Seconds float64 `json:"seconds"`
	}
	if json.Unmarshal(ev.Data, &tick) != nil {
		return
	}
	bt.st.patch(func(st *BattleState) {
		if tick.GameID != "" && tick.GameID != st.GameID {
			return
		}
		st.Countdown = tick.Seconds
	})
}

func (bt *Battle) onBet(ev wire.Event) {
	var payload struct {
		wire.Bet
		Pot string `json:"pot"`
	}
	if json.Unmarshal(ev.Data, &payload) != nil {
		return
	}
	bt.st.patch(func(st *BattleState) {
		st.Bets = append(append([]wire.Bet(nil), st.Bets...), payload.Bet)
		if payload.Pot != "" {
			st.Pot = payload.Pot
		}
	})
}

func (bt *Battle) onSlider(ev wire.Event) {
	var slider battleSlider
	if json.Unmarshal(ev.Data, &slider) != nil {
		return
	}

	bt.cancelReveal()

	bt.st.patch(func(st *BattleState) {
		st.Phase = BattleResolving
		if slider.GameID != "" {
			st.GameID = slider.GameID
		}
	})

	bt.mu.Lock()
	bt.revealTimer = bt.b.Scheduler().AfterFunc(BATTLE_REVEAL_WINDOW, func() {
		bt.finishReveal(slider)
	})
	bt.mu.Unlock()
}

func (bt *Battle) finishReveal(slider battleSlider) {
	bt.mu.Lock()
	bt.revealTimer = nil
	replay := slider.GameID != "" && slider.GameID == bt.lastCommitted
	if !replay {
		bt.lastCommitted = slider.GameID
	}
	bt.mu.Unlock()

	// The phase flips back even for a replayed slider; only the history
	// commit is once per game.
	bt.st.patch(func(st *BattleState) {
		st.Phase = BattleBetting
		if replay {
			return
		}
		st.History = prependCapped(st.History, BattleResult{
			GameID: slider.GameID,
			Team:   slider.Team,
			Pot:    slider.Pot,
		}, BATTLE_HISTORY_MAX)
	})
}

func (bt *Battle) cancelReveal() {
	bt.mu.Lock()
	if bt.revealTimer != nil {
		bt.revealTimer.Stop()
		bt.revealTimer = nil
	}
	bt.mu.Unlock()
}

// Bet backs a team in the current game.
func (bt *Battle) Bet(ctx context.Context, amount, team string) error {
	if err := bt.b.EnsureReady(ctx); err != nil {
		return err
	}
	_, err := bt.b.RequestAuthed(ctx, wire.ReqBattleBet, map[string]string{
		"amount": amount,
		"team":   team,
	})
	if err != nil {
		status, ignore := actionStatus(err)
		if !ignore {
			bt.st.patch(func(st *BattleState) { st.Status = status })
			if bt.toasts != nil {
				bt.toasts.Push(ToastError, status)
			}
		}
		return err
	}
	bt.st.patch(func(st *BattleState) { st.Status = "" })
	return nil
}
