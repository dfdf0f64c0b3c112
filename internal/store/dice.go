package store

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"punter/internal/wire"
)

const DICE_HISTORY_MAX = 25

// DiceRoll is one settled roll, most recent first in history.
type DiceRoll struct {
	Roll      float64 `json:"roll"`
	Win       bool    `json:"win"`
	Amount    string  `json:"amount"`
	Profit    string  `json:"profit"`
	Chance    float64 `json:"chance"`
	Direction string  `json:"direction"`
}

type DiceState struct {
	MinBet  string
	MaxBet  string
	History []DiceRoll
	Status  string
	Placing bool
}

type diceSnapshot struct {
	MinBet  string     `json:"minBet"`
	MaxBet  string     `json:"maxBet"`
	History []DiceRoll `json:"history"`
}

type diceBetResult struct {
	Roll    float64      `json:"roll"`
	Win     bool         `json:"win"`
	Profit  string       `json:"profit"`
	Balance wire.Balance `json:"balance"`
}

// Dice is the simplest game store: no phases, just instant settled rolls.
type Dice struct {
	b      Backend
	toasts *Toasts
	st     *snapshot[DiceState]
	once   sync.Once
}

func NewDice(b Backend, toasts *Toasts) *Dice {
	return &Dice{b: b, toasts: toasts, st: newSnapshot(DiceState{MinBet: "0.10", MaxBet: "1000.00"})}
}

func (d *Dice) State() DiceState { return d.st.get() }

// Subscribe activates the store on the first consumer: no background work
// runs with zero observers.
func (d *Dice) Subscribe(fn func(DiceState)) func() {
	d.once.Do(d.activate)
	return d.st.subscribe(fn)
}

func (d *Dice) activate() {
	go func() {
		ctx := context.Background()
		if err := d.b.EnsureReady(ctx); err != nil {
			return
		}
		d.b.Request(ctx, wire.ReqDiceSub, nil)
		raw, err := d.b.Request(ctx, wire.ReqDiceSnapshot, nil)
		if err != nil {
			log.Printf("[DICE] Snapshot failed: %v", err)
			return
		}
		var snap diceSnapshot
		if json.Unmarshal(raw, &snap) != nil {
			return
		}
		d.st.patch(func(st *DiceState) {
			if snap.MinBet != "" {
				st.MinBet = snap.MinBet
			}
			if snap.MaxBet != "" {
				st.MaxBet = snap.MaxBet
			}
			if len(snap.History) > DICE_HISTORY_MAX {
				snap.History = snap.History[:DICE_HISTORY_MAX]
			}
			st.History = snap.History
		})
	}()
}

// Bet places one roll. Failure leaves prior state untouched except Status;
// UNAUTHORIZED is swallowed because the login dialog already communicates it.
func (d *Dice) Bet(ctx context.Context, amount string, chance float64, direction string) error {
	if err := d.b.EnsureReady(ctx); err != nil {
		return err
	}
	d.st.patch(func(st *DiceState) { st.Placing = true })

	raw, err := d.b.RequestAuthed(ctx, wire.ReqDiceBet, map[string]interface{}{
		"amount":    amount,
		"chance":    chance,
		"direction": direction,
	})
	if err != nil {
		status, ignore := actionStatus(err)
		d.st.patch(func(st *DiceState) {
			st.Placing = false
			if !ignore {
				st.Status = status
			}
		})
		return err
	}

	var res diceBetResult
	if err := json.Unmarshal(raw, &res); err != nil {
		d.st.patch(func(st *DiceState) { st.Placing = false })
		return err
	}

	d.st.patch(func(st *DiceState) {
		st.Placing = false
		st.Status = ""
		st.History = prependCapped(st.History, DiceRoll{
			Roll:      res.Roll,
			Win:       res.Win,
			Amount:    amount,
			Profit:    res.Profit,
			Chance:    chance,
			Direction: direction,
		}, DICE_HISTORY_MAX)
	})
	return nil
}
