package store

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"punter/internal/clock"
	"punter/internal/wire"
)

const (
	COINFLIP_PREPARE_DELAY  = 1 * time.Second
	COINFLIP_COUNTDOWN_FROM = 5
	COINFLIP_COUNTDOWN_TICK = 1 * time.Second
	COINFLIP_SPIN_DELAY     = 3 * time.Second
	COINFLIP_REVEAL_DELAY   = 2 * time.Second

	COINFLIP_SLIDER_SIZE  = 110
	COINFLIP_REVEAL_INDEX = 104

	COINFLIP_HISTORY_MAX = 20
)

// CoinflipPhase is the client-only ceremony phase. It advances forward only;
// the server never acknowledges any of it.
type CoinflipPhase string

const (
	FlipPrepare   CoinflipPhase = "prepare"
	FlipCountdown CoinflipPhase = "countdown"
	FlipSpinning  CoinflipPhase = "spinning"
	FlipRevealed  CoinflipPhase = "revealed"
)

type CoinflipGame struct {
	ID         string   `json:"id"`
	Creator    wire.Bet `json:"creator"`
	Joiner     wire.Bet `json:"joiner"`
	Amount     string   `json:"amount"`
	FairHash   string   `json:"fairHash"`
	WinnerID   string   `json:"winnerId,omitempty"`
	WinnerSide string   `json:"winnerSide,omitempty"`

	// Filled at finalize: the animation strip always lands on the true
	// winner's avatar at RevealIndex.
	Slider      []string `json:"-"`
	RevealIndex int      `json:"-"`
}

// CoinflipResolving is an outcome known to the server but still mid-ceremony
// on the client.
type CoinflipResolving struct {
	Game      CoinflipGame
	Phase     CoinflipPhase
	Countdown int
}

type CoinflipState struct {
	Open      []CoinflipGame
	Resolving map[string]CoinflipResolving
	Ended     []CoinflipGame
	MinBet    string
	MaxBet    string
	Status    string
}

type ceremony struct {
	timers []clock.Timer
}

// Coinflip runs one reveal ceremony per resolved game id: prepare, a 5..1
// countdown, spinning, revealed, then a single idempotent commit into ended
// history.
type Coinflip struct {
	b      Backend
	toasts *Toasts
	st     *snapshot[CoinflipState]
	once   sync.Once

	mu         sync.Mutex
	ceremonies map[string]*ceremony
	endedIDs   map[string]bool
}

func NewCoinflip(b Backend, toasts *Toasts) *Coinflip {
	return &Coinflip{
		b:      b,
		toasts: toasts,
		st: newSnapshot(CoinflipState{
			Resolving: map[string]CoinflipResolving{},
			MinBet:    "0.10",
			MaxBet:    "1000.00",
		}),
		ceremonies: make(map[string]*ceremony),
		endedIDs:   make(map[string]bool),
	}
}

func (c *Coinflip) State() CoinflipState { return c.st.get() }

func (c *Coinflip) Subscribe(fn func(CoinflipState)) func() {
	c.once.Do(c.activate)
	return c.st.subscribe(fn)
}

func (c *Coinflip) activate() {
	bus := c.b.Events()
	bus.Subscribe(wire.EvCoinflipCreated, c.onCreated)
	bus.Subscribe(wire.EvCoinflipResolved, c.onResolved)

	go func() {
		ctx := context.Background()
		if err := c.b.EnsureReady(ctx); err != nil {
			return
		}
		raw, err := c.b.Request(ctx, wire.ReqCoinflipSub, nil)
		if err != nil {
			return
		}
		var snap struct {
			Games   []CoinflipGame `json:"games"`
			Ended   []CoinflipGame `json:"ended"`
			MinBet  string         `json:"minBet"`
			MaxBet  string         `json:"maxBet"`
		}
		if json.Unmarshal(raw, &snap) != nil {
			return
		}
		c.st.patch(func(st *CoinflipState) {
			st.Open = snap.Games
			st.Ended = snap.Ended
			if snap.MinBet != "" {
				st.MinBet = snap.MinBet
			}
			if snap.MaxBet != "" {
				st.MaxBet = snap.MaxBet
			}
		})
	}()
}

func (c *Coinflip) onCreated(ev wire.Event) {
	var game CoinflipGame
	if json.Unmarshal(ev.Data, &game) != nil || game.ID == "" {
		return
	}
	c.st.patch(func(st *CoinflipState) {
		for _, g := range st.Open {
			if g.ID == game.ID {
				return
			}
		}
		st.Open = append(append([]CoinflipGame(nil), st.Open...), game)
	})
}

// onResolved starts exactly one ceremony per game id. Duplicate pushes for a
// game already mid-ceremony or already ended are dropped.
func (c *Coinflip) onResolved(ev wire.Event) {
	var game CoinflipGame
	if json.Unmarshal(ev.Data, &game) != nil || game.ID == "" {
		return
	}

	c.mu.Lock()
	if c.ceremonies[game.ID] != nil || c.endedIDs[game.ID] {
		c.mu.Unlock()
		return
	}
	c.ceremonies[game.ID] = &ceremony{}
	c.mu.Unlock()

	c.st.patch(func(st *CoinflipState) {
		kept := make([]CoinflipGame, 0, len(st.Open))
		for _, g := range st.Open {
			if g.ID != game.ID {
				kept = append(kept, g)
			}
		}
		st.Open = kept
		st.Resolving = cloneResolving(st.Resolving)
		st.Resolving[game.ID] = CoinflipResolving{Game: game, Phase: FlipPrepare}
	})

	c.after(game.ID, COINFLIP_PREPARE_DELAY, func() {
		c.setPhase(game.ID, FlipCountdown, COINFLIP_COUNTDOWN_FROM)
		c.after(game.ID, COINFLIP_COUNTDOWN_TICK, func() {
			c.runCountdown(game.ID, COINFLIP_COUNTDOWN_FROM-1)
		})
	})
}

func (c *Coinflip) runCountdown(id string, n int) {
	if n <= 0 {
		c.setPhase(id, FlipSpinning, 0)
		c.after(id, COINFLIP_SPIN_DELAY, func() {
			c.setPhase(id, FlipRevealed, 0)
			c.after(id, COINFLIP_REVEAL_DELAY, func() {
				c.finalize(id)
			})
		})
		return
	}
	c.setPhase(id, FlipCountdown, n)
	c.after(id, COINFLIP_COUNTDOWN_TICK, func() {
		c.runCountdown(id, n-1)
	})
}

// after arms a timer inside the id's bundle; if the ceremony is gone the
// step is dropped rather than resurrected.
func (c *Coinflip) after(id string, d time.Duration, fn func()) {
	c.mu.Lock()
	cer := c.ceremonies[id]
	if cer == nil {
		c.mu.Unlock()
		return
	}
	t := c.b.Scheduler().AfterFunc(d, fn)
	cer.timers = append(cer.timers, t)
	c.mu.Unlock()
}

func (c *Coinflip) setPhase(id string, phase CoinflipPhase, countdown int) {
	c.st.patch(func(st *CoinflipState) {
		res, ok := st.Resolving[id]
		if !ok {
			return
		}
		res.Phase = phase
		res.Countdown = countdown
		st.Resolving = cloneResolving(st.Resolving)
		st.Resolving[id] = res
	})
}

// finalize cancels the id's whole timer bundle first, then performs the
// idempotent move from the resolving set into ended history.
func (c *Coinflip) finalize(id string) {
	c.mu.Lock()
	cer := c.ceremonies[id]
	if cer != nil {
		for _, t := range cer.timers {
			t.Stop()
		}
	}
	delete(c.ceremonies, id)
	done := c.endedIDs[id]
	c.endedIDs[id] = true
	c.mu.Unlock()

	c.st.patch(func(st *CoinflipState) {
		res, ok := st.Resolving[id]
		if ok {
			st.Resolving = cloneResolving(st.Resolving)
			delete(st.Resolving, id)
		}
		if done || !ok {
			return
		}
		game := res.Game
		game.Slider, game.RevealIndex = buildSlider(game)
		st.Ended = prependCapped(st.Ended, game, COINFLIP_HISTORY_MAX)
	})
}

// buildSlider shuffles a fixed-size avatar strip deterministically from the
// game id and forces the designated slot to the winner's avatar, so the
// animation always lands on the true outcome.
func buildSlider(game CoinflipGame) ([]string, int) {
	h := fnv.New64a()
	h.Write([]byte(game.ID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	avatars := [2]string{game.Creator.Avatar, game.Joiner.Avatar}
	slots := make([]string, COINFLIP_SLIDER_SIZE)
	for i := range slots {
		slots[i] = avatars[rng.Intn(2)]
	}

	winner := avatars[0]
	if game.WinnerID != "" && game.WinnerID == game.Joiner.UserID {
		winner = avatars[1]
	}
	slots[COINFLIP_REVEAL_INDEX] = winner
	return slots, COINFLIP_REVEAL_INDEX
}

func cloneResolving(m map[string]CoinflipResolving) map[string]CoinflipResolving {
	out := make(map[string]CoinflipResolving, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Create opens a new game on the chosen side.
func (c *Coinflip) Create(ctx context.Context, amount, side string) error {
	return c.action(ctx, wire.ReqCoinflipCreate, map[string]string{
		"amount": amount,
		"side":   side,
	})
}

// Join takes the open side of an existing game.
func (c *Coinflip) Join(ctx context.Context, gameID string) error {
	return c.action(ctx, wire.ReqCoinflipJoin, map[string]string{"gameId": gameID})
}

func (c *Coinflip) action(ctx context.Context, reqType string, data map[string]string) error {
	if err := c.b.EnsureReady(ctx); err != nil {
		return err
	}
	_, err := c.b.RequestAuthed(ctx, reqType, data)
	if err != nil {
		status, ignore := actionStatus(err)
		if !ignore {
			c.st.patch(func(st *CoinflipState) { st.Status = status })
			if c.toasts != nil {
				c.toasts.Push(ToastError, status)
			}
		}
		return err
	}
	c.st.patch(func(st *CoinflipState) { st.Status = "" })
	return nil
}
