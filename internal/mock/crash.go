package mock

import (
	"fmt"
	"log"
	"sync"
	"time"

	"punter/internal/wire"
)

const (
	CRASH_TICK_INTERVAL = 100 * time.Millisecond
	CRASH_BETTING_TIME  = 5 * time.Second
	CRASH_ROUND_PAUSE   = 3 * time.Second
	CRASH_MIN_BET       = "0.10"
	CRASH_MAX_BET       = "1000.00"
)

type crashBet struct {
	user        *User
	amountCents int64
	autoCashout float64
	cashedOut   bool
}

// CrashGame runs the continuous crash loop: a betting window, then ticks at a
// fixed interval until the provably fair point, then a pause.
type CrashGame struct {
	hub     *Hub
	wallets *Wallets

	mu         sync.Mutex
	phase      string // betting, running, ended
	roundID    string
	fairHash   string
	serverSeed string
	clientSeed string
	nonce      int
	crashAt    float64
	multiplier float64
	bets       map[string]*crashBet // by userID
	results    []map[string]interface{}
	stopChan   chan struct{}
}

func NewCrashGame(hub *Hub, wallets *Wallets) *CrashGame {
	return &CrashGame{
		hub:      hub,
		wallets:  wallets,
		phase:    "betting",
		bets:     make(map[string]*crashBet),
		stopChan: make(chan struct{}),
	}
}

func (g *CrashGame) Start() { go g.loop() }

func (g *CrashGame) Stop() { close(g.stopChan) }

func (g *CrashGame) loop() {
	for {
		select {
		case <-g.stopChan:
			log.Println("[CRASH] Round loop stopped")
			return
		default:
			g.runRound()
		}
	}
}

func (g *CrashGame) runRound() {
	g.mu.Lock()
	g.nonce++
	g.serverSeed = GenerateSeed()
	g.clientSeed = GenerateSeed()
	g.fairHash = FairHash(g.serverSeed)
	g.crashAt = CrashPoint(g.serverSeed, g.clientSeed, g.nonce)
	g.roundID = fmt.Sprintf("R%d-%d", time.Now().Unix(), g.nonce)
	g.phase = "betting"
	g.multiplier = 1
	g.bets = make(map[string]*crashBet)
	roundID := g.roundID
	fairHash := g.fairHash
	g.mu.Unlock()

	log.Printf("[CRASH] Round %s, crash at %.2fx (hidden)", roundID, g.crashAt)

	g.hub.Broadcast(wire.EvCrashNewRound, map[string]interface{}{
		"roundId":  roundID,
		"fairHash": fairHash,
		"seconds":  CRASH_BETTING_TIME.Seconds(),
		"minBet":   CRASH_MIN_BET,
		"maxBet":   CRASH_MAX_BET,
	})

	for left := int(CRASH_BETTING_TIME.Seconds()) - 1; left >= 0; left-- {
		select {
		case <-time.After(time.Second):
			g.hub.Broadcast(wire.EvCrashTimer, map[string]interface{}{
				"roundId": roundID,
				"seconds": float64(left),
			})
		case <-g.stopChan:
			return
		}
	}

	g.mu.Lock()
	g.phase = "running"
	g.mu.Unlock()

	ticker := time.NewTicker(CRASH_TICK_INTERVAL)
	defer ticker.Stop()
	startTime := time.Now()

	for {
		select {
		case <-ticker.C:
			g.mu.Lock()
			elapsed := time.Since(startTime).Seconds()
			g.multiplier = crashCurve(elapsed)

			if g.multiplier >= g.crashAt {
				g.multiplier = g.crashAt
				g.phase = "ended"
				seed := g.serverSeed
				client := g.clientSeed
				nonce := g.nonce
				point := g.crashAt
				g.mu.Unlock()

				g.hub.Broadcast(wire.EvCrashTick, map[string]interface{}{
					"roundId":    roundID,
					"multiplier": point,
					"crashed":    true,
					"serverSeed": seed,
					"clientSeed": client,
					"nonce":      nonce,
				})
				g.settleLosses()

				log.Printf("[CRASH] Round %s ended at %.2fx", roundID, point)
				select {
				case <-time.After(CRASH_ROUND_PAUSE):
				case <-g.stopChan:
				}
				return
			}

			mult := g.multiplier
			auto := g.dueAutoCashoutsLocked(mult)
			g.mu.Unlock()

			g.hub.Broadcast(wire.EvCrashTick, map[string]interface{}{
				"roundId":    roundID,
				"multiplier": mult,
			})
			for _, userID := range auto {
				g.Cashout(userID)
			}

		case <-g.stopChan:
			return
		}
	}
}

// crashCurve maps elapsed seconds to the displayed multiplier.
func crashCurve(elapsed float64) float64 {
	mult := 1.0 + (elapsed / 1.5) + (elapsed * elapsed * 0.005)
	return float64(int(mult*100)) / 100.0
}

func (g *CrashGame) dueAutoCashoutsLocked(mult float64) []string {
	var due []string
	for userID, bet := range g.bets {
		if !bet.cashedOut && bet.autoCashout > 0 && mult >= bet.autoCashout {
			due = append(due, userID)
		}
	}
	return due
}

// Snapshot answers crash.subscribe.
func (g *CrashGame) Snapshot() map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return map[string]interface{}{
		"phase":      g.phase,
		"roundId":    g.roundID,
		"multiplier": g.multiplier,
		"fairHash":   g.fairHash,
		"minBet":     CRASH_MIN_BET,
		"maxBet":     CRASH_MAX_BET,
		"bets":       g.betListLocked(),
		"history":    g.results,
	}
}

// Bet enters the current betting window. One bet per user per round.
func (g *CrashGame) Bet(user *User, amount string, autoCashout float64) (map[string]interface{}, int64, *wire.Error) {
	cents, err := parseCents(amount)
	if err != nil {
		return nil, 0, wire.Errf("BAD_AMOUNT", false, "invalid bet amount")
	}

	g.mu.Lock()
	if g.phase != "betting" {
		g.mu.Unlock()
		return nil, 0, wire.Errf("BETTING_CLOSED", false, "betting is closed")
	}
	if g.bets[user.ID] != nil {
		g.mu.Unlock()
		return nil, 0, wire.Errf("ALREADY_BET", false, "bet already placed this round")
	}
	g.mu.Unlock()

	bal, sv, derr := g.wallets.Debit(user.ID, cents)
	if derr != nil {
		return nil, 0, wire.Errf("INSUFFICIENT_FUNDS", false, "insufficient funds")
	}

	g.mu.Lock()
	g.bets[user.ID] = &crashBet{user: user, amountCents: cents, autoCashout: autoCashout}
	roundID := g.roundID
	bets := g.betListLocked()
	g.mu.Unlock()

	g.hub.Broadcast(wire.EvCrashBetsSnapshot, map[string]interface{}{
		"roundId": roundID,
		"bets":    bets,
	})
	log.Printf("[CRASH] %s bet %s (auto %.2fx)", user.Name, amount, autoCashout)

	return map[string]interface{}{"roundId": roundID, "balance": bal}, sv, nil
}

// Cashout settles the user's running bet at the current multiplier.
func (g *CrashGame) Cashout(userID string) (map[string]interface{}, int64, *wire.Error) {
	g.mu.Lock()
	if g.phase != "running" {
		g.mu.Unlock()
		return nil, 0, wire.Errf("NOT_RUNNING", false, "cannot cash out now")
	}
	bet := g.bets[userID]
	if bet == nil {
		g.mu.Unlock()
		return nil, 0, wire.Errf("NO_BET", false, "no active bet")
	}
	if bet.cashedOut {
		g.mu.Unlock()
		return nil, 0, wire.Errf("ALREADY_CASHED", false, "already cashed out")
	}
	bet.cashedOut = true
	mult := g.multiplier
	payoutCents := int64(float64(bet.amountCents) * mult)
	name := bet.user.Name
	g.mu.Unlock()

	bal, sv := g.wallets.Credit(userID, payoutCents)
	log.Printf("[CRASH] %s cashed out at %.2fx (payout %s)", name, mult, formatCents(payoutCents))

	return map[string]interface{}{
		"multiplier": mult,
		"payout":     formatCents(payoutCents),
		"balance":    bal,
	}, sv, nil
}

func (g *CrashGame) settleLosses() {
	g.mu.Lock()
	point := g.crashAt
	roundID := g.roundID
	for _, bet := range g.bets {
		if !bet.cashedOut {
			log.Printf("[CRASH] %s lost %s", bet.user.Name, formatCents(bet.amountCents))
		}
	}
	g.results = append([]map[string]interface{}{{
		"roundId": roundID,
		"crash":   point,
	}}, g.results...)
	if len(g.results) > 30 {
		g.results = g.results[:30]
	}
	g.mu.Unlock()
}

func (g *CrashGame) betListLocked() []wire.Bet {
	out := make([]wire.Bet, 0, len(g.bets))
	for _, bet := range g.bets {
		out = append(out, wire.Bet{
			UserID: bet.user.ID,
			Name:   bet.user.Name,
			Avatar: bet.user.Avatar,
			Amount: formatCents(bet.amountCents),
		})
	}
	return out
}
