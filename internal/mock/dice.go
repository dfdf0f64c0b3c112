package mock

import (
	"log"
	"sync"

	"punter/internal/wire"
)

const (
	DICE_MIN_BET      = "0.10"
	DICE_MAX_BET      = "1000.00"
	DICE_MIN_CHANCE   = 1.0
	DICE_MAX_CHANCE   = 95.0
	DICE_PAYOUT_SCALE = 1.0 - HOUSE_EDGE
)

// DiceEngine settles rolls instantly against the wallet. Seeds rotate per
// roll; each response reveals them so the roll can be verified.
type DiceEngine struct {
	wallets *Wallets

	mu    sync.Mutex
	nonce int
}

func NewDiceEngine(wallets *Wallets) *DiceEngine {
	return &DiceEngine{wallets: wallets}
}

// Snapshot answers dice.snapshot.get. History lives client-side; the mock
// only supplies limits.
func (d *DiceEngine) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"minBet": DICE_MIN_BET,
		"maxBet": DICE_MAX_BET,
	}
}

// Roll debits the stake, derives the roll from fresh seeds and credits the
// payout on a win.
func (d *DiceEngine) Roll(user *User, amount string, chance float64, direction string) (map[string]interface{}, int64, *wire.Error) {
	cents, err := parseCents(amount)
	if err != nil {
		return nil, 0, wire.Errf("BAD_AMOUNT", false, "invalid bet amount")
	}
	if chance < DICE_MIN_CHANCE || chance > DICE_MAX_CHANCE {
		return nil, 0, wire.Errf("BAD_CHANCE", false, "chance must be between %.0f and %.0f", DICE_MIN_CHANCE, DICE_MAX_CHANCE)
	}
	if direction != "under" && direction != "over" {
		return nil, 0, wire.Errf("BAD_DIRECTION", false, "direction must be under or over")
	}

	if _, _, derr := d.wallets.Debit(user.ID, cents); derr != nil {
		return nil, 0, wire.Errf("INSUFFICIENT_FUNDS", false, "insufficient funds")
	}

	d.mu.Lock()
	d.nonce++
	nonce := d.nonce
	d.mu.Unlock()

	serverSeed := GenerateSeed()
	clientSeed := GenerateSeed()
	roll := DiceRoll(serverSeed, clientSeed, nonce)

	var win bool
	if direction == "under" {
		win = roll < chance
	} else {
		win = roll > 100.0-chance
	}

	profitCents := -cents
	if win {
		payoutCents := int64(float64(cents) * (100.0 / chance) * DICE_PAYOUT_SCALE)
		profitCents = payoutCents - cents
		d.wallets.Credit(user.ID, payoutCents)
	}
	bal, sv := d.wallets.Balance(user.ID)

	log.Printf("[DICE] %s rolled %.2f (%s %.0f%%): win=%v profit=%s",
		user.Name, roll, direction, chance, win, formatCents(profitCents))

	return map[string]interface{}{
		"roll":       roll,
		"win":        win,
		"profit":     formatCents(profitCents),
		"balance":    bal,
		"serverSeed": serverSeed,
		"clientSeed": clientSeed,
		"nonce":      nonce,
	}, sv, nil
}
