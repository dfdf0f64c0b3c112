package mock

import (
	"fmt"
	"strconv"
	"sync"

	"punter/internal/wire"
)

const STARTING_BALANCE_CENTS = 10000 // 100.00 on signup

// Wallets keeps per-user balances in integer cents with a monotonic state
// version per account, so clients can drop stale pushes.
type Wallets struct {
	mu       sync.Mutex
	accounts map[string]*account
}

type account struct {
	mainCents  int64
	bonusCents int64
	version    int64
}

func NewWallets() *Wallets {
	return &Wallets{accounts: make(map[string]*account)}
}

func (w *Wallets) ensure(userID string) *account {
	acct := w.accounts[userID]
	if acct == nil {
		acct = &account{mainCents: STARTING_BALANCE_CENTS}
		w.accounts[userID] = acct
	}
	return acct
}

// Balance returns the current snapshot and its version.
func (w *Wallets) Balance(userID string) (wire.Balance, int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	acct := w.ensure(userID)
	return balanceOf(acct), acct.version
}

// Debit removes cents from the main balance, failing without mutation when
// funds are short.
func (w *Wallets) Debit(userID string, cents int64) (wire.Balance, int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	acct := w.ensure(userID)
	if acct.mainCents < cents {
		return balanceOf(acct), acct.version, fmt.Errorf("insufficient funds")
	}
	acct.mainCents -= cents
	acct.version++
	return balanceOf(acct), acct.version, nil
}

// Credit adds cents to the main balance.
func (w *Wallets) Credit(userID string, cents int64) (wire.Balance, int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	acct := w.ensure(userID)
	acct.mainCents += cents
	acct.version++
	return balanceOf(acct), acct.version
}

func balanceOf(acct *account) wire.Balance {
	return wire.Balance{
		Main:  formatCents(acct.mainCents),
		Bonus: formatCents(acct.bonusCents),
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// parseCents converts a decimal amount string to integer cents.
func parseCents(amount string) (int64, error) {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	return int64(f*100 + 0.5), nil
}
