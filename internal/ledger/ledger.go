// Package ledger holds the in-memory balance of every account.
//
// Accounts are created lazily at the configured starting balance and live for
// the lifetime of the process. Balances may go negative; no floor is enforced.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
)

// Journal receives a record of every balance change. It is audit only.
type Journal interface {
	Record(ctx context.Context, tx model.Transaction) error
}

// Ledger is the owned balance store. It is safe for concurrent use.
type Ledger struct {
	mu              sync.RWMutex
	accounts        map[int64]*model.Account
	startingBalance int64
	journal         Journal
	now             func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithJournal records every mutation to j.
func WithJournal(j Journal) Option {
	return func(l *Ledger) { l.journal = j }
}

// WithClock overrides the clock used for account and journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates an empty ledger.
func New(startingBalance int64, opts ...Option) *Ledger {
	l := &Ledger{
		accounts:        make(map[int64]*model.Account),
		startingBalance: startingBalance,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StartingBalance returns the balance new accounts are created with.
func (l *Ledger) StartingBalance() int64 {
	return l.startingBalance
}

// account returns the user's account, creating it if needed. Caller holds mu.
func (l *Ledger) account(userID int64) *model.Account {
	acc, ok := l.accounts[userID]
	if !ok {
		now := l.now()
		acc = &model.Account{
			UserID:    userID,
			Balance:   l.startingBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}
		l.accounts[userID] = acc
		log.Debug().Int64("user_id", userID).Int64("balance", acc.Balance).Msg("Account created")
	}
	return acc
}

// Balance returns the user's balance, materializing the account at the
// starting balance on first reference.
func (l *Ledger) Balance(userID int64) int64 {
	l.mu.RLock()
	acc, ok := l.accounts[userID]
	if ok {
		b := acc.Balance
		l.mu.RUnlock()
		return b
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account(userID).Balance
}

// Lookup returns the user's balance without creating an account.
func (l *Ledger) Lookup(userID int64) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[userID]
	if !ok {
		return 0, false
	}
	return acc.Balance, true
}

// Adjust adds delta to the user's balance and returns the new balance.
func (l *Ledger) Adjust(ctx context.Context, userID int64, delta int64, txType, description string) int64 {
	l.mu.Lock()
	acc := l.account(userID)
	acc.Balance += delta
	acc.UpdatedAt = l.now()
	balance := acc.Balance
	l.mu.Unlock()

	if delta != 0 {
		l.record(ctx, userID, delta, txType, description)
	}
	return balance
}

// Transfer moves amount from fromID to toID. Both sides are applied under one
// critical section. The sender may be left with a negative balance; callers
// that must block on insufficient funds check before calling.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID int64, amount int64, fromType, toType, description string) (int64, int64) {
	l.mu.Lock()
	from := l.account(fromID)
	to := l.account(toID)
	now := l.now()
	from.Balance -= amount
	to.Balance += amount
	from.UpdatedAt = now
	to.UpdatedAt = now
	fromBalance, toBalance := from.Balance, to.Balance
	l.mu.Unlock()

	if amount != 0 {
		l.record(ctx, fromID, -amount, fromType, description)
		l.record(ctx, toID, amount, toType, description)
	}
	return fromBalance, toBalance
}

// Snapshot returns the balance of every user in ids, in the same order.
// Users without an account report the starting balance; no account is created.
func (l *Ledger) Snapshot(ids []int64) []model.BalanceEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]model.BalanceEntry, 0, len(ids))
	for _, id := range ids {
		balance := l.startingBalance
		if acc, ok := l.accounts[id]; ok {
			balance = acc.Balance
		}
		entries = append(entries, model.BalanceEntry{UserID: id, Balance: balance})
	}
	return entries
}

// Len returns the number of materialized accounts.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}

// record hands a transaction to the journal. Failures are logged only.
func (l *Ledger) record(ctx context.Context, userID, amount int64, txType, description string) {
	if l.journal == nil {
		return
	}

	tx := model.Transaction{
		Ref:       uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Type:      txType,
		CreatedAt: l.now(),
	}
	if description != "" {
		tx.Description = &description
	}

	if err := l.journal.Record(ctx, tx); err != nil {
		log.Warn().
			Err(err).
			Int64("user_id", userID).
			Int64("amount", amount).
			Str("type", txType).
			Msg("Failed to journal transaction")
	}
}
