package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"casino-bot/internal/model"
)

// DefaultMemoryCapacity is the number of entries the memory journal keeps
// unless WithCapacity says otherwise.
const DefaultMemoryCapacity = 10000

// MemoryTransactionRepository keeps the most recent journal entries in process
// memory. It is the default journal and is lost on restart like every other
// piece of state. Once full, recording an entry evicts the oldest one.
type MemoryTransactionRepository struct {
	mu       sync.RWMutex
	entries  []model.Transaction
	refs     map[string]struct{}
	capacity int
	nextID   int64
}

// MemoryOption configures a MemoryTransactionRepository.
type MemoryOption func(*MemoryTransactionRepository)

// WithCapacity bounds the journal to n entries. A non-positive n keeps the default.
func WithCapacity(n int) MemoryOption {
	return func(r *MemoryTransactionRepository) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// NewMemoryTransactionRepository creates an empty journal.
func NewMemoryTransactionRepository(opts ...MemoryOption) *MemoryTransactionRepository {
	r := &MemoryTransactionRepository{
		refs:     make(map[string]struct{}),
		capacity: DefaultMemoryCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends tx. An entry whose ref is still held is ignored.
func (r *MemoryTransactionRepository) Record(_ context.Context, tx model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.Ref != "" {
		if _, dup := r.refs[tx.Ref]; dup {
			return nil
		}
		r.refs[tx.Ref] = struct{}{}
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	r.nextID++
	tx.ID = r.nextID

	if len(r.entries) >= r.capacity {
		evicted := len(r.entries) - r.capacity + 1
		for _, old := range r.entries[:evicted] {
			delete(r.refs, old.Ref)
		}
		// Shift in place so the backing array never grows past capacity.
		n := copy(r.entries, r.entries[evicted:])
		r.entries = r.entries[:n]
	}
	r.entries = append(r.entries, tx)
	return nil
}

// ListByUser returns up to limit of the user's entries, newest first.
// A non-positive limit returns all of them.
func (r *MemoryTransactionRepository) ListByUser(_ context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	return r.list(userID, limit, func(model.Transaction) bool { return true }), nil
}

// ListByUserAndType returns up to limit of the user's entries of txType, newest first.
func (r *MemoryTransactionRepository) ListByUserAndType(_ context.Context, userID int64, txType string, limit int) ([]*model.Transaction, error) {
	return r.list(userID, limit, func(tx model.Transaction) bool { return tx.Type == txType }), nil
}

// GetUserGameProfit sums the user's game entries created in [from, to).
func (r *MemoryTransactionRepository) GetUserGameProfit(_ context.Context, userID int64, from, to time.Time) (int64, error) {
	games := model.GameTransactionTypes()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var profit int64
	for _, tx := range r.entries {
		if tx.UserID != userID || !slices.Contains(games, tx.Type) {
			continue
		}
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		profit += tx.Amount
	}
	return profit, nil
}

func (r *MemoryTransactionRepository) list(userID int64, limit int, keep func(model.Transaction) bool) []*model.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Transaction
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID != userID || !keep(r.entries[i]) {
			continue
		}
		tx := r.entries[i]
		out = append(out, &tx)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of held entries.
func (r *MemoryTransactionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
