package service

import (
	"cmp"
	"slices"

	"casino-bot/internal/ledger"
	"casino-bot/internal/model"
)

// RankingService lists balances of a member pool.
type RankingService struct {
	ledger *ledger.Ledger
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(ledger *ledger.Ledger) *RankingService {
	return &RankingService{ledger: ledger}
}

// ListBalances returns the balances of pool sorted descending. Members
// without an account report the starting balance and no account is created.
// Ties keep pool order; duplicate ids are listed once.
func (s *RankingService) ListBalances(pool []int64) []model.BalanceEntry {
	ids := make([]int64, 0, len(pool))
	for _, id := range pool {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	entries := s.ledger.Snapshot(ids)
	sortByBalanceDesc(entries)
	return entries
}

// GetTopUsers returns at most limit entries of ListBalances.
func (s *RankingService) GetTopUsers(pool []int64, limit int) []model.BalanceEntry {
	entries := s.ListBalances(pool)
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func sortByBalanceDesc(entries []model.BalanceEntry) {
	slices.SortStableFunc(entries, func(a, b model.BalanceEntry) int {
		return cmp.Compare(b.Balance, a.Balance)
	})
}
