// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/cooldown"
	"casino-bot/internal/game"
	"casino-bot/internal/ledger"
	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
)

// lockTimeout bounds how long an account operation waits for the user's lock.
const lockTimeout = 5 * time.Second

// DailyConfig holds the daily reward rules.
type DailyConfig struct {
	Reward int64
	// Bonus is added on every BonusEvery-th claim.
	Bonus      int64
	BonusEvery int
}

// DefaultDaily pays 100 a day and 200 on every 7th claim.
var DefaultDaily = DailyConfig{Reward: 100, Bonus: 100, BonusEvery: 7}

// DailyResult is a granted daily claim.
type DailyResult struct {
	Amount     int64     `json:"amount"`
	Bonus      bool      `json:"bonus"`
	Streak     int       `json:"streak"`
	NewBalance int64     `json:"new_balance"`
	NextReset  time.Time `json:"next_reset"`
}

// AccountService handles balances and the daily reward.
type AccountService struct {
	ledger    *ledger.Ledger
	cooldowns *cooldown.Tracker
	userLock  *lock.UserLock
	daily     DailyConfig
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	ledger *ledger.Ledger,
	cooldowns *cooldown.Tracker,
	userLock *lock.UserLock,
	daily DailyConfig,
) *AccountService {
	if daily.BonusEvery < 1 {
		daily.BonusEvery = 1
	}
	return &AccountService{
		ledger:    ledger,
		cooldowns: cooldowns,
		userLock:  userLock,
		daily:     daily,
	}
}

// GetBalance returns the user's balance, creating the account on first reference.
func (s *AccountService) GetBalance(userID int64) int64 {
	return s.ledger.Balance(userID)
}

// LookupBalance returns the balance only if the account already exists.
func (s *AccountService) LookupBalance(userID int64) (int64, bool) {
	return s.ledger.Lookup(userID)
}

// ClaimDaily grants the daily reward once per calendar day. The bonus is
// decided on the streak count before it is incremented.
func (s *AccountService) ClaimDaily(ctx context.Context, userID int64, now time.Time) (*DailyResult, error) {
	var res *DailyResult
	err := s.userLock.WithLockContext(ctx, userID, lockTimeout, func() error {
		if s.cooldowns.TryConsume(userID, cooldown.DailyClaim, now) == cooldown.Denied {
			return fmt.Errorf("%w: next claim at %s", game.ErrAlreadyClaimedToday,
				s.cooldowns.NextReset(now).Format(time.RFC3339))
		}

		amount := s.daily.Reward
		bonus := s.cooldowns.StreakCount(userID)%s.daily.BonusEvery == s.daily.BonusEvery-1
		if bonus {
			amount += s.daily.Bonus
		}

		balance := s.ledger.Adjust(ctx, userID, amount, model.TxTypeDaily, "daily reward")
		s.cooldowns.Record(userID, cooldown.DailyClaim, now)
		streak := s.cooldowns.IncrementStreak(userID)

		res = &DailyResult{
			Amount:     amount,
			Bonus:      bonus,
			Streak:     streak,
			NewBalance: balance,
			NextReset:  s.cooldowns.NextReset(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", userID).
		Int64("amount", res.Amount).
		Int("streak", res.Streak).
		Msg("Daily reward claimed")
	return res, nil
}
