// Package bet parses and limits wagers for every game.
package bet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"casino-bot/internal/game"
)

// Validation errors. They are always returned wrapped in game.ValidationError.
var (
	ErrInvalidAmount = errors.New("invalid bet amount")
	ErrNothingToBet  = errors.New("nothing to bet")
	ErrExceedsMax    = errors.New("bet exceeds the maximum")
)

// AllIn is the keyword that bets the whole balance.
const AllIn = "all"

// Limits holds the maximum bet for non-negative and negative balances.
type Limits struct {
	MaxBet         int64
	NegativeMaxBet int64
}

// DefaultLimits are the house limits.
var DefaultLimits = Limits{MaxBet: 5000, NegativeMaxBet: 500}

// Max returns the cap that applies at the given balance.
func (l Limits) Max(balance int64) int64 {
	if balance >= 0 {
		return l.MaxBet
	}
	return l.NegativeMaxBet
}

// ResolveAmount turns the raw user input into a stake.
// "all" (any case) resolves to balance, which must be positive.
func ResolveAmount(raw string, balance int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, AllIn) {
		if balance <= 0 {
			return 0, game.Invalid(ErrNothingToBet)
		}
		return balance, nil
	}

	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, game.Invalid(fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, raw))
	}
	if amount <= 0 {
		return 0, game.Invalid(fmt.Errorf("%w: must be positive", ErrInvalidAmount))
	}
	return amount, nil
}

// Check is the outcome of ValidateLimit.
type Check struct {
	// Overdraft is set when the stake exceeds a non-negative balance.
	// It is a notice, not an error.
	Overdraft bool
}

// ValidateLimit applies the house cap. A stake equal to the whole balance is
// exempt from the cap.
func ValidateLimit(amount, balance int64, limits Limits) (Check, error) {
	limit := limits.Max(balance)
	if amount != balance && amount > limit {
		return Check{}, game.Invalid(fmt.Errorf("%w of %d", ErrExceedsMax, limit))
	}
	return Check{Overdraft: balance >= 0 && amount > balance}, nil
}

// Parse resolves and validates raw in one step.
func Parse(raw string, balance int64, limits Limits) (int64, Check, error) {
	amount, err := ResolveAmount(raw, balance)
	if err != nil {
		return 0, Check{}, err
	}
	check, err := ValidateLimit(amount, balance, limits)
	if err != nil {
		return 0, Check{}, err
	}
	return amount, check, nil
}

// Notices returns the result notices implied by c.
func (c Check) Notices() []string {
	if c.Overdraft {
		return []string{game.NoticeOverdraft}
	}
	return nil
}
