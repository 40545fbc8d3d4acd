// Package roulette implements single-shot roulette settlement on a 0-36 wheel.
package roulette

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/bet"
	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
)

// ActionType is the dispatcher action served by this engine.
const ActionType = "roulette"

// Option is a bet option.
type Option string

const (
	Even   Option = "even"
	Odd    Option = "odd"
	Small  Option = "small"  // 1-12
	Medium Option = "medium" // 13-24
	Large  Option = "large"  // 25-36
	First  Option = "first"  // 1-18
	Second Option = "second" // 19-36
	Number Option = "number" // single number, 0-36
)

// Pockets is the number of pockets on the wheel, 0 through 36.
const Pockets = 37

// Validation errors.
var (
	ErrInvalidOption = errors.New("invalid roulette option")
	ErrInvalidNumber = errors.New("number must be between 0 and 36")
)

// ParseOption validates a raw option name.
func ParseOption(raw string) (Option, error) {
	opt := Option(strings.ToLower(strings.TrimSpace(raw)))
	switch opt {
	case Even, Odd, Small, Medium, Large, First, Second, Number:
		return opt, nil
	}
	return "", game.Invalid(fmt.Errorf("%w: %q", ErrInvalidOption, raw))
}

// Multiplier returns the payout multiplier of opt for a spin landing on
// result, or 0 when the bet loses. chosen is only read for Number.
func Multiplier(opt Option, chosen, result int) int64 {
	in := func(lo, hi int) bool { return result >= lo && result <= hi }

	switch opt {
	case Number:
		if result == chosen {
			return 36
		}
	case Small:
		if in(1, 12) {
			return 3
		}
	case Medium:
		if in(13, 24) {
			return 3
		}
	case Large:
		if in(25, 36) {
			return 3
		}
	case First:
		if in(1, 18) {
			return 2
		}
	case Second:
		if in(19, 36) {
			return 2
		}
	case Even:
		// 0 counts as even.
		if result%2 == 0 {
			return 2
		}
	case Odd:
		if result%2 == 1 {
			return 2
		}
	}
	return 0
}

// Outcome is the settlement of one spin.
type Outcome struct {
	Option       Option `json:"option"`
	Number       *int   `json:"number,omitempty"`
	Amount       int64  `json:"amount"`
	ResultNumber int    `json:"result_number"`
	Multiplier   int64  `json:"multiplier"`
	Payout       int64  `json:"payout"`
	NetDelta     int64  `json:"net_delta"`
	NewBalance   int64  `json:"new_balance"`
	Overdraft    bool   `json:"overdraft,omitempty"`
}

// Won reports whether the spin paid out.
func (o *Outcome) Won() bool {
	return o.Multiplier > 0
}

// Engine settles roulette bets against the ledger.
type Engine struct {
	ledger game.Ledger
	locks  *lock.UserLock
	rng    game.Rand
	limits bet.Limits
}

// New creates a roulette engine.
func New(ledger game.Ledger, locks *lock.UserLock, rng game.Rand, limits bet.Limits) *Engine {
	if rng == nil {
		rng = game.DefaultRand
	}
	return &Engine{ledger: ledger, locks: locks, rng: rng, limits: limits}
}

// Play validates the bet, debits the stake, spins and credits any payout.
// number is required for the Number option and ignored otherwise.
func (e *Engine) Play(ctx context.Context, userID int64, rawAmount string, opt Option, number *int) (*Outcome, error) {
	if opt == Number && (number == nil || *number < 0 || *number > 36) {
		return nil, game.Invalid(ErrInvalidNumber)
	}
	if opt != Number {
		number = nil
	}

	e.locks.Lock(userID)
	defer e.locks.Unlock(userID)

	balance := e.ledger.Balance(userID)
	amount, check, err := bet.Parse(rawAmount, balance, e.limits)
	if err != nil {
		return nil, err
	}

	e.ledger.Adjust(ctx, userID, -amount, model.TxTypeRouletteBet, fmt.Sprintf("roulette %s", opt))

	result := e.rng.Intn(Pockets)
	chosen := -1
	if number != nil {
		chosen = *number
	}
	mult := Multiplier(opt, chosen, result)

	out := &Outcome{
		Option:       opt,
		Number:       number,
		Amount:       amount,
		ResultNumber: result,
		Multiplier:   mult,
		Overdraft:    check.Overdraft,
	}
	if mult > 0 {
		out.Payout = amount * mult
		out.NewBalance = e.ledger.Adjust(ctx, userID, out.Payout, model.TxTypeRouletteWin, fmt.Sprintf("roulette %s landed %d", opt, result))
	} else {
		out.NewBalance = e.ledger.Balance(userID)
	}
	out.NetDelta = out.Payout - amount

	log.Info().
		Int64("user_id", userID).
		Str("option", string(opt)).
		Int64("amount", amount).
		Int("result", result).
		Int64("net", out.NetDelta).
		Msg("Roulette settled")

	return out, nil
}

// Type returns the action type.
func (e *Engine) Type() string { return ActionType }

// Handle serves {"amount": "100"|"all", "option": "even", "number": 7}.
func (e *Engine) Handle(ctx context.Context, action game.Action) (*game.Result, error) {
	raw, err := game.RequireString(action.Params, "amount")
	if err != nil {
		return nil, err
	}
	rawOpt, err := game.RequireString(action.Params, "option")
	if err != nil {
		return nil, err
	}
	opt, err := ParseOption(rawOpt)
	if err != nil {
		return nil, err
	}

	var number *int
	if n, ok := game.IntParam(action.Params, "number"); ok {
		v := int(n)
		number = &v
	}

	out, err := e.Play(ctx, action.UserID, raw, opt, number)
	if err != nil {
		return nil, err
	}
	return &game.Result{
		Type:    "settled",
		Data:    out,
		Notices: bet.Check{Overdraft: out.Overdraft}.Notices(),
	}, nil
}
