// Package rob implements the robbery game: once per calendar day a user picks
// a random pool member with coins and either steals from them or pays them.
package rob

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/cooldown"
	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
)

// ActionType is the dispatcher action served by RobGame.
const ActionType = "rob"

// Ledger is the balance store used by the robbery. Snapshot reads balances
// without creating accounts for pool members nobody has seen yet.
type Ledger interface {
	game.Ledger
	Snapshot(ids []int64) []model.BalanceEntry
}

// Config holds the amount range and the success chance.
type Config struct {
	MinAmount      int64
	MaxAmount      int64
	SuccessPercent int
}

// DefaultConfig robs 100 to 500 coins with even odds.
var DefaultConfig = Config{MinAmount: 100, MaxAmount: 500, SuccessPercent: 50}

// RobOutcome is the branch a robbery took.
type RobOutcome string

const (
	OutcomeSuccess       RobOutcome = "success"       // robber takes coins from the victim
	OutcomeCounterAttack RobOutcome = "counterattack" // robber pays the victim
)

// RobResult is the outcome of a robbery attempt.
type RobResult struct {
	Outcome RobOutcome `json:"outcome"`
	// VictimID is the randomly chosen target.
	VictimID int64 `json:"victim_id"`
	// RawAmount is the drawn amount before capping by the paying balance.
	RawAmount int64 `json:"raw_amount"`
	// Amount is what actually moved.
	Amount        int64 `json:"amount"`
	NewBalance    int64 `json:"new_balance"`
	VictimBalance int64 `json:"victim_balance"`
}

// Success reports whether the robber gained coins.
func (r *RobResult) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// RobGame manages robbery attempts.
type RobGame struct {
	ledger    Ledger
	cooldowns *cooldown.Tracker
	userLock  *lock.UserLock
	rng       game.Rand
	cfg       Config
}

// NewRobGame creates a new RobGame instance.
func NewRobGame(ledger Ledger, cooldowns *cooldown.Tracker, userLock *lock.UserLock, rng game.Rand, cfg Config) *RobGame {
	if cfg.MaxAmount < cfg.MinAmount {
		cfg.MaxAmount = cfg.MinAmount
	}
	return &RobGame{
		ledger:    ledger,
		cooldowns: cooldowns,
		userLock:  userLock,
		rng:       rng,
		cfg:       cfg,
	}
}

// Eligible returns the pool members the robber may target: everybody but the
// robber with a positive balance, in pool order. Duplicates are dropped.
func (g *RobGame) Eligible(robberID int64, pool []int64) []int64 {
	ids := make([]int64, 0, len(pool))
	for _, id := range pool {
		if id != robberID && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}

	var out []int64
	for _, entry := range g.ledger.Snapshot(ids) {
		if entry.Balance > 0 {
			out = append(out, entry.UserID)
		}
	}
	return out
}

// GenerateAmount draws the raw amount uniformly from the configured range.
func (g *RobGame) GenerateAmount() int64 {
	return g.cfg.MinAmount + int64(g.rng.Intn(int(g.cfg.MaxAmount-g.cfg.MinAmount+1)))
}

// DetermineOutcome rolls the contest.
func (g *RobGame) DetermineOutcome() RobOutcome {
	failChance := float64(100-g.cfg.SuccessPercent) / 100
	if g.rng.Float64() < failChance {
		return OutcomeCounterAttack
	}
	return OutcomeSuccess
}

// Rob executes a robbery attempt against a random eligible member of pool.
// Exactly one transfer happens per successful call and the daily rob
// cooldown is consumed in both branches.
func (g *RobGame) Rob(ctx context.Context, robberID int64, pool []int64, now time.Time) (*RobResult, error) {
	if g.cooldowns.TryConsume(robberID, cooldown.DailyRob, now) == cooldown.Denied {
		return nil, g.attemptedErr(now)
	}

	targets := g.Eligible(robberID, pool)
	if len(targets) == 0 {
		return nil, game.ErrNoEligibleTargets
	}
	victimID := targets[g.rng.Intn(len(targets))]
	raw := g.GenerateAmount()
	outcome := g.DetermineOutcome()

	unlock := g.userLock.LockMany(robberID, victimID)
	defer unlock()

	// A concurrent attempt by the same robber may have won the race.
	if g.cooldowns.TryConsume(robberID, cooldown.DailyRob, now) == cooldown.Denied {
		return nil, g.attemptedErr(now)
	}

	res := &RobResult{Outcome: outcome, VictimID: victimID, RawAmount: raw}
	switch outcome {
	case OutcomeCounterAttack:
		res.Amount = capAmount(raw, g.ledger.Balance(robberID))
		desc := fmt.Sprintf("robbery of %d failed", victimID)
		res.NewBalance, res.VictimBalance = g.ledger.Transfer(ctx, robberID, victimID, res.Amount,
			model.TxTypeCounterAttack, model.TxTypeCounterAttacked, desc)
	default:
		res.Amount = capAmount(raw, g.ledger.Balance(victimID))
		desc := fmt.Sprintf("robbery of %d", victimID)
		res.VictimBalance, res.NewBalance = g.ledger.Transfer(ctx, victimID, robberID, res.Amount,
			model.TxTypeRobbed, model.TxTypeRob, desc)
	}
	g.cooldowns.Record(robberID, cooldown.DailyRob, now)

	log.Info().
		Int64("robber_id", robberID).
		Int64("victim_id", victimID).
		Str("outcome", string(outcome)).
		Int64("amount", res.Amount).
		Msg("Robbery resolved")

	return res, nil
}

func (g *RobGame) attemptedErr(now time.Time) error {
	return fmt.Errorf("%w: next attempt at %s", game.ErrAlreadyAttemptedToday,
		g.cooldowns.NextReset(now).Format(time.RFC3339))
}

// capAmount limits raw to what the paying side has, never below zero.
func capAmount(raw, balance int64) int64 {
	return max(min(raw, balance), 0)
}

// Type returns the action type.
func (g *RobGame) Type() string { return ActionType }

// Handle robs a member of action.Pool.
func (g *RobGame) Handle(ctx context.Context, action game.Action) (*game.Result, error) {
	now := action.Now
	if now.IsZero() {
		now = time.Now()
	}
	res, err := g.Rob(ctx, action.UserID, action.Pool, now)
	if err != nil {
		return nil, err
	}
	return &game.Result{Type: "rob_" + string(res.Outcome), Data: res}, nil
}
