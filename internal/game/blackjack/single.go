package blackjack

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/bet"
	"casino-bot/internal/game"
	"casino-bot/internal/model"
)

const (
	txBet     = model.TxTypeBlackjackBet
	txDouble  = model.TxTypeBlackjackDouble
	txPayout  = model.TxTypeBlackjackPayout
	txNatural = model.TxTypeBlackjackNatural
)

func (e *Engine) startSingle(ctx context.Context, userID int64, rawAmount string) (*Result, error) {
	e.locks.Lock(userID)
	defer e.locks.Unlock(userID)

	e.mu.Lock()
	_, busy := e.singles[userID]
	e.mu.Unlock()
	if busy {
		return nil, game.ErrTableOccupied
	}

	balance := e.ledger.Balance(userID)
	amount, check, err := bet.Parse(rawAmount, balance, e.cfg.Limits)
	if err != nil {
		return nil, err
	}

	g := &SinglePlayerGame{round: newRound(SingleTable(userID), e.newShoe(), e.now())}
	g.seats = []*Seat{{UserID: userID, Bet: amount, State: StatePlaying}}
	g.deal()
	p := g.Player()

	if p.Hand.IsNatural() {
		st := e.settleNatural(ctx, &g.round, p)
		g.dealerPlayed = true
		log.Info().
			Int64("user_id", userID).
			Int64("bet", amount).
			Str("outcome", string(st.Outcome)).
			Msg("Blackjack natural")
		return &Result{
			Kind:        KindNaturalOutcome,
			State:       g.Snapshot(),
			Settlements: []Settlement{st},
			Overdraft:   check.Overdraft,
		}, nil
	}

	e.ledger.Adjust(ctx, userID, -amount, txBet, fmt.Sprintf("game %s", g.id))
	g.startTurns()

	e.mu.Lock()
	e.singles[userID] = g
	e.mu.Unlock()

	log.Debug().
		Int64("user_id", userID).
		Int64("bet", amount).
		Int("player", p.Hand.Value()).
		Msg("Blackjack dealt")

	return &Result{Kind: KindDealt, State: g.Snapshot(), Overdraft: check.Overdraft}, nil
}

// withSingle runs fn on the caller's own game while holding the caller's lock.
func (e *Engine) withSingle(key TableKey, userID int64, fn func(g *SinglePlayerGame) (*Result, error)) (*Result, error) {
	if key.ID != userID {
		return nil, game.ErrNotYourTurn
	}

	e.locks.Lock(userID)
	defer e.locks.Unlock(userID)

	// lastAction is read by SweepIdle under e.mu.
	e.mu.Lock()
	g := e.singles[userID]
	if g != nil {
		g.lastAction = e.now()
	}
	e.mu.Unlock()
	if g == nil {
		return nil, game.ErrNoActiveGame
	}
	return fn(g)
}

func (e *Engine) removeSingle(userID int64) {
	e.mu.Lock()
	delete(e.singles, userID)
	e.mu.Unlock()
}

func (e *Engine) hitSingle(ctx context.Context, key TableKey, userID int64) (*Result, error) {
	return e.withSingle(key, userID, func(g *SinglePlayerGame) (*Result, error) {
		p := g.Player()
		c := g.hit(p)
		log.Debug().Int64("user_id", userID).Str("card", c.String()).Int("value", p.Hand.Value()).Msg("Blackjack hit")

		if p.State == StateBusted {
			return e.bustSingle(ctx, g), nil
		}
		return &Result{Kind: KindHandUpdated, State: g.Snapshot(), Card: &c}, nil
	})
}

func (e *Engine) standSingle(ctx context.Context, key TableKey, userID int64) (*Result, error) {
	return e.withSingle(key, userID, func(g *SinglePlayerGame) (*Result, error) {
		g.Player().State = StateStanding
		return e.finishSingle(ctx, g), nil
	})
}

// doubleSingle doubles and then, unless busted, goes straight to the dealer.
func (e *Engine) doubleSingle(ctx context.Context, key TableKey, userID int64) (*Result, error) {
	return e.withSingle(key, userID, func(g *SinglePlayerGame) (*Result, error) {
		if !g.doubleDownAllowed {
			return nil, ErrDoubleDownNotAllowed
		}
		p := g.Player()
		if e.ledger.Balance(userID) < p.Bet {
			return nil, game.Invalid(ErrCannotAffordDouble)
		}

		e.ledger.Adjust(ctx, userID, -p.Bet, txDouble, fmt.Sprintf("game %s", g.id))
		c := g.doubleDown(p)
		log.Debug().Int64("user_id", userID).Str("card", c.String()).Int("value", p.Hand.Value()).Msg("Blackjack double down")

		if p.State == StateBusted {
			res := e.bustSingle(ctx, g)
			res.Card = &c
			return res, nil
		}
		res := e.finishSingle(ctx, g)
		res.Card = &c
		return res, nil
	})
}

// bustSingle ends a game lost on a bust. The dealer does not play.
func (e *Engine) bustSingle(ctx context.Context, g *SinglePlayerGame) *Result {
	g.turn = len(g.seats)
	e.removeSingle(g.Player().UserID)
	settlements := e.settle(ctx, &g.round, nil)
	return &Result{Kind: KindBusted, State: g.Snapshot(), Settlements: settlements}
}

func (e *Engine) finishSingle(ctx context.Context, g *SinglePlayerGame) *Result {
	g.playDealer()
	g.turn = len(g.seats)
	g.doubleDownAllowed = false
	settlements := e.settle(ctx, &g.round, nil)
	e.removeSingle(g.Player().UserID)
	return &Result{Kind: KindSettled, State: g.Snapshot(), Settlements: settlements}
}
