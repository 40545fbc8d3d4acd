package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/game"
)

// Economy action types served by the services.
const (
	ActionDaily    = "daily"
	ActionBalance  = "balance"
	ActionGive     = "give"
	ActionBalances = "balances"
)

// Dispatcher routes action requests to the registered engines.
type Dispatcher struct {
	registry *game.Registry
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *game.Registry) *Dispatcher {
	return &Dispatcher{registry: registry, now: time.Now}
}

// Register adds every handler, stopping at the first failure.
func (d *Dispatcher) Register(handlers ...game.Handler) error {
	for _, h := range handlers {
		if err := d.registry.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// Types lists the action types the dispatcher serves.
func (d *Dispatcher) Types() []string {
	return d.registry.Types()
}

// Dispatch executes one action. A zero action.Now is set to the current time.
func (d *Dispatcher) Dispatch(ctx context.Context, action game.Action) (*game.Result, error) {
	h, ok := d.registry.Get(action.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", game.ErrUnknownAction, action.Type)
	}
	if action.Now.IsZero() {
		action.Now = d.now()
	}

	res, err := h.Handle(ctx, action)
	if err != nil {
		log.Debug().
			Err(err).
			Str("action", action.Type).
			Int64("user_id", action.UserID).
			Msg("Action rejected")
		return nil, err
	}
	return res, nil
}

// Handlers returns the dispatcher handlers of the economy actions.
func Handlers(accounts *AccountService, transfers *TransferService, ranking *RankingService) []game.Handler {
	return []game.Handler{
		game.HandlerFunc{
			Action: ActionDaily,
			Fn: func(ctx context.Context, a game.Action) (*game.Result, error) {
				res, err := accounts.ClaimDaily(ctx, a.UserID, a.Now)
				if err != nil {
					return nil, err
				}
				out := &game.Result{Type: "granted", Data: res}
				if res.Bonus {
					out.Notices = append(out.Notices, game.NoticeStreak)
				}
				return out, nil
			},
		},
		game.HandlerFunc{
			Action: ActionBalance,
			Fn: func(_ context.Context, a game.Action) (*game.Result, error) {
				// "target" looks up another user without creating the account.
				if target, ok := game.IntParam(a.Params, "target"); ok {
					balance, exists := accounts.LookupBalance(target)
					return &game.Result{Type: ActionBalance, Data: map[string]any{
						"user_id": target,
						"balance": balance,
						"exists":  exists,
					}}, nil
				}
				return &game.Result{Type: ActionBalance, Data: map[string]any{
					"user_id": a.UserID,
					"balance": accounts.GetBalance(a.UserID),
					"exists":  true,
				}}, nil
			},
		},
		game.HandlerFunc{
			Action: ActionGive,
			Fn: func(ctx context.Context, a game.Action) (*game.Result, error) {
				to, ok := game.IntParam(a.Params, "to")
				if !ok {
					return nil, game.Invalid(fmt.Errorf("%w: to", game.ErrMissingParam))
				}
				amount, ok := game.IntParam(a.Params, "amount")
				if !ok {
					return nil, game.Invalid(fmt.Errorf("%w: amount", ErrInvalidAmount))
				}
				res, err := transfers.GiveCoins(ctx, a.UserID, to, amount)
				if err != nil {
					return nil, err
				}
				return &game.Result{Type: "ok", Data: res}, nil
			},
		},
		game.HandlerFunc{
			Action: ActionBalances,
			Fn: func(_ context.Context, a game.Action) (*game.Result, error) {
				return &game.Result{Type: ActionBalances, Data: ranking.ListBalances(a.Pool)}, nil
			},
		},
	}
}
