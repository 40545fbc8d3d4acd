package blackjack

import (
	"context"

	"casino-bot/internal/game"
)

// Dispatcher action types.
const (
	ActionStart  = "blackjack_start"
	ActionHit    = "blackjack_hit"
	ActionStand  = "blackjack_stand"
	ActionDouble = "blackjack_double"
	ActionState  = "blackjack_state"
	ActionOpen   = "blackjack_open"
	ActionJoin   = "blackjack_join"
	ActionBegin  = "blackjack_begin"
	ActionBet    = "blackjack_bet"
)

// tableFor resolves the table an action addresses: the channel for
// multiplayer, the caller otherwise.
func tableFor(action game.Action) (TableKey, error) {
	raw, _ := game.StringParam(action.Params, "mode")
	mode, err := ParseMode(raw)
	if err != nil {
		return TableKey{}, game.Invalid(err)
	}
	if mode == Multi {
		return MultiTable(action.ChannelID), nil
	}
	return SingleTable(action.UserID), nil
}

func toResult(res *Result) *game.Result {
	out := &game.Result{Type: string(res.Kind), Data: res}
	if res.Overdraft {
		out.Notices = append(out.Notices, game.NoticeOverdraft)
	}
	if res.Kind == KindTurnAdvanced {
		out.Notices = append(out.Notices, game.NoticeTurnPassed)
	}
	return out
}

func (e *Engine) keyed(action string, fn func(ctx context.Context, key TableKey, userID int64) (*Result, error)) game.Handler {
	return game.HandlerFunc{
		Action: action,
		Fn: func(ctx context.Context, a game.Action) (*game.Result, error) {
			key, err := tableFor(a)
			if err != nil {
				return nil, err
			}
			res, err := fn(ctx, key, a.UserID)
			if err != nil {
				return nil, err
			}
			return toResult(res), nil
		},
	}
}

func (e *Engine) channel(action string, fn func(ctx context.Context, channelID, userID int64) (*Result, error)) game.Handler {
	return game.HandlerFunc{
		Action: action,
		Fn: func(ctx context.Context, a game.Action) (*game.Result, error) {
			res, err := fn(ctx, a.ChannelID, a.UserID)
			if err != nil {
				return nil, err
			}
			return toResult(res), nil
		},
	}
}

// Handlers returns the dispatcher handlers of every blackjack action.
func (e *Engine) Handlers() []game.Handler {
	return []game.Handler{
		game.HandlerFunc{
			Action: ActionStart,
			Fn: func(ctx context.Context, a game.Action) (*game.Result, error) {
				key, err := tableFor(a)
				if err != nil {
					return nil, err
				}
				raw := ""
				if key.Mode == Single {
					if raw, err = game.RequireString(a.Params, "amount"); err != nil {
						return nil, err
					}
				}
				res, err := e.Start(ctx, key, a.UserID, raw)
				if err != nil {
					return nil, err
				}
				return toResult(res), nil
			},
		},
		e.keyed(ActionHit, e.Hit),
		e.keyed(ActionStand, e.Stand),
		e.keyed(ActionDouble, e.DoubleDown),
		e.keyed(ActionState, func(ctx context.Context, key TableKey, _ int64) (*Result, error) {
			return e.State(ctx, key)
		}),
		e.channel(ActionOpen, e.Open),
		e.channel(ActionJoin, e.Join),
		e.channel(ActionBegin, e.Begin),
		game.HandlerFunc{
			Action: ActionBet,
			Fn: func(ctx context.Context, a game.Action) (*game.Result, error) {
				raw, _ := game.StringParam(a.Params, "amount")
				res, err := e.PlaceBet(ctx, a.ChannelID, a.UserID, raw)
				if err != nil {
					return nil, err
				}
				return toResult(res), nil
			},
		},
	}
}
