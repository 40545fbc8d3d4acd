package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-bot/internal/cooldown"
	"casino-bot/internal/game"
	"casino-bot/internal/ledger"
	"casino-bot/internal/pkg/lock"
)

func newDispatcher(t *testing.T) (*Dispatcher, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(2000)
	locks := lock.NewUserLock()
	cd := cooldown.NewTracker(cooldown.FixedZone(9))

	d := NewDispatcher(game.NewRegistry())
	require.NoError(t, d.Register(Handlers(
		NewAccountService(l, cd, locks, DefaultDaily),
		NewTransferService(l, locks),
		NewRankingService(l),
	)...))
	return d, l
}

func TestDispatch(t *testing.T) {
	d, l := newDispatcher(t)
	ctx := context.Background()

	assert.Equal(t, []string{ActionBalance, ActionBalances, ActionDaily, ActionGive}, d.Types())

	res, err := d.Dispatch(ctx, game.Action{UserID: 1, Type: ActionDaily, Now: day0})
	require.NoError(t, err)
	assert.Equal(t, "granted", res.Type)
	assert.Empty(t, res.Notices)

	_, err = d.Dispatch(ctx, game.Action{UserID: 1, Type: ActionDaily, Now: day0})
	assert.ErrorIs(t, err, game.ErrAlreadyClaimedToday)

	res, err = d.Dispatch(ctx, game.Action{UserID: 1, Type: ActionGive, Params: map[string]any{"to": float64(2), "amount": "100"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.Data.(*GiveResult).NewBalance)
	assert.Equal(t, int64(2100), l.Balance(2))

	res, err = d.Dispatch(ctx, game.Action{UserID: 9, Type: ActionBalance, Params: map[string]any{"target": 42}})
	require.NoError(t, err)
	assert.Equal(t, false, res.Data.(map[string]any)["exists"])

	res, err = d.Dispatch(ctx, game.Action{UserID: 1, Type: ActionBalances, Pool: []int64{1, 2}})
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
}

func TestDispatch_Errors(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, game.Action{UserID: 1, Type: "slots"})
	assert.ErrorIs(t, err, game.ErrUnknownAction)

	_, err = d.Dispatch(ctx, game.Action{UserID: 1, Type: ActionGive, Params: map[string]any{"amount": 5}})
	assert.ErrorIs(t, err, game.ErrMissingParam)
	assert.True(t, game.IsValidation(err))

	assert.Error(t, d.Register(game.HandlerFunc{Action: ActionDaily}))
}

func TestDispatch_StreakNotice(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	var res *game.Result
	var err error
	for i := 0; i < 7; i++ {
		res, err = d.Dispatch(ctx, game.Action{UserID: 1, Type: ActionDaily, Now: day0.AddDate(0, 0, i)})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{game.NoticeStreak}, res.Notices)
}
