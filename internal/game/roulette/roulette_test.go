package roulette

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"casino-bot/internal/bet"
	"casino-bot/internal/game"
	"casino-bot/internal/ledger"
	"casino-bot/internal/pkg/lock"
)

// fixedRand always lands on n.
type fixedRand struct{ n int }

func (f fixedRand) Intn(int) int                { return f.n }
func (f fixedRand) Float64() float64            { return 0 }
func (f fixedRand) Shuffle(int, func(i, j int)) {}

func newEngine(start int64, result int) (*Engine, *ledger.Ledger) {
	l := ledger.New(start)
	return New(l, lock.NewUserLock(), fixedRand{result}, bet.DefaultLimits), l
}

func intp(n int) *int { return &n }

func TestMultiplier(t *testing.T) {
	tests := []struct {
		name   string
		opt    Option
		chosen int
		result int
		want   int64
	}{
		{"number hit", Number, 17, 17, 36},
		{"number zero hit", Number, 0, 0, 36},
		{"number miss", Number, 17, 18, 0},
		{"small low edge", Small, -1, 1, 3},
		{"small high edge", Small, -1, 12, 3},
		{"small excludes zero", Small, -1, 0, 0},
		{"medium", Medium, -1, 13, 3},
		{"medium miss", Medium, -1, 25, 0},
		{"large", Large, -1, 36, 3},
		{"first", First, -1, 18, 2},
		{"first miss", First, -1, 19, 0},
		{"second", Second, -1, 19, 2},
		{"second excludes zero", Second, -1, 0, 0},
		{"even", Even, -1, 4, 2},
		{"zero is even", Even, -1, 0, 2},
		{"even miss", Even, -1, 7, 0},
		{"odd", Odd, -1, 35, 2},
		{"odd miss on zero", Odd, -1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Multiplier(tt.opt, tt.chosen, tt.result))
		})
	}
}

func TestPlay_EvenWin(t *testing.T) {
	e, l := newEngine(2000, 4)

	out, err := e.Play(context.Background(), 1, "100", Even, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, out.ResultNumber)
	assert.Equal(t, int64(200), out.Payout)
	assert.Equal(t, int64(100), out.NetDelta)
	assert.Equal(t, int64(2100), out.NewBalance)
	assert.Equal(t, int64(2100), l.Balance(1))
}

func TestPlay_EvenLoss(t *testing.T) {
	e, l := newEngine(2000, 7)

	out, err := e.Play(context.Background(), 1, "100", Even, nil)
	require.NoError(t, err)
	assert.False(t, out.Won())
	assert.Equal(t, int64(-100), out.NetDelta)
	assert.Equal(t, int64(1900), l.Balance(1))
}

func TestPlay_NumberRequiresValidNumber(t *testing.T) {
	e, l := newEngine(2000, 7)

	for _, n := range []*int{nil, intp(-1), intp(37)} {
		_, err := e.Play(context.Background(), 1, "100", Number, n)
		require.ErrorIs(t, err, ErrInvalidNumber)
		assert.True(t, game.IsValidation(err))
	}
	_, ok := l.Lookup(1)
	assert.False(t, ok, "rejected bets must not touch the ledger")
}

func TestPlay_NumberJackpot(t *testing.T) {
	e, l := newEngine(2000, 0)

	out, err := e.Play(context.Background(), 1, "10", Number, intp(0))
	require.NoError(t, err)
	assert.Equal(t, int64(360), out.Payout)
	assert.Equal(t, int64(2350), l.Balance(1))
}

func TestPlay_ValidationLeavesBalance(t *testing.T) {
	e, l := newEngine(8000, 4)

	_, err := e.Play(context.Background(), 1, "6000", Even, nil)
	require.ErrorIs(t, err, bet.ErrExceedsMax)
	assert.Equal(t, int64(8000), l.Balance(1))

	// All-in is exempt from the cap.
	out, err := e.Play(context.Background(), 1, "all", Even, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), out.Amount)
	assert.Equal(t, int64(16000), l.Balance(1))
}

func TestPlay_OverdraftAllowed(t *testing.T) {
	e, l := newEngine(50, 7)

	out, err := e.Play(context.Background(), 1, "300", Even, nil)
	require.NoError(t, err)
	assert.True(t, out.Overdraft)
	assert.Equal(t, int64(-250), l.Balance(1))
}

func TestHandle(t *testing.T) {
	e, _ := newEngine(2000, 12)

	res, err := e.Handle(context.Background(), game.Action{
		UserID: 1,
		Type:   ActionType,
		Params: map[string]any{"amount": float64(100), "option": "Small"},
	})
	require.NoError(t, err)
	out := res.Data.(*Outcome)
	assert.Equal(t, int64(300), out.Payout)
	assert.Empty(t, res.Notices)

	_, err = e.Handle(context.Background(), game.Action{
		UserID: 1,
		Params: map[string]any{"amount": "100", "option": "red"},
	})
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = e.Handle(context.Background(), game.Action{UserID: 1, Params: map[string]any{"option": "odd"}})
	assert.ErrorIs(t, err, game.ErrMissingParam)
}

// TestSettlementArithmeticProperty checks net = amount*(mult-1) on a win and
// -amount on a loss, with the ledger agreeing.
func TestSettlementArithmeticProperty(t *testing.T) {
	options := []Option{Even, Odd, Small, Medium, Large, First, Second, Number}

	rapid.Check(t, func(t *rapid.T) {
		result := rapid.IntRange(0, 36).Draw(t, "result")
		opt := rapid.SampledFrom(options).Draw(t, "option")
		chosen := rapid.IntRange(0, 36).Draw(t, "chosen")
		amount := rapid.Int64Range(1, 5000).Draw(t, "amount")
		start := rapid.Int64Range(-10000, 10000).Draw(t, "start")
		if start < 0 && amount > 500 {
			amount = 500
		}

		e, l := newEngine(start, result)
		out, err := e.Play(context.Background(), 1, strconv.FormatInt(amount, 10), opt, &chosen)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mult := Multiplier(opt, chosen, result)
		want := -amount
		if mult > 0 {
			want = amount * (mult - 1)
		}
		if out.NetDelta != want {
			t.Fatalf("net: expected %d, got %d", want, out.NetDelta)
		}
		if l.Balance(1) != start+want {
			t.Fatalf("balance: expected %d, got %d", start+want, l.Balance(1))
		}
	})
}
