package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"casino-bot/internal/game"
	"casino-bot/internal/ledger"
	"casino-bot/internal/pkg/lock"
)

func newTransferService(start int64) (*TransferService, *ledger.Ledger) {
	l := ledger.New(start)
	return NewTransferService(l, lock.NewUserLock()), l
}

func TestGiveCoins(t *testing.T) {
	s, l := newTransferService(2000)
	ctx := context.Background()

	res, err := s.GiveCoins(ctx, 1, 2, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.NewBalance)
	assert.Equal(t, int64(2500), res.ReceiverBalance)
	assert.Equal(t, int64(2500), l.Balance(2))
}

func TestGiveCoins_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		from, to   int64
		amount     int64
		want       error
		validation bool
	}{
		{"zero", 1, 2, 0, ErrInvalidAmount, true},
		{"negative", 1, 2, -5, ErrInvalidAmount, true},
		{"self", 1, 1, 10, ErrSelfTransfer, true},
		{"insufficient", 1, 2, 2001, ErrInsufficientFunds, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, l := newTransferService(2000)
			_, err := s.GiveCoins(context.Background(), tt.from, tt.to, tt.amount)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.validation, game.IsValidation(err))
			assert.Equal(t, int64(2000), l.Balance(tt.from))
		})
	}
}

func TestGiveCoins_NegativeBalanceCannotGive(t *testing.T) {
	s, l := newTransferService(2000)
	ctx := context.Background()
	l.Adjust(ctx, 1, -2100, "test", "")

	_, err := s.GiveCoins(ctx, 1, 2, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

// TestTransferConservationProperty runs crossing gifts concurrently and checks
// that no gift overdraws its sender and the total is conserved.
func TestTransferConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Int64Range(0, 1000).Draw(t, "start")
		s, l := newTransferService(start)
		ctx := context.Background()

		users := []int64{1, 2, 3}
		n := rapid.IntRange(1, 30).Draw(t, "n")
		type gift struct{ from, to, amount int64 }
		gifts := make([]gift, n)
		for i := range gifts {
			gifts[i] = gift{
				from:   rapid.SampledFrom(users).Draw(t, "from"),
				to:     rapid.SampledFrom(users).Draw(t, "to"),
				amount: rapid.Int64Range(-10, 500).Draw(t, "amount"),
			}
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(gifts))
		for _, g := range gifts {
			wg.Add(1)
			go func(g gift) {
				defer wg.Done()
				_, err := s.GiveCoins(ctx, g.from, g.to, g.amount)
				if err != nil && !errors.Is(err, ErrInsufficientFunds) && !game.IsValidation(err) {
					errs <- err
				}
			}(g)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("unexpected error: %v", err)
		}

		var total int64
		for _, id := range users {
			b := l.Balance(id)
			if b < 0 {
				t.Fatalf("user %d overdrawn: %d", id, b)
			}
			total += b
		}
		if total != 3*start {
			t.Fatalf("total %d, want %d", total, 3*start)
		}
	})
}
