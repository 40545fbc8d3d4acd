package blackjack

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/bet"
	"casino-bot/internal/game"
	"casino-bot/internal/pkg/lock"
)

// Config holds table limits and multiplayer wait timeouts.
type Config struct {
	Limits       bet.Limits
	MaxPlayers   int
	MinPlayers   int
	LobbyTimeout time.Duration
	BetTimeout   time.Duration
	TurnTimeout  time.Duration
}

// DefaultConfig is a four-seat table with one-minute waits.
var DefaultConfig = Config{
	Limits:       bet.DefaultLimits,
	MaxPlayers:   4,
	MinPlayers:   2,
	LobbyTimeout: 60 * time.Second,
	BetTimeout:   60 * time.Second,
	TurnTimeout:  60 * time.Second,
}

// Engine owns every live table. It is safe for concurrent use.
type Engine struct {
	ledger   game.Ledger
	locks    *lock.UserLock
	notifier game.Notifier
	newShoe  ShoeFactory
	now      func() time.Time
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	singles  map[int64]*SinglePlayerGame // by player
	sessions map[int64]*session          // by channel
}

// Option configures an Engine.
type Option func(*Engine)

// WithShoeFactory replaces the shuffled 52-card shoe of every new game.
func WithShoeFactory(f ShoeFactory) Option {
	return func(e *Engine) { e.newShoe = f }
}

// WithRand shuffles new shoes with rng.
func WithRand(rng game.Rand) Option {
	return func(e *Engine) {
		e.newShoe = func() *Shoe { return NewShoe(rng) }
	}
}

// WithNotifier publishes multiplayer table events to n.
func WithNotifier(n game.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock overrides the clock used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine with no live tables.
func New(ledger game.Ledger, locks *lock.UserLock, cfg Config, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		ledger:   ledger,
		locks:    locks,
		notifier: game.LogNotifier{},
		newShoe:  func() *Shoe { return NewShoe(game.DefaultRand) },
		now:      time.Now,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		singles:  make(map[int64]*SinglePlayerGame),
		sessions: make(map[int64]*session),
	}
	if e.cfg.MinPlayers < 1 {
		e.cfg.MinPlayers = 1
	}
	if e.cfg.MaxPlayers < e.cfg.MinPlayers {
		e.cfg.MaxPlayers = e.cfg.MinPlayers
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a game at key. In single mode it deals at once; in multi mode
// it opens a lobby hosted by userID and rawAmount is not used.
func (e *Engine) Start(ctx context.Context, key TableKey, userID int64, rawAmount string) (*Result, error) {
	if key.Mode == Multi {
		return e.Open(ctx, key.ID, userID)
	}
	if key.ID != userID {
		return nil, game.ErrNotYourTurn
	}
	return e.startSingle(ctx, userID, rawAmount)
}

// Hit draws a card for userID.
func (e *Engine) Hit(ctx context.Context, key TableKey, userID int64) (*Result, error) {
	if key.Mode == Multi {
		return e.send(ctx, key.ID, opHit, userID, "")
	}
	return e.hitSingle(ctx, key, userID)
}

// Stand ends userID's turn.
func (e *Engine) Stand(ctx context.Context, key TableKey, userID int64) (*Result, error) {
	if key.Mode == Multi {
		return e.send(ctx, key.ID, opStand, userID, "")
	}
	return e.standSingle(ctx, key, userID)
}

// DoubleDown doubles userID's bet and draws exactly one card.
func (e *Engine) DoubleDown(ctx context.Context, key TableKey, userID int64) (*Result, error) {
	if key.Mode == Multi {
		return e.send(ctx, key.ID, opDouble, userID, "")
	}
	return e.doubleSingle(ctx, key, userID)
}

// State returns the visible state of the game at key.
func (e *Engine) State(ctx context.Context, key TableKey) (*Result, error) {
	if key.Mode == Multi {
		return e.send(ctx, key.ID, opState, 0, "")
	}

	e.locks.Lock(key.ID)
	defer e.locks.Unlock(key.ID)
	e.mu.Lock()
	g := e.singles[key.ID]
	e.mu.Unlock()
	if g == nil {
		return nil, game.ErrNoActiveGame
	}
	return &Result{Kind: KindHandUpdated, State: g.Snapshot()}, nil
}

// Active returns the number of live tables.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.singles) + len(e.sessions)
}

// SweepIdle removes single-player games without an action for longer than
// maxIdle. Their stakes are forfeited. Games whose player is mid-action are
// skipped. It returns the number of games removed.
func (e *Engine) SweepIdle(now time.Time, maxIdle time.Duration) int {
	e.mu.Lock()
	var candidates []int64
	for id, g := range e.singles {
		if now.Sub(g.lastAction) > maxIdle {
			candidates = append(candidates, id)
		}
	}
	e.mu.Unlock()

	removed := 0
	for _, id := range candidates {
		if !e.locks.TryLock(id) {
			continue
		}
		e.mu.Lock()
		if g, ok := e.singles[id]; ok && now.Sub(g.lastAction) > maxIdle {
			delete(e.singles, id)
			removed++
			log.Info().
				Int64("user_id", id).
				Int64("bet", g.Player().Bet).
				Dur("idle", now.Sub(g.lastAction)).
				Msg("Idle blackjack game removed")
		}
		e.mu.Unlock()
		e.locks.Unlock(id)
	}
	return removed
}

// Close cancels every multiplayer session and waits for them to stop.
// Stakes of unsettled seats are refunded.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) publish(key TableKey, eventType string, userID int64, data any) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(game.Event{
		Type:      eventType,
		Table:     key.String(),
		UserID:    userID,
		Data:      data,
		Timestamp: e.now(),
	})
}

// settle pays every standing seat against the finished dealer hand and
// returns the settlements of all seats. Naturals were paid at the deal.
func (e *Engine) settle(ctx context.Context, r *round, settled []Settlement) []Settlement {
	out := append([]Settlement(nil), settled...)
	for _, s := range r.seats {
		switch s.State {
		case StateSettled:
			continue
		case StateBusted:
			out = append(out, Settlement{
				UserID:     s.UserID,
				Bet:        s.Bet,
				Outcome:    OutcomeBust,
				NetDelta:   -s.Bet,
				NewBalance: e.ledger.Balance(s.UserID),
			})
		default:
			outcome := Compare(s.Hand, r.dealer)
			st := Settlement{UserID: s.UserID, Bet: s.Bet, Outcome: outcome}
			st.Payout = Payout(outcome, s.Bet)
			st.NetDelta = st.Payout - s.Bet
			if st.Payout > 0 {
				st.NewBalance = e.ledger.Adjust(ctx, s.UserID, st.Payout, txPayout, string(outcome))
			} else {
				st.NewBalance = e.ledger.Balance(s.UserID)
			}
			out = append(out, st)
		}
		log.Info().
			Str("table", r.key.String()).
			Int64("user_id", s.UserID).
			Int64("bet", s.Bet).
			Int("player", s.Hand.Value()).
			Int("dealer", r.dealer.Value()).
			Str("outcome", string(out[len(out)-1].Outcome)).
			Msg("Blackjack seat settled")
	}
	return out
}

// settleNatural pays a natural at the deal. A natural against a dealer
// natural is a push and the stake is never taken.
func (e *Engine) settleNatural(ctx context.Context, r *round, s *Seat) Settlement {
	s.State = StateSettled
	st := Settlement{UserID: s.UserID, Bet: s.Bet}
	if r.dealer.IsNatural() {
		st.Outcome = OutcomeNaturalPush
		st.NewBalance = e.ledger.Balance(s.UserID)
		return st
	}
	e.ledger.Adjust(ctx, s.UserID, -s.Bet, txBet, "natural")
	st.Outcome = OutcomeNaturalWin
	st.Payout = NaturalPayout(s.Bet)
	st.NetDelta = st.Payout - s.Bet
	st.NewBalance = e.ledger.Adjust(ctx, s.UserID, st.Payout, txNatural, "natural 21")
	return st
}
