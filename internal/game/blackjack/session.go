package blackjack

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/bet"
	"casino-bot/internal/game"
)

type phase int

const (
	phaseLobby phase = iota
	phaseBetting
	phasePlaying
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseLobby:
		return "lobby"
	case phaseBetting:
		return "betting"
	case phasePlaying:
		return "playing"
	default:
		return "done"
	}
}

type op int

const (
	opJoin op = iota
	opBegin
	opBet
	opHit
	opStand
	opDouble
	opState
)

type request struct {
	op     op
	userID int64
	raw    string
	reply  chan reply
}

type reply struct {
	res *Result
	err error
}

// session is the single goroutine that owns one multiplayer table. Every
// request addressed to the table and every timeout is handled in order by run.
type session struct {
	e    *Engine
	key  TableKey
	host int64

	phase   phase
	players []int64 // join order
	bets    map[int64]int64
	betIdx  int
	game    *MultiplayerGame
	settled []Settlement // naturals paid at the deal

	reqs   chan request
	done   chan struct{}
	timer  *time.Timer
	timerC <-chan time.Time
}

func newSession(e *Engine, channelID, host int64) *session {
	return &session{
		e:       e,
		key:     MultiTable(channelID),
		host:    host,
		players: []int64{host},
		bets:    make(map[int64]int64),
		reqs:    make(chan request),
		done:    make(chan struct{}),
	}
}

// Open starts a lobby at a channel with host seated.
func (e *Engine) Open(_ context.Context, channelID, host int64) (*Result, error) {
	e.mu.Lock()
	if _, busy := e.sessions[channelID]; busy {
		e.mu.Unlock()
		return nil, game.ErrTableOccupied
	}
	s := newSession(e, channelID, host)
	e.sessions[channelID] = s
	e.wg.Add(1)
	e.mu.Unlock()

	go s.run(e.ctx)

	log.Info().Int64("channel_id", channelID).Int64("host", host).Msg("Blackjack lobby opened")
	return &Result{Kind: KindLobbyOpened, Players: []int64{host}}, nil
}

// Join seats userID in the lobby at channelID.
func (e *Engine) Join(ctx context.Context, channelID, userID int64) (*Result, error) {
	return e.send(ctx, channelID, opJoin, userID, "")
}

// Begin closes the lobby early. Any caller may begin.
func (e *Engine) Begin(ctx context.Context, channelID, userID int64) (*Result, error) {
	return e.send(ctx, channelID, opBegin, userID, "")
}

// PlaceBet answers the bet prompt of userID. An invalid amount cancels the
// whole session.
func (e *Engine) PlaceBet(ctx context.Context, channelID, userID int64, rawAmount string) (*Result, error) {
	return e.send(ctx, channelID, opBet, userID, rawAmount)
}

func (e *Engine) send(ctx context.Context, channelID int64, o op, userID int64, raw string) (*Result, error) {
	e.mu.Lock()
	s := e.sessions[channelID]
	e.mu.Unlock()
	if s == nil {
		return nil, game.ErrNoActiveGame
	}

	req := request{op: o, userID: userID, raw: raw, reply: make(chan reply, 1)}
	select {
	case s.reqs <- req:
	case <-s.done:
		return nil, game.ErrNoActiveGame
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Every accepted request is answered.
	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *session) run(ctx context.Context) {
	defer s.e.wg.Done()
	defer close(s.done)
	defer s.stopTimer()

	s.publish(game.EventLobbyOpened, s.host, map[string]any{
		"host":        s.host,
		"max_players": s.e.cfg.MaxPlayers,
		"timeout":     s.e.cfg.LobbyTimeout.Seconds(),
	})
	s.wait(s.e.cfg.LobbyTimeout)

	for s.phase != phaseDone {
		select {
		case req := <-s.reqs:
			res, err := s.handle(ctx, req)
			req.reply <- reply{res: res, err: err}
		case <-s.timerC:
			s.timerC = nil
			s.timeout(ctx)
		case <-ctx.Done():
			s.abort(context.Background(), "shutdown")
		}
	}
}

func (s *session) handle(ctx context.Context, req request) (*Result, error) {
	switch req.op {
	case opJoin:
		return s.join(req.userID)
	case opBegin:
		return s.begin()
	case opBet:
		return s.placeBet(ctx, req.userID, req.raw)
	case opHit, opStand, opDouble:
		return s.act(ctx, req.op, req.userID)
	case opState:
		return s.state(), nil
	}
	return nil, fmt.Errorf("unknown session op %d", req.op)
}

func (s *session) join(userID int64) (*Result, error) {
	if s.phase != phaseLobby {
		return nil, ErrWrongPhase
	}
	if slices.Contains(s.players, userID) {
		return nil, ErrAlreadyJoined
	}
	if len(s.players) >= s.e.cfg.MaxPlayers {
		return nil, ErrLobbyFull
	}
	s.players = append(s.players, userID)
	s.publish(game.EventPlayerJoined, userID, map[string]any{"players": slices.Clone(s.players)})
	return &Result{Kind: KindJoined, Players: slices.Clone(s.players)}, nil
}

func (s *session) begin() (*Result, error) {
	if s.phase != phaseLobby {
		return nil, ErrWrongPhase
	}
	if len(s.players) < s.e.cfg.MinPlayers {
		return nil, ErrNotEnoughPlayers
	}
	s.startBetting()
	return &Result{Kind: KindBetting, Players: slices.Clone(s.players)}, nil
}

// startBetting closes the lobby and prompts the first player for a bet.
func (s *session) startBetting() {
	s.phase = phaseBetting
	s.betIdx = 0
	s.prompt()
}

func (s *session) prompt() {
	userID := s.players[s.betIdx]
	s.publish(game.EventBetPrompt, userID, map[string]any{"timeout": s.e.cfg.BetTimeout.Seconds()})
	s.wait(s.e.cfg.BetTimeout)
}

func (s *session) placeBet(ctx context.Context, userID int64, raw string) (*Result, error) {
	if s.phase != phaseBetting {
		return nil, ErrWrongPhase
	}
	if !slices.Contains(s.players, userID) {
		return nil, ErrNotJoined
	}
	if s.players[s.betIdx] != userID {
		return nil, game.ErrNotYourTurn
	}

	amount, check, err := bet.Parse(raw, s.e.ledger.Balance(userID), s.e.cfg.Limits)
	if err != nil {
		// A bet of zero aborts the table for everyone.
		s.abort(ctx, "invalid_bet")
		return nil, fmt.Errorf("%w: %w", ErrSessionCancelled, err)
	}

	s.bets[userID] = amount
	if s.betIdx < len(s.players)-1 {
		s.betIdx++
		s.prompt()
		return &Result{Kind: KindBetPlaced, Players: slices.Clone(s.players), Overdraft: check.Overdraft}, nil
	}

	// Every bet is checked again against the balance it is debited from.
	unlock := s.e.locks.LockMany(s.players...)
	defer unlock()
	for _, id := range s.players {
		if _, err := bet.ValidateLimit(s.bets[id], s.e.ledger.Balance(id), s.e.cfg.Limits); err != nil {
			s.abort(ctx, "bet_invalidated")
			return nil, fmt.Errorf("%w: bet of %d: %w", ErrSessionCancelled, id, err)
		}
	}
	s.betIdx++
	res := s.startPlay(ctx)
	res.Overdraft = check.Overdraft
	return res, nil
}

// startPlay deals, settles naturals and hands the turn to the first player.
func (s *session) startPlay(ctx context.Context) *Result {
	s.phase = phasePlaying
	g := &MultiplayerGame{round: newRound(s.key, s.e.newShoe(), s.e.now())}
	for _, id := range s.players {
		g.seats = append(g.seats, &Seat{UserID: id, Bet: s.bets[id], State: StatePlaying})
	}
	s.game = g
	g.deal()

	for _, seat := range g.seats {
		if seat.Hand.IsNatural() {
			s.settled = append(s.settled, s.e.settleNatural(ctx, &g.round, seat))
			continue
		}
		s.e.ledger.Adjust(ctx, seat.UserID, -seat.Bet, txBet, fmt.Sprintf("game %s", g.id))
	}

	log.Info().Str("table", s.key.String()).Int("players", len(g.seats)).Msg("Blackjack multiplayer dealt")
	s.publish(game.EventCardsDealt, 0, g.Snapshot())

	g.startTurns()
	if g.current() == nil {
		return s.finish(ctx, KindSettled)
	}
	s.startTurn()
	return &Result{Kind: KindDealt, State: g.Snapshot(), Settlements: slices.Clone(s.settled)}
}

func (s *session) startTurn() {
	seat := s.game.current()
	s.publish(game.EventTurnStarted, seat.UserID, s.game.Snapshot())
	s.wait(s.e.cfg.TurnTimeout)
}

func (s *session) act(ctx context.Context, o op, userID int64) (*Result, error) {
	if s.phase != phasePlaying {
		return nil, ErrWrongPhase
	}
	g := s.game
	seat := g.seat(userID)
	if seat == nil {
		return nil, ErrNotJoined
	}
	if cur := g.current(); cur == nil || cur.UserID != userID {
		return nil, game.ErrNotYourTurn
	}

	switch o {
	case opHit:
		c := g.hit(seat)
		if seat.State == StateBusted {
			return s.afterTurn(ctx, KindBusted, &c), nil
		}
		s.publish(game.EventHandUpdated, userID, g.Snapshot())
		s.wait(s.e.cfg.TurnTimeout)
		return &Result{Kind: KindHandUpdated, State: g.Snapshot(), Card: &c}, nil

	case opStand:
		seat.State = StateStanding
		return s.afterTurn(ctx, KindTurnAdvanced, nil), nil

	default:
		if !g.doubleDownAllowed {
			return nil, ErrDoubleDownNotAllowed
		}
		s.e.locks.Lock(userID)
		if s.e.ledger.Balance(userID) < seat.Bet {
			s.e.locks.Unlock(userID)
			return nil, game.Invalid(ErrCannotAffordDouble)
		}
		s.e.ledger.Adjust(ctx, userID, -seat.Bet, txDouble, fmt.Sprintf("game %s", g.id))
		s.e.locks.Unlock(userID)

		c := g.doubleDown(seat)
		kind := KindHandUpdated
		if seat.State == StateBusted {
			kind = KindBusted
		}
		return s.afterTurn(ctx, kind, &c), nil
	}
}

// afterTurn passes the turn on and finishes the game when nobody is left.
func (s *session) afterTurn(ctx context.Context, kind ResultKind, c *Card) *Result {
	g := s.game
	s.publish(game.EventHandUpdated, g.current().UserID, g.Snapshot())
	if g.advance() {
		s.startTurn()
		return &Result{Kind: kind, State: g.Snapshot(), Card: c}
	}
	if kind != KindBusted {
		kind = KindSettled
	}
	res := s.finish(ctx, kind)
	res.Card = c
	return res
}

// finish plays the dealer if anyone is still standing, pays out and removes
// the table.
func (s *session) finish(ctx context.Context, kind ResultKind) *Result {
	g := s.game
	standing := false
	for _, seat := range g.seats {
		if seat.State == StateStanding {
			standing = true
			break
		}
	}
	if standing {
		g.playDealer()
		s.publish(game.EventDealerPlayed, 0, g.Snapshot())
	} else {
		g.dealerPlayed = true
	}

	settlements := s.e.settle(ctx, &g.round, s.settled)
	s.close()
	s.publish(game.EventSettled, 0, map[string]any{
		"state":       g.Snapshot(),
		"settlements": settlements,
	})
	return &Result{Kind: kind, State: g.Snapshot(), Settlements: settlements}
}

func (s *session) timeout(ctx context.Context) {
	switch s.phase {
	case phaseLobby:
		if len(s.players) >= s.e.cfg.MinPlayers {
			s.startBetting()
			return
		}
		log.Info().Str("table", s.key.String()).Int("players", len(s.players)).Msg("Blackjack lobby expired")
		s.close()
		s.publish(game.EventLobbyCancelled, 0, map[string]any{"players": slices.Clone(s.players)})

	case phaseBetting:
		s.abort(ctx, "bet_timeout")

	case phasePlaying:
		seat := s.game.current()
		if seat == nil {
			return
		}
		log.Debug().Str("table", s.key.String()).Int64("user_id", seat.UserID).Msg("Blackjack turn timed out")
		s.publish(game.EventTurnTimeout, seat.UserID, nil)
		seat.State = StateStanding
		s.afterTurn(ctx, KindTurnAdvanced, nil)
	}
}

// abort cancels the session. Before the deal nothing was debited; after it,
// unsettled stakes are returned.
func (s *session) abort(ctx context.Context, reason string) {
	if s.phase == phasePlaying {
		for _, seat := range s.game.seats {
			if seat.State == StatePlaying || seat.State == StateStanding {
				s.e.ledger.Adjust(ctx, seat.UserID, seat.Bet, txPayout, "refund: "+reason)
			}
		}
	}
	var userID int64
	if s.phase == phaseBetting {
		userID = s.players[s.betIdx]
	}
	log.Info().Str("table", s.key.String()).Str("reason", reason).Msg("Blackjack session cancelled")
	s.close()
	s.publish(game.EventSessionCancelled, userID, map[string]any{"reason": reason})
}

// close removes the table from the engine and ends run.
func (s *session) close() {
	s.phase = phaseDone
	s.stopTimer()
	s.e.mu.Lock()
	if s.e.sessions[s.key.ID] == s {
		delete(s.e.sessions, s.key.ID)
	}
	s.e.mu.Unlock()
}

func (s *session) state() *Result {
	if s.game == nil {
		return &Result{Kind: KindJoined, Players: slices.Clone(s.players)}
	}
	return &Result{Kind: KindHandUpdated, State: s.game.Snapshot(), Players: slices.Clone(s.players)}
}

// wait arms the timeout of the current wait, replacing any previous one.
func (s *session) wait(d time.Duration) {
	s.stopTimer()
	s.timer = time.NewTimer(d)
	s.timerC = s.timer.C
}

func (s *session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerC = nil
}

func (s *session) publish(eventType string, userID int64, data any) {
	s.e.publish(s.key, eventType, userID, data)
}
