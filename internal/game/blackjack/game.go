package blackjack

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Errors specific to blackjack. Turn and table errors live in package game.
var (
	ErrDoubleDownNotAllowed = errors.New("double down is only allowed as the first action of a turn")
	ErrCannotAffordDouble   = errors.New("balance does not cover doubling the bet")
	ErrLobbyFull            = errors.New("the table is full")
	ErrAlreadyJoined        = errors.New("already joined this table")
	ErrNotJoined            = errors.New("not seated at this table")
	ErrWrongPhase           = errors.New("the table is not accepting that action now")
	ErrNotEnoughPlayers     = errors.New("not enough players to start")
	ErrSessionCancelled     = errors.New("the session was cancelled")
)

// Mode selects the game variant of a table.
type Mode string

const (
	Single Mode = "single"
	Multi  Mode = "multi"
)

// ParseMode accepts "single", "multi" or empty (single).
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "", Single:
		return Single, nil
	case Multi:
		return Multi, nil
	}
	return "", fmt.Errorf("unknown blackjack mode %q", raw)
}

// TableKey identifies a table: the player for single-player games, the
// channel for multiplayer games.
type TableKey struct {
	Mode Mode
	ID   int64
}

// SingleTable is the table of a single-player game.
func SingleTable(userID int64) TableKey { return TableKey{Mode: Single, ID: userID} }

// MultiTable is the table of a multiplayer game in a channel.
func MultiTable(channelID int64) TableKey { return TableKey{Mode: Multi, ID: channelID} }

func (k TableKey) String() string {
	return fmt.Sprintf("%s:%d", k.Mode, k.ID)
}

// SeatState is the state of one participant's hand.
type SeatState string

const (
	StatePlaying  SeatState = "playing"
	StateStanding SeatState = "standing"
	StateBusted   SeatState = "busted"
	// StateSettled marks a natural that was paid at the deal.
	StateSettled SeatState = "settled"
)

// Terminal reports whether the seat takes no further turns.
func (s SeatState) Terminal() bool {
	return s != StatePlaying
}

// Seat is one participant of a game.
type Seat struct {
	UserID      int64
	Hand        Hand
	Bet         int64
	State       SeatState
	DoubledDown bool
}

// Game is a live round. It is either a *SinglePlayerGame or a *MultiplayerGame.
type Game interface {
	Key() TableKey
	Snapshot() *Snapshot
	isGame()
}

// round is the state shared by both variants.
type round struct {
	id     string
	key    TableKey
	shoe   *Shoe
	dealer Hand
	seats  []*Seat
	// turn indexes seats; len(seats) means the dealer.
	turn int
	// doubleDownAllowed is true until the current seat's first action.
	doubleDownAllowed bool
	dealerPlayed      bool
	lastAction        time.Time
}

func newRound(key TableKey, shoe *Shoe, now time.Time) round {
	return round{
		id:         uuid.NewString(),
		key:        key,
		shoe:       shoe,
		lastAction: now,
	}
}

// Key returns the table key.
func (r *round) Key() TableKey { return r.key }

func (r *round) isGame() {}

// deal gives two cards to every seat, in seat order, then two to the dealer.
func (r *round) deal() {
	for i := 0; i < 2; i++ {
		for _, s := range r.seats {
			s.Hand = append(s.Hand, r.shoe.Draw())
		}
	}
	r.dealer = append(r.dealer, r.shoe.Draw(), r.shoe.Draw())
}

func (r *round) seat(userID int64) *Seat {
	for _, s := range r.seats {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

// current returns the seat whose turn it is, or nil on the dealer's turn.
func (r *round) current() *Seat {
	if r.turn < len(r.seats) {
		return r.seats[r.turn]
	}
	return nil
}

// startTurns moves to the first seat still playing.
func (r *round) startTurns() {
	r.turn = -1
	r.advance()
}

// advance moves to the next seat in join order that is still playing.
// It reports whether such a seat exists.
func (r *round) advance() bool {
	for r.turn++; r.turn < len(r.seats); r.turn++ {
		if !r.seats[r.turn].State.Terminal() {
			r.doubleDownAllowed = true
			return true
		}
	}
	r.doubleDownAllowed = false
	return false
}

// hit draws one card to s and marks it busted if over 21.
func (r *round) hit(s *Seat) Card {
	c := r.shoe.Draw()
	s.Hand = append(s.Hand, c)
	r.doubleDownAllowed = false
	if s.Hand.IsBust() {
		s.State = StateBusted
	}
	return c
}

// doubleDown doubles the bet and draws exactly one card. The caller debits
// the additional stake.
func (r *round) doubleDown(s *Seat) Card {
	s.Bet *= 2
	s.DoubledDown = true
	c := r.hit(s)
	if s.State == StatePlaying {
		s.State = StateStanding
	}
	return c
}

func (r *round) playDealer() {
	r.dealer = PlayDealer(r.dealer, r.shoe)
	r.dealerPlayed = true
}

// Snapshot returns the visible state. The dealer's hole card stays hidden
// until the dealer has played.
func (r *round) Snapshot() *Snapshot {
	snap := &Snapshot{
		GameID:            r.id,
		Table:             r.key.String(),
		Mode:              r.key.Mode,
		DoubleDownAllowed: r.doubleDownAllowed,
		DealerRevealed:    r.dealerPlayed,
	}
	if r.dealerPlayed {
		snap.Dealer = append(Hand(nil), r.dealer...)
		snap.DealerValue = r.dealer.Value()
	} else if len(r.dealer) > 0 {
		snap.Dealer = Hand{r.dealer[0]}
		snap.DealerValue = snap.Dealer.Value()
	}
	if s := r.current(); s != nil {
		snap.CurrentTurn = s.UserID
	}
	for _, s := range r.seats {
		snap.Seats = append(snap.Seats, SeatView{
			UserID:      s.UserID,
			Cards:       append(Hand(nil), s.Hand...),
			Value:       s.Hand.Value(),
			Bet:         s.Bet,
			State:       s.State,
			DoubledDown: s.DoubledDown,
		})
	}
	return snap
}

// SinglePlayerGame is a one-seat game keyed by its player. A double down ends
// the player's turn and the dealer plays at once.
type SinglePlayerGame struct {
	round
}

// Player returns the only seat.
func (g *SinglePlayerGame) Player() *Seat {
	return g.seats[0]
}

var (
	_ Game = (*SinglePlayerGame)(nil)
	_ Game = (*MultiplayerGame)(nil)
)

// MultiplayerGame is a game keyed by channel. A double down marks the seat
// standing and passes the turn to the next player in join order.
type MultiplayerGame struct {
	round
}

// Snapshot is the visible state of a game.
type Snapshot struct {
	GameID            string     `json:"game_id"`
	Table             string     `json:"table"`
	Mode              Mode       `json:"mode"`
	Dealer            Hand       `json:"dealer"`
	DealerValue       int        `json:"dealer_value"`
	DealerRevealed    bool       `json:"dealer_revealed"`
	Seats             []SeatView `json:"seats"`
	CurrentTurn       int64      `json:"current_turn,omitempty"`
	DoubleDownAllowed bool       `json:"double_down_allowed"`
}

// SeatView is the visible state of one seat.
type SeatView struct {
	UserID      int64     `json:"user_id"`
	Cards       Hand      `json:"cards"`
	Value       int       `json:"value"`
	Bet         int64     `json:"bet"`
	State       SeatState `json:"state"`
	DoubledDown bool      `json:"doubled_down,omitempty"`
}

// Seat returns the view of one user's seat.
func (s *Snapshot) Seat(userID int64) (SeatView, bool) {
	for _, v := range s.Seats {
		if v.UserID == userID {
			return v, true
		}
	}
	return SeatView{}, false
}

// ResultKind names what an action did.
type ResultKind string

const (
	KindLobbyOpened    ResultKind = "lobby_opened"
	KindJoined         ResultKind = "joined"
	KindBetting        ResultKind = "betting"
	KindBetPlaced      ResultKind = "bet_placed"
	KindDealt          ResultKind = "dealt"
	KindNaturalOutcome ResultKind = "natural_outcome"
	KindHandUpdated    ResultKind = "hand_updated"
	KindBusted         ResultKind = "busted"
	KindTurnAdvanced   ResultKind = "turn_advanced"
	KindSettled        ResultKind = "settled"
)

// Settlement is the money movement of one seat at the end of a game.
type Settlement struct {
	UserID     int64   `json:"user_id"`
	Bet        int64   `json:"bet"`
	Outcome    Outcome `json:"outcome"`
	Payout     int64   `json:"payout"`
	NetDelta   int64   `json:"net_delta"`
	NewBalance int64   `json:"new_balance"`
}

// Result is returned by every blackjack action.
type Result struct {
	Kind        ResultKind   `json:"kind"`
	State       *Snapshot    `json:"state,omitempty"`
	Card        *Card        `json:"card,omitempty"`
	Settlements []Settlement `json:"settlements,omitempty"`
	Players     []int64      `json:"players,omitempty"`
	Overdraft   bool         `json:"overdraft,omitempty"`
}

// Settlement returns the settlement of one user, if any.
func (r *Result) Settlement(userID int64) (Settlement, bool) {
	for _, s := range r.Settlements {
		if s.UserID == userID {
			return s, true
		}
	}
	return Settlement{}, false
}
