// Package blackjack implements single-player and multiplayer blackjack.
//
// Both variants share cards, hand scoring and the dealer policy. A
// single-player game lives at a table keyed by its player and is driven
// directly by that player's requests. A multiplayer game lives at a table
// keyed by channel and is owned by a session goroutine that runs the lobby,
// collects bets, enforces turn order and times out idle waits.
package blackjack

import "fmt"

// Rank is a card rank. Values 2-10 are pip cards.
type Rank int

const (
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

// Suit is cosmetic only.
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

var suitSymbols = [...]string{"♠", "♥", "♦", "♣"}

func (s Suit) String() string {
	if s < 0 || int(s) >= len(suitSymbols) {
		return "?"
	}
	return suitSymbols[s]
}

func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

// Value is the blackjack value of the rank with aces counted as 11.
func (r Rank) Value() int {
	switch {
	case r == Ace:
		return 11
	case r >= Jack:
		return 10
	default:
		return int(r)
	}
}

// Card is a rank and a suit.
type Card struct {
	Rank Rank
	Suit Suit
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// MarshalText renders the card as e.g. "A♠".
func (c Card) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// NewDeck returns the 52 cards in a fixed order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for s := Spades; s <= Clubs; s++ {
		for r := Rank(2); r <= Ace; r++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}
