package blackjack

import (
	"slices"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/game"
)

// Shoe is the ordered stock of one game. Cards are dealt from the top and
// the shoe is never refilled while the game is live.
type Shoe struct {
	cards []Card // top of the shoe is the last element
	rng   game.Rand
}

// ShoeFactory builds the shoe for a new game.
type ShoeFactory func() *Shoe

// NewShoe returns a freshly shuffled 52-card shoe.
func NewShoe(rng game.Rand) *Shoe {
	if rng == nil {
		rng = game.DefaultRand
	}
	cards := NewDeck()
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return &Shoe{cards: cards, rng: rng}
}

// NewShoeFromCards returns a shoe that deals cards in the given order.
func NewShoeFromCards(cards ...Card) *Shoe {
	stock := slices.Clone(cards)
	slices.Reverse(stock)
	return &Shoe{cards: stock, rng: game.DefaultRand}
}

// Remaining returns the number of undealt cards.
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

// Draw deals the top card. 52 cards cover every supported table size; should
// a shoe still run dry, a fresh shuffled deck is opened rather than failing
// the hand.
func (s *Shoe) Draw() Card {
	if len(s.cards) == 0 {
		log.Warn().Msg("Shoe exhausted, opening a fresh deck")
		s.cards = NewShoe(s.rng).cards
	}
	c := s.cards[len(s.cards)-1]
	s.cards = s.cards[:len(s.cards)-1]
	return c
}
