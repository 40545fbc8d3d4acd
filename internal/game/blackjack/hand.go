package blackjack

// Blackjack is the best hand value.
const Blackjack = 21

// Hand is the ordered cards of one participant.
type Hand []Card

// score returns the hand total and the number of aces still counted as 11.
// Aces start at 11 and are recounted as 1, one at a time, while the total is
// over 21.
func (h Hand) score() (total, softAces int) {
	for _, c := range h {
		total += c.Rank.Value()
		if c.Rank == Ace {
			softAces++
		}
	}
	for total > Blackjack && softAces > 0 {
		total -= 10
		softAces--
	}
	return total, softAces
}

// Value scores the hand.
func (h Hand) Value() int {
	total, _ := h.score()
	return total
}

// Soft reports whether an ace is still counted as 11.
func (h Hand) Soft() bool {
	_, soft := h.score()
	return soft > 0
}

// IsBust reports whether the hand is over 21.
func (h Hand) IsBust() bool {
	return h.Value() > Blackjack
}

// IsNatural reports a two-card 21.
func (h Hand) IsNatural() bool {
	return len(h) == 2 && h.Value() == Blackjack
}
