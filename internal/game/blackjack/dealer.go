package blackjack

// DealerStandsOn is the total at which the dealer stops drawing. Soft 17 is
// not special-cased.
const DealerStandsOn = 17

// PlayDealer draws to the dealer hand until it reaches DealerStandsOn.
func PlayDealer(hand Hand, shoe *Shoe) Hand {
	for hand.Value() < DealerStandsOn {
		hand = append(hand, shoe.Draw())
	}
	return hand
}

// Outcome is the result of one seat against the dealer.
type Outcome string

const (
	OutcomeWin         Outcome = "win"
	OutcomePush        Outcome = "push"
	OutcomeLose        Outcome = "lose"
	OutcomeBust        Outcome = "bust"
	OutcomeNaturalWin  Outcome = "natural_win"
	OutcomeNaturalPush Outcome = "natural_push"
)

// Compare settles a finished player hand against the finished dealer hand.
func Compare(player, dealer Hand) Outcome {
	pv, dv := player.Value(), dealer.Value()
	switch {
	case pv > Blackjack:
		return OutcomeBust
	case dv > Blackjack || pv > dv:
		return OutcomeWin
	case pv == dv:
		return OutcomePush
	default:
		return OutcomeLose
	}
}

// Payout is the credit owed for outcome on an already debited stake.
func Payout(outcome Outcome, stake int64) int64 {
	switch outcome {
	case OutcomeWin:
		return stake * 2
	case OutcomePush:
		return stake
	case OutcomeNaturalWin:
		return NaturalPayout(stake)
	default:
		return 0
	}
}

// NaturalPayout is 2.5 times the stake, rounded down.
func NaturalPayout(stake int64) int64 {
	return stake + stake*3/2
}
