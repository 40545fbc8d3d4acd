// Package model defines the data models for the casino economy.
package model

import "time"

// UserID is the opaque, stable identifier the host platform assigns to a user.
type UserID = int64

// Account is a user's balance record. Balances may be negative.
type Account struct {
	UserID    UserID    `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction represents a balance change record in the journal.
// Journal rows are audit only; balances are never rebuilt from them.
type Transaction struct {
	ID          int64     `db:"id" json:"-"`
	Ref         string    `db:"ref" json:"ref"`
	UserID      UserID    `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Type        string    `db:"type" json:"type"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BalanceEntry is one row of a balance listing.
type BalanceEntry struct {
	UserID  UserID `json:"user_id"`
	Balance int64  `json:"balance"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeDaily            = "daily"             // Daily reward claim
	TxTypeGive             = "give"              // User-to-user gift
	TxTypeRouletteBet      = "roulette_bet"      // Roulette stake debit
	TxTypeRouletteWin      = "roulette_win"      // Roulette payout
	TxTypeBlackjackBet     = "blackjack_bet"     // Blackjack stake debit
	TxTypeBlackjackDouble  = "blackjack_double"  // Additional stake on double down
	TxTypeBlackjackPayout  = "blackjack_payout"  // Blackjack win or push credit
	TxTypeBlackjackNatural = "blackjack_natural" // Natural 21 payout
	TxTypeRob              = "rob"               // Robbery - robber gains coins
	TxTypeRobbed           = "robbed"            // Robbery - victim loses coins
	TxTypeCounterAttack    = "counterattack"     // Failed robbery - robber pays the victim
	TxTypeCounterAttacked  = "counterattacked"   // Failed robbery - victim is paid by the robber
)

// GameTransactionTypes returns the transaction types produced by games of chance.
func GameTransactionTypes() []string {
	return []string{
		TxTypeRouletteBet, TxTypeRouletteWin,
		TxTypeBlackjackBet, TxTypeBlackjackDouble, TxTypeBlackjackPayout, TxTypeBlackjackNatural,
		TxTypeRob, TxTypeRobbed, TxTypeCounterAttack, TxTypeCounterAttacked,
	}
}
