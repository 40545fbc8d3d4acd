package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/game"
	"casino-bot/internal/ledger"
	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
)

// Transfer-related errors.
var (
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("invalid amount: must be positive")
	ErrSelfTransfer      = errors.New("cannot transfer to self")
)

// GiveResult is a completed gift.
type GiveResult struct {
	ToID            int64 `json:"to_id"`
	Amount          int64 `json:"amount"`
	NewBalance      int64 `json:"new_balance"`
	ReceiverBalance int64 `json:"receiver_balance"`
}

// TransferService handles user-to-user gifts. Unlike the games, a gift never
// overdraws the sender.
type TransferService struct {
	ledger   *ledger.Ledger
	userLock *lock.UserLock
}

// NewTransferService creates a new TransferService instance.
func NewTransferService(ledger *ledger.Ledger, userLock *lock.UserLock) *TransferService {
	return &TransferService{
		ledger:   ledger,
		userLock: userLock,
	}
}

// ValidateTransfer checks the parts of a gift that do not depend on balances.
func ValidateTransfer(fromID, toID, amount int64) error {
	if amount <= 0 {
		return game.Invalid(ErrInvalidAmount)
	}
	if fromID == toID {
		return game.Invalid(ErrSelfTransfer)
	}
	return nil
}

// GiveCoins moves amount from fromID to toID. Both accounts are locked for
// the balance check and the transfer.
func (s *TransferService) GiveCoins(ctx context.Context, fromID, toID, amount int64) (*GiveResult, error) {
	if err := ValidateTransfer(fromID, toID, amount); err != nil {
		return nil, err
	}

	unlock := s.userLock.LockMany(fromID, toID)
	defer unlock()

	if balance := s.ledger.Balance(fromID); balance < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, balance, amount)
	}

	desc := fmt.Sprintf("gift from %d to %d", fromID, toID)
	fromBalance, toBalance := s.ledger.Transfer(ctx, fromID, toID, amount, model.TxTypeGive, model.TxTypeGive, desc)

	log.Info().
		Int64("from_id", fromID).
		Int64("to_id", toID).
		Int64("amount", amount).
		Msg("Coins given")

	return &GiveResult{
		ToID:            toID,
		Amount:          amount,
		NewBalance:      fromBalance,
		ReceiverBalance: toBalance,
	}, nil
}
