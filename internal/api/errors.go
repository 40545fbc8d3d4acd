package api

import (
	"errors"
	"net/http"

	"casino-bot/internal/game"
	"casino-bot/internal/game/blackjack"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/service"
)

var conflictErrors = []error{
	game.ErrNotYourTurn,
	game.ErrNoActiveGame,
	game.ErrTableOccupied,
	blackjack.ErrWrongPhase,
	blackjack.ErrDoubleDownNotAllowed,
	blackjack.ErrLobbyFull,
	blackjack.ErrAlreadyJoined,
	blackjack.ErrNotJoined,
	blackjack.ErrNotEnoughPlayers,
	blackjack.ErrSessionCancelled,
}

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	switch {
	case game.IsValidation(err), errors.Is(err, game.ErrUnknownAction), errors.Is(err, game.ErrMissingParam):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientFunds), errors.Is(err, blackjack.ErrCannotAffordDouble):
		return http.StatusPaymentRequired
	case errors.Is(err, game.ErrAlreadyClaimedToday), errors.Is(err, game.ErrAlreadyAttemptedToday):
		return http.StatusTooManyRequests
	case errors.Is(err, game.ErrNoEligibleTargets):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}
