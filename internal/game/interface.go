// Package game defines the contract shared by the economy engines: the ledger
// and randomness they consume, and the action request / result descriptors
// exchanged with the command dispatcher.
package game

import (
	"context"
	"math/rand"
	"time"
)

// Ledger is the subset of the balance store the engines mutate.
// Adjust applies delta (which may be negative) and returns the new balance.
// Transfer moves amount from one account to another with both sides applied
// before any other ledger operation can observe either.
type Ledger interface {
	Balance(userID int64) int64
	Adjust(ctx context.Context, userID int64, delta int64, txType, description string) int64
	Transfer(ctx context.Context, fromID, toID int64, amount int64, fromType, toType, description string) (fromBalance, toBalance int64)
}

// Rand is a source of non-cryptographic uniform randomness.
// *math/rand.Rand satisfies it, but is not safe for concurrent use; see DefaultRand.
type Rand interface {
	Intn(n int) int
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

func (globalRand) Intn(n int) int                     { return rand.Intn(n) }
func (globalRand) Float64() float64                   { return rand.Float64() }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultRand uses the process-wide math/rand source, which is goroutine safe.
var DefaultRand Rand = globalRand{}

// Action is a structured request from the command dispatcher.
type Action struct {
	UserID    int64          `json:"user_id"`
	Type      string         `json:"type"`
	ChannelID int64          `json:"channel_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	// Pool holds the ids of eligible non-bot members in the caller's scope,
	// supplied fresh for every call that needs it.
	Pool []int64   `json:"pool,omitempty"`
	Now  time.Time `json:"-"`
}

// Notice codes attached to results for the collaborator to render.
const (
	NoticeOverdraft  = "overdraft_warning" // bet exceeds a non-negative balance
	NoticeStreak     = "streak_bonus"      // daily reward included the streak bonus
	NoticeTurnPassed = "turn_passed"       // the acting player's turn ended
)

// Result is the structured outcome of an action.
type Result struct {
	Type    string   `json:"type"`
	Data    any      `json:"data,omitempty"`
	Notices []string `json:"notices,omitempty"`
}

// Handler executes one action type.
type Handler interface {
	// Type returns the action type this handler serves (e.g. "roulette").
	Type() string
	// Handle executes the action and returns its result.
	Handle(ctx context.Context, action Action) (*Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	Action string
	Fn     func(ctx context.Context, action Action) (*Result, error)
}

// Type returns the action type.
func (h HandlerFunc) Type() string { return h.Action }

// Handle calls Fn.
func (h HandlerFunc) Handle(ctx context.Context, action Action) (*Result, error) {
	return h.Fn(ctx, action)
}
