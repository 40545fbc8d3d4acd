package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types emitted by long-running sessions.
const (
	EventLobbyOpened      = "lobby_opened"
	EventPlayerJoined     = "player_joined"
	EventLobbyCancelled   = "lobby_cancelled"
	EventBetPrompt        = "bet_prompt"
	EventSessionCancelled = "session_cancelled"
	EventCardsDealt       = "cards_dealt"
	EventTurnStarted      = "turn_started"
	EventTurnTimeout      = "turn_timeout"
	EventHandUpdated      = "hand_updated"
	EventDealerPlayed     = "dealer_played"
	EventSettled          = "settled"
)

// Event is something a session wants the collaborator to render without a
// request having asked for it (prompts, timeouts, settlement).
type Event struct {
	Type      string    `json:"type"`
	Table     string    `json:"table"`
	UserID    int64     `json:"user_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives events. Publish must not block the session for long.
type Notifier interface {
	Publish(evt Event)
}

// LogNotifier logs every event at debug level.
type LogNotifier struct{}

// Publish logs the event.
func (LogNotifier) Publish(evt Event) {
	log.Debug().
		Str("event", evt.Type).
		Str("table", evt.Table).
		Int64("user_id", evt.UserID).
		Msg("Table event")
}

// Fanout publishes to several notifiers.
type Fanout []Notifier

// Publish forwards evt to every notifier.
func (f Fanout) Publish(evt Event) {
	for _, n := range f {
		n.Publish(evt)
	}
}

// Bus is an in-process publish/subscribe notifier with named event
// subscriptions. Handlers run synchronously in Publish order.
type Bus struct {
	handlers map[string][]func(Event)
	all      []func(Event)
	mu       sync.RWMutex
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]func(Event))}
}

// Subscribe registers fn for one event type, or for every event when eventType is "".
func (b *Bus) Subscribe(eventType string, fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if eventType == "" {
		b.all = append(b.all, fn)
		return
	}
	b.handlers[eventType] = append(b.handlers[eventType], fn)
}

// Publish delivers evt to matching subscribers.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	hs := append(append([]func(Event){}, b.handlers[evt.Type]...), b.all...)
	b.mu.RUnlock()

	for _, h := range hs {
		h(evt)
	}
}
