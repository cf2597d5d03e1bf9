package events

import (
	"context"
	"sync"

	"gamehall/models"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeRoomStateChanged EventType = "room_state_changed"
	EventTypeSeatJoined       EventType = "seat_joined"
	EventTypeSeatLeft         EventType = "seat_left"
	EventTypeDiceRolled       EventType = "dice_rolled"
	EventTypeRoundFinished    EventType = "round_finished"
	EventTypeBalanceChange    EventType = "balance_change"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Channel() string
}

// RoomStateChangedEvent represents a room lifecycle transition
type RoomStateChangedEvent struct {
	RoomID       int64
	RoomPublicID string
	OldState     models.RoomState
	NewState     models.RoomState
	Round        int
}

func (e RoomStateChangedEvent) Type() EventType { return EventTypeRoomStateChanged }
func (e RoomStateChangedEvent) Channel() string { return "room:" + e.RoomPublicID }

// SeatJoinedEvent represents a seat being taken in a room
type SeatJoinedEvent struct {
	RoomID       int64
	RoomPublicID string
	UserID       int64
	Position     int
	Round        int
	IsBot        bool
}

func (e SeatJoinedEvent) Type() EventType { return EventTypeSeatJoined }
func (e SeatJoinedEvent) Channel() string { return "room:" + e.RoomPublicID }

// SeatLeftEvent represents a seat being vacated before resolution
type SeatLeftEvent struct {
	RoomID       int64
	RoomPublicID string
	UserID       int64
	Position     int
	Round        int
}

func (e SeatLeftEvent) Type() EventType { return EventTypeSeatLeft }
func (e SeatLeftEvent) Channel() string { return "room:" + e.RoomPublicID }

// DiceRolledEvent represents a dice duel roll or forfeit being applied
type DiceRolledEvent struct {
	RoomID       int64
	RoomPublicID string
	UserID       int64
	Position     int
	D1           int
	D2           int
	Forfeit      bool
}

func (e DiceRolledEvent) Type() EventType { return EventTypeDiceRolled }
func (e DiceRolledEvent) Channel() string { return "room:" + e.RoomPublicID }

// RoundFinishedEvent represents a room round resolving with a winner
type RoundFinishedEvent struct {
	RoomID       int64
	RoomPublicID string
	Round        int
	WinnerUserID int64
	WinnerSeat   int
	Prize        int64
	Seed         string
	SeedHash     string
	Preselected  bool
}

func (e RoundFinishedEvent) Type() EventType { return EventTypeRoundFinished }
func (e RoundFinishedEvent) Channel() string { return "room:" + e.RoomPublicID }

// BalanceChangeEvent represents a wallet balance change that occurred
type BalanceChangeEvent struct {
	UserID       int64
	OldBalance   int64
	NewBalance   int64
	Kind         models.TransactionKind
	ChangeAmount int64
}

func (e BalanceChangeEvent) Type() EventType { return EventTypeBalanceChange }
func (e BalanceChangeEvent) Channel() string { return "user:balance" }

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range []EventType{
		EventTypeRoomStateChanged,
		EventTypeSeatJoined,
		EventTypeSeatLeft,
		EventTypeDiceRolled,
		EventTypeRoundFinished,
		EventTypeBalanceChange,
	} {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Use background context for event emission to avoid issues with transaction context expiration
	// Events should be processed independently of the transaction lifecycle
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
