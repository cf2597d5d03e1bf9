package service

import (
	"context"
	"time"

	"gamehall/events"
	"gamehall/models"

	"github.com/google/uuid"
)

// RoomRepository defines the interface for room data access
type RoomRepository interface {
	// GetByID retrieves a room by its internal ID
	GetByID(ctx context.Context, id int64) (*models.Room, error)

	// GetByPublicID retrieves a room by its client-facing UUID
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Room, error)

	// GetByIDForUpdate retrieves a room taking a row-level lock, serializing
	// concurrent resolution attempts for the same room
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Room, error)

	// Create creates a new room
	Create(ctx context.Context, room *models.Room) error

	// Update persists all mutable room fields
	Update(ctx context.Context, room *models.Room) error

	// TransitionState conditionally moves a room from one state to another.
	// Returns false when another caller transitioned it first.
	TransitionState(ctx context.Context, id int64, from, to models.RoomState, at time.Time) (bool, error)

	// ClaimAutoLock atomically clears an expired deadline. Only the caller
	// that gets true may perform the deferred maintenance.
	ClaimAutoLock(ctx context.Context, id int64) (bool, error)

	// RestoreAutoLock sets a fresh deadline so an unfinished maintenance
	// pass is retried later
	RestoreAutoLock(ctx context.Context, id int64, at time.Time) error

	// SetAutoLock sets the deadline only if none is pending
	SetAutoLock(ctx context.Context, id int64, at time.Time) (bool, error)

	// ResetForNextRound moves a room back to open with round+1, clearing all
	// round-scoped fields and committing to a fresh seed pair. Guarded by the
	// expected current state so concurrent resets collapse to one.
	ResetForNextRound(ctx context.Context, id int64, from models.RoomState, seedSecret, seedHash string) (bool, error)

	// SoftDelete marks an empty room archived
	SoftDelete(ctx context.Context, id int64, at time.Time) (bool, error)

	// ListRequiringMaintenance returns rooms with expired deadlines or
	// turn-based rooms in play, for the optional external poller
	ListRequiringMaintenance(ctx context.Context, now time.Time, limit int) ([]*models.Room, error)
}

// EntryRepository defines the interface for seat entry data access
type EntryRepository interface {
	// GetActiveByRoom returns the entries of the room's given round ordered
	// by seat position
	GetActiveByRoom(ctx context.Context, roomID int64, round int) ([]*models.Entry, error)

	// Get returns a user's entry for a room round, or nil
	Get(ctx context.Context, roomID, userID int64, round int) (*models.Entry, error)

	// Create creates a single entry
	Create(ctx context.Context, entry *models.Entry) error

	// CreateBatch creates several entries at once (bot fill)
	CreateBatch(ctx context.Context, entries []*models.Entry) error

	// Delete removes an entry before resolution
	Delete(ctx context.Context, id int64) (bool, error)

	// CountActive returns the number of seats taken for a room round
	CountActive(ctx context.Context, roomID int64, round int) (int, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// Create creates a new user with the initial balance
	Create(ctx context.Context, username string, initialBalance int64, isBot bool) (*models.User, error)

	// AddBalance adds to a user's balance atomically
	AddBalance(ctx context.Context, id int64, amount int64) error

	// DeductBalance deducts from a user's balance atomically, returning
	// ErrInsufficientBalance when the funds are not there
	DeductBalance(ctx context.Context, id int64, amount int64) error

	// FindAvailableBots returns up to limit bot accounts that can cover the
	// stake and are not already seated in the given room round
	FindAvailableBots(ctx context.Context, roomID int64, round int, stake int64, limit int) ([]*models.User, error)

	// CountBots returns the size of the bot pool
	CountBots(ctx context.Context) (int, error)
}

// WalletTransactionRepository defines the interface for the append-only ledger
type WalletTransactionRepository interface {
	// Record creates a new ledger entry
	Record(ctx context.Context, tx *models.WalletTransaction) error

	// GetByUser returns ledger entries for a user, newest first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.WalletTransaction, error)
}

// GameResultRepository defines the interface for finished-round records
type GameResultRepository interface {
	// Create records an immutable finished-round result
	Create(ctx context.Context, result *models.GameResult) error

	// GetByRoom returns results for a room, newest first
	GetByRoom(ctx context.Context, roomID int64, limit int) ([]*models.GameResult, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	RoomRepository() RoomRepository
	EntryRepository() EntryRepository
	UserRepository() UserRepository
	WalletTransactionRepository() WalletTransactionRepository
	GameResultRepository() GameResultRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// TurnAction is a dice duel turn input
type TurnAction string

const (
	TurnActionRoll    TurnAction = "roll"
	TurnActionTimeout TurnAction = "timeout"
	TurnActionForfeit TurnAction = "forfeit"
)

// TurnOutcome describes what applying a turn did to the duel state
type TurnOutcome struct {
	Seat          int
	Roll          *models.DiceRoll
	Forfeit       bool
	RoundResolved bool
	Draw          bool
	LoserSeat     int
	Damage        int64
	Finished      bool
	WinnerSeat    int
}

// GameVariant is the per-game rule module plugged into the room state
// machine and the maintenance scheduler
type GameVariant interface {
	// Kind identifies the variant
	Kind() models.GameKind

	// RequiredCapacity returns the number of seats a room of this variant holds
	RequiredCapacity() int

	// AutoLockDeadline computes the deadline after which maintenance forces
	// the room forward, or nil for variants maintained on every access
	AutoLockDeadline(room *models.Room, now time.Time) *time.Time

	// SelectWinner picks the winning entry, honoring an explicit preselected
	// seat override. The second result reports whether the override was taken.
	SelectWinner(room *models.Room, entries []*models.Entry) (*models.Entry, bool, error)

	// Prize computes the amount credited to the winner
	Prize(room *models.Room) int64

	// ApplyTurn advances turn state for turn-based variants; others return
	// ErrWrongVariant
	ApplyTurn(room *models.Room, entries []*models.Entry, seat int, action TurnAction, now time.Time) (*TurnOutcome, error)
}

// RoomService defines the operations exposed to API routes and pollers
type RoomService interface {
	// CreateRoom creates a new open room with a committed seed pair
	CreateRoom(ctx context.Context, kind models.GameKind, stake int64) (*models.Room, error)

	// GetRoom returns a room by public ID after running any due maintenance
	GetRoom(ctx context.Context, publicID uuid.UUID) (*models.Room, error)

	// EnsureMaintained advances a stalled room if its timers or turn logic
	// require it. Idempotent and safe to call on every read.
	EnsureMaintained(ctx context.Context, roomID int64) (*models.Room, error)

	// Join seats a user in a room, debiting the stake
	Join(ctx context.Context, roomID, userID int64, seatPreference int) (*models.Entry, error)

	// Roll performs a dice duel roll for the acting user
	Roll(ctx context.Context, roomID, userID int64) (*models.DiceDuelRound, error)

	// Forfeit concedes the current duel round, taking the usual damage
	Forfeit(ctx context.Context, roomID, userID int64) (*models.DiceDuelRound, error)

	// Leave vacates a seat; before lock the stake is refunded, mid-duel the
	// remaining pot is forfeited to the opponent and the room reset
	Leave(ctx context.Context, roomID, userID int64) error

	// Reset moves a finished room back to open for the next round. Admins may
	// force-reset from any state, refunding active stakes.
	Reset(ctx context.Context, roomID, actorID int64) (*models.Room, error)

	// Archive soft-deletes an empty room
	Archive(ctx context.Context, roomID, actorID int64) error
}

// WalletService defines the credit/debit surface consumed by collaborators
// such as payment and shop flows
type WalletService interface {
	// Credit adds funds to a user wallet and records a ledger entry
	Credit(ctx context.Context, userID, amount int64, kind models.TransactionKind, reason string, meta map[string]any) error

	// Debit removes funds from a user wallet, rejecting on insufficient balance
	Debit(ctx context.Context, userID, amount int64, kind models.TransactionKind, reason string, meta map[string]any) error
}

// UserService defines the interface for user operations
type UserService interface {
	// CreateUser creates a user with the configured starting balance
	CreateUser(ctx context.Context, username string) (*models.User, error)

	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// EnsureBots tops the bot pool up to the configured size, creating
	// funded bot accounts as needed
	EnsureBots(ctx context.Context) error
}
