package models

import (
	"time"

	"github.com/google/uuid"
)

// GameKind identifies the game variant a room runs
type GameKind string

const (
	GameKindRoulette GameKind = "roulette"
	GameKindDiceDuel GameKind = "dice_duel"
)

// RoomState represents the lifecycle state of a room
type RoomState string

const (
	RoomStateOpen     RoomState = "open"
	RoomStateLocked   RoomState = "locked"
	RoomStateFinished RoomState = "finished"
	RoomStateArchived RoomState = "archived"
)

// Room represents a wagering pool for one game variant and stake tier
type Room struct {
	ID              int64          `db:"id"`
	PublicID        uuid.UUID      `db:"public_id"`
	Kind            GameKind       `db:"kind"`
	Stake           int64          `db:"stake"`
	Capacity        int            `db:"capacity"`
	State           RoomState      `db:"state"`
	Round           int            `db:"round"`
	AutoLockAt      *time.Time     `db:"auto_lock_at"`
	PreselectedSeat *int           `db:"preselected_seat"`
	SeedHash        string         `db:"seed_hash"`
	SeedSecret      string         `db:"seed_secret" json:"-"`
	Seed            *string        `db:"seed"`
	DiceRound       *DiceDuelRound `db:"dice_round"`
	WinningEntryID  *int64         `db:"winning_entry_id"`
	Prize           *int64         `db:"prize"`
	LockedAt        *time.Time     `db:"locked_at"`
	FinishedAt      *time.Time     `db:"finished_at"`
	DeletedAt       *time.Time     `db:"deleted_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// IsOpen checks if the room is accepting seats
func (r *Room) IsOpen() bool {
	return r.State == RoomStateOpen
}

// IsLocked checks if the room is locked with gameplay in progress
func (r *Room) IsLocked() bool {
	return r.State == RoomStateLocked
}

// IsFinished checks if the room's current round has been resolved
func (r *Room) IsFinished() bool {
	return r.State == RoomStateFinished
}

// IsArchived checks if the room has been soft-deleted
func (r *Room) IsArchived() bool {
	return r.State == RoomStateArchived || r.DeletedAt != nil
}

// DeadlineExpired checks if the auto-lock deadline has passed
func (r *Room) DeadlineExpired(now time.Time) bool {
	if r.AutoLockAt == nil {
		return false
	}
	return now.After(*r.AutoLockAt)
}

// CanReset checks if a self-service reset is allowed: the room must be
// finished and the dwell window must have elapsed so clients could observe
// the result
func (r *Room) CanReset(now time.Time, dwell time.Duration) bool {
	if r.State != RoomStateFinished || r.FinishedAt == nil {
		return false
	}
	return now.After(r.FinishedAt.Add(dwell))
}

// ValidPreselection checks that the preselected winner seat, if set,
// references a seat index within capacity
func (r *Room) ValidPreselection() bool {
	if r.PreselectedSeat == nil {
		return true
	}
	return *r.PreselectedSeat >= 1 && *r.PreselectedSeat <= r.Capacity
}
