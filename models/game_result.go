package models

import (
	"time"
)

// GameResult is an immutable record of a finished round. Created once per
// resolution, never mutated.
type GameResult struct {
	ID             int64     `db:"id"`
	RoomID         int64     `db:"room_id"`
	Round          int       `db:"round"`
	WinnerUserID   int64     `db:"winner_user_id"`
	WinningEntryID int64     `db:"winning_entry_id"`
	Prize          int64     `db:"prize"`
	Seed           string    `db:"seed"`
	CreatedAt      time.Time `db:"created_at"`
}
