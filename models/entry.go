package models

import (
	"time"
)

// Entry represents a player's occupied seat in a room for a specific round
type Entry struct {
	ID        int64     `db:"id"`
	RoomID    int64     `db:"room_id"`
	UserID    int64     `db:"user_id"`
	Position  int       `db:"position"`
	Round     int       `db:"round"`
	IsBot     bool      `db:"is_bot"`
	CreatedAt time.Time `db:"created_at"`
}
