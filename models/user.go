package models

import (
	"time"
)

// User represents a player or house-controlled bot account with a wallet balance
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Balance   int64     `db:"balance"`
	IsBot     bool      `db:"is_bot"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
