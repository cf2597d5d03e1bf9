package service

import (
	"errors"
)

// Player-facing rejection reasons. Callers branch on these with errors.Is
// and translate them to "action rejected" responses; raw store errors are
// never shown to players.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrRoomNotOpen         = errors.New("room is not accepting seats")
	ErrRoomFull            = errors.New("room is full")
	ErrSeatTaken           = errors.New("seat is already taken")
	ErrAlreadySeated       = errors.New("user already holds a seat this round")
	ErrNotSeated           = errors.New("user holds no seat in this room")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWrongVariant        = errors.New("action not supported by this game variant")
	ErrNotYourTurn         = errors.New("wait for opponent to roll")
	ErrAlreadyRolled       = errors.New("already rolled this round")
	ErrDuelNotRunning      = errors.New("duel is not in progress")
	ErrResetTooSoon        = errors.New("room cannot be reset yet")
	ErrNotAuthorized       = errors.New("user is not authorized for this action")
	ErrRoomNotEmpty        = errors.New("room still has active seats")
	ErrInvalidSeat         = errors.New("invalid seat position")
)
