package testutil

import (
	"time"

	"gamehall/fair"
	"gamehall/models"

	"github.com/google/uuid"
)

// CreateTestRoom builds an open room with a fresh seed commitment. The
// caller persists it through the room repository.
func CreateTestRoom(kind models.GameKind, stake int64, capacity int) *models.Room {
	seed, hash, err := fair.CommitSeed()
	if err != nil {
		panic(err)
	}
	return &models.Room{
		PublicID:   uuid.New(),
		Kind:       kind,
		Stake:      stake,
		Capacity:   capacity,
		State:      models.RoomStateOpen,
		Round:      1,
		SeedHash:   hash,
		SeedSecret: seed,
	}
}

// CreateTestRoomWithDeadline builds an open room whose fill window expires
// at the given time.
func CreateTestRoomWithDeadline(kind models.GameKind, stake int64, capacity int, deadline time.Time) *models.Room {
	room := CreateTestRoom(kind, stake, capacity)
	room.AutoLockAt = &deadline
	return room
}

// CreateTestEntry builds a seat entry for a room round.
func CreateTestEntry(roomID, userID int64, seat, round int) *models.Entry {
	return &models.Entry{
		RoomID:   roomID,
		UserID:   userID,
		Position: seat,
		Round:    round,
	}
}

// CreateTestTransaction builds a join-debit ledger entry with before/after
// balances consistent with the amount.
func CreateTestTransaction(userID int64, roomID *int64, amount int64) *models.WalletTransaction {
	return &models.WalletTransaction{
		UserID:        userID,
		Amount:        -amount,
		BalanceBefore: 100000,
		BalanceAfter:  100000 - amount,
		Kind:          models.TransactionKindJoinDebit,
		Reason:        "seat stake",
		Metadata:      map[string]any{"seat": 1},
		RoomID:        roomID,
	}
}
