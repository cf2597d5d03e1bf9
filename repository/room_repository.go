package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gamehall/database"
	"gamehall/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RoomRepository implements the RoomRepository interface
type RoomRepository struct {
	q queryable
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *database.DB) *RoomRepository {
	return &RoomRepository{q: db.Pool}
}

// newRoomRepositoryWithTx creates a new room repository with a transaction
func newRoomRepositoryWithTx(tx queryable) *RoomRepository {
	return &RoomRepository{q: tx}
}

const roomColumns = `
	id, public_id, kind, stake, capacity, state, round,
	auto_lock_at, preselected_seat, seed_hash, seed_secret, seed, dice_round,
	winning_entry_id, prize, locked_at, finished_at, deleted_at,
	created_at, updated_at
`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var room models.Room
	var diceRoundJSON []byte

	err := row.Scan(
		&room.ID,
		&room.PublicID,
		&room.Kind,
		&room.Stake,
		&room.Capacity,
		&room.State,
		&room.Round,
		&room.AutoLockAt,
		&room.PreselectedSeat,
		&room.SeedHash,
		&room.SeedSecret,
		&room.Seed,
		&diceRoundJSON,
		&room.WinningEntryID,
		&room.Prize,
		&room.LockedAt,
		&room.FinishedAt,
		&room.DeletedAt,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(diceRoundJSON) > 0 {
		room.DiceRound = &models.DiceDuelRound{}
		if err := json.Unmarshal(diceRoundJSON, room.DiceRound); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dice round state: %w", err)
		}
	}

	return &room, nil
}

func marshalDiceRound(round *models.DiceDuelRound) ([]byte, error) {
	if round == nil {
		return nil, nil
	}
	data, err := json.Marshal(round)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dice round state: %w", err)
	}
	return data, nil
}

// GetByID retrieves a room by its internal ID
func (r *RoomRepository) GetByID(ctx context.Context, id int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1 AND deleted_at IS NULL`

	room, err := scanRoom(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %d: %w", id, err)
	}

	return room, nil
}

// GetByPublicID retrieves a room by its client-facing UUID
func (r *RoomRepository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE public_id = $1 AND deleted_at IS NULL`

	room, err := scanRoom(r.q.QueryRow(ctx, query, publicID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", publicID, err)
	}

	return room, nil
}

// GetByIDForUpdate retrieves a room taking a row-level lock. Concurrent
// resolution attempts for the same room queue here; losers observe the
// already-transitioned state when they get the lock.
func (r *RoomRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	room, err := scanRoom(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock room %d: %w", id, err)
	}

	return room, nil
}

// Create creates a new room
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	query := `
		INSERT INTO rooms (public_id, kind, stake, capacity, state, round, auto_lock_at, seed_hash, seed_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		room.PublicID,
		room.Kind,
		room.Stake,
		room.Capacity,
		room.State,
		room.Round,
		room.AutoLockAt,
		room.SeedHash,
		room.SeedSecret,
	).Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

// Update persists all mutable room fields
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	diceRoundJSON, err := marshalDiceRound(room.DiceRound)
	if err != nil {
		return err
	}

	query := `
		UPDATE rooms
		SET state = $1, round = $2, auto_lock_at = $3, preselected_seat = $4,
		    seed_hash = $5, seed_secret = $6, seed = $7, dice_round = $8,
		    winning_entry_id = $9, prize = $10, locked_at = $11, finished_at = $12,
		    updated_at = NOW()
		WHERE id = $13 AND deleted_at IS NULL
	`

	result, err := r.q.Exec(ctx, query,
		room.State,
		room.Round,
		room.AutoLockAt,
		room.PreselectedSeat,
		room.SeedHash,
		room.SeedSecret,
		room.Seed,
		diceRoundJSON,
		room.WinningEntryID,
		room.Prize,
		room.LockedAt,
		room.FinishedAt,
		room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room %d: %w", room.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("room %d not found", room.ID)
	}

	return nil
}

// TransitionState conditionally moves a room from one state to another
func (r *RoomRepository) TransitionState(ctx context.Context, id int64, from, to models.RoomState, at time.Time) (bool, error) {
	query := `
		UPDATE rooms
		SET state = $1,
		    locked_at = CASE WHEN $1 = 'locked' THEN $2 ELSE locked_at END,
		    updated_at = NOW()
		WHERE id = $3 AND state = $4 AND deleted_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, to, at, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition room %d from %s to %s: %w", id, from, to, err)
	}

	return result.RowsAffected() > 0, nil
}

// ClaimAutoLock atomically clears an expired deadline so exactly one of many
// concurrent maintenance triggers wins the right to act
func (r *RoomRepository) ClaimAutoLock(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE rooms
		SET auto_lock_at = NULL, updated_at = NOW()
		WHERE id = $1 AND auto_lock_at IS NOT NULL AND deleted_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim auto-lock for room %d: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

// RestoreAutoLock sets a fresh deadline after a claimed maintenance pass
// could not complete, so the room is retried instead of stuck
func (r *RoomRepository) RestoreAutoLock(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE rooms
		SET auto_lock_at = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to restore auto-lock for room %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("room %d not found", id)
	}

	return nil
}

// SetAutoLock sets the deadline only if none is pending
func (r *RoomRepository) SetAutoLock(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE rooms
		SET auto_lock_at = $1, updated_at = NOW()
		WHERE id = $2 AND auto_lock_at IS NULL AND state = 'open' AND deleted_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to set auto-lock for room %d: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

// ResetForNextRound moves a room back to open with round+1, clearing all
// round-scoped fields and committing to a fresh seed pair
func (r *RoomRepository) ResetForNextRound(ctx context.Context, id int64, from models.RoomState, seedSecret, seedHash string) (bool, error) {
	query := `
		UPDATE rooms
		SET state = 'open', round = round + 1,
		    auto_lock_at = NULL, preselected_seat = NULL,
		    seed_hash = $1, seed_secret = $2, seed = NULL, dice_round = NULL,
		    winning_entry_id = NULL, prize = NULL, locked_at = NULL, finished_at = NULL,
		    updated_at = NOW()
		WHERE id = $3 AND state = $4 AND deleted_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, seedHash, seedSecret, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to reset room %d: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

// SoftDelete marks an empty room archived
func (r *RoomRepository) SoftDelete(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE rooms
		SET state = 'archived', deleted_at = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL AND state IN ('open', 'locked')
	`

	result, err := r.q.Exec(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to archive room %d: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

// ListRequiringMaintenance returns rooms with expired deadlines or dice
// duel rooms in play, for the optional external poller
func (r *RoomRepository) ListRequiringMaintenance(ctx context.Context, now time.Time, limit int) ([]*models.Room, error) {
	query := `SELECT ` + roomColumns + `
		FROM rooms
		WHERE deleted_at IS NULL
		  AND (
		      (auto_lock_at IS NOT NULL AND auto_lock_at < $1)
		      OR (kind = 'dice_duel' AND state = 'locked')
		  )
		ORDER BY auto_lock_at NULLS LAST
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms requiring maintenance: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}

	return rooms, nil
}
