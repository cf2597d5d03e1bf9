package repository

import (
	"context"
	"fmt"

	"gamehall/database"
	"gamehall/models"
	"github.com/jackc/pgx/v5"
)

// EntryRepository implements the EntryRepository interface
type EntryRepository struct {
	q queryable
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *database.DB) *EntryRepository {
	return &EntryRepository{q: db.Pool}
}

// newEntryRepositoryWithTx creates a new entry repository with a transaction
func newEntryRepositoryWithTx(tx queryable) *EntryRepository {
	return &EntryRepository{q: tx}
}

// GetActiveByRoom returns the entries of the room's given round ordered by seat
func (r *EntryRepository) GetActiveByRoom(ctx context.Context, roomID int64, round int) ([]*models.Entry, error) {
	query := `
		SELECT id, room_id, user_id, seat, round, is_bot, created_at
		FROM entries
		WHERE room_id = $1 AND round = $2
		ORDER BY seat
	`

	rows, err := r.q.Query(ctx, query, roomID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries for room %d round %d: %w", roomID, round, err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		var entry models.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.RoomID,
			&entry.UserID,
			&entry.Position,
			&entry.Round,
			&entry.IsBot,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// Get returns a user's entry for a room round, or nil
func (r *EntryRepository) Get(ctx context.Context, roomID, userID int64, round int) (*models.Entry, error) {
	query := `
		SELECT id, room_id, user_id, seat, round, is_bot, created_at
		FROM entries
		WHERE room_id = $1 AND user_id = $2 AND round = $3
	`

	var entry models.Entry
	err := r.q.QueryRow(ctx, query, roomID, userID, round).Scan(
		&entry.ID,
		&entry.RoomID,
		&entry.UserID,
		&entry.Position,
		&entry.Round,
		&entry.IsBot,
		&entry.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry for user %d in room %d: %w", userID, roomID, err)
	}

	return &entry, nil
}

// Create creates a single entry
func (r *EntryRepository) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (room_id, user_id, seat, round, is_bot)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.RoomID,
		entry.UserID,
		entry.Position,
		entry.Round,
		entry.IsBot,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create entry for user %d in room %d: %w", entry.UserID, entry.RoomID, err)
	}

	return nil
}

// CreateBatch creates several entries at once (bot fill)
func (r *EntryRepository) CreateBatch(ctx context.Context, entries []*models.Entry) error {
	for _, entry := range entries {
		if err := r.Create(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an entry before resolution
func (r *EntryRepository) Delete(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM entries WHERE id = $1`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry %d: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

// CountActive returns the number of seats taken for a room round
func (r *EntryRepository) CountActive(ctx context.Context, roomID int64, round int) (int, error) {
	query := `SELECT COUNT(*) FROM entries WHERE room_id = $1 AND round = $2`

	var count int
	if err := r.q.QueryRow(ctx, query, roomID, round).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries for room %d round %d: %w", roomID, round, err)
	}

	return count, nil
}
