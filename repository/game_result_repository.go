package repository

import (
	"context"
	"fmt"

	"gamehall/database"
	"gamehall/models"
)

// GameResultRepository implements the GameResultRepository interface
type GameResultRepository struct {
	q queryable
}

// NewGameResultRepository creates a new game result repository
func NewGameResultRepository(db *database.DB) *GameResultRepository {
	return &GameResultRepository{q: db.Pool}
}

// newGameResultRepositoryWithTx creates a new game result repository with a transaction
func newGameResultRepositoryWithTx(tx queryable) *GameResultRepository {
	return &GameResultRepository{q: tx}
}

// Create records an immutable finished-round result. The unique
// (room, round) constraint makes double resolution of the same round a
// store-level error rather than a silent duplicate payout.
func (r *GameResultRepository) Create(ctx context.Context, result *models.GameResult) error {
	query := `
		INSERT INTO game_results (room_id, round, winner_user_id, winning_entry_id, prize, seed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		result.RoomID,
		result.Round,
		result.WinnerUserID,
		result.WinningEntryID,
		result.Prize,
		result.Seed,
	).Scan(&result.ID, &result.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create game result for room %d round %d: %w", result.RoomID, result.Round, err)
	}

	return nil
}

// GetByRoom returns results for a room, newest first
func (r *GameResultRepository) GetByRoom(ctx context.Context, roomID int64, limit int) ([]*models.GameResult, error) {
	query := `
		SELECT id, room_id, round, winner_user_id, winning_entry_id, prize, seed, created_at
		FROM game_results
		WHERE room_id = $1
		ORDER BY round DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get game results for room %d: %w", roomID, err)
	}
	defer rows.Close()

	var results []*models.GameResult
	for rows.Next() {
		var result models.GameResult
		err := rows.Scan(
			&result.ID,
			&result.RoomID,
			&result.Round,
			&result.WinnerUserID,
			&result.WinningEntryID,
			&result.Prize,
			&result.Seed,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game result: %w", err)
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game results: %w", err)
	}

	return results, nil
}
