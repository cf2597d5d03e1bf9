package repository

import (
	"context"
	"fmt"

	"gamehall/database"
	"gamehall/models"
	"gamehall/service"
	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, balance, is_bot, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.IsBot,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	return &user, nil
}

// Create creates a new user with the initial balance
func (r *UserRepository) Create(ctx context.Context, username string, initialBalance int64, isBot bool) (*models.User, error) {
	query := `
		INSERT INTO users (username, balance, is_bot)
		VALUES ($1, $2, $3)
		RETURNING id, username, balance, is_bot, created_at, updated_at
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, username, initialBalance, isBot).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.IsBot,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}

	return &user, nil
}

// AddBalance adds to a user's balance atomically
func (r *UserRepository) AddBalance(ctx context.Context, id int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to add balance for user %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", id)
	}

	return nil
}

// DeductBalance deducts from a user's balance atomically, failing if
// insufficient funds. The balance guard lives in the WHERE clause so two
// concurrent debits cannot both pass a read-then-write check.
func (r *UserRepository) DeductBalance(ctx context.Context, id int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to deduct balance for user %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		user, err := r.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user %d not found", id)
		}
		return fmt.Errorf("%w: have %d, need %d", service.ErrInsufficientBalance, user.Balance, amount)
	}

	return nil
}

// FindAvailableBots returns up to limit bot accounts that can cover the
// stake and are not already seated in the given room round. Bots are a
// shared pool and may sit in several rooms at once; only same-room
// duplicates are excluded.
func (r *UserRepository) FindAvailableBots(ctx context.Context, roomID int64, round int, stake int64, limit int) ([]*models.User, error) {
	query := `
		SELECT id, username, balance, is_bot, created_at, updated_at
		FROM users
		WHERE is_bot
		  AND balance >= $3
		  AND id NOT IN (SELECT user_id FROM entries WHERE room_id = $1 AND round = $2)
		ORDER BY id
		LIMIT $4
	`

	rows, err := r.q.Query(ctx, query, roomID, round, stake, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find bots for room %d: %w", roomID, err)
	}
	defer rows.Close()

	var bots []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Balance,
			&user.IsBot,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bot user: %w", err)
		}
		bots = append(bots, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bot users: %w", err)
	}

	return bots, nil
}

// CountBots returns the size of the bot pool
func (r *UserRepository) CountBots(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_bot`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bots: %w", err)
	}
	return count, nil
}
