package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gamehall/database"
	"gamehall/models"
)

// WalletTransactionRepository implements the WalletTransactionRepository interface
type WalletTransactionRepository struct {
	q queryable
}

// NewWalletTransactionRepository creates a new wallet transaction repository
func NewWalletTransactionRepository(db *database.DB) *WalletTransactionRepository {
	return &WalletTransactionRepository{q: db.Pool}
}

// newWalletTransactionRepositoryWithTx creates a new wallet transaction repository with a transaction
func newWalletTransactionRepositoryWithTx(tx queryable) *WalletTransactionRepository {
	return &WalletTransactionRepository{q: tx}
}

// Record creates a new ledger entry
func (r *WalletTransactionRepository) Record(ctx context.Context, transaction *models.WalletTransaction) error {
	metadataJSON, err := json.Marshal(transaction.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO wallet_transactions
		(user_id, amount, balance_before, balance_after, kind, reason, metadata, room_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		transaction.UserID,
		transaction.Amount,
		transaction.BalanceBefore,
		transaction.BalanceAfter,
		transaction.Kind,
		transaction.Reason,
		metadataJSON,
		transaction.RoomID,
	).Scan(&transaction.ID, &transaction.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record wallet transaction for user %d: %w", transaction.UserID, err)
	}

	return nil
}

// GetByUser returns ledger entries for a user, newest first
func (r *WalletTransactionRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.WalletTransaction, error) {
	query := `
		SELECT id, user_id, amount, balance_before, balance_after, kind, reason, metadata, room_id, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var transactions []*models.WalletTransaction
	for rows.Next() {
		var transaction models.WalletTransaction
		var metadataJSON []byte

		err := rows.Scan(
			&transaction.ID,
			&transaction.UserID,
			&transaction.Amount,
			&transaction.BalanceBefore,
			&transaction.BalanceAfter,
			&transaction.Kind,
			&transaction.Reason,
			&metadataJSON,
			&transaction.RoomID,
			&transaction.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &transaction.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}

		transactions = append(transactions, &transaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallet transactions: %w", err)
	}

	return transactions, nil
}
