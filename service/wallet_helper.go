package service

import (
	"context"
	"fmt"

	"gamehall/events"
	"gamehall/models"
)

// RecordTransaction records a wallet ledger entry and emits a balance change
// event. This is the single entry point for all balance changes in the
// system; the event is flushed only after the surrounding transaction commits.
func RecordTransaction(ctx context.Context, uow UnitOfWork, transaction *models.WalletTransaction) error {
	if err := uow.WalletTransactionRepository().Record(ctx, transaction); err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:       transaction.UserID,
		OldBalance:   transaction.BalanceBefore,
		NewBalance:   transaction.BalanceAfter,
		Kind:         transaction.Kind,
		ChangeAmount: transaction.Amount,
	})

	return nil
}
