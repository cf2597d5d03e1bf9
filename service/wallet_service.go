package service

import (
	"context"
	"fmt"

	"gamehall/models"
)

type walletService struct {
	uowFactory UnitOfWorkFactory
}

// NewWalletService creates a new wallet service
func NewWalletService(uowFactory UnitOfWorkFactory) WalletService {
	return &walletService{uowFactory: uowFactory}
}

// Credit adds funds to a user wallet and records a ledger entry
func (s *walletService) Credit(ctx context.Context, userID, amount int64, kind models.TransactionKind, reason string, meta map[string]any) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := uow.UserRepository().AddBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, err)
	}

	if err := RecordTransaction(ctx, uow, &models.WalletTransaction{
		UserID:        userID,
		Amount:        amount,
		BalanceBefore: user.Balance,
		BalanceAfter:  user.Balance + amount,
		Kind:          kind,
		Reason:        reason,
		Metadata:      meta,
	}); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Debit removes funds from a user wallet, rejecting on insufficient balance
func (s *walletService) Debit(ctx context.Context, userID, amount int64, kind models.TransactionKind, reason string, meta map[string]any) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := uow.UserRepository().DeductBalance(ctx, userID, amount); err != nil {
		return err
	}

	if err := RecordTransaction(ctx, uow, &models.WalletTransaction{
		UserID:        userID,
		Amount:        -amount,
		BalanceBefore: user.Balance,
		BalanceAfter:  user.Balance - amount,
		Kind:          kind,
		Reason:        reason,
		Metadata:      meta,
	}); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
