package models

import (
	"time"
)

// TransactionKind represents the type of wallet balance change
type TransactionKind string

const (
	TransactionKindDeposit       TransactionKind = "deposit"
	TransactionKindWithdraw      TransactionKind = "withdraw"
	TransactionKindWinCredit     TransactionKind = "win_credit"
	TransactionKindRefund        TransactionKind = "refund"
	TransactionKindShopPurchase  TransactionKind = "shop_purchase"
	TransactionKindReferralBonus TransactionKind = "referral_bonus"
	TransactionKindJoinDebit     TransactionKind = "join_debit"
)

// WalletTransaction is an append-only ledger entry for a user balance change
type WalletTransaction struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	Amount        int64           `db:"amount"`
	BalanceBefore int64           `db:"balance_before"`
	BalanceAfter  int64           `db:"balance_after"`
	Kind          TransactionKind `db:"kind"`
	Reason        string          `db:"reason"`
	Metadata      map[string]any  `db:"metadata"`
	RoomID        *int64          `db:"room_id"`
	CreatedAt     time.Time       `db:"created_at"`
}
