package model

import "time"

// Transaction types. Debits carry a negative amount.
const (
	TxCredit            = "credit"
	TxOrderPayment      = "order_payment"
	TxRefund            = "refund"
	TxOverpaymentCredit = "overpayment_credit"
	TxWalletLoad        = "wallet_load"
	TxAdminAdjustment   = "admin_adjustment"
)

// WalletTransaction is one immutable ledger entry.
// balance_after = balance_before + amount, always.
type WalletTransaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	AmountPaisa   int64     `json:"amount_paisa"`
	OrderID       string    `json:"order_id,omitempty"`
	BalanceBefore int64     `json:"balance_before_paisa"`
	BalanceAfter  int64     `json:"balance_after_paisa"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}
