package model

import (
	"time"
)

const (
	OrderTypeProduct    = "product_topup"
	OrderTypeWalletLoad = "wallet_load"
)

// Order is one purchase or wallet top-up request. All monetary fields are
// in paisa. payment_required = locked_price - wallet_used, never negative.
type Order struct {
	ID                string     `json:"id"`
	OrderType         string     `json:"order_type"`
	UserID            string     `json:"user_id"`
	PlayerUID         string     `json:"player_uid,omitempty"`
	PackageID         string     `json:"package_id,omitempty"`
	PackageName       string     `json:"package_name,omitempty"`
	LoadAmountPaisa   int64      `json:"load_amount_paisa,omitempty"`
	LockedPricePaisa  int64      `json:"locked_price_paisa"`
	WalletUsedPaisa   int64      `json:"wallet_used_paisa"`
	PaymentRequired   int64      `json:"payment_required_paisa"`
	PaymentAmount     int64      `json:"payment_amount_paisa"`
	PaymentReceived   int64      `json:"payment_received_paisa"`
	OverpaymentPaisa  int64      `json:"overpayment_paisa"`
	PaymentLast3      string     `json:"payment_last3digits,omitempty"`
	PaymentMethod     string     `json:"payment_method,omitempty"`
	PaymentRemark     string     `json:"payment_remark,omitempty"`
	PaymentRRN        string     `json:"payment_rrn,omitempty"`
	RawMessage        string     `json:"raw_message,omitempty"`
	SMSFingerprint    string     `json:"sms_fingerprint,omitempty"`
	Status            Status     `json:"status"`
	AutomationState   string     `json:"automation_state,omitempty"`
	SuspiciousReason  string     `json:"suspicious_reason,omitempty"`
	RetryCount        int        `json:"retry_count"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	QueuedAt          *time.Time `json:"queued_at,omitempty"`
	ProcessingStarted *time.Time `json:"processing_started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ExpiredAt         *time.Time `json:"expired_at,omitempty"`
}
