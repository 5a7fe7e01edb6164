package model

import "time"

// Notification is one piece of payment evidence (a parsed bank/wallet SMS).
// Fingerprint is unique for all time; once used it is immutable.
type Notification struct {
	ID               string     `json:"id"`
	RawMessage       string     `json:"raw_message"`
	Fingerprint      string     `json:"fingerprint"`
	AmountPaisa      *int64     `json:"amount_paisa,omitempty"`
	Last3Digits      string     `json:"last3digits,omitempty"`
	RRN              string     `json:"rrn,omitempty"`
	Method           string     `json:"method,omitempty"`
	Remark           string     `json:"remark,omitempty"`
	Used             bool       `json:"used"`
	MatchedOrderID   string     `json:"matched_order_id,omitempty"`
	Suspicious       bool       `json:"suspicious"`
	SuspiciousReason string     `json:"suspicious_reason,omitempty"`
	ParsedAt         time.Time  `json:"parsed_at"`
	MatchedAt        *time.Time `json:"matched_at,omitempty"`
}
