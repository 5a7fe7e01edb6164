package model

// Status is the order lifecycle state. Every write that changes it goes
// through a conditional update keyed on the expected current status.
type Status string

const (
	StatusPendingPayment   Status = "pending_payment"
	StatusPaid             Status = "paid"
	StatusQueued           Status = "queued"
	StatusProcessing       Status = "processing"
	StatusSuccess          Status = "success"
	StatusFailed           Status = "failed"
	StatusManualReview     Status = "manual_review"
	StatusManualPending    Status = "manual_pending"
	StatusSuspicious       Status = "suspicious"
	StatusDuplicatePayment Status = "duplicate_payment"
	StatusExpired          Status = "expired"
	StatusInvalidUID       Status = "invalid_uid"
	StatusRefunded         Status = "refunded"
)

// allowedTransitions is the single source of truth for lifecycle legality.
// success, expired and refunded are terminal: they appear only on the right.
var allowedTransitions = map[Status][]Status{
	StatusPendingPayment: {StatusPaid, StatusSuspicious, StatusDuplicatePayment, StatusManualReview, StatusExpired},
	StatusPaid:           {StatusQueued, StatusManualPending, StatusSuccess},
	StatusQueued:         {StatusProcessing, StatusManualReview, StatusSuccess},
	StatusProcessing:     {StatusSuccess, StatusQueued, StatusInvalidUID, StatusManualReview, StatusFailed},
	StatusFailed:         {StatusQueued, StatusManualReview, StatusSuccess},
	StatusManualReview:   {StatusPaid, StatusQueued, StatusSuspicious, StatusDuplicatePayment, StatusSuccess, StatusRefunded},
	StatusManualPending:  {StatusQueued, StatusSuccess},
	StatusSuspicious:     {StatusPaid, StatusManualReview, StatusRefunded, StatusSuccess},
	StatusDuplicatePayment: {StatusManualReview, StatusRefunded},
	// User may correct the UID, which re-arms the order.
	StatusInvalidUID: {StatusPendingPayment, StatusQueued, StatusManualReview, StatusSuccess},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status may never be left.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusExpired || s == StatusRefunded
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusQueued, StatusProcessing,
		StatusSuccess, StatusFailed, StatusManualReview, StatusManualPending,
		StatusSuspicious, StatusDuplicatePayment, StatusExpired,
		StatusInvalidUID, StatusRefunded:
		return true
	}
	return false
}
