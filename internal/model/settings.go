package model

// Settings is the singleton runtime configuration. It is lazily created
// with these defaults on first read and cached in process memory; any write
// invalidates the cache.
type Settings struct {
	MaxOverpaymentRatio     float64 `json:"max_overpayment_ratio"`
	MaxAutoCreditPaisa      int64   `json:"max_auto_credit_paisa"`
	OrderExpiryHours        int     `json:"order_expiry_hours"`
	SMSSuspiciousMinutes    int     `json:"sms_suspicious_minutes"`
	StuckProcessingMinutes  int     `json:"stuck_processing_minutes"`
	MaxFulfillRetries       int     `json:"max_fulfill_retries"`
	BreakerFailureThreshold int     `json:"breaker_failure_threshold"`
	BreakerWindowMinutes    int     `json:"breaker_window_minutes"`
	AutoMatchEnabled        bool    `json:"auto_match_enabled"`
	AutoFulfillEnabled      bool    `json:"auto_fulfill_enabled"`
}

// DefaultSettings mirror the limits the platform launched with.
func DefaultSettings() Settings {
	return Settings{
		MaxOverpaymentRatio:     3.0,
		MaxAutoCreditPaisa:      100000, // ₹1000
		OrderExpiryHours:        24,
		SMSSuspiciousMinutes:    60,
		StuckProcessingMinutes:  10,
		MaxFulfillRetries:       3,
		BreakerFailureThreshold: 5,
		BreakerWindowMinutes:    30,
		AutoMatchEnabled:        true,
		AutoFulfillEnabled:      true,
	}
}
