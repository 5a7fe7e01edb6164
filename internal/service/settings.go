package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"nexstore/internal/model"
	"nexstore/internal/storage"
)

var ErrInvalidSetting = errors.New("invalid setting value")

// SettingsService serves the runtime-tunable thresholds. Reads come from a
// process-memory cache; every write saves first, then invalidates, so a
// stale read lasts at most until the next Get but a write is never lost.
type SettingsService struct {
	store storage.SettingsStore

	mu     sync.RWMutex
	cached *model.Settings
}

func NewSettingsService(store storage.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

func (s *SettingsService) Get(ctx context.Context) (model.Settings, error) {
	s.mu.RLock()
	if s.cached != nil {
		cp := *s.cached
		s.mu.RUnlock()
		return cp, nil
	}
	s.mu.RUnlock()

	st, err := s.store.Load(ctx)
	if err != nil {
		return model.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	s.cached = st
	s.mu.Unlock()
	return *st, nil
}

// Invalidate drops the cached copy; the next Get reloads from the store.
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// SettingsPatch is a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	MaxOverpaymentRatio     *float64 `json:"max_overpayment_ratio"`
	MaxAutoCreditPaisa      *int64   `json:"max_auto_credit_paisa"`
	OrderExpiryHours        *int     `json:"order_expiry_hours"`
	SMSSuspiciousMinutes    *int     `json:"sms_suspicious_minutes"`
	StuckProcessingMinutes  *int     `json:"stuck_processing_minutes"`
	MaxFulfillRetries       *int     `json:"max_fulfill_retries"`
	BreakerFailureThreshold *int     `json:"breaker_failure_threshold"`
	BreakerWindowMinutes    *int     `json:"breaker_window_minutes"`
	AutoMatchEnabled        *bool    `json:"auto_match_enabled"`
	AutoFulfillEnabled      *bool    `json:"auto_fulfill_enabled"`
}

func (s *SettingsService) Update(ctx context.Context, p SettingsPatch) (model.Settings, error) {
	if p.MaxOverpaymentRatio != nil && *p.MaxOverpaymentRatio < 1 {
		return model.Settings{}, fmt.Errorf("%w: max_overpayment_ratio must be >= 1", ErrInvalidSetting)
	}
	if p.MaxAutoCreditPaisa != nil && *p.MaxAutoCreditPaisa < 0 {
		return model.Settings{}, fmt.Errorf("%w: max_auto_credit_paisa must be >= 0", ErrInvalidSetting)
	}
	for name, v := range map[string]*int{
		"order_expiry_hours":        p.OrderExpiryHours,
		"sms_suspicious_minutes":    p.SMSSuspiciousMinutes,
		"stuck_processing_minutes":  p.StuckProcessingMinutes,
		"max_fulfill_retries":       p.MaxFulfillRetries,
		"breaker_failure_threshold": p.BreakerFailureThreshold,
		"breaker_window_minutes":    p.BreakerWindowMinutes,
	} {
		if v != nil && *v < 1 {
			return model.Settings{}, fmt.Errorf("%w: %s must be >= 1", ErrInvalidSetting, name)
		}
	}

	st, err := s.store.Load(ctx)
	if err != nil {
		return model.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if p.MaxOverpaymentRatio != nil {
		st.MaxOverpaymentRatio = *p.MaxOverpaymentRatio
	}
	if p.MaxAutoCreditPaisa != nil {
		st.MaxAutoCreditPaisa = *p.MaxAutoCreditPaisa
	}
	if p.OrderExpiryHours != nil {
		st.OrderExpiryHours = *p.OrderExpiryHours
	}
	if p.SMSSuspiciousMinutes != nil {
		st.SMSSuspiciousMinutes = *p.SMSSuspiciousMinutes
	}
	if p.StuckProcessingMinutes != nil {
		st.StuckProcessingMinutes = *p.StuckProcessingMinutes
	}
	if p.MaxFulfillRetries != nil {
		st.MaxFulfillRetries = *p.MaxFulfillRetries
	}
	if p.BreakerFailureThreshold != nil {
		st.BreakerFailureThreshold = *p.BreakerFailureThreshold
	}
	if p.BreakerWindowMinutes != nil {
		st.BreakerWindowMinutes = *p.BreakerWindowMinutes
	}
	if p.AutoMatchEnabled != nil {
		st.AutoMatchEnabled = *p.AutoMatchEnabled
	}
	if p.AutoFulfillEnabled != nil {
		st.AutoFulfillEnabled = *p.AutoFulfillEnabled
	}

	if err := s.store.Save(ctx, st); err != nil {
		return model.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.Invalidate()
	slog.Info("settings updated")
	return *st, nil
}

// DisableAutoFulfill is the circuit breaker's kill switch. The write is
// durable, so a restart after a trip stays tripped.
func (s *SettingsService) DisableAutoFulfill(ctx context.Context) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	st.AutoFulfillEnabled = false
	if err := s.store.Save(ctx, st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.Invalidate()
	return nil
}
