package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nexstore/internal/model"
	"nexstore/internal/storage"
)

func (s *Catalog) GetActive(ctx context.Context, id string) (*model.Package, error) {
	var p model.Package
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, amount, price_paisa, active, sort_order, created_at
		 FROM packages WHERE id = $1 AND active = TRUE`, id,
	).Scan(&p.ID, &p.Name, &p.Type, &p.Amount, &p.PricePaisa, &p.Active, &p.SortOrder, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get package: %w", err)
	}
	return &p, nil
}

func (s *Catalog) ListActive(ctx context.Context) ([]model.Package, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, amount, price_paisa, active, sort_order, created_at
		 FROM packages WHERE active = TRUE ORDER BY sort_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	var out []model.Package
	for rows.Next() {
		var p model.Package
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Amount, &p.PricePaisa,
			&p.Active, &p.SortOrder, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}

func (s *Catalog) ActiveAccount(ctx context.Context) (*model.FulfillmentAccount, error) {
	var a model.FulfillmentAccount
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_encrypted, pin_encrypted, active, last_used, created_at
		 FROM fulfillment_accounts WHERE active = TRUE ORDER BY last_used ASC NULLS FIRST LIMIT 1`,
	).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordEncrypted, &a.PINEncrypted, &a.Active, &a.LastUsed, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active account: %w", err)
	}
	return &a, nil
}

func (s *Catalog) TouchAccount(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE fulfillment_accounts SET last_used = $1 WHERE id = $2`,
		time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch account: %w", err)
	}
	return nil
}

func (s *Settings) Load(ctx context.Context) (*model.Settings, error) {
	var st model.Settings
	err := s.db.QueryRowContext(ctx,
		`SELECT max_overpayment_ratio, max_auto_credit_paisa, order_expiry_hours,
			sms_suspicious_minutes, stuck_processing_minutes, max_fulfill_retries,
			breaker_failure_threshold, breaker_window_minutes,
			auto_match_enabled, auto_fulfill_enabled
		 FROM settings WHERE id = 1`,
	).Scan(&st.MaxOverpaymentRatio, &st.MaxAutoCreditPaisa, &st.OrderExpiryHours,
		&st.SMSSuspiciousMinutes, &st.StuckProcessingMinutes, &st.MaxFulfillRetries,
		&st.BreakerFailureThreshold, &st.BreakerWindowMinutes,
		&st.AutoMatchEnabled, &st.AutoFulfillEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		st = model.DefaultSettings()
		if err := s.Save(ctx, &st); err != nil {
			return nil, err
		}
		return &st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &st, nil
}

func (s *Settings) Save(ctx context.Context, st *model.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, max_overpayment_ratio, max_auto_credit_paisa,
			order_expiry_hours, sms_suspicious_minutes, stuck_processing_minutes,
			max_fulfill_retries, breaker_failure_threshold, breaker_window_minutes,
			auto_match_enabled, auto_fulfill_enabled, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			max_overpayment_ratio = EXCLUDED.max_overpayment_ratio,
			max_auto_credit_paisa = EXCLUDED.max_auto_credit_paisa,
			order_expiry_hours = EXCLUDED.order_expiry_hours,
			sms_suspicious_minutes = EXCLUDED.sms_suspicious_minutes,
			stuck_processing_minutes = EXCLUDED.stuck_processing_minutes,
			max_fulfill_retries = EXCLUDED.max_fulfill_retries,
			breaker_failure_threshold = EXCLUDED.breaker_failure_threshold,
			breaker_window_minutes = EXCLUDED.breaker_window_minutes,
			auto_match_enabled = EXCLUDED.auto_match_enabled,
			auto_fulfill_enabled = EXCLUDED.auto_fulfill_enabled,
			updated_at = EXCLUDED.updated_at`,
		st.MaxOverpaymentRatio, st.MaxAutoCreditPaisa, st.OrderExpiryHours,
		st.SMSSuspiciousMinutes, st.StuckProcessingMinutes, st.MaxFulfillRetries,
		st.BreakerFailureThreshold, st.BreakerWindowMinutes,
		st.AutoMatchEnabled, st.AutoFulfillEnabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
