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

const smsColumns = `id, raw_message, fingerprint, amount_paisa, last3digits, rrn,
	method, remark, used, matched_order_id, suspicious, suspicious_reason,
	parsed_at, matched_at`

func scanNotification(row interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var amount sql.NullInt64
	var last3, rrn, method, remark, matchedOrderID, suspiciousReason sql.NullString
	err := row.Scan(
		&n.ID, &n.RawMessage, &n.Fingerprint, &amount, &last3, &rrn,
		&method, &remark, &n.Used, &matchedOrderID, &n.Suspicious, &suspiciousReason,
		&n.ParsedAt, &n.MatchedAt,
	)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		n.AmountPaisa = &amount.Int64
	}
	n.Last3Digits = last3.String
	n.RRN = rrn.String
	n.Method = method.String
	n.Remark = remark.String
	n.MatchedOrderID = matchedOrderID.String
	n.SuspiciousReason = suspiciousReason.String
	return &n, nil
}

func (s *Notifications) Create(ctx context.Context, n *model.Notification) error {
	if n.ParsedAt.IsZero() {
		n.ParsedAt = time.Now().UTC()
	}
	var amount any
	if n.AmountPaisa != nil {
		amount = *n.AmountPaisa
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sms_messages (raw_message, fingerprint, amount_paisa, last3digits,
			rrn, method, remark, used, parsed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING id`,
		n.RawMessage, n.Fingerprint, amount, nullStr(n.Last3Digits),
		nullStr(n.RRN), nullStr(n.Method), nullStr(n.Remark), n.ParsedAt,
	).Scan(&n.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Notifications) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+smsColumns+` FROM sms_messages WHERE id = $1`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *Notifications) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sms_messages WHERE fingerprint = $1)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification fingerprint: %w", err)
	}
	return exists, nil
}

func (s *Notifications) RRNExists(ctx context.Context, rrn string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sms_messages WHERE rrn = $1 AND used = TRUE)`, rrn).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification rrn: %w", err)
	}
	return exists, nil
}

func (s *Notifications) MarkUsed(ctx context.Context, id, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sms_messages SET used = TRUE, matched_order_id = $1, matched_at = $2
		 WHERE id = $3 AND used = FALSE`,
		orderID, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("mark notification used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark used rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Notifications) MarkSuspicious(ctx context.Context, id, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sms_messages SET suspicious = TRUE, suspicious_reason = $1
		 WHERE id = $2 AND suspicious = FALSE AND used = FALSE`,
		reason, id)
	if err != nil {
		return false, fmt.Errorf("mark notification suspicious: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark suspicious rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Notifications) queryNotifications(ctx context.Context, query string, args ...any) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}

func (s *Notifications) List(ctx context.Context, limit int) ([]model.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+smsColumns+` FROM sms_messages ORDER BY parsed_at DESC LIMIT $1`, limit)
}

func (s *Notifications) ListUnmatched(ctx context.Context, limit int) ([]model.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+smsColumns+` FROM sms_messages WHERE used = FALSE ORDER BY parsed_at DESC LIMIT $1`, limit)
}

func (s *Notifications) UnmatchedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]model.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+smsColumns+` FROM sms_messages
		 WHERE used = FALSE AND suspicious = FALSE AND parsed_at < $1
		 ORDER BY parsed_at ASC LIMIT $2`, cutoff, limit)
}

func (s *Notifications) FindForAmount(ctx context.Context, last3 string, amountPaisa int64, exact bool) (*model.Notification, error) {
	cmp := ">="
	if exact {
		cmp = "="
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+smsColumns+` FROM sms_messages
		 WHERE used = FALSE AND last3digits = $1 AND amount_paisa `+cmp+` $2
		 ORDER BY parsed_at DESC LIMIT 1`, last3, amountPaisa)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}
