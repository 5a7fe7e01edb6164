package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"nexstore/internal/model"
	"nexstore/internal/storage"
)

const orderColumns = `id, order_type, user_id, player_uid, package_id, package_name,
	load_amount_paisa, locked_price_paisa, wallet_used_paisa, payment_required_paisa,
	payment_amount_paisa, payment_received_paisa, overpayment_paisa,
	payment_last3digits, payment_method, payment_remark, payment_rrn,
	raw_message, sms_fingerprint, status, automation_state, suspicious_reason,
	retry_count, notes, created_at, updated_at, queued_at, processing_started_at,
	completed_at, expired_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var playerUID, packageID, packageName, last3, method, remark, rrn,
		rawMessage, fingerprint, automationState, suspiciousReason, notes sql.NullString
	var status string
	err := row.Scan(
		&o.ID, &o.OrderType, &o.UserID, &playerUID, &packageID, &packageName,
		&o.LoadAmountPaisa, &o.LockedPricePaisa, &o.WalletUsedPaisa, &o.PaymentRequired,
		&o.PaymentAmount, &o.PaymentReceived, &o.OverpaymentPaisa,
		&last3, &method, &remark, &rrn,
		&rawMessage, &fingerprint, &status, &automationState, &suspiciousReason,
		&o.RetryCount, &notes, &o.CreatedAt, &o.UpdatedAt, &o.QueuedAt, &o.ProcessingStarted,
		&o.CompletedAt, &o.ExpiredAt,
	)
	if err != nil {
		return nil, err
	}
	o.PlayerUID = playerUID.String
	o.PackageID = packageID.String
	o.PackageName = packageName.String
	o.PaymentLast3 = last3.String
	o.PaymentMethod = method.String
	o.PaymentRemark = remark.String
	o.PaymentRRN = rrn.String
	o.RawMessage = rawMessage.String
	o.SMSFingerprint = fingerprint.String
	o.AutomationState = automationState.String
	o.SuspiciousReason = suspiciousReason.String
	o.Notes = notes.String
	o.Status = model.Status(status)
	return &o, nil
}

func (s *Orders) Create(ctx context.Context, o *model.Order) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (order_type, user_id, player_uid, package_id, package_name,
			load_amount_paisa, locked_price_paisa, wallet_used_paisa, payment_required_paisa,
			payment_amount_paisa, payment_last3digits, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		o.OrderType, o.UserID, nullStr(o.PlayerUID), nullStr(o.PackageID), nullStr(o.PackageName),
		o.LoadAmountPaisa, o.LockedPricePaisa, o.WalletUsedPaisa, o.PaymentRequired,
		o.PaymentAmount, nullStr(o.PaymentLast3), string(o.Status), o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Orders) GetByID(ctx context.Context, id string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *Orders) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return orders, nil
}

func (s *Orders) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT NULLIF($2, 0)`,
		userID, limit)
}

func (s *Orders) ListByStatus(ctx context.Context, statuses []model.Status, limit int) ([]model.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ANY($1) ORDER BY created_at DESC LIMIT $2`,
		statusArray(statuses), limit)
}

func (s *Orders) MatchCandidates(ctx context.Context, last3 string, amountPaisa int64, limit int) ([]model.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = ANY($1) AND payment_last3digits = $2 AND payment_required_paisa <= $3
		 ORDER BY created_at ASC LIMIT $4`,
		statusArray([]model.Status{model.StatusPendingPayment, model.StatusManualReview}),
		last3, amountPaisa, limit)
}

func (s *Orders) Queued(ctx context.Context, limit int) ([]model.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE order_type = $1 AND status = $2
		 ORDER BY queued_at ASC NULLS LAST LIMIT $3`,
		model.OrderTypeProduct, string(model.StatusQueued), limit)
}

func (s *Orders) PendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at ASC LIMIT $3`,
		string(model.StatusPendingPayment), cutoff, limit)
}

func (s *Orders) ProcessingStuckSince(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = $1 AND processing_started_at < $2
		 ORDER BY processing_started_at ASC LIMIT $3`,
		string(model.StatusProcessing), cutoff, limit)
}

func (s *Orders) Transition(ctx context.Context, id string, from []model.Status, to model.Status, upd storage.OrderUpdate) (bool, error) {
	if err := storage.ValidateTransition(from, to); err != nil {
		return false, err
	}
	set := []string{"status = $1", "updated_at = $2"}
	args := []any{string(to), time.Now().UTC()}

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.PlayerUID != nil {
		add("player_uid", *upd.PlayerUID)
	}
	if upd.PaymentLast3 != nil {
		add("payment_last3digits", *upd.PaymentLast3)
	}
	if upd.PaymentMethod != nil {
		add("payment_method", *upd.PaymentMethod)
	}
	if upd.PaymentRemark != nil {
		add("payment_remark", *upd.PaymentRemark)
	}
	if upd.PaymentRRN != nil {
		add("payment_rrn", nullStr(*upd.PaymentRRN))
	}
	if upd.RawMessage != nil {
		add("raw_message", *upd.RawMessage)
	}
	if upd.SMSFingerprint != nil {
		add("sms_fingerprint", nullStr(*upd.SMSFingerprint))
	}
	if upd.PaymentReceived != nil {
		add("payment_received_paisa", *upd.PaymentReceived)
	}
	if upd.OverpaymentPaisa != nil {
		add("overpayment_paisa", *upd.OverpaymentPaisa)
	}
	if upd.SuspiciousReason != nil {
		add("suspicious_reason", *upd.SuspiciousReason)
	}
	if upd.AutomationState != nil {
		add("automation_state", *upd.AutomationState)
	}
	if upd.RetryCount != nil {
		add("retry_count", *upd.RetryCount)
	}
	if upd.Notes != nil {
		add("notes", *upd.Notes)
	}
	if upd.QueuedAt != nil {
		add("queued_at", *upd.QueuedAt)
	}
	if upd.ProcessingStarted != nil {
		add("processing_started_at", *upd.ProcessingStarted)
	}
	if upd.CompletedAt != nil {
		add("completed_at", *upd.CompletedAt)
	}
	if upd.ExpiredAt != nil {
		add("expired_at", *upd.ExpiredAt)
	}

	args = append(args, id)
	idArg := len(args)
	args = append(args, statusArray(from))
	fromArg := len(args)

	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d AND status = ANY($%d)`,
		strings.Join(set, ", "), idArg, fromArg)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		// 23505: the rrn/fingerprint partial unique index rejected the
		// write, so this evidence is already attached to another order.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, storage.ErrDuplicate
		}
		return false, fmt.Errorf("transition order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Orders) RRNExists(ctx context.Context, rrn string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE payment_rrn = $1)`, rrn).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order rrn: %w", err)
	}
	return exists, nil
}

func (s *Orders) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE sms_fingerprint = $1)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order fingerprint: %w", err)
	}
	return exists, nil
}

func statusArray(statuses []model.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
