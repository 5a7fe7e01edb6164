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

func (s *Wallets) CreateUser(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, wallet_balance_paisa, blocked, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		u.Username, u.BalancePaisa, u.Blocked, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Wallets) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, wallet_balance_paisa, blocked, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.BalancePaisa, &u.Blocked, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Apply locks the user row, writes the new balance and the paired
// transaction record in one database transaction. The row lock is what
// keeps concurrent credits to the same user from losing updates.
func (s *Wallets) Apply(ctx context.Context, wtx *model.WalletTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT wallet_balance_paisa FROM users WHERE id = $1 FOR UPDATE`,
		wtx.UserID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user row: %w", err)
	}

	newBalance := balance + wtx.AmountPaisa
	if newBalance < 0 {
		return storage.ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE users SET wallet_balance_paisa = $1 WHERE id = $2`,
		newBalance, wtx.UserID,
	); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	wtx.BalanceBefore = balance
	wtx.BalanceAfter = newBalance
	wtx.CreatedAt = time.Now().UTC()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO wallet_transactions (user_id, type, amount_paisa, order_id,
			balance_before_paisa, balance_after_paisa, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		wtx.UserID, wtx.Type, wtx.AmountPaisa, nullStr(wtx.OrderID),
		wtx.BalanceBefore, wtx.BalanceAfter, wtx.Description, wtx.CreatedAt,
	).Scan(&wtx.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Wallets) Transactions(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, amount_paisa, order_id, balance_before_paisa,
			balance_after_paisa, description, created_at
		 FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT NULLIF($2, 0)`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.WalletTransaction
	for rows.Next() {
		var t model.WalletTransaction
		var orderID sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountPaisa, &orderID,
			&t.BalanceBefore, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.OrderID = orderID.String
		out = append(out, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}
