package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nexstore/internal/model"
	"nexstore/internal/storage"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrUserNotFound      = errors.New("user not found")
)

// WalletService is the only path for changing a user's balance. Every
// change goes through the store's atomic Apply, so the ledger row and the
// balance always move together.
type WalletService struct {
	wallets storage.WalletStore
}

func NewWalletService(wallets storage.WalletStore) *WalletService {
	return &WalletService{wallets: wallets}
}

func (s *WalletService) Credit(ctx context.Context, userID string, amountPaisa int64, txType, orderID, description string) (*model.WalletTransaction, error) {
	if amountPaisa <= 0 {
		return nil, ErrInvalidAmount
	}
	tx := &model.WalletTransaction{
		UserID:      userID,
		Type:        txType,
		AmountPaisa: amountPaisa,
		OrderID:     orderID,
		Description: description,
	}
	if err := s.wallets.Apply(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("credit wallet: %w", err)
	}
	slog.Info("wallet credited",
		"user_id", userID,
		"type", txType,
		"amount_paisa", amountPaisa,
		"balance_before", tx.BalanceBefore,
		"balance_after", tx.BalanceAfter,
		"order_id", orderID)
	return tx, nil
}

func (s *WalletService) Debit(ctx context.Context, userID string, amountPaisa int64, txType, orderID, description string) (*model.WalletTransaction, error) {
	if amountPaisa <= 0 {
		return nil, ErrInvalidAmount
	}
	tx := &model.WalletTransaction{
		UserID:      userID,
		Type:        txType,
		AmountPaisa: -amountPaisa,
		OrderID:     orderID,
		Description: description,
	}
	if err := s.wallets.Apply(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	slog.Info("wallet debited",
		"user_id", userID,
		"type", txType,
		"amount_paisa", amountPaisa,
		"balance_before", tx.BalanceBefore,
		"balance_after", tx.BalanceAfter,
		"order_id", orderID)
	return tx, nil
}

func (s *WalletService) Balance(ctx context.Context, userID string) (int64, error) {
	u, err := s.wallets.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("get user: %w", err)
	}
	return u.BalancePaisa, nil
}

func (s *WalletService) User(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.wallets.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *WalletService) Transactions(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error) {
	txs, err := s.wallets.Transactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
