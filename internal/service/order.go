package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"nexstore/internal/model"
	"nexstore/internal/money"
	"nexstore/internal/storage"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrPackageNotFound  = errors.New("package not found")
	ErrUserBlocked      = errors.New("user is blocked")
	ErrInvalidPlayerUID = errors.New("player UID must be at least 8 digits")
	ErrLoadTooSmall     = errors.New("minimum wallet load is Rs.10")
	ErrOrderNotEditable = errors.New("order cannot be modified in its current status")
	ErrNotOrderOwner    = errors.New("order belongs to another user")
)

const minWalletLoadPaisa = 10_00

var playerUIDPattern = regexp.MustCompile(`^[0-9]{8,}$`)

// OrderService owns order intake and lifecycle operations. Every status
// move goes through the store's conditional Transition, so two concurrent
// actors can never both advance the same order.
type OrderService struct {
	orders   storage.OrderStore
	packages storage.PackageStore
	wallet   *WalletService
	settings *SettingsService
}

func NewOrderService(orders storage.OrderStore, packages storage.PackageStore, wallet *WalletService, settings *SettingsService) *OrderService {
	return &OrderService{orders: orders, packages: packages, wallet: wallet, settings: settings}
}

func ptr[T any](v T) *T { return &v }

// CreateProductOrder locks the package price, applies available wallet
// balance, and either marks the order paid (fully covered) or leaves it
// awaiting a rounded UPI payment.
func (s *OrderService) CreateProductOrder(ctx context.Context, userID, playerUID, packageID string) (*model.Order, error) {
	user, err := s.wallet.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}
	if !playerUIDPattern.MatchString(playerUID) {
		return nil, ErrInvalidPlayerUID
	}

	pkg, err := s.packages.GetActive(ctx, packageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("get package: %w", err)
	}

	walletUsed := user.BalancePaisa
	if walletUsed > pkg.PricePaisa {
		walletUsed = pkg.PricePaisa
	}
	required := pkg.PricePaisa - walletUsed

	order := &model.Order{
		OrderType:        model.OrderTypeProduct,
		UserID:           userID,
		PlayerUID:        playerUID,
		PackageID:        pkg.ID,
		PackageName:      pkg.Name,
		LockedPricePaisa: pkg.PricePaisa,
		WalletUsedPaisa:  walletUsed,
		PaymentRequired:  required,
		PaymentAmount:    money.RoundUpPayment(required),
		Status:           model.StatusPendingPayment,
	}
	if required == 0 {
		order.Status = model.StatusPaid
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if walletUsed > 0 {
		if _, err := s.wallet.Debit(ctx, userID, walletUsed, model.TxOrderPayment, order.ID,
			fmt.Sprintf("Wallet payment for order %s", order.ID)); err != nil {
			return nil, err
		}
	}

	slog.Info("order created",
		"order_id", order.ID,
		"user_id", userID,
		"package_id", pkg.ID,
		"price_paisa", pkg.PricePaisa,
		"wallet_used_paisa", walletUsed,
		"payment_required_paisa", required,
		"status", order.Status)

	if order.Status == model.StatusPaid {
		if err := s.Enqueue(ctx, order.ID); err != nil {
			return nil, err
		}
		return s.Get(ctx, order.ID)
	}
	return order, nil
}

// CreateWalletLoad opens a wallet top-up order. The balance is credited
// only when a matching payment arrives.
func (s *OrderService) CreateWalletLoad(ctx context.Context, userID string, amountPaisa int64) (*model.Order, error) {
	user, err := s.wallet.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}
	if amountPaisa < minWalletLoadPaisa {
		return nil, ErrLoadTooSmall
	}

	order := &model.Order{
		OrderType:       model.OrderTypeWalletLoad,
		UserID:          userID,
		LoadAmountPaisa: amountPaisa,
		PaymentRequired: amountPaisa,
		PaymentAmount:   money.RoundUpPayment(amountPaisa),
		Status:          model.StatusPendingPayment,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create wallet load: %w", err)
	}
	slog.Info("wallet load order created",
		"order_id", order.ID, "user_id", userID, "amount_paisa", amountPaisa)
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *OrderService) GetForUser(ctx context.Context, userID, id string) (*model.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	return o, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return s.orders.ListByUser(ctx, userID, limit)
}

// UpdatePlayerUID fixes the target account on an order that has not been
// fulfilled yet. An invalid_uid order re-enters pending_payment (payment is
// already attached, so the reconciler's verify path or an admin retry moves
// it on).
func (s *OrderService) UpdatePlayerUID(ctx context.Context, userID, orderID, playerUID string) (*model.Order, error) {
	if !playerUIDPattern.MatchString(playerUID) {
		return nil, ErrInvalidPlayerUID
	}
	o, err := s.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case model.StatusPendingPayment, model.StatusInvalidUID:
	default:
		return nil, ErrOrderNotEditable
	}

	ok, err := s.orders.Transition(ctx, orderID,
		[]model.Status{model.StatusPendingPayment, model.StatusInvalidUID},
		model.StatusPendingPayment,
		storage.OrderUpdate{
			PlayerUID:       ptr(playerUID),
			AutomationState: ptr(""),
		})
	if err != nil {
		return nil, fmt.Errorf("update player uid: %w", err)
	}
	if !ok {
		return nil, ErrOrderNotEditable
	}
	slog.Info("player uid updated", "order_id", orderID, "user_id", userID)
	return s.Get(ctx, orderID)
}

// Enqueue hands a paid order to fulfillment. Wallet loads complete
// immediately; when auto-fulfill is off the order parks in manual_pending
// for an operator.
func (s *OrderService) Enqueue(ctx context.Context, orderID string) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if o.OrderType == model.OrderTypeWalletLoad {
		now := time.Now().UTC()
		if _, err := s.orders.Transition(ctx, orderID,
			[]model.Status{model.StatusPaid}, model.StatusSuccess,
			storage.OrderUpdate{CompletedAt: &now}); err != nil {
			return fmt.Errorf("complete wallet load: %w", err)
		}
		return nil
	}

	st, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !st.AutoFulfillEnabled {
		if _, err := s.orders.Transition(ctx, orderID,
			[]model.Status{model.StatusPaid}, model.StatusManualPending,
			storage.OrderUpdate{}); err != nil {
			return fmt.Errorf("park order: %w", err)
		}
		slog.Info("order parked for manual fulfillment", "order_id", orderID)
		return nil
	}

	now := time.Now().UTC()
	if _, err := s.orders.Transition(ctx, orderID,
		[]model.Status{model.StatusPaid}, model.StatusQueued,
		storage.OrderUpdate{QueuedAt: &now}); err != nil {
		return fmt.Errorf("enqueue order: %w", err)
	}
	slog.Info("order queued for fulfillment", "order_id", orderID)
	return nil
}

// Retry puts a failed or parked order back on the fulfillment queue.
func (s *OrderService) Retry(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	ok, err := s.orders.Transition(ctx, orderID,
		[]model.Status{model.StatusFailed, model.StatusManualReview, model.StatusManualPending,
			model.StatusInvalidUID, model.StatusPaid},
		model.StatusQueued,
		storage.OrderUpdate{
			QueuedAt:        &now,
			RetryCount:      ptr(o.RetryCount + 1),
			AutomationState: ptr(""),
		})
	if err != nil {
		return nil, fmt.Errorf("retry order: %w", err)
	}
	if !ok {
		return nil, ErrOrderNotEditable
	}
	slog.Info("order requeued by admin", "order_id", orderID, "previous_status", o.Status)
	return s.Get(ctx, orderID)
}

// MarkSuccess closes an order manually after out-of-band fulfillment.
func (s *OrderService) MarkSuccess(ctx context.Context, orderID, notes string) (*model.Order, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	upd := storage.OrderUpdate{
		CompletedAt:     &now,
		AutomationState: ptr("manual"),
	}
	if notes != "" {
		upd.Notes = &notes
	}
	ok, err := s.orders.Transition(ctx, orderID,
		[]model.Status{model.StatusPaid, model.StatusQueued, model.StatusProcessing,
			model.StatusFailed, model.StatusManualReview, model.StatusManualPending,
			model.StatusSuspicious, model.StatusInvalidUID},
		model.StatusSuccess, upd)
	if err != nil {
		return nil, fmt.Errorf("mark success: %w", err)
	}
	if !ok {
		return nil, ErrOrderNotEditable
	}
	slog.Info("order marked successful by admin", "order_id", orderID)
	return s.Get(ctx, orderID)
}

// ReviewQueue lists orders waiting on a human decision.
func (s *OrderService) ReviewQueue(ctx context.Context, limit int) ([]model.Order, error) {
	return s.orders.ListByStatus(ctx, []model.Status{
		model.StatusManualReview, model.StatusManualPending, model.StatusSuspicious,
		model.StatusFailed, model.StatusInvalidUID, model.StatusDuplicatePayment,
	}, limit)
}
