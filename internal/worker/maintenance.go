package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nexstore/internal/model"
	"nexstore/internal/money"
	"nexstore/internal/service"
	"nexstore/internal/storage"
)

const sweepBatch = 100

// Maintenance runs the scheduled hygiene sweeps. Every sweep is idempotent:
// the conditional order writes guarantee that a refund or a requeue happens
// at most once per order no matter how often a sweep repeats.
type Maintenance struct {
	orders   storage.OrderStore
	sms      storage.NotificationStore
	wallet   *service.WalletService
	settings *service.SettingsService
}

func NewMaintenance(orders storage.OrderStore, sms storage.NotificationStore,
	wallet *service.WalletService, settings *service.SettingsService) *Maintenance {
	return &Maintenance{orders: orders, sms: sms, wallet: wallet, settings: settings}
}

// Start runs the three sweeps on independent tickers until ctx is
// cancelled.
func (m *Maintenance) Start(ctx context.Context, expireEvery, flagEvery, unstickEvery time.Duration) {
	go m.loop(ctx, "expire_orders", expireEvery, m.ExpireStaleOrders)
	go m.loop(ctx, "flag_notifications", flagEvery, m.FlagStaleNotifications)
	go m.loop(ctx, "unstick_processing", unstickEvery, m.UnstickProcessing)
}

func (m *Maintenance) loop(ctx context.Context, name string, every time.Duration, sweep func(context.Context) (int, error)) {
	slog.Info("maintenance sweep scheduled", "sweep", name, "interval", every)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweep(ctx)
			if err != nil {
				slog.Error("maintenance sweep failed", "sweep", name, "error", err)
				continue
			}
			if n > 0 {
				slog.Info("maintenance sweep done", "sweep", name, "affected", n)
			}
		}
	}
}

// ExpireStaleOrders expires pending_payment orders older than the expiry
// window and refunds any wallet balance they consumed. The refund rides the
// expired transition: only the sweep that wins the conditional write issues
// it.
func (m *Maintenance) ExpireStaleOrders(ctx context.Context) (int, error) {
	st, err := m.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-time.Duration(st.OrderExpiryHours) * time.Hour)
	orders, err := m.orders.PendingOlderThan(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	expired := 0
	for i := range orders {
		o := &orders[i]
		now := time.Now().UTC()
		won, err := m.orders.Transition(ctx, o.ID,
			[]model.Status{model.StatusPendingPayment}, model.StatusExpired,
			storage.OrderUpdate{ExpiredAt: &now})
		if err != nil {
			slog.Error("expire order failed", "order_id", o.ID, "error", err)
			continue
		}
		if !won {
			continue
		}
		expired++
		if o.WalletUsedPaisa > 0 {
			if _, err := m.wallet.Credit(ctx, o.UserID, o.WalletUsedPaisa, model.TxRefund, o.ID,
				fmt.Sprintf("Refund Rs.%.2f for expired order %s", money.PaisaToRupees(o.WalletUsedPaisa), o.ID)); err != nil {
				slog.Error("refund failed", "order_id", o.ID, "error", err)
				continue
			}
		}
		slog.Info("order expired", "order_id", o.ID, "refund_paisa", o.WalletUsedPaisa)
	}
	return expired, nil
}

// FlagStaleNotifications marks long-unmatched notifications suspicious so
// operators see money that arrived with no home. Visibility only, no
// financial effect.
func (m *Maintenance) FlagStaleNotifications(ctx context.Context) (int, error) {
	st, err := m.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-time.Duration(st.SMSSuspiciousMinutes) * time.Minute)
	stale, err := m.sms.UnmatchedOlderThan(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale notifications: %w", err)
	}

	flagged := 0
	for i := range stale {
		won, err := m.sms.MarkSuspicious(ctx, stale[i].ID, "Unmatched for over 1 hour")
		if err != nil {
			slog.Error("flag notification failed", "notification_id", stale[i].ID, "error", err)
			continue
		}
		if won {
			flagged++
		}
	}
	return flagged, nil
}

// UnstickProcessing requeues orders whose fulfillment attempt started too
// long ago and never reported back, counting the lost attempt.
func (m *Maintenance) UnstickProcessing(ctx context.Context) (int, error) {
	st, err := m.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-time.Duration(st.StuckProcessingMinutes) * time.Minute)
	stuck, err := m.orders.ProcessingStuckSince(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stuck orders: %w", err)
	}

	reset := 0
	for i := range stuck {
		o := &stuck[i]
		now := time.Now().UTC()
		retries := o.RetryCount + 1
		won, err := m.orders.Transition(ctx, o.ID,
			[]model.Status{model.StatusProcessing}, model.StatusQueued,
			storage.OrderUpdate{
				RetryCount:      &retries,
				QueuedAt:        &now,
				AutomationState: strp("reset_from_stuck"),
			})
		if err != nil {
			slog.Error("unstick order failed", "order_id", o.ID, "error", err)
			continue
		}
		if won {
			reset++
			slog.Warn("stuck order requeued", "order_id", o.ID, "retry_count", retries)
		}
	}
	return reset, nil
}
