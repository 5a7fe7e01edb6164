package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nexstore/internal/alert"
	"nexstore/internal/model"
	"nexstore/internal/secret"
	"nexstore/internal/service"
	"nexstore/internal/storage"
)

// Dispatcher drains the fulfillment queue. Each order is claimed with a
// conditional queued->processing move, so running more than one dispatcher
// never double-delivers.
type Dispatcher struct {
	orders   storage.OrderStore
	accounts storage.AccountStore
	fulfill  service.Fulfiller
	settings *service.SettingsService
	alerter  alert.Alerter
	box      *secret.Box
	breaker  *Breaker

	interval time.Duration
	timeout  time.Duration
	batch    int
}

func NewDispatcher(orders storage.OrderStore, accounts storage.AccountStore,
	fulfill service.Fulfiller, settings *service.SettingsService, alerter alert.Alerter,
	box *secret.Box, interval, timeout time.Duration, batch int) *Dispatcher {
	return &Dispatcher{
		orders:   orders,
		accounts: accounts,
		fulfill:  fulfill,
		settings: settings,
		alerter:  alerter,
		box:      box,
		breaker:  NewBreaker(),
		interval: interval,
		timeout:  timeout,
		batch:    batch,
	}
}

// Start runs the dispatch loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	slog.Info("fulfillment dispatcher started", "interval", d.interval, "batch", d.batch)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("fulfillment dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.sweep(ctx); err != nil {
				slog.Error("dispatch sweep failed", "error", err)
			}
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) error {
	st, err := d.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !st.AutoFulfillEnabled {
		return nil
	}
	// An operator re-enabled fulfillment after a trip; re-arm the window.
	if d.breaker.Tripped() {
		d.breaker.Reset()
	}

	orders, err := d.orders.Queued(ctx, d.batch)
	if err != nil {
		return fmt.Errorf("list queued: %w", err)
	}
	for i := range orders {
		// A trip mid-batch stops dispatch right away.
		if d.breaker.Tripped() {
			break
		}
		d.process(ctx, &orders[i], &st)
	}
	return nil
}

func (d *Dispatcher) process(ctx context.Context, o *model.Order, st *model.Settings) {
	now := time.Now().UTC()
	claimed, err := d.orders.Transition(ctx, o.ID,
		[]model.Status{model.StatusQueued}, model.StatusProcessing,
		storage.OrderUpdate{
			ProcessingStarted: &now,
			AutomationState:   strp("started"),
		})
	if err != nil {
		slog.Error("claim order failed", "order_id", o.ID, "error", err)
		return
	}
	if !claimed {
		return
	}

	account, err := d.accounts.ActiveAccount(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			d.park(ctx, o.ID, "No active fulfillment account configured", "no_account", o.RetryCount)
			return
		}
		slog.Error("load fulfillment account failed", "order_id", o.ID, "error", err)
		d.requeue(ctx, o.ID, o.RetryCount, "account_error")
		return
	}

	password, err := d.box.Decrypt(account.PasswordEncrypted)
	if err == nil {
		var pin string
		pin, err = d.box.Decrypt(account.PINEncrypted)
		if err == nil {
			d.attempt(ctx, o, st, account.ID, account.Email, password, pin)
			return
		}
	}
	slog.Error("credential decrypt failed", "order_id", o.ID, "account_id", account.ID, "error", err)
	d.park(ctx, o.ID, "Fulfillment account credentials unreadable", "credential_error", o.RetryCount)
}

func (d *Dispatcher) attempt(ctx context.Context, o *model.Order, st *model.Settings, accountID, email, password, pin string) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.fulfill.Fulfill(callCtx, service.FulfillRequest{
		OrderID:         o.ID,
		PlayerUID:       o.PlayerUID,
		PackageID:       o.PackageID,
		PackageName:     o.PackageName,
		AccountEmail:    email,
		AccountPassword: password,
		AccountPIN:      pin,
	})
	if terr := d.accounts.TouchAccount(ctx, accountID); terr != nil {
		slog.Error("touch account failed", "account_id", accountID, "error", terr)
	}

	if err == nil && result.Success {
		now := time.Now().UTC()
		if _, err := d.orders.Transition(ctx, o.ID,
			[]model.Status{model.StatusProcessing}, model.StatusSuccess,
			storage.OrderUpdate{
				CompletedAt:     &now,
				AutomationState: strp("completed"),
			}); err != nil {
			slog.Error("complete order failed", "order_id", o.ID, "error", err)
			return
		}
		slog.Info("order fulfilled", "order_id", o.ID)
		return
	}

	verdict := "error"
	if err != nil {
		verdict = fmt.Sprintf("error: %v", err)
	} else if result.Status != "" {
		verdict = result.Status
	}
	d.recordFailure(ctx, st)

	if err == nil && result.Status == service.VerdictInvalidUID {
		if _, terr := d.orders.Transition(ctx, o.ID,
			[]model.Status{model.StatusProcessing}, model.StatusInvalidUID,
			storage.OrderUpdate{
				SuspiciousReason: strp("Player UID not found"),
				AutomationState:  strp(service.VerdictInvalidUID),
			}); terr != nil {
			slog.Error("mark invalid uid failed", "order_id", o.ID, "error", terr)
		}
		slog.Warn("fulfillment rejected player uid", "order_id", o.ID, "player_uid", o.PlayerUID)
		return
	}

	retries := o.RetryCount + 1
	if retries < st.MaxFulfillRetries {
		d.requeue(ctx, o.ID, retries, verdict)
		slog.Warn("fulfillment attempt failed, requeued",
			"order_id", o.ID, "attempt", retries, "verdict", verdict)
		return
	}

	reason := fmt.Sprintf("Automation failed after %d attempts: %s", retries, verdict)
	d.park(ctx, o.ID, reason, verdict, retries)
	slog.Error("fulfillment exhausted retries", "order_id", o.ID, "attempts", retries, "verdict", verdict)
}

// recordFailure feeds the breaker and, on a fresh trip, durably disables
// auto-fulfill and raises one critical alert.
func (d *Dispatcher) recordFailure(ctx context.Context, st *model.Settings) {
	window := time.Duration(st.BreakerWindowMinutes) * time.Minute
	if !d.breaker.Record(time.Now().UTC(), window, st.BreakerFailureThreshold) {
		return
	}
	if err := d.settings.DisableAutoFulfill(ctx); err != nil {
		slog.Error("disable auto-fulfill failed", "error", err)
	}
	msg := fmt.Sprintf("Circuit breaker tripped: %d fulfillment failures within %d minutes, auto-fulfill disabled",
		st.BreakerFailureThreshold, st.BreakerWindowMinutes)
	slog.Error("fulfillment circuit breaker tripped",
		"threshold", st.BreakerFailureThreshold, "window_minutes", st.BreakerWindowMinutes)
	if err := d.alerter.Alert(ctx, alert.Event{
		Severity: alert.SeverityCritical,
		Kind:     "breaker_tripped",
		Message:  msg,
		At:       time.Now().UTC(),
	}); err != nil {
		slog.Error("alert publish failed", "error", err)
	}
}

func (d *Dispatcher) requeue(ctx context.Context, orderID string, retries int, state string) {
	now := time.Now().UTC()
	if _, err := d.orders.Transition(ctx, orderID,
		[]model.Status{model.StatusProcessing}, model.StatusQueued,
		storage.OrderUpdate{
			RetryCount:      &retries,
			QueuedAt:        &now,
			AutomationState: strp("retry_" + state),
		}); err != nil {
		slog.Error("requeue order failed", "order_id", orderID, "error", err)
	}
}

func (d *Dispatcher) park(ctx context.Context, orderID, reason, state string, retries int) {
	if _, err := d.orders.Transition(ctx, orderID,
		[]model.Status{model.StatusProcessing}, model.StatusManualReview,
		storage.OrderUpdate{
			SuspiciousReason: &reason,
			AutomationState:  &state,
			RetryCount:       &retries,
		}); err != nil {
		slog.Error("park order failed", "order_id", orderID, "error", err)
	}
}

func strp(s string) *string { return &s }
