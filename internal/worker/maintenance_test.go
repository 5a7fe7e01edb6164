package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexstore/internal/model"
	"nexstore/internal/service"
	"nexstore/internal/storage/memory"
)

type maintEnv struct {
	store  *memory.Store
	wallet *service.WalletService
	maint  *Maintenance
}

func newMaintEnv(t *testing.T) *maintEnv {
	t.Helper()
	store := memory.New()
	settings := service.NewSettingsService(store.Settings())
	wallet := service.NewWalletService(store.Wallets())
	return &maintEnv{
		store:  store,
		wallet: wallet,
		maint:  NewMaintenance(store.Orders(), store.Notifications(), wallet, settings),
	}
}

func TestExpireStaleOrdersRefundsWalletOnce(t *testing.T) {
	env := newMaintEnv(t)
	ctx := context.Background()

	u := &model.User{Username: "tester"}
	require.NoError(t, env.store.Wallets().CreateUser(ctx, u))

	stale := &model.Order{
		OrderType:       model.OrderTypeProduct,
		UserID:          u.ID,
		WalletUsedPaisa: 150_00,
		PaymentRequired: 300_00,
		Status:          model.StatusPendingPayment,
		CreatedAt:       time.Now().UTC().Add(-25 * time.Hour),
	}
	require.NoError(t, env.store.Orders().Create(ctx, stale))

	fresh := &model.Order{
		OrderType:       model.OrderTypeProduct,
		UserID:          u.ID,
		PaymentRequired: 100_00,
		Status:          model.StatusPendingPayment,
	}
	require.NoError(t, env.store.Orders().Create(ctx, fresh))

	n, err := env.maint.ExpireStaleOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.store.Orders().GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)
	require.NotNil(t, got.ExpiredAt)

	kept, err := env.store.Orders().GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingPayment, kept.Status)

	balance, err := env.wallet.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150_00), balance)

	// A repeated sweep must not refund again.
	n, err = env.maint.ExpireStaleOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	txs, err := env.wallet.Transactions(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxRefund, txs[0].Type)
	assert.Equal(t, stale.ID, txs[0].OrderID)
}

func TestFlagStaleNotifications(t *testing.T) {
	env := newMaintEnv(t)
	ctx := context.Background()

	amount := int64(450_00)
	old := &model.Notification{
		RawMessage:  "old evidence",
		Fingerprint: "fp-old",
		AmountPaisa: &amount,
		Last3Digits: "910",
		ParsedAt:    time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, env.store.Notifications().Create(ctx, old))

	recent := &model.Notification{
		RawMessage:  "recent evidence",
		Fingerprint: "fp-recent",
		AmountPaisa: &amount,
		Last3Digits: "910",
	}
	require.NoError(t, env.store.Notifications().Create(ctx, recent))

	n, err := env.maint.FlagStaleNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.store.Notifications().GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, got.Suspicious)
	assert.Equal(t, "Unmatched for over 1 hour", got.SuspiciousReason)

	// Already-flagged evidence is not re-flagged.
	n, err = env.maint.FlagStaleNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUnstickProcessingRequeuesWithRetry(t *testing.T) {
	env := newMaintEnv(t)
	ctx := context.Background()

	started := time.Now().UTC().Add(-20 * time.Minute)
	stuck := &model.Order{
		OrderType:         model.OrderTypeProduct,
		UserID:            "usr-1",
		Status:            model.StatusProcessing,
		RetryCount:        1,
		ProcessingStarted: &started,
	}
	require.NoError(t, env.store.Orders().Create(ctx, stuck))

	justStarted := time.Now().UTC().Add(-1 * time.Minute)
	active := &model.Order{
		OrderType:         model.OrderTypeProduct,
		UserID:            "usr-1",
		Status:            model.StatusProcessing,
		ProcessingStarted: &justStarted,
	}
	require.NoError(t, env.store.Orders().Create(ctx, active))

	n, err := env.maint.UnstickProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.store.Orders().GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "reset_from_stuck", got.AutomationState)
	require.NotNil(t, got.QueuedAt)

	untouched, err := env.store.Orders().GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, untouched.Status)
}
