package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexstore/internal/model"
	"nexstore/internal/storage"
)

func TestCreateProductOrderNoWallet(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 0)
	pkg := env.addPackage(t, 450_00)

	order, err := env.orders.CreateProductOrder(context.Background(), u.ID, "12345678", pkg.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPendingPayment, order.Status)
	assert.Equal(t, int64(450_00), order.LockedPricePaisa)
	assert.Equal(t, int64(0), order.WalletUsedPaisa)
	assert.Equal(t, int64(450_00), order.PaymentRequired)
	assert.Equal(t, int64(450_00), order.PaymentAmount)
}

func TestCreateProductOrderPartialWallet(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 100_00)
	pkg := env.addPackage(t, 450_30)
	ctx := context.Background()

	order, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(100_00), order.WalletUsedPaisa)
	assert.Equal(t, int64(350_30), order.PaymentRequired)
	// Residual rounds up to the next clean denomination.
	assert.Equal(t, int64(355_00), order.PaymentAmount)
	assert.Equal(t, model.StatusPendingPayment, order.Status)

	balance, err := env.wallet.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestCreateProductOrderFullWalletCover(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 1000_00)
	pkg := env.addPackage(t, 450_00)
	ctx := context.Background()

	order, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	require.NoError(t, err)

	// Fully covered: paid, debited and queued without any UPI payment.
	assert.Equal(t, model.StatusQueued, order.Status)
	assert.Equal(t, int64(450_00), order.WalletUsedPaisa)
	assert.Equal(t, int64(0), order.PaymentRequired)
	require.NotNil(t, order.QueuedAt)

	balance, err := env.wallet.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(550_00), balance)
}

func TestCreateProductOrderFullCoverAutoFulfillOff(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 500_00)
	pkg := env.addPackage(t, 450_00)
	ctx := context.Background()

	off := false
	_, err := env.settings.Update(ctx, SettingsPatch{AutoFulfillEnabled: &off})
	require.NoError(t, err)

	order, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusManualPending, order.Status)
}

func TestCreateProductOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 0)
	pkg := env.addPackage(t, 100_00)
	ctx := context.Background()

	_, err := env.orders.CreateProductOrder(ctx, u.ID, "1234567", pkg.ID)
	assert.ErrorIs(t, err, ErrInvalidPlayerUID)

	_, err = env.orders.CreateProductOrder(ctx, u.ID, "abc45678", pkg.ID)
	assert.ErrorIs(t, err, ErrInvalidPlayerUID)

	_, err = env.orders.CreateProductOrder(ctx, u.ID, "12345678", "missing-pkg")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestCreateProductOrderBlockedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := &model.User{Username: "blocked", Blocked: true}
	require.NoError(t, env.store.Wallets().CreateUser(ctx, u))
	pkg := env.addPackage(t, 100_00)

	_, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	assert.ErrorIs(t, err, ErrUserBlocked)
}

func TestCreateWalletLoad(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 0)
	ctx := context.Background()

	_, err := env.orders.CreateWalletLoad(ctx, u.ID, 9_99)
	assert.ErrorIs(t, err, ErrLoadTooSmall)

	order, err := env.orders.CreateWalletLoad(ctx, u.ID, 99_99)
	require.NoError(t, err)
	assert.Equal(t, model.OrderTypeWalletLoad, order.OrderType)
	assert.Equal(t, model.StatusPendingPayment, order.Status)
	assert.Equal(t, int64(99_99), order.PaymentRequired)
	assert.Equal(t, int64(100_00), order.PaymentAmount)

	// No credit until a payment actually arrives.
	balance, err := env.wallet.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestUpdatePlayerUID(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 0)
	pkg := env.addPackage(t, 100_00)
	ctx := context.Background()

	order, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	require.NoError(t, err)

	updated, err := env.orders.UpdatePlayerUID(ctx, u.ID, order.ID, "87654321")
	require.NoError(t, err)
	assert.Equal(t, "87654321", updated.PlayerUID)
	assert.Equal(t, model.StatusPendingPayment, updated.Status)

	_, err = env.orders.UpdatePlayerUID(ctx, u.ID, order.ID, "short")
	assert.ErrorIs(t, err, ErrInvalidPlayerUID)

	_, err = env.orders.UpdatePlayerUID(ctx, "someone-else", order.ID, "87654321")
	assert.ErrorIs(t, err, ErrNotOrderOwner)
}

func TestUpdatePlayerUIDRearmsInvalidUID(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 0)
	pkg := env.addPackage(t, 100_00)
	ctx := context.Background()

	order, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	require.NoError(t, err)

	forceStatus(t, env, order.ID, model.StatusInvalidUID)

	updated, err := env.orders.UpdatePlayerUID(ctx, u.ID, order.ID, "87654321")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingPayment, updated.Status)
}

func TestUpdatePlayerUIDRejectedAfterFulfillmentStarts(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 0)
	pkg := env.addPackage(t, 100_00)
	ctx := context.Background()

	order, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	require.NoError(t, err)
	forceStatus(t, env, order.ID, model.StatusProcessing)

	_, err = env.orders.UpdatePlayerUID(ctx, u.ID, order.ID, "87654321")
	assert.ErrorIs(t, err, ErrOrderNotEditable)
}

func TestAdminRetryIncrementsRetryCount(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 0)
	pkg := env.addPackage(t, 100_00)
	ctx := context.Background()

	order, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	require.NoError(t, err)
	forceStatus(t, env, order.ID, model.StatusManualReview)

	requeued, err := env.orders.Retry(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, requeued.Status)
	assert.Equal(t, 1, requeued.RetryCount)
	require.NotNil(t, requeued.QueuedAt)

	// Retrying an order already on the queue is refused.
	_, err = env.orders.Retry(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotEditable)
}

func TestAdminMarkSuccess(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, 0)
	pkg := env.addPackage(t, 100_00)
	ctx := context.Background()

	order, err := env.orders.CreateProductOrder(ctx, u.ID, "12345678", pkg.ID)
	require.NoError(t, err)
	forceStatus(t, env, order.ID, model.StatusManualPending)

	done, err := env.orders.MarkSuccess(ctx, order.ID, "fulfilled by hand")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, done.Status)
	assert.Equal(t, "fulfilled by hand", done.Notes)
	require.NotNil(t, done.CompletedAt)

	// Terminal: a second close is refused.
	_, err = env.orders.MarkSuccess(ctx, order.ID, "")
	assert.ErrorIs(t, err, ErrOrderNotEditable)
}

// forceStatus drives a pending_payment order into a target status for
// test setup, stepping through the legal lifecycle path.
func forceStatus(t *testing.T, env *testEnv, orderID string, to model.Status) {
	t.Helper()
	paths := map[model.Status][]model.Status{
		model.StatusManualReview:  {model.StatusManualReview},
		model.StatusManualPending: {model.StatusPaid, model.StatusManualPending},
		model.StatusProcessing:    {model.StatusPaid, model.StatusQueued, model.StatusProcessing},
		model.StatusInvalidUID:    {model.StatusPaid, model.StatusQueued, model.StatusProcessing, model.StatusInvalidUID},
	}
	steps, known := paths[to]
	require.True(t, known, "no setup path to %s", to)
	for _, next := range steps {
		o, err := env.store.Orders().GetByID(context.Background(), orderID)
		require.NoError(t, err)
		won, err := env.store.Orders().Transition(context.Background(), orderID,
			[]model.Status{o.Status}, next, storage.OrderUpdate{})
		require.NoError(t, err)
		require.True(t, won)
	}
}
