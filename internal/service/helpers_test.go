package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nexstore/internal/alert"
	"nexstore/internal/model"
	"nexstore/internal/storage/memory"
)

// recordingAlerter captures published alerts for assertions.
type recordingAlerter struct {
	mu     sync.Mutex
	events []alert.Event
}

func (a *recordingAlerter) Alert(_ context.Context, e alert.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *recordingAlerter) all() []alert.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]alert.Event(nil), a.events...)
}

type testEnv struct {
	store      *memory.Store
	alerts     *recordingAlerter
	settings   *SettingsService
	wallet     *WalletService
	orders     *OrderService
	reconciler *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	alerts := &recordingAlerter{}
	settings := NewSettingsService(store.Settings())
	wallet := NewWalletService(store.Wallets())
	orders := NewOrderService(store.Orders(), store.Packages(), wallet, settings)
	rec := NewReconciler(store.Orders(), store.Notifications(), wallet, orders, settings, alerts)
	return &testEnv{
		store:      store,
		alerts:     alerts,
		settings:   settings,
		wallet:     wallet,
		orders:     orders,
		reconciler: rec,
	}
}

func (e *testEnv) addUser(t *testing.T, balancePaisa int64) *model.User {
	t.Helper()
	u := &model.User{Username: "tester", BalancePaisa: balancePaisa}
	require.NoError(t, e.store.Wallets().CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) addPackage(t *testing.T, pricePaisa int64) model.Package {
	t.Helper()
	return e.store.AddPackage(model.Package{
		Name:       "500 Diamonds",
		Type:       "diamonds",
		Amount:     500,
		PricePaisa: pricePaisa,
		Active:     true,
	})
}
