package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nexstore/internal/alert"
	"nexstore/internal/model"
	"nexstore/internal/secret"
	"nexstore/internal/service"
	"nexstore/internal/storage/memory"
)

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

// stubFulfiller answers every attempt with a fixed script.
type stubFulfiller struct {
	mu    sync.Mutex
	calls int
	fn    func(req service.FulfillRequest) (*service.FulfillResult, error)
}

func (f *stubFulfiller) Fulfill(_ context.Context, req service.FulfillRequest) (*service.FulfillResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

func (f *stubFulfiller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type dispatchEnv struct {
	store      *memory.Store
	alerts     *recordingAlerter
	settings   *service.SettingsService
	fulfiller  *stubFulfiller
	dispatcher *Dispatcher
	box        *secret.Box
}

func newDispatchEnv(t *testing.T, fn func(req service.FulfillRequest) (*service.FulfillResult, error)) *dispatchEnv {
	t.Helper()
	store := memory.New()
	alerts := &recordingAlerter{}
	settings := service.NewSettingsService(store.Settings())
	fulfiller := &stubFulfiller{fn: fn}
	box := secret.NewBox("test-key")
	d := NewDispatcher(store.Orders(), store.Accounts(), fulfiller, settings, alerts,
		box, time.Second, time.Second, 20)
	return &dispatchEnv{
		store:      store,
		alerts:     alerts,
		settings:   settings,
		fulfiller:  fulfiller,
		dispatcher: d,
		box:        box,
	}
}

func (e *dispatchEnv) seedAccount(t *testing.T) model.FulfillmentAccount {
	t.Helper()
	password, err := e.box.Encrypt("account-password")
	require.NoError(t, err)
	pin, err := e.box.Encrypt("123456")
	require.NoError(t, err)
	return e.store.AddAccount(model.FulfillmentAccount{
		Name:              "primary",
		Email:             "ops@example.com",
		PasswordEncrypted: password,
		PINEncrypted:      pin,
		Active:            true,
	})
}

func (e *dispatchEnv) queueOrder(t *testing.T) *model.Order {
	t.Helper()
	now := time.Now().UTC()
	o := &model.Order{
		OrderType:        model.OrderTypeProduct,
		UserID:           "usr-test",
		PlayerUID:        "12345678",
		PackageID:        "pkg-1",
		PackageName:      "500 Diamonds",
		LockedPricePaisa: 450_00,
		PaymentRequired:  450_00,
		Status:           model.StatusQueued,
		QueuedAt:         &now,
	}
	require.NoError(t, e.store.Orders().Create(context.Background(), o))
	return o
}

func (e *dispatchEnv) orderStatus(t *testing.T, id string) *model.Order {
	t.Helper()
	o, err := e.store.Orders().GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}
