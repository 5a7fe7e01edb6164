// Package storage defines the persistence contracts for the reconciliation
// core. The postgres subpackage is the durable implementation; the memory
// subpackage backs tests. Concurrent order mutation is linearized by the
// store, not by in-process locks: Transition applies a conditional update
// keyed on the expected current status and reports whether it won.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nexstore/internal/model"
)

var (
	ErrNotFound          = errors.New("storage: not found")
	ErrDuplicate         = errors.New("storage: duplicate")
	ErrInsufficientFunds = errors.New("storage: insufficient funds")
	ErrIllegalTransition = errors.New("storage: illegal status transition")
)

// ValidateTransition checks every expected source status against the
// lifecycle table before a write is attempted. A source equal to the
// target is a field-only update and is always allowed.
func ValidateTransition(from []model.Status, to model.Status) error {
	for _, f := range from {
		if f == to || model.CanTransition(f, to) {
			continue
		}
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f, to)
	}
	return nil
}

// OrderUpdate carries optional field writes applied together with a status
// transition. Nil fields are left untouched.
type OrderUpdate struct {
	PlayerUID         *string
	PaymentLast3      *string
	PaymentMethod     *string
	PaymentRemark     *string
	PaymentRRN        *string
	RawMessage        *string
	SMSFingerprint    *string
	PaymentReceived   *int64
	OverpaymentPaisa  *int64
	SuspiciousReason  *string
	AutomationState   *string
	RetryCount        *int
	Notes             *string
	QueuedAt          *time.Time
	ProcessingStarted *time.Time
	CompletedAt       *time.Time
	ExpiredAt         *time.Time
}

type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error)
	ListByStatus(ctx context.Context, statuses []model.Status, limit int) ([]model.Order, error)

	// MatchCandidates returns open orders a payment could settle: status in
	// (pending_payment, manual_review), same recorded last-3 digits, required
	// amount not above the paid amount, oldest first.
	MatchCandidates(ctx context.Context, last3 string, amountPaisa int64, limit int) ([]model.Order, error)

	// Queued returns fulfillable orders awaiting dispatch, oldest queue entry
	// first.
	Queued(ctx context.Context, limit int) ([]model.Order, error)

	// PendingOlderThan returns pending_payment orders created before cutoff.
	PendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)

	// ProcessingStuckSince returns orders whose processing started before
	// cutoff.
	ProcessingStuckSince(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)

	// Transition moves an order from one of the expected statuses to the new
	// one, applying upd and stamping updated_at, all in a single conditional
	// write. It returns false when the precondition no longer holds; a lost
	// race is a no-op, never an error. Implementations reject (from, to)
	// pairs outside the lifecycle table with ErrIllegalTransition, and an
	// upd that would attach an already-used payment_rrn or sms_fingerprint
	// to a second order with ErrDuplicate.
	Transition(ctx context.Context, id string, from []model.Status, to model.Status, upd OrderUpdate) (bool, error)

	RRNExists(ctx context.Context, rrn string) (bool, error)
	FingerprintExists(ctx context.Context, fingerprint string) (bool, error)
}

type NotificationStore interface {
	// Create persists a new notification; ErrDuplicate when the fingerprint
	// is already known.
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	FingerprintExists(ctx context.Context, fingerprint string) (bool, error)
	RRNExists(ctx context.Context, rrn string) (bool, error)

	// MarkUsed claims an unused notification for an order; false when it was
	// already used.
	MarkUsed(ctx context.Context, id, orderID string) (bool, error)
	MarkSuspicious(ctx context.Context, id, reason string) (bool, error)

	List(ctx context.Context, limit int) ([]model.Notification, error)
	ListUnmatched(ctx context.Context, limit int) ([]model.Notification, error)
	UnmatchedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]model.Notification, error)

	// FindForAmount returns the newest unused notification from the given
	// sender digits carrying at least amountPaisa; exact=true narrows to an
	// exact amount match.
	FindForAmount(ctx context.Context, last3 string, amountPaisa int64, exact bool) (*model.Notification, error)
}

type WalletStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)

	// Apply atomically mutates the user's balance and records the paired
	// transaction. It fills in ID, BalanceBefore, BalanceAfter and CreatedAt,
	// and returns ErrInsufficientFunds (with no partial effect) when a debit
	// would drive the balance negative.
	Apply(ctx context.Context, tx *model.WalletTransaction) error

	Transactions(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error)
}

type PackageStore interface {
	GetActive(ctx context.Context, id string) (*model.Package, error)
	ListActive(ctx context.Context) ([]model.Package, error)
}

type AccountStore interface {
	// ActiveAccount returns the fulfillment account currently in rotation,
	// or ErrNotFound when none is configured.
	ActiveAccount(ctx context.Context) (*model.FulfillmentAccount, error)
	TouchAccount(ctx context.Context, id string) error
}

type SettingsStore interface {
	// Load returns the singleton settings row, creating it with defaults on
	// first read.
	Load(ctx context.Context) (*model.Settings, error)
	Save(ctx context.Context, s *model.Settings) error
}
