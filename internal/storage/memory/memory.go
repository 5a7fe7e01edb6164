// Package memory is an in-memory storage implementation with the same
// semantics as the postgres one (conditional transitions, uniqueness,
// atomic ledger apply). It backs the test suite and local development
// without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nexstore/internal/model"
	"nexstore/internal/storage"
)

type Store struct {
	mu            sync.Mutex
	seq           int
	orders        map[string]*model.Order
	notifications map[string]*model.Notification
	users         map[string]*model.User
	transactions  []model.WalletTransaction
	packages      map[string]*model.Package
	accounts      map[string]*model.FulfillmentAccount
	settings      *model.Settings
}

func New() *Store {
	return &Store{
		orders:        make(map[string]*model.Order),
		notifications: make(map[string]*model.Notification),
		users:         make(map[string]*model.User),
		packages:      make(map[string]*model.Package),
		accounts:      make(map[string]*model.FulfillmentAccount),
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%06d", prefix, s.seq)
}

func (s *Store) Orders() storage.OrderStore               { return orders{s} }
func (s *Store) Notifications() storage.NotificationStore { return notifications{s} }
func (s *Store) Wallets() storage.WalletStore             { return wallets{s} }
func (s *Store) Packages() storage.PackageStore           { return catalog{s} }
func (s *Store) Accounts() storage.AccountStore           { return catalog{s} }
func (s *Store) Settings() storage.SettingsStore          { return settings{s} }

// AddPackage seeds a catalog entry.
func (s *Store) AddPackage(p model.Package) model.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = s.nextID("pkg")
	}
	s.packages[p.ID] = &p
	return p
}

// AddAccount seeds a fulfillment account.
func (s *Store) AddAccount(a model.FulfillmentAccount) model.FulfillmentAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = s.nextID("acc")
	}
	s.accounts[a.ID] = &a
	return a
}

// ----- orders -----

type orders struct{ s *Store }

func (r orders) Create(_ context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o.ID == "" {
		o.ID = r.s.nextID("ord")
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	cp := *o
	r.s.orders[o.ID] = &cp
	return nil
}

func (r orders) GetByID(_ context.Context, id string) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r orders) collect(keep func(*model.Order) bool, less func(a, b *model.Order) bool, limit int) []model.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sel []*model.Order
	for _, o := range r.s.orders {
		if keep(o) {
			sel = append(sel, o)
		}
	}
	sort.Slice(sel, func(i, j int) bool { return less(sel[i], sel[j]) })
	if limit > 0 && len(sel) > limit {
		sel = sel[:limit]
	}
	out := make([]model.Order, len(sel))
	for i, o := range sel {
		out[i] = *o
	}
	return out
}

func byCreatedAsc(a, b *model.Order) bool  { return a.CreatedAt.Before(b.CreatedAt) }
func byCreatedDesc(a, b *model.Order) bool { return a.CreatedAt.After(b.CreatedAt) }

func (r orders) ListByUser(_ context.Context, userID string, limit int) ([]model.Order, error) {
	return r.collect(func(o *model.Order) bool { return o.UserID == userID }, byCreatedDesc, limit), nil
}

func (r orders) ListByStatus(_ context.Context, statuses []model.Status, limit int) ([]model.Order, error) {
	in := func(st model.Status) bool {
		for _, s := range statuses {
			if s == st {
				return true
			}
		}
		return false
	}
	return r.collect(func(o *model.Order) bool { return in(o.Status) }, byCreatedDesc, limit), nil
}

func (r orders) MatchCandidates(_ context.Context, last3 string, amountPaisa int64, limit int) ([]model.Order, error) {
	return r.collect(func(o *model.Order) bool {
		return (o.Status == model.StatusPendingPayment || o.Status == model.StatusManualReview) &&
			o.PaymentLast3 == last3 && o.PaymentRequired <= amountPaisa
	}, byCreatedAsc, limit), nil
}

func (r orders) Queued(_ context.Context, limit int) ([]model.Order, error) {
	return r.collect(func(o *model.Order) bool {
		return o.OrderType == model.OrderTypeProduct && o.Status == model.StatusQueued
	}, func(a, b *model.Order) bool {
		if a.QueuedAt == nil || b.QueuedAt == nil {
			return byCreatedAsc(a, b)
		}
		return a.QueuedAt.Before(*b.QueuedAt)
	}, limit), nil
}

func (r orders) PendingOlderThan(_ context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	return r.collect(func(o *model.Order) bool {
		return o.Status == model.StatusPendingPayment && o.CreatedAt.Before(cutoff)
	}, byCreatedAsc, limit), nil
}

func (r orders) ProcessingStuckSince(_ context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	return r.collect(func(o *model.Order) bool {
		return o.Status == model.StatusProcessing &&
			o.ProcessingStarted != nil && o.ProcessingStarted.Before(cutoff)
	}, byCreatedAsc, limit), nil
}

func (r orders) Transition(_ context.Context, id string, from []model.Status, to model.Status, upd storage.OrderUpdate) (bool, error) {
	if err := storage.ValidateTransition(from, to); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, st := range from {
		if o.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	// Payment evidence is globally unique across orders, mirroring the
	// partial unique indexes on the durable store.
	if upd.PaymentRRN != nil && *upd.PaymentRRN != "" {
		for oid, other := range r.s.orders {
			if oid != id && other.PaymentRRN == *upd.PaymentRRN {
				return false, storage.ErrDuplicate
			}
		}
	}
	if upd.SMSFingerprint != nil && *upd.SMSFingerprint != "" {
		for oid, other := range r.s.orders {
			if oid != id && other.SMSFingerprint == *upd.SMSFingerprint {
				return false, storage.ErrDuplicate
			}
		}
	}

	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	if upd.PlayerUID != nil {
		o.PlayerUID = *upd.PlayerUID
	}
	if upd.PaymentLast3 != nil {
		o.PaymentLast3 = *upd.PaymentLast3
	}
	if upd.PaymentMethod != nil {
		o.PaymentMethod = *upd.PaymentMethod
	}
	if upd.PaymentRemark != nil {
		o.PaymentRemark = *upd.PaymentRemark
	}
	if upd.PaymentRRN != nil {
		o.PaymentRRN = *upd.PaymentRRN
	}
	if upd.RawMessage != nil {
		o.RawMessage = *upd.RawMessage
	}
	if upd.SMSFingerprint != nil {
		o.SMSFingerprint = *upd.SMSFingerprint
	}
	if upd.PaymentReceived != nil {
		o.PaymentReceived = *upd.PaymentReceived
	}
	if upd.OverpaymentPaisa != nil {
		o.OverpaymentPaisa = *upd.OverpaymentPaisa
	}
	if upd.SuspiciousReason != nil {
		o.SuspiciousReason = *upd.SuspiciousReason
	}
	if upd.AutomationState != nil {
		o.AutomationState = *upd.AutomationState
	}
	if upd.RetryCount != nil {
		o.RetryCount = *upd.RetryCount
	}
	if upd.Notes != nil {
		o.Notes = *upd.Notes
	}
	if upd.QueuedAt != nil {
		t := *upd.QueuedAt
		o.QueuedAt = &t
	}
	if upd.ProcessingStarted != nil {
		t := *upd.ProcessingStarted
		o.ProcessingStarted = &t
	}
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		o.CompletedAt = &t
	}
	if upd.ExpiredAt != nil {
		t := *upd.ExpiredAt
		o.ExpiredAt = &t
	}
	return true, nil
}

func (r orders) RRNExists(_ context.Context, rrn string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.PaymentRRN != "" && o.PaymentRRN == rrn {
			return true, nil
		}
	}
	return false, nil
}

func (r orders) FingerprintExists(_ context.Context, fingerprint string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.SMSFingerprint != "" && o.SMSFingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

// ----- notifications -----

type notifications struct{ s *Store }

func (r notifications) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.notifications {
		if existing.Fingerprint == n.Fingerprint {
			return storage.ErrDuplicate
		}
	}
	if n.ID == "" {
		n.ID = r.s.nextID("sms")
	}
	if n.ParsedAt.IsZero() {
		n.ParsedAt = time.Now().UTC()
	}
	cp := *n
	r.s.notifications[n.ID] = &cp
	return nil
}

func (r notifications) GetByID(_ context.Context, id string) (*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r notifications) FingerprintExists(_ context.Context, fingerprint string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.Fingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func (r notifications) RRNExists(_ context.Context, rrn string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.Used && n.RRN != "" && n.RRN == rrn {
			return true, nil
		}
	}
	return false, nil
}

func (r notifications) MarkUsed(_ context.Context, id, orderID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.Used {
		return false, nil
	}
	now := time.Now().UTC()
	n.Used = true
	n.MatchedOrderID = orderID
	n.MatchedAt = &now
	return true, nil
}

func (r notifications) MarkSuspicious(_ context.Context, id, reason string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.Used || n.Suspicious {
		return false, nil
	}
	n.Suspicious = true
	n.SuspiciousReason = reason
	return true, nil
}

func (r notifications) collect(keep func(*model.Notification) bool, newestFirst bool, limit int) []model.Notification {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sel []*model.Notification
	for _, n := range r.s.notifications {
		if keep(n) {
			sel = append(sel, n)
		}
	}
	sort.Slice(sel, func(i, j int) bool {
		if newestFirst {
			return sel[i].ParsedAt.After(sel[j].ParsedAt)
		}
		return sel[i].ParsedAt.Before(sel[j].ParsedAt)
	})
	if limit > 0 && len(sel) > limit {
		sel = sel[:limit]
	}
	out := make([]model.Notification, len(sel))
	for i, n := range sel {
		out[i] = *n
	}
	return out
}

func (r notifications) List(_ context.Context, limit int) ([]model.Notification, error) {
	return r.collect(func(*model.Notification) bool { return true }, true, limit), nil
}

func (r notifications) ListUnmatched(_ context.Context, limit int) ([]model.Notification, error) {
	return r.collect(func(n *model.Notification) bool { return !n.Used }, true, limit), nil
}

func (r notifications) UnmatchedOlderThan(_ context.Context, cutoff time.Time, limit int) ([]model.Notification, error) {
	return r.collect(func(n *model.Notification) bool {
		return !n.Used && !n.Suspicious && n.ParsedAt.Before(cutoff)
	}, false, limit), nil
}

func (r notifications) FindForAmount(_ context.Context, last3 string, amountPaisa int64, exact bool) (*model.Notification, error) {
	matches := r.collect(func(n *model.Notification) bool {
		if n.Used || n.Last3Digits != last3 || n.AmountPaisa == nil {
			return false
		}
		if exact {
			return *n.AmountPaisa == amountPaisa
		}
		return *n.AmountPaisa >= amountPaisa
	}, true, 1)
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}
	return &matches[0], nil
}

// ----- wallets -----

type wallets struct{ s *Store }

func (r wallets) CreateUser(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u.ID == "" {
		u.ID = r.s.nextID("usr")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r wallets) GetUser(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r wallets) Apply(_ context.Context, wtx *model.WalletTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[wtx.UserID]
	if !ok {
		return storage.ErrNotFound
	}
	newBalance := u.BalancePaisa + wtx.AmountPaisa
	if newBalance < 0 {
		return storage.ErrInsufficientFunds
	}
	wtx.ID = r.s.nextID("wtx")
	wtx.BalanceBefore = u.BalancePaisa
	wtx.BalanceAfter = newBalance
	wtx.CreatedAt = time.Now().UTC()
	u.BalancePaisa = newBalance
	r.s.transactions = append(r.s.transactions, *wtx)
	return nil
}

func (r wallets) Transactions(_ context.Context, userID string, limit int) ([]model.WalletTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.WalletTransaction
	for i := len(r.s.transactions) - 1; i >= 0; i-- {
		if r.s.transactions[i].UserID == userID {
			out = append(out, r.s.transactions[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ----- catalog, accounts -----

type catalog struct{ s *Store }

func (r catalog) GetActive(_ context.Context, id string) (*model.Package, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.packages[id]
	if !ok || !p.Active {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r catalog) ListActive(_ context.Context) ([]model.Package, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Package
	for _, p := range r.s.packages {
		if p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r catalog) ActiveAccount(_ context.Context) (*model.FulfillmentAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Active {
			cp := *a
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r catalog) TouchAccount(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		now := time.Now().UTC()
		a.LastUsed = &now
	}
	return nil
}

// ----- settings -----

type settings struct{ s *Store }

func (r settings) Load(_ context.Context) (*model.Settings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.settings == nil {
		def := model.DefaultSettings()
		r.s.settings = &def
	}
	cp := *r.s.settings
	return &cp, nil
}

func (r settings) Save(_ context.Context, st *model.Settings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *st
	r.s.settings = &cp
	return nil
}
