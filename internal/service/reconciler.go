package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nexstore/internal/alert"
	"nexstore/internal/model"
	"nexstore/internal/money"
	"nexstore/internal/parser"
	"nexstore/internal/storage"
)

var (
	ErrDuplicateEvidence  = errors.New("payment evidence already submitted")
	ErrDuplicateReference = errors.New("reference number already used")
	ErrNotificationUsed   = errors.New("notification already consumed")
	ErrNotMatchable       = errors.New("order is not awaiting payment")
)

// Outcome classifies what happened to one piece of ingested evidence.
type Outcome string

const (
	OutcomeMatched      Outcome = "matched"
	OutcomeUnmatched    Outcome = "unmatched"
	OutcomeSuspicious   Outcome = "suspicious"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeDuplicateRRN Outcome = "duplicate_rrn"
	OutcomeParked       Outcome = "parked"
)

// IngestResult reports the fate of one notification.
type IngestResult struct {
	Outcome          Outcome      `json:"outcome"`
	NotificationID   string       `json:"notification_id,omitempty"`
	OrderID          string       `json:"order_id,omitempty"`
	OrderStatus      model.Status `json:"order_status,omitempty"`
	OverpaymentPaisa int64        `json:"overpayment_paisa,omitempty"`
}

// Reconciler turns raw payment notifications into settled orders: parse,
// reject duplicates, match against open orders, apply the overpayment
// policy, move money. Deduplication always runs before any financial
// effect.
type Reconciler struct {
	orders   storage.OrderStore
	sms      storage.NotificationStore
	wallet   *WalletService
	orderSvc *OrderService
	settings *SettingsService
	alerter  alert.Alerter
}

func NewReconciler(orders storage.OrderStore, sms storage.NotificationStore,
	wallet *WalletService, orderSvc *OrderService, settings *SettingsService,
	alerter alert.Alerter) *Reconciler {
	return &Reconciler{
		orders:   orders,
		sms:      sms,
		wallet:   wallet,
		orderSvc: orderSvc,
		settings: settings,
		alerter:  alerter,
	}
}

// Ingest processes one raw notification. A device forwarder may supply its
// own fingerprint and pre-parsed fields; the server re-parses and fills
// whatever is missing.
func (r *Reconciler) Ingest(ctx context.Context, raw, fingerprint string, pre *parser.Parsed) (*IngestResult, error) {
	if fingerprint == "" {
		fingerprint = parser.Fingerprint(raw)
	}

	parsed := parser.Parse(raw)
	if pre != nil {
		if pre.AmountPaisa != nil {
			parsed.AmountPaisa = pre.AmountPaisa
		}
		if pre.Last3Digits != "" {
			parsed.Last3Digits = pre.Last3Digits
		}
		if pre.RRN != "" {
			parsed.RRN = pre.RRN
		}
		if pre.Method != "" {
			parsed.Method = pre.Method
		}
		if pre.Remark != "" {
			parsed.Remark = pre.Remark
		}
	}

	// Fingerprint replay: exact evidence seen before, nothing to record.
	if dup, err := r.fingerprintSeen(ctx, fingerprint); err != nil {
		return nil, err
	} else if dup {
		slog.Info("duplicate notification rejected", "fingerprint", fingerprint)
		return &IngestResult{Outcome: OutcomeDuplicate}, nil
	}

	n := &model.Notification{
		RawMessage:  raw,
		Fingerprint: fingerprint,
		AmountPaisa: parsed.AmountPaisa,
		Last3Digits: parsed.Last3Digits,
		RRN:         parsed.RRN,
		Method:      parsed.Method,
		Remark:      parsed.Remark,
	}

	// RRN replay: different text carrying an already-consumed reference.
	// The evidence is kept for audit but flagged and never matched.
	if parsed.RRN != "" {
		dup, err := r.rrnSeen(ctx, parsed.RRN)
		if err != nil {
			return nil, err
		}
		if dup {
			if err := r.createNotification(ctx, n); err != nil {
				return nil, err
			}
			if _, err := r.sms.MarkSuspicious(ctx, n.ID, "Duplicate RRN: "+parsed.RRN); err != nil {
				return nil, fmt.Errorf("flag duplicate rrn: %w", err)
			}
			slog.Warn("duplicate reference number", "notification_id", n.ID, "rrn", parsed.RRN)
			return &IngestResult{Outcome: OutcomeDuplicateRRN, NotificationID: n.ID}, nil
		}
	}

	if err := r.createNotification(ctx, n); err != nil {
		if errors.Is(err, ErrDuplicateEvidence) {
			return &IngestResult{Outcome: OutcomeDuplicate}, nil
		}
		return nil, err
	}
	var amountPaisa any
	if parsed.AmountPaisa != nil {
		amountPaisa = *parsed.AmountPaisa
	}
	slog.Info("notification stored",
		"notification_id", n.ID,
		"amount_paisa", amountPaisa,
		"last3", parsed.Last3Digits,
		"rrn", parsed.RRN)

	st, err := r.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !st.AutoMatchEnabled {
		return &IngestResult{Outcome: OutcomeParked, NotificationID: n.ID}, nil
	}

	if parsed.AmountPaisa == nil || parsed.Last3Digits == "" {
		return &IngestResult{Outcome: OutcomeUnmatched, NotificationID: n.ID}, nil
	}

	order, err := r.match(ctx, parsed.Last3Digits, *parsed.AmountPaisa)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return &IngestResult{Outcome: OutcomeUnmatched, NotificationID: n.ID}, nil
	}

	return r.settle(ctx, n, order, *parsed.AmountPaisa, &st)
}

// match picks the open order this payment most plausibly settles: smallest
// overpayment first, oldest order on ties. Returns nil when nothing fits.
func (r *Reconciler) match(ctx context.Context, last3 string, amountPaisa int64) (*model.Order, error) {
	candidates, err := r.orders.MatchCandidates(ctx, last3, amountPaisa, 50)
	if err != nil {
		return nil, fmt.Errorf("match candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := &candidates[0]
	bestOver := amountPaisa - best.PaymentRequired
	for i := 1; i < len(candidates); i++ {
		over := amountPaisa - candidates[i].PaymentRequired
		if over < bestOver {
			best = &candidates[i]
			bestOver = over
		}
	}
	return best, nil
}

// settle applies the overpayment policy and, when the payment is accepted,
// records the evidence on the order, credits any surplus and hands the
// order to fulfillment.
func (r *Reconciler) settle(ctx context.Context, n *model.Notification, order *model.Order, paidPaisa int64, st *model.Settings) (*IngestResult, error) {
	surplus := paidPaisa - order.PaymentRequired

	if order.PaymentRequired > 0 && float64(paidPaisa) > float64(order.PaymentRequired)*st.MaxOverpaymentRatio {
		reason := fmt.Sprintf("Payment Rs.%.2f exceeds %.1fx of required Rs.%.2f",
			money.PaisaToRupees(paidPaisa), st.MaxOverpaymentRatio, money.PaisaToRupees(order.PaymentRequired))
		return r.flagSuspicious(ctx, n, order, paidPaisa, reason)
	}
	if surplus > st.MaxAutoCreditPaisa {
		reason := fmt.Sprintf("Overpayment Rs.%.2f exceeds auto-credit ceiling Rs.%.2f",
			money.PaisaToRupees(surplus), money.PaisaToRupees(st.MaxAutoCreditPaisa))
		return r.flagSuspicious(ctx, n, order, paidPaisa, reason)
	}

	won, err := r.orders.Transition(ctx, order.ID,
		[]model.Status{model.StatusPendingPayment, model.StatusManualReview},
		model.StatusPaid,
		storage.OrderUpdate{
			PaymentReceived:  &paidPaisa,
			OverpaymentPaisa: &surplus,
			PaymentLast3:     ptr(n.Last3Digits),
			PaymentRRN:       ptr(n.RRN),
			RawMessage:       ptr(n.RawMessage),
			SMSFingerprint:   ptr(n.Fingerprint),
		})
	if err != nil {
		return nil, fmt.Errorf("accept payment: %w", err)
	}
	if !won {
		// Someone settled the order between match and accept. The evidence
		// stays unused for the next sweep or a manual match.
		return &IngestResult{Outcome: OutcomeUnmatched, NotificationID: n.ID}, nil
	}

	if _, err := r.sms.MarkUsed(ctx, n.ID, order.ID); err != nil {
		return nil, fmt.Errorf("mark notification used: %w", err)
	}

	if surplus > 0 {
		if _, err := r.wallet.Credit(ctx, order.UserID, surplus, model.TxOverpaymentCredit, order.ID,
			fmt.Sprintf("Overpayment credit for order %s", order.ID)); err != nil {
			return nil, err
		}
	}
	if order.OrderType == model.OrderTypeWalletLoad {
		if _, err := r.wallet.Credit(ctx, order.UserID, order.LoadAmountPaisa, model.TxWalletLoad, order.ID,
			fmt.Sprintf("Wallet load for order %s", order.ID)); err != nil {
			return nil, err
		}
	}

	if err := r.orderSvc.Enqueue(ctx, order.ID); err != nil {
		return nil, err
	}

	updated, err := r.orderSvc.Get(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("payment matched",
		"order_id", order.ID,
		"notification_id", n.ID,
		"paid_paisa", paidPaisa,
		"overpayment_paisa", surplus,
		"status", updated.Status)
	return &IngestResult{
		Outcome:          OutcomeMatched,
		NotificationID:   n.ID,
		OrderID:          order.ID,
		OrderStatus:      updated.Status,
		OverpaymentPaisa: surplus,
	}, nil
}

func (r *Reconciler) flagSuspicious(ctx context.Context, n *model.Notification, order *model.Order, paidPaisa int64, reason string) (*IngestResult, error) {
	won, err := r.orders.Transition(ctx, order.ID,
		[]model.Status{model.StatusPendingPayment, model.StatusManualReview},
		model.StatusSuspicious,
		storage.OrderUpdate{
			PaymentReceived:  &paidPaisa,
			PaymentLast3:     ptr(n.Last3Digits),
			PaymentRRN:       ptr(n.RRN),
			RawMessage:       ptr(n.RawMessage),
			SMSFingerprint:   ptr(n.Fingerprint),
			SuspiciousReason: &reason,
		})
	if err != nil {
		return nil, fmt.Errorf("flag suspicious: %w", err)
	}
	if !won {
		return &IngestResult{Outcome: OutcomeUnmatched, NotificationID: n.ID}, nil
	}
	if _, err := r.sms.MarkUsed(ctx, n.ID, order.ID); err != nil {
		return nil, fmt.Errorf("mark notification used: %w", err)
	}

	slog.Warn("suspicious payment held", "order_id", order.ID, "notification_id", n.ID, "reason", reason)
	if err := r.alerter.Alert(ctx, alert.Event{
		Severity: alert.SeverityWarning,
		Kind:     "suspicious_payment",
		Message:  reason,
		OrderID:  order.ID,
		At:       time.Now().UTC(),
	}); err != nil {
		slog.Error("alert publish failed", "error", err)
	}
	return &IngestResult{
		Outcome:        OutcomeSuspicious,
		NotificationID: n.ID,
		OrderID:        order.ID,
		OrderStatus:    model.StatusSuspicious,
	}, nil
}

// VerifyPayment is the user-initiated fallback when a payment arrived but
// auto-matching missed it: the user reports what they sent and from which
// account, and the reconciler hunts for the matching unused notification.
func (r *Reconciler) VerifyPayment(ctx context.Context, userID, orderID string, sentPaisa int64, last3, method, remark string) (*IngestResult, error) {
	order, err := r.orderSvc.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case model.StatusPendingPayment, model.StatusManualReview:
	default:
		return nil, ErrNotMatchable
	}

	// Record what the user claims before any decision, so manual review
	// has the full picture even when nothing matches.
	upd := storage.OrderUpdate{PaymentLast3: &last3}
	if method != "" {
		upd.PaymentMethod = &method
	}
	if remark != "" {
		upd.PaymentRemark = &remark
	}
	if _, err := r.orders.Transition(ctx, orderID,
		[]model.Status{order.Status}, order.Status, upd); err != nil {
		return nil, fmt.Errorf("record claim: %w", err)
	}
	order.PaymentLast3 = last3

	n, err := r.sms.FindForAmount(ctx, last3, order.PaymentRequired, false)
	if errors.Is(err, storage.ErrNotFound) && sentPaisa > 0 {
		n, err = r.sms.FindForAmount(ctx, last3, sentPaisa, true)
	}
	if errors.Is(err, storage.ErrNotFound) {
		if _, err := r.orders.Transition(ctx, orderID,
			[]model.Status{model.StatusPendingPayment}, model.StatusManualReview,
			storage.OrderUpdate{}); err != nil {
			return nil, fmt.Errorf("park for review: %w", err)
		}
		slog.Info("verify found no notification", "order_id", orderID, "last3", last3)
		return &IngestResult{Outcome: OutcomeUnmatched, OrderID: orderID, OrderStatus: model.StatusManualReview}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}

	// A reference already attached to some order means this evidence was
	// spent once; the order is held rather than paid twice.
	if n.RRN != "" {
		dup, err := r.orders.RRNExists(ctx, n.RRN)
		if err != nil {
			return nil, fmt.Errorf("check rrn: %w", err)
		}
		if dup {
			if _, err := r.orders.Transition(ctx, orderID,
				[]model.Status{model.StatusPendingPayment, model.StatusManualReview},
				model.StatusDuplicatePayment,
				storage.OrderUpdate{SuspiciousReason: ptr("Duplicate RRN: " + n.RRN)}); err != nil {
				return nil, fmt.Errorf("mark duplicate payment: %w", err)
			}
			slog.Warn("verify hit duplicate reference", "order_id", orderID, "rrn", n.RRN)
			return &IngestResult{Outcome: OutcomeDuplicateRRN, OrderID: orderID, OrderStatus: model.StatusDuplicatePayment}, nil
		}
	}

	st, err := r.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	paid := order.PaymentRequired
	if n.AmountPaisa != nil {
		paid = *n.AmountPaisa
	}
	return r.settle(ctx, n, order, paid, &st)
}

// ManualMatch lets an operator attach a specific notification to a
// specific order, with the same policy checks as the automatic path.
func (r *Reconciler) ManualMatch(ctx context.Context, notificationID, orderID string) (*IngestResult, error) {
	n, err := r.sms.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("notification %s: %w", notificationID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n.Used {
		return nil, ErrNotificationUsed
	}
	order, err := r.orderSvc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case model.StatusPendingPayment, model.StatusManualReview:
	default:
		return nil, ErrNotMatchable
	}

	// Evidence already attached to some order must never settle a second
	// one, even when the notification itself is still unused.
	if n.RRN != "" {
		dup, err := r.orders.RRNExists(ctx, n.RRN)
		if err != nil {
			return nil, fmt.Errorf("check rrn: %w", err)
		}
		if dup {
			return nil, ErrDuplicateReference
		}
	}
	if dup, err := r.orders.FingerprintExists(ctx, n.Fingerprint); err != nil {
		return nil, fmt.Errorf("check fingerprint: %w", err)
	} else if dup {
		return nil, ErrDuplicateEvidence
	}

	st, err := r.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	paid := order.PaymentRequired
	if n.AmountPaisa != nil {
		paid = *n.AmountPaisa
	}
	res, err := r.settle(ctx, n, order, paid, &st)
	if err != nil {
		return nil, err
	}
	slog.Info("manual match applied", "notification_id", notificationID, "order_id", orderID, "outcome", res.Outcome)
	return res, nil
}

func (r *Reconciler) fingerprintSeen(ctx context.Context, fingerprint string) (bool, error) {
	if seen, err := r.sms.FingerprintExists(ctx, fingerprint); err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	} else if seen {
		return true, nil
	}
	seen, err := r.orders.FingerprintExists(ctx, fingerprint)
	if err != nil {
		return false, fmt.Errorf("check order fingerprint: %w", err)
	}
	return seen, nil
}

func (r *Reconciler) rrnSeen(ctx context.Context, rrn string) (bool, error) {
	if seen, err := r.orders.RRNExists(ctx, rrn); err != nil {
		return false, fmt.Errorf("check rrn: %w", err)
	} else if seen {
		return true, nil
	}
	seen, err := r.sms.RRNExists(ctx, rrn)
	if err != nil {
		return false, fmt.Errorf("check notification rrn: %w", err)
	}
	return seen, nil
}

func (r *Reconciler) createNotification(ctx context.Context, n *model.Notification) error {
	if err := r.sms.Create(ctx, n); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrDuplicateEvidence
		}
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}
