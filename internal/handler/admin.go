package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"nexstore/internal/model"
	"nexstore/internal/service"
	"nexstore/internal/storage"
)

func GetSettingsHandler(settings *service.SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := settings.Get(r.Context())
		if err != nil {
			slog.Error("get settings failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func UpdateSettingsHandler(settings *service.SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch service.SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		st, err := settings.Update(r.Context(), patch)
		if err != nil {
			if errors.Is(err, service.ErrInvalidSetting) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			slog.Error("update settings failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// ReviewQueueHandler returns everything waiting on a human: held orders
// plus unmatched notifications.
func ReviewQueueHandler(orderSvc *service.OrderService, sms storage.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := orderSvc.ReviewQueue(r.Context(), 200)
		if err != nil {
			slog.Error("review queue failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		unmatched, err := sms.ListUnmatched(r.Context(), 200)
		if err != nil {
			slog.Error("list unmatched failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"orders":                  orders,
			"unmatched_notifications": unmatched,
		})
	}
}

func RetryOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := orderSvc.Retry(r.Context(), chi.URLParam(r, "orderID"))
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func MarkSuccessHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Notes string `json:"notes"`
		}
		// Body is optional for this endpoint.
		_ = json.NewDecoder(r.Body).Decode(&req)

		order, err := orderSvc.MarkSuccess(r.Context(), chi.URLParam(r, "orderID"), req.Notes)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func ManualMatchHandler(rec *service.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			NotificationID string `json:"notification_id"`
			OrderID        string `json:"order_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.NotificationID == "" || req.OrderID == "" {
			http.Error(w, "notification_id and order_id are required", http.StatusBadRequest)
			return
		}

		res, err := rec.ManualMatch(r.Context(), req.NotificationID, req.OrderID)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				http.Error(w, "notification not found", http.StatusNotFound)
			case errors.Is(err, service.ErrNotificationUsed):
				http.Error(w, "notification already consumed", http.StatusConflict)
			case errors.Is(err, service.ErrDuplicateReference),
				errors.Is(err, service.ErrDuplicateEvidence),
				errors.Is(err, storage.ErrDuplicate):
				http.Error(w, "payment evidence already attached to another order", http.StatusConflict)
			case errors.Is(err, service.ErrNotMatchable):
				http.Error(w, "order is not awaiting payment", http.StatusConflict)
			default:
				writeOrderError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func ListNotificationsHandler(sms storage.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := sms.List(r.Context(), 200)
		if err != nil {
			slog.Error("list notifications failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// InputNotificationHandler lets an operator paste a notification text that
// never reached the device pipeline. Same ingestion path as the device.
func InputNotificationHandler(rec *service.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		res, err := rec.Ingest(r.Context(), req.Message, "", nil)
		if err != nil {
			slog.Error("manual ingest failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeIngestResult(w, res)
	}
}

// AdjustWalletHandler applies a signed admin adjustment to a user's
// balance.
func AdjustWalletHandler(walletSvc *service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID      string `json:"user_id"`
			AmountPaisa int64  `json:"amount_paisa"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == "" || req.AmountPaisa == 0 {
			http.Error(w, "user_id and a non-zero amount_paisa are required", http.StatusBadRequest)
			return
		}

		var (
			tx  *model.WalletTransaction
			err error
		)
		if req.AmountPaisa > 0 {
			tx, err = walletSvc.Credit(r.Context(), req.UserID, req.AmountPaisa,
				model.TxAdminAdjustment, "", req.Description)
		} else {
			tx, err = walletSvc.Debit(r.Context(), req.UserID, -req.AmountPaisa,
				model.TxAdminAdjustment, "", req.Description)
		}
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUserNotFound):
				http.Error(w, "user not found", http.StatusNotFound)
			case errors.Is(err, service.ErrInsufficientFunds):
				http.Error(w, "insufficient balance", http.StatusConflict)
			default:
				slog.Error("wallet adjustment failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}
