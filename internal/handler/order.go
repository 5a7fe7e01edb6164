package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nexstore/internal/mw"
	"nexstore/internal/service"
)

func CreateOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value(mw.UserCtxKey).(string)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req struct {
			PlayerUID string `json:"player_uid"`
			PackageID string `json:"package_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		order, err := orderSvc.CreateProductOrder(r.Context(), userID, req.PlayerUID, req.PackageID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidPlayerUID):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, service.ErrPackageNotFound):
				http.Error(w, "package not found", http.StatusNotFound)
			case errors.Is(err, service.ErrUserBlocked):
				http.Error(w, "account blocked", http.StatusForbidden)
			case errors.Is(err, service.ErrUserNotFound):
				http.Error(w, "user not found", http.StatusNotFound)
			default:
				slog.Error("order create failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}

func CreateWalletLoadHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value(mw.UserCtxKey).(string)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req struct {
			AmountPaisa int64 `json:"amount_paisa"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		order, err := orderSvc.CreateWalletLoad(r.Context(), userID, req.AmountPaisa)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrLoadTooSmall):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, service.ErrUserBlocked):
				http.Error(w, "account blocked", http.StatusForbidden)
			case errors.Is(err, service.ErrUserNotFound):
				http.Error(w, "user not found", http.StatusNotFound)
			default:
				slog.Error("wallet load create failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}

func ListOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(mw.UserCtxKey).(string)

		orders, err := orderSvc.ListByUser(r.Context(), userID, 100)
		if err != nil {
			slog.Error("list orders failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func GetOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(mw.UserCtxKey).(string)

		order, err := orderSvc.GetForUser(r.Context(), userID, chi.URLParam(r, "orderID"))
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func UpdateUIDHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(mw.UserCtxKey).(string)

		var req struct {
			PlayerUID string `json:"player_uid"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		order, err := orderSvc.UpdatePlayerUID(r.Context(), userID, chi.URLParam(r, "orderID"), req.PlayerUID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidPlayerUID):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			default:
				writeOrderError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// VerifyPaymentHandler handles the user's "I already paid" claim.
func VerifyPaymentHandler(rec *service.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(mw.UserCtxKey).(string)

		var req struct {
			SentAmountPaisa int64  `json:"sent_amount_paisa"`
			Last3Digits     string `json:"last3digits"`
			Method          string `json:"method"`
			Remark          string `json:"remark"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.Last3Digits) != 3 {
			http.Error(w, "last3digits must be exactly 3 digits", http.StatusUnprocessableEntity)
			return
		}

		res, err := rec.VerifyPayment(r.Context(), userID, chi.URLParam(r, "orderID"),
			req.SentAmountPaisa, req.Last3Digits, req.Method, req.Remark)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotMatchable):
				http.Error(w, "order is not awaiting payment", http.StatusConflict)
			default:
				writeOrderError(w, err)
			}
			return
		}
		writeIngestResult(w, res)
	}
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, service.ErrNotOrderOwner):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrOrderNotEditable):
		http.Error(w, "order cannot be modified in its current status", http.StatusConflict)
	default:
		slog.Error("order request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
