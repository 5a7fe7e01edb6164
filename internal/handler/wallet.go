package handler

import (
	"log/slog"
	"net/http"

	"nexstore/internal/money"
	"nexstore/internal/mw"
	"nexstore/internal/service"
)

func GetWalletHandler(walletSvc *service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value(mw.UserCtxKey).(string)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		balance, err := walletSvc.Balance(r.Context(), userID)
		if err != nil {
			slog.Error("get balance failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"balance_paisa":  balance,
			"balance_rupees": money.PaisaToRupees(balance),
		})
	}
}

func ListTransactionsHandler(walletSvc *service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(mw.UserCtxKey).(string)

		txs, err := walletSvc.Transactions(r.Context(), userID, 100)
		if err != nil {
			slog.Error("list transactions failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if len(txs) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}
