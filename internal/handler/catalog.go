package handler

import (
	"log/slog"
	"net/http"

	"nexstore/internal/storage"
)

func ListPackagesHandler(packages storage.PackageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pkgs, err := packages.ListActive(r.Context())
		if err != nil {
			slog.Error("list packages failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, pkgs)
	}
}
