package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"nexstore/internal/parser"
	"nexstore/internal/service"
)

// ReceiveSMSHandler ingests a raw notification; all parsing happens
// server-side.
func ReceiveSMSHandler(rec *service.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		res, err := rec.Ingest(r.Context(), req.Message, "", nil)
		if err != nil {
			slog.Error("sms ingest failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeIngestResult(w, res)
	}
}

// ForwardSMSHandler ingests a notification relayed by the forwarder app,
// which precomputes the fingerprint and may pre-parse fields. The server
// re-parses whatever is missing.
func ForwardSMSHandler(rec *service.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message     string `json:"message"`
			Fingerprint string `json:"fingerprint"`
			AmountPaisa *int64 `json:"amount_paisa"`
			Last3Digits string `json:"last3digits"`
			RRN         string `json:"rrn"`
			Method      string `json:"method"`
			Remark      string `json:"remark"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8192)).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		pre := &parser.Parsed{
			AmountPaisa: req.AmountPaisa,
			Last3Digits: req.Last3Digits,
			RRN:         req.RRN,
			Method:      req.Method,
			Remark:      req.Remark,
		}
		res, err := rec.Ingest(r.Context(), req.Message, req.Fingerprint, pre)
		if err != nil {
			slog.Error("sms forward failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeIngestResult(w, res)
	}
}

func writeIngestResult(w http.ResponseWriter, res *service.IngestResult) {
	switch res.Outcome {
	case service.OutcomeDuplicate, service.OutcomeDuplicateRRN:
		writeJSON(w, http.StatusConflict, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
