package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ariefcatur/order-inventory/internal/orders"
)

// body holds the top-level fields merged next to success and message.
type body map[string]any

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, code int, success bool, message string, fields body) {
	out := body{"success": success}
	if message != "" {
		out["message"] = message
	}
	for k, v := range fields {
		out[k] = v
	}
	writeJSON(w, code, out)
}

func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	var (
		stock    *orders.InsufficientStockError
		invalid  *orders.ValidationError
		notFound *orders.NotFoundError
		txErr    *orders.TransactionError
	)
	switch {
	case errors.As(err, &stock):
		respond(w, http.StatusBadRequest, false, stock.Error(), body{"available": stock.Available})
	case errors.As(err, &invalid):
		respond(w, http.StatusBadRequest, false, invalid.Error(), body{"field": invalid.Field})
	case errors.As(err, &notFound):
		respond(w, http.StatusNotFound, false, notFound.Error(), nil)
	case errors.As(err, &txErr):
		logger.Printf("transaction: %v", err)
		respond(w, http.StatusServiceUnavailable, false, "temporarily unavailable, please retry", body{"retryable": txErr.Retryable()})
	default:
		logger.Printf("unhandled: %v", err)
		respond(w, http.StatusInternalServerError, false, "internal server error", nil)
	}
}
