package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/orders"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/redisx"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/stores"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string        `json:"error"`
	From      orders.Status `json:"from,omitempty"`
	To        orders.Status `json:"to,omitempty"`
	Available *int          `json:"available,omitempty"`
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var te *orders.TransitionError
	var se *inventory.StockError
	switch {
	case errors.As(err, &te):
		writeJSON(w, http.StatusConflict, errorBody{Error: te.Error(), From: te.From, To: te.To})
	case errors.As(err, &se):
		writeJSON(w, http.StatusConflict, errorBody{Error: "insufficient stock", Available: &se.Available})
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrUnavailable),
		errors.Is(err, redisx.ErrInFlight):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidProduct),
		errors.Is(err, orders.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, stores.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, inventory.ErrForbidden),
		errors.Is(err, orders.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage timeout, retry"})
	default:
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
