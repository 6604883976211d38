package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"naimuPay/internal/models"
)

type ctxKey string

const userIDKey ctxKey = "owner_user_id"

// WithUserID stores the authenticated store owner in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated store owner.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

// isRejection reports errors that explain to the payer or owner why an
// action was refused.
func isRejection(err error) bool {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrArchived),
		errors.Is(err, models.ErrAlreadySettled),
		errors.Is(err, models.ErrExpired),
		errors.Is(err, models.ErrNoCancellableInvoice):
		return true
	}
	var ppe *models.PaymentProcessingError
	return errors.As(err, &ppe)
}

// respondError maps service errors onto HTTP responses. Rejections are
// plain text, validation failures carry the per-field messages.
func respondError(w http.ResponseWriter, errorLog *log.Logger, err error) {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"errors": verr.Fields})
	case isRejection(err):
		writeText(w, http.StatusBadRequest, err.Error())
	default:
		if errorLog != nil {
			errorLog.Output(2, err.Error())
		}
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
