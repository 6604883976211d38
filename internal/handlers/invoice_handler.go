package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"naimuPay/internal/models"
)

// InvoiceService is the reference invoice subsystem as seen over HTTP.
type InvoiceService interface {
	HandleCallback(ctx context.Context, body []byte, signature string) (models.Invoice, error)
	GetInvoice(ctx context.Context, id string) (models.Invoice, error)
}

type InvoiceHandler struct {
	Service  InvoiceService
	ErrorLog *log.Logger
}

func NewInvoiceHandler(s InvoiceService, errorLog *log.Logger) *InvoiceHandler {
	return &InvoiceHandler{Service: s, ErrorLog: errorLog}
}

// Callback handles POST /invoices/callback signed with X-Signature.
func (h *InvoiceHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	inv, err := h.Service.HandleCallback(ctx, body, r.Header.Get("X-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, inv)
	case errors.Is(err, models.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrInvalidCallbackPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvoiceClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, h.ErrorLog, err)
	}
}

// Get handles GET /invoices/:id.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	inv, err := h.Service.GetInvoice(ctx, getParam(r, "id"))
	if err != nil {
		respondError(w, h.ErrorLog, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
