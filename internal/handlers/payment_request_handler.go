package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"naimuPay/internal/invoices"
	"naimuPay/internal/models"
)

// PaymentRequestService is the lifecycle engine as seen by the HTTP layer.
type PaymentRequestService interface {
	GetView(ctx context.Context, id string, storeScope *string) (models.PaymentRequestView, error)
	Pay(ctx context.Context, id string, amount *decimal.Decimal) (string, error)
	Load(ctx context.Context, id, userID string) (models.PaymentRequestEdit, error)
	Save(ctx context.Context, userID string, in models.PaymentRequestInput) (models.PaymentRequest, error)
	ToggleArchive(ctx context.Context, id, userID string) (models.PaymentRequest, string, error)
	CancelPendingInvoice(ctx context.Context, id, userID string) error
	List(ctx context.Context, q models.PaymentRequestQuery) (models.PaymentRequestPage, error)
	Clone(ctx context.Context, id, userID string) (models.PaymentRequestEdit, error)
}

type PaymentRequestHandler struct {
	Service         PaymentRequestService
	CheckoutURL func(invoiceID string) string
	ErrorLog        *log.Logger
}

// NewPaymentRequestHandler builds the handler. checkoutURL maps an invoice id
// to its checkout page; nil falls back to the invoice defaults.
func NewPaymentRequestHandler(s PaymentRequestService, checkoutURL func(invoiceID string) string, errorLog *log.Logger) *PaymentRequestHandler {
	if checkoutURL == nil {
		checkoutURL = invoices.Config{}.WithDefaults().CheckoutURL
	}
	return &PaymentRequestHandler{Service: s, CheckoutURL: checkoutURL, ErrorLog: errorLog}
}

func viewPath(id string) string {
	return "/payment-requests/" + id
}

func (h *PaymentRequestHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

// List handles GET /payment-requests.
func (h *PaymentRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	skip, count, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeArchived, err := queryBool(r, "includeArchived", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	page, err := h.Service.List(ctx, models.PaymentRequestQuery{UserID: userID, Skip: skip, Count: count, IncludeArchived: includeArchived})
	if err != nil {
		respondError(w, h.ErrorLog, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// EditForm handles GET /payment-requests/edit[/:id].
func (h *PaymentRequestHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	edit, err := h.Service.Load(ctx, getParam(r, "id"), userID)
	if err != nil {
		respondError(w, h.ErrorLog, err)
		return
	}
	writeJSON(w, http.StatusOK, edit)
}

// Save handles POST /payment-requests/edit[/:id].
func (h *PaymentRequestHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var in models.PaymentRequestInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if id := getParam(r, "id"); id != "" {
		in.ID = id
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	creating := in.ID == ""
	saved, err := h.Service.Save(ctx, userID, in)
	if err != nil {
		respondError(w, h.ErrorLog, err)
		return
	}
	status := http.StatusOK
	if creating {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"record":  saved,
		"message": "Saved",
	})
}

// View handles GET /payment-requests/:id for anonymous payers.
func (h *PaymentRequestHandler) View(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	view, err := h.Service.GetView(ctx, getParam(r, "id"), nil)
	if err != nil {
		respondError(w, h.ErrorLog, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Pay handles GET /payment-requests/:id/pay.
func (h *PaymentRequestHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id := getParam(r, "id")
	redirect, err := queryBool(r, "redirectToInvoice", true)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	var amount *decimal.Decimal
	if raw := strings.TrimSpace(r.URL.Query().Get("amount")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			writeText(w, http.StatusBadRequest, models.ErrInvalidAmount.Error())
			return
		}
		amount = &d
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	invoiceID, err := h.Service.Pay(ctx, id, amount)
	if err != nil {
		if redirect && (errors.Is(err, models.ErrArchived) || errors.Is(err, models.ErrAlreadySettled) || errors.Is(err, models.ErrExpired)) {
			http.Redirect(w, r, viewPath(id), http.StatusFound)
			return
		}
		respondError(w, h.ErrorLog, err)
		return
	}

	if redirect {
		http.Redirect(w, r, h.CheckoutURL(invoiceID), http.StatusFound)
		return
	}
	writeText(w, http.StatusOK, invoiceID)
}

// Cancel handles GET /payment-requests/:id/cancel.
func (h *PaymentRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := getParam(r, "id")
	redirect, err := queryBool(r, "redirect", true)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	if err := h.Service.CancelPendingInvoice(ctx, id, userID); err != nil {
		respondError(w, h.ErrorLog, err)
		return
	}
	if redirect {
		http.Redirect(w, r, viewPath(id), http.StatusFound)
		return
	}
	writeText(w, http.StatusOK, "Payment cancelled")
}

// Clone handles GET /payment-requests/:id/clone.
func (h *PaymentRequestHandler) Clone(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	edit, err := h.Service.Clone(ctx, getParam(r, "id"), userID)
	if err != nil {
		respondError(w, h.ErrorLog, err)
		return
	}
	writeJSON(w, http.StatusOK, edit)
}

// ToggleArchive handles GET /payment-requests/:id/archive.
func (h *PaymentRequestHandler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	saved, message, err := h.Service.ToggleArchive(ctx, getParam(r, "id"), userID)
	if err != nil {
		respondError(w, h.ErrorLog, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":  saved,
		"message": message,
	})
}
