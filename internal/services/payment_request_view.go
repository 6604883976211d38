package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"naimuPay/internal/models"
)

// settledAmount is what an invoice contributes towards the request total.
// Invalid invoices contribute nothing; paid invoices that report no received
// amount count their full amount.
func settledAmount(inv models.Invoice) decimal.Decimal {
	if inv.Status == models.InvoiceStatusInvalid {
		return decimal.Zero
	}
	if inv.PaidAmount.IsPositive() {
		return inv.PaidAmount
	}
	if inv.Status.IsPaid() {
		return inv.Amount
	}
	return decimal.Zero
}

// ComputeView derives the state of a payment request from its record and
// the invoices linked to it. It does not modify its arguments.
func ComputeView(pr models.PaymentRequest, invoices []models.Invoice, now time.Time) models.PaymentRequestView {
	sorted := make([]models.Invoice, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	collected := decimal.Zero
	for _, inv := range sorted {
		collected = collected.Add(settledAmount(inv))
	}
	due := pr.Blob.Amount.Sub(collected)
	if due.IsNegative() {
		due = decimal.Zero
	}

	v := models.PaymentRequestView{
		ID:                        pr.ID,
		StoreID:                   pr.StoreID,
		Title:                     pr.Blob.Title,
		Description:               pr.Blob.Description,
		Email:                     pr.Blob.Email,
		Amount:                    pr.Blob.Amount,
		Currency:                  pr.Blob.Currency,
		ExpiryDate:                pr.Blob.ExpiryDate,
		AllowCustomPaymentAmounts: pr.Blob.AllowCustomPaymentAmounts,
		EmbeddedCSS:               pr.Blob.EmbeddedCSS,
		CustomCSSLink:             pr.Blob.CustomCSSLink,
		Created:                   pr.Created,
		AmountDue:                 due,
		AmountCollected:           collected,
		IsArchived:                pr.Archived,
		IsExpired:                 pr.Blob.ExpiryDate != nil && !now.Before(*pr.Blob.ExpiryDate),
		IsSettled:                 !due.IsPositive(),
		Invoices:                  sorted,
	}

	for _, inv := range sorted {
		if isOpenInvoice(inv, now) {
			v.AnyPendingInvoice = true
			v.PendingInvoiceHasPayments = len(inv.Payments) > 0
			break
		}
	}

	switch {
	case v.IsArchived:
		v.Status = models.PaymentRequestStatusArchived
	case v.IsSettled:
		v.Status = models.PaymentRequestStatusSettled
	case v.IsExpired:
		v.Status = models.PaymentRequestStatusExpired
	default:
		v.Status = models.PaymentRequestStatusPending
	}
	return v
}

// isOpenInvoice reports whether an invoice still awaits payment: it is new
// and its payment window has not closed. A zero ExpiresAt never closes.
func isOpenInvoice(inv models.Invoice, now time.Time) bool {
	if inv.Status != models.InvoiceStatusNew {
		return false
	}
	return inv.ExpiresAt.IsZero() || now.Before(inv.ExpiresAt)
}

// firstPendingInvoice returns the oldest invoice still awaiting payment.
func firstPendingInvoice(v models.PaymentRequestView, now time.Time) (models.Invoice, bool) {
	for _, inv := range v.Invoices {
		if isOpenInvoice(inv, now) {
			return inv, true
		}
	}
	return models.Invoice{}, false
}
