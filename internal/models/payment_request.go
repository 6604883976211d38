package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequestBlobVersion is the current layout of PaymentRequestBlob.
const PaymentRequestBlobVersion = 1

const (
	paymentRequestTagPrefix     = "PAYMENT_REQUEST_"
	paymentRequestOrderIDPrefix = "PAY_REQUEST_"
)

// PaymentRequestBlob holds the mutable business fields of a payment request.
// It is stored as a single JSON document; fields added later must decode to
// a usable zero value.
type PaymentRequestBlob struct {
	Version                   int             `json:"version"`
	Title                     string          `json:"title"`
	Description               string          `json:"description,omitempty"`
	Email                     string          `json:"email,omitempty"`
	Amount                    decimal.Decimal `json:"amount"`
	Currency                  string          `json:"currency"`
	ExpiryDate                *time.Time      `json:"expiry_date,omitempty"`
	AllowCustomPaymentAmounts bool            `json:"allow_custom_payment_amounts"`
	EmbeddedCSS               string          `json:"embedded_css,omitempty"`
	CustomCSSLink             string          `json:"custom_css_link,omitempty"`
}

// PaymentRequest is the persisted payment request record.
type PaymentRequest struct {
	ID       string             `json:"id"`
	StoreID  string             `json:"store_id"`
	Created  time.Time          `json:"created"`
	Archived bool               `json:"archived"`
	Blob     PaymentRequestBlob `json:"blob"`
}

// PaymentRequestInput is the editable form of a payment request.
type PaymentRequestInput struct {
	ID                        string          `json:"id,omitempty"`
	StoreID                   string          `json:"store_id"`
	Archived                  bool            `json:"archived"`
	Title                     string          `json:"title"`
	Description               string          `json:"description"`
	Email                     string          `json:"email"`
	Amount                    decimal.Decimal `json:"amount"`
	Currency                  string          `json:"currency"`
	ExpiryDate                *time.Time      `json:"expiry_date,omitempty"`
	AllowCustomPaymentAmounts bool            `json:"allow_custom_payment_amounts"`
	EmbeddedCSS               string          `json:"embedded_css"`
	CustomCSSLink             string          `json:"custom_css_link"`
}

// InputFromPaymentRequest copies a stored record into its editable form.
func InputFromPaymentRequest(pr PaymentRequest) PaymentRequestInput {
	return PaymentRequestInput{
		ID:                        pr.ID,
		StoreID:                   pr.StoreID,
		Archived:                  pr.Archived,
		Title:                     pr.Blob.Title,
		Description:               pr.Blob.Description,
		Email:                     pr.Blob.Email,
		Amount:                    pr.Blob.Amount,
		Currency:                  pr.Blob.Currency,
		ExpiryDate:                pr.Blob.ExpiryDate,
		AllowCustomPaymentAmounts: pr.Blob.AllowCustomPaymentAmounts,
		EmbeddedCSS:               pr.Blob.EmbeddedCSS,
		CustomCSSLink:             pr.Blob.CustomCSSLink,
	}
}

// PaymentRequestView is the derived, read-only state of a payment request.
type PaymentRequestView struct {
	ID                        string          `json:"id"`
	StoreID                   string          `json:"store_id"`
	Title                     string          `json:"title"`
	Description               string          `json:"description,omitempty"`
	Email                     string          `json:"email,omitempty"`
	Amount                    decimal.Decimal `json:"amount"`
	Currency                  string          `json:"currency"`
	ExpiryDate                *time.Time      `json:"expiry_date,omitempty"`
	AllowCustomPaymentAmounts bool            `json:"allow_custom_payment_amounts"`
	EmbeddedCSS               string          `json:"embedded_css,omitempty"`
	CustomCSSLink             string          `json:"custom_css_link,omitempty"`
	Created                   time.Time       `json:"created"`

	AmountDue                 decimal.Decimal `json:"amount_due"`
	AmountCollected           decimal.Decimal `json:"amount_collected"`
	IsArchived                bool            `json:"archived"`
	IsExpired                 bool            `json:"expired"`
	IsSettled                 bool            `json:"settled"`
	Status                    string          `json:"status"`
	AnyPendingInvoice         bool            `json:"any_pending_invoice"`
	PendingInvoiceHasPayments bool            `json:"pending_invoice_has_payments"`
	Invoices                  []Invoice       `json:"invoices"`
}

// Payment request display statuses.
const (
	PaymentRequestStatusPending   = "pending"
	PaymentRequestStatusSettled   = "settled"
	PaymentRequestStatusExpired   = "expired"
	PaymentRequestStatusArchived  = "archived"
	defaultPaymentRequestPageSize = 50
)

// PaymentRequestQuery filters the owner listing.
type PaymentRequestQuery struct {
	UserID          string
	Skip            int
	Count           int
	IncludeArchived bool
}

// Normalize applies listing defaults.
func (q PaymentRequestQuery) Normalize() PaymentRequestQuery {
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Count <= 0 {
		q.Count = defaultPaymentRequestPageSize
	}
	return q
}

// PaymentRequestPage is one page of the owner listing.
type PaymentRequestPage struct {
	Items []PaymentRequest `json:"items"`
	Total int              `json:"total"`
	Skip  int              `json:"skip"`
	Count int              `json:"count"`
}

// Store is a merchant store that owns payment requests.
type Store struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerUserID string `json:"owner_user_id"`
}

// PaymentRequestInternalTag is the invoice tag linking an invoice to the
// payment request it was created for. Invoice stores index this value.
func PaymentRequestInternalTag(id string) string {
	return paymentRequestTagPrefix + id
}

// PaymentRequestOrderID is the order id given to invoices of a payment request.
func PaymentRequestOrderID(id string) string {
	return paymentRequestOrderIDPrefix + id
}

// PaymentRequestIDFromTags returns the payment request referenced by the
// first internal tag carrying the payment request prefix.
func PaymentRequestIDFromTags(tags []string) (string, bool) {
	for _, tag := range tags {
		if id, ok := strings.CutPrefix(tag, paymentRequestTagPrefix); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// PaymentRequestEdit is the edit screen model: the form plus the stores the
// caller may assign the request to.
type PaymentRequestEdit struct {
	Request PaymentRequestInput `json:"request"`
	Stores  []Store             `json:"stores"`
}
