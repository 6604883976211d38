package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the state of an invoice in the invoice subsystem.
type InvoiceStatus string

const (
	InvoiceStatusNew       InvoiceStatus = "new"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusConfirmed InvoiceStatus = "confirmed"
	InvoiceStatusComplete  InvoiceStatus = "complete"
	InvoiceStatusExpired   InvoiceStatus = "expired"
	InvoiceStatusInvalid   InvoiceStatus = "invalid"
)

// IsPaid reports whether the status means the invoice was paid in full.
func (s InvoiceStatus) IsPaid() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusConfirmed, InvoiceStatusComplete:
		return true
	}
	return false
}

// Invoice represents a payment attempt owned by the invoice subsystem.
type Invoice struct {
	ID           string           `json:"id"`
	StoreID      string           `json:"store_id"`
	OrderID      string           `json:"order_id"`
	Status       InvoiceStatus    `json:"status"`
	Currency     string           `json:"currency"`
	Amount       decimal.Decimal  `json:"amount"`
	PaidAmount   decimal.Decimal  `json:"paid_amount"`
	BuyerEmail   string           `json:"buyer_email,omitempty"`
	RedirectURL  string           `json:"redirect_url,omitempty"`
	CheckoutURL  string           `json:"checkout_url,omitempty"`
	InternalTags []string         `json:"-"`
	Payments     []InvoicePayment `json:"payments"`
	CreatedAt    time.Time        `json:"created_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

// InvoicePayment is a single payment received for an invoice.
type InvoicePayment struct {
	ID            int64           `json:"id"`
	InvoiceID     string          `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	ProviderTxnID string          `json:"provider_txn_id"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// CreateInvoiceRequest describes an invoice to be created.
type CreateInvoiceRequest struct {
	StoreID           string
	OrderID           string
	Currency          string
	Amount            decimal.Decimal
	BuyerEmail        string
	RedirectURL       string
	FullNotifications bool
	InternalTags      []string
}
