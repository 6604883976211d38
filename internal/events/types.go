package events

import "naimuPay/internal/models"

// Topics published by the payment request service and the invoice subsystem.
const (
	TopicPaymentRequestUpdated = "payment_request_updated"
	TopicInvoiceCreated        = "invoice_created"
	TopicInvoicePaymentRecv    = "invoice_payment_received"
	TopicInvoicePaid           = "invoice_paid"
	TopicInvoiceExpired        = "invoice_expired"
	TopicInvoiceInvalidated    = "invoice_invalidated"
)

// Invoice event codes.
const (
	InvoiceCodeCreated         = 1001
	InvoiceCodeReceivedPayment = 1002
	InvoiceCodePaidInFull      = 1003
	InvoiceCodeExpired         = 1004
	InvoiceCodeMarkedInvalid   = 1008
)

// Invoice event names.
const (
	InvoiceNameCreated         = "invoice_created"
	InvoiceNameReceivedPayment = "invoice_receivedPayment"
	InvoiceNamePaidInFull      = "invoice_paidInFull"
	InvoiceNameExpired         = "invoice_expired"
	InvoiceNameMarkedInvalid   = "invoice_markedInvalid"
)

// PaymentRequestUpdated announces a saved payment request.
type PaymentRequestUpdated struct {
	PaymentRequestID string                `json:"payment_request_id"`
	Record           models.PaymentRequest `json:"record"`
}

func (PaymentRequestUpdated) EventType() string { return TopicPaymentRequestUpdated }

// InvoiceEvent announces an invoice state change.
type InvoiceEvent struct {
	Topic            string   `json:"-"`
	InvoiceID        string   `json:"invoice_id"`
	PaymentRequestID string   `json:"payment_request_id,omitempty"`
	Code             int      `json:"code"`
	Name             string   `json:"name"`
	Tags             []string `json:"-"`
}

func (e InvoiceEvent) EventType() string { return e.Topic }

// RelatedPaymentRequest returns the payment request the invoice belongs to.
func (e InvoiceEvent) RelatedPaymentRequest() (string, bool) {
	if e.PaymentRequestID != "" {
		return e.PaymentRequestID, true
	}
	return models.PaymentRequestIDFromTags(e.Tags)
}

// InvoiceInvalidated builds the event published when an unpaid invoice is
// marked invalid on behalf of a payment request.
func InvoiceInvalidated(invoiceID, paymentRequestID string) InvoiceEvent {
	return InvoiceEvent{
		Topic:            TopicInvoiceInvalidated,
		InvoiceID:        invoiceID,
		PaymentRequestID: paymentRequestID,
		Code:             InvoiceCodeMarkedInvalid,
		Name:             InvoiceNameMarkedInvalid,
	}
}
