package invoices

import (
	"context"
	"time"

	"naimuPay/internal/events"
	"naimuPay/internal/models"
)

// Logger is the minimal logging interface required by the invoice module.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Publisher delivers invoice events to interested subscribers.
type Publisher interface {
	Publish(events.Event)
}

// Store persists invoices, their tags and received payments.
type Store interface {
	Insert(ctx context.Context, inv models.Invoice) error
	Get(ctx context.Context, id string) (models.Invoice, error)
	ListByTag(ctx context.Context, tag string) ([]models.Invoice, error)
	// MarkInvalidIfUnpaid moves a new invoice without payments to invalid.
	MarkInvalidIfUnpaid(ctx context.Context, id string) error
	// AddPayment records a payment. A repeated provider transaction id is
	// ignored and reported with recorded=false.
	AddPayment(ctx context.Context, p models.InvoicePayment) (inv models.Invoice, previous models.InvoiceStatus, recorded bool, err error)
	// ExpireDue marks new invoices whose expiry has passed as expired and
	// returns them.
	ExpireDue(ctx context.Context, now time.Time) ([]models.Invoice, error)
}
