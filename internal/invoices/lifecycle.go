package invoices

import (
	"errors"
	"fmt"

	"naimuPay/internal/models"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid invoice status transition")

var transitions = map[models.InvoiceStatus]map[models.InvoiceStatus]struct{}{
	models.InvoiceStatusNew: {
		models.InvoiceStatusPaid:    {},
		models.InvoiceStatusExpired: {},
		models.InvoiceStatusInvalid: {},
	},
	models.InvoiceStatusPaid: {
		models.InvoiceStatusConfirmed: {},
		models.InvoiceStatusInvalid:   {},
	},
	models.InvoiceStatusConfirmed: {
		models.InvoiceStatusComplete: {},
		models.InvoiceStatusInvalid:  {},
	},
}

// CanTransition returns true when an invoice may move from current to next.
func CanTransition(current, next models.InvoiceStatus) bool {
	if current == next {
		return true
	}
	allowed, ok := transitions[current]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

// acceptsPayments reports whether payments may still be recorded.
func acceptsPayments(status models.InvoiceStatus) bool {
	return status == models.InvoiceStatusNew || status.IsPaid()
}

func transitionError(from, to models.InvoiceStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
