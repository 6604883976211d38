package models

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound               = errors.New("models: no matching record found")
	ErrInvalidAmount          = errors.New("Please provide an amount greater than 0")
	ErrArchived               = errors.New("Payment Request cannot be paid as it has been archived")
	ErrAlreadySettled         = errors.New("Payment Request has already been settled.")
	ErrExpired                = errors.New("Payment Request has expired")
	ErrCannotEditArchived     = errors.New("You cannot edit an archived payment request.")
	ErrNoCancellableInvoice   = errors.New("No unpaid pending invoice to cancel")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrInvoiceNotCancellable  = errors.New("invoice is not new or already has payments")
	ErrInvoiceClosed          = errors.New("invoice no longer accepts payments")
	ErrInvalidCallbackPayload = errors.New("invalid invoice callback payload")
	ErrInvalidSignature       = errors.New("invalid callback signature")
)

// ValidationError carries per-field messages. The empty field key holds
// messages that apply to the whole record.
type ValidationError struct {
	Fields map[string]string
	cause  error
}

// NewValidationError returns an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field; the first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// AddCause records a sentinel that errors.Is can match.
func (e *ValidationError) AddCause(field string, cause error) {
	e.Add(field, cause.Error())
	if e.cause == nil {
		e.cause = cause
	}
}

// Empty reports whether no messages were recorded.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			parts = append(parts, e.Fields[k])
			continue
		}
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.cause }

// PaymentProcessingError is reported by the invoice subsystem when it refuses
// to create an invoice. The message is safe to show to the payer.
type PaymentProcessingError struct {
	Message string
}

func (e *PaymentProcessingError) Error() string { return e.Message }
