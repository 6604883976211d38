package invoices

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultInvoiceTTL      = 15 * time.Minute
	defaultCheckoutBaseURL = "http://localhost:4000"
)

// Config holds runtime configuration for the invoice module.
type Config struct {
	InvoiceTTL      time.Duration
	CheckoutBaseURL string
	CallbackSecret  string
}

// WithDefaults fills unset values.
func (c Config) WithDefaults() Config {
	if c.InvoiceTTL <= 0 {
		c.InvoiceTTL = defaultInvoiceTTL
	}
	c.CheckoutBaseURL = strings.TrimRight(strings.TrimSpace(c.CheckoutBaseURL), "/")
	if c.CheckoutBaseURL == "" {
		c.CheckoutBaseURL = defaultCheckoutBaseURL
	}
	return c
}

// Validate ensures the configuration can sign and verify callbacks.
func (c Config) Validate() error {
	if c.InvoiceTTL <= 0 {
		return fmt.Errorf("invoice ttl must be positive")
	}
	if c.CallbackSecret == "" {
		return fmt.Errorf("invoice callback secret is required")
	}
	return nil
}

// CheckoutURL returns the payer facing checkout page of an invoice.
func (c Config) CheckoutURL(invoiceID string) string {
	return c.CheckoutBaseURL + "/i/" + invoiceID
}
