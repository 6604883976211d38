package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"naimuPay/internal/events"
	"naimuPay/internal/models"
)

// PaymentNotification is the signed body posted by the payment provider
// when funds for an invoice arrive.
type PaymentNotification struct {
	InvoiceID     string          `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	ProviderTxnID string          `json:"txn_id"`
	ReceivedAt    *time.Time      `json:"received_at,omitempty"`
}

// Service is the reference invoice subsystem.
type Service struct {
	store  Store
	events Publisher
	logger Logger
	cfg    Config
	now    func() time.Time
}

// NewService constructs the invoice service.
func NewService(store Store, publisher Publisher, logger Logger, cfg Config) *Service {
	return &Service{
		store:  store,
		events: publisher,
		logger: logger,
		cfg:    cfg.WithDefaults(),
		now:    time.Now,
	}
}

// CheckoutURL returns the payer facing checkout page of an invoice.
func (s *Service) CheckoutURL(invoiceID string) string {
	return s.cfg.CheckoutURL(invoiceID)
}

// CreateInvoice opens a new invoice. Refusals are reported as
// *models.PaymentProcessingError.
func (s *Service) CreateInvoice(ctx context.Context, req models.CreateInvoiceRequest) (models.Invoice, error) {
	if !req.Amount.IsPositive() {
		return models.Invoice{}, &models.PaymentProcessingError{Message: "Invoice amount must be greater than 0"}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return models.Invoice{}, &models.PaymentProcessingError{Message: "Invoice currency is required"}
	}

	now := s.now().UTC()
	inv := models.Invoice{
		ID:           uuid.NewString(),
		StoreID:      req.StoreID,
		OrderID:      req.OrderID,
		Status:       models.InvoiceStatusNew,
		Currency:     currency,
		Amount:       req.Amount,
		PaidAmount:   decimal.Zero,
		BuyerEmail:   req.BuyerEmail,
		RedirectURL:  req.RedirectURL,
		InternalTags: append([]string(nil), req.InternalTags...),
		Payments:     []models.InvoicePayment{},
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.InvoiceTTL),
	}
	if err := s.store.Insert(ctx, inv); err != nil {
		return models.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	inv.CheckoutURL = s.cfg.CheckoutURL(inv.ID)

	if s.logger != nil {
		s.logger.Infof("invoice %s created for order %s (%s %s)", inv.ID, inv.OrderID, inv.Amount.String(), inv.Currency)
	}
	s.publish(events.TopicInvoiceCreated, events.InvoiceCodeCreated, events.InvoiceNameCreated, inv)
	return inv, nil
}

// GetInvoice returns a single invoice.
func (s *Service) GetInvoice(ctx context.Context, id string) (models.Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Invoice{}, err
	}
	inv.CheckoutURL = s.cfg.CheckoutURL(inv.ID)
	return inv, nil
}

// ListByTag returns the invoices carrying an internal tag.
func (s *Service) ListByTag(ctx context.Context, tag string) ([]models.Invoice, error) {
	list, err := s.store.ListByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].CheckoutURL = s.cfg.CheckoutURL(list[i].ID)
	}
	return list, nil
}

// InvalidateUnpaidInvoice marks a new invoice without payments invalid.
// Callers announce the change themselves.
func (s *Service) InvalidateUnpaidInvoice(ctx context.Context, id string) error {
	if err := s.store.MarkInvalidIfUnpaid(ctx, id); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Infof("invoice %s marked invalid", id)
	}
	return nil
}

// HandleCallback verifies and applies a provider payment notification.
func (s *Service) HandleCallback(ctx context.Context, body []byte, signature string) (models.Invoice, error) {
	if !VerifyHMAC(body, strings.TrimSpace(signature), s.cfg.CallbackSecret) {
		return models.Invoice{}, models.ErrInvalidSignature
	}
	var n PaymentNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return models.Invoice{}, fmt.Errorf("%w: %v", models.ErrInvalidCallbackPayload, err)
	}
	return s.RecordPayment(ctx, n)
}

// RecordPayment stores a received payment. Repeated notifications for the
// same provider transaction are acknowledged without effect.
func (s *Service) RecordPayment(ctx context.Context, n PaymentNotification) (models.Invoice, error) {
	if n.InvoiceID == "" || n.ProviderTxnID == "" || !n.Amount.IsPositive() {
		return models.Invoice{}, models.ErrInvalidCallbackPayload
	}
	received := s.now().UTC()
	if n.ReceivedAt != nil {
		received = n.ReceivedAt.UTC()
	}

	inv, previous, recorded, err := s.store.AddPayment(ctx, models.InvoicePayment{
		InvoiceID:     n.InvoiceID,
		Amount:        n.Amount,
		ProviderTxnID: n.ProviderTxnID,
		ReceivedAt:    received,
	})
	if err != nil {
		return models.Invoice{}, err
	}
	inv.CheckoutURL = s.cfg.CheckoutURL(inv.ID)
	if !recorded {
		if s.logger != nil {
			s.logger.Infof("invoice %s: duplicate payment notification %s ignored", inv.ID, n.ProviderTxnID)
		}
		return inv, nil
	}

	s.publish(events.TopicInvoicePaymentRecv, events.InvoiceCodeReceivedPayment, events.InvoiceNameReceivedPayment, inv)
	if !previous.IsPaid() && inv.Status.IsPaid() {
		s.publish(events.TopicInvoicePaid, events.InvoiceCodePaidInFull, events.InvoiceNamePaidInFull, inv)
	}
	return inv, nil
}

// ExpireDue expires overdue invoices and returns how many changed.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireDue(ctx, s.now())
	for _, inv := range expired {
		s.publish(events.TopicInvoiceExpired, events.InvoiceCodeExpired, events.InvoiceNameExpired, inv)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return len(expired), fmt.Errorf("expire invoices: %w", err)
	}
	return len(expired), err
}

func (s *Service) publish(topic string, code int, name string, inv models.Invoice) {
	if s.events == nil {
		return
	}
	prID, _ := models.PaymentRequestIDFromTags(inv.InternalTags)
	s.events.Publish(events.InvoiceEvent{
		Topic:            topic,
		InvoiceID:        inv.ID,
		PaymentRequestID: prID,
		Code:             code,
		Name:             name,
		Tags:             inv.InternalTags,
	})
}
