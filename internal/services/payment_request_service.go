package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"naimuPay/internal/events"
	"naimuPay/internal/models"
)

// PaymentRequestStore persists payment request records.
type PaymentRequestStore interface {
	FindByID(ctx context.Context, id string, userID *string) (models.PaymentRequest, error)
	CreateOrUpdate(ctx context.Context, pr models.PaymentRequest) (models.PaymentRequest, error)
	Find(ctx context.Context, q models.PaymentRequestQuery) (models.PaymentRequestPage, error)
}

// StoreDirectory answers which stores a user owns.
type StoreDirectory interface {
	IsOwner(ctx context.Context, storeID, userID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.Store, error)
}

// InvoiceService is the part of the invoice subsystem payment requests use.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req models.CreateInvoiceRequest) (models.Invoice, error)
	ListByTag(ctx context.Context, tag string) ([]models.Invoice, error)
	InvalidateUnpaidInvoice(ctx context.Context, id string) error
}

// EventPublisher announces state changes.
type EventPublisher interface {
	Publish(events.Event)
}

const (
	archivedMessage   = "The payment request has been archived and will no longer appear in the payment request list by default again."
	unarchivedMessage = "The payment request has been unarchived and will appear in the payment request list by default."
)

// PaymentRequestService decides whether a payment request is payable, what
// is still owed on it and which invoice currently represents a payment
// attempt. It keeps no state between calls.
type PaymentRequestService struct {
	Store      PaymentRequestStore
	Stores     StoreDirectory
	Invoices   InvoiceService
	Currencies CurrencyResolver
	Events     EventPublisher
	// Locker is optional. Without it two concurrent Pay calls may both
	// create an invoice.
	Locker  PayLocker
	Logger  *slog.Logger
	BaseURL string
	Now     func() time.Time
}

func (s *PaymentRequestService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PaymentRequestService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// GetView returns the derived state of a request. When storeScope is set the
// request must belong to that store.
func (s *PaymentRequestService) GetView(ctx context.Context, id string, storeScope *string) (models.PaymentRequestView, error) {
	pr, err := s.Store.FindByID(ctx, id, nil)
	if err != nil {
		return models.PaymentRequestView{}, err
	}
	if storeScope != nil && *storeScope != pr.StoreID {
		return models.PaymentRequestView{}, models.ErrNotFound
	}
	return s.view(ctx, pr)
}

func (s *PaymentRequestService) view(ctx context.Context, pr models.PaymentRequest) (models.PaymentRequestView, error) {
	return s.viewAt(ctx, pr, s.now())
}

func (s *PaymentRequestService) viewAt(ctx context.Context, pr models.PaymentRequest, now time.Time) (models.PaymentRequestView, error) {
	invoices, err := s.Invoices.ListByTag(ctx, models.PaymentRequestInternalTag(pr.ID))
	if err != nil {
		return models.PaymentRequestView{}, fmt.Errorf("list invoices of payment request %s: %w", pr.ID, err)
	}
	return ComputeView(pr, invoices, now), nil
}

// Pay returns the invoice the payer should settle, reusing the oldest
// invoice still awaiting payment or creating a new one for the amount due.
// amount is honoured only when the request allows custom amounts.
func (s *PaymentRequestService) Pay(ctx context.Context, id string, amount *decimal.Decimal) (string, error) {
	if amount != nil && !amount.IsPositive() {
		return "", models.ErrInvalidAmount
	}
	pr, err := s.Store.FindByID(ctx, id, nil)
	if err != nil {
		return "", err
	}

	if s.Locker != nil {
		unlock, err := s.Locker.Lock(ctx, "payment-request:pay:"+pr.ID)
		switch {
		case err == nil:
			defer unlock()
		case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			// Another Pay holds the lock past our deadline.
			return "", fmt.Errorf("lock payment request %s: %w", pr.ID, err)
		default:
			s.logger().Warn("payment request lock unavailable, continuing without it", "payment_request_id", pr.ID, "error", err)
		}
	}

	now := s.now()
	v, err := s.viewAt(ctx, pr, now)
	if err != nil {
		return "", err
	}
	switch {
	case v.IsArchived:
		return "", models.ErrArchived
	case v.IsSettled:
		return "", models.ErrAlreadySettled
	case v.IsExpired:
		return "", models.ErrExpired
	}

	if inv, ok := firstPendingInvoice(v, now); ok {
		return inv.ID, nil
	}

	target := v.AmountDue
	if pr.Blob.AllowCustomPaymentAmounts && amount != nil {
		target = decimal.Min(v.AmountDue, *amount)
	}

	inv, err := s.Invoices.CreateInvoice(ctx, models.CreateInvoiceRequest{
		StoreID:           pr.StoreID,
		OrderID:           models.PaymentRequestOrderID(pr.ID),
		Currency:          pr.Blob.Currency,
		Amount:            target,
		BuyerEmail:        pr.Blob.Email,
		RedirectURL:       s.viewURL(pr.ID),
		FullNotifications: true,
		InternalTags:      []string{models.PaymentRequestInternalTag(pr.ID)},
	})
	if err != nil {
		var ppe *models.PaymentProcessingError
		if errors.As(err, &ppe) {
			return "", ppe
		}
		return "", fmt.Errorf("create invoice for payment request %s: %w", pr.ID, err)
	}
	s.logger().Info("invoice created for payment request", "payment_request_id", pr.ID, "invoice_id", inv.ID, "amount", target.String())
	return inv.ID, nil
}

func (s *PaymentRequestService) viewURL(id string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/payment-requests/" + id
}

// Load returns the edit model. An empty id yields a blank form.
func (s *PaymentRequestService) Load(ctx context.Context, id, userID string) (models.PaymentRequestEdit, error) {
	stores, err := s.Stores.ListByUser(ctx, userID)
	if err != nil {
		return models.PaymentRequestEdit{}, err
	}
	edit := models.PaymentRequestEdit{Stores: stores}
	if id == "" {
		if len(stores) > 0 {
			edit.Request.StoreID = stores[0].ID
		}
		return edit, nil
	}
	pr, err := s.Store.FindByID(ctx, id, &userID)
	if err != nil {
		return models.PaymentRequestEdit{}, err
	}
	edit.Request = models.InputFromPaymentRequest(pr)
	return edit, nil
}

// Save creates or updates a request on behalf of the store owner.
func (s *PaymentRequestService) Save(ctx context.Context, userID string, in models.PaymentRequestInput) (models.PaymentRequest, error) {
	return s.save(ctx, userID, in, true)
}

func (s *PaymentRequestService) save(ctx context.Context, userID string, in models.PaymentRequestInput, enforceArchived bool) (models.PaymentRequest, error) {
	var existing *models.PaymentRequest
	if in.ID != "" {
		pr, err := s.Store.FindByID(ctx, in.ID, &userID)
		if err != nil {
			return models.PaymentRequest{}, err
		}
		existing = &pr
	}

	verr := models.NewValidationError()
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if data, ok := s.Currencies.GetCurrencyData(currency); !ok {
		verr.Add("currency", "Invalid currency")
	} else {
		currency = data.Code
	}
	if in.Amount.IsNegative() {
		verr.Add("amount", "Amount must be greater than or equal to 0")
	}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "Title is required")
	}
	if in.StoreID == "" {
		verr.Add("store_id", "Store is required")
	} else if owned, err := s.Stores.IsOwner(ctx, in.StoreID, userID); err != nil {
		return models.PaymentRequest{}, err
	} else if !owned {
		verr.Add("store_id", "Store not found")
	}
	if enforceArchived && existing != nil && existing.Archived && in.Archived {
		verr.AddCause("", models.ErrCannotEditArchived)
	}
	if !verr.Empty() {
		return models.PaymentRequest{}, verr
	}

	record := models.PaymentRequest{Created: s.now()}
	if existing != nil {
		record = *existing
	}
	record.StoreID = in.StoreID
	record.Archived = in.Archived
	record.Blob = models.PaymentRequestBlob{
		Version:                   models.PaymentRequestBlobVersion,
		Title:                     strings.TrimSpace(in.Title),
		Description:               in.Description,
		Email:                     strings.TrimSpace(in.Email),
		Amount:                    in.Amount,
		Currency:                  currency,
		AllowCustomPaymentAmounts: in.AllowCustomPaymentAmounts,
		EmbeddedCSS:               in.EmbeddedCSS,
		CustomCSSLink:             in.CustomCSSLink,
	}
	if in.ExpiryDate != nil {
		expiry := in.ExpiryDate.UTC()
		record.Blob.ExpiryDate = &expiry
	}

	saved, err := s.Store.CreateOrUpdate(ctx, record)
	if err != nil {
		return models.PaymentRequest{}, fmt.Errorf("save payment request: %w", err)
	}
	s.publish(events.PaymentRequestUpdated{PaymentRequestID: saved.ID, Record: saved})
	return saved, nil
}

// ToggleArchive flips the archived flag and returns a message for the owner.
// Archiving leaves open invoices untouched.
func (s *PaymentRequestService) ToggleArchive(ctx context.Context, id, userID string) (models.PaymentRequest, string, error) {
	pr, err := s.Store.FindByID(ctx, id, &userID)
	if err != nil {
		return models.PaymentRequest{}, "", err
	}
	in := models.InputFromPaymentRequest(pr)
	in.Archived = !pr.Archived
	saved, err := s.save(ctx, userID, in, false)
	if err != nil {
		return models.PaymentRequest{}, "", err
	}
	if saved.Archived {
		return saved, archivedMessage, nil
	}
	return saved, unarchivedMessage, nil
}

// CancelPendingInvoice invalidates the single unpaid invoice of a request.
func (s *PaymentRequestService) CancelPendingInvoice(ctx context.Context, id, userID string) error {
	pr, err := s.Store.FindByID(ctx, id, &userID)
	if err != nil {
		return err
	}
	invoices, err := s.Invoices.ListByTag(ctx, models.PaymentRequestInternalTag(pr.ID))
	if err != nil {
		return fmt.Errorf("list invoices of payment request %s: %w", pr.ID, err)
	}

	now := s.now()
	var pending []models.Invoice
	for _, inv := range invoices {
		if isOpenInvoice(inv, now) && len(inv.Payments) == 0 {
			pending = append(pending, inv)
		}
	}
	if len(pending) != 1 {
		return models.ErrNoCancellableInvoice
	}

	target := pending[0]
	if err := s.Invoices.InvalidateUnpaidInvoice(ctx, target.ID); err != nil {
		if errors.Is(err, models.ErrInvoiceNotCancellable) || errors.Is(err, models.ErrInvoiceNotFound) {
			return models.ErrNoCancellableInvoice
		}
		return fmt.Errorf("invalidate invoice %s: %w", target.ID, err)
	}
	s.publish(events.InvoiceInvalidated(target.ID, pr.ID))
	return nil
}

// List returns a page of the owner's payment requests.
func (s *PaymentRequestService) List(ctx context.Context, q models.PaymentRequestQuery) (models.PaymentRequestPage, error) {
	return s.Store.Find(ctx, q.Normalize())
}

// Clone returns an unsaved copy of a request.
func (s *PaymentRequestService) Clone(ctx context.Context, id, userID string) (models.PaymentRequestEdit, error) {
	edit, err := s.Load(ctx, id, userID)
	if err != nil {
		return models.PaymentRequestEdit{}, err
	}
	edit.Request.ID = ""
	edit.Request.Archived = false
	edit.Request.Title = "Clone of " + edit.Request.Title
	return edit, nil
}

func (s *PaymentRequestService) publish(e events.Event) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(e)
}
