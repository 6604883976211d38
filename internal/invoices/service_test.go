package invoices

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"naimuPay/internal/events"
	"naimuPay/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	invoices map[string]models.Invoice
	txns     map[string]bool
}

func newMemStore() *memStore {
	return &memStore{invoices: map[string]models.Invoice{}, txns: map[string]bool{}}
}

func (m *memStore) Insert(_ context.Context, inv models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = inv
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return models.Invoice{}, models.ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *memStore) ListByTag(_ context.Context, tag string) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Invoice
	for _, inv := range m.invoices {
		for _, t := range inv.InternalTags {
			if t == tag {
				out = append(out, inv)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) MarkInvalidIfUnpaid(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return models.ErrInvoiceNotFound
	}
	if inv.Status != models.InvoiceStatusNew || len(inv.Payments) > 0 {
		return models.ErrInvoiceNotCancellable
	}
	inv.Status = models.InvoiceStatusInvalid
	m.invoices[id] = inv
	return nil
}

func (m *memStore) AddPayment(_ context.Context, p models.InvoicePayment) (models.Invoice, models.InvoiceStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[p.InvoiceID]
	if !ok {
		return models.Invoice{}, "", false, models.ErrInvoiceNotFound
	}
	previous := inv.Status
	if !acceptsPayments(previous) {
		return models.Invoice{}, previous, false, models.ErrInvoiceClosed
	}
	if m.txns[p.ProviderTxnID] {
		return inv, previous, false, nil
	}
	m.txns[p.ProviderTxnID] = true
	p.ID = int64(len(m.txns))
	inv.Payments = append(inv.Payments, p)
	inv.PaidAmount = inv.PaidAmount.Add(p.Amount)
	if previous == models.InvoiceStatusNew && inv.PaidAmount.GreaterThanOrEqual(inv.Amount) {
		inv.Status = models.InvoiceStatusPaid
	}
	m.invoices[inv.ID] = inv
	return inv, previous, true, nil
}

func (m *memStore) ExpireDue(_ context.Context, now time.Time) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Invoice
	for id, inv := range m.invoices {
		if inv.Status == models.InvoiceStatusNew && !now.Before(inv.ExpiresAt) {
			inv.Status = models.InvoiceStatusExpired
			m.invoices[id] = inv
			out = append(out, inv)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.InvoiceEvent
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ie, ok := e.(events.InvoiceEvent); ok {
		p.events = append(p.events, ie)
	}
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

func newTestService() (*Service, *memStore, *recordingPublisher) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewService(store, pub, nil, Config{InvoiceTTL: 10 * time.Minute, CheckoutBaseURL: "https://pay.example/", CallbackSecret: "s3cret"})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store, pub
}

func TestCreateInvoice(t *testing.T) {
	svc, _, pub := newTestService()

	inv, err := svc.CreateInvoice(context.Background(), models.CreateInvoiceRequest{
		StoreID:      "store1",
		OrderID:      models.PaymentRequestOrderID("pr1"),
		Currency:     "usd",
		Amount:       decimal.NewFromInt(40),
		InternalTags: []string{models.PaymentRequestInternalTag("pr1")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.Status != models.InvoiceStatusNew || inv.Currency != "USD" {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	if inv.CheckoutURL != "https://pay.example/i/"+inv.ID {
		t.Fatalf("unexpected checkout url %s", inv.CheckoutURL)
	}
	if !inv.ExpiresAt.Equal(inv.CreatedAt.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", inv.ExpiresAt)
	}
	if len(pub.events) != 1 || pub.events[0].Code != events.InvoiceCodeCreated || pub.events[0].PaymentRequestID != "pr1" {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestCreateInvoiceRefusals(t *testing.T) {
	svc, _, _ := newTestService()
	cases := []models.CreateInvoiceRequest{
		{Currency: "USD", Amount: decimal.Zero},
		{Currency: "USD", Amount: decimal.NewFromInt(-1)},
		{Currency: " ", Amount: decimal.NewFromInt(1)},
	}
	for _, req := range cases {
		_, err := svc.CreateInvoice(context.Background(), req)
		var ppe *models.PaymentProcessingError
		if !errors.As(err, &ppe) {
			t.Fatalf("expected PaymentProcessingError for %+v, got %v", req, err)
		}
	}
}

func TestRecordPaymentTransitionsToPaid(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, models.CreateInvoiceRequest{Currency: "USD", Amount: decimal.NewFromInt(10), InternalTags: []string{models.PaymentRequestInternalTag("pr1")}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.RecordPayment(ctx, PaymentNotification{InvoiceID: inv.ID, Amount: decimal.NewFromInt(4), ProviderTxnID: "tx1"})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if got.Status != models.InvoiceStatusNew || !got.PaidAmount.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("unexpected partial state %+v", got)
	}

	got, err = svc.RecordPayment(ctx, PaymentNotification{InvoiceID: inv.ID, Amount: decimal.NewFromInt(6), ProviderTxnID: "tx2"})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if got.Status != models.InvoiceStatusPaid {
		t.Fatalf("expected paid, got %s", got.Status)
	}

	// a replayed notification changes nothing
	got, err = svc.RecordPayment(ctx, PaymentNotification{InvoiceID: inv.ID, Amount: decimal.NewFromInt(6), ProviderTxnID: "tx2"})
	if err != nil || !got.PaidAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("duplicate changed state: %+v %v", got, err)
	}

	want := []string{events.InvoiceNameCreated, events.InvoiceNameReceivedPayment, events.InvoiceNameReceivedPayment, events.InvoiceNamePaidInFull}
	names := pub.names()
	if len(names) != len(want) {
		t.Fatalf("unexpected events %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestRecordPaymentRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.RecordPayment(context.Background(), PaymentNotification{InvoiceID: "x", Amount: decimal.Zero, ProviderTxnID: "t"})
	if !errors.Is(err, models.ErrInvalidCallbackPayload) {
		t.Fatalf("expected ErrInvalidCallbackPayload, got %v", err)
	}
	_, err = svc.RecordPayment(context.Background(), PaymentNotification{InvoiceID: "missing", Amount: decimal.NewFromInt(1), ProviderTxnID: "t"})
	if !errors.Is(err, models.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestHandleCallbackVerifiesSignature(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, models.CreateInvoiceRequest{Currency: "USD", Amount: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatal(err)
	}
	body := []byte(`{"invoice_id":"` + inv.ID + `","amount":"5","txn_id":"abc"}`)

	if _, err := svc.HandleCallback(ctx, body, "deadbeef"); !errors.Is(err, models.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	got, err := svc.HandleCallback(ctx, body, Sign(body, "s3cret"))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if got.Status != models.InvoiceStatusPaid {
		t.Fatalf("expected paid, got %s", got.Status)
	}

	bad := []byte(`{not json`)
	if _, err := svc.HandleCallback(ctx, bad, Sign(bad, "s3cret")); !errors.Is(err, models.ErrInvalidCallbackPayload) {
		t.Fatalf("expected ErrInvalidCallbackPayload, got %v", err)
	}
}

func TestInvalidateUnpaidInvoice(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	open, _ := svc.CreateInvoice(ctx, models.CreateInvoiceRequest{Currency: "USD", Amount: decimal.NewFromInt(5)})
	partial, _ := svc.CreateInvoice(ctx, models.CreateInvoiceRequest{Currency: "USD", Amount: decimal.NewFromInt(5)})
	if _, err := svc.RecordPayment(ctx, PaymentNotification{InvoiceID: partial.ID, Amount: decimal.NewFromInt(1), ProviderTxnID: "p"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.InvalidateUnpaidInvoice(ctx, open.ID); err != nil {
		t.Fatalf("InvalidateUnpaidInvoice: %v", err)
	}
	if got, _ := store.Get(ctx, open.ID); got.Status != models.InvoiceStatusInvalid {
		t.Fatalf("expected invalid, got %s", got.Status)
	}
	if err := svc.InvalidateUnpaidInvoice(ctx, partial.ID); !errors.Is(err, models.ErrInvoiceNotCancellable) {
		t.Fatalf("expected ErrInvoiceNotCancellable, got %v", err)
	}
	if err := svc.InvalidateUnpaidInvoice(ctx, open.ID); !errors.Is(err, models.ErrInvoiceNotCancellable) {
		t.Fatalf("expected second invalidation to fail, got %v", err)
	}
	if _, err := svc.RecordPayment(ctx, PaymentNotification{InvoiceID: open.ID, Amount: decimal.NewFromInt(1), ProviderTxnID: "late"}); !errors.Is(err, models.ErrInvoiceClosed) {
		t.Fatalf("expected ErrInvoiceClosed, got %v", err)
	}
}

func TestExpireDue(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()
	inv, _ := svc.CreateInvoice(ctx, models.CreateInvoiceRequest{Currency: "USD", Amount: decimal.NewFromInt(5)})

	n, err := svc.ExpireDue(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing expired, got %d %v", n, err)
	}

	svc.now = func() time.Time { return inv.ExpiresAt }
	n, err = svc.ExpireDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one expired, got %d %v", n, err)
	}
	names := pub.names()
	if names[len(names)-1] != events.InvoiceNameExpired {
		t.Fatalf("expected expired event, got %v", names)
	}
	got, _ := svc.GetInvoice(ctx, inv.ID)
	if got.Status != models.InvoiceStatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.InvoiceStatus
		ok       bool
	}{
		{models.InvoiceStatusNew, models.InvoiceStatusPaid, true},
		{models.InvoiceStatusNew, models.InvoiceStatusInvalid, true},
		{models.InvoiceStatusPaid, models.InvoiceStatusNew, false},
		{models.InvoiceStatusExpired, models.InvoiceStatusPaid, false},
		{models.InvoiceStatusInvalid, models.InvoiceStatusInvalid, true},
		{models.InvoiceStatusConfirmed, models.InvoiceStatusComplete, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("CanTransition(%s, %s) = %v", tc.from, tc.to, got)
		}
	}
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte("payload")
	sig := Sign(body, "k")
	if !VerifyHMAC(body, sig, "k") {
		t.Fatal("expected valid signature")
	}
	if VerifyHMAC(body, sig, "other") || VerifyHMAC(body, "zz", "k") || VerifyHMAC(body, sig, "") {
		t.Fatal("expected invalid signature")
	}
}
