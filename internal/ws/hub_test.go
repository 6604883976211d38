package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bmizerany/pat"
	"github.com/gorilla/websocket"

	"naimuPay/internal/events"
	"naimuPay/internal/models"
)

func dialViewer(t *testing.T, hub *PaymentRequestHub, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/payment-requests/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Viewers(id) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestHubPushesBusEventsToViewers(t *testing.T) {
	hub := NewPaymentRequestHub(nil)
	bus := events.NewBus(nil, 8)
	defer bus.Close()
	stop := hub.Listen(bus)
	defer stop()

	m := pat.New()
	m.Get("/ws/payment-requests/:id", http.HandlerFunc(hub.ServeWS))
	srv := httptest.NewServer(m)
	defer srv.Close()

	conn := dialViewer(t, hub, srv, "pr1")
	other := dialViewer(t, hub, srv, "pr2")

	bus.Publish(events.InvoiceInvalidated("inv1", "pr1"))
	msg := readMessage(t, conn)
	if msg.Type != events.TopicInvoiceInvalidated || msg.InvoiceID != "inv1" || msg.Code != events.InvoiceCodeMarkedInvalid {
		t.Fatalf("unexpected message %+v", msg)
	}

	rec := models.PaymentRequest{ID: "pr2", StoreID: "store1"}
	bus.Publish(events.PaymentRequestUpdated{PaymentRequestID: "pr2", Record: rec})
	msg = readMessage(t, other)
	if msg.Type != events.TopicPaymentRequestUpdated || msg.Record == nil || msg.Record.StoreID != "store1" {
		t.Fatalf("unexpected message %+v", msg)
	}

	// invoice events resolve the request through the internal tag
	bus.Publish(events.InvoiceEvent{
		Topic:     events.TopicInvoicePaid,
		InvoiceID: "inv2",
		Code:      events.InvoiceCodePaidInFull,
		Name:      events.InvoiceNamePaidInFull,
		Tags:      []string{models.PaymentRequestInternalTag("pr2")},
	})
	msg = readMessage(t, other)
	if msg.PaymentRequestID != "pr2" || msg.InvoiceID != "inv2" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestHubDeliversInvoiceEventsInPublishOrder(t *testing.T) {
	hub := NewPaymentRequestHub(nil)
	bus := events.NewBus(nil, 16)
	defer bus.Close()
	stop := hub.Listen(bus)
	defer stop()

	m := pat.New()
	m.Get("/ws/payment-requests/:id", http.HandlerFunc(hub.ServeWS))
	srv := httptest.NewServer(m)
	defer srv.Close()

	conn := dialViewer(t, hub, srv, "pr1")
	tags := []string{models.PaymentRequestInternalTag("pr1")}
	sequence := []struct {
		topic string
		code  int
	}{
		{events.TopicInvoiceCreated, events.InvoiceCodeCreated},
		{events.TopicInvoicePaymentRecv, events.InvoiceCodeReceivedPayment},
		{events.TopicInvoicePaid, events.InvoiceCodePaidInFull},
	}
	for _, ev := range sequence {
		bus.Publish(events.InvoiceEvent{Topic: ev.topic, InvoiceID: "inv1", Code: ev.code, Tags: tags})
	}
	for _, ev := range sequence {
		msg := readMessage(t, conn)
		if msg.Type != ev.topic {
			t.Fatalf("expected %s, got %s", ev.topic, msg.Type)
		}
	}
}

func TestHubRemovesClosedViewers(t *testing.T) {
	hub := NewPaymentRequestHub(nil)
	m := pat.New()
	m.Get("/ws/payment-requests/:id", http.HandlerFunc(hub.ServeWS))
	srv := httptest.NewServer(m)
	defer srv.Close()

	conn := dialViewer(t, hub, srv, "pr1")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Viewers("pr1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer not removed after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubAnswersPing(t *testing.T) {
	hub := NewPaymentRequestHub(nil)
	m := pat.New()
	m.Get("/ws/payment-requests/:id", http.HandlerFunc(hub.ServeWS))
	srv := httptest.NewServer(m)
	defer srv.Close()

	conn := dialViewer(t, hub, srv, "pr1")
	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil || string(data) != "pong" {
		t.Fatalf("expected pong, got %q %v", data, err)
	}
}
