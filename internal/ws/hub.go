package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"naimuPay/internal/events"
	"naimuPay/internal/models"
)

const (
	writeWait  = 20 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Logger defines minimal logging interface required by the hub.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Subscriber is the part of the event bus the hub listens on.
type Subscriber interface {
	Subscribe(topic, name string, handler events.Handler) func()
}

// Message is pushed to every viewer of a payment request.
type Message struct {
	Type             string                 `json:"type"`
	PaymentRequestID string                 `json:"payment_request_id"`
	InvoiceID        string                 `json:"invoice_id,omitempty"`
	Code             int                    `json:"code,omitempty"`
	Name             string                 `json:"name,omitempty"`
	Record           *models.PaymentRequest `json:"record,omitempty"`
}

type viewer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// PaymentRequestHub keeps websocket viewers of payment requests and pushes
// them changes published on the bus.
type PaymentRequestHub struct {
	logger   Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	viewers map[string]map[*viewer]struct{}
}

// NewPaymentRequestHub constructs the hub.
func NewPaymentRequestHub(logger Logger) *PaymentRequestHub {
	return &PaymentRequestHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		viewers: make(map[string]map[*viewer]struct{}),
	}
}

// Listen subscribes the hub to the bus with a single subscription, so
// viewers get events in publish order. The returned function unsubscribes.
func (h *PaymentRequestHub) Listen(bus Subscriber) func() {
	return bus.Subscribe(events.TopicAll, "ws-hub", h.handle)
}

func (h *PaymentRequestHub) handle(e events.Event) {
	switch ev := e.(type) {
	case events.PaymentRequestUpdated:
		rec := ev.Record
		h.Push(ev.PaymentRequestID, Message{Type: ev.EventType(), PaymentRequestID: ev.PaymentRequestID, Record: &rec})
	case events.InvoiceEvent:
		prID, ok := ev.RelatedPaymentRequest()
		if !ok {
			return
		}
		h.Push(prID, Message{Type: ev.EventType(), PaymentRequestID: prID, InvoiceID: ev.InvoiceID, Code: ev.Code, Name: ev.Name})
	}
}

// ServeWS upgrades a viewer of the payment request named by the ":id" param.
func (h *PaymentRequestHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get(":id"))
	if id == "" {
		http.Error(w, "missing payment request id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("payment request %s ws upgrade failed: %v", id, err)
		}
		return
	}

	v := &viewer{conn: conn}
	h.mu.Lock()
	set, ok := h.viewers[id]
	if !ok {
		set = make(map[*viewer]struct{})
		h.viewers[id] = set
	}
	set[v] = struct{}{}
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Infof("payment request %s viewer connected", id)
	}

	go h.pingLoop(id, v)
	go h.readLoop(id, v)
}

// Viewers returns the number of open connections for a payment request.
func (h *PaymentRequestHub) Viewers(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers[id])
}

// Push sends msg to every viewer of the payment request.
func (h *PaymentRequestHub) Push(id string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("payment request %s marshal failed: %v", id, err)
		}
		return
	}
	h.mu.RLock()
	targets := make([]*viewer, 0, len(h.viewers[id]))
	for v := range h.viewers[id] {
		targets = append(targets, v)
	}
	h.mu.RUnlock()

	for _, v := range targets {
		h.safeWrite(id, v, func(c *websocket.Conn) error {
			return c.WriteMessage(websocket.TextMessage, data)
		})
	}
}

func (h *PaymentRequestHub) alive(id string, v *viewer) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.viewers[id][v]
	return ok
}

func (h *PaymentRequestHub) pingLoop(id string, v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if !h.alive(id, v) {
			return
		}
		h.safeWrite(id, v, func(c *websocket.Conn) error {
			return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *PaymentRequestHub) readLoop(id string, v *viewer) {
	defer h.closeViewer(id, v)

	conn := v.conn
	conn.SetReadLimit(4 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(message)), "ping") {
			h.safeWrite(id, v, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
		}
	}
}

func (h *PaymentRequestHub) closeViewer(id string, v *viewer) {
	_ = v.conn.Close()
	h.mu.Lock()
	if set, ok := h.viewers[id]; ok {
		delete(set, v)
		if len(set) == 0 {
			delete(h.viewers, id)
		}
	}
	h.mu.Unlock()
}

func (h *PaymentRequestHub) safeWrite(id string, v *viewer, fn func(*websocket.Conn) error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(v.conn); err != nil {
		if h.logger != nil {
			h.logger.Errorf("payment request %s write failed: %v", id, err)
		}
		_ = v.conn.Close()
	}
}
