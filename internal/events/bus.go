// Package events is an in-process publish/subscribe bus. Publishing never
// blocks: every subscriber owns a buffered queue drained by its own goroutine,
// and a full queue drops the event for that subscriber only.
package events

import (
	"sync"
)

const defaultBufferSize = 64

// TopicAll subscribes to every event. A single subscription sees events in
// the order they were published, across topics.
const TopicAll = "*"

// Event is anything that can be published on the bus.
type Event interface {
	EventType() string
}

// Handler consumes events delivered to a subscription.
type Handler func(Event)

// Logger provides minimal logging required by the bus.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type subscription struct {
	topic   string
	name    string
	handler Handler
	queue   chan Event
	done    chan struct{}
}

// Bus routes events to subscribers by topic. The zero value is not usable;
// create buses with NewBus.
type Bus struct {
	logger     Logger
	bufferSize int

	mu     sync.RWMutex
	subs   map[string][]*subscription
	closed bool
	wg     sync.WaitGroup
}

// NewBus creates a bus whose subscribers queue up to bufferSize events.
func NewBus(logger Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		logger:     logger,
		bufferSize: bufferSize,
		subs:       make(map[string][]*subscription),
	}
}

// Subscribe registers handler for events whose EventType equals topic, or
// for all events when topic is TopicAll.
// The returned function removes the subscription and waits for its worker.
func (b *Bus) Subscribe(topic, name string, handler Handler) func() {
	sub := &subscription{
		topic:   topic,
		name:    name,
		handler: handler,
		queue:   make(chan Event, b.bufferSize),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		return func() {}
	}
	b.subs[topic] = append(b.subs[topic], sub)
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(sub)
			<-sub.done
		})
	}
}

// Publish hands the event to every subscriber of its topic without waiting.
func (b *Bus) Publish(event Event) {
	if event == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.offer(b.subs[event.EventType()], event)
	if event.EventType() != TopicAll {
		b.offer(b.subs[TopicAll], event)
	}
}

func (b *Bus) offer(subs []*subscription, event Event) {
	for _, sub := range subs {
		select {
		case sub.queue <- event:
		default:
			b.errorf("events: subscriber %s queue full, dropping %s", sub.name, event.EventType())
		}
	}
}

// Close stops accepting events, lets subscribers drain their queues and
// waits for them to finish.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, sub := range subs {
			close(sub.queue)
		}
		delete(b.subs, topic)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sub.topic]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.topic] = append(subs[:i:i], subs[i+1:]...)
			close(sub.queue)
			return
		}
	}
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	defer close(sub.done)
	for event := range sub.queue {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.errorf("events: subscriber %s panicked on %s: %v", sub.name, event.EventType(), r)
		}
	}()
	sub.handler(event)
}

func (b *Bus) errorf(format string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Errorf(format, args...)
	}
}
