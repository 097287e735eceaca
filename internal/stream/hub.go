// Package stream fans engine events out to subscribers and consumers.
package stream

import (
	"context"
	"sync"
	"time"

	"inditrade-paper/internal/models"
	"inditrade-paper/internal/observability"
)

// EventType identifies the payload of an Event.
type EventType string

const (
	EventTick    EventType = "tick"
	EventOrder   EventType = "order"
	EventSession EventType = "session"
)

// Topics a subscriber can ask for.
const (
	TopicAll     = "*"
	TopicTicks   = "ticks"
	TopicOrders  = "orders"
	TopicSession = "session"
)

// SymbolTopic returns the topic carrying ticks of one instrument.
func SymbolTopic(symbol string) string {
	return TopicTicks + "." + symbol
}

// SessionState is the payload of a session event.
type SessionState struct {
	Open     bool   `json:"open"`
	NextOpen string `json:"next_open,omitempty"`
}

// Event is one engine notification.
type Event struct {
	Type    EventType     `json:"type"`
	Tick    *models.Tick  `json:"tick,omitempty"`
	Order   *models.Order `json:"order,omitempty"`
	Session *SessionState `json:"session,omitempty"`
	Time    time.Time     `json:"time"`
}

// TickEvent wraps a tick.
func TickEvent(t models.Tick) Event {
	return Event{Type: EventTick, Tick: &t, Time: t.Timestamp}
}

// OrderEvent wraps an order snapshot.
func OrderEvent(o models.Order, at time.Time) Event {
	c := o.Clone()
	return Event{Type: EventOrder, Order: &c, Time: at}
}

// SessionEvent wraps a session transition.
func SessionEvent(open bool, nextOpen string, at time.Time) Event {
	return Event{Type: EventSession, Session: &SessionState{Open: open, NextOpen: nextOpen}, Time: at}
}

// Topics returns the topics an event is delivered on.
func (e Event) Topics() []string {
	switch e.Type {
	case EventTick:
		if e.Tick != nil {
			return []string{TopicAll, TopicTicks, SymbolTopic(e.Tick.Symbol)}
		}
		return []string{TopicAll, TopicTicks}
	case EventOrder:
		return []string{TopicAll, TopicOrders}
	case EventSession:
		return []string{TopicAll, TopicSession}
	default:
		return []string{TopicAll}
	}
}

// HubConfig holds configuration for the Hub.
type HubConfig struct {
	// BufferSize is the size of the internal event channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// Metrics receives drop counts when set.
	Metrics *observability.Metrics
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           1000,
		SubscriberBufferSize: 100,
	}
}

// Hub distributes events from the engine to channel subscribers and
// registered consumers. Sends never block the publisher.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[string][]*Subscriber
	eventChan   chan Event
	done        chan struct{}
	started     bool
	consumers   []Consumer
	consumersMu sync.RWMutex

	// Metrics
	received  uint64
	delivered uint64
	dropped   uint64
	metricsMu sync.RWMutex
}

// Subscriber represents a channel subscriber with metadata.
type Subscriber struct {
	ID           string
	Channel      chan Event
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a new hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig().BufferSize
	}
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		subscribers: make(map[string][]*Subscriber),
		eventChan:   make(chan Event, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start begins the hub's distribution loop.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return
	}
	h.started = true
	go h.broadcastLoop(ctx)
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case event := <-h.eventChan:
			h.metricsMu.Lock()
			h.received++
			h.metricsMu.Unlock()

			h.broadcast(event)
			h.notifyConsumers(event)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}
	close(h.done)
	h.started = false

	for topic, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(h.subscribers, topic)
	}
}

// Subscribe returns a channel receiving events on topic.
func (h *Hub) Subscribe(topic string) <-chan Event {
	return h.SubscribeWithID(topic, "")
}

// SubscribeWithID adds a named subscriber for topic.
func (h *Hub) SubscribeWithID(topic, id string) <-chan Event {
	ch := make(chan Event, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        id,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.subscribers[topic] = append(h.subscribers[topic], sub)
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (h *Hub) Unsubscribe(topic string, ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[topic]
	for i, sub := range subs {
		if sub.Channel == ch {
			close(sub.Channel)
			h.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[topic]) == 0 {
		delete(h.subscribers, topic)
	}
}

// Publish queues an event for distribution. If the buffer is full the event
// is dropped.
func (h *Hub) Publish(event Event) {
	select {
	case h.eventChan <- event:
	default:
		h.recordDrop()
	}
}

// broadcast sends an event to every subscriber of its topics.
func (h *Hub) broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, topic := range event.Topics() {
		for _, sub := range h.subscribers[topic] {
			select {
			case sub.Channel <- event:
				h.metricsMu.Lock()
				h.delivered++
				h.metricsMu.Unlock()
			default:
				sub.DroppedCount++
				h.recordDrop()
			}
		}
	}
}

func (h *Hub) recordDrop() {
	h.metricsMu.Lock()
	h.dropped++
	h.metricsMu.Unlock()
	if h.config.Metrics != nil {
		h.config.Metrics.EventsDropped.Inc()
	}
}

// GetSubscriberCount returns the number of subscribers for a topic.
func (h *Hub) GetSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

// GetMetrics returns hub counters.
func (h *Hub) GetMetrics() HubMetrics {
	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()

	return HubMetrics{
		EventsReceived:  h.received,
		EventsDelivered: h.delivered,
		EventsDropped:   h.dropped,
	}
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	EventsReceived  uint64
	EventsDelivered uint64
	EventsDropped   uint64
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Consumer processes events inside the hub loop, in publish order.
// Implementations must return quickly.
type Consumer interface {
	OnEvent(event Event)
	// Types returns the event types of interest; empty means all.
	Types() []EventType
}

// RegisterConsumer adds a consumer.
func (h *Hub) RegisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	h.consumers = append(h.consumers, consumer)
	h.consumersMu.Unlock()
}

func (h *Hub) notifyConsumers(event Event) {
	h.consumersMu.RLock()
	consumers := make([]Consumer, len(h.consumers))
	copy(consumers, h.consumers)
	h.consumersMu.RUnlock()

	for _, consumer := range consumers {
		types := consumer.Types()
		if len(types) == 0 || containsType(types, event.Type) {
			consumer.OnEvent(event)
		}
	}
}

func containsType(types []EventType, t EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// ConsumerFunc is a function adapter for the Consumer interface.
type ConsumerFunc struct {
	types   []EventType
	onEvent func(Event)
}

// NewConsumerFunc creates a new ConsumerFunc.
func NewConsumerFunc(types []EventType, onEvent func(Event)) *ConsumerFunc {
	return &ConsumerFunc{types: types, onEvent: onEvent}
}

// OnEvent implements Consumer.
func (c *ConsumerFunc) OnEvent(event Event) {
	if c.onEvent != nil {
		c.onEvent(event)
	}
}

// Types implements Consumer.
func (c *ConsumerFunc) Types() []EventType {
	return c.types
}
