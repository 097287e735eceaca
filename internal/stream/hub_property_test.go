package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inditrade-paper/internal/models"
)

// Property: every fast subscriber of a symbol receives every tick published
// for it, in order.
func TestProperty_SubscribersReceiveAllTicks(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	symbols := []string{"NIFTY", "BANKNIFTY", "RELIANCE", "TCS", "INFY", "HDFCBANK"}

	properties.Property("fast subscribers receive every tick in order", prop.ForAll(
		func(subscriberCount, tickCount, symbolIdx int, basePrice float64) bool {
			symbol := symbols[symbolIdx]
			hub := NewHubWithConfig(HubConfig{BufferSize: 1000, SubscriberBufferSize: 100})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)
			defer hub.Stop()

			channels := make([]<-chan Event, subscriberCount)
			for i := range channels {
				channels[i] = hub.Subscribe(SymbolTopic(symbol))
			}

			for i := 0; i < tickCount; i++ {
				hub.Publish(TickEvent(models.Tick{Symbol: symbol, Price: basePrice + float64(i)}))
			}

			for _, ch := range channels {
				for i := 0; i < tickCount; i++ {
					select {
					case ev := <-ch:
						if ev.Type != EventTick || ev.Tick.Price != basePrice+float64(i) {
							return false
						}
					case <-time.After(2 * time.Second):
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 5),
		gen.IntRange(1, 50),
		gen.IntRange(0, len(symbols)-1),
		gen.Float64Range(100.0, 200.0),
	))

	properties.TestingRun(t)
}

func TestHub_TopicRouting(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	all := hub.Subscribe(TopicAll)
	orders := hub.Subscribe(TopicOrders)
	tcs := hub.Subscribe(SymbolTopic("TCS"))

	hub.Publish(TickEvent(models.Tick{Symbol: "INFY", Price: 1}))
	hub.Publish(OrderEvent(models.Order{ID: "o-1"}, time.Now()))
	hub.Publish(TickEvent(models.Tick{Symbol: "TCS", Price: 2}))

	got := receive(t, all, 3)
	assert.Equal(t, []EventType{EventTick, EventOrder, EventTick}, []EventType{got[0].Type, got[1].Type, got[2].Type})

	ord := receive(t, orders, 1)
	assert.Equal(t, "o-1", ord[0].Order.ID)

	tick := receive(t, tcs, 1)
	assert.Equal(t, 2.0, tick[0].Tick.Price)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{BufferSize: 100, SubscriberBufferSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	_ = hub.Subscribe(TopicTicks)
	for i := 0; i < 10; i++ {
		hub.Publish(TickEvent(models.Tick{Symbol: "TCS", Price: float64(i)}))
	}

	require.Eventually(t, func() bool {
		return hub.GetMetrics().EventsReceived == 10
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(9), hub.GetMetrics().EventsDropped)
}

func TestHub_ConsumersSeeEventsInOrder(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	var count int32
	hub.RegisterConsumer(NewConsumerFunc([]EventType{EventOrder}, func(ev Event) {
		mu.Lock()
		seen = append(seen, fmt.Sprintf("%s:%s", ev.Order.ID, ev.Order.Status))
		mu.Unlock()
		atomic.AddInt32(&count, 1)
	}))
	hub.Start(ctx)
	defer hub.Stop()

	hub.Publish(TickEvent(models.Tick{Symbol: "TCS"}))
	hub.Publish(OrderEvent(models.Order{ID: "a", Status: models.OrderStatusOpen}, time.Now()))
	hub.Publish(OrderEvent(models.Order{ID: "a", Status: models.OrderStatusClosed}, time.Now()))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&count) == 2 }, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a:OPEN", "a:CLOSED"}, seen)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(TopicSession)
	assert.Equal(t, 1, hub.GetSubscriberCount(TopicSession))

	hub.Unsubscribe(TopicSession, ch)
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.GetSubscriberCount(TopicSession))
}

func receive(t *testing.T, ch <-chan Event, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}
