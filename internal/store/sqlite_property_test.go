package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/models"
	"inditrade-paper/internal/resilience"
	"inditrade-paper/internal/stream"
	"inditrade-paper/pkg/utils"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal", "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var placedAt = time.Date(2026, 10, 12, 4, 30, 0, 0, time.UTC)

func openOrder(id, symbol string, side models.OrderSide, at time.Time) models.Order {
	return models.Order{
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		Quantity:   10,
		EntryPrice: 100,
		Target:     models.Float(105),
		Stop:       models.Float(95),
		PlacedAt:   at,
		Status:     models.OrderStatusOpen,
	}
}

func closeOrder(o models.Order, price float64, reason models.CloseReason, at time.Time) models.Order {
	o.Status = models.OrderStatusClosed
	o.ClosedAt = &at
	o.ExitPrice = price
	o.CloseReason = reason
	return o
}

// The journal holds exactly one row per order, reflecting its last snapshot.
func TestProperty_JournalKeepsLatestSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	n := 0
	properties.Property("open then close leaves one closed row", prop.ForAll(
		func(exit float64, reasonIdx int, closeTwice bool) bool {
			n++
			id := fmt.Sprintf("ord-%d", n)
			reason := []models.CloseReason{models.CloseReasonTarget, models.CloseReasonStop, models.CloseReasonManual}[reasonIdx]

			open := openOrder(id, "PROP", models.OrderSideBuy, placedAt.Add(time.Duration(n)*time.Second))
			if err := s.SaveOrder(ctx, open); err != nil {
				return false
			}
			closed := closeOrder(open, exit, reason, open.PlacedAt.Add(time.Minute))
			if err := s.SaveOrder(ctx, closed); err != nil {
				return false
			}
			if closeTwice {
				if err := s.SaveOrder(ctx, closed); err != nil {
					return false
				}
			}

			rows, err := s.ListOrders(ctx, OrderFilter{Symbol: "PROP"})
			if err != nil {
				return false
			}
			matches := 0
			for _, r := range rows {
				if r.ID != id {
					continue
				}
				matches++
				if r.Status != models.OrderStatusClosed || r.CloseReason != reason ||
					r.ExitPrice != exit || r.ClosedAt == nil || !r.ClosedAt.Equal(*closed.ClosedAt) {
					return false
				}
			}
			return matches == 1 && len(rows) == n
		},
		gen.Float64Range(1, 5000),
		gen.IntRange(0, 2),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestSQLiteStore_OpenOrderFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := openOrder("a", "TCS", models.OrderSideSell, placedAt)
	o.Stop = nil
	require.NoError(t, s.SaveOrder(ctx, o))

	rows, err := s.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, "TCS", got.Symbol)
	assert.Equal(t, models.OrderSideSell, got.Side)
	assert.Equal(t, 10, got.Quantity)
	require.NotNil(t, got.Target)
	assert.Equal(t, 105.0, *got.Target)
	assert.Nil(t, got.Stop)
	assert.True(t, got.PlacedAt.Equal(placedAt))
	assert.Nil(t, got.ClosedAt)
	assert.Empty(t, got.CloseReason)
}

func TestSQLiteStore_ListOrdersFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orders := []models.Order{
		openOrder("1", "TCS", models.OrderSideBuy, placedAt),
		openOrder("2", "INFY", models.OrderSideSell, placedAt.Add(time.Minute)),
		closeOrder(openOrder("3", "TCS", models.OrderSideSell, placedAt.Add(2*time.Minute)), 94, models.CloseReasonTarget, placedAt.Add(3*time.Minute)),
	}
	for _, o := range orders {
		require.NoError(t, s.SaveOrder(ctx, o))
	}

	ids := func(filter OrderFilter) []string {
		rows, err := s.ListOrders(ctx, filter)
		require.NoError(t, err)
		var out []string
		for _, r := range rows {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []string{"3", "2", "1"}, ids(OrderFilter{}))
	assert.Equal(t, []string{"3", "1"}, ids(OrderFilter{Symbol: "TCS"}))
	assert.Equal(t, []string{"3", "2"}, ids(OrderFilter{Side: models.OrderSideSell}))
	assert.Equal(t, []string{"2", "1"}, ids(OrderFilter{Status: models.OrderStatusOpen}))
	assert.Equal(t, []string{"3", "2"}, ids(OrderFilter{Since: placedAt.Add(time.Minute)}))
	assert.Equal(t, []string{"3"}, ids(OrderFilter{Limit: 1}))
}

type flakyStore struct {
	mu       sync.Mutex
	failures int
	saved    []models.Order
}

func (f *flakyStore) SaveOrder(_ context.Context, o models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.ErrDatabaseError
	}
	f.saved = append(f.saved, o)
	return nil
}

func (f *flakyStore) ListOrders(context.Context, OrderFilter) ([]models.Order, error) {
	return nil, nil
}

func (f *flakyStore) Close() error { return nil }

// startJournal runs j until the returned stop func, which waits for the
// queue to be written.
func startJournal(t *testing.T, j *Journal) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = j.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("journal did not stop")
		}
	}
}

func TestJournal_RetriesTransientFailures(t *testing.T) {
	fs := &flakyStore{failures: 2}
	j := NewJournal(fs, zerolog.Nop(), WithRetry(utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}))
	stop := startJournal(t, j)

	o := openOrder("x", "TCS", models.OrderSideBuy, placedAt)
	j.OnEvent(stream.OrderEvent(o, placedAt))
	j.OnEvent(stream.TickEvent(models.Tick{Symbol: "TCS", Price: 100, Timestamp: placedAt}))
	stop()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	require.Len(t, fs.saved, 1)
	assert.Equal(t, "x", fs.saved[0].ID)
}

func TestJournal_BreakerSkipsFailingStore(t *testing.T) {
	fs := &flakyStore{failures: 1000}
	j := NewJournal(fs, zerolog.Nop(),
		WithRetry(utils.RetryConfig{MaxAttempts: 1}),
		WithBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Minute}, clock.NewMock()),
	)

	o := openOrder("b", "TCS", models.OrderSideBuy, placedAt)
	for i := 0; i < 5; i++ {
		j.OnEvent(stream.OrderEvent(o, placedAt))
	}
	startJournal(t, j)()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 998, fs.failures, "only the first two writes reach the store")
	assert.Empty(t, fs.saved)
}

func TestJournal_RecordsHubEventsInOrder(t *testing.T) {
	s := newTestStore(t)
	hub := stream.NewHub()
	j := NewJournal(s, zerolog.Nop())
	hub.RegisterConsumer(j)
	defer startJournal(t, j)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	o := openOrder("h", "INFY", models.OrderSideBuy, placedAt)
	hub.Publish(stream.OrderEvent(o, placedAt))
	hub.Publish(stream.OrderEvent(closeOrder(o, 106, models.CloseReasonTarget, placedAt.Add(time.Minute)), placedAt.Add(time.Minute)))

	require.Eventually(t, func() bool {
		rows, err := s.ListOrders(context.Background(), OrderFilter{})
		return err == nil && len(rows) == 1 && rows[0].Status == models.OrderStatusClosed
	}, 2*time.Second, 10*time.Millisecond)
}

// blockingStore holds every write until release is closed.
type blockingStore struct {
	release chan struct{}
}

func (b *blockingStore) SaveOrder(ctx context.Context, _ models.Order) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingStore) ListOrders(context.Context, OrderFilter) ([]models.Order, error) {
	return nil, nil
}

func (b *blockingStore) Close() error { return nil }

func TestJournal_StalledStoreDoesNotBlockHub(t *testing.T) {
	bs := &blockingStore{release: make(chan struct{})}
	defer close(bs.release)

	j := NewJournal(bs, zerolog.Nop())
	hub := stream.NewHub()
	hub.RegisterConsumer(j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()
	go func() { _ = j.Run(ctx) }()

	ticks := hub.Subscribe(stream.TopicTicks)
	hub.Publish(stream.OrderEvent(openOrder("s", "TCS", models.OrderSideBuy, placedAt), placedAt))
	hub.Publish(stream.TickEvent(models.Tick{Symbol: "TCS", Price: 101, Timestamp: placedAt}))

	select {
	case ev := <-ticks:
		assert.Equal(t, 101.0, ev.Tick.Price)
	case <-time.After(time.Second):
		t.Fatal("tick delivery waited on the journal")
	}
}

func TestJournal_FullQueueDropsWithoutBlocking(t *testing.T) {
	j := NewJournal(&flakyStore{}, zerolog.Nop(), WithBuffer(2))

	for i := 0; i < 3; i++ {
		o := openOrder(fmt.Sprintf("q-%d", i), "TCS", models.OrderSideBuy, placedAt)
		j.OnEvent(stream.OrderEvent(o, placedAt))
	}
	assert.Equal(t, uint64(1), j.Dropped())
	assert.Len(t, j.queue, 2)
}
