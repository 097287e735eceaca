package store

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/models"
	"inditrade-paper/internal/resilience"
	"inditrade-paper/internal/stream"
	"inditrade-paper/pkg/utils"
)

// Journal records every order event it receives into a JournalStore. It is
// registered as a hub consumer: OnEvent only queues the snapshot, and Run
// writes the queue in event order from its own goroutine so a slow store
// never holds up the hub. Writes are retried, and a store that keeps
// failing is skipped until its breaker cools down.
type Journal struct {
	store   JournalStore
	retry   utils.RetryConfig
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	queue   chan models.Order
	logger  zerolog.Logger

	mu      sync.Mutex
	dropped uint64
}

// DefaultJournalBuffer is the number of order snapshots queued for writing.
const DefaultJournalBuffer = 256

// JournalOption customizes a Journal.
type JournalOption func(*Journal)

// WithRetry overrides the write retry policy.
func WithRetry(cfg utils.RetryConfig) JournalOption {
	return func(j *Journal) { j.retry = cfg }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg resilience.CircuitBreakerConfig, clk clock.Clock) JournalOption {
	return func(j *Journal) { j.breaker = resilience.NewCircuitBreaker("journal", cfg, clk) }
}

// WithBuffer sets the queue length.
func WithBuffer(n int) JournalOption {
	return func(j *Journal) {
		if n > 0 {
			j.queue = make(chan models.Order, n)
		}
	}
}

// NewJournal creates a journal writer over store.
func NewJournal(store JournalStore, logger zerolog.Logger, opts ...JournalOption) *Journal {
	j := &Journal{
		store:   store,
		retry:   utils.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker("journal", resilience.DefaultCircuitBreakerConfig(), nil),
		timeout: 5 * time.Second,
		queue:   make(chan models.Order, DefaultJournalBuffer),
		logger:  logging.WithComponent(logger, "journal"),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		j.logger.Warn().Str("breaker", name).Str("from", string(from)).Str("to", string(to)).Msg("Journal breaker changed state")
	})
	return j
}

// Types implements stream.Consumer.
func (j *Journal) Types() []stream.EventType {
	return []stream.EventType{stream.EventOrder}
}

// OnEvent implements stream.Consumer. It never blocks: when the queue is
// full the snapshot is dropped and counted.
func (j *Journal) OnEvent(event stream.Event) {
	if event.Order == nil {
		return
	}
	order := event.Order.Clone()

	select {
	case j.queue <- order:
	default:
		j.mu.Lock()
		j.dropped++
		j.mu.Unlock()
		j.logger.Error().
			Str("order_id", order.ID).
			Str("status", string(order.Status)).
			Msg("Journal queue full, order not recorded")
	}
}

// Dropped returns how many snapshots were discarded because the queue was
// full.
func (j *Journal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Run writes queued snapshots until ctx is done, then writes whatever is
// still queued before returning. Writes in flight are not cut short by ctx.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case order := <-j.queue:
			j.write(order)
		case <-ctx.Done():
			j.drain()
			return nil
		}
	}
}

func (j *Journal) drain() {
	for {
		select {
		case order := <-j.queue:
			j.write(order)
		default:
			return
		}
	}
}

func (j *Journal) write(order models.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	err := j.breaker.Execute(ctx, func(ctx context.Context) error {
		return utils.Retry(ctx, j.retry, func(ctx context.Context) error {
			return j.store.SaveOrder(ctx, order)
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		j.logger.Debug().Str("order_id", order.ID).Msg("Journal paused, order not recorded")
		return
	}
	if err != nil {
		j.logger.Error().Err(err).
			Str("order_id", order.ID).
			Str("status", string(order.Status)).
			Msg("Failed to journal order")
		return
	}
	j.logger.Debug().Str("order_id", order.ID).Str("status", string(order.Status)).Msg("Order journaled")
}
