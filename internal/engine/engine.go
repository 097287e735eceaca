package engine

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/models"
	"inditrade-paper/internal/observability"
	"inditrade-paper/internal/stream"
	"inditrade-paper/internal/trading"
)

// Default task cadences.
const (
	DefaultTickInterval        = 900 * time.Millisecond
	DefaultMonitorInterval     = 900 * time.Millisecond
	DefaultSessionPollInterval = 60 * time.Second
	DefaultSeriesCapacity      = 200
)

// DefaultInstruments is the tracked instrument set.
var DefaultInstruments = []string{"NIFTY", "BANKNIFTY", "RELIANCE", "TCS", "INFY", "HDFCBANK"}

// Options configures an Engine. Zero values fall back to the defaults.
type Options struct {
	Instruments         []string
	SeriesCapacity      int
	Walk                trading.WalkParams
	Session             trading.SessionConfig
	TickInterval        time.Duration
	MonitorInterval     time.Duration
	SessionPollInterval time.Duration
	RequireOpenMarket   bool

	// Seed feeds the default random source; 0 seeds from the wall clock.
	Seed   int64
	Source trading.Source

	Clock   clock.Clock
	Hub     *stream.Hub
	Metrics *observability.Metrics
	Logger  *zerolog.Logger
}

// DefaultOptions returns the standard engine options.
func DefaultOptions() Options {
	return Options{
		Instruments:         append([]string(nil), DefaultInstruments...),
		SeriesCapacity:      DefaultSeriesCapacity,
		Walk:                trading.DefaultWalkParams(),
		Session:             trading.DefaultSessionConfig(),
		TickInterval:        DefaultTickInterval,
		MonitorInterval:     DefaultMonitorInterval,
		SessionPollInterval: DefaultSessionPollInterval,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Instruments) == 0 {
		o.Instruments = d.Instruments
	}
	if o.SeriesCapacity <= 0 {
		o.SeriesCapacity = d.SeriesCapacity
	}
	if o.Walk == (trading.WalkParams{}) {
		o.Walk = d.Walk
	}
	if o.Session.Location == nil {
		o.Session = d.Session
	}
	if o.TickInterval <= 0 {
		o.TickInterval = d.TickInterval
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = d.MonitorInterval
	}
	if o.SessionPollInterval <= 0 {
		o.SessionPollInterval = d.SessionPollInterval
	}
	if o.Source == nil {
		o.Source = trading.NewSource(o.Seed)
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Hub == nil {
		o.Hub = stream.NewHubWithConfig(stream.HubConfig{Metrics: o.Metrics})
	}
	return o
}

// Engine is the paper trading facade: one simulated market, one order
// book and the periodic tasks that drive them.
type Engine struct {
	opts    Options
	clock   clock.Clock
	session *trading.SessionClock
	market  *trading.MarketData
	book    *trading.OrderBook
	gate    *SessionGate
	driver  *SimulationDriver
	monitor *OrderMonitor
	sched   *Scheduler
	hub     *stream.Hub
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// New builds an engine. Nothing runs until Run is called.
func New(opts Options) *Engine {
	opts = opts.withDefaults()

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	session := trading.NewSessionClock(opts.Session)
	market := trading.NewMarketData(opts.Instruments, opts.SeriesCapacity, trading.NewWalker(opts.Walk, opts.Source))
	book := trading.NewOrderBook()
	gate := NewSessionGate(session, opts.Clock, opts.Hub, opts.Metrics, logger)

	return &Engine{
		opts:    opts,
		clock:   opts.Clock,
		session: session,
		market:  market,
		book:    book,
		gate:    gate,
		driver:  NewSimulationDriver(market, gate, opts.Clock, opts.Hub, opts.Metrics, logger),
		monitor: NewOrderMonitor(book, market, gate, opts.Clock, opts.Hub, opts.Metrics, logger),
		sched:   NewScheduler(opts.Clock, logger, opts.Metrics),
		hub:     opts.Hub,
		metrics: opts.Metrics,
		logger:  logging.WithComponent(logger, "engine"),
	}
}

// Run starts the session poller, the simulation driver and the order
// monitor, and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if !e.hub.IsStarted() {
		e.hub.Start(ctx)
		defer e.hub.Stop()
	}

	e.logger.Info().
		Strs("instruments", e.market.Instruments()).
		Bool("market_open", e.gate.IsOpen()).
		Dur("tick_interval", e.opts.TickInterval).
		Msg("Engine started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.gate.Poll(gctx, e.sched, e.opts.SessionPollInterval)
	})
	g.Go(func() error {
		return e.sched.Every(gctx, "driver", e.opts.TickInterval, e.driver.Run)
	})
	g.Go(func() error {
		return e.sched.Every(gctx, "monitor", e.opts.MonitorInterval, e.monitor.Run)
	})

	err := g.Wait()
	e.logger.Info().Msg("Engine stopped")
	return err
}

// PlaceOrder records a new OPEN order. A non-positive price snapshot is
// replaced with the instrument's current LTP.
func (e *Engine) PlaceOrder(req models.PlacementRequest) (models.Order, error) {
	if e.opts.RequireOpenMarket && !e.gate.IsOpen() {
		e.rejected(req, errors.ErrMarketClosed)
		return models.Order{}, errors.ErrMarketClosed
	}
	if req.PriceSnapshot <= 0 {
		if tick, ok := e.market.Latest(req.Symbol); ok {
			req.PriceSnapshot = tick.Price
		}
	}

	now := e.clock.Now()
	order, err := e.book.Place(req, now)
	if err != nil {
		e.rejected(req, err)
		return models.Order{}, err
	}

	if order.EntryPrice <= 0 {
		e.logger.Warn().
			Str("order_id", order.ID).
			Str("symbol", order.Symbol).
			Msg("Order placed without a price, entry price is zero")
	}
	logging.LogOrder(logging.WithOrderID(e.logger, order.ID), order.ID, order.Symbol,
		string(order.Side), string(order.Status), order.EntryPrice)
	if e.metrics != nil {
		e.metrics.OrdersPlaced.WithLabelValues(string(order.Side)).Inc()
		e.metrics.OpenOrders.Inc()
	}
	e.hub.Publish(stream.OrderEvent(order, now))
	return order, nil
}

func (e *Engine) rejected(req models.PlacementRequest, err error) {
	if e.metrics != nil {
		e.metrics.OrdersRejected.Inc()
	}
	e.logger.Warn().Err(err).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Int("quantity", req.Quantity).
		Msg("Order rejected")
}

// CancelOrder closes an OPEN order at the current LTP with reason MANUAL.
// Cancelling a CLOSED order returns it unchanged.
func (e *Engine) CancelOrder(id string) (models.Order, error) {
	current, ok := e.book.Get(id)
	if !ok {
		return models.Order{}, errors.NewOrderError(id, "", "cancel", "lookup failed", errors.ErrOrderNotFound)
	}

	now := e.clock.Now()
	order, changed, err := e.book.Close(id, e.ltp(current), models.CloseReasonManual, now)
	if err != nil {
		return models.Order{}, err
	}
	if changed {
		logging.LogOrder(logging.WithOrderID(e.logger, order.ID), order.ID, order.Symbol,
			string(order.Side), string(order.CloseReason), order.ExitPrice)
		if e.metrics != nil {
			e.metrics.OrdersClosed.WithLabelValues(string(models.CloseReasonManual)).Inc()
			e.metrics.OpenOrders.Dec()
		}
		e.hub.Publish(stream.OrderEvent(order, now))
	}
	return order, nil
}

func (e *Engine) ltp(order models.Order) float64 {
	if tick, ok := e.market.Latest(order.Symbol); ok {
		return tick.Price
	}
	return order.EntryPrice
}

// Order returns one order by id.
func (e *Engine) Order(id string) (models.Order, bool) {
	return e.book.Get(id)
}

// ListOrders returns every order, most recent first, with its current
// LTP and P&L.
func (e *Engine) ListOrders() []models.OrderView {
	orders := e.book.List()
	views := make([]models.OrderView, 0, len(orders))
	for _, o := range orders {
		ltp := e.ltp(o)
		views = append(views, models.OrderView{Order: o, LTP: ltp, PnL: trading.PnL(o, ltp)})
	}
	return views
}

// LatestPrice returns the newest tick for symbol.
func (e *Engine) LatestPrice(symbol string) (models.Tick, bool) {
	return e.market.Latest(symbol)
}

// Series returns the retained ticks for symbol, oldest first. Unknown
// instruments yield an empty series.
func (e *Engine) Series(symbol string) []models.Tick {
	return e.market.Series(symbol)
}

// Quotes returns a quote per tracked instrument.
func (e *Engine) Quotes() []models.Quote {
	return e.market.Quotes()
}

// Instruments returns the tracked symbols.
func (e *Engine) Instruments() []string {
	return e.market.Instruments()
}

// IsTracked reports whether symbol is simulated.
func (e *Engine) IsTracked(symbol string) bool {
	return e.market.IsTracked(symbol)
}

// MarketOpen reports the gate state the periodic tasks observe.
func (e *Engine) MarketOpen() bool {
	return e.gate.IsOpen()
}

// IsMarketOpen evaluates the session calendar at t. A zero t means now.
func (e *Engine) IsMarketOpen(t time.Time) bool {
	return e.session.IsOpen(e.at(t))
}

// DescribeNextOpen renders the next session start relative to t.
func (e *Engine) DescribeNextOpen(t time.Time) string {
	return e.session.DescribeNextOpen(e.at(t))
}

// Session returns the session status at t.
func (e *Engine) Session(t time.Time) trading.SessionInfo {
	return e.session.Status(e.at(t))
}

func (e *Engine) at(t time.Time) time.Time {
	if t.IsZero() {
		return e.clock.Now()
	}
	return t
}

// SuggestLevels proposes target and stop levels around a chart price.
func (e *Engine) SuggestLevels(target float64) models.Levels {
	return trading.SuggestLevels(target, e.opts.Walk.Floor)
}

// Hub returns the event hub.
func (e *Engine) Hub() *stream.Hub {
	return e.hub
}

// Step advances the market once, ignoring the gate state. Used by the
// offline simulate command.
func (e *Engine) Step() []models.Tick {
	ticks := e.market.Advance(e.clock.Now())
	for _, t := range ticks {
		e.hub.Publish(stream.TickEvent(t))
	}
	return ticks
}

// Driver exposes the simulation driver.
func (e *Engine) Driver() *SimulationDriver { return e.driver }

// Monitor exposes the order monitor.
func (e *Engine) Monitor() *OrderMonitor { return e.monitor }

// Gate exposes the session gate.
func (e *Engine) Gate() *SessionGate { return e.gate }
