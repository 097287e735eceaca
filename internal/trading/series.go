package trading

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"inditrade-paper/internal/models"
)

// DefaultSeriesCapacity is the number of ticks kept per instrument.
const DefaultSeriesCapacity = 200

// PriceSeries is a bounded, append-only tick history for one instrument.
// Oldest tick first. Not safe for concurrent use on its own; MarketData guards it.
type PriceSeries struct {
	capacity int
	ticks    []models.Tick
}

// NewPriceSeries creates an empty series holding at most capacity ticks.
func NewPriceSeries(capacity int) *PriceSeries {
	if capacity <= 0 {
		capacity = DefaultSeriesCapacity
	}
	return &PriceSeries{
		capacity: capacity,
		ticks:    make([]models.Tick, 0, capacity),
	}
}

// Append adds a tick, evicting the oldest one when the series is full.
func (s *PriceSeries) Append(t models.Tick) {
	if len(s.ticks) == s.capacity {
		copy(s.ticks, s.ticks[1:])
		s.ticks[len(s.ticks)-1] = t
		return
	}
	s.ticks = append(s.ticks, t)
}

// Latest returns the most recent tick.
func (s *PriceSeries) Latest() (models.Tick, bool) {
	if len(s.ticks) == 0 {
		return models.Tick{}, false
	}
	return s.ticks[len(s.ticks)-1], true
}

// Previous returns the tick before the latest one.
func (s *PriceSeries) Previous() (models.Tick, bool) {
	if len(s.ticks) < 2 {
		return models.Tick{}, false
	}
	return s.ticks[len(s.ticks)-2], true
}

// Ticks returns a copy of the history.
func (s *PriceSeries) Ticks() []models.Tick {
	out := make([]models.Tick, len(s.ticks))
	copy(out, s.ticks)
	return out
}

// Len returns the number of ticks held.
func (s *PriceSeries) Len() int {
	return len(s.ticks)
}

// Capacity returns the maximum number of ticks held.
func (s *PriceSeries) Capacity() int {
	return s.capacity
}

// Source is a uniform [0,1) random stream. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded Source. A zero seed uses the current time.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// WalkParams bounds the random walk.
type WalkParams struct {
	SeedMin   float64
	SeedMax   float64
	StepBound float64
	Floor     float64
}

// DefaultWalkParams returns seed range [100,200), step ±0.4 and floor 1.0.
func DefaultWalkParams() WalkParams {
	return WalkParams{
		SeedMin:   100,
		SeedMax:   200,
		StepBound: 0.4,
		Floor:     1.0,
	}
}

// Walker produces the next price of a symmetric random walk.
type Walker struct {
	params WalkParams
	rng    Source
}

// NewWalker creates a walker drawing from rng.
func NewWalker(params WalkParams, rng Source) *Walker {
	if rng == nil {
		rng = NewSource(0)
	}
	return &Walker{params: params, rng: rng}
}

// Params returns the walk parameters.
func (w *Walker) Params() WalkParams {
	return w.params
}

// SeedPrice draws a starting price from [SeedMin, SeedMax).
func (w *Walker) SeedPrice() float64 {
	return w.params.SeedMin + w.rng.Float64()*(w.params.SeedMax-w.params.SeedMin)
}

// Drift draws a step from the half-open range [-StepBound, +StepBound): a
// uniform draw in [0, 1) maps linearly onto it, so +StepBound itself is
// never produced.
func (w *Walker) Drift() float64 {
	return (w.rng.Float64()*2 - 1) * w.params.StepBound
}

// NextPrice applies one drift to last and clamps at the floor.
func (w *Walker) NextPrice(last float64) float64 {
	return ClampPrice(last+w.Drift(), w.params.Floor)
}

// Step appends one tick to s. An empty series is seeded; a non-empty one
// never is.
func (w *Walker) Step(s *PriceSeries, symbol string, now time.Time) models.Tick {
	var price float64
	if last, ok := s.Latest(); ok {
		price = w.NextPrice(last.Price)
	} else {
		price = ClampPrice(w.SeedPrice(), w.params.Floor)
	}
	tick := models.Tick{Symbol: symbol, Price: price, Timestamp: now}
	s.Append(tick)
	return tick
}

// ClampPrice keeps a price at or above a strictly positive floor.
func ClampPrice(price, floor float64) float64 {
	return math.Max(floor, price)
}

// MarketData owns the price series of every tracked instrument.
type MarketData struct {
	mu          sync.RWMutex
	capacity    int
	walker      *Walker
	instruments []string
	series      map[string]*PriceSeries
}

// NewMarketData creates the store and tracks the given instruments in order.
func NewMarketData(instruments []string, capacity int, walker *Walker) *MarketData {
	if walker == nil {
		walker = NewWalker(DefaultWalkParams(), nil)
	}
	md := &MarketData{
		capacity: capacity,
		walker:   walker,
		series:   make(map[string]*PriceSeries),
	}
	for _, symbol := range instruments {
		md.Track(symbol)
	}
	return md
}

// Track starts tracking symbol with an empty series. Tracking twice is a no-op.
func (m *MarketData) Track(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.series[symbol]; ok {
		return
	}
	m.series[symbol] = NewPriceSeries(m.capacity)
	m.instruments = append(m.instruments, symbol)
}

// IsTracked reports whether symbol has a series.
func (m *MarketData) IsTracked(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.series[symbol]
	return ok
}

// Instruments returns tracked symbols in insertion order.
func (m *MarketData) Instruments() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.instruments))
	copy(out, m.instruments)
	return out
}

// Advance steps every tracked instrument once and returns the new ticks.
func (m *MarketData) Advance(now time.Time) []models.Tick {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticks := make([]models.Tick, 0, len(m.instruments))
	for _, symbol := range m.instruments {
		ticks = append(ticks, m.walker.Step(m.series[symbol], symbol, now))
	}
	return ticks
}

// Latest returns the latest tick for symbol. Unknown or empty yields false.
func (m *MarketData) Latest(symbol string) (models.Tick, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.series[symbol]
	if !ok {
		return models.Tick{}, false
	}
	return s.Latest()
}

// Series returns a copy of the tick history. Unknown symbols yield an empty slice.
func (m *MarketData) Series(symbol string) []models.Tick {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.series[symbol]
	if !ok {
		return []models.Tick{}
	}
	return s.Ticks()
}

// Quote returns the ticker-tape view for symbol.
func (m *MarketData) Quote(symbol string) models.Quote {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := models.Quote{Symbol: symbol}
	s, ok := m.series[symbol]
	if !ok {
		return q
	}
	last, ok := s.Latest()
	if !ok {
		return q
	}
	q.HasData = true
	q.LTP = last.Price
	q.Timestamp = last.Timestamp
	q.Previous = last.Price
	if prev, ok := s.Previous(); ok {
		q.Previous = prev.Price
	}
	q.Change = q.LTP - q.Previous
	q.Up = q.LTP >= q.Previous
	return q
}

// Quotes returns quotes for every tracked instrument in insertion order.
func (m *MarketData) Quotes() []models.Quote {
	symbols := m.Instruments()
	quotes := make([]models.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		quotes = append(quotes, m.Quote(symbol))
	}
	return quotes
}
