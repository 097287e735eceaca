// Package api serves the engine over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/models"
	"inditrade-paper/internal/stream"
	"inditrade-paper/internal/trading"
)

// Engine is the engine surface the API needs.
type Engine interface {
	Quotes() []models.Quote
	IsTracked(symbol string) bool
	Series(symbol string) []models.Tick
	LatestPrice(symbol string) (models.Tick, bool)
	Session(at time.Time) trading.SessionInfo
	MarketOpen() bool
	ListOrders() []models.OrderView
	Order(id string) (models.Order, bool)
	PlaceOrder(req models.PlacementRequest) (models.Order, error)
	CancelOrder(id string) (models.Order, error)
	SuggestLevels(target float64) models.Levels
	Hub() *stream.Hub
}

// Options configures the server.
type Options struct {
	AllowedOrigins []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  zerolog.Logger
}

// Server handles REST API and WebSocket connections.
type Server struct {
	engine  Engine
	router  *mux.Router
	opts    Options
	logger  zerolog.Logger
	handler http.Handler
}

// NewServer creates a new API server.
func NewServer(eng Engine, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
		opts:   opts,
		logger: logging.WithComponent(opts.Logger, "api"),
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	s.handler = c.Handler(s.router)
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/instruments", s.handleGetInstruments).Methods(http.MethodGet)
	api.HandleFunc("/instruments/{symbol}/series", s.handleGetSeries).Methods(http.MethodGet)
	api.HandleFunc("/instruments/{symbol}/ltp", s.handleGetLTP).Methods(http.MethodGet)

	api.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)

	api.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods(http.MethodPost)

	api.HandleFunc("/levels", s.handleGetLevels).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("API server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info().Msg("API server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleGetInstruments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Quotes())
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	symbol := symbolVar(r)
	if !s.engine.IsTracked(symbol) {
		respondError(w, http.StatusNotFound, "unknown instrument", symbol)
		return
	}
	respondJSON(w, http.StatusOK, SeriesResponse{Symbol: symbol, Ticks: s.engine.Series(symbol)})
}

func (s *Server) handleGetLTP(w http.ResponseWriter, r *http.Request) {
	symbol := symbolVar(r)
	tick, ok := s.engine.LatestPrice(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "no price", symbol)
		return
	}
	respondJSON(w, http.StatusOK, tick)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid time", err.Error())
			return
		}
		at = parsed
	}

	info := s.engine.Session(at)
	respondJSON(w, http.StatusOK, SessionResponse{
		Open:         info.Open,
		NextOpen:     info.NextOpen,
		NextOpenText: info.Description,
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.ListOrders())
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	order, ok := s.engine.Order(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", id)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := s.engine.PlaceOrder(models.PlacementRequest{
		Symbol:        strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Side:          models.OrderSide(strings.ToUpper(req.Side)),
		Quantity:      req.Quantity,
		Target:        req.Target,
		Stop:          req.Stop,
		PriceSnapshot: req.Price,
	})
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.engine.CancelOrder(mux.Vars(r)["id"])
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleGetLevels(w http.ResponseWriter, r *http.Request) {
	target, err := strconv.ParseFloat(r.URL.Query().Get("target"), 64)
	if err != nil || target <= 0 {
		respondError(w, http.StatusBadRequest, "invalid target", "target must be a positive number")
		return
	}
	respondJSON(w, http.StatusOK, s.engine.SuggestLevels(target))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		MarketOpen: s.engine.MarketOpen(),
		Time:       time.Now(),
	})
}

func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrInvalidOrderRequest):
		respondError(w, http.StatusBadRequest, "invalid order request", err.Error())
	case errors.Is(err, errors.ErrMarketClosed):
		respondError(w, http.StatusConflict, "market closed", err.Error())
	case errors.Is(err, errors.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	default:
		s.logger.Error().Err(err).Msg("Unhandled engine error")
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func symbolVar(r *http.Request) string {
	return strings.ToUpper(mux.Vars(r)["symbol"])
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondJSON(w, status, ErrorResponse{Error: error, Message: message})
}
