package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/christian-spooner/trading-server/pkg/core/book"
	"github.com/christian-spooner/trading-server/pkg/core/client"
	"github.com/christian-spooner/trading-server/pkg/core/engine"
)

// Server is the HTTP/WebSocket ingestion layer. It resolves external
// requests into engine calls; the matching core itself never touches
// the network.
type Server struct {
	eng     *engine.Engine
	clients *client.Registry
	router  *mux.Router
	hub     *Hub
	origins []string
	log     *zap.SugaredLogger
}

func NewServer(eng *engine.Engine, clients *client.Registry, origins []string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		eng:     eng,
		clients: clients,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		origins: origins,
		log:     logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market data
	api.HandleFunc("/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/volume", s.handleGetVolume).Methods("GET")

	// Orders
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/amend", s.handleAmendOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	// Clients
	api.HandleFunc("/clients", s.handleRegisterClient).Methods("POST")
	api.HandleFunc("/clients", s.handleGetClients).Methods("GET")

	// WebSocket feed
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS, for serving and tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the WebSocket hub and serves HTTP on addr, blocking.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bids, asks := s.eng.Depth()
	respondJSON(w, BookSnapshot{
		Bids:      toLevels(bids),
		Asks:      toLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	bid, err := s.eng.BestBid()
	if err != nil {
		respondError(w, http.StatusNotFound, "book empty", err.Error())
		return
	}
	ask, err := s.eng.BestAsk()
	if err != nil {
		respondError(w, http.StatusNotFound, "book empty", err.Error())
		return
	}
	mid, err := s.eng.MidPrice()
	if err != nil {
		respondError(w, http.StatusNotFound, "book empty", err.Error())
		return
	}
	respondJSON(w, PriceInfo{BestBid: bid, BestAsk: ask, Mid: mid})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	history := s.eng.History()

	// Most recent first, optionally limited.
	limit := len(history)
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n >= 0 && n < limit {
			limit = n
		}
	}
	out := make([]TradeInfo, 0, limit)
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, toTradeInfo(history[i]))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, VolumeInfo{
		Total:      s.eng.TotalVolume(),
		LastSecond: s.eng.VolumeInLastSecond(),
	})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "side must be bid or ask")
		return
	}

	id, err := s.eng.SubmitOrder(side, req.Price, req.Quantity, req.ClientID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	s.log.Infow("order_submitted", "id", id, "side", req.Side, "client", req.ClientID)
	s.broadcastBook()
	respondJSON(w, SubmitOrderResponse{ID: id, Status: "resting"})
}

func (s *Server) handleAmendOrder(w http.ResponseWriter, r *http.Request) {
	var req AmendOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "side must be bid or ask")
		return
	}

	if err := s.eng.AmendOrder(req.ID, side, req.Price, req.Quantity); err != nil {
		respondEngineError(w, err)
		return
	}
	s.broadcastBook()
	respondJSON(w, map[string]string{"status": "amended"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "side must be bid or ask")
		return
	}

	if err := s.eng.CancelOrder(req.ID, side); err != nil {
		respondEngineError(w, err)
		return
	}
	s.broadcastBook()
	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	status := s.eng.OrderStatus(id)
	if status == engine.StatusUnknown {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, OrderReport{ID: id, Status: status.String()})
}

func (s *Server) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	var req RegisterClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.clients.Register(req.ID, req.Cash, req.Assets); err != nil {
		if errors.Is(err, client.ErrAlreadyRegistered) {
			respondError(w, http.StatusConflict, "client already registered", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "registration failed", err.Error())
		return
	}

	s.log.Infow("client_registered", "id", req.ID)
	respondJSON(w, map[string]string{"status": "registered"})
}

func (s *Server) handleGetClients(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.clients.All())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// broadcastBook pushes a fresh depth snapshot to "book" subscribers.
func (s *Server) broadcastBook() {
	bids, asks := s.eng.Depth()
	s.hub.BroadcastToChannel("book", BookUpdate{
		Type:      "book",
		Bids:      toLevels(bids),
		Asks:      toLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	})
}

func parseSide(s string) (book.Side, bool) {
	switch s {
	case "bid", "buy":
		return book.Bid, true
	case "ask", "sell":
		return book.Ask, true
	default:
		return 0, false
	}
}

func toLevels(levels []book.Level) []LevelInfo {
	out := make([]LevelInfo, len(levels))
	for i, l := range levels {
		out[i] = LevelInfo{Price: l.Price, Quantity: l.Quantity, Orders: l.Orders}
	}
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}

// respondEngineError maps core error taxonomy to HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, book.ErrMalformedOrder):
		respondError(w, http.StatusBadRequest, "malformed order", err.Error())
	case errors.Is(err, book.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, client.ErrUnknownClient):
		respondError(w, http.StatusNotFound, "unknown client", err.Error())
	case errors.Is(err, engine.ErrInsufficientBalance), errors.Is(err, engine.ErrInsufficientAsset):
		respondError(w, http.StatusUnprocessableEntity, "order rejected", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
