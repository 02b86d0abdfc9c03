package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tdp_go/internal/domain"
	"tdp_go/internal/infra"
	"tdp_go/internal/service"
)

// HealthChecker reports whether the upstream game data service is
// reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server is the HTTP/WS surface over the session, limits and metrics
// services. Booked trades are fanned out to websocket subscribers.
type Server struct {
	sessions *service.Sessions
	limits   *service.Limits
	metrics  *service.Metrics
	health   HealthChecker
	counters *infra.Counters
	log      *slog.Logger

	tradeHub *hub[bookedTrade]
	upgrader websocket.Upgrader
}

type bookedTrade struct {
	SessionID string       `json:"session_id"`
	StratName string       `json:"strat_name"`
	Trade     domain.Trade `json:"trade"`
}

// New wires the server surface.
func New(sessions *service.Sessions, limits *service.Limits, metrics *service.Metrics, health HealthChecker, counters *infra.Counters, log *slog.Logger) *Server {
	return &Server{
		sessions: sessions,
		limits:   limits,
		metrics:  metrics,
		health:   health,
		counters: counters,
		log:      log,
		tradeHub: newHub[bookedTrade](),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Routes builds the request mux with CORS and request-log middleware
// applied to every handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", s.wrap(s.handleHealth))
	mux.Handle("/session", s.wrap(s.handleSession))
	mux.Handle("/session/orders", s.wrap(s.handleSessionOrders))
	mux.Handle("/session/trades", s.wrap(s.handleSessionTrades))
	mux.Handle("/session/validity", s.wrap(s.handleValidity))
	mux.Handle("/limits", s.wrap(s.handleLimits))
	mux.Handle("/metrics/pnl", s.wrap(s.handlePnl))
	mux.Handle("/metrics/nw", s.wrap(s.handleNetWorth))
	mux.Handle("/ws/trades", s.withCORS(http.HandlerFunc(s.handleTradeStream)))
	return mux
}

func (s *Server) wrap(h http.HandlerFunc) http.Handler {
	return s.withCORS(s.withLogging(h))
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.counters.RecordRequest(time.Since(start).Nanoseconds())
		s.log.Info("request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.health.Health(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"counters": s.counters.Read(),
	})
}

type createSessionRequest struct {
	SessionID  string    `json:"session_id"`
	PlayerName string    `json:"player_name"`
	Env        string    `json:"env"`
	StartTime  time.Time `json:"start_time"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
			return
		}
		session, err := s.sessions.Get(r.Context(), sessionID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)

	case http.MethodPost:
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
			return
		}
		if req.SessionID == "" || req.PlayerName == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("session_id and player_name are required"))
			return
		}
		if req.StartTime.IsZero() {
			req.StartTime = time.Now()
		}
		session, err := s.sessions.Create(r.Context(), req.SessionID, req.PlayerName, domain.ParseEnvironment(req.Env), req.StartTime)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, session)

	case http.MethodPut:
		var session domain.TradeSession
		if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
			return
		}
		if session.SessionID == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
			return
		}
		if err := s.sessions.Update(r.Context(), session); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type saveOrdersRequest struct {
	SessionID string         `json:"session_id"`
	Orders    []domain.Order `json:"orders"`
}

func (s *Server) handleSessionOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
			return
		}
		orders, err := s.sessions.Orders(r.Context(), sessionID, csvParam(r, "strats"))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)

	case http.MethodPut:
		var req saveOrdersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
			return
		}
		if req.SessionID == "" || len(req.Orders) == 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("session_id and orders are required"))
			return
		}
		for i := range req.Orders {
			if req.Orders[i].ID == "" {
				req.Orders[i].ID = uuid.NewString()
			}
		}
		if err := s.sessions.SaveOrders(r.Context(), req.SessionID, req.Orders); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type bookTradesRequest struct {
	SessionID string `json:"session_id"`
	CalcCycle int    `json:"calc_cycle"`
}

func (s *Server) handleSessionTrades(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
			return
		}
		trades, err := s.sessions.Trades(r.Context(), sessionID, csvParam(r, "strats"))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, trades)

	case http.MethodPost:
		var req bookTradesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
			return
		}
		if req.SessionID == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
			return
		}
		trades, err := s.sessions.BookTrades(r.Context(), req.SessionID, req.CalcCycle, time.Now())
		if err != nil {
			s.writeDomainError(w, err)
			return
		}

		booked := 0
		for strat, list := range trades {
			for _, trade := range list {
				s.tradeHub.Broadcast(bookedTrade{
					SessionID: req.SessionID,
					StratName: strat,
					Trade:     trade,
				})
				booked++
			}
		}
		s.counters.RecordTradesBooked(booked)
		writeJSON(w, http.StatusOK, trades)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type validityRequest struct {
	SessionID string `json:"session_id"`
	Valid     bool   `json:"valid"`
}

func (s *Server) handleValidity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req validityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
		return
	}
	if err := s.sessions.SetValidity(r.Context(), req.SessionID, req.Valid); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "set"})
}

type updateLimitsRequest struct {
	PlayerName string `json:"player_name"`
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		player := r.URL.Query().Get("player")
		if player == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("player is required"))
			return
		}
		container := domain.ItemContainerAll
		if raw := r.URL.Query().Get("container"); raw != "" {
			parsed, ok := domain.ParseItemContainer(raw)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown item container %q", raw))
				return
			}
			container = parsed
		}
		itemIDs, err := itemIDsParam(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		limits, err := s.limits.Get(r.Context(), player, container, itemIDs)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, limits)

	case http.MethodPost:
		var req updateLimitsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
			return
		}
		if req.PlayerName == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("player_name is required"))
			return
		}
		if err := s.limits.Update(r.Context(), req.PlayerName, time.Now()); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePnl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
		return
	}
	pnl, err := s.metrics.Pnl(r.Context(), sessionID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pnl)
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
		return
	}
	nw, err := s.metrics.NetWorth(r.Context(), sessionID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"net_worth": nw})
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.tradeHub.Subscribe(32)
	defer s.tradeHub.Unsubscribe(sub)

	for trade := range sub.ch {
		if err := conn.WriteJSON(trade); err != nil {
			return
		}
	}
}

// writeDomainError maps the error taxonomy onto HTTP statuses: missing
// keys are 404, conflicting writes are 409, consistency violations are
// 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var notFound *domain.KeyNotFoundError
	var unbooked *domain.UnbookedOrderError

	switch {
	case errors.As(err, &notFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrSessionExists), errors.As(err, &unbooked):
		s.writeError(w, http.StatusConflict, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.counters.RecordError()
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func csvParam(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	vals := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			vals = append(vals, trimmed)
		}
	}
	return vals
}

func itemIDsParam(r *http.Request) ([]int, error) {
	raw := r.URL.Query().Get("items")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
