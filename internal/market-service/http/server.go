package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/internal/market-service/dto"
	"github.com/radieske/pool-market-poc/internal/market-service/engine"
	"github.com/radieske/pool-market-poc/internal/market-service/repo"
)

// Funder financia apostas no wallet-service (reserva antes, commit/refund depois)
type Funder interface {
	Reserve(ctx context.Context, userID string, cents int64, externalRef string) (string, error)
	Commit(ctx context.Context, userID, externalRef string) error
	Refund(ctx context.Context, userID, externalRef string) error
}

// Server expõe o engine via HTTP. funds e wsHandler são opcionais.
type Server struct {
	log       *zap.Logger
	eng       *engine.Engine
	funds     Funder
	wsHandler http.HandlerFunc
	validate  *validator.Validate
}

type Option func(*Server)

// WithFunder liga o financiamento das apostas na wallet
func WithFunder(f Funder) Option { return func(s *Server) { s.funds = f } }

// WithWebSocket registra o handler do hub em /ws
func WithWebSocket(h http.HandlerFunc) Option { return func(s *Server) { s.wsHandler = h } }

func NewServer(log *zap.Logger, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{log: log, eng: eng, validate: validator.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/markets", func(r chi.Router) {
		r.Post("/", s.createMarket)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getMarket)
			r.Get("/pools/{option}", s.getOptionPool)
			r.Get("/bets/{userId}/{option}", s.getUserBet)
			r.Get("/claimable/{userId}", s.getClaimable)
			r.Post("/bets", s.placeBet)
			r.Post("/resolve", s.resolve)
			r.Post("/withdraw", s.withdraw)
		})
	})
	r.Get("/users/{userId}/markets", s.getUserMarkets)
	if s.wsHandler != nil {
		r.Get("/ws", s.wsHandler)
	}
	return r
}

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMarketRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.eng.CreateMarket(r.Context(), req.UserID, req.Question, req.Options, req.DurationSeconds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/markets/"+strconv.FormatInt(id, 10))
	writeJSONStatus(w, http.StatusCreated, dto.CreateMarketResponse{MarketID: id})
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	m, err := s.eng.GetMarket(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, toMarketResponse(m, s.eng.Now()))
}

func (s *Server) getOptionPool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	option, ok := pathInt(w, r, "option")
	if !ok {
		return
	}
	amount, err := s.eng.GetOptionPool(r.Context(), id, option)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.AmountResponse{MarketID: id, Option: &option, AmountCents: amount})
}

func (s *Server) getUserBet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	option, ok := pathInt(w, r, "option")
	if !ok {
		return
	}
	user := chi.URLParam(r, "userId")
	amount, err := s.eng.GetUserBet(r.Context(), id, user, option)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.AmountResponse{MarketID: id, UserID: user, Option: &option, AmountCents: amount})
}

func (s *Server) getClaimable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	user := chi.URLParam(r, "userId")
	amount, err := s.eng.Claimable(r.Context(), id, user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.AmountResponse{MarketID: id, UserID: user, AmountCents: amount})
}

func (s *Server) getUserMarkets(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "userId")
	ids, err := s.eng.GetUserMarkets(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, dto.UserMarketsResponse{UserID: user, MarketIDs: ids})
}

// placeBet reserva o valor na wallet, registra no pool e confirma a reserva.
// Qualquer falha do engine devolve a reserva.
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req dto.PlaceBetRequest
	if !s.decode(w, r, &req) {
		return
	}

	// valor inválido não chega na wallet; o engine responde com o erro certo
	var ref string
	if s.funds != nil && req.UserID != "" && req.AmountCents > 0 {
		ref = "bet:" + uuid.NewString()
		if _, err := s.funds.Reserve(r.Context(), req.UserID, req.AmountCents, ref); err != nil {
			s.log.Warn("wallet reserve failed",
				zap.Int64("market_id", id), zap.String("user_id", req.UserID), zap.Error(err))
			writeJSONStatus(w, http.StatusConflict, dto.ErrorResponse{Error: "wallet reserve failed", Code: "FUNDING_FAILED"})
			return
		}
	}

	if err := s.eng.PlaceBet(r.Context(), req.UserID, id, req.Option, req.AmountCents); err != nil {
		if ref != "" {
			s.settle("refund", req.UserID, ref, s.funds.Refund)
		}
		s.writeError(w, err)
		return
	}
	if ref != "" {
		s.settle("commit", req.UserID, ref, s.funds.Commit)
	}

	writeJSONStatus(w, http.StatusCreated, dto.PlaceBetResponse{
		MarketID:    id,
		Option:      req.Option,
		AmountCents: req.AmountCents,
		FundingRef:  ref,
		Status:      "ACCEPTED",
	})
}

// settle roda commit/refund com contexto próprio: o request pode já ter sido cancelado
func (s *Server) settle(op, userID, ref string, fn func(context.Context, string, string) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := fn(ctx, userID, ref); err != nil {
		s.log.Error("wallet "+op+" failed", zap.String("user_id", userID), zap.String("ref", ref), zap.Error(err))
	}
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req dto.ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.ResolveMarket(r.Context(), req.UserID, id, req.WinningOption); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.eng.GetMarket(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, toMarketResponse(m, s.eng.Now()))
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req dto.WithdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	paid, err := s.eng.WithdrawWinnings(r.Context(), req.UserID, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.AmountResponse{MarketID: id, UserID: req.UserID, AmountCents: paid})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json", Code: "INVALID_REQUEST"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return false
	}
	return true
}

// statusFor mapeia o código do engine para o status HTTP
func statusFor(code string) int {
	switch code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "UNAUTHORIZED":
		return http.StatusForbidden
	case "INVALID_QUESTION", "INVALID_OPTIONS", "INVALID_DURATION", "INVALID_OPTION", "ZERO_AMOUNT", "AMOUNT_TOO_LARGE":
		return http.StatusBadRequest
	case "MARKET_CLOSED", "MARKET_NOT_ENDED", "ALREADY_RESOLVED", "NOT_RESOLVED", "NO_WINNING_STAKE", "NO_WINNERS_POOL":
		return http.StatusConflict
	case "TRANSFER_FAILED":
		return http.StatusBadGateway
	case "LOCK_TIMEOUT":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := engine.Code(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSONStatus(w, status, dto.ErrorResponse{Error: msg, Code: code})
}

func toMarketResponse(m *repo.Market, now time.Time) dto.MarketResponse {
	out := dto.MarketResponse{
		MarketID:    m.ID,
		Question:    m.Question,
		Options:     m.Options,
		Creator:     m.Creator,
		EndTime:     m.EndTime,
		Status:      string(engine.StatusAt(m, now)),
		Resolved:    m.Resolved,
		TotalPool:   m.TotalPool,
		OptionPools: m.OptionPools,
		ResolvedAt:  m.ResolvedAt,
	}
	if m.Resolved {
		win := m.WinningOption
		out.WinningOption = &win
	}
	return out
}

func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid path parameter: " + name, Code: "INVALID_REQUEST"})
		return 0, false
	}
	return v, true
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid path parameter: " + name, Code: "INVALID_REQUEST"})
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
