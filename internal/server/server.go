package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/ldmdldm/pylot-project/internal/analytics"
	imetrics "github.com/ldmdldm/pylot-project/internal/metrics"
	"github.com/ldmdldm/pylot-project/internal/optimizer"
	"github.com/ldmdldm/pylot-project/internal/oracle"
	"github.com/ldmdldm/pylot-project/internal/reliability"
	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

// Server is the JSON API in front of the optimizer: route requests,
// admin pushes for prices and gas, registry introspection and a
// websocket feed of decisions.
type Server struct {
	opt    *optimizer.Optimizer
	oracle *oracle.Oracle
	tokens *token.Registry
	stats  *reliability.Stats
	ws     *Broadcaster
	log    *zap.Logger
}

func New(opt *optimizer.Optimizer, o *oracle.Oracle, tokens *token.Registry, stats *reliability.Stats, ws *Broadcaster, log *zap.Logger) *Server {
	return &Server{opt: opt, oracle: o, tokens: tokens, stats: stats, ws: ws, log: log}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/route", s.handleRoute)
	mux.HandleFunc("/api/v1/admin/price", s.handlePrice)
	mux.HandleFunc("/api/v1/admin/gas", s.handleGas)
	mux.HandleFunc("/api/v1/admin/outcome", s.handleOutcome)
	mux.HandleFunc("/api/v1/tokens", s.handleTokens)
	mux.HandleFunc("/api/v1/reliability", s.handleReliability)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.ws != nil {
		mux.HandleFunc("/ws", s.ws.Handler())
	}
	return withCORS(mux)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("api server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("api server shutdown error", zap.Error(err))
		return err
	}
	s.log.Info("api server stopped")
	return nil
}

type routeRequest struct {
	SourceToken string `json:"source_token"`
	SourceChain uint64 `json:"source_chain"`
	TargetToken string `json:"target_token"`
	TargetChain uint64 `json:"target_chain"`
	AmountIn    string `json:"amount_in"`
	MaxHops     int    `json:"max_hops,omitempty"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	amount, ok := new(big.Int).SetString(req.AmountIn, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount_in must be a base-unit integer string")
		return
	}

	d, err := s.opt.FindBestRoute(r.Context(), optimizer.Request{
		SourceToken: req.SourceToken,
		SourceChain: token.ChainID(req.SourceChain),
		TargetToken: req.TargetToken,
		TargetChain: token.ChainID(req.TargetChain),
		AmountIn:    amount,
		MaxHops:     req.MaxHops,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analytics.FromDecision(*d))
}

// statusFor maps the optimizer's error taxonomy onto HTTP. The wrapped
// variants are checked before the generic no-route sentinel.
func statusFor(err error) int {
	switch {
	case errors.Is(err, optimizer.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, optimizer.ErrAllProtocolsTimedOut):
		return http.StatusRequestTimeout
	case errors.Is(err, optimizer.ErrNoLiquidityAnywhere):
		return http.StatusUnprocessableEntity
	case errors.Is(err, optimizer.ErrNoRouteFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type priceRequest struct {
	Symbol    string `json:"symbol"`
	Chain     uint64 `json:"chain"`
	Price     string `json:"price"`
	Liquidity string `json:"liquidity,omitempty"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	price, ok := new(big.Int).SetString(req.Price, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "price must be an integer string scaled by 1e8")
		return
	}
	var liquidity *big.Int
	if req.Liquidity != "" {
		liquidity, ok = new(big.Int).SetString(req.Liquidity, 10)
		if !ok {
			writeError(w, http.StatusBadRequest, "liquidity must be a base-unit integer string")
			return
		}
	}
	if err := s.oracle.UpdatePrice(req.Symbol, token.ChainID(req.Chain), price, liquidity); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	imetrics.PriceUpdates.Inc()
	w.WriteHeader(http.StatusNoContent)
}

type gasRequest struct {
	Chain uint64 `json:"chain"`
	Wei   string `json:"wei"`
}

func (s *Server) handleGas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req gasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	wei, ok := new(big.Int).SetString(req.Wei, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "wei must be an integer string")
		return
	}
	if err := s.oracle.SetGasPrice(token.ChainID(req.Chain), wei); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type outcomeRequest struct {
	Protocol    string  `json:"protocol"`
	SlippageBps float64 `json:"slippage_bps"`
	ExecSeconds float64 `json:"exec_seconds"`
	Success     bool    `json:"success"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	if req.Protocol == "" {
		writeError(w, http.StatusBadRequest, "protocol required")
		return
	}
	s.stats.Record(reliability.Outcome{
		Protocol:    req.Protocol,
		SlippageBps: req.SlippageBps,
		ExecSeconds: req.ExecSeconds,
		Success:     req.Success,
	})
	imetrics.OutcomesIngested.WithLabelValues(req.Protocol).Inc()
	w.WriteHeader(http.StatusNoContent)
}

type tokenDTO struct {
	Symbol   string `json:"symbol"`
	Chain    uint64 `json:"chain"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	list := s.tokens.Tokens()
	out := make([]tokenDTO, len(list))
	for i, t := range list {
		out[i] = tokenDTO{
			Symbol:   t.Symbol,
			Chain:    uint64(t.Chain),
			Address:  t.Address.Hex(),
			Decimals: t.Decimals,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type reliabilityDTO struct {
	Protocol       string  `json:"protocol"`
	Samples        int64   `json:"samples"`
	Successes      int64   `json:"successes"`
	SuccessRatio   float64 `json:"success_ratio"`
	AvgSlippageBps float64 `json:"avg_slippage_bps"`
	AvgExecSeconds float64 `json:"avg_exec_seconds"`
}

func (s *Server) handleReliability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	out := make([]reliabilityDTO, 0)
	for _, p := range s.stats.Protocols() {
		st, _ := s.stats.Snapshot(p)
		out = append(out, reliabilityDTO{
			Protocol:       p,
			Samples:        st.Samples,
			Successes:      st.Successes,
			SuccessRatio:   st.SuccessRatio(),
			AvgSlippageBps: st.AvgSlippageBps,
			AvgExecSeconds: st.AvgExecSeconds,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
