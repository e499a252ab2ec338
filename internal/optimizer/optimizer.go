package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
	imetrics "github.com/ldmdldm/pylot-project/internal/metrics"
	"github.com/ldmdldm/pylot-project/internal/oracle"
	"github.com/ldmdldm/pylot-project/internal/quote"
	"github.com/ldmdldm/pylot-project/internal/route"
	"github.com/ldmdldm/pylot-project/internal/scoring"
	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNoRouteFound   = errors.New("no route found")

	// Both wrap ErrNoRouteFound so callers catching the general case
	// still match, while retry policy can tell them apart.
	ErrAllProtocolsTimedOut = fmt.Errorf("%w: all protocols timed out", ErrNoRouteFound)
	ErrNoLiquidityAnywhere  = fmt.Errorf("%w: no liquidity anywhere", ErrNoRouteFound)
)

type Config struct {
	MaxHops         int
	QuoteTimeout    time.Duration
	QuoteTTL        time.Duration
	MaxLiquidityBps int
}

func (c Config) withDefaults() Config {
	if c.MaxHops == 0 {
		c.MaxHops = 3
	}
	if c.QuoteTimeout == 0 {
		c.QuoteTimeout = 3 * time.Second
	}
	if c.QuoteTTL == 0 {
		c.QuoteTTL = 5 * time.Second
	}
	if c.MaxLiquidityBps == 0 {
		c.MaxLiquidityBps = 10000
	}
	return c
}

type Request struct {
	SourceToken string
	TargetToken string
	SourceChain token.ChainID
	TargetChain token.ChainID
	AmountIn    *big.Int
	MaxHops     int
}

type Candidate struct {
	Route *route.Route
	Score scoring.Breakdown
}

// Decision is what one optimization produced: the winning route (nil on
// failure), every scored alternative and the failure bookkeeping. It is
// both the caller's answer and the analytics record's payload.
type Decision struct {
	RequestID  string
	Request    Request
	Route      *route.Route
	Score      scoring.Breakdown
	Candidates []Candidate
	Failure    string
	Failures   map[quote.Reason]int
	StartedAt  time.Time
	Elapsed    time.Duration
}

// Emitter receives decisions fire-and-forget. Implementations must not
// block; a dropped record is preferable to a delayed route.
type Emitter interface {
	Emit(d Decision)
}

type Optimizer struct {
	sources *quote.Registry
	tokens  *token.Registry
	oracle  *oracle.Oracle
	scorer  *scoring.Scorer
	emitter Emitter
	cfg     Config
	log     *zap.Logger
}

func New(sources *quote.Registry, tokens *token.Registry, o *oracle.Oracle, scorer *scoring.Scorer, emitter Emitter, cfg Config, log *zap.Logger) *Optimizer {
	return &Optimizer{
		sources: sources,
		tokens:  tokens,
		oracle:  o,
		scorer:  scorer,
		emitter: emitter,
		cfg:     cfg.withDefaults(),
		log:     log,
	}
}

// RegisterSource adds a quote source at runtime.
func (o *Optimizer) RegisterSource(s quote.Source) { o.sources.Register(s) }

// FindBestRoute enumerates candidate routes for the request, quotes
// every leg with bounded concurrent calls, filters by liquidity and
// staleness, scores the survivors and picks the winner deterministically.
func (o *Optimizer) FindBestRoute(ctx context.Context, req Request) (*Decision, error) {
	started := time.Now()
	id := uuid.NewString()
	log := o.log.With(zap.String("request_id", id))

	src, dst, err := o.resolve(req)
	if err != nil {
		o.finish(&Decision{RequestID: id, Request: req, Failure: "invalid_request", StartedAt: started, Elapsed: time.Since(started)})
		return nil, err
	}

	tl := newTally()
	routes := o.enumerate(ctx, req, src, dst, tl, log)
	if ctx.Err() != nil {
		o.finish(&Decision{RequestID: id, Request: req, Failure: "canceled", Failures: tl.counts(), StartedAt: started, Elapsed: time.Since(started)})
		return nil, ctx.Err()
	}

	survivors := o.filterLiquidity(routes, tl, log)

	var (
		best       *Candidate
		candidates []Candidate
		unscorable int
	)
	for _, r := range survivors {
		bd, err := o.scorer.Score(r)
		if err != nil {
			unscorable++
			log.Warn("candidate unscorable", zap.String("path", r.PathString()), zap.Error(err))
			continue
		}
		c := Candidate{Route: r, Score: bd}
		candidates = append(candidates, c)
		if best == nil || o.scorer.Prefer(scored(c), scored(*best)) {
			best = &c
		}
	}
	if best == nil {
		err := o.terminalError(req, src, dst, tl, len(routes), unscorable)
		d := &Decision{
			RequestID: id,
			Request:   req,
			Failure:   failureLabel(err),
			Failures:  tl.counts(),
			StartedAt: started,
			Elapsed:   time.Since(started),
		}
		o.finish(d)
		log.Info("no route",
			zap.String("pair", token.Key(req.SourceToken, req.SourceChain)+"->"+token.Key(req.TargetToken, req.TargetChain)),
			zap.String("reason", d.Failure),
			zap.Int("enumerated", len(routes)))
		return nil, err
	}

	// Prefer's tie band is not a strict weak ordering, so the ranked
	// alternatives use a plain total order with the winner pinned first.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		if (a.Route == best.Route) != (b.Route == best.Route) {
			return a.Route == best.Route
		}
		if a.Score.Score != b.Score.Score {
			return a.Score.Score > b.Score.Score
		}
		if len(a.Route.Hops) != len(b.Route.Hops) {
			return len(a.Route.Hops) < len(b.Route.Hops)
		}
		return a.Route.PathString() < b.Route.PathString()
	})

	d := &Decision{
		RequestID:  id,
		Request:    req,
		Route:      best.Route,
		Score:      best.Score,
		Candidates: candidates,
		Failures:   tl.counts(),
		StartedAt:  started,
		Elapsed:    time.Since(started),
	}
	o.finish(d)
	log.Info("route selected",
		zap.String("path", best.Route.PathString()),
		zap.String("amount_in", best.Route.AmountIn.String()),
		zap.String("amount_out", best.Route.AmountOut.String()),
		zap.Float64("score", best.Score.Score),
		zap.Int("candidates", len(candidates)),
		zap.Duration("elapsed", d.Elapsed))
	return d, nil
}

func (o *Optimizer) resolve(req Request) (token.Token, token.Token, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return token.Token{}, token.Token{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if req.MaxHops < 0 {
		return token.Token{}, token.Token{}, fmt.Errorf("%w: negative max hops", ErrInvalidRequest)
	}
	src, ok := o.tokens.Token(req.SourceToken, req.SourceChain)
	if !ok {
		return token.Token{}, token.Token{}, fmt.Errorf("%w: unknown token %s", ErrInvalidRequest, token.Key(req.SourceToken, req.SourceChain))
	}
	dst, ok := o.tokens.Token(req.TargetToken, req.TargetChain)
	if !ok {
		return token.Token{}, token.Token{}, fmt.Errorf("%w: unknown token %s", ErrInvalidRequest, token.Key(req.TargetToken, req.TargetChain))
	}
	if src.Key() == dst.Key() {
		return token.Token{}, token.Token{}, fmt.Errorf("%w: source and target are the same token", ErrInvalidRequest)
	}
	return src, dst, nil
}

// filterLiquidity drops routes with a hop whose input exceeds the
// oracle's (scaled) cap for that token and chain.
func (o *Optimizer) filterLiquidity(routes []*route.Route, tl *tally, log *zap.Logger) []*route.Route {
	out := routes[:0]
	for _, r := range routes {
		if hop, ok := o.overCap(r); ok {
			tl.liquidityFiltered++
			imetrics.RoutesFiltered.WithLabelValues("insufficient_liquidity").Inc()
			log.Debug("route filtered: insufficient liquidity",
				zap.String("path", r.PathString()),
				zap.String("token", hop.TokenIn.Key()),
				zap.String("amount_in", hop.AmountIn.String()))
			continue
		}
		out = append(out, r)
	}
	return out
}

func (o *Optimizer) overCap(r *route.Route) (route.Hop, bool) {
	for _, h := range r.Hops {
		cap, ok := o.oracle.LiquidityCap(h.TokenIn.Symbol, h.TokenIn.Chain)
		if !ok {
			continue
		}
		eff := new(big.Int).Mul(cap, big.NewInt(int64(o.cfg.MaxLiquidityBps)))
		eff.Div(eff, big.NewInt(10000))
		if h.AmountIn.Cmp(eff) > 0 {
			return h, true
		}
	}
	return route.Hop{}, false
}

func (o *Optimizer) terminalError(req Request, src, dst token.Token, tl *tally, enumerated, unscorable int) error {
	counts := tl.counts()
	attempts := counts[quote.ReasonTimeout] + counts[quote.ReasonNoLiquidity] + counts[quote.ReasonProtocol] + tl.stale

	if attempts == 0 && enumerated == 0 && unscorable == 0 {
		if src.Chain != dst.Chain && tl.eligibleBridges == 0 {
			return fmt.Errorf("%w: no bridge available from chain %d to chain %d", ErrNoRouteFound, src.Chain, dst.Chain)
		}
		return fmt.Errorf("%w: no source supports %s -> %s (%d swap, %d bridge sources eligible)",
			ErrNoRouteFound, src.Key(), dst.Key(), tl.eligibleSwaps, tl.eligibleBridges)
	}
	if unscorable > 0 && attempts == 0 && tl.liquidityFiltered == 0 {
		return fmt.Errorf("%w: price unavailable for required conversion", ErrNoRouteFound)
	}
	if attempts > 0 && counts[quote.ReasonTimeout] == attempts {
		return ErrAllProtocolsTimedOut
	}
	noLiquidity := counts[quote.ReasonNoLiquidity] + tl.liquidityFiltered
	if noLiquidity > 0 && counts[quote.ReasonTimeout] == 0 && counts[quote.ReasonProtocol] == 0 && tl.stale == 0 && unscorable == 0 {
		return ErrNoLiquidityAnywhere
	}
	return fmt.Errorf("%w: %d quote failures, %d filtered, %d unscorable", ErrNoRouteFound, attempts, tl.liquidityFiltered, unscorable)
}

func (o *Optimizer) finish(d *Decision) {
	outcome := "selected"
	if d.Failure != "" {
		outcome = d.Failure
	}
	imetrics.Decisions.WithLabelValues(outcome).Inc()
	if d.Route != nil {
		imetrics.DecisionScore.Observe(d.Score.Score)
		imetrics.RouteHops.Observe(float64(len(d.Route.Hops)))
	}
	if o.emitter != nil {
		o.emitter.Emit(*d)
	}
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, ErrAllProtocolsTimedOut):
		return "all_timed_out"
	case errors.Is(err, ErrNoLiquidityAnywhere):
		return "no_liquidity"
	case errors.Is(err, ErrNoRouteFound):
		return "no_route"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}

func scored(c Candidate) scoring.Scored {
	return scoring.Scored{
		Breakdown: c.Score,
		Hops:      len(c.Route.Hops),
		Path:      c.Route.PathString(),
	}
}
