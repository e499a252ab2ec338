package optimizer

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	imetrics "github.com/ldmdldm/pylot-project/internal/metrics"
	"github.com/ldmdldm/pylot-project/internal/quote"
	"github.com/ldmdldm/pylot-project/internal/route"
	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

// tally is the failure census for one request. Workers only touch the
// reasons map (under mu); the remaining counters belong to the
// coordinating goroutine.
type tally struct {
	mu      sync.Mutex
	reasons map[quote.Reason]int

	stale             int
	liquidityFiltered int
	eligibleSwaps     int
	eligibleBridges   int
}

func newTally() *tally {
	return &tally{reasons: make(map[quote.Reason]int)}
}

func (t *tally) fail(p quote.Protocol, r quote.Reason) {
	t.mu.Lock()
	t.reasons[r]++
	t.mu.Unlock()
	imetrics.QuoteFailures.WithLabelValues(string(p), string(r)).Inc()
}

func (t *tally) counts() map[quote.Reason]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[quote.Reason]int, len(t.reasons))
	for k, v := range t.reasons {
		out[k] = v
	}
	return out
}

func classify(err error) quote.Reason {
	if r, ok := quote.ReasonOf(err); ok {
		return r
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return quote.ReasonTimeout
	}
	return quote.ReasonProtocol
}

// legSpec is one pair to quote in a round, against a set of sources.
type legSpec struct {
	key     string
	req     quote.Request
	sources []quote.Source
}

// gatherRound issues every (leg, source) call of one round concurrently
// and joins. Each call gets its own timeout so a slow source cannot
// stall the others. Results per leg come back sorted by protocol.
func (o *Optimizer) gatherRound(ctx context.Context, specs []legSpec, tl *tally, log *zap.Logger) map[string][]*quote.Quote {
	results := make(map[string][]*quote.Quote, len(specs))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, sp := range specs {
		for _, src := range sp.sources {
			if !src.Supports(sp.req.TokenIn, sp.req.TokenOut) {
				continue
			}
			if src.Kind() == quote.KindBridge {
				tl.eligibleBridges++
			} else {
				tl.eligibleSwaps++
			}
			sp, src := sp, src
			wg.Add(1)
			go func() {
				defer wg.Done()
				cctx, cancel := context.WithTimeout(ctx, o.cfg.QuoteTimeout)
				defer cancel()
				begin := time.Now()
				q, err := src.Quote(cctx, sp.req)
				imetrics.QuoteLatency.WithLabelValues(string(src.Protocol())).Observe(time.Since(begin).Seconds())
				if err != nil {
					reason := classify(err)
					tl.fail(src.Protocol(), reason)
					log.Debug("quote failed",
						zap.String("protocol", string(src.Protocol())),
						zap.String("leg", sp.key),
						zap.String("reason", string(reason)),
						zap.Error(err))
					return
				}
				if q == nil || q.AmountOut == nil || q.AmountOut.Sign() <= 0 {
					tl.fail(src.Protocol(), quote.ReasonNoLiquidity)
					return
				}
				mu.Lock()
				results[sp.key] = append(results[sp.key], q)
				mu.Unlock()
			}()
		}
	}
	wg.Wait()
	for _, qs := range results {
		sort.Slice(qs, func(i, j int) bool { return qs[i].Protocol < qs[j].Protocol })
	}
	return results
}

func (o *Optimizer) enumerate(ctx context.Context, req Request, src, dst token.Token, tl *tally, log *zap.Logger) []*route.Route {
	// Requests may tighten the hop bound, never exceed the configured one.
	maxHops := req.MaxHops
	if maxHops == 0 || maxHops > o.cfg.MaxHops {
		maxHops = o.cfg.MaxHops
	}
	if src.Chain == dst.Chain {
		return o.sameChain(ctx, src, dst, req.AmountIn, maxHops, tl, log)
	}
	return o.crossChain(ctx, src, dst, req.AmountIn, maxHops, tl, log)
}

// sameChain enumerates direct swaps plus two-hop splits through each
// configured hub. The second leg is quoted at the best first-leg output;
// intermediate legs take the best quote, the final leg fans into one
// candidate per source so scoring can still weigh reliability.
func (o *Optimizer) sameChain(ctx context.Context, src, dst token.Token, amount *big.Int, maxHops int, tl *tally, log *zap.Logger) []*route.Route {
	swaps := o.sources.Swaps()

	specs := []legSpec{{key: "direct", req: quote.Request{TokenIn: src, TokenOut: dst, AmountIn: amount}, sources: swaps}}
	var hubs []token.Token
	if maxHops >= 2 {
		for _, hub := range o.tokens.Hubs(src.Chain) {
			if hub.Symbol == src.Symbol || hub.Symbol == dst.Symbol {
				continue
			}
			hubs = append(hubs, hub)
			specs = append(specs, legSpec{key: "hub1:" + hub.Symbol, req: quote.Request{TokenIn: src, TokenOut: hub, AmountIn: amount}, sources: swaps})
		}
	}
	round1 := o.gatherRound(ctx, specs, tl, log)

	var routes []*route.Route
	for _, q := range round1["direct"] {
		if r := o.buildRoute(tl, log, q); r != nil {
			routes = append(routes, r)
		}
	}

	var (
		second []legSpec
		first  = make(map[string]*quote.Quote, len(hubs))
	)
	for _, hub := range hubs {
		b := bestByOutput(round1["hub1:"+hub.Symbol])
		if b == nil {
			continue
		}
		first[hub.Symbol] = b
		second = append(second, legSpec{key: "hub2:" + hub.Symbol, req: quote.Request{TokenIn: hub, TokenOut: dst, AmountIn: b.AmountOut}, sources: swaps})
	}
	if len(second) == 0 {
		return routes
	}
	round2 := o.gatherRound(ctx, second, tl, log)
	for _, hub := range hubs {
		b, ok := first[hub.Symbol]
		if !ok {
			continue
		}
		for _, q2 := range round2["hub2:"+hub.Symbol] {
			if r := o.buildRoute(tl, log, b, q2); r != nil {
				routes = append(routes, r)
			}
		}
	}
	return routes
}

// crossChain enumerates every shape that ends on the target chain within
// the hop bound: a direct bridge for same-symbol pairs, swap then bridge,
// bridge then swap, and three-hop variants through hubs (hub split before
// the bridge, or swap-bridge-swap carrying a hub asset across).
func (o *Optimizer) crossChain(ctx context.Context, src, dst token.Token, amount *big.Int, maxHops int, tl *tally, log *zap.Logger) []*route.Route {
	swaps := o.sources.Swaps()
	bridges := o.sources.Bridges()
	sameSymbol := src.Symbol == dst.Symbol

	dstOnSrc, hasDstOnSrc := o.tokens.Token(dst.Symbol, src.Chain)
	srcOnDst, hasSrcOnDst := o.tokens.Token(src.Symbol, dst.Chain)

	var specs []legSpec
	if sameSymbol {
		specs = append(specs, legSpec{key: "bridge", req: quote.Request{TokenIn: src, TokenOut: dst, AmountIn: amount}, sources: bridges})
	}
	if !sameSymbol && hasDstOnSrc && maxHops >= 2 {
		specs = append(specs, legSpec{key: "srcswap", req: quote.Request{TokenIn: src, TokenOut: dstOnSrc, AmountIn: amount}, sources: swaps})
	}
	if !sameSymbol && hasSrcOnDst && maxHops >= 2 {
		specs = append(specs, legSpec{key: "bridgefirst", req: quote.Request{TokenIn: src, TokenOut: srcOnDst, AmountIn: amount}, sources: bridges})
	}
	var hubs []token.Token
	if maxHops >= 3 {
		for _, hub := range o.tokens.Hubs(src.Chain) {
			if hub.Symbol == src.Symbol || hub.Symbol == dst.Symbol {
				continue
			}
			hubs = append(hubs, hub)
			specs = append(specs, legSpec{key: "srchub:" + hub.Symbol, req: quote.Request{TokenIn: src, TokenOut: hub, AmountIn: amount}, sources: swaps})
		}
	}
	round1 := o.gatherRound(ctx, specs, tl, log)

	var routes []*route.Route
	for _, q := range round1["bridge"] {
		if r := o.buildRoute(tl, log, q); r != nil {
			routes = append(routes, r)
		}
	}

	var (
		second    []legSpec
		bestSwap  = bestByOutput(round1["srcswap"])
		bestEntry = bestByOutput(round1["bridgefirst"])
		firstHub  = make(map[string]*quote.Quote, len(hubs))
	)
	if bestSwap != nil {
		second = append(second, legSpec{key: "bridgeout", req: quote.Request{TokenIn: dstOnSrc, TokenOut: dst, AmountIn: bestSwap.AmountOut}, sources: bridges})
	}
	if bestEntry != nil {
		second = append(second, legSpec{key: "dstswap", req: quote.Request{TokenIn: srcOnDst, TokenOut: dst, AmountIn: bestEntry.AmountOut}, sources: swaps})
	}
	for _, hub := range hubs {
		b := bestByOutput(round1["srchub:"+hub.Symbol])
		if b == nil {
			continue
		}
		firstHub[hub.Symbol] = b
		if !sameSymbol && hasDstOnSrc {
			second = append(second, legSpec{key: "hubexit:" + hub.Symbol, req: quote.Request{TokenIn: hub, TokenOut: dstOnSrc, AmountIn: b.AmountOut}, sources: swaps})
		}
		if hubOnDst, ok := o.tokens.Token(hub.Symbol, dst.Chain); ok {
			second = append(second, legSpec{key: "hubbridge:" + hub.Symbol, req: quote.Request{TokenIn: hub, TokenOut: hubOnDst, AmountIn: b.AmountOut}, sources: bridges})
		}
	}
	if len(second) == 0 {
		return routes
	}
	round2 := o.gatherRound(ctx, second, tl, log)

	// Two-hop shapes finish here: the final leg fans into candidates.
	for _, qb := range round2["bridgeout"] {
		if r := o.buildRoute(tl, log, bestSwap, qb); r != nil {
			routes = append(routes, r)
		}
	}
	for _, q2 := range round2["dstswap"] {
		if r := o.buildRoute(tl, log, bestEntry, q2); r != nil {
			routes = append(routes, r)
		}
	}

	var third []legSpec
	hubExit := make(map[string]*quote.Quote, len(hubs))
	hubBridge := make(map[string]*quote.Quote, len(hubs))
	for _, hub := range hubs {
		if firstHub[hub.Symbol] == nil {
			continue
		}
		if b := bestByOutput(round2["hubexit:"+hub.Symbol]); b != nil {
			hubExit[hub.Symbol] = b
			third = append(third, legSpec{key: "hubexitbridge:" + hub.Symbol, req: quote.Request{TokenIn: dstOnSrc, TokenOut: dst, AmountIn: b.AmountOut}, sources: bridges})
		}
		if b := bestByOutput(round2["hubbridge:"+hub.Symbol]); b != nil {
			hubBridge[hub.Symbol] = b
			third = append(third, legSpec{key: "hublanding:" + hub.Symbol, req: quote.Request{TokenIn: b.TokenOut, TokenOut: dst, AmountIn: b.AmountOut}, sources: swaps})
		}
	}
	if len(third) == 0 {
		return routes
	}
	round3 := o.gatherRound(ctx, third, tl, log)
	for _, hub := range hubs {
		b1 := firstHub[hub.Symbol]
		if b1 == nil {
			continue
		}
		if b2 := hubExit[hub.Symbol]; b2 != nil {
			for _, qb := range round3["hubexitbridge:"+hub.Symbol] {
				if r := o.buildRoute(tl, log, b1, b2, qb); r != nil {
					routes = append(routes, r)
				}
			}
		}
		if bb := hubBridge[hub.Symbol]; bb != nil {
			for _, q2 := range round3["hublanding:"+hub.Symbol] {
				if r := o.buildRoute(tl, log, b1, bb, q2); r != nil {
					routes = append(routes, r)
				}
			}
		}
	}
	return routes
}

// buildRoute turns a quote chain into a validated route. Stale quotes
// void the whole candidate; gas cost is priced from the oracle when the
// source did not price it itself.
func (o *Optimizer) buildRoute(tl *tally, log *zap.Logger, quotes ...*quote.Quote) *route.Route {
	now := time.Now()
	hops := make([]route.Hop, 0, len(quotes))
	for _, q := range quotes {
		if q.Stale(now, o.cfg.QuoteTTL) {
			tl.stale++
			log.Debug("quote stale",
				zap.String("protocol", string(q.Protocol)),
				zap.Time("quoted_at", q.Timestamp))
			return nil
		}
		hops = append(hops, o.hopFromQuote(q))
	}
	r, err := route.Build(hops)
	if err != nil {
		log.Warn("route assembly rejected", zap.Error(err))
		return nil
	}
	return r
}

func (o *Optimizer) hopFromQuote(q *quote.Quote) route.Hop {
	h := route.Hop{
		Kind:        route.HopKind(q.Kind),
		Protocol:    string(q.Protocol),
		TokenIn:     q.TokenIn,
		TokenOut:    q.TokenOut,
		AmountIn:    q.AmountIn,
		AmountOut:   q.AmountOut,
		GasEstimate: q.GasEstimate,
		GasCostWei:  q.GasCostWei,
		FeeBps:      q.FeeBps,
		LatencySec:  q.LatencySec,
		FeeTier:     q.Meta.FeeTier,
	}
	if h.GasCostWei == nil && h.GasEstimate > 0 {
		if gp, ok := o.oracle.GasPrice(q.TokenIn.Chain); ok {
			h.GasCostWei = new(big.Int).Mul(gp, new(big.Int).SetUint64(h.GasEstimate))
		}
	}
	return h
}

// bestByOutput picks the quote with the highest output. Inputs arrive
// sorted by protocol, so ties resolve to the lexicographically smaller
// protocol and replays pick the same leg.
func bestByOutput(qs []*quote.Quote) *quote.Quote {
	var best *quote.Quote
	for _, q := range qs {
		if best == nil || q.AmountOut.Cmp(best.AmountOut) > 0 {
			best = q
		}
	}
	return best
}
