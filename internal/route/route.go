package route

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ldmdldm/pylot-project/internal/token"
)

type HopKind string

const (
	HopSwap   HopKind = "swap"
	HopBridge HopKind = "bridge"
)

var ErrEmptyRoute = errors.New("route has no hops")

// Hop is one executable step. A swap changes tokens on one chain, a
// bridge moves the same asset between chains.
type Hop struct {
	Kind        HopKind
	Protocol    string
	TokenIn     token.Token
	TokenOut    token.Token
	AmountIn    *big.Int
	AmountOut   *big.Int
	GasEstimate uint64
	GasCostWei  *big.Int
	FeeBps      int
	LatencySec  float64
	FeeTier     uint32
}

// Route is an ordered hop chain with derived aggregates. Build is the
// only constructor; it validates chaining so a Route in hand is always
// well-formed.
type Route struct {
	Hops        []Hop
	AmountIn    *big.Int
	AmountOut   *big.Int
	LatencySec  float64
	SlippageBps float64
	gasByChain  map[token.ChainID]*big.Int
}

func Build(hops []Hop) (*Route, error) {
	if len(hops) == 0 {
		return nil, ErrEmptyRoute
	}
	for i, h := range hops {
		if h.AmountIn == nil || h.AmountIn.Sign() <= 0 {
			return nil, fmt.Errorf("hop %d (%s): non-positive amount in", i, h.Protocol)
		}
		if h.AmountOut == nil || h.AmountOut.Sign() <= 0 {
			return nil, fmt.Errorf("hop %d (%s): non-positive amount out", i, h.Protocol)
		}
		switch h.Kind {
		case HopSwap:
			if h.TokenIn.Chain != h.TokenOut.Chain {
				return nil, fmt.Errorf("hop %d (%s): swap changes chain", i, h.Protocol)
			}
		case HopBridge:
			if h.TokenIn.Chain == h.TokenOut.Chain {
				return nil, fmt.Errorf("hop %d (%s): bridge stays on chain %d", i, h.Protocol, h.TokenIn.Chain)
			}
			if h.TokenIn.Symbol != h.TokenOut.Symbol {
				return nil, fmt.Errorf("hop %d (%s): bridge changes asset %s->%s", i, h.Protocol, h.TokenIn.Symbol, h.TokenOut.Symbol)
			}
		default:
			return nil, fmt.Errorf("hop %d (%s): unknown kind %q", i, h.Protocol, h.Kind)
		}
		if i > 0 {
			prev := hops[i-1]
			if prev.TokenOut.Key() != h.TokenIn.Key() {
				return nil, fmt.Errorf("hop %d (%s): expects %s but previous hop yields %s", i, h.Protocol, h.TokenIn.Key(), prev.TokenOut.Key())
			}
			if prev.AmountOut.Cmp(h.AmountIn) != 0 {
				return nil, fmt.Errorf("hop %d (%s): amount in %s != previous amount out %s", i, h.Protocol, h.AmountIn, prev.AmountOut)
			}
		}
	}

	r := &Route{
		Hops:       hops,
		AmountIn:   new(big.Int).Set(hops[0].AmountIn),
		AmountOut:  new(big.Int).Set(hops[len(hops)-1].AmountOut),
		gasByChain: make(map[token.ChainID]*big.Int),
	}
	for _, h := range hops {
		r.LatencySec += h.LatencySec
		r.SlippageBps += slippageEstimateBps(h)
		if h.GasCostWei != nil {
			chain := h.TokenIn.Chain
			if cur, ok := r.gasByChain[chain]; ok {
				cur.Add(cur, h.GasCostWei)
			} else {
				r.gasByChain[chain] = new(big.Int).Set(h.GasCostWei)
			}
		}
	}
	return r, nil
}

func (r *Route) SourceToken() token.Token { return r.Hops[0].TokenIn }
func (r *Route) TargetToken() token.Token { return r.Hops[len(r.Hops)-1].TokenOut }

func (r *Route) Protocols() []string {
	out := make([]string, len(r.Hops))
	for i, h := range r.Hops {
		out[i] = h.Protocol
	}
	return out
}

func (r *Route) PathString() string {
	return strings.Join(r.Protocols(), ">")
}

// GasByChain returns per-chain gas cost in that chain's native wei.
func (r *Route) GasByChain() map[token.ChainID]*big.Int {
	out := make(map[token.ChainID]*big.Int, len(r.gasByChain))
	for k, v := range r.gasByChain {
		out[k] = new(big.Int).Set(v)
	}
	return out
}

// Slippage expectations per protocol, summed over hops as a compounding
// approximation. Stable-curve venues move prices least, v2 books most.
func slippageEstimateBps(h Hop) float64 {
	if h.Kind == HopBridge {
		return 5
	}
	switch h.Protocol {
	case "curve":
		return 10
	case "uniswap_v3", "1inch":
		return 20
	default:
		return 40
	}
}
