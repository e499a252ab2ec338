package quote

import (
	"context"
	"math/big"
	"time"

	"github.com/ldmdldm/pylot-project/internal/token"
)

// Protocol identifies a quoting venue ("uniswap_v3", "stargate", ...).
type Protocol string

const (
	ProtocolUniswapV2 Protocol = "uniswap_v2"
	ProtocolUniswapV3 Protocol = "uniswap_v3"
	ProtocolSushiswap Protocol = "sushiswap"
	ProtocolCurve     Protocol = "curve"
	ProtocolBalancer  Protocol = "balancer"
	ProtocolOneInch   Protocol = "1inch"

	ProtocolStargate Protocol = "stargate"
	ProtocolHop      Protocol = "hop"
	ProtocolAcross   Protocol = "across"
)

type Kind string

const (
	KindSwap   Kind = "swap"
	KindBridge Kind = "bridge"
)

type Request struct {
	TokenIn  token.Token
	TokenOut token.Token
	AmountIn *big.Int
}

// Meta carries venue-specific detail a later execution step would need.
type Meta struct {
	FeeTier uint32 `json:"fee_tier,omitempty"`
	Pool    string `json:"pool,omitempty"`
}

// Quote is one source's answer for one leg. AmountOut is in TokenOut base
// units. GasCostWei is native wei on the execution chain when the source
// can price gas itself; the optimizer fills it from the oracle otherwise.
type Quote struct {
	Protocol    Protocol
	Kind        Kind
	TokenIn     token.Token
	TokenOut    token.Token
	AmountIn    *big.Int
	AmountOut   *big.Int
	GasEstimate uint64
	GasCostWei  *big.Int
	FeeBps      int
	LatencySec  float64
	Timestamp   time.Time
	Meta        Meta
}

// Stale reports whether the quote is older than ttl at the given instant.
func (q *Quote) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(q.Timestamp) > ttl
}

// Source produces quotes for one protocol. Implementations must be safe
// for concurrent use and must honor ctx cancellation; they never execute
// anything.
type Source interface {
	Protocol() Protocol
	Kind() Kind
	Supports(in, out token.Token) bool
	Quote(ctx context.Context, req Request) (*Quote, error)
}
