package quote

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ldmdldm/pylot-project/internal/token"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Per-protocol bridge economics. Anything not listed quotes at the
// default schedule.
var bridgeSchedule = map[Protocol]struct {
	feeBps     int
	latencySec float64
}{
	ProtocolStargate: {feeBps: 6, latencySec: 120},
	ProtocolHop:      {feeBps: 4, latencySec: 300},
	ProtocolAcross:   {feeBps: 10, latencySec: 180},
}

const (
	defaultBridgeFeeBps     = 10
	defaultBridgeLatencySec = 600
	defaultBridgeGas        = 250_000
)

// Bridge quotes same-asset transfers between chains from a static fee
// schedule with transfer bounds. It never talks to the bridge itself;
// the estimate is the protocol's published fee less the configured gas.
type Bridge struct {
	protocol   Protocol
	log        *zap.Logger
	feeBps     int
	latencySec float64

	mu          sync.RWMutex
	chains      map[token.ChainID]bool
	tokens      map[string]bool
	minAmount   string
	maxAmount   string
	gasEstimate uint64
}

func NewBridge(protocol Protocol, log *zap.Logger) *Bridge {
	feeBps, latency := defaultBridgeFeeBps, float64(defaultBridgeLatencySec)
	if s, ok := bridgeSchedule[protocol]; ok {
		feeBps, latency = s.feeBps, s.latencySec
	}
	return &Bridge{
		protocol:    protocol,
		log:         log,
		feeBps:      feeBps,
		latencySec:  latency,
		chains:      make(map[token.ChainID]bool),
		tokens:      make(map[string]bool),
		gasEstimate: defaultBridgeGas,
	}
}

// Configure declares which chains and assets the bridge carries and the
// transfer bounds in whole-token units ("" disables a bound).
func (b *Bridge) Configure(chains []token.ChainID, tokens []string, minAmount, maxAmount string, gasEstimate uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range chains {
		b.chains[c] = true
	}
	for _, t := range tokens {
		b.tokens[t] = true
	}
	b.minAmount = minAmount
	b.maxAmount = maxAmount
	if gasEstimate > 0 {
		b.gasEstimate = gasEstimate
	}
}

func (b *Bridge) Protocol() Protocol { return b.protocol }
func (b *Bridge) Kind() Kind         { return KindBridge }

func (b *Bridge) Supports(in, out token.Token) bool {
	if in.Symbol != out.Symbol || in.Chain == out.Chain {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.chains[in.Chain] && b.chains[out.Chain] && b.tokens[in.Symbol]
}

func (b *Bridge) Quote(ctx context.Context, req Request) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, Failure(b.protocol, ReasonTimeout, err)
	}
	if !b.Supports(req.TokenIn, req.TokenOut) {
		return nil, Failure(b.protocol, ReasonUnsupported, fmt.Errorf("%s not carried %d->%d", req.TokenIn.Symbol, req.TokenIn.Chain, req.TokenOut.Chain))
	}

	b.mu.RLock()
	minStr, maxStr, gas := b.minAmount, b.maxAmount, b.gasEstimate
	b.mu.RUnlock()

	if minStr != "" {
		min, err := token.ParseAmount(minStr, req.TokenIn.Decimals)
		if err == nil && req.AmountIn.Cmp(min) < 0 {
			return nil, Failure(b.protocol, ReasonNoLiquidity, fmt.Errorf("amount below bridge minimum %s %s", minStr, req.TokenIn.Symbol))
		}
	}
	if maxStr != "" {
		max, err := token.ParseAmount(maxStr, req.TokenIn.Decimals)
		if err == nil && req.AmountIn.Cmp(max) > 0 {
			return nil, Failure(b.protocol, ReasonNoLiquidity, fmt.Errorf("amount above bridge maximum %s %s", maxStr, req.TokenIn.Symbol))
		}
	}

	amountOut := rescale(req.AmountIn, req.TokenIn.Decimals, req.TokenOut.Decimals)
	amountOut = applyFeeBps(amountOut, b.feeBps)
	if amountOut.Sign() <= 0 {
		return nil, Failure(b.protocol, ReasonNoLiquidity, fmt.Errorf("amount too small to survive the bridge fee"))
	}

	b.log.Debug("bridge quote",
		zap.String("protocol", string(b.protocol)),
		zap.String("token", req.TokenIn.Symbol),
		zap.Uint64("chain_in", uint64(req.TokenIn.Chain)),
		zap.Uint64("chain_out", uint64(req.TokenOut.Chain)),
		zap.String("amount_out", amountOut.String()))

	return &Quote{
		Protocol:    b.protocol,
		Kind:        KindBridge,
		TokenIn:     req.TokenIn,
		TokenOut:    req.TokenOut,
		AmountIn:    new(big.Int).Set(req.AmountIn),
		AmountOut:   amountOut,
		GasEstimate: gas,
		FeeBps:      b.feeBps,
		LatencySec:  b.latencySec,
		Timestamp:   time.Now(),
	}, nil
}

// rescale moves an amount between tokens of different decimals, flooring
// when precision is lost.
func rescale(amount *big.Int, fromDec, toDec int) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case toDec > fromDec:
		out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(toDec-fromDec)), nil))
	case toDec < fromDec:
		out.Div(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fromDec-toDec)), nil))
	}
	return out
}

func applyFeeBps(amount *big.Int, feeBps int) *big.Int {
	if feeBps <= 0 {
		return amount
	}
	d := decimal.NewFromBigInt(amount, 0)
	mult := decimal.NewFromInt(10000 - int64(feeBps)).Div(decimal.NewFromInt(10000))
	return d.Mul(mult).Floor().BigInt()
}
