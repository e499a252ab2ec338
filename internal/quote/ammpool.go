package quote

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

// Pool is a constant-product pool quoted locally from declared reserves.
// Reserves are base units of the respective token.
type Pool struct {
	Chain       token.ChainID
	TokenA      string
	TokenB      string
	ReserveA    *big.Int
	ReserveB    *big.Int
	FeeBps      int
	GasEstimate uint64
}

// AMM serves protocols that have no RPC quoter wired (curve- and
// balancer-style venues) from config-declared pools. Output follows
// x*y=k with the fee taken from the input side, floored.
type AMM struct {
	protocol Protocol
	log      *zap.Logger

	mu    sync.RWMutex
	pools []Pool
}

func NewAMM(protocol Protocol, log *zap.Logger) *AMM {
	return &AMM{protocol: protocol, log: log}
}

func (a *AMM) AddPool(p Pool) error {
	if p.ReserveA == nil || p.ReserveB == nil || p.ReserveA.Sign() <= 0 || p.ReserveB.Sign() <= 0 {
		return fmt.Errorf("%s pool %s/%s: non-positive reserves", a.protocol, p.TokenA, p.TokenB)
	}
	if p.FeeBps < 0 || p.FeeBps >= 10000 {
		return fmt.Errorf("%s pool %s/%s: fee %d bps out of range", a.protocol, p.TokenA, p.TokenB, p.FeeBps)
	}
	if p.GasEstimate == 0 {
		p.GasEstimate = 180_000
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pools = append(a.pools, p)
	return nil
}

func (a *AMM) Protocol() Protocol { return a.protocol }
func (a *AMM) Kind() Kind         { return KindSwap }

func (a *AMM) Supports(in, out token.Token) bool {
	if in.Chain != out.Chain {
		return false
	}
	_, _, _, ok := a.find(in, out)
	return ok
}

// find returns the pool and its reserves oriented as (in, out).
func (a *AMM) find(in, out token.Token) (Pool, *big.Int, *big.Int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, p := range a.pools {
		if p.Chain != in.Chain {
			continue
		}
		if p.TokenA == in.Symbol && p.TokenB == out.Symbol {
			return p, p.ReserveA, p.ReserveB, true
		}
		if p.TokenB == in.Symbol && p.TokenA == out.Symbol {
			return p, p.ReserveB, p.ReserveA, true
		}
	}
	return Pool{}, nil, nil, false
}

func (a *AMM) Quote(ctx context.Context, req Request) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, Failure(a.protocol, ReasonTimeout, err)
	}
	pool, reserveIn, reserveOut, ok := a.find(req.TokenIn, req.TokenOut)
	if !ok {
		return nil, Failure(a.protocol, ReasonUnsupported, fmt.Errorf("no pool for %s/%s on chain %d", req.TokenIn.Symbol, req.TokenOut.Symbol, req.TokenIn.Chain))
	}

	amountOut := constantProductOut(req.AmountIn, reserveIn, reserveOut, pool.FeeBps)
	if amountOut.Sign() <= 0 {
		return nil, Failure(a.protocol, ReasonNoLiquidity, fmt.Errorf("pool %s/%s drained by amount %s", req.TokenIn.Symbol, req.TokenOut.Symbol, req.AmountIn))
	}

	a.log.Debug("amm quote",
		zap.String("protocol", string(a.protocol)),
		zap.String("pair", req.TokenIn.Symbol+"/"+req.TokenOut.Symbol),
		zap.String("amount_out", amountOut.String()))

	return &Quote{
		Protocol:    a.protocol,
		Kind:        KindSwap,
		TokenIn:     req.TokenIn,
		TokenOut:    req.TokenOut,
		AmountIn:    new(big.Int).Set(req.AmountIn),
		AmountOut:   amountOut,
		GasEstimate: pool.GasEstimate,
		FeeBps:      pool.FeeBps,
		LatencySec:  swapLatencySec,
		Timestamp:   time.Now(),
	}, nil
}

// constantProductOut floors (reserveOut * inAfterFee) / (reserveIn + inAfterFee)
// with the fee applied to the input side in bps.
func constantProductOut(amountIn, reserveIn, reserveOut *big.Int, feeBps int) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int)
	}
	inAfterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-feeBps)))
	num := new(big.Int).Mul(inAfterFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	den.Add(den, inAfterFee)
	return num.Div(num, den)
}
