package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

// PriceScale is the fixed-point denominator for prices: a price of
// 100_000_000 means 1.0 units of the numeraire per whole token.
var PriceScale = big.NewInt(100_000_000)

var ErrPriceUnavailable = errors.New("price unavailable")

// PricePoint is one token's price and available liquidity on one chain.
// Liquidity is in the token's base units; nil means uncapped.
type PricePoint struct {
	Price     *big.Int
	Liquidity *big.Int
	UpdatedAt time.Time
}

func (p PricePoint) clone() PricePoint {
	out := PricePoint{UpdatedAt: p.UpdatedAt}
	if p.Price != nil {
		out.Price = new(big.Int).Set(p.Price)
	}
	if p.Liquidity != nil {
		out.Liquidity = new(big.Int).Set(p.Liquidity)
	}
	return out
}

// Oracle holds per-(token, chain) prices and per-chain gas prices.
// Updates replace whole entries under the write lock, so a reader always
// sees a price and its liquidity from the same update.
type Oracle struct {
	log *zap.Logger

	mu     sync.RWMutex
	prices map[string]PricePoint
	gas    map[token.ChainID]*big.Int
}

func New(log *zap.Logger) *Oracle {
	return &Oracle{
		log:    log,
		prices: make(map[string]PricePoint),
		gas:    make(map[token.ChainID]*big.Int),
	}
}

func (o *Oracle) UpdatePrice(symbol string, chain token.ChainID, price, liquidity *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("price for %s: must be positive", token.Key(symbol, chain))
	}
	pp := PricePoint{Price: new(big.Int).Set(price), UpdatedAt: time.Now()}
	if liquidity != nil {
		if liquidity.Sign() < 0 {
			return fmt.Errorf("liquidity for %s: negative", token.Key(symbol, chain))
		}
		pp.Liquidity = new(big.Int).Set(liquidity)
	}
	o.mu.Lock()
	o.prices[token.Key(symbol, chain)] = pp
	o.mu.Unlock()
	return nil
}

// Price returns a copy of the current point; callers may mutate it freely.
func (o *Oracle) Price(symbol string, chain token.ChainID) (PricePoint, error) {
	o.mu.RLock()
	pp, ok := o.prices[token.Key(symbol, chain)]
	o.mu.RUnlock()
	if !ok {
		return PricePoint{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, token.Key(symbol, chain))
	}
	return pp.clone(), nil
}

// LiquidityCap returns the cap for a token on a chain. ok is false when
// the token is unpriced or uncapped.
func (o *Oracle) LiquidityCap(symbol string, chain token.ChainID) (*big.Int, bool) {
	o.mu.RLock()
	pp, found := o.prices[token.Key(symbol, chain)]
	o.mu.RUnlock()
	if !found || pp.Liquidity == nil {
		return nil, false
	}
	return new(big.Int).Set(pp.Liquidity), true
}

func (o *Oracle) SetGasPrice(chain token.ChainID, wei *big.Int) error {
	if wei == nil || wei.Sign() < 0 {
		return fmt.Errorf("gas price for chain %d: must be non-negative", chain)
	}
	o.mu.Lock()
	o.gas[chain] = new(big.Int).Set(wei)
	o.mu.Unlock()
	return nil
}

func (o *Oracle) GasPrice(chain token.ChainID) (*big.Int, bool) {
	o.mu.RLock()
	wei, ok := o.gas[chain]
	o.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(wei), true
}

// Convert values an amount of one token in another token's base units:
// floor(amount * priceFrom * 10^toDec / (priceTo * 10^fromDec)). The
// price scales cancel, so only token decimals enter the exponent.
func (o *Oracle) Convert(amount *big.Int, from, to token.Token) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("convert %s->%s: bad amount", from.Key(), to.Key())
	}
	pf, err := o.Price(from.Symbol, from.Chain)
	if err != nil {
		return nil, err
	}
	pt, err := o.Price(to.Symbol, to.Chain)
	if err != nil {
		return nil, err
	}
	if pt.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, to.Key())
	}

	num := new(big.Int).Mul(amount, pf.Price)
	num.Mul(num, pow10(to.Decimals))
	den := new(big.Int).Mul(pt.Price, pow10(from.Decimals))
	return num.Div(num, den), nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
