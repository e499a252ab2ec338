package gasfeed

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	imetrics "github.com/ldmdldm/pylot-project/internal/metrics"
	"github.com/ldmdldm/pylot-project/internal/oracle"
	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

// Client is the slice of ethclient.Client the poller needs.
type Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

const readTimeout = 5 * time.Second

// Poller refreshes per-chain gas prices into the oracle from chain RPCs.
// Chains without an RPC keep whatever the admin API or Redis feed set.
type Poller struct {
	clients map[token.ChainID]Client
	oracle  *oracle.Oracle
	every   time.Duration
	log     *zap.Logger
}

func New(o *oracle.Oracle, every time.Duration, log *zap.Logger) *Poller {
	if every <= 0 {
		every = 15 * time.Second
	}
	return &Poller{
		clients: make(map[token.ChainID]Client),
		oracle:  o,
		every:   every,
		log:     log,
	}
}

// Watch adds a chain. Not safe to call once Run has started.
func (p *Poller) Watch(chain token.ChainID, c Client) {
	p.clients[chain] = c
}

// Run polls every chain in parallel on each tick until ctx is done. The
// first pass runs immediately so routing does not start gas-blind.
func (p *Poller) Run(ctx context.Context) error {
	if len(p.clients) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	p.refresh(ctx)

	t := time.NewTicker(p.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	var wg sync.WaitGroup
	for chain, c := range p.clients {
		chain, c := chain, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, readTimeout)
			defer cancel()
			wei, err := effectiveGasPrice(cctx, c)
			if err != nil {
				p.log.Warn("gas poll failed", zap.Uint64("chain", uint64(chain)), zap.Error(err))
				return
			}
			if err := p.oracle.SetGasPrice(chain, wei); err != nil {
				p.log.Warn("gas update rejected", zap.Uint64("chain", uint64(chain)), zap.Error(err))
				return
			}
			imetrics.GasPrice.WithLabelValues(strconv.FormatUint(uint64(chain), 10)).Set(token.ToFloat(wei, 0))
		}()
	}
	wg.Wait()
}

// effectiveGasPrice prefers base fee plus tip; chains without EIP-1559
// headers fall back to the node's legacy suggestion.
func effectiveGasPrice(ctx context.Context, c Client) (*big.Int, error) {
	header, err := c.HeaderByNumber(ctx, nil)
	if err != nil || header.BaseFee == nil {
		return c.SuggestGasPrice(ctx)
	}
	tip, err := c.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(1e9) // 1 gwei
	}
	return new(big.Int).Add(header.BaseFee, tip), nil
}
