// Package app wires the quoting stack from configuration. Every binary
// that needs an optimizer builds the same App and layers its own
// transport or sinks on top.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ldmdldm/pylot-project/internal/config"
	"github.com/ldmdldm/pylot-project/internal/multicall"
	"github.com/ldmdldm/pylot-project/internal/oracle"
	"github.com/ldmdldm/pylot-project/internal/quote"
	"github.com/ldmdldm/pylot-project/internal/reliability"
	"github.com/ldmdldm/pylot-project/internal/scoring"
	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

const dialTimeout = 10 * time.Second

// App holds the shared dependencies built from one config: the token
// universe, live state (prices, gas, reliability), and every registered
// quote source.
type App struct {
	Tokens  *token.Registry
	Oracle  *oracle.Oracle
	Stats   *reliability.Stats
	Sources *quote.Registry
	Scorer  *scoring.Scorer
	Clients map[token.ChainID]*ethclient.Client
}

// Build assembles the stack. Venue-level problems (bad address, dead
// RPC) are logged and skipped so one broken entry does not take the
// whole process down; only an unusable token universe is fatal.
func Build(cfg *config.Config, log *zap.Logger) (*App, error) {
	tokens, err := buildTokens(cfg)
	if err != nil {
		return nil, err
	}

	orc := oracle.New(log)
	stats := reliability.New()
	sources := quote.NewRegistry()

	clients := dialChains(cfg, log)
	registerVenues(cfg, sources, clients, log)
	registerPools(cfg, sources, log)
	registerBridges(cfg, sources, log)
	registerAggregator(cfg, sources, log)

	scorer := scoring.New(scoring.Config{
		OutputWeight:        cfg.Scoring.OutputWeight,
		GasWeight:           cfg.Scoring.GasWeight,
		ReliabilityWeight:   cfg.Scoring.ReliabilityWeight,
		TieEpsilon:          cfg.Scoring.TieEpsilon,
		BaselineSlippageBps: cfg.Scoring.BaselineSlippageBps,
		BaselineExecSec:     cfg.Scoring.BaselineExecSec,
	}, orc, tokens, stats)

	return &App{
		Tokens:  tokens,
		Oracle:  orc,
		Stats:   stats,
		Sources: sources,
		Scorer:  scorer,
		Clients: clients,
	}, nil
}

// buildTokens loads the configured universe, falling back to the
// built-in PYUSD set when the config declares no chains.
func buildTokens(cfg *config.Config) (*token.Registry, error) {
	if len(cfg.Chains) == 0 {
		return token.Default(), nil
	}
	reg := token.NewRegistry()
	for _, ch := range cfg.Chains {
		if err := reg.AddChain(token.Chain{
			ID:            token.ChainID(ch.ID),
			Name:          ch.Name,
			NativeSymbol:  ch.NativeSymbol,
			WrappedNative: ch.WrappedNative,
			RPCURL:        ch.RPCHTTP,
		}); err != nil {
			return nil, err
		}
	}
	for _, t := range cfg.Tokens {
		addr, err := token.ParseAddress(t.Address)
		if err != nil {
			return nil, err
		}
		if err := reg.AddToken(token.Token{
			Symbol:   t.Symbol,
			Chain:    token.ChainID(t.ChainID),
			Address:  addr,
			Decimals: t.Decimals,
		}); err != nil {
			return nil, err
		}
	}
	for chain, symbols := range cfg.Hubs {
		if err := reg.SetHubs(token.ChainID(chain), symbols); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// dialChains opens one RPC client per configured chain. A chain that
// does not dial is logged and skipped; its venues quote nothing.
func dialChains(cfg *config.Config, log *zap.Logger) map[token.ChainID]*ethclient.Client {
	clients := make(map[token.ChainID]*ethclient.Client)
	for _, ch := range cfg.Chains {
		if ch.RPCHTTP == "" {
			continue
		}
		dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		ec, err := ethclient.DialContext(dialCtx, ch.RPCHTTP)
		cancel()
		if err != nil {
			log.Warn("rpc dial failed", zap.String("chain", ch.Name), zap.Error(err))
			continue
		}
		clients[token.ChainID(ch.ID)] = ec
	}
	return clients
}

func registerVenues(cfg *config.Config, sources *quote.Registry, clients map[token.ChainID]*ethclient.Client, log *zap.Logger) {
	var v3 *quote.UniV3
	v2 := make(map[quote.Protocol]*quote.UniV2)

	for _, ven := range cfg.Venues {
		chain := token.ChainID(ven.ChainID)
		ec, ok := clients[chain]
		if !ok {
			log.Warn("venue skipped: no rpc client", zap.String("protocol", ven.Protocol), zap.Uint64("chain", ven.ChainID))
			continue
		}
		switch quote.Protocol(ven.Protocol) {
		case quote.ProtocolUniswapV3:
			if v3 == nil {
				var err error
				if v3, err = quote.NewUniV3(log); err != nil {
					log.Warn("uniswap v3 init", zap.Error(err))
					continue
				}
			}
			quoter, err := token.ParseAddress(ven.QuoterV2)
			if err != nil {
				log.Warn("venue skipped: bad quoter address", zap.Uint64("chain", ven.ChainID), zap.Error(err))
				continue
			}
			mc, err := multicall.New(ec, multicall.DefaultAddress)
			if err != nil {
				log.Warn("venue skipped: multicall init", zap.Uint64("chain", ven.ChainID), zap.Error(err))
				continue
			}
			if err := v3.AddDeployment(chain, quoter, mc, ven.FeeTiers, ven.GasEstimate); err != nil {
				log.Warn("venue skipped", zap.Uint64("chain", ven.ChainID), zap.Error(err))
			}
		case quote.ProtocolUniswapV2, quote.ProtocolSushiswap:
			p := quote.Protocol(ven.Protocol)
			src, ok := v2[p]
			if !ok {
				var err error
				if src, err = quote.NewUniV2(p, log); err != nil {
					log.Warn("v2 venue init", zap.String("protocol", ven.Protocol), zap.Error(err))
					continue
				}
				v2[p] = src
			}
			router, err := token.ParseAddress(ven.Router)
			if err != nil {
				log.Warn("venue skipped: bad router address", zap.Uint64("chain", ven.ChainID), zap.Error(err))
				continue
			}
			if err := src.AddDeployment(chain, router, ec, ven.GasEstimate); err != nil {
				log.Warn("venue skipped", zap.Uint64("chain", ven.ChainID), zap.Error(err))
			}
		default:
			log.Warn("venue skipped: unknown protocol", zap.String("protocol", ven.Protocol))
		}
	}

	if v3 != nil {
		sources.Register(v3)
	}
	for _, src := range v2 {
		sources.Register(src)
	}
}

func registerPools(cfg *config.Config, sources *quote.Registry, log *zap.Logger) {
	amms := make(map[quote.Protocol]*quote.AMM)
	for _, pc := range cfg.Pools {
		p := quote.Protocol(pc.Protocol)
		amm, ok := amms[p]
		if !ok {
			amm = quote.NewAMM(p, log)
			amms[p] = amm
		}
		reserveA, okA := newBig(pc.ReserveA)
		reserveB, okB := newBig(pc.ReserveB)
		if !okA || !okB {
			log.Warn("pool skipped: bad reserves", zap.String("protocol", pc.Protocol), zap.String("pair", pc.TokenA+"/"+pc.TokenB))
			continue
		}
		if err := amm.AddPool(quote.Pool{
			Chain:       token.ChainID(pc.ChainID),
			TokenA:      pc.TokenA,
			TokenB:      pc.TokenB,
			ReserveA:    reserveA,
			ReserveB:    reserveB,
			FeeBps:      pc.FeeBps,
			GasEstimate: pc.GasEstimate,
		}); err != nil {
			log.Warn("pool skipped", zap.String("protocol", pc.Protocol), zap.Error(err))
		}
	}
	for _, amm := range amms {
		sources.Register(amm)
	}
}

func registerBridges(cfg *config.Config, sources *quote.Registry, log *zap.Logger) {
	for _, bc := range cfg.Bridges {
		b := quote.NewBridge(quote.Protocol(bc.Protocol), log)
		chains := make([]token.ChainID, len(bc.Chains))
		for i, id := range bc.Chains {
			chains[i] = token.ChainID(id)
		}
		b.Configure(chains, bc.Tokens, bc.MinAmount, bc.MaxAmount, bc.GasEstimate)
		sources.Register(b)
	}
}

func registerAggregator(cfg *config.Config, sources *quote.Registry, log *zap.Logger) {
	if !cfg.Aggregator.Enabled {
		return
	}
	protocol := quote.Protocol(cfg.Aggregator.Protocol)
	if protocol == "" {
		protocol = quote.ProtocolOneInch
	}
	agg, err := quote.NewAggregator(protocol, cfg.Aggregator.BaseURL, cfg.Aggregator.APIKey, log)
	if err != nil {
		log.Warn("aggregator disabled", zap.Error(err))
		return
	}
	sources.Register(agg)
}

func newBig(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	return new(big.Int).SetString(s, 10)
}
