package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ldmdldm/pylot-project/internal/multicall"
	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

const quoterV2ABI = `[
{
    "inputs": [
        {
            "components": [
                {"name": "tokenIn", "type": "address"},
                {"name": "tokenOut", "type": "address"},
                {"name": "amountIn", "type": "uint256"},
                {"name": "fee", "type": "uint24"},
                {"name": "sqrtPriceLimitX96", "type": "uint160"}
            ],
            "name": "params",
            "type": "tuple"
        }
    ],
    "name": "quoteExactInputSingle",
    "outputs": [
        {"name": "amountOut", "type": "uint256"},
        {"name": "sqrtPriceX96After", "type": "uint160"},
        {"name": "initializedTicksCrossed", "type": "uint32"},
        {"name": "gasEstimate", "type": "uint256"}
    ],
    "stateMutability": "nonpayable",
    "type": "function"
}
]`

var defaultFeeTiers = []uint32{100, 500, 3000, 10000}

const swapLatencySec = 30

type univ3Deployment struct {
	quoter   common.Address
	mc       multicall.Caller
	feeTiers []uint32
	gasLimit uint64
}

// UniV3 quotes exact-input single-pool swaps through QuoterV2. All
// configured fee tiers are probed in one multicall round trip and the
// best amountOut wins. One instance covers every chain the protocol is
// deployed on.
type UniV3 struct {
	log   *zap.Logger
	q2abi abi.ABI

	mu          sync.RWMutex
	deployments map[token.ChainID]univ3Deployment
}

func NewUniV3(log *zap.Logger) (*UniV3, error) {
	q2abi, err := abi.JSON(strings.NewReader(quoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter v2 abi: %w", err)
	}
	return &UniV3{
		log:         log,
		q2abi:       q2abi,
		deployments: make(map[token.ChainID]univ3Deployment),
	}, nil
}

// AddDeployment wires one chain's QuoterV2 behind a multicall client.
func (u *UniV3) AddDeployment(chain token.ChainID, quoter common.Address, mc multicall.Caller, feeTiers []uint32, gasLimit uint64) error {
	if quoter == (common.Address{}) {
		return fmt.Errorf("uniswap_v3 chain %d: quoter address is not configured", chain)
	}
	if len(feeTiers) == 0 {
		feeTiers = defaultFeeTiers
	}
	if gasLimit == 0 {
		gasLimit = 150_000
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deployments[chain] = univ3Deployment{quoter: quoter, mc: mc, feeTiers: feeTiers, gasLimit: gasLimit}
	return nil
}

func (u *UniV3) Protocol() Protocol { return ProtocolUniswapV3 }
func (u *UniV3) Kind() Kind         { return KindSwap }

func (u *UniV3) Supports(in, out token.Token) bool {
	if in.Chain != out.Chain || in.Address == out.Address {
		return false
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.deployments[in.Chain]
	return ok
}

func (u *UniV3) Quote(ctx context.Context, req Request) (*Quote, error) {
	u.mu.RLock()
	dep, ok := u.deployments[req.TokenIn.Chain]
	u.mu.RUnlock()
	if !ok || req.TokenIn.Chain != req.TokenOut.Chain {
		return nil, Failure(ProtocolUniswapV3, ReasonUnsupported, fmt.Errorf("no deployment for chain %d", req.TokenIn.Chain))
	}

	calls := make([]multicall.Call, 0, len(dep.feeTiers))
	for _, fee := range dep.feeTiers {
		data, err := u.q2abi.Pack("quoteExactInputSingle", struct {
			TokenIn           common.Address
			TokenOut          common.Address
			AmountIn          *big.Int
			Fee               *big.Int
			SqrtPriceLimitX96 *big.Int
		}{
			TokenIn:           req.TokenIn.Address,
			TokenOut:          req.TokenOut.Address,
			AmountIn:          req.AmountIn,
			Fee:               big.NewInt(int64(fee)),
			SqrtPriceLimitX96: big.NewInt(0),
		})
		if err != nil {
			return nil, Failure(ProtocolUniswapV3, ReasonProtocol, fmt.Errorf("pack quote: %w", err))
		}
		calls = append(calls, multicall.Call{Target: dep.quoter, CallData: data})
	}

	results, err := dep.mc.TryAggregate(ctx, calls)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Failure(ProtocolUniswapV3, ReasonTimeout, err)
		}
		return nil, Failure(ProtocolUniswapV3, ReasonProtocol, err)
	}

	var (
		best     *big.Int
		bestTier uint32
		bestGas  uint64
	)
	for i, res := range results {
		if !res.Success {
			continue
		}
		outs, err := u.q2abi.Methods["quoteExactInputSingle"].Outputs.Unpack(res.Data)
		if err != nil || len(outs) < 4 {
			continue
		}
		amountOut, ok := outs[0].(*big.Int)
		if !ok || amountOut.Sign() <= 0 {
			continue
		}
		if best == nil || amountOut.Cmp(best) > 0 {
			best = amountOut
			bestTier = dep.feeTiers[i]
			if g, ok := outs[3].(*big.Int); ok && g.IsUint64() && g.Uint64() > 0 {
				bestGas = g.Uint64()
			} else {
				bestGas = dep.gasLimit
			}
		}
	}
	if best == nil {
		return nil, Failure(ProtocolUniswapV3, ReasonNoLiquidity, fmt.Errorf("no pool quoted %s/%s", req.TokenIn.Symbol, req.TokenOut.Symbol))
	}

	u.log.Debug("univ3 quote",
		zap.String("pair", req.TokenIn.Symbol+"/"+req.TokenOut.Symbol),
		zap.Uint32("fee_tier", bestTier),
		zap.String("amount_out", best.String()))

	return &Quote{
		Protocol:    ProtocolUniswapV3,
		Kind:        KindSwap,
		TokenIn:     req.TokenIn,
		TokenOut:    req.TokenOut,
		AmountIn:    new(big.Int).Set(req.AmountIn),
		AmountOut:   best,
		GasEstimate: bestGas,
		FeeBps:      int(bestTier / 100),
		LatencySec:  swapLatencySec,
		Timestamp:   time.Now(),
		Meta:        Meta{FeeTier: bestTier},
	}, nil
}
