package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

const v2RouterABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

// v2 pools charge a flat 30 bps.
const v2FeeBps = 30

type univ2Deployment struct {
	router   common.Address
	ec       ethereum.ContractCaller
	gasLimit uint64
}

// UniV2 quotes constant-product router pairs via getAmountsOut. The same
// implementation backs every v2 fork; the protocol name is fixed at
// construction so uniswap_v2 and sushiswap report separately.
type UniV2 struct {
	protocol Protocol
	log      *zap.Logger
	abi      abi.ABI

	mu          sync.RWMutex
	deployments map[token.ChainID]univ2Deployment
}

func NewUniV2(protocol Protocol, log *zap.Logger) (*UniV2, error) {
	rABI, err := abi.JSON(strings.NewReader(v2RouterABI))
	if err != nil {
		return nil, fmt.Errorf("parse v2 router abi: %w", err)
	}
	return &UniV2{
		protocol:    protocol,
		log:         log,
		abi:         rABI,
		deployments: make(map[token.ChainID]univ2Deployment),
	}, nil
}

func (v *UniV2) AddDeployment(chain token.ChainID, router common.Address, ec ethereum.ContractCaller, gasLimit uint64) error {
	if router == (common.Address{}) {
		return fmt.Errorf("%s chain %d: router address is not configured", v.protocol, chain)
	}
	if gasLimit == 0 {
		gasLimit = 120_000
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deployments[chain] = univ2Deployment{router: router, ec: ec, gasLimit: gasLimit}
	return nil
}

func (v *UniV2) Protocol() Protocol { return v.protocol }
func (v *UniV2) Kind() Kind         { return KindSwap }

func (v *UniV2) Supports(in, out token.Token) bool {
	if in.Chain != out.Chain || in.Address == out.Address {
		return false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.deployments[in.Chain]
	return ok
}

func (v *UniV2) Quote(ctx context.Context, req Request) (*Quote, error) {
	v.mu.RLock()
	dep, ok := v.deployments[req.TokenIn.Chain]
	v.mu.RUnlock()
	if !ok || req.TokenIn.Chain != req.TokenOut.Chain {
		return nil, Failure(v.protocol, ReasonUnsupported, fmt.Errorf("no deployment for chain %d", req.TokenIn.Chain))
	}

	path := []common.Address{req.TokenIn.Address, req.TokenOut.Address}
	data, err := v.abi.Pack("getAmountsOut", req.AmountIn, path)
	if err != nil {
		return nil, Failure(v.protocol, ReasonProtocol, fmt.Errorf("pack getAmountsOut: %w", err))
	}
	raw, err := dep.ec.CallContract(ctx, ethereum.CallMsg{To: &dep.router, Data: data}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Failure(v.protocol, ReasonTimeout, err)
		}
		// getAmountsOut reverts when the pair has no pool.
		return nil, Failure(v.protocol, ReasonNoLiquidity, err)
	}
	outs, err := v.abi.Methods["getAmountsOut"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, Failure(v.protocol, ReasonProtocol, fmt.Errorf("decode getAmountsOut: %w", err))
	}
	amounts, ok := outs[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, Failure(v.protocol, ReasonProtocol, fmt.Errorf("bad amounts length"))
	}
	amountOut := amounts[len(amounts)-1]
	if amountOut.Sign() <= 0 {
		return nil, Failure(v.protocol, ReasonNoLiquidity, fmt.Errorf("zero output for %s/%s", req.TokenIn.Symbol, req.TokenOut.Symbol))
	}

	v.log.Debug("v2 quote",
		zap.String("protocol", string(v.protocol)),
		zap.String("pair", req.TokenIn.Symbol+"/"+req.TokenOut.Symbol),
		zap.String("amount_out", amountOut.String()))

	return &Quote{
		Protocol:    v.protocol,
		Kind:        KindSwap,
		TokenIn:     req.TokenIn,
		TokenOut:    req.TokenOut,
		AmountIn:    new(big.Int).Set(req.AmountIn),
		AmountOut:   new(big.Int).Set(amountOut),
		GasEstimate: dep.gasLimit,
		FeeBps:      v2FeeBps,
		LatencySec:  swapLatencySec,
		Timestamp:   time.Now(),
	}, nil
}
