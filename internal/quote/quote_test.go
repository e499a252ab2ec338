package quote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ldmdldm/pylot-project/internal/token"
	"github.com/stretchr/testify/assert"
)

var (
	tPYUSDEth = token.Token{Symbol: "PYUSD", Chain: 1, Address: common.HexToAddress("0x6c3ea9036406852006290770BEdFcAbA0e23A0e8"), Decimals: 6}
	tUSDCEth  = token.Token{Symbol: "USDC", Chain: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6}
	tWETHEth  = token.Token{Symbol: "WETH", Chain: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18}
	tPYUSDArb = token.Token{Symbol: "PYUSD", Chain: 42161, Address: common.HexToAddress("0xFd9aC3ce15C6acB283690624687a99D351704169"), Decimals: 6}
	tUSDCArb  = token.Token{Symbol: "USDC", Chain: 42161, Address: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), Decimals: 6}
)

type stubSource struct {
	protocol Protocol
	kind     Kind
}

func (s stubSource) Protocol() Protocol                 { return s.protocol }
func (s stubSource) Kind() Kind                         { return s.kind }
func (s stubSource) Supports(in, out token.Token) bool  { return true }
func (s stubSource) Quote(context.Context, Request) (*Quote, error) {
	return nil, Failure(s.protocol, ReasonUnsupported, nil)
}

func TestQuote_Stale(t *testing.T) {
	now := time.Now()
	q := &Quote{Timestamp: now.Add(-6 * time.Second)}
	assert.True(t, q.Stale(now, 5*time.Second))

	q.Timestamp = now.Add(-time.Second)
	assert.False(t, q.Stale(now, 5*time.Second))
}

func TestRegistry_SortedIteration(t *testing.T) {
	r := NewRegistry()
	r.Register(stubSource{protocol: ProtocolUniswapV3, kind: KindSwap})
	r.Register(stubSource{protocol: ProtocolCurve, kind: KindSwap})
	r.Register(stubSource{protocol: ProtocolStargate, kind: KindBridge})
	r.Register(stubSource{protocol: ProtocolHop, kind: KindBridge})

	var all []Protocol
	for _, s := range r.All() {
		all = append(all, s.Protocol())
	}
	assert.Equal(t, []Protocol{ProtocolCurve, ProtocolHop, ProtocolStargate, ProtocolUniswapV3}, all)

	var swaps []Protocol
	for _, s := range r.Swaps() {
		swaps = append(swaps, s.Protocol())
	}
	assert.Equal(t, []Protocol{ProtocolCurve, ProtocolUniswapV3}, swaps)

	var bridges []Protocol
	for _, s := range r.Bridges() {
		bridges = append(bridges, s.Protocol())
	}
	assert.Equal(t, []Protocol{ProtocolHop, ProtocolStargate}, bridges)

	assert.NotNil(t, r.Get(ProtocolCurve))
	assert.Nil(t, r.Get(ProtocolBalancer))
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	first := stubSource{protocol: ProtocolCurve, kind: KindSwap}
	second := stubSource{protocol: ProtocolCurve, kind: KindBridge}
	r.Register(first)
	r.Register(second)

	assert.Len(t, r.All(), 1)
	assert.Equal(t, KindBridge, r.Get(ProtocolCurve).Kind())
}

func TestReasonOf(t *testing.T) {
	base := Failure(ProtocolUniswapV3, ReasonNoLiquidity, errors.New("boom"))

	reason, ok := ReasonOf(base)
	assert.True(t, ok)
	assert.Equal(t, ReasonNoLiquidity, reason)

	wrapped := fmt.Errorf("leg direct: %w", base)
	reason, ok = ReasonOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ReasonNoLiquidity, reason)

	_, ok = ReasonOf(errors.New("plain"))
	assert.False(t, ok)
	_, ok = ReasonOf(context.DeadlineExceeded)
	assert.False(t, ok)
}

func TestFailure_Error(t *testing.T) {
	withCause := Failure(ProtocolUniswapV3, ReasonNoLiquidity, errors.New("boom"))
	assert.Equal(t, "uniswap_v3: no_liquidity: boom", withCause.Error())
	assert.Equal(t, "boom", errors.Unwrap(withCause).Error())

	bare := Failure(ProtocolStargate, ReasonTimeout, nil)
	assert.Equal(t, "stargate: timeout", bare.Error())
}
