package analytics

import (
	"math/big"
	"testing"
	"time"

	"github.com/ldmdldm/pylot-project/internal/optimizer"
	"github.com/ldmdldm/pylot-project/internal/quote"
	"github.com/ldmdldm/pylot-project/internal/route"
	"github.com/ldmdldm/pylot-project/internal/scoring"
	"github.com/ldmdldm/pylot-project/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pyusdEth = token.Token{Symbol: "PYUSD", Chain: 1, Decimals: 6}
	usdcEth  = token.Token{Symbol: "USDC", Chain: 1, Decimals: 6}
	wethEth  = token.Token{Symbol: "WETH", Chain: 1, Decimals: 18}
)

func mustRoute(t *testing.T, hops ...route.Hop) *route.Route {
	t.Helper()
	r, err := route.Build(hops)
	require.NoError(t, err)
	return r
}

func TestFromDecision_SelectedRoute(t *testing.T) {
	winner := mustRoute(t, route.Hop{
		Kind: route.HopSwap, Protocol: "uniswap_v3",
		TokenIn: pyusdEth, TokenOut: usdcEth,
		AmountIn: big.NewInt(1_000_000_000), AmountOut: big.NewInt(998_000_000),
		FeeBps: 5, FeeTier: 500, GasEstimate: 150_000, LatencySec: 30,
	})
	loser := mustRoute(t, route.Hop{
		Kind: route.HopSwap, Protocol: "sushiswap",
		TokenIn: pyusdEth, TokenOut: usdcEth,
		AmountIn: big.NewInt(1_000_000_000), AmountOut: big.NewInt(995_000_000),
		FeeBps: 30, GasEstimate: 120_000, LatencySec: 30,
	})

	started := time.Now().Add(-time.Second)
	d := optimizer.Decision{
		RequestID: "req-1",
		Request: optimizer.Request{
			SourceToken: "PYUSD", SourceChain: 1,
			TargetToken: "USDC", TargetChain: 1,
			AmountIn: big.NewInt(1_000_000_000),
		},
		Route: winner,
		Score: scoring.Breakdown{Output: 0.998, Gas: 666.7, Reliability: 0.005, Score: 200.4},
		Candidates: []optimizer.Candidate{
			{Route: winner, Score: scoring.Breakdown{Score: 200.4}},
			{Route: loser, Score: scoring.Breakdown{Score: 167.0}},
		},
		Failures:  map[quote.Reason]int{quote.ReasonNoLiquidity: 2},
		StartedAt: started,
		Elapsed:   42 * time.Millisecond,
	}

	rec := FromDecision(d)

	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, winner.PlanID(), rec.PlanID)
	assert.NotEmpty(t, rec.PlanID)
	assert.Equal(t, "PYUSD", rec.SourceToken)
	assert.Equal(t, uint64(1), rec.SourceChain)
	assert.Equal(t, "1000000000", rec.AmountIn)
	assert.Equal(t, "998000000", rec.AmountOut)
	assert.Equal(t, "0.998000000000", rec.Rate)
	assert.Equal(t, "uniswap_v3", rec.Path)
	assert.InDelta(t, 200.4, rec.Score, 1e-9)
	assert.InDelta(t, 0.998, rec.OutputComp, 1e-9)
	assert.Equal(t, 2, rec.Candidates)
	assert.Equal(t, map[string]int{"no_liquidity": 2}, rec.Failures)
	assert.Equal(t, int64(42), rec.ElapsedMs)
	assert.Equal(t, started, rec.CreatedAt)

	require.Len(t, rec.Hops, 1)
	assert.Equal(t, HopRecord{
		Kind: "swap", Protocol: "uniswap_v3",
		TokenIn: "PYUSD@1", TokenOut: "USDC@1",
		AmountIn: "1000000000", AmountOut: "998000000",
		FeeBps: 5, FeeTier: 500,
	}, rec.Hops[0])

	// The winner never lists itself as an alternative.
	require.Len(t, rec.Alternatives, 1)
	assert.Equal(t, Alternative{Path: "sushiswap", Hops: 1, AmountOut: "995000000", Score: 167.0}, rec.Alternatives[0])
}

func TestFromDecision_RateAcrossDecimals(t *testing.T) {
	r := mustRoute(t, route.Hop{
		Kind: route.HopSwap, Protocol: "uniswap_v3",
		TokenIn: pyusdEth, TokenOut: wethEth,
		AmountIn: big.NewInt(1_000_000_000), AmountOut: big.NewInt(500_000_000_000_000_000),
	})
	rec := FromDecision(optimizer.Decision{Route: r, Request: optimizer.Request{AmountIn: big.NewInt(1_000_000_000)}})
	assert.Equal(t, "0.000500000000", rec.Rate)
}

func TestFromDecision_Failure(t *testing.T) {
	d := optimizer.Decision{
		RequestID: "req-2",
		Request: optimizer.Request{
			SourceToken: "PYUSD", SourceChain: 1,
			TargetToken: "USDC", TargetChain: 42161,
			AmountIn: big.NewInt(7_000_000),
		},
		Failure:   "no_liquidity",
		Failures:  map[quote.Reason]int{quote.ReasonNoLiquidity: 3},
		Elapsed:   5 * time.Millisecond,
		StartedAt: time.Now(),
	}

	rec := FromDecision(d)

	assert.Empty(t, rec.PlanID)
	assert.Empty(t, rec.AmountOut)
	assert.Empty(t, rec.Rate)
	assert.Empty(t, rec.Path)
	assert.Empty(t, rec.Hops)
	assert.Equal(t, "7000000", rec.AmountIn)
	assert.Equal(t, "no_liquidity", rec.Failure)
	assert.Equal(t, map[string]int{"no_liquidity": 3}, rec.Failures)
	assert.Zero(t, rec.Candidates)
}

func TestFromDecision_NilAmount(t *testing.T) {
	rec := FromDecision(optimizer.Decision{Failure: "invalid_request"})
	assert.Empty(t, rec.AmountIn)
	assert.Nil(t, rec.Failures)
}

func TestRecord_Pair(t *testing.T) {
	rec := Record{SourceToken: "PYUSD", TargetToken: "USDC"}
	assert.Equal(t, "PYUSD-USDC", rec.Pair())
}
