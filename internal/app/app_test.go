package app

import (
	"testing"

	"github.com/ldmdldm/pylot-project/internal/config"
	"github.com/ldmdldm/pylot-project/internal/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuild_DefaultUniverse(t *testing.T) {
	app, err := Build(&config.Config{}, zap.NewNop())
	require.NoError(t, err)

	// No chains configured falls back to the built-in PYUSD set.
	pyusd, ok := app.Tokens.Token("PYUSD", 1)
	require.True(t, ok)
	assert.Equal(t, 6, pyusd.Decimals)
	assert.Equal(t, "0x6c3ea9036406852006290770BEdFcAbA0e23A0e8", pyusd.Address.Hex())
	assert.Len(t, app.Tokens.Chains(), 5)

	assert.NotNil(t, app.Oracle)
	assert.NotNil(t, app.Stats)
	assert.NotNil(t, app.Scorer)
	assert.Empty(t, app.Sources.All())
	assert.Empty(t, app.Clients)
}

func TestBuild_ConfiguredUniverse(t *testing.T) {
	cfg := &config.Config{
		Chains: []config.ChainCfg{
			{ID: 1, Name: "ethereum", NativeSymbol: "ETH", WrappedNative: "WETH"},
		},
		Tokens: []config.TokenCfg{
			{Symbol: "PYUSD", ChainID: 1, Address: "0x6c3ea9036406852006290770bedfcaba0e23a0e8", Decimals: 6},
			{Symbol: "WETH", ChainID: 1, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
		},
		Hubs: map[uint64][]string{1: {"WETH"}},
	}

	app, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)

	pyusd, ok := app.Tokens.Token("PYUSD", 1)
	require.True(t, ok)
	assert.Equal(t, "0x6c3ea9036406852006290770BEdFcAbA0e23A0e8", pyusd.Address.Hex(), "lowercase input parses to the canonical form")

	_, ok = app.Tokens.Token("PYUSD", 137)
	assert.False(t, ok, "configured universe replaces the default one")

	hubs := app.Tokens.Hubs(1)
	require.Len(t, hubs, 1)
	assert.Equal(t, "WETH", hubs[0].Symbol)
}

func TestBuild_RejectsBrokenUniverse(t *testing.T) {
	cases := map[string]*config.Config{
		"bad token address": {
			Chains: []config.ChainCfg{{ID: 1, Name: "ethereum"}},
			Tokens: []config.TokenCfg{{Symbol: "PYUSD", ChainID: 1, Address: "not-an-address", Decimals: 6}},
		},
		"zero chain id": {
			Chains: []config.ChainCfg{{ID: 0, Name: "nowhere"}},
		},
		"hub not registered": {
			Chains: []config.ChainCfg{{ID: 1, Name: "ethereum"}},
			Hubs:   map[uint64][]string{1: {"WETH"}},
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(cfg, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestBuild_RegistersPools(t *testing.T) {
	cfg := &config.Config{
		Pools: []config.PoolCfg{{
			Protocol: "curve", ChainID: 1,
			TokenA: "PYUSD", TokenB: "USDC",
			ReserveA: "5000000000000", ReserveB: "5100000000000",
			FeeBps: 4,
		}},
	}
	app, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)

	src := app.Sources.Get("curve")
	require.NotNil(t, src)
	assert.Equal(t, quote.KindSwap, src.Kind())

	pyusd, _ := app.Tokens.Token("PYUSD", 1)
	usdc, _ := app.Tokens.Token("USDC", 1)
	assert.True(t, src.Supports(pyusd, usdc))
}

func TestBuild_SkipsPoolWithBadReserves(t *testing.T) {
	cfg := &config.Config{
		Pools: []config.PoolCfg{{
			Protocol: "curve", ChainID: 1,
			TokenA: "PYUSD", TokenB: "USDC",
			ReserveA: "abc", ReserveB: "5100000000000",
		}},
	}
	app, err := Build(cfg, zap.NewNop())
	require.NoError(t, err, "a broken pool entry is not fatal")

	src := app.Sources.Get("curve")
	require.NotNil(t, src)

	pyusd, _ := app.Tokens.Token("PYUSD", 1)
	usdc, _ := app.Tokens.Token("USDC", 1)
	assert.False(t, src.Supports(pyusd, usdc), "the bad pool was never added")
}

func TestBuild_RegistersBridges(t *testing.T) {
	cfg := &config.Config{
		Bridges: []config.BridgeCfg{{
			Protocol: "stargate",
			Chains:   []uint64{1, 42161},
			Tokens:   []string{"PYUSD"},
			MinAmount: "10", MaxAmount: "1000000",
			GasEstimate: 250_000,
		}},
	}
	app, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)

	src := app.Sources.Get("stargate")
	require.NotNil(t, src)
	assert.Equal(t, quote.KindBridge, src.Kind())

	srcTok, _ := app.Tokens.Token("PYUSD", 1)
	dstTok, _ := app.Tokens.Token("PYUSD", 42161)
	assert.True(t, src.Supports(srcTok, dstTok))
}

func TestBuild_AggregatorGate(t *testing.T) {
	cfg := &config.Config{}
	app, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, app.Sources.Get(quote.ProtocolOneInch), "disabled by default")

	cfg = &config.Config{}
	cfg.Aggregator.Enabled = true
	cfg.Aggregator.BaseURL = "https://api.1inch.dev/swap/v6.0"
	app, err = Build(cfg, zap.NewNop())
	require.NoError(t, err)
	agg := app.Sources.Get(quote.ProtocolOneInch)
	require.NotNil(t, agg, "protocol defaults to 1inch")
	assert.Equal(t, quote.KindSwap, agg.Kind())

	cfg = &config.Config{}
	cfg.Aggregator.Enabled = true
	app, err = Build(cfg, zap.NewNop())
	require.NoError(t, err, "an unusable aggregator is disabled, not fatal")
	assert.Nil(t, app.Sources.Get(quote.ProtocolOneInch))
}

func TestBuild_VenueSkippedWithoutClient(t *testing.T) {
	cfg := &config.Config{
		Venues: []config.VenueCfg{{
			Protocol: "uniswap_v3", ChainID: 1,
			QuoterV2: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		}},
	}
	app, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, app.Sources.Get(quote.ProtocolUniswapV3), "no rpc client, no venue")
}
