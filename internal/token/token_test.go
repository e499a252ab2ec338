package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddChain(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.AddChain(Chain{Name: "nameless"}), "zero chain id rejected")

	require.NoError(t, r.AddChain(Chain{ID: 1, Name: "ethereum", NativeSymbol: "ETH", WrappedNative: "WETH"}))
	c, ok := r.Chain(1)
	require.True(t, ok)
	assert.Equal(t, "ethereum", c.Name)

	_, ok = r.Chain(99)
	assert.False(t, ok)
}

func TestRegistry_AddToken(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddChain(Chain{ID: 1, Name: "ethereum"}))

	assert.Error(t, r.AddToken(Token{Chain: 1, Decimals: 6}), "empty symbol rejected")
	assert.Error(t, r.AddToken(Token{Symbol: "X", Chain: 1, Decimals: -1}), "negative decimals rejected")
	assert.Error(t, r.AddToken(Token{Symbol: "X", Chain: 1, Decimals: 37}), "decimals above 36 rejected")
	assert.Error(t, r.AddToken(Token{Symbol: "X", Chain: 7, Decimals: 6}), "unknown chain rejected")

	require.NoError(t, r.AddToken(Token{Symbol: "PYUSD", Chain: 1, Decimals: 6}))
	tok, ok := r.Token("PYUSD", 1)
	require.True(t, ok)
	assert.Equal(t, 6, tok.Decimals)
	assert.Equal(t, "PYUSD@1", tok.Key())

	_, ok = r.Token("PYUSD", 42161)
	assert.False(t, ok, "same symbol on another chain is a different token")
}

func TestRegistry_WrappedNative(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddChain(Chain{ID: 1, Name: "ethereum", WrappedNative: "WETH"}))
	require.NoError(t, r.AddChain(Chain{ID: 5, Name: "bare"}))
	require.NoError(t, r.AddToken(Token{Symbol: "WETH", Chain: 1, Decimals: 18}))

	w, ok := r.WrappedNative(1)
	require.True(t, ok)
	assert.Equal(t, 18, w.Decimals)

	_, ok = r.WrappedNative(5)
	assert.False(t, ok, "chain without a wrapped-native symbol")
	_, ok = r.WrappedNative(99)
	assert.False(t, ok, "unknown chain")
}

func TestRegistry_Hubs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddChain(Chain{ID: 1, Name: "ethereum"}))
	require.NoError(t, r.AddToken(Token{Symbol: "WETH", Chain: 1, Decimals: 18}))
	require.NoError(t, r.AddToken(Token{Symbol: "USDC", Chain: 1, Decimals: 6}))

	assert.Error(t, r.SetHubs(1, []string{"WETH", "DAI"}), "hub must already be registered")
	require.NoError(t, r.SetHubs(1, []string{"WETH", "USDC"}))

	hubs := r.Hubs(1)
	require.Len(t, hubs, 2)
	assert.Equal(t, "WETH", hubs[0].Symbol)
	assert.Equal(t, "USDC", hubs[1].Symbol)
	assert.Empty(t, r.Hubs(42161))
}

func TestRegistry_SortedViews(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddChain(Chain{ID: 42161, Name: "arbitrum"}))
	require.NoError(t, r.AddChain(Chain{ID: 1, Name: "ethereum"}))
	require.NoError(t, r.AddToken(Token{Symbol: "USDC", Chain: 1, Decimals: 6}))
	require.NoError(t, r.AddToken(Token{Symbol: "PYUSD", Chain: 1, Decimals: 6}))
	require.NoError(t, r.AddToken(Token{Symbol: "PYUSD", Chain: 42161, Decimals: 6}))

	chains := r.Chains()
	require.Len(t, chains, 2)
	assert.Equal(t, ChainID(1), chains[0].ID)
	assert.Equal(t, ChainID(42161), chains[1].ID)

	tokens := r.Tokens()
	require.Len(t, tokens, 3)
	assert.Equal(t, "PYUSD@1", tokens[0].Key())
	assert.Equal(t, "PYUSD@42161", tokens[1].Key())
	assert.Equal(t, "USDC@1", tokens[2].Key())
}

func TestDefault_PYUSDUniverse(t *testing.T) {
	r := Default()

	for _, chain := range []ChainID{ChainEthereum, ChainOptimism, ChainPolygon, ChainBase, ChainArbitrum} {
		_, ok := r.Token("PYUSD", chain)
		assert.True(t, ok, "PYUSD missing on chain %d", chain)
		_, ok = r.WrappedNative(chain)
		assert.True(t, ok, "wrapped native missing on chain %d", chain)
		assert.NotEmpty(t, r.Hubs(chain), "hubs missing on chain %d", chain)
	}

	pyusd, _ := r.Token("PYUSD", ChainEthereum)
	assert.Equal(t, 6, pyusd.Decimals)
	assert.Equal(t, "0x6c3ea9036406852006290770BEdFcAbA0e23A0e8", pyusd.Address.Hex())

	w, _ := r.WrappedNative(ChainPolygon)
	assert.Equal(t, "WMATIC", w.Symbol)
}
