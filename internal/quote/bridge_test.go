package quote

import (
	"context"
	"math/big"
	"testing"

	"github.com/ldmdldm/pylot-project/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBridge() *Bridge {
	b := NewBridge(ProtocolStargate, zap.NewNop())
	b.Configure([]token.ChainID{1, 42161}, []string{"PYUSD", "USDC"}, "10", "1000000", 250_000)
	return b
}

func TestBridge_Supports(t *testing.T) {
	b := newTestBridge()

	assert.True(t, b.Supports(tPYUSDEth, tPYUSDArb))
	assert.True(t, b.Supports(tUSDCArb, tUSDCEth))
	assert.False(t, b.Supports(tPYUSDEth, tPYUSDEth), "same chain")
	assert.False(t, b.Supports(tPYUSDEth, tUSDCArb), "asset change")
	assert.False(t, b.Supports(tWETHEth, token.Token{Symbol: "WETH", Chain: 42161, Decimals: 18}), "asset not carried")
	assert.False(t, b.Supports(tPYUSDEth, token.Token{Symbol: "PYUSD", Chain: 137, Decimals: 6}), "chain not carried")
}

func TestBridge_QuoteFeeSchedule(t *testing.T) {
	b := newTestBridge()

	q, err := b.Quote(context.Background(), Request{TokenIn: tPYUSDEth, TokenOut: tPYUSDArb, AmountIn: big.NewInt(1_000_000_000)})
	require.NoError(t, err)

	// Stargate takes 6 bps: 1000 PYUSD in, 999.4 out.
	assert.Equal(t, "999400000", q.AmountOut.String())
	assert.Equal(t, 6, q.FeeBps)
	assert.Equal(t, 120.0, q.LatencySec)
	assert.Equal(t, uint64(250_000), q.GasEstimate)
	assert.Equal(t, KindBridge, q.Kind)
	assert.Equal(t, ProtocolStargate, q.Protocol)
}

func TestBridge_DefaultSchedule(t *testing.T) {
	b := NewBridge(Protocol("wormhole"), zap.NewNop())
	b.Configure([]token.ChainID{1, 42161}, []string{"PYUSD"}, "", "", 0)

	q, err := b.Quote(context.Background(), Request{TokenIn: tPYUSDEth, TokenOut: tPYUSDArb, AmountIn: big.NewInt(1_000_000_000)})
	require.NoError(t, err)
	assert.Equal(t, "999000000", q.AmountOut.String(), "unlisted protocols quote the 10 bps default")
	assert.Equal(t, 600.0, q.LatencySec)
	assert.Equal(t, uint64(defaultBridgeGas), q.GasEstimate)
}

func TestBridge_RescalesDecimals(t *testing.T) {
	wide := token.Token{Symbol: "PYUSD", Chain: 10, Decimals: 18}
	b := NewBridge(ProtocolStargate, zap.NewNop())
	b.Configure([]token.ChainID{1, 10}, []string{"PYUSD"}, "", "", 0)

	q, err := b.Quote(context.Background(), Request{TokenIn: tPYUSDEth, TokenOut: wide, AmountIn: big.NewInt(1_000_000_000)})
	require.NoError(t, err)
	assert.Equal(t, "999400000000000000000", q.AmountOut.String())
}

func TestBridge_TransferBounds(t *testing.T) {
	b := newTestBridge()

	_, err := b.Quote(context.Background(), Request{TokenIn: tPYUSDEth, TokenOut: tPYUSDArb, AmountIn: big.NewInt(5_000_000)})
	require.Error(t, err)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNoLiquidity, reason)
	assert.Contains(t, err.Error(), "below bridge minimum")

	huge, _ := new(big.Int).SetString("2000000000000", 10) // 2M PYUSD, above the 1M cap
	_, err = b.Quote(context.Background(), Request{TokenIn: tPYUSDEth, TokenOut: tPYUSDArb, AmountIn: huge})
	require.Error(t, err)
	reason, _ = ReasonOf(err)
	assert.Equal(t, ReasonNoLiquidity, reason)
	assert.Contains(t, err.Error(), "above bridge maximum")
}

func TestBridge_UnsupportedPair(t *testing.T) {
	b := newTestBridge()

	_, err := b.Quote(context.Background(), Request{TokenIn: tPYUSDEth, TokenOut: tUSDCArb, AmountIn: big.NewInt(1_000_000_000)})
	require.Error(t, err)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonUnsupported, reason)
}

func TestBridge_CanceledContext(t *testing.T) {
	b := newTestBridge()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Quote(ctx, Request{TokenIn: tPYUSDEth, TokenOut: tPYUSDArb, AmountIn: big.NewInt(1_000_000_000)})
	require.Error(t, err)
	reason, _ := ReasonOf(err)
	assert.Equal(t, ReasonTimeout, reason)
}

func TestRescale(t *testing.T) {
	assert.Equal(t, "1000000000", rescale(big.NewInt(1_000_000_000), 6, 6).String())
	assert.Equal(t, "1000000000000000000000", rescale(big.NewInt(1_000_000_000), 6, 18).String())
	assert.Equal(t, "1", rescale(big.NewInt(1_999_999), 6, 0).String(), "floors on downscale")
}

func TestApplyFeeBps(t *testing.T) {
	assert.Equal(t, "999400000", applyFeeBps(big.NewInt(1_000_000_000), 6).String())
	assert.Equal(t, "1000000000", applyFeeBps(big.NewInt(1_000_000_000), 0).String())
	// 10 bps off 999 floors to 998.
	assert.Equal(t, "998", applyFeeBps(big.NewInt(999), 10).String())
}
