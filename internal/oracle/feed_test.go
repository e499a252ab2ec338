package oracle

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ldmdldm/pylot-project/internal/token"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFeedFixture(t *testing.T) (*redis.Client, *Oracle, *Feed) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	o := New(zap.NewNop())
	feed := NewFeed(rdb, o, "pylot:price", "pylot:gas", 10*time.Millisecond, zap.NewNop())
	return rdb, o, feed
}

func TestFeed_AppliesPricesAndGas(t *testing.T) {
	rdb, o, feed := newFeedFixture(t)
	ctx := context.Background()

	now := float64(time.Now().UnixMilli())
	require.NoError(t, rdb.ZAdd(ctx, "pylot:price:active", redis.Z{Score: now, Member: "PYUSD@1"}).Err())
	require.NoError(t, rdb.HSet(ctx, "pylot:price:PYUSD@1", "price", "100000000", "liquidity", "5000000000").Err())
	require.NoError(t, rdb.HSet(ctx, "pylot:gas", "1", "22000000000").Err())

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = feed.Run(fctx) }()

	assert.Eventually(t, func() bool {
		pp, err := o.Price("PYUSD", 1)
		if err != nil {
			return false
		}
		gas, ok := o.GasPrice(1)
		return ok && pp.Price.Cmp(big.NewInt(100_000_000)) == 0 && gas.Cmp(big.NewInt(22_000_000_000)) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cap, ok := o.LiquidityCap("PYUSD", 1)
	require.True(t, ok)
	assert.Equal(t, "5000000000", cap.String())
}

func TestFeed_SkipsMalformedEntries(t *testing.T) {
	rdb, o, feed := newFeedFixture(t)
	ctx := context.Background()

	now := float64(time.Now().UnixMilli())
	require.NoError(t, rdb.ZAdd(ctx, "pylot:price:active",
		redis.Z{Score: now, Member: "nokey"},
		redis.Z{Score: now, Member: "PYUSD@1"},
		redis.Z{Score: now, Member: "USDC@1"},
	).Err())
	require.NoError(t, rdb.HSet(ctx, "pylot:price:PYUSD@1", "price", "not-a-number").Err())
	require.NoError(t, rdb.HSet(ctx, "pylot:price:USDC@1", "price", "100000000").Err())
	require.NoError(t, rdb.HSet(ctx, "pylot:gas", "x", "1", "1", "not-a-number", "10", "9000000000").Err())

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = feed.Run(fctx) }()

	assert.Eventually(t, func() bool {
		if _, err := o.Price("USDC", 1); err != nil {
			return false
		}
		_, ok := o.GasPrice(10)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	_, err := o.Price("PYUSD", 1)
	assert.ErrorIs(t, err, ErrPriceUnavailable)

	gas, _ := o.GasPrice(10)
	assert.Equal(t, "9000000000", gas.String())
	_, ok := o.GasPrice(1)
	assert.False(t, ok, "unparseable wei never lands")
}

func TestFeed_RunStopsOnCancel(t *testing.T) {
	_, _, feed := newFeedFixture(t)

	fctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(fctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop on cancel")
	}
}

func TestSplitKey(t *testing.T) {
	cases := []struct {
		key    string
		symbol string
		chain  token.ChainID
		ok     bool
	}{
		{"PYUSD@1", "PYUSD", 1, true},
		{"A@B@2", "A@B", 2, true},
		{"@1", "", 0, false},
		{"PYUSD@", "", 0, false},
		{"PYUSD", "", 0, false},
		{"PYUSD@x", "", 0, false},
	}
	for _, c := range cases {
		symbol, chain, ok := splitKey(c.key)
		assert.Equal(t, c.ok, ok, c.key)
		assert.Equal(t, c.symbol, symbol, c.key)
		assert.Equal(t, c.chain, chain, c.key)
	}
}
