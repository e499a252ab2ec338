package oracle

import (
	"context"
	"math/big"
	"strconv"
	"strings"
	"time"

	imetrics "github.com/ldmdldm/pylot-project/internal/metrics"
	"github.com/ldmdldm/pylot-project/internal/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Feed polls Redis for price and gas updates written by the ops pricing
// jobs and pushes them into the oracle.
//
// Layout:
//
//	ZSET  <pricePrefix>:active          member "SYM@chain", score unix ms
//	HASH  <pricePrefix>:<SYM>@<chain>   fields price, liquidity
//	HASH  <gasPrefix>                   field  <chain id> -> wei
type Feed struct {
	rdb         *redis.Client
	oracle      *Oracle
	pricePrefix string
	gasPrefix   string
	poll        time.Duration
	log         *zap.Logger
}

func NewFeed(rdb *redis.Client, o *Oracle, pricePrefix, gasPrefix string, poll time.Duration, log *zap.Logger) *Feed {
	if poll <= 0 {
		poll = time.Second
	}
	return &Feed{
		rdb:         rdb,
		oracle:      o,
		pricePrefix: pricePrefix,
		gasPrefix:   gasPrefix,
		poll:        poll,
		log:         log,
	}
}

// Run blocks until ctx is done. Each tick re-reads entries whose activity
// score moved since the previous tick, so a quiet feed costs one ZSET read.
func (f *Feed) Run(ctx context.Context) error {
	t := time.NewTicker(f.poll)
	defer t.Stop()

	// First pass picks up everything already present.
	since := int64(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			next := time.Now().UnixMilli()
			f.pollPrices(ctx, since)
			f.pollGas(ctx)
			since = next - int64(f.poll/time.Millisecond)
		}
	}
}

func (f *Feed) pollPrices(ctx context.Context, sinceMs int64) {
	keys, err := f.rdb.ZRangeByScore(ctx, f.pricePrefix+":active", &redis.ZRangeBy{
		Min: strconv.FormatInt(sinceMs, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		f.log.Warn("price feed: list active", zap.Error(err))
		return
	}
	for _, key := range keys {
		symbol, chain, ok := splitKey(key)
		if !ok {
			f.log.Warn("price feed: bad key", zap.String("key", key))
			continue
		}
		m, err := f.rdb.HGetAll(ctx, f.pricePrefix+":"+key).Result()
		if err != nil || len(m) == 0 {
			continue
		}
		price, ok := new(big.Int).SetString(m["price"], 10)
		if !ok {
			f.log.Warn("price feed: bad price", zap.String("key", key), zap.String("price", m["price"]))
			continue
		}
		var liquidity *big.Int
		if s := m["liquidity"]; s != "" {
			if l, ok := new(big.Int).SetString(s, 10); ok {
				liquidity = l
			}
		}
		if err := f.oracle.UpdatePrice(symbol, chain, price, liquidity); err != nil {
			f.log.Warn("price feed: update rejected", zap.String("key", key), zap.Error(err))
			continue
		}
		imetrics.PriceUpdates.Inc()
	}
}

func (f *Feed) pollGas(ctx context.Context) {
	m, err := f.rdb.HGetAll(ctx, f.gasPrefix).Result()
	if err != nil {
		f.log.Warn("gas feed: read", zap.Error(err))
		return
	}
	for chainStr, weiStr := range m {
		id, err := strconv.ParseUint(chainStr, 10, 64)
		if err != nil {
			continue
		}
		wei, ok := new(big.Int).SetString(weiStr, 10)
		if !ok {
			continue
		}
		if err := f.oracle.SetGasPrice(token.ChainID(id), wei); err != nil {
			f.log.Warn("gas feed: update rejected", zap.Uint64("chain", id), zap.Error(err))
			continue
		}
		imetrics.GasPrice.WithLabelValues(chainStr).Set(token.ToFloat(wei, 0))
	}
}

func splitKey(key string) (string, token.ChainID, bool) {
	i := strings.LastIndexByte(key, '@')
	if i <= 0 || i == len(key)-1 {
		return "", 0, false
	}
	id, err := strconv.ParseUint(key[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return key[:i], token.ChainID(id), true
}
