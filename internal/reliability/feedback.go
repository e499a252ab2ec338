package reliability

import (
	"context"
	"strconv"
	"strings"
	"time"

	imetrics "github.com/ldmdldm/pylot-project/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Feedback consumes execution outcomes from a Redis stream and folds
// them into Stats. Executors append entries with fields protocol,
// slippage_bps, exec_seconds and success.
type Feedback struct {
	rdb      *redis.Client
	stats    *Stats
	stream   string
	group    string
	consumer string
	log      *zap.Logger
}

func NewFeedback(rdb *redis.Client, stats *Stats, stream, group, consumer string, log *zap.Logger) *Feedback {
	if consumer == "" {
		consumer = "router-1"
	}
	return &Feedback{rdb: rdb, stats: stats, stream: stream, group: group, consumer: consumer, log: log}
}

// Run blocks reading the stream until ctx is done. The consumer group is
// created on entry; an already-existing group is fine.
func (f *Feedback) Run(ctx context.Context) error {
	if err := f.rdb.XGroupCreateMkStream(ctx, f.stream, f.group, "$").Err(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		streams, err := f.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    f.group,
			Consumer: f.consumer,
			Streams:  []string{f.stream, ">"},
			Count:    200,
			Block:    time.Second,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn("outcome stream: read", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				if o, ok := parseOutcome(m.Values); ok {
					f.stats.Record(o)
					imetrics.OutcomesIngested.WithLabelValues(o.Protocol).Inc()
				} else {
					f.log.Warn("outcome stream: bad entry", zap.String("id", m.ID))
				}
				_ = f.rdb.XAck(ctx, f.stream, f.group, m.ID).Err()
			}
		}
	}
}

func parseOutcome(values map[string]interface{}) (Outcome, bool) {
	var o Outcome
	p, _ := values["protocol"].(string)
	if p == "" {
		return o, false
	}
	o.Protocol = p
	if v, ok := values["slippage_bps"].(string); ok {
		o.SlippageBps, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := values["exec_seconds"].(string); ok {
		o.ExecSeconds, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := values["success"].(string); ok {
		o.Success = v == "1" || strings.EqualFold(v, "true")
	}
	return o, true
}
