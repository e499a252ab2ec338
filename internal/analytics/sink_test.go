package analytics

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ldmdldm/pylot-project/internal/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	name string
	err  error

	mu      sync.Mutex
	records []Record
	closed  bool
}

func (c *captureSink) Name() string { return c.name }

func (c *captureSink) Publish(ctx context.Context, rec Record) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func decision(id string) optimizer.Decision {
	return optimizer.Decision{
		RequestID: id,
		Request: optimizer.Request{
			SourceToken: "PYUSD", SourceChain: 1,
			TargetToken: "USDC", TargetChain: 1,
			AmountIn: big.NewInt(1_000_000),
		},
		Failure:   "no_liquidity",
		StartedAt: time.Now(),
	}
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a := &captureSink{name: "a"}
	b := &captureSink{name: "b"}
	d := NewDispatcher([]Sink{a, b}, 8, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Emit(decision("r1"))

	assert.Eventually(t, func() bool {
		return a.count() == 1 && b.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	a.mu.Lock()
	assert.Equal(t, "r1", a.records[0].RequestID)
	a.mu.Unlock()

	d.Close()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestDispatcher_SinkFailureSkipsToNext(t *testing.T) {
	bad := &captureSink{name: "bad", err: errors.New("broker down")}
	good := &captureSink{name: "good"}
	d := NewDispatcher([]Sink{bad, good}, 8, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Emit(decision("r2"))

	assert.Eventually(t, func() bool { return good.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, bad.count())
}

func TestDispatcher_EmitDropsWhenFull(t *testing.T) {
	d := NewDispatcher([]Sink{&captureSink{name: "a"}}, 1, zap.NewNop())

	// No Run loop: the second record has nowhere to go.
	d.Emit(decision("kept"))
	d.Emit(decision("dropped"))

	assert.Equal(t, 1, len(d.ch))
}

func TestDispatcher_DrainsBufferOnCancel(t *testing.T) {
	a := &captureSink{name: "a"}
	d := NewDispatcher([]Sink{a}, 8, zap.NewNop())

	d.Emit(decision("r1"))
	d.Emit(decision("r2"))
	d.Emit(decision("r3"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	require.Equal(t, 3, a.count())
}

func TestNopSink(t *testing.T) {
	var s Nop
	assert.Equal(t, "nop", s.Name())
	assert.NoError(t, s.Publish(context.Background(), Record{}))
	assert.NoError(t, s.Close())
}
