package analytics

import (
	"context"
	"time"

	imetrics "github.com/ldmdldm/pylot-project/internal/metrics"
	"github.com/ldmdldm/pylot-project/internal/optimizer"
	"go.uber.org/zap"
)

// Sink stores or forwards decision records.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// Nop discards everything. It stands in when analytics is not configured.
type Nop struct{}

func (Nop) Name() string                          { return "nop" }
func (Nop) Publish(context.Context, Record) error { return nil }
func (Nop) Close() error                          { return nil }

const publishTimeout = 5 * time.Second

// Dispatcher decouples routing from analytics delivery. Emit never
// blocks: when the buffer is full the record is dropped and counted.
type Dispatcher struct {
	sinks []Sink
	ch    chan Record
	log   *zap.Logger
}

func NewDispatcher(sinks []Sink, buffer int, log *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Dispatcher{sinks: sinks, ch: make(chan Record, buffer), log: log}
}

// Emit implements optimizer.Emitter.
func (d *Dispatcher) Emit(dec optimizer.Decision) {
	rec := FromDecision(dec)
	select {
	case d.ch <- rec:
	default:
		imetrics.AnalyticsDropped.WithLabelValues("dispatcher").Inc()
		d.log.Warn("analytics queue full; dropping record", zap.String("request_id", rec.RequestID))
	}
}

// Run delivers queued records until ctx is done, then drains what is
// already buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-d.ch:
					d.publish(context.Background(), rec)
				default:
					return
				}
			}
		case rec := <-d.ch:
			d.publish(ctx, rec)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, rec Record) {
	for _, s := range d.sinks {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := s.Publish(pctx, rec)
		cancel()
		if err != nil {
			imetrics.AnalyticsDropped.WithLabelValues(s.Name()).Inc()
			d.log.Warn("analytics publish failed",
				zap.String("sink", s.Name()),
				zap.String("request_id", rec.RequestID),
				zap.Error(err))
			continue
		}
		imetrics.AnalyticsPublished.WithLabelValues(s.Name()).Inc()
	}
}

// Close closes the attached sinks.
func (d *Dispatcher) Close() {
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			d.log.Warn("sink close", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}

var _ optimizer.Emitter = (*Dispatcher)(nil)
