package analytics

import (
	"time"

	"github.com/ldmdldm/pylot-project/internal/optimizer"
	"github.com/ldmdldm/pylot-project/internal/quote"
	"github.com/shopspring/decimal"
)

// HopRecord is one hop of a selected route, flattened for storage.
type HopRecord struct {
	Kind      string `json:"kind"`
	Protocol  string `json:"protocol"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	FeeBps    int    `json:"fee_bps"`
	FeeTier   uint32 `json:"fee_tier,omitempty"`
}

// Alternative is a losing candidate, kept so stored decisions show what
// the winner beat.
type Alternative struct {
	Path      string  `json:"path"`
	Hops      int     `json:"hops"`
	AmountOut string  `json:"amount_out"`
	Score     float64 `json:"score"`
}

// Record is the sink-facing form of a routing decision. Amounts travel
// as base-unit decimal strings so no consumer loses precision.
type Record struct {
	RequestID   string `json:"request_id"`
	PlanID      string `json:"plan_id,omitempty"`
	SourceToken string `json:"source_token"`
	SourceChain uint64 `json:"source_chain"`
	TargetToken string `json:"target_token"`
	TargetChain uint64 `json:"target_chain"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out,omitempty"`

	// Rate is amount out over amount in, both scaled to whole tokens.
	Rate string `json:"rate,omitempty"`

	Score           float64 `json:"score"`
	OutputComp      float64 `json:"output_comp"`
	GasComp         float64 `json:"gas_comp"`
	ReliabilityComp float64 `json:"reliability_comp"`

	Hops         []HopRecord    `json:"hops,omitempty"`
	Path         string         `json:"path,omitempty"`
	Candidates   int            `json:"candidates"`
	Alternatives []Alternative  `json:"alternatives,omitempty"`
	Failure      string         `json:"failure,omitempty"`
	Failures     map[string]int `json:"failures,omitempty"`

	ElapsedMs int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// FromDecision flattens an optimizer decision for publication.
func FromDecision(d optimizer.Decision) Record {
	rec := Record{
		RequestID:   d.RequestID,
		SourceToken: d.Request.SourceToken,
		SourceChain: uint64(d.Request.SourceChain),
		TargetToken: d.Request.TargetToken,
		TargetChain: uint64(d.Request.TargetChain),
		Candidates:  len(d.Candidates),
		Failure:     d.Failure,
		Failures:    reasonCounts(d.Failures),
		ElapsedMs:   d.Elapsed.Milliseconds(),
		CreatedAt:   d.StartedAt,
	}
	if d.Request.AmountIn != nil {
		rec.AmountIn = d.Request.AmountIn.String()
	}
	r := d.Route
	if r == nil {
		return rec
	}

	rec.PlanID = r.PlanID()
	rec.AmountOut = r.AmountOut.String()
	rec.Path = r.PathString()
	rec.Score = d.Score.Score
	rec.OutputComp = d.Score.Output
	rec.GasComp = d.Score.Gas
	rec.ReliabilityComp = d.Score.Reliability

	in := decimal.NewFromBigInt(r.AmountIn, -int32(r.SourceToken().Decimals))
	out := decimal.NewFromBigInt(r.AmountOut, -int32(r.TargetToken().Decimals))
	if !in.IsZero() {
		rec.Rate = out.Div(in).StringFixed(12)
	}

	rec.Hops = make([]HopRecord, len(r.Hops))
	for i, h := range r.Hops {
		rec.Hops[i] = HopRecord{
			Kind:      string(h.Kind),
			Protocol:  h.Protocol,
			TokenIn:   h.TokenIn.Key(),
			TokenOut:  h.TokenOut.Key(),
			AmountIn:  h.AmountIn.String(),
			AmountOut: h.AmountOut.String(),
			FeeBps:    h.FeeBps,
			FeeTier:   h.FeeTier,
		}
	}
	for _, c := range d.Candidates {
		if c.Route == r {
			continue
		}
		rec.Alternatives = append(rec.Alternatives, Alternative{
			Path:      c.Route.PathString(),
			Hops:      len(c.Route.Hops),
			AmountOut: c.Route.AmountOut.String(),
			Score:     c.Score.Score,
		})
	}
	return rec
}

// Pair keys Kafka partitioning so one pair's decisions arrive in order.
func (r Record) Pair() string {
	return r.SourceToken + "-" + r.TargetToken
}

func reasonCounts(m map[quote.Reason]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
