package scoring

import (
	"fmt"
	"math/big"

	"github.com/ldmdldm/pylot-project/internal/oracle"
	"github.com/ldmdldm/pylot-project/internal/reliability"
	"github.com/ldmdldm/pylot-project/internal/route"
	"github.com/ldmdldm/pylot-project/internal/token"
)

// Config carries the composite weights and the floors that keep the
// reciprocal terms finite. Zero values are replaced with defaults.
type Config struct {
	OutputWeight      float64
	GasWeight         float64
	ReliabilityWeight float64

	// TieEpsilon is the score distance under which two routes count as
	// tied and the hop-count rule decides.
	TieEpsilon float64

	// Baselines stand in for protocols with no recorded executions.
	BaselineSlippageBps float64
	BaselineExecSec     float64

	// Epsilon floors the denominators of the reciprocal components.
	Epsilon float64
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.OutputWeight == 0 && out.GasWeight == 0 && out.ReliabilityWeight == 0 {
		out.OutputWeight, out.GasWeight, out.ReliabilityWeight = 0.40, 0.30, 0.30
	}
	if out.TieEpsilon == 0 {
		out.TieEpsilon = 1e-9
	}
	if out.BaselineSlippageBps == 0 {
		out.BaselineSlippageBps = 30
	}
	if out.BaselineExecSec == 0 {
		out.BaselineExecSec = 60
	}
	if out.Epsilon == 0 {
		out.Epsilon = 1e-6
	}
	return out
}

// Breakdown is one route's score with its components, kept for the
// analytics record and the API response.
type Breakdown struct {
	Output      float64 `json:"output"`
	Gas         float64 `json:"gas"`
	Reliability float64 `json:"reliability"`
	Score       float64 `json:"score"`
}

// Scorer ranks candidate routes by a weighted sum of effective output,
// gas efficiency and protocol reliability. Gas is valued through the
// oracle in the first hop's native asset; the unit mixing between the
// components is a deliberate heuristic, not a precise conversion.
type Scorer struct {
	cfg      Config
	oracle   *oracle.Oracle
	registry *token.Registry
	stats    *reliability.Stats
}

func New(cfg Config, o *oracle.Oracle, reg *token.Registry, stats *reliability.Stats) *Scorer {
	return &Scorer{cfg: cfg.withDefaults(), oracle: o, registry: reg, stats: stats}
}

func (s *Scorer) TieEpsilon() float64 { return s.cfg.TieEpsilon }

func (s *Scorer) Score(r *route.Route) (Breakdown, error) {
	gasNative, gasInOut, err := s.gasCost(r)
	if err != nil {
		return Breakdown{}, err
	}

	in, out := r.SourceToken(), r.TargetToken()
	netOut := new(big.Int).Sub(r.AmountOut, gasInOut)
	outputComp := token.ToFloat(netOut, out.Decimals) / token.ToFloat(r.AmountIn, in.Decimals)

	gasComp := 1 / max(gasNative, s.cfg.Epsilon)
	relComp := s.reliabilityComp(r)

	b := Breakdown{Output: outputComp, Gas: gasComp, Reliability: relComp}
	b.Score = s.cfg.OutputWeight*outputComp + s.cfg.GasWeight*gasComp + s.cfg.ReliabilityWeight*relComp
	return b, nil
}

// gasCost totals the route's gas spend twice: in the first hop's native
// asset (whole units, for the gas component) and in the target token's
// base units (for the output adjustment). Chains other than the first
// are converted through the oracle.
func (s *Scorer) gasCost(r *route.Route) (float64, *big.Int, error) {
	byChain := r.GasByChain()
	gasInOut := new(big.Int)
	if len(byChain) == 0 {
		return 0, gasInOut, nil
	}

	firstChain := r.SourceToken().Chain
	firstNative, ok := s.registry.WrappedNative(firstChain)
	if !ok {
		return 0, nil, fmt.Errorf("chain %d: no wrapped native registered", firstChain)
	}
	out := r.TargetToken()

	firstNativeWei := new(big.Int)
	for chain, wei := range byChain {
		native, ok := s.registry.WrappedNative(chain)
		if !ok {
			return 0, nil, fmt.Errorf("chain %d: no wrapped native registered", chain)
		}
		inFirst := wei
		if chain != firstChain {
			conv, err := s.oracle.Convert(wei, native, firstNative)
			if err != nil {
				return 0, nil, err
			}
			inFirst = conv
		}
		firstNativeWei.Add(firstNativeWei, inFirst)

		outUnits, err := s.oracle.Convert(wei, native, out)
		if err != nil {
			return 0, nil, err
		}
		gasInOut.Add(gasInOut, outUnits)
	}
	return token.ToFloat(firstNativeWei, firstNative.Decimals), gasInOut, nil
}

// reliabilityComp averages per-protocol reciprocal factors over hops.
// A protocol with no samples scores at the configured baseline rather
// than zero, and a protocol that has only failed scores at zero through
// its success ratio.
func (s *Scorer) reliabilityComp(r *route.Route) float64 {
	if len(r.Hops) == 0 {
		return 0
	}
	var sum float64
	for _, h := range r.Hops {
		st, ok := s.stats.Snapshot(h.Protocol)
		if !ok || st.Samples == 0 {
			sum += s.factor(s.cfg.BaselineSlippageBps, s.cfg.BaselineExecSec, 1)
			continue
		}
		slip, exec := st.AvgSlippageBps, st.AvgExecSeconds
		if st.Successes == 0 {
			slip, exec = s.cfg.BaselineSlippageBps, s.cfg.BaselineExecSec
		}
		sum += s.factor(slip, exec, st.SuccessRatio())
	}
	return sum / float64(len(r.Hops))
}

func (s *Scorer) factor(slipBps, execSec, successRatio float64) float64 {
	return (1 / max(slipBps, s.cfg.Epsilon)) * (1 / max(execSec, s.cfg.Epsilon)) * successRatio
}

// Scored pairs a breakdown with the tie-break inputs.
type Scored struct {
	Breakdown Breakdown
	Hops      int
	Path      string
}

// Prefer reports whether a should be chosen over b: higher score wins;
// within TieEpsilon fewer hops win; the protocol path breaks the rest.
// The tie band is intransitive, so Prefer suits a linear scan over a
// fixed candidate order, not a sort comparator.
func (s *Scorer) Prefer(a, b Scored) bool {
	d := a.Breakdown.Score - b.Breakdown.Score
	if d > s.cfg.TieEpsilon {
		return true
	}
	if d < -s.cfg.TieEpsilon {
		return false
	}
	if a.Hops != b.Hops {
		return a.Hops < b.Hops
	}
	return a.Path < b.Path
}
