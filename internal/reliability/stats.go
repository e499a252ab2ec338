package reliability

import (
	"sort"
	"sync"
)

// Outcome is one executed hop's observed result, reported after the fact
// by whatever executed the route.
type Outcome struct {
	Protocol    string
	SlippageBps float64
	ExecSeconds float64
	Success     bool
}

// Stat is the cumulative view for one protocol. Slippage and execution
// time average over successful executions only; Samples counts everything.
type Stat struct {
	Samples        int64
	Successes      int64
	AvgSlippageBps float64
	AvgExecSeconds float64
}

func (s Stat) SuccessRatio() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Samples)
}

// Stats tracks reliability per protocol. Reads return value copies taken
// under the lock, so a caller never observes an entry mid-update.
type Stats struct {
	mu         sync.RWMutex
	byProtocol map[string]Stat
}

func New() *Stats {
	return &Stats{byProtocol: make(map[string]Stat)}
}

func (s *Stats) Record(o Outcome) {
	if o.Protocol == "" {
		return
	}
	if o.SlippageBps < 0 {
		o.SlippageBps = 0
	}
	if o.ExecSeconds < 0 {
		o.ExecSeconds = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.byProtocol[o.Protocol]
	st.Samples++
	if o.Success {
		st.Successes++
		n := float64(st.Successes)
		st.AvgSlippageBps += (o.SlippageBps - st.AvgSlippageBps) / n
		st.AvgExecSeconds += (o.ExecSeconds - st.AvgExecSeconds) / n
	}
	s.byProtocol[o.Protocol] = st
}

// Snapshot returns the protocol's stat as of now. ok is false when the
// protocol has never reported, which callers treat as the neutral case.
func (s *Stats) Snapshot(protocol string) (Stat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byProtocol[protocol]
	return st, ok
}

func (s *Stats) SnapshotAll() map[string]Stat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Stat, len(s.byProtocol))
	for k, v := range s.byProtocol {
		out[k] = v
	}
	return out
}

// Protocols lists protocols with at least one sample, sorted.
func (s *Stats) Protocols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byProtocol))
	for k := range s.byProtocol {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
