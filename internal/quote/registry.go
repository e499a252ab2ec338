package quote

import (
	"sort"
	"sync"
)

// Registry is the set of sources a router instance consults. Iteration
// order is sorted by protocol so that a replayed request walks sources
// in the same order every time.
type Registry struct {
	mu      sync.RWMutex
	sources map[Protocol]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[Protocol]Source)}
}

func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Protocol()] = s
}

func (r *Registry) Get(p Protocol) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[p]
}

func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sortSources(out)
	return out
}

func (r *Registry) Swaps() []Source   { return r.byKind(KindSwap) }
func (r *Registry) Bridges() []Source { return r.byKind(KindBridge) }

func (r *Registry) byKind(k Kind) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		if s.Kind() == k {
			out = append(out, s)
		}
	}
	sortSources(out)
	return out
}

func sortSources(ss []Source) {
	sort.Slice(ss, func(i, j int) bool { return ss[i].Protocol() < ss[j].Protocol() })
}
