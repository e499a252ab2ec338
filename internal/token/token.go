package token

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID is an EVM chain id (eip-155).
type ChainID uint64

const (
	ChainEthereum ChainID = 1
	ChainOptimism ChainID = 10
	ChainPolygon  ChainID = 137
	ChainBase     ChainID = 8453
	ChainArbitrum ChainID = 42161
)

type Chain struct {
	ID            ChainID
	Name          string
	NativeSymbol  string
	WrappedNative string
	RPCURL        string
}

// Token is a chain-qualified asset. The same symbol on two chains is two
// distinct tokens with distinct addresses and possibly distinct decimals.
type Token struct {
	Symbol   string
	Chain    ChainID
	Address  common.Address
	Decimals int
}

func (t Token) Key() string { return Key(t.Symbol, t.Chain) }

func Key(symbol string, chain ChainID) string {
	return fmt.Sprintf("%s@%d", symbol, chain)
}

// Registry holds the chains, tokens and hub sets the optimizer is allowed
// to route over. Reads vastly outnumber writes; writes happen at startup
// and through the admin surface.
type Registry struct {
	mu     sync.RWMutex
	chains map[ChainID]Chain
	tokens map[string]Token
	hubs   map[ChainID][]string
}

func NewRegistry() *Registry {
	return &Registry{
		chains: make(map[ChainID]Chain),
		tokens: make(map[string]Token),
		hubs:   make(map[ChainID][]string),
	}
}

func (r *Registry) AddChain(c Chain) error {
	if c.ID == 0 {
		return fmt.Errorf("chain %q: zero id", c.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[c.ID] = c
	return nil
}

func (r *Registry) AddToken(t Token) error {
	if t.Symbol == "" {
		return fmt.Errorf("token on chain %d: empty symbol", t.Chain)
	}
	if t.Decimals < 0 || t.Decimals > 36 {
		return fmt.Errorf("token %s: decimals %d out of range", t.Symbol, t.Decimals)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chains[t.Chain]; !ok {
		return fmt.Errorf("token %s: unknown chain %d", t.Symbol, t.Chain)
	}
	r.tokens[t.Key()] = t
	return nil
}

// SetHubs declares the intermediate tokens two-hop routes may pass through
// on the given chain. Symbols must already be registered there.
func (r *Registry) SetHubs(chain ChainID, symbols []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range symbols {
		if _, ok := r.tokens[Key(s, chain)]; !ok {
			return fmt.Errorf("hub %s: not registered on chain %d", s, chain)
		}
	}
	r.hubs[chain] = append([]string(nil), symbols...)
	return nil
}

func (r *Registry) Chain(id ChainID) (Chain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[id]
	return c, ok
}

func (r *Registry) Token(symbol string, chain ChainID) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[Key(symbol, chain)]
	return t, ok
}

// WrappedNative resolves the token used to price gas on a chain.
func (r *Registry) WrappedNative(chain ChainID) (Token, bool) {
	r.mu.RLock()
	c, ok := r.chains[chain]
	r.mu.RUnlock()
	if !ok || c.WrappedNative == "" {
		return Token{}, false
	}
	return r.Token(c.WrappedNative, chain)
}

func (r *Registry) Hubs(chain ChainID) []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, 0, len(r.hubs[chain]))
	for _, s := range r.hubs[chain] {
		if t, ok := r.tokens[Key(s, chain)]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Chains() []Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Tokens() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
