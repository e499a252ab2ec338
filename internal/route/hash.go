package route

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

type hashHop struct {
	Kind     string `json:"kind"`
	Protocol string `json:"protocol"`
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
}

type hashPlan struct {
	Hops     []hashHop `json:"hops"`
	AmountIn string    `json:"amount_in"`
}

// PlanID is a stable identifier for the shape of a route: the protocol
// path, the token chain and the input size. Two refreshes of the same
// plan with different quoted outputs share an id.
func (r *Route) PlanID() string {
	plan := hashPlan{
		Hops:     make([]hashHop, len(r.Hops)),
		AmountIn: r.AmountIn.String(),
	}
	for i, h := range r.Hops {
		plan.Hops[i] = hashHop{
			Kind:     string(h.Kind),
			Protocol: h.Protocol,
			TokenIn:  h.TokenIn.Key(),
			TokenOut: h.TokenOut.Key(),
		}
	}
	// Field order is fixed by the struct, so the JSON form is canonical.
	b, err := json.Marshal(plan)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:16])
}
