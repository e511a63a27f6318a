package pipeline

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/stacksolve/pkg/errors"
	sio "github.com/matzehuels/stacksolve/pkg/io"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/solver"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/splice"
)

// payload is the cached form of a concretization.
type payload struct {
	Lock    *sio.Lock         `json:"lock"`
	Reused  []string          `json:"reused,omitempty"`
	Cost    solver.Cost       `json:"cost"`
	Optimal bool              `json:"optimal"`
	Steps   int               `json:"steps"`
	Splices []splice.Decision `json:"splices,omitempty"`
}

func newPayload(r *Result) (*payload, error) {
	lock, err := sio.Encode(r.Solution.Roots)
	if err != nil {
		return nil, err
	}
	p := &payload{
		Lock:    lock,
		Cost:    r.Solution.Cost,
		Optimal: r.Solution.Optimal,
		Steps:   r.Stats.Steps,
		Splices: r.Splices,
	}
	for _, h := range r.Solution.Order {
		if r.Solution.Reused[h] {
			p.Reused = append(p.Reused, h)
		}
	}
	return p, nil
}

func (p *payload) encode() ([]byte, error) {
	return json.Marshal(p)
}

func decodePayload(data []byte) (*payload, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode cached solution")
	}
	if p.Lock == nil || len(p.Lock.Roots) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "cached solution has no roots")
	}
	return &p, nil
}

// result rebuilds the materialized graph. Decoding re-hashes every record,
// so a tampered entry fails here instead of producing a wrong graph.
func (p *payload) result(ctx context.Context) (*materialize.Result, error) {
	roots, err := p.Lock.Decode()
	if err != nil {
		return nil, err
	}
	reused := make(map[string]bool, len(p.Reused))
	for _, h := range p.Reused {
		reused[h] = true
	}

	sol := &solver.Solution{
		Roots:   roots,
		Reused:  make(map[*spec.Spec]bool),
		Cost:    p.Cost,
		Steps:   p.Steps,
		Optimal: p.Optimal,
	}
	seen := make(map[*spec.Spec]bool)
	for _, r := range roots {
		r.Traverse(func(n *spec.Spec) bool {
			if seen[n] {
				return false
			}
			seen[n] = true
			sol.Nodes = append(sol.Nodes, n)
			if reused[n.Hash] {
				sol.Reused[n] = true
			}
			return true
		})
	}
	return materialize.Materialize(ctx, sol)
}
