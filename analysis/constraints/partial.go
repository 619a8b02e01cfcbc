// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package constraints

import (
	"github.com/thinkmoore/go-infoflow/internal/funcutil"
)

// PartialSolution is the propagation-based representation of a fixed point.
// Instead of replaying constraints it keeps, per solution, a propagation map
// from a variable to the variables its change pushes to, and the set of
// variables that ended up with the non-default value.
//
// Partial solutions chain: a solution holds a list of other solutions whose
// changed sets and propagation maps take part in every query and every
// propagation round. Chaining is what makes the bulk mode cheap — the large
// "default" baseline is solved once, and each per-query solution is a fresh
// copy chained to it.
type PartialSolution struct {
	// greatest is true when the solution lowers variables from the High
	// default (greatest fixed point) and false when it raises them from the
	// Low default (least fixed point).
	greatest bool

	// prop maps a variable to the variables its change propagates to.
	prop map[*Var][]*Var

	// changed holds the variables of this link of the chain that carry the
	// non-default value.
	changed map[*Var]bool

	// chained lists every solution taking part in queries, starting with the
	// receiver itself.
	chained []*PartialSolution
}

// newPartialSolution builds and solves a partial solution for cs. The
// constraint list is only read, never stored.
func newPartialSolution(cs []Constraint, greatest bool) *PartialSolution {
	s := &PartialSolution{
		greatest: greatest,
		prop:     make(map[*Var][]*Var),
		changed:  make(map[*Var]bool),
	}
	s.chained = []*PartialSolution{s}
	s.initialize(cs)
	s.propagate()
	return s
}

// initialize builds the propagation map and seeds the changed set. For the
// least fixed point a constraint lhs ⊑ rhs propagates High from the lhs
// variables to the rhs variables; for the greatest fixed point the sides
// flip and Low propagates from rhs to lhs.
func (s *PartialSolution) initialize(cs []Constraint) {
	for _, c := range cs {
		from, to := c.lhs, c.rhs
		if s.greatest {
			from, to = to, from
		}

		var targets []*Var
		to.variables(func(v *Var) { targets = append(targets, v) })
		if len(targets) == 0 {
			continue
		}

		from.variables(func(v *Var) {
			s.prop[v] = append(s.prop[v], targets...)
		})

		// Seed with the immediate evidence: a High source forces the least
		// targets up, a Low source forces the greatest targets down. Earlier
		// seeds are visible to later constraints through Subst.
		val := s.Subst(from)
		forced := val == High
		if s.greatest {
			forced = val == Low
		}
		if forced {
			for _, t := range targets {
				s.changed[t] = true
			}
		}
	}
}

// propagate computes the transitive closure of the changed sets over all
// chained propagation maps.
func (s *PartialSolution) propagate() {
	var worklist []*Var
	for _, c := range s.chained {
		for v := range c.changed {
			worklist = append(worklist, v)
		}
	}

	for i := 0; i < len(worklist); i++ {
		v := worklist[i]
		for _, c := range s.chained {
			for _, t := range c.prop[v] {
				if !s.isChanged(t) {
					s.changed[t] = true
					worklist = append(worklist, t)
				}
			}
		}
	}
}

// isChanged reports whether any link of the chain changed v.
func (s *PartialSolution) isChanged(v *Var) bool {
	for _, c := range s.chained {
		if c.changed[v] {
			return true
		}
	}
	return false
}

// Subst evaluates elem under the solution. A variable carries the default
// value unless some chained solution changed it; a join folds its members
// starting from Low, so it evaluates to the exact least upper bound in both
// fixed-point directions.
func (s *PartialSolution) Subst(elem Element) LatticeValue {
	switch e := elem.(type) {
	case *Var:
		if s.isChanged(e) {
			if s.greatest {
				return Low
			}
			return High
		}
		if s.greatest {
			return High
		}
		return Low
	case *Constant:
		return e.value
	case *Join:
		val := Low
		for _, m := range e.elems {
			val = val.Join(s.Subst(m))
		}
		return val
	default:
		panic("constraints: unknown element kind in Subst")
	}
}

// Copy returns a fresh, empty partial solution chained to s. Queries on the
// copy see s's assignment; merges mutate only the copy.
func (s *PartialSolution) Copy() *PartialSolution {
	c := &PartialSolution{
		greatest: s.greatest,
		prop:     make(map[*Var][]*Var),
		changed:  make(map[*Var]bool),
	}
	c.chained = make([]*PartialSolution, 0, len(s.chained)+1)
	c.chained = append(c.chained, c)
	c.chained = append(c.chained, s.chained...)
	return c
}

// MergeIn chains p into s and re-propagates, so that s becomes the fixed
// point of the union of both solutions' constraints. Merging a least into a
// greatest solution is a contract violation. The merge only mutates s; p may
// be chained into many solutions concurrently as long as it is no longer
// mutated itself.
func (s *PartialSolution) MergeIn(p *PartialSolution) {
	if s.greatest != p.greatest {
		panic("constraints: cannot merge least and greatest partial solutions")
	}
	for _, c := range p.chained {
		if !funcutil.Contains(s.chained, c) {
			s.chained = append(s.chained, c)
		}
	}
	s.propagate()
}

// NumChanged returns the number of variables carrying the non-default value,
// over the whole chain.
func (s *PartialSolution) NumChanged() int {
	seen := make(map[*Var]bool)
	for _, c := range s.chained {
		funcutil.Union(seen, c.changed)
	}
	return len(seen)
}

// PropagationEdges calls f once per edge of every propagation map in the
// chain. The edge direction follows the solving direction: for a least
// solution, from pushes High to to.
func (s *PartialSolution) PropagationEdges(f func(from, to *Var)) {
	for _, c := range s.chained {
		for from, targets := range c.prop {
			for _, to := range targets {
				f(from, to)
			}
		}
	}
}
