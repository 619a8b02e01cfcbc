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

// worklistSolution is the classical chaotic-iteration solver. It revisits a
// constraint whenever one of its watched variables changes, using an index
// from variables to the constraints their change may invalidate. The fixed
// point is unique, so the iteration order does not matter.
//
// The kit's solvers are propagation-based (see PartialSolution); this solver
// keeps the straightforward formulation to cross-check them against.
type worklistSolution struct {
	defaultValue LatticeValue

	cs []Constraint

	// FIFO of constraint indexes with a set side for deduplication
	queue    []int
	queueSet map[int]bool

	// constraints to revisit when a variable leaves the default value; built
	// over lhs variables for the least solve, rhs variables for the greatest
	invalid map[*Var][]int

	changed map[*Var]bool
	solved  bool
}

// SolveLeast computes the least fixed point of cs: every variable stays Low
// unless the constraints force it to High.
func SolveLeast(cs []Constraint) Solution {
	return &worklistSolution{defaultValue: Low, cs: cs}
}

// SolveGreatest computes the greatest fixed point of cs: every variable
// stays High unless the constraints force it to Low.
func SolveGreatest(cs []Constraint) Solution {
	return &worklistSolution{defaultValue: High, cs: cs}
}

// Subst evaluates elem under the fixed point, solving on first use. A join
// folds its members starting from the solver's default value.
func (s *worklistSolution) Subst(elem Element) LatticeValue {
	s.solve()
	switch e := elem.(type) {
	case *Var:
		if s.changed[e] {
			if s.defaultValue == Low {
				return High
			}
			return Low
		}
		return s.defaultValue
	case *Constant:
		return e.value
	case *Join:
		val := s.defaultValue
		for _, m := range e.elems {
			val = val.Join(s.Subst(m))
		}
		return val
	default:
		panic("constraints: unknown element kind in Subst")
	}
}

func (s *worklistSolution) solve() {
	if s.solved {
		return
	}
	s.solved = true

	s.queueSet = make(map[int]bool, len(s.cs))
	s.invalid = make(map[*Var][]int)
	s.changed = make(map[*Var]bool)

	for i := range s.cs {
		watched := s.cs[i].lhs
		if s.defaultValue == High {
			watched = s.cs[i].rhs
		}
		watched.variables(func(v *Var) {
			s.invalid[v] = append(s.invalid[v], i)
		})
		s.enqueue(i)
	}

	for len(s.queue) > 0 {
		c := s.dequeue()
		if s.Subst(c.lhs).Leq(s.Subst(c.rhs)) {
			continue
		}
		s.satisfy(c)
	}

	// Only the changed set is needed to answer queries.
	s.cs = nil
	s.queue = nil
	s.queueSet = nil
	s.invalid = nil
}

// satisfy restores c by moving variables off the default value: the least
// solve raises the rhs variables below subst(lhs), the greatest solve lowers
// the lhs variables above subst(rhs). Every constraint watching a moved
// variable is requeued.
func (s *worklistSolution) satisfy(c Constraint) {
	if s.defaultValue == Low {
		l := s.Subst(c.lhs)
		c.rhs.variables(func(v *Var) {
			if !l.Leq(s.Subst(v)) {
				s.changed[v] = true
				s.enqueueAll(s.invalid[v])
			}
		})
		return
	}
	r := s.Subst(c.rhs)
	c.lhs.variables(func(v *Var) {
		if !s.Subst(v).Leq(r) {
			s.changed[v] = true
			s.enqueueAll(s.invalid[v])
		}
	})
}

func (s *worklistSolution) enqueue(i int) {
	if !s.queueSet[i] {
		s.queueSet[i] = true
		s.queue = append(s.queue, i)
	}
}

func (s *worklistSolution) enqueueAll(is []int) {
	for _, i := range is {
		s.enqueue(i)
	}
}

func (s *worklistSolution) dequeue() Constraint {
	i := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.queueSet, i)
	return s.cs[i]
}
