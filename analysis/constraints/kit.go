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
	"fmt"

	"github.com/thinkmoore/go-infoflow/internal/funcutil"
)

// Reserved constraint kinds. The generator files explicit flows under
// KindDefault and control-dependence flows under KindImplicit; when
// propagation is cut at sinks, the flows out of sink values move to the
// corresponding *-sinks kind. Any other non-empty string is a valid
// user-defined kind (slices use one kind per query).
const (
	KindDefault       = "default"
	KindDefaultSinks  = "default-sinks"
	KindImplicit      = "implicit"
	KindImplicitSinks = "implicit-sinks"
)

// DefaultWorkers is the number of goroutines SolveLeastMT uses when the kit
// was not given another bound.
const DefaultWorkers = 16

// Solution is the query surface of a solved constraint system.
type Solution interface {
	// Subst evaluates an element under the solved assignment.
	Subst(elem Element) LatticeValue
}

// Kit owns the variables, interned joins and stored constraints of one
// analysis run, and caches the per-kind solutions. A kit must not be shared
// between goroutines while constraints are being added; the concurrency in
// SolveMT and SolveLeastMT operates on frozen constraint lists only.
type Kit struct {
	// Workers bounds the number of goroutines used by SolveLeastMT.
	Workers int

	constraints map[string][]Constraint
	lockedKinds map[string]bool

	vars  []*Var
	joins map[string]*Join

	// insertion counters per kind; they survive the release of the raw
	// constraint lists
	added map[string]int

	numExplicit int
	numImplicit int

	leastSolutions    map[string]*PartialSolution
	greatestSolutions map[string]*PartialSolution
}

// NewKit returns an empty kit with the default worker bound.
func NewKit() *Kit {
	return &Kit{
		Workers:           DefaultWorkers,
		constraints:       make(map[string][]Constraint),
		lockedKinds:       make(map[string]bool),
		joins:             make(map[string]*Join),
		added:             make(map[string]int),
		leastSolutions:    make(map[string]*PartialSolution),
		greatestSolutions: make(map[string]*PartialSolution),
	}
}

// Low returns the singleton Low element.
func (k *Kit) Low() *Constant { return lowSingleton }

// High returns the singleton High element.
func (k *Kit) High() *Constant { return highSingleton }

// NewVar creates a fresh constraint variable carrying desc.
func (k *Kit) NewVar(desc string) *Var {
	v := &Var{num: len(k.vars) + 1, desc: desc}
	k.vars = append(k.vars, v)
	return v
}

// Join returns the interned least upper bound of e1 and e2, flattening any
// nested joins. A nil argument is ignored, so an element accumulator can be
// folded starting from nil; Join(nil, nil) is nil.
func (k *Kit) Join(e1, e2 Element) Element {
	if e1 == nil {
		return e2
	}
	if e2 == nil {
		return e1
	}
	members := make([]Element, 0, 2)
	members = appendMembers(members, e1)
	members = appendMembers(members, e2)
	return k.internJoin(members)
}

// JoinMany returns the interned least upper bound of elems. Joining the
// empty set is a contract violation.
func (k *Kit) JoinMany(elems []Element) Element {
	if len(elems) == 0 {
		panic("constraints: join of the empty set")
	}
	members := make([]Element, 0, len(elems))
	for _, e := range elems {
		members = appendMembers(members, e)
	}
	return k.internJoin(members)
}

// appendMembers appends e to members, flattening e when it is a join.
func appendMembers(members []Element, e Element) []Element {
	if j, ok := e.(*Join); ok {
		return append(members, j.elems...)
	}
	return append(members, e)
}

func (k *Kit) internJoin(members []Element) *Join {
	members = normalizeMembers(members)
	key := joinKey(members)
	if j, ok := k.joins[key]; ok {
		return j
	}
	j := &Join{elems: members}
	k.joins[key] = j
	return j
}

// AddConstraint stores lhs ⊑ rhs under kind. Adding to a kind that has
// already been solved is a fatal contract violation, as is passing a join
// as rhs. A join lhs is expanded into one stored constraint per member.
func (k *Kit) AddConstraint(kind string, lhs, rhs Element) {
	if k.lockedKinds[kind] {
		panic(fmt.Sprintf("constraints: kind %q is already being solved, cannot add constraints", kind))
	}
	if _, ok := rhs.(*Join); ok {
		panic("constraints: join on the right-hand side of a constraint")
	}

	switch kind {
	case KindDefault:
		k.numExplicit++
	case KindImplicit:
		k.numImplicit++
	}

	if left, ok := lhs.(*Join); ok {
		for _, e := range left.elems {
			k.constraints[kind] = append(k.constraints[kind], Constraint{lhs: e, rhs: rhs})
			k.added[kind]++
		}
	} else {
		k.constraints[kind] = append(k.constraints[kind], Constraint{lhs: lhs, rhs: rhs})
		k.added[kind]++
	}
}

// LeastSolution returns the least fixed point of the union of the given
// kinds: every variable stays Low unless the constraints force it to High.
// Each kind's partial solution is computed once, cached and locked; the
// returned solution is a fresh copy chained to the cached ones, so callers
// may merge more solutions into it without disturbing the cache.
func (k *Kit) LeastSolution(kinds []string) *PartialSolution {
	var ps *PartialSolution
	for _, kind := range kinds {
		p, ok := k.leastSolutions[kind]
		if !ok {
			p = newPartialSolution(k.lockAndTake(kind), false)
			k.leastSolutions[kind] = p
			k.freeUnneededConstraints(kind)
		}
		if ps == nil {
			ps = p.Copy()
		} else {
			ps.MergeIn(p)
		}
	}
	if ps == nil {
		panic("constraints: no kinds given to LeastSolution")
	}
	return ps
}

// GreatestSolution returns the greatest fixed point of the union of the
// given kinds: every variable stays High unless the constraints force it to
// Low. Caching and chaining behave as in LeastSolution.
func (k *Kit) GreatestSolution(kinds []string) *PartialSolution {
	var ps *PartialSolution
	for _, kind := range kinds {
		p, ok := k.greatestSolutions[kind]
		if !ok {
			p = newPartialSolution(k.lockAndTake(kind), true)
			k.greatestSolutions[kind] = p
			k.freeUnneededConstraints(kind)
		}
		if ps == nil {
			ps = p.Copy()
		} else {
			ps.MergeIn(p)
		}
	}
	if ps == nil {
		panic("constraints: no kinds given to GreatestSolution")
	}
	return ps
}

// lockAndTake marks kind immutable and returns its accumulated constraints.
// Solving a kind that never received a constraint is a contract violation.
func (k *Kit) lockAndTake(kind string) []Constraint {
	if _, ok := k.added[kind]; !ok {
		panic(fmt.Sprintf("constraints: solving kind %q, which was never created", kind))
	}
	k.lockedKinds[kind] = true
	return k.constraints[kind]
}

// freeUnneededConstraints releases the raw constraint list of kind once both
// fixed points have been computed; only the compact propagation maps inside
// the cached solutions are retained.
func (k *Kit) freeUnneededConstraints(kind string) {
	if !k.lockedKinds[kind] {
		return
	}
	_, least := k.leastSolutions[kind]
	_, greatest := k.greatestSolutions[kind]
	if least && greatest {
		delete(k.constraints, kind)
	}
}

// NumVars returns the number of variables created so far.
func (k *Kit) NumVars() int { return len(k.vars) }

// NumJoins returns the number of distinct interned joins.
func (k *Kit) NumJoins() int { return len(k.joins) }

// Vars returns the variables of the kit in creation order.
func (k *Kit) Vars() []*Var {
	return append([]*Var(nil), k.vars...)
}

// ConstraintCount returns how many constraints were stored under kind,
// counting join expansions, whether or not the raw list has been released.
func (k *Kit) ConstraintCount(kind string) int { return k.added[kind] }

// Kinds returns all kinds that ever received a constraint, sorted.
func (k *Kit) Kinds() []string { return funcutil.SortedKeys(k.added) }

// LockedKinds returns the kinds that have been solved (and therefore refuse
// new constraints), sorted.
func (k *Kit) LockedKinds() []string {
	return funcutil.SetToOrderedSlice(k.lockedKinds)
}

// ExplicitConstraints returns the number of constraints added to the
// "default" kind.
func (k *Kit) ExplicitConstraints() int { return k.numExplicit }

// ImplicitConstraints returns the number of constraints added to the
// "implicit" kind.
func (k *Kit) ImplicitConstraints() int { return k.numImplicit }
