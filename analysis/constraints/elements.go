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
	"sort"
	"strconv"
	"strings"
)

// LatticeValue is a member of the two-point security lattice. Low means
// untainted, High means tainted, and Low ⊑ High.
type LatticeValue int

const (
	// Low is the bottom of the lattice (untainted).
	Low LatticeValue = iota
	// High is the top of the lattice (tainted).
	High
)

// Leq reports whether v ⊑ o in the lattice order.
func (v LatticeValue) Leq(o LatticeValue) bool {
	return v == Low || o == High
}

// Join returns the least upper bound of v and o.
func (v LatticeValue) Join(o LatticeValue) LatticeValue {
	if v == Low {
		return o
	}
	return v
}

func (v LatticeValue) String() string {
	if v == Low {
		return "L"
	}
	return "H"
}

// Element is a term of the constraint language: a lattice constant, a
// constraint variable, or a join of elements. Constants are process-wide
// singletons, variables are identity-equal, and joins are interned by the
// kit that built them, so two elements are the same term exactly when they
// are == as interface values.
type Element interface {
	// Leq reports whether the element is statically (without solving) known
	// to be at or below elem. It is false whenever a variable is involved.
	Leq(elem Element) bool

	// variables calls f once per occurrence of a constraint variable in the
	// element.
	variables(f func(*Var))

	// id is a small integer unique among the elements of one kit, used as
	// the interning key of joins.
	id() int

	String() string
}

// Constant is a lattice constant element. The only two instances are the
// singletons returned by LowConstant and HighConstant.
type Constant struct {
	value LatticeValue
}

var (
	lowSingleton  = &Constant{value: Low}
	highSingleton = &Constant{value: High}
)

// LowConstant returns the singleton Low element.
func LowConstant() *Constant { return lowSingleton }

// HighConstant returns the singleton High element.
func HighConstant() *Constant { return highSingleton }

// Value returns the lattice value the constant denotes.
func (c *Constant) Value() LatticeValue { return c.value }

// Leq compares two constants in the lattice order. It is false when elem is
// not a constant.
func (c *Constant) Leq(elem Element) bool {
	if other, ok := elem.(*Constant); ok {
		return c.value.Leq(other.value)
	}
	return false
}

func (c *Constant) variables(func(*Var)) {}

func (c *Constant) id() int {
	if c.value == Low {
		return -1
	}
	return -2
}

func (c *Constant) String() string { return c.value.String() }

// Var is a constraint variable. Variables are created by [Kit.NewVar] and
// are equal only to themselves; the description is carried for reporting.
type Var struct {
	num  int
	desc string
}

// Leq is always false for a variable: nothing is known before solving.
func (v *Var) Leq(Element) bool { return false }

func (v *Var) variables(f func(*Var)) { f(v) }

func (v *Var) id() int { return v.num }

// Desc returns the description the variable was created with.
func (v *Var) Desc() string { return v.desc }

func (v *Var) String() string {
	return v.desc + "#" + strconv.Itoa(v.num)
}

// Join is the least upper bound of a set of constants and variables. Joins
// are built through [Kit.Join] or [Kit.JoinMany], which flatten nested joins
// and intern the result: constructing a join twice from the same member set
// yields the same *Join.
type Join struct {
	// members, sorted by element id, without duplicates, never joins
	elems []Element
}

// Leq reports whether every member of the join is at or below elem.
func (j *Join) Leq(elem Element) bool {
	for _, e := range j.elems {
		if !e.Leq(elem) {
			return false
		}
	}
	return true
}

func (j *Join) variables(f func(*Var)) {
	for _, e := range j.elems {
		e.variables(f)
	}
}

func (j *Join) id() int {
	panic("constraints: join elements cannot be members of a join")
}

// Size returns the number of members of the join.
func (j *Join) Size() int { return len(j.elems) }

func (j *Join) String() string {
	members := make([]string, len(j.elems))
	for i, e := range j.elems {
		members[i] = e.String()
	}
	return "(" + strings.Join(members, " ⊔ ") + ")"
}

// joinKey is the interning key of a join with the given members (sorted,
// deduplicated).
func joinKey(elems []Element) string {
	var b strings.Builder
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(e.id()))
	}
	return b.String()
}

// normalizeMembers sorts the members by id and removes duplicates, in place.
func normalizeMembers(elems []Element) []Element {
	sort.Slice(elems, func(i, j int) bool { return elems[i].id() < elems[j].id() })
	out := elems[:0]
	for _, e := range elems {
		if len(out) == 0 || e.id() != out[len(out)-1].id() {
			out = append(out, e)
		}
	}
	return out
}

// Constraint is an immutable ordering fact lhs ⊑ rhs. In stored form the
// right-hand side is never a join (see [Kit.AddConstraint]).
type Constraint struct {
	lhs Element
	rhs Element
}

// LHS returns the left-hand side of the constraint.
func (c Constraint) LHS() Element { return c.lhs }

// RHS returns the right-hand side of the constraint.
func (c Constraint) RHS() Element { return c.rhs }

func (c Constraint) String() string {
	return c.lhs.String() + " ⊑ " + c.rhs.String()
}
