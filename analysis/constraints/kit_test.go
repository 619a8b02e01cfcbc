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
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestKitSmoke is the historical two-variable system: a ⊑ b, a ⊑ L, H ⊑ b.
func TestKitSmoke(t *testing.T) {
	kit := NewKit()
	a := kit.NewVar("a")
	b := kit.NewVar("b")

	kit.AddConstraint(KindDefault, a, b)
	kit.AddConstraint(KindDefault, a, kit.Low())
	kit.AddConstraint(KindDefault, kit.High(), b)

	least := kit.LeastSolution([]string{KindDefault})
	assert.Equal(t, Low, least.Subst(a))
	assert.Equal(t, High, least.Subst(b))

	greatest := kit.GreatestSolution([]string{KindDefault})
	assert.Equal(t, Low, greatest.Subst(a), "a ⊑ L forces a down")
	assert.Equal(t, High, greatest.Subst(b))
}

func TestAddConstraintAfterSolvePanics(t *testing.T) {
	kit := NewKit()
	a := kit.NewVar("a")
	kit.AddConstraint(KindDefault, kit.High(), a)
	kit.LeastSolution([]string{KindDefault})

	assert.Panics(t, func() {
		kit.AddConstraint(KindDefault, kit.High(), kit.NewVar("late"))
	})
	// Other kinds are still open.
	assert.NotPanics(t, func() {
		kit.AddConstraint("other", kit.High(), kit.NewVar("ok"))
	})
}

func TestAddConstraintJoinRHSPanics(t *testing.T) {
	kit := NewKit()
	a := kit.NewVar("a")
	b := kit.NewVar("b")
	assert.Panics(t, func() {
		kit.AddConstraint(KindDefault, a, kit.Join(a, b))
	})
}

func TestAddConstraintExpandsJoinLHS(t *testing.T) {
	kit := NewKit()
	a := kit.NewVar("a")
	b := kit.NewVar("b")
	c := kit.NewVar("c")

	kit.AddConstraint(KindDefault, kit.JoinMany([]Element{a, b, c}), kit.NewVar("sink"))
	assert.Equal(t, 3, kit.ConstraintCount(KindDefault), "one stored constraint per join member")
}

func TestExplicitImplicitCounters(t *testing.T) {
	kit := NewKit()
	a := kit.NewVar("a")
	b := kit.NewVar("b")

	kit.AddConstraint(KindDefault, a, b)
	kit.AddConstraint(KindDefault, a, b)
	kit.AddConstraint(KindImplicit, a, b)
	kit.AddConstraint(KindDefaultSinks, a, b)

	assert.Equal(t, 2, kit.ExplicitConstraints())
	assert.Equal(t, 1, kit.ImplicitConstraints())
}

func TestSolutionCachingSharesPartialSolutions(t *testing.T) {
	kit := NewKit()
	a := kit.NewVar("a")
	b := kit.NewVar("b")
	kit.AddConstraint(KindDefault, kit.High(), a)
	kit.AddConstraint("extra", a, b)

	s1 := kit.LeastSolution([]string{KindDefault, "extra"})
	s2 := kit.LeastSolution([]string{KindDefault, "extra"})
	assert.Equal(t, High, s1.Subst(b))
	assert.Equal(t, High, s2.Subst(b))

	// The kinds were locked by the first call.
	assert.Equal(t, []string{"default", "extra"}, kit.LockedKinds())
}

func TestConstraintCountSurvivesRelease(t *testing.T) {
	kit := NewKit()
	a := kit.NewVar("a")
	kit.AddConstraint(KindDefault, kit.High(), a)

	kit.LeastSolution([]string{KindDefault})
	kit.GreatestSolution([]string{KindDefault})

	// Both fixed points exist, so the raw list has been released, but the
	// counters remain.
	assert.Equal(t, 1, kit.ConstraintCount(KindDefault))
	assert.Empty(t, kit.constraints[KindDefault])
}

func TestLeastSolutionNoKindsPanics(t *testing.T) {
	kit := NewKit()
	assert.Panics(t, func() { kit.LeastSolution(nil) })
	assert.Panics(t, func() { kit.GreatestSolution(nil) })
}

func TestSolvingAbsentKindPanics(t *testing.T) {
	kit := NewKit()
	kit.NewVar("v")
	assert.Panics(t, func() { kit.LeastSolution([]string{"nothing-here"}) })
	assert.Panics(t, func() { kit.GreatestSolution([]string{"nothing-here"}) })
	assert.Panics(t, func() { kit.SolveMT("nothing-here") })
}

func TestKitStatsSurface(t *testing.T) {
	kit := NewKit()
	a := kit.NewVar("a")
	b := kit.NewVar("b")
	kit.Join(a, b)
	kit.AddConstraint(KindDefault, a, b)
	kit.AddConstraint(KindImplicit, a, b)

	assert.Equal(t, 2, kit.NumVars())
	assert.Equal(t, 1, kit.NumJoins())
	assert.Equal(t, []string{"default", "implicit"}, kit.Kinds())
	assert.Len(t, kit.Vars(), 2)
}
