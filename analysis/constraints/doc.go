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

/*
Package constraints implements a constraint language and solvers over the two-point
security lattice {Low, High}, with Low ⊑ High. The information flow analysis encodes
"the label of a flows to b" as the constraint a ⊑ b and reads taint off the solved
system.

A [Kit] owns every constraint variable, interned join and stored constraint. Constraints
are grouped into named kinds (see [KindDefault] and friends); a kind is the unit of
locking and solving. Use [Kit.NewVar], [Kit.Join] and [Kit.AddConstraint] to build a
system, then query it through one of the solvers:

  - [Kit.LeastSolution] and [Kit.GreatestSolution] compute, respectively, the least
    fixed point (unconstrained variables stay Low) and the greatest fixed point
    (unconstrained variables stay High) over a set of kinds. Per-kind solutions are
    cached and shared through chaining, so repeated queries are cheap.
  - [Kit.SolveMT] computes both fixed points of one kind concurrently and then
    releases the kind's raw constraint list.
  - [Kit.SolveLeastMT] is the bulk entry point: it solves many small kinds against
    the already-solved "default" baseline using a pool of goroutines, one merged
    [PartialSolution] per kind.
  - [SolveLeast] and [SolveGreatest] are reference worklist solvers over a plain
    constraint list, used to cross-check the propagation-based solver.

Solutions answer [Solution.Subst], mapping any element to its [LatticeValue] under
the solved assignment.
*/
package constraints
