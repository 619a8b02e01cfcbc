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

package infoflow

import (
	"fmt"
	"strings"

	"github.com/thinkmoore/go-infoflow/analysis/constraints"
	"github.com/thinkmoore/go-infoflow/internal/funcutil"
	"github.com/thinkmoore/go-infoflow/internal/graphutil"
)

// Stats summarizes the size of the analysis state, for reporting and
// tuning. Gather one with ComputeStats after Analyze.
type Stats struct {
	Functions int // functions analyzed in at least one context
	Units     int // (function, context) units analyzed
	Contexts  int // distinct calling contexts

	RecursiveGroups int // strongly connected groups in the call graph

	ValueVars   int
	BlockVars   int
	VargVars    int
	LocVars     int
	SummaryVars int
	Vars        int // every constraint variable, including internal ones
	Joins       int // distinct interned joins

	Explicit int // constraints under "default"
	Implicit int // constraints under "implicit"
	PerKind  map[string]int
}

// ComputeStats gathers the current counters.
func (ifa *Infoflow) ComputeStats() Stats {
	st := Stats{
		Functions: len(ifa.analyzedFns),
		Contexts:  ifa.contexts.numContexts(),
		LocVars:   len(ifa.locVars),
		SummaryVars: len(ifa.summarySourceValues) + len(ifa.summarySinkValues) +
			len(ifa.summarySourceVargs) + len(ifa.summarySinkVargs),
		Vars:     ifa.kit.NumVars(),
		Joins:    ifa.kit.NumJoins(),
		Explicit: ifa.kit.ExplicitConstraints(),
		Implicit: ifa.kit.ImplicitConstraints(),
		PerKind:  map[string]int{},
	}
	for _, rec := range ifa.records {
		if rec.analyzed {
			st.Units++
		}
	}
	for _, vars := range ifa.valueVars {
		st.ValueVars += len(vars)
	}
	for _, vars := range ifa.blockVars {
		st.BlockVars += len(vars)
	}
	for _, vars := range ifa.vargVars {
		st.VargVars += len(vars)
	}
	for _, kind := range ifa.kit.Kinds() {
		st.PerKind[kind] = ifa.kit.ConstraintCount(kind)
	}
	// Recursion shows up as a strongly connected component of the call
	// graph: a group of mutually recursive functions, or a single function
	// calling itself.
	cg := graphutil.NewCallgraphIterator(ifa.ptrRes.CallGraph)
	for _, scc := range graphutil.StronglyConnectedComponents(cg) {
		if len(scc) > 1 || cg.Edges[scc[0]][scc[0]] {
			st.RecursiveGroups++
		}
	}
	return st
}

func (st Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "functions analyzed: %d\n", st.Functions)
	fmt.Fprintf(&b, "analysis units:     %d\n", st.Units)
	fmt.Fprintf(&b, "contexts:           %d\n", st.Contexts)
	fmt.Fprintf(&b, "recursive groups:   %d\n", st.RecursiveGroups)
	fmt.Fprintf(&b, "variables:          %d (%d value, %d block, %d location, %d vararg, %d summary)\n",
		st.Vars, st.ValueVars, st.BlockVars, st.LocVars, st.VargVars, st.SummaryVars)
	fmt.Fprintf(&b, "interned joins:     %d\n", st.Joins)
	fmt.Fprintf(&b, "constraints:        %d explicit, %d implicit\n", st.Explicit, st.Implicit)
	for _, kind := range funcutil.SortedKeys(st.PerKind) {
		fmt.Fprintf(&b, "  kind %-18q %d\n", kind, st.PerKind[kind])
	}
	return b.String()
}

// PropagationGraph builds a labeled graph over the propagation edges of the
// solved system. Its strongly connected components and elementary cycles
// show which variables necessarily carry the same lattice value, which is
// the usual starting point when a taint report is surprising.
func (s *Solution) PropagationGraph() graphutil.Graph {
	labels := make(map[int64]string)
	edges := make(map[int64]map[int64]bool)
	ids := make(map[*constraints.Var]int64)
	intern := func(v *constraints.Var) int64 {
		id, ok := ids[v]
		if !ok {
			id = int64(len(ids))
			ids[v] = id
			labels[id] = v.String()
		}
		return id
	}

	// The reference worklist solutions carry no propagation maps; they
	// yield an empty graph.
	if ps, ok := s.sol.(*constraints.PartialSolution); ok {
		ps.PropagationEdges(func(from, to *constraints.Var) {
			f, t := intern(from), intern(to)
			if edges[f] == nil {
				edges[f] = map[int64]bool{}
			}
			edges[f][t] = true
		})
	}
	return graphutil.NewGraph(labels, edges)
}

// cycleEnumerationBound caps the component size for elementary-cycle
// enumeration. The number of elementary cycles can be exponential in the
// component size; components past the bound are counted as unexplored
// instead of enumerated.
const cycleEnumerationBound = 24

// PropagationDiagnostics summarizes the cyclic structure of a solution's
// propagation graph. Variables in one strongly connected component
// necessarily carry the same lattice value, and each elementary cycle names
// one loop that ties them together.
type PropagationDiagnostics struct {
	Vars       int // variables in the propagation graph
	Components int // strongly connected components
	Largest    int // size of the largest component
	Cycles     int // elementary cycles in the enumerated components
	Unexplored int // cyclic components past the enumeration bound
}

// PropagationDiagnostics computes the diagnostics of the solution's
// propagation graph.
func (s *Solution) PropagationDiagnostics() PropagationDiagnostics {
	g := s.PropagationGraph()
	d := PropagationDiagnostics{Vars: len(g.Keys)}
	for _, scc := range graphutil.StronglyConnectedComponents(g) {
		d.Components++
		if len(scc) > d.Largest {
			d.Largest = len(scc)
		}
		if len(scc) == 1 && !g.Edges[scc[0]][scc[0]] {
			continue
		}
		if len(scc) > cycleEnumerationBound {
			d.Unexplored++
			continue
		}
		// Cycles never cross components, so enumerating per component is
		// the same as enumerating the whole graph.
		d.Cycles += len(graphutil.FindAllElementaryCycles(graphutil.Subgraph(g, scc)))
	}
	return d
}

func (d PropagationDiagnostics) String() string {
	s := fmt.Sprintf("%d variable(s) in %d component(s) (largest %d), %d elementary cycle(s)",
		d.Vars, d.Components, d.Largest, d.Cycles)
	if d.Unexplored > 0 {
		s += fmt.Sprintf(", %d component(s) too large to enumerate", d.Unexplored)
	}
	return s
}
