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

package lang

import (
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
)

// FindAllPointers returns the pointers recorded for v by the points-to analysis,
// from both the direct and the indirect queries.
func FindAllPointers(res *pointer.Result, v ssa.Value) []pointer.Pointer {
	var allptr []pointer.Pointer
	if ptr, ptrExists := res.Queries[v]; ptrExists {
		allptr = append(allptr, ptr)
	}
	// By indirect query
	if ptr, ptrExists := res.IndirectQueries[v]; ptrExists {
		allptr = append(allptr, ptr)
	}
	return allptr
}

// ForEachTransitiveLabel applies f to every points-to label reachable from v: the
// labels of v's own points-to set and, transitively, the labels of everything those
// labels' values point to. f may see the same label more than once when two pointers
// share part of their points-to sets.
func ForEachTransitiveLabel(res *pointer.Result, v ssa.Value, f func(label *pointer.Label)) {
	stack := FindAllPointers(res, v)
	seen := make(map[pointer.Pointer]struct{})
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}

		for _, label := range cur.PointsTo().Labels() {
			f(label)
			val := label.Value()
			if val == nil || val.Parent() == nil {
				continue
			}
			stack = append(stack, FindAllPointers(res, val)...)
		}
	}
}

// CalleesAtSite returns the candidate callees recorded in cg for the call instruction
// site inside caller. For a direct call this is the static callee; for an indirect
// call these are the targets the points-to analysis discovered for the call.
func CalleesAtSite(cg *callgraph.Graph, caller *ssa.Function, site ssa.CallInstruction) []*ssa.Function {
	node, ok := cg.Nodes[caller]
	if !ok {
		return nil
	}
	var callees []*ssa.Function
	seen := make(map[*ssa.Function]bool)
	for _, edge := range node.Out {
		if edge.Site == site && !seen[edge.Callee.Func] {
			seen[edge.Callee.Func] = true
			callees = append(callees, edge.Callee.Func)
		}
	}
	return callees
}

// CallGraphReachable returns the set of functions reachable from from in cg.
func CallGraphReachable(cg *callgraph.Graph, from *ssa.Function) map[*ssa.Function]bool {
	reach := make(map[*ssa.Function]bool, len(cg.Nodes))
	root, ok := cg.Nodes[from]
	if !ok {
		return reach
	}
	reach[from] = true
	frontier := []*callgraph.Node{root}
	for len(frontier) != 0 {
		node := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, edge := range node.Out {
			if !reach[edge.Callee.Func] {
				reach[edge.Callee.Func] = true
				frontier = append(frontier, edge.Callee)
			}
		}
	}
	return reach
}
