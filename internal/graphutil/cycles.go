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

package graphutil

import "sort"

// FindAllElementaryCycles enumerates the elementary cycles of the graph,
// following Johnson's algorithm ("Finding All The Elementary Circuits of a
// Directed Graph", 1975): pick the smallest node that still lies on a
// cycle, enumerate every circuit through it within its strongly connected
// component, then discard the node and repeat on the rest. Each cycle is
// reported as the ids along it, with the starting node repeated at the end.
// The number of cycles can be exponential in the size of a component.
func FindAllElementaryCycles(g Graph) [][]int64 {
	remaining := make([]int64, len(g.Keys))
	copy(remaining, g.Keys)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })

	var cycles [][]int64
	for len(remaining) > 0 {
		sub := Subgraph(g, remaining)

		// The component of the smallest remaining node on a cycle.
		var component []int64
		for _, scc := range StronglyConnectedComponents(sub) {
			if len(scc) < 2 && !sub.Edges[scc[0]][scc[0]] {
				continue
			}
			if component == nil || scc[0] < component[0] {
				component = scc
			}
		}
		if component == nil {
			break
		}

		root := component[0]
		search := &circuitSearch{
			g:        Subgraph(g, component),
			root:     root,
			blocked:  map[int64]bool{},
			unlockOn: map[int64][]int64{},
		}
		search.explore(root)
		cycles = append(cycles, search.found...)

		for i, id := range remaining {
			if id == root {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return cycles
}

// circuitSearch is the state of one rooted enumeration: the current path,
// the blocked set and, per node, the nodes to unblock along with it.
type circuitSearch struct {
	g        Graph
	root     int64
	path     []int64
	blocked  map[int64]bool
	unlockOn map[int64][]int64
	found    [][]int64
}

// explore extends the path with v and reports whether some extension closed
// a circuit back to the root.
func (cs *circuitSearch) explore(v int64) bool {
	cs.path = append(cs.path, v)
	cs.blocked[v] = true

	closed := false
	for _, w := range cs.successors(v) {
		if w == cs.root {
			cycle := make([]int64, 0, len(cs.path)+1)
			cycle = append(cycle, cs.path...)
			cycle = append(cycle, cs.root)
			cs.found = append(cs.found, cycle)
			closed = true
		} else if !cs.blocked[w] && cs.explore(w) {
			closed = true
		}
	}

	if closed {
		cs.unblock(v)
	} else {
		// v stays blocked until one of its successors unblocks. This is
		// what keeps the search from re-walking dead stretches.
		for _, w := range cs.successors(v) {
			cs.unlockOn[w] = append(cs.unlockOn[w], v)
		}
	}

	cs.path = cs.path[:len(cs.path)-1]
	return closed
}

func (cs *circuitSearch) successors(v int64) []int64 {
	out := make([]int64, 0, len(cs.g.Edges[v]))
	for w := range cs.g.Edges[v] {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (cs *circuitSearch) unblock(v int64) {
	cs.blocked[v] = false
	for _, w := range cs.unlockOn[v] {
		if cs.blocked[w] {
			cs.unblock(w)
		}
	}
	cs.unlockOn[v] = nil
}
