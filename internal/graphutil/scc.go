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

import (
	"sort"

	"github.com/yourbasic/graph"
)

// StronglyConnectedComponents partitions the graph's nodes into its
// strongly connected components, one sorted id slice per component. Two
// nodes share a component exactly when each can reach the other, so in a
// propagation graph the members of one component necessarily carry the same
// lattice value, and in a call graph a component of size two or more (or a
// single self-calling node) is a recursive group.
func StronglyConnectedComponents(g Graph) [][]int64 {
	present := make(map[int64]bool, len(g.Keys))
	for _, id := range g.Keys {
		present[id] = true
	}

	// The iterator ranges over every id below Order; ids the graph has no
	// node for come back as isolated singletons and are filtered out here.
	var sccs [][]int64
	for _, component := range graph.StrongComponents(g) {
		scc := make([]int64, 0, len(component))
		for _, v := range component {
			if present[int64(v)] {
				scc = append(scc, int64(v))
			}
		}
		if len(scc) == 0 {
			continue
		}
		sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
		sccs = append(sccs, scc)
	}
	return sccs
}
