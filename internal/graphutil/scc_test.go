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

package graphutil_test

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/exp/slices"

	"github.com/thinkmoore/go-infoflow/internal/graphutil"
)

// adjacency is a compact graph notation for tests: every node must appear
// as a key, even when it has no successors.
type adjacency map[int64][]int64

func buildGraph(adj adjacency) graphutil.Graph {
	labels := map[int64]string{}
	edges := map[int64]map[int64]bool{}
	for v, succs := range adj {
		labels[v] = strconv.Itoa(int(v))
		edges[v] = map[int64]bool{}
		for _, w := range succs {
			edges[v][w] = true
		}
	}
	return graphutil.NewGraph(labels, edges)
}

func componentStrings(sccs [][]int64) []string {
	results := make([]string, len(sccs))
	for i, scc := range sccs {
		parts := make([]string, len(scc))
		for j, id := range scc {
			parts[j] = strconv.Itoa(int(id))
		}
		results[i] = strings.Join(parts, "")
	}
	sort.Strings(results)
	return results
}

func TestStronglyConnectedComponentsKnown(t *testing.T) {
	// A triangle feeding a tail node, a self loop and an isolated node.
	g := buildGraph(adjacency{
		0: {1},
		1: {2},
		2: {0, 3},
		3: nil,
		4: {4},
		5: nil,
	})
	got := componentStrings(graphutil.StronglyConnectedComponents(g))
	want := []string{"012", "3", "4", "5"}
	if !slices.Equal(got, want) {
		t.Errorf("expected components %v, got %v", want, got)
	}

	// Two cycles sharing a node collapse into one component.
	g = buildGraph(adjacency{
		0: {1},
		1: {2, 3},
		2: {0},
		3: {1},
	})
	got = componentStrings(graphutil.StronglyConnectedComponents(g))
	want = []string{"0123"}
	if !slices.Equal(got, want) {
		t.Errorf("expected components %v, got %v", want, got)
	}

	// A dag has only singletons.
	g = buildGraph(adjacency{
		0: {1, 2},
		1: {3},
		2: {1},
		3: nil,
	})
	got = componentStrings(graphutil.StronglyConnectedComponents(g))
	want = []string{"0", "1", "2", "3"}
	if !slices.Equal(got, want) {
		t.Errorf("expected components %v, got %v", want, got)
	}
}

func TestStronglyConnectedComponentsRandom(t *testing.T) {
	assertValidComponents := func(adj adjacency) {
		sccs := graphutil.StronglyConnectedComponents(buildGraph(adj))
		if err := checkComponents(adj, sccs); err != nil {
			t.Fatalf("Error: %v", err)
		}
	}
	for i := 0; i < 100; i++ {
		assertValidComponents(randomAdjacency(10, 68348438+int64(i)))
	}
	for i := 0; i < 10; i++ {
		assertValidComponents(randomAdjacency(50, 184618+int64(i)))
	}
	for i := 0; i < 3; i++ {
		assertValidComponents(randomAdjacency(100, 4875934+int64(i)))
	}
}

// checkComponents verifies that sccs is a partition of adj's nodes into
// strongly connected, maximal groups.
func checkComponents(adj adjacency, sccs [][]int64) error {
	component := map[int64]int{}
	for i, scc := range sccs {
		for _, x := range scc {
			// Every node appears at most once.
			if _, seen := component[x]; seen {
				return fmt.Errorf("repeated node %v\nin:%v", x, adj)
			}
			component[x] = i
			// Every member reaches every other member of its component.
			for _, y := range scc {
				if x != y && !reaches(adj, x, y) {
					return fmt.Errorf("component members %v and %v are not connected\nin:%v", x, y, adj)
				}
			}
		}
	}
	// Combined with the above, every node appears exactly once.
	for v := range adj {
		if _, seen := component[v]; !seen {
			return fmt.Errorf("missing node %v\nin:%v", v, adj)
		}
	}
	// Mutually reachable nodes share a component, so each is maximal.
	for x := range component {
		for y := range component {
			if component[x] != component[y] && reaches(adj, x, y) && reaches(adj, y, x) {
				return fmt.Errorf("nodes %v and %v are mutually reachable but split\nin:%v", x, y, adj)
			}
		}
	}
	return nil
}

// reaches computes whether y is reachable from x.
func reaches(adj adjacency, x, y int64) bool {
	visited := map[int64]bool{}
	var visit func(int64)
	visit = func(n int64) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, nn := range adj[n] {
			visit(nn)
		}
	}
	visit(x)
	return visited[y]
}

func randomAdjacency(size int64, seed int64) adjacency {
	adj := adjacency{}
	r := rand.New(rand.NewSource(seed))
	for i := int64(0); i < size; i++ {
		adj[i] = nil
		for j := 0; j < 3; j++ {
			if r.Float32() < 0.7 {
				adj[i] = append(adj[i], r.Int63()%size)
			}
		}
	}
	return adj
}
