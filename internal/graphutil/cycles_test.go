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
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/thinkmoore/go-infoflow/internal/funcutil"
	"github.com/thinkmoore/go-infoflow/internal/graphutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

func labelsUpTo(n int64) map[int64]string {
	labels := map[int64]string{}
	for i := int64(0); i < n; i++ {
		labels[i] = strconv.Itoa(int(i))
	}
	return labels
}

func cycleStrings(cycles [][]int64) []string {
	results := make([]string, len(cycles))
	for i, cycle := range cycles {
		results[i] = strings.Join(
			funcutil.Map(cycle, func(_x int64) string { return strconv.Itoa(int(_x)) }),
			"")
	}
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	return results
}

func TestFindAllElementaryCyclesTriangle(t *testing.T) {
	g := graphutil.NewGraph(labelsUpTo(3), map[int64]map[int64]bool{
		0: {1: true},
		1: {2: true},
		2: {0: true},
	})
	cycles := graphutil.FindAllElementaryCycles(g)
	expected := []string{"0120"}
	if results := cycleStrings(cycles); !slices.Equal(results, expected) {
		t.Fatalf("expected cycles %v, got %v", expected, results)
	}
}

func TestFindAllElementaryCyclesOverlapping(t *testing.T) {
	// Two cycles sharing node 1: 0 -> 1 -> 2 -> 0 and 1 -> 3 -> 1.
	g := graphutil.NewGraph(labelsUpTo(4), map[int64]map[int64]bool{
		0: {1: true},
		1: {2: true, 3: true},
		2: {0: true},
		3: {1: true},
	})

	stats := graph.Check(g)
	if stats.Size != 5 || stats.Multi != 0 || stats.Loops != 0 || stats.Isolated != 0 {
		t.Fatalf("unexpected graph stats: size %d, multi %d, loops %d, isolated %d",
			stats.Size, stats.Multi, stats.Loops, stats.Isolated)
	}

	cycles := graphutil.FindAllElementaryCycles(g)
	expected := []string{"0120", "131"}
	if results := cycleStrings(cycles); !slices.Equal(results, expected) {
		t.Fatalf("expected cycles %v, got %v", expected, results)
	}
}

func TestFindAllElementaryCyclesSelfLoop(t *testing.T) {
	g := graphutil.NewGraph(labelsUpTo(2), map[int64]map[int64]bool{
		0: {0: true, 1: true},
	})
	cycles := graphutil.FindAllElementaryCycles(g)
	expected := []string{"00"}
	if results := cycleStrings(cycles); !slices.Equal(results, expected) {
		t.Fatalf("expected cycles %v, got %v", expected, results)
	}
}

func TestFindAllElementaryCyclesAcyclic(t *testing.T) {
	g := graphutil.NewGraph(labelsUpTo(3), map[int64]map[int64]bool{
		0: {1: true, 2: true},
		1: {2: true},
	})
	cycles := graphutil.FindAllElementaryCycles(g)
	if len(cycles) != 0 {
		t.Fatalf("expected no cycles in a dag, got %v", cycleStrings(cycles))
	}
}

func TestSubgraphKeepsInternalEdges(t *testing.T) {
	g := graphutil.NewGraph(labelsUpTo(4), map[int64]map[int64]bool{
		0: {1: true},
		1: {2: true, 3: true},
		2: {0: true},
		3: {1: true},
	})
	sub := graphutil.Subgraph(g, []int64{1, 3})
	if sub.Order() != g.Order() {
		t.Errorf("subgraph order changed: %d != %d", sub.Order(), g.Order())
	}
	if !sub.Edges[1][3] || !sub.Edges[3][1] {
		t.Errorf("subgraph lost internal edges: %v", sub.Edges)
	}
	if sub.Edges[1][2] || len(sub.Edges[0]) > 0 {
		t.Errorf("subgraph kept external edges: %v", sub.Edges)
	}
}
