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

	"golang.org/x/tools/go/callgraph"
	"gonum.org/v1/gonum/graph"
)

// Graph is a directed graph over dense int64 ids with a string label per
// node. It implements the methods to satisfy yourbasic's graph.Iterator and
// gonum's graph.Graph, so the same structure feeds the strongly-connected
// component search, the cycle enumeration and any gonum algorithm.
type Graph struct {
	// The order of the graph, one past the largest node id
	order int

	// Labels maps node ids to their display labels
	Labels map[int64]string

	// Keys are all the node ids, sorted
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed
	// edge from x to y
	Edges map[int64]map[int64]bool
}

// NewGraph builds a graph from a label map and an adjacency matrix. Every
// edge endpoint must have a label entry.
func NewGraph(labels map[int64]string, edges map[int64]map[int64]bool) Graph {
	order := 0
	keys := make([]int64, 0, len(labels))
	for id := range labels {
		keys = append(keys, id)
		if int(id)+1 > order {
			order = int(id) + 1
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	if edges == nil {
		edges = map[int64]map[int64]bool{}
	}
	return Graph{
		order:  order,
		Labels: labels,
		Keys:   keys,
		Edges:  edges,
	}
}

// NewCallgraphIterator returns a graph over a callgraph where node ids
// correspond to the Node.ID of each callgraph node and labels to the node's
// function.
func NewCallgraphIterator(cg *callgraph.Graph) Graph {
	labels := make(map[int64]string, len(cg.Nodes))
	edges := make(map[int64]map[int64]bool, len(cg.Nodes))
	for _, node := range cg.Nodes {
		labels[int64(node.ID)] = node.String()
		edges[int64(node.ID)] = map[int64]bool{}
		for _, e := range node.Out {
			if e.Callee != nil {
				edges[int64(node.ID)][int64(e.Callee.ID)] = true
			}
		}
	}
	return NewGraph(labels, edges)
}

// Subgraph returns a new graph that is the original graph with only the
// nodes in include. Only the edges that have both the origin and
// destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and Labels are the same as in original, meaning that
// node indices will stay consistent across subgraphs.
func Subgraph(original Graph, include []int64) Graph {
	included := make(map[int64]bool, len(include))
	keys := make([]int64, len(include))
	for j, i := range include {
		keys[j] = i
		included[i] = true
	}

	edges := make(map[int64]map[int64]bool, len(include))
	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if included[e] {
				edges[i][e] = true
			}
		}
	}

	return Graph{
		order:  original.Order(),
		Labels: original.Labels,
		Keys:   keys,
		Edges:  edges,
	}
}

// Order implements the order of the graph.Iterator interface for the Graph
func (c Graph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the Graph
func (c Graph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.Edges[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c Graph) Node(v int) graph.Node {
	if label, ok := c.Labels[int64(v)]; ok {
		return GNode{id: int64(v), label: label}
	}
	return nil
}

// Nodes returns the set of nodes in the graph
func (c Graph) Nodes() graph.Nodes {
	keys := make([]int64, len(c.Keys))
	copy(keys, c.Keys)
	return &NodeSet{
		labels: c.Labels,
		ids:    keys,
		cur:    0,
	}
}

// From returns the set of nodes reachable from the id
func (c Graph) From(id int64) graph.Nodes {
	var keys []int64
	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	return &NodeSet{
		labels: c.Labels,
		ids:    keys,
		cur:    0,
	}
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c Graph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c Graph) Edge(uid, vid int64) graph.Edge {
	ue := c.Edges[uid]
	if ue != nil {
		if ue[vid] {
			return GEdge{
				from: GNode{id: uid, label: c.Labels[uid]},
				to:   GNode{id: vid, label: c.Labels[vid]},
			}
		}
	}
	return nil
}

// *************** Nodes implementation **********************

// GNode is a labeled node implementing the graph.Node interface
type GNode struct {
	id    int64
	label string
}

// ID returns the id of the node
func (n GNode) ID() int64 {
	return n.id
}

func (n GNode) String() string {
	return n.label
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// labels maps the node ids in the iterator to their labels
	labels map[int64]string

	// ids is the set of node ids in the iterator
	ids []int64

	// cur is the current index of the iterator. The current node is ids[cur]
	// invariant: 0 <= cur < len(ids)
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the length of the node set
func (ns *NodeSet) Len() int {
	return len(ns.ids)
}

// Reset resets the id of the current node in the set
func (ns *NodeSet) Reset() {
	ns.cur = 0
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	id := ns.ids[ns.cur]
	return GNode{id: id, label: ns.labels[id]}
}

// *************** Edge implementation **********************

// GEdge implements the graph.Edge interface
type GEdge struct {
	from GNode
	to   GNode
}

// From returns the origin of the edge
func (e GEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e GEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e GEdge) ReversedEdge() graph.Edge {
	return GEdge{from: e.to, to: e.from}
}
