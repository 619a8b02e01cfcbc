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

// Post-dominator tree construction.
//
// Post-dominance is dominance on the reversed control-flow graph, rooted at a
// virtual exit node with an incoming edge from every block without successors
// (returns and panics). The tree is built with the iterative algorithm of
// Cooper, Harvey & Kennedy, "A Simple, Fast Dominance Algorithm", intersecting
// immediate dominators by postorder number over reverse postorder sweeps.

import (
	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/internal/funcutil"
)

// PostDominators is the post-dominator tree of a single function. It is immutable
// once built; [PostDominators.Dominates] answers queries in constant time.
//
// Blocks that cannot reach the function's exit (bodies of infinite loops) have no
// post-dominators in the classical sense. For those, Dominates follows the usual
// convention: everything post-dominates a block that never reaches the exit, and
// such a block post-dominates nothing but itself.
type PostDominators struct {
	fn *ssa.Function

	// All slices are indexed by block index; the virtual exit occupies index
	// len(fn.Blocks).
	idom      []int
	children  [][]int
	pre, post []int32
	reached   []bool
}

// virtual exit index within the tree's slices
func (p *PostDominators) exit() int { return len(p.fn.Blocks) }

// NewPostDominators builds the post-dominator tree of fn. For an external function
// (no blocks) the tree is empty and Dominates only relates each block to itself.
func NewPostDominators(fn *ssa.Function) *PostDominators {
	n := len(fn.Blocks)
	p := &PostDominators{
		fn:       fn,
		idom:     make([]int, n+1),
		children: make([][]int, n+1),
		pre:      make([]int32, n+1),
		post:     make([]int32, n+1),
		reached:  make([]bool, n+1),
	}
	for i := range p.idom {
		p.idom[i] = -1
	}
	if n == 0 {
		return p
	}
	exit := n

	// Successors in the reversed graph: the predecessors of a block, and every
	// exit block for the virtual exit node.
	revSuccs := func(i int) []int {
		var out []int
		if i == exit {
			for _, b := range fn.Blocks {
				if len(b.Succs) == 0 {
					out = append(out, b.Index)
				}
			}
			return out
		}
		for _, pred := range fn.Blocks[i].Preds {
			out = append(out, pred.Index)
		}
		return out
	}
	// Predecessors in the reversed graph: the successors of a block, or the
	// virtual exit for a block without successors.
	revPreds := func(i int) []int {
		b := fn.Blocks[i]
		if len(b.Succs) == 0 {
			return []int{exit}
		}
		out := make([]int, 0, len(b.Succs))
		for _, succ := range b.Succs {
			out = append(out, succ.Index)
		}
		return out
	}

	// Postorder over the reversed graph, starting from the virtual exit. Blocks
	// not reached here cannot reach the exit.
	order := make([]int, 0, n+1)
	postNum := make([]int32, n+1)
	var dfs func(i int)
	dfs = func(i int) {
		if p.reached[i] {
			return
		}
		p.reached[i] = true
		for _, s := range revSuccs(i) {
			dfs(s)
		}
		postNum[i] = int32(len(order))
		order = append(order, i)
	}
	dfs(exit)

	// Reverse postorder, exit first.
	funcutil.Reverse(order)

	p.idom[exit] = exit
	changed := true
	for changed {
		changed = false
		for _, b := range order[1:] {
			newIdom := -1
			for _, pr := range revPreds(b) {
				if p.idom[pr] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = pr
					continue
				}
				// Intersect by walking both fingers up to the common ancestor.
				finger1, finger2 := pr, newIdom
				for finger1 != finger2 {
					for postNum[finger1] < postNum[finger2] {
						finger1 = p.idom[finger1]
					}
					for postNum[finger2] < postNum[finger1] {
						finger2 = p.idom[finger2]
					}
				}
				newIdom = finger1
			}
			if p.idom[b] != newIdom {
				p.idom[b] = newIdom
				changed = true
			}
		}
	}

	for _, b := range order[1:] {
		p.children[p.idom[b]] = append(p.children[p.idom[b]], b)
	}
	p.numberTree(exit, 0, 0)
	return p
}

// numberTree assigns pre- and post-order numbers to a depth-first traversal of the
// tree rooted at v, so that Dominates runs in constant time.
func (p *PostDominators) numberTree(v int, pre, post int32) (int32, int32) {
	p.pre[v] = pre
	pre++
	for _, child := range p.children[v] {
		pre, post = p.numberTree(child, pre, post)
	}
	p.post[v] = post
	post++
	return pre, post
}

// Dominates reports whether a post-dominates b, that is, whether every path from b
// to the function's exit passes through a. Both blocks must belong to the tree's
// function.
func (p *PostDominators) Dominates(a, b *ssa.BasicBlock) bool {
	if a == b {
		return true
	}
	if !p.reached[b.Index] {
		return true
	}
	if !p.reached[a.Index] {
		return false
	}
	return p.pre[a.Index] <= p.pre[b.Index] && p.post[b.Index] <= p.post[a.Index]
}

// Idom returns the immediate post-dominator of b: its parent in the post-dominator
// tree. Returns nil when that parent is the virtual exit, or when b cannot reach
// the exit at all.
func (p *PostDominators) Idom(b *ssa.BasicBlock) *ssa.BasicBlock {
	if !p.reached[b.Index] {
		return nil
	}
	parent := p.idom[b.Index]
	if parent == p.exit() {
		return nil
	}
	return p.fn.Blocks[parent]
}

// PostDomCache memoizes post-dominator trees by function. The zero value is not
// usable; create one with NewPostDomCache. Not safe for concurrent use.
type PostDomCache struct {
	trees map[*ssa.Function]*PostDominators
}

// NewPostDomCache returns an empty cache.
func NewPostDomCache() *PostDomCache {
	return &PostDomCache{trees: make(map[*ssa.Function]*PostDominators)}
}

// Get returns the post-dominator tree of fn, building it on first request.
func (c *PostDomCache) Get(fn *ssa.Function) *PostDominators {
	if t, ok := c.trees[fn]; ok {
		return t
	}
	t := NewPostDominators(fn)
	c.trees[fn] = t
	return t
}
