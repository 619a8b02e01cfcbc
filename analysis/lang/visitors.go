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

import "golang.org/x/tools/go/ssa"

// VisitBlocksBFS visits the blocks reachable from the entry blocks in
// breadth-first order, each block once. The visit function returns whether
// the traversal descends into the block's successors.
func VisitBlocksBFS(entry []*ssa.BasicBlock, visit func(*ssa.BasicBlock) bool) {
	visited := make(map[*ssa.BasicBlock]bool, len(entry))
	queue := make([]*ssa.BasicBlock, 0, len(entry))
	queue = append(queue, entry...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if !visit(cur) {
			continue
		}
		for _, succ := range cur.Succs {
			if !visited[succ] {
				queue = append(queue, succ)
			}
		}
	}
}
