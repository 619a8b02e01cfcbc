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

package constraints

import (
	"fmt"
	"sync"

	"github.com/thinkmoore/go-infoflow/internal/funcutil"
)

// SolveMT computes both the least and the greatest solution of kind in two
// goroutines working over the same frozen constraint list, caches them, and
// releases the kind's raw constraints.
func (k *Kit) SolveMT(kind string) {
	if k.lockedKinds[kind] {
		panic(fmt.Sprintf("constraints: kind %q already solved", kind))
	}
	cs := k.lockAndTake(kind)

	var least, greatest *PartialSolution
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		least = newPartialSolution(cs, false)
	}()
	go func() {
		defer wg.Done()
		greatest = newPartialSolution(cs, true)
	}()
	wg.Wait()

	k.leastSolutions[kind] = least
	k.greatestSolutions[kind] = greatest
	k.freeUnneededConstraints(kind)
}

// SolveLeastMT is the bulk solver: it computes one least solution per
// requested kind, each merged with the already-solved "default" baseline
// (and the "default-sinks" baseline when useDefaultSinks is set). The merge
// jobs run on at most k.Workers goroutines; each job mutates only its own
// solution and reads the shared baselines. The merged solutions are
// returned in the order the kinds were given.
func (k *Kit) SolveLeastMT(kinds []string, useDefaultSinks bool) []*PartialSolution {
	baseline, ok := k.leastSolutions[KindDefault]
	if !ok {
		panic(`constraints: SolveLeastMT requires a solved "default" least solution`)
	}
	var sinks *PartialSolution
	if useDefaultSinks {
		sinks, ok = k.leastSolutions[KindDefaultSinks]
		if !ok {
			panic(`constraints: SolveLeastMT requires a solved "default-sinks" least solution`)
		}
	}

	merged := make([]*PartialSolution, 0, len(kinds))
	for _, kind := range kinds {
		if k.lockedKinds[kind] {
			panic(fmt.Sprintf("constraints: kind %q already solved", kind))
		}
		p := newPartialSolution(k.lockAndTake(kind), false)
		k.leastSolutions[kind] = p
		merged = append(merged, p.Copy())
	}

	return funcutil.MapParallel(merged, func(p *PartialSolution) *PartialSolution {
		p.MergeIn(baseline)
		if useDefaultSinks {
			p.MergeIn(sinks)
		}
		return p
	}, k.Workers)
}
