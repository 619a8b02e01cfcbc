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
	"sort"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/thinkmoore/go-infoflow/analysis/lang"
)

// Unit is the summary the driver propagates between analysis units. All
// interprocedural information travels through the shared constraint store,
// so the summary itself carries nothing; a unit is (re)analyzed when its
// input summary changes, which for Unit means exactly once.
type Unit struct{}

// An AnalysisUnit is one work item of the interprocedural driver: a
// function analyzed under a calling context.
type AnalysisUnit struct {
	Context  ContextID
	Function *ssa.Function
}

func (u AnalysisUnit) String() string {
	return fmt.Sprintf("%s@%d", u.Function.String(), u.Context)
}

// analysisRecord keeps the latest input and output summaries of a unit.
type analysisRecord struct {
	input    Unit
	output   Unit
	analyzed bool
}

func (ifa *Infoflow) record(u AnalysisUnit) *analysisRecord {
	rec, ok := ifa.records[u]
	if !ok {
		rec = &analysisRecord{}
		ifa.records[u] = rec
	}
	return rec
}

// enqueue schedules u unless it is already pending.
func (ifa *Infoflow) enqueue(u AnalysisUnit) {
	if ifa.queued[u] {
		return
	}
	ifa.queued[u] = true
	ifa.queue = append(ifa.queue, u)
}

// requestAnalysis is the non-blocking analysis request a caller makes for
// one of its callees: the input summary is joined into the callee's record,
// the requester is registered as a dependent so that callee output changes
// re-trigger it, the callee is scheduled if it was never analyzed, and the
// current (possibly bottom) output is returned immediately.
func (ifa *Infoflow) requestAnalysis(unit AnalysisUnit, input Unit, requester AnalysisUnit) Unit {
	rec := ifa.record(unit)
	rec.input = input

	deps, ok := ifa.dependents[unit]
	if !ok {
		deps = make(map[AnalysisUnit]bool)
		ifa.dependents[unit] = deps
	}
	deps[requester] = true

	if !rec.analyzed {
		ifa.enqueue(unit)
	}
	return rec.output
}

// analyzeUnit runs the constraint generation of one unit and re-enqueues
// the dependents whenever the unit's output summary changed.
func (ifa *Infoflow) analyzeUnit(unit AnalysisUnit) {
	rec := ifa.record(unit)
	output := ifa.runOnContext(unit, rec.input)
	rec.analyzed = true
	ifa.analyzedFns[unit.Function] = true
	if output != rec.output {
		rec.output = output
		for dep := range ifa.dependents[unit] {
			ifa.enqueue(dep)
		}
	}
}

// runOnContext generates the constraints of one unit.
func (ifa *Infoflow) runOnContext(unit AnalysisUnit, _ Unit) Unit {
	ifa.logger.Debugf("Running on %s in context %s", unit.Function.String(), ifa.contexts.describe(unit.Context))
	ifa.generateFunctionConstraints(unit)
	return Unit{}
}

func (ifa *Infoflow) drain() {
	for len(ifa.queue) > 0 {
		unit := ifa.queue[0]
		ifa.queue = ifa.queue[1:]
		delete(ifa.queued, unit)
		ifa.analyzeUnit(unit)
	}
}

// Analyze populates the constraint system: it seeds the main and init
// functions of the program's main packages in the default context (falling
// back to every exported function when there is no main package), drains
// the work queue, then sweeps up the functions with a body that no call
// chain reached, so that every function is constrained in at least one
// context.
func (ifa *Infoflow) Analyze() {
	ifa.logger.Infof("Generating constraints...")

	mains := ssautil.MainPackages(ifa.prog.AllPackages())
	sort.Slice(mains, func(i, j int) bool { return mains[i].Pkg.Path() < mains[j].Pkg.Path() })
	seeded := false
	for _, pkg := range mains {
		if fn := pkg.Func("main"); fn != nil && !lang.IsExternal(fn) {
			ifa.enqueue(AnalysisUnit{Context: DefaultContext, Function: fn})
			seeded = true
		}
		if fn := pkg.Func("init"); fn != nil && !lang.IsExternal(fn) {
			ifa.enqueue(AnalysisUnit{Context: DefaultContext, Function: fn})
			seeded = true
		}
	}
	if !seeded {
		for _, fn := range ifa.allFunctionsSorted() {
			if fn.Object() != nil && fn.Object().Exported() {
				ifa.enqueue(AnalysisUnit{Context: DefaultContext, Function: fn})
			}
		}
	}
	ifa.drain()

	// Functions that are never called from the entry points still get
	// constraints, in the default context.
	for _, fn := range ifa.allFunctionsSorted() {
		if !ifa.analyzedFns[fn] {
			ifa.enqueue(AnalysisUnit{Context: DefaultContext, Function: fn})
		}
	}
	ifa.drain()

	ifa.logger.Infof("Finished generating constraints: %d units in %d contexts, %d explicit and %d implicit flows",
		len(ifa.records), ifa.contexts.numContexts(), ifa.kit.ExplicitConstraints(), ifa.kit.ImplicitConstraints())
}

// allFunctionsSorted returns the program's defined functions in a stable
// order, so unit and context numbering stays reproducible across runs.
func (ifa *Infoflow) allFunctionsSorted() []*ssa.Function {
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(ifa.prog) {
		if !lang.IsExternal(fn) {
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}

// functionIsCallable filters the callee candidates of an indirect call down
// to the arity-compatible ones; the points-to analysis can propose targets
// whose signature cannot match the call.
func functionIsCallable(callee *ssa.Function, site ssa.CallInstruction) bool {
	common := site.Common()
	want := len(common.Args)
	if common.IsInvoke() {
		// the receiver is a parameter of the resolved method
		want++
	}
	return len(callee.Params) == want
}
