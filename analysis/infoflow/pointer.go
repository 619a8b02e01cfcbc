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
	"go/types"

	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/thinkmoore/go-infoflow/analysis/lang"
)

// An AbstractLoc is one abstract memory location reported by the points-to
// analysis: an allocation site together with the access path inside the
// allocated object (e.g. ".x[*]"). Locs are interned, so equal (site, path)
// pairs always share the same *AbstractLoc and the constraint variable maps
// can key on the pointer.
type AbstractLoc struct {
	// Site is the allocation site of the location.
	Site ssa.Value
	// Path is the points-to analysis' access path within the allocation.
	Path string
}

func (l *AbstractLoc) String() string {
	if fn := l.Site.Parent(); fn != nil {
		return fmt.Sprintf("%s%s in %s", l.Site.Name(), l.Path, fn.Name())
	}
	return l.Site.Name() + l.Path
}

type locKey struct {
	site ssa.Value
	path string
}

// runPointerAnalysis runs the x/tools points-to analysis over the whole
// program, querying every operand that can point so that locsForValue and
// reachableLocsForValue have answers for any value the generator asks
// about, and building the call graph used to resolve indirect calls.
func runPointerAnalysis(prog *ssa.Program) (*pointer.Result, error) {
	mains := ssautil.MainPackages(prog.AllPackages())
	if len(mains) == 0 {
		return nil, fmt.Errorf("no main package in program")
	}
	pCfg := &pointer.Config{
		Mains:           mains,
		Reflection:      false,
		BuildCallGraph:  true,
		Queries:         make(map[ssa.Value]struct{}),
		IndirectQueries: make(map[ssa.Value]struct{}),
	}

	for function := range ssautil.AllFunctions(prog) {
		lang.IterateInstructions(function, func(_ int, instruction ssa.Instruction) {
			addQuery(pCfg, instruction)
		})
	}

	result, err := pointer.Analyze(pCfg)
	if err != nil {
		return nil, fmt.Errorf("pointer analysis failed: %w", err)
	}
	return result, nil
}

// addQuery marks every pointer-like operand of the instruction for querying.
func addQuery(cfg *pointer.Config, instruction ssa.Instruction) {
	if instruction == nil {
		return
	}
	for _, operand := range instruction.Operands([]*ssa.Value{}) {
		if *operand != nil && (*operand).Type() != nil {
			typ := (*operand).Type()
			if pointer.CanPoint(typ) {
				cfg.AddQuery(*operand)
			}
			indirectQuery(typ, operand, cfg)
		}
	}
	if v, ok := instruction.(ssa.Value); ok && v.Type() != nil {
		if pointer.CanPoint(v.Type()) {
			cfg.AddQuery(v)
		}
		indirectQuery(v.Type(), &v, cfg)
	}
}

// indirectQuery wraps the IndirectQuery update because typ.Underlying() may
// panic on an *ssa.opaqueType despite typ being non-nil.
func indirectQuery(typ types.Type, operand *ssa.Value, cfg *pointer.Config) {
	defer func() {
		recover()
	}()

	if typ.Underlying() != nil {
		if ptrType, ok := typ.Underlying().(*types.Pointer); ok {
			if pointer.CanPoint(ptrType.Elem()) {
				cfg.AddIndirectQuery(*operand)
			}
		}
	}
}

// locFor interns the abstract location for a points-to label. Labels whose
// value is nil describe intrinsic allocations the analysis cannot name;
// those are dropped, matching the treatment of unknown memory.
func (ifa *Infoflow) locFor(label *pointer.Label) *AbstractLoc {
	site := label.Value()
	if site == nil {
		return nil
	}
	key := locKey{site: site, path: label.Path()}
	if loc, ok := ifa.locs[key]; ok {
		return loc
	}
	loc := &AbstractLoc{Site: site, Path: label.Path()}
	ifa.locs[key] = loc
	return loc
}

// locsForValue returns the abstract locations v may point to directly. The
// result may be empty when the points-to analysis has no information about
// v. Results are cached per value.
func (ifa *Infoflow) locsForValue(v ssa.Value) []*AbstractLoc {
	if locs, ok := ifa.directLocs[v]; ok {
		return locs
	}
	var locs []*AbstractLoc
	seen := make(map[*AbstractLoc]bool)
	for _, ptr := range lang.FindAllPointers(ifa.ptrRes, v) {
		for _, label := range ptr.PointsTo().Labels() {
			if loc := ifa.locFor(label); loc != nil && !seen[loc] {
				seen[loc] = true
				locs = append(locs, loc)
			}
		}
	}
	ifa.directLocs[v] = locs
	return locs
}

// reachableLocsForValue returns the abstract locations transitively
// reachable from v: its own points-to set plus everything those locations'
// values point to. Results are cached per value.
func (ifa *Infoflow) reachableLocsForValue(v ssa.Value) []*AbstractLoc {
	if locs, ok := ifa.reachLocs[v]; ok {
		return locs
	}
	var locs []*AbstractLoc
	seen := make(map[*AbstractLoc]bool)
	lang.ForEachTransitiveLabel(ifa.ptrRes, v, func(label *pointer.Label) {
		if loc := ifa.locFor(label); loc != nil && !seen[loc] {
			seen[loc] = true
			locs = append(locs, loc)
		}
	})
	ifa.reachLocs[v] = locs
	return locs
}

// calleesAt returns the candidate callees of site: the static callee when
// the call is direct, otherwise the targets the call graph recorded for the
// instruction.
func (ifa *Infoflow) calleesAt(caller *ssa.Function, site ssa.CallInstruction) []*ssa.Function {
	if callee := site.Common().StaticCallee(); callee != nil {
		return []*ssa.Function{callee}
	}
	return lang.CalleesAtSite(ifa.ptrRes.CallGraph, caller, site)
}
