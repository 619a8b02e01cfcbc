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

package infoflow_test

import (
	"fmt"
	"go/token"
	"go/types"
	"path"
	"runtime"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/config"
	"github.com/thinkmoore/go-infoflow/analysis/infoflow"
	"github.com/thinkmoore/go-infoflow/analysis/lang"
	"github.com/thinkmoore/go-infoflow/analysis/signatures"
	"github.com/thinkmoore/go-infoflow/analysis/sourcesink"
	"github.com/thinkmoore/go-infoflow/internal/analysistest"
)

func scenarioDir(t *testing.T, name string) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("could not get current file")
	}
	return path.Join(path.Dir(filename), "../../testdata/src/infoflow", name)
}

// loadScenario loads one scenario program and runs the whole-program
// analysis on it, leaving the taint seeding to the test.
func loadScenario(t *testing.T, name string) (*infoflow.Infoflow, *sourcesink.Analysis) {
	t.Helper()
	dir := scenarioDir(t, name)
	program, cfg := analysistest.LoadTest(t, dir, nil)

	logger := config.NewLogGroup(cfg)
	endpoints := sourcesink.Identify(program, cfg, logger)
	ifa, err := infoflow.New(infoflow.Params{
		Config:          cfg,
		Logger:          logger,
		Program:         program,
		Registrar:       signatures.Default(logger),
		SourcesAndSinks: endpoints,
	})
	if err != nil {
		t.Fatalf("building the analysis: %v", err)
	}
	ifa.Analyze()
	return ifa, endpoints
}

// TestFlowsMatchAnnotations checks the reported source-to-sink flows of the
// basic scenario against the @Source/@Sink annotations in its source, one
// constraint kind per source.
func TestFlowsMatchAnnotations(t *testing.T) {
	dir := scenarioDir(t, "basic")
	ifa, endpoints := loadScenario(t, "basic")
	sources, sinks := endpoints.Sources(), endpoints.Sinks()
	if len(sources) == 0 || len(sinks) == 0 {
		t.Fatalf("want sources and sinks, got %d and %d", len(sources), len(sinks))
	}

	kinds := make([]string, len(sources))
	for i, src := range sources {
		kinds[i] = fmt.Sprintf("source-%d", i)
		ifa.TaintRecordSources(kinds[i], src.SourceRecord())
	}
	sols := ifa.SolveLeastMT(kinds, false)

	reported := map[analysistest.LPos]map[analysistest.LPos]bool{}
	for i, src := range sources {
		for _, sink := range sinks {
			if !sink.Tainted(sols[i]) {
				continue
			}
			sinkPos := analysistest.RemoveColumn(sink.Pos)
			if reported[sinkPos] == nil {
				reported[sinkPos] = map[analysistest.LPos]bool{}
			}
			reported[sinkPos][analysistest.RemoveColumn(src.Pos)] = true
		}
	}

	expected := analysistest.GetExpectedSourceToSink(dir)
	if len(expected) == 0 {
		t.Fatal("no expected flows parsed from the annotations")
	}
	for sinkPos, sourcePoss := range expected {
		for sourcePos := range sourcePoss {
			if !reported[sinkPos][sourcePos] {
				t.Errorf("missing flow from %s to %s", sourcePos, sinkPos)
			}
		}
	}
	for sinkPos, sourcePoss := range reported {
		for sourcePos := range sourcePoss {
			if !expected[sinkPos][sourcePos] {
				t.Errorf("unexpected flow from %s to %s", sourcePos, sinkPos)
			}
		}
	}

	// Bulk solving answers exactly like one solution per kind.
	for i := range kinds {
		one := ifa.LeastSolution([]string{kinds[i]}, false, false)
		for _, sink := range sinks {
			if got, want := sink.Tainted(sols[i]), sink.Tainted(one); got != want {
				t.Errorf("bulk and single solutions disagree on %s under %s", sink, kinds[i])
			}
		}
	}

	st := ifa.ComputeStats()
	if st.Functions == 0 || st.Units < st.Functions || st.Explicit == 0 || st.Vars == 0 {
		t.Errorf("implausible analysis stats:\n%s", st)
	}
}

// TestSolutionDiagnostics checks the structural summaries: the call graph
// decomposes into recursive groups (the standard library printers call
// themselves), and the components of a solved propagation graph partition
// its variables.
func TestSolutionDiagnostics(t *testing.T) {
	ifa, endpoints := loadScenario(t, "basic")
	sources := endpoints.Sources()
	if len(sources) == 0 {
		t.Fatal("want at least one source")
	}
	ifa.TaintRecordSources("seed", sources[0].SourceRecord())
	sol := ifa.LeastSolution([]string{"seed"}, false, false)

	st := ifa.ComputeStats()
	if st.RecursiveGroups == 0 {
		t.Errorf("want recursive call graph groups, got none:\n%s", st)
	}

	diag := sol.PropagationDiagnostics()
	if diag.Vars == 0 {
		t.Fatalf("a solved system has propagation edges, got %s", diag)
	}
	if diag.Components == 0 || diag.Components > diag.Vars {
		t.Errorf("components should partition the variables, got %s", diag)
	}
	if diag.Largest < 1 || diag.Largest > diag.Vars {
		t.Errorf("implausible largest component, got %s", diag)
	}
	if diag.Unexplored > diag.Components {
		t.Errorf("more unexplored components than components, got %s", diag)
	}
}

// TestImplicitBranchFlow checks that a value assigned under a tainted
// condition is reported only when the implicit kinds are included: the
// flow reaches the phi merging the two assignments through the program
// counters of the branch's successors.
func TestImplicitBranchFlow(t *testing.T) {
	ifa, endpoints := loadScenario(t, "implicit")
	sources := endpoints.Sources()
	if len(sources) != 1 || sources[0].Desc != "os.Getenv" {
		t.Fatalf("want the single environment read, got %v", sources)
	}
	secret := sources[0].Values[0]
	mainFn := secret.Parent()

	var phi *ssa.Phi
	var cond ssa.Value
	lang.IterateInstructions(mainFn, func(_ int, instr ssa.Instruction) {
		switch i := instr.(type) {
		case *ssa.Phi:
			phi = i
		case *ssa.BinOp:
			if i.Op == token.EQL {
				cond = i
			}
		}
	})
	if phi == nil || cond == nil {
		t.Fatal("scenario should have one phi and one comparison")
	}

	ifa.TaintRecordSources("token", sources[0].SourceRecord())

	explicit := ifa.LeastSolution([]string{"token"}, false, false)
	if !explicit.IsTainted(secret) {
		t.Errorf("the environment read should be tainted")
	}
	if !explicit.IsTainted(cond) {
		t.Errorf("the comparison reads the secret and should be tainted")
	}
	if explicit.IsTainted(phi) {
		t.Errorf("the conditionally assigned value carries no explicit flow")
	}

	implicit := ifa.LeastSolution([]string{"token"}, true, false)
	if !implicit.IsTainted(phi) {
		t.Errorf("the conditionally assigned value should be tainted under the implicit kinds")
	}
}

// TestCallSiteContexts checks one level of call-site sensitivity: two calls
// of the same function stay separate, while calls one level deeper share
// their context again.
func TestCallSiteContexts(t *testing.T) {
	ifa, endpoints := loadScenario(t, "context")
	sources := endpoints.Sources()
	if len(sources) != 1 {
		t.Fatalf("want the single environment read, got %d sources", len(sources))
	}
	key := sources[0].Values[0]
	mainFn := key.Parent()

	var a, b, c, d ssa.Value
	lang.IterateInstructions(mainFn, func(_ int, instr ssa.Instruction) {
		call, ok := instr.(*ssa.Call)
		if !ok {
			return
		}
		callee := call.Common().StaticCallee()
		if callee == nil {
			return
		}
		arg := call.Common().Args
		switch callee.Name() {
		case "pass":
			if len(arg) > 0 && arg[0] == key {
				a = call
			} else {
				b = call
			}
		case "relay":
			if len(arg) > 0 && arg[0] == key {
				c = call
			} else {
				d = call
			}
		}
	})
	if a == nil || b == nil || c == nil || d == nil {
		t.Fatal("marker calls not found")
	}

	ifa.TaintRecordSources("key", sources[0].SourceRecord())
	sol := ifa.LeastSolution([]string{"key"}, false, false)

	if !sol.IsTainted(a) {
		t.Errorf("pass(key) should be tainted")
	}
	if sol.IsTainted(b) {
		t.Errorf("pass of a constant runs in its own context and should stay clean")
	}
	if !sol.IsTainted(c) {
		t.Errorf("relay(key) should be tainted")
	}
	// The contexts keep a single frame, so the pass call inside relay is
	// shared by both relay instances and merges their flows.
	if !sol.IsTainted(d) {
		t.Errorf("relay of a constant merges with relay(key) one call deeper")
	}
}

// TestConfiguredSourceThroughGlobals seeds the source the configuration
// declares and follows it through a global variable to a sink.
func TestConfiguredSourceThroughGlobals(t *testing.T) {
	ifa, endpoints := loadScenario(t, "globals")
	sources, sinks := endpoints.Sources(), endpoints.Sinks()
	if len(sources) != 2 || len(sinks) != 1 {
		t.Fatalf("want 2 sources and 1 sink, got %d and %d", len(sources), len(sinks))
	}

	var tokenPoint, getenvPoint *sourcesink.Point
	for _, p := range sources {
		switch p.Desc {
		case "command-line-arguments.token":
			tokenPoint = p
		case "os.Getenv":
			getenvPoint = p
		}
	}
	if tokenPoint == nil || getenvPoint == nil {
		t.Fatalf("unexpected sources %v", sources)
	}

	mainFn := tokenPoint.Values[0].Parent()
	var fromCurrent, fromBanner ssa.Value
	lang.IterateInstructions(mainFn, func(_ int, instr ssa.Instruction) {
		load, ok := instr.(*ssa.UnOp)
		if !ok || load.Op != token.MUL {
			return
		}
		g, ok := load.X.(*ssa.Global)
		if !ok {
			return
		}
		switch g.Name() {
		case "current":
			fromCurrent = load
		case "banner":
			fromBanner = load
		}
	})
	if fromCurrent == nil || fromBanner == nil {
		t.Fatal("global loads not found")
	}

	ifa.TaintRecordSources("stored", tokenPoint.SourceRecord())
	sol := ifa.LeastSolution([]string{"stored"}, false, false)

	if !sol.IsTainted(fromCurrent) {
		t.Errorf("the load of the stored secret should be tainted")
	}
	if !sinks[0].Tainted(sol) {
		t.Errorf("the removal of the stored secret should be reported")
	}
	if sol.IsTainted(fromBanner) {
		t.Errorf("the other global shares no location with the secret")
	}
	if sol.IsTainted(getenvPoint.Values[0]) {
		t.Errorf("the read inside token is upstream of the configured source")
	}
}

// TestVariadicCallee checks the varargs variable of a defined variadic
// function: the packed arguments taint it, and seeding it reaches every
// call of the function.
func TestVariadicCallee(t *testing.T) {
	ifa, endpoints := loadScenario(t, "varg")
	sources, sinks := endpoints.Sources(), endpoints.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		t.Fatalf("want 1 source and 1 sink, got %d and %d", len(sources), len(sinks))
	}
	target := sinks[0].Values[0]
	mainFn := target.Parent()

	var joinFn *ssa.Function
	var clean ssa.Value
	lang.IterateInstructions(mainFn, func(_ int, instr ssa.Instruction) {
		call, ok := instr.(*ssa.Call)
		if !ok {
			return
		}
		callee := call.Common().StaticCallee()
		if callee == nil || callee.Name() != "join" {
			return
		}
		joinFn = callee
		if call != target {
			clean = call
		}
	})
	if joinFn == nil || clean == nil {
		t.Fatal("marker calls not found")
	}

	ifa.TaintRecordSources("env", sources[0].SourceRecord())
	sol := ifa.LeastSolution([]string{"env"}, false, false)

	if !sol.IsTainted(target) {
		t.Errorf("the joined path carries the environment read")
	}
	if !sol.IsVargTainted(joinFn) {
		t.Errorf("the packed arguments should taint join's varargs variable")
	}
	if sol.IsVargTainted(mainFn) {
		t.Errorf("a function without varargs has no tainted varargs variable")
	}

	// Seeding the varargs variable itself reaches the parameter and from
	// there every call of the function.
	ifa.SetVargTainted("forced", joinFn)
	forced := ifa.LeastSolution([]string{"forced"}, false, false)
	if !forced.IsTainted(joinFn.Params[0]) {
		t.Errorf("the variadic parameter reads the varargs variable")
	}
	if !forced.IsTainted(target) || !forced.IsTainted(clean) {
		t.Errorf("a varargs seed should reach the results of both calls")
	}
}

func elemIsString(t types.Type) bool {
	s, ok := t.Underlying().(*types.Slice)
	return ok && types.Identical(s.Elem(), types.Typ[types.String])
}

// TestBuiltinFlows checks the modelled builtins: copy and append move
// storage without tainting the slice headers, and len carries the value it
// measures into an allocation size.
func TestBuiltinFlows(t *testing.T) {
	ifa, endpoints := loadScenario(t, "builtins")
	sources, sinks := endpoints.Sources(), endpoints.Sinks()
	if len(sources) != 1 || len(sinks) != 2 {
		t.Fatalf("want 1 source and 2 sinks, got %d and %d", len(sources), len(sinks))
	}
	secret := sources[0].Values[0]
	mainFn := secret.Parent()

	var allocSize, copyDest *sourcesink.Point
	for _, p := range sinks {
		switch p.Desc {
		case "allocation size":
			allocSize = p
		case "copy destination":
			copyDest = p
		}
	}
	if allocSize == nil || copyDest == nil {
		t.Fatalf("unexpected sinks %v", sinks)
	}

	var words, vars, merged ssa.Value
	lang.IterateInstructions(mainFn, func(_ int, instr ssa.Instruction) {
		switch i := instr.(type) {
		case *ssa.Slice:
			if elemIsString(i.Type()) {
				words = i
			}
		case *ssa.MakeSlice:
			if elemIsString(i.Type()) {
				vars = i
			}
		case *ssa.Call:
			if blt, ok := i.Common().Value.(*ssa.Builtin); ok && blt.Name() == "append" {
				merged = i
			}
		}
	})
	if words == nil || vars == nil || merged == nil {
		t.Fatal("marker values not found")
	}

	ifa.TaintRecordSources("secret", sources[0].SourceRecord())
	sol := ifa.LeastSolution([]string{"secret"}, false, false)

	if !sol.IsTainted(secret) {
		t.Errorf("the environment read should be tainted")
	}
	if !sol.IsDirectPtrTainted(words) || sol.IsTainted(words) {
		t.Errorf("the literal's storage holds the secret, its header does not")
	}
	if !sol.IsDirectPtrTainted(vars) || sol.IsTainted(vars) {
		t.Errorf("copy should move the storage taint without touching the header")
	}
	if !sol.IsDirectPtrTainted(merged) || sol.IsTainted(merged) {
		t.Errorf("append should move the storage taint without touching the header")
	}
	if !allocSize.Tainted(sol) {
		t.Errorf("len of the secret sizes the allocation and should be reported")
	}
	if copyDest.Tainted(sol) {
		t.Errorf("the copy destination header stays clean")
	}
}

// TestIndirectCallCandidates checks a call through a function variable whose
// candidates mix a defined function and an external one: the defined
// candidate is analyzed at the site, the external side goes through the
// signature library, and a direct call to the external function uses its
// summary's memory channel.
func TestIndirectCallCandidates(t *testing.T) {
	ifa, endpoints := loadScenario(t, "indirect")
	var getenv *sourcesink.Point
	for _, p := range endpoints.Sources() {
		if p.Desc == "os.Getenv" {
			getenv = p
		}
	}
	if getenv == nil {
		t.Fatalf("want the environment read among %v", endpoints.Sources())
	}
	mainFn := getenv.Values[0].Parent()

	var indirect, direct, ignored ssa.Value
	lang.IterateInstructions(mainFn, func(_ int, instr ssa.Instruction) {
		call, ok := instr.(*ssa.Call)
		if !ok {
			return
		}
		callee := call.Common().StaticCallee()
		switch {
		case callee == nil:
			indirect = call
		case callee.String() == "sync/atomic.LoadInt32":
			direct = call
		case callee.Name() == "zero":
			ignored = call
		}
	})
	if indirect == nil || direct == nil || ignored == nil {
		t.Fatal("marker calls not found")
	}

	ifa.TaintRecordSources("seed", getenv.SourceRecord())
	sol := ifa.LeastSolution([]string{"seed"}, false, false)

	if !sol.IsTainted(indirect) {
		t.Errorf("the defined candidate loads the secret's cell through the indirect call")
	}
	if !sol.IsTainted(direct) {
		t.Errorf("the atomic load's summary moves the pointee into the result")
	}
	if sol.IsTainted(ignored) {
		t.Errorf("a callee that never reads its argument produces a clean result")
	}
}

// TestDropAtSinks checks the sink cut: with drop-at-sinks on, flows whose
// source already reached a sink land in the sinks kinds and appear only
// when those kinds are requested.
func TestDropAtSinks(t *testing.T) {
	ifa, endpoints := loadScenario(t, "dropatsinks")
	sources, sinks := endpoints.Sources(), endpoints.Sinks()
	if len(sources) != 1 || len(sinks) != 2 {
		t.Fatalf("want 1 source and 2 sinks, got %d and %d", len(sources), len(sinks))
	}
	key := sources[0].Values[0]
	mainFn := key.Parent()

	var remKey, remBackup *sourcesink.Point
	for _, p := range sinks {
		if len(p.Values) > 0 && p.Values[0] == key {
			remKey = p
		} else {
			remBackup = p
		}
	}
	if remKey == nil || remBackup == nil {
		t.Fatalf("unexpected sinks %v", sinks)
	}

	var backup ssa.Value
	lang.IterateInstructions(mainFn, func(_ int, instr ssa.Instruction) {
		if i, ok := instr.(*ssa.BinOp); ok && i.Op == token.ADD {
			backup = i
		}
	})
	if backup == nil {
		t.Fatal("marker value not found")
	}

	ifa.TaintRecordSources("key", sources[0].SourceRecord())

	noSinks := ifa.LeastSolution([]string{"key"}, false, false)
	if !noSinks.IsTainted(key) {
		t.Errorf("the seed itself should be tainted")
	}
	if !remKey.Tainted(noSinks) {
		t.Errorf("the first removal consumes the seed directly")
	}
	if noSinks.IsTainted(backup) {
		t.Errorf("propagation past a sink should be cut when the sinks kinds are excluded")
	}
	if remBackup.Tainted(noSinks) {
		t.Errorf("the second removal is only reachable through the first sink")
	}

	withSinks := ifa.LeastSolution([]string{"key"}, false, true)
	if !withSinks.IsTainted(backup) {
		t.Errorf("the sinks kinds should carry the flow past the first sink")
	}
	if !remBackup.Tainted(withSinks) {
		t.Errorf("the second removal should be reported when the sinks kinds are included")
	}
}
