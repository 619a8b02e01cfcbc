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

package signatures

import (
	"path"
	"runtime"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/infoflow"
	"github.com/thinkmoore/go-infoflow/analysis/lang"
	"github.com/thinkmoore/go-infoflow/internal/analysistest"
)

func TestStdlibTableSorted(t *testing.T) {
	if !sort.SliceIsSorted(stdlibSummaries, func(i, j int) bool {
		return stdlibSummaries[i].Name < stdlibSummaries[j].Name
	}) {
		for i := 1; i < len(stdlibSummaries); i++ {
			if stdlibSummaries[i-1].Name > stdlibSummaries[i].Name {
				t.Errorf("table out of order at %d: %q > %q", i, stdlibSummaries[i-1].Name, stdlibSummaries[i].Name)
			}
		}
	}
	for i := 1; i < len(stdlibSummaries); i++ {
		if stdlibSummaries[i-1].Name == stdlibSummaries[i].Name {
			t.Errorf("duplicate table entry %q", stdlibSummaries[i].Name)
		}
	}
}

func TestLookupSummary(t *testing.T) {
	for _, name := range []string{
		"(*bufio.Reader).Read", // first entry
		"os.Getenv",
		"os/exec.Command",
		"time.Since", // last entry
	} {
		summary, ok := LookupSummary(name)
		if !ok {
			t.Errorf("expected a summary for %s", name)
			continue
		}
		if summary.Name != name {
			t.Errorf("looked up %s, got the summary of %s", name, summary.Name)
		}
	}

	getenv, ok := LookupSummary("os.Getenv")
	if !ok || len(getenv.Sources) != 1 || len(getenv.Sinks) != 1 {
		t.Errorf("unexpected shape for the os.Getenv summary: %v", getenv)
	}

	for _, name := range []string{"", "zzz.NotAFunction", "os.GetenvTypo", "(*bufio.Reader).Rea"} {
		if _, ok := LookupSummary(name); ok {
			t.Errorf("expected no summary for %q", name)
		}
	}
}

// loadCallModels loads testdata/src/signatures/call-models and returns the
// functions of its main package.
func loadCallModels(t *testing.T) []*ssa.Function {
	_, filename, _, _ := runtime.Caller(0)
	dir := path.Join(path.Dir(filename), "../../testdata/src/signatures/call-models")
	program, _ := analysistest.LoadTest(t, dir, []string{})

	var funcs []*ssa.Function
	for _, pkg := range program.AllPackages() {
		if pkg.Pkg.Name() != "main" {
			continue
		}
		for _, member := range pkg.Members {
			if fn, ok := member.(*ssa.Function); ok {
				funcs = append(funcs, fn)
			}
		}
	}
	if len(funcs) == 0 {
		t.Fatal("no main package functions loaded")
	}
	return funcs
}

// findCall returns a call site of the main package whose callee name
// satisfies match.
func findCall(funcs []*ssa.Function, match func(string) bool) ssa.CallInstruction {
	var found ssa.CallInstruction
	for _, fn := range funcs {
		lang.IterateInstructions(fn, func(_ int, instr ssa.Instruction) {
			if call, ok := instr.(ssa.CallInstruction); ok && match(CalleeName(call)) {
				found = call
			}
		})
	}
	return found
}

func findCallTo(t *testing.T, funcs []*ssa.Function, name string) ssa.CallInstruction {
	call := findCall(funcs, func(s string) bool { return s == name })
	if call == nil {
		t.Fatalf("no call to %s in the test program", name)
	}
	return call
}

func TestCalleeInfo(t *testing.T) {
	funcs := loadCallModels(t)

	for _, name := range []string{
		"os.Getenv",
		"fmt.Sprintf",
		"os/exec.Command",
		"(*os/exec.Cmd).Run",
		"(io.Reader).Read",
	} {
		findCallTo(t, funcs, name)
	}
	if findCall(funcs, func(s string) bool { return strings.HasSuffix(s, "____jf_checkIndex") }) == nil {
		t.Error("no call to the check helper in the test program")
	}

	variadic := map[string]bool{
		"os.Getenv":          false,
		"fmt.Sprintf":        true,
		"os/exec.Command":    true,
		"(*os/exec.Cmd).Run": false,
		"(io.Reader).Read":   false,
	}
	for name, want := range variadic {
		call := findCallTo(t, funcs, name)
		if calleeVariadic(call) != want {
			t.Errorf("calleeVariadic(%s) = %v, want %v", name, !want, want)
		}
	}
}

func TestDefaultChainModels(t *testing.T) {
	funcs := loadCallModels(t)
	registrar := Default(nil)

	// Table summary with sources and sinks: one explicit and one implicit record.
	getenv := findCallTo(t, funcs, "os.Getenv")
	flows := registrar.Process(infoflow.DefaultContext, getenv)
	if len(flows) != 2 || flows[0].Implicit() || !flows[1].Implicit() {
		t.Errorf("os.Getenv: want explicit+implicit records, got %v", flows)
	}

	// Flow-less summary: modeled, but nothing to record.
	printlnCall := findCallTo(t, funcs, "fmt.Println")
	if !(StdLib{}).Accept(infoflow.DefaultContext, printlnCall) {
		t.Error("fmt.Println should be accepted by the table")
	}
	if flows := registrar.Process(infoflow.DefaultContext, printlnCall); flows != nil {
		t.Errorf("fmt.Println: want no flows, got %v", flows)
	}

	// Summary with sinks but no sources: flow-less, the result stays clean.
	environ := findCallTo(t, funcs, "os.Environ")
	if !(StdLib{}).Accept(infoflow.DefaultContext, environ) {
		t.Error("os.Environ should be accepted by the table")
	}
	if flows := registrar.Process(infoflow.DefaultContext, environ); flows != nil {
		t.Errorf("os.Environ: want no flows, got %v", flows)
	}

	// Not in the table: the args-to-ret fallback models it.
	repeat := findCallTo(t, funcs, "strings.Repeat")
	if (StdLib{}).Accept(infoflow.DefaultContext, repeat) {
		t.Error("strings.Repeat should not be in the table")
	}
	flows = registrar.Process(infoflow.DefaultContext, repeat)
	if len(flows) != 2 {
		t.Errorf("strings.Repeat: want fallback records, got %v", flows)
	}

	// Check helpers go through OverflowChecks, not the table.
	check := findCall(funcs, func(s string) bool { return strings.HasSuffix(s, "____jf_checkIndex") })
	if !(OverflowChecks{}).Accept(infoflow.DefaultContext, check) {
		t.Error("the check helper should be accepted by OverflowChecks")
	}
	if (StdLib{}).Accept(infoflow.DefaultContext, check) {
		t.Error("the check helper should not be in the table")
	}
	if flows = registrar.Process(infoflow.DefaultContext, check); len(flows) != 2 {
		t.Errorf("check helper: want args-to-ret records, got %v", flows)
	}

	// Variadic call: the packed argument's pointees are sources.
	sprintf := findCallTo(t, funcs, "fmt.Sprintf")
	flows = registrar.Process(infoflow.DefaultContext, sprintf)
	if len(flows) != 2 {
		t.Fatalf("fmt.Sprintf: want explicit+implicit records, got %v", flows)
	}
	if !strings.Contains(flows[0].String(), "directptr:") {
		t.Errorf("fmt.Sprintf: the varargs pack should be a direct-ptr source, got %s", flows[0])
	}

	// Command taints the memory reachable from its result.
	command := findCallTo(t, funcs, "os/exec.Command")
	flows = registrar.Process(infoflow.DefaultContext, command)
	if len(flows) != 2 {
		t.Fatalf("os/exec.Command: want explicit+implicit records, got %v", flows)
	}
	if !strings.Contains(flows[0].String(), "reachptr:") {
		t.Errorf("os/exec.Command: the result's reachable memory should be a sink, got %s", flows[0])
	}

	// Interface calls are looked up under the method's full name.
	read := findCallTo(t, funcs, "(io.Reader).Read")
	if !(StdLib{}).Accept(infoflow.DefaultContext, read) {
		t.Error("(io.Reader).Read should be accepted by the table")
	}
	flows = registrar.Process(infoflow.DefaultContext, read)
	if len(flows) != 2 {
		t.Fatalf("(io.Reader).Read: want explicit+implicit records, got %v", flows)
	}
	if !strings.Contains(flows[0].String(), "directptr:") {
		t.Errorf("(io.Reader).Read: the buffer should be a direct-ptr sink, got %s", flows[0])
	}

	// NoFlows silences anything it accepts.
	if flows := (NoFlows{}).Process(infoflow.DefaultContext, getenv); flows != nil {
		t.Errorf("NoFlows: want nothing, got %v", flows)
	}

	// TaintReachable spreads through every argument's reachable memory.
	flows = (TaintReachable{}).Process(infoflow.DefaultContext, command)
	if len(flows) != 2 || !strings.Contains(flows[0].String(), "reachptr:") {
		t.Errorf("TaintReachable: want records over reachable memory, got %v", flows)
	}
}

func TestRegistrarPanicsWithoutMatch(t *testing.T) {
	funcs := loadCallModels(t)
	getenv := findCallTo(t, funcs, "os.Getenv")

	defer func() {
		if recover() == nil {
			t.Error("an empty registrar should panic on any call")
		}
	}()
	NewRegistrar(nil).Process(infoflow.DefaultContext, getenv)
}
