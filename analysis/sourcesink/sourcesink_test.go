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

package sourcesink_test

import (
	"path"
	"runtime"
	"strings"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/config"
	"github.com/thinkmoore/go-infoflow/analysis/sourcesink"
	"github.com/thinkmoore/go-infoflow/internal/analysistest"
)

func loadDir(t *testing.T, name string) (*ssa.Program, *config.Config) {
	_, filename, _, _ := runtime.Caller(0)
	dir := path.Join(path.Dir(filename), "../../testdata/src/sourcesink", name)
	return analysistest.LoadTest(t, dir, []string{})
}

func countByDesc(points []*sourcesink.Point) map[string]int {
	counts := make(map[string]int)
	for _, p := range points {
		counts[p.Desc]++
	}
	return counts
}

func checkCounts(t *testing.T, what string, got, want map[string]int) {
	for desc, n := range want {
		if got[desc] != n {
			t.Errorf("want %d %s %q, got %d", n, what, desc, got[desc])
		}
	}
	for desc, n := range got {
		if want[desc] == 0 {
			t.Errorf("unexpected %s %q (%d)", what, desc, n)
		}
	}
}

func TestIdentifyWalk(t *testing.T) {
	program, cfg := loadDir(t, "walk")
	a := sourcesink.Identify(program, cfg, config.NewLogGroup(cfg))

	checkCounts(t, "source", countByDesc(a.Sources()), map[string]int{
		"os.Getenv":                        1, // the one in main; the check helper is exempt
		"os.Open":                          1,
		"os.Args":                          1,
		"command-line-arguments.readCreds": 1, // extra source from the config
	})

	checkCounts(t, "sink", countByDesc(a.Sinks()), map[string]int{
		"os/exec.Command":              1,
		"(*os/exec.Cmd).Run":           1,
		"os.Remove":                    1,
		"allocation size":              1,
		"copy destination":             1,
		"unsafe.Pointer conversion":    1,
		"command-line-arguments.audit": 1, // extra sink from the config
	})

	for _, p := range a.Sources() {
		if p.Pos.Line <= 0 {
			t.Errorf("source %s has no position", p.Desc)
		}
	}
	for _, p := range a.Sinks() {
		if p.Pos.Line <= 0 {
			t.Errorf("sink %s has no position", p.Desc)
		}
		for _, v := range p.Values {
			if !a.ValueIsSink(v) {
				t.Errorf("sink %s: value %s not registered as a value sink", p.Desc, v.Name())
			}
		}
		for _, v := range p.DirectPtrs {
			if !a.DirectPtrIsSink(v) {
				t.Errorf("sink %s: value %s not registered as a direct-ptr sink", p.Desc, v.Name())
			}
		}
	}
}

func TestIdentifyVargSink(t *testing.T) {
	program, cfg := loadDir(t, "walk")
	a := sourcesink.Identify(program, cfg, config.NewLogGroup(cfg))

	var auditFn *ssa.Function
	for _, pkg := range program.AllPackages() {
		if pkg.Pkg.Name() == "main" {
			auditFn = pkg.Func("audit")
		}
	}
	if auditFn == nil {
		t.Fatal("no audit function in the test program")
	}
	if !a.VargIsSink(auditFn) {
		t.Error("the variadic pack of a defined variadic sink callee should be a sink")
	}
}

func TestIdentifyRecordChannels(t *testing.T) {
	program, cfg := loadDir(t, "walk")
	a := sourcesink.Identify(program, cfg, config.NewLogGroup(cfg))

	rec := a.Record()
	s := rec.String()
	for _, channel := range []string{"value:", "directptr:", "reachptr:"} {
		if !strings.Contains(s, channel) {
			t.Errorf("the walk record misses the %s channel: %s", strings.TrimSuffix(channel, ":"), s)
		}
	}
}

func TestIdentifyRootParams(t *testing.T) {
	program, cfg := loadDir(t, "roots")
	a := sourcesink.Identify(program, cfg, config.NewLogGroup(cfg))

	if len(a.Sinks()) != 0 {
		t.Errorf("want no sinks, got %v", a.Sinks())
	}
	checkCounts(t, "source", countByDesc(a.Sources()), map[string]int{
		"parameter req of command-line-arguments.Handle": 1,
		"parameter log of command-line-arguments.Handle": 1,
	})

	for _, p := range a.Sources() {
		switch {
		case strings.HasPrefix(p.Desc, "parameter req"):
			if len(p.Values) != 1 || len(p.ReachPtrs) != 0 {
				t.Errorf("a string parameter is a value source only, got %d values, %d reach-ptrs", len(p.Values), len(p.ReachPtrs))
			}
		case strings.HasPrefix(p.Desc, "parameter log"):
			if len(p.Values) != 1 || len(p.ReachPtrs) != 1 {
				t.Errorf("a pointer parameter also reaches its memory, got %d values, %d reach-ptrs", len(p.Values), len(p.ReachPtrs))
			}
		}
	}
}
