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
	"sort"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/infoflow"
	"github.com/thinkmoore/go-infoflow/analysis/lang"
)

// TSpecifier designates one operand position of a call. For methods the
// receiver is Arg0, whether the call is through a pointer or an interface.
type TSpecifier int

// The operand positions a summary can name.
const (
	Ret TSpecifier = iota
	Arg0
	Arg1
	Arg2
	Arg3
	Arg4
	AllArgs
	VarArgs // the packed variadic argument, when the callee is variadic
)

// TClass selects the channel of a specifier: the value itself, the memory
// it points to, or everything reachable from it.
type TClass int

// The channels of a specifier.
const (
	V TClass = iota // the value itself
	D               // directly pointed-to memory
	R               // transitively reachable memory
)

// TSpec pairs an operand position with a channel.
type TSpec struct {
	Spec  TSpecifier
	Class TClass
}

// CallSummary gives the flows of one named external function: the join of
// Sources flows into each of Sinks, and the call block's pc flows
// implicitly into each of Sinks. A summary with no sources or no sinks is
// flow-less; naming a flow-less function keeps it away from the catch-all
// fallback.
type CallSummary struct {
	Name    string
	Sources []TSpec
	Sinks   []TSpec
}

// StdLib models a curated set of standard library calls through a sorted
// summary table, looked up by the callee's qualified name. Interface calls
// are looked up under the method's full name, so `(io.Reader).Read` models
// every unresolved reader.
type StdLib struct{}

// Accept matches calls whose callee name appears in the table.
func (StdLib) Accept(_ infoflow.ContextID, site ssa.CallInstruction) bool {
	_, ok := LookupSummary(CalleeName(site))
	return ok
}

// Process lowers the call's summary into flow records.
func (StdLib) Process(ctx infoflow.ContextID, site ssa.CallInstruction) infoflow.Flows {
	summary, ok := LookupSummary(CalleeName(site))
	if !ok {
		return nil
	}
	return summary.flows(ctx, site)
}

// LookupSummary finds the summary of a qualified function name by binary
// search over the sorted table.
func LookupSummary(name string) (CallSummary, bool) {
	if name == "" {
		return CallSummary{}, false
	}
	i := sort.Search(len(stdlibSummaries), func(i int) bool { return stdlibSummaries[i].Name >= name })
	if i < len(stdlibSummaries) && stdlibSummaries[i].Name == name {
		return stdlibSummaries[i], true
	}
	return CallSummary{}, false
}

// flows resolves the summary at a site. Specifiers that select nothing
// there (a missing result, an argument position past the call's arity, a
// varargs position on a non-variadic callee) are dropped; a summary whose
// sources or sinks all drop produces nothing.
func (cs CallSummary) flows(ctx infoflow.ContextID, site ssa.CallInstruction) infoflow.Flows {
	args := lang.GetArgs(site)

	exp := infoflow.NewFlowRecord(false, ctx)
	haveSources := false
	for _, spec := range cs.Sources {
		if resolveSpec(exp, spec, site, args, true) {
			haveSources = true
		}
	}

	imp := infoflow.NewFlowRecord(true, ctx)
	imp.AddSourceBlock(site.Block())
	haveSinks := false
	for _, spec := range cs.Sinks {
		if resolveSpec(exp, spec, site, args, false) {
			resolveSpec(imp, spec, site, args, false)
			haveSinks = true
		}
	}

	if !haveSources || !haveSinks {
		return nil
	}
	return infoflow.Flows{exp, imp}
}

// resolveSpec adds the values a specifier selects at the call site to the
// record and reports whether anything was added.
func resolveSpec(rec *infoflow.FlowRecord, spec TSpec, site ssa.CallInstruction, args []ssa.Value, source bool) bool {
	var vals []ssa.Value
	switch spec.Spec {
	case Ret:
		if v := site.Value(); v != nil {
			vals = []ssa.Value{v}
		}
	case Arg0, Arg1, Arg2, Arg3, Arg4:
		idx := int(spec.Spec - Arg0)
		if idx < len(args) {
			vals = []ssa.Value{args[idx]}
		}
	case AllArgs:
		vals = args
	case VarArgs:
		if calleeVariadic(site) && len(args) > 0 {
			vals = []ssa.Value{args[len(args)-1]}
		}
	}
	if len(vals) == 0 {
		return false
	}
	for _, v := range vals {
		switch spec.Class {
		case V:
			if source {
				rec.AddSourceValue(v)
			} else {
				rec.AddSinkValue(v)
			}
		case D:
			if source {
				rec.AddSourceDirectPtr(v)
			} else {
				rec.AddSinkDirectPtr(v)
			}
		case R:
			if source {
				rec.AddSourceReachablePtr(v)
			} else {
				rec.AddSinkReachablePtr(v)
			}
		}
	}
	return true
}

func specs(ss ...TSpec) []TSpec { return ss }

var (
	retV  = TSpec{Ret, V}
	retR  = TSpec{Ret, R}
	arg0V = TSpec{Arg0, V}
	arg0D = TSpec{Arg0, D}
	arg0R = TSpec{Arg0, R}
	arg1V = TSpec{Arg1, V}
	arg1D = TSpec{Arg1, D}
	arg1R = TSpec{Arg1, R}
	arg2V = TSpec{Arg2, V}
	allV  = TSpec{AllArgs, V}
	allD  = TSpec{AllArgs, D}
	vargV = TSpec{VarArgs, V}
	vargD = TSpec{VarArgs, D}
)

// stdlibSummaries is sorted by Name; LookupSummary binary-searches it.
// TestStdlibTableSorted pins the order down.
var stdlibSummaries = []CallSummary{
	{"(*bufio.Reader).Read", specs(arg0V, arg0D), specs(retV, arg1D)},
	{"(*bufio.Reader).ReadBytes", specs(arg0V, arg0D, arg1V), specs(retV)},
	{"(*bufio.Reader).ReadString", specs(arg0V, arg0D, arg1V), specs(retV)},
	{"(*bufio.Scanner).Scan", specs(arg0V, arg0D), specs(retV)},
	{"(*bufio.Scanner).Text", specs(arg0V, arg0D), specs(retV)},
	{"(*bytes.Buffer).Bytes", specs(arg0V, arg0D), specs(retV)},
	{"(*bytes.Buffer).Read", specs(arg0V, arg0D), specs(retV, arg1D)},
	{"(*bytes.Buffer).String", specs(arg0V, arg0D), specs(retV)},
	{"(*bytes.Buffer).Write", specs(arg0V, arg1V, arg1D), specs(retV, arg0D)},
	{"(*bytes.Buffer).WriteString", specs(arg0V, arg1V), specs(retV, arg0D)},
	{"(*os.File).Close", specs(arg0V), specs(retV)},
	{"(*os.File).Name", specs(arg0V, arg0D), specs(retV)},
	{"(*os.File).Read", specs(arg0V, arg0D), specs(retV, arg1D)},
	{"(*os.File).Write", specs(arg0V, arg1V, arg1D), specs(retV, arg0D)},
	{"(*os.File).WriteString", specs(arg0V, arg1V), specs(retV, arg0D)},
	{"(*os/exec.Cmd).CombinedOutput", specs(arg0V, arg0R), specs(retV)},
	{"(*os/exec.Cmd).Output", specs(arg0V, arg0R), specs(retV)},
	{"(*os/exec.Cmd).Run", specs(arg0V, arg0R), specs(retV)},
	{"(*os/exec.Cmd).Start", specs(arg0V, arg0R), specs(retV)},
	{"(*sync.Mutex).Lock", nil, nil},
	{"(*sync.Mutex).Unlock", nil, nil},
	{"(*sync.RWMutex).Lock", nil, nil},
	{"(*sync.RWMutex).RLock", nil, nil},
	{"(*sync.RWMutex).RUnlock", nil, nil},
	{"(*sync.RWMutex).Unlock", nil, nil},
	{"(*sync.WaitGroup).Add", nil, nil},
	{"(*sync.WaitGroup).Done", nil, nil},
	{"(*sync.WaitGroup).Wait", nil, nil},
	{"(io.Reader).Read", specs(arg0V, arg0D), specs(retV, arg1D)},
	{"(io.Writer).Write", specs(arg0V, arg1V, arg1D), specs(retV, arg0D)},
	{"bufio.NewReader", specs(arg0V), specs(retV)},
	{"bufio.NewScanner", specs(arg0V), specs(retV)},
	{"bytes.Contains", specs(allV, allD), specs(retV)},
	{"bytes.Equal", specs(allV, allD), specs(retV)},
	{"bytes.Join", specs(allV, allD), specs(retV)},
	{"bytes.NewBuffer", specs(arg0V, arg0D), specs(retV)},
	{"bytes.Split", specs(allV, allD), specs(retV)},
	{"bytes.ToLower", specs(arg0V, arg0D), specs(retV)},
	{"bytes.ToUpper", specs(arg0V, arg0D), specs(retV)},
	{"bytes.TrimSpace", specs(arg0V, arg0D), specs(retV)},
	{"fmt.Errorf", specs(arg0V, vargV, vargD), specs(retV)},
	{"fmt.Fprintf", specs(arg0V, arg1V, vargV, vargD), specs(retV, arg0R)},
	{"fmt.Fprintln", specs(arg0V, vargV, vargD), specs(retV, arg0R)},
	{"fmt.Printf", nil, nil},
	{"fmt.Println", nil, nil},
	{"fmt.Sprint", specs(vargV, vargD), specs(retV)},
	{"fmt.Sprintf", specs(arg0V, vargV, vargD), specs(retV)},
	{"io.Copy", specs(arg0V, arg1V, arg1R), specs(retV, arg0R)},
	{"io.ReadAll", specs(arg0V, arg0R), specs(retV)},
	{"math.Abs", specs(allV), specs(retV)},
	{"math.Ceil", specs(allV), specs(retV)},
	{"math.Exp", specs(allV), specs(retV)},
	{"math.Floor", specs(allV), specs(retV)},
	{"math.Log", specs(allV), specs(retV)},
	{"math.Max", specs(allV), specs(retV)},
	{"math.Min", specs(allV), specs(retV)},
	{"math.Mod", specs(allV), specs(retV)},
	{"math.Pow", specs(allV), specs(retV)},
	{"math.Sqrt", specs(allV), specs(retV)},
	{"os.Environ", nil, specs(retV)},
	{"os.Getenv", specs(arg0V), specs(retV)},
	{"os.Open", specs(arg0V), specs(retV)},
	{"os.OpenFile", specs(allV), specs(retV)},
	{"os.ReadFile", specs(arg0V), specs(retV)},
	{"os.Remove", specs(arg0V), specs(retV)},
	{"os.RemoveAll", specs(arg0V), specs(retV)},
	{"os/exec.Command", specs(allV, vargD), specs(retV, retR)},
	{"os/exec.CommandContext", specs(allV, vargD), specs(retV, retR)},
	{"runtime.GC", nil, nil},
	{"runtime.Gosched", nil, nil},
	{"runtime.KeepAlive", nil, nil},
	{"strconv.Atoi", specs(allV), specs(retV)},
	{"strconv.FormatFloat", specs(allV), specs(retV)},
	{"strconv.FormatInt", specs(allV), specs(retV)},
	{"strconv.Itoa", specs(allV), specs(retV)},
	{"strconv.ParseFloat", specs(allV), specs(retV)},
	{"strconv.ParseInt", specs(allV), specs(retV)},
	{"strconv.Quote", specs(allV), specs(retV)},
	{"strconv.Unquote", specs(allV), specs(retV)},
	{"strings.Contains", specs(allV, allD), specs(retV)},
	{"strings.Fields", specs(allV, allD), specs(retV)},
	{"strings.HasPrefix", specs(allV, allD), specs(retV)},
	{"strings.HasSuffix", specs(allV, allD), specs(retV)},
	{"strings.Index", specs(allV, allD), specs(retV)},
	{"strings.Join", specs(allV, allD), specs(retV)},
	{"strings.Replace", specs(allV, allD), specs(retV)},
	{"strings.ReplaceAll", specs(allV, allD), specs(retV)},
	{"strings.Split", specs(allV, allD), specs(retV)},
	{"strings.ToLower", specs(allV, allD), specs(retV)},
	{"strings.ToUpper", specs(allV, allD), specs(retV)},
	{"strings.TrimSpace", specs(allV, allD), specs(retV)},
	{"sync/atomic.AddInt32", specs(arg0V, arg0D, arg1V), specs(retV, arg0D)},
	{"sync/atomic.AddInt64", specs(arg0V, arg0D, arg1V), specs(retV, arg0D)},
	{"sync/atomic.AddUint32", specs(arg0V, arg0D, arg1V), specs(retV, arg0D)},
	{"sync/atomic.AddUint64", specs(arg0V, arg0D, arg1V), specs(retV, arg0D)},
	{"sync/atomic.CompareAndSwapInt32", specs(arg0V, arg0D, arg1V, arg2V), specs(retV, arg0D)},
	{"sync/atomic.CompareAndSwapInt64", specs(arg0V, arg0D, arg1V, arg2V), specs(retV, arg0D)},
	{"sync/atomic.LoadInt32", specs(arg0V, arg0D), specs(retV)},
	{"sync/atomic.LoadInt64", specs(arg0V, arg0D), specs(retV)},
	{"sync/atomic.LoadPointer", specs(arg0V, arg0D), specs(retV)},
	{"sync/atomic.LoadUint32", specs(arg0V, arg0D), specs(retV)},
	{"sync/atomic.LoadUint64", specs(arg0V, arg0D), specs(retV)},
	{"sync/atomic.StoreInt32", specs(arg0V, arg1V), specs(arg0D)},
	{"sync/atomic.StoreInt64", specs(arg0V, arg1V), specs(arg0D)},
	{"sync/atomic.StorePointer", specs(arg0V, arg1V), specs(arg0D)},
	{"sync/atomic.StoreUint32", specs(arg0V, arg1V), specs(arg0D)},
	{"sync/atomic.StoreUint64", specs(arg0V, arg1V), specs(arg0D)},
	{"sync/atomic.SwapInt32", specs(arg0V, arg0D, arg1V), specs(retV, arg0D)},
	{"sync/atomic.SwapInt64", specs(arg0V, arg0D, arg1V), specs(retV, arg0D)},
	{"syscall.Exec", specs(allV, allD), specs(retV)},
	{"syscall.Unlink", specs(arg0V), specs(retV)},
	{"time.Now", nil, specs(retV)},
	{"time.Since", specs(arg0V), specs(retV)},
}
