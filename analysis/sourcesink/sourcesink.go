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

// Package sourcesink identifies the endpoints of the information flow
// analysis in one walk over the program: the sources, where outside data
// enters (environment reads, file and network input, the arguments of the
// root functions), and the sinks, which that data must not reach (command
// execution, file-system mutation, allocation sizes, unsafe conversions).
// User-defined endpoints from the configuration are merged into the walk.
//
// The result doubles as the infoflow.SourcesAndSinks implementation that
// drop-at-sinks consults.
package sourcesink

import (
	"fmt"
	"go/token"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/thinkmoore/go-infoflow/analysis/config"
	"github.com/thinkmoore/go-infoflow/analysis/infoflow"
	"github.com/thinkmoore/go-infoflow/analysis/lang"
	"github.com/thinkmoore/go-infoflow/analysis/signatures"
)

// A Point is one identified source or sink: the program values carrying it,
// split by channel, and where it is in the program.
type Point struct {
	// Desc names what was identified: the callee of a recognized call, or
	// the construct ("allocation size", "copy destination", ...).
	Desc string
	// Pos locates the identifying instruction or parameter.
	Pos token.Position

	// Values taints or checks the listed values themselves.
	Values []ssa.Value
	// DirectPtrs taints or checks the memory the listed values point to.
	DirectPtrs []ssa.Value
	// ReachPtrs taints or checks all memory reachable from the listed values.
	ReachPtrs []ssa.Value
}

func (p *Point) empty() bool {
	return len(p.Values) == 0 && len(p.DirectPtrs) == 0 && len(p.ReachPtrs) == 0
}

func (p *Point) String() string {
	return fmt.Sprintf("%s at %s", p.Desc, p.Pos)
}

func (p *Point) addSourcesTo(rec *infoflow.FlowRecord) {
	for _, v := range p.Values {
		rec.AddSourceValue(v)
	}
	for _, v := range p.DirectPtrs {
		rec.AddSourceDirectPtr(v)
	}
	for _, v := range p.ReachPtrs {
		rec.AddSourceReachablePtr(v)
	}
}

func (p *Point) addSinksTo(rec *infoflow.FlowRecord) {
	for _, v := range p.Values {
		rec.AddSinkValue(v)
	}
	for _, v := range p.DirectPtrs {
		rec.AddSinkDirectPtr(v)
	}
	for _, v := range p.ReachPtrs {
		rec.AddSinkReachablePtr(v)
	}
}

// SourceRecord returns the point's channels as the sources of a flow
// record, ready for Infoflow.TaintRecordSources.
func (p *Point) SourceRecord() *infoflow.FlowRecord {
	rec := infoflow.NewFlowRecord(false, infoflow.DefaultContext)
	p.addSourcesTo(rec)
	return rec
}

// SinkRecord returns the point's channels as the sinks of a flow record,
// ready for Infoflow.UntaintRecordSinks.
func (p *Point) SinkRecord() *infoflow.FlowRecord {
	rec := infoflow.NewFlowRecord(false, infoflow.DefaultContext)
	p.addSinksTo(rec)
	return rec
}

// FlowBetween returns a flow record whose sources are the source point's
// channels and whose sinks are the sink point's channels, the shape a slice
// over a single source and sink pair is seeded from.
func FlowBetween(source, sink *Point) *infoflow.FlowRecord {
	rec := infoflow.NewFlowRecord(false, infoflow.DefaultContext)
	source.addSourcesTo(rec)
	sink.addSinksTo(rec)
	return rec
}

// Tainted reports whether any channel of the point is tainted in the
// solution.
func (p *Point) Tainted(sol *infoflow.Solution) bool {
	for _, v := range p.Values {
		if sol.IsTainted(v) {
			return true
		}
	}
	for _, v := range p.DirectPtrs {
		if sol.IsDirectPtrTainted(v) {
			return true
		}
	}
	for _, v := range p.ReachPtrs {
		if sol.IsReachPtrTainted(v) {
			return true
		}
	}
	return false
}

// Analysis holds the sources and sinks of one program walk. It implements
// infoflow.SourcesAndSinks.
type Analysis struct {
	logger  *config.LogGroup
	cfg     *config.Config
	program *ssa.Program

	sources []*Point
	sinks   []*Point

	valueSinks  map[ssa.Value]bool
	directSinks map[ssa.Value]bool
	reachSinks  map[ssa.Value]bool
	vargSinks   map[*ssa.Function]bool
}

// Identify walks the program once and collects its sources and sinks. The
// walk covers the defined functions whose package matches the
// configuration's package filter, skips the overflow-check helpers, and
// merges the configuration's extra sources and sinks.
func Identify(program *ssa.Program, cfg *config.Config, logger *config.LogGroup) *Analysis {
	a := &Analysis{
		logger:      logger,
		cfg:         cfg,
		program:     program,
		valueSinks:  make(map[ssa.Value]bool),
		directSinks: make(map[ssa.Value]bool),
		reachSinks:  make(map[ssa.Value]bool),
		vargSinks:   make(map[*ssa.Function]bool),
	}

	for _, fn := range definedFunctions(program) {
		if !a.cfg.MatchPkgFilter(lang.PackageNameFromFunction(fn)) {
			continue
		}
		if strings.HasPrefix(fn.Name(), signatures.CheckPrefix) {
			continue
		}
		a.identifyFunction(fn)
	}
	a.identifyRootParams()

	logger.Infof("Identified %d sources and %d sinks", len(a.sources), len(a.sinks))
	return a
}

// Sources returns the identified sources in walk order.
func (a *Analysis) Sources() []*Point { return a.sources }

// Sinks returns the identified sinks in walk order.
func (a *Analysis) Sinks() []*Point { return a.sinks }

// Record returns the whole walk as a single flow record: every source in
// its source channels and every sink in its sink channels.
func (a *Analysis) Record() *infoflow.FlowRecord {
	rec := infoflow.NewFlowRecord(false, infoflow.DefaultContext)
	for _, p := range a.sources {
		p.addSourcesTo(rec)
	}
	for _, p := range a.sinks {
		p.addSinksTo(rec)
	}
	return rec
}

// ValueIsSink reports whether the value was identified as a value sink.
func (a *Analysis) ValueIsSink(v ssa.Value) bool { return a.valueSinks[v] }

// VargIsSink reports whether the function is a defined variadic sink
// callee, whose variadic pack receives sink arguments.
func (a *Analysis) VargIsSink(fn *ssa.Function) bool { return a.vargSinks[fn] }

// DirectPtrIsSink reports whether the value's pointees were identified as a
// sink.
func (a *Analysis) DirectPtrIsSink(v ssa.Value) bool { return a.directSinks[v] }

// ReachPtrIsSink reports whether the value's reachable memory was
// identified as a sink.
func (a *Analysis) ReachPtrIsSink(v ssa.Value) bool { return a.reachSinks[v] }

// sourceSpec describes where a recognized call's outside data lands: the
// result value, the result's pointees, or the memory behind argument
// pointers the call fills.
type sourceSpec struct {
	name      string
	prefix    bool // name matches as a prefix
	ret       bool
	retDirect bool
	argDirect []int
}

// sinkSpec describes which operands of a recognized call must stay low.
type sinkSpec struct {
	name      string
	prefix    bool
	allArgs   bool
	args      []int
	argDirect []int
}

func matchName(name, pattern string, prefix bool) bool {
	if prefix {
		return strings.HasPrefix(name, pattern)
	}
	return name == pattern
}

// Calls whose results carry outside data. The receiver of a method call is
// argument 0.
var sourceSpecs = []sourceSpec{
	{name: "(*bufio.Reader).Read", ret: true, argDirect: []int{1}},
	{name: "(*bufio.Reader).ReadBytes", ret: true, retDirect: true},
	{name: "(*bufio.Reader).ReadLine", ret: true, retDirect: true},
	{name: "(*bufio.Reader).ReadRune", ret: true},
	{name: "(*bufio.Reader).ReadString", ret: true},
	{name: "(*os.File).Read", ret: true, argDirect: []int{1}},
	{name: "bufio.NewReader", ret: true, retDirect: true},
	{name: "io.ReadAll", ret: true, retDirect: true},
	{name: "net.Dial", prefix: true, ret: true, retDirect: true},
	{name: "os.Environ", ret: true, retDirect: true},
	{name: "os.Getenv", ret: true},
	{name: "os.Open", ret: true, retDirect: true},
	{name: "os.OpenFile", ret: true, retDirect: true},
	{name: "os.ReadFile", ret: true, retDirect: true},
}

// Calls whose operands tainted data must not reach.
var sinkSpecs = []sinkSpec{
	{name: "(*os/exec.Cmd).CombinedOutput", args: []int{0}},
	{name: "(*os/exec.Cmd).Output", args: []int{0}},
	{name: "(*os/exec.Cmd).Run", args: []int{0}},
	{name: "(*os/exec.Cmd).Start", args: []int{0}},
	{name: "net/http.Get", args: []int{0}},
	{name: "os.Chmod", allArgs: true},
	{name: "os.Remove", allArgs: true, argDirect: []int{0}},
	{name: "os.RemoveAll", allArgs: true, argDirect: []int{0}},
	{name: "os.Rename", allArgs: true, argDirect: []int{0, 1}},
	{name: "os/exec.Command", allArgs: true, argDirect: []int{0}},
	{name: "os/exec.CommandContext", allArgs: true, argDirect: []int{0}},
	{name: "syscall.Exec", allArgs: true},
}

func (a *Analysis) identifyFunction(fn *ssa.Function) {
	lang.IterateInstructions(fn, func(_ int, instr ssa.Instruction) {
		switch i := instr.(type) {
		case *ssa.Call, *ssa.Defer, *ssa.Go:
			a.identifyCall(instr.(ssa.CallInstruction))
		case *ssa.UnOp:
			a.identifyGlobalRead(i)
		case *ssa.MakeSlice:
			a.addAllocSizes(i, i.Len, i.Cap)
		case *ssa.MakeMap:
			a.addAllocSizes(i, i.Reserve)
		case *ssa.MakeChan:
			a.addAllocSizes(i, i.Size)
		case *ssa.Convert:
			a.identifyUnsafeCast(i)
		}
	})
}

func (a *Analysis) identifyCall(site ssa.CallInstruction) {
	common := site.Common()
	if !common.IsInvoke() {
		if builtin, ok := common.Value.(*ssa.Builtin); ok {
			if builtin.Name() == "copy" && len(common.Args) > 0 {
				a.addSink(&Point{
					Desc:   "copy destination",
					Pos:    lang.SafeInstructionPos(site),
					Values: []ssa.Value{common.Args[0]},
				}, site)
			}
			return
		}
	}

	name := signatures.CalleeName(site)
	if name == "" {
		return
	}
	if fn := common.StaticCallee(); fn != nil && strings.HasPrefix(fn.Name(), signatures.CheckPrefix) {
		return
	}

	args := lang.GetArgs(site)
	for _, spec := range sourceSpecs {
		if matchName(name, spec.name, spec.prefix) {
			a.addSource(spec.point(name, site, args))
			break
		}
	}
	for _, spec := range sinkSpecs {
		if matchName(name, spec.name, spec.prefix) {
			a.addSink(spec.point(name, site, args), site)
			break
		}
	}
	a.identifyExtras(name, site, args)
}

func (spec sourceSpec) point(name string, site ssa.CallInstruction, args []ssa.Value) *Point {
	p := &Point{Desc: name, Pos: lang.SafeInstructionPos(site)}
	if v := site.Value(); v != nil {
		if spec.ret {
			p.Values = append(p.Values, v)
		}
		if spec.retDirect {
			p.DirectPtrs = append(p.DirectPtrs, v)
		}
	}
	for _, idx := range spec.argDirect {
		if idx < len(args) {
			p.DirectPtrs = append(p.DirectPtrs, args[idx])
		}
	}
	return p
}

func (spec sinkSpec) point(name string, site ssa.CallInstruction, args []ssa.Value) *Point {
	p := &Point{Desc: name, Pos: lang.SafeInstructionPos(site)}
	if spec.allArgs {
		p.Values = append(p.Values, args...)
	}
	for _, idx := range spec.args {
		if idx < len(args) {
			p.Values = append(p.Values, args[idx])
		}
	}
	for _, idx := range spec.argDirect {
		if idx < len(args) {
			p.DirectPtrs = append(p.DirectPtrs, args[idx])
		}
	}
	return p
}

// identifyExtras merges the configuration's extra sources and sinks: a call
// to a matching function yields its result as a source, or all its
// arguments as a sink.
func (a *Analysis) identifyExtras(name string, site ssa.CallInstruction, args []ssa.Value) {
	cid := calleeIdentifier(site)
	if cid.Method == "" {
		return
	}
	if a.cfg.IsExtraSource(cid) {
		p := &Point{Desc: name, Pos: lang.SafeInstructionPos(site)}
		if v := site.Value(); v != nil {
			p.Values = append(p.Values, v)
			if pointer.CanPoint(v.Type()) {
				p.DirectPtrs = append(p.DirectPtrs, v)
			}
		}
		a.addSource(p)
	}
	if a.cfg.IsExtraSink(cid) {
		a.addSink(&Point{
			Desc:   name,
			Pos:    lang.SafeInstructionPos(site),
			Values: args,
		}, site)
	}
}

// calleeIdentifier builds the config identifier of a call's callee:
// package path, bare method name and receiver type name.
func calleeIdentifier(site ssa.CallInstruction) config.CodeIdentifier {
	common := site.Common()
	if common.IsInvoke() {
		m := common.Method
		cid := config.CodeIdentifier{Method: m.Name(), Receiver: receiverName(common.Value.Type())}
		if m.Pkg() != nil {
			cid.Package = m.Pkg().Path()
		}
		return cid
	}
	fn := common.StaticCallee()
	if fn == nil {
		return config.CodeIdentifier{}
	}
	cid := config.CodeIdentifier{Method: fn.Name()}
	if fn.Pkg != nil {
		cid.Package = fn.Pkg.Pkg.Path()
	}
	if recv := fn.Signature.Recv(); recv != nil {
		cid.Receiver = receiverName(recv.Type())
	}
	return cid
}

func receiverName(t types.Type) string {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}

// identifyGlobalRead marks loads of os.Args: the command line's memory is
// outside data.
func (a *Analysis) identifyGlobalRead(i *ssa.UnOp) {
	if i.Op != token.MUL {
		return
	}
	g, ok := i.X.(*ssa.Global)
	if !ok || g.Pkg == nil {
		return
	}
	if g.Pkg.Pkg.Path() != "os" || g.Name() != "Args" {
		return
	}
	a.addSource(&Point{
		Desc:      "os.Args",
		Pos:       lang.SafeInstructionPos(i),
		ReachPtrs: []ssa.Value{i},
	})
}

// addAllocSizes marks the non-constant size operands of a make.
func (a *Analysis) addAllocSizes(instr ssa.Instruction, sizes ...ssa.Value) {
	p := &Point{Desc: "allocation size", Pos: lang.SafeInstructionPos(instr)}
	seen := make(map[ssa.Value]bool)
	for _, v := range sizes {
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		if _, constant := v.(*ssa.Const); constant {
			continue
		}
		p.Values = append(p.Values, v)
	}
	a.addSink(p, nil)
}

// identifyUnsafeCast marks the operand of a conversion to unsafe.Pointer.
func (a *Analysis) identifyUnsafeCast(c *ssa.Convert) {
	basic, ok := c.Type().Underlying().(*types.Basic)
	if !ok || basic.Kind() != types.UnsafePointer {
		return
	}
	a.addSink(&Point{
		Desc:   "unsafe.Pointer conversion",
		Pos:    lang.SafeInstructionPos(c),
		Values: []ssa.Value{c.X},
	}, nil)
}

// identifyRootParams adds the parameters of the root functions: the main
// functions of the main packages, or every exported function when there is
// no main. Parameters are value sources; the ones that can point also
// contribute their reachable memory.
func (a *Analysis) identifyRootParams() {
	var roots []*ssa.Function
	mains := ssautil.MainPackages(a.program.AllPackages())
	sort.Slice(mains, func(i, j int) bool { return mains[i].Pkg.Path() < mains[j].Pkg.Path() })
	for _, pkg := range mains {
		if fn := pkg.Func("main"); fn != nil && !lang.IsExternal(fn) {
			roots = append(roots, fn)
		}
	}
	if len(roots) == 0 {
		for _, fn := range definedFunctions(a.program) {
			if fn.Object() != nil && fn.Object().Exported() && a.cfg.MatchPkgFilter(lang.PackageNameFromFunction(fn)) {
				roots = append(roots, fn)
			}
		}
	}

	for _, fn := range roots {
		for _, param := range fn.Params {
			// Synthetic wrappers have parameters without positions.
			pos := a.program.Fset.Position(param.Pos())
			if !pos.IsValid() {
				pos = lang.SafeFunctionPos(fn)
			}
			p := &Point{
				Desc:   fmt.Sprintf("parameter %s of %s", param.Name(), fn.String()),
				Pos:    pos,
				Values: []ssa.Value{param},
			}
			if pointer.CanPoint(param.Type()) {
				p.ReachPtrs = append(p.ReachPtrs, param)
			}
			a.addSource(p)
		}
	}
}

func (a *Analysis) addSource(p *Point) {
	if p.empty() {
		return
	}
	a.sources = append(a.sources, p)
	a.logger.Debugf("source: %s", p)
}

// addSink records the point and registers its values in the sink sets that
// drop-at-sinks consults. When the point comes from a call to a defined
// variadic function, the callee's variadic pack is a sink too.
func (a *Analysis) addSink(p *Point, site ssa.CallInstruction) {
	if p.empty() {
		return
	}
	a.sinks = append(a.sinks, p)
	for _, v := range p.Values {
		a.valueSinks[v] = true
	}
	for _, v := range p.DirectPtrs {
		a.directSinks[v] = true
	}
	for _, v := range p.ReachPtrs {
		a.reachSinks[v] = true
	}
	if site != nil {
		if fn := site.Common().StaticCallee(); fn != nil && fn.Signature.Variadic() && !lang.IsExternal(fn) {
			a.vargSinks[fn] = true
		}
	}
	a.logger.Debugf("sink: %s", p)
}

// definedFunctions returns the program's functions with a body in a stable
// order.
func definedFunctions(program *ssa.Program) []*ssa.Function {
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(program) {
		if !lang.IsExternal(fn) {
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}
