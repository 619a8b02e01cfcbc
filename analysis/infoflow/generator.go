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
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/lang"
)

// flowGenerator turns the instructions of one analysis unit into flow
// records. It implements lang.InstrOp so that lang.InstrSwitch dispatches
// every instruction kind exactly once; an instruction the generator does
// not know about is a panic, never a silent skip.
type flowGenerator struct {
	ifa   *Infoflow
	fn    *ssa.Function
	ctx   ContextID
	unit  AnalysisUnit
	flows Flows
}

// siteCtxKey dedups signature processing: a unit runs once per (function,
// context), so the signature records of a site are created once per
// context too.
type siteCtxKey struct {
	site ssa.CallInstruction
	ctx  ContextID
}

// generateFunctionConstraints walks the body of a unit, collects the flow
// records of every instruction and lowers them into constraints.
func (ifa *Infoflow) generateFunctionConstraints(unit AnalysisUnit) {
	gen := &flowGenerator{ifa: ifa, fn: unit.Function, ctx: unit.Context, unit: unit}
	lang.IterateInstructions(unit.Function, func(_ int, instr ssa.Instruction) {
		lang.InstrSwitch(gen, instr)
	})
	for _, rec := range gen.flows {
		ifa.logger.Tracef("flow: %v", rec)
		ifa.constrainFlowRecord(rec)
	}
}

func (g *flowGenerator) add(rec *FlowRecord) {
	g.flows = append(g.flows, rec)
}

// operandsAndPCToValue emits the generic rule for a value instruction:
// every operand flows explicitly into the result, and the program counter
// of the enclosing block flows implicitly into it.
func (g *flowGenerator) operandsAndPCToValue(instr ssa.Instruction, v ssa.Value) {
	exp := NewFlowRecord(false, g.ctx)
	for _, op := range instr.Operands(nil) {
		if *op != nil {
			exp.AddSourceValue(*op)
		}
	}
	exp.AddSinkValue(v)
	g.add(exp)

	imp := NewFlowRecord(true, g.ctx)
	imp.AddSourceBlock(instr.Block())
	imp.AddSinkValue(v)
	g.add(imp)
}

// loadToValue emits the memory-read rule: the pointed-to locations flow
// explicitly into the result; the program counter and the pointer itself
// flow implicitly.
func (g *flowGenerator) loadToValue(instr ssa.Instruction, ptr ssa.Value, v ssa.Value) {
	exp := NewFlowRecord(false, g.ctx)
	exp.AddSourceDirectPtr(ptr)
	exp.AddSinkValue(v)
	g.add(exp)

	imp := NewFlowRecord(true, g.ctx)
	imp.AddSourceBlock(instr.Block())
	imp.AddSourceValue(ptr)
	imp.AddSinkValue(v)
	g.add(imp)
}

// storeToMemory emits the memory-write rule: the stored values flow
// explicitly into the pointed-to locations; the program counter and the
// pointer itself flow implicitly.
func (g *flowGenerator) storeToMemory(instr ssa.Instruction, ptr ssa.Value, vals ...ssa.Value) {
	exp := NewFlowRecord(false, g.ctx)
	for _, v := range vals {
		exp.AddSourceValue(v)
	}
	exp.AddSinkDirectPtr(ptr)
	g.add(exp)

	imp := NewFlowRecord(true, g.ctx)
	imp.AddSourceBlock(instr.Block())
	imp.AddSourceValue(ptr)
	imp.AddSinkDirectPtr(ptr)
	g.add(imp)
}

// Instructions with no information flow.

func (g *flowGenerator) DoDebugRef(*ssa.DebugRef) {}

func (g *flowGenerator) DoJump(*ssa.Jump) {}

func (g *flowGenerator) DoRunDefers(*ssa.RunDefers) {}

// Panic aborts the enclosing function; like a program exit it produces no
// flow of its own. The control dependence of any recovery path is covered
// by the branching rules.
func (g *flowGenerator) DoPanic(*ssa.Panic) {}

// Return emits nothing here: the flows from the returned operands (and the
// return block's pc) to each call site are generated by constrainCallee,
// which sees both sides of the call.
func (g *flowGenerator) DoReturn(*ssa.Return) {}

// Plain value instructions: operands and pc to value.

func (g *flowGenerator) DoBinOp(instr *ssa.BinOp) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoChangeInterface(instr *ssa.ChangeInterface) {
	g.operandsAndPCToValue(instr, instr)
}

func (g *flowGenerator) DoChangeType(instr *ssa.ChangeType) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoConvert(instr *ssa.Convert) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoSliceToArrayPointer(instr *ssa.SliceToArrayPointer) {
	g.operandsAndPCToValue(instr, instr)
}

func (g *flowGenerator) DoMakeInterface(instr *ssa.MakeInterface) {
	g.operandsAndPCToValue(instr, instr)
}

func (g *flowGenerator) DoExtract(instr *ssa.Extract) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoSlice(instr *ssa.Slice) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoMakeChan(instr *ssa.MakeChan) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoAlloc(instr *ssa.Alloc) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoMakeSlice(instr *ssa.MakeSlice) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoMakeMap(instr *ssa.MakeMap) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoRange(instr *ssa.Range) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoFieldAddr(instr *ssa.FieldAddr) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoField(instr *ssa.Field) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoIndexAddr(instr *ssa.IndexAddr) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoIndex(instr *ssa.Index) { g.operandsAndPCToValue(instr, instr) }

func (g *flowGenerator) DoTypeAssert(instr *ssa.TypeAssert) { g.operandsAndPCToValue(instr, instr) }

// A phi selects an edge according to which predecessor ran, so the
// predecessors' program counters feed the implicit record along with the
// enclosing block's. Without them the branch dependence is lost: the edges
// of a phi produced by lifting a conditionally assigned local are constants.
func (g *flowGenerator) DoPhi(instr *ssa.Phi) {
	exp := NewFlowRecord(false, g.ctx)
	for _, edge := range instr.Edges {
		exp.AddSourceValue(edge)
	}
	exp.AddSinkValue(instr)
	g.add(exp)

	imp := NewFlowRecord(true, g.ctx)
	imp.AddSourceBlock(instr.Block())
	for _, pred := range instr.Block().Preds {
		imp.AddSourceBlock(pred)
	}
	imp.AddSinkValue(instr)
	g.add(imp)
}

// MakeClosure only taints the closure value with its bindings. The captured
// data still flows: Go closures capture by reference, so reads and writes
// of a captured variable inside the closure go through the same abstract
// location as the binding, which is context-insensitive.
func (g *flowGenerator) DoMakeClosure(instr *ssa.MakeClosure) {
	g.operandsAndPCToValue(instr, instr)
}

// UnOp is a load for MUL (pointer dereference) and ARROW (channel receive);
// the arithmetic unary operators follow the generic value rule.
func (g *flowGenerator) DoUnOp(instr *ssa.UnOp) {
	switch instr.Op {
	case token.MUL, token.ARROW:
		g.loadToValue(instr, instr.X, instr)
	default:
		g.operandsAndPCToValue(instr, instr)
	}
}

// Lookup reads m[k]: the generic value rule, plus the map's storage when
// indexing a map (string indexing stays by-value).
func (g *flowGenerator) DoLookup(instr *ssa.Lookup) {
	exp := NewFlowRecord(false, g.ctx)
	exp.AddSourceValue(instr.X)
	exp.AddSourceValue(instr.Index)
	if _, isMap := instr.X.Type().Underlying().(*types.Map); isMap {
		exp.AddSourceDirectPtr(instr.X)
	}
	exp.AddSinkValue(instr)
	g.add(exp)

	imp := NewFlowRecord(true, g.ctx)
	imp.AddSourceBlock(instr.Block())
	imp.AddSinkValue(instr)
	g.add(imp)
}

// Next advances a range iterator; for map iteration the yielded tuple also
// carries the map's storage.
func (g *flowGenerator) DoNext(instr *ssa.Next) {
	exp := NewFlowRecord(false, g.ctx)
	exp.AddSourceValue(instr.Iter)
	if !instr.IsString {
		if rng, ok := instr.Iter.(*ssa.Range); ok {
			exp.AddSourceDirectPtr(rng.X)
		}
	}
	exp.AddSinkValue(instr)
	g.add(exp)

	imp := NewFlowRecord(true, g.ctx)
	imp.AddSourceBlock(instr.Block())
	imp.AddSinkValue(instr)
	g.add(imp)
}

// Memory writes.

func (g *flowGenerator) DoStore(instr *ssa.Store) {
	g.storeToMemory(instr, instr.Addr, instr.Val)
}

func (g *flowGenerator) DoSend(instr *ssa.Send) {
	g.storeToMemory(instr, instr.Chan, instr.X)
}

// MapUpdate stores both the key and the value into the map's storage: keys
// are data too, retrievable by ranging over the map.
func (g *flowGenerator) DoMapUpdate(instr *ssa.MapUpdate) {
	g.storeToMemory(instr, instr.Map, instr.Key, instr.Value)
}

// Select: every receive state reads its channel's storage into the result
// tuple, every send state writes into its channel's storage, and the chosen
// index itself depends on all the channel operands.
func (g *flowGenerator) DoSelect(instr *ssa.Select) {
	exp := NewFlowRecord(false, g.ctx)
	for _, state := range instr.States {
		exp.AddSourceValue(state.Chan)
		if state.Dir == types.RecvOnly {
			exp.AddSourceDirectPtr(state.Chan)
		}
	}
	exp.AddSinkValue(instr)
	g.add(exp)

	imp := NewFlowRecord(true, g.ctx)
	imp.AddSourceBlock(instr.Block())
	imp.AddSinkValue(instr)
	g.add(imp)

	for _, state := range instr.States {
		if state.Dir == types.SendOnly {
			g.storeToMemory(instr, state.Chan, state.Send)
		}
	}
}

// Control flow.

// If emits the control-dependence record: the pc of the branch block and
// the condition flow implicitly into every block whose execution depends on
// the branch.
func (g *flowGenerator) DoIf(instr *ssa.If) {
	rec := NewFlowRecord(true, g.ctx)
	rec.AddSourceBlock(instr.Block())
	rec.AddSourceValue(instr.Cond)
	g.constrainConditionalSuccessors(instr, rec)
	g.add(rec)
}

// constrainConditionalSuccessors adds as sinks the blocks control-dependent
// on the branch: those reachable from the branch's successors, stopping at
// (and excluding) the blocks that post-dominate the branch block, which run
// regardless of the branch outcome.
func (g *flowGenerator) constrainConditionalSuccessors(instr ssa.Instruction, rec *FlowRecord) {
	branchBlock := instr.Block()
	pdt := g.ifa.postDoms.Get(branchBlock.Parent())

	lang.VisitBlocksBFS(branchBlock.Succs, func(cur *ssa.BasicBlock) bool {
		if pdt.Dominates(cur, branchBlock) {
			return false
		}
		rec.AddSinkBlock(cur)
		return true
	})
}

// Calls.

func (g *flowGenerator) DoCall(instr *ssa.Call) { g.constrainCall(instr) }

func (g *flowGenerator) DoDefer(instr *ssa.Defer) { g.constrainCall(instr) }

func (g *flowGenerator) DoGo(instr *ssa.Go) { g.constrainCall(instr) }

func (g *flowGenerator) constrainCall(site ssa.CallInstruction) {
	if blt, ok := site.Common().Value.(*ssa.Builtin); ok {
		g.constrainBuiltin(blt, site)
		return
	}
	g.constrainCallSite(site)
}

// constrainCallSite resolves the candidate callees of a call, requests the
// analysis of the defined candidates in the updated context and connects
// the call's arguments and results to each; external candidates are
// modelled by the signature library.
func (g *flowGenerator) constrainCallSite(site ssa.CallInstruction) {
	ifa := g.ifa
	direct := site.Common().StaticCallee() != nil

	var defined []*ssa.Function
	anyExternal := false
	candidates := ifa.calleesAt(g.fn, site)
	for _, callee := range candidates {
		if !functionIsCallable(callee, site) {
			continue
		}
		if lang.IsExternal(callee) {
			anyExternal = true
		} else {
			defined = append(defined, callee)
		}
	}
	// A call the call graph could not resolve at all is modelled like an
	// external one.
	if len(candidates) == 0 {
		anyExternal = true
	}

	calleeCtx := ifa.calleeContext(g.ctx, g.fn, site, direct, anyExternal)
	for _, callee := range defined {
		ifa.requestAnalysis(AnalysisUnit{Context: calleeCtx, Function: callee}, Unit{}, g.unit)
		g.constrainCallee(calleeCtx, callee, site)
	}
	if anyExternal {
		g.applySignature(site)
	}
}

// calleeContext computes the context for the analysis of a call's defined
// callees. Direct calls always extend the current context; indirect calls
// collapse to the default context when collapse-indirect-context is set, or
// when the site also reaches external code and collapse-external-context is
// set.
func (ifa *Infoflow) calleeContext(ctx ContextID, caller *ssa.Function, site ssa.CallInstruction, direct, anyExternal bool) ContextID {
	if !direct {
		if ifa.cfg.CollapseIndirectContext {
			return DefaultContext
		}
		if anyExternal && ifa.cfg.CollapseExternalContext {
			return DefaultContext
		}
	}
	return ifa.contexts.extend(ctx, caller, site)
}

// applySignature models the external side of a call through the registrar,
// once per (site, context); the records join the unit's flows and are
// lowered with everything else.
func (g *flowGenerator) applySignature(site ssa.CallInstruction) {
	ifa := g.ifa
	key := siteCtxKey{site: site, ctx: g.ctx}
	if ifa.signatured[key] {
		return
	}
	ifa.signatured[key] = true

	recs := ifa.registrar.Process(g.ctx, site)
	ifa.logger.Tracef("signature for %s: %d records", lang.FmtInstr(site), len(recs))
	g.flows = append(g.flows, recs...)
}

// constrainCallee connects a call with one defined callee. Four groups of
// records are produced:
//
//  1. pc flow (implicit): the caller's block pc and the called value flow
//     into the callee's entry block;
//  2. one explicit flow per argument position into the parameter;
//  3. for a variadic callee, the packed last argument (value and storage)
//     into the callee's varargs variable, and the varargs variable into the
//     variadic parameter;
//  4. one explicit flow per return site from the returned operands to the
//     call's value, with the return block's pc flowing implicitly.
func (g *flowGenerator) constrainCallee(calleeCtx ContextID, callee *ssa.Function, site ssa.CallInstruction) {
	callerCtx := g.ctx

	pcFlow := NewFlowRecordBetween(true, callerCtx, calleeCtx)
	pcFlow.AddSourceBlock(site.Block())
	pcFlow.AddSourceValue(site.Common().Value)
	pcFlow.AddSinkBlock(callee.Blocks[0])
	g.add(pcFlow)

	args := lang.GetArgs(site)
	n := len(callee.Params)
	if len(args) < n {
		n = len(args)
	}
	for i := 0; i < n; i++ {
		argFlow := NewFlowRecordBetween(false, callerCtx, calleeCtx)
		argFlow.AddSourceValue(args[i])
		argFlow.AddSinkValue(callee.Params[i])
		g.add(argFlow)
	}

	// The SSA builder packs the variadic arguments into one slice argument;
	// its value and storage bound the callee's varargs variable, which in
	// turn feeds the variadic parameter.
	if callee.Signature.Variadic() && n > 0 && len(args) == len(callee.Params) {
		pack := args[n-1]
		vargFlow := NewFlowRecordBetween(false, callerCtx, calleeCtx)
		vargFlow.AddSourceValue(pack)
		vargFlow.AddSourceDirectPtr(pack)
		vargFlow.AddSinkVarg(callee)
		g.add(vargFlow)

		readFlow := NewFlowRecord(false, calleeCtx)
		readFlow.AddSourceVarg(callee)
		readFlow.AddSinkValue(callee.Params[n-1])
		g.add(readFlow)
	}

	result := site.Value()
	if result == nil {
		// go and defer discard the result
		return
	}
	for _, block := range callee.Blocks {
		ret, ok := lang.LastInstr(block).(*ssa.Return)
		if !ok || len(ret.Results) == 0 {
			continue
		}
		retFlow := NewFlowRecordBetween(false, calleeCtx, callerCtx)
		for _, res := range ret.Results {
			retFlow.AddSourceValue(res)
		}
		retFlow.AddSinkValue(result)
		g.add(retFlow)

		impRet := NewFlowRecordBetween(true, calleeCtx, callerCtx)
		impRet.AddSourceBlock(ret.Block())
		impRet.AddSinkValue(result)
		g.add(impRet)
	}
}
