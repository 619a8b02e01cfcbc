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

// Package signatures models calls to functions the analysis has no body
// for: standard library calls, runtime helpers and anything else that ends
// up external in the SSA program. A Registrar dispatches each call to the
// first Signature in its chain that accepts it; the Default chain ends with
// a catch-all, so it models every call.
package signatures

import (
	"fmt"
	"go/types"
	"strings"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/config"
	"github.com/thinkmoore/go-infoflow/analysis/infoflow"
	"github.com/thinkmoore/go-infoflow/analysis/lang"
)

// A Signature models the information flows of some family of external
// calls. Accept reports whether the signature has a model for the call;
// Process returns the flow records of the call, with every caller-side
// value in context ctx.
type Signature interface {
	Accept(ctx infoflow.ContextID, site ssa.CallInstruction) bool
	Process(ctx infoflow.ContextID, site ssa.CallInstruction) infoflow.Flows
}

// Registrar dispatches external calls to the first accepting signature of
// its chain. It implements infoflow.Registrar.
type Registrar struct {
	logger *config.LogGroup
	chain  []Signature
}

// NewRegistrar builds a registrar over the given chain, consulted in order.
// Process panics when no signature accepts a call; end the chain with
// ArgsToRet or NoFlows to make it total. The logger may be nil.
func NewRegistrar(logger *config.LogGroup, chain ...Signature) *Registrar {
	return &Registrar{logger: logger, chain: chain}
}

// Default returns the standard chain: the overflow-check helpers, the
// standard library table, then the args-to-ret fallback for everything
// else.
func Default(logger *config.LogGroup) *Registrar {
	return NewRegistrar(logger, OverflowChecks{}, StdLib{}, ArgsToRet{})
}

// Process models one call through the chain.
func (r *Registrar) Process(ctx infoflow.ContextID, site ssa.CallInstruction) infoflow.Flows {
	for _, sig := range r.chain {
		if sig.Accept(ctx, site) {
			if r.logger != nil {
				r.logger.Tracef("%T models %s", sig, lang.FmtInstr(site))
			}
			return sig.Process(ctx, site)
		}
	}
	panic(fmt.Sprintf("signatures: no signature accepts %s", lang.FmtInstr(site)))
}

// CalleeName returns the name a call is looked up under: the full method
// name for interface calls, the function's qualified name for static calls,
// and "" for unresolved indirect calls.
func CalleeName(site ssa.CallInstruction) string {
	common := site.Common()
	if common.IsInvoke() {
		return common.Method.FullName()
	}
	if fn := common.StaticCallee(); fn != nil {
		return fn.String()
	}
	return ""
}

// calleeVariadic reports whether the called function takes variadic
// arguments.
func calleeVariadic(site ssa.CallInstruction) bool {
	common := site.Common()
	if common.IsInvoke() {
		sig, ok := common.Method.Type().(*types.Signature)
		return ok && sig.Variadic()
	}
	if fn := common.StaticCallee(); fn != nil {
		return fn.Signature.Variadic()
	}
	return false
}

// argsToRetFlows is the shared lowering of "every argument value flows into
// the result": one explicit record over the arguments and one implicit
// record from the call block's pc.
func argsToRetFlows(ctx infoflow.ContextID, site ssa.CallInstruction) infoflow.Flows {
	result := site.Value()
	if result == nil {
		return nil
	}
	exp := infoflow.NewFlowRecord(false, ctx)
	for _, arg := range lang.GetArgs(site) {
		exp.AddSourceValue(arg)
	}
	exp.AddSinkValue(result)

	imp := infoflow.NewFlowRecord(true, ctx)
	imp.AddSourceBlock(site.Block())
	imp.AddSinkValue(result)
	return infoflow.Flows{exp, imp}
}

// OverflowChecks models the inserted bound- and overflow-check helpers,
// recognizable by their name prefix: the checked arguments flow into the
// result, no memory moves.
type OverflowChecks struct{}

// CheckPrefix is the name prefix of inserted check helpers. Functions with
// this prefix are also exempt from source and sink identification.
const CheckPrefix = "____jf_check"

// Accept matches direct calls to functions named with CheckPrefix.
func (OverflowChecks) Accept(_ infoflow.ContextID, site ssa.CallInstruction) bool {
	fn := site.Common().StaticCallee()
	return fn != nil && strings.HasPrefix(fn.Name(), CheckPrefix)
}

// Process flows every argument into the result.
func (OverflowChecks) Process(ctx infoflow.ContextID, site ssa.CallInstruction) infoflow.Flows {
	return argsToRetFlows(ctx, site)
}

// ArgsToRet is the catch-all fallback: every argument value flows into the
// call's result, nothing flows through memory. It accepts every call.
type ArgsToRet struct{}

// Accept accepts everything.
func (ArgsToRet) Accept(infoflow.ContextID, ssa.CallInstruction) bool { return true }

// Process flows every argument into the result.
func (ArgsToRet) Process(ctx infoflow.ContextID, site ssa.CallInstruction) infoflow.Flows {
	return argsToRetFlows(ctx, site)
}

// TaintReachable is a maximally conservative model: everything reachable
// from any argument may flow into the result and into the memory reachable
// from every argument. It is not part of the default chain; register it
// ahead of ArgsToRet to trade precision for soundness on unknown calls.
type TaintReachable struct{}

// Accept accepts everything.
func (TaintReachable) Accept(infoflow.ContextID, ssa.CallInstruction) bool { return true }

// Process flows every argument (and what it reaches) into the result and
// into every argument's reachable memory.
func (TaintReachable) Process(ctx infoflow.ContextID, site ssa.CallInstruction) infoflow.Flows {
	args := lang.GetArgs(site)
	result := site.Value()
	if result == nil && len(args) == 0 {
		return nil
	}

	exp := infoflow.NewFlowRecord(false, ctx)
	imp := infoflow.NewFlowRecord(true, ctx)
	imp.AddSourceBlock(site.Block())
	for _, arg := range args {
		exp.AddSourceValue(arg)
		exp.AddSourceReachablePtr(arg)
		exp.AddSinkReachablePtr(arg)
		imp.AddSinkReachablePtr(arg)
	}
	if result != nil {
		exp.AddSinkValue(result)
		imp.AddSinkValue(result)
	}
	return infoflow.Flows{exp, imp}
}

// NoFlows accepts every call and produces nothing. Registering it ahead of
// ArgsToRet turns unknown externals into no-ops.
type NoFlows struct{}

// Accept accepts everything.
func (NoFlows) Accept(infoflow.ContextID, ssa.CallInstruction) bool { return true }

// Process produces no flows.
func (NoFlows) Process(infoflow.ContextID, ssa.CallInstruction) infoflow.Flows { return nil }
