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
	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/lang"
)

// constrainBuiltin models the Go builtins the SSA form keeps as calls.
// Memory-moving builtins follow the load and store rules, the pure ones
// follow the generic value rule, and an unknown builtin produces no flow
// and is reported at debug level.
func (g *flowGenerator) constrainBuiltin(blt *ssa.Builtin, site ssa.CallInstruction) {
	args := site.Common().Args
	result := site.Value()

	switch blt.Name() {
	case "copy":
		// copy(dst, src) moves src's storage into dst's storage; the count
		// result follows the value rule.
		if len(args) >= 2 {
			dst, src := args[0], args[1]
			exp := NewFlowRecord(false, g.ctx)
			exp.AddSourceDirectPtr(src)
			exp.AddSinkDirectPtr(dst)
			g.add(exp)

			imp := NewFlowRecord(true, g.ctx)
			imp.AddSourceBlock(site.Block())
			imp.AddSourceValue(src)
			imp.AddSourceValue(dst)
			imp.AddSinkDirectPtr(dst)
			g.add(imp)
		}
		if result != nil {
			g.operandsAndPCToValue(site, result)
		}

	case "append":
		// The result header derives from every operand; the result storage
		// holds both the base slice's elements and the additions. The SSA
		// builder packs the non-ellipsis form, so the additions arrive as a
		// slice whether or not the source used "...".
		if result == nil {
			return
		}
		g.operandsAndPCToValue(site, result)
		if len(args) > 0 {
			exp := NewFlowRecord(false, g.ctx)
			exp.AddSourceDirectPtr(args[0])
			for _, extra := range args[1:] {
				exp.AddSourceValue(extra)
				exp.AddSourceDirectPtr(extra)
			}
			exp.AddSinkDirectPtr(result)
			g.add(exp)
		}

	case "delete":
		// delete(m, k) encodes k into the map's storage by removal.
		if len(args) >= 2 {
			imp := NewFlowRecord(true, g.ctx)
			imp.AddSourceBlock(site.Block())
			imp.AddSourceValue(args[0])
			imp.AddSourceValue(args[1])
			imp.AddSinkDirectPtr(args[0])
			g.add(imp)
		}

	case "close":
		// Closing writes the closed flag into the channel's storage.
		if len(args) >= 1 {
			imp := NewFlowRecord(true, g.ctx)
			imp.AddSourceBlock(site.Block())
			imp.AddSourceValue(args[0])
			imp.AddSinkDirectPtr(args[0])
			g.add(imp)
		}

	case "len", "cap", "recover", "ssa:wrapnilchk":
		if result != nil {
			g.operandsAndPCToValue(site, result)
		}

	case "print", "println":
		// flow-less; whether printing leaks is a policy question, not a
		// semantics one
		g.ifa.logger.Tracef("builtin %s at %s treated as flow-less", blt.Name(), lang.FmtInstr(site))

	default:
		g.ifa.logger.Debugf("unhandled builtin %s at %s", blt.Name(), lang.FmtInstr(site))
	}
}
