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

package lang

import (
	"golang.org/x/tools/go/ssa"
)

// IsExternal returns true if function is external (in ssa, when Blocks is nil).
// External functions have no body to analyze; flows through them must come
// from a signature.
func IsExternal(function *ssa.Function) bool {
	return function.Blocks == nil
}

// IterateInstructions applies f to every instruction in the function, in block order.
// The index is the instruction's position within its block. External functions are
// silently skipped.
func IterateInstructions(function *ssa.Function, f func(index int, instruction ssa.Instruction)) {
	if function.Blocks == nil {
		return
	}

	for _, block := range function.Blocks {
		for index, instruction := range block.Instrs {
			f(index, instruction)
		}
	}
}

// IterateValues applies f to every value in the function: parameters, free variables,
// then every operand and result of every instruction. It may apply f several times to
// the same value. For values originating from an instruction, index is the instruction's
// position within its block; otherwise index is -1.
func IterateValues(function *ssa.Function, f func(index int, value ssa.Value)) {
	for _, param := range function.Params {
		f(-1, param)
	}

	for _, freeVar := range function.FreeVars {
		f(-1, freeVar)
	}

	IterateInstructions(function, func(index int, i ssa.Instruction) {
		var operands []*ssa.Value
		operands = i.Operands(operands)
		for _, operand := range operands {
			f(index, *operand)
		}
		if v, ok := i.(ssa.Value); ok {
			f(index, v)
		}
	})
}
