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
	"go/token"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// For methods without a package, f.String() contains something like this:
// (*net/http.requestBodyReadError).Error
// (encoding/json.jsonError).Error

func packageFromErrorName(name string) string {
	if !strings.HasSuffix(name, ").Error") {
		return ""
	}
	name = name[:len(name)-7]
	if !strings.HasPrefix(name, "(") {
		return ""
	}
	name = name[1:]
	if strings.HasPrefix(name, "*") {
		name = name[1:]
	}
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[:i]
}

// PackageNameFromFunction returns the best possible package path for a ssa.Function.
// If the function has a package, use that. If the function doesn't have a package,
// check if it's a method and use the package associated with its object. If none of
// those are true, try to extract the package name from the error-method formats above.
// Returns "" when all of that fails.
func PackageNameFromFunction(f *ssa.Function) string {
	if f == nil {
		return ""
	}

	pkg := f.Package()
	if pkg != nil {
		return pkg.Pkg.Path()
	}

	// this is a method, so need to get its Object first
	if f.Object() != nil {
		obj := f.Object().Pkg()
		if obj != nil {
			return obj.Path()
		}

		name := packageFromErrorName(f.String())
		if name != "" {
			return name
		}
	}

	return ""
}

// DummyPos is a dummy position returned to indicate that no position could be found.
var DummyPos = token.Position{
	Filename: "unknown",
	Offset:   -1,
	Line:     -1,
	Column:   -1,
}

// SafeFunctionPos returns the position of the function, or DummyPos if the
// function's program has no file set.
func SafeFunctionPos(function *ssa.Function) token.Position {
	if function.Prog != nil && function.Prog.Fset != nil {
		return function.Prog.Fset.Position(function.Pos())
	}
	return DummyPos
}

// SafeInstructionPos returns the position of the instruction, or DummyPos if the
// enclosing function's program has no file set.
func SafeInstructionPos(instruction ssa.Instruction) token.Position {
	if f := instruction.Parent(); f != nil && f.Prog != nil && f.Prog.Fset != nil {
		return f.Prog.Fset.Position(instruction.Pos())
	}
	return DummyPos
}
