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

	"github.com/thinkmoore/go-infoflow/analysis/constraints"
)

// Solution answers taint queries against one solved constraint system.
//
// A least solution reads the summary-sink variables and treats anything the
// analysis never saw as untainted; a greatest solution reads the
// summary-source variables and treats anything it never saw as tainted.
// The constructors on Infoflow pick the maps and the default.
type Solution struct {
	ifa *Infoflow
	sol constraints.Solution

	// defaultTainted is the answer for program entities with no variable in
	// the solved system.
	defaultTainted bool

	valueMap map[ssa.Value]constraints.Element
	vargMap  map[*ssa.Function]constraints.Element
}

// IsTainted reports whether the value is tainted in any context.
func (s *Solution) IsTainted(v ssa.Value) bool {
	elem, ok := s.valueMap[v]
	if !ok {
		return s.defaultTainted
	}
	return s.sol.Subst(elem) == constraints.High
}

// IsVargTainted reports whether the function's variadic arguments are
// tainted in any context.
func (s *Solution) IsVargTainted(fn *ssa.Function) bool {
	elem, ok := s.vargMap[fn]
	if !ok {
		return s.defaultTainted
	}
	return s.sol.Subst(elem) == constraints.High
}

// IsDirectPtrTainted reports whether any abstract location the value may
// point to is tainted. A location the analysis has no variable for answers
// with the solution's default.
func (s *Solution) IsDirectPtrTainted(v ssa.Value) bool {
	return s.anyLocTainted(s.ifa.locsForValue(v))
}

// IsReachPtrTainted reports whether any abstract location reachable from
// the value by transitive dereference is tainted.
func (s *Solution) IsReachPtrTainted(v ssa.Value) bool {
	return s.anyLocTainted(s.ifa.reachableLocsForValue(v))
}

func (s *Solution) anyLocTainted(locs []*AbstractLoc) bool {
	for _, loc := range locs {
		elem, ok := s.ifa.locVars[loc]
		if !ok {
			if s.defaultTainted {
				return true
			}
			continue
		}
		if s.sol.Subst(elem) == constraints.High {
			return true
		}
	}
	return false
}
