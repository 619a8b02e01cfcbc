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
	"fmt"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/constraints"
)

// checkKind panics when a caller tries to seed taint under one of the
// reserved kinds; those belong to the constraint generator.
func checkKind(kind string) {
	switch kind {
	case constraints.KindDefault, constraints.KindDefaultSinks,
		constraints.KindImplicit, constraints.KindImplicitSinks:
		panic(fmt.Sprintf("infoflow: kind %q is reserved", kind))
	}
}

// SetTainted marks the value as a high source under the kind. The taint
// reaches every context the value is constrained in through the value's
// summary source variable.
func (ifa *Infoflow) SetTainted(kind string, v ssa.Value) {
	checkKind(kind)
	ifa.kit.AddConstraint(kind, ifa.kit.High(), ifa.getOrCreateSummarySourceValue(v))
}

// SetUntainted requires the value to be low under the kind, in every
// context, through the value's summary sink variable.
func (ifa *Infoflow) SetUntainted(kind string, v ssa.Value) {
	checkKind(kind)
	ifa.kit.AddConstraint(kind, ifa.getOrCreateSummarySinkValue(v), ifa.kit.Low())
}

// SetDirectPtrTainted marks every abstract location the value may point to
// as a high source under the kind.
func (ifa *Infoflow) SetDirectPtrTainted(kind string, v ssa.Value) {
	checkKind(kind)
	locs := ifa.locsForValue(v)
	if len(locs) == 0 {
		ifa.logger.Debugf("no abstract locations for %s; direct ptr taint dropped", v.Name())
		return
	}
	for _, loc := range locs {
		ifa.kit.AddConstraint(kind, ifa.kit.High(), ifa.getOrCreateLocElem(loc))
	}
}

// SetDirectPtrUntainted requires every abstract location the value may
// point to to be low under the kind.
func (ifa *Infoflow) SetDirectPtrUntainted(kind string, v ssa.Value) {
	checkKind(kind)
	locs := ifa.locsForValue(v)
	if len(locs) == 0 {
		ifa.logger.Debugf("no abstract locations for %s; direct ptr untaint dropped", v.Name())
		return
	}
	for _, loc := range locs {
		ifa.kit.AddConstraint(kind, ifa.getOrCreateLocElem(loc), ifa.kit.Low())
	}
}

// SetReachPtrTainted marks every abstract location reachable from the value
// by transitive dereference as a high source under the kind.
func (ifa *Infoflow) SetReachPtrTainted(kind string, v ssa.Value) {
	checkKind(kind)
	locs := ifa.reachableLocsForValue(v)
	if len(locs) == 0 {
		ifa.logger.Debugf("no abstract locations reachable from %s; reach ptr taint dropped", v.Name())
		return
	}
	for _, loc := range locs {
		ifa.kit.AddConstraint(kind, ifa.kit.High(), ifa.getOrCreateLocElem(loc))
	}
}

// SetReachPtrUntainted requires every abstract location reachable from the
// value by transitive dereference to be low under the kind.
func (ifa *Infoflow) SetReachPtrUntainted(kind string, v ssa.Value) {
	checkKind(kind)
	locs := ifa.reachableLocsForValue(v)
	if len(locs) == 0 {
		ifa.logger.Debugf("no abstract locations reachable from %s; reach ptr untaint dropped", v.Name())
		return
	}
	for _, loc := range locs {
		ifa.kit.AddConstraint(kind, ifa.getOrCreateLocElem(loc), ifa.kit.Low())
	}
}

// SetVargTainted marks the function's variadic arguments as a high source
// under the kind.
func (ifa *Infoflow) SetVargTainted(kind string, fn *ssa.Function) {
	checkKind(kind)
	ifa.kit.AddConstraint(kind, ifa.kit.High(), ifa.getOrCreateSummarySourceVarg(fn))
}

// SetVargUntainted requires the function's variadic arguments to be low
// under the kind.
func (ifa *Infoflow) SetVargUntainted(kind string, fn *ssa.Function) {
	checkKind(kind)
	ifa.kit.AddConstraint(kind, ifa.getOrCreateSummarySinkVarg(fn), ifa.kit.Low())
}

// TaintRecordSources seeds every source of the record as high under the
// kind. Block sources are skipped; program-counter variables belong to the
// generator.
func (ifa *Infoflow) TaintRecordSources(kind string, rec *FlowRecord) {
	for _, v := range rec.sourceValues {
		ifa.SetTainted(kind, v)
	}
	for _, v := range rec.sourceDirectPtr {
		ifa.SetDirectPtrTainted(kind, v)
	}
	for _, v := range rec.sourceReachPtr {
		ifa.SetReachPtrTainted(kind, v)
	}
	for _, fn := range rec.sourceVargs {
		ifa.SetVargTainted(kind, fn)
	}
}

// UntaintRecordSinks requires every sink of the record to be low under the
// kind. Block sinks are skipped.
func (ifa *Infoflow) UntaintRecordSinks(kind string, rec *FlowRecord) {
	for _, v := range rec.sinkValues {
		ifa.SetUntainted(kind, v)
	}
	for _, v := range rec.sinkDirectPtr {
		ifa.SetDirectPtrUntainted(kind, v)
	}
	for _, v := range rec.sinkReachPtr {
		ifa.SetReachPtrUntainted(kind, v)
	}
	for _, fn := range rec.sinkVargs {
		ifa.SetVargUntainted(kind, fn)
	}
}
