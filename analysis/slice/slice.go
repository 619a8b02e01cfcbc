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

// Package slice relates specific sources to specific sinks over a generated
// constraint system. A program entity is in a slice when the slice's
// sources may taint it and it still flows into one of the slice's sinks:
// forward reachability intersected with backward reachability.
package slice

import (
	"fmt"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/infoflow"
)

// A Slice relates the sources of one flow record to its sinks. The record's
// sources are tainted under the kind name+"-sources" and its sinks
// untainted under name+"-sinks"; names must be unique within one analysis.
//
// Solutions are computed on first query and solving locks the kinds, so
// build every slice before querying any of them.
type Slice struct {
	ifa      *infoflow.Infoflow
	name     string
	implicit bool

	forward  *infoflow.Solution
	backward *infoflow.Solution
}

// New seeds a slice from the record. With implicit set, membership also
// follows control dependence.
func New(ifa *infoflow.Infoflow, name string, rec *infoflow.FlowRecord, implicit bool) *Slice {
	s := &Slice{ifa: ifa, name: name, implicit: implicit}
	ifa.TaintRecordSources(s.sourceKind(), rec)
	ifa.UntaintRecordSinks(s.sinkKind(), rec)
	ensureKind(ifa, s.sourceKind())
	ensureKind(ifa, s.sinkKind())
	return s
}

// Name returns the name the slice's kinds are derived from.
func (s *Slice) Name() string { return s.name }

func (s *Slice) sourceKind() string { return s.name + "-sources" }
func (s *Slice) sinkKind() string   { return s.name + "-sinks" }

// Forward returns the least solution under the slice's source kind: what
// the sources may taint.
func (s *Slice) Forward() *infoflow.Solution {
	if s.forward == nil {
		s.forward = s.ifa.LeastSolution([]string{s.sourceKind()}, s.implicit, false)
	}
	return s.forward
}

// Backward returns the greatest solution under the slice's sink kind:
// everything that flows into one of the sinks is forced low.
func (s *Slice) Backward() *infoflow.Solution {
	if s.backward == nil {
		s.backward = s.ifa.GreatestSolution([]string{s.sinkKind()}, s.implicit)
	}
	return s.backward
}

// ValueInSlice reports whether the value lies between the slice's sources
// and sinks: tainted forward, forced low backward.
func (s *Slice) ValueInSlice(v ssa.Value) bool {
	return s.Forward().IsTainted(v) && !s.Backward().IsTainted(v)
}

// DirectPtrInSlice reports whether memory the value points to lies in the
// slice.
func (s *Slice) DirectPtrInSlice(v ssa.Value) bool {
	return s.Forward().IsDirectPtrTainted(v) && !s.Backward().IsDirectPtrTainted(v)
}

// ReachPtrInSlice reports whether memory reachable from the value lies in
// the slice.
func (s *Slice) ReachPtrInSlice(v ssa.Value) bool {
	return s.Forward().IsReachPtrTainted(v) && !s.Backward().IsReachPtrTainted(v)
}

// VargInSlice reports whether the function's variadic pack lies in the
// slice.
func (s *Slice) VargInSlice(fn *ssa.Function) bool {
	return s.Forward().IsVargTainted(fn) && !s.Backward().IsVargTainted(fn)
}

// A MultiSlice varies the source across many queries that share one set of
// sinks: each candidate source seeds its own uniquely numbered kind, every
// forward solution comes out of one bulk parallel solve, and a single
// backward solution is shared by all queries.
//
// MultiSlice follows explicit flows only: the bulk solver's baseline does
// not carry the implicit kinds.
type MultiSlice struct {
	ifa  *infoflow.Infoflow
	name string

	kinds    []string
	forwards []*infoflow.Solution
	backward *infoflow.Solution
}

// NewMulti seeds one source kind per record in sources and a shared sink
// kind from sinks.
func NewMulti(ifa *infoflow.Infoflow, name string, sources []*infoflow.FlowRecord, sinks *infoflow.FlowRecord) *MultiSlice {
	m := &MultiSlice{ifa: ifa, name: name}
	for i, rec := range sources {
		kind := fmt.Sprintf("%s-sources-%d", name, i)
		ifa.TaintRecordSources(kind, rec)
		ensureKind(ifa, kind)
		m.kinds = append(m.kinds, kind)
	}
	ifa.UntaintRecordSinks(m.sinkKind(), sinks)
	ensureKind(ifa, m.sinkKind())
	return m
}

func (m *MultiSlice) sinkKind() string { return m.name + "-sinks" }

// NumSources returns the number of candidate sources.
func (m *MultiSlice) NumSources() int { return len(m.kinds) }

// Solve computes all forward solutions in bulk and the shared backward
// solution. The membership predicates call it on first use.
func (m *MultiSlice) Solve() {
	if m.forwards == nil {
		m.forwards = m.ifa.SolveLeastMT(m.kinds, false)
	}
	if m.backward == nil {
		m.backward = m.ifa.GreatestSolution([]string{m.sinkKind()}, false)
	}
}

// Forward returns the least solution of the i-th source.
func (m *MultiSlice) Forward(i int) *infoflow.Solution {
	m.Solve()
	return m.forwards[i]
}

// Backward returns the shared backward solution.
func (m *MultiSlice) Backward() *infoflow.Solution {
	m.Solve()
	return m.backward
}

// ValueInSlice reports whether the value lies between the i-th source and
// the shared sinks.
func (m *MultiSlice) ValueInSlice(i int, v ssa.Value) bool {
	return m.Forward(i).IsTainted(v) && !m.Backward().IsTainted(v)
}

// DirectPtrInSlice reports whether memory the value points to lies between
// the i-th source and the shared sinks.
func (m *MultiSlice) DirectPtrInSlice(i int, v ssa.Value) bool {
	return m.Forward(i).IsDirectPtrTainted(v) && !m.Backward().IsDirectPtrTainted(v)
}

// ReachPtrInSlice reports whether memory reachable from the value lies
// between the i-th source and the shared sinks.
func (m *MultiSlice) ReachPtrInSlice(i int, v ssa.Value) bool {
	return m.Forward(i).IsReachPtrTainted(v) && !m.Backward().IsReachPtrTainted(v)
}

// VargInSlice reports whether the function's variadic pack lies between the
// i-th source and the shared sinks.
func (m *MultiSlice) VargInSlice(i int, fn *ssa.Function) bool {
	return m.Forward(i).IsVargTainted(fn) && !m.Backward().IsVargTainted(fn)
}

// ensureKind materializes a kind that received no constraints, so that
// solving it is not a contract violation; a seed can resolve to nothing
// when the points-to sets behind it are empty.
func ensureKind(ifa *infoflow.Infoflow, kind string) {
	kit := ifa.Kit()
	if kit.ConstraintCount(kind) == 0 {
		kit.AddConstraint(kind, kit.Low(), kit.NewVar("seed of "+kind))
	}
}
