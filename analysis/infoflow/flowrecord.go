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
	"strings"

	"golang.org/x/tools/go/ssa"
)

// A FlowRecord describes one batch of information flows discovered by the
// generator or a signature: taint flows from the join of all its sources
// into each of its sinks. Sources and sinks are split into channels that
// the lowering step expands differently:
//
//   - value: the taint of an ssa.Value itself
//   - block: the program-counter taint of a basic block (control dependence)
//   - direct-ptr: the taint of the memory locations a value points to
//   - reach-ptr: the taint of every memory location reachable from a value
//   - varg: the taint of a function's variadic parameter pack
//
// A record is either explicit (lowered into the "default" kinds) or
// implicit (lowered into the "implicit" kinds). The source and sink sides
// each carry their own calling context so that a single record can express
// a caller-to-callee or callee-to-caller flow.
type FlowRecord struct {
	implicit bool

	sourceCtx ContextID
	sinkCtx   ContextID

	sourceValues    []ssa.Value
	sourceBlocks    []*ssa.BasicBlock
	sourceDirectPtr []ssa.Value
	sourceReachPtr  []ssa.Value
	sourceVargs     []*ssa.Function

	sinkValues    []ssa.Value
	sinkBlocks    []*ssa.BasicBlock
	sinkDirectPtr []ssa.Value
	sinkReachPtr  []ssa.Value
	sinkVargs     []*ssa.Function
}

// Flows is the list of records a signature or an instruction produces.
type Flows []*FlowRecord

// NewFlowRecord returns an empty record whose sources and sinks both live
// in context ctx.
func NewFlowRecord(implicit bool, ctx ContextID) *FlowRecord {
	return NewFlowRecordBetween(implicit, ctx, ctx)
}

// NewFlowRecordBetween returns an empty record whose sources live in
// sourceCtx and whose sinks live in sinkCtx. Records crossing a call
// boundary use the caller's context on one side and the callee's on the
// other.
func NewFlowRecordBetween(implicit bool, sourceCtx, sinkCtx ContextID) *FlowRecord {
	return &FlowRecord{implicit: implicit, sourceCtx: sourceCtx, sinkCtx: sinkCtx}
}

// Implicit reports whether the record is lowered into the implicit kinds.
func (r *FlowRecord) Implicit() bool { return r.implicit }

// SourceContext returns the calling context of the record's sources.
func (r *FlowRecord) SourceContext() ContextID { return r.sourceCtx }

// SinkContext returns the calling context of the record's sinks.
func (r *FlowRecord) SinkContext() ContextID { return r.sinkCtx }

// AddSourceValue adds the taint of v itself as a source.
func (r *FlowRecord) AddSourceValue(v ssa.Value) *FlowRecord {
	r.sourceValues = append(r.sourceValues, v)
	return r
}

// AddSourceBlock adds the program-counter taint of b as a source.
func (r *FlowRecord) AddSourceBlock(b *ssa.BasicBlock) *FlowRecord {
	r.sourceBlocks = append(r.sourceBlocks, b)
	return r
}

// AddSourceDirectPtr adds the locations v points to as sources.
func (r *FlowRecord) AddSourceDirectPtr(v ssa.Value) *FlowRecord {
	r.sourceDirectPtr = append(r.sourceDirectPtr, v)
	return r
}

// AddSourceReachablePtr adds every location reachable from v as a source.
func (r *FlowRecord) AddSourceReachablePtr(v ssa.Value) *FlowRecord {
	r.sourceReachPtr = append(r.sourceReachPtr, v)
	return r
}

// AddSourceVarg adds the variadic parameter pack of fn as a source.
func (r *FlowRecord) AddSourceVarg(fn *ssa.Function) *FlowRecord {
	r.sourceVargs = append(r.sourceVargs, fn)
	return r
}

// AddSinkValue adds the taint of v itself as a sink.
func (r *FlowRecord) AddSinkValue(v ssa.Value) *FlowRecord {
	r.sinkValues = append(r.sinkValues, v)
	return r
}

// AddSinkBlock adds the program-counter taint of b as a sink.
func (r *FlowRecord) AddSinkBlock(b *ssa.BasicBlock) *FlowRecord {
	r.sinkBlocks = append(r.sinkBlocks, b)
	return r
}

// AddSinkDirectPtr adds the locations v points to as sinks.
func (r *FlowRecord) AddSinkDirectPtr(v ssa.Value) *FlowRecord {
	r.sinkDirectPtr = append(r.sinkDirectPtr, v)
	return r
}

// AddSinkReachablePtr adds every location reachable from v as a sink.
func (r *FlowRecord) AddSinkReachablePtr(v ssa.Value) *FlowRecord {
	r.sinkReachPtr = append(r.sinkReachPtr, v)
	return r
}

// AddSinkVarg adds the variadic parameter pack of fn as a sink.
func (r *FlowRecord) AddSinkVarg(fn *ssa.Function) *FlowRecord {
	r.sinkVargs = append(r.sinkVargs, fn)
	return r
}

// hasSources reports whether any source channel is non-empty.
func (r *FlowRecord) hasSources() bool {
	return len(r.sourceValues) > 0 || len(r.sourceBlocks) > 0 ||
		len(r.sourceDirectPtr) > 0 || len(r.sourceReachPtr) > 0 ||
		len(r.sourceVargs) > 0
}

// hasSinks reports whether any sink channel is non-empty.
func (r *FlowRecord) hasSinks() bool {
	return len(r.sinkValues) > 0 || len(r.sinkBlocks) > 0 ||
		len(r.sinkDirectPtr) > 0 || len(r.sinkReachPtr) > 0 ||
		len(r.sinkVargs) > 0
}

func writeValueNames(b *strings.Builder, label string, vs []ssa.Value) {
	for _, v := range vs {
		b.WriteString(" ")
		b.WriteString(label)
		b.WriteString(":")
		b.WriteString(v.Name())
	}
}

// String renders the record for debug logs: one line listing every source
// and sink with its channel.
func (r *FlowRecord) String() string {
	var b strings.Builder
	if r.implicit {
		b.WriteString("implicit")
	} else {
		b.WriteString("explicit")
	}
	fmt.Fprintf(&b, " flow [%d->%d]", r.sourceCtx, r.sinkCtx)
	b.WriteString(" from")
	writeValueNames(&b, "value", r.sourceValues)
	for _, blk := range r.sourceBlocks {
		fmt.Fprintf(&b, " block:%s.%d", blk.Parent().Name(), blk.Index)
	}
	writeValueNames(&b, "directptr", r.sourceDirectPtr)
	writeValueNames(&b, "reachptr", r.sourceReachPtr)
	for _, fn := range r.sourceVargs {
		b.WriteString(" varg:")
		b.WriteString(fn.Name())
	}
	b.WriteString(" to")
	writeValueNames(&b, "value", r.sinkValues)
	for _, blk := range r.sinkBlocks {
		fmt.Fprintf(&b, " block:%s.%d", blk.Parent().Name(), blk.Index)
	}
	writeValueNames(&b, "directptr", r.sinkDirectPtr)
	writeValueNames(&b, "reachptr", r.sinkReachPtr)
	for _, fn := range r.sinkVargs {
		b.WriteString(" varg:")
		b.WriteString(fn.Name())
	}
	return b.String()
}
