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

	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis/config"
	"github.com/thinkmoore/go-infoflow/analysis/constraints"
	"github.com/thinkmoore/go-infoflow/analysis/lang"
	"github.com/thinkmoore/go-infoflow/internal/funcutil"
)

// A Registrar models calls to functions without a body. Process returns the
// flow records describing how information moves through the call; it is
// fatal for a registrar to have no model for a call it is given (see
// signatures.Registrar for the standard chain).
type Registrar interface {
	Process(ctx ContextID, site ssa.CallInstruction) Flows
}

// SourcesAndSinks tells the analysis which program points are sinks. The
// predicates are consulted when the configuration sets drop-at-sinks: flows
// whose source is a sink variable are then diverted into the "*-sinks"
// constraint kinds. The sourcesink package provides the standard
// implementation.
type SourcesAndSinks interface {
	ValueIsSink(v ssa.Value) bool
	VargIsSink(fn *ssa.Function) bool
	DirectPtrIsSink(v ssa.Value) bool
	ReachPtrIsSink(v ssa.Value) bool
}

// noSinks is the SourcesAndSinks used when the client does not provide one.
type noSinks struct{}

func (noSinks) ValueIsSink(ssa.Value) bool     { return false }
func (noSinks) VargIsSink(*ssa.Function) bool  { return false }
func (noSinks) DirectPtrIsSink(ssa.Value) bool { return false }
func (noSinks) ReachPtrIsSink(ssa.Value) bool  { return false }

// Params groups the inputs of New.
type Params struct {
	Config  *config.Config
	Logger  *config.LogGroup
	Program *ssa.Program

	// Registrar models external calls. Required.
	Registrar Registrar

	// SourcesAndSinks identifies sink variables for drop-at-sinks. May be
	// nil, in which case nothing is treated as a sink.
	SourcesAndSinks SourcesAndSinks
}

// Infoflow owns the state of one whole-program analysis: the constraint
// kit, the per-context variable maps, the points-to results and the
// interprocedural driver. Build one with New, populate the constraint
// system with Analyze, then mark sources and sinks and query solutions.
//
// An Infoflow must be used from a single goroutine; only the solvers
// parallelize internally.
type Infoflow struct {
	cfg    *config.Config
	logger *config.LogGroup
	prog   *ssa.Program

	kit       *constraints.Kit
	registrar Registrar
	sinks     SourcesAndSinks
	contexts  *contextManager

	ptrRes *pointer.Result

	// interned abstract locations and per-value points-to caches
	locs       map[locKey]*AbstractLoc
	directLocs map[ssa.Value][]*AbstractLoc
	reachLocs  map[ssa.Value][]*AbstractLoc

	// constraint variables. Value and block variables are per-context;
	// memory locations are context-insensitive.
	valueVars map[ContextID]map[ssa.Value]constraints.Element
	blockVars map[ContextID]map[*ssa.BasicBlock]constraints.Element
	vargVars  map[ContextID]map[*ssa.Function]constraints.Element
	locVars   map[*AbstractLoc]constraints.Element

	// context-insensitive summary variables bracketing every per-context
	// variable of a value: summary-source ⊑ ctx-var ⊑ summary-sink. The
	// taint API writes to summary sources; least solutions read summary
	// sinks.
	summarySourceValues map[ssa.Value]constraints.Element
	summarySinkValues   map[ssa.Value]constraints.Element
	summarySourceVargs  map[*ssa.Function]constraints.Element
	summarySinkVargs    map[*ssa.Function]constraints.Element

	// interprocedural driver state
	records     map[AnalysisUnit]*analysisRecord
	dependents  map[AnalysisUnit]map[AnalysisUnit]bool
	queue       []AnalysisUnit
	queued      map[AnalysisUnit]bool
	analyzedFns map[*ssa.Function]bool
	signatured  map[siteCtxKey]bool

	postDoms *lang.PostDomCache
}

// New builds an analysis for the program: it runs the points-to analysis
// (values, indirect queries and call graph) and initializes an empty
// constraint system. No constraints are generated until Analyze.
func New(params Params) (*Infoflow, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("infoflow: missing config")
	}
	if params.Program == nil {
		return nil, fmt.Errorf("infoflow: missing program")
	}
	if params.Registrar == nil {
		return nil, fmt.Errorf("infoflow: missing signature registrar")
	}
	logger := params.Logger
	if logger == nil {
		logger = config.NewLogGroup(params.Config)
	}
	sinks := params.SourcesAndSinks
	if sinks == nil {
		sinks = noSinks{}
	}

	logger.Infof("Gathering values and starting pointer analysis...")
	ptrRes, err := runPointerAnalysis(params.Program)
	if err != nil {
		return nil, fmt.Errorf("infoflow: %w", err)
	}
	logger.Infof("Pointer analysis terminated")

	kit := constraints.NewKit()
	kit.Workers = params.Config.ParallelWorkers

	return &Infoflow{
		cfg:       params.Config,
		logger:    logger,
		prog:      params.Program,
		kit:       kit,
		registrar: params.Registrar,
		sinks:     sinks,
		contexts:  newContextManager(params.Config.ContextStrategy),
		ptrRes:    ptrRes,

		locs:       make(map[locKey]*AbstractLoc),
		directLocs: make(map[ssa.Value][]*AbstractLoc),
		reachLocs:  make(map[ssa.Value][]*AbstractLoc),

		valueVars: make(map[ContextID]map[ssa.Value]constraints.Element),
		blockVars: make(map[ContextID]map[*ssa.BasicBlock]constraints.Element),
		vargVars:  make(map[ContextID]map[*ssa.Function]constraints.Element),
		locVars:   make(map[*AbstractLoc]constraints.Element),

		summarySourceValues: make(map[ssa.Value]constraints.Element),
		summarySinkValues:   make(map[ssa.Value]constraints.Element),
		summarySourceVargs:  make(map[*ssa.Function]constraints.Element),
		summarySinkVargs:    make(map[*ssa.Function]constraints.Element),

		records:     make(map[AnalysisUnit]*analysisRecord),
		dependents:  make(map[AnalysisUnit]map[AnalysisUnit]bool),
		queued:      make(map[AnalysisUnit]bool),
		analyzedFns: make(map[*ssa.Function]bool),
		signatured:  make(map[siteCtxKey]bool),

		postDoms: lang.NewPostDomCache(),
	}, nil
}

// Kit exposes the underlying constraint kit, mainly for statistics and
// tests. Adding constraints directly bypasses the reserved-kind checks of
// the taint API.
func (ifa *Infoflow) Kit() *constraints.Kit { return ifa.kit }

// Program returns the analyzed program.
func (ifa *Infoflow) Program() *ssa.Program { return ifa.prog }

// PointerResult returns the points-to analysis results, including the call
// graph.
func (ifa *Infoflow) PointerResult() *pointer.Result { return ifa.ptrRes }

// kindFromImplicitSink selects the constraint kind a lowered flow belongs
// to.
func kindFromImplicitSink(implicit, sink bool) string {
	if implicit {
		if sink {
			return constraints.KindImplicitSinks
		}
		return constraints.KindImplicit
	}
	if sink {
		return constraints.KindDefaultSinks
	}
	return constraints.KindDefault
}

func valueDesc(v ssa.Value) string {
	if fn := v.Parent(); fn != nil {
		return fmt.Sprintf("%s in %s", v.Name(), fn.String())
	}
	return v.Name()
}

// getOrCreateValueElem returns the constraint variable of v in context ctx.
// The first use of a value in a context hooks the new variable to the
// value's summary variables in the "default" kind.
func (ifa *Infoflow) getOrCreateValueElem(ctx ContextID, v ssa.Value) constraints.Element {
	ctxMap, ok := ifa.valueVars[ctx]
	if !ok {
		ctxMap = make(map[ssa.Value]constraints.Element)
		ifa.valueVars[ctx] = ctxMap
	}
	if elem, ok := ctxMap[v]; ok {
		return elem
	}
	elem := ifa.kit.NewVar(valueDesc(v))
	ctxMap[v] = elem
	ifa.kit.AddConstraint(constraints.KindDefault, ifa.getOrCreateSummarySourceValue(v), elem)
	ifa.kit.AddConstraint(constraints.KindDefault, elem, ifa.getOrCreateSummarySinkValue(v))
	return elem
}

// getOrCreateBlockElem returns the program-counter variable of block b in
// context ctx. Blocks have no summary variables: they are never queried or
// tainted directly, only joined into the values they control.
func (ifa *Infoflow) getOrCreateBlockElem(ctx ContextID, b *ssa.BasicBlock) constraints.Element {
	ctxMap, ok := ifa.blockVars[ctx]
	if !ok {
		ctxMap = make(map[*ssa.BasicBlock]constraints.Element)
		ifa.blockVars[ctx] = ctxMap
	}
	if elem, ok := ctxMap[b]; ok {
		return elem
	}
	elem := ifa.kit.NewVar(fmt.Sprintf("pc of block %d in %s", b.Index, b.Parent().String()))
	ctxMap[b] = elem
	return elem
}

// getOrCreateVargElem returns the variadic-pack variable of fn in context
// ctx, hooked to the function's varargs summary variables on creation.
func (ifa *Infoflow) getOrCreateVargElem(ctx ContextID, fn *ssa.Function) constraints.Element {
	ctxMap, ok := ifa.vargVars[ctx]
	if !ok {
		ctxMap = make(map[*ssa.Function]constraints.Element)
		ifa.vargVars[ctx] = ctxMap
	}
	if elem, ok := ctxMap[fn]; ok {
		return elem
	}
	elem := ifa.kit.NewVar(fn.String() + ":varargs")
	ctxMap[fn] = elem
	ifa.kit.AddConstraint(constraints.KindDefault, ifa.getOrCreateSummarySourceVarg(fn), elem)
	ifa.kit.AddConstraint(constraints.KindDefault, elem, ifa.getOrCreateSummarySinkVarg(fn))
	return elem
}

// getOrCreateLocElem returns the variable of an abstract memory location.
// Locations are context-insensitive and have no summary variables; the
// taint API constrains them directly.
func (ifa *Infoflow) getOrCreateLocElem(loc *AbstractLoc) constraints.Element {
	if elem, ok := ifa.locVars[loc]; ok {
		return elem
	}
	elem := ifa.kit.NewVar("loc " + loc.String())
	ifa.locVars[loc] = elem
	return elem
}

func (ifa *Infoflow) getOrCreateSummarySourceValue(v ssa.Value) constraints.Element {
	if elem, ok := ifa.summarySourceValues[v]; ok {
		return elem
	}
	elem := ifa.kit.NewVar("source of " + valueDesc(v))
	ifa.summarySourceValues[v] = elem
	return elem
}

func (ifa *Infoflow) getOrCreateSummarySinkValue(v ssa.Value) constraints.Element {
	if elem, ok := ifa.summarySinkValues[v]; ok {
		return elem
	}
	elem := ifa.kit.NewVar("sink of " + valueDesc(v))
	ifa.summarySinkValues[v] = elem
	return elem
}

func (ifa *Infoflow) getOrCreateSummarySourceVarg(fn *ssa.Function) constraints.Element {
	if elem, ok := ifa.summarySourceVargs[fn]; ok {
		return elem
	}
	elem := ifa.kit.NewVar("source of " + fn.String() + ":varargs")
	ifa.summarySourceVargs[fn] = elem
	return elem
}

func (ifa *Infoflow) getOrCreateSummarySinkVarg(fn *ssa.Function) constraints.Element {
	if elem, ok := ifa.summarySinkVargs[fn]; ok {
		return elem
	}
	elem := ifa.kit.NewVar("sink of " + fn.String() + ":varargs")
	ifa.summarySinkVargs[fn] = elem
	return elem
}

// constrainValue adds source ⊑ var(ctx, v) under the kind selected by
// (implicit, sink).
func (ifa *Infoflow) constrainValue(implicit, sink bool, ctx ContextID, v ssa.Value, source constraints.Element) {
	ifa.kit.AddConstraint(kindFromImplicitSink(implicit, sink), source, ifa.getOrCreateValueElem(ctx, v))
}

func (ifa *Infoflow) constrainBlock(implicit, sink bool, ctx ContextID, b *ssa.BasicBlock, source constraints.Element) {
	ifa.kit.AddConstraint(kindFromImplicitSink(implicit, sink), source, ifa.getOrCreateBlockElem(ctx, b))
}

func (ifa *Infoflow) constrainVarg(implicit, sink bool, ctx ContextID, fn *ssa.Function, source constraints.Element) {
	ifa.kit.AddConstraint(kindFromImplicitSink(implicit, sink), source, ifa.getOrCreateVargElem(ctx, fn))
}

func (ifa *Infoflow) constrainLoc(implicit, sink bool, loc *AbstractLoc, source constraints.Element) {
	ifa.kit.AddConstraint(kindFromImplicitSink(implicit, sink), source, ifa.getOrCreateLocElem(loc))
}

// constrainFlowRecord lowers one record into subset constraints: the join
// of all sources flows into each sink. When drop-at-sinks is on, sources
// that are sink variables are joined separately and their flows land in the
// "*-sinks" kinds, so forward propagation can be cut at sinks. Sinks are
// never split.
func (ifa *Infoflow) constrainFlowRecord(rec *FlowRecord) {
	dropAtSinks := ifa.cfg.DropAtSinks

	var sources, sinkSources []constraints.Element

	for _, v := range rec.sourceValues {
		elem := ifa.getOrCreateValueElem(rec.sourceCtx, v)
		if dropAtSinks && ifa.sinks.ValueIsSink(v) {
			sinkSources = append(sinkSources, elem)
		} else {
			sources = append(sources, elem)
		}
	}
	for _, b := range rec.sourceBlocks {
		sources = append(sources, ifa.getOrCreateBlockElem(rec.sourceCtx, b))
	}
	for _, fn := range rec.sourceVargs {
		elem := ifa.getOrCreateVargElem(rec.sourceCtx, fn)
		if dropAtSinks && ifa.sinks.VargIsSink(fn) {
			sinkSources = append(sinkSources, elem)
		} else {
			sources = append(sources, elem)
		}
	}

	// Memory sources are gathered as location sets first so that a location
	// shared by several pointers contributes one element.
	var sourceLocs, sinkSourceLocs []*AbstractLoc
	seenSource := make(map[*AbstractLoc]bool)
	seenSinkSource := make(map[*AbstractLoc]bool)
	addLocs := func(locs []*AbstractLoc, isSink bool) {
		for _, loc := range locs {
			if isSink {
				if !seenSinkSource[loc] {
					seenSinkSource[loc] = true
					sinkSourceLocs = append(sinkSourceLocs, loc)
				}
			} else if !seenSource[loc] {
				seenSource[loc] = true
				sourceLocs = append(sourceLocs, loc)
			}
		}
	}
	for _, v := range rec.sourceDirectPtr {
		addLocs(ifa.locsForValue(v), dropAtSinks && ifa.sinks.DirectPtrIsSink(v))
	}
	for _, v := range rec.sourceReachPtr {
		addLocs(ifa.reachableLocsForValue(v), dropAtSinks && ifa.sinks.ReachPtrIsSink(v))
	}
	for _, loc := range sourceLocs {
		sources = append(sources, ifa.getOrCreateLocElem(loc))
	}
	for _, loc := range sinkSourceLocs {
		sinkSources = append(sinkSources, ifa.getOrCreateLocElem(loc))
	}

	regFlow := len(sources) > 0
	sinkFlow := len(sinkSources) > 0
	if !regFlow && !sinkFlow {
		return
	}

	var sourceElem, sinkSourceElem constraints.Element
	if regFlow {
		sourceElem = ifa.kit.JoinMany(sources)
	}
	if sinkFlow {
		sinkSourceElem = ifa.kit.JoinMany(sinkSources)
	}

	implicit := rec.implicit

	for _, v := range rec.sinkValues {
		if regFlow {
			ifa.constrainValue(implicit, false, rec.sinkCtx, v, sourceElem)
		}
		if sinkFlow {
			ifa.constrainValue(implicit, true, rec.sinkCtx, v, sinkSourceElem)
		}
	}
	for _, b := range rec.sinkBlocks {
		if regFlow {
			ifa.constrainBlock(implicit, false, rec.sinkCtx, b, sourceElem)
		}
		if sinkFlow {
			ifa.constrainBlock(implicit, true, rec.sinkCtx, b, sinkSourceElem)
		}
	}
	for _, fn := range rec.sinkVargs {
		if regFlow {
			ifa.constrainVarg(implicit, false, rec.sinkCtx, fn, sourceElem)
		}
		if sinkFlow {
			ifa.constrainVarg(implicit, true, rec.sinkCtx, fn, sinkSourceElem)
		}
	}

	var sinkLocs []*AbstractLoc
	seenSink := make(map[*AbstractLoc]bool)
	for _, v := range rec.sinkDirectPtr {
		for _, loc := range ifa.locsForValue(v) {
			if !seenSink[loc] {
				seenSink[loc] = true
				sinkLocs = append(sinkLocs, loc)
			}
		}
	}
	for _, v := range rec.sinkReachPtr {
		for _, loc := range ifa.reachableLocsForValue(v) {
			if !seenSink[loc] {
				seenSink[loc] = true
				sinkLocs = append(sinkLocs, loc)
			}
		}
	}
	for _, loc := range sinkLocs {
		if regFlow {
			ifa.constrainLoc(implicit, false, loc, sourceElem)
		}
		if sinkFlow {
			ifa.constrainLoc(implicit, true, loc, sinkSourceElem)
		}
	}
}

// reservedLeastKinds appends the reserved kinds a least solution must
// include for the requested precision, skipping kinds no constraint was
// ever added to (solving an absent kind is fatal in the kit).
func (ifa *Infoflow) reservedLeastKinds(kinds []string, implicit, sinks bool) []string {
	all := make([]string, 0, len(kinds)+4)
	all = append(all, kinds...)
	appendKind := func(kind string) {
		if ifa.kit.ConstraintCount(kind) > 0 {
			all = append(all, kind)
		}
	}
	appendKind(constraints.KindDefault)
	if sinks {
		appendKind(constraints.KindDefaultSinks)
	}
	if implicit {
		appendKind(constraints.KindImplicit)
		if sinks {
			appendKind(constraints.KindImplicitSinks)
		}
	}
	return all
}

// LeastSolution solves the given kinds together with the reserved kinds
// selected by implicit and sinks, and wraps the result for forward taint
// queries: values not constrained to High report untainted, and value
// queries read the summary-sink variables.
func (ifa *Infoflow) LeastSolution(kinds []string, implicit, sinks bool) *Solution {
	sol := ifa.kit.LeastSolution(ifa.reservedLeastKinds(kinds, implicit, sinks))
	return &Solution{
		ifa:            ifa,
		sol:            sol,
		defaultTainted: false,
		valueMap:       ifa.summarySinkValues,
		vargMap:        ifa.summarySinkVargs,
	}
}

// GreatestSolution solves the given kinds together with the "default" and
// "default-sinks" kinds (and the implicit pair when implicit is set), and
// wraps the result for backward untaint queries: values not constrained to
// Low report tainted, and value queries read the summary-source variables.
func (ifa *Infoflow) GreatestSolution(kinds []string, implicit bool) *Solution {
	all := make([]string, 0, len(kinds)+4)
	all = append(all, kinds...)
	appendKind := func(kind string) {
		if ifa.kit.ConstraintCount(kind) > 0 {
			all = append(all, kind)
		}
	}
	appendKind(constraints.KindDefault)
	appendKind(constraints.KindDefaultSinks)
	if implicit {
		appendKind(constraints.KindImplicit)
		appendKind(constraints.KindImplicitSinks)
	}
	sol := ifa.kit.GreatestSolution(all)
	return &Solution{
		ifa:            ifa,
		sol:            sol,
		defaultTainted: true,
		valueMap:       ifa.summarySourceValues,
		vargMap:        ifa.summarySourceVargs,
	}
}

// SolveMT precomputes and caches both the least and the greatest solution
// of one kind in parallel, releasing the kind's raw constraints.
func (ifa *Infoflow) SolveMT(kind string) {
	ifa.kit.SolveMT(kind)
}

// SolveLeastMT bulk-solves one least solution per kind, each merged with
// the shared "default" baseline (and "default-sinks" when useDefaultSinks),
// distributing the merge work over the configured number of workers. The
// baselines are solved first if they have not been already.
func (ifa *Infoflow) SolveLeastMT(kinds []string, useDefaultSinks bool) []*Solution {
	baseline := []string{constraints.KindDefault}
	useDefaultSinks = useDefaultSinks && ifa.kit.ConstraintCount(constraints.KindDefaultSinks) > 0
	if useDefaultSinks {
		baseline = append(baseline, constraints.KindDefaultSinks)
	}
	// LeastSolution caches per kind, so this only solves what is missing.
	ifa.kit.LeastSolution(baseline)

	partials := ifa.kit.SolveLeastMT(kinds, useDefaultSinks)
	return funcutil.Map(partials, func(p *constraints.PartialSolution) *Solution {
		return &Solution{
			ifa:            ifa,
			sol:            p,
			defaultTainted: false,
			valueMap:       ifa.summarySinkValues,
			vargMap:        ifa.summarySinkVargs,
		}
	})
}
