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

/*
Package infoflow implements a whole-program, context-sensitive information
flow analysis over the SSA form built by golang.org/x/tools/go/ssa. The
analysis tracks a two-point lattice (Low = untainted, High = tainted) and is
1-call-site sensitive: every SSA value is modelled by one constraint
variable per calling context, while abstract memory locations and the
per-function varargs variables are context-insensitive.

Assuming a built ssa.Program prog, a configuration cfg and a logger log,
an analysis is constructed and run with:

	ifa, err := infoflow.New(infoflow.Params{
		Config:          cfg,
		Logger:          log,
		Program:         prog,
		Registrar:       signatures.Default(),
		SourcesAndSinks: srcsnk,
	})
	...
	ifa.Analyze()

Analyze walks every reachable function once per calling context and turns
each instruction into [FlowRecord]s, which are immediately lowered into
subset constraints. Calls to functions without a body are modelled by the
signature library (the Registrar). After Analyze returns, clients mark
sources and sinks under their own constraint kinds with [Infoflow.SetTainted]
and [Infoflow.SetUntainted] (and the direct-ptr, reach-ptr and varargs
variants), then query a [Solution]:

	ifa.SetTainted("my-query", v)
	sol := ifa.LeastSolution([]string{"my-query"}, false, false)
	if sol.IsTainted(v2) { ... }

The "default" kind carries the explicit value flows of the program, the
"implicit" kind the control-dependence flows; when the configuration sets
drop-at-sinks, flows out of sink variables move to the "default-sinks" and
"implicit-sinks" kinds so that forward propagation can be cut at sinks.
Higher-level source→sink queries are provided by the slice package.
*/
package infoflow
