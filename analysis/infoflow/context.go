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

	"github.com/thinkmoore/go-infoflow/analysis/config"
)

// ContextID identifies an interned calling context. The zero value is the
// empty (default) context, used for the program entry points and for call
// edges the configuration collapses.
type ContextID int32

// DefaultContext is the empty calling context.
const DefaultContext ContextID = 0

// contextDepth is the sensitivity bound: a context keeps the most recent
// contextDepth call frames.
const contextDepth = 1

// A callFrame is one entry of a calling context. Under the caller strategy
// a frame is the calling function; under the call-site strategy it is the
// call instruction itself, which distinguishes several calls made from the
// same caller.
type callFrame interface {
	frameKey() string
	frameName() string
}

type callerFrame struct {
	fn *ssa.Function
}

func (f callerFrame) frameKey() string  { return fmt.Sprintf("%p", f.fn) }
func (f callerFrame) frameName() string { return f.fn.String() }

type callSiteFrame struct {
	site ssa.CallInstruction
}

func (f callSiteFrame) frameKey() string { return fmt.Sprintf("%p", f.site) }

func (f callSiteFrame) frameName() string {
	if parent := f.site.Parent(); parent != nil {
		return parent.String()
	}
	return "<unknown caller>"
}

// contextManager interns calling contexts and hands out their ContextIDs.
// Interning guarantees that extending two equal contexts with the same
// frame yields the same ContextID, so the per-context variable maps agree
// across call sites. The manager is only used from the single-goroutine
// driver and needs no locking.
type contextManager struct {
	strategy string
	ids      map[string]ContextID
	chains   [][]callFrame
}

func newContextManager(strategy string) *contextManager {
	m := &contextManager{
		strategy: strategy,
		ids:      map[string]ContextID{"": DefaultContext},
	}
	// chain 0 is the empty context
	m.chains = append(m.chains, nil)
	return m
}

func chainKey(chain []callFrame) string {
	keys := make([]string, len(chain))
	for i, f := range chain {
		keys[i] = f.frameKey()
	}
	return strings.Join(keys, ".")
}

// extend returns the context for the body of a function called from caller
// at site, when the call itself was analyzed in ctx: the frame for the call
// is appended and the oldest frames are dropped to keep at most
// contextDepth of them.
func (m *contextManager) extend(ctx ContextID, caller *ssa.Function, site ssa.CallInstruction) ContextID {
	var frame callFrame
	if m.strategy == config.ContextStrategyCallSite {
		frame = callSiteFrame{site: site}
	} else {
		frame = callerFrame{fn: caller}
	}

	old := m.chains[ctx]
	chain := make([]callFrame, 0, len(old)+1)
	chain = append(chain, old...)
	chain = append(chain, frame)
	if len(chain) > contextDepth {
		chain = chain[len(chain)-contextDepth:]
	}

	key := chainKey(chain)
	if id, ok := m.ids[key]; ok {
		return id
	}
	id := ContextID(len(m.chains))
	m.ids[key] = id
	m.chains = append(m.chains, chain)
	return id
}

// numContexts returns how many distinct contexts have been interned,
// counting the default context.
func (m *contextManager) numContexts() int { return len(m.chains) }

// describe renders a context for logs, e.g. "[main.handler]".
func (m *contextManager) describe(ctx ContextID) string {
	chain := m.chains[ctx]
	if len(chain) == 0 {
		return "[]"
	}
	names := make([]string, len(chain))
	for i, f := range chain {
		names[i] = f.frameName()
	}
	return "[" + strings.Join(names, " > ") + "]"
}
