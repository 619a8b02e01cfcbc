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

package main

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/term"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/thinkmoore/go-infoflow/analysis/constraints"
	"github.com/thinkmoore/go-infoflow/analysis/slice"
	"github.com/thinkmoore/go-infoflow/analysis/sourcesink"
	"github.com/thinkmoore/go-infoflow/internal/funcutil"
)

const (
	cmdExitName    = "exit"
	cmdHelpName    = "help"
	cmdListName    = "list"
	cmdQueryName   = "query"
	cmdSliceName   = "slice"
	cmdSolveName   = "solve"
	cmdStatsName   = "stats"
	cmdTaintName   = "taint"
	cmdUntaintName = "untaint"
)

// Command contains the parsed arguments and name of a command.
type Command struct {
	// Name is the name of the command (e.g. exit, list, ...)
	Name string

	// Args contains all the non-named arguments (arguments without keys)
	Args []string

	// NamedArgs contains all the named arguments (arguments --key value)
	NamedArgs map[string]string

	// Flags contains all the flags (arguments -key)
	Flags map[string]bool
}

// ParseCommand parses a command of the form "command arg1 arg2 -name1 namedArg1 -flag1 arg3"
//   - the first string is the name of the command
//   - every string preceded by -- is a named argument, and the next string will be parsed as its value
//     A valid named argument MUST have a value.
//   - every string preceded by - but not -- is a flag,
//   - every other string will be a non named argument
func ParseCommand(cmd string) Command {
	command := Command{
		Name:      "",
		Args:      nil,
		NamedArgs: map[string]string{},
		Flags:     map[string]bool{},
	}

	tokens, err := shlex.Split(cmd)
	if err != nil {
		return command
	}

	flagCmdName := false
	flagArgName := false
	argName := ""

	for _, token := range tokens {
		if !flagCmdName {
			command.Name = token
			flagCmdName = true // set, will not be reset
		} else if name, foundNamed := strings.CutPrefix(token, "--"); foundNamed && !flagArgName {
			// argument with prefix -- is for named argument with value
			argName = name
			flagArgName = true // set
		} else if flag, foundFlag := strings.CutPrefix(token, "-"); foundFlag {
			// argument with prefix - (and not --) is for flag without value
			command.Flags[flag] = true
		} else if flagArgName {
			command.NamedArgs[argName] = token
			flagArgName = false // reset
		} else {
			command.Args = append(command.Args, token)
		}
	}

	return command
}

// ********* Terminal formatting helpers **********

// WriteErr formats the format string with a and then prints on the terminal in red with a new line
func WriteErr(tt *term.Terminal, format string, a ...any) {
	writelnEscape(tt, tt.Escape.Red, format, a...)
}

// WriteSuccess formats the format string with a and then prints on the terminal in green with a new line
func WriteSuccess(tt *term.Terminal, format string, a ...any) {
	writelnEscape(tt, tt.Escape.Green, format, a...)
}

func writeFmt(tt *term.Terminal, format string, a ...any) {
	var s string
	if len(a) > 0 {
		s = fmt.Sprintf(format, a...)
	} else {
		s = format
	}
	tt.Write([]byte(s))
}

func writeln(tt *term.Terminal, format string, a ...any) {
	writeFmt(tt, format+"\n", a...)
}

func writelnEscape(tt *term.Terminal, escape []byte, format string, a ...any) {
	tt.Write(escape)
	writeFmt(tt, format, a...)
	tt.Write(tt.Escape.Reset)
	tt.Write([]byte("\n"))
}

// ********* Commands **********

// cmdHelp prints the list of commands.
func cmdHelp(tt *term.Terminal, _ *session, _ Command) bool {
	writeln(tt, "Commands:")
	help := [][2]string{
		{cmdExitName, "exit the program"},
		{cmdHelpName, "print this message"},
		{cmdListName, "list sources, sinks, kinds or functions (list sources|sinks|kinds|funcs [regex])"},
		{cmdQueryName, "report which endpoints are tainted in the last solution (query [sources] [sinks])"},
		{cmdSliceName, "slice between a source and a sink (slice <source#> <sink#> [-implicit])"},
		{cmdSolveName, "solve the marked kinds (solve [-implicit] [-sinks])"},
		{cmdStatsName, "print the size of the constraint system"},
		{cmdTaintName, "mark sources as tainted (taint <source#>... [--kind name])"},
		{cmdUntaintName, "mark sinks as untainted (untaint <sink#>... [--kind name])"},
	}
	for _, h := range help {
		writeFmt(tt, "\t- %s%s%s: %s\n", tt.Escape.Blue, h[0], tt.Escape.Reset, h[1])
	}
	return false
}

// cmdExit just exits.
func cmdExit(_ *term.Terminal, _ *session, _ Command) bool {
	return true
}

// cmdList lists the identified sources and sinks with the indices the other
// commands accept, the kinds marked so far, or the program's functions.
func cmdList(tt *term.Terminal, s *session, command Command) bool {
	what := "all"
	if len(command.Args) > 0 {
		what = command.Args[0]
	}
	switch what {
	case "all", "sources", "sinks":
		if what != "sinks" {
			writeln(tt, "Sources:")
			for i, p := range s.Endpoints.Sources() {
				writeln(tt, "  [%d] %s", i, p)
			}
		}
		if what != "sources" {
			writeln(tt, "Sinks:")
			for i, p := range s.Endpoints.Sinks() {
				writeln(tt, "  [%d] %s", i, p)
			}
		}
	case "kinds":
		for _, kind := range s.Flow.Kit().Kinds() {
			writeln(tt, "  %-24s %d constraint(s)", kind, s.Flow.Kit().ConstraintCount(kind))
		}
	case "funcs":
		for _, fn := range funcsMatchingCommand(tt, s, command) {
			writeln(tt, "  %s", fn.String())
		}
	default:
		WriteErr(tt, "Cannot list %q; try sources, sinks, kinds or funcs.", what)
	}
	return false
}

// cmdTaint seeds the listed sources as high under a kind (named with --kind,
// or a fresh mark-N kind).
func cmdTaint(tt *term.Terminal, s *session, command Command) bool {
	points := pointsAt(tt, s.Endpoints.Sources(), command.Args)
	if len(points) == 0 {
		WriteErr(tt, "taint needs at least one valid source index; try 'list sources'.")
		return false
	}
	kind, ok := s.markKind(tt, command)
	if !ok {
		return false
	}
	for _, p := range points {
		s.Flow.TaintRecordSources(kind, p.SourceRecord())
		WriteSuccess(tt, "tainted under %q: %s", kind, p)
	}
	s.noteKind(tt, kind)
	return false
}

// cmdUntaint seeds the listed sinks as low under a kind.
func cmdUntaint(tt *term.Terminal, s *session, command Command) bool {
	points := pointsAt(tt, s.Endpoints.Sinks(), command.Args)
	if len(points) == 0 {
		WriteErr(tt, "untaint needs at least one valid sink index; try 'list sinks'.")
		return false
	}
	kind, ok := s.markKind(tt, command)
	if !ok {
		return false
	}
	for _, p := range points {
		s.Flow.UntaintRecordSinks(kind, p.SinkRecord())
		WriteSuccess(tt, "untainted under %q: %s", kind, p)
	}
	s.noteKind(tt, kind)
	return false
}

// markKind returns the kind a taint or untaint command writes to. The
// generator's own kinds are off limits.
func (s *session) markKind(tt *term.Terminal, command Command) (string, bool) {
	kind, ok := command.NamedArgs["kind"]
	if !ok || kind == "" {
		return fmt.Sprintf("mark-%d", len(s.Kinds)), true
	}
	switch kind {
	case constraints.KindDefault, constraints.KindDefaultSinks,
		constraints.KindImplicit, constraints.KindImplicitSinks:
		WriteErr(tt, "kind %q is reserved; pick another name.", kind)
		return "", false
	}
	return kind, true
}

// noteKind records a kind for the next solve, dropping kinds whose seeds all
// resolved to nothing (solving an empty kind is a contract violation).
func (s *session) noteKind(tt *term.Terminal, kind string) {
	if s.Flow.Kit().ConstraintCount(kind) == 0 {
		WriteErr(tt, "the marks under %q produced no constraints (empty points-to sets?); kind dropped", kind)
		return
	}
	for _, k := range s.Kinds {
		if k == kind {
			s.Solution = nil
			return
		}
	}
	s.Kinds = append(s.Kinds, kind)
	s.Solution = nil
}

// cmdSolve computes the least solution of every marked kind. With -implicit
// the implicit kinds join in; with -sinks the *-sinks kinds do.
func cmdSolve(tt *term.Terminal, s *session, command Command) bool {
	if len(s.Kinds) == 0 {
		WriteErr(tt, "nothing to solve; mark something with taint or untaint first.")
		return false
	}
	implicit := command.Flags["implicit"]
	sinks := command.Flags["sinks"]
	s.Solution = s.Flow.LeastSolution(s.Kinds, implicit, sinks)
	s.SolutionDesc = fmt.Sprintf("least solution of %s (implicit=%t, sinks=%t)",
		strings.Join(s.Kinds, ", "), implicit, sinks)
	WriteSuccess(tt, "Solved: %s", s.SolutionDesc)
	return false
}

// cmdQuery reports the taint of the identified endpoints under the last
// solution.
func cmdQuery(tt *term.Terminal, s *session, command Command) bool {
	if s.Solution == nil {
		WriteErr(tt, "no solution; run solve first.")
		return false
	}
	writeln(tt, "Querying %s", s.SolutionDesc)
	wantSources := len(command.Args) == 0 || funcutil.Contains(command.Args, "sources")
	wantSinks := len(command.Args) == 0 || funcutil.Contains(command.Args, "sinks")
	if wantSources {
		for i, p := range s.Endpoints.Sources() {
			writeTaint(tt, i, p, p.Tainted(s.Solution))
		}
	}
	if wantSinks {
		for i, p := range s.Endpoints.Sinks() {
			writeTaint(tt, i, p, p.Tainted(s.Solution))
		}
	}
	return false
}

func writeTaint(tt *term.Terminal, i int, p *sourcesink.Point, tainted bool) {
	if tainted {
		writeFmt(tt, "  [%d] %stainted%s   %s\n", i, tt.Escape.Red, tt.Escape.Reset, p)
	} else {
		writeFmt(tt, "  [%d] untainted %s\n", i, p)
	}
}

// cmdSlice relates one source to one sink: it seeds a fresh slice and
// reports whether each endpoint value lies between them.
func cmdSlice(tt *term.Terminal, s *session, command Command) bool {
	if len(command.Args) < 2 {
		WriteErr(tt, "slice needs a source index and a sink index; try 'list'.")
		return false
	}
	source := pointAt(tt, s.Endpoints.Sources(), command.Args[0])
	sink := pointAt(tt, s.Endpoints.Sinks(), command.Args[1])
	if source == nil || sink == nil {
		return false
	}

	s.Slices++
	name := fmt.Sprintf("cli-slice-%d", s.Slices)
	sl := slice.New(s.Flow, name, sourcesink.FlowBetween(source, sink), command.Flags["implicit"])

	writeln(tt, "Slice %q from %s to %s:", name, source, sink)
	hit := false
	for _, v := range sink.Values {
		if sl.ValueInSlice(v) {
			hit = true
			WriteSuccess(tt, "  %s (%s) is in the slice", v.Name(), v)
		}
	}
	for _, v := range sink.DirectPtrs {
		if sl.DirectPtrInSlice(v) {
			hit = true
			WriteSuccess(tt, "  memory of %s (%s) is in the slice", v.Name(), v)
		}
	}
	if !hit {
		writeln(tt, "  the source does not reach the sink")
	}
	return false
}

// cmdStats prints the size of the analysis and, once something was solved,
// the cyclic structure of the solution's propagation graph.
func cmdStats(tt *term.Terminal, s *session, _ Command) bool {
	writeFmt(tt, "%s", s.Flow.ComputeStats())
	if s.Solution != nil {
		writeln(tt, "last solution propagation graph: %s", s.Solution.PropagationDiagnostics())
	}
	return false
}

// ********* Helpers **********

// pointsAt resolves a list of index arguments against points.
func pointsAt(tt *term.Terminal, points []*sourcesink.Point, args []string) []*sourcesink.Point {
	var res []*sourcesink.Point
	for _, arg := range args {
		if p := pointAt(tt, points, arg); p != nil {
			res = append(res, p)
		}
	}
	return res
}

func pointAt(tt *term.Terminal, points []*sourcesink.Point, arg string) *sourcesink.Point {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= len(points) {
		WriteErr(tt, "%q is not a valid index (have 0..%d)", arg, len(points)-1)
		return nil
	}
	return points[i]
}

// funcsMatchingCommand returns the functions of the program matching the
// command's argument, interpreted as a regex. Without an argument every
// function matches.
func funcsMatchingCommand(tt *term.Terminal, s *session, command Command) []*ssa.Function {
	pattern := ".*"
	if len(command.Args) > 1 {
		pattern = command.Args[1]
	}
	r, err := regexp.Compile(pattern)
	if err != nil {
		WriteErr(tt, "%q is not a valid regex: %v", pattern, err)
		return nil
	}
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(s.Program) {
		if r.MatchString(fn.String()) {
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}
