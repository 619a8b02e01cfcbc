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
Infoflow-cli is an interactive terminal for the information flow analysis:
it loads a program, generates the flow constraints once, and then lets you
mark sources, solve, and inspect the results without reloading.

Usage:

	infoflow-cli [flags] -config config.yaml main.go

The flags are:

	-build=D          see the documentation of buildmode for the ssa package

	-config path      a path to the configuration file, which can name extra
	                  sources and sinks on top of the built-in tables

	-verbose=false    verbose mode, overrides the log level of the config
	                  file if set

The commands are help, list, taint, untaint, solve, query, slice, stats
and exit; help describes each one.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/thinkmoore/go-infoflow/analysis"
	"github.com/thinkmoore/go-infoflow/analysis/config"
	"github.com/thinkmoore/go-infoflow/analysis/infoflow"
	"github.com/thinkmoore/go-infoflow/analysis/signatures"
	"github.com/thinkmoore/go-infoflow/analysis/sourcesink"
	"github.com/thinkmoore/go-infoflow/internal/formatutil"
	"golang.org/x/term"
	"golang.org/x/tools/go/ssa"
)

var (
	configPath = flag.String("config", "", "Config file path for the analysis")
	verbose    = flag.Bool("verbose", false, "Verbose printing on standard output")
)

func init() {
	flag.Var(&buildmode, "build", ssa.BuilderModeDoc)
}

var (
	buildmode = ssa.InstantiateGenerics
	commands  = map[string]func(tt *term.Terminal, s *session, command Command) bool{
		cmdExitName:    cmdExit,
		cmdListName:    cmdList,
		cmdQueryName:   cmdQuery,
		cmdSliceName:   cmdSlice,
		cmdSolveName:   cmdSolve,
		cmdStatsName:   cmdStats,
		cmdTaintName:   cmdTaint,
		cmdUntaintName: cmdUntaint,
	}
)

// session owns the loaded program, the analysis built over it and the
// marks accumulated across commands.
type session struct {
	Args       []string
	ConfigPath string
	TermWidth  int

	Config    *config.Config
	Logger    *config.LogGroup
	Program   *ssa.Program
	Endpoints *sourcesink.Analysis
	Flow      *infoflow.Infoflow

	// Kinds lists the constraint kinds created by taint and untaint, in
	// order. solve reads all of them.
	Kinds []string
	// Solution is the result of the last solve command, nil before the
	// first solve and after any new mark.
	Solution *infoflow.Solution
	// SolutionDesc says how Solution was computed.
	SolutionDesc string
	// Slices counts slice commands so each gets uniquely named kinds.
	Slices int
}

const usage = ` Interactive terminal for the information flow analysis.
Usage:
    infoflow-cli [options] <package path(s)>
Examples:
% infoflow-cli -config config.yaml package...
`

func main() {
	var err error
	flag.Parse()

	if flag.NArg() == 0 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.NewDefault()
	if *configPath != "" {
		config.SetGlobalConfig(*configPath)
		cfg, err = config.LoadGlobal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load config %q: %v\n", *configPath, err)
			return
		}
	}
	if *verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)

	logger.Infof(formatutil.Faint("Reading sources"))
	program, err := analysis.LoadProgram(nil, "", buildmode, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load program: %v\n", err)
		return
	}

	endpoints := sourcesink.Identify(program.Program, cfg, logger)
	logger.Infof("%d source(s) and %d sink(s) identified",
		len(endpoints.Sources()), len(endpoints.Sinks()))

	ifa, err := infoflow.New(infoflow.Params{
		Config:          cfg,
		Logger:          logger,
		Program:         program.Program,
		Registrar:       signatures.Default(logger),
		SourcesAndSinks: endpoints,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize the analysis: %v\n", err)
		return
	}
	// Constraints are generated once; every solve reuses them.
	ifa.Analyze()

	run(&session{
		Args:       flag.Args(),
		ConfigPath: *configPath,
		Config:     cfg,
		Logger:     logger,
		Program:    program.Program,
		Endpoints:  endpoints,
		Flow:       ifa,
	})
}

// run reads commands until interpret returns true.
func run(s *session) {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		panic(err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)
	s.TermWidth, _, _ = term.GetSize(int(os.Stdin.Fd()))
	tt := term.NewTerminal(os.Stdin, "> ")
	s.Logger.SetAllOutput(tt)
	s.Logger.SetAllFlags(0) // no prefix
	tt.AutoCompleteCallback = autoComplete
	// Capture ctrl+c and exit after restoring the terminal
	captureChan := make(chan os.Signal, 1)
	signal.Notify(captureChan, os.Interrupt)
	go exitOnReceive(captureChan, tt, oldState)
	for {
		command, _ := tt.ReadLine()
		if interpret(tt, s, strings.TrimSpace(command)) {
			break
		}
	}
}

// interpret returns true to stop
func interpret(tt *term.Terminal, s *session, command string) bool {
	if command == "" {
		return false
	}
	cmd := ParseCommand(command)
	if cmd.Name == "" {
		return false
	}
	if f, ok := commands[cmd.Name]; ok {
		return f(tt, s, cmd)
	}
	if cmd.Name == cmdHelpName {
		cmdHelp(tt, s, cmd)
	} else {
		WriteErr(tt, "Command name %q not recognized.", cmd.Name)
		cmdHelp(tt, s, cmd)
	}
	return false
}

func autoComplete(line string, pos int, key rune) (string, int, bool) {
	if key != '\t' || len(line) <= 1 || pos != len(line) {
		return "", 0, false
	}
	matching := 0
	completion := line
	for cmd := range commands {
		if strings.HasPrefix(cmd, line) {
			matching++
			completion = cmd
		}
	}
	if matching == 1 {
		return completion, len(completion), true
	}
	return "", 0, false
}

func exitOnReceive(c chan os.Signal, tt *term.Terminal, oldState *term.State) {
	for range c {
		writeFmt(tt, formatutil.Red("Caught SIGINT, exiting!"))
		term.Restore(int(os.Stdin.Fd()), oldState)
		os.Exit(0)
	}
}
