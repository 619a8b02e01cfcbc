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

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/thinkmoore/go-infoflow/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config holds the user-facing settings of the information flow analysis.
// If some field is not defined in the config file, it keeps the default set
// by NewDefault. Private fields are not populated from a yaml file, but
// computed after initialization.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// Sources lists additional functions whose results are treated as
	// taint sources, on top of the built-in tables.
	Sources []CodeIdentifier `yaml:"sources"`

	// Sinks lists additional functions whose arguments are treated as
	// taint sinks, on top of the built-in tables.
	Sinks []CodeIdentifier `yaml:"sinks"`
}

// Options groups the scalar knobs of the analysis.
type Options struct {
	// CollapseExternalContext collapses the analysis context to the default
	// context when an external function reached through an indirect call is
	// handled by the signature library.
	CollapseExternalContext bool `yaml:"collapse-external-context"`

	// CollapseIndirectContext collapses the analysis context to the default
	// context for the defined callees of an indirect call.
	CollapseIndirectContext bool `yaml:"collapse-indirect-context"`

	// DropAtSinks diverts the flows whose source is a sink variable into the
	// separate "default-sinks"/"implicit-sinks" constraint kinds, so that
	// forward propagation can be cut at sinks.
	DropAtSinks bool `yaml:"drop-at-sinks"`

	// ParallelWorkers is the number of goroutines used by the bulk solver.
	// Values <= 0 are replaced with DefaultParallelWorkers.
	ParallelWorkers int `yaml:"parallel-workers"`

	// ContextStrategy selects how call contexts are extended at call sites:
	// ContextStrategyCaller records the calling function,
	// ContextStrategyCallSite records the call instruction.
	ContextStrategy string `yaml:"context-strategy"`

	// PkgFilter restricts the source/sink identification walk to the
	// functions whose package matches the filter.
	PkgFilter string `yaml:"pkg-filter"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a config populated with the default options.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Sources:    nil,
		Sinks:      nil,
		Options: Options{
			CollapseExternalContext: true,
			CollapseIndirectContext: true,
			DropAtSinks:             false,
			ParallelWorkers:         DefaultParallelWorkers,
			ContextStrategy:         ContextStrategyCaller,
			PkgFilter:               "",
			LogLevel:                int(InfoLevel),
			SilenceWarn:             false,
		},
	}
}

// Load reads a configuration from a yaml file. Fields absent from the file
// keep their NewDefault values.
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.ParallelWorkers <= 0 {
		cfg.ParallelWorkers = DefaultParallelWorkers
	}

	switch cfg.ContextStrategy {
	case "":
		cfg.ContextStrategy = ContextStrategyCaller
	case ContextStrategyCaller, ContextStrategyCallSite:
	default:
		return nil, fmt.Errorf("unknown context strategy %q (expected %q or %q)",
			cfg.ContextStrategy, ContextStrategyCaller, ContextStrategyCallSite)
	}

	if cfg.PkgFilter != "" {
		r, err := regexp.Compile(cfg.PkgFilter)
		if err == nil {
			cfg.pkgFilterRegex = r
		}
	}

	funcutil.MapInPlace(cfg.Sources, compileRegexes)
	funcutil.MapInPlace(cfg.Sinks, compileRegexes)

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the package name pkgname matches the package filter set in the config file. If no
// package filter has been set in the config file, the regex will match anything and return true. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The safe
// case is to check whether the package filter string is a prefix of the pkgname
func (c Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	} else if c.PkgFilter != "" {
		return strings.HasPrefix(pkgname, c.PkgFilter)
	} else {
		return true
	}
}

// IsExtraSource returns true if the code identifier matches a source listed in the config file
func (c Config) IsExtraSource(cid CodeIdentifier) bool {
	return funcutil.Exists(c.Sources, cid.equalOnNonEmptyFields)
}

// IsExtraSink returns true if the code identifier matches a sink listed in the config file
func (c Config) IsExtraSink(cid CodeIdentifier) bool {
	return funcutil.Exists(c.Sinks, cid.equalOnNonEmptyFields)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
