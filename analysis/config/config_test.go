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
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func checkEqualOnNonEmptyFields(t *testing.T, cid1 CodeIdentifier, cid2 CodeIdentifier) {
	cid2c := compileRegexes(cid2)
	if !cid1.equalOnNonEmptyFields(cid2c) {
		t.Errorf("%v should be equal modulo empty fields to %v", cid1, cid2)
	}
}

func checkNotEqualOnNonEmptyFields(t *testing.T, cid1 CodeIdentifier, cid2 CodeIdentifier) {
	cid2c := compileRegexes(cid2)
	if cid1.equalOnNonEmptyFields(cid2c) {
		t.Errorf("%v should not be equal modulo empty fields to %v", cid1, cid2)
	}
}

func TestCodeIdentifier_equalOnNonEmptyFields_selfEquals(t *testing.T) {
	cid1 := CodeIdentifier{"a", "b", "", nil}
	checkEqualOnNonEmptyFields(t, cid1, cid1)
}

func TestCodeIdentifier_equalOnNonEmptyFields_emptyMatchesAny(t *testing.T) {
	cid1 := CodeIdentifier{"a", "b", "c", nil}
	cid2 := CodeIdentifier{"de", "234jbn", "23kjb", nil}
	cidEmpty := CodeIdentifier{}
	checkEqualOnNonEmptyFields(t, cid1, cidEmpty)
	checkEqualOnNonEmptyFields(t, cid2, cidEmpty)
}

func TestCodeIdentifier_equalOnNonEmptyFields_oneDiff(t *testing.T) {
	cid1 := CodeIdentifier{"a", "b", "", nil}
	cid2 := CodeIdentifier{"a", "", "", nil}
	checkEqualOnNonEmptyFields(t, cid1, cid2)
	checkNotEqualOnNonEmptyFields(t, cid2, cid1)
}

func TestCodeIdentifier_equalOnNonEmptyFields_regexes(t *testing.T) {
	cid1 := CodeIdentifier{"main", "b", "", nil}
	cid1bis := CodeIdentifier{"command-line-arguments", "b", "", nil}
	cid2 := CodeIdentifier{"(main)|(command-line-arguments)$", "", "", nil}
	checkEqualOnNonEmptyFields(t, cid1, cid2)
	checkEqualOnNonEmptyFields(t, cid1bis, cid2)
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	if !c.CollapseExternalContext || !c.CollapseIndirectContext {
		t.Errorf("context collapsing should default to true")
	}
	if c.DropAtSinks {
		t.Errorf("drop-at-sinks should default to false")
	}
	if c.ParallelWorkers != DefaultParallelWorkers {
		t.Errorf("parallel-workers should default to %d, got %d", DefaultParallelWorkers, c.ParallelWorkers)
	}
	if c.ContextStrategy != ContextStrategyCaller {
		t.Errorf("context-strategy should default to %q, got %q", ContextStrategyCaller, c.ContextStrategy)
	}
	if c.LogLevel != int(InfoLevel) {
		t.Errorf("log-level should default to info")
	}
	if !c.MatchPkgFilter("anything/at/all") {
		t.Errorf("default config should match any package")
	}
	if c.Verbose() {
		t.Errorf("default config should not be verbose")
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.LogLevel != int(DebugLevel) {
		t.Errorf("expected log-level %d, got %d", int(DebugLevel), cfg.LogLevel)
	}
	if !cfg.MatchPkgFilter("example/foo") {
		t.Errorf("pkg-filter should match example/foo")
	}
	if cfg.MatchPkgFilter("other") {
		t.Errorf("pkg-filter should not match other")
	}
	// fields absent from the file keep their defaults
	if !cfg.CollapseExternalContext || cfg.DropAtSinks {
		t.Errorf("unspecified options should keep defaults")
	}
	if cfg.ParallelWorkers != DefaultParallelWorkers {
		t.Errorf("unspecified parallel-workers should keep default")
	}
	if !cfg.IsExtraSource(CodeIdentifier{Package: "whatever", Method: "ReadCreds"}) {
		t.Errorf("ReadCreds should match the configured source")
	}
	if cfg.IsExtraSource(CodeIdentifier{Method: "Other"}) {
		t.Errorf("Other should not match any configured source")
	}
	if !cfg.IsExtraSink(CodeIdentifier{Package: "example/audit", Method: "Publish"}) {
		t.Errorf("Publish should match the configured sink")
	}
	if cfg.IsExtraSink(CodeIdentifier{Package: "example/audit", Method: "Other"}) {
		t.Errorf("Other should not match any configured sink")
	}
	if cfg.RelPath("report") != filepath.Join("testdata", "report") {
		t.Errorf("RelPath should be relative to the config file")
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full-config.yaml"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.LogLevel != int(TraceLevel) {
		t.Error("full config should have set trace")
	}
	if !cfg.Verbose() {
		t.Error("full config should be verbose")
	}
	if cfg.ContextStrategy != ContextStrategyCallSite {
		t.Error("full config should use the call-site strategy")
	}
	if cfg.ParallelWorkers != 4 {
		t.Error("full config should set parallel-workers to 4")
	}
	if cfg.CollapseExternalContext || cfg.CollapseIndirectContext {
		t.Error("full config should disable context collapsing")
	}
	if !cfg.DropAtSinks {
		t.Error("full config should set drop-at-sinks")
	}
	if !cfg.SilenceWarn {
		t.Error("full config should have silence-warn set to true")
	}
	if !cfg.MatchPkgFilter("command-line-arguments") {
		t.Error("full config pkg-filter should match command-line-arguments")
	}
	if cfg.MatchPkgFilter("mypkg") {
		t.Error("full config pkg-filter should not match mypkg")
	}
	if len(cfg.Sources) != 1 || len(cfg.Sinks) != 2 {
		t.Error("full config should have one source and two sinks")
	}
	if !cfg.IsExtraSink(CodeIdentifier{Method: "Log", Receiver: "Logger"}) {
		t.Error("(Logger).Log should match the configured sink")
	}
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "does-not-exist.yaml"))
	if c != nil || err == nil {
		t.Errorf("expected error and nil value when trying to load a non existent file")
	}
}

func TestLoadBadFormatFileReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "bad_format.yaml"))
	if c != nil || err == nil {
		t.Errorf("expected error and nil value when trying to load a badly formatted file")
	}
}

func TestLoadBadStrategyReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "bad-strategy.yaml"))
	if c != nil || err == nil {
		t.Errorf("expected error and nil value for an unknown context strategy")
	}
}

func TestLogGroupLevels(t *testing.T) {
	cfg := NewDefault()
	cfg.LogLevel = int(WarnLevel)
	logger := NewLogGroup(cfg)
	var buf bytes.Buffer
	logger.SetAllOutput(&buf)
	logger.SetAllFlags(0)

	logger.Infof("hidden")
	logger.Warnf("watch out")
	logger.Errorf("boom")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be hidden at warn level, got %q", out)
	}
	if !strings.Contains(out, "[WARN] watch out") {
		t.Errorf("missing warning in %q", out)
	}
	if !strings.Contains(out, "[ERROR] boom") {
		t.Errorf("missing error in %q", out)
	}
}

func TestLogGroupSilenceWarn(t *testing.T) {
	cfg := NewDefault()
	cfg.SilenceWarn = true
	logger := NewLogGroup(cfg)
	var buf bytes.Buffer
	logger.SetAllOutput(&buf)
	logger.SetAllFlags(0)

	logger.Warnf("quiet")
	if buf.Len() != 0 {
		t.Errorf("warnings should be silenced, got %q", buf.String())
	}
}
