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

// Package analysistest provides the helpers the integration tests use to
// load the scenario programs under testdata and read their source/sink
// annotations.
package analysistest

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/thinkmoore/go-infoflow/analysis"
	"github.com/thinkmoore/go-infoflow/analysis/config"
	"github.com/thinkmoore/go-infoflow/analysis/lang"
)

// LoadTest loads the program in the directory dir, looking for a main.go and a config.yaml. If additional files
// are specified as extraFiles, the program will be loaded using those files too.
func LoadTest(t *testing.T, dir string, extraFiles []string) (*ssa.Program, *config.Config) {
	configFile := filepath.Join(dir, "config.yaml")
	config.SetGlobalConfig(configFile)
	files := []string{filepath.Join(dir, "main.go")}
	for _, extraFile := range extraFiles {
		files = append(files, filepath.Join(dir, extraFile))
	}

	lp, err := analysis.LoadProgram(nil, "", ssa.BuilderMode(0), files)
	if err != nil {
		t.Fatalf("error loading program in %s: %v", dir, err)
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading config %s: %v", configFile, err)
	}
	return lp.Program, cfg
}

// Match annotations of the form "@Source(id1, id2, id3)"
var SourceRegex = regexp.MustCompile(`//.*@Source\(((?:\s*\w\s*,?)+)\)`)
var SinkRegex = regexp.MustCompile(`//.*@Sink\(((?:\s*\w\s*,?)+)\)`)

// LPos is a line-level position: the base name of the file and the line
// number, so expected and reported positions compare independently of how
// the test reached the file.
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// RemoveColumn drops the column of the position and reduces the filename to
// its base name.
func RemoveColumn(pos token.Position) LPos {
	return LPos{Line: pos.Line, Filename: filepath.Base(pos.Filename)}
}

// GetExpectedSourceToSink analyzes the files in dir and looks for comments @Source(id) and @Sink(id) to construct
// expected flows from sources to sink in the form of a map from sink positions to all the source positions that
// reach that sink.
func GetExpectedSourceToSink(dir string) map[LPos]map[LPos]bool {
	sink2source := map[LPos]map[LPos]bool{}
	sourceIds := map[string]token.Position{}
	fset := token.NewFileSet() // positions are relative to fset

	pkgs, err := lang.AstPackages(dir, fset)
	if err != nil {
		fmt.Println(err)
		return nil
	}

	// Get all the source positions with their identifiers
	lang.MapComments(pkgs, func(c *ast.Comment) {
		pos := fset.Position(c.Pos())
		// Match a "@Source(id1, id2, id3)"
		a := SourceRegex.FindStringSubmatch(c.Text)
		if len(a) > 1 {
			for _, ident := range strings.Split(a[1], ",") {
				sourceIds[strings.TrimSpace(ident)] = pos
			}
		}
	})

	// Match each "@Sink(id1, id2, id3)" to the sources of its identifiers
	lang.MapComments(pkgs, func(c *ast.Comment) {
		sinkPos := fset.Position(c.Pos())
		a := SinkRegex.FindStringSubmatch(c.Text)
		if len(a) > 1 {
			for _, ident := range strings.Split(a[1], ",") {
				if sourcePos, ok := sourceIds[strings.TrimSpace(ident)]; ok {
					relSink := RemoveColumn(sinkPos)
					if _, ok := sink2source[relSink]; !ok {
						sink2source[relSink] = make(map[LPos]bool)
					}
					sink2source[relSink][RemoveColumn(sourcePos)] = true
				}
			}
		}
	})
	return sink2source
}
