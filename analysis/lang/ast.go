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

package lang

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"

	"github.com/thinkmoore/go-infoflow/internal/funcutil"
)

// AstPackages parses every package under dir, comments included, and returns
// them keyed by package name.
func AstPackages(dir string, fset *token.FileSet) (map[string]*ast.Package, error) {
	pkgs := make(map[string]*ast.Package)
	err := filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		parsed, err := parser.ParseDir(fset, path, nil, parser.ParseComments)
		if err != nil {
			return fmt.Errorf("parsing %s: %v", path, err)
		}
		funcutil.Merge(pkgs, parsed, func(x *ast.Package, _ *ast.Package) *ast.Package { return x })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %v", dir, err)
	}
	return pkgs, nil
}

// MapComments applies fmap to each comment in the packages.
func MapComments(packages map[string]*ast.Package, fmap func(*ast.Comment)) {
	for _, pkg := range packages {
		for _, f := range pkg.Files {
			for _, group := range f.Comments {
				for _, c := range group.List {
					fmap(c)
				}
			}
		}
	}
}
