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

import "regexp"

// A CodeIdentifier identifies a function that should be treated as an extra
// taint source or sink. A function can be identified by its package, method
// name or receiver type, or any combination of those; empty fields match
// anything. Field values that compile as regexes are matched as regexes,
// otherwise they are compared as strings.
type CodeIdentifier struct {
	Package  string `yaml:"package"`
	Method   string `yaml:"method"`
	Receiver string `yaml:"receiver"`
	// This will not be part of the yaml config
	computedRegexs *codeIdentifierRegex
}

type codeIdentifierRegex struct {
	packageRegex  *regexp.Regexp
	methodRegex   *regexp.Regexp
	receiverRegex *regexp.Regexp
}

// compileRegexes compiles the strings in the code identifier into regexes.
// It compiles all identifiers into regexes or none.
func compileRegexes(cid CodeIdentifier) CodeIdentifier {
	packageRegex, err := regexp.Compile(cid.Package)
	if err != nil {
		return cid
	}
	methodRegex, err := regexp.Compile(cid.Method)
	if err != nil {
		return cid
	}
	receiverRegex, err := regexp.Compile(cid.Receiver)
	if err != nil {
		return cid
	}
	cid.computedRegexs = &codeIdentifierRegex{
		packageRegex,
		methodRegex,
		receiverRegex,
	}
	return cid
}

// equalOnNonEmptyFields returns true if each of the receiver's fields are either equal to the corresponding
// argument's field, or the argument's field is empty
func (cid *CodeIdentifier) equalOnNonEmptyFields(cidRef CodeIdentifier) bool {
	if cidRef.computedRegexs != nil {
		return ((cidRef.computedRegexs.packageRegex.MatchString(cid.Package)) || (cidRef.Package == "")) &&
			((cidRef.computedRegexs.methodRegex.MatchString(cid.Method)) || (cidRef.Method == "")) &&
			((cidRef.computedRegexs.receiverRegex.MatchString(cid.Receiver)) || (cidRef.Receiver == ""))
	}
	return ((cid.Package == cidRef.Package) || (cidRef.Package == "")) &&
		((cid.Method == cidRef.Method) || (cidRef.Method == "")) &&
		((cid.Receiver == cidRef.Receiver) || (cidRef.Receiver == ""))
}
