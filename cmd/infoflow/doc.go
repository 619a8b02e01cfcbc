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
Infoflow tracks information flows from sources to sinks in your packages,
using their SSA representation.

Usage:

	infoflow [flags] -config config.yaml main.go

The flags are:

	-build=D          see the documentation of buildmode for the ssa package

	-config path      a path to the configuration file, which can name extra
	                  sources and sinks on top of the built-in tables

	-verbose=false    verbose mode, overrides the log level of the config
	                  file if set

The tool identifies the sources and sinks of the loaded program, taints
every source under its own constraint kind, solves all the kinds in one
bulk pass and reports each source whose data reaches a sink, with the
positions of both ends.
*/
package main
