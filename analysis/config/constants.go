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

const (
	// DefaultParallelWorkers is the number of goroutines the bulk solver uses
	// when the config file does not specify parallel-workers.
	DefaultParallelWorkers = 16

	// ContextStrategyCaller extends contexts with the calling function.
	ContextStrategyCaller = "caller"

	// ContextStrategyCallSite extends contexts with the call instruction.
	ContextStrategyCallSite = "callsite"
)
