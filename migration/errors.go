// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package migration

import (
	"errors"
	"fmt"
)

// Request-acceptance errors. These are the only errors surfaced to callers;
// everything inside the retry loop is recorded into the Record instead.
var (
	ErrNotFound    = errors.New("component not found or inactive")
	ErrEmptySource = errors.New("source code is empty")
)

// TransformError wraps a provider-level LLM failure (timeout, malformed
// response, quota). Fatal to the migration at the transform stage.
type TransformError struct {
	Cause error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed: %v", e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }

// ToolError means the validation tool itself crashed rather than reporting
// code errors. It consumes one retry and is recorded with kind "system" so
// analytics can separate tooling flakiness from real defects.
type ToolError struct {
	Step  StepType
	Cause error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s tool failed: %v", e.Step, e.Cause)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// SystemEntry builds the single ErrorEntry recorded for a tool crash.
func (e *ToolError) SystemEntry() ErrorEntry {
	return ErrorEntry{
		Kind:     KindSystem,
		Severity: SeverityFatal,
		Message:  e.Error(),
	}
}
