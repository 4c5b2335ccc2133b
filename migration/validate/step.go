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

// Package validate implements the validation step variants (ESLint,
// TypeScript, build) behind one uniform interface so the orchestrator can
// treat them interchangeably.
package validate

import (
	"context"
	"fmt"

	"github.com/cloudwego/tuxmigrate/migration"
)

// Step is one independent check applied to candidate code. Run must not
// mutate its input; the code is written to the workspace only so the
// underlying tool can see it. A *migration.ToolError return means the tool
// itself crashed, as opposed to reporting code errors.
type Step interface {
	Type() migration.StepType
	Run(ctx context.Context, code string) (*migration.Report, error)
}

// Fixer is an optional Step capability: a mechanical pre-fix applied before
// checking (eslint --fix). It returns the possibly-rewritten code and never
// guarantees the result is error-free.
type Fixer interface {
	FixFirst(ctx context.Context, code string) (string, error)
}

// Workspace is the file surface steps run against: the working copy of the
// file under migration inside its subrepo.
type Workspace interface {
	ReadFile() (string, error)
	WriteFile(content string) error
	// FileAbsPath is the absolute path of the file under migration.
	FileAbsPath() string
	// WorkDir is the directory tool commands run in (the subrepo root).
	WorkDir() string
}

// ParseStepType maps a requested step name to its type. The legacy
// "fix-eslint" style aliases from the original CLI are accepted.
func ParseStepType(name string) (migration.StepType, error) {
	switch name {
	case "eslint", "lint", "fix-eslint":
		return migration.StepESLint, nil
	case "typescript", "tsc", "type", "fix-tsc":
		return migration.StepTypeScript, nil
	case "build", "fix-build":
		return migration.StepBuild, nil
	}
	return "", fmt.Errorf("unknown validation step %q", name)
}

// ParseStepTypes maps every requested name, preserving order. Fails on the
// first unknown name.
func ParseStepTypes(names []string) ([]migration.StepType, error) {
	types := make([]migration.StepType, 0, len(names))
	for _, n := range names {
		t, err := ParseStepType(n)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// Resolve turns the caller's ordered step names into runnable steps, bound
// to ws and runner. Resolution happens once, before any retry loop starts;
// an unknown name rejects the whole request.
func Resolve(names []string, ws Workspace, runner CommandRunner) ([]Step, error) {
	steps := make([]Step, 0, len(names))
	for _, n := range names {
		t, err := ParseStepType(n)
		if err != nil {
			return nil, err
		}
		switch t {
		case migration.StepESLint:
			steps = append(steps, NewESLintStep(ws, runner))
		case migration.StepTypeScript:
			steps = append(steps, NewTypeScriptStep(ws, runner))
		case migration.StepBuild:
			steps = append(steps, NewBuildStep(ws, runner))
		}
	}
	return steps, nil
}
