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

package validate

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cloudwego/tuxmigrate/migration"
)

// BuildStep runs `yarn build` in the subrepo. Its errors are whole-project:
// build output does not localize to the migrated file the way eslint and tsc
// do, so entries carry only messages.
type BuildStep struct {
	ws     Workspace
	runner CommandRunner
}

func NewBuildStep(ws Workspace, runner CommandRunner) *BuildStep {
	return &BuildStep{ws: ws, runner: runner}
}

func (s *BuildStep) Type() migration.StepType { return migration.StepBuild }

// Run implements Step.
func (s *BuildStep) Run(ctx context.Context, code string) (*migration.Report, error) {
	if err := s.ws.WriteFile(code); err != nil {
		return nil, &migration.ToolError{Step: s.Type(), Cause: err}
	}
	res, err := s.runner.Run(ctx, s.ws.WorkDir(), "yarn", "build")
	if err != nil {
		return nil, &migration.ToolError{Step: s.Type(), Cause: err}
	}
	if res.ExitCode == 0 {
		return &migration.Report{Success: true}, nil
	}

	entries := parseBuildErrors(res.Stderr + res.Stdout)
	log.Debug("build check finished", "dir", s.ws.WorkDir(), "errors", len(entries))
	return &migration.Report{
		Success: len(entries) == 0,
		Total:   len(entries),
		Failed:  len(entries),
		Errors:  entries,
	}, nil
}

func parseBuildErrors(output string) []migration.ErrorEntry {
	var entries []migration.ErrorEntry
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "error") && !strings.Contains(lower, "failed") {
			continue
		}
		entries = append(entries, migration.ErrorEntry{
			Kind:     migration.KindBuild,
			Severity: migration.SeverityError,
			Message:  line,
		})
	}
	if len(entries) == 0 {
		// Build failed without a recognizable error line; record the exit
		// itself so the failure is never silent.
		entries = append(entries, migration.ErrorEntry{
			Kind:     migration.KindBuild,
			Severity: migration.SeverityError,
			Message:  "build exited non-zero without error output",
		})
	}
	return entries
}
