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
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cloudwego/tuxmigrate/migration"
)

// TypeScriptStep checks the file with `npx tsc --noEmit`.
type TypeScriptStep struct {
	ws     Workspace
	runner CommandRunner
}

func NewTypeScriptStep(ws Workspace, runner CommandRunner) *TypeScriptStep {
	return &TypeScriptStep{ws: ws, runner: runner}
}

func (s *TypeScriptStep) Type() migration.StepType { return migration.StepTypeScript }

// tscErrorRe matches "path/file.tsx(12,5): error TS2304: Cannot find name 'x'."
var tscErrorRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): error (TS\d+): (.*)$`)

// Run implements Step.
func (s *TypeScriptStep) Run(ctx context.Context, code string) (*migration.Report, error) {
	if err := s.ws.WriteFile(code); err != nil {
		return nil, &migration.ToolError{Step: s.Type(), Cause: err}
	}
	res, err := s.runner.Run(ctx, s.ws.WorkDir(), "npx", "tsc", "--noEmit", s.ws.FileAbsPath())
	if err != nil {
		return nil, &migration.ToolError{Step: s.Type(), Cause: err}
	}
	if res.ExitCode == 0 {
		return &migration.Report{Success: true}, nil
	}

	entries := parseTscErrors(res.Stderr + res.Stdout)
	log.Debug("tsc check finished", "file", s.ws.FileAbsPath(), "errors", len(entries))
	return &migration.Report{
		Success: len(entries) == 0,
		Total:   len(entries),
		Failed:  len(entries),
		Errors:  entries,
	}, nil
}

func parseTscErrors(output string) []migration.ErrorEntry {
	var entries []migration.ErrorEntry
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "error TS") {
			continue
		}
		entry := migration.ErrorEntry{
			Kind:     migration.KindType,
			Severity: migration.SeverityError,
			Message:  line,
		}
		if m := tscErrorRe.FindStringSubmatch(line); m != nil {
			entry.FilePath = m[1]
			entry.Line, _ = strconv.Atoi(m[2])
			entry.Column, _ = strconv.Atoi(m[3])
			entry.RuleID = m[4]
			entry.Message = m[5]
		}
		entries = append(entries, entry)
	}
	return entries
}
