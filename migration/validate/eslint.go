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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cloudwego/tuxmigrate/migration"
)

// ESLintStep checks the file with `npx eslint --format=json` and exposes
// `eslint --fix` as its Fixer capability.
type ESLintStep struct {
	ws     Workspace
	runner CommandRunner
}

func NewESLintStep(ws Workspace, runner CommandRunner) *ESLintStep {
	return &ESLintStep{ws: ws, runner: runner}
}

func (s *ESLintStep) Type() migration.StepType { return migration.StepESLint }

// eslintFileResult mirrors one element of eslint's JSON formatter output.
type eslintFileResult struct {
	FilePath     string          `json:"filePath"`
	ErrorCount   int             `json:"errorCount"`
	WarningCount int             `json:"warningCount"`
	Messages     []eslintMessage `json:"messages"`
}

type eslintMessage struct {
	RuleID   string `json:"ruleId"`
	Severity int    `json:"severity"` // 1 = warning, 2 = error
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// Run implements Step.
func (s *ESLintStep) Run(ctx context.Context, code string) (*migration.Report, error) {
	if err := s.ws.WriteFile(code); err != nil {
		return nil, &migration.ToolError{Step: s.Type(), Cause: err}
	}
	res, err := s.runner.Run(ctx, s.ws.WorkDir(), "npx", "eslint", "--format=json", s.ws.FileAbsPath())
	if err != nil {
		return nil, &migration.ToolError{Step: s.Type(), Cause: err}
	}
	if strings.Contains(res.Stderr, "No files matching the pattern") {
		return nil, &migration.ToolError{Step: s.Type(), Cause: fmt.Errorf("eslint could not find file %s", s.ws.FileAbsPath())}
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return &migration.Report{Success: true}, nil
	}

	var files []eslintFileResult
	if err := json.Unmarshal([]byte(res.Stdout), &files); err != nil {
		return nil, &migration.ToolError{Step: s.Type(), Cause: fmt.Errorf("parse eslint output: %w", err)}
	}

	var entries []migration.ErrorEntry
	for _, f := range files {
		if f.ErrorCount == 0 && f.WarningCount == 0 {
			continue
		}
		for _, m := range f.Messages {
			entries = append(entries, migration.ErrorEntry{
				Kind:     migration.KindLint,
				Severity: migration.Severity(m.Severity),
				RuleID:   m.RuleID,
				FilePath: f.FilePath,
				Line:     m.Line,
				Column:   m.Column,
				Message:  m.Message,
			})
		}
	}
	log.Debug("eslint check finished", "file", s.ws.FileAbsPath(), "errors", len(entries))
	return &migration.Report{
		Success: len(entries) == 0,
		Total:   len(entries),
		Failed:  len(entries),
		Errors:  entries,
	}, nil
}

// FixFirst implements Fixer: runs `eslint --fix` and returns the rewritten
// file. A non-zero exit only means errors remain; auto-fixes were still
// written, so the file is re-read either way.
func (s *ESLintStep) FixFirst(ctx context.Context, code string) (string, error) {
	if err := s.ws.WriteFile(code); err != nil {
		return code, err
	}
	if _, err := s.runner.Run(ctx, s.ws.WorkDir(), "npx", "eslint", "--fix", s.ws.FileAbsPath()); err != nil {
		return code, err
	}
	fixed, err := s.ws.ReadFile()
	if err != nil {
		return code, err
	}
	return fixed, nil
}
