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

// Package migration defines the state model of one component migration:
// the record, its per-step attempt history, and the structured validation
// errors exchanged between the validation steps and the LLM transformer.
package migration

import (
	"time"
)

// Status is the migration-level state machine: pending -> running -> {completed, failed}.
// Terminal states admit no further transitions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepStatus is the state of a single StepAttempt.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
)

// StepType identifies a validation step variant.
type StepType string

const (
	StepESLint     StepType = "eslint"
	StepTypeScript StepType = "typescript"
	StepBuild      StepType = "build"
)

// ErrorKind classifies where a validation error came from.
type ErrorKind string

const (
	KindLint   ErrorKind = "lint"
	KindType   ErrorKind = "type"
	KindBuild  ErrorKind = "build"
	KindSystem ErrorKind = "system"
)

// Severity levels follow the ESLint convention: 1 = warning, 2 = error.
// 3 marks tooling failures that are fatal to the attempt.
type Severity int

const (
	SeverityWarning Severity = 1
	SeverityError   Severity = 2
	SeverityFatal   Severity = 3
)

// ErrorEntry is one discrete problem reported by a validation step.
type ErrorEntry struct {
	Kind     ErrorKind `json:"kind"`
	Severity Severity  `json:"severity"`
	RuleID   string    `json:"rule_id,omitempty"`
	FilePath string    `json:"file_path,omitempty"`
	Line     int       `json:"line,omitempty"`
	Column   int       `json:"column,omitempty"`
	Message  string    `json:"message"`
	// Resolved is set once a later re-run no longer reports this entry.
	Resolved bool `json:"resolved,omitempty"`
}

// Report is the outcome of one validation run over one code snapshot.
// A run with Total == 0 is trivially successful.
type Report struct {
	Success bool         `json:"success"`
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Errors  []ErrorEntry `json:"errors,omitempty"`
}

// StepAttempt is one execution of one validation step at one retry count.
// It is appended to the parent record's history and never mutated after the
// following attempt (if any) has observed the post-fix error set.
type StepAttempt struct {
	ID            string     `json:"id"`
	StepType      StepType   `json:"step_type"`
	StepOrder     int        `json:"step_order"`
	AttemptNumber int        `json:"attempt_number"` // 1-based
	Status        StepStatus `json:"status"`

	InputCode  string `json:"input_code"`
	OutputCode string `json:"output_code"`

	ErrorsBefore     []ErrorEntry `json:"errors_before,omitempty"`
	ErrorsAfter      []ErrorEntry `json:"errors_after,omitempty"`
	ErrorsResolved   int          `json:"errors_resolved"`
	ErrorsIntroduced int          `json:"errors_introduced"`

	LLMInvoked       bool  `json:"llm_invoked"`
	LLMFixSuccessful *bool `json:"llm_fix_successful,omitempty"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// Record is the unit of work and persistence: one end-to-end attempt to
// rewrite a single file's usage of one component and verify the result.
type Record struct {
	ID            string `json:"id"`
	ComponentName string `json:"component_name"`
	SubrepoPath   string `json:"subrepo_path,omitempty"`
	FilePath      string `json:"file_path"`
	BaseBranch    string `json:"base_branch,omitempty"`
	BranchName    string `json:"branch_name,omitempty"`
	CommitHash    string `json:"commit_hash,omitempty"`
	CreatedBy     string `json:"created_by,omitempty"`

	MaxRetries    int        `json:"max_retries"`
	SelectedSteps []StepType `json:"selected_steps"`

	Status         Status `json:"status"`
	OriginalCode   string `json:"original_code"`
	FinalCode      string `json:"final_code,omitempty"`
	MigrationNotes string `json:"migration_notes,omitempty"`
	ErrorSummary   string `json:"error_summary,omitempty"`

	// OverallSuccess and ValidationPassed are set only at terminal state.
	// OverallSuccess implies ValidationPassed.
	OverallSuccess   bool `json:"overall_success"`
	ValidationPassed bool `json:"validation_passed"`

	Steps []StepAttempt `json:"steps,omitempty"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// AttemptsFor returns the attempt history for one step type, in order.
func (r *Record) AttemptsFor(t StepType) []StepAttempt {
	var out []StepAttempt
	for _, a := range r.Steps {
		if a.StepType == t {
			out = append(out, a)
		}
	}
	return out
}
