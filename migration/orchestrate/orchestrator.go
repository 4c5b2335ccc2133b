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

// Package orchestrate drives one migration end to end: initial LLM
// transform, then each requested validation step in order with a bounded
// retry loop that feeds failing errors back to the LLM for a targeted fix.
// Everything that happens inside the loop is recorded into the migration
// record; only request-acceptance failures are returned as errors.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/guide"
	"github.com/cloudwego/tuxmigrate/migration/transform"
	"github.com/cloudwego/tuxmigrate/migration/validate"
)

// DefaultMaxRetries bounds attempts per validation step when the request
// does not say otherwise.
const DefaultMaxRetries = 3

// Transformer is the LLM boundary the orchestrator talks to. Satisfied by
// *transform.Transformer; substituted with a fake in tests.
type Transformer interface {
	Transform(ctx context.Context, code string, g *guide.Guide) (*transform.Result, error)
	Fix(ctx context.Context, code string, g *guide.Guide, step migration.StepType, attempt int, errs []migration.ErrorEntry) (*transform.Result, error)
}

// StepResolver turns requested step names into runnable steps, bound to the
// workspace of the file under migration. Resolution runs once, at request
// acceptance.
type StepResolver func(names []string) ([]validate.Step, error)

// Request is one migration to run. SourceCode must already be read from the
// repository; BaseBranch is passed through untouched for the git layer.
type Request struct {
	ID            string // optional pre-assigned record id
	ComponentName string
	SubrepoPath   string
	FilePath      string
	SourceCode    string
	Steps         []string
	MaxRetries    int
	BaseBranch    string
	CreatedBy     string
}

// Orchestrator runs migrations one at a time. It holds no mutable state of
// its own, so independent migrations may run concurrently on separate
// goroutines, each with its own workspace and record.
type Orchestrator struct {
	catalog     *guide.Catalog
	transformer Transformer
	resolve     StepResolver
	maxRetries  int
}

// Options tunes an Orchestrator.
type Options struct {
	// DefaultMaxRetries replaces DefaultMaxRetries when > 0.
	DefaultMaxRetries int
}

func New(catalog *guide.Catalog, tr Transformer, resolve StepResolver, opts Options) *Orchestrator {
	maxRetries := opts.DefaultMaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Orchestrator{catalog: catalog, transformer: tr, resolve: resolve, maxRetries: maxRetries}
}

// Accept validates a request without starting it: the component must be
// known and active, the source non-empty, every step name resolvable.
// These are the only failures ever surfaced to the caller.
func (o *Orchestrator) Accept(req Request) (*guide.Guide, []validate.Step, error) {
	if strings.TrimSpace(req.SourceCode) == "" {
		return nil, nil, migration.ErrEmptySource
	}
	g, err := o.catalog.Get(req.ComponentName)
	if err != nil {
		return nil, nil, err
	}
	steps, err := o.resolve(req.Steps)
	if err != nil {
		return nil, nil, err
	}
	return g, steps, nil
}

// Run executes the migration and always returns a terminal record once the
// request is accepted. A failed migration is a normal, fully described
// outcome, not an error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*migration.Record, error) {
	g, steps, err := o.Accept(req)
	if err != nil {
		return nil, err
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = o.maxRetries
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	selected := make([]migration.StepType, len(steps))
	for i, s := range steps {
		selected[i] = s.Type()
	}

	rec := &migration.Record{
		ID:            id,
		ComponentName: req.ComponentName,
		SubrepoPath:   req.SubrepoPath,
		FilePath:      req.FilePath,
		BaseBranch:    req.BaseBranch,
		CreatedBy:     req.CreatedBy,
		MaxRetries:    maxRetries,
		SelectedSteps: selected,
		Status:        migration.StatusRunning,
		OriginalCode:  req.SourceCode,
		StartedAt:     time.Now(),
	}
	log.Info("migration started", "id", rec.ID, "component", req.ComponentName, "steps", len(steps), "max_retries", maxRetries)

	res, err := o.transformer.Transform(ctx, req.SourceCode, g)
	if err != nil {
		// Fatal: there is no transformed code to target a fix against.
		log.Error("initial transform failed", "id", rec.ID, "err", err)
		o.finish(rec, false, false, fmt.Sprintf("transform failed: %v", err))
		return rec, nil
	}
	rec.MigrationNotes = res.Notes
	current := res.Code

	if len(steps) == 0 {
		log.Warn("no validation steps selected, accepting transform output unverified", "id", rec.ID)
	}

	for order, step := range steps {
		passed, codeAfter := o.runStep(ctx, rec, g, step, order+1, current, maxRetries)
		current = codeAfter
		if !passed {
			// Fail fast: a later step's input would be unvalidated.
			o.finish(rec, false, false, fmt.Sprintf("%s failed after %d attempts", step.Type(), maxRetries))
			return rec, nil
		}
	}

	rec.FinalCode = current
	o.finish(rec, true, true, "")
	return rec, nil
}

// runStep executes one validation step with the per-step retry budget,
// appending a StepAttempt per iteration. Returns whether the step passed and
// the code committed by this step (the next step's input).
func (o *Orchestrator) runStep(ctx context.Context, rec *migration.Record, g *guide.Guide, step validate.Step, order int, code string, maxRetries int) (bool, string) {
	current := code
	fixer, hasFixer := step.(validate.Fixer)
	// Index of the last attempt whose post-fix error set is still
	// unobserved; settled by the next successful tool run.
	prevIdx := -1

	for attempt := 1; attempt <= maxRetries; attempt++ {
		att := migration.StepAttempt{
			ID:            uuid.NewString(),
			StepType:      step.Type(),
			StepOrder:     order,
			AttemptNumber: attempt,
			Status:        migration.StepRunning,
			StartedAt:     time.Now(),
		}

		// Mechanical pre-fix (eslint --fix) folds into the evolving code
		// before the check; its failure is logged, not fatal.
		if hasFixer {
			if fixed, err := fixer.FixFirst(ctx, current); err != nil {
				log.Warn("pre-fix failed", "id", rec.ID, "step", step.Type(), "err", err)
			} else {
				current = fixed
			}
		}
		att.InputCode = current

		report, err := step.Run(ctx, current)
		if err != nil {
			// The tool crashed rather than reporting code errors. Consumes
			// one retry, recorded as a single system entry so analytics can
			// tell tooling flakiness from real defects.
			log.Warn("validation tool failed", "id", rec.ID, "step", step.Type(), "attempt", attempt, "err", err)
			att.ErrorsBefore = []migration.ErrorEntry{systemEntry(step.Type(), err)}
			att.Status = migration.StepFailed
			att.OutputCode = current
			finalizeAttempt(&att)
			rec.Steps = append(rec.Steps, att)
			continue
		}

		if prevIdx >= 0 {
			settlePrevious(&rec.Steps[prevIdx], report.Errors)
			prevIdx = -1
		}
		att.ErrorsBefore = report.Errors

		if report.Success {
			att.Status = migration.StepPassed
			att.OutputCode = current
			finalizeAttempt(&att)
			rec.Steps = append(rec.Steps, att)
			log.Info("validation step passed", "id", rec.ID, "step", step.Type(), "attempt", attempt)
			return true, current
		}
		log.Info("validation step found errors", "id", rec.ID, "step", step.Type(), "attempt", attempt, "errors", len(report.Errors))

		if attempt < maxRetries {
			att.LLMInvoked = true
			fixRes, ferr := o.transformer.Fix(ctx, current, g, step.Type(), attempt, report.Errors)
			ok := ferr == nil && fixRes != nil && fixRes.Code != ""
			att.LLMFixSuccessful = &ok
			if ok {
				current = fixRes.Code
			} else {
				// A failed fix call consumes the attempt; the next iteration
				// re-checks the unchanged code.
				log.Warn("LLM fix failed", "id", rec.ID, "step", step.Type(), "attempt", attempt, "err", ferr)
			}
		}
		att.Status = migration.StepFailed
		att.OutputCode = current
		finalizeAttempt(&att)
		rec.Steps = append(rec.Steps, att)
		prevIdx = len(rec.Steps) - 1
	}

	log.Error("validation step exhausted retries", "id", rec.ID, "step", step.Type(), "attempts", maxRetries)
	return false, current
}

// settlePrevious fills a finished attempt's after-set once the post-fix code
// has been checked, and computes the resolved/introduced counts by stable
// key (set difference, not positional).
func settlePrevious(prev *migration.StepAttempt, after []migration.ErrorEntry) {
	prev.ErrorsAfter = after
	prev.ErrorsResolved, prev.ErrorsIntroduced = migration.DiffErrors(prev.ErrorsBefore, after)
	prev.ErrorsBefore = migration.MarkResolved(prev.ErrorsBefore, after)
}

func systemEntry(step migration.StepType, err error) migration.ErrorEntry {
	var toolErr *migration.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.SystemEntry()
	}
	return migration.ErrorEntry{
		Kind:     migration.KindSystem,
		Severity: migration.SeverityFatal,
		Message:  fmt.Sprintf("%s step failed: %v", step, err),
	}
}

func finalizeAttempt(att *migration.StepAttempt) {
	att.CompletedAt = time.Now()
	att.Duration = att.CompletedAt.Sub(att.StartedAt)
}

// finish moves the record to its terminal state. completed_at is set on both
// paths and the record is immutable afterwards.
func (o *Orchestrator) finish(rec *migration.Record, success, validationPassed bool, summary string) {
	if success {
		rec.Status = migration.StatusCompleted
	} else {
		rec.Status = migration.StatusFailed
	}
	rec.OverallSuccess = success
	rec.ValidationPassed = validationPassed
	rec.ErrorSummary = summary
	rec.CompletedAt = time.Now()
	rec.Duration = rec.CompletedAt.Sub(rec.StartedAt)
	log.Info("migration finished", "id", rec.ID, "status", rec.Status, "success", success)
}
