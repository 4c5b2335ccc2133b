/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package transform is the translation boundary to the LLM: it builds
// migration and fix prompts, invokes the model, and extracts the rewritten
// file from the response. It never touches a migration record.
package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/guide"
)

// DefaultFixErrorLimit caps how many errors are embedded in a fix prompt.
// Highest severity wins; the rest are summarized by count to bound request
// size.
const DefaultFixErrorLimit = 20

// Result is one LLM transformation outcome.
type Result struct {
	Code  string
	Notes string
}

// Options tunes a Transformer.
type Options struct {
	// FixErrorLimit overrides DefaultFixErrorLimit when > 0.
	FixErrorLimit int
}

// Transformer wraps a Generator into the two operations the orchestrator
// needs: the initial migration and targeted error fixes.
type Transformer struct {
	gen           Generator
	fixErrorLimit int
}

// New builds a Transformer on top of gen.
func New(gen Generator, opts Options) *Transformer {
	limit := opts.FixErrorLimit
	if limit <= 0 {
		limit = DefaultFixErrorLimit
	}
	return &Transformer{gen: gen, fixErrorLimit: limit}
}

// Transform rewrites code according to the component's migration guide.
// Provider-level failures and responses without a code block both surface as
// *migration.TransformError; the caller must still validate the output.
func (t *Transformer) Transform(ctx context.Context, code string, g *guide.Guide) (*Result, error) {
	prompt := renderTemplate(migrateTpl, migratePromptData{
		Component: g.Name,
		Code:      code,
		Guide:     g.Instructions,
	})
	resp, err := t.gen.Call(ctx, prompt)
	if err != nil {
		return nil, &migration.TransformError{Cause: err}
	}
	out, ok := ExtractCodeBlock(resp)
	if !ok {
		log.Warn("no code block in migration response", "component", g.Name, "response_len", len(resp))
		return nil, &migration.TransformError{Cause: fmt.Errorf("response contains no code block")}
	}
	return &Result{Code: out, Notes: ExtractNotes(resp)}, nil
}

// Fix asks the model to resolve exactly the given validation failures in
// code. The error list is capped at the configured limit before prompt
// construction.
func (t *Transformer) Fix(ctx context.Context, code string, g *guide.Guide, step migration.StepType, attempt int, errs []migration.ErrorEntry) (*Result, error) {
	capped := capErrors(errs, t.fixErrorLimit)
	errJSON, err := json.MarshalIndent(capped, "", "  ")
	if err != nil {
		return nil, &migration.TransformError{Cause: err}
	}
	prompt := renderTemplate(fixTpl, fixPromptData{
		StepName:   stepName(step),
		Attempt:    attempt,
		Code:       code,
		ErrorsJSON: string(errJSON),
		Omitted:    len(errs) - len(capped),
		Focus:      stepFocus(step),
	})
	resp, err := t.gen.Call(ctx, prompt)
	if err != nil {
		return nil, &migration.TransformError{Cause: err}
	}
	out, ok := ExtractCodeBlock(resp)
	if !ok {
		log.Warn("no code block in fix response", "component", g.Name, "step", step)
		return nil, &migration.TransformError{Cause: fmt.Errorf("fix response contains no code block")}
	}
	return &Result{Code: out, Notes: ExtractNotes(resp)}, nil
}

// capErrors keeps at most limit entries, highest severity first. Order
// within a severity is preserved.
func capErrors(errs []migration.ErrorEntry, limit int) []migration.ErrorEntry {
	if len(errs) <= limit {
		return errs
	}
	out := make([]migration.ErrorEntry, len(errs))
	copy(out, errs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out[:limit]
}
