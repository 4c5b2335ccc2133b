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

// Package store persists migration records, their step attempts, and their
// per-error logs to sqlite. The record returned by the orchestrator is the
// source of truth; the store writes it whole and reassembles it whole.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/guide"
)

// Store wraps the sqlite handle. Safe for concurrent use; sqlite serializes
// writers internally.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "configure database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func timeToDB(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func timeFromDB(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stepsToJSON(steps []migration.StepType) string {
	if steps == nil {
		steps = []migration.StepType{}
	}
	b, _ := json.Marshal(steps)
	return string(b)
}

// CreatePending records an accepted migration before it starts running, so
// it is queryable while queued.
func (s *Store) CreatePending(ctx context.Context, rec *migration.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO migrations (id, component_name, subrepo_path, file_path, base_branch,
			created_by, max_retries, selected_steps, status, original_code, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ComponentName, rec.SubrepoPath, rec.FilePath, rec.BaseBranch,
		rec.CreatedBy, rec.MaxRetries, stepsToJSON(rec.SelectedSteps),
		string(migration.StatusPending), rec.OriginalCode, timeToDB(time.Now()))
	return errors.Wrap(err, "create pending migration")
}

// DeleteRecord removes a record and, via cascade, its step attempts and
// error logs. Used to undo a pending row whose migration never got queued.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM migrations WHERE id = ?`, id)
	return errors.Wrap(err, "delete migration")
}

// SaveRecord writes a record and all of its step attempts and error logs in
// one transaction, replacing any previous state for the same id.
func (s *Store) SaveRecord(ctx context.Context, rec *migration.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin save")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO migrations (id, component_name, subrepo_path, file_path, base_branch,
			branch_name, commit_hash, created_by, max_retries, selected_steps, status,
			original_code, final_code, migration_notes, error_summary,
			overall_success, validation_passed, started_at, completed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			branch_name=excluded.branch_name, commit_hash=excluded.commit_hash,
			max_retries=excluded.max_retries, selected_steps=excluded.selected_steps,
			status=excluded.status, original_code=excluded.original_code,
			final_code=excluded.final_code, migration_notes=excluded.migration_notes,
			error_summary=excluded.error_summary, overall_success=excluded.overall_success,
			validation_passed=excluded.validation_passed, started_at=excluded.started_at,
			completed_at=excluded.completed_at, duration_ms=excluded.duration_ms`,
		rec.ID, rec.ComponentName, rec.SubrepoPath, rec.FilePath, rec.BaseBranch,
		rec.BranchName, rec.CommitHash, rec.CreatedBy, rec.MaxRetries,
		stepsToJSON(rec.SelectedSteps), string(rec.Status),
		rec.OriginalCode, rec.FinalCode, rec.MigrationNotes, rec.ErrorSummary,
		rec.OverallSuccess, rec.ValidationPassed,
		timeToDB(rec.StartedAt), timeToDB(rec.CompletedAt), rec.Duration.Milliseconds()); err != nil {
		return errors.Wrap(err, "save migration")
	}

	// Replace step attempts wholesale; error_logs cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM validation_steps WHERE migration_id = ?`, rec.ID); err != nil {
		return errors.Wrap(err, "clear step attempts")
	}
	for _, att := range rec.Steps {
		var fix sql.NullBool
		if att.LLMFixSuccessful != nil {
			fix = sql.NullBool{Bool: *att.LLMFixSuccessful, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO validation_steps (id, migration_id, step_type, step_order,
				attempt_number, status, input_code, output_code,
				errors_resolved, errors_introduced, llm_invoked, llm_fix_successful,
				started_at, completed_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			att.ID, rec.ID, string(att.StepType), att.StepOrder,
			att.AttemptNumber, string(att.Status), att.InputCode, att.OutputCode,
			att.ErrorsResolved, att.ErrorsIntroduced, att.LLMInvoked, fix,
			timeToDB(att.StartedAt), timeToDB(att.CompletedAt), att.Duration.Milliseconds()); err != nil {
			return errors.Wrap(err, "save step attempt")
		}
		if err := saveErrors(ctx, tx, att.ID, "before", att.ErrorsBefore); err != nil {
			return err
		}
		if err := saveErrors(ctx, tx, att.ID, "after", att.ErrorsAfter); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "commit save")
}

func saveErrors(ctx context.Context, tx *sql.Tx, stepID, phase string, errs []migration.ErrorEntry) error {
	for _, e := range errs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO error_logs (step_id, phase, kind, severity, rule_id, file_path, line, col, message, resolved)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stepID, phase, string(e.Kind), int(e.Severity), e.RuleID, e.FilePath,
			e.Line, e.Column, e.Message, e.Resolved); err != nil {
			return errors.Wrap(err, "save error log")
		}
	}
	return nil
}

// GetRecord loads one record with its full step and error history.
func (s *Store) GetRecord(ctx context.Context, id string) (*migration.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, component_name, subrepo_path, file_path, base_branch, branch_name,
			commit_hash, created_by, max_retries, selected_steps, status,
			original_code, final_code, migration_notes, error_summary,
			overall_success, validation_passed, started_at, completed_at, duration_ms
		FROM migrations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("migration %q: %w", id, migration.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load migration")
	}
	if rec.Steps, err = s.loadSteps(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*migration.Record, error) {
	var rec migration.Record
	var stepsJSON, status, started, completed string
	var durationMs int64
	if err := row.Scan(&rec.ID, &rec.ComponentName, &rec.SubrepoPath, &rec.FilePath,
		&rec.BaseBranch, &rec.BranchName, &rec.CommitHash, &rec.CreatedBy,
		&rec.MaxRetries, &stepsJSON, &status,
		&rec.OriginalCode, &rec.FinalCode, &rec.MigrationNotes, &rec.ErrorSummary,
		&rec.OverallSuccess, &rec.ValidationPassed, &started, &completed, &durationMs); err != nil {
		return nil, err
	}
	rec.Status = migration.Status(status)
	if err := json.Unmarshal([]byte(stepsJSON), &rec.SelectedSteps); err != nil {
		return nil, errors.Wrap(err, "decode selected steps")
	}
	rec.StartedAt = timeFromDB(started)
	rec.CompletedAt = timeFromDB(completed)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}

func (s *Store) loadSteps(ctx context.Context, migrationID string) ([]migration.StepAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step_type, step_order, attempt_number, status, input_code, output_code,
			errors_resolved, errors_introduced, llm_invoked, llm_fix_successful,
			started_at, completed_at, duration_ms
		FROM validation_steps WHERE migration_id = ?
		ORDER BY step_order, attempt_number`, migrationID)
	if err != nil {
		return nil, errors.Wrap(err, "load step attempts")
	}
	defer rows.Close()

	var steps []migration.StepAttempt
	for rows.Next() {
		var att migration.StepAttempt
		var stepType, status, started, completed string
		var fix sql.NullBool
		var durationMs int64
		if err := rows.Scan(&att.ID, &stepType, &att.StepOrder, &att.AttemptNumber,
			&status, &att.InputCode, &att.OutputCode,
			&att.ErrorsResolved, &att.ErrorsIntroduced, &att.LLMInvoked, &fix,
			&started, &completed, &durationMs); err != nil {
			return nil, errors.Wrap(err, "scan step attempt")
		}
		att.StepType = migration.StepType(stepType)
		att.Status = migration.StepStatus(status)
		if fix.Valid {
			v := fix.Bool
			att.LLMFixSuccessful = &v
		}
		att.StartedAt = timeFromDB(started)
		att.CompletedAt = timeFromDB(completed)
		att.Duration = time.Duration(durationMs) * time.Millisecond
		if att.ErrorsBefore, err = s.loadErrors(ctx, att.ID, "before"); err != nil {
			return nil, err
		}
		if att.ErrorsAfter, err = s.loadErrors(ctx, att.ID, "after"); err != nil {
			return nil, err
		}
		steps = append(steps, att)
	}
	return steps, rows.Err()
}

func (s *Store) loadErrors(ctx context.Context, stepID, phase string) ([]migration.ErrorEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, severity, rule_id, file_path, line, col, message, resolved
		FROM error_logs WHERE step_id = ? AND phase = ? ORDER BY id`, stepID, phase)
	if err != nil {
		return nil, errors.Wrap(err, "load error logs")
	}
	defer rows.Close()

	var entries []migration.ErrorEntry
	for rows.Next() {
		var e migration.ErrorEntry
		var kind string
		var severity int
		if err := rows.Scan(&kind, &severity, &e.RuleID, &e.FilePath, &e.Line, &e.Column, &e.Message, &e.Resolved); err != nil {
			return nil, errors.Wrap(err, "scan error log")
		}
		e.Kind = migration.ErrorKind(kind)
		e.Severity = migration.Severity(severity)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListFilter narrows ListRecords. Zero values mean "no filter"; Limit 0
// defaults to 50.
type ListFilter struct {
	Component string
	Status    migration.Status
	Limit     int
	Offset    int
}

// ListRecords returns record summaries, newest first, without step history.
func (s *Store) ListRecords(ctx context.Context, f ListFilter) ([]*migration.Record, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query := `
		SELECT id, component_name, subrepo_path, file_path, base_branch, branch_name,
			commit_hash, created_by, max_retries, selected_steps, status,
			original_code, final_code, migration_notes, error_summary,
			overall_success, validation_passed, started_at, completed_at, duration_ms
		FROM migrations WHERE 1=1`
	var args []any
	if f.Component != "" {
		query += " AND component_name = ?"
		args = append(args, f.Component)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	query += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list migrations")
	}
	defer rows.Close()

	var recs []*migration.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan migration")
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpsertComponent mirrors a catalog guide into the components table so the
// API can serve the component list without touching the filesystem.
func (s *Store) UpsertComponent(ctx context.Context, g *guide.Guide) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO components (name, description, old_import_path, new_import_path, is_active, guide_path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description=excluded.description, old_import_path=excluded.old_import_path,
			new_import_path=excluded.new_import_path, is_active=excluded.is_active,
			guide_path=excluded.guide_path, updated_at=excluded.updated_at`,
		g.Name, g.Description, g.OldImportPath, g.NewImportPath, g.IsActive, g.Path,
		timeToDB(time.Now()))
	return errors.Wrap(err, "upsert component")
}

// ListComponents returns all known components, active first, by name.
func (s *Store) ListComponents(ctx context.Context) ([]guide.Guide, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, old_import_path, new_import_path, is_active, guide_path
		FROM components ORDER BY is_active DESC, name`)
	if err != nil {
		return nil, errors.Wrap(err, "list components")
	}
	defer rows.Close()

	var guides []guide.Guide
	for rows.Next() {
		var g guide.Guide
		if err := rows.Scan(&g.Name, &g.Description, &g.OldImportPath, &g.NewImportPath, &g.IsActive, &g.Path); err != nil {
			return nil, errors.Wrap(err, "scan component")
		}
		guides = append(guides, g)
	}
	return guides, rows.Err()
}
