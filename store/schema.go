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

package store

const schema = `
CREATE TABLE IF NOT EXISTS components (
	name            TEXT PRIMARY KEY,
	description     TEXT NOT NULL DEFAULT '',
	old_import_path TEXT NOT NULL DEFAULT '',
	new_import_path TEXT NOT NULL DEFAULT '',
	is_active       INTEGER NOT NULL DEFAULT 1,
	guide_path      TEXT NOT NULL DEFAULT '',
	updated_at      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS migrations (
	id                TEXT PRIMARY KEY,
	component_name    TEXT NOT NULL,
	subrepo_path      TEXT NOT NULL DEFAULT '',
	file_path         TEXT NOT NULL DEFAULT '',
	base_branch       TEXT NOT NULL DEFAULT '',
	branch_name       TEXT NOT NULL DEFAULT '',
	commit_hash       TEXT NOT NULL DEFAULT '',
	created_by        TEXT NOT NULL DEFAULT '',
	max_retries       INTEGER NOT NULL,
	selected_steps    TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL,
	original_code     TEXT NOT NULL DEFAULT '',
	final_code        TEXT NOT NULL DEFAULT '',
	migration_notes   TEXT NOT NULL DEFAULT '',
	error_summary     TEXT NOT NULL DEFAULT '',
	overall_success   INTEGER NOT NULL DEFAULT 0,
	validation_passed INTEGER NOT NULL DEFAULT 0,
	started_at        TEXT NOT NULL DEFAULT '',
	completed_at      TEXT NOT NULL DEFAULT '',
	duration_ms       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS validation_steps (
	id                 TEXT PRIMARY KEY,
	migration_id       TEXT NOT NULL REFERENCES migrations(id) ON DELETE CASCADE,
	step_type          TEXT NOT NULL,
	step_order         INTEGER NOT NULL,
	attempt_number     INTEGER NOT NULL,
	status             TEXT NOT NULL,
	input_code         TEXT NOT NULL DEFAULT '',
	output_code        TEXT NOT NULL DEFAULT '',
	errors_resolved    INTEGER NOT NULL DEFAULT 0,
	errors_introduced  INTEGER NOT NULL DEFAULT 0,
	llm_invoked        INTEGER NOT NULL DEFAULT 0,
	llm_fix_successful INTEGER,
	started_at         TEXT NOT NULL DEFAULT '',
	completed_at       TEXT NOT NULL DEFAULT '',
	duration_ms        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS error_logs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	step_id   TEXT NOT NULL REFERENCES validation_steps(id) ON DELETE CASCADE,
	phase     TEXT NOT NULL,
	kind      TEXT NOT NULL,
	severity  INTEGER NOT NULL,
	rule_id   TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	line      INTEGER NOT NULL DEFAULT 0,
	col       INTEGER NOT NULL DEFAULT 0,
	message   TEXT NOT NULL DEFAULT '',
	resolved  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_migrations_component ON migrations(component_name);
CREATE INDEX IF NOT EXISTS idx_migrations_status ON migrations(status);
CREATE INDEX IF NOT EXISTS idx_steps_migration ON validation_steps(migration_id);
CREATE INDEX IF NOT EXISTS idx_errors_step ON error_logs(step_id);
`
