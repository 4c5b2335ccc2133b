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

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Overview aggregates migration outcomes across the whole history.
type Overview struct {
	Total              int             `json:"total"`
	Completed          int             `json:"completed"`
	Failed             int             `json:"failed"`
	InFlight           int             `json:"in_flight"`
	SuccessRate        float64         `json:"success_rate"`
	ValidationPassRate float64         `json:"validation_pass_rate"`
	AvgDurationMs      int64           `json:"avg_duration_ms"`
	AvgAttempts        float64         `json:"avg_attempts_per_step"`
	ByComponent        []ComponentStat `json:"by_component"`
}

// ComponentStat is one component's slice of the history.
type ComponentStat struct {
	Component string `json:"component"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// Overview computes the dashboard headline numbers.
func (s *Store) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	var validationPassed int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'failed'), 0),
			COALESCE(SUM(status IN ('pending', 'running')), 0),
			COALESCE(SUM(validation_passed), 0),
			CAST(COALESCE(AVG(CASE WHEN status IN ('completed', 'failed') THEN duration_ms END), 0) AS INTEGER)
		FROM migrations`).Scan(&o.Total, &o.Completed, &o.Failed, &o.InFlight, &validationPassed, &o.AvgDurationMs)
	if err != nil {
		return nil, errors.Wrap(err, "overview")
	}
	if done := o.Completed + o.Failed; done > 0 {
		o.SuccessRate = float64(o.Completed) / float64(done)
		o.ValidationPassRate = float64(validationPassed) / float64(done)
	}

	// Attempts averaged per (migration, step type) pair, so a step that
	// needed three retries counts as 3, not as three separate steps.
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(n), 0) FROM (
			SELECT COUNT(*) AS n FROM validation_steps GROUP BY migration_id, step_type
		)`).Scan(&o.AvgAttempts)
	if err != nil {
		return nil, errors.Wrap(err, "overview attempts")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT component_name, COUNT(*), COALESCE(SUM(status = 'completed'), 0)
		FROM migrations GROUP BY component_name ORDER BY COUNT(*) DESC, component_name`)
	if err != nil {
		return nil, errors.Wrap(err, "overview components")
	}
	defer rows.Close()
	for rows.Next() {
		var c ComponentStat
		if err := rows.Scan(&c.Component, &c.Total, &c.Completed); err != nil {
			return nil, errors.Wrap(err, "scan component stat")
		}
		o.ByComponent = append(o.ByComponent, c)
	}
	return &o, rows.Err()
}

// TrendPoint is one day of migration volume.
type TrendPoint struct {
	Day       string `json:"day"` // YYYY-MM-DD
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// Trends returns daily counts for the last n days, oldest first. Days with
// no migrations are absent.
func (s *Store) Trends(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days).UTC().Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(started_at, 1, 10) AS day,
			COUNT(*),
			COALESCE(SUM(status = 'completed'), 0)
		FROM migrations
		WHERE started_at >= ?
		GROUP BY day ORDER BY day`, since)
	if err != nil {
		return nil, errors.Wrap(err, "trends")
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Day, &p.Total, &p.Completed); err != nil {
			return nil, errors.Wrap(err, "scan trend")
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// ErrorPattern is a recurring validation error grouped by kind and rule.
type ErrorPattern struct {
	Kind        string  `json:"kind"`
	RuleID      string  `json:"rule_id"`
	Count       int     `json:"count"`
	ResolveRate float64 `json:"resolve_rate"`
}

// ErrorPatterns returns the most frequent error groups seen before fixes,
// with the share the LLM loop eventually resolved.
func (s *Store) ErrorPatterns(ctx context.Context, limit int) ([]ErrorPattern, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, rule_id, COUNT(*), COALESCE(AVG(resolved), 0)
		FROM error_logs
		WHERE phase = 'before'
		GROUP BY kind, rule_id
		ORDER BY COUNT(*) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "error patterns")
	}
	defer rows.Close()

	var patterns []ErrorPattern
	for rows.Next() {
		var p ErrorPattern
		if err := rows.Scan(&p.Kind, &p.RuleID, &p.Count, &p.ResolveRate); err != nil {
			return nil, errors.Wrap(err, "scan error pattern")
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error patterns: %w", err)
	}
	return patterns, nil
}
