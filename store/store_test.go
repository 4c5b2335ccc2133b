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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/guide"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string, status migration.Status) *migration.Record {
	started := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	fixOK := true
	return &migration.Record{
		ID:               id,
		ComponentName:    "TUXButton",
		SubrepoPath:      "apps/web",
		FilePath:         "src/A.tsx",
		BaseBranch:       "master",
		BranchName:       "migration/tuxbutton-20250820-100000",
		CommitHash:       "abc123",
		CreatedBy:        "tester",
		MaxRetries:       3,
		SelectedSteps:    []migration.StepType{migration.StepESLint, migration.StepBuild},
		Status:           status,
		OriginalCode:     "old",
		FinalCode:        "new",
		OverallSuccess:   status == migration.StatusCompleted,
		ValidationPassed: status == migration.StatusCompleted,
		Steps: []migration.StepAttempt{
			{
				ID: id + "-s1", StepType: migration.StepESLint, StepOrder: 1, AttemptNumber: 1,
				Status: migration.StepFailed, InputCode: "v1", OutputCode: "v2",
				ErrorsBefore: []migration.ErrorEntry{{
					Kind: migration.KindLint, Severity: migration.SeverityError,
					RuleID: "no-unused-vars", FilePath: "src/A.tsx", Line: 3, Column: 7,
					Message: "'x' is defined but never used", Resolved: true,
				}},
				ErrorsResolved: 1, LLMInvoked: true, LLMFixSuccessful: &fixOK,
				StartedAt: started, CompletedAt: started.Add(time.Second), Duration: time.Second,
			},
			{
				ID: id + "-s2", StepType: migration.StepESLint, StepOrder: 1, AttemptNumber: 2,
				Status: migration.StepPassed, InputCode: "v2", OutputCode: "v2",
				StartedAt: started.Add(time.Second), CompletedAt: started.Add(2 * time.Second), Duration: time.Second,
			},
		},
		StartedAt:   started,
		CompletedAt: started.Add(time.Minute),
		Duration:    time.Minute,
	}
}

func TestSaveAndGetRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := sampleRecord("m1", migration.StatusCompleted)
	require.NoError(t, s.SaveRecord(ctx, want))

	got, err := s.GetRecord(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Saving again overwrites rather than duplicating.
	want.Status = migration.StatusFailed
	want.Steps = want.Steps[:1]
	require.NoError(t, s.SaveRecord(ctx, want))
	got, err = s.GetRecord(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, migration.StatusFailed, got.Status)
	require.Len(t, got.Steps, 1)
}

func TestGetRecordNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRecord(context.Background(), "nope")
	require.ErrorIs(t, err, migration.ErrNotFound)
}

func TestDeleteRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, sampleRecord("m1", migration.StatusCompleted)))
	require.NoError(t, s.DeleteRecord(ctx, "m1"))
	_, err := s.GetRecord(ctx, "m1")
	require.ErrorIs(t, err, migration.ErrNotFound)

	// Deleting an unknown id is a no-op.
	require.NoError(t, s.DeleteRecord(ctx, "nope"))
}

func TestCreatePendingThenFinish(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pending := &migration.Record{
		ID: "m1", ComponentName: "TUXButton", FilePath: "src/A.tsx",
		MaxRetries: 3, SelectedSteps: []migration.StepType{migration.StepESLint},
	}
	require.NoError(t, s.CreatePending(ctx, pending))

	got, err := s.GetRecord(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, migration.StatusPending, got.Status)

	// The terminal save replaces the pending row.
	require.NoError(t, s.SaveRecord(ctx, sampleRecord("m1", migration.StatusCompleted)))
	got, err = s.GetRecord(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, migration.StatusCompleted, got.Status)
	require.Len(t, got.Steps, 2)
}

func TestListRecordsFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := sampleRecord("m1", migration.StatusCompleted)
	b := sampleRecord("m2", migration.StatusFailed)
	b.ComponentName = "TUXSheet"
	b.StartedAt = a.StartedAt.Add(time.Hour)
	require.NoError(t, s.SaveRecord(ctx, a))
	require.NoError(t, s.SaveRecord(ctx, b))

	all, err := s.ListRecords(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "m2", all[0].ID, "newest first")
	require.Empty(t, all[0].Steps, "list omits step history")

	byComponent, err := s.ListRecords(ctx, ListFilter{Component: "TUXSheet"})
	require.NoError(t, err)
	require.Len(t, byComponent, 1)
	require.Equal(t, "m2", byComponent[0].ID)

	byStatus, err := s.ListRecords(ctx, ListFilter{Status: migration.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)

	paged, err := s.ListRecords(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, "m1", paged[0].ID)
}

func TestComponentsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := &guide.Guide{
		Name: "TUXButton", Description: "Button migration",
		OldImportPath: "@old/tux-components", NewImportPath: "@new/tux-ui",
		IsActive: true, Path: "TUXButton.md",
	}
	require.NoError(t, s.UpsertComponent(ctx, g))

	// Second upsert updates in place.
	g.IsActive = false
	require.NoError(t, s.UpsertComponent(ctx, g))

	got, err := s.ListComponents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "TUXButton", got[0].Name)
	require.False(t, got[0].IsActive)
}

func TestAnalytics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok := sampleRecord("m1", migration.StatusCompleted)
	bad := sampleRecord("m2", migration.StatusFailed)
	// Keep trends in range: analytics bucket by start day.
	ok.StartedAt = time.Now().UTC().Add(-24 * time.Hour)
	bad.StartedAt = time.Now().UTC()
	require.NoError(t, s.SaveRecord(ctx, ok))
	require.NoError(t, s.SaveRecord(ctx, bad))

	o, err := s.Overview(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, o.Total)
	require.Equal(t, 1, o.Completed)
	require.Equal(t, 1, o.Failed)
	require.InDelta(t, 0.5, o.SuccessRate, 1e-9)
	require.InDelta(t, 0.5, o.ValidationPassRate, 1e-9)
	require.InDelta(t, 2.0, o.AvgAttempts, 1e-9, "each record has one step with two attempts")
	require.Equal(t, []ComponentStat{{Component: "TUXButton", Total: 2, Completed: 1}}, o.ByComponent)

	trends, err := s.Trends(ctx, 7)
	require.NoError(t, err)
	require.Len(t, trends, 2)

	patterns, err := s.ErrorPatterns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	require.Equal(t, "no-unused-vars", patterns[0].RuleID)
	require.Equal(t, 2, patterns[0].Count)
	require.InDelta(t, 1.0, patterns[0].ResolveRate, 1e-9)
}
