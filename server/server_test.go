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

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/tuxmigrate/config"
	"github.com/cloudwego/tuxmigrate/engine"
	"github.com/cloudwego/tuxmigrate/gitops"
	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/guide"
	"github.com/cloudwego/tuxmigrate/store"
)

// newTestServer builds a server over a real store and catalog but without
// running workers, so POST /api/migrate only queues.
func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	guidesDir := t.TempDir()
	guideMD := "---\nname: TUXButton\nold_import: \"@old/tux-components\"\nnew_import: \"@new/tux-ui\"\n---\n# TUXButton Migration Guide\n"
	require.NoError(t, os.WriteFile(filepath.Join(guidesDir, "TUXButton.md"), []byte(guideMD), 0o644))
	catalog, err := guide.LoadCatalog(guidesDir)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		RepoPath:          t.TempDir(),
		GuidesDir:         guidesDir,
		BaseBranch:        "master",
		DefaultMaxRetries: 3,
		DefaultSteps:      []string{"eslint", "typescript"},
		Server:            config.ServerConfig{Addr: ":0", Workers: 1},
	}
	eng := engine.New(cfg, catalog, nil, gitops.NewRepo(cfg.RepoPath), st)
	return New(cfg, eng), st
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var decoded map[string]any
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	}
	return rr, decoded
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rr, body := doJSON(t, s.Handler(), "GET", "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", body["status"])
}

func TestMigrateAcceptsAndQueues(t *testing.T) {
	s, st := newTestServer(t)
	rr, body := doJSON(t, s.Handler(), "POST", "/api/migrate",
		`{"component_name": "TUXButton", "subrepo_path": "apps/web", "file_path": "src/A.tsx"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, "pending", body["status"])

	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	rec, err := st.GetRecord(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, migration.StatusPending, rec.Status)
	require.Equal(t, "TUXButton", rec.ComponentName)
	// Omitted steps fall back to the configured defaults.
	require.Equal(t, []migration.StepType{migration.StepESLint, migration.StepTypeScript}, rec.SelectedSteps)
	require.Equal(t, 3, rec.MaxRetries)
	require.Equal(t, "master", rec.BaseBranch)
}

func TestMigrateRejections(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"unknown component", `{"component_name": "TUXDialog", "file_path": "src/A.tsx"}`, http.StatusNotFound},
		{"unknown step", `{"component_name": "TUXButton", "file_path": "src/A.tsx", "steps": ["banana"]}`, http.StatusBadRequest},
		{"missing file path", `{"component_name": "TUXButton"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := doJSON(t, s.Handler(), "POST", "/api/migrate", tt.body)
			require.Equal(t, tt.code, rr.Code)
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestGetMigration(t *testing.T) {
	s, st := newTestServer(t)
	rec := &migration.Record{
		ID: "m1", ComponentName: "TUXButton", FilePath: "src/A.tsx",
		MaxRetries: 3, Status: migration.StatusCompleted,
		SelectedSteps: []migration.StepType{migration.StepESLint},
	}
	require.NoError(t, st.SaveRecord(t.Context(), rec))

	rr, body := doJSON(t, s.Handler(), "GET", "/api/migrations/m1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "m1", body["id"])
	require.Equal(t, "completed", body["status"])

	rr, _ = doJSON(t, s.Handler(), "GET", "/api/migrations/nope", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListMigrations(t *testing.T) {
	s, st := newTestServer(t)
	for _, id := range []string{"m1", "m2"} {
		require.NoError(t, st.SaveRecord(t.Context(), &migration.Record{
			ID: id, ComponentName: "TUXButton", FilePath: "src/A.tsx",
			MaxRetries: 3, Status: migration.StatusFailed,
			SelectedSteps: []migration.StepType{},
		}))
	}
	rr, _ := doJSON(t, s.Handler(), "GET", "/api/migrations?status=failed", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 2)
}

func TestComponentsAndDiscover(t *testing.T) {
	s, st := newTestServer(t)

	// Before discovery the store mirror is empty, and that is what the
	// endpoint serves.
	rr, _ := doJSON(t, s.Handler(), "GET", "/api/components", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var comps []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &comps))
	require.Empty(t, comps)

	rr, body := doJSON(t, s.Handler(), "POST", "/api/components/discover", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 1, body["discovered"])

	rr, _ = doJSON(t, s.Handler(), "GET", "/api/components", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &comps))
	require.Len(t, comps, 1)
	require.Equal(t, "TUXButton", comps[0]["name"])

	list, err := st.ListComponents(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "TUXButton", list[0].Name)
}

func TestMigrateQueueFullLeavesNoPendingRecord(t *testing.T) {
	s, st := newTestServer(t)
	body := `{"component_name": "TUXButton", "file_path": "src/A.tsx"}`

	// No workers are draining, so the queue fills up.
	for i := 0; i < cap(s.jobs); i++ {
		rr, _ := doJSON(t, s.Handler(), "POST", "/api/migrate", body)
		require.Equal(t, http.StatusAccepted, rr.Code)
	}
	rr, resp := doJSON(t, s.Handler(), "POST", "/api/migrate", body)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NotEmpty(t, resp["error"])

	recs, err := st.ListRecords(t.Context(), store.ListFilter{Status: migration.StatusPending})
	require.NoError(t, err)
	require.Len(t, recs, cap(s.jobs), "a rejected request must not leave a pending row")
}

func TestAnalyticsEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{
		"/api/analytics/overview",
		"/api/analytics/trends",
		"/api/analytics/errors",
	} {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)
	}
}
