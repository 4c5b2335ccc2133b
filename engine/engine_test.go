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

package engine

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/tuxmigrate/config"
	"github.com/cloudwego/tuxmigrate/gitops"
	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/guide"
	"github.com/cloudwego/tuxmigrate/migration/orchestrate"
	"github.com/cloudwego/tuxmigrate/migration/transform"
	"github.com/cloudwego/tuxmigrate/migration/validate"
	"github.com/cloudwego/tuxmigrate/store"
)

// fakeTransformer replays one migration result and never fixes.
type fakeTransformer struct{ code string }

func (f *fakeTransformer) Transform(_ context.Context, _ string, _ *guide.Guide) (*transform.Result, error) {
	return &transform.Result{Code: f.code}, nil
}

func (f *fakeTransformer) Fix(_ context.Context, _ string, _ *guide.Guide, _ migration.StepType, _ int, _ []migration.ErrorEntry) (*transform.Result, error) {
	return nil, errors.New("no fix available")
}

// crashRunner simulates a missing validation toolchain: every invocation
// fails to start.
type crashRunner struct{}

func (crashRunner) Run(_ context.Context, _, name string, _ ...string) (*validate.CommandResult, error) {
	return nil, errors.New(name + ": command not found")
}

// passRunner simulates tools that find nothing to complain about.
type passRunner struct{}

func (passRunner) Run(_ context.Context, _, _ string, _ ...string) (*validate.CommandResult, error) {
	return &validate.CommandResult{}, nil
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

// initTestRepo builds a local-only checkout (no origin) seeded with two
// component files on master. Host git config is masked so the checkout has no
// committer identity of its own.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(t.TempDir(), "gitconfig"))
	t.Setenv("GIT_CONFIG_SYSTEM", os.DevNull)

	dir := t.TempDir()
	gitCmd(t, dir, "init")
	gitCmd(t, dir, "symbolic-ref", "HEAD", "refs/heads/master")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "apps/web/src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apps/web/src/A.tsx"), []byte("old A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apps/web/src/B.tsx"), []byte("old B"), 0o644))
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "-c", "user.name=dev", "-c", "user.email=dev@example.com", "commit", "-m", "seed")
	return dir
}

func newTestEngine(t *testing.T, repoRoot string, tr orchestrate.Transformer, runner validate.CommandRunner) (*Engine, *store.Store) {
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
		RepoPath:          repoRoot,
		GuidesDir:         guidesDir,
		BaseBranch:        "master",
		DefaultMaxRetries: 2,
		DefaultSteps:      []string{"eslint"},
	}
	return New(cfg, catalog, tr, gitops.NewRepo(repoRoot), st).WithRunner(runner), st
}

func migrateReq(id, file string) orchestrate.Request {
	return orchestrate.Request{
		ID:            id,
		ComponentName: "TUXButton",
		SubrepoPath:   "apps/web",
		FilePath:      file,
		Steps:         []string{"eslint"},
		CreatedBy:     "tester",
	}
}

// A migration whose validation tooling crashes until the retry budget runs
// out must leave no trace: original file restored, branch gone, tree clean.
func TestExecuteFailureRestoresWorkingTree(t *testing.T) {
	repo := initTestRepo(t)
	eng, st := newTestEngine(t, repo, &fakeTransformer{code: "candidate A"}, crashRunner{})

	rec, err := eng.Execute(context.Background(), migrateReq("m1", "src/A.tsx"))
	require.NoError(t, err)
	require.Equal(t, migration.StatusFailed, rec.Status)
	require.Empty(t, rec.BranchName)
	require.Empty(t, rec.CommitHash)

	data, err := os.ReadFile(filepath.Join(repo, "apps/web/src/A.tsx"))
	require.NoError(t, err)
	require.Equal(t, "old A", string(data))
	require.Empty(t, gitCmd(t, repo, "branch", "--list", "migration/*"))
	require.Empty(t, gitCmd(t, repo, "status", "--porcelain"))
	require.Equal(t, "master", gitCmd(t, repo, "rev-parse", "--abbrev-ref", "HEAD"))

	saved, err := st.GetRecord(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, migration.StatusFailed, saved.Status)
}

// A successful migration after an earlier failed one commits only its own
// file, even though validation steps of the failed run touched the tree.
func TestExecuteSuccessCommitsOnlyMigratedFile(t *testing.T) {
	repo := initTestRepo(t)

	failEng, _ := newTestEngine(t, repo, &fakeTransformer{code: "candidate A"}, crashRunner{})
	rec, err := failEng.Execute(context.Background(), migrateReq("m1", "src/A.tsx"))
	require.NoError(t, err)
	require.Equal(t, migration.StatusFailed, rec.Status)

	okEng, _ := newTestEngine(t, repo, &fakeTransformer{code: "new B"}, passRunner{})
	rec, err = okEng.Execute(context.Background(), migrateReq("m2", "src/B.tsx"))
	require.NoError(t, err)
	require.Equal(t, migration.StatusCompleted, rec.Status)
	require.NotEmpty(t, rec.CommitHash)
	require.True(t, strings.HasPrefix(rec.BranchName, "migration/tuxbutton-"))

	// The commit carries the migrated file and nothing else.
	files := gitCmd(t, repo, "show", "--pretty=format:", "--name-only", rec.CommitHash)
	require.Equal(t, "apps/web/src/B.tsx", files)
	require.Equal(t, "old A", gitCmd(t, repo, "show", rec.CommitHash+":apps/web/src/A.tsx"))
	require.Equal(t, "new B", gitCmd(t, repo, "show", rec.CommitHash+":apps/web/src/B.tsx"))
}
