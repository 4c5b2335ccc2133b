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

// Package engine runs a migration end to end: branch off the base branch,
// read the component file, run the transform/validate loop, then commit the
// result or discard the branch. Shared by the HTTP API and the CLI.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cloudwego/tuxmigrate/config"
	"github.com/cloudwego/tuxmigrate/gitops"
	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/guide"
	"github.com/cloudwego/tuxmigrate/migration/orchestrate"
	"github.com/cloudwego/tuxmigrate/migration/validate"
	"github.com/cloudwego/tuxmigrate/store"
)

// Engine owns the shared pieces of every migration run. The catalog is
// behind a lock so guide discovery can swap it while migrations run.
type Engine struct {
	mu      sync.RWMutex
	catalog *guide.Catalog

	// repoMu serializes whole migrations: every run checks out branches and
	// writes into the same working tree, so two may never interleave.
	repoMu sync.Mutex

	transformer orchestrate.Transformer
	repo        *gitops.Repo
	store       *store.Store
	runner      validate.CommandRunner
	cfg         *config.Config
}

// Committer identity applied when the checkout has none configured.
const (
	committerName  = "tuxmigrate"
	committerEmail = "tuxmigrate@noreply.local"
)

func New(cfg *config.Config, catalog *guide.Catalog, tr orchestrate.Transformer, repo *gitops.Repo, st *store.Store) *Engine {
	return &Engine{
		catalog:     catalog,
		transformer: tr,
		repo:        repo,
		store:       st,
		runner:      validate.NewCommandRunner(),
		cfg:         cfg,
	}
}

// WithRunner substitutes the validation tool runner for the exec-backed
// default, so tests can script tool behavior.
func (e *Engine) WithRunner(r validate.CommandRunner) *Engine {
	e.runner = r
	return e
}

// Catalog returns the current guide catalog.
func (e *Engine) Catalog() *guide.Catalog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog
}

// Store exposes the record store for read endpoints.
func (e *Engine) Store() *store.Store { return e.store }

// ReloadGuides re-scans the guides directory, swaps the catalog, and mirrors
// the result into the components table. Returns the number of guides loaded.
func (e *Engine) ReloadGuides(ctx context.Context) (int, error) {
	catalog, err := guide.LoadCatalog(e.cfg.GuidesDir)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.catalog = catalog
	e.mu.Unlock()

	guides := catalog.List()
	for _, g := range guides {
		if err := e.store.UpsertComponent(ctx, g); err != nil {
			return 0, err
		}
	}
	log.Info("guides reloaded", "dir", e.cfg.GuidesDir, "count", len(guides))
	return len(guides), nil
}

// Normalize fills request defaults from config: base branch, step selection
// when the request omitted the field (nil, as opposed to an explicit empty
// list), and the retry budget.
func (e *Engine) Normalize(req orchestrate.Request) orchestrate.Request {
	if req.BaseBranch == "" {
		req.BaseBranch = e.cfg.BaseBranch
	}
	if req.Steps == nil {
		req.Steps = e.cfg.DefaultSteps
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = e.cfg.DefaultMaxRetries
	}
	return req
}

// Accept validates what can be checked before touching the repository: the
// component must be known and active and every step name must resolve.
// Used by the API to reject bad requests synchronously before queueing.
func (e *Engine) Accept(req orchestrate.Request) error {
	if _, err := e.Catalog().Get(req.ComponentName); err != nil {
		return err
	}
	_, err := validate.ParseStepTypes(req.Steps)
	return err
}

// Execute runs one accepted migration to a terminal, persisted record. The
// returned error covers request rejection only; infrastructure and
// validation failures come back as a failed record.
func (e *Engine) Execute(ctx context.Context, req orchestrate.Request) (*migration.Record, error) {
	e.repoMu.Lock()
	defer e.repoMu.Unlock()

	req = e.Normalize(req)
	ws := gitops.NewWorkspace(e.repo.Root(), req.SubrepoPath, req.FilePath)
	resolver := func(names []string) ([]validate.Step, error) {
		return validate.Resolve(names, ws, e.runner)
	}
	orch := orchestrate.New(e.Catalog(), e.transformer, resolver, orchestrate.Options{
		DefaultMaxRetries: e.cfg.DefaultMaxRetries,
	})

	if err := e.repo.Fetch(ctx); err != nil {
		// A repo without a reachable remote still migrates locally.
		log.Warn("git fetch failed, continuing with local refs", "err", err)
	}
	if err := e.repo.CheckoutBase(ctx, req.BaseBranch); err != nil {
		return e.failEarly(ctx, req, fmt.Sprintf("checkout %s: %v", req.BaseBranch, err)), nil
	}
	branch := gitops.BranchName(req.ComponentName, time.Now())
	if err := e.repo.CreateBranch(ctx, branch, req.BaseBranch); err != nil {
		return e.failEarly(ctx, req, fmt.Sprintf("create branch: %v", err)), nil
	}

	src, err := ws.ReadFile()
	if err != nil {
		_ = e.repo.DeleteBranch(ctx, branch, req.BaseBranch)
		return e.failEarly(ctx, req, fmt.Sprintf("read %s: %v", ws.RelPath(), err)), nil
	}
	req.SourceCode = src

	rec, err := orch.Run(ctx, req)
	if err != nil {
		_ = e.repo.DeleteBranch(ctx, branch, req.BaseBranch)
		return nil, err
	}
	rec.BranchName = branch

	if rec.OverallSuccess {
		e.commit(ctx, rec, ws, branch)
	} else {
		// Validation steps wrote the candidate into the working tree. Put the
		// original back before discarding the branch so no trace of the
		// failed attempt survives into later migrations.
		if err := ws.WriteFile(rec.OriginalCode); err != nil {
			log.Warn("failed to restore original file", "file", ws.RelPath(), "err", err)
		}
		if err := e.repo.DeleteBranch(ctx, branch, req.BaseBranch); err != nil {
			log.Warn("failed to discard migration branch", "branch", branch, "err", err)
		}
		rec.BranchName = ""
	}

	if err := e.store.SaveRecord(ctx, rec); err != nil {
		log.Error("failed to persist migration record", "id", rec.ID, "err", err)
	}
	return rec, nil
}

func (e *Engine) commit(ctx context.Context, rec *migration.Record, ws *gitops.Workspace, branch string) {
	if err := ws.WriteFile(rec.FinalCode); err != nil {
		log.Error("failed to write final code", "id", rec.ID, "err", err)
		return
	}
	// Unattended machines may have no committer configured.
	if err := e.repo.EnsureIdentity(ctx, committerName, committerEmail); err != nil {
		log.Warn("failed to ensure git identity", "err", err)
	}
	msg := fmt.Sprintf("chore(%s): migrate %s to the new component library", rec.SubrepoPath, rec.ComponentName)
	hash, err := e.repo.CommitFile(ctx, ws.RelPath(), msg)
	if err != nil {
		log.Error("failed to commit migration", "id", rec.ID, "err", err)
		return
	}
	rec.CommitHash = hash
	if e.cfg.GitPush {
		if err := e.repo.Push(ctx, branch); err != nil {
			log.Error("failed to push migration branch", "id", rec.ID, "branch", branch, "err", err)
		}
	}
}

// failEarly produces and persists a failed record for breakage before the
// orchestrator could run (git or file access).
func (e *Engine) failEarly(ctx context.Context, req orchestrate.Request, summary string) *migration.Record {
	log.Error("migration failed before validation", "component", req.ComponentName, "reason", summary)
	now := time.Now()
	selected, _ := validate.ParseStepTypes(req.Steps)
	rec := &migration.Record{
		ID:            req.ID,
		ComponentName: req.ComponentName,
		SubrepoPath:   req.SubrepoPath,
		FilePath:      req.FilePath,
		BaseBranch:    req.BaseBranch,
		CreatedBy:     req.CreatedBy,
		MaxRetries:    req.MaxRetries,
		SelectedSteps: selected,
		Status:        migration.StatusFailed,
		ErrorSummary:  summary,
		StartedAt:     now,
		CompletedAt:   now,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := e.store.SaveRecord(ctx, rec); err != nil {
		log.Error("failed to persist migration record", "id", rec.ID, "err", err)
	}
	return rec
}
