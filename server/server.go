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

// Package server exposes the migration engine over HTTP. Migration
// execution is asynchronous: POST /api/migrate validates the request, queues
// it, and returns the record id; a bounded worker pool drains the queue so
// at most cfg.Server.Workers migrations touch the repository at once.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cloudwego/tuxmigrate/config"
	"github.com/cloudwego/tuxmigrate/engine"
	"github.com/cloudwego/tuxmigrate/migration"
	"github.com/cloudwego/tuxmigrate/migration/guide"
	"github.com/cloudwego/tuxmigrate/migration/orchestrate"
	"github.com/cloudwego/tuxmigrate/migration/validate"
	"github.com/cloudwego/tuxmigrate/store"
)

// Server is the HTTP front of the engine.
type Server struct {
	engine *engine.Engine
	cfg    *config.Config

	jobs chan orchestrate.Request
	wg   sync.WaitGroup
}

func New(cfg *config.Config, eng *engine.Engine) *Server {
	workers := cfg.Server.Workers
	if workers <= 0 {
		workers = 2
	}
	return &Server{
		engine: eng,
		cfg:    cfg,
		jobs:   make(chan orchestrate.Request, workers*8),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/migrate", s.handleMigrate)
	mux.HandleFunc("GET /api/migrations", s.handleListMigrations)
	mux.HandleFunc("GET /api/migrations/{id}", s.handleGetMigration)
	mux.HandleFunc("GET /api/components", s.handleListComponents)
	mux.HandleFunc("POST /api/components/discover", s.handleDiscover)
	mux.HandleFunc("GET /api/analytics/overview", s.handleOverview)
	mux.HandleFunc("GET /api/analytics/trends", s.handleTrends)
	mux.HandleFunc("GET /api/analytics/errors", s.handleErrorPatterns)
	return mux
}

// Run serves until ctx is cancelled, then drains in-flight migrations.
func (s *Server) Run(ctx context.Context) error {
	workers := s.cfg.Server.Workers
	if workers <= 0 {
		workers = 2
	}
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		_ = srv.Shutdown(context.Background())
	case err := <-errCh:
		stopWorkers()
		return err
	}

	// Stop accepting jobs, let running migrations finish.
	close(s.jobs)
	s.wg.Wait()
	stopWorkers()
	return nil
}

func (s *Server) worker(ctx context.Context) {
	defer s.wg.Done()
	for req := range s.jobs {
		if _, err := s.engine.Execute(ctx, req); err != nil {
			log.Error("queued migration rejected at run time", "id", req.ID, "err", err)
		}
	}
}

type migrateRequest struct {
	ComponentName string   `json:"component_name"`
	SubrepoPath   string   `json:"subrepo_path"`
	FilePath      string   `json:"file_path"`
	Steps         []string `json:"steps"` // absent = configured defaults, [] = none
	MaxRetries    int      `json:"max_retries"`
	BaseBranch    string   `json:"base_branch"`
	CreatedBy     string   `json:"created_by"`
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var body migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if body.ComponentName == "" || body.FilePath == "" {
		writeError(w, http.StatusBadRequest, "component_name and file_path are required")
		return
	}

	req := s.engine.Normalize(orchestrate.Request{
		ID:            uuid.NewString(),
		ComponentName: body.ComponentName,
		SubrepoPath:   body.SubrepoPath,
		FilePath:      body.FilePath,
		Steps:         body.Steps,
		MaxRetries:    body.MaxRetries,
		BaseBranch:    body.BaseBranch,
		CreatedBy:     body.CreatedBy,
	})
	if err := s.engine.Accept(req); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, migration.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	rec := &migration.Record{
		ID:            req.ID,
		ComponentName: req.ComponentName,
		SubrepoPath:   req.SubrepoPath,
		FilePath:      req.FilePath,
		BaseBranch:    req.BaseBranch,
		CreatedBy:     req.CreatedBy,
		MaxRetries:    req.MaxRetries,
	}
	rec.SelectedSteps, _ = validate.ParseStepTypes(req.Steps)
	if rec.SelectedSteps == nil {
		rec.SelectedSteps = []migration.StepType{}
	}
	if err := s.engine.Store().CreatePending(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	select {
	case s.jobs <- req:
	default:
		// The pending row must not outlive a rejected request.
		if err := s.engine.Store().DeleteRecord(r.Context(), req.ID); err != nil {
			log.Warn("failed to remove unqueued pending record", "id", req.ID, "err", err)
		}
		writeError(w, http.StatusServiceUnavailable, "migration queue is full, retry later")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     req.ID,
		"status": string(migration.StatusPending),
	})
}

func (s *Server) handleGetMigration(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.Store().GetRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, migration.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListMigrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := s.engine.Store().ListRecords(r.Context(), store.ListFilter{
		Component: q.Get("component"),
		Status:    migration.Status(q.Get("status")),
		Limit:     atoiDefault(q.Get("limit"), 0),
		Offset:    atoiDefault(q.Get("offset"), 0),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*migration.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	comps, err := s.engine.Store().ListComponents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if comps == nil {
		comps = []guide.Guide{}
	}
	writeJSON(w, http.StatusOK, comps)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.ReloadGuides(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"discovered": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.engine.Store().Overview(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	points, err := s.engine.Store().Trends(r.Context(), atoiDefault(r.URL.Query().Get("days"), 30))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if points == nil {
		points = []store.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleErrorPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.engine.Store().ErrorPatterns(r.Context(), atoiDefault(r.URL.Query().Get("limit"), 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if patterns == nil {
		patterns = []store.ErrorPattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}
