package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/sdfolio/sdwf/internal/actionlog"
	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/sync"
	"github.com/sdfolio/sdwf/internal/task"
	"github.com/sdfolio/sdwf/internal/tickboard"
	"github.com/sdfolio/sdwf/pkg/cerr"
	"github.com/sdfolio/sdwf/pkg/clog"
)

// Server exposes the engine's collections over HTTP.
type Server struct {
	engine  *sync.Engine
	actions *actionlog.Repository
	ticks   *tickboard.Repository

	httpServer *http.Server
}

func New(host string, port int, engine *sync.Engine, actions *actionlog.Repository, ticks *tickboard.Repository) *Server {
	s := &Server{
		engine:  engine,
		actions: actions,
		ticks:   ticks,
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(clog.SlogChiMiddleware(clog.WithChiFilter(func(r *http.Request) bool {
		return r.URL.Path != "/healthz"
	})))
	r.Use(cerr.NewJSONResponseChiMiddleware())

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleAddTask)
			r.Patch("/{id}", s.handleUpdateTask)
			r.Get("/{id}/followups", s.handleFollowups)
		})
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Route("/{id}/ticks", func(r chi.Router) {
				r.Get("/", s.handleListTicks)
				r.Put("/", s.handleSetTick)
				r.Patch("/meta", s.handleSetTickMeta)
			})
		})
		r.Get("/actions", s.handleListActions)
	})
	return r
}

func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), map[string]any{
		"status": "ok",
		"remote": s.engine.Remote(),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ascending := r.URL.Query().Get("order") != "desc"
	cerr.SetJSONResponse(r.Context(), map[string]any{
		"tasks": s.engine.SortedTasks(ascending),
	})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var t task.Task
	if err := decodeJSON(r, &t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if t.Title == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "task title is required", nil)
		return
	}
	row, err := s.engine.AddTask(ctx, &t)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"task": row})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	var patch task.Patch
	if err := decodeJSON(r, &patch); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.engine.UpdateTask(ctx, id, patch); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	row, ok := s.engine.Task(id)
	if !ok {
		cerr.SetJSONResponse(ctx, map[string]any{"id": id})
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"task": row})
}

func (s *Server) handleFollowups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	t, ok := s.engine.Task(id)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.NotFound, fmt.Sprintf("task %s not found", id), nil)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"task_id":     t.ID,
		"checkpoints": task.FollowupPlan(t.AssignedDate, t.Deadline),
		"done":        t.FollowupDone,
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), map[string]any{
		"projects": s.engine.Projects(),
	})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var form project.Form
	if err := decodeJSON(r, &form); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if form.Name == "" || form.StartDate == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "project name and start date are required", nil)
		return
	}
	id, err := s.engine.CreateProject(ctx, form)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	// The board meta is seeded with the resolved id so ticking works
	// immediately after creation.
	if _, err := s.ticks.EnsureMeta(ctx, id, form.Supervisor); err != nil {
		slog.WarnContext(ctx, "failed to seed tick board meta", "project_id", id, "error", err)
	}
	cerr.SetJSONResponse(ctx, map[string]any{"id": id})
}

func (s *Server) handleListTicks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")
	meta, err := s.ticks.Meta(ctx, projectID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cells, err := s.ticks.Cells(ctx, projectID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"meta": meta, "cells": cells})
}

func (s *Server) handleSetTick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var cell tickboard.Cell
	if err := decodeJSON(r, &cell); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cell.ProjectID = chi.URLParam(r, "id")
	got, err := s.ticks.SetCell(ctx, cell)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"cell": got})
}

func (s *Server) handleSetTickMeta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body struct {
		ExtraDays int    `json:"extra_days"`
		UpdatedBy string `json:"updated_by"`
	}
	if err := decodeJSON(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	meta, err := s.ticks.SetExtraDays(ctx, chi.URLParam(r, "id"), body.ExtraDays, body.UpdatedBy)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"meta": meta})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "limit must be an integer", err)
			return
		}
		limit = n
	}
	entries, err := s.actions.List(ctx, limit)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"actions": entries})
}
