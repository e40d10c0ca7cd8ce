package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdfolio/sdwf/internal/actionlog"
	"github.com/sdfolio/sdwf/internal/eventbus"
	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/sync"
	"github.com/sdfolio/sdwf/internal/task"
	"github.com/sdfolio/sdwf/internal/tickboard"
	"github.com/sdfolio/sdwf/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, *sync.Engine) {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	bus := eventbus.New()
	engine := sync.New(sync.NewLocalStore(st), sync.AllowAllGate{}, project.NewRegistry(), sync.WithBus(bus))
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(engine.Stop)

	s := New("127.0.0.1", 0, engine, actionlog.NewRepository(st), tickboard.NewRepository(st, bus))
	return s, engine
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec, out := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, false, out["remote"])
}

func TestTaskLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec, out := doJSON(t, h, http.MethodPost, "/api/tasks", map[string]any{
		"task":     "call school",
		"doer":     "meen",
		"deadline": "2025-02-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	created := out["task"].(map[string]any)
	id := created["id"].(string)
	require.NotEmpty(t, id)

	rec, out = doJSON(t, h, http.MethodPatch, "/api/tasks/"+id, map[string]any{"status": "done"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := out["task"].(map[string]any)
	assert.Equal(t, task.StatusDone, updated["status"])

	rec, out = doJSON(t, h, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := out["tasks"].([]any)
	require.Len(t, tasks, 1)
}

func TestAddTaskValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec, out := doJSON(t, s.Handler(), http.MethodPost, "/api/tasks", map[string]any{"doer": "meen"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidArgument", out["code"])
}

func TestFollowupsEndpoint(t *testing.T) {
	s, engine := newTestServer(t)

	row, err := engine.AddTask(context.Background(), &task.Task{
		Title:        "prepare report",
		AssignedDate: "2025-01-01",
		Deadline:     "2025-01-11",
	})
	require.NoError(t, err)

	rec, out := doJSON(t, s.Handler(), http.MethodGet, fmt.Sprintf("/api/tasks/%s/followups", row.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	checkpoints := out["checkpoints"].([]any)
	assert.Equal(t, []any{"2025-01-04", "2025-01-08", "2025-01-10"}, checkpoints)

	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/api/tasks/nope/followups", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProjectSeedsWorkflowAndBoard(t *testing.T) {
	s, engine := newTestServer(t)
	h := s.Handler()

	rec, out := doJSON(t, h, http.MethodPost, "/api/projects", map[string]any{
		"kind":         "DCP",
		"name":         "School visit",
		"supervisor":   "fah",
		"doer_default": "meen",
		"start_date":   "2025-01-01",
		"event_date":   "2025-02-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	id := out["id"].(string)
	require.NotEmpty(t, id)

	// The DCP template generates its full workflow.
	assert.Len(t, engine.Tasks(), 8)

	rec, out = doJSON(t, h, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	projects := out["projects"].([]any)
	require.Len(t, projects, 1)

	// The board meta exists under the resolved project id.
	rec, out = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/projects/%s/ticks", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meta := out["meta"].(map[string]any)
	assert.Equal(t, id, meta["project_id"])
}

func TestCreateProjectValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec, out := doJSON(t, s.Handler(), http.MethodPost, "/api/projects", map[string]any{"kind": "DC"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidArgument", out["code"])
}

func TestTickEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec, out := doJSON(t, h, http.MethodPut, "/api/projects/p-1/ticks", map[string]any{
		"task_id":   "t-1",
		"tick_date": "2025-01-05",
		"state":     tickboard.StateDone,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	cell := out["cell"].(map[string]any)
	assert.Equal(t, "2025-01-05", cell["tick_date"])

	rec, out = doJSON(t, h, http.MethodPatch, "/api/projects/p-1/ticks/meta", map[string]any{
		"extra_days": 3,
		"updated_by": "fah",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	meta := out["meta"].(map[string]any)
	assert.Equal(t, float64(3), meta["extra_days"])

	rec, out = doJSON(t, h, http.MethodGet, "/api/projects/p-1/ticks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cells := out["cells"].([]any)
	require.Len(t, cells, 1)

	rec, _ = doJSON(t, h, http.MethodPut, "/api/projects/p-1/ticks", map[string]any{
		"task_id":   "t-1",
		"tick_date": "not a date",
		"state":     tickboard.StateDone,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActionsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec, out := doJSON(t, h, http.MethodGet, "/api/actions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, out["actions"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/actions?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
