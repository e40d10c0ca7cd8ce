package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/task"
	"github.com/sdfolio/sdwf/pkg/cerr"
)

var projectFixture = project.Project{
	Kind:           project.KindDCP,
	Name:           "School visit",
	Title:          "School visit",
	BU:             "BU1",
	Supervisor:     "fah",
	Doer:           "meen",
	DoerDefault:    "meen",
	SupportDefault: "-",
	StartDate:      "2025-01-01",
	EventDate:      "2025-01-10",
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/rest/v1/projects":
			assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
			w.Write([]byte(`[{"id":"p-1","kind":"DCP","title":"School visit"}]`))
		case "/rest/v1/tasks":
			assert.Equal(t, "eq.false", r.URL.Query().Get("archived"))
			w.Write([]byte(`[{"id":"t-1","task":"call school","confirmed":true,"status":"ongoing"}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewPostgRESTClient(srv.URL, "anon-key", "service-token")
	got, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Projects, 1)
	require.Len(t, got.Tasks, 1)
	// Display name falls back to the title column.
	assert.Equal(t, "School visit", got.Projects[0].Name)
	// Rows are normalized on the way in.
	assert.Equal(t, task.StatusDone, got.Tasks[0].Status)
	assert.Len(t, got.Tasks[0].FollowupDone, 3)
}

func TestFetchAllRemoteDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewPostgRESTClient(srv.URL, "anon-key", "")
	_, err := c.FetchAll(context.Background())
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
}

func TestUpdateTaskAffectedRows(t *testing.T) {
	var gotPatch map[string]any
	affected := `[{"id":"aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa", r.URL.Query().Get("id"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPatch))
		w.Write([]byte(affected))
	}))
	defer srv.Close()

	c := NewPostgRESTClient(srv.URL, "anon-key", "")
	status := task.StatusDone
	n, err := c.UpdateTask(context.Background(), "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa", task.Patch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	// Only set fields travel in the patch body.
	assert.Equal(t, map[string]any{"status": "done"}, gotPatch)

	// Zero rows is a success with an empty array, not an error.
	affected = `[]`
	n, err = c.UpdateTask(context.Background(), "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa", task.Patch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInsertProjectReturnsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rows []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		require.Len(t, rows, 1)
		_, hasName := rows[0]["name"]
		assert.False(t, hasName, "display name must not reach the store")
		_, hasID := rows[0]["id"]
		assert.False(t, hasID, "the store assigns project ids")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"project_id":"bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"}]`))
	}))
	defer srv.Close()

	c := NewPostgRESTClient(srv.URL, "anon-key", "")
	id, err := c.InsertProject(context.Background(), &projectFixture)
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb", id)
}

func TestInsertProjectNoIDEchoed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewPostgRESTClient(srv.URL, "anon-key", "")
	_, err := c.InsertProject(context.Background(), &projectFixture)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
}

func TestInsertTaskEchoesRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"cccccccc-cccc-4ccc-8ccc-cccccccccccc","task":"call school"}]`))
	}))
	defer srv.Close()

	c := NewPostgRESTClient(srv.URL, "anon-key", "")
	row, err := c.InsertTask(context.Background(), &task.Task{Title: "call school"})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "cccccccc-cccc-4ccc-8ccc-cccccccccccc", row.ID)
}

func TestGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		w.Write([]byte(`{"id":"dddddddd-dddd-4ddd-8ddd-dddddddddddd","email":"meen@example.com"}`))
	}))
	defer srv.Close()

	c := NewPostgRESTClient(srv.URL, "anon-key", "service-token")
	session, err := c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "meen@example.com", session.Email)

	t.Run("unauthorized means no session, no error", func(t *testing.T) {
		srv401 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv401.Close()
		c := NewPostgRESTClient(srv401.URL, "anon-key", "stale-token")
		session, err := c.GetSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, session)
	})
}
