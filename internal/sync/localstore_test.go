package sync

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/task"
	"github.com/sdfolio/sdwf/pkg/storage"
)

func newLocalStore(t *testing.T) (*LocalStore, storage.Storage) {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewLocalStore(st), st
}

func TestLocalStoreRoundTrip(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	snap := &Snapshot{
		Projects: []*project.Project{{ID: "DC-P_01", Kind: project.KindDC, Name: "Donor campaign"}},
		Tasks:    []*task.Task{taskRow("task_01", "call school", task.StatusOngoing)},
	}
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Projects, 1)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "Donor campaign", got.Projects[0].Name)
	assert.Equal(t, "call school", got.Tasks[0].Title)
}

func TestLocalStoreLoadMissingSnapshots(t *testing.T) {
	s, _ := newLocalStore(t)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Projects)
	assert.Empty(t, got.Tasks)
}

func TestLocalStoreLoadRecoversFromCorruptSnapshot(t *testing.T) {
	s, st := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, tasksSnapshotPath, []byte(`{"not":"a list"`)))
	require.NoError(t, st.Write(ctx, projectsSnapshotPath, []byte(`[{"id":"p-1","name":"ok"}]`)))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Tasks, "corrupt snapshot recovers to empty")
	require.Len(t, got.Projects, 1, "the healthy collection still loads")
}

func TestLocalStoreLoadNormalizesTasks(t *testing.T) {
	s, st := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, tasksSnapshotPath,
		[]byte(`[{"id":"task_01","task":"call school","confirmed":true,"status":"ongoing"}]`)))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, task.StatusDone, got.Tasks[0].Status)
	assert.Len(t, got.Tasks[0].FollowupDone, 3)
}

func TestLocalStoreIdentity(t *testing.T) {
	s, _ := newLocalStore(t)

	id := s.NewTaskID()
	assert.True(t, strings.HasPrefix(id, "task_"))
	assert.NotEqual(t, id, s.NewTaskID())

	p := &project.Project{Kind: project.KindDCP}
	got, err := s.InsertProject(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "DCP-P_"))

	// Any id shape is writable offline.
	assert.NoError(t, s.ValidateTaskID("task_01"))
	assert.NoError(t, s.ValidateTaskID("anything"))
	assert.False(t, s.Polls())
}
