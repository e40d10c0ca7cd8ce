package sync

import (
	"context"

	"github.com/sdfolio/sdwf/internal/gateway"
	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/task"
	"github.com/sdfolio/sdwf/pkg/cerr"
)

// RemoteStore writes through to the remote gateway. Identity belongs to the
// remote side: task and project keys are uuid columns, so readable local
// ids are stripped before insert and non-uuid update targets are rejected
// before any network call.
type RemoteStore struct {
	gw gateway.RemoteGateway
}

var _ Store = (*RemoteStore)(nil)

func NewRemoteStore(gw gateway.RemoteGateway) *RemoteStore {
	return &RemoteStore{gw: gw}
}

// SessionGate requires a live remote session for every write.
type SessionGate struct {
	gw gateway.RemoteGateway
}

func NewSessionGate(gw gateway.RemoteGateway) *SessionGate {
	return &SessionGate{gw: gw}
}

func (g *SessionGate) EnsureAuthenticated(ctx context.Context) error {
	session, err := g.gw.GetSession(ctx)
	if err != nil || session == nil {
		return cerr.NewError(cerr.Unauthenticated, "sign in required to create or edit projects and tasks", err)
	}
	return nil
}

// sanitize clears id fields that are not uuid-shaped so they never reach
// uuid-typed key columns. The returned copy is also the caller's fallback
// row when the insert fails.
func sanitize(t *task.Task) *task.Task {
	c := t.Clone()
	if c.ID != "" && !IsUUID(c.ID) {
		c.ID = ""
	}
	if c.ProjectID != "" && !IsUUID(c.ProjectID) {
		c.ProjectID = ""
	}
	return c
}

func (s *RemoteStore) Load(ctx context.Context) (*Snapshot, error) {
	cols, err := s.gw.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Projects: cols.Projects, Tasks: cols.Tasks}, nil
}

// Save is a no-op: every remote mutation is written through individually.
func (s *RemoteStore) Save(context.Context, *Snapshot) error { return nil }

func (s *RemoteStore) ValidateTaskID(id string) error {
	if !IsUUID(id) {
		return cerr.NewError(cerr.InvalidArgument, "task id is not a uuid, cannot update the remote row", nil)
	}
	return nil
}

// NewTaskID returns "" because the remote store assigns task identity.
func (s *RemoteStore) NewTaskID() string { return "" }

func (s *RemoteStore) InsertTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	safe := sanitize(t)
	row, err := s.gw.InsertTask(ctx, safe)
	if err != nil {
		// The sanitized row doubles as the caller's local fallback.
		return safe, err
	}
	if row == nil {
		return safe, nil
	}
	return row, nil
}

func (s *RemoteStore) UpdateTask(ctx context.Context, id string, patch task.Patch) error {
	affected, err := s.gw.UpdateTask(ctx, id, patch)
	if err != nil {
		return err
	}
	if affected == 0 {
		return cerr.NewError(cerr.NotFound, "update matched no rows (stale id or permissions)", ErrNoRowsAffected)
	}
	return nil
}

func (s *RemoteStore) InsertProject(ctx context.Context, p *project.Project) (string, error) {
	return s.gw.InsertProject(ctx, p)
}

func (s *RemoteStore) InsertTasks(ctx context.Context, tasks []*task.Task) error {
	safe := make([]*task.Task, len(tasks))
	for i, t := range tasks {
		safe[i] = sanitize(t)
	}
	return s.gw.InsertTasks(ctx, safe)
}

func (s *RemoteStore) Polls() bool { return true }
