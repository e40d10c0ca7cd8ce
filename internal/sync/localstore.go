package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/task"
	"github.com/sdfolio/sdwf/pkg/cerr"
	"github.com/sdfolio/sdwf/pkg/storage"
)

const (
	tasksSnapshotPath    = "snapshots/tasks.json"
	projectsSnapshotPath = "snapshots/projects.json"
)

// LocalStore keeps the collections as JSON snapshots in key/value storage.
// It is the offline mode: any id shape is allowed, ids are generated with
// readable prefixes, and every engine mutation is followed by a Save.
type LocalStore struct {
	storage storage.Storage
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(s storage.Storage) *LocalStore {
	return &LocalStore{storage: s}
}

// AllowAllGate is the local-mode auth gate: offline edits need no session.
type AllowAllGate struct{}

func (AllowAllGate) EnsureAuthenticated(context.Context) error { return nil }

// loadJSON reads path into out. A missing key or malformed payload recovers
// to the zero value of out: a corrupt snapshot must never take the
// collections down.
func loadJSON(ctx context.Context, s storage.Storage, path string, out any) {
	data, err := s.Read(ctx, path)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to read snapshot", "path", path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("discarding malformed snapshot", "path", path, "error", err)
	}
}

func (s *LocalStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	loadJSON(ctx, s.storage, projectsSnapshotPath, &snap.Projects)
	loadJSON(ctx, s.storage, tasksSnapshotPath, &snap.Tasks)
	for _, t := range snap.Tasks {
		t.Normalize()
	}
	return snap, nil
}

func (s *LocalStore) Save(ctx context.Context, snap *Snapshot) error {
	projects, err := json.Marshal(snap.Projects)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal projects: %w", err))
	}
	tasks, err := json.Marshal(snap.Tasks)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal tasks: %w", err))
	}
	if err := s.storage.Write(ctx, projectsSnapshotPath, projects); err != nil {
		return cerr.WrapStorageWriteError("projects snapshot", err)
	}
	if err := s.storage.Write(ctx, tasksSnapshotPath, tasks); err != nil {
		return cerr.WrapStorageWriteError("tasks snapshot", err)
	}
	return nil
}

// ValidateTaskID accepts any id offline.
func (s *LocalStore) ValidateTaskID(string) error { return nil }

func (s *LocalStore) NewTaskID() string {
	return fmt.Sprintf("task_%s", ulid.Make())
}

func (s *LocalStore) InsertTask(_ context.Context, t *task.Task) (*task.Task, error) {
	return t, nil
}

func (s *LocalStore) UpdateTask(context.Context, string, task.Patch) error { return nil }

func (s *LocalStore) InsertProject(_ context.Context, p *project.Project) (string, error) {
	if p.ID == "" {
		p.ID = fmt.Sprintf("%s-P_%s", p.Kind, ulid.Make())
	}
	return p.ID, nil
}

func (s *LocalStore) InsertTasks(context.Context, []*task.Task) error { return nil }

func (s *LocalStore) Polls() bool { return false }
