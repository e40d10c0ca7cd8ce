package gateway

import (
	"context"

	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/task"
)

// Collections is one consistent fetch of both remote collections.
type Collections struct {
	Projects []*project.Project
	Tasks    []*task.Task
}

// Session describes the authenticated remote identity.
type Session struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// RemoteGateway abstracts the remote backing store. Implementations report
// "zero rows affected" through the UpdateTask count, never as an error: a
// write the store accepted but matched nothing is a distinct condition the
// caller decides about.
type RemoteGateway interface {
	// FetchAll returns all projects and all non-archived tasks.
	FetchAll(ctx context.Context) (*Collections, error)
	// InsertProject inserts one project row and returns the store-assigned id.
	InsertProject(ctx context.Context, p *project.Project) (string, error)
	// InsertTask inserts one task row and returns the stored row when the
	// store echoes it back, or nil when it does not.
	InsertTask(ctx context.Context, t *task.Task) (*task.Task, error)
	// InsertTasks inserts a batch of task rows.
	InsertTasks(ctx context.Context, tasks []*task.Task) error
	// UpdateTask patches the task with the given id and returns how many
	// rows the store reports as updated.
	UpdateTask(ctx context.Context, id string, patch task.Patch) (int, error)
	// GetSession returns the current session, or nil without error when the
	// gateway is not authenticated.
	GetSession(ctx context.Context) (*Session, error)
}
