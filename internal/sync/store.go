package sync

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/task"
)

// ErrNoRowsAffected marks a write the backing store accepted but that
// matched nothing, either a stale id or a permission filter. It travels wrapped
// inside a cerr.Error; test for it with IsNoRowsAffected.
var ErrNoRowsAffected = errors.New("no rows affected")

func IsNoRowsAffected(err error) bool {
	return errors.Is(err, ErrNoRowsAffected)
}

// Snapshot is one consistent view of both collections.
type Snapshot struct {
	Projects []*project.Project `json:"projects"`
	Tasks    []*task.Task       `json:"tasks"`
}

// Store is the mode-specific backing store behind the engine. The engine
// owns the canonical in-memory collections; a Store only performs durable
// reads and writes and reports identity where the backing store assigns it.
// The local/remote decision is made once, by choosing the implementation at
// construction, so engine code never branches on mode.
type Store interface {
	// Load fetches both collections in full.
	Load(ctx context.Context) (*Snapshot, error)
	// Save persists a snapshot. Remote stores are written through per
	// operation and treat this as a no-op.
	Save(ctx context.Context, snap *Snapshot) error
	// ValidateTaskID reports whether a write against id may proceed.
	ValidateTaskID(id string) error
	// NewTaskID returns an id for a locally created task, or "" when the
	// backing store assigns identity itself.
	NewTaskID() string
	InsertTask(ctx context.Context, t *task.Task) (*task.Task, error)
	UpdateTask(ctx context.Context, id string, patch task.Patch) error
	InsertProject(ctx context.Context, p *project.Project) (string, error)
	InsertTasks(ctx context.Context, tasks []*task.Task) error
	// Polls reports whether the store is backed by a remote endpoint that
	// must be re-fetched on an interval.
	Polls() bool
}

// AuthGate guards writes that need an authenticated session.
type AuthGate interface {
	EnsureAuthenticated(ctx context.Context) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (t realTicker) Chan() <-chan time.Time { return t.t.C }

func (t realTicker) Stop() { t.t.Stop() }

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// IsUUID reports whether v is a canonical UUID. Remote task and project
// keys are uuid columns; readable local ids must never reach them.
func IsUUID(v string) bool {
	return uuidRe.MatchString(strings.ToLower(v))
}
