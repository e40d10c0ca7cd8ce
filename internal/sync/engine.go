package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/sdfolio/sdwf/internal/eventbus"
	"github.com/sdfolio/sdwf/internal/project"
	"github.com/sdfolio/sdwf/internal/task"
	"github.com/sdfolio/sdwf/pkg/cerr"
	"github.com/sdfolio/sdwf/pkg/panicerr"
)

const defaultPollInterval = 2 * time.Second

// Engine owns the canonical task and project collections for the process
// lifetime. All mutation goes through its operations; readers get clones of
// a committed snapshot, never intermediate state. Task ids with a write in
// flight are held in a pending set so a concurrent poll can never clobber
// the optimistic local value.
type Engine struct {
	store     Store
	auth      AuthGate
	templates *project.Registry
	bus       *eventbus.Bus
	clock     Clock
	interval  time.Duration

	mu       sync.RWMutex
	tasks    []*task.Task
	projects []*project.Project
	pending  map[string]struct{}

	cancel context.CancelFunc
	wg     conc.WaitGroup
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

func WithBus(b *eventbus.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

func New(store Store, auth AuthGate, templates *project.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		auth:      auth,
		templates: templates,
		clock:     realClock{},
		interval:  defaultPollInterval,
		pending:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start performs the initial load and, for polling stores, launches the
// refresh loop. A failed initial remote load is tolerated: the poll retries
// on the next tick.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.refresh(ctx); err != nil {
		if !e.store.Polls() {
			return err
		}
		slog.Warn("initial fetch failed, poll will retry", "error", err)
	}
	if !e.store.Polls() {
		return nil
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Go(func() {
		if err := panicerr.SafeContext(e.pollLoop)(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("poll loop terminated", "error", err)
		}
	})
	return nil
}

// Stop cancels the poll loop and waits for it to exit. In-flight operation
// requests are not cancelled; their eventual results land harmlessly.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) pollLoop(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := e.refresh(ctx); err != nil {
				slog.Debug("poll fetch failed", "error", err)
			}
		}
	}
}

// refresh replaces both collections with a fresh load, keeping the
// pre-merge row for every task id with an outstanding local write. The
// merge is deliberately a full-list replace with overrides: correctness
// only needs pending-id protection, not element-wise reconciliation.
func (e *Engine) refresh(ctx context.Context) error {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) == 0 {
		e.tasks = snap.Tasks
		e.projects = snap.Projects
		return nil
	}

	prevByID := make(map[string]*task.Task, len(e.tasks))
	for _, t := range e.tasks {
		prevByID[t.ID] = t
	}
	merged := make([]*task.Task, len(snap.Tasks))
	for i, row := range snap.Tasks {
		if _, isPending := e.pending[row.ID]; isPending {
			if prev, ok := prevByID[row.ID]; ok {
				merged[i] = prev
				continue
			}
		}
		merged[i] = row
	}
	e.tasks = merged
	e.projects = snap.Projects
	return nil
}

// AddTask inserts a new task at the head of the collection. When the
// backing store rejects the insert, the locally built row is kept anyway so
// the caller's view is not empty; the next poll reconciles truth.
func (e *Engine) AddTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	if t == nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "task is required", nil)
	}
	if err := e.auth.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	nt := t.Clone()
	nt.Normalize()
	if nt.ID == "" {
		nt.ID = e.store.NewTaskID()
	}
	if nt.CreatedAt == "" {
		nt.CreatedAt = e.clock.Now().UTC().Format(time.RFC3339)
	}

	row, insErr := e.store.InsertTask(ctx, nt)
	if row == nil {
		row = nt
	}

	e.mu.Lock()
	e.tasks = append([]*task.Task{row}, e.tasks...)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.save(ctx, snap)
	e.publish(eventbus.TaskCreated, row.ID, row.CreatedBy, row.Title, map[string]string{"project_id": row.ProjectID})
	return row.Clone(), insErr
}

// UpdateTask applies patch optimistically to the in-memory row, then writes
// through. The optimistic value is never rolled back on failure: the
// user's edit stays visible and a later poll reconciles. The pending mark
// is held until the write resolves so a poll landing mid-flight cannot
// overwrite the edit.
func (e *Engine) UpdateTask(ctx context.Context, id string, patch task.Patch) error {
	if patch.IsZero() {
		return nil
	}
	if err := e.auth.EnsureAuthenticated(ctx); err != nil {
		return err
	}
	if err := e.store.ValidateTaskID(id); err != nil {
		return err
	}

	e.mu.Lock()
	e.pending[id] = struct{}{}
	for _, t := range e.tasks {
		if t.ID == id {
			patch.Apply(t)
			break
		}
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	err := e.store.UpdateTask(ctx, id, patch)

	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()

	if err != nil {
		return err
	}
	e.save(ctx, snap)
	e.publish(eventbus.TaskUpdated, id, "", "", nil)
	return nil
}

// CreateProject inserts the project, expands its workflow template with the
// resolved project id, and prepends project and tasks in one state
// transition. The resolved id is returned so callers can thread it into
// dependent writes.
func (e *Engine) CreateProject(ctx context.Context, form project.Form) (string, error) {
	if err := e.auth.EnsureAuthenticated(ctx); err != nil {
		return "", err
	}
	form.Normalize()

	p := &project.Project{
		Kind:           form.Kind,
		Name:           form.Name,
		Title:          form.Name,
		BU:             form.BU,
		Supervisor:     form.Supervisor,
		Doer:           form.DoerDefault,
		DoerDefault:    form.DoerDefault,
		SupportDefault: form.SupportDefault,
		StartDate:      form.StartDate,
		EventDate:      form.EventDate,
		CreatedAt:      e.clock.Now().UTC().Format(time.RFC3339),
	}

	id, err := e.store.InsertProject(ctx, p)
	if err != nil {
		return "", err
	}
	p.ID = id

	wf, err := e.templates.BuildWorkflowTasks(project.BuildParams{
		ProjectID:      id,
		Kind:           form.Kind,
		BU:             form.BU,
		Supervisor:     form.Supervisor,
		DoerDefault:    form.DoerDefault,
		SupportDefault: form.SupportDefault,
		StartDate:      form.StartDate,
		EventDate:      form.EventDate,
		NewTaskID:      e.store.NewTaskID,
	})
	if err != nil {
		return id, err
	}

	insErr := e.store.InsertTasks(ctx, wf)

	e.mu.Lock()
	e.projects = append([]*project.Project{p}, e.projects...)
	// Rows without store-assigned ids cannot be merged or updated; they
	// arrive with the next poll instead.
	withIDs := make([]*task.Task, 0, len(wf))
	for _, t := range wf {
		if t.ID != "" {
			withIDs = append(withIDs, t)
		}
	}
	e.tasks = append(withIDs, e.tasks...)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.save(ctx, snap)
	e.publish(eventbus.ProjectCreated, id, form.Supervisor, form.Name, map[string]string{"kind": string(form.Kind)})
	return id, insErr
}

// Tasks returns clones of all live (non-archived) tasks.
func (e *Engine) Tasks() []*task.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*task.Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		if t.Archived {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

// SortedTasks returns the live tasks in canonical view order.
func (e *Engine) SortedTasks(ascending bool) []*task.Task {
	return task.GroupAndSort(e.Tasks(), ascending)
}

// Task looks up a single live task by id.
func (e *Engine) Task(id string) (*task.Task, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, t := range e.tasks {
		if t.ID == id && !t.Archived {
			return t.Clone(), true
		}
	}
	return nil, false
}

func (e *Engine) Projects() []*project.Project {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*project.Project, len(e.projects))
	for i, p := range e.projects {
		out[i] = p.Clone()
	}
	return out
}

// Remote reports whether the engine runs against a polled remote store.
func (e *Engine) Remote() bool { return e.store.Polls() }

func (e *Engine) snapshotLocked() *Snapshot {
	tasks := make([]*task.Task, len(e.tasks))
	copy(tasks, e.tasks)
	projects := make([]*project.Project, len(e.projects))
	copy(projects, e.projects)
	return &Snapshot{Projects: projects, Tasks: tasks}
}

// save persists the snapshot where the store wants one. Persistence
// failures are logged, never surfaced: the in-memory state stays the state
// of record.
func (e *Engine) save(ctx context.Context, snap *Snapshot) {
	if err := e.store.Save(ctx, snap); err != nil {
		slog.Warn("failed to persist snapshot", "error", err)
	}
}

func (e *Engine) publish(t eventbus.EventType, resourceID, actor, summary string, meta map[string]string) {
	if e.bus == nil {
		return
	}
	e.bus.PublishNew(t, resourceID, actor, summary, meta)
}
