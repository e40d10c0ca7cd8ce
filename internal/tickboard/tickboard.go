package tickboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sdfolio/sdwf/internal/eventbus"
	"github.com/sdfolio/sdwf/pkg/cerr"
	"github.com/sdfolio/sdwf/pkg/storage"
)

// Tick states. Cycling order on the board is none, done, skipped.
const (
	StateNone    = 0
	StateDone    = 1
	StateSkipped = 2
)

const dayLayout = "2006-01-02"

// Meta holds per-project board settings.
type Meta struct {
	ProjectID string    `json:"project_id"`
	ExtraDays int       `json:"extra_days"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cell is one tick on a project's daily board.
type Cell struct {
	ProjectID string    `json:"project_id"`
	TaskID    string    `json:"task_id"`
	TickDate  string    `json:"tick_date"`
	State     int       `json:"state"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository stores one board document per project.
type Repository struct {
	mu      sync.Mutex
	storage storage.Storage
	bus     *eventbus.Bus
}

type board struct {
	Meta  Meta   `json:"meta"`
	Cells []Cell `json:"cells"`
}

func NewRepository(s storage.Storage, bus *eventbus.Bus) *Repository {
	return &Repository{storage: s, bus: bus}
}

func boardPath(projectID string) string {
	return fmt.Sprintf("tickboard/%s.json", projectID)
}

// normalizeDay reduces any accepted date string to YYYY-MM-DD so the same
// calendar day always hits the same cell.
func normalizeDay(s string) (string, error) {
	for _, layout := range []string{dayLayout, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dayLayout), nil
		}
	}
	return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid tick date %q", s), nil)
}

func (r *Repository) load(ctx context.Context, projectID string) (*board, error) {
	data, err := r.storage.Read(ctx, boardPath(projectID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &board{Meta: Meta{ProjectID: projectID}}, nil
		}
		return nil, cerr.WrapStorageReadError("tick board", err)
	}
	var b board
	if err := json.Unmarshal(data, &b); err != nil {
		// A corrupt board restarts empty.
		return &board{Meta: Meta{ProjectID: projectID}}, nil
	}
	return &b, nil
}

func (r *Repository) save(ctx context.Context, projectID string, b *board) error {
	data, err := json.Marshal(b)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal tick board: %w", err))
	}
	if err := r.storage.Write(ctx, boardPath(projectID), data); err != nil {
		return cerr.WrapStorageWriteError("tick board", err)
	}
	return nil
}

// EnsureMeta creates the board meta for a new project if none exists yet.
func (r *Repository) EnsureMeta(ctx context.Context, projectID, actor string) (Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.load(ctx, projectID)
	if err != nil {
		return Meta{}, err
	}
	if !b.Meta.UpdatedAt.IsZero() {
		return b.Meta, nil
	}
	b.Meta = Meta{ProjectID: projectID, UpdatedBy: actor, UpdatedAt: time.Now()}
	if err := r.save(ctx, projectID, b); err != nil {
		return Meta{}, err
	}
	return b.Meta, nil
}

func (r *Repository) Meta(ctx context.Context, projectID string) (Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.load(ctx, projectID)
	if err != nil {
		return Meta{}, err
	}
	return b.Meta, nil
}

// SetExtraDays extends the board past the project deadline.
func (r *Repository) SetExtraDays(ctx context.Context, projectID string, extraDays int, actor string) (Meta, error) {
	if extraDays < 0 {
		return Meta{}, cerr.NewError(cerr.InvalidArgument, "extra days must not be negative", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.load(ctx, projectID)
	if err != nil {
		return Meta{}, err
	}
	b.Meta.ProjectID = projectID
	b.Meta.ExtraDays = extraDays
	b.Meta.UpdatedBy = actor
	b.Meta.UpdatedAt = time.Now()
	if err := r.save(ctx, projectID, b); err != nil {
		return Meta{}, err
	}
	return b.Meta, nil
}

// SetCell upserts one tick. The (task, day) pair is the key; writing
// StateNone removes the cell so the board document stays sparse.
func (r *Repository) SetCell(ctx context.Context, cell Cell) (Cell, error) {
	if cell.ProjectID == "" || cell.TaskID == "" {
		return Cell{}, cerr.NewError(cerr.InvalidArgument, "project id and task id are required", nil)
	}
	if cell.State < StateNone || cell.State > StateSkipped {
		return Cell{}, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid tick state %d", cell.State), nil)
	}
	day, err := normalizeDay(cell.TickDate)
	if err != nil {
		return Cell{}, err
	}
	cell.TickDate = day
	cell.UpdatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.load(ctx, cell.ProjectID)
	if err != nil {
		return Cell{}, err
	}

	idx := -1
	for i, c := range b.Cells {
		if c.TaskID == cell.TaskID && c.TickDate == cell.TickDate {
			idx = i
			break
		}
	}
	switch {
	case cell.State == StateNone && idx >= 0:
		b.Cells = append(b.Cells[:idx], b.Cells[idx+1:]...)
	case cell.State == StateNone:
		// Clearing an absent cell is a no-op.
	case idx >= 0:
		b.Cells[idx] = cell
	default:
		b.Cells = append(b.Cells, cell)
	}

	if err := r.save(ctx, cell.ProjectID, b); err != nil {
		return Cell{}, err
	}
	if r.bus != nil {
		r.bus.PublishNew(eventbus.TickUpdated, cell.TaskID, cell.UpdatedBy, cell.TickDate, map[string]string{
			"project_id": cell.ProjectID,
			"state":      fmt.Sprintf("%d", cell.State),
		})
	}
	return cell, nil
}

// Cells returns the board's ticks for a project.
func (r *Repository) Cells(ctx context.Context, projectID string) ([]Cell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return b.Cells, nil
}
