package actionlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sdfolio/sdwf/internal/eventbus"
	"github.com/sdfolio/sdwf/pkg/cerr"
	"github.com/sdfolio/sdwf/pkg/storage"
)

const (
	logPath = "actionlog/entries.json"

	// maxEntries bounds the persisted log; the oldest entries roll off.
	maxEntries = 500

	defaultListLimit = 50
	maxListLimit     = 200
)

// Entry is one recorded action, newest entries listed first.
type Entry struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	ResourceID string            `json:"resource_id"`
	Actor      string            `json:"actor"`
	Summary    string            `json:"summary"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Repository persists the action log as a single JSON document in storage.
type Repository struct {
	mu      sync.Mutex
	storage storage.Storage
}

func NewRepository(s storage.Storage) *Repository {
	return &Repository{storage: s}
}

func (r *Repository) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readLocked(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, e)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal action log: %w", err))
	}
	if err := r.storage.Write(ctx, logPath, data); err != nil {
		return cerr.WrapStorageWriteError("action log", err)
	}
	return nil
}

// List returns the newest entries first. limit <= 0 applies the default;
// anything above the cap is clamped.
func (r *Repository) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	r.mu.Lock()
	entries, err := r.readLocked(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *Repository) readLocked(ctx context.Context) ([]Entry, error) {
	data, err := r.storage.Read(ctx, logPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("action log", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt log restarts empty rather than blocking writes.
		return nil, nil
	}
	return entries, nil
}

// Recorder turns bus events into log entries.
type Recorder struct {
	repo *Repository
	bus  *eventbus.Bus
}

func NewRecorder(repo *Repository, bus *eventbus.Bus) *Recorder {
	return &Recorder{repo: repo, bus: bus}
}

// Run consumes events until ctx is done. Append failures are swallowed
// after wrapping; the log is best effort and must not stall publishers.
func (rec *Recorder) Run(ctx context.Context) error {
	id, ch := rec.bus.Subscribe(64)
	defer rec.bus.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			_ = rec.repo.Append(ctx, Entry{
				ID:         ev.ID,
				Action:     string(ev.Type),
				ResourceID: ev.ResourceID,
				Actor:      ev.Actor,
				Summary:    ev.Summary,
				Metadata:   ev.Metadata,
				CreatedAt:  ev.CreatedAt,
			})
		}
	}
}
