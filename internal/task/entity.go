package task

// Status values a task moves through.
const (
	StatusNotStarted = "not started"
	StatusOngoing    = "ongoing"
	StatusDone       = "done"
)

// Task types.
const (
	TypeRoutine = "routine"
	TypeAddOn   = "add-on"
)

// NoSupport is the sentinel for a task without a support assignee.
const NoSupport = "-"

// WorkAtChange is one entry of the append-only work_at history, newest first.
type WorkAtChange struct {
	From      string `json:"from"`
	To        string `json:"to"`
	ChangedAt string `json:"changed_at"`
	ChangedBy string `json:"changed_by"`
}

type Task struct {
	ID              string         `json:"id,omitempty"`
	ProjectID       string         `json:"project_id,omitempty"`
	ProjectKind     string         `json:"project,omitempty"`
	BU              string         `json:"bu"`
	CreatedBy       string         `json:"created_by"`
	AssignedDate    string         `json:"assigned_date"`
	Type            string         `json:"type"`
	Title           string         `json:"task"`
	Doer            string         `json:"doer"`
	Support         string         `json:"support"`
	Status          string         `json:"status"`
	Focus           string         `json:"focus"`
	Tag             string         `json:"tag"`
	Deadline        string         `json:"deadline"`
	WorkAt          string         `json:"work_at"`
	WorkAtHistory   []WorkAtChange `json:"work_at_history"`
	Result          string         `json:"result"`
	ResultSubmitted bool           `json:"result_submitted"`
	Confirmed       bool           `json:"confirmed"`
	FollowupDone    []bool         `json:"followup_done"`
	Archived        bool           `json:"archived"`
	CreatedAt       string         `json:"created_at,omitempty"`
}

// Normalize repairs the entity invariants in place:
// confirmed implies result_submitted and status done, result_submitted
// implies status done, and followup_done always has exactly three entries.
func (t *Task) Normalize() {
	if t.Confirmed {
		t.ResultSubmitted = true
	}
	if t.ResultSubmitted {
		t.Status = StatusDone
	}
	if t.Support == "" {
		t.Support = NoSupport
	}
	switch {
	case t.FollowupDone == nil:
		t.FollowupDone = make([]bool, followupCount)
	case len(t.FollowupDone) < followupCount:
		padded := make([]bool, followupCount)
		copy(padded, t.FollowupDone)
		t.FollowupDone = padded
	case len(t.FollowupDone) > followupCount:
		t.FollowupDone = t.FollowupDone[:followupCount]
	}
}

// Clone returns a deep copy. Engine reads hand out clones so callers can
// never mutate the canonical collections.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.WorkAtHistory != nil {
		c.WorkAtHistory = make([]WorkAtChange, len(t.WorkAtHistory))
		copy(c.WorkAtHistory, t.WorkAtHistory)
	}
	if t.FollowupDone != nil {
		c.FollowupDone = make([]bool, len(t.FollowupDone))
		copy(c.FollowupDone, t.FollowupDone)
	}
	return &c
}

// Patch is a partial update of a task. Nil fields are left untouched.
type Patch struct {
	ProjectID       *string         `json:"project_id,omitempty"`
	AssignedDate    *string         `json:"assigned_date,omitempty"`
	Type            *string         `json:"type,omitempty"`
	Title           *string         `json:"task,omitempty"`
	Doer            *string         `json:"doer,omitempty"`
	Support         *string         `json:"support,omitempty"`
	Status          *string         `json:"status,omitempty"`
	Focus           *string         `json:"focus,omitempty"`
	Tag             *string         `json:"tag,omitempty"`
	Deadline        *string         `json:"deadline,omitempty"`
	WorkAt          *string         `json:"work_at,omitempty"`
	WorkAtHistory   *[]WorkAtChange `json:"work_at_history,omitempty"`
	Result          *string         `json:"result,omitempty"`
	ResultSubmitted *bool           `json:"result_submitted,omitempty"`
	Confirmed       *bool           `json:"confirmed,omitempty"`
	FollowupDone    *[]bool         `json:"followup_done,omitempty"`
	Archived        *bool           `json:"archived,omitempty"`
}

// Apply merges the patch into t and re-normalizes the invariants.
func (p Patch) Apply(t *Task) {
	if p.ProjectID != nil {
		t.ProjectID = *p.ProjectID
	}
	if p.AssignedDate != nil {
		t.AssignedDate = *p.AssignedDate
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Doer != nil {
		t.Doer = *p.Doer
	}
	if p.Support != nil {
		t.Support = *p.Support
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Focus != nil {
		t.Focus = *p.Focus
	}
	if p.Tag != nil {
		t.Tag = *p.Tag
	}
	if p.Deadline != nil {
		t.Deadline = *p.Deadline
	}
	if p.WorkAt != nil {
		t.WorkAt = *p.WorkAt
	}
	if p.WorkAtHistory != nil {
		t.WorkAtHistory = *p.WorkAtHistory
	}
	if p.Result != nil {
		t.Result = *p.Result
	}
	if p.ResultSubmitted != nil {
		t.ResultSubmitted = *p.ResultSubmitted
	}
	if p.Confirmed != nil {
		t.Confirmed = *p.Confirmed
	}
	if p.FollowupDone != nil {
		t.FollowupDone = *p.FollowupDone
	}
	if p.Archived != nil {
		t.Archived = *p.Archived
	}
	t.Normalize()
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p == Patch{}
}
