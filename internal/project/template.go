package project

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sdfolio/sdwf/internal/task"
)

// Anchor names the project date a template step offsets from.
type Anchor string

const (
	AnchorEvent = Anchor("event")
	AnchorStart = Anchor("start")
)

// Step is one generated task of a workflow template.
type Step struct {
	Title string `yaml:"title"`
	// OffsetDays shifts the step deadline relative to the anchor date.
	OffsetDays int    `yaml:"offset_days"`
	Anchor     Anchor `yaml:"anchor"`
	// SupportLeads hands the step to the support assignee when one exists.
	SupportLeads bool `yaml:"support_leads"`
}

// Template is the fixed set of tasks generated with a project of a kind.
type Template struct {
	Kind  Kind   `yaml:"kind"`
	Steps []Step `yaml:"steps"`
}

// builtinTemplates mirror the production workflows. The DCP (on-site
// activity) template counts back from the event date; the DC template works
// forward from the project start.
var builtinTemplates = map[Kind]Template{
	KindDCP: {
		Kind: KindDCP,
		Steps: []Step{
			{Title: "Coordinate with the school (confirm schedule and contact person)", OffsetDays: -21, Anchor: AnchorEvent},
			{Title: "Prepare registration, welfare and paperwork (name lists, forms)", OffsetDays: -14, Anchor: AnchorEvent, SupportLeads: true},
			{Title: "Build the activity plan, slides and materials (with checklist)", OffsetDays: -10, Anchor: AnchorEvent},
			{Title: "Team rehearsal / run-through (on-site roles)", OffsetDays: -7, Anchor: AnchorEvent},
			{Title: "Arrange venue, travel and on-site logistics", OffsetDays: -2, Anchor: AnchorEvent},
			{Title: "Onsite: run the school activity (event day)", OffsetDays: 0, Anchor: AnchorEvent},
			{Title: "Summarize results and report (photos, numbers, feedback)", OffsetDays: 2, Anchor: AnchorEvent},
			{Title: "Follow up and pitch the next program (DCP to DC or others)", OffsetDays: 7, Anchor: AnchorEvent},
		},
	},
	KindDC: {
		Kind: KindDC,
		Steps: []Step{
			{Title: "Collect requirements and brief, define the scope", OffsetDays: 2, Anchor: AnchorStart},
			{Title: "Draft the core content and activities", OffsetDays: 7, Anchor: AnchorStart},
			{Title: "Review, revise and finalize", OffsetDays: 14, Anchor: AnchorStart},
			{Title: "Deliver, summarize results and next action", OffsetDays: 16, Anchor: AnchorStart},
		},
	},
}

// Registry holds the active workflow templates. Lookups fall back to the DC
// template for unknown kinds so project creation never fails on kind alone.
type Registry struct {
	mu        sync.RWMutex
	templates map[Kind]Template
}

func NewRegistry() *Registry {
	r := &Registry{templates: make(map[Kind]Template, len(builtinTemplates))}
	for k, t := range builtinTemplates {
		r.templates[k] = t
	}
	return r
}

func (r *Registry) Template(kind Kind) Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.templates[kind]; ok {
		return t
	}
	return r.templates[KindDC]
}

// LoadFile merges template overrides from a YAML file into the registry.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template file: %w", err)
	}
	var file struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse template file %s: %w", path, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range file.Templates {
		if t.Kind == "" || len(t.Steps) == 0 {
			continue
		}
		r.templates[t.Kind] = t
	}
	return nil
}

// BuildParams are the inputs of workflow task generation. Generation is a
// pure function of these values and the template, so creating the same
// project twice yields identical task lists (ids aside).
type BuildParams struct {
	ProjectID      string
	Kind           Kind
	BU             string
	Supervisor     string
	DoerDefault    string
	SupportDefault string
	StartDate      string
	EventDate      string
	// NewTaskID supplies ids for generated tasks; nil leaves ids empty for
	// stores that assign identity themselves.
	NewTaskID func() string
}

// BuildWorkflowTasks expands the template for params.Kind into concrete
// tasks. Deadlines are day offsets from the template anchor; the event date
// defaults to the start date.
func (r *Registry) BuildWorkflowTasks(params BuildParams) ([]*task.Task, error) {
	tpl := r.Template(params.Kind)

	event := params.EventDate
	if event == "" {
		event = params.StartDate
	}

	tasks := make([]*task.Task, 0, len(tpl.Steps))
	for _, step := range tpl.Steps {
		anchor := params.StartDate
		if step.Anchor == AnchorEvent {
			anchor = event
		}
		deadline, err := task.AddDays(anchor, step.OffsetDays)
		if err != nil {
			return nil, fmt.Errorf("template step %q: %w", step.Title, err)
		}

		doer := params.DoerDefault
		if step.SupportLeads && params.SupportDefault != task.NoSupport {
			doer = params.SupportDefault
		}

		t := &task.Task{
			ProjectID:       params.ProjectID,
			ProjectKind:     string(params.Kind),
			BU:              params.BU,
			CreatedBy:       params.Supervisor,
			AssignedDate:    params.StartDate,
			Type:            task.TypeRoutine,
			Title:           step.Title,
			Doer:            doer,
			Support:         params.SupportDefault,
			Status:          task.StatusNotStarted,
			Focus:           "high",
			Tag:             "workflow",
			Deadline:        deadline,
			WorkAtHistory:   []task.WorkAtChange{},
			FollowupDone:    []bool{false, false, false},
			ResultSubmitted: false,
			Confirmed:       false,
			Archived:        false,
		}
		if params.NewTaskID != nil {
			t.ID = params.NewTaskID()
		}
		t.Normalize()
		tasks = append(tasks, t)
	}
	return tasks, nil
}
