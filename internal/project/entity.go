package project

// Kind selects the workflow template generated with a new project.
type Kind string

const (
	// KindDCP is the on-site school activity workflow.
	KindDCP = Kind("DCP")
	// KindDC is the content delivery workflow.
	KindDC = Kind("DC")
)

type Project struct {
	ID             string `json:"id,omitempty"`
	Kind           Kind   `json:"kind"`
	Name           string `json:"name,omitempty"`
	Title          string `json:"title"`
	BU             string `json:"bu"`
	Supervisor     string `json:"supervisor"`
	Doer           string `json:"doer"`
	DoerDefault    string `json:"doer_default"`
	SupportDefault string `json:"support_default"`
	StartDate      string `json:"start_date"`
	EventDate      string `json:"event_date,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// Form is the input to project creation.
type Form struct {
	Kind           Kind   `json:"kind"`
	Name           string `json:"name"`
	BU             string `json:"bu"`
	Supervisor     string `json:"supervisor"`
	DoerDefault    string `json:"doer_default"`
	SupportDefault string `json:"support_default"`
	StartDate      string `json:"start_date"`
	EventDate      string `json:"event_date"`
}

// Normalize fills the form defaults the UI leaves blank.
func (f *Form) Normalize() {
	if f.BU == "" {
		f.BU = "BU1"
	}
	if f.SupportDefault == "" {
		f.SupportDefault = "-"
	}
	if f.EventDate == "" {
		f.EventDate = f.StartDate
	}
}

func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
