// Package feature implements the feature model: persistent records, id
// generation, and the dependency graph the scheduler runs on.
package feature

// Status is a pipeline state for a feature.
type Status string

// Pipeline states in lifecycle order.
const (
	StatusPending        Status = "pending"
	StatusInDev          Status = "in-dev"
	StatusReadyForReview Status = "ready-for-review"
	StatusApproved       Status = "approved"
	StatusNeedsRevision  Status = "needs-revision"
	StatusQATesting      Status = "qa-testing"
	StatusPROpen         Status = "pr-open"
	StatusComplete       Status = "complete"
)

// Statuses lists every valid status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusInDev,
		StatusReadyForReview,
		StatusApproved,
		StatusNeedsRevision,
		StatusQATesting,
		StatusPROpen,
		StatusComplete,
	}
}

// Valid reports whether s is a known pipeline status.
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Feature is the unit of work tracked through the pipeline.
type Feature struct {
	ID                     string   `json:"id"`
	Category               string   `json:"category"`
	Description            string   `json:"description"`
	Notes                  string   `json:"notes"`
	Status                 Status   `json:"status"`
	DependsOn              []string `json:"depends_on"`
	Requirements           []string `json:"requirements"`
	ArchitectureCompliance []string `json:"architecture_compliance"`
	VerificationSteps      []string `json:"verification_steps"`
	AssignedTo             string   `json:"assigned_to"`
	ReviewedBy             string   `json:"reviewed_by"`
	TestedBy               string   `json:"tested_by"`
	Passes                 bool     `json:"passes"`
	OpenSpecChangeID       string   `json:"openspec_change_id"`
	OpenSpecTaskGroup      int      `json:"openspec_task_group"`
	OpenSpecReference      string   `json:"openspec_reference"`
	CreatedAt              string   `json:"created_at"`
	UpdatedAt              string   `json:"updated_at"`
}

// Update is the allow-list of mutable fields. A nil field is left unchanged.
// id, created_at, and updated_at are never writable through this path.
type Update struct {
	Category               *string
	Description            *string
	Notes                  *string
	Status                 *Status
	DependsOn              *[]string
	Requirements           *[]string
	ArchitectureCompliance *[]string
	VerificationSteps      *[]string
	AssignedTo             *string
	ReviewedBy             *string
	TestedBy               *string
	Passes                 *bool
	OpenSpecChangeID       *string
	OpenSpecTaskGroup      *int
	OpenSpecReference      *string
}

// Filter restricts List results.
type Filter struct {
	Status     string
	AssignedTo string
}
