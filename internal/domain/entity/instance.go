package entity

import "time"

// Status constants for WorkflowInstance
const (
	StatusPending       = "PENDING"
	StatusInReview      = "IN_REVIEW"
	StatusApproved      = "APPROVED"
	StatusRejected      = "REJECTED"
	StatusNeedsRevision = "NEEDS_REVISION"
)

// WorkflowInstance is the live progress of one document through a
// workflow template. It is the single source of truth for where the
// document sits in the approval chain.
type WorkflowInstance struct {
	ID               int64  `json:"id"`
	DocumentID       string `json:"document_id"`
	TemplateID       int64  `json:"template_id"`
	Status           string `json:"status"`
	CurrentStepIndex int    `json:"current_step_index"`

	// Template snapshot taken at submission time. Later template edits
	// do not affect instances already in flight.
	Steps []StepDefinition `json:"steps"`

	// Delegation override for the current step. Empty means the step's
	// configured role owns it.
	CurrentAssignee string `json:"current_assignee,omitempty"`

	// Rejection / revision markers. Cleared on resubmission.
	ReturnedBy     string     `json:"returned_by,omitempty"`
	ReturnedByName string     `json:"returned_by_name,omitempty"`
	ReturnedDate   *time.Time `json:"returned_date,omitempty"`
	Remarks        string     `json:"remarks,omitempty"`

	// Highest escalation level already notified for the current step.
	// Reset whenever the step changes or the instance is resubmitted.
	EscalationLevelNotified int `json:"escalation_level_notified"`

	// StepStartedAt marks when the current step began waiting for action.
	StepStartedAt time.Time `json:"step_started_at"`

	// Version supports optimistic concurrency in persistence.
	Version int64 `json:"version"`

	Department   string     `json:"department"`
	SubmittedBy  string     `json:"submitted_by"`
	FileName     string     `json:"file_name"`
	SubmitTime   time.Time  `json:"submit_time"`
	FinalizedAt  *time.Time `json:"finalized_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsFinalized returns true once the instance has reached a terminal status.
func (i *WorkflowInstance) IsFinalized() bool {
	return i.Status == StatusApproved || i.Status == StatusRejected
}

// IsLastStep returns true if the current step is the final step of the snapshot.
func (i *WorkflowInstance) IsLastStep() bool {
	return len(i.Steps) > 0 && i.CurrentStepIndex == len(i.Steps)-1
}

// CurrentStep returns the step the instance is waiting on, or nil when
// the index is out of range (finalized instances keep a frozen index).
func (i *WorkflowInstance) CurrentStep() *StepDefinition {
	if i.CurrentStepIndex < 0 || i.CurrentStepIndex >= len(i.Steps) {
		return nil
	}
	return &i.Steps[i.CurrentStepIndex]
}
