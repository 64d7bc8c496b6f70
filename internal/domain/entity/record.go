package entity

import "time"

// Action type constants for StepRecord
const (
	ActionSubmit          = "SUBMIT"
	ActionApprove         = "APPROVE"
	ActionReject          = "REJECT"
	ActionRequestRevision = "REQUEST_REVISION"
	ActionResubmit        = "RESUBMIT"
	ActionDelegate        = "DELEGATE"
)

// StepRecord is one auditable entry in an instance's history. Records are
// append-only: nothing updates or removes a record once written.
type StepRecord struct {
	ID         int64  `json:"id"`
	InstanceID int64  `json:"instance_id"`
	StepOrder  int    `json:"step_order"`
	ActorID    string `json:"actor_id"`
	ActorName  string `json:"actor_name"`
	ActorRole  Role   `json:"actor_role"`
	Action     string `json:"action"`

	// Remarks carry the user-entered reason verbatim. Rejections and
	// revision requests always have one.
	Remarks string `json:"remarks,omitempty"`

	// Reasons holds structured rejection reasons or revision change items,
	// persisted as entered apart from control-character stripping.
	Reasons []string `json:"reasons,omitempty"`

	// DelegatedTo is set only for delegation records.
	DelegatedTo string `json:"delegated_to,omitempty"`

	Signature *Signature `json:"signature,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// IsTerminalAction returns true for actions that finish a step.
func (r *StepRecord) IsTerminalAction() bool {
	switch r.Action {
	case ActionApprove, ActionReject, ActionRequestRevision:
		return true
	}
	return false
}
