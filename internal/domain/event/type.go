package event

// Type identifies the type of domain event
type Type string

const (
	TypeInstanceCreated     Type = "instance.created"
	TypeInstanceApproved    Type = "instance.approved"
	TypeInstanceRejected    Type = "instance.rejected"
	TypeRevisionRequested   Type = "instance.revision_requested"
	TypeInstanceResubmitted Type = "instance.resubmitted"
	TypeStepDelegated       Type = "instance.step_delegated"
	TypeStatusChanged       Type = "instance.status_changed"
	TypeEscalationRaised    Type = "escalation.raised"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInstanceCreated,
		TypeInstanceApproved,
		TypeInstanceRejected,
		TypeRevisionRequested,
		TypeInstanceResubmitted,
		TypeStepDelegated,
		TypeStatusChanged,
		TypeEscalationRaised:
		return true
	default:
		return false
	}
}
