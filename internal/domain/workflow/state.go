package workflow

// State represents a workflow state in the document approval lifecycle
type State string

const (
	StatePending       State = "PENDING"
	StateInReview      State = "IN_REVIEW"
	StateApproved      State = "APPROVED"
	StateRejected      State = "REJECTED"
	StateNeedsRevision State = "NEEDS_REVISION"
)

var validStates = map[State]bool{
	StatePending:       true,
	StateInReview:      true,
	StateApproved:      true,
	StateRejected:      true,
	StateNeedsRevision: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
