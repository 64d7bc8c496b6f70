package workflow

// Trigger represents an approval action that can cause a state transition
type Trigger string

const (
	TriggerApprove         Trigger = "APPROVE"
	TriggerReject          Trigger = "REJECT"
	TriggerRequestRevision Trigger = "REQUEST_REVISION"
	TriggerResubmit        Trigger = "RESUBMIT"
	TriggerDelegate        Trigger = "DELEGATE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
