package workflow

import (
	"context"

	domainwf "github.com/docuflow/approval-engine/internal/domain/workflow"
)

// BuildApprovalStateMachine creates a state machine configured for the
// document approval lifecycle. The lastStep guard decides whether an
// approval finalizes the instance or advances it to the next step.
func BuildApprovalStateMachine(initialState domainwf.State, lastStep domainwf.GuardFunc) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	notLast := func(ctx context.Context) bool { return !lastStep(ctx) }

	// PENDING state transitions
	builder.Configure(domainwf.StatePending).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, lastStep).
		PermitIf(domainwf.TriggerApprove, domainwf.StateInReview, notLast).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerRequestRevision, domainwf.StateNeedsRevision).
		PermitReentry(domainwf.TriggerDelegate)

	// IN_REVIEW state transitions
	builder.Configure(domainwf.StateInReview).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, lastStep).
		PermitIf(domainwf.TriggerApprove, domainwf.StateInReview, notLast).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerRequestRevision, domainwf.StateNeedsRevision).
		PermitReentry(domainwf.TriggerDelegate)

	// NEEDS_REVISION state transitions
	builder.Configure(domainwf.StateNeedsRevision).
		Permit(domainwf.TriggerResubmit, domainwf.StatePending).
		PermitReentry(domainwf.TriggerDelegate)

	// APPROVED and REJECTED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}
