package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrValidation is returned when required action input is missing or empty
	ErrValidation = errors.New("validation failed")

	// ErrIncompleteSignature is returned when signature fields are missing at approval time
	ErrIncompleteSignature = errors.New("incomplete signature")

	// ErrFinalized is returned when an action targets an already finalized instance
	ErrFinalized = errors.New("workflow already finalized")

	// ErrTemplateInUse is returned when deleting a template with active bound instances
	ErrTemplateInUse = errors.New("template has active instances")

	// ErrRoleNotPermitted is returned when the actor's role lacks the
	// capability for the requested action
	ErrRoleNotPermitted = errors.New("role not permitted to perform action")
)
