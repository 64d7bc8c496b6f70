// Package workflow applies approval actions to workflow instances. All
// instance mutation in the system funnels through the Processor so the
// transition table and audit trail stay consistent.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/docuflow/approval-engine/internal/application/dispatcher"
	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/domain/event"
	domainwf "github.com/docuflow/approval-engine/internal/domain/workflow"
	"github.com/docuflow/approval-engine/pkg/utils"
)

// Actor identifies the user performing an approval action, as supplied
// by the identity provider.
type Actor struct {
	ID   string
	Name string
	Role entity.Role
}

// SignatureRequest carries the electronic signature fields an approval
// must provide before it is applied.
type SignatureRequest struct {
	Meaning       string
	Reason        string
	PasswordToken string
	IPAddress     string
}

// Processor validates and applies approval actions against workflow
// instances.
type Processor interface {
	Approve(ctx context.Context, instanceID int64, actor Actor, comments string, sig SignatureRequest) (*entity.WorkflowInstance, error)
	Reject(ctx context.Context, instanceID int64, actor Actor, comments string, reasons []string) (*entity.WorkflowInstance, error)
	RequestRevision(ctx context.Context, instanceID int64, actor Actor, comments string, changeList []string) (*entity.WorkflowInstance, error)
	Resubmit(ctx context.Context, instanceID int64, actor Actor) (*entity.WorkflowInstance, error)
	Delegate(ctx context.Context, instanceID int64, actor Actor, delegateTo, reason string) (*entity.WorkflowInstance, error)
}

type processorImpl struct {
	instanceRepo port.InstanceRepository
	recordRepo   port.RecordRepository
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher

	// Per-instance locks enforce the single-writer rule: exactly one
	// action may be applied to an instance at a time.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// ProcessorOption configures the processor
type ProcessorOption func(*processorImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) ProcessorOption {
	return func(p *processorImpl) {
		p.dispatcher = d
	}
}

// NewProcessor creates a new approval action processor
func NewProcessor(
	instanceRepo port.InstanceRepository,
	recordRepo port.RecordRepository,
	txManager port.TransactionManager,
	opts ...ProcessorOption,
) Processor {
	p := &processorImpl{
		instanceRepo: instanceRepo,
		recordRepo:   recordRepo,
		txManager:    txManager,
		locks:        make(map[int64]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Approve records an electronic signature and either advances the
// instance or finalizes it when the current step is the last one.
func (p *processorImpl) Approve(ctx context.Context, instanceID int64, actor Actor, comments string, sig SignatureRequest) (*entity.WorkflowInstance, error) {
	if !actor.Role.Capabilities().CanApprove {
		return nil, roleError(actor, "approve")
	}
	if sig.Meaning == "" || sig.Reason == "" || sig.PasswordToken == "" {
		return nil, fmt.Errorf("%w: signature meaning, reason and password verification are required", domainwf.ErrIncompleteSignature)
	}
	if !entity.IsValidMeaning(sig.Meaning) {
		return nil, fmt.Errorf("%w: unknown signature meaning %q", domainwf.ErrIncompleteSignature, sig.Meaning)
	}
	comments = utils.SanitizeString(comments)

	return p.apply(ctx, instanceID, domainwf.TriggerApprove, func(instance *entity.WorkflowInstance, record *entity.StepRecord) {
		record.Action = entity.ActionApprove
		record.ActorID = actor.ID
		record.ActorName = actor.Name
		record.ActorRole = actor.Role
		record.Remarks = comments
		record.Signature = entity.NewSignature(actor.ID, actor.Name, sig.Meaning, sig.Reason, sig.IPAddress)
	}, func(instance *entity.WorkflowInstance, newState domainwf.State) {
		if newState == domainwf.StateApproved {
			now := time.Now()
			instance.FinalizedAt = &now
			return
		}
		instance.CurrentStepIndex++
		instance.CurrentAssignee = ""
		instance.EscalationLevelNotified = 0
		instance.StepStartedAt = time.Now()
	})
}

// Reject finalizes the instance. At least one structured reason or a
// free-text comment is required; the entered text is persisted verbatim.
func (p *processorImpl) Reject(ctx context.Context, instanceID int64, actor Actor, comments string, reasons []string) (*entity.WorkflowInstance, error) {
	if !actor.Role.Capabilities().CanReject {
		return nil, roleError(actor, "reject")
	}
	if len(nonEmpty(reasons)) == 0 && strings.TrimSpace(comments) == "" {
		return nil, fmt.Errorf("%w: at least one rejection reason is required", domainwf.ErrValidation)
	}
	comments = utils.SanitizeString(comments)

	return p.apply(ctx, instanceID, domainwf.TriggerReject, func(instance *entity.WorkflowInstance, record *entity.StepRecord) {
		record.Action = entity.ActionReject
		record.ActorID = actor.ID
		record.ActorName = actor.Name
		record.ActorRole = actor.Role
		record.Remarks = comments
		record.Reasons = nonEmpty(reasons)
	}, func(instance *entity.WorkflowInstance, newState domainwf.State) {
		now := time.Now()
		instance.ReturnedBy = actor.ID
		instance.ReturnedByName = actor.Name
		instance.ReturnedDate = &now
		instance.Remarks = rejectionRemarks(comments, reasons)
		instance.FinalizedAt = &now
	})
}

// RequestRevision returns the document to its author for correction.
func (p *processorImpl) RequestRevision(ctx context.Context, instanceID int64, actor Actor, comments string, changeList []string) (*entity.WorkflowInstance, error) {
	if !actor.Role.Capabilities().CanRequestRevision {
		return nil, roleError(actor, "request revision")
	}
	if len(nonEmpty(changeList)) == 0 {
		return nil, fmt.Errorf("%w: requested changes must not be empty", domainwf.ErrValidation)
	}
	comments = utils.SanitizeString(comments)

	return p.apply(ctx, instanceID, domainwf.TriggerRequestRevision, func(instance *entity.WorkflowInstance, record *entity.StepRecord) {
		record.Action = entity.ActionRequestRevision
		record.ActorID = actor.ID
		record.ActorName = actor.Name
		record.ActorRole = actor.Role
		record.Remarks = comments
		record.Reasons = nonEmpty(changeList)
	}, func(instance *entity.WorkflowInstance, newState domainwf.State) {
		now := time.Now()
		instance.ReturnedBy = actor.ID
		instance.ReturnedByName = actor.Name
		instance.ReturnedDate = &now
		instance.Remarks = rejectionRemarks(comments, changeList)
	})
}

// Resubmit moves a revised document back to the start of its chain.
// History is retained; the rejection markers and the escalation dedupe
// marker are cleared.
func (p *processorImpl) Resubmit(ctx context.Context, instanceID int64, actor Actor) (*entity.WorkflowInstance, error) {
	if !actor.Role.Capabilities().CanSubmit {
		return nil, roleError(actor, "resubmit")
	}
	return p.apply(ctx, instanceID, domainwf.TriggerResubmit, func(instance *entity.WorkflowInstance, record *entity.StepRecord) {
		record.Action = entity.ActionResubmit
		record.ActorID = actor.ID
		record.ActorName = actor.Name
		record.ActorRole = actor.Role
	}, func(instance *entity.WorkflowInstance, newState domainwf.State) {
		instance.CurrentStepIndex = 0
		instance.CurrentAssignee = ""
		instance.ReturnedBy = ""
		instance.ReturnedByName = ""
		instance.ReturnedDate = nil
		instance.Remarks = ""
		instance.EscalationLevelNotified = 0
		instance.StepStartedAt = time.Now()
	})
}

// Delegate reassigns the current step's actor without changing status or
// step index.
func (p *processorImpl) Delegate(ctx context.Context, instanceID int64, actor Actor, delegateTo, reason string) (*entity.WorkflowInstance, error) {
	if !actor.Role.Capabilities().CanDelegate {
		return nil, roleError(actor, "delegate")
	}
	if strings.TrimSpace(delegateTo) == "" || strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: delegate target and reason are required", domainwf.ErrValidation)
	}
	if err := utils.ValidateEmail(delegateTo); err != nil {
		return nil, fmt.Errorf("%w: delegate target: %v", domainwf.ErrValidation, err)
	}
	reason = utils.SanitizeString(reason)

	return p.apply(ctx, instanceID, domainwf.TriggerDelegate, func(instance *entity.WorkflowInstance, record *entity.StepRecord) {
		record.Action = entity.ActionDelegate
		record.ActorID = actor.ID
		record.ActorName = actor.Name
		record.ActorRole = actor.Role
		record.Remarks = reason
		record.DelegatedTo = delegateTo
	}, func(instance *entity.WorkflowInstance, newState domainwf.State) {
		instance.CurrentAssignee = delegateTo
	})
}

// apply runs the shared action pipeline: lock, load, fire the state
// machine, then commit the status change and the audit record in one
// transaction before emitting events.
func (p *processorImpl) apply(
	ctx context.Context,
	instanceID int64,
	trigger domainwf.Trigger,
	fillRecord func(*entity.WorkflowInstance, *entity.StepRecord),
	mutate func(*entity.WorkflowInstance, domainwf.State),
) (*entity.WorkflowInstance, error) {
	lock := p.lockFor(instanceID)
	lock.Lock()
	defer lock.Unlock()

	instance, err := p.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instance: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("instance %d not found", instanceID)
	}

	if instance.IsFinalized() {
		return nil, fmt.Errorf("%w: instance %d is %s", domainwf.ErrFinalized, instanceID, instance.Status)
	}

	previousState := domainwf.State(instance.Status)
	if !previousState.IsValid() {
		return nil, fmt.Errorf("%w: instance status %q", domainwf.ErrInvalidState, instance.Status)
	}

	lastStep := func(ctx context.Context) bool { return instance.IsLastStep() }
	machine := BuildApprovalStateMachine(previousState, lastStep)

	if !machine.CanFire(trigger) {
		return nil, fmt.Errorf("%w: trigger %s from state %s", domainwf.ErrInvalidTransition, trigger, previousState)
	}

	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, err
	}
	newState := machine.State()

	record := &entity.StepRecord{
		InstanceID: instanceID,
		StepOrder:  currentStepOrder(instance),
		Timestamp:  time.Now(),
	}
	fillRecord(instance, record)

	instance.Status = newState.String()
	mutate(instance, newState)

	// The audit record is written before the instance row inside the same
	// transaction: the transition is not committed until its trail is.
	err = p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.recordRepo.Create(txCtx, record); err != nil {
			return fmt.Errorf("failed to create step record: %w", err)
		}
		if err := p.instanceRepo.Update(txCtx, instance); err != nil {
			return fmt.Errorf("failed to update instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if p.dispatcher != nil {
		p.dispatcher.DispatchAsync(ctx, event.NewEvent(
			eventTypeFor(trigger, newState),
			instanceID,
			instance.DocumentID,
			map[string]interface{}{
				"previous_status": previousState.String(),
				"new_status":      newState.String(),
				"action":          record.Action,
				"actor":           record.ActorID,
			},
		))
	}

	return instance, nil
}

// lockFor returns the mutex guarding one instance, creating it on first use.
func (p *processorImpl) lockFor(instanceID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[instanceID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[instanceID] = lock
	}
	return lock
}

func eventTypeFor(trigger domainwf.Trigger, newState domainwf.State) event.Type {
	switch {
	case newState == domainwf.StateApproved:
		return event.TypeInstanceApproved
	case newState == domainwf.StateRejected:
		return event.TypeInstanceRejected
	case newState == domainwf.StateNeedsRevision:
		return event.TypeRevisionRequested
	case trigger == domainwf.TriggerResubmit:
		return event.TypeInstanceResubmitted
	case trigger == domainwf.TriggerDelegate:
		return event.TypeStepDelegated
	default:
		return event.TypeStatusChanged
	}
}

func currentStepOrder(instance *entity.WorkflowInstance) int {
	if step := instance.CurrentStep(); step != nil {
		return step.Order
	}
	return instance.CurrentStepIndex + 1
}

// roleError reports a capability violation for an actor's role.
func roleError(actor Actor, action string) error {
	return fmt.Errorf("%w: role %s may not %s", domainwf.ErrRoleNotPermitted, actor.Role, action)
}

// nonEmpty drops blank entries and strips control characters; the
// remaining user-entered text is persisted as typed.
func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, utils.SanitizeString(s))
		}
	}
	return out
}

func rejectionRemarks(comments string, reasons []string) string {
	parts := nonEmpty(reasons)
	if strings.TrimSpace(comments) != "" {
		parts = append([]string{comments}, parts...)
	}
	return strings.Join(parts, "; ")
}
