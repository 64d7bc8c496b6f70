package service

import (
	"context"
	"fmt"

	"github.com/docuflow/approval-engine/internal/application/dispatcher"
	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/event"
)

// NotificationService turns terminal workflow transitions into
// best-effort notifications to the submitter. Delivery failures are
// logged, never propagated into the state machine.
type NotificationService interface {
	// Register subscribes the service to the terminal transition events.
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	instanceRepo port.InstanceRepository
	notifier     port.Notifier
	logger       Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	instanceRepo port.InstanceRepository,
	notifier port.Notifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		instanceRepo: instanceRepo,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeInstanceApproved, "notify-approved", s.handleOutcome)
	d.SubscribeNamed(event.TypeInstanceRejected, "notify-rejected", s.handleOutcome)
	d.SubscribeNamed(event.TypeRevisionRequested, "notify-revision", s.handleOutcome)
}

func (s *notificationServiceImpl) handleOutcome(ctx context.Context, evt *event.Event) error {
	instance, err := s.instanceRepo.GetByID(ctx, evt.InstanceID)
	if err != nil || instance == nil {
		return fmt.Errorf("resolve instance %d: %w", evt.InstanceID, err)
	}

	subject, message := outcomeMessage(evt, instance.FileName)

	// Both channels, at-least-once. A duplicate notification is
	// acceptable; a lost one is just logged.
	for _, ch := range []port.Channel{port.ChannelInApp, port.ChannelEmail} {
		if err := s.notifier.Notify(ctx, ch, instance.SubmittedBy, subject, message); err != nil {
			s.logger.Error("Notification delivery failed",
				"channel", string(ch),
				"recipient", instance.SubmittedBy,
				"instance_id", instance.ID,
				"error", err)
		}
	}

	return nil
}

func outcomeMessage(evt *event.Event, fileName string) (subject, message string) {
	switch evt.Type {
	case event.TypeInstanceApproved:
		return "Document approved",
			fmt.Sprintf("%s has completed the approval workflow.", fileName)
	case event.TypeInstanceRejected:
		return "Document rejected",
			fmt.Sprintf("%s was rejected by %s.", fileName, evt.GetPayloadString("actor"))
	case event.TypeRevisionRequested:
		return "Revision requested",
			fmt.Sprintf("%s was returned for revision by %s.", fileName, evt.GetPayloadString("actor"))
	default:
		return "Workflow update", fmt.Sprintf("%s status changed to %s.", fileName, evt.GetPayloadString("new_status"))
	}
}
