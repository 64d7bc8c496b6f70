package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/dispatcher"
	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/domain/escalation"
	"github.com/docuflow/approval-engine/internal/domain/event"
)

// EscalationPoller periodically re-evaluates active instances against
// their template's escalation ladder and notifies the next authority
// when a step has stalled past a threshold. Each level fires at most
// once per step; the instance tracks the highest level already notified.
type EscalationPoller struct {
	instanceRepo   port.InstanceRepository
	escalationRepo port.EscalationRepository
	notifier       port.Notifier
	dispatcher     dispatcher.Dispatcher
	logger         *zap.Logger

	pollInterval time.Duration
	batchSize    int

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewEscalationPoller creates a new escalation poller
func NewEscalationPoller(
	instanceRepo port.InstanceRepository,
	escalationRepo port.EscalationRepository,
	notifier port.Notifier,
	disp dispatcher.Dispatcher,
	pollInterval time.Duration,
	batchSize int,
	logger *zap.Logger,
) *EscalationPoller {
	return &EscalationPoller{
		instanceRepo:   instanceRepo,
		escalationRepo: escalationRepo,
		notifier:       notifier,
		dispatcher:     disp,
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		logger:         logger,
	}
}

// Start starts the escalation polling worker
func (p *EscalationPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("escalation poller is already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.isRunning = true

	p.logger.Info("EscalationPoller started",
		zap.Duration("poll_interval", p.pollInterval),
		zap.Int("batch_size", p.batchSize))

	go p.pollLoop()

	return nil
}

// Stop stops the escalation polling worker
func (p *EscalationPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return
	}

	p.isRunning = false
	if p.cancel != nil {
		p.cancel()
	}

	p.logger.Info("EscalationPoller stopped")
}

// Name returns the worker name for identification
func (p *EscalationPoller) Name() string {
	return "EscalationPoller"
}

func (p *EscalationPoller) pollLoop() {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Poll immediately on start
	p.pollOnce()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *EscalationPoller) pollOnce() {
	ctx, cancel := context.WithTimeout(p.ctx, 30*time.Second)
	defer cancel()

	instances, err := p.instanceRepo.ListActive(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to list active instances", zap.Error(err))
		return
	}

	if len(instances) == 0 {
		return
	}

	ladders := make(map[int64][]entity.EscalationLevel)
	raised := 0

	for _, instance := range instances {
		// A returned instance waits on its submitter, not an approver.
		if instance.Status == entity.StatusNeedsRevision {
			continue
		}

		levels, ok := ladders[instance.TemplateID]
		if !ok {
			levels, err = p.escalationRepo.GetByTemplateID(ctx, instance.TemplateID)
			if err != nil {
				p.logger.Warn("Failed to load escalation levels",
					zap.Int64("template_id", instance.TemplateID),
					zap.Error(err))
				continue
			}
			ladders[instance.TemplateID] = levels
		}

		elapsed := time.Since(instance.StepStartedAt).Hours()
		active := escalation.Evaluate(levels, elapsed)
		if active == nil || active.Level <= instance.EscalationLevelNotified {
			continue
		}

		if err := p.raise(ctx, instance, active, elapsed); err != nil {
			p.logger.Error("Failed to raise escalation",
				zap.Int64("instance_id", instance.ID),
				zap.Int("level", active.Level),
				zap.Error(err))
			continue
		}
		raised++
	}

	if raised > 0 {
		p.logger.Info("Escalation polling completed",
			zap.Int("checked", len(instances)),
			zap.Int("raised", raised))
	}
}

// raise marks the level notified first, then delivers. A delivery
// failure after the mark loses one notification rather than spamming
// the assignee on every subsequent tick.
func (p *EscalationPoller) raise(ctx context.Context, instance *entity.WorkflowInstance, level *entity.EscalationLevel, elapsed float64) error {
	if err := p.instanceRepo.SetEscalationLevel(ctx, instance.ID, level.Level); err != nil {
		return err
	}

	subject := fmt.Sprintf("Approval overdue: %s", instance.FileName)
	message := fmt.Sprintf(
		"Document %s has been waiting %.1f hours at step %d (threshold %.1fh, escalation level %d).",
		instance.DocumentID, elapsed, instance.CurrentStepIndex+1, level.TimeThresholdHours, level.Level,
	)

	if level.NotifyEmail {
		if err := p.notifier.Notify(ctx, port.ChannelEmail, level.AssigneeID, subject, message); err != nil {
			p.logger.Warn("Email escalation notification failed",
				zap.String("recipient", level.AssigneeID),
				zap.Error(err))
		}
	}
	if level.NotifyInApp {
		if err := p.notifier.Notify(ctx, port.ChannelInApp, level.AssigneeID, subject, message); err != nil {
			p.logger.Warn("In-app escalation notification failed",
				zap.String("recipient", level.AssigneeID),
				zap.Error(err))
		}
	}

	p.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeEscalationRaised, instance.ID, instance.DocumentID, map[string]interface{}{
		"level":         level.Level,
		"elapsed_hours": elapsed,
		"assignee_id":   level.AssigneeID,
	}))

	return nil
}

// Verify interface compliance
var _ Worker = (*EscalationPoller)(nil)
