package service

import (
	"context"
	"fmt"
	"time"

	"github.com/docuflow/approval-engine/internal/application/activity"
	"github.com/docuflow/approval-engine/internal/application/dispatcher"
	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/application/template"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/domain/escalation"
	"github.com/docuflow/approval-engine/internal/domain/event"
	"github.com/docuflow/approval-engine/internal/domain/workflow"
	"github.com/docuflow/approval-engine/pkg/utils"
)

// SubmissionService creates and reads workflow instances
type SubmissionService interface {
	// CreateSubmission binds a document to its department's workflow
	// template, snapshotting the steps at submission time.
	CreateSubmission(ctx context.Context, documentID string, submitter entity.User) (*entity.WorkflowInstance, error)
	GetSubmission(ctx context.Context, id int64) (*entity.WorkflowInstance, error)
	GetSubmissionByDocument(ctx context.Context, documentID string) (*entity.WorkflowInstance, error)
	ListSubmissions(ctx context.Context, limit, offset int) ([]*entity.WorkflowInstance, error)
	// ActivityLog projects the paginated audit trail for an instance.
	ActivityLog(ctx context.Context, id int64, page, pageSize int) (*activity.Page, error)
	// ActiveEscalation reports which escalation level, if any, the
	// instance's stalled step has reached.
	ActiveEscalation(ctx context.Context, id int64) (*entity.EscalationLevel, error)
}

type submissionServiceImpl struct {
	instanceRepo   port.InstanceRepository
	templateRepo   port.TemplateRepository
	recordRepo     port.RecordRepository
	escalationRepo port.EscalationRepository
	docStore       port.DocumentStore
	txManager      port.TransactionManager
	dispatcher     dispatcher.Dispatcher
	logger         Logger
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	instanceRepo port.InstanceRepository,
	templateRepo port.TemplateRepository,
	recordRepo port.RecordRepository,
	escalationRepo port.EscalationRepository,
	docStore port.DocumentStore,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) SubmissionService {
	return &submissionServiceImpl{
		instanceRepo:   instanceRepo,
		templateRepo:   templateRepo,
		recordRepo:     recordRepo,
		escalationRepo: escalationRepo,
		docStore:       docStore,
		txManager:      txManager,
		dispatcher:     d,
		logger:         logger,
	}
}

func (s *submissionServiceImpl) CreateSubmission(ctx context.Context, documentID string, submitter entity.User) (*entity.WorkflowInstance, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", workflow.ErrValidation)
	}
	if err := utils.ValidateEmail(submitter.Email); err != nil {
		return nil, fmt.Errorf("%w: submitter: %v", workflow.ErrValidation, err)
	}

	// One instance per document (idempotency).
	existing, err := s.instanceRepo.GetByDocumentID(ctx, documentID)
	if err == nil && existing != nil {
		s.logger.Info("Submission already exists", "document_id", documentID, "id", existing.ID)
		return existing, nil
	}

	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document metadata: %w", err)
	}

	tmpl, err := s.templateRepo.GetByDepartment(ctx, doc.Department)
	if err != nil {
		return nil, fmt.Errorf("fetch template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("no workflow template configured for department %s", doc.Department)
	}
	if len(tmpl.Steps) == 0 {
		return nil, fmt.Errorf("%w: template %d has no steps", workflow.ErrValidation, tmpl.ID)
	}

	now := time.Now()
	instance := &entity.WorkflowInstance{
		DocumentID:       documentID,
		TemplateID:       tmpl.ID,
		Status:           entity.StatusPending,
		CurrentStepIndex: 0,
		// Snapshot with normalized contiguous order; template edits after
		// this point do not affect the instance.
		Steps:         template.Normalize(tmpl.Steps),
		Department:    doc.Department,
		SubmittedBy:   submitter.Email,
		FileName:      doc.FileName,
		SubmitTime:    now,
		StepStartedAt: now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}

		record := &entity.StepRecord{
			InstanceID: instance.ID,
			StepOrder:  instance.Steps[0].Order,
			ActorID:    submitter.Email,
			ActorName:  submitter.Name,
			ActorRole:  submitter.Role,
			Action:     entity.ActionSubmit,
			Remarks:    fmt.Sprintf("Submitted %s", doc.FileName),
			Timestamp:  now,
		}
		if err := s.recordRepo.Create(txCtx, record); err != nil {
			return fmt.Errorf("create submit record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(
			event.TypeInstanceCreated,
			instance.ID,
			documentID,
			map[string]interface{}{
				"department": doc.Department,
				"file_name":  doc.FileName,
			},
		))
	}

	s.logger.Info("Submission created",
		"id", instance.ID,
		"document_id", documentID,
		"template_id", tmpl.ID,
		"steps", len(instance.Steps))

	return instance, nil
}

func (s *submissionServiceImpl) GetSubmission(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	instance, err := s.instanceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("submission %d not found", id)
	}
	return instance, nil
}

func (s *submissionServiceImpl) GetSubmissionByDocument(ctx context.Context, documentID string) (*entity.WorkflowInstance, error) {
	instance, err := s.instanceRepo.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("submission for document %s not found", documentID)
	}
	return instance, nil
}

func (s *submissionServiceImpl) ListSubmissions(ctx context.Context, limit, offset int) ([]*entity.WorkflowInstance, error) {
	return s.instanceRepo.List(ctx, limit, offset)
}

func (s *submissionServiceImpl) ActivityLog(ctx context.Context, id int64, page, pageSize int) (*activity.Page, error) {
	instance, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := s.recordRepo.GetByInstanceID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get step records: %w", err)
	}

	entries := activity.Project(instance, records)
	result := activity.Paginate(entries, page, pageSize)
	return &result, nil
}

func (s *submissionServiceImpl) ActiveEscalation(ctx context.Context, id int64) (*entity.EscalationLevel, error) {
	instance, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}

	if instance.IsFinalized() {
		return nil, nil
	}

	levels, err := s.escalationRepo.GetByTemplateID(ctx, instance.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("get escalation levels: %w", err)
	}

	elapsed := time.Since(instance.StepStartedAt).Hours()
	return escalation.Evaluate(levels, elapsed), nil
}
