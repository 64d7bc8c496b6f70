package port

import (
	"context"
	"errors"

	"github.com/docuflow/approval-engine/internal/domain/entity"
)

// ErrVersionConflict is returned when an optimistic update loses the race
// against a concurrent writer.
var ErrVersionConflict = errors.New("instance version conflict")

// TemplateRepository defines persistence operations for WorkflowTemplate
type TemplateRepository interface {
	Create(ctx context.Context, template *entity.WorkflowTemplate) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error)
	GetByDepartment(ctx context.Context, departmentID string) (*entity.WorkflowTemplate, error)
	List(ctx context.Context, limit, offset int) ([]*entity.WorkflowTemplate, error)
	// SaveSteps replaces the template's step list atomically.
	SaveSteps(ctx context.Context, templateID int64, steps []entity.StepDefinition) error
	Delete(ctx context.Context, id int64) error
}

// InstanceRepository defines persistence operations for WorkflowInstance
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error)
	GetByDocumentID(ctx context.Context, documentID string) (*entity.WorkflowInstance, error)
	// Update persists the mutable instance fields guarded by the version
	// column; returns ErrVersionConflict on a lost race.
	Update(ctx context.Context, instance *entity.WorkflowInstance) error
	// SetEscalationLevel records the highest escalation level notified so far.
	SetEscalationLevel(ctx context.Context, id int64, level int) error
	List(ctx context.Context, limit, offset int) ([]*entity.WorkflowInstance, error)
	// ListActive returns non-terminal instances for escalation polling.
	ListActive(ctx context.Context, limit int) ([]*entity.WorkflowInstance, error)
	CountActiveByTemplate(ctx context.Context, templateID int64) (int, error)
}

// RecordRepository defines persistence operations for StepRecord.
// Records are append-only; there is no update or delete path.
type RecordRepository interface {
	Create(ctx context.Context, record *entity.StepRecord) error
	// GetByInstanceID returns records in insertion order.
	GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.StepRecord, error)
}

// EscalationRepository defines persistence operations for EscalationLevel
type EscalationRepository interface {
	// ReplaceLevels swaps the template's escalation ladder atomically.
	ReplaceLevels(ctx context.Context, templateID int64, levels []entity.EscalationLevel) error
	GetByTemplateID(ctx context.Context, templateID int64) ([]entity.EscalationLevel, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
