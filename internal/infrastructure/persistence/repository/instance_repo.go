package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/infrastructure/persistence/sqlite"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sqlite.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db.DB,
		logger: logger,
	}
}

const instanceColumns = `
	id, document_id, template_id, status, current_step_index, steps_snapshot,
	current_assignee, returned_by, returned_by_name, returned_date, remarks,
	escalation_level_notified, step_started_at, version, department,
	submitted_by, file_name, submit_time, finalized_at, created_at, updated_at
`

// Create creates a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	snapshot, err := json.Marshal(instance.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps snapshot: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (
			document_id, template_id, status, current_step_index, steps_snapshot,
			current_assignee, remarks, escalation_level_notified, step_started_at,
			version, department, submitted_by, file_name, submit_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		instance.DocumentID,
		instance.TemplateID,
		instance.Status,
		instance.CurrentStepIndex,
		string(snapshot),
		instance.CurrentAssignee,
		instance.Remarks,
		instance.EscalationLevelNotified,
		instance.StepStartedAt,
		instance.Version,
		instance.Department,
		instance.SubmittedBy,
		instance.FileName,
		instance.SubmitTime,
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	instance.ID = id
	return nil
}

// GetByID retrieves a workflow instance by ID
func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ?`
	return r.scanOne(pick(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetByDocumentID retrieves the instance bound to a document
func (r *InstanceRepository) GetByDocumentID(ctx context.Context, documentID string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE document_id = ?`
	return r.scanOne(pick(ctx, r.db).QueryRowContext(ctx, query, documentID))
}

// Update persists the mutable instance fields with an optimistic version
// check. A lost race returns port.ErrVersionConflict.
func (r *InstanceRepository) Update(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `
		UPDATE workflow_instances SET
			status = ?, current_step_index = ?, current_assignee = ?,
			returned_by = ?, returned_by_name = ?, returned_date = ?, remarks = ?,
			escalation_level_notified = ?, step_started_at = ?, finalized_at = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		instance.Status,
		instance.CurrentStepIndex,
		instance.CurrentAssignee,
		instance.ReturnedBy,
		instance.ReturnedByName,
		instance.ReturnedDate,
		instance.Remarks,
		instance.EscalationLevelNotified,
		instance.StepStartedAt,
		instance.FinalizedAt,
		instance.ID,
		instance.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.Int64("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("instance %d: %w", instance.ID, port.ErrVersionConflict)
	}

	instance.Version++
	return nil
}

// SetEscalationLevel records the highest escalation level notified so far
func (r *InstanceRepository) SetEscalationLevel(ctx context.Context, id int64, level int) error {
	query := `UPDATE workflow_instances SET escalation_level_notified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := pick(ctx, r.db).ExecContext(ctx, query, level, id)
	if err != nil {
		r.logger.Error("Failed to set escalation level", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set escalation level: %w", err)
	}

	return nil
}

// List retrieves workflow instances with pagination
func (r *InstanceRepository) List(ctx context.Context, limit, offset int) ([]*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM workflow_instances
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	return r.scanMany(ctx, query, limit, offset)
}

// ListActive returns non-terminal instances for escalation polling
func (r *InstanceRepository) ListActive(ctx context.Context, limit int) ([]*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE status NOT IN (?, ?)
		ORDER BY step_started_at ASC
		LIMIT ?`

	return r.scanMany(ctx, query, entity.StatusApproved, entity.StatusRejected, limit)
}

// CountActiveByTemplate counts non-terminal instances bound to a template
func (r *InstanceRepository) CountActiveByTemplate(ctx context.Context, templateID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM workflow_instances
		WHERE template_id = ? AND status NOT IN (?, ?)
	`

	var count int
	err := pick(ctx, r.db).QueryRowContext(ctx, query, templateID, entity.StatusApproved, entity.StatusRejected).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active instances: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *InstanceRepository) scanOne(row rowScanner) (*entity.WorkflowInstance, error) {
	var instance entity.WorkflowInstance
	var snapshot string
	var returnedDate, finalizedAt sql.NullTime

	err := row.Scan(
		&instance.ID,
		&instance.DocumentID,
		&instance.TemplateID,
		&instance.Status,
		&instance.CurrentStepIndex,
		&snapshot,
		&instance.CurrentAssignee,
		&instance.ReturnedBy,
		&instance.ReturnedByName,
		&returnedDate,
		&instance.Remarks,
		&instance.EscalationLevelNotified,
		&instance.StepStartedAt,
		&instance.Version,
		&instance.Department,
		&instance.SubmittedBy,
		&instance.FileName,
		&instance.SubmitTime,
		&finalizedAt,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to scan instance", zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	if err := json.Unmarshal([]byte(snapshot), &instance.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps snapshot: %w", err)
	}
	if returnedDate.Valid {
		instance.ReturnedDate = &returnedDate.Time
	}
	if finalizedAt.Valid {
		instance.FinalizedAt = &finalizedAt.Time
	}

	return &instance, nil
}

func (r *InstanceRepository) scanMany(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowInstance, error) {
	rows, err := pick(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		instance, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
