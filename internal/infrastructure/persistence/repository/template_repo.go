package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/infrastructure/persistence/sqlite"
)

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db        *sql.DB
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sqlite.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:        db.DB,
		txManager: db,
		logger:    logger,
	}
}

// Create creates a template together with its steps
func (r *TemplateRepository) Create(ctx context.Context, template *entity.WorkflowTemplate) error {
	return r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `INSERT INTO workflow_templates (department_id, name) VALUES (?, ?)`

		result, err := pick(txCtx, r.db).ExecContext(txCtx, query, template.DepartmentID, template.Name)
		if err != nil {
			r.logger.Error("Failed to create template", zap.Error(err))
			return fmt.Errorf("failed to create template: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		template.ID = id

		return r.insertSteps(txCtx, id, template.Steps)
	})
}

// GetByID retrieves a template with its ordered steps
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	return r.getOne(ctx, `SELECT id, department_id, name, created_at, updated_at FROM workflow_templates WHERE id = ?`, id)
}

// GetByDepartment retrieves the template bound to a department
func (r *TemplateRepository) GetByDepartment(ctx context.Context, departmentID string) (*entity.WorkflowTemplate, error) {
	return r.getOne(ctx, `SELECT id, department_id, name, created_at, updated_at FROM workflow_templates WHERE department_id = ?`, departmentID)
}

// List retrieves templates with pagination
func (r *TemplateRepository) List(ctx context.Context, limit, offset int) ([]*entity.WorkflowTemplate, error) {
	query := `
		SELECT id, department_id, name, created_at, updated_at
		FROM workflow_templates
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*entity.WorkflowTemplate
	for rows.Next() {
		var t entity.WorkflowTemplate
		if err := rows.Scan(&t.ID, &t.DepartmentID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range templates {
		steps, err := r.loadSteps(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.Steps = steps
	}

	return templates, nil
}

// SaveSteps replaces the template's step list atomically
func (r *TemplateRepository) SaveSteps(ctx context.Context, templateID int64, steps []entity.StepDefinition) error {
	return r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := pick(txCtx, r.db).ExecContext(txCtx, `DELETE FROM template_steps WHERE template_id = ?`, templateID); err != nil {
			return fmt.Errorf("failed to clear steps: %w", err)
		}
		if _, err := pick(txCtx, r.db).ExecContext(txCtx, `UPDATE workflow_templates SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, templateID); err != nil {
			return fmt.Errorf("failed to touch template: %w", err)
		}
		return r.insertSteps(txCtx, templateID, steps)
	})
}

// Delete removes a template; steps cascade
func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	_, err := pick(ctx, r.db).ExecContext(ctx, `DELETE FROM workflow_templates WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete template", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.WorkflowTemplate, error) {
	var t entity.WorkflowTemplate
	err := pick(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(&t.ID, &t.DepartmentID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template", zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	steps, err := r.loadSteps(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Steps = steps

	return &t, nil
}

func (r *TemplateRepository) loadSteps(ctx context.Context, templateID int64) ([]entity.StepDefinition, error) {
	query := `
		SELECT id, template_id, role, name, step_order, required_action
		FROM template_steps
		WHERE template_id = ?
		ORDER BY step_order ASC, id ASC
	`

	rows, err := pick(ctx, r.db).QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	defer rows.Close()

	var steps []entity.StepDefinition
	for rows.Next() {
		var s entity.StepDefinition
		var role string
		if err := rows.Scan(&s.ID, &s.TemplateID, &role, &s.Name, &s.Order, &s.RequiredAction); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Role = entity.Role(role)
		steps = append(steps, s)
	}

	return steps, rows.Err()
}

func (r *TemplateRepository) insertSteps(ctx context.Context, templateID int64, steps []entity.StepDefinition) error {
	query := `
		INSERT INTO template_steps (template_id, role, name, step_order, required_action)
		VALUES (?, ?, ?, ?, ?)
	`

	for i := range steps {
		result, err := pick(ctx, r.db).ExecContext(ctx, query,
			templateID,
			steps[i].Role.String(),
			steps[i].Name,
			steps[i].Order,
			steps[i].RequiredAction,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		steps[i].ID = id
		steps[i].TemplateID = templateID
	}

	return nil
}

// Verify interface compliance
var _ port.TemplateRepository = (*TemplateRepository)(nil)
