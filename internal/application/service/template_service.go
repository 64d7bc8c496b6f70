package service

import (
	"context"
	"fmt"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/application/template"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TemplateService manages workflow templates and their escalation ladders
type TemplateService interface {
	CreateTemplate(ctx context.Context, departmentID, name string, defaultSteps, customSteps []entity.StepDefinition) (*entity.WorkflowTemplate, error)
	GetTemplate(ctx context.Context, id int64) (*entity.WorkflowTemplate, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]*entity.WorkflowTemplate, error)
	AddStep(ctx context.Context, templateID int64, def entity.StepDefinition) (*entity.WorkflowTemplate, error)
	RemoveStep(ctx context.Context, templateID, stepID int64) (*entity.WorkflowTemplate, error)
	DeleteTemplate(ctx context.Context, id int64) error
	ConfigureEscalation(ctx context.Context, templateID int64, levels []entity.EscalationLevel) error
	GetEscalation(ctx context.Context, templateID int64) ([]entity.EscalationLevel, error)
}

type templateServiceImpl struct {
	templateRepo   port.TemplateRepository
	instanceRepo   port.InstanceRepository
	escalationRepo port.EscalationRepository
	txManager      port.TransactionManager
	logger         Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(
	templateRepo port.TemplateRepository,
	instanceRepo port.InstanceRepository,
	escalationRepo port.EscalationRepository,
	txManager port.TransactionManager,
	logger Logger,
) TemplateService {
	return &templateServiceImpl{
		templateRepo:   templateRepo,
		instanceRepo:   instanceRepo,
		escalationRepo: escalationRepo,
		txManager:      txManager,
		logger:         logger,
	}
}

// CreateTemplate merges the default step catalog with admin-entered
// custom steps and persists the resulting ordered template.
func (s *templateServiceImpl) CreateTemplate(ctx context.Context, departmentID, name string, defaultSteps, customSteps []entity.StepDefinition) (*entity.WorkflowTemplate, error) {
	if departmentID == "" {
		return nil, fmt.Errorf("%w: department is required", workflow.ErrValidation)
	}

	for _, def := range append(append([]entity.StepDefinition{}, defaultSteps...), customSteps...) {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: step name is required", workflow.ErrValidation)
		}
		if !def.Role.IsValid() {
			return nil, fmt.Errorf("%w: step role %q is not a known role", workflow.ErrValidation, def.Role)
		}
	}

	tmpl := &entity.WorkflowTemplate{
		DepartmentID: departmentID,
		Name:         name,
		Steps:        template.MergeDefaultAndCustom(defaultSteps, customSteps),
	}

	if err := s.templateRepo.Create(ctx, tmpl); err != nil {
		s.logger.Error("Failed to create template", "department", departmentID, "error", err)
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.logger.Info("Template created", "id", tmpl.ID, "department", departmentID, "steps", len(tmpl.Steps))
	return tmpl, nil
}

func (s *templateServiceImpl) GetTemplate(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	tmpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %d not found", id)
	}
	return tmpl, nil
}

func (s *templateServiceImpl) ListTemplates(ctx context.Context, limit, offset int) ([]*entity.WorkflowTemplate, error) {
	return s.templateRepo.List(ctx, limit, offset)
}

// AddStep appends a step with order = max + 1 and persists the step list.
func (s *templateServiceImpl) AddStep(ctx context.Context, templateID int64, def entity.StepDefinition) (*entity.WorkflowTemplate, error) {
	tmpl, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if err := template.AddStep(tmpl, def); err != nil {
		return nil, err
	}

	if err := s.templateRepo.SaveSteps(ctx, templateID, tmpl.Steps); err != nil {
		return nil, fmt.Errorf("save steps: %w", err)
	}

	return tmpl, nil
}

// RemoveStep deletes a step without renumbering the remaining ones.
func (s *templateServiceImpl) RemoveStep(ctx context.Context, templateID, stepID int64) (*entity.WorkflowTemplate, error) {
	tmpl, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if !template.RemoveStep(tmpl, stepID) {
		return nil, fmt.Errorf("step %d not found in template %d", stepID, templateID)
	}

	if err := s.templateRepo.SaveSteps(ctx, templateID, tmpl.Steps); err != nil {
		return nil, fmt.Errorf("save steps: %w", err)
	}

	return tmpl, nil
}

// DeleteTemplate refuses to delete a template while any bound instance
// is still active.
func (s *templateServiceImpl) DeleteTemplate(ctx context.Context, id int64) error {
	active, err := s.instanceRepo.CountActiveByTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("count active instances: %w", err)
	}
	if active > 0 {
		return fmt.Errorf("%w: template %d has %d active instances", workflow.ErrTemplateInUse, id, active)
	}

	if err := s.templateRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	s.logger.Info("Template deleted", "id", id)
	return nil
}

// ConfigureEscalation replaces the template's escalation ladder. The
// thresholds must strictly increase with level.
func (s *templateServiceImpl) ConfigureEscalation(ctx context.Context, templateID int64, levels []entity.EscalationLevel) error {
	if _, err := s.GetTemplate(ctx, templateID); err != nil {
		return err
	}

	prevThreshold := 0.0
	prevLevel := 0
	for _, l := range levels {
		if l.Level != prevLevel+1 {
			return fmt.Errorf("%w: escalation levels must be contiguous starting at 1", workflow.ErrValidation)
		}
		if l.TimeThresholdHours <= prevThreshold {
			return fmt.Errorf("%w: escalation thresholds must strictly increase", workflow.ErrValidation)
		}
		if l.AssigneeName == "" || !l.Role.IsValid() {
			return fmt.Errorf("%w: escalation level %d needs an assignee and a valid role", workflow.ErrValidation, l.Level)
		}
		prevThreshold = l.TimeThresholdHours
		prevLevel = l.Level
	}

	if err := s.escalationRepo.ReplaceLevels(ctx, templateID, levels); err != nil {
		return fmt.Errorf("replace escalation levels: %w", err)
	}

	s.logger.Info("Escalation policy configured", "template_id", templateID, "levels", len(levels))
	return nil
}

func (s *templateServiceImpl) GetEscalation(ctx context.Context, templateID int64) ([]entity.EscalationLevel, error) {
	return s.escalationRepo.GetByTemplateID(ctx, templateID)
}
