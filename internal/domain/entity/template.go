package entity

import "time"

// StepDefinition is one gated stage in an approval sequence.
type StepDefinition struct {
	ID             int64  `json:"id"`
	TemplateID     int64  `json:"template_id"`
	Role           Role   `json:"role"`
	Name           string `json:"name"`
	Order          int    `json:"order"`
	RequiredAction string `json:"required_action"`
}

// WorkflowTemplate is the ordered list of steps a department's documents
// must pass through. Templates are configured by administrators; live
// instances hold a snapshot taken at submission time.
type WorkflowTemplate struct {
	ID           int64            `json:"id"`
	DepartmentID string           `json:"department_id"`
	Name         string           `json:"name"`
	Steps        []StepDefinition `json:"steps"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// LastStepIndex returns the index of the final step, or -1 for an empty template.
func (t *WorkflowTemplate) LastStepIndex() int {
	return len(t.Steps) - 1
}

// StepAt returns the step at the given index, or nil if out of range.
func (t *WorkflowTemplate) StepAt(index int) *StepDefinition {
	if index < 0 || index >= len(t.Steps) {
		return nil
	}
	return &t.Steps[index]
}
