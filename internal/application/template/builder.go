// Package template implements workflow template construction: appending
// and removing steps, and merging default step catalogs with
// admin-entered custom steps.
package template

import (
	"fmt"
	"math"
	"sort"

	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/domain/workflow"
)

// AddStep appends def to the template with order = max(existing) + 1.
// Rejects steps with an empty name or an unknown role.
func AddStep(t *entity.WorkflowTemplate, def entity.StepDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: step name is required", workflow.ErrValidation)
	}
	if def.Role == "" || !def.Role.IsValid() {
		return fmt.Errorf("%w: step role %q is not a known role", workflow.ErrValidation, def.Role)
	}

	maxOrder := 0
	for _, s := range t.Steps {
		if s.Order > maxOrder {
			maxOrder = s.Order
		}
	}
	def.Order = maxOrder + 1
	def.TemplateID = t.ID

	t.Steps = append(t.Steps, def)
	return nil
}

// RemoveStep deletes the step with the given ID. Remaining steps keep
// their order values; admins own custom order numbers, so no renumbering
// happens here. Returns false if no step matched.
func RemoveStep(t *entity.WorkflowTemplate, stepID int64) bool {
	for i, s := range t.Steps {
		if s.ID == stepID {
			t.Steps = append(t.Steps[:i], t.Steps[i+1:]...)
			return true
		}
	}
	return false
}

// MergeDefaultAndCustom combines a default step catalog with custom steps
// into a single ordered list. Default steps are assigned order = index+1
// from their array position; custom steps keep their declared order, with
// a missing order (<= 0) sorting last. The sort is stable, so equal
// orders keep insertion order: defaults before customs. Merging an
// already-merged list again yields the same sequence.
func MergeDefaultAndCustom(defaultSteps, customSteps []entity.StepDefinition) []entity.StepDefinition {
	merged := make([]entity.StepDefinition, 0, len(defaultSteps)+len(customSteps))

	for i, s := range defaultSteps {
		s.Order = i + 1
		merged = append(merged, s)
	}
	merged = append(merged, customSteps...)

	sort.SliceStable(merged, func(i, j int) bool {
		return sortKey(merged[i]) < sortKey(merged[j])
	})

	return merged
}

// Normalize renumbers a sorted step list into a contiguous sequence
// starting at 1, closing gaps left by removals or sparse admin input.
func Normalize(steps []entity.StepDefinition) []entity.StepDefinition {
	out := make([]entity.StepDefinition, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

func sortKey(s entity.StepDefinition) int {
	if s.Order <= 0 {
		return math.MaxInt
	}
	return s.Order
}
