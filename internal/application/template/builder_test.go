package template

import (
	"errors"
	"testing"

	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/domain/workflow"
)

func step(id int64, name string, role entity.Role, order int) entity.StepDefinition {
	return entity.StepDefinition{ID: id, Name: name, Role: role, Order: order}
}

func orders(steps []entity.StepDefinition) []int {
	out := make([]int, len(steps))
	for i, s := range steps {
		out[i] = s.Order
	}
	return out
}

func names(steps []entity.StepDefinition) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return out
}

func TestAddStep(t *testing.T) {
	tmpl := &entity.WorkflowTemplate{
		ID: 7,
		Steps: []entity.StepDefinition{
			step(1, "Review", entity.RoleReviewer, 1),
			step(2, "Approve", entity.RoleApprover, 5),
		},
	}

	err := AddStep(tmpl, entity.StepDefinition{Name: "Final Sign-off", Role: entity.RoleManager})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}

	added := tmpl.Steps[len(tmpl.Steps)-1]
	if added.Order != 6 {
		t.Errorf("added step order = %d, want max+1 = 6", added.Order)
	}
	if added.TemplateID != 7 {
		t.Errorf("added step template ID = %d, want 7", added.TemplateID)
	}
}

func TestAddStepValidation(t *testing.T) {
	tests := []struct {
		name string
		def  entity.StepDefinition
	}{
		{"empty name", entity.StepDefinition{Role: entity.RoleReviewer}},
		{"empty role", entity.StepDefinition{Name: "Review"}},
		{"unknown role", entity.StepDefinition{Name: "Review", Role: "WIZARD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := &entity.WorkflowTemplate{}
			err := AddStep(tmpl, tt.def)
			if !errors.Is(err, workflow.ErrValidation) {
				t.Errorf("AddStep() error = %v, want ErrValidation", err)
			}
			if len(tmpl.Steps) != 0 {
				t.Error("invalid step was appended")
			}
		})
	}
}

func TestRemoveStep(t *testing.T) {
	tmpl := &entity.WorkflowTemplate{
		Steps: []entity.StepDefinition{
			step(1, "Review", entity.RoleReviewer, 1),
			step(2, "Approve", entity.RoleApprover, 2),
			step(3, "Sign-off", entity.RoleManager, 3),
		},
	}

	if !RemoveStep(tmpl, 2) {
		t.Fatal("RemoveStep(2) = false, want true")
	}

	// Remaining steps keep their order values; no renumbering.
	want := []int{1, 3}
	got := orders(tmpl.Steps)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("orders after removal = %v, want %v", got, want)
	}

	if RemoveStep(tmpl, 99) {
		t.Error("RemoveStep(99) = true for missing step")
	}
}

func TestMergeDefaultAndCustom(t *testing.T) {
	defaults := []entity.StepDefinition{
		step(0, "Initial Review", entity.RoleReviewer, 0),
		step(0, "Department Approval", entity.RoleApprover, 0),
	}
	customs := []entity.StepDefinition{
		step(0, "Compliance Check", entity.RoleManager, 2),
		step(0, "Archive", entity.RoleAdmin, 0), // no order: sorts last
	}

	merged := MergeDefaultAndCustom(defaults, customs)

	// Department Approval (default, order 2) precedes Compliance Check
	// (custom, order 2) because the sort is stable.
	want := []string{"Initial Review", "Department Approval", "Compliance Check", "Archive"}
	got := names(merged)
	if len(got) != len(want) {
		t.Fatalf("merged %d steps, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("merged[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestMergeTieBreak(t *testing.T) {
	defaults := []entity.StepDefinition{
		step(0, "Default Review", entity.RoleReviewer, 0),
	}
	customs := []entity.StepDefinition{
		step(0, "Custom Review", entity.RoleReviewer, 1),
	}

	merged := MergeDefaultAndCustom(defaults, customs)

	// Stable sort: at equal order the default comes first.
	if merged[0].Name != "Default Review" {
		t.Errorf("merged[0] = %s, want the default step first on tie", merged[0].Name)
	}
}

func TestNormalize(t *testing.T) {
	steps := []entity.StepDefinition{
		step(1, "Review", entity.RoleReviewer, 3),
		step(2, "Approve", entity.RoleApprover, 7),
		step(3, "Archive", entity.RoleAdmin, 0),
	}

	normalized := Normalize(steps)

	want := []int{1, 2, 3}
	got := orders(normalized)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("normalized orders = %v, want %v", got, want)
		}
	}
	if normalized[0].Name != "Review" || normalized[2].Name != "Archive" {
		t.Errorf("normalized sequence = %v", names(normalized))
	}

	// Input is untouched.
	if steps[0].Order != 3 {
		t.Error("Normalize mutated the input slice")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	steps := []entity.StepDefinition{
		step(1, "Review", entity.RoleReviewer, 5),
		step(2, "Approve", entity.RoleApprover, 9),
	}

	once := Normalize(steps)
	twice := Normalize(once)

	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("Normalize is not idempotent: %v vs %v", once, twice)
		}
	}
}
