package activity

import (
	"testing"
	"time"

	"github.com/docuflow/approval-engine/internal/domain/entity"
)

func threeStepInstance(status string, currentIndex int) *entity.WorkflowInstance {
	return &entity.WorkflowInstance{
		ID:               1,
		DocumentID:       "doc-001",
		Status:           status,
		CurrentStepIndex: currentIndex,
		Steps: []entity.StepDefinition{
			{Name: "Initial Review", Role: entity.RoleReviewer, Order: 1},
			{Name: "Department Approval", Role: entity.RoleApprover, Order: 2},
			{Name: "Final Sign-off", Role: entity.RoleManager, Order: 3},
		},
	}
}

func record(stepOrder int, action, actor string) *entity.StepRecord {
	return &entity.StepRecord{
		StepOrder: stepOrder,
		ActorName: actor,
		Action:    action,
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func countByStatus(entries []Entry, status string) int {
	n := 0
	for _, e := range entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

func TestProjectLiveInstance(t *testing.T) {
	instance := threeStepInstance(entity.StatusInReview, 1)
	records := []*entity.StepRecord{
		record(1, entity.ActionSubmit, "Ana"),
		record(1, entity.ActionApprove, "Ben"),
	}

	entries := Project(instance, records)

	if got := countByStatus(entries, EntryCompleted); got != len(records) {
		t.Errorf("completed entries = %d, want %d", got, len(records))
	}
	if got := countByStatus(entries, EntryInProgress); got != 1 {
		t.Errorf("in-progress entries = %d, want 1", got)
	}
	if got := countByStatus(entries, EntryPending); got != 1 {
		t.Errorf("pending entries = %d, want 1", got)
	}

	// In-progress entry names the current step.
	for _, e := range entries {
		if e.Status == EntryInProgress && e.StepName != "Department Approval" {
			t.Errorf("in-progress step = %s, want Department Approval", e.StepName)
		}
		if e.Status != EntryCompleted && !e.Synthetic {
			t.Errorf("non-completed entry %q not marked synthetic", e.StepName)
		}
	}
}

func TestProjectFinalizedInstance(t *testing.T) {
	instance := threeStepInstance(entity.StatusRejected, 1)
	records := []*entity.StepRecord{
		record(1, entity.ActionSubmit, "Ana"),
		record(1, entity.ActionApprove, "Ben"),
		record(2, entity.ActionReject, "Cam"),
	}

	entries := Project(instance, records)

	// No synthetic entries once the instance is terminal.
	if len(entries) != len(records) {
		t.Errorf("entries = %d, want %d (no synthetic rows)", len(entries), len(records))
	}
	for _, e := range entries {
		if e.Synthetic {
			t.Errorf("finalized instance projected synthetic entry %q", e.StepName)
		}
	}
}

func TestProjectNeedsRevision(t *testing.T) {
	instance := threeStepInstance(entity.StatusNeedsRevision, 1)
	records := []*entity.StepRecord{
		record(1, entity.ActionSubmit, "Ana"),
		record(2, entity.ActionRequestRevision, "Ben"),
	}

	entries := Project(instance, records)

	// Awaiting the submitter: no approver step is in progress.
	if got := countByStatus(entries, EntryInProgress); got != 0 {
		t.Errorf("in-progress entries = %d, want 0", got)
	}
	if len(entries) != len(records) {
		t.Errorf("entries = %d, want %d", len(entries), len(records))
	}
}

func TestProjectPreservesInsertionOrder(t *testing.T) {
	instance := threeStepInstance(entity.StatusPending, 0)
	records := []*entity.StepRecord{
		record(1, entity.ActionSubmit, "Ana"),
		record(1, entity.ActionRequestRevision, "Ben"),
		record(1, entity.ActionResubmit, "Ana"),
	}

	entries := Project(instance, records)

	wantActions := []string{entity.ActionSubmit, entity.ActionRequestRevision, entity.ActionResubmit}
	for i, want := range wantActions {
		if entries[i].Action != want {
			t.Errorf("entries[%d].Action = %s, want %s", i, entries[i].Action, want)
		}
	}
}

func TestPaginate(t *testing.T) {
	entries := make([]Entry, 12)
	for i := range entries {
		entries[i] = Entry{StepOrder: i + 1}
	}

	tests := []struct {
		name        string
		page        int
		wantPage    int
		wantEntries int
	}{
		{"first page", 1, 1, 5},
		{"middle page", 2, 2, 5},
		{"last partial page", 3, 3, 2},
		{"past the end clamps to last", 5, 3, 2},
		{"zero clamps to first", 0, 1, 5},
		{"negative clamps to first", -3, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(entries, tt.page, DefaultPageSize)

			if page.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", page.Page, tt.wantPage)
			}
			if len(page.Entries) != tt.wantEntries {
				t.Errorf("len(Entries) = %d, want %d", len(page.Entries), tt.wantEntries)
			}
			if page.TotalPages != 3 {
				t.Errorf("TotalPages = %d, want 3", page.TotalPages)
			}
			if page.TotalCount != 12 {
				t.Errorf("TotalCount = %d, want 12", page.TotalCount)
			}
		})
	}
}

func TestPaginateEmpty(t *testing.T) {
	page := Paginate(nil, 1, DefaultPageSize)

	if page.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1 for empty log", page.TotalPages)
	}
	if len(page.Entries) != 0 {
		t.Errorf("len(Entries) = %d, want 0", len(page.Entries))
	}
}

func TestPaginateDefaultPageSize(t *testing.T) {
	entries := make([]Entry, 7)
	page := Paginate(entries, 1, 0)

	if page.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want default %d", page.PageSize, DefaultPageSize)
	}
	if len(page.Entries) != DefaultPageSize {
		t.Errorf("len(Entries) = %d, want %d", len(page.Entries), DefaultPageSize)
	}
}
