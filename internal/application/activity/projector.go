// Package activity derives a human-readable audit trail from a workflow
// instance's history. The projection is read-only: synthetic entries for
// future steps exist only for display and are never persisted.
package activity

import (
	"github.com/docuflow/approval-engine/internal/domain/entity"
)

// Entry status constants
const (
	EntryCompleted  = "completed"
	EntryInProgress = "in_progress"
	EntryPending    = "pending"
)

// DefaultPageSize matches the page size the review UI renders.
const DefaultPageSize = 5

// Entry is one line of the activity log.
type Entry struct {
	StepOrder int               `json:"step_order"`
	StepName  string            `json:"step_name,omitempty"`
	ActorName string            `json:"actor_name,omitempty"`
	ActorRole entity.Role       `json:"actor_role,omitempty"`
	Action    string            `json:"action,omitempty"`
	Remarks   string            `json:"remarks,omitempty"`
	Signature *entity.Signature `json:"signature,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Status    string            `json:"status"`

	// Synthetic marks display-only entries for steps that have not
	// started; they carry no StepRecord.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Page is one page of the activity log.
type Page struct {
	Entries    []Entry `json:"entries"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
	TotalCount int     `json:"total_count"`
}

// Project produces the full activity log for an instance: one completed
// entry per recorded action in insertion order, one in-progress entry for
// the currently active step of a live instance, and pending entries for
// the remaining future steps.
func Project(instance *entity.WorkflowInstance, records []*entity.StepRecord) []Entry {
	entries := make([]Entry, 0, len(records)+len(instance.Steps))

	for _, r := range records {
		entries = append(entries, Entry{
			StepOrder: r.StepOrder,
			StepName:  stepName(instance, r.StepOrder),
			ActorName: r.ActorName,
			ActorRole: r.ActorRole,
			Action:    r.Action,
			Remarks:   r.Remarks,
			Signature: r.Signature,
			Timestamp: r.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Status:    EntryCompleted,
		})
	}

	if instance.IsFinalized() {
		return entries
	}

	if step := instance.CurrentStep(); step != nil && instance.Status != entity.StatusNeedsRevision {
		entries = append(entries, Entry{
			StepOrder: step.Order,
			StepName:  step.Name,
			ActorRole: step.Role,
			Status:    EntryInProgress,
			Synthetic: true,
		})

		for i := instance.CurrentStepIndex + 1; i < len(instance.Steps); i++ {
			future := instance.Steps[i]
			entries = append(entries, Entry{
				StepOrder: future.Order,
				StepName:  future.Name,
				ActorRole: future.Role,
				Status:    EntryPending,
				Synthetic: true,
			})
		}
	}

	return entries
}

// Paginate slices entries into 1-indexed pages. Out-of-range page
// requests clamp silently to [1, totalPages].
func Paginate(entries []Entry, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	totalPages := (len(entries) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(entries) {
		start = len(entries)
	}
	if end > len(entries) {
		end = len(entries)
	}

	return Page{
		Entries:    entries[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalCount: len(entries),
	}
}

func stepName(instance *entity.WorkflowInstance, order int) string {
	for _, s := range instance.Steps {
		if s.Order == order {
			return s.Name
		}
	}
	return ""
}
