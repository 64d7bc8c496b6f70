package port

import (
	"context"

	"github.com/docuflow/approval-engine/internal/domain/entity"
)

// Channel identifies a notification delivery channel
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

// Notifier delivers notifications to users. Delivery is best-effort and
// at-least-once; it is never part of the state machine's consistency
// guarantees.
type Notifier interface {
	Notify(ctx context.Context, channel Channel, recipient, subject, message string) error
}

// DocumentStore supplies document metadata used to seed a submission.
// The workflow core never manages file bytes.
type DocumentStore interface {
	GetDocument(ctx context.Context, documentID string) (*entity.DocumentInfo, error)
}

// DocumentInspector extracts metadata from an uploaded file.
type DocumentInspector interface {
	Inspect(ctx context.Context, path string) (*entity.DocumentInfo, error)
}

// TemplateSuggester proposes workflow steps for a department. Generation
// is a real asynchronous task: callers cancel via the context.
type TemplateSuggester interface {
	Suggest(ctx context.Context, department, description string) ([]entity.StepDefinition, error)
}
