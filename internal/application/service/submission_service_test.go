package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/domain/workflow"
)

type mockDocStore struct {
	getDocumentFunc func(ctx context.Context, documentID string) (*entity.DocumentInfo, error)
	calls           int
}

func (m *mockDocStore) GetDocument(ctx context.Context, documentID string) (*entity.DocumentInfo, error) {
	m.calls++
	if m.getDocumentFunc != nil {
		return m.getDocumentFunc(ctx, documentID)
	}
	return &entity.DocumentInfo{
		DocumentID: documentID,
		FileName:   "contract.pdf",
		Department: "FIN",
	}, nil
}

func submitter() entity.User {
	return entity.User{Email: "ana@corp.test", Name: "Ana", Role: entity.RolePreparator}
}

func financeTemplate() *entity.WorkflowTemplate {
	return &entity.WorkflowTemplate{
		ID:           10,
		DepartmentID: "FIN",
		Steps: []entity.StepDefinition{
			{ID: 1, Name: "Review", Role: entity.RoleReviewer, Order: 3},
			{ID: 2, Name: "Approve", Role: entity.RoleApprover, Order: 7},
		},
	}
}

func newSubmissionService(
	instanceRepo *mockInstanceRepo,
	templateRepo *mockTemplateRepo,
	recordRepo *mockRecordRepo,
	escalationRepo *mockEscalationRepo,
	docStore *mockDocStore,
) SubmissionService {
	return NewSubmissionService(
		instanceRepo, templateRepo, recordRepo, escalationRepo,
		docStore, passthroughTxManager{}, nil, stubLogger{},
	)
}

func TestCreateSubmission(t *testing.T) {
	templateRepo := &mockTemplateRepo{
		getByDepartmentFunc: func(ctx context.Context, departmentID string) (*entity.WorkflowTemplate, error) {
			return financeTemplate(), nil
		},
	}
	recordRepo := &mockRecordRepo{}
	svc := newSubmissionService(&mockInstanceRepo{}, templateRepo, recordRepo, &mockEscalationRepo{}, &mockDocStore{})

	instance, err := svc.CreateSubmission(context.Background(), "doc-001", submitter())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPending, instance.Status)
	assert.Equal(t, 0, instance.CurrentStepIndex)
	assert.Equal(t, int64(10), instance.TemplateID)
	assert.Equal(t, "FIN", instance.Department)

	// Snapshot carries normalized contiguous orders regardless of the
	// template's sparse numbering.
	require.Len(t, instance.Steps, 2)
	assert.Equal(t, 1, instance.Steps[0].Order)
	assert.Equal(t, 2, instance.Steps[1].Order)

	// Submission writes the first audit record.
	require.Len(t, recordRepo.created, 1)
	assert.Equal(t, entity.ActionSubmit, recordRepo.created[0].Action)
	assert.Equal(t, "ana@corp.test", recordRepo.created[0].ActorID)
}

func TestCreateSubmissionIdempotent(t *testing.T) {
	existing := &entity.WorkflowInstance{ID: 42, DocumentID: "doc-001", Status: entity.StatusInReview}
	instanceRepo := &mockInstanceRepo{
		getByDocumentIDFunc: func(ctx context.Context, documentID string) (*entity.WorkflowInstance, error) {
			return existing, nil
		},
	}
	docStore := &mockDocStore{}
	svc := newSubmissionService(instanceRepo, &mockTemplateRepo{}, &mockRecordRepo{}, &mockEscalationRepo{}, docStore)

	instance, err := svc.CreateSubmission(context.Background(), "doc-001", submitter())
	require.NoError(t, err)

	assert.Equal(t, int64(42), instance.ID)
	assert.Zero(t, docStore.calls, "document store consulted for an existing submission")
}

func TestCreateSubmissionNoTemplate(t *testing.T) {
	svc := newSubmissionService(&mockInstanceRepo{}, &mockTemplateRepo{}, &mockRecordRepo{}, &mockEscalationRepo{}, &mockDocStore{})

	_, err := svc.CreateSubmission(context.Background(), "doc-001", submitter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workflow template")
}

func TestCreateSubmissionEmptyTemplate(t *testing.T) {
	templateRepo := &mockTemplateRepo{
		getByDepartmentFunc: func(ctx context.Context, departmentID string) (*entity.WorkflowTemplate, error) {
			return &entity.WorkflowTemplate{ID: 10, DepartmentID: "FIN"}, nil
		},
	}
	svc := newSubmissionService(&mockInstanceRepo{}, templateRepo, &mockRecordRepo{}, &mockEscalationRepo{}, &mockDocStore{})

	_, err := svc.CreateSubmission(context.Background(), "doc-001", submitter())
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestCreateSubmissionMissingDocumentID(t *testing.T) {
	svc := newSubmissionService(&mockInstanceRepo{}, &mockTemplateRepo{}, &mockRecordRepo{}, &mockEscalationRepo{}, &mockDocStore{})

	_, err := svc.CreateSubmission(context.Background(), "", submitter())
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestCreateSubmissionInvalidSubmitterEmail(t *testing.T) {
	docStore := &mockDocStore{}
	svc := newSubmissionService(&mockInstanceRepo{}, &mockTemplateRepo{}, &mockRecordRepo{}, &mockEscalationRepo{}, docStore)

	_, err := svc.CreateSubmission(context.Background(), "doc-001", entity.User{Email: "not-an-address", Name: "Ana", Role: entity.RolePreparator})
	assert.ErrorIs(t, err, workflow.ErrValidation)
	assert.Zero(t, docStore.calls, "document store consulted for an invalid submitter")
}

func TestActiveEscalation(t *testing.T) {
	ladder := []entity.EscalationLevel{
		{Level: 1, TimeThresholdHours: 4, AssigneeName: "Team Lead", Role: entity.RoleManager},
		{Level: 2, TimeThresholdHours: 8, AssigneeName: "Director", Role: entity.RoleManager},
	}
	escalationRepo := &mockEscalationRepo{
		getByTemplateIDFunc: func(ctx context.Context, templateID int64) ([]entity.EscalationLevel, error) {
			return ladder, nil
		},
	}

	tests := []struct {
		name      string
		status    string
		stalled   time.Duration
		wantLevel int // 0 means nil
	}{
		{"fresh step", entity.StatusPending, time.Hour, 0},
		{"past first threshold", entity.StatusInReview, 5 * time.Hour, 1},
		{"past last threshold", entity.StatusInReview, 30 * time.Hour, 2},
		{"finalized instance never escalates", entity.StatusApproved, 30 * time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instanceRepo := &mockInstanceRepo{
				getByIDFunc: func(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
					return &entity.WorkflowInstance{
						ID:            id,
						TemplateID:    10,
						Status:        tt.status,
						StepStartedAt: time.Now().Add(-tt.stalled),
					}, nil
				},
			}
			svc := newSubmissionService(instanceRepo, &mockTemplateRepo{}, &mockRecordRepo{}, escalationRepo, &mockDocStore{})

			level, err := svc.ActiveEscalation(context.Background(), 1)
			require.NoError(t, err)

			if tt.wantLevel == 0 {
				assert.Nil(t, level)
				return
			}
			require.NotNil(t, level)
			assert.Equal(t, tt.wantLevel, level.Level)
		})
	}
}

func TestActivityLogPagination(t *testing.T) {
	instanceRepo := &mockInstanceRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
			return &entity.WorkflowInstance{
				ID:     id,
				Status: entity.StatusRejected,
				Steps: []entity.StepDefinition{
					{Name: "Review", Role: entity.RoleReviewer, Order: 1},
				},
			}, nil
		},
	}
	recordRepo := &mockRecordRepo{}
	for i := 0; i < 7; i++ {
		recordRepo.created = append(recordRepo.created, &entity.StepRecord{
			StepOrder: 1,
			Action:    entity.ActionSubmit,
			Timestamp: time.Now(),
		})
	}
	svc := newSubmissionService(instanceRepo, &mockTemplateRepo{}, recordRepo, &mockEscalationRepo{}, &mockDocStore{})

	page, err := svc.ActivityLog(context.Background(), 1, 2, 5)
	require.NoError(t, err)

	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 7, page.TotalCount)
	assert.Len(t, page.Entries, 2)
}
