package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	domainwf "github.com/docuflow/approval-engine/internal/domain/workflow"
)

// Mock repositories

type mockInstanceRepo struct {
	instances map[int64]*entity.WorkflowInstance
	updateErr error
}

func newMockInstanceRepo(instances ...*entity.WorkflowInstance) *mockInstanceRepo {
	m := &mockInstanceRepo{instances: make(map[int64]*entity.WorkflowInstance)}
	for _, i := range instances {
		m.instances[i.ID] = i
	}
	return m
}

func (m *mockInstanceRepo) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	instance.ID = int64(len(m.instances) + 1)
	m.instances[instance.ID] = instance
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	instance, ok := m.instances[id]
	if !ok {
		return nil, nil
	}
	copied := *instance
	copied.Steps = append([]entity.StepDefinition{}, instance.Steps...)
	return &copied, nil
}

func (m *mockInstanceRepo) GetByDocumentID(ctx context.Context, documentID string) (*entity.WorkflowInstance, error) {
	for _, i := range m.instances {
		if i.DocumentID == documentID {
			return i, nil
		}
	}
	return nil, nil
}

func (m *mockInstanceRepo) Update(ctx context.Context, instance *entity.WorkflowInstance) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	copied := *instance
	m.instances[instance.ID] = &copied
	return nil
}

func (m *mockInstanceRepo) SetEscalationLevel(ctx context.Context, id int64, level int) error {
	return nil
}

func (m *mockInstanceRepo) List(ctx context.Context, limit, offset int) ([]*entity.WorkflowInstance, error) {
	return nil, nil
}

func (m *mockInstanceRepo) ListActive(ctx context.Context, limit int) ([]*entity.WorkflowInstance, error) {
	return nil, nil
}

func (m *mockInstanceRepo) CountActiveByTemplate(ctx context.Context, templateID int64) (int, error) {
	return 0, nil
}

type mockRecordRepo struct {
	records   []*entity.StepRecord
	createErr error
}

func (m *mockRecordRepo) Create(ctx context.Context, record *entity.StepRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

func (m *mockRecordRepo) GetByInstanceID(ctx context.Context, instanceID int64) ([]*entity.StepRecord, error) {
	return m.records, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ port.InstanceRepository = (*mockInstanceRepo)(nil)
var _ port.RecordRepository = (*mockRecordRepo)(nil)
var _ port.TransactionManager = (*mockTxManager)(nil)

func twoStepInstance(status string, index int) *entity.WorkflowInstance {
	return &entity.WorkflowInstance{
		ID:               1,
		DocumentID:       "doc-001",
		TemplateID:       10,
		Status:           status,
		CurrentStepIndex: index,
		Steps: []entity.StepDefinition{
			{Name: "Review", Role: entity.RoleReviewer, Order: 1},
			{Name: "Approve", Role: entity.RoleApprover, Order: 2},
		},
		StepStartedAt: time.Now().Add(-time.Hour),
	}
}

func testProcessor(instanceRepo *mockInstanceRepo, recordRepo *mockRecordRepo) Processor {
	return NewProcessor(instanceRepo, recordRepo, &mockTxManager{})
}

func validSignature() SignatureRequest {
	return SignatureRequest{
		Meaning:       entity.MeaningApproved,
		Reason:        "Content verified",
		PasswordToken: "token",
		IPAddress:     "10.0.0.1",
	}
}

func reviewer() Actor {
	return Actor{ID: "ben@corp.test", Name: "Ben", Role: entity.RoleReviewer}
}

func TestApproveAdvancesStep(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	recordRepo := &mockRecordRepo{}
	p := testProcessor(instanceRepo, recordRepo)

	instance, err := p.Approve(context.Background(), 1, reviewer(), "looks good", validSignature())
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if instance.Status != entity.StatusInReview {
		t.Errorf("Status = %s, want %s", instance.Status, entity.StatusInReview)
	}
	if instance.CurrentStepIndex != 1 {
		t.Errorf("CurrentStepIndex = %d, want 1", instance.CurrentStepIndex)
	}
	if instance.FinalizedAt != nil {
		t.Error("FinalizedAt set on a non-final approval")
	}

	if len(recordRepo.records) != 1 {
		t.Fatalf("records = %d, want 1", len(recordRepo.records))
	}
	rec := recordRepo.records[0]
	if rec.Action != entity.ActionApprove {
		t.Errorf("record action = %s, want APPROVE", rec.Action)
	}
	if rec.Signature == nil {
		t.Fatal("approval record has no signature")
	}
	if rec.Signature.Meaning != entity.MeaningApproved {
		t.Errorf("signature meaning = %s", rec.Signature.Meaning)
	}
	if rec.Signature.CertificateSerial == "" {
		t.Error("signature has no certificate serial")
	}
}

func TestApproveLastStepFinalizes(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusInReview, 1))
	recordRepo := &mockRecordRepo{}
	p := testProcessor(instanceRepo, recordRepo)

	instance, err := p.Approve(context.Background(), 1, reviewer(), "", validSignature())
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if instance.Status != entity.StatusApproved {
		t.Errorf("Status = %s, want %s", instance.Status, entity.StatusApproved)
	}
	if instance.FinalizedAt == nil {
		t.Error("FinalizedAt not set on final approval")
	}
	// The frozen index still points at the last step.
	if instance.CurrentStepIndex != 1 {
		t.Errorf("CurrentStepIndex = %d, want 1", instance.CurrentStepIndex)
	}
}

func TestApproveIncompleteSignature(t *testing.T) {
	tests := []struct {
		name string
		sig  SignatureRequest
	}{
		{"missing meaning", SignatureRequest{Reason: "r", PasswordToken: "t"}},
		{"missing reason", SignatureRequest{Meaning: entity.MeaningApproved, PasswordToken: "t"}},
		{"missing password", SignatureRequest{Meaning: entity.MeaningApproved, Reason: "r"}},
		{"unknown meaning", SignatureRequest{Meaning: "acknowledged", Reason: "r", PasswordToken: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
			recordRepo := &mockRecordRepo{}
			p := testProcessor(instanceRepo, recordRepo)

			_, err := p.Approve(context.Background(), 1, reviewer(), "", tt.sig)
			if !errors.Is(err, domainwf.ErrIncompleteSignature) {
				t.Errorf("Approve() error = %v, want ErrIncompleteSignature", err)
			}
			if len(recordRepo.records) != 0 {
				t.Error("record written despite rejected signature")
			}
		})
	}
}

func TestRejectRequiresReason(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	p := testProcessor(instanceRepo, &mockRecordRepo{})

	_, err := p.Reject(context.Background(), 1, reviewer(), "", []string{"", "  "})
	if !errors.Is(err, domainwf.ErrValidation) {
		t.Errorf("Reject() error = %v, want ErrValidation", err)
	}
}

func TestRejectFinalizes(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	recordRepo := &mockRecordRepo{}
	p := testProcessor(instanceRepo, recordRepo)

	instance, err := p.Reject(context.Background(), 1, reviewer(), "duplicate filing", []string{"Duplicate submission"})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if instance.Status != entity.StatusRejected {
		t.Errorf("Status = %s, want %s", instance.Status, entity.StatusRejected)
	}
	if instance.ReturnedBy != "ben@corp.test" || instance.ReturnedDate == nil {
		t.Error("rejection markers not set")
	}
	if instance.FinalizedAt == nil {
		t.Error("FinalizedAt not set on rejection")
	}

	rec := recordRepo.records[0]
	if len(rec.Reasons) != 1 || rec.Reasons[0] != "Duplicate submission" {
		t.Errorf("record reasons = %v", rec.Reasons)
	}
}

func TestFinalizedInstanceRefusesActions(t *testing.T) {
	finalized := twoStepInstance(entity.StatusApproved, 1)
	instanceRepo := newMockInstanceRepo(finalized)
	p := testProcessor(instanceRepo, &mockRecordRepo{})

	_, err := p.Approve(context.Background(), 1, reviewer(), "", validSignature())
	if !errors.Is(err, domainwf.ErrFinalized) {
		t.Errorf("Approve on finalized: error = %v, want ErrFinalized", err)
	}

	_, err = p.Reject(context.Background(), 1, reviewer(), "late", []string{"late"})
	if !errors.Is(err, domainwf.ErrFinalized) {
		t.Errorf("Reject on finalized: error = %v, want ErrFinalized", err)
	}
}

func TestRevisionRoundTrip(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusInReview, 1))
	recordRepo := &mockRecordRepo{}
	p := testProcessor(instanceRepo, recordRepo)

	instance, err := p.RequestRevision(context.Background(), 1, reviewer(), "see notes", []string{"Fix section 2"})
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if instance.Status != entity.StatusNeedsRevision {
		t.Errorf("Status = %s, want %s", instance.Status, entity.StatusNeedsRevision)
	}
	if instance.ReturnedBy == "" {
		t.Error("revision markers not set")
	}

	submitter := Actor{ID: "ana@corp.test", Name: "Ana", Role: entity.RolePreparator}
	instance, err = p.Resubmit(context.Background(), 1, submitter)
	if err != nil {
		t.Fatalf("Resubmit: %v", err)
	}

	if instance.Status != entity.StatusPending {
		t.Errorf("Status = %s, want %s", instance.Status, entity.StatusPending)
	}
	if instance.CurrentStepIndex != 0 {
		t.Errorf("CurrentStepIndex = %d, want 0 after resubmit", instance.CurrentStepIndex)
	}
	if instance.ReturnedBy != "" || instance.ReturnedDate != nil || instance.Remarks != "" {
		t.Error("rejection markers not cleared on resubmit")
	}
	if instance.EscalationLevelNotified != 0 {
		t.Error("escalation marker not reset on resubmit")
	}

	// History survives the round trip.
	if len(recordRepo.records) != 2 {
		t.Errorf("records = %d, want 2", len(recordRepo.records))
	}
}

func TestRevisionRequiresChangeList(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	p := testProcessor(instanceRepo, &mockRecordRepo{})

	_, err := p.RequestRevision(context.Background(), 1, reviewer(), "comments alone", nil)
	if !errors.Is(err, domainwf.ErrValidation) {
		t.Errorf("RequestRevision() error = %v, want ErrValidation", err)
	}
}

func TestDelegateKeepsStateAndStep(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusInReview, 1))
	recordRepo := &mockRecordRepo{}
	p := testProcessor(instanceRepo, recordRepo)

	instance, err := p.Delegate(context.Background(), 1, reviewer(), "dana@corp.test", "Out of office")
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}

	if instance.Status != entity.StatusInReview {
		t.Errorf("Status = %s, want unchanged %s", instance.Status, entity.StatusInReview)
	}
	if instance.CurrentStepIndex != 1 {
		t.Errorf("CurrentStepIndex = %d, want unchanged 1", instance.CurrentStepIndex)
	}
	if instance.CurrentAssignee != "dana@corp.test" {
		t.Errorf("CurrentAssignee = %s", instance.CurrentAssignee)
	}

	rec := recordRepo.records[0]
	if rec.DelegatedTo != "dana@corp.test" {
		t.Errorf("record DelegatedTo = %s", rec.DelegatedTo)
	}
}

func TestDelegateRequiresTargetAndReason(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	p := testProcessor(instanceRepo, &mockRecordRepo{})

	_, err := p.Delegate(context.Background(), 1, reviewer(), "", "reason")
	if !errors.Is(err, domainwf.ErrValidation) {
		t.Errorf("Delegate without target: error = %v, want ErrValidation", err)
	}

	_, err = p.Delegate(context.Background(), 1, reviewer(), "dana@corp.test", " ")
	if !errors.Is(err, domainwf.ErrValidation) {
		t.Errorf("Delegate without reason: error = %v, want ErrValidation", err)
	}

	_, err = p.Delegate(context.Background(), 1, reviewer(), "not-an-address", "Out of office")
	if !errors.Is(err, domainwf.ErrValidation) {
		t.Errorf("Delegate to malformed address: error = %v, want ErrValidation", err)
	}
}

func TestInvalidTransition(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	p := testProcessor(instanceRepo, &mockRecordRepo{})

	// Resubmit is only valid from NEEDS_REVISION.
	author := Actor{ID: "ana@corp.test", Name: "Ana", Role: entity.RolePreparator}
	_, err := p.Resubmit(context.Background(), 1, author)
	if !errors.Is(err, domainwf.ErrInvalidTransition) {
		t.Errorf("Resubmit from PENDING: error = %v, want ErrInvalidTransition", err)
	}
}

func TestRoleCapabilityEnforcement(t *testing.T) {
	author := Actor{ID: "ana@corp.test", Name: "Ana", Role: entity.RolePreparator}

	tests := []struct {
		name string
		call func(p Processor) error
	}{
		{
			name: "preparator cannot approve",
			call: func(p Processor) error {
				_, err := p.Approve(context.Background(), 1, author, "", validSignature())
				return err
			},
		},
		{
			name: "preparator cannot reject",
			call: func(p Processor) error {
				_, err := p.Reject(context.Background(), 1, author, "no", []string{"no"})
				return err
			},
		},
		{
			name: "preparator cannot request revision",
			call: func(p Processor) error {
				_, err := p.RequestRevision(context.Background(), 1, author, "", []string{"fix"})
				return err
			},
		},
		{
			name: "preparator cannot delegate",
			call: func(p Processor) error {
				_, err := p.Delegate(context.Background(), 1, author, "dana@corp.test", "ooo")
				return err
			},
		},
		{
			name: "reviewer cannot resubmit",
			call: func(p Processor) error {
				_, err := p.Resubmit(context.Background(), 1, reviewer())
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
			recordRepo := &mockRecordRepo{}
			p := testProcessor(instanceRepo, recordRepo)

			err := tt.call(p)
			if !errors.Is(err, domainwf.ErrRoleNotPermitted) {
				t.Errorf("error = %v, want ErrRoleNotPermitted", err)
			}
			if len(recordRepo.records) != 0 {
				t.Error("record written despite capability violation")
			}

			stored, _ := instanceRepo.GetByID(context.Background(), 1)
			if stored.Status != entity.StatusPending {
				t.Errorf("stored status = %s, want unchanged PENDING", stored.Status)
			}
		})
	}
}

func TestAdminHasFullCapabilities(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	p := testProcessor(instanceRepo, &mockRecordRepo{})

	admin := Actor{ID: "root@corp.test", Name: "Root", Role: entity.RoleAdmin}
	instance, err := p.Approve(context.Background(), 1, admin, "", validSignature())
	if err != nil {
		t.Fatalf("Approve as admin: %v", err)
	}
	if instance.Status != entity.StatusInReview {
		t.Errorf("Status = %s, want %s", instance.Status, entity.StatusInReview)
	}
}

func TestFailedPersistenceRollsBackNothingVisible(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	recordRepo := &mockRecordRepo{createErr: errors.New("disk full")}
	p := testProcessor(instanceRepo, recordRepo)

	_, err := p.Approve(context.Background(), 1, reviewer(), "", validSignature())
	if err == nil {
		t.Fatal("Approve succeeded despite record write failure")
	}

	// The stored instance keeps its old status.
	stored, _ := instanceRepo.GetByID(context.Background(), 1)
	if stored.Status != entity.StatusPending {
		t.Errorf("stored status = %s, want PENDING", stored.Status)
	}
}

func TestUnknownInstance(t *testing.T) {
	p := testProcessor(newMockInstanceRepo(), &mockRecordRepo{})

	_, err := p.Approve(context.Background(), 42, reviewer(), "", validSignature())
	if err == nil {
		t.Fatal("Approve on missing instance succeeded")
	}
}

func TestFullApprovalChain(t *testing.T) {
	instanceRepo := newMockInstanceRepo(twoStepInstance(entity.StatusPending, 0))
	recordRepo := &mockRecordRepo{}
	p := testProcessor(instanceRepo, recordRepo)

	if _, err := p.Approve(context.Background(), 1, reviewer(), "step one", validSignature()); err != nil {
		t.Fatalf("first approval: %v", err)
	}

	approver := Actor{ID: "cam@corp.test", Name: "Cam", Role: entity.RoleApprover}
	instance, err := p.Approve(context.Background(), 1, approver, "step two", validSignature())
	if err != nil {
		t.Fatalf("second approval: %v", err)
	}

	if instance.Status != entity.StatusApproved {
		t.Errorf("Status = %s, want APPROVED", instance.Status)
	}
	if len(recordRepo.records) != 2 {
		t.Errorf("records = %d, want 2", len(recordRepo.records))
	}
	for i, rec := range recordRepo.records {
		if rec.Signature == nil {
			t.Errorf("record %d missing signature", i)
		}
	}
}
