package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crou-platform/be-validations/internal/domain"
	"github.com/crou-platform/be-validations/internal/platform/errors"
	"github.com/crou-platform/be-validations/internal/platform/logger"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeTemplateStore struct {
	templates map[uuid.UUID]*domain.WorkflowTemplate
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{templates: map[uuid.UUID]*domain.WorkflowTemplate{}}
}

func (s *fakeTemplateStore) Create(_ context.Context, t *domain.WorkflowTemplate) error {
	s.templates[t.ID] = t
	return nil
}

func (s *fakeTemplateStore) GetByID(_ context.Context, tenantID, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	t, ok := s.templates[id]
	if !ok || t.TenantID != tenantID {
		return nil, errors.NotFound("workflow_template", id.String())
	}
	return t, nil
}

func (s *fakeTemplateStore) GetActiveForEntity(_ context.Context, tenantID uuid.UUID, module domain.Module, entityType domain.EntityType) (*domain.WorkflowTemplate, error) {
	for _, t := range s.templates {
		if t.TenantID == tenantID && t.Module == module && t.EntityType == entityType && t.Status == domain.TemplateActive {
			return t, nil
		}
	}
	return nil, nil
}

func (s *fakeTemplateStore) List(_ context.Context, tenantID uuid.UUID, module *domain.Module) ([]*domain.WorkflowTemplate, error) {
	var out []*domain.WorkflowTemplate
	for _, t := range s.templates {
		if t.TenantID == tenantID && (module == nil || t.Module == *module) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTemplateStore) UpdateStatus(_ context.Context, t *domain.WorkflowTemplate) error {
	s.templates[t.ID] = t
	return nil
}

func (s *fakeTemplateStore) AddStep(_ context.Context, t *domain.WorkflowTemplate, step *domain.TemplateStep) error {
	t.Steps = append(t.Steps, *step)
	return nil
}

func (s *fakeTemplateStore) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	t, ok := s.templates[id]
	if !ok || t.TenantID != tenantID {
		return errors.NotFound("workflow_template", id.String())
	}
	if t.Status != domain.TemplateDraft {
		return errors.Conflict("only drafts can be deleted")
	}
	delete(s.templates, id)
	return nil
}

type fakeInstanceStore struct {
	instances map[uuid.UUID]*domain.WorkflowInstance
	actions   map[uuid.UUID][]*domain.WorkflowAction
}

func newFakeInstanceStore() *fakeInstanceStore {
	return &fakeInstanceStore{
		instances: map[uuid.UUID]*domain.WorkflowInstance{},
		actions:   map[uuid.UUID][]*domain.WorkflowAction{},
	}
}

func (s *fakeInstanceStore) Create(_ context.Context, in *domain.WorkflowInstance, action *domain.WorkflowAction) error {
	cp := *in
	s.instances[in.ID] = &cp
	if action != nil {
		s.actions[in.ID] = append(s.actions[in.ID], action)
	}
	return nil
}

func (s *fakeInstanceStore) GetByID(_ context.Context, tenantID, id uuid.UUID) (*domain.WorkflowInstance, error) {
	in, ok := s.instances[id]
	if !ok || in.TenantID != tenantID {
		return nil, errors.NotFound("workflow_instance", id.String())
	}
	cp := *in
	return &cp, nil
}

func (s *fakeInstanceStore) GetActiveByEntity(_ context.Context, tenantID uuid.UUID, entity domain.EntityRef) (*domain.WorkflowInstance, error) {
	for _, in := range s.instances {
		if in.TenantID == tenantID && in.Entity == entity && in.IsActive() {
			cp := *in
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeInstanceStore) Update(_ context.Context, in *domain.WorkflowInstance, action *domain.WorkflowAction) error {
	stored, ok := s.instances[in.ID]
	if !ok {
		return errors.NotFound("workflow_instance", in.ID.String())
	}
	if stored.Version != in.Version {
		return errors.Conflict("instance was modified concurrently, reload and retry")
	}
	in.Version++
	cp := *in
	s.instances[in.ID] = &cp
	if action != nil {
		s.actions[in.ID] = append(s.actions[in.ID], action)
	}
	return nil
}

func (s *fakeInstanceStore) ListPendingForUser(_ context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	var out []*domain.WorkflowInstance
	for _, in := range s.instances {
		if in.TenantID != tenantID || in.Status != domain.InstanceInProgress {
			continue
		}
		if (in.AssignedTo != nil && *in.AssignedTo == userID) || (in.DelegatedTo != nil && *in.DelegatedTo == userID) {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeInstanceStore) ListByEntity(_ context.Context, tenantID uuid.UUID, entity domain.EntityRef) ([]*domain.WorkflowInstance, error) {
	var out []*domain.WorkflowInstance
	for _, in := range s.instances {
		if in.TenantID == tenantID && in.Entity == entity {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeInstanceStore) ListOverdue(_ context.Context, cutoff time.Time, limit int) ([]*domain.WorkflowInstance, error) {
	var out []*domain.WorkflowInstance
	for _, in := range s.instances {
		if in.IsActive() && in.ExpiresAt != nil && in.ExpiresAt.Before(cutoff) {
			cp := *in
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeInstanceStore) GetByInstanceID(_ context.Context, instanceID uuid.UUID) ([]*domain.WorkflowAction, error) {
	return s.actions[instanceID], nil
}

func (s *fakeInstanceStore) Append(_ context.Context, a *domain.WorkflowAction) error {
	s.actions[a.InstanceID] = append(s.actions[a.InstanceID], a)
	return nil
}

func (s *fakeInstanceStore) UpdateLifecycle(_ context.Context, a *domain.WorkflowAction) error {
	for _, list := range s.actions {
		for i, stored := range list {
			if stored.ID == a.ID {
				list[i] = a
				return nil
			}
		}
	}
	return errors.NotFound("workflow_action", a.ID.String())
}

type fakeStatusStore struct {
	statuses map[uuid.UUID]string
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{statuses: map[uuid.UUID]string{}}
}

func (s *fakeStatusStore) UpdateStatus(_ context.Context, _, id uuid.UUID, status string, _ *uuid.UUID) error {
	s.statuses[id] = status
	return nil
}

type fakeIdentity struct {
	usersByRole map[string][]uuid.UUID
}

func (f *fakeIdentity) GetUsersWithRole(_ context.Context, _ uuid.UUID, role string) ([]uuid.UUID, error) {
	return f.usersByRole[role], nil
}

func (f *fakeIdentity) GetUserRoles(_ context.Context, _ uuid.UUID, userID uuid.UUID) ([]string, error) {
	var roles []string
	for role, users := range f.usersByRole {
		for _, u := range users {
			if u == userID {
				roles = append(roles, role)
			}
		}
	}
	return roles, nil
}

type recordedEvent struct {
	eventType  string
	recipients []uuid.UUID
}

type fakeNotifier struct {
	events []recordedEvent
}

func (f *fakeNotifier) PublishWorkflowEvent(_ context.Context, eventType string, _ domain.Module, _ *domain.WorkflowInstance, _ uuid.UUID, recipients []uuid.UUID, _ map[string]any) {
	f.events = append(f.events, recordedEvent{eventType: eventType, recipients: recipients})
}

func (f *fakeNotifier) eventTypes() []string {
	types := make([]string, len(f.events))
	for i, e := range f.events {
		types[i] = e.eventType
	}
	return types
}

// ── fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	svc       *ValidationService
	templates *fakeTemplateStore
	instances *fakeInstanceStore
	budgets   *fakeStatusStore
	txs       *fakeStatusStore
	identity  *fakeIdentity
	notifier  *fakeNotifier

	tenantID  uuid.UUID
	template  *domain.WorkflowTemplate
	director  Actor
	regional  Actor
	submitter Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tenantID := uuid.New()
	tpl, err := domain.LevelCircuit(domain.LevelCircuitSpec{
		TenantID:     tenantID,
		Module:       domain.ModuleFinancial,
		EntityType:   domain.EntityBudget,
		TopLevel:     domain.LevelRegionalDirector,
		TimeoutHours: 72,
	})
	require.NoError(t, err)
	require.NoError(t, tpl.Activate())

	director := Actor{TenantID: tenantID, UserID: uuid.New(), Name: "Director", Role: "CROU_DIRECTOR"}
	regional := Actor{TenantID: tenantID, UserID: uuid.New(), Name: "Regional", Role: "REGIONAL_DIRECTOR"}
	submitter := Actor{TenantID: tenantID, UserID: uuid.New(), Name: "Agent", Role: "AGENT"}

	f := &fixture{
		templates: newFakeTemplateStore(),
		instances: newFakeInstanceStore(),
		budgets:   newFakeStatusStore(),
		txs:       newFakeStatusStore(),
		identity: &fakeIdentity{usersByRole: map[string][]uuid.UUID{
			"CROU_DIRECTOR":     {director.UserID},
			"REGIONAL_DIRECTOR": {regional.UserID},
		}},
		notifier:  &fakeNotifier{},
		tenantID:  tenantID,
		template:  tpl,
		director:  director,
		regional:  regional,
		submitter: submitter,
	}
	f.templates.templates[tpl.ID] = tpl

	log := logger.New(logger.Config{Level: "error"})
	f.svc = NewValidationService(f.templates, f.instances, f.instances, f.budgets, f.txs, f.identity, f.notifier, log)
	return f
}

func (f *fixture) submit(t *testing.T) *domain.WorkflowInstance {
	t.Helper()
	entity := domain.EntityRef{Type: domain.EntityBudget, ID: uuid.New()}
	in, err := f.svc.Submit(context.Background(), f.submitter, domain.ModuleFinancial, entity, domain.PriorityHigh)
	require.NoError(t, err)
	return in
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestSubmitStartsRunOnFirstStep(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	assert.Equal(t, domain.InstanceInProgress, in.Status)
	require.NotNil(t, in.CurrentStepID)
	assert.Equal(t, f.template.FirstStep().ID, *in.CurrentStepID)
	require.NotNil(t, in.AssignedTo)
	assert.Equal(t, f.director.UserID, *in.AssignedTo, "first approver pre-assigned from identity")
	require.NotNil(t, in.ExpiresAt)

	assert.Equal(t, []string{"submitted", "approval_required"}, f.notifier.eventTypes())

	actions, err := f.instances.GetByInstanceID(context.Background(), in.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionStart, actions[0].Type)
	assert.Equal(t, f.submitter.UserID, actions[0].Actor.UserID)
}

func TestSubmitRefusesSecondActiveRun(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	_, err := f.svc.Submit(context.Background(), f.submitter, domain.ModuleFinancial, in.Entity, domain.PriorityHigh)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestSubmitWithoutActiveTemplate(t *testing.T) {
	f := newFixture(t)
	entity := domain.EntityRef{Type: domain.EntityTransaction, ID: uuid.New()}

	_, err := f.svc.Submit(context.Background(), f.submitter, domain.ModuleFinancial, entity, domain.PriorityHigh)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestApproveAdvancesThenCompletes(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	complete, err := f.svc.Approve(context.Background(), f.director, in.ID, "looks good")
	require.NoError(t, err)
	assert.False(t, complete)

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceInProgress, reloaded.Status)
	require.NotNil(t, reloaded.AssignedTo)
	assert.Equal(t, f.regional.UserID, *reloaded.AssignedTo, "next level approver assigned")

	complete, err = f.svc.Approve(context.Background(), f.regional, in.ID, "approved")
	require.NoError(t, err)
	assert.True(t, complete)

	final, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceCompleted, final.Status)
	assert.Equal(t, "validated", f.budgets.statuses[in.Entity.ID], "budget moved to validated in lockstep")

	types := f.notifier.eventTypes()
	assert.Equal(t, "approved", types[len(types)-1])
}

func TestApproveRejectsUnauthorizedActor(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	intruder := Actor{TenantID: f.tenantID, UserID: uuid.New(), Role: "AGENT"}
	_, err := f.svc.Approve(context.Background(), intruder, in.ID, "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))
}

func TestApproveByRoleWhenUnassigned(t *testing.T) {
	f := newFixture(t)
	f.identity.usersByRole = map[string][]uuid.UUID{} // nobody to pre-assign
	in := f.submit(t)

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	require.Nil(t, reloaded.AssignedTo)

	// any holder of the step role may act on an unassigned step
	_, err = f.svc.Approve(context.Background(), f.director, in.ID, "")
	require.NoError(t, err)
}

func TestRejectTerminatesRun(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	err := f.svc.Reject(context.Background(), f.director, in.ID, "")
	require.Error(t, err, "reason is mandatory")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	require.NoError(t, f.svc.Reject(context.Background(), f.director, in.ID, "budget exceeds envelope"))

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceRejected, reloaded.Status)
	assert.Equal(t, "budget exceeds envelope", reloaded.RejectionReason)
	assert.Equal(t, "rejected", f.budgets.statuses[in.Entity.ID])
}

func TestApproveAfterRejectConflicts(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	require.NoError(t, f.svc.Reject(context.Background(), f.director, in.ID, "no"))

	_, err := f.svc.Approve(context.Background(), f.director, in.ID, "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestDelegateHandsStepOver(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)
	deputy := uuid.New()

	require.NoError(t, f.svc.Delegate(context.Background(), f.director, in.ID, deputy, "on leave"))

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.DelegatedTo)
	assert.Equal(t, deputy, *reloaded.DelegatedTo)

	// the delegate can now approve
	delegate := Actor{TenantID: f.tenantID, UserID: deputy, Role: "ANY"}
	_, err = f.svc.Approve(context.Background(), delegate, in.ID, "")
	require.NoError(t, err)
}

func TestSkipOptionalStep(t *testing.T) {
	f := newFixture(t)

	tpl := &domain.WorkflowTemplate{
		ID:         uuid.New(),
		TenantID:   f.tenantID,
		Name:       "Commandes",
		Module:     domain.ModuleFinancial,
		Type:       domain.TemplateSequential,
		Status:     domain.TemplateDraft,
		EntityType: domain.EntityPurchaseOrder,
	}
	tpl.Steps = []domain.TemplateStep{
		{
			ID: uuid.New(), TemplateID: tpl.ID, Name: "Controle facultatif",
			Position: 1, Type: domain.StepApproval, Priority: domain.PriorityMedium,
			Role: "CROU_DIRECTOR", CanSkip: true,
		},
		{
			ID: uuid.New(), TemplateID: tpl.ID, Name: "Validation finale",
			Position: 2, Type: domain.StepApproval, Priority: domain.PriorityMedium,
			Role: "REGIONAL_DIRECTOR", IsRequired: true,
		},
	}
	require.NoError(t, tpl.Activate())
	f.templates.templates[tpl.ID] = tpl

	entity := domain.EntityRef{Type: domain.EntityPurchaseOrder, ID: uuid.New()}
	in, err := f.svc.Submit(context.Background(), f.submitter, domain.ModuleFinancial, entity, domain.PriorityMedium)
	require.NoError(t, err)

	complete, err := f.svc.Skip(context.Background(), f.director, in.ID, "not needed")
	require.NoError(t, err)
	assert.False(t, complete)

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CurrentStepID)
	assert.Equal(t, tpl.Steps[1].ID, *reloaded.CurrentStepID)

	// the required final step refuses to be skipped
	_, err = f.svc.Skip(context.Background(), f.regional, in.ID, "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestCancelOnlyBySubmitter(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	err := f.svc.Cancel(context.Background(), f.director, in.ID, "changed mind")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	require.NoError(t, f.svc.Cancel(context.Background(), f.submitter, in.ID, "changed mind"))

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceCancelled, reloaded.Status)
	assert.Equal(t, "draft", f.budgets.statuses[in.Entity.ID], "record returns to draft")
}

func TestStaleWriteConflicts(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	stale, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)

	// a concurrent approver commits first
	_, err = f.svc.Approve(context.Background(), f.director, in.ID, "")
	require.NoError(t, err)

	// the stale copy still carries the old version
	err = f.instances.Update(context.Background(), stale, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestExpireOverdueReturnsRecordsToDraft(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	// push the deadline into the past
	stored := f.instances.instances[in.ID]
	past := time.Now().Add(-time.Hour)
	stored.ExpiresAt = &past

	expired, err := f.svc.ExpireOverdue(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceExpired, reloaded.Status)
	assert.Equal(t, "draft", f.budgets.statuses[in.Entity.ID])

	// the expire audit entry went through its processing lifecycle
	actions, err := f.instances.GetByInstanceID(context.Background(), in.ID)
	require.NoError(t, err)
	last := actions[len(actions)-1]
	assert.Equal(t, domain.ActionExpire, last.Type)
	assert.Equal(t, domain.ActionCompleted, last.Status)
	assert.NotNil(t, last.ProcessedAt)
}

func TestCommentLeavesInstanceUntouched(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	before, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Comment(context.Background(), f.director, in.ID, "please double-check the envelope"))

	after, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version, "comments do not bump the instance version")

	actions, err := f.instances.GetByInstanceID(context.Background(), in.ID)
	require.NoError(t, err)
	last := actions[len(actions)-1]
	assert.Equal(t, domain.ActionComment, last.Type)
	assert.Equal(t, "please double-check the envelope", last.Comment)
}

func TestAssignChecksRoleMembership(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	// the regional director does not hold the first step's role
	err := f.svc.Assign(context.Background(), f.director, in.ID, f.regional.UserID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))

	require.NoError(t, f.svc.Assign(context.Background(), f.director, in.ID, f.director.UserID))

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.AssignedTo)
	assert.Equal(t, f.director.UserID, *reloaded.AssignedTo)
}

func TestOverdueInstanceRefusesApproval(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	stored := f.instances.instances[in.ID]
	past := time.Now().Add(-time.Hour)
	stored.ExpiresAt = &past

	_, err := f.svc.Approve(context.Background(), f.director, in.ID, "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestEscalateMovesUpOneLevel(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)

	stored := f.instances.instances[in.ID]
	past := time.Now().Add(-time.Hour)
	stored.ExpiresAt = &past

	// a bystander cannot reassign the run or extend its deadline
	bystander := Actor{TenantID: f.tenantID, UserID: uuid.New(), Role: "AGENT"}
	err := f.svc.Escalate(context.Background(), bystander, in.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	require.NoError(t, f.svc.Escalate(context.Background(), f.submitter, in.ID))

	reloaded, err := f.instances.GetByID(context.Background(), f.tenantID, in.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.EscalatedTo)
	assert.Equal(t, f.regional.UserID, *reloaded.EscalatedTo)
	require.NotNil(t, reloaded.ExpiresAt)
	assert.True(t, reloaded.ExpiresAt.After(time.Now()), "deadline extended")

	// a second escalation needs the instance overdue again
	err = f.svc.Escalate(context.Background(), f.submitter, in.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestPendingForUser(t *testing.T) {
	f := newFixture(t)
	f.submit(t)
	f.submit(t)

	pending, err := f.svc.PendingForUser(context.Background(), f.director)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	none, err := f.svc.PendingForUser(context.Background(), f.regional)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryListsAllRuns(t *testing.T) {
	f := newFixture(t)
	in := f.submit(t)
	require.NoError(t, f.svc.Reject(context.Background(), f.director, in.ID, "no"))

	// resubmit the same entity after rejection
	_, err := f.svc.Submit(context.Background(), f.submitter, domain.ModuleFinancial, in.Entity, domain.PriorityHigh)
	require.NoError(t, err)

	history, err := f.svc.History(context.Background(), f.submitter, in.Entity)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
