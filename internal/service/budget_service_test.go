package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crou-platform/be-validations/internal/domain"
	"github.com/crou-platform/be-validations/internal/platform/errors"
	"github.com/crou-platform/be-validations/internal/platform/logger"
	"github.com/crou-platform/be-validations/internal/repository"
)

type fakeBudgetStore struct {
	budgets map[uuid.UUID]*repository.Budget
}

func newFakeBudgetStore() *fakeBudgetStore {
	return &fakeBudgetStore{budgets: map[uuid.UUID]*repository.Budget{}}
}

func (s *fakeBudgetStore) Create(_ context.Context, b *repository.Budget) error {
	s.budgets[b.ID] = b
	return nil
}

func (s *fakeBudgetStore) GetByID(_ context.Context, tenantID, id uuid.UUID) (*repository.Budget, error) {
	b, ok := s.budgets[id]
	if !ok || b.TenantID != tenantID {
		return nil, errors.NotFound("budget", id.String())
	}
	cp := *b
	return &cp, nil
}

func (s *fakeBudgetStore) List(_ context.Context, tenantID uuid.UUID, filter repository.BudgetFilter, _, _ int) ([]*repository.Budget, int, error) {
	var out []*repository.Budget
	for _, b := range s.budgets {
		if b.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.FiscalYear != nil && b.FiscalYear != *filter.FiscalYear {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (s *fakeBudgetStore) Update(_ context.Context, b *repository.Budget) error {
	if _, ok := s.budgets[b.ID]; !ok {
		return errors.NotFound("budget", b.ID.String())
	}
	cp := *b
	s.budgets[b.ID] = &cp
	return nil
}

func (s *fakeBudgetStore) UpdateStatus(_ context.Context, tenantID, id uuid.UUID, status string, _ *uuid.UUID) error {
	b, ok := s.budgets[id]
	if !ok || b.TenantID != tenantID {
		return errors.NotFound("budget", id.String())
	}
	b.Status = status
	return nil
}

func (s *fakeBudgetStore) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	b, ok := s.budgets[id]
	if !ok || b.TenantID != tenantID || b.Status != repository.BudgetDraft {
		return errors.Conflict("budget not found or not a draft")
	}
	delete(s.budgets, id)
	return nil
}

func newBudgetFixture(t *testing.T) (*BudgetService, *fakeBudgetStore, *fixture) {
	t.Helper()
	f := newFixture(t)
	store := newFakeBudgetStore()
	log := logger.New(logger.Config{Level: "error"})
	return NewBudgetService(store, f.svc, log), store, f
}

func validBudgetRequest() *CreateBudgetRequest {
	return &CreateBudgetRequest{
		Code:            "FIN-2026-001",
		Label:           "Restauration universitaire",
		Module:          domain.ModuleFinancial,
		FiscalYear:      2026,
		AllocatedAmount: 50_000_000,
	}
}

func TestCreateBudgetStartsAsDraft(t *testing.T) {
	svc, _, f := newBudgetFixture(t)

	b, err := svc.Create(context.Background(), f.submitter, validBudgetRequest())
	require.NoError(t, err)
	assert.Equal(t, repository.BudgetDraft, b.Status)
	assert.Equal(t, f.submitter.TenantID, b.TenantID)
	require.NotNil(t, b.CreatedBy)
	assert.Equal(t, f.submitter.UserID, *b.CreatedBy)
}

func TestCreateBudgetValidation(t *testing.T) {
	svc, _, f := newBudgetFixture(t)

	req := validBudgetRequest()
	req.AllocatedAmount = -1
	_, err := svc.Create(context.Background(), f.submitter, req)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	req = validBudgetRequest()
	req.Code = ""
	_, err = svc.Create(context.Background(), f.submitter, req)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestSubmitBudgetStartsValidationRun(t *testing.T) {
	svc, store, f := newBudgetFixture(t)

	b, err := svc.Create(context.Background(), f.submitter, validBudgetRequest())
	require.NoError(t, err)

	in, err := svc.SubmitForValidation(context.Background(), f.submitter, b.ID, domain.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceInProgress, in.Status)
	assert.Equal(t, domain.EntityBudget, in.Entity.Type)
	assert.Equal(t, b.ID, in.Entity.ID)
	assert.Equal(t, repository.BudgetSubmitted, store.budgets[b.ID].Status)

	// resubmission while the run is active conflicts
	_, err = svc.SubmitForValidation(context.Background(), f.submitter, b.ID, domain.PriorityHigh)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestFullBudgetValidationFlow(t *testing.T) {
	svc, _, f := newBudgetFixture(t)

	b, err := svc.Create(context.Background(), f.submitter, validBudgetRequest())
	require.NoError(t, err)
	in, err := svc.SubmitForValidation(context.Background(), f.submitter, b.ID, domain.PriorityHigh)
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), f.director, in.ID, "")
	require.NoError(t, err)
	complete, err := f.svc.Approve(context.Background(), f.regional, in.ID, "")
	require.NoError(t, err)
	require.True(t, complete)

	assert.Equal(t, "validated", f.budgets.statuses[b.ID])
}

func TestUpdateBudgetOnlyDrafts(t *testing.T) {
	svc, store, f := newBudgetFixture(t)

	b, err := svc.Create(context.Background(), f.submitter, validBudgetRequest())
	require.NoError(t, err)
	store.budgets[b.ID].Status = repository.BudgetSubmitted

	label := "new label"
	_, err = svc.Update(context.Background(), f.submitter, b.ID, &UpdateBudgetRequest{Label: &label})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestCloseRequiresValidatedBudget(t *testing.T) {
	svc, store, f := newBudgetFixture(t)

	b, err := svc.Create(context.Background(), f.submitter, validBudgetRequest())
	require.NoError(t, err)

	err = svc.Close(context.Background(), f.submitter, b.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))

	store.budgets[b.ID].Status = repository.BudgetValidated
	require.NoError(t, svc.Close(context.Background(), f.submitter, b.ID))
	assert.Equal(t, repository.BudgetClosed, store.budgets[b.ID].Status)
}
