package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/crou-platform/be-validations/internal/domain"
	"github.com/crou-platform/be-validations/internal/platform/errors"
	"github.com/crou-platform/be-validations/internal/platform/logger"
	"github.com/crou-platform/be-validations/internal/repository"
)

// BudgetStore is the persistence surface for budgets.
type BudgetStore interface {
	Create(ctx context.Context, b *repository.Budget) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*repository.Budget, error)
	List(ctx context.Context, tenantID uuid.UUID, filter repository.BudgetFilter, page, pageSize int) ([]*repository.Budget, int, error)
	Update(ctx context.Context, b *repository.Budget) error
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string, updatedBy *uuid.UUID) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// BudgetService manages budget envelopes and their entry into validation.
type BudgetService struct {
	budgets    BudgetStore
	validation *ValidationService
	log        *logger.Logger
}

// NewBudgetService creates a new BudgetService.
func NewBudgetService(budgets BudgetStore, validation *ValidationService, log *logger.Logger) *BudgetService {
	return &BudgetService{budgets: budgets, validation: validation, log: log}
}

// CreateBudgetRequest describes a new budget envelope. Amounts in centimes.
type CreateBudgetRequest struct {
	Code            string
	Label           string
	Module          domain.Module
	FiscalYear      int
	AllocatedAmount int64
	Notes           *string
}

// Create inserts a new draft budget.
func (s *BudgetService) Create(ctx context.Context, actor Actor, req *CreateBudgetRequest) (*repository.Budget, error) {
	if req.Code == "" {
		return nil, errors.InvalidInput("code", "budget code is required")
	}
	if req.Label == "" {
		return nil, errors.InvalidInput("label", "budget label is required")
	}
	if !req.Module.Valid() {
		return nil, errors.InvalidInput("module", "unknown module")
	}
	if req.FiscalYear < 2000 {
		return nil, errors.InvalidInput("fiscal_year", "fiscal year is out of range")
	}
	if req.AllocatedAmount < 0 {
		return nil, errors.InvalidInput("allocated_amount", "allocated amount cannot be negative")
	}

	b := &repository.Budget{
		ID:              uuid.New(),
		TenantID:        actor.TenantID,
		Code:            req.Code,
		Label:           req.Label,
		Module:          string(req.Module),
		FiscalYear:      req.FiscalYear,
		AllocatedAmount: req.AllocatedAmount,
		Status:          repository.BudgetDraft,
		Notes:           req.Notes,
		CreatedBy:       &actor.UserID,
	}
	if err := s.budgets.Create(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("budget_id", b.ID.String()).
		Str("code", b.Code).
		Int("fiscal_year", b.FiscalYear).
		Msg("Budget created")
	return b, nil
}

// Get returns a budget by id.
func (s *BudgetService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*repository.Budget, error) {
	return s.budgets.GetByID(ctx, actor.TenantID, id)
}

// List returns budgets matching the filter, paginated.
func (s *BudgetService) List(ctx context.Context, actor Actor, filter repository.BudgetFilter, page, pageSize int) ([]*repository.Budget, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.budgets.List(ctx, actor.TenantID, filter, page, pageSize)
}

// UpdateBudgetRequest carries the mutable fields of a draft budget.
type UpdateBudgetRequest struct {
	Code            *string
	Label           *string
	FiscalYear      *int
	AllocatedAmount *int64
	Notes           *string
}

// Update modifies a budget. Only drafts can be edited.
func (s *BudgetService) Update(ctx context.Context, actor Actor, id uuid.UUID, req *UpdateBudgetRequest) (*repository.Budget, error) {
	b, err := s.budgets.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if b.Status != repository.BudgetDraft {
		return nil, errors.Conflict(fmt.Sprintf("budget is %s, only drafts can be edited", b.Status))
	}

	if req.Code != nil {
		b.Code = *req.Code
	}
	if req.Label != nil {
		b.Label = *req.Label
	}
	if req.FiscalYear != nil {
		b.FiscalYear = *req.FiscalYear
	}
	if req.AllocatedAmount != nil {
		if *req.AllocatedAmount < 0 {
			return nil, errors.InvalidInput("allocated_amount", "allocated amount cannot be negative")
		}
		b.AllocatedAmount = *req.AllocatedAmount
	}
	if req.Notes != nil {
		b.Notes = req.Notes
	}
	b.UpdatedBy = &actor.UserID

	if err := s.budgets.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes a draft budget.
func (s *BudgetService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	return s.budgets.Delete(ctx, actor.TenantID, id)
}

// SubmitForValidation moves a draft budget to submitted and starts its
// validation run.
func (s *BudgetService) SubmitForValidation(ctx context.Context, actor Actor, id uuid.UUID, priority domain.Priority) (*domain.WorkflowInstance, error) {
	b, err := s.budgets.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if b.Status != repository.BudgetDraft {
		return nil, errors.Conflict(fmt.Sprintf("budget is %s, only drafts can be submitted", b.Status))
	}

	entity, err := domain.NewEntityRef(domain.EntityBudget, b.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "invalid entity reference")
	}

	in, err := s.validation.Submit(ctx, actor, domain.Module(b.Module), entity, priority)
	if err != nil {
		return nil, err
	}

	if err := s.budgets.UpdateStatus(ctx, actor.TenantID, b.ID, repository.BudgetSubmitted, &actor.UserID); err != nil {
		s.log.Error().Err(err).
			Str("budget_id", b.ID.String()).
			Str("instance_id", in.ID.String()).
			Msg("Validation run started but budget status update failed")
		return nil, err
	}

	s.log.Info().
		Str("budget_id", b.ID.String()).
		Str("instance_id", in.ID.String()).
		Msg("Budget submitted for validation")
	return in, nil
}

// Close retires a validated budget at fiscal year end.
func (s *BudgetService) Close(ctx context.Context, actor Actor, id uuid.UUID) error {
	b, err := s.budgets.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if b.Status != repository.BudgetValidated {
		return errors.Conflict(fmt.Sprintf("budget is %s, only validated budgets can be closed", b.Status))
	}
	return s.budgets.UpdateStatus(ctx, actor.TenantID, id, repository.BudgetClosed, &actor.UserID)
}
