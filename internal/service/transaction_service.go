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

// TransactionStore is the persistence surface for transactions.
type TransactionStore interface {
	Create(ctx context.Context, t *repository.Transaction) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*repository.Transaction, error)
	ListByBudget(ctx context.Context, tenantID, budgetID uuid.UUID, status *string, page, pageSize int) ([]*repository.Transaction, int, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string, updatedBy *uuid.UUID) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// TransactionService manages financial movements against budget envelopes.
type TransactionService struct {
	transactions TransactionStore
	budgets      BudgetStore
	validation   *ValidationService
	log          *logger.Logger
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(transactions TransactionStore, budgets BudgetStore, validation *ValidationService, log *logger.Logger) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		budgets:      budgets,
		validation:   validation,
		log:          log,
	}
}

// CreateTransactionRequest describes a new movement. Amount in centimes.
type CreateTransactionRequest struct {
	BudgetID    uuid.UUID
	Reference   string
	Description *string
	Amount      int64
	Direction   string
}

// Create inserts a new draft transaction against a validated budget. Debits
// must fit in the budget's remaining amount.
func (s *TransactionService) Create(ctx context.Context, actor Actor, req *CreateTransactionRequest) (*repository.Transaction, error) {
	if req.Reference == "" {
		return nil, errors.InvalidInput("reference", "transaction reference is required")
	}
	if req.Amount <= 0 {
		return nil, errors.InvalidInput("amount", "amount must be positive")
	}
	if req.Direction != "debit" && req.Direction != "credit" {
		return nil, errors.InvalidInput("direction", "direction must be debit or credit")
	}

	b, err := s.budgets.GetByID(ctx, actor.TenantID, req.BudgetID)
	if err != nil {
		return nil, err
	}
	if b.Status != repository.BudgetValidated {
		return nil, errors.Conflict(fmt.Sprintf("budget is %s, transactions require a validated budget", b.Status))
	}
	if req.Direction == "debit" && req.Amount > b.RemainingAmount() {
		return nil, errors.Conflict(fmt.Sprintf("amount %d exceeds remaining budget %d", req.Amount, b.RemainingAmount()))
	}

	t := &repository.Transaction{
		ID:          uuid.New(),
		TenantID:    actor.TenantID,
		BudgetID:    req.BudgetID,
		Reference:   req.Reference,
		Description: req.Description,
		Amount:      req.Amount,
		Direction:   req.Direction,
		Status:      repository.TransactionDraft,
		CreatedBy:   &actor.UserID,
	}
	if err := s.transactions.Create(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("transaction_id", t.ID.String()).
		Str("budget_id", t.BudgetID.String()).
		Str("direction", t.Direction).
		Int64("amount", t.Amount).
		Msg("Transaction created")
	return t, nil
}

// Get returns a transaction by id.
func (s *TransactionService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*repository.Transaction, error) {
	return s.transactions.GetByID(ctx, actor.TenantID, id)
}

// ListByBudget returns a budget's transactions, paginated.
func (s *TransactionService) ListByBudget(ctx context.Context, actor Actor, budgetID uuid.UUID, status *string, page, pageSize int) ([]*repository.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.transactions.ListByBudget(ctx, actor.TenantID, budgetID, status, page, pageSize)
}

// Delete removes a draft transaction.
func (s *TransactionService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	return s.transactions.Delete(ctx, actor.TenantID, id)
}

// SubmitForValidation moves a draft transaction to submitted and starts its
// validation run. The circuit module is taken from the owning budget.
func (s *TransactionService) SubmitForValidation(ctx context.Context, actor Actor, id uuid.UUID, priority domain.Priority) (*domain.WorkflowInstance, error) {
	t, err := s.transactions.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if t.Status != repository.TransactionDraft {
		return nil, errors.Conflict(fmt.Sprintf("transaction is %s, only drafts can be submitted", t.Status))
	}

	b, err := s.budgets.GetByID(ctx, actor.TenantID, t.BudgetID)
	if err != nil {
		return nil, err
	}

	entity, err := domain.NewEntityRef(domain.EntityTransaction, t.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "invalid entity reference")
	}

	in, err := s.validation.Submit(ctx, actor, domain.Module(b.Module), entity, priority)
	if err != nil {
		return nil, err
	}

	if err := s.transactions.UpdateStatus(ctx, actor.TenantID, t.ID, repository.TransactionSubmitted, &actor.UserID); err != nil {
		s.log.Error().Err(err).
			Str("transaction_id", t.ID.String()).
			Str("instance_id", in.ID.String()).
			Msg("Validation run started but transaction status update failed")
		return nil, err
	}

	s.log.Info().
		Str("transaction_id", t.ID.String()).
		Str("instance_id", in.ID.String()).
		Msg("Transaction submitted for validation")
	return in, nil
}
