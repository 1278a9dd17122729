package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crou-platform/be-validations/internal/platform/database"
	"github.com/crou-platform/be-validations/internal/platform/errors"
)

// Budget statuses. The validation service keeps these in lockstep with the
// workflow instance.
const (
	BudgetDraft     = "draft"
	BudgetSubmitted = "submitted"
	BudgetValidated = "validated"
	BudgetRejected  = "rejected"
	BudgetClosed    = "closed"
)

// Budget is a budget envelope for one CROU module and fiscal year.
// Amounts are in centimes.
type Budget struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Code            string
	Label           string
	Module          string
	FiscalYear      int
	AllocatedAmount int64
	CommittedAmount int64
	SpentAmount     int64
	Status          string
	Notes           *string
	CreatedBy       *uuid.UUID
	UpdatedBy       *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RemainingAmount returns what is left to commit on the envelope.
func (b *Budget) RemainingAmount() int64 {
	return b.AllocatedAmount - b.CommittedAmount - b.SpentAmount
}

// BudgetFilter narrows List results.
type BudgetFilter struct {
	Module     *string
	Status     *string
	FiscalYear *int
}

// BudgetRepository handles CRUD for budgets.
type BudgetRepository struct {
	db *database.DB
}

// NewBudgetRepository creates a new BudgetRepository.
func NewBudgetRepository(db *database.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

const budgetColumns = `
	id, tenant_id, code, label, module, fiscal_year,
	allocated_amount, committed_amount, spent_amount,
	status, notes, created_by, updated_by, created_at, updated_at
`

// Create inserts a new draft budget.
func (r *BudgetRepository) Create(ctx context.Context, b *Budget) error {
	query := `
		INSERT INTO budgets
		    (id, tenant_id, code, label, module, fiscal_year,
		     allocated_amount, committed_amount, spent_amount,
		     status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5::workflow_module, $6,
		        $7, $8, $9,
		        $10::budget_status, $11, $12)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		b.ID,
		b.TenantID,
		b.Code,
		b.Label,
		b.Module,
		b.FiscalYear,
		b.AllocatedAmount,
		b.CommittedAmount,
		b.SpentAmount,
		b.Status,
		b.Notes,
		b.CreatedBy,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// GetByID retrieves a budget by primary key.
func (r *BudgetRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1 AND tenant_id = $2`

	b, err := scanBudget(r.db.QueryRow(ctx, query, id, tenantID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("budget", id.String())
	}
	return b, err
}

// List returns budgets for a tenant matching the filter, newest first, paginated.
func (r *BudgetRepository) List(ctx context.Context, tenantID uuid.UUID, filter BudgetFilter, page, pageSize int) ([]*Budget, int, error) {
	where := "WHERE tenant_id = $1"
	args := []any{tenantID}

	if filter.Module != nil {
		args = append(args, *filter.Module)
		where += fmt.Sprintf(" AND module = $%d::workflow_module", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d::budget_status", len(args))
	}
	if filter.FiscalYear != nil {
		args = append(args, *filter.FiscalYear)
		where += fmt.Sprintf(" AND fiscal_year = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM budgets "+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count budgets")
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf("SELECT %s FROM budgets %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		budgetColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list budgets")
	}
	defer rows.Close()

	var budgets []*Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan budget")
		}
		budgets = append(budgets, b)
	}
	return budgets, total, rows.Err()
}

// Update persists changes to a draft budget.
func (r *BudgetRepository) Update(ctx context.Context, b *Budget) error {
	query := `
		UPDATE budgets
		SET code             = $3,
		    label            = $4,
		    fiscal_year      = $5,
		    allocated_amount = $6,
		    notes            = $7,
		    updated_by       = $8,
		    updated_at       = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		b.ID, b.TenantID, b.Code, b.Label, b.FiscalYear,
		b.AllocatedAmount, b.Notes, b.UpdatedBy,
	).Scan(&b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return errors.NotFound("budget", b.ID.String())
	}
	return err
}

// UpdateStatus sets the budget status, stamping the actor.
func (r *BudgetRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string, updatedBy *uuid.UUID) error {
	query := `
		UPDATE budgets
		SET status     = $3::budget_status,
		    updated_by = $4,
		    updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING id
	`

	var returnedID uuid.UUID
	err := r.db.QueryRow(ctx, query, id, tenantID, status, updatedBy).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("budget", id.String())
	}
	return err
}

// Delete removes a draft budget.
func (r *BudgetRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `DELETE FROM budgets WHERE id = $1 AND tenant_id = $2 AND status = 'draft'`

	tag, err := r.db.Exec(ctx, query, id, tenantID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete budget")
	}
	if tag.RowsAffected() == 0 {
		return errors.Conflict("budget not found or not a draft")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type budgetScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row budgetScanner) (*Budget, error) {
	b := &Budget{}
	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.Code,
		&b.Label,
		&b.Module,
		&b.FiscalYear,
		&b.AllocatedAmount,
		&b.CommittedAmount,
		&b.SpentAmount,
		&b.Status,
		&b.Notes,
		&b.CreatedBy,
		&b.UpdatedBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}
