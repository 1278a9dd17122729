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

// Transaction statuses, kept in lockstep with the validation circuit.
const (
	TransactionDraft     = "draft"
	TransactionSubmitted = "submitted"
	TransactionValidated = "validated"
	TransactionRejected  = "rejected"
)

// Transaction is a financial movement against a budget envelope.
// Amount is in centimes.
type Transaction struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	BudgetID    uuid.UUID
	Reference   string
	Description *string
	Amount      int64
	Direction   string // debit | credit
	Status      string
	CreatedBy   *uuid.UUID
	UpdatedBy   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionRepository handles CRUD for transactions.
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, tenant_id, budget_id, reference, description,
	amount, direction, status,
	created_by, updated_by, created_at, updated_at
`

// Create inserts a new draft transaction.
func (r *TransactionRepository) Create(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO transactions
		    (id, tenant_id, budget_id, reference, description,
		     amount, direction, status, created_by)
		VALUES ($1, $2, $3, $4, $5,
		        $6, $7::transaction_direction, $8::transaction_status, $9)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		t.ID,
		t.TenantID,
		t.BudgetID,
		t.Reference,
		t.Description,
		t.Amount,
		t.Direction,
		t.Status,
		t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// GetByID retrieves a transaction by primary key.
func (r *TransactionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND tenant_id = $2`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, id, tenantID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("transaction", id.String())
	}
	return t, err
}

// ListByBudget returns transactions for a budget, newest first, paginated.
func (r *TransactionRepository) ListByBudget(ctx context.Context, tenantID, budgetID uuid.UUID, status *string, page, pageSize int) ([]*Transaction, int, error) {
	where := "WHERE tenant_id = $1 AND budget_id = $2"
	args := []any{tenantID, budgetID}

	if status != nil {
		args = append(args, *status)
		where += fmt.Sprintf(" AND status = $%d::transaction_status", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM transactions "+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count transactions")
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf("SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		transactionColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list transactions")
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan transaction")
		}
		txs = append(txs, t)
	}
	return txs, total, rows.Err()
}

// UpdateStatus sets the transaction status, stamping the actor.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string, updatedBy *uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status     = $3::transaction_status,
		    updated_by = $4,
		    updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING id
	`

	var returnedID uuid.UUID
	err := r.db.QueryRow(ctx, query, id, tenantID, status, updatedBy).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("transaction", id.String())
	}
	return err
}

// Delete removes a draft transaction.
func (r *TransactionRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `DELETE FROM transactions WHERE id = $1 AND tenant_id = $2 AND status = 'draft'`

	tag, err := r.db.Exec(ctx, query, id, tenantID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete transaction")
	}
	if tag.RowsAffected() == 0 {
		return errors.Conflict("transaction not found or not a draft")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type transactionScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row transactionScanner) (*Transaction, error) {
	t := &Transaction{}
	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.BudgetID,
		&t.Reference,
		&t.Description,
		&t.Amount,
		&t.Direction,
		&t.Status,
		&t.CreatedBy,
		&t.UpdatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
