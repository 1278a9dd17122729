package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crou-platform/be-validations/internal/domain"
	"github.com/crou-platform/be-validations/internal/platform/database"
	"github.com/crou-platform/be-validations/internal/platform/errors"
)

// InstanceRepository manages workflow instances. Every write is conditioned on
// the optimistic version column; a missed predicate surfaces as a conflict so
// concurrent approvers cannot silently overwrite each other.
type InstanceRepository struct {
	db *database.DB
}

// NewInstanceRepository creates a new InstanceRepository.
func NewInstanceRepository(db *database.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = `
	id, tenant_id, template_id, current_step_id,
	entity_type, entity_id, status, priority,
	assigned_to, delegated_to, escalated_to,
	started_at, completed_at, expires_at,
	rejection_reason, cancellation_reason,
	version, created_at, updated_at
`

// Create inserts a pending instance together with its first audit action.
func (r *InstanceRepository) Create(ctx context.Context, in *domain.WorkflowInstance, action *domain.WorkflowAction) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO workflow_instances
			    (id, tenant_id, template_id, current_step_id,
			     entity_type, entity_id, status, priority,
			     assigned_to, delegated_to, escalated_to,
			     started_at, completed_at, expires_at,
			     rejection_reason, cancellation_reason, version)
			VALUES ($1, $2, $3, $4,
			        $5::entity_type, $6, $7::instance_status, $8::step_priority,
			        $9, $10, $11,
			        $12, $13, $14,
			        $15, $16, $17)
			RETURNING created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			in.ID,
			in.TenantID,
			in.TemplateID,
			in.CurrentStepID,
			in.Entity.Type,
			in.Entity.ID,
			in.Status,
			in.Priority,
			in.AssignedTo,
			in.DelegatedTo,
			in.EscalatedTo,
			in.StartedAt,
			in.CompletedAt,
			in.ExpiresAt,
			nullable(in.RejectionReason),
			nullable(in.CancellationReason),
			in.Version,
		).Scan(&in.CreatedAt, &in.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create workflow instance")
		}

		if action != nil {
			if err := insertAction(ctx, tx, action); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves an instance by primary key.
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE id = $1 AND tenant_id = $2
	`

	in, err := scanInstance(r.db.QueryRow(ctx, query, id, tenantID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow_instance", id.String())
	}
	return in, err
}

// GetActiveByEntity returns the active instance for a business record, or nil
// when no validation run is in flight.
func (r *InstanceRepository) GetActiveByEntity(ctx context.Context, tenantID uuid.UUID, entity domain.EntityRef) (*domain.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE tenant_id = $1
		  AND entity_type = $2::entity_type
		  AND entity_id = $3
		  AND status IN ('pending', 'in_progress')
		ORDER BY created_at DESC
		LIMIT 1
	`

	in, err := scanInstance(r.db.QueryRow(ctx, query, tenantID, entity.Type, entity.ID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return in, err
}

// Update persists the full mutable state of an instance, appending the audit
// action in the same transaction. The WHERE clause checks the version read at
// load time; the row not matching means another writer got there first.
func (r *InstanceRepository) Update(ctx context.Context, in *domain.WorkflowInstance, action *domain.WorkflowAction) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE workflow_instances
			SET current_step_id     = $3,
			    status              = $4::instance_status,
			    assigned_to         = $5,
			    delegated_to        = $6,
			    escalated_to        = $7,
			    started_at          = $8,
			    completed_at        = $9,
			    expires_at          = $10,
			    rejection_reason    = $11,
			    cancellation_reason = $12,
			    version             = version + 1,
			    updated_at          = NOW()
			WHERE id = $1 AND tenant_id = $2 AND version = $13
			RETURNING version, updated_at
		`

		err := tx.QueryRow(ctx, query,
			in.ID,
			in.TenantID,
			in.CurrentStepID,
			in.Status,
			in.AssignedTo,
			in.DelegatedTo,
			in.EscalatedTo,
			in.StartedAt,
			in.CompletedAt,
			in.ExpiresAt,
			nullable(in.RejectionReason),
			nullable(in.CancellationReason),
			in.Version,
		).Scan(&in.Version, &in.UpdatedAt)
		if err == pgx.ErrNoRows {
			return errors.Conflict("instance was modified concurrently, reload and retry")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update workflow instance")
		}

		if action != nil {
			if err := insertAction(ctx, tx, action); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListPendingForUser returns active instances awaiting action from a user,
// either assigned or delegated, oldest deadline first.
func (r *InstanceRepository) ListPendingForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE tenant_id = $1
		  AND status = 'in_progress'
		  AND (assigned_to = $2 OR delegated_to = $2)
		ORDER BY expires_at ASC NULLS LAST, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list pending instances")
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListByEntity returns every instance ever run against a business record.
func (r *InstanceRepository) ListByEntity(ctx context.Context, tenantID uuid.UUID, entity domain.EntityRef) ([]*domain.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE tenant_id = $1
		  AND entity_type = $2::entity_type
		  AND entity_id = $3
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, tenantID, entity.Type, entity.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list instances for entity")
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListOverdue returns active instances whose deadline passed before cutoff.
// Used by the expiry sweeper; limit bounds one sweep.
func (r *InstanceRepository) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*domain.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE status IN ('pending', 'in_progress')
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list overdue instances")
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type instanceScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row instanceScanner) (*domain.WorkflowInstance, error) {
	in := &domain.WorkflowInstance{}
	var rejection, cancellation *string

	err := row.Scan(
		&in.ID,
		&in.TenantID,
		&in.TemplateID,
		&in.CurrentStepID,
		&in.Entity.Type,
		&in.Entity.ID,
		&in.Status,
		&in.Priority,
		&in.AssignedTo,
		&in.DelegatedTo,
		&in.EscalatedTo,
		&in.StartedAt,
		&in.CompletedAt,
		&in.ExpiresAt,
		&rejection,
		&cancellation,
		&in.Version,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		in.RejectionReason = *rejection
	}
	if cancellation != nil {
		in.CancellationReason = *cancellation
	}
	return in, nil
}

func scanInstances(rows pgx.Rows) ([]*domain.WorkflowInstance, error) {
	var instances []*domain.WorkflowInstance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow instance")
		}
		instances = append(instances, in)
	}
	return instances, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
