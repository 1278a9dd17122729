package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crou-platform/be-validations/internal/domain"
	"github.com/crou-platform/be-validations/internal/platform/database"
	"github.com/crou-platform/be-validations/internal/platform/errors"
)

// ActionRepository appends and reads the immutable workflow audit trail.
// The table carries a delete-prevention trigger, so append and the processing
// lifecycle update are the only mutations exposed.
type ActionRepository struct {
	db *database.DB
}

// NewActionRepository creates a new ActionRepository.
func NewActionRepository(db *database.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Append inserts one audit entry.
func (r *ActionRepository) Append(ctx context.Context, a *domain.WorkflowAction) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return insertAction(ctx, tx, a)
	})
}

// insertAction writes an action inside an existing transaction so instance
// updates and their audit entries commit together.
func insertAction(ctx context.Context, tx pgx.Tx, a *domain.WorkflowAction) error {
	dataJSON, err := marshalJSON(a.Data)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal action data")
	}
	metadataJSON, err := marshalJSON(a.Metadata)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal action metadata")
	}

	var targetID *uuid.UUID
	var targetRole, targetName *string
	if a.Target != nil {
		targetID = &a.Target.UserID
		targetRole = &a.Target.Role
		targetName = &a.Target.Name
	}

	query := `
		INSERT INTO workflow_actions
		    (id, instance_id, step_id, type, status,
		     user_id, user_role, user_name,
		     target_user_id, target_user_role, target_user_name,
		     comment, data, metadata,
		     status_before, status_after,
		     processed_at, error_message)
		VALUES ($1, $2, $3, $4::action_type, $5::action_status,
		        $6, $7, $8,
		        $9, $10, $11,
		        $12, $13, $14,
		        $15, $16,
		        $17, $18)
		RETURNING created_at
	`

	err = tx.QueryRow(ctx, query,
		a.ID,
		a.InstanceID,
		a.StepID,
		a.Type,
		a.Status,
		a.Actor.UserID,
		a.Actor.Role,
		a.Actor.Name,
		targetID,
		targetRole,
		targetName,
		nullable(a.Comment),
		dataJSON,
		metadataJSON,
		nullable(a.StatusBefore),
		nullable(a.StatusAfter),
		a.ProcessedAt,
		nullable(a.ErrorMessage),
	).Scan(&a.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append workflow action")
	}
	return nil
}

// UpdateLifecycle persists the processing status fields of an action.
func (r *ActionRepository) UpdateLifecycle(ctx context.Context, a *domain.WorkflowAction) error {
	query := `
		UPDATE workflow_actions
		SET status        = $2::action_status,
		    processed_at  = $3,
		    error_message = $4
		WHERE id = $1
		RETURNING id
	`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, a.ID, a.Status, a.ProcessedAt, nullable(a.ErrorMessage)).Scan(&id)
	if err == pgx.ErrNoRows {
		return errors.NotFound("workflow_action", a.ID.String())
	}
	return err
}

// GetByInstanceID returns the audit trail of an instance, oldest first.
func (r *ActionRepository) GetByInstanceID(ctx context.Context, instanceID uuid.UUID) ([]*domain.WorkflowAction, error) {
	query := `
		SELECT id, instance_id, step_id, type, status,
		       user_id, user_role, user_name,
		       target_user_id, target_user_role, target_user_name,
		       comment, data, metadata,
		       status_before, status_after,
		       processed_at, error_message, created_at
		FROM workflow_actions
		WHERE instance_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, instanceID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow actions")
	}
	defer rows.Close()

	var actions []*domain.WorkflowAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type actionScanner interface {
	Scan(dest ...any) error
}

func scanAction(sc actionScanner) (*domain.WorkflowAction, error) {
	a := &domain.WorkflowAction{}
	var dataJSON, metadataJSON []byte
	var targetID *uuid.UUID
	var targetRole, targetName *string
	var comment, statusBefore, statusAfter, errorMessage *string

	err := sc.Scan(
		&a.ID,
		&a.InstanceID,
		&a.StepID,
		&a.Type,
		&a.Status,
		&a.Actor.UserID,
		&a.Actor.Role,
		&a.Actor.Name,
		&targetID,
		&targetRole,
		&targetName,
		&comment,
		&dataJSON,
		&metadataJSON,
		&statusBefore,
		&statusAfter,
		&a.ProcessedAt,
		&errorMessage,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow action")
	}

	if targetID != nil {
		a.Target = &domain.ActorInfo{UserID: *targetID}
		if targetRole != nil {
			a.Target.Role = *targetRole
		}
		if targetName != nil {
			a.Target.Name = *targetName
		}
	}
	if comment != nil {
		a.Comment = *comment
	}
	if statusBefore != nil {
		a.StatusBefore = *statusBefore
	}
	if statusAfter != nil {
		a.StatusAfter = *statusAfter
	}
	if errorMessage != nil {
		a.ErrorMessage = *errorMessage
	}
	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &a.Data); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal action data")
		}
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal action metadata")
		}
	}
	return a, nil
}
