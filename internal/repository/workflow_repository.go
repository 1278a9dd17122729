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

// WorkflowRepository manages workflow templates and their steps. Template and
// step creation is always done together in a single transaction.
type WorkflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create inserts a template and its steps in one transaction.
func (r *WorkflowRepository) Create(ctx context.Context, t *domain.WorkflowTemplate) error {
	conditionsJSON, err := marshalJSON(t.Conditions)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal template conditions")
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		templateQuery := `
			INSERT INTO workflow_templates
			    (id, tenant_id, name, module, type, status,
			     entity_type, trigger_event, conditions, version)
			VALUES ($1, $2, $3, $4::workflow_module, $5::workflow_type, $6::template_status,
			        $7::entity_type, $8, $9, $10)
			RETURNING created_at, updated_at
		`

		err := tx.QueryRow(ctx, templateQuery,
			t.ID,
			t.TenantID,
			t.Name,
			t.Module,
			t.Type,
			t.Status,
			t.EntityType,
			t.TriggerEvent,
			conditionsJSON,
			t.Version,
		).Scan(&t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create workflow template")
		}

		return r.insertSteps(ctx, tx, t)
	})
}

func (r *WorkflowRepository) insertSteps(ctx context.Context, tx pgx.Tx, t *domain.WorkflowTemplate) error {
	stepQuery := `
		INSERT INTO workflow_template_steps
		    (id, template_id, name, position, type, priority,
		     role, permissions, timeout_hours, level,
		     is_required, can_skip, can_reject, can_delegate)
		VALUES ($1, $2, $3, $4, $5::step_type, $6::step_priority,
		        $7, $8, $9, $10,
		        $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	for i := range t.Steps {
		s := &t.Steps[i]
		s.TemplateID = t.ID

		err := tx.QueryRow(ctx, stepQuery, stepInsertArgs(s)...).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create template step")
		}
	}
	return nil
}

// stepInsertArgs builds the bind values for one step row. The role and
// permissions columns are NOT NULL, so an unset role binds as the empty
// string and a nil permission set as an empty array, never as SQL NULL.
func stepInsertArgs(s *domain.TemplateStep) []any {
	permissions := s.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	return []any{
		s.ID,
		s.TemplateID,
		s.Name,
		s.Position,
		s.Type,
		s.Priority,
		s.Role,
		permissions,
		s.TimeoutHours,
		s.Level,
		s.IsRequired,
		s.CanSkip,
		s.CanReject,
		s.CanDelegate,
	}
}

// GetByID retrieves a template with its steps.
func (r *WorkflowRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	query := `
		SELECT id, tenant_id, name, module, type, status,
		       entity_type, trigger_event, conditions, version,
		       created_at, updated_at
		FROM workflow_templates
		WHERE id = $1 AND tenant_id = $2
	`

	t, err := r.scanTemplate(r.db.QueryRow(ctx, query, id, tenantID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow_template", id.String())
	}
	if err != nil {
		return nil, err
	}

	t.Steps, err = r.getSteps(ctx, t.ID)
	return t, err
}

// GetActiveForEntity returns the active template for an entity type within a
// module, or nil when none is configured.
func (r *WorkflowRepository) GetActiveForEntity(ctx context.Context, tenantID uuid.UUID, module domain.Module, entityType domain.EntityType) (*domain.WorkflowTemplate, error) {
	query := `
		SELECT id, tenant_id, name, module, type, status,
		       entity_type, trigger_event, conditions, version,
		       created_at, updated_at
		FROM workflow_templates
		WHERE tenant_id = $1
		  AND module = $2::workflow_module
		  AND entity_type = $3::entity_type
		  AND status = 'active'
		ORDER BY version DESC
		LIMIT 1
	`

	t, err := r.scanTemplate(r.db.QueryRow(ctx, query, tenantID, module, entityType))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.Steps, err = r.getSteps(ctx, t.ID)
	return t, err
}

// List returns all templates for a tenant, optionally filtered by module.
func (r *WorkflowRepository) List(ctx context.Context, tenantID uuid.UUID, module *domain.Module) ([]*domain.WorkflowTemplate, error) {
	query := `
		SELECT id, tenant_id, name, module, type, status,
		       entity_type, trigger_event, conditions, version,
		       created_at, updated_at
		FROM workflow_templates
		WHERE tenant_id = $1
	`
	args := []any{tenantID}
	if module != nil {
		query += " AND module = $2::workflow_module"
		args = append(args, *module)
	}
	query += " ORDER BY name ASC, version DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list workflow templates")
	}
	defer rows.Close()

	var templates []*domain.WorkflowTemplate
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow template")
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateStatus persists a template status change and bumps the version when
// activating.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, t *domain.WorkflowTemplate) error {
	query := `
		UPDATE workflow_templates
		SET status     = $3::template_status,
		    version    = $4,
		    updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, t.ID, t.TenantID, t.Status, t.Version).Scan(&t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return errors.NotFound("workflow_template", t.ID.String())
	}
	return err
}

// AddStep appends a step to a draft template.
func (r *WorkflowRepository) AddStep(ctx context.Context, t *domain.WorkflowTemplate, step *domain.TemplateStep) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		saved := t.Steps
		t.Steps = []domain.TemplateStep{*step}
		err := r.insertSteps(ctx, tx, t)
		if err != nil {
			t.Steps = saved
			return err
		}
		*step = t.Steps[0]
		t.Steps = append(saved, *step)
		return nil
	})
}

// Delete removes a template and, through the cascade, its steps. Only drafts
// can be deleted.
func (r *WorkflowRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `
		DELETE FROM workflow_templates
		WHERE id = $1 AND tenant_id = $2 AND status = 'draft'
	`

	tag, err := r.db.Exec(ctx, query, id, tenantID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete workflow template")
	}
	if tag.RowsAffected() == 0 {
		return errors.Conflict("template not found or not a draft")
	}
	return nil
}

func (r *WorkflowRepository) getSteps(ctx context.Context, templateID uuid.UUID) ([]domain.TemplateStep, error) {
	query := `
		SELECT id, template_id, name, position, type, priority,
		       role, permissions, timeout_hours, level,
		       is_required, can_skip, can_reject, can_delegate,
		       created_at, updated_at
		FROM workflow_template_steps
		WHERE template_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.Query(ctx, query, templateID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get template steps")
	}
	defer rows.Close()

	var steps []domain.TemplateStep
	for rows.Next() {
		var s domain.TemplateStep
		var role *string
		err := rows.Scan(
			&s.ID,
			&s.TemplateID,
			&s.Name,
			&s.Position,
			&s.Type,
			&s.Priority,
			&role,
			&s.Permissions,
			&s.TimeoutHours,
			&s.Level,
			&s.IsRequired,
			&s.CanSkip,
			&s.CanReject,
			&s.CanDelegate,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan template step")
		}
		if role != nil {
			s.Role = *role
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type templateScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanTemplate(row templateScanner) (*domain.WorkflowTemplate, error) {
	t := &domain.WorkflowTemplate{}
	var conditionsJSON []byte

	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.Name,
		&t.Module,
		&t.Type,
		&t.Status,
		&t.EntityType,
		&t.TriggerEvent,
		&conditionsJSON,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if conditionsJSON != nil {
		if err := json.Unmarshal(conditionsJSON, &t.Conditions); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal template conditions")
		}
	}
	return t, nil
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
