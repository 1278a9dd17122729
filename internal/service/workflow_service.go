package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/crou-platform/be-validations/internal/domain"
	"github.com/crou-platform/be-validations/internal/platform/errors"
	"github.com/crou-platform/be-validations/internal/platform/logger"
)

// TemplateStore is the persistence surface the workflow service needs.
type TemplateStore interface {
	Create(ctx context.Context, t *domain.WorkflowTemplate) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowTemplate, error)
	GetActiveForEntity(ctx context.Context, tenantID uuid.UUID, module domain.Module, entityType domain.EntityType) (*domain.WorkflowTemplate, error)
	List(ctx context.Context, tenantID uuid.UUID, module *domain.Module) ([]*domain.WorkflowTemplate, error)
	UpdateStatus(ctx context.Context, t *domain.WorkflowTemplate) error
	AddStep(ctx context.Context, t *domain.WorkflowTemplate, step *domain.TemplateStep) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// WorkflowService manages validation circuit templates.
type WorkflowService struct {
	templates TemplateStore
	log       *logger.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(templates TemplateStore, log *logger.Logger) *WorkflowService {
	return &WorkflowService{templates: templates, log: log}
}

// CreateTemplateRequest describes a new draft template.
type CreateTemplateRequest struct {
	Name         string
	Module       domain.Module
	Type         domain.TemplateType
	EntityType   domain.EntityType
	TriggerEvent string
	Conditions   map[string]any
	Steps        []StepRequest
}

// StepRequest describes one step of a template.
type StepRequest struct {
	Name         string
	Position     int
	Type         domain.StepType
	Priority     domain.Priority
	Role         string
	Permissions  []string
	TimeoutHours *int
	Level        *int
	IsRequired   bool
	CanSkip      bool
	CanReject    bool
	CanDelegate  bool
}

// CreateTemplate creates a draft template with its steps.
func (s *WorkflowService) CreateTemplate(ctx context.Context, tenantID uuid.UUID, req *CreateTemplateRequest) (*domain.WorkflowTemplate, error) {
	if req.Name == "" {
		return nil, errors.InvalidInput("name", "template name is required")
	}
	if !req.Module.Valid() {
		return nil, errors.InvalidInput("module", "unknown module")
	}
	if !req.EntityType.Valid() {
		return nil, errors.InvalidInput("entity_type", "unknown entity type")
	}
	if req.Type == "" {
		req.Type = domain.TemplateSequential
	}

	t := &domain.WorkflowTemplate{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         req.Name,
		Module:       req.Module,
		Type:         req.Type,
		Status:       domain.TemplateDraft,
		EntityType:   req.EntityType,
		TriggerEvent: req.TriggerEvent,
		Conditions:   req.Conditions,
		Version:      0,
	}
	for _, sr := range req.Steps {
		t.Steps = append(t.Steps, buildStep(t.ID, sr))
	}

	if err := s.templates.Create(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("template_id", t.ID.String()).
		Str("module", string(t.Module)).
		Int("steps", len(t.Steps)).
		Msg("Workflow template created")
	return t, nil
}

// CreateLevelCircuit creates a draft hierarchical circuit template.
func (s *WorkflowService) CreateLevelCircuit(ctx context.Context, spec domain.LevelCircuitSpec) (*domain.WorkflowTemplate, error) {
	t, err := domain.LevelCircuit(spec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid level circuit")
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTemplate returns a template with its steps.
func (s *WorkflowService) GetTemplate(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	return s.templates.GetByID(ctx, tenantID, id)
}

// ListTemplates returns templates for a tenant, optionally by module.
func (s *WorkflowService) ListTemplates(ctx context.Context, tenantID uuid.UUID, module *domain.Module) ([]*domain.WorkflowTemplate, error) {
	return s.templates.List(ctx, tenantID, module)
}

// AddStep appends a step to a draft template.
func (s *WorkflowService) AddStep(ctx context.Context, tenantID, templateID uuid.UUID, req StepRequest) (*domain.TemplateStep, error) {
	t, err := s.templates.GetByID(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TemplateDraft {
		return nil, errors.Conflict("steps can only be added to draft templates")
	}

	step := buildStep(t.ID, req)
	if !step.IsValid() {
		return nil, errors.InvalidInput("step", "name, position, type and priority are required")
	}
	if err := s.templates.AddStep(ctx, t, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

// Activate moves a draft template to active, superseding any previously
// active template for the same module and entity type.
func (s *WorkflowService) Activate(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	t, err := s.templates.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	previous, err := s.templates.GetActiveForEntity(ctx, tenantID, t.Module, t.EntityType)
	if err != nil {
		return nil, err
	}

	if err := t.Activate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConflict, "cannot activate template")
	}
	t.Version++

	if previous != nil && previous.ID != t.ID {
		if err := previous.Deactivate(); err == nil {
			if err := s.templates.UpdateStatus(ctx, previous); err != nil {
				return nil, err
			}
		}
	}

	if err := s.templates.UpdateStatus(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("template_id", t.ID.String()).
		Int("version", t.Version).
		Msg("Workflow template activated")
	return t, nil
}

// Deactivate moves an active template to inactive.
func (s *WorkflowService) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	t, err := s.templates.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := t.Deactivate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConflict, "cannot deactivate template")
	}
	return s.templates.UpdateStatus(ctx, t)
}

// Archive retires a template.
func (s *WorkflowService) Archive(ctx context.Context, tenantID, id uuid.UUID) error {
	t, err := s.templates.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := t.Archive(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConflict, "cannot archive template")
	}
	return s.templates.UpdateStatus(ctx, t)
}

// Clone persists a draft copy of an existing template.
func (s *WorkflowService) Clone(ctx context.Context, tenantID, id uuid.UUID, name string) (*domain.WorkflowTemplate, error) {
	t, err := s.templates.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	clone := t.Clone(name)
	if err := s.templates.Create(ctx, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// DeleteDraft removes a draft template.
func (s *WorkflowService) DeleteDraft(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.templates.Delete(ctx, tenantID, id)
}

func buildStep(templateID uuid.UUID, req StepRequest) domain.TemplateStep {
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	stepType := req.Type
	if stepType == "" {
		stepType = domain.StepApproval
	}
	return domain.TemplateStep{
		ID:           uuid.New(),
		TemplateID:   templateID,
		Name:         req.Name,
		Position:     req.Position,
		Type:         stepType,
		Priority:     priority,
		Role:         req.Role,
		Permissions:  req.Permissions,
		TimeoutHours: req.TimeoutHours,
		Level:        req.Level,
		IsRequired:   req.IsRequired,
		CanSkip:      req.CanSkip,
		CanReject:    req.CanReject,
		CanDelegate:  req.CanDelegate,
	}
}
