package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Module is the administrative area a workflow template belongs to.
type Module string

const (
	ModuleFinancial Module = "financial"
	ModuleStocks    Module = "stocks"
	ModuleHousing   Module = "housing"
	ModuleTransport Module = "transport"
	ModuleReports   Module = "reports"
)

// Valid reports whether m is a known module.
func (m Module) Valid() bool {
	switch m {
	case ModuleFinancial, ModuleStocks, ModuleHousing, ModuleTransport, ModuleReports:
		return true
	}
	return false
}

// TemplateType describes how a template's steps are traversed.
type TemplateType string

const (
	TemplateSequential  TemplateType = "sequential"
	TemplateParallel    TemplateType = "parallel"
	TemplateConditional TemplateType = "conditional"
)

// TemplateStatus is the lifecycle state of a template.
type TemplateStatus string

const (
	TemplateDraft    TemplateStatus = "draft"
	TemplateActive   TemplateStatus = "active"
	TemplateInactive TemplateStatus = "inactive"
	TemplateArchived TemplateStatus = "archived"
)

// StepType describes what a template step does.
type StepType string

const (
	StepApproval     StepType = "approval"
	StepAutomatic    StepType = "automatic"
	StepNotification StepType = "notification"
	StepCondition    StepType = "condition"
)

// Priority orders work for approvers; it has no engine semantics.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// TemplateStep is one stage of a validation circuit. Steps are immutable once
// their template is active.
type TemplateStep struct {
	ID           uuid.UUID
	TemplateID   uuid.UUID
	Name         string
	Position     int
	Type         StepType
	Priority     Priority
	Role         string   // authorized role; empty = any role
	Permissions  []string // all must be held by the actor
	TimeoutHours *int
	Level        *int // 0..3 for level circuits, nil otherwise
	IsRequired   bool
	CanSkip      bool
	CanReject    bool
	CanDelegate  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsValid reports whether the step definition is complete enough to activate.
func (s *TemplateStep) IsValid() bool {
	return s.Name != "" && s.Position >= 0 && s.Type != "" && s.Priority != ""
}

// HasRequiredPermissions checks whether an actor with the given role and
// permission set may act on this step. A set role must match exactly; every
// listed permission must be present.
func (s *TemplateStep) HasRequiredPermissions(role string, permissions []string) bool {
	if s.Role != "" && s.Role != role {
		return false
	}
	for _, required := range s.Permissions {
		if !slices.Contains(permissions, required) {
			return false
		}
	}
	return true
}

// TimeoutDuration returns the step timeout, or 0 when none is configured.
func (s *TemplateStep) TimeoutDuration() time.Duration {
	if s.TimeoutHours == nil {
		return 0
	}
	return time.Duration(*s.TimeoutHours) * time.Hour
}

// IsOverdue reports whether the step timeout elapsed between startedAt and now.
// Steps without a timeout never go overdue.
func (s *TemplateStep) IsOverdue(startedAt, now time.Time) bool {
	d := s.TimeoutDuration()
	if d == 0 || startedAt.IsZero() {
		return false
	}
	return now.Sub(startedAt) > d
}

// Only approval steps can ever be skipped, rejected or delegated; the flags
// on other step types are inert.

func (s *TemplateStep) CanBeSkipped() bool  { return s.CanSkip && s.Type == StepApproval }
func (s *TemplateStep) CanRejectItem() bool { return s.CanReject && s.Type == StepApproval }
func (s *TemplateStep) CanDelegateTo() bool { return s.CanDelegate && s.Type == StepApproval }

// WorkflowTemplate is a named, versioned validation circuit for one entity
// type within a module. It owns its steps.
type WorkflowTemplate struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	Module       Module
	Type         TemplateType
	Status       TemplateStatus
	EntityType   EntityType
	TriggerEvent string
	Conditions   map[string]any
	Version      int
	Steps        []TemplateStep
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanBeActivated reports whether the template may move draft -> active:
// it must be a draft with at least one step, every step valid, and no two
// steps sharing a position.
func (t *WorkflowTemplate) CanBeActivated() bool {
	return t.activationProblem() == nil
}

func (t *WorkflowTemplate) activationProblem() error {
	if t.Status != TemplateDraft {
		return fmt.Errorf("template is %s, not draft", t.Status)
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("template has no steps")
	}
	seen := make(map[int]struct{}, len(t.Steps))
	for i := range t.Steps {
		s := &t.Steps[i]
		if !s.IsValid() {
			return fmt.Errorf("step %q at position %d is invalid", s.Name, s.Position)
		}
		if _, dup := seen[s.Position]; dup {
			return fmt.Errorf("duplicate step position %d", s.Position)
		}
		seen[s.Position] = struct{}{}
	}
	return nil
}

// Activate moves the template draft -> active.
func (t *WorkflowTemplate) Activate() error {
	if err := t.activationProblem(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	t.Status = TemplateActive
	return nil
}

// Deactivate moves an active template to inactive.
func (t *WorkflowTemplate) Deactivate() error {
	if t.Status != TemplateActive {
		return fmt.Errorf("%w: template is %s, not active", ErrInvalidTransition, t.Status)
	}
	t.Status = TemplateInactive
	return nil
}

// Archive retires a template. Archived templates cannot be reactivated.
func (t *WorkflowTemplate) Archive() error {
	if t.Status == TemplateArchived {
		return fmt.Errorf("%w: template already archived", ErrInvalidTransition)
	}
	t.Status = TemplateArchived
	return nil
}

// OrderedSteps returns the steps sorted ascending by position. The receiver's
// slice is not mutated.
func (t *WorkflowTemplate) OrderedSteps() []TemplateStep {
	steps := slices.Clone(t.Steps)
	slices.SortStableFunc(steps, func(a, b TemplateStep) int {
		return a.Position - b.Position
	})
	return steps
}

// StepByID finds a step by id, or nil.
func (t *WorkflowTemplate) StepByID(id uuid.UUID) *TemplateStep {
	for i := range t.Steps {
		if t.Steps[i].ID == id {
			return &t.Steps[i]
		}
	}
	return nil
}

// NextStep returns the step after current in position order, or nil at the end
// or when current is not part of this template.
func (t *WorkflowTemplate) NextStep(currentID uuid.UUID) *TemplateStep {
	ordered := t.OrderedSteps()
	for i := range ordered {
		if ordered[i].ID == currentID {
			if i+1 < len(ordered) {
				next := ordered[i+1]
				return &next
			}
			return nil
		}
	}
	return nil
}

// PreviousStep returns the step before current in position order, or nil at
// the start or when current is not part of this template.
func (t *WorkflowTemplate) PreviousStep(currentID uuid.UUID) *TemplateStep {
	ordered := t.OrderedSteps()
	for i := range ordered {
		if ordered[i].ID == currentID {
			if i > 0 {
				prev := ordered[i-1]
				return &prev
			}
			return nil
		}
	}
	return nil
}

// FirstStep returns the lowest-position step, or nil for an empty template.
func (t *WorkflowTemplate) FirstStep() *TemplateStep {
	ordered := t.OrderedSteps()
	if len(ordered) == 0 {
		return nil
	}
	first := ordered[0]
	return &first
}

// Clone returns an unpersisted draft copy of the template with fresh ids,
// version 0 and all steps carried over.
func (t *WorkflowTemplate) Clone(name string) *WorkflowTemplate {
	if name == "" {
		name = t.Name + " (copy)"
	}
	clone := &WorkflowTemplate{
		ID:           uuid.New(),
		TenantID:     t.TenantID,
		Name:         name,
		Module:       t.Module,
		Type:         t.Type,
		Status:       TemplateDraft,
		EntityType:   t.EntityType,
		TriggerEvent: t.TriggerEvent,
		Conditions:   t.Conditions,
		Version:      0,
	}
	clone.Steps = make([]TemplateStep, len(t.Steps))
	for i, s := range t.Steps {
		s.ID = uuid.New()
		s.TemplateID = clone.ID
		clone.Steps[i] = s
	}
	return clone
}
