package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crou-platform/be-validations/internal/domain"
	"github.com/crou-platform/be-validations/internal/metrics"
	"github.com/crou-platform/be-validations/internal/platform/errors"
	"github.com/crou-platform/be-validations/internal/platform/logger"
)

// Actor is the authenticated user performing a workflow operation.
type Actor struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Name        string
	Role        string
	Permissions []string
}

func (a Actor) info() domain.ActorInfo {
	return domain.ActorInfo{UserID: a.UserID, Role: a.Role, Name: a.Name}
}

// InstanceStore is the persistence surface for workflow instances.
type InstanceStore interface {
	Create(ctx context.Context, in *domain.WorkflowInstance, action *domain.WorkflowAction) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowInstance, error)
	GetActiveByEntity(ctx context.Context, tenantID uuid.UUID, entity domain.EntityRef) (*domain.WorkflowInstance, error)
	Update(ctx context.Context, in *domain.WorkflowInstance, action *domain.WorkflowAction) error
	ListPendingForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowInstance, error)
	ListByEntity(ctx context.Context, tenantID uuid.UUID, entity domain.EntityRef) ([]*domain.WorkflowInstance, error)
	ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*domain.WorkflowInstance, error)
}

// ActionStore is the persistence surface for the audit trail. Append covers
// entries written outside an instance transaction; UpdateLifecycle persists
// the processing outcome of entries that finish asynchronously.
type ActionStore interface {
	Append(ctx context.Context, a *domain.WorkflowAction) error
	UpdateLifecycle(ctx context.Context, a *domain.WorkflowAction) error
	GetByInstanceID(ctx context.Context, instanceID uuid.UUID) ([]*domain.WorkflowAction, error)
}

// EntityStatusStore updates one business record type in lockstep with its
// validation circuit.
type EntityStatusStore interface {
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string, updatedBy *uuid.UUID) error
}

// IdentityClientInterface resolves role membership for step assignment.
type IdentityClientInterface interface {
	GetUsersWithRole(ctx context.Context, tenantID uuid.UUID, role string) ([]uuid.UUID, error)
	GetUserRoles(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error)
}

// Notifier publishes workflow events. Implementations must be non-fatal.
type Notifier interface {
	PublishWorkflowEvent(ctx context.Context, eventType string, module domain.Module, in *domain.WorkflowInstance, actorID uuid.UUID, recipients []uuid.UUID, payload map[string]any)
}

// ValidationService orchestrates the multi-level validation workflow: it
// creates instances from active templates, applies guarded transitions,
// appends the audit trail and keeps business record statuses in lockstep.
type ValidationService struct {
	templates    TemplateStore
	instances    InstanceStore
	actions      ActionStore
	budgets      EntityStatusStore
	transactions EntityStatusStore
	identity     IdentityClientInterface
	notifier     Notifier
	log          *logger.Logger
}

// NewValidationService creates a new ValidationService.
func NewValidationService(
	templates TemplateStore,
	instances InstanceStore,
	actions ActionStore,
	budgets EntityStatusStore,
	transactions EntityStatusStore,
	identity IdentityClientInterface,
	notifier Notifier,
	log *logger.Logger,
) *ValidationService {
	return &ValidationService{
		templates:    templates,
		instances:    instances,
		actions:      actions,
		budgets:      budgets,
		transactions: transactions,
		identity:     identity,
		notifier:     notifier,
		log:          log,
	}
}

// ── Submission ────────────────────────────────────────────────────────────────

// Submit starts a validation run for a business record. Exactly one active
// instance may exist per record; resubmission while one is in flight conflicts.
func (s *ValidationService) Submit(ctx context.Context, actor Actor, module domain.Module, entity domain.EntityRef, priority domain.Priority) (*domain.WorkflowInstance, error) {
	template, err := s.templates.GetActiveForEntity(ctx, actor.TenantID, module, entity.Type)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, errors.Conflict(fmt.Sprintf("no active validation circuit for %s in module %s", entity.Type, module))
	}

	existing, err := s.instances.GetActiveByEntity(ctx, actor.TenantID, entity)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Conflict(fmt.Sprintf("entity %s already has an active validation run", entity))
	}

	now := time.Now()
	in := domain.NewInstance(actor.TenantID, template, entity, priority)
	first := template.FirstStep()
	if err := in.Start(first, now); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConflict, "cannot start instance")
	}
	s.assignApprover(ctx, in, first)

	action := s.completedAction(in, domain.ActionStart, actor, "", now)
	if err := s.instances.Create(ctx, in, action); err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(domain.ActionStart)).Inc()

	s.log.Info().
		Str("instance_id", in.ID.String()).
		Str("entity", in.Entity.String()).
		Str("template_id", template.ID.String()).
		Msg("Validation run started")

	s.notifier.PublishWorkflowEvent(ctx, "submitted", module, in, actor.UserID, nil, nil)
	if assignee := in.CurrentAssignee(); assignee != nil {
		s.notifier.PublishWorkflowEvent(ctx, "approval_required", module, in, actor.UserID, []uuid.UUID{*assignee}, nil)
	}
	return in, nil
}

// ── Approve ───────────────────────────────────────────────────────────────────

// Approve records approval of the current step and advances the circuit,
// completing it after the last approval step. Returns true when the run is
// now complete.
func (s *ValidationService) Approve(ctx context.Context, actor Actor, instanceID uuid.UUID, comment string) (complete bool, err error) {
	in, template, step, err := s.loadForAction(ctx, actor, instanceID)
	if err != nil {
		return false, err
	}
	if err := s.assertCanAct(in, step, actor); err != nil {
		return false, err
	}

	now := time.Now()
	next := s.nextApprovalStep(template, step)
	if next != nil {
		if err := in.AdvanceTo(next, now); err != nil {
			metrics.TransitionConflicts.WithLabelValues(string(domain.ActionApprove)).Inc()
			return false, errors.Wrap(err, errors.ErrCodeConflict, "cannot advance instance")
		}
		s.assignApprover(ctx, in, next)
	} else {
		if err := in.Complete(now); err != nil {
			metrics.TransitionConflicts.WithLabelValues(string(domain.ActionApprove)).Inc()
			return false, errors.Wrap(err, errors.ErrCodeConflict, "cannot complete instance")
		}
	}

	action := s.completedAction(in, domain.ActionApprove, actor, comment, now)
	action.StepID = &step.ID
	if in.Status == domain.InstanceCompleted {
		action.StatusBefore, action.StatusAfter = "submitted", "validated"
	}
	if err := s.instances.Update(ctx, in, action); err != nil {
		return false, err
	}
	metrics.Transitions.WithLabelValues(string(domain.ActionApprove)).Inc()

	if in.Status == domain.InstanceCompleted {
		s.syncEntityStatus(ctx, in, "validated", actor.UserID)
		s.notifier.PublishWorkflowEvent(ctx, "approved", template.Module, in, actor.UserID, nil, nil)
		return true, nil
	}

	if assignee := in.CurrentAssignee(); assignee != nil {
		s.notifier.PublishWorkflowEvent(ctx, "approval_required", template.Module, in, actor.UserID, []uuid.UUID{*assignee}, nil)
	}
	return false, nil
}

// nextApprovalStep walks forward from current, skipping automatic,
// notification and condition steps, which need no human action.
func (s *ValidationService) nextApprovalStep(template *domain.WorkflowTemplate, current *domain.TemplateStep) *domain.TemplateStep {
	next := template.NextStep(current.ID)
	for next != nil && next.Type != domain.StepApproval {
		next = template.NextStep(next.ID)
	}
	return next
}

// ── Reject ────────────────────────────────────────────────────────────────────

// Reject terminates the run at the current step and returns the business
// record to its rejected state.
func (s *ValidationService) Reject(ctx context.Context, actor Actor, instanceID uuid.UUID, reason string) error {
	if reason == "" {
		return errors.InvalidInput("reason", "rejection reason is required")
	}

	in, template, step, err := s.loadForAction(ctx, actor, instanceID)
	if err != nil {
		return err
	}
	if !step.CanRejectItem() {
		return errors.Conflict(fmt.Sprintf("step %q does not allow rejection", step.Name))
	}
	if err := s.assertCanAct(in, step, actor); err != nil {
		return err
	}

	now := time.Now()
	if err := in.Reject(reason, now); err != nil {
		metrics.TransitionConflicts.WithLabelValues(string(domain.ActionReject)).Inc()
		return errors.Wrap(err, errors.ErrCodeConflict, "cannot reject instance")
	}

	action := s.completedAction(in, domain.ActionReject, actor, reason, now)
	action.StepID = &step.ID
	action.StatusBefore, action.StatusAfter = "submitted", "rejected"
	if err := s.instances.Update(ctx, in, action); err != nil {
		return err
	}
	metrics.Transitions.WithLabelValues(string(domain.ActionReject)).Inc()

	s.syncEntityStatus(ctx, in, "rejected", actor.UserID)
	s.notifier.PublishWorkflowEvent(ctx, "rejected", template.Module, in, actor.UserID, nil,
		map[string]any{"reason": reason})
	return nil
}

// ── Delegate ──────────────────────────────────────────────────────────────────

// Delegate hands the current step to another user.
func (s *ValidationService) Delegate(ctx context.Context, actor Actor, instanceID, delegateTo uuid.UUID, reason string) error {
	if reason == "" {
		return errors.InvalidInput("reason", "delegation reason is required")
	}

	in, template, step, err := s.loadForAction(ctx, actor, instanceID)
	if err != nil {
		return err
	}
	if !in.CanBeDelegated(step, time.Now()) {
		return errors.Conflict(fmt.Sprintf("step %q does not allow delegation", step.Name))
	}
	if err := s.assertCanAct(in, step, actor); err != nil {
		return err
	}

	in.DelegateTo(delegateTo)

	action := s.completedAction(in, domain.ActionDelegate, actor, reason, time.Now())
	action.StepID = &step.ID
	action.Target = &domain.ActorInfo{UserID: delegateTo}
	if err := s.instances.Update(ctx, in, action); err != nil {
		return err
	}
	metrics.Transitions.WithLabelValues(string(domain.ActionDelegate)).Inc()

	s.notifier.PublishWorkflowEvent(ctx, "delegated", template.Module, in, actor.UserID,
		[]uuid.UUID{delegateTo}, map[string]any{"reason": reason})
	return nil
}

// ── Assign ────────────────────────────────────────────────────────────────────

// Assign sets the approver of the current step, clearing any delegation.
// When the step requires a role, the assignee's membership is verified
// against the identity service.
func (s *ValidationService) Assign(ctx context.Context, actor Actor, instanceID, assignTo uuid.UUID) error {
	in, template, step, err := s.loadForAction(ctx, actor, instanceID)
	if err != nil {
		return err
	}
	if !in.CanBeAssigned(time.Now()) {
		return errors.Conflict("instance can no longer be assigned")
	}
	if err := s.assertHoldsRole(ctx, actor.TenantID, assignTo, step.Role); err != nil {
		return err
	}

	in.AssignTo(assignTo)

	action := s.completedAction(in, domain.ActionAssign, actor, "", time.Now())
	action.StepID = &step.ID
	action.Target = &domain.ActorInfo{UserID: assignTo}
	if err := s.instances.Update(ctx, in, action); err != nil {
		return err
	}
	metrics.Transitions.WithLabelValues(string(domain.ActionAssign)).Inc()

	s.notifier.PublishWorkflowEvent(ctx, "approval_required", template.Module, in, actor.UserID,
		[]uuid.UUID{assignTo}, nil)
	return nil
}

// ── Skip ──────────────────────────────────────────────────────────────────────

// Skip advances past an optional step without approval.
func (s *ValidationService) Skip(ctx context.Context, actor Actor, instanceID uuid.UUID, comment string) (complete bool, err error) {
	in, template, step, err := s.loadForAction(ctx, actor, instanceID)
	if err != nil {
		return false, err
	}
	if !step.CanBeSkipped() || step.IsRequired {
		return false, errors.Conflict(fmt.Sprintf("step %q cannot be skipped", step.Name))
	}
	if err := s.assertCanAct(in, step, actor); err != nil {
		return false, err
	}

	now := time.Now()
	next := s.nextApprovalStep(template, step)
	if next != nil {
		if err := in.AdvanceTo(next, now); err != nil {
			return false, errors.Wrap(err, errors.ErrCodeConflict, "cannot advance instance")
		}
		s.assignApprover(ctx, in, next)
	} else {
		if err := in.Complete(now); err != nil {
			return false, errors.Wrap(err, errors.ErrCodeConflict, "cannot complete instance")
		}
	}

	action := s.completedAction(in, domain.ActionSkip, actor, comment, now)
	action.StepID = &step.ID
	if err := s.instances.Update(ctx, in, action); err != nil {
		return false, err
	}
	metrics.Transitions.WithLabelValues(string(domain.ActionSkip)).Inc()

	if in.Status == domain.InstanceCompleted {
		s.syncEntityStatus(ctx, in, "validated", actor.UserID)
		s.notifier.PublishWorkflowEvent(ctx, "approved", template.Module, in, actor.UserID, nil, nil)
		return true, nil
	}
	return false, nil
}

// ── Escalate ──────────────────────────────────────────────────────────────────

// Escalate moves an overdue step up one validation level: the instance is
// reassigned to an approver holding the next level's role and its deadline is
// extended by the step timeout.
func (s *ValidationService) Escalate(ctx context.Context, actor Actor, instanceID uuid.UUID) error {
	in, template, step, err := s.loadInstance(ctx, actor, instanceID)
	if err != nil {
		return err
	}
	if err := s.assertCanEscalate(ctx, in, actor); err != nil {
		return err
	}

	now := time.Now()
	if !in.ShouldEscalate(now) {
		return errors.Conflict("instance is not overdue or was already escalated")
	}
	if step == nil || step.Level == nil {
		return errors.Conflict("current step is not part of a level circuit")
	}

	nextLevel := domain.ValidationLevel(*step.Level).Next()
	if nextLevel < 0 {
		return errors.Conflict("already at the top validation level, nowhere to escalate")
	}

	var target *uuid.UUID
	users, err := s.identity.GetUsersWithRole(ctx, actor.TenantID, nextLevel.Role())
	if err != nil {
		s.log.Warn().Err(err).Str("role", nextLevel.Role()).Msg("Could not fetch users for escalation role")
	} else if len(users) > 0 {
		target = &users[0]
	}
	if target == nil {
		return errors.Conflict(fmt.Sprintf("no approver available for role %s", nextLevel.Role()))
	}

	in.EscalatedTo = target
	in.AssignTo(*target)
	if d := step.TimeoutDuration(); d > 0 {
		deadline := now.Add(d)
		in.ExpiresAt = &deadline
	}

	action := s.completedAction(in, domain.ActionEscalate, actor, "", now)
	action.StepID = &step.ID
	action.Target = &domain.ActorInfo{UserID: *target, Role: nextLevel.Role()}
	if err := s.instances.Update(ctx, in, action); err != nil {
		return err
	}
	metrics.Transitions.WithLabelValues(string(domain.ActionEscalate)).Inc()

	s.notifier.PublishWorkflowEvent(ctx, "escalated", template.Module, in, actor.UserID,
		[]uuid.UUID{*target}, map[string]any{"level": int(nextLevel)})
	return nil
}

// ── Cancel ────────────────────────────────────────────────────────────────────

// Cancel lets the original submitter withdraw an active run; the business
// record returns to draft.
func (s *ValidationService) Cancel(ctx context.Context, actor Actor, instanceID uuid.UUID, reason string) error {
	in, template, _, err := s.loadInstance(ctx, actor, instanceID)
	if err != nil {
		return err
	}

	submitter, err := s.submitterOf(ctx, in)
	if err != nil {
		return err
	}
	if submitter != actor.UserID {
		return errors.New(errors.ErrCodeForbidden, "only the submitter can cancel the validation run")
	}

	now := time.Now()
	if err := in.Cancel(reason, now); err != nil {
		metrics.TransitionConflicts.WithLabelValues(string(domain.ActionCancel)).Inc()
		return errors.Wrap(err, errors.ErrCodeConflict, "cannot cancel instance")
	}

	action := s.completedAction(in, domain.ActionCancel, actor, reason, now)
	action.StatusBefore, action.StatusAfter = "submitted", "draft"
	if err := s.instances.Update(ctx, in, action); err != nil {
		return err
	}
	metrics.Transitions.WithLabelValues(string(domain.ActionCancel)).Inc()

	s.syncEntityStatus(ctx, in, "draft", actor.UserID)
	s.notifier.PublishWorkflowEvent(ctx, "cancelled", template.Module, in, actor.UserID, nil,
		map[string]any{"reason": reason})
	return nil
}

// ── Comment ───────────────────────────────────────────────────────────────────

// Comment appends a comment to the audit trail. The instance itself is
// untouched, so the entry is written directly instead of through a
// version-bumping instance update.
func (s *ValidationService) Comment(ctx context.Context, actor Actor, instanceID uuid.UUID, comment string) error {
	if comment == "" {
		return errors.InvalidInput("comment", "comment text is required")
	}
	in, _, _, err := s.loadInstance(ctx, actor, instanceID)
	if err != nil {
		return err
	}

	action := s.completedAction(in, domain.ActionComment, actor, comment, time.Now())
	action.StepID = in.CurrentStepID
	return s.actions.Append(ctx, action)
}

// ── Expiry ────────────────────────────────────────────────────────────────────

// ExpireOverdue applies the guarded expire transition to every instance whose
// deadline passed. Called by the sweeper; returns how many were expired.
func (s *ValidationService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	now := time.Now()
	overdue, err := s.instances.ListOverdue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, in := range overdue {
		if err := in.Expire(now); err != nil {
			// Raced with a concurrent transition; skip.
			metrics.TransitionConflicts.WithLabelValues(string(domain.ActionExpire)).Inc()
			continue
		}

		// The audit entry stays pending until the business record is
		// synced; its lifecycle records whether that sync worked.
		system := Actor{TenantID: in.TenantID, Name: "system", Role: "SYSTEM"}
		action := domain.NewAction(in.ID, in.CurrentStepID, domain.ActionExpire, system.info())
		action.Comment = "validation deadline passed"
		action.StatusBefore, action.StatusAfter = "submitted", "draft"
		if err := s.instances.Update(ctx, in, action); err != nil {
			s.log.Warn().Err(err).Str("instance_id", in.ID.String()).Msg("Failed to expire overdue instance")
			continue
		}
		expired++
		metrics.Transitions.WithLabelValues(string(domain.ActionExpire)).Inc()
		metrics.SweptInstances.Inc()

		_ = action.MarkProcessing()
		if err := s.syncEntityStatus(ctx, in, "draft", uuid.Nil); err != nil {
			_ = action.MarkFailed(err.Error(), time.Now())
		} else {
			_ = action.MarkCompleted(time.Now())
		}
		if err := s.actions.UpdateLifecycle(ctx, action); err != nil {
			s.log.Warn().Err(err).Str("action_id", action.ID.String()).Msg("Failed to persist expire action lifecycle")
		}

		if template, err := s.templates.GetByID(ctx, in.TenantID, in.TemplateID); err == nil {
			s.notifier.PublishWorkflowEvent(ctx, "expired", template.Module, in, uuid.Nil, nil, nil)
		}
	}
	return expired, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetInstance returns an instance with its template steps and audit trail.
func (s *ValidationService) GetInstance(ctx context.Context, actor Actor, instanceID uuid.UUID) (*domain.WorkflowInstance, *domain.WorkflowTemplate, []*domain.WorkflowAction, error) {
	in, err := s.instances.GetByID(ctx, actor.TenantID, instanceID)
	if err != nil {
		return nil, nil, nil, err
	}
	template, err := s.templates.GetByID(ctx, actor.TenantID, in.TemplateID)
	if err != nil {
		return nil, nil, nil, err
	}
	actions, err := s.actions.GetByInstanceID(ctx, in.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return in, template, actions, nil
}

// PendingForUser returns instances awaiting action from the actor.
func (s *ValidationService) PendingForUser(ctx context.Context, actor Actor) ([]*domain.WorkflowInstance, error) {
	return s.instances.ListPendingForUser(ctx, actor.TenantID, actor.UserID)
}

// History returns every validation run for a business record.
func (s *ValidationService) History(ctx context.Context, actor Actor, entity domain.EntityRef) ([]*domain.WorkflowInstance, error) {
	return s.instances.ListByEntity(ctx, actor.TenantID, entity)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// loadForAction loads an instance and verifies it can still be acted on.
func (s *ValidationService) loadForAction(ctx context.Context, actor Actor, instanceID uuid.UUID) (*domain.WorkflowInstance, *domain.WorkflowTemplate, *domain.TemplateStep, error) {
	in, template, step, err := s.loadInstance(ctx, actor, instanceID)
	if err != nil {
		return nil, nil, nil, err
	}

	now := time.Now()
	if !in.CanBeValidated(now) {
		if in.IsOverdue(now) {
			return nil, nil, nil, errors.Conflict("validation deadline has passed, the run must be escalated or expired")
		}
		return nil, nil, nil, errors.Conflict(fmt.Sprintf("instance is %s, no further actions accepted", in.Status))
	}
	if step == nil {
		return nil, nil, nil, errors.Conflict("instance has no current step")
	}
	return in, template, step, nil
}

func (s *ValidationService) loadInstance(ctx context.Context, actor Actor, instanceID uuid.UUID) (*domain.WorkflowInstance, *domain.WorkflowTemplate, *domain.TemplateStep, error) {
	in, err := s.instances.GetByID(ctx, actor.TenantID, instanceID)
	if err != nil {
		return nil, nil, nil, err
	}
	template, err := s.templates.GetByID(ctx, actor.TenantID, in.TemplateID)
	if err != nil {
		return nil, nil, nil, err
	}
	var step *domain.TemplateStep
	if in.CurrentStepID != nil {
		step = template.StepByID(*in.CurrentStepID)
	}
	return in, template, step, nil
}

// assertCanAct checks that the actor is the assigned or delegated approver,
// or — for unassigned steps — holds the step's role and permissions.
func (s *ValidationService) assertCanAct(in *domain.WorkflowInstance, step *domain.TemplateStep, actor Actor) error {
	if in.AssignedTo != nil && *in.AssignedTo == actor.UserID {
		return nil
	}
	if in.DelegatedTo != nil && *in.DelegatedTo == actor.UserID {
		return nil
	}
	if in.AssignedTo == nil && in.DelegatedTo == nil {
		if step.HasRequiredPermissions(actor.Role, actor.Permissions) {
			return nil
		}
		return errors.New(errors.ErrCodeForbidden,
			fmt.Sprintf("role %s lacks the permissions required by step %q", actor.Role, step.Name))
	}
	return errors.New(errors.ErrCodeForbidden, "user is not authorized to act on this validation step")
}

// assignApprover pre-assigns the first available user holding the step role.
// Failure leaves the step unassigned so any user with the role can act.
func (s *ValidationService) assignApprover(ctx context.Context, in *domain.WorkflowInstance, step *domain.TemplateStep) {
	if step == nil || step.Role == "" {
		return
	}
	users, err := s.identity.GetUsersWithRole(ctx, in.TenantID, step.Role)
	if err != nil {
		s.log.Warn().Err(err).Str("role", step.Role).Msg("Could not fetch users for role; step will be unassigned")
		return
	}
	if len(users) > 0 {
		in.AssignTo(users[0])
	}
}

// assertCanEscalate limits escalation to the people already involved in the
// run: the current assignee or delegate, and the original submitter.
func (s *ValidationService) assertCanEscalate(ctx context.Context, in *domain.WorkflowInstance, actor Actor) error {
	if in.AssignedTo != nil && *in.AssignedTo == actor.UserID {
		return nil
	}
	if in.DelegatedTo != nil && *in.DelegatedTo == actor.UserID {
		return nil
	}
	submitter, err := s.submitterOf(ctx, in)
	if err != nil {
		return err
	}
	if submitter == actor.UserID {
		return nil
	}
	return errors.New(errors.ErrCodeForbidden, "only the submitter or the current approver can escalate the run")
}

// assertHoldsRole verifies a user holds the role a step requires. An
// unreachable identity service only logs; assignment stays possible during
// an identity outage.
func (s *ValidationService) assertHoldsRole(ctx context.Context, tenantID, userID uuid.UUID, role string) error {
	if role == "" {
		return nil
	}
	roles, err := s.identity.GetUserRoles(ctx, tenantID, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Could not verify role membership for assignment")
		return nil
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return errors.Conflict(fmt.Sprintf("user does not hold the %s role required by the step", role))
}

// completedAction builds an audit entry that has already gone through its
// processing lifecycle — synchronous actions complete immediately.
func (s *ValidationService) completedAction(in *domain.WorkflowInstance, t domain.ActionType, actor Actor, comment string, now time.Time) *domain.WorkflowAction {
	action := domain.NewAction(in.ID, in.CurrentStepID, t, actor.info())
	action.Comment = comment
	_ = action.MarkProcessing()
	_ = action.MarkCompleted(now)
	return action
}

// submitterOf resolves who started the run from its first audit entry.
func (s *ValidationService) submitterOf(ctx context.Context, in *domain.WorkflowInstance) (uuid.UUID, error) {
	actions, err := s.actions.GetByInstanceID(ctx, in.ID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, a := range actions {
		if a.Type == domain.ActionStart {
			return a.Actor.UserID, nil
		}
	}
	return uuid.Nil, errors.New(errors.ErrCodeInternal, "instance has no start action")
}

// syncEntityStatus updates the business record in lockstep with the run
// outcome. Purchase orders and contracts live in other services, which react
// to the published events instead. Failures are logged and returned; callers
// on the synchronous path ignore them, the run outcome stands regardless.
func (s *ValidationService) syncEntityStatus(ctx context.Context, in *domain.WorkflowInstance, status string, actorID uuid.UUID) error {
	var updatedBy *uuid.UUID
	if actorID != uuid.Nil {
		updatedBy = &actorID
	}

	var err error
	switch in.Entity.Type {
	case domain.EntityBudget:
		err = s.budgets.UpdateStatus(ctx, in.TenantID, in.Entity.ID, status, updatedBy)
	case domain.EntityTransaction:
		err = s.transactions.UpdateStatus(ctx, in.TenantID, in.Entity.ID, status, updatedBy)
	case domain.EntityPurchaseOrder, domain.EntityContract:
		return nil
	}
	if err != nil {
		s.log.Warn().Err(err).
			Str("entity", in.Entity.String()).
			Str("status", status).
			Msg("Failed to sync business record status")
	}
	return err
}
