package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a guarded state transition is invoked
// from a state it does not accept. Callers map it to a conflict response.
var ErrInvalidTransition = errors.New("invalid state transition")

// InstanceStatus is the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstancePending    InstanceStatus = "pending"
	InstanceInProgress InstanceStatus = "in_progress"
	InstanceCompleted  InstanceStatus = "completed"
	InstanceRejected   InstanceStatus = "rejected"
	InstanceCancelled  InstanceStatus = "cancelled"
	InstanceExpired    InstanceStatus = "expired"
)

// WorkflowInstance is one live execution of a template against a business
// record. Version is the optimistic concurrency token checked on every write.
type WorkflowInstance struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	TemplateID         uuid.UUID
	CurrentStepID      *uuid.UUID
	Entity             EntityRef
	Status             InstanceStatus
	Priority           Priority
	AssignedTo         *uuid.UUID
	DelegatedTo        *uuid.UUID
	EscalatedTo        *uuid.UUID
	StartedAt          *time.Time
	CompletedAt        *time.Time
	ExpiresAt          *time.Time
	RejectionReason    string
	CancellationReason string
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewInstance creates a pending instance for a template and entity.
func NewInstance(tenantID uuid.UUID, template *WorkflowTemplate, entity EntityRef, priority Priority) *WorkflowInstance {
	if priority == "" {
		priority = PriorityMedium
	}
	return &WorkflowInstance{
		ID:         uuid.New(),
		TenantID:   tenantID,
		TemplateID: template.ID,
		Entity:     entity,
		Status:     InstancePending,
		Priority:   priority,
		CreatedAt:  time.Now(),
	}
}

// Start moves pending -> in_progress, stamps StartedAt and positions the
// instance on the template's first step.
func (in *WorkflowInstance) Start(first *TemplateStep, now time.Time) error {
	if in.Status != InstancePending {
		return fmt.Errorf("%w: cannot start instance in status %s", ErrInvalidTransition, in.Status)
	}
	in.Status = InstanceInProgress
	in.StartedAt = &now
	if first != nil {
		id := first.ID
		in.CurrentStepID = &id
		if d := first.TimeoutDuration(); d > 0 {
			expires := now.Add(d)
			in.ExpiresAt = &expires
		}
	}
	return nil
}

// AdvanceTo positions the instance on the next step and refreshes the
// step-level deadline.
func (in *WorkflowInstance) AdvanceTo(step *TemplateStep, now time.Time) error {
	if in.Status != InstanceInProgress {
		return fmt.Errorf("%w: cannot advance instance in status %s", ErrInvalidTransition, in.Status)
	}
	id := step.ID
	in.CurrentStepID = &id
	in.DelegatedTo = nil
	in.AssignedTo = nil
	if d := step.TimeoutDuration(); d > 0 {
		expires := now.Add(d)
		in.ExpiresAt = &expires
	} else {
		in.ExpiresAt = nil
	}
	return nil
}

// Complete moves in_progress -> completed.
func (in *WorkflowInstance) Complete(now time.Time) error {
	if in.Status != InstanceInProgress {
		return fmt.Errorf("%w: cannot complete instance in status %s", ErrInvalidTransition, in.Status)
	}
	in.Status = InstanceCompleted
	in.CompletedAt = &now
	return nil
}

// Reject moves in_progress -> rejected, recording the reason.
func (in *WorkflowInstance) Reject(reason string, now time.Time) error {
	if in.Status != InstanceInProgress {
		return fmt.Errorf("%w: cannot reject instance in status %s", ErrInvalidTransition, in.Status)
	}
	in.Status = InstanceRejected
	in.RejectionReason = reason
	in.CompletedAt = &now
	return nil
}

// Cancel moves pending or in_progress -> cancelled, recording the reason.
func (in *WorkflowInstance) Cancel(reason string, now time.Time) error {
	if in.Status != InstancePending && in.Status != InstanceInProgress {
		return fmt.Errorf("%w: cannot cancel instance in status %s", ErrInvalidTransition, in.Status)
	}
	in.Status = InstanceCancelled
	in.CancellationReason = reason
	in.CompletedAt = &now
	return nil
}

// Expire moves pending or in_progress -> expired.
func (in *WorkflowInstance) Expire(now time.Time) error {
	if in.Status != InstancePending && in.Status != InstanceInProgress {
		return fmt.Errorf("%w: cannot expire instance in status %s", ErrInvalidTransition, in.Status)
	}
	in.Status = InstanceExpired
	in.CompletedAt = &now
	return nil
}

// AssignTo sets the assignee. Assignment supersedes any delegation.
func (in *WorkflowInstance) AssignTo(userID uuid.UUID) {
	in.AssignedTo = &userID
	in.DelegatedTo = nil
}

// DelegateTo hands the current step to another user without changing the
// underlying assignment.
func (in *WorkflowInstance) DelegateTo(userID uuid.UUID) {
	in.DelegatedTo = &userID
}

// CurrentAssignee resolves who should act next: a delegate wins over the
// assignee.
func (in *WorkflowInstance) CurrentAssignee() *uuid.UUID {
	if in.DelegatedTo != nil {
		return in.DelegatedTo
	}
	return in.AssignedTo
}

// IsActive reports whether the instance still accepts actions.
func (in *WorkflowInstance) IsActive() bool {
	return in.Status == InstancePending || in.Status == InstanceInProgress
}

// IsFinished reports whether the instance reached a terminal state.
func (in *WorkflowInstance) IsFinished() bool {
	return !in.IsActive()
}

// IsOverdue is the read-time deadline check. It is independent of Status: an
// instance can be overdue while still reporting an active status until the
// sweeper applies Expire.
func (in *WorkflowInstance) IsOverdue(now time.Time) bool {
	return in.ExpiresAt != nil && now.After(*in.ExpiresAt)
}

// Elapsed returns time spent since StartedAt, up to CompletedAt when set.
// Zero when the instance never started.
func (in *WorkflowInstance) Elapsed(now time.Time) time.Duration {
	if in.StartedAt == nil {
		return 0
	}
	end := now
	if in.CompletedAt != nil {
		end = *in.CompletedAt
	}
	return end.Sub(*in.StartedAt)
}

// TimeRemaining returns time until the deadline, clamped at zero. Zero when
// no deadline is set.
func (in *WorkflowInstance) TimeRemaining(now time.Time) time.Duration {
	if in.ExpiresAt == nil {
		return 0
	}
	if rem := in.ExpiresAt.Sub(now); rem > 0 {
		return rem
	}
	return 0
}

// CanBeModified reports whether actions may still be applied.
func (in *WorkflowInstance) CanBeModified(now time.Time) bool {
	return in.IsActive() && !in.IsOverdue(now)
}

// CanBeAssigned reports whether assignment is still meaningful.
func (in *WorkflowInstance) CanBeAssigned(now time.Time) bool {
	return in.CanBeModified(now)
}

// CanBeDelegated additionally requires the current step to allow delegation.
func (in *WorkflowInstance) CanBeDelegated(step *TemplateStep, now time.Time) bool {
	return in.CanBeModified(now) && step != nil && step.CanDelegateTo()
}

// CanBeValidated reports whether the current step may be acted on right now:
// the instance is in progress and the deadline has not passed.
func (in *WorkflowInstance) CanBeValidated(now time.Time) bool {
	return in.Status == InstanceInProgress && !in.IsOverdue(now)
}

// ShouldEscalate reports whether the instance is overdue and has not been
// escalated yet. Escalation itself is the validation service's job.
func (in *WorkflowInstance) ShouldEscalate(now time.Time) bool {
	return in.IsActive() && in.IsOverdue(now) && in.EscalatedTo == nil
}
