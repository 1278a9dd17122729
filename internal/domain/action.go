package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionType identifies what was done to an instance.
type ActionType string

const (
	ActionApprove  ActionType = "approve"
	ActionReject   ActionType = "reject"
	ActionDelegate ActionType = "delegate"
	ActionEscalate ActionType = "escalate"
	ActionSkip     ActionType = "skip"
	ActionComment  ActionType = "comment"
	ActionAssign   ActionType = "assign"
	ActionCancel   ActionType = "cancel"
	ActionExpire   ActionType = "expire"
	ActionStart    ActionType = "start"
	ActionComplete ActionType = "complete"
)

// ActionStatus is the processing lifecycle of an audit entry.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionProcessing ActionStatus = "processing"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
)

// ActorInfo identifies who performed or received an action.
type ActorInfo struct {
	UserID uuid.UUID
	Role   string
	Name   string
}

// WorkflowAction is one immutable audit record. Only its own processing
// lifecycle fields ever change after creation.
type WorkflowAction struct {
	ID           uuid.UUID
	InstanceID   uuid.UUID
	StepID       *uuid.UUID
	Type         ActionType
	Status       ActionStatus
	Actor        ActorInfo
	Target       *ActorInfo // delegate/assign/escalate target
	Comment      string
	Data         map[string]any
	Metadata     map[string]any
	StatusBefore string // business record status before the action
	StatusAfter  string
	ProcessedAt  *time.Time
	ErrorMessage string
	CreatedAt    time.Time
}

// NewAction creates a pending audit entry.
func NewAction(instanceID uuid.UUID, stepID *uuid.UUID, t ActionType, actor ActorInfo) *WorkflowAction {
	return &WorkflowAction{
		ID:         uuid.New(),
		InstanceID: instanceID,
		StepID:     stepID,
		Type:       t,
		Status:     ActionPending,
		Actor:      actor,
		CreatedAt:  time.Now(),
	}
}

// MarkProcessing moves pending -> processing.
func (a *WorkflowAction) MarkProcessing() error {
	if a.Status != ActionPending {
		return fmt.Errorf("%w: action is %s, not pending", ErrInvalidTransition, a.Status)
	}
	a.Status = ActionProcessing
	return nil
}

// MarkCompleted moves processing -> completed and stamps ProcessedAt.
func (a *WorkflowAction) MarkCompleted(now time.Time) error {
	if a.Status != ActionProcessing {
		return fmt.Errorf("%w: action is %s, not processing", ErrInvalidTransition, a.Status)
	}
	a.Status = ActionCompleted
	a.ProcessedAt = &now
	return nil
}

// MarkFailed moves processing -> failed, recording the error.
func (a *WorkflowAction) MarkFailed(msg string, now time.Time) error {
	if a.Status != ActionProcessing {
		return fmt.Errorf("%w: action is %s, not processing", ErrInvalidTransition, a.Status)
	}
	a.Status = ActionFailed
	a.ErrorMessage = msg
	a.ProcessedAt = &now
	return nil
}

// ProcessingTime returns ProcessedAt - CreatedAt, or 0 while unprocessed.
func (a *WorkflowAction) ProcessingTime() time.Duration {
	if a.ProcessedAt == nil {
		return 0
	}
	return a.ProcessedAt.Sub(a.CreatedAt)
}

// FullMessage composes a display string from type, comment and target.
func (a *WorkflowAction) FullMessage() string {
	msg := string(a.Type)
	if a.Target != nil && a.Target.Name != "" {
		msg += " -> " + a.Target.Name
	}
	if a.Comment != "" {
		msg += ": " + a.Comment
	}
	return msg
}
