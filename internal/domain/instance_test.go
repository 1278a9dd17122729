package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T) (*WorkflowInstance, *WorkflowTemplate) {
	t.Helper()
	tpl := draftTemplate(1, 2)
	entity := EntityRef{Type: EntityBudget, ID: uuid.New()}
	return NewInstance(tpl.TenantID, tpl, entity, PriorityMedium), tpl
}

func TestStartOnlyFromPending(t *testing.T) {
	in, tpl := newTestInstance(t)
	now := time.Now()

	require.NoError(t, in.Start(tpl.FirstStep(), now))
	assert.Equal(t, InstanceInProgress, in.Status)
	require.NotNil(t, in.StartedAt)
	require.NotNil(t, in.CurrentStepID)
	assert.Equal(t, tpl.FirstStep().ID, *in.CurrentStepID)

	err := in.Start(tpl.FirstStep(), now)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartSetsDeadlineFromStepTimeout(t *testing.T) {
	in, tpl := newTestInstance(t)
	hours := 48
	tpl.Steps[0].TimeoutHours = &hours
	now := time.Now()

	require.NoError(t, in.Start(tpl.FirstStep(), now))
	require.NotNil(t, in.ExpiresAt)
	assert.Equal(t, now.Add(48*time.Hour), *in.ExpiresAt)
}

func TestTerminalTransitionIsFinal(t *testing.T) {
	in, tpl := newTestInstance(t)
	now := time.Now()
	require.NoError(t, in.Start(tpl.FirstStep(), now))
	require.NoError(t, in.Complete(now))

	firstCompleted := *in.CompletedAt

	// every further transition conflicts and leaves the record untouched
	require.ErrorIs(t, in.Complete(now.Add(time.Hour)), ErrInvalidTransition)
	require.ErrorIs(t, in.Reject("late", now.Add(time.Hour)), ErrInvalidTransition)
	require.ErrorIs(t, in.Cancel("late", now.Add(time.Hour)), ErrInvalidTransition)
	require.ErrorIs(t, in.Expire(now.Add(time.Hour)), ErrInvalidTransition)

	assert.Equal(t, InstanceCompleted, in.Status)
	assert.Equal(t, firstCompleted, *in.CompletedAt, "first completion timestamp preserved")
}

func TestRejectRecordsReason(t *testing.T) {
	in, tpl := newTestInstance(t)
	now := time.Now()
	require.NoError(t, in.Start(tpl.FirstStep(), now))

	require.NoError(t, in.Reject("amount exceeds envelope", now))
	assert.Equal(t, InstanceRejected, in.Status)
	assert.Equal(t, "amount exceeds envelope", in.RejectionReason)
	require.NotNil(t, in.CompletedAt)
}

func TestCancelFromPendingAndInProgress(t *testing.T) {
	in, _ := newTestInstance(t)
	require.NoError(t, in.Cancel("withdrawn", time.Now()), "pending instances can be cancelled")

	in2, tpl := newTestInstance(t)
	require.NoError(t, in2.Start(tpl.FirstStep(), time.Now()))
	require.NoError(t, in2.Cancel("withdrawn", time.Now()))
	assert.Equal(t, "withdrawn", in2.CancellationReason)
}

func TestAdvanceClearsAssignmentAndRecomputesDeadline(t *testing.T) {
	in, tpl := newTestInstance(t)
	now := time.Now()
	hours := 24
	tpl.Steps[1].TimeoutHours = &hours

	require.NoError(t, in.Start(tpl.FirstStep(), now))
	in.AssignTo(uuid.New())
	in.DelegateTo(uuid.New())

	second := tpl.NextStep(tpl.FirstStep().ID)
	require.NotNil(t, second)
	require.NoError(t, in.AdvanceTo(second, now))

	assert.Nil(t, in.AssignedTo)
	assert.Nil(t, in.DelegatedTo)
	assert.Equal(t, second.ID, *in.CurrentStepID)
	require.NotNil(t, in.ExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour), *in.ExpiresAt)
}

func TestCurrentAssigneeDelegateWins(t *testing.T) {
	in, _ := newTestInstance(t)
	assert.Nil(t, in.CurrentAssignee())

	assignee := uuid.New()
	in.AssignTo(assignee)
	assert.Equal(t, assignee, *in.CurrentAssignee())

	delegate := uuid.New()
	in.DelegateTo(delegate)
	assert.Equal(t, delegate, *in.CurrentAssignee())

	// re-assignment supersedes the delegation
	in.AssignTo(assignee)
	assert.Equal(t, assignee, *in.CurrentAssignee())
	assert.Nil(t, in.DelegatedTo)
}

func TestOverdueIsReadTimeNotStatus(t *testing.T) {
	in, tpl := newTestInstance(t)
	now := time.Now()
	hours := 1
	tpl.Steps[0].TimeoutHours = &hours
	require.NoError(t, in.Start(tpl.FirstStep(), now))

	later := now.Add(2 * time.Hour)
	assert.True(t, in.IsOverdue(later))
	assert.Equal(t, InstanceInProgress, in.Status, "status unchanged until the sweeper expires it")
	assert.False(t, in.CanBeValidated(later))
	assert.True(t, in.ShouldEscalate(later))

	in.EscalatedTo = &uuid.UUID{}
	assert.False(t, in.ShouldEscalate(later), "already escalated")
}

func TestTimeRemainingClampedAtZero(t *testing.T) {
	in, tpl := newTestInstance(t)
	now := time.Now()
	hours := 1
	tpl.Steps[0].TimeoutHours = &hours
	require.NoError(t, in.Start(tpl.FirstStep(), now))

	assert.Equal(t, time.Hour, in.TimeRemaining(now))
	assert.Equal(t, time.Duration(0), in.TimeRemaining(now.Add(3*time.Hour)))

	noDeadline, _ := newTestInstance(t)
	assert.Equal(t, time.Duration(0), noDeadline.TimeRemaining(now))
}

func TestElapsedStopsAtCompletion(t *testing.T) {
	in, tpl := newTestInstance(t)
	start := time.Now()
	require.NoError(t, in.Start(tpl.FirstStep(), start))
	require.NoError(t, in.Complete(start.Add(30*time.Minute)))

	assert.Equal(t, 30*time.Minute, in.Elapsed(start.Add(5*time.Hour)))
}
