package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLifecycle(t *testing.T) {
	a := NewAction(uuid.New(), nil, ActionApprove, ActorInfo{UserID: uuid.New(), Role: "CROU_DIRECTOR"})
	assert.Equal(t, ActionPending, a.Status)

	require.ErrorIs(t, a.MarkCompleted(time.Now()), ErrInvalidTransition, "cannot complete before processing")

	require.NoError(t, a.MarkProcessing())
	now := time.Now()
	require.NoError(t, a.MarkCompleted(now))
	assert.Equal(t, ActionCompleted, a.Status)
	require.NotNil(t, a.ProcessedAt)

	require.ErrorIs(t, a.MarkProcessing(), ErrInvalidTransition, "completed actions are immutable")
}

func TestActionMarkFailed(t *testing.T) {
	a := NewAction(uuid.New(), nil, ActionEscalate, ActorInfo{UserID: uuid.New()})
	require.NoError(t, a.MarkProcessing())
	require.NoError(t, a.MarkFailed("identity unreachable", time.Now()))
	assert.Equal(t, ActionFailed, a.Status)
	assert.Equal(t, "identity unreachable", a.ErrorMessage)
}

func TestFullMessage(t *testing.T) {
	a := NewAction(uuid.New(), nil, ActionDelegate, ActorInfo{UserID: uuid.New()})
	a.Target = &ActorInfo{Name: "Awa Diop"}
	a.Comment = "on leave this week"
	assert.Equal(t, "delegate -> Awa Diop: on leave this week", a.FullMessage())
}
