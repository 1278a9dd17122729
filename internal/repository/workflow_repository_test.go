package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crou-platform/be-validations/internal/domain"
)

// The role and permissions columns are declared NOT NULL; a nil bind would
// bypass their defaults and make the insert fail, so no bind value for a
// step row may ever be a nil pointer or nil slice.
func TestStepInsertArgsNeverBindNull(t *testing.T) {
	tpl, err := domain.LevelCircuit(domain.LevelCircuitSpec{
		TenantID:   uuid.New(),
		Module:     domain.ModuleFinancial,
		EntityType: domain.EntityBudget,
		TopLevel:   domain.LevelMinister,
	})
	require.NoError(t, err)
	require.NotEmpty(t, tpl.Steps)

	for i := range tpl.Steps {
		s := &tpl.Steps[i]
		require.Nil(t, s.Permissions, "circuit steps carry roles, not permissions")

		args := stepInsertArgs(s)
		require.Len(t, args, 14)
		assert.IsType(t, "", args[6], "role binds as a plain string")
		perms, ok := args[7].([]string)
		require.True(t, ok)
		assert.NotNil(t, perms, "nil permissions coalesce to an empty array")
	}
}

func TestStepInsertArgsAnyRoleStep(t *testing.T) {
	step := &domain.TemplateStep{
		ID:       uuid.New(),
		Name:     "Controle automatique",
		Position: 1,
		Type:     domain.StepAutomatic,
		Priority: domain.PriorityLow,
	}

	args := stepInsertArgs(step)
	assert.Equal(t, "", args[6], "unset role binds as the empty string")
	assert.Equal(t, []string{}, args[7])
}
