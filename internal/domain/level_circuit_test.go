package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelCircuitBuildsOneStepPerLevel(t *testing.T) {
	tpl, err := LevelCircuit(LevelCircuitSpec{
		TenantID:     uuid.New(),
		Module:       ModuleFinancial,
		EntityType:   EntityBudget,
		TopLevel:     LevelMinister,
		TimeoutHours: 72,
	})
	require.NoError(t, err)

	assert.Equal(t, TemplateSequential, tpl.Type)
	assert.Equal(t, TemplateDraft, tpl.Status)
	require.Len(t, tpl.Steps, 4)

	roles := []string{"CROU_DIRECTOR", "REGIONAL_DIRECTOR", "CENTRAL_DIRECTOR", "MINISTER"}
	for i, step := range tpl.OrderedSteps() {
		assert.Equal(t, i, step.Position)
		assert.Equal(t, roles[i], step.Role)
		require.NotNil(t, step.Level)
		assert.Equal(t, i, *step.Level)
		assert.True(t, step.IsRequired)
		assert.True(t, step.CanRejectItem())
		assert.True(t, step.CanDelegateTo())
		require.NotNil(t, step.TimeoutHours)
		assert.Equal(t, 72, *step.TimeoutHours)
	}

	require.NoError(t, tpl.Activate(), "generated circuit activates cleanly")
}

func TestLevelCircuitPartialLadder(t *testing.T) {
	tpl, err := LevelCircuit(LevelCircuitSpec{
		TenantID:   uuid.New(),
		Module:     ModuleHousing,
		EntityType: EntityTransaction,
		TopLevel:   LevelRegionalDirector,
	})
	require.NoError(t, err)
	require.Len(t, tpl.Steps, 2)
	assert.Nil(t, tpl.Steps[0].TimeoutHours, "zero timeout disables deadlines")
}

func TestLevelCircuitValidation(t *testing.T) {
	_, err := LevelCircuit(LevelCircuitSpec{TopLevel: 7, Module: ModuleFinancial, EntityType: EntityBudget})
	require.Error(t, err)

	_, err = LevelCircuit(LevelCircuitSpec{TopLevel: LevelMinister, Module: "unknown", EntityType: EntityBudget})
	require.Error(t, err)
}

func TestValidationLevelLadder(t *testing.T) {
	assert.Equal(t, LevelRegionalDirector, LevelCROUDirector.Next())
	assert.Equal(t, LevelMinister, LevelCentralDirector.Next())
	assert.Equal(t, ValidationLevel(-1), LevelMinister.Next(), "nowhere above the minister")
}
