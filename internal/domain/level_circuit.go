package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationLevel is a rung of the hierarchical approval ladder used by the
// financial circuits.
type ValidationLevel int

const (
	LevelCROUDirector     ValidationLevel = 0
	LevelRegionalDirector ValidationLevel = 1
	LevelCentralDirector  ValidationLevel = 2
	LevelMinister         ValidationLevel = 3
)

// Role returns the role name authorized at this level.
func (l ValidationLevel) Role() string {
	switch l {
	case LevelCROUDirector:
		return "CROU_DIRECTOR"
	case LevelRegionalDirector:
		return "REGIONAL_DIRECTOR"
	case LevelCentralDirector:
		return "CENTRAL_DIRECTOR"
	case LevelMinister:
		return "MINISTER"
	}
	return ""
}

// Valid reports whether l is within the ladder.
func (l ValidationLevel) Valid() bool {
	return l >= LevelCROUDirector && l <= LevelMinister
}

// Next returns the level to escalate to, or -1 at the top.
func (l ValidationLevel) Next() ValidationLevel {
	if l >= LevelMinister {
		return -1
	}
	return l + 1
}

// LevelCircuitSpec configures a hierarchical approval circuit template.
type LevelCircuitSpec struct {
	TenantID     uuid.UUID
	Name         string
	Module       Module
	EntityType   EntityType
	TopLevel     ValidationLevel // inclusive; circuit runs level 0 .. TopLevel
	TimeoutHours int             // per-step deadline; 0 disables deadlines
}

// LevelCircuit builds a draft sequential template with one required approval
// step per validation level. This is how the flat level-based circuits are
// expressed in the single engine: as template configuration, not a second
// state machine.
func LevelCircuit(spec LevelCircuitSpec) (*WorkflowTemplate, error) {
	if !spec.TopLevel.Valid() {
		return nil, fmt.Errorf("top level %d outside the ladder", spec.TopLevel)
	}
	if !spec.Module.Valid() {
		return nil, fmt.Errorf("unknown module %q", spec.Module)
	}
	if !spec.EntityType.Valid() {
		return nil, fmt.Errorf("unknown entity type %q", spec.EntityType)
	}
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s %s validation circuit", spec.Module, spec.EntityType)
	}

	t := &WorkflowTemplate{
		ID:           uuid.New(),
		TenantID:     spec.TenantID,
		Name:         name,
		Module:       spec.Module,
		Type:         TemplateSequential,
		Status:       TemplateDraft,
		EntityType:   spec.EntityType,
		TriggerEvent: "submitted",
		Version:      0,
		CreatedAt:    time.Now(),
	}

	for lvl := LevelCROUDirector; lvl <= spec.TopLevel; lvl++ {
		level := int(lvl)
		step := TemplateStep{
			ID:          uuid.New(),
			TemplateID:  t.ID,
			Name:        fmt.Sprintf("Level %d - %s", level, lvl.Role()),
			Position:    level,
			Type:        StepApproval,
			Priority:    PriorityHigh,
			Role:        lvl.Role(),
			Level:       &level,
			IsRequired:  true,
			CanReject:   true,
			CanDelegate: true,
		}
		if spec.TimeoutHours > 0 {
			hours := spec.TimeoutHours
			step.TimeoutHours = &hours
		}
		t.Steps = append(t.Steps, step)
	}
	return t, nil
}
