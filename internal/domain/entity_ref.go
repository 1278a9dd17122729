package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityType identifies the kind of business record under validation.
type EntityType string

const (
	EntityBudget        EntityType = "budget"
	EntityTransaction   EntityType = "transaction"
	EntityPurchaseOrder EntityType = "purchase_order"
	EntityContract      EntityType = "contract"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityBudget, EntityTransaction, EntityPurchaseOrder, EntityContract:
		return true
	}
	return false
}

// EntityRef is a typed reference to the business record a workflow instance
// validates. The type tag is checked at construction so the rest of the engine
// never deals with free-form strings.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   uuid.UUID  `json:"id"`
}

// NewEntityRef builds a checked reference.
func NewEntityRef(t EntityType, id uuid.UUID) (EntityRef, error) {
	if !t.Valid() {
		return EntityRef{}, fmt.Errorf("unknown entity type %q", t)
	}
	if id == uuid.Nil {
		return EntityRef{}, fmt.Errorf("entity id is required")
	}
	return EntityRef{Type: t, ID: id}, nil
}

func (r EntityRef) String() string {
	return string(r.Type) + "/" + r.ID.String()
}

// IsZero reports whether the reference is unset.
func (r EntityRef) IsZero() bool {
	return r.Type == "" && r.ID == uuid.Nil
}
