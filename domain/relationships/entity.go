package relationships

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RelationKind classifies a directed edge between two entities.
// Ordinal values are persisted; never reorder existing kinds.
type RelationKind int16

const (
	// Contains models service -> entity membership. Set exactly once at
	// creation and never repointed: the FQN encodes the service name.
	Contains RelationKind = iota
	// Uses models a generic entity -> entity dependency.
	Uses
	// Owns models ownership by a user or a team. At most one Owns edge
	// may point at any entity.
	Owns
	// MentionedIn links an entity to content that references it.
	MentionedIn
	// Follows models user -> entity subscriptions. Many-to-one and
	// idempotent.
	Follows
)

// String returns the kind's wire name.
func (k RelationKind) String() string {
	switch k {
	case Contains:
		return "contains"
	case Uses:
		return "uses"
	case Owns:
		return "owns"
	case MentionedIn:
		return "mentionedIn"
	case Follows:
		return "follows"
	default:
		return fmt.Sprintf("relation(%d)", int16(k))
	}
}

// Edge is a typed, directed relationship between two entities of any type.
type Edge struct {
	bun.BaseModel `bun:"table:entity_relationship,alias:er"`

	FromID     uuid.UUID    `bun:"from_id,pk,type:varchar(36)" json:"fromId"`
	ToID       uuid.UUID    `bun:"to_id,pk,type:varchar(36)" json:"toId"`
	FromEntity string       `bun:"from_entity,notnull" json:"fromEntity"`
	ToEntity   string       `bun:"to_entity,notnull" json:"toEntity"`
	Relation   RelationKind `bun:"relation,pk" json:"relation"`
}
