// Package tags maintains the tag usage index: which tag labels are
// applied to which entities, keyed by fully qualified names on both
// sides so the index survives entity and tag renames uniformly.
package tags

import (
	"strings"

	"github.com/uptrace/bun"
)

// LabelType records how a label got attached. Ordinal values are
// persisted; never reorder existing types.
type LabelType int16

const (
	// Manual labels were applied explicitly by a caller.
	Manual LabelType = iota
	// Derived labels were implied by a manual label deeper in the same
	// tag hierarchy. They are recomputed on every apply and never
	// written by callers directly.
	Derived
)

// String returns the type's wire name.
func (t LabelType) String() string {
	switch t {
	case Manual:
		return "manual"
	case Derived:
		return "derived"
	default:
		return "unknown"
	}
}

// State tracks label confirmation.
type State int16

const (
	Suggested State = iota
	Confirmed
)

// Usage is one tag label attached to one entity.
type Usage struct {
	bun.BaseModel `bun:"table:tag_usage,alias:tu"`

	TargetFQN string    `bun:"target_fqn,pk" json:"targetFQN"`
	TagFQN    string    `bun:"tag_fqn,pk" json:"tagFQN"`
	LabelType LabelType `bun:"label_type,notnull" json:"labelType"`
	State     State     `bun:"state,notnull" json:"state"`
}

// Label is the caller-facing view of an applied tag.
type Label struct {
	TagFQN    string    `json:"tagFQN"`
	LabelType LabelType `json:"labelType"`
	State     State     `json:"state"`
}

// deriveLabels expands the supplied labels with every ancestor in
// each tag's hierarchy. "PII.Sensitive" implies "PII". Supplied labels
// keep the type they arrived with, so a derived label hydrated on read
// survives a round trip unchanged; only the ancestors minted here are
// marked Derived. A manual label wins over a derived one for the same
// tag FQN, and duplicates collapse.
func deriveLabels(explicit []Label) []Label {
	byFQN := make(map[string]Label, len(explicit))
	order := make([]string, 0, len(explicit))

	add := func(l Label) {
		existing, ok := byFQN[l.TagFQN]
		if !ok {
			byFQN[l.TagFQN] = l
			order = append(order, l.TagFQN)
			return
		}
		if existing.LabelType == Derived && l.LabelType == Manual {
			byFQN[l.TagFQN] = l
		}
	}

	for _, l := range explicit {
		add(Label{TagFQN: l.TagFQN, LabelType: l.LabelType, State: l.State})
		parts := strings.Split(l.TagFQN, ".")
		for i := 1; i < len(parts); i++ {
			add(Label{
				TagFQN:    strings.Join(parts[:i], "."),
				LabelType: Derived,
				State:     l.State,
			})
		}
	}

	out := make([]Label, 0, len(order))
	for _, fqn := range order {
		out = append(out, byFQN[fqn])
	}
	return out
}
