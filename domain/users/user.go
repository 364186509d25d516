// Package users persists users and teams and resolves owner and
// follower references. An owner is either a user or a team; crossing
// the two stores to materialize a single reference is what keeps the
// relationship graph generic.
package users

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/opencatalog/catalog.core/pkg/apperror"
)

// Entity type names used in relationship edges and references.
const (
	UserEntityType = "user"
	TeamEntityType = "team"
)

// Blob tables.
const (
	UserTable = "user_entity"
	TeamTable = "team_entity"
)

// User is a person known to the catalog.
type User struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName,omitempty"`
	Email       string    `json:"email,omitempty"`
	Version     float64   `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

// Team is a group of users that can own entities collectively.
type Team struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName,omitempty"`
	Description string    `json:"description,omitempty"`
	Version     float64   `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

type userDoc struct {
	User
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

type teamDoc struct {
	Team
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

func (u *User) marshalDocument() (json.RawMessage, error) {
	return json.Marshal(userDoc{User: *u, FullyQualifiedName: u.Name})
}

func (t *Team) marshalDocument() (json.RawMessage, error) {
	return json.Marshal(teamDoc{Team: *t, FullyQualifiedName: t.Name})
}

func unmarshalUser(data json.RawMessage) (*User, error) {
	var d userDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, apperror.ErrValidation.WithMessage("Invalid user document").WithInternal(err)
	}
	u := d.User
	return &u, nil
}

func unmarshalTeam(data json.RawMessage) (*Team, error) {
	var d teamDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, apperror.ErrValidation.WithMessage("Invalid team document").WithInternal(err)
	}
	t := d.Team
	return &t, nil
}
