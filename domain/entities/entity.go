package entities

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/opencatalog/catalog.core/domain/tags"
	"github.com/opencatalog/catalog.core/pkg/apperror"
)

// Entity is the typed core shared by every entity type, plus an open
// attribute map for type-specific fields. Owner, Service, Tags,
// Followers and Href are derived from the relationship graph and the
// tag index; they are never stored in the blob and are hydrated on
// read according to the field selector.
type Entity struct {
	ID                 uuid.UUID
	Name               string
	DisplayName        string
	FullyQualifiedName string
	Description        string
	Version            float64
	UpdatedAt          time.Time
	UpdatedBy          string
	Attributes         map[string]any

	Owner     *Reference
	Service   *Reference
	Tags      []tags.Label
	Followers []Reference
	Href      string
}

// NextVersion returns the version an update should store. Versions
// advance in 0.1 steps starting from 0.1 at creation.
func NextVersion(v float64) float64 {
	return math.Round((v+0.1)*10) / 10
}

// coreDoc is the fixed part of the stored document.
type coreDoc struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	DisplayName        string    `json:"displayName,omitempty"`
	FullyQualifiedName string    `json:"fullyQualifiedName"`
	Description        string    `json:"description,omitempty"`
	Version            float64   `json:"version"`
	UpdatedAt          time.Time `json:"updatedAt"`
	UpdatedBy          string    `json:"updatedBy,omitempty"`
}

// viewDoc is the full caller-facing JSON shape, derived fields
// included.
type viewDoc struct {
	coreDoc
	Owner     *Reference   `json:"owner,omitempty"`
	Service   *Reference   `json:"service,omitempty"`
	Tags      []tags.Label `json:"tags,omitempty"`
	Followers []Reference  `json:"followers,omitempty"`
	Href      string       `json:"href,omitempty"`
}

// reservedKeys are document keys owned by the typed core or the
// derived fields. Attribute maps may not shadow them.
var reservedKeys = []string{
	"id", "name", "displayName", "fullyQualifiedName", "description",
	"version", "updatedAt", "updatedBy",
	"owner", "service", "tags", "followers", "href",
}

func (e *Entity) core() coreDoc {
	return coreDoc{
		ID:                 e.ID,
		Name:               e.Name,
		DisplayName:        e.DisplayName,
		FullyQualifiedName: e.FullyQualifiedName,
		Description:        e.Description,
		Version:            e.Version,
		UpdatedAt:          e.UpdatedAt,
		UpdatedBy:          e.UpdatedBy,
	}
}

func marshalWithAttributes(fixed any, attrs map[string]any) ([]byte, error) {
	raw, err := json.Marshal(fixed)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return raw, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	for k, v := range attrs {
		if _, reserved := m[k]; reserved {
			continue
		}
		m[k] = v
	}
	return json.Marshal(m)
}

// MarshalDocument renders the stored form of the entity: the typed
// core with attributes inlined and every derived field stripped.
func (e *Entity) MarshalDocument() ([]byte, error) {
	return marshalWithAttributes(e.core(), e.Attributes)
}

// MarshalView renders the caller-facing form: the stored form plus
// whichever derived fields are currently set.
func (e *Entity) MarshalView() ([]byte, error) {
	v := viewDoc{
		coreDoc:   e.core(),
		Owner:     e.Owner,
		Service:   e.Service,
		Tags:      e.Tags,
		Followers: e.Followers,
		Href:      e.Href,
	}
	return marshalWithAttributes(v, e.Attributes)
}

// UnmarshalEntity parses either the stored or the view form. Unknown
// keys land in Attributes.
func UnmarshalEntity(data []byte) (*Entity, error) {
	var v viewDoc
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, apperror.ErrValidation.WithMessage("Invalid entity document").WithInternal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperror.ErrValidation.WithMessage("Invalid entity document").WithInternal(err)
	}
	for _, k := range reservedKeys {
		delete(m, k)
	}
	if len(m) == 0 {
		m = nil
	}
	return &Entity{
		ID:                 v.ID,
		Name:               v.Name,
		DisplayName:        v.DisplayName,
		FullyQualifiedName: v.FullyQualifiedName,
		Description:        v.Description,
		Version:            v.Version,
		UpdatedAt:          v.UpdatedAt,
		UpdatedBy:          v.UpdatedBy,
		Attributes:         m,
		Owner:              v.Owner,
		Service:            v.Service,
		Tags:               v.Tags,
		Followers:          v.Followers,
		Href:               v.Href,
	}, nil
}
