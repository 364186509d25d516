// Package entities implements the generic entity persistence core: a
// per-type schemaless JSON store plus an orchestrating repository that
// keeps the relationship graph and the tag index consistent with every
// blob write. Concrete entity types instantiate it with a Descriptor.
package entities

import (
	"strings"

	"github.com/google/uuid"

	"github.com/opencatalog/catalog.core/pkg/apperror"
)

// Reference points at an entity of any type. Only ID and Type are
// required on input; resolvers fill in the rest.
type Reference struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Description string    `json:"description,omitempty"`
	Href        string    `json:"href,omitempty"`
}

// Descriptor carries the per-entity-type instantiation data for a
// Repository.
type Descriptor struct {
	// Type is the entity type name, e.g. "location".
	Type string
	// Table is the blob table for the type, e.g. "location_entity".
	Table string
	// Separator joins the service name and the entity name into the
	// FQN. Type specific: "." for datasets, ":/" for locations.
	Separator string
	// ServiceType is the entity type a CONTAINS edge must originate
	// from, e.g. "storageService".
	ServiceType string
	// Fields lists the hydratable field names a caller may request.
	Fields []string
}

// FullName computes the fully qualified name for an entity of this
// type. Pure: the same service and name always yield the same FQN.
func (d Descriptor) FullName(serviceName, name string) string {
	return serviceName + d.Separator + name
}

// Fields is a caller-supplied selector controlling which derived
// fields a read hydrates. An unrequested field stays unset so callers
// can tell "not requested" from "empty".
type Fields struct {
	names map[string]struct{}
}

// NewFields parses a comma separated field list against the allowed
// set. Unknown names are a validation error.
func NewFields(allowed []string, param string) (Fields, error) {
	f := Fields{names: map[string]struct{}{}}
	if param == "" {
		return f, nil
	}
	ok := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		ok[a] = struct{}{}
	}
	for _, name := range strings.Split(param, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, valid := ok[name]; !valid {
			return Fields{}, apperror.ErrValidation.WithMessage("Invalid field name " + name)
		}
		f.names[name] = struct{}{}
	}
	return f, nil
}

// fieldsOf builds a selector from known-good field names, bypassing
// validation. Internal use only.
func fieldsOf(names ...string) Fields {
	f := Fields{names: map[string]struct{}{}}
	for _, n := range names {
		f.names[n] = struct{}{}
	}
	return f
}

// Has reports whether the field was requested.
func (f Fields) Has(name string) bool {
	_, ok := f.names[name]
	return ok
}

// Paging carries the opaque cursors and the prefix-filtered total for
// one result page. Nil cursors mean no page exists in that direction.
type Paging struct {
	Before *string `json:"before"`
	After  *string `json:"after"`
	Total  int     `json:"total"`
}

// ResultList is one page of entities with its paging envelope.
type ResultList struct {
	Data   []*Entity `json:"data"`
	Paging Paging    `json:"paging"`
}
