// Package services persists storage services, the containers entities
// of other types are created under. A service's fully qualified name
// is its own name: services sit at the root of the FQN hierarchy.
package services

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/opencatalog/catalog.core/pkg/apperror"
)

// EntityType is the relationship and reference type name for storage
// services.
const EntityType = "storageService"

// Table is the blob table for storage services.
const Table = "storage_service_entity"

// Service is a storage service: an S3 account, a GCS project, an HDFS
// cluster.
type Service struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ServiceType string    `json:"serviceType,omitempty"`
	Description string    `json:"description,omitempty"`
	Version     float64   `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

// document is the stored shape. fullyQualifiedName mirrors name so the
// generated FQN column works uniformly across entity tables.
type document struct {
	Service
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

func (s *Service) marshalDocument() (json.RawMessage, error) {
	return json.Marshal(document{Service: *s, FullyQualifiedName: s.Name})
}

func unmarshalService(data json.RawMessage) (*Service, error) {
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, apperror.ErrValidation.WithMessage("Invalid service document").WithInternal(err)
	}
	s := d.Service
	return &s, nil
}
