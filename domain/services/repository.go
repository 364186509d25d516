package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/opencatalog/catalog.core/domain/entities"
	"github.com/opencatalog/catalog.core/domain/relationships"
	"github.com/opencatalog/catalog.core/internal/database"
	"github.com/opencatalog/catalog.core/pkg/apperror"
	"github.com/opencatalog/catalog.core/pkg/logger"
)

// listAllLimit bounds an unfiltered service listing. Deployments have
// tens of services, not thousands.
const listAllLimit = 10000

// Repository persists storage services and resolves service
// references for the entity repositories.
type Repository struct {
	log   *slog.Logger
	db    bun.IDB
	store *entities.Store
	rels  *relationships.Repository
}

// NewRepository creates a storage service repository.
func NewRepository(log *slog.Logger, db bun.IDB, rels *relationships.Repository) *Repository {
	return &Repository{
		log:   log.With(logger.Scope("services.repo")),
		db:    db,
		store: entities.NewStore(log, Table),
		rels:  rels,
	}
}

// Create persists a new service. Names are unique; a duplicate name
// surfaces as a database error from the unique index.
func (r *Repository) Create(ctx context.Context, s *Service) (*Service, error) {
	if s.Name == "" {
		return nil, apperror.NewBadRequest("service name is required")
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Version = 0.1
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}

	doc, err := s.marshalDocument()
	if err != nil {
		return nil, apperror.NewInternal("failed to encode service document", err)
	}
	if err := r.store.Insert(ctx, r.db, s.ID, doc); err != nil {
		return nil, err
	}
	r.log.Info("service created", slog.String("id", s.ID.String()), slog.String("name", s.Name))
	return s, nil
}

// Get returns the service by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Service, error) {
	doc, err := r.store.FindByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFound(EntityType, id.String())
	}
	return unmarshalService(doc)
}

// GetByName returns the service by name.
func (r *Repository) GetByName(ctx context.Context, name string) (*Service, error) {
	doc, err := r.store.FindByFQN(ctx, r.db, name)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFound(EntityType, name)
	}
	return unmarshalService(doc)
}

// List returns services ordered by name, optionally filtered to an
// exact name.
func (r *Repository) List(ctx context.Context, name string) ([]*Service, error) {
	var docs []json.RawMessage
	var err error
	if name != "" {
		doc, ferr := r.store.FindByFQN(ctx, r.db, name)
		if ferr != nil {
			return nil, ferr
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	} else {
		docs, err = r.store.ListAfter(ctx, r.db, "", listAllLimit, nil)
		if err != nil {
			return nil, err
		}
	}

	out := make([]*Service, 0, len(docs))
	for _, doc := range docs {
		s, err := unmarshalService(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Update replaces the service description. Name and type are part of
// the identity and stay fixed.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, description string) (*Service, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	doc, err := r.store.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFound(EntityType, id.String())
	}
	s, err := unmarshalService(doc)
	if err != nil {
		return nil, err
	}

	s.Description = description
	s.Version = entities.NextVersion(s.Version)
	s.UpdatedAt = time.Now().UTC()

	updated, err := s.marshalDocument()
	if err != nil {
		return nil, apperror.NewInternal("failed to encode service document", err)
	}
	if err := r.store.Update(ctx, tx, id, updated); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return s, nil
}

// Delete removes the service and every edge touching it. Entities
// contained in the service keep their rows; deleting a non-empty
// service orphans them, so callers are expected to empty it first.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	rows, err := r.store.Delete(ctx, tx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperror.NewNotFound(EntityType, id.String())
	}
	if err := r.rels.DeleteAll(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	r.log.Info("service deleted", slog.String("id", id.String()))
	return nil
}

// ResolveService implements entities.ServiceResolver. An unknown id is
// an invalid reference, not a NotFound: the service is being named by
// another entity's payload.
func (r *Repository) ResolveService(ctx context.Context, db bun.IDB, ref *entities.Reference) (*entities.Reference, error) {
	doc, err := r.store.FindByID(ctx, db, ref.ID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewInvalidReference(EntityType, ref.ID.String())
	}
	s, err := unmarshalService(doc)
	if err != nil {
		return nil, err
	}
	return &entities.Reference{
		ID:          s.ID,
		Type:        EntityType,
		Name:        s.Name,
		Description: s.Description,
	}, nil
}
