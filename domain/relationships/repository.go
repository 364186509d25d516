// Package relationships stores the typed relationship graph layered
// over the schemaless entity tables. Every edge kind shares one table
// indexed from both endpoints, so the graph generalizes across entity
// types without per-relation schemas.
package relationships

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/opencatalog/catalog.core/pkg/apperror"
	"github.com/opencatalog/catalog.core/pkg/logger"
)

// Repository handles database operations for relationship edges.
// Methods take bun.IDB so they compose into the caller's transaction.
type Repository struct {
	log *slog.Logger
}

// NewRepository creates a new relationship repository.
func NewRepository(log *slog.Logger) *Repository {
	return &Repository{
		log: log.With(logger.Scope("relationships.repo")),
	}
}

// Insert adds an edge. Inserting an edge that already exists is a
// no-op, which keeps follower and owner writes idempotent.
func (r *Repository) Insert(ctx context.Context, db bun.IDB, edge *Edge) error {
	_, err := db.NewInsert().
		Model(edge).
		On("CONFLICT (from_id, to_id, relation) DO NOTHING").
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to insert relationship", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Exists reports whether the exact edge is present.
func (r *Repository) Exists(ctx context.Context, db bun.IDB, fromID, toID uuid.UUID, relation RelationKind) (bool, error) {
	exists, err := db.NewSelect().
		Model((*Edge)(nil)).
		Where("from_id = ?", fromID).
		Where("to_id = ?", toID).
		Where("relation = ?", relation).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}

// Delete removes a single edge. Removing an absent edge is a no-op.
func (r *Repository) Delete(ctx context.Context, db bun.IDB, fromID, toID uuid.UUID, relation RelationKind) error {
	_, err := db.NewDelete().
		Model((*Edge)(nil)).
		Where("from_id = ?", fromID).
		Where("to_id = ?", toID).
		Where("relation = ?", relation).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete relationship", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// DeleteAll removes every edge where the id appears as either endpoint.
// Used when an entity is deleted.
func (r *Repository) DeleteAll(ctx context.Context, db bun.IDB, id uuid.UUID) error {
	_, err := db.NewDelete().
		Model((*Edge)(nil)).
		Where("from_id = ? OR to_id = ?", id, id).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete relationships", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FindFrom returns edges originating at the given id with the given kind.
func (r *Repository) FindFrom(ctx context.Context, db bun.IDB, fromID uuid.UUID, relation RelationKind) ([]Edge, error) {
	var edges []Edge
	err := db.NewSelect().
		Model(&edges).
		Where("from_id = ?", fromID).
		Where("relation = ?", relation).
		Order("to_id ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to find outgoing edges", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return edges, nil
}

// FindTo returns edges terminating at the given id with the given kind.
func (r *Repository) FindTo(ctx context.Context, db bun.IDB, toID uuid.UUID, relation RelationKind) ([]Edge, error) {
	var edges []Edge
	err := db.NewSelect().
		Model(&edges).
		Where("to_id = ?", toID).
		Where("relation = ?", relation).
		Order("from_id ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to find incoming edges", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return edges, nil
}
