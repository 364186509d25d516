package tags

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/opencatalog/catalog.core/pkg/apperror"
	"github.com/opencatalog/catalog.core/pkg/logger"
)

// Repository handles database operations for the tag usage index.
// Methods take bun.IDB so they compose into the caller's transaction.
type Repository struct {
	log *slog.Logger
}

// NewRepository creates a new tag usage repository.
func NewRepository(log *slog.Logger) *Repository {
	return &Repository{
		log: log.With(logger.Scope("tags.repo")),
	}
}

// Apply replaces the target's labels with the given explicit set plus
// the derived ancestor labels it implies. The replace-then-insert shape
// makes tag updates idempotent.
func (r *Repository) Apply(ctx context.Context, db bun.IDB, targetFQN string, labels []Label) error {
	if err := r.Remove(ctx, db, targetFQN); err != nil {
		return err
	}

	expanded := deriveLabels(labels)
	if len(expanded) == 0 {
		return nil
	}

	rows := make([]Usage, 0, len(expanded))
	for _, l := range expanded {
		rows = append(rows, Usage{
			TargetFQN: targetFQN,
			TagFQN:    l.TagFQN,
			LabelType: l.LabelType,
			State:     l.State,
		})
	}

	if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		r.log.Error("failed to apply tags", logger.Error(err), slog.String("target", targetFQN))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Get returns the target's labels ordered by tag FQN.
func (r *Repository) Get(ctx context.Context, db bun.IDB, targetFQN string) ([]Label, error) {
	var rows []Usage
	err := db.NewSelect().
		Model(&rows).
		Where("target_fqn = ?", targetFQN).
		Order("tag_fqn ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to load tags", logger.Error(err), slog.String("target", targetFQN))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	labels := make([]Label, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, Label{
			TagFQN:    row.TagFQN,
			LabelType: row.LabelType,
			State:     row.State,
		})
	}
	return labels, nil
}

// Remove deletes every label attached to the target. Used on entity
// delete so no orphaned usage rows survive the entity.
func (r *Repository) Remove(ctx context.Context, db bun.IDB, targetFQN string) error {
	_, err := db.NewDelete().
		Model((*Usage)(nil)).
		Where("target_fqn = ?", targetFQN).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to remove tags", logger.Error(err), slog.String("target", targetFQN))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
