package entities

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/opencatalog/catalog.core/pkg/apperror"
	"github.com/opencatalog/catalog.core/pkg/logger"
)

// record maps one blob row. fully_qualified_name and name are
// generated columns extracted from the document, so writes only carry
// id and json.
type record struct {
	bun.BaseModel

	ID   uuid.UUID       `bun:"id,pk,type:varchar(36)"`
	JSON json.RawMessage `bun:"json,type:jsonb"`
	FQN  string          `bun:"fully_qualified_name,scanonly"`
}

// Store is the per-type blob persistence layer. Find methods return
// (nil, nil) when the row is absent; the repository decides whether
// that is an error. Methods take bun.IDB so they compose into the
// caller's transaction.
type Store struct {
	log   *slog.Logger
	table string
}

// NewStore creates a blob store over the given table.
func NewStore(log *slog.Logger, table string) *Store {
	return &Store{
		log:   log.With(logger.Scope("entities.store"), slog.String("table", table)),
		table: table,
	}
}

// Insert stores a new document.
func (s *Store) Insert(ctx context.Context, db bun.IDB, id uuid.UUID, doc json.RawMessage) error {
	rec := &record{ID: id, JSON: doc}
	_, err := db.NewInsert().
		Model(rec).
		ModelTableExpr("? AS r", bun.Ident(s.table)).
		Exec(ctx)
	if err != nil {
		s.log.Error("failed to insert entity", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Update replaces the document for an existing id.
func (s *Store) Update(ctx context.Context, db bun.IDB, id uuid.UUID, doc json.RawMessage) error {
	_, err := db.NewUpdate().
		Model((*record)(nil)).
		ModelTableExpr("? AS r", bun.Ident(s.table)).
		Set("json = ?", doc).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		s.log.Error("failed to update entity", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FindByID returns the stored document, or (nil, nil) when absent.
func (s *Store) FindByID(ctx context.Context, db bun.IDB, id uuid.UUID) (json.RawMessage, error) {
	var rec record
	err := db.NewSelect().
		Model(&rec).
		ModelTableExpr("? AS r", bun.Ident(s.table)).
		Column("json").
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rec.JSON, nil
}

// FindByFQN returns the stored document, or (nil, nil) when absent.
func (s *Store) FindByFQN(ctx context.Context, db bun.IDB, fqn string) (json.RawMessage, error) {
	var rec record
	err := db.NewSelect().
		Model(&rec).
		ModelTableExpr("? AS r", bun.Ident(s.table)).
		Column("json").
		Where("fully_qualified_name = ?", fqn).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rec.JSON, nil
}

// Delete removes the row and reports how many rows were affected, so
// the repository can map zero to NotFound.
func (s *Store) Delete(ctx context.Context, db bun.IDB, id uuid.UUID) (int64, error) {
	res, err := db.NewDelete().
		Model((*record)(nil)).
		ModelTableExpr("? AS r", bun.Ident(s.table)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		s.log.Error("failed to delete entity", logger.Error(err), slog.String("id", id.String()))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

// ListCount returns the number of rows under the FQN prefix,
// independent of any pagination window.
func (s *Store) ListCount(ctx context.Context, db bun.IDB, prefix string) (int, error) {
	q := db.NewSelect().
		Model((*record)(nil)).
		ModelTableExpr("? AS r", bun.Ident(s.table))
	if prefix != "" {
		q = q.Where("fully_qualified_name LIKE ?", prefix+"%")
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

// ListAfter returns up to limit documents with FQN greater than after,
// ordered ascending. A nil after starts at the first page. The caller
// passes limit+1 to detect whether more pages exist.
func (s *Store) ListAfter(ctx context.Context, db bun.IDB, prefix string, limit int, after *string) ([]json.RawMessage, error) {
	var recs []record
	q := db.NewSelect().
		Model(&recs).
		ModelTableExpr("? AS r", bun.Ident(s.table)).
		Column("json", "fully_qualified_name")
	if prefix != "" {
		q = q.Where("fully_qualified_name LIKE ?", prefix+"%")
	}
	if after != nil {
		q = q.Where("fully_qualified_name > ?", *after)
	}
	err := q.Order("fully_qualified_name ASC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return docs(recs), nil
}

// ListBefore returns up to limit documents with FQN less than before.
// The fetch runs descending so the window hugs the boundary, then the
// result is re-sorted ascending. A nil before means the last page.
func (s *Store) ListBefore(ctx context.Context, db bun.IDB, prefix string, limit int, before *string) ([]json.RawMessage, error) {
	var recs []record
	q := db.NewSelect().
		Model(&recs).
		ModelTableExpr("? AS r", bun.Ident(s.table)).
		Column("json", "fully_qualified_name")
	if prefix != "" {
		q = q.Where("fully_qualified_name LIKE ?", prefix+"%")
	}
	if before != nil {
		q = q.Where("fully_qualified_name < ?", *before)
	}
	err := q.Order("fully_qualified_name DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].FQN < recs[j].FQN })
	return docs(recs), nil
}

func docs(recs []record) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.JSON)
	}
	return out
}
