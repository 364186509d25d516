package entities

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/opencatalog/catalog.core/domain/relationships"
	"github.com/opencatalog/catalog.core/domain/tags"
	"github.com/opencatalog/catalog.core/internal/database"
	"github.com/opencatalog/catalog.core/pkg/apperror"
	"github.com/opencatalog/catalog.core/pkg/cursor"
	"github.com/opencatalog/catalog.core/pkg/logger"
)

// Hydratable field names.
const (
	FieldOwner     = "owner"
	FieldFollowers = "followers"
	FieldTags      = "tags"
)

// ServiceResolver validates a service reference against the service's
// own store and fills in its name and type.
type ServiceResolver interface {
	ResolveService(ctx context.Context, db bun.IDB, ref *Reference) (*Reference, error)
}

// OwnerResolver validates owner and follower references against the
// user and team stores.
type OwnerResolver interface {
	// ResolveOwner checks that ref points at an existing user or team
	// and fills in its name and display name.
	ResolveOwner(ctx context.Context, db bun.IDB, ref *Reference) (*Reference, error)
	// ResolveUser returns a reference for an existing user id.
	ResolveUser(ctx context.Context, db bun.IDB, id uuid.UUID) (*Reference, error)
}

// Repository orchestrates blob, relationship and tag writes for one
// entity type. Every mutating operation runs in a single transaction
// so a partially applied write is never visible. The repository is
// stateless and safe for concurrent use.
type Repository struct {
	log   *slog.Logger
	db    bun.IDB
	desc  Descriptor
	store *Store
	rels  *relationships.Repository
	tags  *tags.Repository
	codec *cursor.Codec

	services ServiceResolver
	owners   OwnerResolver
}

// NewRepository wires a repository for the entity type described by
// desc.
func NewRepository(
	log *slog.Logger,
	db bun.IDB,
	desc Descriptor,
	rels *relationships.Repository,
	tagIndex *tags.Repository,
	codec *cursor.Codec,
	services ServiceResolver,
	owners OwnerResolver,
) *Repository {
	return &Repository{
		log:      log.With(logger.Scope(desc.Type + ".repo")),
		db:       db,
		desc:     desc,
		store:    NewStore(log, desc.Table),
		rels:     rels,
		tags:     tagIndex,
		codec:    codec,
		services: services,
		owners:   owners,
	}
}

// Store exposes the underlying blob store.
func (r *Repository) Store() *Store {
	return r.store
}

// NewFields parses a field selector against this type's allowed set.
func (r *Repository) NewFields(param string) (Fields, error) {
	return NewFields(r.desc.Fields, param)
}

// Create validates the references, computes the FQN, persists the blob
// and writes the containment, ownership and tag rows atomically.
func (r *Repository) Create(ctx context.Context, e *Entity, serviceRef, ownerRef *Reference) (*Entity, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	created, err := r.create(ctx, tx, e, serviceRef, ownerRef)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return created, nil
}

func (r *Repository) create(ctx context.Context, tx *database.SafeTx, e *Entity, serviceRef, ownerRef *Reference) (*Entity, error) {
	service, err := r.resolveService(ctx, tx, serviceRef)
	if err != nil {
		return nil, err
	}

	owner, err := r.resolveOwner(ctx, tx, ownerRef)
	if err != nil {
		return nil, err
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.FullyQualifiedName = r.desc.FullName(service.Name, e.Name)
	e.Version = 0.1
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}

	doc, err := e.MarshalDocument()
	if err != nil {
		return nil, apperror.NewInternal("failed to encode entity document", err)
	}
	if err := r.store.Insert(ctx, tx, e.ID, doc); err != nil {
		return nil, err
	}

	contains := &relationships.Edge{
		FromID:     service.ID,
		ToID:       e.ID,
		FromEntity: r.desc.ServiceType,
		ToEntity:   r.desc.Type,
		Relation:   relationships.Contains,
	}
	if err := r.rels.Insert(ctx, tx, contains); err != nil {
		return nil, err
	}

	if owner != nil {
		if err := r.setOwner(ctx, tx, e.ID, owner); err != nil {
			return nil, err
		}
	}

	if err := r.tags.Apply(ctx, tx, e.FullyQualifiedName, e.Tags); err != nil {
		return nil, err
	}

	e.Service = service
	e.Owner = owner
	tagged, err := r.tags.Get(ctx, tx, e.FullyQualifiedName)
	if err != nil {
		return nil, err
	}
	e.Tags = tagged

	r.log.Info("entity created",
		slog.String("id", e.ID.String()),
		slog.String("fqn", e.FullyQualifiedName),
	)
	return e, nil
}

// CreateOrUpdate upserts keyed by the computed FQN. When the entity
// exists: the service is not updatable, the description is backfilled
// only when the stored one is empty, the owner is transitioned and the
// tags reapplied. Returns whether a new row was created so the HTTP
// layer can pick 201 versus 200.
func (r *Repository) CreateOrUpdate(ctx context.Context, e *Entity, serviceRef, ownerRef *Reference) (*Entity, bool, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return nil, false, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	service, err := r.resolveService(ctx, tx, serviceRef)
	if err != nil {
		return nil, false, err
	}

	fqn := r.desc.FullName(service.Name, e.Name)
	stored, err := r.store.FindByFQN(ctx, tx, fqn)
	if err != nil {
		return nil, false, err
	}

	if stored == nil {
		created, err := r.create(ctx, tx, e, serviceRef, ownerRef)
		if err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, apperror.ErrDatabase.WithInternal(err)
		}
		return created, true, nil
	}

	original, err := UnmarshalEntity(stored)
	if err != nil {
		return nil, false, err
	}

	owner, err := r.resolveOwner(ctx, tx, ownerRef)
	if err != nil {
		return nil, false, err
	}
	originalOwner, err := r.findOwner(ctx, tx, original.ID)
	if err != nil {
		return nil, false, err
	}

	prevTags, err := r.tags.Get(ctx, tx, fqn)
	if err != nil {
		return nil, false, err
	}
	if err := r.tags.Apply(ctx, tx, fqn, e.Tags); err != nil {
		return nil, false, err
	}
	newTags, err := r.tags.Get(ctx, tx, fqn)
	if err != nil {
		return nil, false, err
	}

	// Description is write-once through this path: a stored value is
	// never overwritten, only an empty one is backfilled.
	descriptionChanged := original.Description == "" && e.Description != ""
	ownerChanged := referencesDiffer(originalOwner, owner)
	tagsChanged := !labelsEqual(prevTags, newTags)

	if descriptionChanged {
		original.Description = e.Description
	}

	// The version advances only when the call changed something; a
	// repeated identical upsert leaves the stored row untouched.
	if descriptionChanged || ownerChanged || tagsChanged {
		original.Version = NextVersion(original.Version)
		original.UpdatedAt = time.Now().UTC()
		if e.UpdatedBy != "" {
			original.UpdatedBy = e.UpdatedBy
		}

		doc, err := original.MarshalDocument()
		if err != nil {
			return nil, false, apperror.NewInternal("failed to encode entity document", err)
		}
		if err := r.store.Update(ctx, tx, original.ID, doc); err != nil {
			return nil, false, err
		}
	}

	if err := r.updateOwner(ctx, tx, original.ID, originalOwner, owner); err != nil {
		return nil, false, err
	}

	original.Service = service
	original.Owner = owner
	original.Tags = newTags

	if err := tx.Commit(); err != nil {
		return nil, false, apperror.ErrDatabase.WithInternal(err)
	}
	return original, false, nil
}

// Get returns the entity by id with the requested fields hydrated.
func (r *Repository) Get(ctx context.Context, id uuid.UUID, fields Fields) (*Entity, error) {
	doc, err := r.store.FindByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFound(r.desc.Type, id.String())
	}
	return r.hydrate(ctx, r.db, doc, fields)
}

// GetByName returns the entity by FQN with the requested fields
// hydrated.
func (r *Repository) GetByName(ctx context.Context, fqn string, fields Fields) (*Entity, error) {
	doc, err := r.store.FindByFQN(ctx, r.db, fqn)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFound(r.desc.Type, fqn)
	}
	return r.hydrate(ctx, r.db, doc, fields)
}

// Patch applies an RFC 6902 patch document. Changes to id, name or
// the service reference are rejected; derived fields are stripped
// before the blob is persisted and re-synchronized afterwards.
func (r *Repository) Patch(ctx context.Context, id uuid.UUID, patchDoc []byte) (*Entity, error) {
	patch, err := jsonpatch.DecodePatch(patchDoc)
	if err != nil {
		return nil, apperror.ErrValidation.WithMessage("Invalid JSON patch document").WithInternal(err)
	}

	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	stored, err := r.store.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperror.NewNotFound(r.desc.Type, id.String())
	}

	original, err := r.hydrate(ctx, tx, stored, fieldsOf(FieldOwner, FieldTags))
	if err != nil {
		return nil, err
	}

	view, err := original.MarshalView()
	if err != nil {
		return nil, apperror.NewInternal("failed to encode entity view", err)
	}
	patched, err := patch.Apply(view)
	if err != nil {
		return nil, apperror.ErrValidation.WithMessage("Failed to apply JSON patch").WithInternal(err)
	}
	updated, err := UnmarshalEntity(patched)
	if err != nil {
		return nil, err
	}

	if err := r.checkReadOnly(original, updated); err != nil {
		return nil, err
	}
	// Name and service are immutable, so the FQN derived from them is
	// too; pin it rather than trusting whatever the patch left behind.
	updated.FullyQualifiedName = original.FullyQualifiedName

	newOwner := updated.Owner
	if newOwner != nil && (original.Owner == nil || newOwner.ID != original.Owner.ID) {
		if newOwner, err = r.owners.ResolveOwner(ctx, tx, newOwner); err != nil {
			return nil, err
		}
	}

	updated.Version = NextVersion(original.Version)
	if updated.UpdatedAt.Equal(original.UpdatedAt) {
		updated.UpdatedAt = time.Now().UTC()
	}

	doc, err := updated.MarshalDocument()
	if err != nil {
		return nil, apperror.NewInternal("failed to encode entity document", err)
	}
	if err := r.store.Update(ctx, tx, id, doc); err != nil {
		return nil, err
	}

	if err := r.updateOwner(ctx, tx, id, original.Owner, newOwner); err != nil {
		return nil, err
	}
	if err := r.tags.Apply(ctx, tx, updated.FullyQualifiedName, updated.Tags); err != nil {
		return nil, err
	}

	updated.Owner = newOwner
	updated.Service = original.Service
	tagged, err := r.tags.Get(ctx, tx, updated.FullyQualifiedName)
	if err != nil {
		return nil, err
	}
	updated.Tags = tagged

	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return updated, nil
}

// Delete removes the entity, every edge touching it and its own tag
// rows. A missing id is NotFound.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	stored, err := r.store.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if stored == nil {
		return apperror.NewNotFound(r.desc.Type, id.String())
	}
	e, err := UnmarshalEntity(stored)
	if err != nil {
		return err
	}

	rows, err := r.store.Delete(ctx, tx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperror.NewNotFound(r.desc.Type, id.String())
	}

	if err := r.rels.DeleteAll(ctx, tx, id); err != nil {
		return err
	}
	if err := r.tags.Remove(ctx, tx, e.FullyQualifiedName); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	r.log.Info("entity deleted",
		slog.String("id", id.String()),
		slog.String("fqn", e.FullyQualifiedName),
	)
	return nil
}

// AddFollower subscribes the user to the entity. Returns true when a
// new edge was created; re-adding an existing follower is a no-op
// success.
func (r *Repository) AddFollower(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := r.mustExist(ctx, tx, id); err != nil {
		return false, err
	}
	user, err := r.owners.ResolveUser(ctx, tx, userID)
	if err != nil {
		return false, err
	}

	exists, err := r.rels.Exists(ctx, tx, userID, id, relationships.Follows)
	if err != nil {
		return false, err
	}
	if !exists {
		edge := &relationships.Edge{
			FromID:     user.ID,
			ToID:       id,
			FromEntity: user.Type,
			ToEntity:   r.desc.Type,
			Relation:   relationships.Follows,
		}
		if err := r.rels.Insert(ctx, tx, edge); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return !exists, nil
}

// DeleteFollower unsubscribes the user. Removing a non-follower is a
// silent no-op.
func (r *Repository) DeleteFollower(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := r.mustExist(ctx, tx, id); err != nil {
		return err
	}
	if err := r.rels.Delete(ctx, tx, userID, id, relationships.Follows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ListAfter returns the page following the after cursor in ascending
// FQN order.
func (r *Repository) ListAfter(ctx context.Context, fields Fields, prefix string, limit int, afterCursor *string) (*ResultList, error) {
	if limit < 1 {
		return nil, apperror.NewBadRequest("limit must be at least 1")
	}
	after, err := r.decodeCursor(afterCursor)
	if err != nil {
		return nil, err
	}

	docs, err := r.store.ListAfter(ctx, r.db, prefix, limit+1, after)
	if err != nil {
		return nil, err
	}
	page, err := r.hydrateAll(ctx, docs, fields)
	if err != nil {
		return nil, err
	}

	trimmed, beforeFQN, afterFQN := windowAfter(page, limit, after != nil)
	return r.resultList(ctx, trimmed, prefix, beforeFQN, afterFQN)
}

// ListBefore returns the page preceding the before cursor. A nil
// cursor means the last page.
func (r *Repository) ListBefore(ctx context.Context, fields Fields, prefix string, limit int, beforeCursor *string) (*ResultList, error) {
	if limit < 1 {
		return nil, apperror.NewBadRequest("limit must be at least 1")
	}
	before, err := r.decodeCursor(beforeCursor)
	if err != nil {
		return nil, err
	}

	docs, err := r.store.ListBefore(ctx, r.db, prefix, limit+1, before)
	if err != nil {
		return nil, err
	}
	page, err := r.hydrateAll(ctx, docs, fields)
	if err != nil {
		return nil, err
	}

	trimmed, beforeFQN, afterFQN := windowBefore(page, limit, before != nil)
	return r.resultList(ctx, trimmed, prefix, beforeFQN, afterFQN)
}

func (r *Repository) resultList(ctx context.Context, page []*Entity, prefix string, beforeFQN, afterFQN *string) (*ResultList, error) {
	total, err := r.store.ListCount(ctx, r.db, prefix)
	if err != nil {
		return nil, err
	}
	paging := Paging{Total: total}
	if beforeFQN != nil {
		token, err := r.codec.Encode(*beforeFQN)
		if err != nil {
			return nil, apperror.NewInternal("failed to encode cursor", err)
		}
		paging.Before = &token
	}
	if afterFQN != nil {
		token, err := r.codec.Encode(*afterFQN)
		if err != nil {
			return nil, apperror.NewInternal("failed to encode cursor", err)
		}
		paging.After = &token
	}
	return &ResultList{Data: page, Paging: paging}, nil
}

func (r *Repository) decodeCursor(token *string) (*string, error) {
	if token == nil {
		return nil, nil
	}
	boundary, err := r.codec.Decode(*token)
	if err != nil {
		return nil, err
	}
	return &boundary, nil
}

func (r *Repository) resolveService(ctx context.Context, db bun.IDB, ref *Reference) (*Reference, error) {
	if ref == nil {
		return nil, apperror.ErrInvalidReference.WithMessage("A service reference is required")
	}
	service, err := r.services.ResolveService(ctx, db, ref)
	if err != nil {
		return nil, err
	}
	if service.Type != r.desc.ServiceType {
		return nil, apperror.NewInvalidReference(r.desc.ServiceType, ref.ID.String())
	}
	return service, nil
}

func (r *Repository) resolveOwner(ctx context.Context, db bun.IDB, ref *Reference) (*Reference, error) {
	if ref == nil {
		return nil, nil
	}
	return r.owners.ResolveOwner(ctx, db, ref)
}

func (r *Repository) setOwner(ctx context.Context, db bun.IDB, id uuid.UUID, owner *Reference) error {
	edge := &relationships.Edge{
		FromID:     owner.ID,
		ToID:       id,
		FromEntity: owner.Type,
		ToEntity:   r.desc.Type,
		Relation:   relationships.Owns,
	}
	return r.rels.Insert(ctx, db, edge)
}

// updateOwner transitions the single OWNS edge between the previous
// and the next owner, covering set, cleared and changed.
func (r *Repository) updateOwner(ctx context.Context, db bun.IDB, id uuid.UUID, prev, next *Reference) error {
	if prev == nil && next == nil {
		return nil
	}
	if prev != nil && next != nil && prev.ID == next.ID {
		return nil
	}
	if prev != nil {
		if err := r.rels.Delete(ctx, db, prev.ID, id, relationships.Owns); err != nil {
			return err
		}
	}
	if next != nil {
		return r.setOwner(ctx, db, id, next)
	}
	return nil
}

func (r *Repository) findOwner(ctx context.Context, db bun.IDB, id uuid.UUID) (*Reference, error) {
	edges, err := r.rels.FindTo(ctx, db, id, relationships.Owns)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}
	ref := &Reference{ID: edges[0].FromID, Type: edges[0].FromEntity}
	return r.owners.ResolveOwner(ctx, db, ref)
}

func (r *Repository) findService(ctx context.Context, db bun.IDB, id uuid.UUID) (*Reference, error) {
	edges, err := r.rels.FindTo(ctx, db, id, relationships.Contains)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}
	ref := &Reference{ID: edges[0].FromID, Type: edges[0].FromEntity}
	return r.services.ResolveService(ctx, db, ref)
}

func (r *Repository) findFollowers(ctx context.Context, db bun.IDB, id uuid.UUID) ([]Reference, error) {
	edges, err := r.rels.FindTo(ctx, db, id, relationships.Follows)
	if err != nil {
		return nil, err
	}
	followers := make([]Reference, 0, len(edges))
	for _, edge := range edges {
		user, err := r.owners.ResolveUser(ctx, db, edge.FromID)
		if err != nil {
			return nil, err
		}
		followers = append(followers, *user)
	}
	return followers, nil
}

// hydrate decodes the stored document and fills in the service plus
// the requested derived fields. The service is always set: it is part
// of the entity's identity.
func (r *Repository) hydrate(ctx context.Context, db bun.IDB, doc []byte, fields Fields) (*Entity, error) {
	e, err := UnmarshalEntity(doc)
	if err != nil {
		return nil, err
	}
	if e.Service, err = r.findService(ctx, db, e.ID); err != nil {
		return nil, err
	}
	if fields.Has(FieldOwner) {
		if e.Owner, err = r.findOwner(ctx, db, e.ID); err != nil {
			return nil, err
		}
	}
	if fields.Has(FieldTags) {
		if e.Tags, err = r.tags.Get(ctx, db, e.FullyQualifiedName); err != nil {
			return nil, err
		}
	}
	if fields.Has(FieldFollowers) {
		if e.Followers, err = r.findFollowers(ctx, db, e.ID); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (r *Repository) hydrateAll(ctx context.Context, docs []json.RawMessage, fields Fields) ([]*Entity, error) {
	out := make([]*Entity, 0, len(docs))
	for _, doc := range docs {
		e, err := r.hydrate(ctx, r.db, doc, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// checkReadOnly rejects patches touching the immutable identity
// fields.
func (r *Repository) checkReadOnly(original, updated *Entity) error {
	if updated.ID != original.ID {
		return apperror.NewReadOnlyAttribute(r.desc.Type, "id")
	}
	if updated.Name != original.Name {
		return apperror.NewReadOnlyAttribute(r.desc.Type, "name")
	}
	origService := original.Service
	newService := updated.Service
	if origService != nil {
		if newService == nil || newService.ID != origService.ID {
			return apperror.NewReadOnlyAttribute(r.desc.Type, "service")
		}
	}
	return nil
}

// referencesDiffer reports whether two references point at different
// entities. A nil reference means the slot is empty.
func referencesDiffer(a, b *Reference) bool {
	if a == nil || b == nil {
		return a != b
	}
	return a.ID != b.ID
}

// labelsEqual compares two label lists element by element. Both sides
// come back from the tag index ordered by tag FQN, so a positional
// comparison is enough.
func labelsEqual(a, b []tags.Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].TagFQN != b[i].TagFQN || a[i].LabelType != b[i].LabelType || a[i].State != b[i].State {
			return false
		}
	}
	return true
}

func (r *Repository) mustExist(ctx context.Context, db bun.IDB, id uuid.UUID) error {
	doc, err := r.store.FindByID(ctx, db, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return apperror.NewNotFound(r.desc.Type, id.String())
	}
	return nil
}
