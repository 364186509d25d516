package users

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/opencatalog/catalog.core/domain/entities"
	"github.com/opencatalog/catalog.core/pkg/apperror"
	"github.com/opencatalog/catalog.core/pkg/logger"
)

// Repository persists users and teams and implements
// entities.OwnerResolver across the two stores.
type Repository struct {
	log   *slog.Logger
	db    bun.IDB
	users *entities.Store
	teams *entities.Store
}

// NewRepository creates the user and team repository.
func NewRepository(log *slog.Logger, db bun.IDB) *Repository {
	return &Repository{
		log:   log.With(logger.Scope("users.repo")),
		db:    db,
		users: entities.NewStore(log, UserTable),
		teams: entities.NewStore(log, TeamTable),
	}
}

// CreateUser persists a new user.
func (r *Repository) CreateUser(ctx context.Context, u *User) (*User, error) {
	if u.Name == "" {
		return nil, apperror.NewBadRequest("user name is required")
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Version = 0.1
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}

	doc, err := u.marshalDocument()
	if err != nil {
		return nil, apperror.NewInternal("failed to encode user document", err)
	}
	if err := r.users.Insert(ctx, r.db, u.ID, doc); err != nil {
		return nil, err
	}
	r.log.Info("user created", slog.String("id", u.ID.String()), slog.String("name", u.Name))
	return u, nil
}

// CreateTeam persists a new team.
func (r *Repository) CreateTeam(ctx context.Context, t *Team) (*Team, error) {
	if t.Name == "" {
		return nil, apperror.NewBadRequest("team name is required")
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Version = 0.1
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}

	doc, err := t.marshalDocument()
	if err != nil {
		return nil, apperror.NewInternal("failed to encode team document", err)
	}
	if err := r.teams.Insert(ctx, r.db, t.ID, doc); err != nil {
		return nil, err
	}
	r.log.Info("team created", slog.String("id", t.ID.String()), slog.String("name", t.Name))
	return t, nil
}

// GetUser returns the user by id.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	doc, err := r.users.FindByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFound(UserEntityType, id.String())
	}
	return unmarshalUser(doc)
}

// GetTeam returns the team by id.
func (r *Repository) GetTeam(ctx context.Context, id uuid.UUID) (*Team, error) {
	doc, err := r.teams.FindByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFound(TeamEntityType, id.String())
	}
	return unmarshalTeam(doc)
}

// DeleteUser removes the user row.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	rows, err := r.users.Delete(ctx, r.db, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperror.NewNotFound(UserEntityType, id.String())
	}
	return nil
}

// DeleteTeam removes the team row.
func (r *Repository) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	rows, err := r.teams.Delete(ctx, r.db, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperror.NewNotFound(TeamEntityType, id.String())
	}
	return nil
}

// ResolveOwner implements entities.OwnerResolver. The reference must
// name an existing user or team; anything else is an invalid
// reference raised before any write happens.
func (r *Repository) ResolveOwner(ctx context.Context, db bun.IDB, ref *entities.Reference) (*entities.Reference, error) {
	switch ref.Type {
	case UserEntityType:
		doc, err := r.users.FindByID(ctx, db, ref.ID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, apperror.NewInvalidReference(UserEntityType, ref.ID.String())
		}
		u, err := unmarshalUser(doc)
		if err != nil {
			return nil, err
		}
		return &entities.Reference{ID: u.ID, Type: UserEntityType, Name: u.Name, DisplayName: u.DisplayName}, nil

	case TeamEntityType:
		doc, err := r.teams.FindByID(ctx, db, ref.ID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, apperror.NewInvalidReference(TeamEntityType, ref.ID.String())
		}
		t, err := unmarshalTeam(doc)
		if err != nil {
			return nil, err
		}
		return &entities.Reference{ID: t.ID, Type: TeamEntityType, Name: t.Name, DisplayName: t.DisplayName}, nil

	default:
		return nil, apperror.ErrInvalidReference.
			WithMessage("Owner must be a user or a team, got " + ref.Type).
			WithDetails(map[string]any{"type": ref.Type})
	}
}

// ResolveUser implements entities.OwnerResolver for follower
// references, which are always users.
func (r *Repository) ResolveUser(ctx context.Context, db bun.IDB, id uuid.UUID) (*entities.Reference, error) {
	doc, err := r.users.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewInvalidReference(UserEntityType, id.String())
	}
	u, err := unmarshalUser(doc)
	if err != nil {
		return nil, err
	}
	return &entities.Reference{ID: u.ID, Type: UserEntityType, Name: u.Name, DisplayName: u.DisplayName}, nil
}
