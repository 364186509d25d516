// Package locations wires the generic entity repository for location
// entities: paths inside a storage service such as a bucket, a prefix
// or a database directory. Location-specific data (path, locationType)
// travels in the open attribute map of the document.
package locations

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/opencatalog/catalog.core/domain/entities"
	"github.com/opencatalog/catalog.core/domain/relationships"
	"github.com/opencatalog/catalog.core/domain/services"
	"github.com/opencatalog/catalog.core/domain/tags"
	"github.com/opencatalog/catalog.core/pkg/cursor"
)

// EntityType is the relationship and reference type name for
// locations.
const EntityType = "location"

// Descriptor instantiates the entity repository for locations. The
// ":/" separator makes location FQNs read like URIs:
// "s3-primary:/raw-zone".
var Descriptor = entities.Descriptor{
	Type:        EntityType,
	Table:       "location_entity",
	Separator:   ":/",
	ServiceType: services.EntityType,
	Fields:      []string{entities.FieldOwner, entities.FieldFollowers, entities.FieldTags},
}

// Repository is the location entity repository.
type Repository struct {
	*entities.Repository
}

// NewRepository wires the generic repository with the location
// descriptor.
func NewRepository(
	log *slog.Logger,
	db bun.IDB,
	rels *relationships.Repository,
	tagIndex *tags.Repository,
	codec *cursor.Codec,
	serviceResolver entities.ServiceResolver,
	ownerResolver entities.OwnerResolver,
) *Repository {
	return &Repository{
		Repository: entities.NewRepository(log, db, Descriptor, rels, tagIndex, codec, serviceResolver, ownerResolver),
	}
}

// Module provides the location repository
var Module = fx.Module("locations",
	fx.Provide(NewRepository),
)
