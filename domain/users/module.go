package users

import (
	"go.uber.org/fx"

	"github.com/opencatalog/catalog.core/domain/entities"
)

// Module provides the user and team repository
var Module = fx.Module("users",
	fx.Provide(
		NewRepository,
		func(r *Repository) entities.OwnerResolver { return r },
	),
)
