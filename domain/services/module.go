package services

import (
	"go.uber.org/fx"

	"github.com/opencatalog/catalog.core/domain/entities"
)

// Module provides the storage service repository
var Module = fx.Module("services",
	fx.Provide(
		NewRepository,
		func(r *Repository) entities.ServiceResolver { return r },
	),
)
