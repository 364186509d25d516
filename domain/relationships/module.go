package relationships

import "go.uber.org/fx"

// Module provides the relationship graph store
var Module = fx.Module("relationships",
	fx.Provide(NewRepository),
)
