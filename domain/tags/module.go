package tags

import "go.uber.org/fx"

// Module provides the tag usage index
var Module = fx.Module("tags",
	fx.Provide(NewRepository),
)
