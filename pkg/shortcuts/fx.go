package shortcuts

import "go.uber.org/fx"

// Module provides the shortcut registry.
var Module = fx.Module("shortcuts",
	fx.Provide(NewRegistry),
)
