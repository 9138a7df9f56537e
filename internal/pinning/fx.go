package pinning

import (
	"github.com/crashchain/crashchain/internal/pinning/pinata"
	"go.uber.org/fx"
)

var Module = fx.Module("pinning.client",
	fx.Provide(pinata.New),
)
