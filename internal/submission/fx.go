package submission

import (
	"github.com/crashchain/crashchain/internal/submission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("submission.validator",
	fx.Provide(service.New),
)
