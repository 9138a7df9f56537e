package obdrecord

import (
	"github.com/crashchain/crashchain/internal/obdrecord/repository"
	"github.com/crashchain/crashchain/internal/obdrecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("obdrecord.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
