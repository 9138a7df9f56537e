package report

import "go.uber.org/fx"

var Module = fx.Module("report.renderer",
	fx.Provide(New),
)
