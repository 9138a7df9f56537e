package notifier

import (
	"go.uber.org/fx"

	dashdomain "github.com/crashchain/crashchain/internal/dashboard/domain"
)

var Module = fx.Module("notifier.hub",
	fx.Provide(New),
	fx.Invoke(subscribe),
)

func subscribe(dashboard dashdomain.Service, hub *Hub) {
	dashboard.OnRefresh(hub.Broadcast)
}
