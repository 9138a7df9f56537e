package ledger

import (
	"github.com/crashchain/crashchain/internal/ledger/ethrpc"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.client",
	fx.Provide(ethrpc.New),
)
