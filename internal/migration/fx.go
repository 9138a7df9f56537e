package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	obddomain "github.com/crashchain/crashchain/internal/obdrecord/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		return conn.AutoMigrate(
			&obddomain.OBDRecord{},
		)
	}),
)
