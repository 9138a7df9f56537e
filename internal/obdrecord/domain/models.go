package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OBDRecord is one persisted OBD-II export tied to a submission's vehicle.
type OBDRecord struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	VIN       string       `gorm:"not null;index" json:"vin"`
	Location  string       `gorm:"not null" json:"location"`
	Data      string       `gorm:"not null" json:"data"`
	Timestamp time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (OBDRecord) TableName() string {
	return "obd_records"
}
