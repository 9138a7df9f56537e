package repository

import (
	"context"
	"fmt"

	"github.com/crashchain/crashchain/internal/obdrecord/domain"
	"github.com/crashchain/crashchain/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, record *domain.OBDRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: id %d", domain.ErrDuplicateRecord, record.ID)
		}
		return err
	}
	return nil
}

func (r *repo) List(ctx context.Context, vin string) ([]domain.OBDRecord, error) {
	var records []domain.OBDRecord
	stmt := r.db.WithContext(ctx).Model(&domain.OBDRecord{})
	if vin != "" {
		stmt = stmt.Where("vin = ?", vin)
	}
	if err := stmt.Order("timestamp DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
