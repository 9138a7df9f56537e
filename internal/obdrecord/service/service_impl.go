package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crashchain/crashchain/internal/obdrecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("obdrecord.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Store validates the tabular export and persists it verbatim. The export
// must have a header row and at least one data row with numeric cells.
func (s *Service) Store(ctx context.Context, vin, location, csvData string) (domain.OBDRecord, error) {
	if err := validateExport(csvData); err != nil {
		return domain.OBDRecord{}, err
	}

	record := domain.OBDRecord{
		ID:        s.genID.Generate(),
		VIN:       vin,
		Location:  location,
		Data:      csvData,
		Timestamp: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, &record); err != nil {
		return domain.OBDRecord{}, err
	}
	s.log.Info("obd export stored", zap.String("vin", vin), zap.Int64("id", record.ID.Int64()))
	return record, nil
}

func (s *Service) List(ctx context.Context, vin string) ([]domain.OBDRecord, error) {
	return s.repo.List(ctx, strings.ToUpper(strings.TrimSpace(vin)))
}

func validateExport(csvData string) error {
	reader := csv.NewReader(strings.NewReader(csvData))
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedExport, err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("%w: need a header and at least one data row", domain.ErrMalformedExport)
	}
	for i, row := range rows[1:] {
		for j, cell := range row {
			if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
				return fmt.Errorf("%w: non-numeric cell at row %d column %d", domain.ErrMalformedExport, i+2, j+1)
			}
		}
	}
	return nil
}
