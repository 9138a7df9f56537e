package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/crashchain/crashchain/internal/clock"
	"github.com/crashchain/crashchain/internal/config"
	leddomain "github.com/crashchain/crashchain/internal/ledger/domain"
	"github.com/crashchain/crashchain/internal/observability/metrics"
	obddomain "github.com/crashchain/crashchain/internal/obdrecord/domain"
	pindomain "github.com/crashchain/crashchain/internal/pinning/domain"
	"github.com/crashchain/crashchain/internal/report"
	subdomain "github.com/crashchain/crashchain/internal/submission/domain"
)

// Service runs the publish pipeline for one submission: validate, render,
// pin, then record. A non-nil ValidationErrors means the input was rejected
// before any side effect.
type Service interface {
	Process(ctx context.Context, raw subdomain.RawSubmission, media *Media) (Result, *subdomain.ValidationErrors, error)
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Clock     clock.Clock
	GenID     *snowflake.Node
	Validator subdomain.Validator
	Renderer  report.Renderer
	Pinner    pindomain.Client
	Ledger    leddomain.Client
	OBD       obddomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type service struct {
	log       *zap.Logger
	uploadDir string
	clock     clock.Clock
	genID     *snowflake.Node
	validator subdomain.Validator
	renderer  report.Renderer
	pinner    pindomain.Client
	ledger    leddomain.Client
	obd       obddomain.Service
	metrics   *metrics.Metrics
}

func New(p Params) Service {
	return &service{
		log:       p.Log.Named("pipeline.service"),
		uploadDir: p.Cfg.UploadDir,
		clock:     p.Clock,
		genID:     p.GenID,
		validator: p.Validator,
		renderer:  p.Renderer,
		pinner:    p.Pinner,
		ledger:    p.Ledger,
		obd:       p.OBD,
		metrics:   p.Metrics,
	}
}

// Process publishes one submission. The group is attached to its CIDs only
// after every upload succeeded, so a partial run never leaves a group that
// claims artifacts it does not have. Ledger and OBD failures are recorded
// but never abort an otherwise successful run.
func (s *service) Process(ctx context.Context, raw subdomain.RawSubmission, media *Media) (Result, *subdomain.ValidationErrors, error) {
	sub, verrs := s.validator.Validate(raw)
	if verrs != nil {
		s.metrics.RecordSubmission("rejected")
		return Result{}, verrs, nil
	}

	now := s.clock.Now().UTC()
	pdf, err := s.renderer.Render(ctx, report.Input{Submission: sub, GeneratedAt: now})
	if err != nil {
		s.metrics.RecordSubmission("failed")
		return Result{}, nil, fmt.Errorf("render report: %w", err)
	}

	reportName := fmt.Sprintf("crash-report-%d.pdf", now.UnixMilli())
	reportPath, err := s.stage("crash-report-*.pdf", pdf)
	if err != nil {
		s.metrics.RecordSubmission("failed")
		return Result{}, nil, fmt.Errorf("stage report: %w", err)
	}
	defer os.Remove(reportPath)

	var mediaPath string
	if media != nil {
		mediaPath, err = s.stage("crash-media-*", media.Data)
		if err != nil {
			s.metrics.RecordSubmission("failed")
			return Result{}, nil, fmt.Errorf("stage media: %w", err)
		}
		defer os.Remove(mediaPath)
	}

	groupName := fmt.Sprintf("Crash-Report-%d", now.UnixMilli())
	group, err := s.pinner.CreateGroup(ctx, groupName)
	if err != nil {
		s.metrics.RecordSubmission("failed")
		return Result{}, nil, fmt.Errorf("create group: %w", err)
	}

	// Media first, report last. The report CID always closes the list.
	var cids []string
	if media != nil {
		cid, err := s.pin(ctx, media.Name, mediaPath)
		if err != nil {
			s.metrics.RecordSubmission("failed")
			return Result{}, nil, fmt.Errorf("pin media: %w", err)
		}
		cids = append(cids, cid)
	}
	reportCID, err := s.pin(ctx, reportName, reportPath)
	if err != nil {
		s.metrics.RecordSubmission("failed")
		return Result{}, nil, fmt.Errorf("pin report: %w", err)
	}
	cids = append(cids, reportCID)

	if err := s.pinner.AddCIDs(ctx, group.ID, cids); err != nil {
		s.metrics.RecordSubmission("failed")
		return Result{}, nil, fmt.Errorf("attach cids to group %s: %w", group.ID, err)
	}

	files := make([]ArtifactRef, 0, len(cids))
	for _, cid := range cids {
		files = append(files, ArtifactRef{CID: cid, URL: s.pinner.GatewayURL(cid)})
	}

	if sub.OBDExport != "" {
		if _, err := s.obd.Store(ctx, sub.VIN, sub.Location, sub.OBDExport); err != nil {
			s.log.Warn("obd export not stored",
				zap.String("vin", sub.VIN),
				zap.Error(err),
			)
		}
	}

	ledgerStatus := s.recordOnLedger(ctx, sub, cids)

	s.metrics.RecordSubmission("accepted")
	s.log.Info("submission published",
		zap.String("group_id", group.ID),
		zap.String("group_name", groupName),
		zap.Int("artifacts", len(cids)),
		zap.String("ledger_status", ledgerStatus.Status),
	)

	return Result{
		GroupID:   group.ID,
		GroupName: groupName,
		Files:     files,
		Ledger:    ledgerStatus,
	}, nil, nil
}

func (s *service) recordOnLedger(ctx context.Context, sub subdomain.Submission, cids []string) LedgerStatus {
	dataID := s.genID.Generate().String()
	conf, err := s.ledger.StoreMetadata(ctx, dataID, sub.VIN, sub.Location, cids)
	if err != nil {
		s.metrics.RecordLedgerWrite("failed")
		s.log.Warn("ledger write failed",
			zap.String("data_id", dataID),
			zap.String("vin", sub.VIN),
			zap.Error(err),
		)
		return LedgerStatus{Status: LedgerFailed, Error: err.Error()}
	}
	if conf.BlockNumber == nil {
		s.metrics.RecordLedgerWrite("submitted")
		return LedgerStatus{Status: LedgerSubmitted, TxHash: conf.TxHash}
	}
	s.metrics.RecordLedgerWrite("confirmed")
	return LedgerStatus{
		Status:      LedgerConfirmed,
		TxHash:      conf.TxHash,
		BlockNumber: conf.BlockNumber,
	}
}

// stage writes artifact bytes to a private temp file so uploads stream from
// disk. Callers own removal of the returned path.
func (s *service) stage(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(s.uploadDir, pattern)
	if err != nil {
		return "", err
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(f.Name())
		return "", errors.Join(werr, cerr)
	}
	return f.Name(), nil
}

func (s *service) pin(ctx context.Context, name, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	cid, err := s.pinner.PinFile(ctx, name, f)
	if err != nil {
		return "", err
	}
	s.metrics.RecordArtifactPinned()
	return cid, nil
}
