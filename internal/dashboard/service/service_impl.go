package service

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/crashchain/crashchain/internal/dashboard/domain"
	leddomain "github.com/crashchain/crashchain/internal/ledger/domain"
	pindomain "github.com/crashchain/crashchain/internal/pinning/domain"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Pinner pindomain.Client
	Ledger leddomain.Client
}

type Service struct {
	log    *zap.Logger
	pinner pindomain.Client
	ledger leddomain.Client

	flight   singleflight.Group
	snapshot atomic.Value // []domain.GroupView

	mu        sync.Mutex
	listeners []func([]domain.GroupView)
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("dashboard.service"),
		pinner: p.Pinner,
		ledger: p.Ledger,
	}
}

func (s *Service) Current() ([]domain.GroupView, bool) {
	views, ok := s.snapshot.Load().([]domain.GroupView)
	return views, ok
}

func (s *Service) OnRefresh(fn func([]domain.GroupView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Refresh rebuilds the snapshot from the pinning and ledger backends.
// Overlapping calls collapse into one rebuild and share its outcome. A
// failed rebuild leaves the previous snapshot in place.
func (s *Service) Refresh(ctx context.Context) ([]domain.GroupView, error) {
	result, err, _ := s.flight.Do("rebuild", func() (any, error) {
		views, err := s.rebuild(ctx)
		if err != nil {
			return nil, err
		}
		s.snapshot.Store(views)
		s.notify(views)
		return views, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.GroupView), nil
}

func (s *Service) notify(views []domain.GroupView) {
	s.mu.Lock()
	listeners := make([]func([]domain.GroupView), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(views)
	}
}

func (s *Service) rebuild(ctx context.Context) ([]domain.GroupView, error) {
	groups, err := s.pinner.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	// Ledger records are optional context. An unreachable ledger degrades
	// the view instead of failing the rebuild.
	records := s.loadRecords(ctx)

	views := make([]domain.GroupView, 0, len(groups))
	for _, group := range groups {
		view := domain.GroupView{
			GroupID:        group.ID,
			GroupName:      group.Name,
			Files:          []pindomain.Artifact{},
			BlockchainData: []leddomain.Record{},
		}

		files, err := s.pinner.ListGroupFiles(ctx, group.ID)
		if err != nil {
			s.log.Warn("group files unavailable",
				zap.String("group_id", group.ID),
				zap.Error(err),
			)
			views = append(views, view)
			continue
		}
		view.Files = append(view.Files, files...)

		cids := make(map[string]struct{}, len(files))
		for _, f := range files {
			cids[f.CID] = struct{}{}
		}
		for _, record := range records {
			if referencesAny(record, cids) {
				view.BlockchainData = append(view.BlockchainData, record)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) loadRecords(ctx context.Context) []leddomain.Record {
	total, err := s.ledger.TotalRecords(ctx)
	if err != nil {
		s.log.Warn("ledger records unavailable", zap.Error(err))
		return nil
	}

	var records []leddomain.Record
	one := big.NewInt(1)
	for i := new(big.Int); i.Cmp(total) < 0; i.Add(i, one) {
		record, err := s.ledger.RecordAt(ctx, new(big.Int).Set(i))
		if err != nil {
			// One unreadable index drops that record only.
			s.log.Warn("ledger record unavailable",
				zap.String("index", i.String()),
				zap.Error(err),
			)
			continue
		}
		records = append(records, record)
	}
	return records
}

func referencesAny(record leddomain.Record, cids map[string]struct{}) bool {
	for _, cid := range record.CIDs {
		if _, ok := cids[cid]; ok {
			return true
		}
	}
	return false
}
