package service

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crashchain/crashchain/internal/dashboard/domain"
	leddomain "github.com/crashchain/crashchain/internal/ledger/domain"
	pindomain "github.com/crashchain/crashchain/internal/pinning/domain"
)

type fakePinner struct {
	pindomain.Client

	groups         []pindomain.Group
	filesByGroup   map[string][]pindomain.Artifact
	failListGroups bool
	failFilesFor   map[string]bool

	listGroupsCalls atomic.Int64
	gate            chan struct{}
}

func (p *fakePinner) ListGroups(context.Context) ([]pindomain.Group, error) {
	p.listGroupsCalls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	if p.failListGroups {
		return nil, pindomain.ErrUnavailable
	}
	return p.groups, nil
}

func (p *fakePinner) ListGroupFiles(_ context.Context, groupID string) ([]pindomain.Artifact, error) {
	if p.failFilesFor[groupID] {
		return nil, pindomain.ErrUnavailable
	}
	return p.filesByGroup[groupID], nil
}

type fakeLedger struct {
	leddomain.Client

	records     []leddomain.Record
	fail        bool
	failIndexes map[int64]bool
}

func (l *fakeLedger) TotalRecords(context.Context) (*big.Int, error) {
	if l.fail {
		return nil, leddomain.ErrUnreachable
	}
	return big.NewInt(int64(len(l.records))), nil
}

func (l *fakeLedger) RecordAt(_ context.Context, index *big.Int) (leddomain.Record, error) {
	if l.fail || l.failIndexes[index.Int64()] {
		return leddomain.Record{}, leddomain.ErrUnreachable
	}
	return l.records[index.Int64()], nil
}

func record(index int64, cids ...string) leddomain.Record {
	return leddomain.Record{
		Index:     big.NewInt(index),
		DataID:    "data-" + big.NewInt(index).String(),
		VIN:       "1HGCM82633A004352",
		Timestamp: big.NewInt(1700000000),
		CIDs:      cids,
	}
}

func newService(pinner *fakePinner, ledger *fakeLedger) domain.Service {
	return New(Params{Log: zap.NewNop(), Pinner: pinner, Ledger: ledger})
}

func TestRefreshJoinsRecordsByCID(t *testing.T) {
	pinner := &fakePinner{
		groups: []pindomain.Group{
			{ID: "g1", Name: "Crash-Report-1"},
			{ID: "g2", Name: "Crash-Report-2"},
		},
		filesByGroup: map[string][]pindomain.Artifact{
			"g1": {{CID: "QmAAA", Name: "report.pdf"}, {CID: "QmBBB", Name: "dashcam.jpg"}},
			"g2": {{CID: "QmCCC", Name: "report.pdf"}},
		},
	}
	ledger := &fakeLedger{records: []leddomain.Record{
		record(0, "QmBBB"),
		record(1, "QmCCC"),
		record(2, "QmZZZ"),
	}}

	views, err := newService(pinner, ledger).Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	require.Len(t, views[0].BlockchainData, 1)
	assert.EqualValues(t, 0, views[0].BlockchainData[0].Index.Int64())
	require.Len(t, views[1].BlockchainData, 1)
	assert.EqualValues(t, 1, views[1].BlockchainData[0].Index.Int64())
}

func TestRefreshWithLedgerDown(t *testing.T) {
	pinner := &fakePinner{
		groups: []pindomain.Group{{ID: "g1", Name: "Crash-Report-1"}},
		filesByGroup: map[string][]pindomain.Artifact{
			"g1": {{CID: "QmAAA", Name: "report.pdf"}},
		},
	}

	svc := newService(pinner, &fakeLedger{fail: true})
	views, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)

	// Groups survive ledger outages with empty chain context.
	assert.Len(t, views[0].Files, 1)
	assert.Empty(t, views[0].BlockchainData)
	assert.NotNil(t, views[0].BlockchainData)
}

func TestRefreshGroupFilesFailureDegrades(t *testing.T) {
	pinner := &fakePinner{
		groups: []pindomain.Group{
			{ID: "g1", Name: "Crash-Report-1"},
			{ID: "g2", Name: "Crash-Report-2"},
		},
		filesByGroup: map[string][]pindomain.Artifact{
			"g2": {{CID: "QmCCC", Name: "report.pdf"}},
		},
		failFilesFor: map[string]bool{"g1": true},
	}
	ledger := &fakeLedger{records: []leddomain.Record{record(0, "QmCCC")}}

	views, err := newService(pinner, ledger).Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Empty(t, views[0].Files)
	assert.Empty(t, views[0].BlockchainData)
	require.Len(t, views[1].BlockchainData, 1)
}

func TestRefreshSkipsUnreadableRecord(t *testing.T) {
	pinner := &fakePinner{
		groups: []pindomain.Group{{ID: "g1", Name: "Crash-Report-1"}},
		filesByGroup: map[string][]pindomain.Artifact{
			"g1": {{CID: "QmAAA", Name: "report.pdf"}, {CID: "QmCCC", Name: "dashcam.jpg"}},
		},
	}
	ledger := &fakeLedger{
		records: []leddomain.Record{
			record(0, "QmAAA"),
			record(1, "QmBBB"),
			record(2, "QmCCC"),
		},
		failIndexes: map[int64]bool{1: true},
	}

	views, err := newService(pinner, ledger).Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)

	// The unreadable index is skipped; records after it still join.
	require.Len(t, views[0].BlockchainData, 2)
	assert.EqualValues(t, 0, views[0].BlockchainData[0].Index.Int64())
	assert.EqualValues(t, 2, views[0].BlockchainData[1].Index.Int64())
}

func TestCurrentBeforeFirstRefresh(t *testing.T) {
	svc := newService(&fakePinner{}, &fakeLedger{})
	_, ok := svc.Current()
	assert.False(t, ok)
}

func TestRefreshStoresSnapshotAndNotifies(t *testing.T) {
	pinner := &fakePinner{groups: []pindomain.Group{{ID: "g1", Name: "Crash-Report-1"}}}
	svc := newService(pinner, &fakeLedger{})

	var notified [][]domain.GroupView
	svc.OnRefresh(func(views []domain.GroupView) {
		notified = append(notified, views)
	})

	views, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	current, ok := svc.Current()
	require.True(t, ok)
	assert.Equal(t, views, current)
	require.Len(t, notified, 1)
	assert.Equal(t, views, notified[0])
}

func TestFailedRebuildKeepsPreviousSnapshot(t *testing.T) {
	pinner := &fakePinner{groups: []pindomain.Group{{ID: "g1", Name: "Crash-Report-1"}}}
	svc := newService(pinner, &fakeLedger{})

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	pinner.failListGroups = true
	_, err = svc.Refresh(context.Background())
	require.Error(t, err)

	current, ok := svc.Current()
	require.True(t, ok)
	require.Len(t, current, 1)
	assert.Equal(t, "g1", current[0].GroupID)
}

func TestConcurrentRefreshCoalesces(t *testing.T) {
	pinner := &fakePinner{
		groups: []pindomain.Group{{ID: "g1", Name: "Crash-Report-1"}},
		gate:   make(chan struct{}),
	}
	svc := newService(pinner, &fakeLedger{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}

	// Let the followers join the in-flight rebuild before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(pinner.gate)
	wg.Wait()

	assert.EqualValues(t, 1, pinner.listGroupsCalls.Load())
}
