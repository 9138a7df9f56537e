package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crashchain/crashchain/internal/clock"
	"github.com/crashchain/crashchain/internal/config"
	leddomain "github.com/crashchain/crashchain/internal/ledger/domain"
	obddomain "github.com/crashchain/crashchain/internal/obdrecord/domain"
	pindomain "github.com/crashchain/crashchain/internal/pinning/domain"
	"github.com/crashchain/crashchain/internal/report"
	subdomain "github.com/crashchain/crashchain/internal/submission/domain"
	subservice "github.com/crashchain/crashchain/internal/submission/service"
)

type stubRenderer struct {
	fail  bool
	calls atomic.Int64
}

func (r *stubRenderer) Render(_ context.Context, in report.Input) ([]byte, error) {
	r.calls.Add(1)
	if r.fail {
		return nil, errors.New("render blew up")
	}
	return []byte("report:" + in.Submission.VIN + ":" + in.GeneratedAt.Format(time.RFC3339)), nil
}

// fakePinner assigns CIDs as a pure function of content, like the real
// backend does.
type fakePinner struct {
	mu         sync.Mutex
	failCreate bool
	failPin    bool
	failAdd    bool

	groups []pindomain.Group
	pins   []string
	added  map[string][]string
}

func newFakePinner() *fakePinner {
	return &fakePinner{added: map[string][]string{}}
}

func (p *fakePinner) CreateGroup(_ context.Context, name string) (pindomain.Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate {
		return pindomain.Group{}, pindomain.ErrUnavailable
	}
	g := pindomain.Group{ID: "group-1", Name: name}
	p.groups = append(p.groups, g)
	return g, nil
}

func (p *fakePinner) PinFile(_ context.Context, _ string, content io.Reader) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPin {
		return "", pindomain.ErrUnavailable
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	cid := "Qm" + hex.EncodeToString(sum[:8])
	p.pins = append(p.pins, cid)
	return cid, nil
}

func (p *fakePinner) AddCIDs(_ context.Context, groupID string, cids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAdd {
		return pindomain.ErrUnavailable
	}
	p.added[groupID] = append(p.added[groupID], cids...)
	return nil
}

func (p *fakePinner) ListGroups(context.Context) ([]pindomain.Group, error) {
	return p.groups, nil
}

func (p *fakePinner) GetGroup(_ context.Context, groupID string) (pindomain.GroupDetail, error) {
	return pindomain.GroupDetail{ID: groupID, CIDs: p.added[groupID]}, nil
}

func (p *fakePinner) ListGroupFiles(context.Context, string) ([]pindomain.Artifact, error) {
	return nil, nil
}

func (p *fakePinner) FetchContent(context.Context, string) (pindomain.Content, error) {
	return pindomain.Content{}, nil
}

func (p *fakePinner) GatewayURL(cid string) string {
	return "https://gateway.test/ipfs/" + cid
}

type storeCall struct {
	dataID, vin, location string
	cids                  []string
}

type fakeLedger struct {
	fail    bool
	pending bool
	calls   []storeCall
}

func (l *fakeLedger) EnsureDeployed(context.Context) error {
	if l.fail {
		return leddomain.ErrUnreachable
	}
	return nil
}

func (l *fakeLedger) StoreMetadata(_ context.Context, dataID, vin, location string, cids []string) (leddomain.WriteConfirmation, error) {
	if l.fail {
		return leddomain.WriteConfirmation{}, leddomain.ErrUnreachable
	}
	l.calls = append(l.calls, storeCall{dataID: dataID, vin: vin, location: location, cids: cids})
	conf := leddomain.WriteConfirmation{TxHash: "0xabc"}
	if !l.pending {
		conf.BlockNumber = big.NewInt(42)
	}
	return conf, nil
}

func (l *fakeLedger) RecordAt(context.Context, *big.Int) (leddomain.Record, error) {
	return leddomain.Record{}, leddomain.ErrUnreachable
}

func (l *fakeLedger) TotalRecords(context.Context) (*big.Int, error) {
	return big.NewInt(int64(len(l.calls))), nil
}

type fakeOBD struct {
	fail   bool
	stored []string
}

func (o *fakeOBD) Store(_ context.Context, vin, _, csvData string) (obddomain.OBDRecord, error) {
	if o.fail {
		return obddomain.OBDRecord{}, obddomain.ErrMalformedExport
	}
	o.stored = append(o.stored, csvData)
	return obddomain.OBDRecord{VIN: vin}, nil
}

func (o *fakeOBD) List(context.Context, string) ([]obddomain.OBDRecord, error) {
	return nil, nil
}

type fixture struct {
	svc      Service
	renderer *stubRenderer
	pinner   *fakePinner
	ledger   *fakeLedger
	obd      *fakeOBD
	dir      string
}

func newFixture(t *testing.T, mutate func(*fixture)) *fixture {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		renderer: &stubRenderer{},
		pinner:   newFakePinner(),
		ledger:   &fakeLedger{},
		obd:      &fakeOBD{},
		dir:      t.TempDir(),
	}
	if mutate != nil {
		mutate(f)
	}

	validator := subservice.New(subservice.Params{
		Log:   zap.NewNop(),
		Rules: config.NewStaticRulesHolder(config.DefaultValidationRules()),
	})

	f.svc = New(Params{
		Log:       zap.NewNop(),
		Cfg:       config.Config{UploadDir: f.dir},
		Clock:     clock.NewFakeClock(time.Unix(1700000000, 0)),
		GenID:     node,
		Validator: validator,
		Renderer:  f.renderer,
		Pinner:    f.pinner,
		Ledger:    f.ledger,
		OBD:       f.obd,
	})
	return f
}

func validRaw() subdomain.RawSubmission {
	return subdomain.RawSubmission{
		"vinNumber":        "1HGCM82633A004352",
		"location":         "47.6097,-122.3331",
		"impactSeverity":   "high",
		"throttlePosition": "82.5",
		"brakePosition":    "97",
	}
}

func assertNoStagingLeftovers(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessPublishesMediaAndReport(t *testing.T) {
	f := newFixture(t, nil)

	media := &Media{Name: "dashcam.jpg", ContentType: "image/jpeg", Data: []byte("jpeg bytes")}
	result, verrs, err := f.svc.Process(context.Background(), validRaw(), media)
	require.NoError(t, err)
	require.Nil(t, verrs)

	assert.Equal(t, "group-1", result.GroupID)
	assert.Equal(t, "Crash-Report-1700000000000", result.GroupName)

	// Media is pinned before the report, and the group holds both CIDs.
	require.Len(t, result.Files, 2)
	require.Len(t, f.pinner.pins, 2)
	assert.Equal(t, f.pinner.pins[0], result.Files[0].CID)
	assert.Equal(t, f.pinner.pins[1], result.Files[1].CID)
	assert.Equal(t, f.pinner.pins, f.pinner.added["group-1"])
	assert.Equal(t, "https://gateway.test/ipfs/"+result.Files[0].CID, result.Files[0].URL)

	assert.Equal(t, LedgerConfirmed, result.Ledger.Status)
	assert.Equal(t, "0xabc", result.Ledger.TxHash)
	require.NotNil(t, result.Ledger.BlockNumber)
	assert.EqualValues(t, 42, result.Ledger.BlockNumber.Int64())

	require.Len(t, f.ledger.calls, 1)
	assert.Equal(t, "1HGCM82633A004352", f.ledger.calls[0].vin)
	assert.Equal(t, f.pinner.pins, f.ledger.calls[0].cids)

	assert.Empty(t, f.obd.stored)
	assertNoStagingLeftovers(t, f.dir)
}

func TestProcessWithoutMediaPinsReportOnly(t *testing.T) {
	f := newFixture(t, nil)

	result, verrs, err := f.svc.Process(context.Background(), validRaw(), nil)
	require.NoError(t, err)
	require.Nil(t, verrs)

	require.Len(t, result.Files, 1)
	assert.Equal(t, f.pinner.pins, f.pinner.added["group-1"])
	assertNoStagingLeftovers(t, f.dir)
}

func TestProcessRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	raw := validRaw()
	delete(raw, "throttlePosition")

	_, verrs, err := f.svc.Process(context.Background(), raw, nil)
	require.NoError(t, err)
	require.NotNil(t, verrs)
	assert.Contains(t, verrs.Fields(), "throttlePosition")

	// Rejection happens before any side effect, rendering included.
	assert.Zero(t, f.renderer.calls.Load())
	assert.Empty(t, f.pinner.groups)
	assert.Empty(t, f.pinner.pins)
	assert.Empty(t, f.ledger.calls)
}

func TestProcessRejectsOutOfRangeThrottle(t *testing.T) {
	f := newFixture(t, nil)

	raw := validRaw()
	raw["throttlePosition"] = "150"

	_, verrs, err := f.svc.Process(context.Background(), raw, nil)
	require.NoError(t, err)
	require.NotNil(t, verrs)
	assert.Contains(t, verrs.Fields(), "throttlePosition")
	assert.Zero(t, f.renderer.calls.Load())
}

func TestProcessAbortsWhenPinFails(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.pinner.failPin = true })

	_, verrs, err := f.svc.Process(context.Background(), validRaw(), &Media{Name: "clip.mp4", Data: []byte("mp4")})
	require.Error(t, err)
	assert.Nil(t, verrs)

	// No CID attachment, no ledger write, no staging leftovers.
	assert.Empty(t, f.pinner.added)
	assert.Empty(t, f.ledger.calls)
	assertNoStagingLeftovers(t, f.dir)
}

func TestProcessAbortsWhenGroupCreationFails(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.pinner.failCreate = true })

	_, _, err := f.svc.Process(context.Background(), validRaw(), nil)
	require.Error(t, err)
	assert.Empty(t, f.pinner.pins)
	assertNoStagingLeftovers(t, f.dir)
}

func TestProcessLedgerFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.ledger.fail = true })

	result, verrs, err := f.svc.Process(context.Background(), validRaw(), nil)
	require.NoError(t, err)
	require.Nil(t, verrs)

	assert.Equal(t, LedgerFailed, result.Ledger.Status)
	assert.NotEmpty(t, result.Ledger.Error)
	assert.Empty(t, result.Ledger.TxHash)

	// Pinned artifacts survive the failed write.
	assert.Len(t, result.Files, 1)
	assert.Equal(t, f.pinner.pins, f.pinner.added["group-1"])
}

func TestProcessPendingReceiptIsSubmitted(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.ledger.pending = true })

	result, _, err := f.svc.Process(context.Background(), validRaw(), nil)
	require.NoError(t, err)

	assert.Equal(t, LedgerSubmitted, result.Ledger.Status)
	assert.Equal(t, "0xabc", result.Ledger.TxHash)
	assert.Nil(t, result.Ledger.BlockNumber)
}

func TestProcessStoresOBDExport(t *testing.T) {
	f := newFixture(t, nil)

	raw := validRaw()
	raw["obdData"] = "speed,rpm\n61.2,2400\n"

	_, verrs, err := f.svc.Process(context.Background(), raw, nil)
	require.NoError(t, err)
	require.Nil(t, verrs)

	require.Len(t, f.obd.stored, 1)
	assert.Equal(t, raw["obdData"], f.obd.stored[0])
}

func TestProcessOBDFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.obd.fail = true })

	raw := validRaw()
	raw["obdData"] = "not,really\ncsv,data\n"

	result, verrs, err := f.svc.Process(context.Background(), raw, nil)
	require.NoError(t, err)
	require.Nil(t, verrs)
	assert.Equal(t, "group-1", result.GroupID)
}

func TestProcessSameContentYieldsSameCIDs(t *testing.T) {
	f := newFixture(t, nil)

	first, _, err := f.svc.Process(context.Background(), validRaw(), nil)
	require.NoError(t, err)
	second, _, err := f.svc.Process(context.Background(), validRaw(), nil)
	require.NoError(t, err)

	// Same content, same CID. The runs stay independent groups regardless.
	assert.Equal(t, first.Files[0].CID, second.Files[0].CID)
}
