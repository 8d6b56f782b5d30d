package refsync

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/pos/localstore"
	"github.com/kasbon/kasirsync/internal/presentation/http/dto/response"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePuller serves a fixed snapshot and counts round trips
type fakePuller struct {
	calls    atomic.Int64
	snapshot *response.PullResponse

	// Block holds Pull open until released, to force coalescing overlap.
	block chan struct{}
}

func (f *fakePuller) Pull(ctx context.Context, outletID uuid.UUID, sinceVersion int64) (*response.PullResponse, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.snapshot, nil
}

func snapshotV(version int64) *response.PullResponse {
	return &response.PullResponse{
		OK:          true,
		DataVersion: version,
		Items: []response.PullItem{
			{ItemID: 1, Name: "Kopi", Type: "PRODUCT", Active: true},
			{ItemID: 2, Name: "Teh", Type: "PRODUCT", Active: true},
		},
		Prices: []response.PullPrice{
			{ItemID: 1, Price: decimal.NewFromInt(15000)},
			{ItemID: 2, Price: decimal.NewFromInt(10000)},
		},
		Config: &response.PullConfig{
			Tax:            response.PullTax{Rate: decimal.NewFromFloat(0.11), Inclusive: false},
			PaymentMethods: []string{"CASH", "QRIS"},
		},
	}
}

func newTestSyncer(t *testing.T, puller Puller) (*Syncer, *localstore.Store, localstore.Scope) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	scope := localstore.Scope{CompanyID: uuid.New(), OutletID: uuid.New()}
	return NewSyncer(store, puller), store, scope
}

func TestIngest_AppliesSnapshot(t *testing.T) {
	puller := &fakePuller{snapshot: snapshotV(7)}
	syncer, store, scope := newTestSyncer(t, puller)
	ctx := context.Background()

	res, err := syncer.Ingest(ctx, scope, nil)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.EqualValues(t, 7, res.DataVersion)
	assert.Equal(t, 2, res.Items)

	items, err := store.ListRefItems(ctx, scope)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(15000)))

	cfg, err := store.GetScopeConfig(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.DataVersion)
	assert.Equal(t, []string{"CASH", "QRIS"}, cfg.PaymentMethods)
	assert.True(t, cfg.TaxRate.Equal(decimal.NewFromFloat(0.11)))
}

func TestIngest_OlderVersionIsNoOp(t *testing.T) {
	puller := &fakePuller{snapshot: snapshotV(7)}
	syncer, store, scope := newTestSyncer(t, puller)
	ctx := context.Background()

	_, err := syncer.Ingest(ctx, scope, nil)
	require.NoError(t, err)

	// Server replays the same version; cache must not move.
	res, err := syncer.Ingest(ctx, scope, nil)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.EqualValues(t, 7, res.DataVersion)

	// Even a forced lower since cannot roll the watermark back.
	lower := int64(0)
	res, err = syncer.Ingest(ctx, scope, &lower)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	cfg, err := store.GetScopeConfig(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.DataVersion)
}

func TestIngest_NotModifiedIsNoOp(t *testing.T) {
	puller := &fakePuller{snapshot: &response.PullResponse{OK: true, DataVersion: 3, NotModified: true}}
	syncer, _, scope := newTestSyncer(t, puller)

	res, err := syncer.Ingest(context.Background(), scope, nil)
	require.NoError(t, err)
	assert.False(t, res.Applied)
}

func TestIngest_NewerVersionRetiresMissingItems(t *testing.T) {
	puller := &fakePuller{snapshot: snapshotV(7)}
	syncer, store, scope := newTestSyncer(t, puller)
	ctx := context.Background()

	_, err := syncer.Ingest(ctx, scope, nil)
	require.NoError(t, err)

	puller.snapshot = &response.PullResponse{
		OK:          true,
		DataVersion: 8,
		Items:       []response.PullItem{{ItemID: 1, Name: "Kopi", Type: "PRODUCT", Active: true}},
		Prices:      []response.PullPrice{{ItemID: 1, Price: decimal.NewFromInt(16000)}},
	}

	res, err := syncer.Ingest(ctx, scope, nil)
	require.NoError(t, err)
	assert.True(t, res.Applied)

	items, err := store.ListRefItems(ctx, scope)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].Active)
	assert.False(t, items[1].Active, "item absent from the snapshot is retired, not deleted")
}

func TestIngest_CoalescesConcurrentCalls(t *testing.T) {
	puller := &fakePuller{snapshot: snapshotV(7), block: make(chan struct{})}
	syncer, _, scope := newTestSyncer(t, puller)
	ctx := context.Background()

	const callers = 5
	results := make([]*Result, callers)
	errs := make([]error, callers)

	var started, wg sync.WaitGroup
	started.Add(callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], errs[i] = syncer.Ingest(ctx, scope, nil)
		}(i)
	}

	started.Wait()
	// Give every caller time to reach the in-flight table before the
	// leader's round trip completes.
	time.Sleep(50 * time.Millisecond)
	close(puller.block)
	wg.Wait()

	assert.EqualValues(t, 1, puller.calls.Load(), "joiners must share the leader's round trip")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.EqualValues(t, 7, results[i].DataVersion)
	}
}

func TestIngest_DistinctScopesDoNotCoalesce(t *testing.T) {
	puller := &fakePuller{snapshot: snapshotV(7)}
	syncer, _, _ := newTestSyncer(t, puller)
	ctx := context.Background()

	scopeA := localstore.Scope{CompanyID: uuid.New(), OutletID: uuid.New()}
	scopeB := localstore.Scope{CompanyID: scopeA.CompanyID, OutletID: uuid.New()}

	_, err := syncer.Ingest(ctx, scopeA, nil)
	require.NoError(t, err)
	_, err = syncer.Ingest(ctx, scopeB, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 2, puller.calls.Load())
}
