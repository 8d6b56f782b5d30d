package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/kasbon/kasirsync/internal/pos/localstore"
	"github.com/kasbon/kasirsync/internal/pos/sale"
	"github.com/kasbon/kasirsync/pkg/apperror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender scripts delivery outcomes per call
type fakeSender struct {
	calls    int
	outcomes []Outcome
	errs     []error
}

func (f *fakeSender) Send(ctx context.Context, s *localstore.Sale, lines []localstore.SaleLine, payments []localstore.Payment) (Outcome, error) {
	i := f.calls
	f.calls++
	var out Outcome
	var err error
	if i < len(f.outcomes) {
		out = f.outcomes[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

func newTestStore(t *testing.T) (*localstore.Store, localstore.Scope) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	scope := localstore.Scope{CompanyID: uuid.New(), OutletID: uuid.New()}
	require.NoError(t, store.PutRefItem(context.Background(), localstore.RefItem{
		CompanyID: scope.CompanyID,
		OutletID:  scope.OutletID,
		ItemID:    1,
		Name:      "Kopi",
		ItemType:  enum.ItemTypeProduct,
		Active:    true,
		Price:     decimal.NewFromInt(15000),
	}))
	return store, scope
}

// completeSale runs a real completion so the drainer has a job to deliver
func completeSale(t *testing.T, store *localstore.Store, scope localstore.Scope) *localstore.Sale {
	t.Helper()
	mgr := sale.NewManager(store)
	ctx := context.Background()

	draft, err := mgr.CreateDraft(ctx, scope, uuid.New())
	require.NoError(t, err)

	completed, err := mgr.CompleteSale(ctx, draft.SaleID, sale.CompleteInput{
		Lines: []localstore.SaleLine{
			{ItemID: 1, Name: "Kopi", ItemType: enum.ItemTypeProduct, UnitPrice: decimal.NewFromInt(15000), Qty: 1, Discount: decimal.Zero, LineTotal: decimal.NewFromInt(15000)},
		},
		Payments: []localstore.Payment{{Method: "CASH", Amount: decimal.NewFromInt(15000)}},
		Totals: localstore.SaleTotals{
			Subtotal:   decimal.NewFromInt(15000),
			GrandTotal: decimal.NewFromInt(15000),
			PaidTotal:  decimal.NewFromInt(15000),
		},
	})
	require.NoError(t, err)
	return completed
}

func testConfig() Config {
	return Config{
		Holder:      "test-drainer",
		RetryBase:   time.Second,
		RetryMax:    time.Minute,
		MaxAttempts: 3,
	}
}

func TestDrainOnce_DeliversAndMarksSent(t *testing.T) {
	store, scope := newTestStore(t)
	completed := completeSale(t, store, scope)
	ctx := context.Background()

	sender := &fakeSender{outcomes: []Outcome{{Result: enum.PushResultOK}}}
	d := NewDrainer(store, sender, testConfig())

	require.NoError(t, d.DrainOnce(ctx))
	assert.Equal(t, 1, sender.calls)

	job, err := store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	assert.Equal(t, enum.OutboxStatusSent, job.Status)

	got, err := store.GetSale(ctx, completed.SaleID)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncStatusSent, got.SyncStatus)
}

func TestDrainOnce_DuplicateCountsAsDelivered(t *testing.T) {
	store, scope := newTestStore(t)
	completed := completeSale(t, store, scope)
	ctx := context.Background()

	sender := &fakeSender{outcomes: []Outcome{{Result: enum.PushResultDuplicate}}}
	d := NewDrainer(store, sender, testConfig())

	require.NoError(t, d.DrainOnce(ctx))

	job, err := store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	assert.Equal(t, enum.OutboxStatusSent, job.Status)
}

func TestDrainOnce_NetworkFailureSchedulesRetry(t *testing.T) {
	store, scope := newTestStore(t)
	completed := completeSale(t, store, scope)
	ctx := context.Background()

	sender := &fakeSender{errs: []error{errors.New("dial tcp: connection refused")}}
	d := NewDrainer(store, sender, testConfig())

	before := time.Now()
	require.NoError(t, d.DrainOnce(ctx))

	job, err := store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	assert.Equal(t, enum.OutboxStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Contains(t, job.LastError, "connection refused")
	assert.True(t, job.NextRetryAt.After(before), "retry must be pushed into the future")
}

func TestDrainOnce_RetryCeilingLeavesJobFailed(t *testing.T) {
	store, scope := newTestStore(t)
	completed := completeSale(t, store, scope)
	ctx := context.Background()

	d := NewDrainer(store, &fakeSender{errs: []error{
		errors.New("boom"), errors.New("boom"), errors.New("boom"), errors.New("boom"),
	}}, testConfig())

	// Jump the clock past every backoff window so each pass retries.
	fake := time.Now()
	d.now = func() time.Time { return fake }
	for i := 0; i < 5; i++ {
		fake = fake.Add(time.Hour)
		require.NoError(t, d.DrainOnce(ctx))
	}

	job, err := store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	assert.Equal(t, enum.OutboxStatusFailed, job.Status)
	assert.Equal(t, 3, job.Attempts, "attempts stop at the ceiling")
	assert.Equal(t, "boom", job.LastError)

	got, err := store.GetSale(ctx, completed.SaleID)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncStatusFailed, got.SyncStatus)
}

func TestDeliver_StaleOutcomeDiscarded(t *testing.T) {
	store, scope := newTestStore(t)
	completed := completeSale(t, store, scope)
	ctx := context.Background()

	d := NewDrainer(store, &fakeSender{}, testConfig())

	token1, err := store.BeginOutboxAttempt(ctx, completed.ClientTxID)
	require.NoError(t, err)
	// A newer attempt supersedes token1 before its outcome lands.
	_, err = store.BeginOutboxAttempt(ctx, completed.ClientTxID)
	require.NoError(t, err)

	job, err := store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	err = d.applySuccess(ctx, *job, token1, Outcome{Result: enum.PushResultOK})
	assert.ErrorIs(t, err, apperror.ErrStaleAttempt)

	job, err = store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	assert.NotEqual(t, enum.OutboxStatusSent, job.Status, "stale OK must not mark SENT")

	got, err := store.GetSale(ctx, completed.SaleID)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncStatusPending, got.SyncStatus)
}

func TestDrainOnce_WithoutLeaseDoesNothing(t *testing.T) {
	store, scope := newTestStore(t)
	completeSale(t, store, scope)
	ctx := context.Background()

	// Another instance holds the lease.
	ok, err := store.AcquireLease(ctx, "other-drainer", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	sender := &fakeSender{outcomes: []Outcome{{Result: enum.PushResultOK}}}
	d := NewDrainer(store, sender, testConfig())

	assert.ErrorIs(t, d.DrainOnce(ctx), apperror.ErrNotLeader)
	assert.Zero(t, sender.calls)
}

func TestDrainOnce_ConflictVerdictKillsJob(t *testing.T) {
	store, scope := newTestStore(t)
	completed := completeSale(t, store, scope)
	ctx := context.Background()

	sender := &fakeSender{outcomes: []Outcome{
		{Result: enum.PushResultError, SyncCode: apperror.SyncCodeConflict, Message: apperror.ErrIdempotencyConflict.Message},
		{Result: enum.PushResultOK},
	}}
	d := NewDrainer(store, sender, testConfig())

	fake := time.Now()
	d.now = func() time.Time { return fake }
	require.NoError(t, d.DrainOnce(ctx))
	assert.Equal(t, 1, sender.calls)

	job, err := store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	assert.Equal(t, enum.OutboxStatusDead, job.Status)
	assert.Equal(t, apperror.ErrIdempotencyConflict.Message, job.LastError)

	got, err := store.GetSale(ctx, completed.SaleID)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncStatusFailed, got.SyncStatus)

	// Long past any backoff window the job must still never be resent.
	fake = fake.Add(time.Hour)
	require.NoError(t, d.DrainOnce(ctx))
	assert.Equal(t, 1, sender.calls)
}

func TestDrainOnce_RetryableVerdictKeepsRetrying(t *testing.T) {
	store, scope := newTestStore(t)
	completed := completeSale(t, store, scope)
	ctx := context.Background()

	sender := &fakeSender{outcomes: []Outcome{
		{Result: enum.PushResultError, SyncCode: apperror.SyncCodeRetryable, Message: apperror.ErrDeadlock.Message},
		{Result: enum.PushResultOK},
	}}
	d := NewDrainer(store, sender, testConfig())

	fake := time.Now()
	d.now = func() time.Time { return fake }
	require.NoError(t, d.DrainOnce(ctx))

	job, err := store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	assert.Equal(t, enum.OutboxStatusFailed, job.Status)

	fake = fake.Add(time.Hour)
	require.NoError(t, d.DrainOnce(ctx))
	assert.Equal(t, 2, sender.calls)

	job, err = store.GetOutboxJob(ctx, completed.ClientTxID)
	require.NoError(t, err)
	assert.Equal(t, enum.OutboxStatusSent, job.Status)
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	d := NewDrainer(nil, nil, Config{RetryBase: 2 * time.Second, RetryMax: 10 * time.Second})

	assert.Equal(t, 2*time.Second, d.Backoff(1))
	assert.Equal(t, 4*time.Second, d.Backoff(2))
	assert.Equal(t, 8*time.Second, d.Backoff(3))
	assert.Equal(t, 10*time.Second, d.Backoff(4))
	assert.Equal(t, 10*time.Second, d.Backoff(50))
}

var _ Sender = (*fakeSender)(nil)
