package localstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSale(t *testing.T, s *Store, scope Scope) *Sale {
	t.Helper()
	sale := &Sale{
		SaleID:    uuid.New(),
		CompanyID: scope.CompanyID,
		OutletID:  scope.OutletID,
		CashierID: uuid.New(),
	}
	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return s.InsertDraftSale(context.Background(), tx, sale)
	})
	require.NoError(t, err)
	return sale
}

func seedJob(t *testing.T, s *Store, scope Scope) *OutboxJob {
	t.Helper()
	sale := seedSale(t, s, scope)
	job := &OutboxJob{
		DedupeKey: uuid.NewString(),
		SaleID:    sale.SaleID,
		CompanyID: scope.CompanyID,
		OutletID:  scope.OutletID,
	}
	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return s.EnqueueOutboxJob(context.Background(), tx, job)
	})
	require.NoError(t, err)
	return job
}

func testScope() Scope {
	return Scope{CompanyID: uuid.New(), OutletID: uuid.New()}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}
}

func TestLease_SecondHolderRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireLease(ctx, "drainer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AcquireLease(ctx, "drainer-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not take a live lease")

	// Same holder re-acquires freely.
	ok, err = s.AcquireLease(ctx, "drainer-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLease_TakeoverAfterExpiry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireLease(ctx, "drainer-a", -time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AcquireLease(ctx, "drainer-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease must be claimable")

	// The old holder can no longer renew.
	ok, err = s.RenewLease(ctx, "drainer-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLease_ReleaseThenReacquire(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireLease(ctx, "drainer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.ReleaseLease(ctx, "drainer-a"))

	ok, err = s.AcquireLease(ctx, "drainer-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnqueueOutboxJob_ConcurrentEnqueuesCollapse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := testScope()
	job := seedJob(t, s, scope)

	// Re-enqueueing the same dedupe key is silently absorbed.
	dup := *job
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		return s.EnqueueOutboxJob(ctx, tx, &dup)
	})
	require.NoError(t, err)

	var count int
	err = s.DB().QueryRow("SELECT COUNT(*) FROM outbox_jobs WHERE dedupe_key = ?", job.DedupeKey).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkOutboxSent_StaleTokenDiscarded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	job := seedJob(t, s, testScope())

	token1, err := s.BeginOutboxAttempt(ctx, job.DedupeKey)
	require.NoError(t, err)
	token2, err := s.BeginOutboxAttempt(ctx, job.DedupeKey)
	require.NoError(t, err)
	require.Greater(t, token2, token1)

	// The superseded attempt's outcome changes nothing.
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := s.MarkOutboxSent(ctx, tx, job.DedupeKey, token1)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := s.MarkOutboxSent(ctx, tx, job.DedupeKey, token2)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}

func TestOutboxSent_IsTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	job := seedJob(t, s, testScope())

	token, err := s.BeginOutboxAttempt(ctx, job.DedupeKey)
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := s.MarkOutboxSent(ctx, tx, job.DedupeKey, token)
		return err
	})
	require.NoError(t, err)

	// A late failure outcome, even with the right token, cannot downgrade.
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := s.MarkOutboxFailed(ctx, tx, job.DedupeKey, token, time.Now(), "late timeout")
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	// And a new attempt can no longer begin.
	_, err = s.BeginOutboxAttempt(ctx, job.DedupeKey)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	got, err := s.GetOutboxJob(ctx, job.DedupeKey)
	require.NoError(t, err)
	assert.Equal(t, enum.OutboxStatusSent, got.Status)
}

func TestDueOutboxJobs_RespectsRetryTimeAndAttempts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := testScope()

	due := seedJob(t, s, scope)
	waiting := seedJob(t, s, scope)
	exhausted := seedJob(t, s, scope)

	token, err := s.BeginOutboxAttempt(ctx, waiting.DedupeKey)
	require.NoError(t, err)
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := s.MarkOutboxFailed(ctx, tx, waiting.DedupeKey, token, time.Now().Add(time.Hour), "retry later")
		return err
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tok, err := s.BeginOutboxAttempt(ctx, exhausted.DedupeKey)
		require.NoError(t, err)
		err = s.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := s.MarkOutboxFailed(ctx, tx, exhausted.DedupeKey, tok, time.Now().Add(-time.Minute), "boom")
			return err
		})
		require.NoError(t, err)
	}

	jobs, err := s.DueOutboxJobs(ctx, time.Now(), 3, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, due.DedupeKey, jobs[0].DedupeKey)
}

func TestPromoteDraftSale_SingleShot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sale := seedSale(t, s, testScope())

	totals := SaleTotals{
		Subtotal:   decimal.NewFromInt(100),
		GrandTotal: decimal.NewFromInt(100),
		PaidTotal:  decimal.NewFromInt(100),
	}

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := s.PromoteDraftSale(ctx, tx, sale.SaleID, enum.SaleStatusCompleted, uuid.NewString(), time.Now(), totals)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	// The sale is no longer a draft, so a second promotion matches nothing.
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := s.PromoteDraftSale(ctx, tx, sale.SaleID, enum.SaleStatusCompleted, uuid.NewString(), time.Now(), totals)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)
}

func TestApplyRefSnapshot_RetiresAbsentItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := testScope()

	first := []RefItem{
		{ItemID: 1, Name: "Kopi", ItemType: enum.ItemTypeProduct, Active: true, Price: decimal.NewFromInt(15000)},
		{ItemID: 2, Name: "Teh", ItemType: enum.ItemTypeProduct, Active: true, Price: decimal.NewFromInt(10000)},
	}
	cfg := ScopeConfig{DataVersion: 5, TaxRate: decimal.NewFromFloat(0.11), PaymentMethods: []string{"CASH", "QRIS"}}
	require.NoError(t, s.ApplyRefSnapshot(ctx, scope, first, cfg))

	// Item 2 disappears from the next version.
	second := []RefItem{
		{ItemID: 1, Name: "Kopi Susu", ItemType: enum.ItemTypeProduct, Active: true, Price: decimal.NewFromInt(18000)},
	}
	cfg.DataVersion = 6
	require.NoError(t, s.ApplyRefSnapshot(ctx, scope, second, cfg))

	items, err := s.ListRefItems(ctx, scope)
	require.NoError(t, err)
	require.Len(t, items, 2, "retired items are kept, never deleted")

	assert.True(t, items[0].Active)
	assert.Equal(t, "Kopi Susu", items[0].Name)
	assert.False(t, items[1].Active)

	got, err := s.GetScopeConfig(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 6, got.DataVersion)
	assert.Equal(t, []string{"CASH", "QRIS"}, got.PaymentMethods)
}

func TestSaleRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := testScope()
	sale := seedSale(t, s, scope)

	lines := []SaleLine{
		{ItemID: 1, Name: "Kopi", ItemType: enum.ItemTypeProduct, UnitPrice: decimal.NewFromInt(15000), Qty: 2, Discount: decimal.Zero, LineTotal: decimal.NewFromInt(30000)},
	}
	payments := []Payment{
		{Method: "CASH", Amount: decimal.NewFromInt(50000), Reference: ""},
	}

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.InsertSaleLines(ctx, tx, sale.SaleID, lines); err != nil {
			return err
		}
		return s.InsertPayments(ctx, tx, sale.SaleID, payments)
	})
	require.NoError(t, err)

	gotLines, err := s.GetSaleLines(ctx, sale.SaleID)
	require.NoError(t, err)
	require.Len(t, gotLines, 1)
	assert.True(t, gotLines[0].LineTotal.Equal(decimal.NewFromInt(30000)))

	gotPayments, err := s.GetPayments(ctx, sale.SaleID)
	require.NoError(t, err)
	require.Len(t, gotPayments, 1)
	assert.Equal(t, "CASH", gotPayments[0].Method)
}

func TestTimestampEncoding_SortsLikeTime(t *testing.T) {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(500 * time.Millisecond),
		base.Add(time.Second),
		base.Add(time.Second + 42*time.Microsecond),
		base.Add(2 * time.Second),
	}

	for i := 1; i < len(times); i++ {
		assert.Less(t, formatTime(times[i-1]), formatTime(times[i]),
			"encoded timestamps must sort like the times they encode")
	}

	for _, ts := range times {
		got, err := parseTime(formatTime(ts))
		require.NoError(t, err)
		assert.True(t, got.Equal(ts))
	}

	// Older rows without the padded fractional part still parse.
	got, err := parseTime("2026-02-03T09:00:00.5Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(base.Add(500*time.Millisecond)))
}
