package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/kasbon/kasirsync/internal/pos/localstore"
	"github.com/kasbon/kasirsync/pkg/apperror"
)

// Outcome is the verdict of one delivery attempt. SyncCode carries the
// server's classification; a fatal code kills the job instead of
// scheduling a retry.
type Outcome struct {
	Result   enum.PushResult
	SyncCode apperror.SyncCode
	Message  string
}

// Sender delivers one completed sale to the server. The apiclient package
// provides the real implementation; tests substitute their own.
type Sender interface {
	Send(ctx context.Context, sale *localstore.Sale, lines []localstore.SaleLine, payments []localstore.Payment) (Outcome, error)
}

// Config tunes the drain loop
type Config struct {
	Holder      string        // instance identity for the leader lease
	Interval    time.Duration // how often to look for due jobs
	LeaseTTL    time.Duration // leader lease lifetime, renewed each pass
	RetryBase   time.Duration // first retry delay
	RetryMax    time.Duration // backoff ceiling
	MaxAttempts int           // after this many attempts a job stays FAILED
	BatchLimit  int           // jobs taken per pass
}

// Drainer delivers outbox jobs to the server. Exactly one drainer per
// store file runs at a time, elected through the store's leader lease;
// instances that lose the election keep polling and take over when the
// lease lapses.
type Drainer struct {
	store  *localstore.Store
	sender Sender
	cfg    Config

	now func() time.Time
}

// NewDrainer creates a drainer over the given store and sender
func NewDrainer(store *localstore.Store, sender Sender, cfg Config) *Drainer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 2 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 25
	}
	return &Drainer{
		store:  store,
		sender: sender,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run drives the drain loop until ctx is cancelled. Each pass renews the
// leader lease first; a pass without the lease does nothing.
func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.store.ReleaseLease(releaseCtx, d.cfg.Holder); err != nil {
			log.Printf("outbox: release lease: %v", err)
		}
	}()

	for {
		err := d.DrainOnce(ctx)
		if err != nil && ctx.Err() == nil && !errors.Is(err, apperror.ErrNotLeader) {
			log.Printf("outbox: drain pass: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DrainOnce runs a single pass: take or renew the lease, then deliver
// every due job. Without the lease the pass returns ErrNotLeader and does
// no work.
func (d *Drainer) DrainOnce(ctx context.Context) error {
	leader, err := d.store.AcquireLease(ctx, d.cfg.Holder, d.cfg.LeaseTTL)
	if err != nil {
		return err
	}
	if !leader {
		return apperror.ErrNotLeader
	}

	jobs, err := d.store.DueOutboxJobs(ctx, d.now(), d.cfg.MaxAttempts, d.cfg.BatchLimit)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := d.deliver(ctx, job)
		if err != nil && !errors.Is(err, apperror.ErrStaleAttempt) {
			log.Printf("outbox: deliver dedupe_key=%s: %v", job.DedupeKey, err)
		}
	}
	return nil
}

// deliver runs one attempt of one job. The attempt counter incremented at
// the start is the token every later state change must present; a result
// landing after a newer attempt started is discarded.
func (d *Drainer) deliver(ctx context.Context, job localstore.OutboxJob) error {
	token, err := d.store.BeginOutboxAttempt(ctx, job.DedupeKey)
	if err == sql.ErrNoRows {
		// Already SENT or gone; nothing to do.
		return nil
	}
	if err != nil {
		return err
	}

	sale, err := d.store.GetSale(ctx, job.SaleID)
	if err != nil {
		return err
	}
	if sale == nil {
		return fmt.Errorf("sale %s missing for outbox job", job.SaleID)
	}
	lines, err := d.store.GetSaleLines(ctx, job.SaleID)
	if err != nil {
		return err
	}
	payments, err := d.store.GetPayments(ctx, job.SaleID)
	if err != nil {
		return err
	}

	outcome, sendErr := d.sender.Send(ctx, sale, lines, payments)
	if sendErr != nil {
		return d.applyFailure(ctx, job, token, sendErr.Error())
	}

	switch outcome.Result {
	case enum.PushResultOK, enum.PushResultDuplicate:
		// DUPLICATE means the server already holds this transaction;
		// from the client's side that is delivery.
		return d.applySuccess(ctx, job, token, outcome)
	default:
		if outcome.SyncCode.Fatal() {
			// Conflicts and rejections of the payload itself: resending
			// the same bytes can never succeed, so no retry schedule.
			return d.applyDead(ctx, job, token, outcome.Message)
		}
		return d.applyFailure(ctx, job, token, outcome.Message)
	}
}

func (d *Drainer) applySuccess(ctx context.Context, job localstore.OutboxJob, token int, outcome Outcome) error {
	return d.store.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := d.store.MarkOutboxSent(ctx, tx, job.DedupeKey, token)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("dedupe_key=%s attempt=%d: %w", job.DedupeKey, token, apperror.ErrStaleAttempt)
		}
		log.Printf("outbox: dedupe_key=%s result=%s attempt=%d", job.DedupeKey, outcome.Result, token)
		return d.store.SetSaleSyncStatus(ctx, tx, job.SaleID, enum.SyncStatusSent)
	})
}

// applyDead parks the job; the sale surfaces the failure immediately
// instead of burning the retry budget on a verdict that cannot change.
func (d *Drainer) applyDead(ctx context.Context, job localstore.OutboxJob, token int, message string) error {
	return d.store.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := d.store.MarkOutboxDead(ctx, tx, job.DedupeKey, token, message)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("dedupe_key=%s attempt=%d: %w", job.DedupeKey, token, apperror.ErrStaleAttempt)
		}
		log.Printf("outbox: dedupe_key=%s result=DEAD attempt=%d error=%q", job.DedupeKey, token, message)
		return d.store.SetSaleSyncStatus(ctx, tx, job.SaleID, enum.SyncStatusFailed)
	})
}

func (d *Drainer) applyFailure(ctx context.Context, job localstore.OutboxJob, token int, message string) error {
	nextRetry := d.now().Add(d.Backoff(token))
	return d.store.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := d.store.MarkOutboxFailed(ctx, tx, job.DedupeKey, token, nextRetry, message)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("dedupe_key=%s attempt=%d: %w", job.DedupeKey, token, apperror.ErrStaleAttempt)
		}
		log.Printf("outbox: dedupe_key=%s result=FAILED attempt=%d error=%q", job.DedupeKey, token, message)
		if token >= d.cfg.MaxAttempts {
			// Retry budget exhausted; the job stays FAILED with its
			// last_error and the sale surfaces it.
			return d.store.SetSaleSyncStatus(ctx, tx, job.SaleID, enum.SyncStatusFailed)
		}
		return nil
	})
}

// Backoff returns the delay before the next try after the given attempt:
// base doubled per attempt, capped at the configured ceiling.
func (d *Drainer) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := d.cfg.RetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.RetryMax {
			return d.cfg.RetryMax
		}
	}
	if delay > d.cfg.RetryMax {
		return d.cfg.RetryMax
	}
	return delay
}
