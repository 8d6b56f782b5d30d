package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
)

// EnqueueOutboxJob inserts one delivery job keyed by the sale's
// client_tx_id. ON CONFLICT DO NOTHING collapses concurrent enqueues of
// the same sale into a single job.
func (s *Store) EnqueueOutboxJob(ctx context.Context, tx *sql.Tx, job *OutboxJob) error {
	now := formatTime(time.Now())
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_jobs
		(dedupe_key, sale_id, company_id, outlet_id, status, attempts,
		 next_retry_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, '', ?, ?)
		ON CONFLICT(dedupe_key) DO NOTHING
	`,
		job.DedupeKey,
		job.SaleID.String(),
		job.CompanyID.String(),
		job.OutletID.String(),
		enum.OutboxStatusPending,
		now,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("enqueue outbox job: %w", err)
	}
	return nil
}

// DueOutboxJobs returns jobs ready for delivery across every scope in the
// store: pending (or failed-and-retryable) jobs whose next_retry_at has
// passed and that still have attempts left, oldest first. SENT and DEAD
// jobs are never picked up.
func (s *Store) DueOutboxJobs(ctx context.Context, now time.Time, maxAttempts, limit int) ([]OutboxJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dedupe_key, sale_id, company_id, outlet_id, status, attempts,
		       next_retry_at, last_error, created_at, updated_at
		FROM outbox_jobs
		WHERE status NOT IN (?, ?) AND next_retry_at <= ? AND attempts < ?
		ORDER BY created_at ASC, dedupe_key ASC
		LIMIT ?
	`, enum.OutboxStatusSent, enum.OutboxStatusDead, formatTime(now), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query due outbox jobs: %w", err)
	}
	defer rows.Close()

	var jobs []OutboxJob
	for rows.Next() {
		job, err := scanOutboxJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// GetOutboxJob returns one job by dedupe key, or nil when absent.
func (s *Store) GetOutboxJob(ctx context.Context, dedupeKey string) (*OutboxJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT dedupe_key, sale_id, company_id, outlet_id, status, attempts,
		       next_retry_at, last_error, created_at, updated_at
		FROM outbox_jobs WHERE dedupe_key = ?
	`, dedupeKey)

	job, err := scanOutboxJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// BeginOutboxAttempt increments a job's attempt counter and returns the new
// value. The counter doubles as the attempt token: any later state change
// for this delivery must present it, so a response from a superseded
// attempt cannot clobber newer state.
func (s *Store) BeginOutboxAttempt(ctx context.Context, dedupeKey string) (int, error) {
	var token int
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE outbox_jobs
			SET attempts = attempts + 1, updated_at = ?
			WHERE dedupe_key = ? AND status NOT IN (?, ?)
		`, formatTime(time.Now()), dedupeKey, enum.OutboxStatusSent, enum.OutboxStatusDead)
		if err != nil {
			return fmt.Errorf("begin outbox attempt: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("begin outbox attempt: %w", err)
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return tx.QueryRowContext(ctx, `
			SELECT attempts FROM outbox_jobs WHERE dedupe_key = ?
		`, dedupeKey).Scan(&token)
	})
	if err != nil {
		return 0, err
	}
	return token, nil
}

// MarkOutboxSent flips a job to SENT, but only when the attempt token still
// matches and the job is not already terminal. Returns the number of rows
// changed; zero means the outcome was stale and must be discarded.
func (s *Store) MarkOutboxSent(ctx context.Context, tx *sql.Tx, dedupeKey string, token int) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE outbox_jobs
		SET status = ?, last_error = '', updated_at = ?
		WHERE dedupe_key = ? AND attempts = ? AND status NOT IN (?, ?)
	`, enum.OutboxStatusSent, formatTime(time.Now()), dedupeKey, token, enum.OutboxStatusSent, enum.OutboxStatusDead)
	if err != nil {
		return 0, fmt.Errorf("mark outbox sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark outbox sent: %w", err)
	}
	return n, nil
}

// MarkOutboxFailed records a failed attempt with its retry time, guarded by
// the same attempt token and the terminal states.
func (s *Store) MarkOutboxFailed(ctx context.Context, tx *sql.Tx, dedupeKey string, token int, nextRetryAt time.Time, lastError string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE outbox_jobs
		SET status = ?, next_retry_at = ?, last_error = ?, updated_at = ?
		WHERE dedupe_key = ? AND attempts = ? AND status NOT IN (?, ?)
	`, enum.OutboxStatusFailed, formatTime(nextRetryAt), lastError, formatTime(time.Now()), dedupeKey, token, enum.OutboxStatusSent, enum.OutboxStatusDead)
	if err != nil {
		return 0, fmt.Errorf("mark outbox failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark outbox failed: %w", err)
	}
	return n, nil
}

// MarkOutboxDead parks a job as DEAD: the server rejected its payload in a
// way a retry cannot change, so there is no retry schedule. Guarded by the
// attempt token like every other state change; the job keeps its
// last_error for inspection.
func (s *Store) MarkOutboxDead(ctx context.Context, tx *sql.Tx, dedupeKey string, token int, lastError string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE outbox_jobs
		SET status = ?, last_error = ?, updated_at = ?
		WHERE dedupe_key = ? AND attempts = ? AND status NOT IN (?, ?)
	`, enum.OutboxStatusDead, lastError, formatTime(time.Now()), dedupeKey, token, enum.OutboxStatusSent, enum.OutboxStatusDead)
	if err != nil {
		return 0, fmt.Errorf("mark outbox dead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark outbox dead: %w", err)
	}
	return n, nil
}

func scanOutboxJob(row rowScanner) (*OutboxJob, error) {
	var job OutboxJob
	var saleID, companyID, outletID string
	var nextRetryAt, createdAt, updatedAt string

	err := row.Scan(
		&job.DedupeKey, &saleID, &companyID, &outletID,
		&job.Status, &job.Attempts, &nextRetryAt, &job.LastError,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if job.SaleID, err = uuid.Parse(saleID); err != nil {
		return nil, fmt.Errorf("parse sale_id: %w", err)
	}
	if job.CompanyID, err = uuid.Parse(companyID); err != nil {
		return nil, fmt.Errorf("parse company_id: %w", err)
	}
	if job.OutletID, err = uuid.Parse(outletID); err != nil {
		return nil, fmt.Errorf("parse outlet_id: %w", err)
	}
	if job.NextRetryAt, err = parseTime(nextRetryAt); err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &job, nil
}
