package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CheckoutBatch atomically claims up to batchSize items that are eligible for
// processing (status new or pending, no current holder), marking them
// processing for the given worker. Eligible rows are claimed oldest first.
// The whole claim is one UPDATE ... RETURNING statement, so two concurrent
// callers can never receive the same item.
func (s *Store) CheckoutBatch(ctx context.Context, workerID string, contentType *ContentType, batchSize int) ([]*ContentItem, error) {
	if workerID == "" {
		return nil, errors.New("worker id is required")
	}
	if batchSize <= 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE content_items
        SET checked_out_by = ?, checked_out_at = ?, status = ?, updated_at = ?
        WHERE id IN (
            SELECT id FROM content_items
            WHERE status IN (?, ?) AND checked_out_by IS NULL`
	args := []any{workerID, now, StatusProcessing, now, StatusNew, StatusPending}
	if contentType != nil {
		query += ` AND content_type = ?`
		args = append(args, *contentType)
	}
	query += ` ORDER BY created_at, id LIMIT ?)
        RETURNING ` + contentColumns
	args = append(args, batchSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("checkout batch: %w", err)
	}
	defer rows.Close()
	return collectContentItems(rows)
}

// CheckoutContent claims a single item by identifier. Returns nil when the
// item is absent, already held, or not in a claimable status; duplicate task
// enqueues resolve here as harmless no-ops.
func (s *Store) CheckoutContent(ctx context.Context, id int64, workerID string) (*ContentItem, error) {
	if workerID == "" {
		return nil, errors.New("worker id is required")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE content_items
         SET checked_out_by = ?, checked_out_at = ?, status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?) AND checked_out_by IS NULL
         RETURNING `+contentColumns,
		workerID,
		now,
		StatusProcessing,
		now,
		id,
		StatusNew,
		StatusPending,
	)
	item, err := scanContentItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkout content: %w", err)
	}
	return item, nil
}

// Checkin releases a checkout and records the outcome status. The call is a
// no-op when workerID no longer matches the current holder, which protects a
// reclaimed-then-requeued item from being double-released. processed_at is
// stamped on completed and skipped outcomes. Checkin with StatusProcessing is
// allowed: the claim is released while a chained task advances the item.
func (s *Store) Checkin(ctx context.Context, id int64, workerID string, status Status, errMsg string) (bool, error) {
	if workerID == "" {
		return false, errors.New("worker id is required")
	}
	if _, ok := statusSet[status]; !ok {
		return false, fmt.Errorf("unknown status %q", status)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var processedAt any
	if status == StatusCompleted || status == StatusSkipped {
		processedAt = now
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE content_items
         SET checked_out_by = NULL, checked_out_at = NULL, status = ?,
             error_message = ?, updated_at = ?, processed_at = COALESCE(?, processed_at)
         WHERE id = ? AND checked_out_by = ?`,
		status,
		nullableString(errMsg),
		now,
		processedAt,
		id,
		workerID,
	)
	if err != nil {
		return false, fmt.Errorf("checkin content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CheckinRetry releases a checkout after a transient failure, incrementing the
// retry count in the same statement. The item returns to pending until the
// count reaches maxRetries, at which point it is failed. The resulting status
// is returned.
func (s *Store) CheckinRetry(ctx context.Context, id int64, workerID string, errMsg string, maxRetries int) (Status, error) {
	if workerID == "" {
		return "", errors.New("worker id is required")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE content_items
         SET checked_out_by = NULL, checked_out_at = NULL,
             retry_count = retry_count + 1,
             status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END,
             error_message = ?, updated_at = ?
         WHERE id = ? AND checked_out_by = ?
         RETURNING status`,
		maxRetries,
		StatusFailed,
		StatusPending,
		nullableString(errMsg),
		now,
		id,
		workerID,
	)
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("checkin retry %d: worker %q no longer holds the item", id, workerID)
		}
		return "", fmt.Errorf("checkin retry: %w", err)
	}
	return Status(status), nil
}

// ReleaseStaleCheckouts resets any checkout older than the cutoff back to an
// unclaimed pending state. This is the liveness sweep that recovers items from
// crashed or hung workers.
func (s *Store) ReleaseStaleCheckouts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE content_items
         SET checked_out_by = NULL, checked_out_at = NULL, status = ?, updated_at = ?
         WHERE checked_out_by IS NOT NULL AND checked_out_at < ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("release stale checkouts: %w", err)
	}
	return res.RowsAffected()
}

// FailContent force-fails an item regardless of checkout state. Used when a
// task referencing the item exhausts its retry budget so nothing is silently
// dropped.
func (s *Store) FailContent(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE content_items
         SET checked_out_by = NULL, checked_out_at = NULL, status = ?,
             error_message = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		StatusFailed,
		nullableString(errMsg),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCompleted,
		StatusSkipped,
	)
	if err != nil {
		return fmt.Errorf("fail content: %w", err)
	}
	return nil
}

// RetryFailed moves failed content items back to new for reprocessing,
// clearing their error state. With no ids, every failed item is reset.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE content_items
         SET status = ?, error_message = NULL, retry_count = 0,
             checked_out_by = NULL, checked_out_at = NULL, updated_at = ?
         WHERE status = ?`
	args := []any{
		StatusNew,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusFailed,
	}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed content: %w", err)
	}
	return result.RowsAffected()
}

// CheckoutStats returns content counts grouped by status plus the number of
// currently held checkouts.
func (s *Store) CheckoutStats(ctx context.Context) (CheckoutStats, error) {
	stats := CheckoutStats{ByStatus: make(map[Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM content_items GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("checkout stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content_items WHERE checked_out_by IS NOT NULL`)
	if err := row.Scan(&stats.CheckedOut); err != nil {
		return stats, fmt.Errorf("count checkouts: %w", err)
	}
	return stats, nil
}
