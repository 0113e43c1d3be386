package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Enqueue inserts a pending task. Duplicate enqueues for the same content are
// tolerated; downstream handlers are idempotent.
func (s *Store) Enqueue(ctx context.Context, taskType TaskType, contentID *int64, payloadJSON string) (int64, error) {
	if _, ok := taskTypeSet[taskType]; !ok {
		return 0, fmt.Errorf("unknown task type %q", taskType)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (task_type, content_id, payload_json, status, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		taskType,
		nullableInt64(contentID),
		nullableString(payloadJSON),
		TaskPending,
		timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Dequeue atomically claims the oldest pending task, optionally filtered by
// type, marking it processing for the given worker. Returns nil when no task
// is eligible. The claim is a single UPDATE so concurrent callers can never
// select the same row.
func (s *Store) Dequeue(ctx context.Context, workerID string, taskTypes ...TaskType) (*Task, error) {
	if workerID == "" {
		return nil, errors.New("worker id is required")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE tasks
        SET status = ?, claimed_by = ?, started_at = ?
        WHERE id = (
            SELECT id FROM tasks WHERE status = ?`
	args := []any{TaskProcessing, workerID, now, TaskPending}
	if len(taskTypes) > 0 {
		query += ` AND task_type IN (` + makePlaceholders(len(taskTypes)) + `)`
		for _, taskType := range taskTypes {
			args = append(args, taskType)
		}
	}
	query += ` ORDER BY created_at, id LIMIT 1)
        RETURNING ` + taskColumns

	row := s.db.QueryRowContext(ctx, query, args...)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue task: %w", err)
	}
	return task, nil
}

// GetTask fetches a task by identifier. Returns nil when absent.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// CompleteTask marks a processing task completed or failed. The transition
// only applies to rows still in processing, which makes double completion a
// no-op; the return value reports whether this call performed the transition.
func (s *Store) CompleteTask(ctx context.Context, id int64, success bool, errMsg string) (bool, error) {
	status := TaskCompleted
	if !success {
		status = TaskFailed
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
         SET status = ?, error_message = ?, completed_at = ?
         WHERE id = ? AND status = ?`,
		status,
		nullableString(errMsg),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		TaskProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RetryTask returns a processing task to pending with an incremented retry
// count, or fails it once maxRetries is reached. The resulting status is
// returned so callers can surface exhaustion.
func (s *Store) RetryTask(ctx context.Context, id int64, errMsg string, maxRetries int) (TaskStatus, error) {
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE tasks
         SET retry_count = retry_count + 1,
             status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END,
             error_message = ?,
             claimed_by = NULL,
             started_at = NULL,
             completed_at = CASE WHEN retry_count + 1 >= ? THEN ? ELSE NULL END
         WHERE id = ? AND status = ?
         RETURNING status`,
		maxRetries,
		TaskFailed,
		TaskPending,
		nullableString(errMsg),
		maxRetries,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		TaskProcessing,
	)
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("retry task %d: not in processing", id)
		}
		return "", fmt.Errorf("retry task: %w", err)
	}
	return TaskStatus(status), nil
}

// ReleaseStaleTasks returns tasks stuck in processing past the cutoff back to
// pending. This recovers tasks claimed by a dispatch loop that died without
// reporting an outcome.
func (s *Store) ReleaseStaleTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
         SET status = ?, claimed_by = NULL, started_at = NULL
         WHERE status = ? AND started_at IS NOT NULL AND started_at < ?`,
		TaskPending,
		TaskProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("release stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// QueueStats returns task counts grouped by status and by type.
func (s *Store) QueueStats(ctx context.Context) (QueueStats, error) {
	stats := QueueStats{
		ByStatus: make(map[TaskStatus]int),
		ByType:   make(map[TaskType]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("task stats by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	typeRows, err := s.db.QueryContext(ctx, `SELECT task_type, COUNT(1) FROM tasks GROUP BY task_type`)
	if err != nil {
		return stats, fmt.Errorf("task stats by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var taskType TaskType
		var count int
		if err := typeRows.Scan(&taskType, &count); err != nil {
			return stats, err
		}
		stats.ByType[taskType] = count
	}
	return stats, typeRows.Err()
}

// TasksForContent returns the tasks referencing a content item, oldest first.
func (s *Store) TasksForContent(ctx context.Context, contentID int64) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE content_id = ? ORDER BY created_at, id`, contentID)
	if err != nil {
		return nil, fmt.Errorf("tasks for content: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

const taskColumns = "id, task_type, content_id, payload_json, status, retry_count, error_message, claimed_by, created_at, started_at, completed_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id           int64
		taskType     string
		contentID    sql.NullInt64
		payload      sql.NullString
		statusStr    string
		retryCount   int
		errorMessage sql.NullString
		claimedBy    sql.NullString
		createdRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&taskType,
		&contentID,
		&payload,
		&statusStr,
		&retryCount,
		&errorMessage,
		&claimedBy,
		&createdRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:           id,
		TaskType:     TaskType(taskType),
		PayloadJSON:  payload.String,
		Status:       TaskStatus(statusStr),
		RetryCount:   retryCount,
		ErrorMessage: errorMessage.String,
		ClaimedBy:    claimedBy.String,
	}
	if contentID.Valid {
		value := contentID.Int64
		task.ContentID = &value
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			task.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			task.CompletedAt = &completed
		}
	}
	return task, nil
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}
