package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"distill/internal/config"
)

// Store manages content and task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the pipeline database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "distill.db")
	// Pragmas go in the DSN so the driver applies them to every pooled
	// connection; a plain Exec would configure only one connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewContent inserts a content item discovered by a collector.
func (s *Store) NewContent(ctx context.Context, contentType ContentType, url string, metadataJSON string) (*ContentItem, error) {
	if _, ok := contentTypeSet[contentType]; !ok {
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}
	if url == "" {
		return nil, errors.New("content url is required")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO content_items (
            content_type, url, status, metadata_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		contentType,
		url,
		StatusNew,
		nullableString(metadataJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert content: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetContent(ctx, id)
}

// GetContent fetches a content item by identifier. Returns nil when absent.
func (s *Store) GetContent(ctx context.Context, id int64) (*ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE id = ?`, id)
	item, err := scanContentItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return item, nil
}

// FindContentByURL returns the first item matching a canonical URL.
func (s *Store) FindContentByURL(ctx context.Context, url string) (*ContentItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE url = ? ORDER BY id LIMIT 1`,
		url,
	)
	item, err := scanContentItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find content by url: %w", err)
	}
	return item, nil
}

// UpdateContent persists changes to an existing content item. Checkout fields
// are owned by the checkout operations and are not written here.
func (s *Store) UpdateContent(ctx context.Context, item *ContentItem) error {
	if item == nil {
		return errors.New("content item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE content_items
         SET content_type = ?, url = ?, title = ?, status = ?, error_message = ?,
             retry_count = ?, classification = ?, metadata_json = ?, updated_at = ?,
             processed_at = ?
         WHERE id = ?`,
		item.ContentType,
		item.URL,
		nullableString(item.Title),
		item.Status,
		nullableString(item.ErrorMessage),
		item.RetryCount,
		nullableString(item.Classification),
		nullableString(item.MetadataJSON),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(item.ProcessedAt),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return nil
}

// ContentByStatus returns items matching a status ordered by creation time.
func (s *Store) ContentByStatus(ctx context.Context, status Status) ([]*ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("query content by status: %w", err)
	}
	defer rows.Close()
	return collectContentItems(rows)
}

// ListContent returns items filtered by status set, or all items when no
// status is provided.
func (s *Store) ListContent(ctx context.Context, statuses ...Status) ([]*ContentItem, error) {
	baseQuery := `SELECT ` + contentColumns + ` FROM content_items`
	orderClause := ` ORDER BY created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()
	return collectContentItems(rows)
}

// Health aggregates content state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.CheckoutStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats.ByStatus {
		health.Total += count
		switch status {
		case StatusNew:
			health.New += count
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusSkipped:
			health.Skipped += count
		}
	}
	return health, nil
}

const contentColumns = "id, content_type, url, title, status, error_message, retry_count, classification, checked_out_by, checked_out_at, metadata_json, created_at, updated_at, processed_at"

func scanContentItem(scanner interface{ Scan(dest ...any) error }) (*ContentItem, error) {
	var (
		id             int64
		contentType    string
		url            string
		title          sql.NullString
		statusStr      string
		errorMessage   sql.NullString
		retryCount     int
		classification sql.NullString
		checkedOutBy   sql.NullString
		checkedOutRaw  sql.NullString
		metadata       sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		processedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&contentType,
		&url,
		&title,
		&statusStr,
		&errorMessage,
		&retryCount,
		&classification,
		&checkedOutBy,
		&checkedOutRaw,
		&metadata,
		&createdRaw,
		&updatedRaw,
		&processedRaw,
	); err != nil {
		return nil, err
	}

	item := &ContentItem{
		ID:             id,
		ContentType:    ContentType(contentType),
		URL:            url,
		Title:          title.String,
		Status:         Status(statusStr),
		ErrorMessage:   errorMessage.String,
		RetryCount:     retryCount,
		Classification: classification.String,
		CheckedOutBy:   checkedOutBy.String,
		MetadataJSON:   metadata.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if checkedOutRaw.Valid {
		if checkedOut, err := parseTimeString(checkedOutRaw.String); err == nil {
			item.CheckedOutAt = &checkedOut
		}
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			item.ProcessedAt = &processed
		}
	}
	return item, nil
}

func collectContentItems(rows *sql.Rows) ([]*ContentItem, error) {
	var items []*ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
